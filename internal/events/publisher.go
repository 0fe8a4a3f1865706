package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jafarshop/retailapi/internal/domain"
)

// RMAStatusChange is emitted on every return request transition
type RMAStatusChange struct {
	RequestID  uuid.UUID                  `json:"request_id"`
	CustomerID uuid.UUID                  `json:"customer_id"`
	RMANumber  string                     `json:"rma_number,omitempty"`
	OldStatus  domain.ReturnRequestStatus `json:"old_status"`
	NewStatus  domain.ReturnRequestStatus `json:"new_status"`
	OccurredAt time.Time                  `json:"occurred_at"`
}

// InventoryChange is emitted when product stock is mutated outside a checkout
type InventoryChange struct {
	ProductID  uuid.UUID `json:"product_id"`
	OldStock   int       `json:"old_stock"`
	NewStock   int       `json:"new_stock"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers domain events to downstream consumers
type Publisher interface {
	PublishRMAStatusChange(ctx context.Context, event RMAStatusChange) error
	PublishInventoryChange(ctx context.Context, event InventoryChange) error
	Close() error
}

// MemoryPublisher collects events in memory. Used when no brokers are
// configured, and in tests to assert on published events.
type MemoryPublisher struct {
	mu              sync.Mutex
	rmaEvents       []RMAStatusChange
	inventoryEvents []InventoryChange
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) PublishRMAStatusChange(_ context.Context, event RMAStatusChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rmaEvents = append(p.rmaEvents, event)
	return nil
}

func (p *MemoryPublisher) PublishInventoryChange(_ context.Context, event InventoryChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inventoryEvents = append(p.inventoryEvents, event)
	return nil
}

// RMAStatusChanges returns a copy of the captured RMA events
func (p *MemoryPublisher) RMAStatusChanges() []RMAStatusChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]RMAStatusChange, len(p.rmaEvents))
	copy(out, p.rmaEvents)
	return out
}

// InventoryChanges returns a copy of the captured inventory events
func (p *MemoryPublisher) InventoryChanges() []InventoryChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]InventoryChange, len(p.inventoryEvents))
	copy(out, p.inventoryEvents)
	return out
}

func (p *MemoryPublisher) Close() error {
	return nil
}
