package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jafarshop/retailapi/internal/domain"
)

// UserRepository defines user data access methods
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByAPIKeyLookup(ctx context.Context, lookup string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
}

// ProductRepository defines product catalog data access methods
type ProductRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Product, error)
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
}

// SaleHistoryFilter narrows and pages a user's order history. Status may
// be a sale status or one of the derived values "returned" (the sale has
// an active return request) and "refunded" (the sale has a completed
// refund). Keyword matches product names in the order, or the sale ID when
// it parses as a UUID. To is inclusive.
type SaleHistoryFilter struct {
	Status  string
	From    *time.Time
	To      *time.Time
	Keyword string
	Limit   int
	Offset  int
}

// ReturnHistoryFilter narrows and pages a customer's return history.
// Keyword matches the RMA number or the request ID.
type ReturnHistoryFilter struct {
	Status  domain.ReturnRequestStatus
	From    *time.Time
	To      *time.Time
	Keyword string
	Limit   int
	Offset  int
}

// SaleRepository defines sale data access methods
type SaleRepository interface {
	Create(ctx context.Context, sale *domain.Sale) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	// GetCartByUser returns the single cart-status sale for a user, or
	// ErrNotFound when the user has no open cart.
	GetCartByUser(ctx context.Context, userID uuid.UUID) (*domain.Sale, error)
	// GetCompletedForCustomer returns the sale only when it belongs to the
	// customer, is completed, has a completed payment and at least one item
	// with positive quantity.
	GetCompletedForCustomer(ctx context.Context, saleID, customerID uuid.UUID) (*domain.Sale, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SaleStatus) error
	UpdateTotals(ctx context.Context, id uuid.UUID, total float64) error
	// ListHistoryByUser returns the filtered page of the user's non-cart
	// sales, newest first, along with the total match count.
	ListHistoryByUser(ctx context.Context, userID uuid.UUID, filter SaleHistoryFilter) ([]*domain.Sale, int, error)
}

// SaleItemRepository defines sale line item data access methods
type SaleItemRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SaleItem, error)
	ListBySale(ctx context.Context, saleID uuid.UUID) ([]*domain.SaleItem, error)
	// UpsertCartItem merges a provisional line item into the cart by
	// (sale, product), adding quantities.
	UpsertCartItem(ctx context.Context, item *domain.SaleItem) error
	// SetQuantity rewrites a provisional line item's quantity and snapshot
	// fields; zero quantity deletes the line.
	SetQuantity(ctx context.Context, saleID, productID uuid.UUID, item *domain.SaleItem) error
	DeleteBySale(ctx context.Context, saleID uuid.UUID) error
}

// PaymentRepository defines payment data access methods
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetLatestBySale(ctx context.Context, saleID uuid.UUID) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error
}

// ReturnRequestRepository defines RMA aggregate data access methods
type ReturnRequestRepository interface {
	// Create persists the request, its items and photos atomically.
	Create(ctx context.Context, request *domain.ReturnRequest, items []*domain.ReturnItem, photos []*domain.ReturnPhoto) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ReturnRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ReturnRequestStatus, rmaNumber, decisionNotes *string) error
	ListItems(ctx context.Context, requestID uuid.UUID) ([]*domain.ReturnItem, error)
	// ActiveReturnedQuantity sums return item quantities for a sale item
	// across requests that are not REJECTED or CANCELLED.
	ActiveReturnedQuantity(ctx context.Context, saleItemID uuid.UUID) (int, error)
	GetShipment(ctx context.Context, requestID uuid.UUID) (*domain.ReturnShipment, error)
	UpsertShipment(ctx context.Context, shipment *domain.ReturnShipment) error
	GetInspection(ctx context.Context, requestID uuid.UUID) (*domain.Inspection, error)
	UpsertInspection(ctx context.Context, inspection *domain.Inspection) error
	// ListByCustomer returns the filtered page of the customer's return
	// requests, newest first, along with the total match count.
	ListByCustomer(ctx context.Context, customerID uuid.UUID, filter ReturnHistoryFilter) ([]*domain.ReturnRequest, int, error)
}

// RefundRepository defines refund data access methods
type RefundRepository interface {
	Create(ctx context.Context, refund *domain.Refund) error
	GetByReturnRequest(ctx context.Context, requestID uuid.UUID) (*domain.Refund, error)
	// Reset reuses a previously failed refund for a retry: amount and method
	// are rewritten, status returns to PENDING and the failure reason clears.
	Reset(ctx context.Context, id uuid.UUID, amount float64, method domain.RefundMethod) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	// CompleteAndRestock marks the refund COMPLETED, advances the return
	// request to REFUNDED and applies the restock adjustments in a single
	// transaction. Returns the applied inventory changes.
	CompleteAndRestock(ctx context.Context, refundID uuid.UUID, reference string, requestID uuid.UUID, adjustments []domain.StockAdjustment) ([]domain.InventoryChange, error)
}

// BreakerStateRepository persists circuit breaker state per service name
type BreakerStateRepository interface {
	GetOrCreate(ctx context.Context, serviceName string, threshold, timeoutSeconds int) (*domain.BreakerState, error)
	Save(ctx context.Context, state *domain.BreakerState) error
	// Reset returns the breaker row to closed with zero failures. Admin
	// action only.
	Reset(ctx context.Context, serviceName string) error
}

// OrderQueueRepository defines retry queue data access methods
type OrderQueueRepository interface {
	Enqueue(ctx context.Context, entry *domain.QueuedOrder) error
	// ClaimDue atomically moves due pending entries to processing and
	// returns them ordered by priority.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.QueuedOrder, error)
	Update(ctx context.Context, entry *domain.QueuedOrder) error
	ListByStatus(ctx context.Context, status domain.QueueStatus, limit, offset int) ([]*domain.QueuedOrder, error)
}

// FailedPaymentLogRepository records hard payment failures
type FailedPaymentLogRepository interface {
	Create(ctx context.Context, log *domain.FailedPaymentLog) error
}

// FlashSaleRepository defines flash sale data access methods
type FlashSaleRepository interface {
	Create(ctx context.Context, sale *domain.FlashSale) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.FlashSale, error)
	ListActive(ctx context.Context, now time.Time) ([]*domain.FlashSale, error)
	HasOverlappingActive(ctx context.Context, productID uuid.UUID, start, end time.Time) (bool, error)
	// Reserve locks the flash sale row, validates the window, available
	// quantity and one-reservation-per-user rule, then records the
	// reservation and bumps the reserved counter.
	Reserve(ctx context.Context, flashSaleID, userID uuid.UUID, quantity int, now time.Time) (*domain.FlashSaleReservation, error)
}

// CheckoutTx is an open checkout transaction holding row locks on the
// products being purchased. Callers must Commit or Rollback.
type CheckoutTx interface {
	// LockProducts acquires FOR UPDATE locks on the product rows, in a
	// stable order, and returns them keyed by id.
	LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error)
	MarkSalePending(ctx context.Context, saleID uuid.UUID, total float64, saleDate time.Time) error
	UpdateSaleStatus(ctx context.Context, saleID uuid.UUID, status domain.SaleStatus) error
	InsertPayment(ctx context.Context, payment *domain.Payment) error
	UpdatePaymentStatus(ctx context.Context, paymentID uuid.UUID, status domain.PaymentStatus) error
	// ReplaceSaleItems deletes the provisional cart lines and writes the
	// final snapshot lines.
	ReplaceSaleItems(ctx context.Context, saleID uuid.UUID, items []*domain.SaleItem) error
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error
	InsertQueuedOrder(ctx context.Context, entry *domain.QueuedOrder) error
	Commit() error
	Rollback() error
}

// CheckoutRepository opens checkout transactions
type CheckoutRepository interface {
	Begin(ctx context.Context) (CheckoutTx, error)
}

// Repositories aggregates all repositories
type Repositories struct {
	User             UserRepository
	Product          ProductRepository
	Sale             SaleRepository
	SaleItem         SaleItemRepository
	Payment          PaymentRepository
	ReturnRequest    ReturnRequestRepository
	Refund           RefundRepository
	BreakerState     BreakerStateRepository
	OrderQueue       OrderQueueRepository
	FailedPaymentLog FailedPaymentLogRepository
	FlashSale        FlashSaleRepository
	Checkout         CheckoutRepository
}
