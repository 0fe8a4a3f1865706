package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a customer or admin account
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	APIKeyHash   string
	APIKeyLookup string // SHA256(apiKey) hex for fast lookup; set on create
	IsAdmin      bool
	CreatedAt    time.Time
}

// Product represents a catalog entity. Stock is the shared mutable resource
// contended over by concurrent checkouts and restored by refunds.
type Product struct {
	ID               uuid.UUID
	Name             string
	Description      *string
	Price            float64
	Stock            int
	ShippingWeight   float64
	DiscountPercent  float64
	CountryOfOrigin  *string
	RequiresShipping bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Sale represents a customer order. A customer has at most one cart-status
// sale at a time, created lazily on first cart interaction.
type Sale struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	TotalAmount float64
	Status      SaleStatus
	SaleDate    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SaleItem is a line item of a sale. Pricing fields are point-in-time
// snapshots captured at purchase and never recomputed afterwards.
type SaleItem struct {
	ID                 uuid.UUID
	SaleID             uuid.UUID
	ProductID          uuid.UUID
	Quantity           int
	OriginalUnitPrice  float64
	FinalUnitPrice     float64
	DiscountApplied    float64
	ShippingFeeApplied float64
	ImportDutyApplied  float64
	Subtotal           float64
	CreatedAt          time.Time
}

// CardDetails carries the card variant fields of a payment
type CardDetails struct {
	Number  string
	Brand   string
	ExpDate string // MM/YYYY
}

// Payment represents a payment attempt tied to a sale. Type discriminates
// the cash/card variant; exactly one of Card / CashTendered is set.
type Payment struct {
	ID           uuid.UUID
	SaleID       uuid.UUID
	Amount       float64
	Status       PaymentStatus
	Type         PaymentType
	Card         *CardDetails
	CashTendered *float64
	PaymentDate  time.Time
}

// ReturnRequest is the RMA aggregate
type ReturnRequest struct {
	ID               uuid.UUID
	SaleID           uuid.UUID
	CustomerID       uuid.UUID
	Status           ReturnRequestStatus
	Reason           ReturnReason
	Details          *string
	RMANumber        *string
	DecisionNotes    *string
	PolicyWindowDays int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReturnItem is the quantity of a specific sale item being returned
type ReturnItem struct {
	ID              uuid.UUID
	ReturnRequestID uuid.UUID
	SaleItemID      uuid.UUID
	Quantity        int
	ConditionReport *string
	RestockingFee   float64
}

// ReturnShipment records the inbound shipment of returned goods
type ReturnShipment struct {
	ID              uuid.UUID
	ReturnRequestID uuid.UUID
	Carrier         string
	TrackingNumber  string
	ShippedAt       *time.Time
	ReceivedAt      *time.Time
	Notes           *string
}

// ReturnPhoto is customer-supplied photo evidence attached to a return
type ReturnPhoto struct {
	ID              uuid.UUID
	ReturnRequestID uuid.UUID
	FilePath        string
	UploadedAt      time.Time
}

// Inspection records the result of inspecting returned goods
type Inspection struct {
	ID              uuid.UUID
	ReturnRequestID uuid.UUID
	InspectedBy     string
	InspectedAt     *time.Time
	Result          InspectionResult
	Notes           *string
}

// Refund records a payment reversal for a return request
type Refund struct {
	ID                uuid.UUID
	ReturnRequestID   uuid.UUID
	PaymentID         uuid.UUID
	Amount            float64
	Method            RefundMethod
	Status            RefundStatus
	FailureReason     *string
	ExternalReference *string
	CreatedAt         time.Time
	ProcessedAt       *time.Time
}

// FailedPaymentLog records a hard payment failure surfaced to the user
type FailedPaymentLog struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	AttemptDate   time.Time
	Amount        float64
	PaymentMethod string
	Reason        string
}

// BreakerState is the persisted circuit breaker row for one logical service.
// Singleton per service name; mutated only by the circuit breaker.
type BreakerState struct {
	ID               uuid.UUID
	ServiceName      string
	State            BreakerStatus
	FailureCount     int
	LastFailureTime  *time.Time
	NextAttemptTime  *time.Time
	FailureThreshold int
	TimeoutSeconds   int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// QueuedOrder is a deferred order awaiting reprocessing after a simulated
// upstream failure
type QueuedOrder struct {
	ID           uuid.UUID
	SaleID       uuid.UUID
	UserID       uuid.UUID
	QueueType    string
	Priority     int
	Status       QueueStatus
	Attempts     int
	MaxAttempts  int
	ScheduledFor time.Time
	LastError    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FlashSale is a time-boxed discount on a product with a reservation cap
type FlashSale struct {
	ID               uuid.UUID
	ProductID        uuid.UUID
	Title            string
	StartTime        time.Time
	EndTime          time.Time
	DiscountPercent  float64
	MaxQuantity      int
	ReservedQuantity int
	Status           FlashSaleStatus
	CreatedAt        time.Time
}

// IsActiveAt reports whether the flash sale accepts reservations at t
func (f *FlashSale) IsActiveAt(t time.Time) bool {
	return f.Status == FlashSaleActive &&
		!t.Before(f.StartTime) && t.Before(f.EndTime) &&
		f.ReservedQuantity < f.MaxQuantity
}

// AvailableQuantity returns how many units remain reservable
func (f *FlashSale) AvailableQuantity() int {
	if n := f.MaxQuantity - f.ReservedQuantity; n > 0 {
		return n
	}
	return 0
}

// FlashSaleReservation holds units of a flash sale for one user
type FlashSaleReservation struct {
	ID          uuid.UUID
	FlashSaleID uuid.UUID
	UserID      uuid.UUID
	Quantity    int
	Status      string // reserved, redeemed, released
	ReservedAt  time.Time
}

// StockAdjustment is a stock delta applied by the inventory adjuster
type StockAdjustment struct {
	ProductID uuid.UUID
	Delta     int
}

// InventoryChange reports an applied stock mutation for the event sink
type InventoryChange struct {
	ProductID uuid.UUID
	OldStock  int
	NewStock  int
	Reason    string
}
