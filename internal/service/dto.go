package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/jafarshop/retailapi/internal/domain"
)

// AddToCartRequest adds a quantity of one product to the caller's cart
type AddToCartRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// SetCartQuantityRequest rewrites a cart line's quantity; zero removes it
type SetCartQuantityRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"min=0"`
}

// CardPayment carries the card variant of a checkout payment
type CardPayment struct {
	Number  string `json:"number" binding:"required"`
	Brand   string `json:"brand" binding:"required"`
	ExpDate string `json:"exp_date" binding:"required"`
}

// CheckoutRequest promotes the caller's cart to a sale
type CheckoutRequest struct {
	PaymentMethod string       `json:"payment_method" binding:"required,oneof=cash card"`
	Card          *CardPayment `json:"card,omitempty"`
	CashTendered  *float64     `json:"cash_tendered,omitempty" binding:"omitempty,min=0"`
	Priority      int          `json:"priority" binding:"min=0,max=10"`
}

// CheckoutResult reports the outcome of a checkout attempt
type CheckoutResult struct {
	Sale    *domain.Sale    `json:"sale"`
	Payment *domain.Payment `json:"payment,omitempty"`
	Queued  bool            `json:"queued"`
	Message string          `json:"message"`
}

// ReturnItemRequest is one (sale item, quantity) pair being returned
type ReturnItemRequest struct {
	SaleItemID      uuid.UUID `json:"sale_item_id" binding:"required"`
	Quantity        int       `json:"quantity" binding:"required,min=1"`
	ConditionReport *string   `json:"condition_report,omitempty"`
	RestockingFee   float64   `json:"restocking_fee" binding:"min=0"`
}

// CreateReturnRequest opens an RMA against a completed sale
type CreateReturnRequest struct {
	SaleID  uuid.UUID           `json:"sale_id" binding:"required"`
	Reason  string              `json:"reason" binding:"required"`
	Details *string             `json:"details,omitempty"`
	Items   []ReturnItemRequest `json:"items" binding:"required,min=1,dive"`
	Photos  []string            `json:"photos,omitempty"`
}

// AuthorizeReturnRequest approves or rejects a pending return
type AuthorizeReturnRequest struct {
	Approve bool    `json:"approve"`
	Notes   *string `json:"notes,omitempty"`
}

// RecordShipmentRequest attaches carrier tracking to an authorized return
type RecordShipmentRequest struct {
	Carrier        string `json:"carrier" binding:"required"`
	TrackingNumber string `json:"tracking_number" binding:"required"`
}

// RecordInspectionRequest records the inspection outcome for received goods
type RecordInspectionRequest struct {
	InspectedBy string  `json:"inspected_by" binding:"required"`
	Result      string  `json:"result" binding:"required,oneof=APPROVED PARTIALLY_APPROVED REJECTED"`
	Notes       *string `json:"notes,omitempty"`
}

// ProcessRefundRequest triggers or retries the refund for an approved return
type ProcessRefundRequest struct {
	Method         *string  `json:"method,omitempty" binding:"omitempty,oneof=CARD CASH STORE_CREDIT ORIGINAL_METHOD"`
	AmountOverride *float64 `json:"amount_override,omitempty" binding:"omitempty,gt=0"`
}

// RefundResult reports the outcome of a refund attempt
type RefundResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Refund  *domain.Refund `json:"refund,omitempty"`
}

// CreateFlashSaleRequest schedules a time-boxed discount on a product
type CreateFlashSaleRequest struct {
	ProductID       uuid.UUID `json:"product_id" binding:"required"`
	Title           string    `json:"title" binding:"required"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	EndTime         time.Time `json:"end_time" binding:"required"`
	DiscountPercent float64   `json:"discount_percent" binding:"gt=0,lt=100"`
	MaxQuantity     int       `json:"max_quantity" binding:"required,min=1"`
}

// ReserveFlashSaleRequest holds flash sale units for the caller
type ReserveFlashSaleRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}
