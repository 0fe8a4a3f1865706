package domain

// SaleStatus represents the lifecycle of a sale. A customer's cart is the
// single sale in "cart" status.
type SaleStatus string

const (
	SaleStatusCart      SaleStatus = "cart"
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusFailed    SaleStatus = "failed"
)

// PaymentStatus represents the authorization status of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentType discriminates the payment variant
type PaymentType string

const (
	PaymentTypeCash PaymentType = "cash"
	PaymentTypeCard PaymentType = "card"
)

// ReturnRequestStatus represents the status of an RMA request
type ReturnRequestStatus string

const (
	ReturnStatusPendingCustomerInfo  ReturnRequestStatus = "PENDING_CUSTOMER_INFO"
	ReturnStatusPendingAuthorization ReturnRequestStatus = "PENDING_AUTHORIZATION"
	ReturnStatusAuthorized           ReturnRequestStatus = "AUTHORIZED"
	ReturnStatusInTransit            ReturnRequestStatus = "IN_TRANSIT"
	ReturnStatusReceived             ReturnRequestStatus = "RECEIVED"
	ReturnStatusUnderInspection      ReturnRequestStatus = "UNDER_INSPECTION"
	ReturnStatusApproved             ReturnRequestStatus = "APPROVED"
	ReturnStatusRejected             ReturnRequestStatus = "REJECTED"
	ReturnStatusRefunded             ReturnRequestStatus = "REFUNDED"
	ReturnStatusCancelled            ReturnRequestStatus = "CANCELLED"
)

// IsValid checks if the return status is valid
func (s ReturnRequestStatus) IsValid() bool {
	switch s {
	case ReturnStatusPendingCustomerInfo,
		ReturnStatusPendingAuthorization,
		ReturnStatusAuthorized,
		ReturnStatusInTransit,
		ReturnStatusReceived,
		ReturnStatusUnderInspection,
		ReturnStatusApproved,
		ReturnStatusRejected,
		ReturnStatusRefunded,
		ReturnStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a status transition is valid
func (s ReturnRequestStatus) CanTransitionTo(newStatus ReturnRequestStatus) bool {
	switch s {
	case ReturnStatusPendingCustomerInfo:
		return newStatus == ReturnStatusPendingAuthorization ||
			newStatus == ReturnStatusCancelled
	case ReturnStatusPendingAuthorization:
		return newStatus == ReturnStatusAuthorized ||
			newStatus == ReturnStatusRejected ||
			newStatus == ReturnStatusCancelled
	case ReturnStatusAuthorized:
		return newStatus == ReturnStatusInTransit ||
			newStatus == ReturnStatusRejected
	case ReturnStatusInTransit:
		return newStatus == ReturnStatusReceived
	case ReturnStatusReceived:
		return newStatus == ReturnStatusUnderInspection
	case ReturnStatusUnderInspection:
		return newStatus == ReturnStatusApproved ||
			newStatus == ReturnStatusRejected
	case ReturnStatusApproved:
		return newStatus == ReturnStatusRefunded
	case ReturnStatusRejected:
		return newStatus == ReturnStatusCancelled
	case ReturnStatusRefunded, ReturnStatusCancelled:
		return false // Terminal states
	default:
		return false
	}
}

// IsActive reports whether a request in this status still reserves returned
// units against its sale items.
func (s ReturnRequestStatus) IsActive() bool {
	return s != ReturnStatusRejected && s != ReturnStatusCancelled
}

// ReturnReason represents why the customer is returning items
type ReturnReason string

const (
	ReturnReasonDamaged        ReturnReason = "DAMAGED"
	ReturnReasonWrongItem      ReturnReason = "WRONG_ITEM"
	ReturnReasonNotAsDescribed ReturnReason = "NOT_AS_DESCRIBED"
	ReturnReasonOther          ReturnReason = "OTHER"
)

// IsValid checks if the return reason is valid
func (r ReturnReason) IsValid() bool {
	switch r {
	case ReturnReasonDamaged, ReturnReasonWrongItem, ReturnReasonNotAsDescribed, ReturnReasonOther:
		return true
	default:
		return false
	}
}

// InspectionResult represents the outcome of inspecting returned goods
type InspectionResult string

const (
	InspectionPending           InspectionResult = "PENDING"
	InspectionApproved          InspectionResult = "APPROVED"
	InspectionPartiallyApproved InspectionResult = "PARTIALLY_APPROVED"
	InspectionRejected          InspectionResult = "REJECTED"
)

// IsValid checks if the inspection result is valid
func (r InspectionResult) IsValid() bool {
	switch r {
	case InspectionPending, InspectionApproved, InspectionPartiallyApproved, InspectionRejected:
		return true
	default:
		return false
	}
}

// RefundStatus represents the status of a refund
type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "PENDING"
	RefundStatusProcessing RefundStatus = "PROCESSING"
	RefundStatusCompleted  RefundStatus = "COMPLETED"
	RefundStatusFailed     RefundStatus = "FAILED"
)

// RefundMethod represents how a refund is paid out
type RefundMethod string

const (
	RefundMethodCard           RefundMethod = "CARD"
	RefundMethodCash           RefundMethod = "CASH"
	RefundMethodStoreCredit    RefundMethod = "STORE_CREDIT"
	RefundMethodOriginalMethod RefundMethod = "ORIGINAL_METHOD"
)

// IsValid checks if the refund method is valid
func (m RefundMethod) IsValid() bool {
	switch m {
	case RefundMethodCard, RefundMethodCash, RefundMethodStoreCredit, RefundMethodOriginalMethod:
		return true
	default:
		return false
	}
}

// BreakerStatus represents a circuit breaker state
type BreakerStatus string

const (
	BreakerClosed   BreakerStatus = "closed"
	BreakerOpen     BreakerStatus = "open"
	BreakerHalfOpen BreakerStatus = "half_open"
)

// QueueStatus represents the status of a queued order awaiting retry
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

// FlashSaleStatus represents the status of a flash sale
type FlashSaleStatus string

const (
	FlashSaleActive    FlashSaleStatus = "active"
	FlashSaleEnded     FlashSaleStatus = "ended"
	FlashSaleCancelled FlashSaleStatus = "cancelled"
)
