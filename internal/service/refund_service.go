package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/events"
	"github.com/jafarshop/retailapi/internal/metrics"
	"github.com/jafarshop/retailapi/internal/repository"
	"github.com/jafarshop/retailapi/pkg/errors"
)

// Inventory is the restock slice of the inventory service used by the
// refund orchestrator
type Inventory interface {
	RestockAdjustments(returnItems []*domain.ReturnItem, saleItems []*domain.SaleItem) []domain.StockAdjustment
	PublishChanges(ctx context.Context, changes []domain.InventoryChange)
}

type refundService struct {
	repos     *repository.Repositories
	gateway   PaymentGateway
	inventory Inventory
	publisher events.Publisher
	metrics   *metrics.Registry
	logger    *zap.Logger

	now func() time.Time
}

// NewRefundService creates a new refund service
func NewRefundService(
	repos *repository.Repositories,
	gateway PaymentGateway,
	inventory Inventory,
	publisher events.Publisher,
	registry *metrics.Registry,
	logger *zap.Logger,
) *refundService {
	return &refundService{
		repos:     repos,
		gateway:   gateway,
		inventory: inventory,
		publisher: publisher,
		metrics:   registry,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the service clock. Tests only.
func (s *refundService) SetClock(now func() time.Time) {
	s.now = now
}

// ProcessRefund executes the payment reversal for an approved return
// exactly once. Calling it again after success is a no-op success; a
// failed attempt leaves the request APPROVED so it can be retried.
func (s *refundService) ProcessRefund(ctx context.Context, requestID uuid.UUID, req ProcessRefundRequest) (*RefundResult, error) {
	request, err := s.repos.ReturnRequest.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if request.Status == domain.ReturnStatusRefunded {
		refund, err := s.repos.Refund.GetByReturnRequest(ctx, requestID)
		if err != nil {
			return nil, err
		}
		return &RefundResult{Success: true, Message: "refund already completed", Refund: refund}, nil
	}
	if request.Status != domain.ReturnStatusApproved {
		return nil, &errors.ErrInvalidStateTransition{From: request.Status, To: domain.ReturnStatusRefunded}
	}

	returnItems, err := s.repos.ReturnRequest.ListItems(ctx, requestID)
	if err != nil {
		return nil, err
	}
	saleItems, err := s.repos.SaleItem.ListBySale(ctx, request.SaleID)
	if err != nil {
		return nil, err
	}
	saleItemsByID := make(map[uuid.UUID]*domain.SaleItem, len(saleItems))
	for _, item := range saleItems {
		saleItemsByID[item.ID] = item
	}

	amount := 0.0
	if req.AmountOverride != nil {
		amount = *req.AmountOverride
	} else {
		for _, ri := range returnItems {
			amount += ri.RequestedRefundAmount(saleItemsByID[ri.SaleItemID])
		}
	}
	if amount <= 0 {
		return nil, &errors.ErrValidation{Message: "nothing to refund"}
	}

	originalPayment, err := s.repos.Payment.GetLatestBySale(ctx, request.SaleID)
	if err != nil {
		return nil, err
	}

	method := s.resolveMethod(req.Method, originalPayment)

	refund, err := s.prepareRefund(ctx, request, originalPayment, amount, method)
	if err != nil {
		return nil, err
	}
	if refund.Status == domain.RefundStatusCompleted {
		return &RefundResult{Success: true, Message: "refund already completed", Refund: refund}, nil
	}

	result, gatewayErr := s.gateway.Refund(ctx, originalPayment, amount)
	if gatewayErr != nil {
		s.metrics.Incr("refunds_failed")
		if err := s.repos.Refund.MarkFailed(ctx, refund.ID, gatewayErr.Error()); err != nil {
			s.logger.Error("Failed to mark refund failed", zap.Error(err))
			return nil, err
		}
		reason := gatewayErr.Error()
		refund.Status = domain.RefundStatusFailed
		refund.FailureReason = &reason
		s.logger.Warn("Refund attempt failed",
			zap.String("request_id", requestID.String()),
			zap.Error(gatewayErr))
		return &RefundResult{Success: false, Message: reason, Refund: refund}, nil
	}

	adjustments := s.inventory.RestockAdjustments(returnItems, saleItems)
	changes, err := s.repos.Refund.CompleteAndRestock(ctx, refund.ID, result.RefundRef, request.ID, adjustments)
	if err != nil {
		s.logger.Error("Failed to complete refund", zap.Error(err))
		return nil, err
	}

	s.metrics.Incr("refunds_completed")
	refund.Status = domain.RefundStatusCompleted
	refund.ExternalReference = &result.RefundRef
	processedAt := result.ProcessedAt
	refund.ProcessedAt = &processedAt

	old := request.Status
	request.Status = domain.ReturnStatusRefunded
	s.publishTransition(ctx, request, old)
	s.inventory.PublishChanges(ctx, changes)

	s.logger.Info("Refund completed",
		zap.String("request_id", requestID.String()),
		zap.Float64("amount", amount),
		zap.String("reference", result.RefundRef))
	return &RefundResult{Success: true, Message: "refund completed", Refund: refund}, nil
}

// prepareRefund creates the PENDING refund record, or reuses a previously
// failed one for the retry
func (s *refundService) prepareRefund(
	ctx context.Context,
	request *domain.ReturnRequest,
	originalPayment *domain.Payment,
	amount float64,
	method domain.RefundMethod,
) (*domain.Refund, error) {
	existing, err := s.repos.Refund.GetByReturnRequest(ctx, request.ID)
	if err != nil {
		if _, ok := err.(*errors.ErrNotFound); !ok {
			return nil, err
		}
	} else {
		if existing.Status == domain.RefundStatusCompleted {
			return existing, nil
		}
		if err := s.repos.Refund.Reset(ctx, existing.ID, amount, method); err != nil {
			return nil, err
		}
		existing.Amount = amount
		existing.Method = method
		existing.Status = domain.RefundStatusPending
		existing.FailureReason = nil
		return existing, nil
	}

	refund := &domain.Refund{
		ID:              uuid.New(),
		ReturnRequestID: request.ID,
		PaymentID:       originalPayment.ID,
		Amount:          amount,
		Method:          method,
		Status:          domain.RefundStatusPending,
	}
	if err := s.repos.Refund.Create(ctx, refund); err != nil {
		s.logger.Error("Failed to create refund record", zap.Error(err))
		return nil, err
	}
	return refund, nil
}

func (s *refundService) resolveMethod(requested *string, originalPayment *domain.Payment) domain.RefundMethod {
	if requested != nil {
		method := domain.RefundMethod(*requested)
		if method.IsValid() {
			return method
		}
	}
	switch originalPayment.Type {
	case domain.PaymentTypeCard:
		return domain.RefundMethodCard
	case domain.PaymentTypeCash:
		return domain.RefundMethodCash
	default:
		return domain.RefundMethodOriginalMethod
	}
}

func (s *refundService) publishTransition(ctx context.Context, request *domain.ReturnRequest, old domain.ReturnRequestStatus) {
	s.metrics.Incr("return_transitions")

	rma := ""
	if request.RMANumber != nil {
		rma = *request.RMANumber
	}
	event := events.RMAStatusChange{
		RequestID:  request.ID,
		CustomerID: request.CustomerID,
		RMANumber:  rma,
		OldStatus:  old,
		NewStatus:  request.Status,
		OccurredAt: s.now(),
	}
	if err := s.publisher.PublishRMAStatusChange(ctx, event); err != nil {
		s.logger.Error("Failed to publish RMA status change", zap.Error(err))
	}
}
