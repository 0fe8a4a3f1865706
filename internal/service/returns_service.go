package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/config"
	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/events"
	"github.com/jafarshop/retailapi/internal/metrics"
	"github.com/jafarshop/retailapi/internal/repository"
	"github.com/jafarshop/retailapi/pkg/errors"
)

type returnsService struct {
	repos     *repository.Repositories
	publisher events.Publisher
	metrics   *metrics.Registry
	policy    config.ReturnsConfig
	logger    *zap.Logger

	now func() time.Time
}

// NewReturnsService creates a new returns service
func NewReturnsService(
	repos *repository.Repositories,
	publisher events.Publisher,
	registry *metrics.Registry,
	policy config.ReturnsConfig,
	logger *zap.Logger,
) *returnsService {
	return &returnsService{
		repos:     repos,
		publisher: publisher,
		metrics:   registry,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the service clock. Tests only.
func (s *returnsService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateReturnRequest validates eligibility and opens an RMA in
// PENDING_AUTHORIZATION with its items and photos in one transaction.
func (s *returnsService) CreateReturnRequest(ctx context.Context, customerID uuid.UUID, req CreateReturnRequest) (*domain.ReturnRequest, error) {
	if !s.policy.Enabled {
		return nil, &errors.ErrValidation{Message: "returns are disabled"}
	}

	reason := domain.ReturnReason(strings.ToUpper(req.Reason))
	if !reason.IsValid() {
		return nil, &errors.ErrValidation{Message: fmt.Sprintf("invalid return reason %q", req.Reason)}
	}

	if s.policy.RequirePhotos && len(req.Photos) == 0 {
		return nil, &errors.ErrValidation{Message: "photo evidence is required"}
	}
	if len(req.Photos) > s.policy.MaxPhotos {
		return nil, &errors.ErrValidation{Message: fmt.Sprintf("at most %d photos allowed", s.policy.MaxPhotos)}
	}

	sale, err := s.repos.Sale.GetCompletedForCustomer(ctx, req.SaleID, customerID)
	if err != nil {
		return nil, err
	}

	if sale.SaleDate == nil {
		return nil, &errors.ErrValidation{Message: "sale has no completion date"}
	}
	daysSince := int(s.now().Sub(*sale.SaleDate).Hours() / 24)
	if daysSince > s.policy.WindowDays {
		return nil, &errors.ErrPolicyWindow{WindowDays: s.policy.WindowDays}
	}

	saleItems, err := s.repos.SaleItem.ListBySale(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	itemsByID := make(map[uuid.UUID]*domain.SaleItem, len(saleItems))
	for _, item := range saleItems {
		itemsByID[item.ID] = item
	}

	returnItems := make([]*domain.ReturnItem, 0, len(req.Items))
	for _, itemReq := range req.Items {
		saleItem, ok := itemsByID[itemReq.SaleItemID]
		if !ok {
			return nil, &errors.ErrValidation{Message: fmt.Sprintf("sale item %s does not belong to this sale", itemReq.SaleItemID)}
		}
		if itemReq.Quantity > s.policy.MaxItemQuantity {
			return nil, &errors.ErrValidation{Message: fmt.Sprintf("at most %d units per item may be returned", s.policy.MaxItemQuantity)}
		}
		if itemReq.Quantity > saleItem.Quantity {
			return nil, &errors.ErrValidation{Message: fmt.Sprintf("requested %d units but only %d were purchased", itemReq.Quantity, saleItem.Quantity)}
		}

		alreadyReturned, err := s.repos.ReturnRequest.ActiveReturnedQuantity(ctx, saleItem.ID)
		if err != nil {
			return nil, err
		}
		remaining := saleItem.Quantity - alreadyReturned
		if itemReq.Quantity > remaining {
			return nil, &errors.ErrValidation{Message: fmt.Sprintf("only %d units remain returnable for this item", remaining)}
		}

		returnItems = append(returnItems, &domain.ReturnItem{
			ID:              uuid.New(),
			SaleItemID:      itemReq.SaleItemID,
			Quantity:        itemReq.Quantity,
			ConditionReport: itemReq.ConditionReport,
			RestockingFee:   itemReq.RestockingFee,
		})
	}

	request := &domain.ReturnRequest{
		ID:               uuid.New(),
		SaleID:           sale.ID,
		CustomerID:       customerID,
		Status:           domain.ReturnStatusPendingAuthorization,
		Reason:           reason,
		Details:          req.Details,
		PolicyWindowDays: s.policy.WindowDays,
	}

	photos := make([]*domain.ReturnPhoto, 0, len(req.Photos))
	for _, path := range req.Photos {
		photos = append(photos, &domain.ReturnPhoto{
			ID:              uuid.New(),
			ReturnRequestID: request.ID,
			FilePath:        path,
		})
	}

	if err := s.repos.ReturnRequest.Create(ctx, request, returnItems, photos); err != nil {
		s.logger.Error("Failed to create return request", zap.Error(err))
		return nil, err
	}

	s.publishTransition(ctx, request, "", domain.ReturnStatusPendingAuthorization)
	s.logger.Info("Return request created",
		zap.String("request_id", request.ID.String()),
		zap.String("sale_id", sale.ID.String()))
	return request, nil
}

// AuthorizeReturn approves or rejects a pending return. Approval assigns
// the RMA number exactly once.
func (s *returnsService) AuthorizeReturn(ctx context.Context, requestID uuid.UUID, req AuthorizeReturnRequest) (*domain.ReturnRequest, error) {
	request, err := s.repos.ReturnRequest.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if request.Status != domain.ReturnStatusPendingAuthorization &&
		request.Status != domain.ReturnStatusPendingCustomerInfo {
		return nil, &errors.ErrInvalidStateTransition{From: request.Status, To: domain.ReturnStatusAuthorized}
	}

	target := domain.ReturnStatusRejected
	var rmaNumber *string
	if req.Approve {
		target = domain.ReturnStatusAuthorized
		if request.RMANumber == nil {
			rma := generateRMANumber(s.now(), request.ID)
			rmaNumber = &rma
		}
	}

	return s.transition(ctx, request, target, rmaNumber, req.Notes)
}

// RecordShipment attaches carrier tracking and moves the return in transit
func (s *returnsService) RecordShipment(ctx context.Context, requestID uuid.UUID, req RecordShipmentRequest) (*domain.ReturnRequest, error) {
	request, err := s.repos.ReturnRequest.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != domain.ReturnStatusAuthorized {
		return nil, &errors.ErrInvalidStateTransition{From: request.Status, To: domain.ReturnStatusInTransit}
	}

	now := s.now()
	shipment := &domain.ReturnShipment{
		ID:              uuid.New(),
		ReturnRequestID: request.ID,
		Carrier:         req.Carrier,
		TrackingNumber:  req.TrackingNumber,
		ShippedAt:       &now,
	}
	if err := s.repos.ReturnRequest.UpsertShipment(ctx, shipment); err != nil {
		s.logger.Error("Failed to record return shipment", zap.Error(err))
		return nil, err
	}

	return s.transition(ctx, request, domain.ReturnStatusInTransit, nil, nil)
}

// MarkReceived records arrival of the returned goods
func (s *returnsService) MarkReceived(ctx context.Context, requestID uuid.UUID) (*domain.ReturnRequest, error) {
	request, err := s.repos.ReturnRequest.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != domain.ReturnStatusInTransit {
		return nil, &errors.ErrInvalidStateTransition{From: request.Status, To: domain.ReturnStatusReceived}
	}

	shipment, err := s.repos.ReturnRequest.GetShipment(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	shipment.ReceivedAt = &now
	if err := s.repos.ReturnRequest.UpsertShipment(ctx, shipment); err != nil {
		s.logger.Error("Failed to update return shipment", zap.Error(err))
		return nil, err
	}

	return s.transition(ctx, request, domain.ReturnStatusReceived, nil, nil)
}

// RecordInspection stores the inspection outcome and settles the request to
// APPROVED or REJECTED. A RECEIVED request advances through
// UNDER_INSPECTION inside the same call, publishing one event.
func (s *returnsService) RecordInspection(ctx context.Context, requestID uuid.UUID, req RecordInspectionRequest) (*domain.ReturnRequest, error) {
	request, err := s.repos.ReturnRequest.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != domain.ReturnStatusReceived && request.Status != domain.ReturnStatusUnderInspection {
		return nil, &errors.ErrInvalidStateTransition{From: request.Status, To: domain.ReturnStatusUnderInspection}
	}

	result := domain.InspectionResult(req.Result)
	if !result.IsValid() || result == domain.InspectionPending {
		return nil, &errors.ErrValidation{Message: fmt.Sprintf("invalid inspection result %q", req.Result)}
	}

	if request.Status == domain.ReturnStatusReceived {
		if err := s.repos.ReturnRequest.UpdateStatus(ctx, request.ID, domain.ReturnStatusUnderInspection, nil, nil); err != nil {
			return nil, err
		}
		request.Status = domain.ReturnStatusUnderInspection
	}

	now := s.now()
	inspection := &domain.Inspection{
		ID:              uuid.New(),
		ReturnRequestID: request.ID,
		InspectedBy:     req.InspectedBy,
		InspectedAt:     &now,
		Result:          result,
		Notes:           req.Notes,
	}
	if err := s.repos.ReturnRequest.UpsertInspection(ctx, inspection); err != nil {
		s.logger.Error("Failed to record inspection", zap.Error(err))
		return nil, err
	}

	target := domain.ReturnStatusApproved
	if result == domain.InspectionRejected {
		target = domain.ReturnStatusRejected
	}
	return s.transition(ctx, request, target, nil, req.Notes)
}

// Cancel moves a cancellable return to CANCELLED
func (s *returnsService) Cancel(ctx context.Context, requestID uuid.UUID, notes *string) (*domain.ReturnRequest, error) {
	request, err := s.repos.ReturnRequest.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, request, domain.ReturnStatusCancelled, nil, notes)
}

// GetReturnRequest returns the request with its items
func (s *returnsService) GetReturnRequest(ctx context.Context, requestID uuid.UUID) (*domain.ReturnRequest, []*domain.ReturnItem, error) {
	request, err := s.repos.ReturnRequest.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.repos.ReturnRequest.ListItems(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	return request, items, nil
}

// ListByCustomer returns the filtered page of the customer's return
// requests with the total match count
func (s *returnsService) ListByCustomer(ctx context.Context, customerID uuid.UUID, filter repository.ReturnHistoryFilter) ([]*domain.ReturnRequest, int, error) {
	return s.repos.ReturnRequest.ListByCustomer(ctx, customerID, filter)
}

// transition validates the move against the transition table, persists it
// and publishes exactly one status-change event.
func (s *returnsService) transition(
	ctx context.Context,
	request *domain.ReturnRequest,
	target domain.ReturnRequestStatus,
	rmaNumber *string,
	notes *string,
) (*domain.ReturnRequest, error) {
	if !request.Status.CanTransitionTo(target) {
		return nil, &errors.ErrInvalidStateTransition{From: request.Status, To: target}
	}

	if err := s.repos.ReturnRequest.UpdateStatus(ctx, request.ID, target, rmaNumber, notes); err != nil {
		s.logger.Error("Failed to update return status", zap.Error(err))
		return nil, err
	}

	old := request.Status
	request.Status = target
	if rmaNumber != nil {
		request.RMANumber = rmaNumber
	}
	if notes != nil {
		request.DecisionNotes = notes
	}

	s.publishTransition(ctx, request, old, target)
	s.logger.Info("Return request transitioned",
		zap.String("request_id", request.ID.String()),
		zap.String("from", string(old)),
		zap.String("to", string(target)))
	return request, nil
}

func (s *returnsService) publishTransition(ctx context.Context, request *domain.ReturnRequest, old, newStatus domain.ReturnRequestStatus) {
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
		NewStatus:  newStatus,
		OccurredAt: s.now(),
	}
	if err := s.publisher.PublishRMAStatusChange(ctx, event); err != nil {
		s.logger.Error("Failed to publish RMA status change", zap.Error(err))
	}
}

// generateRMANumber derives the human-readable RMA id from the decision
// date and the request id
func generateRMANumber(now time.Time, requestID uuid.UUID) string {
	suffix := strings.ToUpper(strings.ReplaceAll(requestID.String(), "-", "")[:8])
	return fmt.Sprintf("RMA-%s-%s", now.Format("20060102"), suffix)
}
