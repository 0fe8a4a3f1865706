package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/config"
	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/events"
	"github.com/jafarshop/retailapi/internal/metrics"
	"github.com/jafarshop/retailapi/internal/repository"
	apperrors "github.com/jafarshop/retailapi/pkg/errors"
)

var testPolicy = config.ReturnsConfig{
	Enabled:         true,
	WindowDays:      30,
	MaxItemQuantity: 5,
	RequirePhotos:   false,
	MaxPhotos:       5,
}

type returnsFixture struct {
	svc        *returnsService
	st         *memState
	publisher  *events.MemoryPublisher
	customerID uuid.UUID
	saleID     uuid.UUID
	saleItemID uuid.UUID
	productID  uuid.UUID
	now        time.Time
}

// newReturnsFixture seeds a completed sale of quantity units at $100 each,
// purchased saleAge before the fixed clock
func newReturnsFixture(t *testing.T, quantity int, saleAge time.Duration) *returnsFixture {
	t.Helper()
	st := newMemState()
	publisher := events.NewMemoryPublisher()
	repos := newMockRepos(st)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	saleDate := now.Add(-saleAge)

	customerID := uuid.New()
	productID := uuid.New()
	st.products[productID] = &domain.Product{
		ID:    productID,
		Name:  "Walnut Desk",
		Price: 100,
		Stock: 3,
	}

	saleID := uuid.New()
	st.sales[saleID] = &domain.Sale{
		ID:          saleID,
		UserID:      customerID,
		TotalAmount: 100 * float64(quantity),
		Status:      domain.SaleStatusCompleted,
		SaleDate:    &saleDate,
	}

	saleItemID := uuid.New()
	st.saleItems[saleItemID] = &domain.SaleItem{
		ID:                saleItemID,
		SaleID:            saleID,
		ProductID:         productID,
		Quantity:          quantity,
		OriginalUnitPrice: 100,
		FinalUnitPrice:    100,
		Subtotal:          100 * float64(quantity),
	}

	paymentID := uuid.New()
	st.payments[paymentID] = &domain.Payment{
		ID:          paymentID,
		SaleID:      saleID,
		Amount:      100 * float64(quantity),
		Status:      domain.PaymentStatusCompleted,
		Type:        domain.PaymentTypeCard,
		PaymentDate: saleDate,
	}

	svc := NewReturnsService(repos, publisher, metrics.NewRegistry(), testPolicy, zap.NewNop())
	svc.SetClock(func() time.Time { return now })

	return &returnsFixture{
		svc:        svc,
		st:         st,
		publisher:  publisher,
		customerID: customerID,
		saleID:     saleID,
		saleItemID: saleItemID,
		productID:  productID,
		now:        now,
	}
}

func (f *returnsFixture) createRequest(t *testing.T, quantity int) *domain.ReturnRequest {
	t.Helper()
	request, err := f.svc.CreateReturnRequest(context.Background(), f.customerID, CreateReturnRequest{
		SaleID: f.saleID,
		Reason: "DAMAGED",
		Items: []ReturnItemRequest{
			{SaleItemID: f.saleItemID, Quantity: quantity},
		},
	})
	require.NoError(t, err)
	return request
}

func TestCreateReturnWithinWindow(t *testing.T) {
	f := newReturnsFixture(t, 1, 24*time.Hour) // day 1

	request := f.createRequest(t, 1)
	assert.Equal(t, domain.ReturnStatusPendingAuthorization, request.Status)

	changes := f.publisher.RMAStatusChanges()
	require.Len(t, changes, 1)
	assert.Equal(t, domain.ReturnRequestStatus(""), changes[0].OldStatus)
	assert.Equal(t, domain.ReturnStatusPendingAuthorization, changes[0].NewStatus)
}

func TestCreateReturnOutsideWindow(t *testing.T) {
	f := newReturnsFixture(t, 1, 31*24*time.Hour) // day 31, 30-day window

	_, err := f.svc.CreateReturnRequest(context.Background(), f.customerID, CreateReturnRequest{
		SaleID: f.saleID,
		Reason: "DAMAGED",
		Items:  []ReturnItemRequest{{SaleItemID: f.saleItemID, Quantity: 1}},
	})

	var policyErr *apperrors.ErrPolicyWindow
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, 30, policyErr.WindowDays)
	assert.Empty(t, f.st.returns, "no record on policy failure")
}

func TestCreateReturnQuantityCaps(t *testing.T) {
	f := newReturnsFixture(t, 2, 24*time.Hour)
	ctx := context.Background()

	// more than purchased
	_, err := f.svc.CreateReturnRequest(ctx, f.customerID, CreateReturnRequest{
		SaleID: f.saleID,
		Reason: "DAMAGED",
		Items:  []ReturnItemRequest{{SaleItemID: f.saleItemID, Quantity: 3}},
	})
	var validationErr *apperrors.ErrValidation
	require.ErrorAs(t, err, &validationErr)

	// more than the per-item policy maximum
	f2 := newReturnsFixture(t, 10, 24*time.Hour)
	_, err = f2.svc.CreateReturnRequest(ctx, f2.customerID, CreateReturnRequest{
		SaleID: f2.saleID,
		Reason: "DAMAGED",
		Items:  []ReturnItemRequest{{SaleItemID: f2.saleItemID, Quantity: 6}},
	})
	require.ErrorAs(t, err, &validationErr)
}

func TestReturnedQuantityInvariantAcrossRequests(t *testing.T) {
	f := newReturnsFixture(t, 2, 24*time.Hour)
	ctx := context.Background()

	f.createRequest(t, 2)

	// the purchased units are fully committed to the first active request
	_, err := f.svc.CreateReturnRequest(ctx, f.customerID, CreateReturnRequest{
		SaleID: f.saleID,
		Reason: "DAMAGED",
		Items:  []ReturnItemRequest{{SaleItemID: f.saleItemID, Quantity: 1}},
	})
	var validationErr *apperrors.ErrValidation
	require.ErrorAs(t, err, &validationErr)
}

func TestRejectedRequestFreesQuantity(t *testing.T) {
	f := newReturnsFixture(t, 2, 24*time.Hour)
	ctx := context.Background()

	first := f.createRequest(t, 2)
	_, err := f.svc.AuthorizeReturn(ctx, first.ID, AuthorizeReturnRequest{Approve: false})
	require.NoError(t, err)

	second, err := f.svc.CreateReturnRequest(ctx, f.customerID, CreateReturnRequest{
		SaleID: f.saleID,
		Reason: "WRONG_ITEM",
		Items:  []ReturnItemRequest{{SaleItemID: f.saleItemID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnStatusPendingAuthorization, second.Status)
}

func TestAuthorizeAssignsRMANumberOnce(t *testing.T) {
	f := newReturnsFixture(t, 1, 24*time.Hour)
	ctx := context.Background()

	request := f.createRequest(t, 1)
	authorized, err := f.svc.AuthorizeReturn(ctx, request.ID, AuthorizeReturnRequest{Approve: true})
	require.NoError(t, err)

	require.NotNil(t, authorized.RMANumber)
	assert.Regexp(t, `^RMA-20250601-[0-9A-F]{8}$`, *authorized.RMANumber)

	// a second authorize is an invalid transition, number unchanged
	_, err = f.svc.AuthorizeReturn(ctx, request.ID, AuthorizeReturnRequest{Approve: true})
	var transitionErr *apperrors.ErrInvalidStateTransition
	require.ErrorAs(t, err, &transitionErr)
}

func TestFullReturnLifecycle(t *testing.T) {
	f := newReturnsFixture(t, 1, 24*time.Hour)
	ctx := context.Background()

	request := f.createRequest(t, 1)

	_, err := f.svc.AuthorizeReturn(ctx, request.ID, AuthorizeReturnRequest{Approve: true})
	require.NoError(t, err)

	_, err = f.svc.RecordShipment(ctx, request.ID, RecordShipmentRequest{Carrier: "UPS", TrackingNumber: "1Z999"})
	require.NoError(t, err)

	_, err = f.svc.MarkReceived(ctx, request.ID)
	require.NoError(t, err)

	final, err := f.svc.RecordInspection(ctx, request.ID, RecordInspectionRequest{
		InspectedBy: "inspector-1",
		Result:      "APPROVED",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnStatusApproved, final.Status)

	// create, authorize, ship, receive, inspect: one event per visible transition
	changes := f.publisher.RMAStatusChanges()
	require.Len(t, changes, 5)
	last := changes[len(changes)-1]
	assert.Equal(t, domain.ReturnStatusUnderInspection, last.OldStatus)
	assert.Equal(t, domain.ReturnStatusApproved, last.NewStatus)
}

func TestMarkReceivedRequiresShipment(t *testing.T) {
	f := newReturnsFixture(t, 1, 24*time.Hour)
	ctx := context.Background()

	request := f.createRequest(t, 1)
	_, err := f.svc.AuthorizeReturn(ctx, request.ID, AuthorizeReturnRequest{Approve: true})
	require.NoError(t, err)

	_, err = f.svc.MarkReceived(ctx, request.ID)
	var transitionErr *apperrors.ErrInvalidStateTransition
	require.ErrorAs(t, err, &transitionErr)
}

func TestInspectionRejectionRejectsRequest(t *testing.T) {
	f := newReturnsFixture(t, 1, 24*time.Hour)
	ctx := context.Background()

	request := f.createRequest(t, 1)
	_, err := f.svc.AuthorizeReturn(ctx, request.ID, AuthorizeReturnRequest{Approve: true})
	require.NoError(t, err)
	_, err = f.svc.RecordShipment(ctx, request.ID, RecordShipmentRequest{Carrier: "UPS", TrackingNumber: "1Z999"})
	require.NoError(t, err)
	_, err = f.svc.MarkReceived(ctx, request.ID)
	require.NoError(t, err)

	final, err := f.svc.RecordInspection(ctx, request.ID, RecordInspectionRequest{
		InspectedBy: "inspector-1",
		Result:      "REJECTED",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnStatusRejected, final.Status)
}

func TestPhotosRequiredPolicy(t *testing.T) {
	f := newReturnsFixture(t, 1, 24*time.Hour)
	policy := testPolicy
	policy.RequirePhotos = true
	f.svc.policy = policy

	_, err := f.svc.CreateReturnRequest(context.Background(), f.customerID, CreateReturnRequest{
		SaleID: f.saleID,
		Reason: "DAMAGED",
		Items:  []ReturnItemRequest{{SaleItemID: f.saleItemID, Quantity: 1}},
	})
	var validationErr *apperrors.ErrValidation
	require.ErrorAs(t, err, &validationErr)
}

func TestReturnsHistoryFilters(t *testing.T) {
	f := newReturnsFixture(t, 1, 24*time.Hour)

	rma := "RMA-20250601-ABCD1234"
	seed := func(status domain.ReturnRequestStatus, age time.Duration, rmaNumber *string) uuid.UUID {
		id := uuid.New()
		f.st.returns[id] = &domain.ReturnRequest{
			ID:         id,
			SaleID:     f.saleID,
			CustomerID: f.customerID,
			Status:     status,
			Reason:     domain.ReturnReasonDamaged,
			RMANumber:  rmaNumber,
			CreatedAt:  f.now.Add(-age),
		}
		return id
	}

	pending := seed(domain.ReturnStatusPendingAuthorization, 72*time.Hour, nil)
	authorized := seed(domain.ReturnStatusAuthorized, 48*time.Hour, &rma)
	cancelled := seed(domain.ReturnStatusCancelled, 2*time.Hour, nil)

	ctx := context.Background()

	requests, total, err := f.svc.ListByCustomer(ctx, f.customerID, repository.ReturnHistoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, requests, 3)
	assert.Equal(t, cancelled, requests[0].ID)

	requests, total, err = f.svc.ListByCustomer(ctx, f.customerID, repository.ReturnHistoryFilter{
		Status: domain.ReturnStatusAuthorized,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, requests, 1)
	assert.Equal(t, authorized, requests[0].ID)

	requests, _, err = f.svc.ListByCustomer(ctx, f.customerID, repository.ReturnHistoryFilter{
		Keyword: "abcd1234",
	})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, authorized, requests[0].ID)

	from := f.now.Add(-60 * time.Hour)
	to := f.now.Add(-24 * time.Hour)
	requests, total, err = f.svc.ListByCustomer(ctx, f.customerID, repository.ReturnHistoryFilter{
		From: &from,
		To:   &to,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, requests, 1)
	assert.Equal(t, authorized, requests[0].ID)

	requests, total, err = f.svc.ListByCustomer(ctx, f.customerID, repository.ReturnHistoryFilter{
		Limit:  2,
		Offset: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, requests, 1)
	assert.Equal(t, pending, requests[0].ID)
}
