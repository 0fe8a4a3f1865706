package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/metrics"
)

type retryFixture struct {
	svc       *retryService
	gateway   *fakeGateway
	st        *memState
	userID    uuid.UUID
	saleID    uuid.UUID
	productID uuid.UUID
	entryID   uuid.UUID
	now       time.Time
}

// newRetryFixture seeds a pending sale with a pending payment and a due
// queue entry, the state a declined checkout leaves behind
func newRetryFixture(t *testing.T, maxAttempts int) *retryFixture {
	t.Helper()
	st := newMemState()
	repos := newMockRepos(st)
	gateway := &fakeGateway{}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	productID := uuid.New()
	st.products[productID] = &domain.Product{
		ID:    productID,
		Name:  "Walnut Desk",
		Price: 100,
		Stock: 5,
	}

	saleID := uuid.New()
	saleDate := now.Add(-time.Hour)
	st.sales[saleID] = &domain.Sale{
		ID:          saleID,
		UserID:      userID,
		TotalAmount: 100,
		Status:      domain.SaleStatusPending,
		SaleDate:    &saleDate,
	}

	itemID := uuid.New()
	st.saleItems[itemID] = &domain.SaleItem{
		ID:             itemID,
		SaleID:         saleID,
		ProductID:      productID,
		Quantity:       1,
		FinalUnitPrice: 100,
		Subtotal:       100,
	}

	paymentID := uuid.New()
	st.payments[paymentID] = &domain.Payment{
		ID:          paymentID,
		SaleID:      saleID,
		Amount:      100,
		Status:      domain.PaymentStatusPending,
		Type:        domain.PaymentTypeCard,
		Card:        &domain.CardDetails{Number: "4111111111111111", Brand: "VISA", ExpDate: "12/2030"},
		PaymentDate: saleDate,
	}

	entryID := uuid.New()
	st.queue[entryID] = &domain.QueuedOrder{
		ID:           entryID,
		SaleID:       saleID,
		UserID:       userID,
		QueueType:    "order_retry",
		Status:       domain.QueueStatusPending,
		MaxAttempts:  maxAttempts,
		ScheduledFor: now.Add(-time.Minute),
	}

	svc := NewRetryService(repos, gateway, metrics.NewRegistry(), 30*time.Second, zap.NewNop())
	svc.SetClock(func() time.Time { return now })

	return &retryFixture{
		svc:       svc,
		gateway:   gateway,
		st:        st,
		userID:    userID,
		saleID:    saleID,
		productID: productID,
		entryID:   entryID,
		now:       now,
	}
}

func TestRetryCompletesQueuedOrder(t *testing.T) {
	f := newRetryFixture(t, 3)

	processed, err := f.svc.ProcessDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	assert.Equal(t, domain.QueueStatusCompleted, f.st.queue[f.entryID].Status)
	assert.Equal(t, domain.SaleStatusCompleted, f.st.sales[f.saleID].Status)
	assert.Equal(t, 4, f.st.products[f.productID].Stock)

	for _, p := range f.st.payments {
		assert.Equal(t, domain.PaymentStatusCompleted, p.Status)
	}
}

func TestRetryBacksOffOnFailure(t *testing.T) {
	f := newRetryFixture(t, 3)
	f.gateway.authErr = errors.New("payment declined")

	_, err := f.svc.ProcessDue(context.Background(), 10)
	require.NoError(t, err)

	entry := f.st.queue[f.entryID]
	assert.Equal(t, domain.QueueStatusPending, entry.Status)
	assert.Equal(t, 1, entry.Attempts)
	assert.Equal(t, f.now.Add(30*time.Second), entry.ScheduledFor)
	require.NotNil(t, entry.LastError)

	// not due yet: nothing claimed
	processed, err := f.svc.ProcessDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestRetryBackoffDoubles(t *testing.T) {
	f := newRetryFixture(t, 5)
	f.gateway.authErr = errors.New("payment declined")
	ctx := context.Background()

	_, err := f.svc.ProcessDue(ctx, 10)
	require.NoError(t, err)
	firstDelay := f.st.queue[f.entryID].ScheduledFor.Sub(f.now)

	f.st.queue[f.entryID].ScheduledFor = f.now.Add(-time.Second)
	_, err = f.svc.ProcessDue(ctx, 10)
	require.NoError(t, err)
	secondDelay := f.st.queue[f.entryID].ScheduledFor.Sub(f.now)

	assert.Equal(t, 2*firstDelay, secondDelay)
}

func TestRetryFailsPermanentlyAfterMaxAttempts(t *testing.T) {
	f := newRetryFixture(t, 1)
	f.gateway.authErr = errors.New("payment declined")

	_, err := f.svc.ProcessDue(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, domain.QueueStatusFailed, f.st.queue[f.entryID].Status)
	require.Len(t, f.st.failedLogs, 1)
	assert.Equal(t, f.userID, f.st.failedLogs[0].UserID)
	assert.Equal(t, "payment declined", f.st.failedLogs[0].Reason)

	// the sale reverts to a cart so the items are not lost
	assert.Equal(t, domain.SaleStatusCart, f.st.sales[f.saleID].Status)
	assert.Equal(t, 5, f.st.products[f.productID].Stock)
}

func TestRetryStockConflictReschedules(t *testing.T) {
	f := newRetryFixture(t, 3)
	f.st.products[f.productID].Stock = 0

	_, err := f.svc.ProcessDue(context.Background(), 10)
	require.NoError(t, err)

	entry := f.st.queue[f.entryID]
	assert.Equal(t, domain.QueueStatusPending, entry.Status)
	require.NotNil(t, entry.LastError)
	assert.Contains(t, *entry.LastError, "stock")
}
