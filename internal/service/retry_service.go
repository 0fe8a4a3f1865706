package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/metrics"
	"github.com/jafarshop/retailapi/internal/repository"
	"github.com/jafarshop/retailapi/pkg/errors"
)

type retryService struct {
	repos   *repository.Repositories
	gateway PaymentGateway
	metrics *metrics.Registry
	backoff time.Duration
	logger  *zap.Logger

	now func() time.Time
}

// NewRetryService creates the deferred-order processor used by the retry
// worker
func NewRetryService(
	repos *repository.Repositories,
	gateway PaymentGateway,
	registry *metrics.Registry,
	backoff time.Duration,
	logger *zap.Logger,
) *retryService {
	if backoff <= 0 {
		backoff = 30 * time.Second
	}
	return &retryService{
		repos:   repos,
		gateway: gateway,
		metrics: registry,
		backoff: backoff,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock overrides the service clock. Tests only.
func (s *retryService) SetClock(now func() time.Time) {
	s.now = now
}

// ProcessDue claims due queue entries by priority and retries each one.
// Returns the number of entries processed.
func (s *retryService) ProcessDue(ctx context.Context, limit int) (int, error) {
	entries, err := s.repos.OrderQueue.ClaimDue(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	for _, entry := range entries {
		if err := s.processEntry(ctx, entry); err != nil {
			s.logger.Error("Failed to process queue entry",
				zap.String("entry_id", entry.ID.String()),
				zap.Error(err))
		}
	}
	return len(entries), nil
}

// processEntry re-authorizes the queued order and finalizes the sale
// through the same locked commit path as a live checkout. Failures back
// off exponentially until max attempts.
func (s *retryService) processEntry(ctx context.Context, entry *domain.QueuedOrder) error {
	entry.Attempts++

	pay, err := s.repos.Payment.GetLatestBySale(ctx, entry.SaleID)
	if err != nil {
		return s.failEntry(ctx, entry, err)
	}

	if _, authErr := s.gateway.Authorize(ctx, pay); authErr != nil {
		return s.retryOrFail(ctx, entry, pay, authErr)
	}

	if err := s.finalizeSale(ctx, entry, pay); err != nil {
		return s.retryOrFail(ctx, entry, pay, err)
	}

	entry.Status = domain.QueueStatusCompleted
	entry.LastError = nil
	if err := s.repos.OrderQueue.Update(ctx, entry); err != nil {
		return err
	}

	s.metrics.Incr("orders_accepted")
	s.logger.Info("Queued order completed",
		zap.String("sale_id", entry.SaleID.String()),
		zap.Int("attempts", entry.Attempts))
	return nil
}

func (s *retryService) finalizeSale(ctx context.Context, entry *domain.QueuedOrder, pay *domain.Payment) error {
	items, err := s.repos.SaleItem.ListBySale(ctx, entry.SaleID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("sale %s has no items", entry.SaleID)
	}

	tx, err := s.repos.Checkout.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := tx.LockProducts(ctx, ids)
	if err != nil {
		return err
	}

	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return &errors.ErrNotFound{Resource: "product", ID: item.ProductID.String()}
		}
		if product.Stock < item.Quantity {
			return &errors.ErrStockConflict{ProductName: product.Name, Available: product.Stock}
		}
	}

	for _, item := range items {
		if err := tx.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	if err := tx.UpdatePaymentStatus(ctx, pay.ID, domain.PaymentStatusCompleted); err != nil {
		return err
	}
	if err := tx.UpdateSaleStatus(ctx, entry.SaleID, domain.SaleStatusCompleted); err != nil {
		return err
	}
	return tx.Commit()
}

// retryOrFail reschedules the entry with exponential backoff, or fails it
// for good once max attempts are exhausted
func (s *retryService) retryOrFail(ctx context.Context, entry *domain.QueuedOrder, pay *domain.Payment, cause error) error {
	reason := cause.Error()
	entry.LastError = &reason

	if entry.Attempts < entry.MaxAttempts {
		delay := s.backoff * time.Duration(1<<(entry.Attempts-1))
		entry.Status = domain.QueueStatusPending
		entry.ScheduledFor = s.now().Add(delay)
		s.logger.Warn("Queued order retry failed, rescheduling",
			zap.String("sale_id", entry.SaleID.String()),
			zap.Int("attempts", entry.Attempts),
			zap.Duration("next_in", delay),
			zap.Error(cause))
		return s.repos.OrderQueue.Update(ctx, entry)
	}

	entry.Status = domain.QueueStatusFailed
	if err := s.repos.OrderQueue.Update(ctx, entry); err != nil {
		return err
	}

	s.metrics.Incr("orders_failed")
	s.repos.FailedPaymentLog.Create(ctx, &domain.FailedPaymentLog{
		UserID:        entry.UserID,
		AttemptDate:   s.now(),
		Amount:        pay.Amount,
		PaymentMethod: string(pay.Type),
		Reason:        reason,
	})

	// the items go back to being a cart so the customer does not lose them
	if err := s.repos.Sale.UpdateStatus(ctx, entry.SaleID, domain.SaleStatusCart); err != nil {
		s.logger.Error("Failed to revert sale to cart", zap.Error(err))
	}

	s.logger.Error("Queued order failed permanently",
		zap.String("sale_id", entry.SaleID.String()),
		zap.Int("attempts", entry.Attempts),
		zap.Error(cause))
	return nil
}

func (s *retryService) failEntry(ctx context.Context, entry *domain.QueuedOrder, cause error) error {
	reason := cause.Error()
	entry.Status = domain.QueueStatusFailed
	entry.LastError = &reason
	return s.repos.OrderQueue.Update(ctx, entry)
}

// ListQueue returns queue entries by status for the admin surface
func (s *retryService) ListQueue(ctx context.Context, status domain.QueueStatus, limit, offset int) ([]*domain.QueuedOrder, error) {
	return s.repos.OrderQueue.ListByStatus(ctx, status, limit, offset)
}
