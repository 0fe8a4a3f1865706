package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/metrics"
	"github.com/jafarshop/retailapi/internal/payment"
	"github.com/jafarshop/retailapi/internal/repository"
	"github.com/jafarshop/retailapi/internal/throttle"
	"github.com/jafarshop/retailapi/pkg/errors"
)

// PaymentGateway is the slice of the payment simulator used by services
type PaymentGateway interface {
	Authorize(ctx context.Context, p *domain.Payment) (*payment.AuthorizationResult, error)
	Refund(ctx context.Context, original *domain.Payment, amount float64) (*payment.RefundResult, error)
}

type checkoutService struct {
	repos       *repository.Repositories
	gateway     PaymentGateway
	limiter     throttle.Limiter
	metrics     *metrics.Registry
	maxAttempts int
	logger      *zap.Logger

	now func() time.Time
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	repos *repository.Repositories,
	gateway PaymentGateway,
	limiter throttle.Limiter,
	registry *metrics.Registry,
	queueMaxAttempts int,
	logger *zap.Logger,
) *checkoutService {
	return &checkoutService{
		repos:       repos,
		gateway:     gateway,
		limiter:     limiter,
		metrics:     registry,
		maxAttempts: queueMaxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// SetClock overrides the service clock. Tests only.
func (s *checkoutService) SetClock(now func() time.Time) {
	s.now = now
}

// Checkout promotes the user's cart to a sale. Product rows are locked for
// the duration of the transaction; on a declined authorization the order is
// queued for deferred retry instead of failing outright.
func (s *checkoutService) Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*CheckoutResult, error) {
	start := s.now()
	s.metrics.Incr("orders_submitted")

	result, err := s.checkout(ctx, userID, req)
	s.metrics.Observe("checkout_duration", s.now().Sub(start))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *checkoutService) checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*CheckoutResult, error) {
	cart, err := s.repos.Sale.GetCartByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cartItems, err := s.repos.SaleItem.ListBySale(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	if len(cartItems) == 0 {
		return nil, &errors.ErrValidation{Message: "cart is empty"}
	}

	allowed, err := s.limiter.Allow(ctx, "checkout:"+userID.String())
	if err != nil {
		s.logger.Warn("Throttle check failed, allowing request", zap.Error(err))
	} else if !allowed {
		s.metrics.Incr("orders_throttled")
		return nil, &errors.ErrThrottled{}
	}

	tx, err := s.repos.Checkout.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	productIDs := make([]uuid.UUID, 0, len(cartItems))
	for _, item := range cartItems {
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := tx.LockProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	// snapshot final pricing from the locked product rows
	finalItems := make([]*domain.SaleItem, 0, len(cartItems))
	var total float64
	for _, cartItem := range cartItems {
		product, ok := products[cartItem.ProductID]
		if !ok {
			return nil, &errors.ErrNotFound{Resource: "product", ID: cartItem.ProductID.String()}
		}
		if product.Stock < cartItem.Quantity {
			return nil, &errors.ErrStockConflict{ProductName: product.Name, Available: product.Stock}
		}
		snapshot := product.SnapshotSaleItem(cartItem.Quantity)
		snapshot.SaleID = cart.ID
		finalItems = append(finalItems, &snapshot)
		total += snapshot.Subtotal + snapshot.ShippingFeeApplied + snapshot.ImportDutyApplied
	}

	pay, err := s.buildPayment(cart.ID, total, req)
	if err != nil {
		return nil, err
	}

	// payment preconditions fail before anything is mutated
	if ok, reason := pay.Authorized(s.now()); !ok {
		return nil, &errors.ErrValidation{Message: reason}
	}

	now := s.now()
	if err := tx.MarkSalePending(ctx, cart.ID, total, now); err != nil {
		return nil, err
	}
	if err := tx.ReplaceSaleItems(ctx, cart.ID, finalItems); err != nil {
		return nil, err
	}
	if err := tx.InsertPayment(ctx, pay); err != nil {
		return nil, err
	}

	if _, authErr := s.gateway.Authorize(ctx, pay); authErr != nil {
		return s.queueForRetry(ctx, tx, cart, pay, req.Priority, total, authErr)
	}

	// re-check stock immediately before applying decrements
	for _, item := range finalItems {
		product := products[item.ProductID]
		if product.Stock < item.Quantity {
			return nil, &errors.ErrStockConflict{ProductName: product.Name, Available: product.Stock}
		}
	}

	for _, item := range finalItems {
		if err := tx.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}
	if err := tx.UpdatePaymentStatus(ctx, pay.ID, domain.PaymentStatusCompleted); err != nil {
		return nil, err
	}
	if err := tx.UpdateSaleStatus(ctx, cart.ID, domain.SaleStatusCompleted); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit checkout: %w", err)
	}

	s.metrics.Incr("orders_accepted")
	s.logger.Info("Checkout completed",
		zap.String("sale_id", cart.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Float64("total", total))

	cart.Status = domain.SaleStatusCompleted
	cart.TotalAmount = total
	pay.Status = domain.PaymentStatusCompleted
	return &CheckoutResult{Sale: cart, Payment: pay, Message: "order completed"}, nil
}

// queueForRetry keeps the sale pending and defers the order to the retry
// queue. Only when enqueueing itself fails does the sale fail hard and
// revert to a cart so the items are not lost.
func (s *checkoutService) queueForRetry(
	ctx context.Context,
	tx repository.CheckoutTx,
	cart *domain.Sale,
	pay *domain.Payment,
	priority int,
	total float64,
	authErr error,
) (*CheckoutResult, error) {
	entry := &domain.QueuedOrder{
		SaleID:      cart.ID,
		UserID:      cart.UserID,
		QueueType:   "order_retry",
		Priority:    priority,
		Status:      domain.QueueStatusPending,
		MaxAttempts: s.maxAttempts,
	}

	enqueueErr := tx.InsertQueuedOrder(ctx, entry)
	if enqueueErr == nil {
		if enqueueErr = tx.Commit(); enqueueErr == nil {
			s.metrics.Incr("orders_queued")
			s.logger.Info("Order queued for retry",
				zap.String("sale_id", cart.ID.String()),
				zap.Error(authErr))
			cart.Status = domain.SaleStatusPending
			cart.TotalAmount = total
			return &CheckoutResult{
				Sale:    cart,
				Payment: pay,
				Queued:  true,
				Message: fmt.Sprintf("payment not completed (%s); order queued for retry", authErr),
			}, nil
		}
	}

	// hard failure path: the queue itself is unavailable
	tx.Rollback()
	s.metrics.Incr("orders_failed")
	s.logger.Error("Failed to queue declined order",
		zap.String("sale_id", cart.ID.String()),
		zap.NamedError("auth_error", authErr),
		zap.Error(enqueueErr))

	if err := s.repos.Sale.UpdateStatus(ctx, cart.ID, domain.SaleStatusFailed); err != nil {
		s.logger.Error("Failed to mark sale failed", zap.Error(err))
	}
	s.repos.FailedPaymentLog.Create(ctx, &domain.FailedPaymentLog{
		UserID:        cart.UserID,
		AttemptDate:   s.now(),
		Amount:        total,
		PaymentMethod: string(pay.Type),
		Reason:        authErr.Error(),
	})
	if err := s.repos.Sale.UpdateStatus(ctx, cart.ID, domain.SaleStatusCart); err != nil {
		s.logger.Error("Failed to revert sale to cart", zap.Error(err))
	}

	return nil, fmt.Errorf("payment failed and order could not be queued: %w", authErr)
}

func (s *checkoutService) buildPayment(saleID uuid.UUID, total float64, req CheckoutRequest) (*domain.Payment, error) {
	pay := &domain.Payment{
		ID:     uuid.New(),
		SaleID: saleID,
		Amount: total,
		Status: domain.PaymentStatusPending,
		Type:   domain.PaymentType(req.PaymentMethod),
	}

	switch pay.Type {
	case domain.PaymentTypeCard:
		if req.Card == nil {
			return nil, &errors.ErrValidation{Message: "card details are required for card payments"}
		}
		pay.Card = &domain.CardDetails{
			Number:  req.Card.Number,
			Brand:   req.Card.Brand,
			ExpDate: req.Card.ExpDate,
		}
	case domain.PaymentTypeCash:
		if req.CashTendered == nil || *req.CashTendered < total {
			return nil, &errors.ErrValidation{Message: "cash tendered must cover the total"}
		}
		pay.CashTendered = req.CashTendered
	default:
		return nil, &errors.ErrValidation{Message: "unsupported payment method"}
	}

	return pay, nil
}
