package service

import (
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/config"
	"github.com/jafarshop/retailapi/internal/events"
	"github.com/jafarshop/retailapi/internal/metrics"
	"github.com/jafarshop/retailapi/internal/repository"
	"github.com/jafarshop/retailapi/internal/throttle"
)

// Services aggregates all services for the API layer
type Services struct {
	Cart      *cartService
	Checkout  *checkoutService
	Returns   *returnsService
	Refund    *refundService
	Inventory *inventoryService
	Retry     *retryService
	FlashSale *flashSaleService
}

// NewServices wires the full service layer
func NewServices(
	cfg *config.Config,
	repos *repository.Repositories,
	gateway PaymentGateway,
	limiter throttle.Limiter,
	publisher events.Publisher,
	registry *metrics.Registry,
	logger *zap.Logger,
) *Services {
	inventory := NewInventoryService(repos, publisher, logger)
	return &Services{
		Cart:      NewCartService(repos, logger),
		Checkout:  NewCheckoutService(repos, gateway, limiter, registry, cfg.Queue.MaxAttempts, logger),
		Returns:   NewReturnsService(repos, publisher, registry, cfg.Returns, logger),
		Refund:    NewRefundService(repos, gateway, inventory, publisher, registry, logger),
		Inventory: inventory,
		Retry:     NewRetryService(repos, gateway, registry, cfg.Queue.RetryBackoff, logger),
		FlashSale: NewFlashSaleService(repos, logger),
	}
}
