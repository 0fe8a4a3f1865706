package postgres

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/repository"
)

// NewRepositories creates a new set of repositories
func NewRepositories(db *sql.DB, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		User:             NewUserRepository(db, logger),
		Product:          NewProductRepository(db, logger),
		Sale:             NewSaleRepository(db, logger),
		SaleItem:         NewSaleItemRepository(db, logger),
		Payment:          NewPaymentRepository(db, logger),
		ReturnRequest:    NewReturnRequestRepository(db, logger),
		Refund:           NewRefundRepository(db, logger),
		BreakerState:     NewBreakerStateRepository(db, logger),
		OrderQueue:       NewOrderQueueRepository(db, logger),
		FailedPaymentLog: NewFailedPaymentLogRepository(db, logger),
		FlashSale:        NewFlashSaleRepository(db, logger),
		Checkout:         NewCheckoutRepository(db, logger),
	}
}
