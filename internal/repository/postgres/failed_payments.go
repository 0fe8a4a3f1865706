package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/domain"
)

type failedPaymentLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFailedPaymentLogRepository creates a new failed payment log repository
func NewFailedPaymentLogRepository(db *sql.DB, logger *zap.Logger) *failedPaymentLogRepository {
	return &failedPaymentLogRepository{db: db, logger: logger}
}

func (r *failedPaymentLogRepository) Create(ctx context.Context, log *domain.FailedPaymentLog) error {
	query := `
		INSERT INTO failed_payment_logs (id, user_id, attempt_date, amount, payment_method, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.AttemptDate.IsZero() {
		log.AttemptDate = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.UserID,
		log.AttemptDate,
		log.Amount,
		log.PaymentMethod,
		log.Reason,
	)
	if err != nil {
		r.logger.Error("Failed to create failed payment log", zap.Error(err))
		return err
	}

	return nil
}
