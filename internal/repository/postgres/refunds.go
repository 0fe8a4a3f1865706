package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/pkg/errors"
)

type refundRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRefundRepository creates a new refund repository
func NewRefundRepository(db *sql.DB, logger *zap.Logger) *refundRepository {
	return &refundRepository{db: db, logger: logger}
}

const refundColumns = `id, return_request_id, payment_id, amount, method, status,
	failure_reason, external_reference, created_at, processed_at`

func (r *refundRepository) Create(ctx context.Context, refund *domain.Refund) error {
	query := `
		INSERT INTO refunds (
			id, return_request_id, payment_id, amount, method, status,
			failure_reason, external_reference, created_at, processed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if refund.ID == uuid.Nil {
		refund.ID = uuid.New()
	}
	if refund.CreatedAt.IsZero() {
		refund.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		refund.ID,
		refund.ReturnRequestID,
		refund.PaymentID,
		refund.Amount,
		refund.Method,
		refund.Status,
		refund.FailureReason,
		refund.ExternalReference,
		refund.CreatedAt,
		refund.ProcessedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create refund", zap.Error(err))
		return err
	}

	return nil
}

func (r *refundRepository) GetByReturnRequest(ctx context.Context, requestID uuid.UUID) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE return_request_id = $1`

	var refund domain.Refund
	var failureReason, externalReference sql.NullString
	var processedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, requestID).Scan(
		&refund.ID,
		&refund.ReturnRequestID,
		&refund.PaymentID,
		&refund.Amount,
		&refund.Method,
		&refund.Status,
		&failureReason,
		&externalReference,
		&refund.CreatedAt,
		&processedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "refund", ID: requestID.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get refund", zap.Error(err), zap.String("return_request_id", requestID.String()))
		return nil, err
	}

	if failureReason.Valid {
		refund.FailureReason = &failureReason.String
	}
	if externalReference.Valid {
		refund.ExternalReference = &externalReference.String
	}
	if processedAt.Valid {
		refund.ProcessedAt = &processedAt.Time
	}

	return &refund, nil
}

func (r *refundRepository) Reset(ctx context.Context, id uuid.UUID, amount float64, method domain.RefundMethod) error {
	query := `
		UPDATE refunds
		SET amount = $2, method = $3, status = $4, failure_reason = NULL, processed_at = NULL
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, amount, method, domain.RefundStatusPending)
	if err != nil {
		r.logger.Error("Failed to reset refund", zap.Error(err))
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrNotFound{Resource: "refund", ID: id.String()}
	}

	return nil
}

func (r *refundRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE refunds
		SET status = $2, failure_reason = $3, processed_at = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, domain.RefundStatusFailed, reason, time.Now())
	if err != nil {
		r.logger.Error("Failed to mark refund failed", zap.Error(err))
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrNotFound{Resource: "refund", ID: id.String()}
	}

	return nil
}

// CompleteAndRestock commits the refund outcome, the REFUNDED transition and
// the stock increments as one transaction so a crash cannot leave a refunded
// request without its restock.
func (r *refundRepository) CompleteAndRestock(
	ctx context.Context,
	refundID uuid.UUID,
	reference string,
	requestID uuid.UUID,
	adjustments []domain.StockAdjustment,
) ([]domain.InventoryChange, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()

	refundQuery := `
		UPDATE refunds
		SET status = $2, external_reference = $3, failure_reason = NULL, processed_at = $4
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, refundQuery, refundID, domain.RefundStatusCompleted, reference, now); err != nil {
		r.logger.Error("Failed to complete refund", zap.Error(err))
		return nil, err
	}

	requestQuery := `UPDATE return_requests SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, requestQuery, requestID, domain.ReturnStatusRefunded, now); err != nil {
		r.logger.Error("Failed to advance return request to refunded", zap.Error(err))
		return nil, err
	}

	changes := make([]domain.InventoryChange, 0, len(adjustments))
	stockQuery := `
		UPDATE products
		SET stock = stock + $2, updated_at = $3
		WHERE id = $1
		RETURNING stock
	`
	for _, adj := range adjustments {
		var newStock int
		if err := tx.QueryRowContext(ctx, stockQuery, adj.ProductID, adj.Delta, now).Scan(&newStock); err != nil {
			r.logger.Error("Failed to restock product", zap.Error(err), zap.String("product_id", adj.ProductID.String()))
			return nil, err
		}
		changes = append(changes, domain.InventoryChange{
			ProductID: adj.ProductID,
			OldStock:  newStock - adj.Delta,
			NewStock:  newStock,
			Reason:    "return_refunded",
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return changes, nil
}
