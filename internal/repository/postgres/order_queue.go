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

type orderQueueRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderQueueRepository creates a new order queue repository
func NewOrderQueueRepository(db *sql.DB, logger *zap.Logger) *orderQueueRepository {
	return &orderQueueRepository{db: db, logger: logger}
}

const queueColumns = `id, sale_id, user_id, queue_type, priority, status, attempts,
	max_attempts, scheduled_for, last_error, created_at, updated_at`

func (r *orderQueueRepository) Enqueue(ctx context.Context, entry *domain.QueuedOrder) error {
	query := `
		INSERT INTO order_queue (
			id, sale_id, user_id, queue_type, priority, status, attempts,
			max_attempts, scheduled_for, last_error, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	now := time.Now()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	if entry.ScheduledFor.IsZero() {
		entry.ScheduledFor = now
	}

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.SaleID,
		entry.UserID,
		entry.QueueType,
		entry.Priority,
		entry.Status,
		entry.Attempts,
		entry.MaxAttempts,
		entry.ScheduledFor,
		entry.LastError,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to enqueue order", zap.Error(err))
		return err
	}

	return nil
}

// ClaimDue marks due pending entries as processing and returns them.
// SKIP LOCKED keeps concurrent workers from claiming the same rows.
func (r *orderQueueRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.QueuedOrder, error) {
	query := `
		UPDATE order_queue
		SET status = $1, updated_at = $2
		WHERE id IN (
			SELECT id FROM order_queue
			WHERE status = $3 AND scheduled_for <= $2
			ORDER BY priority DESC, scheduled_for
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + queueColumns

	rows, err := r.db.QueryContext(ctx, query, domain.QueueStatusProcessing, now, domain.QueueStatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to claim due queue entries", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.QueuedOrder
	for rows.Next() {
		entry, err := scanQueuedOrder(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (r *orderQueueRepository) Update(ctx context.Context, entry *domain.QueuedOrder) error {
	query := `
		UPDATE order_queue
		SET status = $2, attempts = $3, scheduled_for = $4, last_error = $5, updated_at = $6
		WHERE id = $1
	`

	entry.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Status,
		entry.Attempts,
		entry.ScheduledFor,
		entry.LastError,
		entry.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update queue entry", zap.Error(err))
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrNotFound{Resource: "queue entry", ID: entry.ID.String()}
	}

	return nil
}

func (r *orderQueueRepository) ListByStatus(ctx context.Context, status domain.QueueStatus, limit, offset int) ([]*domain.QueuedOrder, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM order_queue
		WHERE status = $1
		ORDER BY priority DESC, scheduled_for
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list queue entries", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.QueuedOrder
	for rows.Next() {
		entry, err := scanQueuedOrder(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func scanQueuedOrder(row rowScanner) (*domain.QueuedOrder, error) {
	var entry domain.QueuedOrder
	var lastError sql.NullString

	err := row.Scan(
		&entry.ID,
		&entry.SaleID,
		&entry.UserID,
		&entry.QueueType,
		&entry.Priority,
		&entry.Status,
		&entry.Attempts,
		&entry.MaxAttempts,
		&entry.ScheduledFor,
		&lastError,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastError.Valid {
		entry.LastError = &lastError.String
	}

	return &entry, nil
}
