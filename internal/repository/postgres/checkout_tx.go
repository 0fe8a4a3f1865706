package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/repository"
	"github.com/lib/pq"
)

type checkoutRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCheckoutRepository creates a new checkout transaction factory
func NewCheckoutRepository(db *sql.DB, logger *zap.Logger) *checkoutRepository {
	return &checkoutRepository{db: db, logger: logger}
}

func (r *checkoutRepository) Begin(ctx context.Context) (repository.CheckoutTx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin checkout transaction: %w", err)
	}
	return &checkoutTx{tx: tx, logger: r.logger}, nil
}

type checkoutTx struct {
	tx     *sql.Tx
	logger *zap.Logger
}

// LockProducts acquires FOR UPDATE locks on the product rows. Rows are
// locked in id order so two overlapping checkouts cannot deadlock.
func (t *checkoutTx) LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	rows, err := t.tx.QueryContext(ctx, query, pq.Array(raw))
	if err != nil {
		t.logger.Error("Failed to lock product rows", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	products := make(map[uuid.UUID]*domain.Product, len(ids))
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products[product.ID] = product
	}

	return products, rows.Err()
}

func (t *checkoutTx) MarkSalePending(ctx context.Context, saleID uuid.UUID, total float64, saleDate time.Time) error {
	query := `
		UPDATE sales
		SET status = $2, total_amount = $3, sale_date = $4, updated_at = $4
		WHERE id = $1
	`
	_, err := t.tx.ExecContext(ctx, query, saleID, domain.SaleStatusPending, total, saleDate)
	if err != nil {
		t.logger.Error("Failed to mark sale pending", zap.Error(err))
	}
	return err
}

func (t *checkoutTx) UpdateSaleStatus(ctx context.Context, saleID uuid.UUID, status domain.SaleStatus) error {
	query := `UPDATE sales SET status = $2, updated_at = $3 WHERE id = $1`
	_, err := t.tx.ExecContext(ctx, query, saleID, status, time.Now())
	if err != nil {
		t.logger.Error("Failed to update sale status in checkout", zap.Error(err))
	}
	return err
}

func (t *checkoutTx) InsertPayment(ctx context.Context, payment *domain.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now()
	}

	query := `
		INSERT INTO payments (
			id, sale_id, amount, status, payment_type, card_number, card_brand,
			card_exp_date, cash_tendered, payment_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := t.tx.ExecContext(ctx, query, paymentArgs(payment)...)
	if err != nil {
		t.logger.Error("Failed to insert payment in checkout", zap.Error(err))
	}
	return err
}

func (t *checkoutTx) UpdatePaymentStatus(ctx context.Context, paymentID uuid.UUID, status domain.PaymentStatus) error {
	query := `UPDATE payments SET status = $2 WHERE id = $1`
	_, err := t.tx.ExecContext(ctx, query, paymentID, status)
	if err != nil {
		t.logger.Error("Failed to update payment status in checkout", zap.Error(err))
	}
	return err
}

// ReplaceSaleItems swaps the provisional cart lines for the final snapshot
// lines captured at authorization time.
func (t *checkoutTx) ReplaceSaleItems(ctx context.Context, saleID uuid.UUID, items []*domain.SaleItem) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID); err != nil {
		t.logger.Error("Failed to clear provisional sale items", zap.Error(err))
		return err
	}

	query := `
		INSERT INTO sale_items (
			id, sale_id, product_id, quantity, original_unit_price, final_unit_price,
			discount_applied, shipping_fee_applied, import_duty_applied, subtotal, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	now := time.Now()
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.SaleID = saleID
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		if _, err := t.tx.ExecContext(ctx, query,
			item.ID,
			item.SaleID,
			item.ProductID,
			item.Quantity,
			item.OriginalUnitPrice,
			item.FinalUnitPrice,
			item.DiscountApplied,
			item.ShippingFeeApplied,
			item.ImportDutyApplied,
			item.Subtotal,
			item.CreatedAt,
		); err != nil {
			t.logger.Error("Failed to insert snapshot sale item", zap.Error(err))
			return err
		}
	}

	return nil
}

func (t *checkoutTx) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	query := `UPDATE products SET stock = stock - $2, updated_at = $3 WHERE id = $1 AND stock >= $2`

	result, err := t.tx.ExecContext(ctx, query, productID, quantity, time.Now())
	if err != nil {
		t.logger.Error("Failed to decrement stock", zap.Error(err))
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("insufficient stock for product %s", productID)
	}

	return nil
}

func (t *checkoutTx) InsertQueuedOrder(ctx context.Context, entry *domain.QueuedOrder) error {
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

	query := `
		INSERT INTO order_queue (
			id, sale_id, user_id, queue_type, priority, status, attempts,
			max_attempts, scheduled_for, last_error, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := t.tx.ExecContext(ctx, query,
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
		t.logger.Error("Failed to insert queued order in checkout", zap.Error(err))
	}
	return err
}

func (t *checkoutTx) Commit() error {
	return t.tx.Commit()
}

func (t *checkoutTx) Rollback() error {
	return t.tx.Rollback()
}
