package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/pkg/errors"
)

type flashSaleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFlashSaleRepository creates a new flash sale repository
func NewFlashSaleRepository(db *sql.DB, logger *zap.Logger) *flashSaleRepository {
	return &flashSaleRepository{db: db, logger: logger}
}

const flashSaleColumns = `id, product_id, title, start_time, end_time, discount_percent,
	max_quantity, reserved_quantity, status, created_at`

func (r *flashSaleRepository) Create(ctx context.Context, sale *domain.FlashSale) error {
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO flash_sales (
			id, product_id, title, start_time, end_time, discount_percent,
			max_quantity, reserved_quantity, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		sale.ID,
		sale.ProductID,
		sale.Title,
		sale.StartTime,
		sale.EndTime,
		sale.DiscountPercent,
		sale.MaxQuantity,
		sale.ReservedQuantity,
		sale.Status,
		sale.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create flash sale", zap.Error(err))
		return err
	}

	return nil
}

func (r *flashSaleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.FlashSale, error) {
	query := `SELECT ` + flashSaleColumns + ` FROM flash_sales WHERE id = $1`

	sale, err := scanFlashSale(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "flash sale", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get flash sale", zap.Error(err))
		return nil, err
	}

	return sale, nil
}

func (r *flashSaleRepository) ListActive(ctx context.Context, now time.Time) ([]*domain.FlashSale, error) {
	query := `
		SELECT ` + flashSaleColumns + `
		FROM flash_sales
		WHERE status = $1 AND start_time <= $2 AND end_time > $2
		ORDER BY end_time
	`

	rows, err := r.db.QueryContext(ctx, query, domain.FlashSaleActive, now)
	if err != nil {
		r.logger.Error("Failed to list active flash sales", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var sales []*domain.FlashSale
	for rows.Next() {
		sale, err := scanFlashSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}

	return sales, rows.Err()
}

func (r *flashSaleRepository) HasOverlappingActive(ctx context.Context, productID uuid.UUID, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM flash_sales
			WHERE product_id = $1 AND status = $2
			  AND start_time < $4 AND end_time > $3
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, productID, domain.FlashSaleActive, start, end).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check flash sale overlap", zap.Error(err))
		return false, err
	}

	return exists, nil
}

func (r *flashSaleRepository) Reserve(ctx context.Context, flashSaleID, userID uuid.UUID, quantity int, now time.Time) (*domain.FlashSaleReservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + flashSaleColumns + ` FROM flash_sales WHERE id = $1 FOR UPDATE`

	sale, err := scanFlashSale(tx.QueryRowContext(ctx, query, flashSaleID))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "flash sale", ID: flashSaleID.String()}
	}
	if err != nil {
		r.logger.Error("Failed to lock flash sale", zap.Error(err))
		return nil, err
	}

	if !sale.IsActiveAt(now) {
		return nil, &errors.ErrValidation{Message: "flash sale is not accepting reservations"}
	}
	if quantity > sale.AvailableQuantity() {
		return nil, &errors.ErrConflict{Message: fmt.Sprintf("only %d units left in flash sale", sale.AvailableQuantity())}
	}

	var existing bool
	dupQuery := `
		SELECT EXISTS (
			SELECT 1 FROM flash_sale_reservations
			WHERE flash_sale_id = $1 AND user_id = $2 AND status = 'reserved'
		)
	`
	if err := tx.QueryRowContext(ctx, dupQuery, flashSaleID, userID).Scan(&existing); err != nil {
		r.logger.Error("Failed to check existing reservation", zap.Error(err))
		return nil, err
	}
	if existing {
		return nil, &errors.ErrConflict{Message: "user already holds a reservation for this flash sale"}
	}

	reservation := &domain.FlashSaleReservation{
		ID:          uuid.New(),
		FlashSaleID: flashSaleID,
		UserID:      userID,
		Quantity:    quantity,
		Status:      "reserved",
		ReservedAt:  now,
	}

	insertQuery := `
		INSERT INTO flash_sale_reservations (id, flash_sale_id, user_id, quantity, status, reserved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, insertQuery,
		reservation.ID,
		reservation.FlashSaleID,
		reservation.UserID,
		reservation.Quantity,
		reservation.Status,
		reservation.ReservedAt,
	); err != nil {
		r.logger.Error("Failed to insert flash sale reservation", zap.Error(err))
		return nil, err
	}

	updateQuery := `UPDATE flash_sales SET reserved_quantity = reserved_quantity + $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateQuery, flashSaleID, quantity); err != nil {
		r.logger.Error("Failed to bump reserved quantity", zap.Error(err))
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}

	return reservation, nil
}

func scanFlashSale(row rowScanner) (*domain.FlashSale, error) {
	var sale domain.FlashSale
	err := row.Scan(
		&sale.ID,
		&sale.ProductID,
		&sale.Title,
		&sale.StartTime,
		&sale.EndTime,
		&sale.DiscountPercent,
		&sale.MaxQuantity,
		&sale.ReservedQuantity,
		&sale.Status,
		&sale.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sale, nil
}
