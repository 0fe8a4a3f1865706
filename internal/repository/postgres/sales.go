package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/repository"
	"github.com/jafarshop/retailapi/pkg/errors"
)

type saleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSaleRepository creates a new sale repository
func NewSaleRepository(db *sql.DB, logger *zap.Logger) *saleRepository {
	return &saleRepository{db: db, logger: logger}
}

const saleColumns = `id, user_id, total_amount, status, sale_date, created_at, updated_at`

func (r *saleRepository) Create(ctx context.Context, sale *domain.Sale) error {
	query := `
		INSERT INTO sales (id, user_id, total_amount, status, sale_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	now := time.Now()
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	if sale.UpdatedAt.IsZero() {
		sale.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, query,
		sale.ID,
		sale.UserID,
		sale.TotalAmount,
		sale.Status,
		sale.SaleDate,
		sale.CreatedAt,
		sale.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create sale", zap.Error(err))
		return err
	}

	return nil
}

func (r *saleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE id = $1`

	sale, err := scanSale(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "sale", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get sale", zap.Error(err), zap.String("sale_id", id.String()))
		return nil, err
	}
	return sale, nil
}

func (r *saleRepository) GetCartByUser(ctx context.Context, userID uuid.UUID) (*domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE user_id = $1 AND status = $2`

	sale, err := scanSale(r.db.QueryRowContext(ctx, query, userID, domain.SaleStatusCart))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "cart", ID: userID.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get cart", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, err
	}
	return sale, nil
}

func (r *saleRepository) GetCompletedForCustomer(ctx context.Context, saleID, customerID uuid.UUID) (*domain.Sale, error) {
	query := `
		SELECT ` + saleColumns + `
		FROM sales s
		WHERE s.id = $1
			AND s.user_id = $2
			AND s.status = $3
			AND EXISTS (SELECT 1 FROM payments p WHERE p.sale_id = s.id AND p.status = $4)
			AND EXISTS (SELECT 1 FROM sale_items si WHERE si.sale_id = s.id AND si.quantity > 0)
	`

	sale, err := scanSale(r.db.QueryRowContext(ctx, query,
		saleID, customerID, domain.SaleStatusCompleted, domain.PaymentStatusCompleted))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "sale", ID: saleID.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get completed sale", zap.Error(err), zap.String("sale_id", saleID.String()))
		return nil, err
	}
	return sale, nil
}

func (r *saleRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SaleStatus) error {
	query := `UPDATE sales SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		r.logger.Error("Failed to update sale status", zap.Error(err))
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrNotFound{Resource: "sale", ID: id.String()}
	}

	return nil
}

func (r *saleRepository) UpdateTotals(ctx context.Context, id uuid.UUID, total float64) error {
	query := `UPDATE sales SET total_amount = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, total, time.Now())
	if err != nil {
		r.logger.Error("Failed to update sale totals", zap.Error(err))
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrNotFound{Resource: "sale", ID: id.String()}
	}

	return nil
}

const saleColumnsPrefixed = `s.id, s.user_id, s.total_amount, s.status, s.sale_date, s.created_at, s.updated_at`

func (r *saleRepository) ListHistoryByUser(ctx context.Context, userID uuid.UUID, filter repository.SaleHistoryFilter) ([]*domain.Sale, int, error) {
	where := []string{"s.user_id = $1", "s.status != $2"}
	args := []interface{}{userID, domain.SaleStatusCart}

	switch strings.ToLower(filter.Status) {
	case "":
	case "returned":
		where = append(where, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM return_requests rr
			WHERE rr.sale_id = s.id AND rr.status NOT IN ($%d, $%d))`, len(args)+1, len(args)+2))
		args = append(args, domain.ReturnStatusCancelled, domain.ReturnStatusRejected)
	case "refunded":
		where = append(where, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM return_requests rr
			JOIN refunds rf ON rf.return_request_id = rr.id
			WHERE rr.sale_id = s.id AND rf.status = $%d)`, len(args)+1))
		args = append(args, domain.RefundStatusCompleted)
	case "pending", "completed", "failed", "cart":
		where = append(where, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, strings.ToLower(filter.Status))
	default:
		// unknown status values are ignored
	}

	if filter.From != nil {
		where = append(where, fmt.Sprintf("s.sale_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("s.sale_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	if filter.Keyword != "" {
		nameMatch := fmt.Sprintf(`EXISTS (
			SELECT 1 FROM sale_items si
			JOIN products p ON p.id = si.product_id
			WHERE si.sale_id = s.id AND p.name ILIKE $%d)`, len(args)+1)
		args = append(args, "%"+filter.Keyword+"%")
		if id, err := uuid.Parse(filter.Keyword); err == nil {
			nameMatch = fmt.Sprintf("(s.id = $%d OR %s)", len(args)+1, nameMatch)
			args = append(args, id)
		}
		where = append(where, nameMatch)
	}

	clause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM sales s WHERE ` + clause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count order history", zap.Error(err))
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM sales s
		WHERE %s
		ORDER BY s.sale_date DESC NULLS LAST
		LIMIT $%d OFFSET $%d`, saleColumnsPrefixed, clause, len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list order history", zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	var sales []*domain.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		sales = append(sales, sale)
	}

	return sales, total, rows.Err()
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var saleDate sql.NullTime

	err := row.Scan(
		&sale.ID,
		&sale.UserID,
		&sale.TotalAmount,
		&sale.Status,
		&saleDate,
		&sale.CreatedAt,
		&sale.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if saleDate.Valid {
		sale.SaleDate = &saleDate.Time
	}

	return &sale, nil
}
