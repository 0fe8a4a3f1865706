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

type saleItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSaleItemRepository creates a new sale item repository
func NewSaleItemRepository(db *sql.DB, logger *zap.Logger) *saleItemRepository {
	return &saleItemRepository{db: db, logger: logger}
}

const saleItemColumns = `id, sale_id, product_id, quantity, original_unit_price, final_unit_price,
	discount_applied, shipping_fee_applied, import_duty_applied, subtotal, created_at`

func (r *saleItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SaleItem, error) {
	query := `SELECT ` + saleItemColumns + ` FROM sale_items WHERE id = $1`

	item, err := scanSaleItem(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "sale item", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get sale item", zap.Error(err), zap.String("sale_item_id", id.String()))
		return nil, err
	}
	return item, nil
}

func (r *saleItemRepository) ListBySale(ctx context.Context, saleID uuid.UUID) ([]*domain.SaleItem, error) {
	query := `SELECT ` + saleItemColumns + ` FROM sale_items WHERE sale_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, saleID)
	if err != nil {
		r.logger.Error("Failed to list sale items", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var items []*domain.SaleItem
	for rows.Next() {
		item, err := scanSaleItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *saleItemRepository) UpsertCartItem(ctx context.Context, item *domain.SaleItem) error {
	query := `
		INSERT INTO sale_items (
			id, sale_id, product_id, quantity, original_unit_price, final_unit_price,
			discount_applied, shipping_fee_applied, import_duty_applied, subtotal, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (sale_id, product_id) DO UPDATE SET
			quantity = sale_items.quantity + EXCLUDED.quantity,
			original_unit_price = EXCLUDED.original_unit_price,
			final_unit_price = EXCLUDED.final_unit_price,
			discount_applied = EXCLUDED.discount_applied,
			shipping_fee_applied = EXCLUDED.shipping_fee_applied,
			import_duty_applied = EXCLUDED.import_duty_applied,
			subtotal = EXCLUDED.subtotal
	`

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
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
	)
	if err != nil {
		r.logger.Error("Failed to upsert cart item", zap.Error(err))
		return err
	}

	return nil
}

func (r *saleItemRepository) SetQuantity(ctx context.Context, saleID, productID uuid.UUID, item *domain.SaleItem) error {
	if item == nil || item.Quantity <= 0 {
		query := `DELETE FROM sale_items WHERE sale_id = $1 AND product_id = $2`
		_, err := r.db.ExecContext(ctx, query, saleID, productID)
		if err != nil {
			r.logger.Error("Failed to delete cart item", zap.Error(err))
		}
		return err
	}

	query := `
		UPDATE sale_items
		SET quantity = $3, original_unit_price = $4, final_unit_price = $5, discount_applied = $6,
			shipping_fee_applied = $7, import_duty_applied = $8, subtotal = $9
		WHERE sale_id = $1 AND product_id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		saleID,
		productID,
		item.Quantity,
		item.OriginalUnitPrice,
		item.FinalUnitPrice,
		item.DiscountApplied,
		item.ShippingFeeApplied,
		item.ImportDutyApplied,
		item.Subtotal,
	)
	if err != nil {
		r.logger.Error("Failed to set cart item quantity", zap.Error(err))
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrNotFound{Resource: "cart item", ID: productID.String()}
	}

	return nil
}

func (r *saleItemRepository) DeleteBySale(ctx context.Context, saleID uuid.UUID) error {
	query := `DELETE FROM sale_items WHERE sale_id = $1`

	_, err := r.db.ExecContext(ctx, query, saleID)
	if err != nil {
		r.logger.Error("Failed to delete sale items", zap.Error(err))
		return err
	}

	return nil
}

func scanSaleItem(row rowScanner) (*domain.SaleItem, error) {
	var item domain.SaleItem
	err := row.Scan(
		&item.ID,
		&item.SaleID,
		&item.ProductID,
		&item.Quantity,
		&item.OriginalUnitPrice,
		&item.FinalUnitPrice,
		&item.DiscountApplied,
		&item.ShippingFeeApplied,
		&item.ImportDutyApplied,
		&item.Subtotal,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
