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

type paymentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sql.DB, logger *zap.Logger) *paymentRepository {
	return &paymentRepository{db: db, logger: logger}
}

const paymentColumns = `id, sale_id, amount, status, payment_type, card_number, card_brand,
	card_exp_date, cash_tendered, payment_date`

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
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

	_, err := r.db.ExecContext(ctx, query, paymentArgs(payment)...)
	if err != nil {
		r.logger.Error("Failed to create payment", zap.Error(err))
		return err
	}

	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "payment", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get payment", zap.Error(err), zap.String("payment_id", id.String()))
		return nil, err
	}
	return payment, nil
}

func (r *paymentRepository) GetLatestBySale(ctx context.Context, saleID uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE sale_id = $1 ORDER BY payment_date DESC LIMIT 1`

	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, saleID))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "payment", ID: saleID.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get latest payment", zap.Error(err), zap.String("sale_id", saleID.String()))
		return nil, err
	}
	return payment, nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	query := `UPDATE payments SET status = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		r.logger.Error("Failed to update payment status", zap.Error(err))
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrNotFound{Resource: "payment", ID: id.String()}
	}

	return nil
}

func paymentArgs(payment *domain.Payment) []interface{} {
	var cardNumber, cardBrand, cardExpDate *string
	if payment.Card != nil {
		cardNumber = &payment.Card.Number
		cardBrand = &payment.Card.Brand
		cardExpDate = &payment.Card.ExpDate
	}
	return []interface{}{
		payment.ID,
		payment.SaleID,
		payment.Amount,
		payment.Status,
		payment.Type,
		cardNumber,
		cardBrand,
		cardExpDate,
		payment.CashTendered,
		payment.PaymentDate,
	}
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var payment domain.Payment
	var cardNumber, cardBrand, cardExpDate sql.NullString
	var cashTendered sql.NullFloat64

	err := row.Scan(
		&payment.ID,
		&payment.SaleID,
		&payment.Amount,
		&payment.Status,
		&payment.Type,
		&cardNumber,
		&cardBrand,
		&cardExpDate,
		&cashTendered,
		&payment.PaymentDate,
	)
	if err != nil {
		return nil, err
	}

	if payment.Type == domain.PaymentTypeCard && cardNumber.Valid {
		payment.Card = &domain.CardDetails{
			Number:  cardNumber.String,
			Brand:   cardBrand.String,
			ExpDate: cardExpDate.String,
		}
	}
	if cashTendered.Valid {
		payment.CashTendered = &cashTendered.Float64
	}

	return &payment, nil
}
