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

type returnRequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReturnRequestRepository creates a new return request repository
func NewReturnRequestRepository(db *sql.DB, logger *zap.Logger) *returnRequestRepository {
	return &returnRequestRepository{db: db, logger: logger}
}

const returnRequestColumns = `id, sale_id, customer_id, status, reason, details, rma_number,
	decision_notes, policy_window_days, created_at, updated_at`

func (r *returnRequestRepository) Create(
	ctx context.Context,
	request *domain.ReturnRequest,
	items []*domain.ReturnItem,
	photos []*domain.ReturnPhoto,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now

	query := `
		INSERT INTO return_requests (
			id, sale_id, customer_id, status, reason, details, rma_number,
			decision_notes, policy_window_days, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.ExecContext(ctx, query,
		request.ID,
		request.SaleID,
		request.CustomerID,
		request.Status,
		request.Reason,
		request.Details,
		request.RMANumber,
		request.DecisionNotes,
		request.PolicyWindowDays,
		request.CreatedAt,
		request.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create return request", zap.Error(err))
		return err
	}

	itemQuery := `
		INSERT INTO return_items (id, return_request_id, sale_item_id, quantity, condition_report, restocking_fee)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.ReturnRequestID = request.ID
		if _, err := tx.ExecContext(ctx, itemQuery,
			item.ID, item.ReturnRequestID, item.SaleItemID, item.Quantity,
			item.ConditionReport, item.RestockingFee,
		); err != nil {
			r.logger.Error("Failed to create return item", zap.Error(err))
			return err
		}
	}

	photoQuery := `
		INSERT INTO return_photos (id, return_request_id, file_path, uploaded_at)
		VALUES ($1, $2, $3, $4)
	`
	for _, photo := range photos {
		if photo.ID == uuid.Nil {
			photo.ID = uuid.New()
		}
		photo.ReturnRequestID = request.ID
		if photo.UploadedAt.IsZero() {
			photo.UploadedAt = now
		}
		if _, err := tx.ExecContext(ctx, photoQuery,
			photo.ID, photo.ReturnRequestID, photo.FilePath, photo.UploadedAt,
		); err != nil {
			r.logger.Error("Failed to create return photo", zap.Error(err))
			return err
		}
	}

	return tx.Commit()
}

func (r *returnRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReturnRequest, error) {
	query := `SELECT ` + returnRequestColumns + ` FROM return_requests WHERE id = $1`

	request, err := scanReturnRequest(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "return request", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get return request", zap.Error(err), zap.String("return_request_id", id.String()))
		return nil, err
	}
	return request, nil
}

func (r *returnRequestRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.ReturnRequestStatus,
	rmaNumber, decisionNotes *string,
) error {
	query := `
		UPDATE return_requests
		SET status = $2,
			rma_number = COALESCE($3, rma_number),
			decision_notes = COALESCE($4, decision_notes),
			updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, rmaNumber, decisionNotes, time.Now())
	if err != nil {
		r.logger.Error("Failed to update return request status", zap.Error(err))
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrNotFound{Resource: "return request", ID: id.String()}
	}

	return nil
}

func (r *returnRequestRepository) ListItems(ctx context.Context, requestID uuid.UUID) ([]*domain.ReturnItem, error) {
	query := `
		SELECT id, return_request_id, sale_item_id, quantity, condition_report, restocking_fee
		FROM return_items
		WHERE return_request_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to list return items", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var items []*domain.ReturnItem
	for rows.Next() {
		var item domain.ReturnItem
		var conditionReport sql.NullString
		if err := rows.Scan(
			&item.ID, &item.ReturnRequestID, &item.SaleItemID, &item.Quantity,
			&conditionReport, &item.RestockingFee,
		); err != nil {
			return nil, err
		}
		if conditionReport.Valid {
			item.ConditionReport = &conditionReport.String
		}
		items = append(items, &item)
	}

	return items, rows.Err()
}

func (r *returnRequestRepository) ActiveReturnedQuantity(ctx context.Context, saleItemID uuid.UUID) (int, error) {
	query := `
		SELECT COALESCE(SUM(ri.quantity), 0)
		FROM return_items ri
		JOIN return_requests rr ON rr.id = ri.return_request_id
		WHERE ri.sale_item_id = $1 AND rr.status NOT IN ($2, $3)
	`

	var total int
	err := r.db.QueryRowContext(ctx, query, saleItemID,
		domain.ReturnStatusRejected, domain.ReturnStatusCancelled).Scan(&total)
	if err != nil {
		r.logger.Error("Failed to sum active returned quantity", zap.Error(err))
		return 0, err
	}
	return total, nil
}

func (r *returnRequestRepository) GetShipment(ctx context.Context, requestID uuid.UUID) (*domain.ReturnShipment, error) {
	query := `
		SELECT id, return_request_id, carrier, tracking_number, shipped_at, received_at, notes
		FROM return_shipments
		WHERE return_request_id = $1
	`

	var shipment domain.ReturnShipment
	var shippedAt, receivedAt sql.NullTime
	var notes sql.NullString
	err := r.db.QueryRowContext(ctx, query, requestID).Scan(
		&shipment.ID, &shipment.ReturnRequestID, &shipment.Carrier, &shipment.TrackingNumber,
		&shippedAt, &receivedAt, &notes,
	)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "return shipment", ID: requestID.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get return shipment", zap.Error(err))
		return nil, err
	}

	if shippedAt.Valid {
		shipment.ShippedAt = &shippedAt.Time
	}
	if receivedAt.Valid {
		shipment.ReceivedAt = &receivedAt.Time
	}
	if notes.Valid {
		shipment.Notes = &notes.String
	}

	return &shipment, nil
}

func (r *returnRequestRepository) UpsertShipment(ctx context.Context, shipment *domain.ReturnShipment) error {
	if shipment.ID == uuid.Nil {
		shipment.ID = uuid.New()
	}

	query := `
		INSERT INTO return_shipments (id, return_request_id, carrier, tracking_number, shipped_at, received_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (return_request_id) DO UPDATE SET
			carrier = EXCLUDED.carrier,
			tracking_number = EXCLUDED.tracking_number,
			shipped_at = EXCLUDED.shipped_at,
			received_at = EXCLUDED.received_at,
			notes = EXCLUDED.notes
	`

	_, err := r.db.ExecContext(ctx, query,
		shipment.ID, shipment.ReturnRequestID, shipment.Carrier, shipment.TrackingNumber,
		shipment.ShippedAt, shipment.ReceivedAt, shipment.Notes,
	)
	if err != nil {
		r.logger.Error("Failed to upsert return shipment", zap.Error(err))
		return err
	}

	return nil
}

func (r *returnRequestRepository) GetInspection(ctx context.Context, requestID uuid.UUID) (*domain.Inspection, error) {
	query := `
		SELECT id, return_request_id, inspected_by, inspected_at, result, notes
		FROM inspections
		WHERE return_request_id = $1
	`

	var inspection domain.Inspection
	var inspectedAt sql.NullTime
	var notes sql.NullString
	err := r.db.QueryRowContext(ctx, query, requestID).Scan(
		&inspection.ID, &inspection.ReturnRequestID, &inspection.InspectedBy,
		&inspectedAt, &inspection.Result, &notes,
	)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "inspection", ID: requestID.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get inspection", zap.Error(err))
		return nil, err
	}

	if inspectedAt.Valid {
		inspection.InspectedAt = &inspectedAt.Time
	}
	if notes.Valid {
		inspection.Notes = &notes.String
	}

	return &inspection, nil
}

func (r *returnRequestRepository) UpsertInspection(ctx context.Context, inspection *domain.Inspection) error {
	if inspection.ID == uuid.Nil {
		inspection.ID = uuid.New()
	}

	query := `
		INSERT INTO inspections (id, return_request_id, inspected_by, inspected_at, result, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (return_request_id) DO UPDATE SET
			inspected_by = EXCLUDED.inspected_by,
			inspected_at = EXCLUDED.inspected_at,
			result = EXCLUDED.result,
			notes = EXCLUDED.notes
	`

	_, err := r.db.ExecContext(ctx, query,
		inspection.ID, inspection.ReturnRequestID, inspection.InspectedBy,
		inspection.InspectedAt, inspection.Result, inspection.Notes,
	)
	if err != nil {
		r.logger.Error("Failed to upsert inspection", zap.Error(err))
		return err
	}

	return nil
}

func (r *returnRequestRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, filter repository.ReturnHistoryFilter) ([]*domain.ReturnRequest, int, error) {
	where := []string{"customer_id = $1"}
	args := []interface{}{customerID}

	if filter.Status != "" && filter.Status.IsValid() {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if filter.Keyword != "" {
		where = append(where, fmt.Sprintf("(rma_number ILIKE $%d OR CAST(id AS TEXT) ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Keyword+"%")
	}

	clause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM return_requests WHERE ` + clause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count return requests", zap.Error(err))
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM return_requests
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, returnRequestColumns, clause, len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list return requests", zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	var requests []*domain.ReturnRequest
	for rows.Next() {
		request, err := scanReturnRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, request)
	}

	return requests, total, rows.Err()
}

func scanReturnRequest(row rowScanner) (*domain.ReturnRequest, error) {
	var request domain.ReturnRequest
	var details, rmaNumber, decisionNotes sql.NullString

	err := row.Scan(
		&request.ID,
		&request.SaleID,
		&request.CustomerID,
		&request.Status,
		&request.Reason,
		&details,
		&rmaNumber,
		&decisionNotes,
		&request.PolicyWindowDays,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if details.Valid {
		request.Details = &details.String
	}
	if rmaNumber.Valid {
		request.RMANumber = &rmaNumber.String
	}
	if decisionNotes.Valid {
		request.DecisionNotes = &decisionNotes.String
	}

	return &request, nil
}
