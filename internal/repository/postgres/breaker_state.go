package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/domain"
)

type breakerStateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBreakerStateRepository creates a new circuit breaker state repository
func NewBreakerStateRepository(db *sql.DB, logger *zap.Logger) *breakerStateRepository {
	return &breakerStateRepository{db: db, logger: logger}
}

const breakerColumns = `id, service_name, state, failure_count, last_failure_time,
	next_attempt_time, failure_threshold, timeout_seconds, created_at, updated_at`

// GetOrCreate loads the persisted breaker row for a service, inserting the
// closed default when the service has never been seen.
func (r *breakerStateRepository) GetOrCreate(ctx context.Context, serviceName string, threshold, timeoutSeconds int) (*domain.BreakerState, error) {
	query := `
		INSERT INTO circuit_breaker_states (
			id, service_name, state, failure_count, failure_threshold, timeout_seconds, created_at, updated_at
		)
		VALUES ($1, $2, $3, 0, $4, $5, $6, $6)
		ON CONFLICT (service_name) DO UPDATE SET service_name = EXCLUDED.service_name
		RETURNING ` + breakerColumns

	now := time.Now()
	state, err := scanBreakerState(r.db.QueryRowContext(ctx, query,
		uuid.New(), serviceName, domain.BreakerClosed, threshold, timeoutSeconds, now))
	if err != nil {
		r.logger.Error("Failed to load breaker state", zap.Error(err), zap.String("service", serviceName))
		return nil, err
	}
	return state, nil
}

func (r *breakerStateRepository) Save(ctx context.Context, state *domain.BreakerState) error {
	query := `
		UPDATE circuit_breaker_states
		SET state = $2, failure_count = $3, last_failure_time = $4, next_attempt_time = $5,
			failure_threshold = $6, timeout_seconds = $7, updated_at = $8
		WHERE service_name = $1
	`

	state.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		state.ServiceName,
		state.State,
		state.FailureCount,
		state.LastFailureTime,
		state.NextAttemptTime,
		state.FailureThreshold,
		state.TimeoutSeconds,
		state.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save breaker state", zap.Error(err), zap.String("service", state.ServiceName))
		return err
	}

	return nil
}

func (r *breakerStateRepository) Reset(ctx context.Context, serviceName string) error {
	query := `
		UPDATE circuit_breaker_states
		SET state = $2, failure_count = 0, last_failure_time = NULL, next_attempt_time = NULL, updated_at = $3
		WHERE service_name = $1
	`

	_, err := r.db.ExecContext(ctx, query, serviceName, domain.BreakerClosed, time.Now())
	if err != nil {
		r.logger.Error("Failed to reset breaker state", zap.Error(err), zap.String("service", serviceName))
		return err
	}

	return nil
}

func scanBreakerState(row rowScanner) (*domain.BreakerState, error) {
	var state domain.BreakerState
	var lastFailure, nextAttempt sql.NullTime

	err := row.Scan(
		&state.ID,
		&state.ServiceName,
		&state.State,
		&state.FailureCount,
		&lastFailure,
		&nextAttempt,
		&state.FailureThreshold,
		&state.TimeoutSeconds,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastFailure.Valid {
		state.LastFailureTime = &lastFailure.Time
	}
	if nextAttempt.Valid {
		state.NextAttemptTime = &nextAttempt.Time
	}

	return &state, nil
}
