package breaker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/metrics"
	"github.com/jafarshop/retailapi/internal/repository"
	"github.com/jafarshop/retailapi/pkg/errors"
)

// Breaker wraps calls to a flaky downstream service with circuit breaker
// semantics. State is persisted per service name so restarts and other
// processes observe the same breaker.
type Breaker struct {
	mu sync.Mutex

	serviceName      string
	failureThreshold int
	timeout          time.Duration

	states  repository.BreakerStateRepository
	metrics *metrics.Registry
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a circuit breaker for the named service. Open transitions
// are counted in the registry under "breaker_opens".
func New(serviceName string, threshold int, timeout time.Duration, states repository.BreakerStateRepository, registry *metrics.Registry, logger *zap.Logger) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Breaker{
		serviceName:      serviceName,
		failureThreshold: threshold,
		timeout:          timeout,
		states:           states,
		metrics:          registry,
		logger:           logger,
		now:              time.Now,
	}
}

// SetClock overrides the breaker's clock. Tests only.
func (b *Breaker) SetClock(now func() time.Time) {
	b.now = now
}

// State returns the breaker's current persisted state
func (b *Breaker) State(ctx context.Context) (*domain.BreakerState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(ctx)
}

// Execute runs op under the breaker. When the breaker is open and the
// timeout has not elapsed, op is not invoked and ErrUnavailable is
// returned. An open breaker whose timeout has elapsed moves to half-open
// and admits op as a single probe: success closes the breaker, failure
// reopens it. The lock is held across op so only one caller probes.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, err := b.load(ctx)
	if err != nil {
		return err
	}

	now := b.now()

	switch state.State {
	case domain.BreakerOpen:
		if state.NextAttemptTime != nil && now.Before(*state.NextAttemptTime) {
			return &errors.ErrUnavailable{Service: b.serviceName}
		}
		state.State = domain.BreakerHalfOpen
		if err := b.save(ctx, state); err != nil {
			return err
		}
		b.logger.Info("Circuit breaker half-open",
			zap.String("service", b.serviceName))
	case domain.BreakerHalfOpen, domain.BreakerClosed:
	default:
		state.State = domain.BreakerClosed
	}

	opErr := op(ctx)
	if opErr != nil {
		return b.recordFailure(ctx, state, opErr)
	}
	return b.recordSuccess(ctx, state)
}

func (b *Breaker) recordSuccess(ctx context.Context, state *domain.BreakerState) error {
	if state.State != domain.BreakerClosed || state.FailureCount != 0 {
		prev := state.State
		state.State = domain.BreakerClosed
		state.FailureCount = 0
		state.LastFailureTime = nil
		state.NextAttemptTime = nil
		if err := b.save(ctx, state); err != nil {
			return err
		}
		if prev != domain.BreakerClosed {
			b.logger.Info("Circuit breaker closed",
				zap.String("service", b.serviceName))
		}
	}
	return nil
}

func (b *Breaker) recordFailure(ctx context.Context, state *domain.BreakerState, opErr error) error {
	now := b.now()
	state.FailureCount++
	state.LastFailureTime = &now

	if state.State == domain.BreakerHalfOpen || state.FailureCount >= b.failureThreshold {
		next := now.Add(b.timeout)
		state.State = domain.BreakerOpen
		state.NextAttemptTime = &next
		if b.metrics != nil {
			b.metrics.Incr("breaker_opens")
		}
		b.logger.Warn("Circuit breaker opened",
			zap.String("service", b.serviceName),
			zap.Int("failure_count", state.FailureCount),
			zap.Time("next_attempt", next))
	}

	if err := b.save(ctx, state); err != nil {
		b.logger.Error("Failed to persist breaker state", zap.Error(err))
	}
	return opErr
}

func (b *Breaker) load(ctx context.Context) (*domain.BreakerState, error) {
	state, err := b.states.GetOrCreate(ctx, b.serviceName, b.failureThreshold, int(b.timeout/time.Second))
	if err != nil {
		b.logger.Error("Failed to load breaker state", zap.Error(err))
		return nil, err
	}
	return state, nil
}

func (b *Breaker) save(ctx context.Context, state *domain.BreakerState) error {
	state.UpdatedAt = b.now()
	return b.states.Save(ctx, state)
}
