package payment

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/breaker"
	"github.com/jafarshop/retailapi/internal/domain"
)

// GatewayService is the circuit breaker service name for the payment gateway
const GatewayService = "payment_gateway"

// ErrDeclined is returned when the simulated processor declines a charge
type ErrDeclined struct {
	Reason string
}

func (e *ErrDeclined) Error() string {
	return fmt.Sprintf("payment declined: %s", e.Reason)
}

// ErrRefundFailed is returned when the simulated processor rejects a refund
type ErrRefundFailed struct {
	Reason string
}

func (e *ErrRefundFailed) Error() string {
	return fmt.Sprintf("refund failed: %s", e.Reason)
}

// AuthorizationResult holds the outcome of a successful charge
type AuthorizationResult struct {
	TransactionRef string
	AuthorizedAt   time.Time
}

// RefundResult holds the outcome of a successful refund
type RefundResult struct {
	RefundRef   string
	ProcessedAt time.Time
}

// Gateway simulates an external card and cash processor. Every call goes
// through the circuit breaker, so declines and failures feed its failure
// count and an open breaker rejects calls without reaching the processor.
type Gateway struct {
	breaker                  *breaker.Breaker
	declineProbability       float64
	refundFailureProbability float64
	logger                   *zap.Logger

	now  func() time.Time
	rand func() float64
}

// NewGateway creates a simulated payment gateway
func NewGateway(cb *breaker.Breaker, declineProbability, refundFailureProbability float64, logger *zap.Logger) *Gateway {
	return &Gateway{
		breaker:                  cb,
		declineProbability:       declineProbability,
		refundFailureProbability: refundFailureProbability,
		logger:                   logger,
		now:                      time.Now,
		rand:                     rand.Float64,
	}
}

// SetClock overrides the gateway's clock. Tests only.
func (g *Gateway) SetClock(now func() time.Time) {
	g.now = now
}

// SetRand overrides the gateway's random source. Tests only.
func (g *Gateway) SetRand(r func() float64) {
	g.rand = r
}

// Authorize charges the payment. The payment method is validated first,
// then the simulated processor declines with the configured probability
// regardless of method: cards fail at the issuer, cash at the terminal.
func (g *Gateway) Authorize(ctx context.Context, payment *domain.Payment) (*AuthorizationResult, error) {
	var result *AuthorizationResult

	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		now := g.now()

		ok, reason := payment.Authorized(now)
		if !ok {
			return &ErrDeclined{Reason: reason}
		}

		if g.rand() < g.declineProbability {
			if payment.Type == domain.PaymentTypeCash {
				return &ErrDeclined{Reason: "Cash handling error at terminal"}
			}
			return &ErrDeclined{Reason: "Issuer declined the transaction"}
		}

		result = &AuthorizationResult{
			TransactionRef: transactionRef(payment.ID),
			AuthorizedAt:   now,
		}
		return nil
	})
	if err != nil {
		g.logger.Warn("Payment authorization failed",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err))
		return nil, err
	}

	g.logger.Info("Payment authorized",
		zap.String("payment_id", payment.ID.String()),
		zap.String("transaction_ref", result.TransactionRef))
	return result, nil
}

// Refund pays amount back against the original payment. Amount validation
// happens before the breaker so a repeated bad request cannot open it
// against healthy traffic.
func (g *Gateway) Refund(ctx context.Context, original *domain.Payment, amount float64) (*RefundResult, error) {
	if amount <= 0 {
		err := &ErrRefundFailed{Reason: "refund amount must be positive"}
		g.logger.Warn("Refund rejected",
			zap.String("payment_id", original.ID.String()),
			zap.Float64("amount", amount),
			zap.Error(err))
		return nil, err
	}
	if amount > original.Amount {
		err := &ErrRefundFailed{Reason: "refund amount exceeds original charge"}
		g.logger.Warn("Refund rejected",
			zap.String("payment_id", original.ID.String()),
			zap.Float64("amount", amount),
			zap.Error(err))
		return nil, err
	}

	var result *RefundResult

	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		if g.rand() < g.refundFailureProbability {
			return &ErrRefundFailed{Reason: "processor rejected the refund"}
		}

		result = &RefundResult{
			RefundRef:   refundRef(original.ID),
			ProcessedAt: g.now(),
		}
		return nil
	})
	if err != nil {
		g.logger.Warn("Refund failed",
			zap.String("payment_id", original.ID.String()),
			zap.Float64("amount", amount),
			zap.Error(err))
		return nil, err
	}

	g.logger.Info("Refund processed",
		zap.String("payment_id", original.ID.String()),
		zap.String("refund_ref", result.RefundRef))
	return result, nil
}

func transactionRef(paymentID uuid.UUID) string {
	return fmt.Sprintf("TX-%s", shortID(paymentID))
}

func refundRef(paymentID uuid.UUID) string {
	return fmt.Sprintf("RF-%s-%s", shortID(paymentID), shortID(uuid.New()))
}

func shortID(id uuid.UUID) string {
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}
