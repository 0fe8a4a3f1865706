package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/breaker"
	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/metrics"
	"github.com/jafarshop/retailapi/internal/payment"
	"github.com/jafarshop/retailapi/internal/repository"
	"github.com/jafarshop/retailapi/internal/service"
)

// HandleAuthorizeReturn handles POST /v1/admin/returns/:id/authorize
func HandleAuthorizeReturn(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseIDParam(c)
		if err != nil {
			return
		}

		var req service.AuthorizeReturnRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		request, err := svcs.Returns.AuthorizeReturn(c.Request.Context(), id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, returnResponse(request, nil))
	}
}

// HandleMarkReceived handles POST /v1/admin/returns/:id/receive
func HandleMarkReceived(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseIDParam(c)
		if err != nil {
			return
		}

		request, err := svcs.Returns.MarkReceived(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, returnResponse(request, nil))
	}
}

// HandleRecordInspection handles POST /v1/admin/returns/:id/inspection
func HandleRecordInspection(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseIDParam(c)
		if err != nil {
			return
		}

		var req service.RecordInspectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		request, err := svcs.Returns.RecordInspection(c.Request.Context(), id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, returnResponse(request, nil))
	}
}

// RefundResponse is the refund representation
type RefundResponse struct {
	ID                string              `json:"id"`
	Amount            float64             `json:"amount"`
	Method            domain.RefundMethod `json:"method"`
	Status            domain.RefundStatus `json:"status"`
	FailureReason     *string             `json:"failure_reason,omitempty"`
	ExternalReference *string             `json:"external_reference,omitempty"`
	ProcessedAt       *string             `json:"processed_at,omitempty"`
}

func refundResponse(r *domain.Refund) *RefundResponse {
	if r == nil {
		return nil
	}
	resp := &RefundResponse{
		ID:                r.ID.String(),
		Amount:            r.Amount,
		Method:            r.Method,
		Status:            r.Status,
		FailureReason:     r.FailureReason,
		ExternalReference: r.ExternalReference,
	}
	if r.ProcessedAt != nil {
		formatted := r.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &formatted
	}
	return resp
}

// HandleProcessRefund handles POST /v1/admin/returns/:id/refund
func HandleProcessRefund(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseIDParam(c)
		if err != nil {
			return
		}

		var req service.ProcessRefundRequest
		// Body is optional; defaults refund the computed amount via the
		// original payment method.
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				bindError(c, err)
				return
			}
		}

		result, err := svcs.Refund.ProcessRefund(c.Request.Context(), id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		status := http.StatusOK
		if !result.Success {
			// Gateway failure; the refund stays retryable
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"success": result.Success,
			"message": result.Message,
			"refund":  refundResponse(result.Refund),
		})
	}
}

// QueuedOrderResponse is one retry queue entry
type QueuedOrderResponse struct {
	ID           string             `json:"id"`
	SaleID       string             `json:"sale_id"`
	UserID       string             `json:"user_id"`
	Priority     int                `json:"priority"`
	Status       domain.QueueStatus `json:"status"`
	Attempts     int                `json:"attempts"`
	MaxAttempts  int                `json:"max_attempts"`
	ScheduledFor string             `json:"scheduled_for"`
	LastError    *string            `json:"last_error,omitempty"`
}

// HandleListQueue handles GET /v1/admin/queue
func HandleListQueue(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := domain.QueueStatus(c.DefaultQuery("status", string(domain.QueueStatusPending)))
		limit, offset := pagination(c)

		entries, err := svcs.Retry.ListQueue(c.Request.Context(), status, limit, offset)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		responses := make([]QueuedOrderResponse, len(entries))
		for i, e := range entries {
			responses[i] = QueuedOrderResponse{
				ID:           e.ID.String(),
				SaleID:       e.SaleID.String(),
				UserID:       e.UserID.String(),
				Priority:     e.Priority,
				Status:       e.Status,
				Attempts:     e.Attempts,
				MaxAttempts:  e.MaxAttempts,
				ScheduledFor: e.ScheduledFor.Format(time.RFC3339),
				LastError:    e.LastError,
			}
		}
		c.JSON(http.StatusOK, gin.H{"entries": responses, "count": len(responses)})
	}
}

// HandleMetrics handles GET /v1/admin/metrics
func HandleMetrics(registry *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, registry.Snapshot())
	}
}

// HandleBreakerStatus handles GET /v1/admin/breaker
func HandleBreakerStatus(cb *breaker.Breaker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := cb.State(c.Request.Context())
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"service":           state.ServiceName,
			"state":             state.State,
			"failure_count":     state.FailureCount,
			"failure_threshold": state.FailureThreshold,
			"next_attempt_time": state.NextAttemptTime,
		})
	}
}

// HandleResetBreaker handles POST /v1/admin/breaker/reset
func HandleResetBreaker(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := repos.BreakerState.Reset(c.Request.Context(), payment.GatewayService); err != nil {
			respondError(c, logger, err)
			return
		}
		logger.Info("Circuit breaker reset", zap.String("service", payment.GatewayService))
		c.JSON(http.StatusOK, gin.H{"message": "circuit breaker reset"})
	}
}
