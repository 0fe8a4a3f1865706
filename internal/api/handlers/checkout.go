package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/api/middleware"
	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/repository"
	"github.com/jafarshop/retailapi/internal/service"
)

// SaleResponse is a sale summary
type SaleResponse struct {
	ID          string            `json:"id"`
	Status      domain.SaleStatus `json:"status"`
	TotalAmount float64           `json:"total_amount"`
	SaleDate    *string           `json:"sale_date,omitempty"`
	CreatedAt   string            `json:"created_at"`
}

func saleResponse(s *domain.Sale) SaleResponse {
	resp := SaleResponse{
		ID:          s.ID.String(),
		Status:      s.Status,
		TotalAmount: s.TotalAmount,
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
	}
	if s.SaleDate != nil {
		formatted := s.SaleDate.Format(time.RFC3339)
		resp.SaleDate = &formatted
	}
	return resp
}

// PaymentResponse is a payment summary with card details masked
type PaymentResponse struct {
	ID      string               `json:"id"`
	Amount  float64              `json:"amount"`
	Status  domain.PaymentStatus `json:"status"`
	Type    domain.PaymentType   `json:"type"`
	Details string               `json:"details"`
}

func paymentResponse(p *domain.Payment) *PaymentResponse {
	if p == nil {
		return nil
	}
	return &PaymentResponse{
		ID:      p.ID.String(),
		Amount:  p.Amount,
		Status:  p.Status,
		Type:    p.Type,
		Details: p.MaskedDetails(),
	}
}

// HandleCheckout handles POST /v1/checkout
func HandleCheckout(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req service.CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		result, err := svcs.Checkout.Checkout(c.Request.Context(), user.ID, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		status := http.StatusOK
		if result.Queued {
			// The sale was not finalized; payment will be retried in the
			// background.
			status = http.StatusAccepted
		}
		c.JSON(status, gin.H{
			"sale":    saleResponse(result.Sale),
			"payment": paymentResponse(result.Payment),
			"queued":  result.Queued,
			"message": result.Message,
		})
	}
}

// HandleListSales handles GET /v1/sales. Supports history filtering via
// status (including the derived returned/refunded values), from/to dates
// and a q keyword matched against product names or a sale ID.
func HandleListSales(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit, offset := pagination(c)
		from, to := historyWindow(c)
		filter := repository.SaleHistoryFilter{
			Status:  c.Query("status"),
			From:    from,
			To:      to,
			Keyword: c.Query("q"),
			Limit:   limit,
			Offset:  offset,
		}

		sales, total, err := svcs.Cart.ListSales(c.Request.Context(), user.ID, filter)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		responses := make([]SaleResponse, len(sales))
		for i, s := range sales {
			responses[i] = saleResponse(s)
		}
		c.JSON(http.StatusOK, gin.H{
			"sales":       responses,
			"total_count": total,
			"limit":       limit,
			"offset":      offset,
		})
	}
}

// HandleGetSale handles GET /v1/sales/:id
func HandleGetSale(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := parseIDParam(c)
		if err != nil {
			return
		}

		sale, items, err := svcs.Cart.GetSale(c.Request.Context(), user.ID, id)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		itemResponses := make([]CartItemResponse, len(items))
		for i, item := range items {
			itemResponses[i] = CartItemResponse{
				ID:                item.ID.String(),
				ProductID:         item.ProductID.String(),
				Quantity:          item.Quantity,
				OriginalUnitPrice: item.OriginalUnitPrice,
				FinalUnitPrice:    item.FinalUnitPrice,
				DiscountApplied:   item.DiscountApplied,
				ShippingFee:       item.ShippingFeeApplied,
				ImportDuty:        item.ImportDutyApplied,
				Subtotal:          item.Subtotal,
			}
		}
		c.JSON(http.StatusOK, gin.H{"sale": saleResponse(sale), "items": itemResponses})
	}
}
