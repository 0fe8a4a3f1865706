package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/api/middleware"
	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/service"
)

// FlashSaleResponse is the flash sale representation
type FlashSaleResponse struct {
	ID                string                 `json:"id"`
	ProductID         string                 `json:"product_id"`
	Title             string                 `json:"title"`
	StartTime         string                 `json:"start_time"`
	EndTime           string                 `json:"end_time"`
	DiscountPercent   float64                `json:"discount_percent"`
	MaxQuantity       int                    `json:"max_quantity"`
	AvailableQuantity int                    `json:"available_quantity"`
	Status            domain.FlashSaleStatus `json:"status"`
}

func flashSaleResponse(f *domain.FlashSale) FlashSaleResponse {
	return FlashSaleResponse{
		ID:                f.ID.String(),
		ProductID:         f.ProductID.String(),
		Title:             f.Title,
		StartTime:         f.StartTime.Format(time.RFC3339),
		EndTime:           f.EndTime.Format(time.RFC3339),
		DiscountPercent:   f.DiscountPercent,
		MaxQuantity:       f.MaxQuantity,
		AvailableQuantity: f.AvailableQuantity(),
		Status:            f.Status,
	}
}

// HandleListFlashSales handles GET /v1/flash-sales
func HandleListFlashSales(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sales, err := svcs.FlashSale.ListActive(c.Request.Context())
		if err != nil {
			respondError(c, logger, err)
			return
		}

		responses := make([]FlashSaleResponse, len(sales))
		for i, f := range sales {
			responses[i] = flashSaleResponse(f)
		}
		c.JSON(http.StatusOK, gin.H{"flash_sales": responses, "count": len(responses)})
	}
}

// HandleReserveFlashSale handles POST /v1/flash-sales/:id/reserve
func HandleReserveFlashSale(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
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

		var req service.ReserveFlashSaleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		reservation, err := svcs.FlashSale.Reserve(c.Request.Context(), id, user.ID, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"reservation_id": reservation.ID.String(),
			"flash_sale_id":  reservation.FlashSaleID.String(),
			"quantity":       reservation.Quantity,
			"status":         reservation.Status,
			"reserved_at":    reservation.ReservedAt.Format(time.RFC3339),
		})
	}
}

// HandleCreateFlashSale handles POST /v1/admin/flash-sales
func HandleCreateFlashSale(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CreateFlashSaleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		flashSale, err := svcs.FlashSale.Create(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, flashSaleResponse(flashSale))
	}
}
