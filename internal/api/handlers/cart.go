package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/api/middleware"
	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/service"
)

// CartItemResponse is one cart line with its pricing snapshot
type CartItemResponse struct {
	ID                string  `json:"id"`
	ProductID         string  `json:"product_id"`
	Quantity          int     `json:"quantity"`
	OriginalUnitPrice float64 `json:"original_unit_price"`
	FinalUnitPrice    float64 `json:"final_unit_price"`
	DiscountApplied   float64 `json:"discount_applied"`
	ShippingFee       float64 `json:"shipping_fee"`
	ImportDuty        float64 `json:"import_duty"`
	Subtotal          float64 `json:"subtotal"`
}

// CartResponse is the caller's open cart with its lines
type CartResponse struct {
	SaleID      string             `json:"sale_id"`
	Status      domain.SaleStatus  `json:"status"`
	TotalAmount float64            `json:"total_amount"`
	Items       []CartItemResponse `json:"items"`
}

func cartResponse(sale *domain.Sale, items []*domain.SaleItem) CartResponse {
	resp := CartResponse{
		SaleID:      sale.ID.String(),
		Status:      sale.Status,
		TotalAmount: sale.TotalAmount,
		Items:       make([]CartItemResponse, len(items)),
	}
	for i, item := range items {
		resp.Items[i] = CartItemResponse{
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
	return resp
}

// HandleGetCart handles GET /v1/cart
func HandleGetCart(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		sale, items, err := svcs.Cart.GetCart(c.Request.Context(), user.ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, cartResponse(sale, items))
	}
}

// HandleAddToCart handles POST /v1/cart/items
func HandleAddToCart(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req service.AddToCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		if _, err := svcs.Cart.AddItem(c.Request.Context(), user.ID, req); err != nil {
			respondError(c, logger, err)
			return
		}

		sale, items, err := svcs.Cart.GetCart(c.Request.Context(), user.ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, cartResponse(sale, items))
	}
}

// HandleSetCartQuantity handles PUT /v1/cart/items
func HandleSetCartQuantity(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req service.SetCartQuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		if _, err := svcs.Cart.SetItemQuantity(c.Request.Context(), user.ID, req); err != nil {
			respondError(c, logger, err)
			return
		}

		sale, items, err := svcs.Cart.GetCart(c.Request.Context(), user.ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, cartResponse(sale, items))
	}
}
