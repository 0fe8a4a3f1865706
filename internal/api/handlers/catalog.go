package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/repository"
)

// ProductRequest is the create/update payload for a catalog product
type ProductRequest struct {
	Name             string  `json:"name" binding:"required"`
	Description      *string `json:"description,omitempty"`
	Price            float64 `json:"price" binding:"required,gt=0"`
	Stock            int     `json:"stock" binding:"min=0"`
	ShippingWeight   float64 `json:"shipping_weight" binding:"min=0"`
	DiscountPercent  float64 `json:"discount_percent" binding:"min=0,lt=100"`
	CountryOfOrigin  *string `json:"country_of_origin,omitempty"`
	RequiresShipping *bool   `json:"requires_shipping,omitempty"`
}

// ProductResponse is the catalog product representation
type ProductResponse struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      *string `json:"description,omitempty"`
	Price            float64 `json:"price"`
	Stock            int     `json:"stock"`
	ShippingWeight   float64 `json:"shipping_weight"`
	DiscountPercent  float64 `json:"discount_percent"`
	CountryOfOrigin  *string `json:"country_of_origin,omitempty"`
	RequiresShipping bool    `json:"requires_shipping"`
	DiscountedPrice  float64 `json:"discounted_price"`
	CreatedAt        string  `json:"created_at"`
}

func productResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:               p.ID.String(),
		Name:             p.Name,
		Description:      p.Description,
		Price:            p.Price,
		Stock:            p.Stock,
		ShippingWeight:   p.ShippingWeight,
		DiscountPercent:  p.DiscountPercent,
		CountryOfOrigin:  p.CountryOfOrigin,
		RequiresShipping: p.RequiresShipping,
		DiscountedPrice:  p.DiscountedUnitPrice(),
		CreatedAt:        p.CreatedAt.Format(time.RFC3339),
	}
}

// HandleListProducts handles GET /v1/products
func HandleListProducts(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c)
		products, err := repos.Product.List(c.Request.Context(), limit, offset)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		responses := make([]ProductResponse, len(products))
		for i, p := range products {
			responses[i] = productResponse(p)
		}
		c.JSON(http.StatusOK, gin.H{"products": responses, "count": len(responses)})
	}
}

// HandleGetProduct handles GET /v1/products/:id
func HandleGetProduct(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product ID"})
			return
		}

		product, err := repos.Product.GetByID(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, productResponse(product))
	}
}

// HandleCreateProduct handles POST /v1/admin/products
func HandleCreateProduct(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		now := time.Now()
		product := &domain.Product{
			ID:               uuid.New(),
			Name:             req.Name,
			Description:      req.Description,
			Price:            req.Price,
			Stock:            req.Stock,
			ShippingWeight:   req.ShippingWeight,
			DiscountPercent:  req.DiscountPercent,
			CountryOfOrigin:  req.CountryOfOrigin,
			RequiresShipping: true,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if req.RequiresShipping != nil {
			product.RequiresShipping = *req.RequiresShipping
		}

		if err := repos.Product.Create(c.Request.Context(), product); err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, productResponse(product))
	}
}

// HandleUpdateProduct handles PUT /v1/admin/products/:id
func HandleUpdateProduct(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product ID"})
			return
		}

		var req ProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		product, err := repos.Product.GetByID(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		product.Name = req.Name
		product.Description = req.Description
		product.Price = req.Price
		product.Stock = req.Stock
		product.ShippingWeight = req.ShippingWeight
		product.DiscountPercent = req.DiscountPercent
		product.CountryOfOrigin = req.CountryOfOrigin
		if req.RequiresShipping != nil {
			product.RequiresShipping = *req.RequiresShipping
		}
		product.UpdatedAt = time.Now()

		if err := repos.Product.Update(c.Request.Context(), product); err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, productResponse(product))
	}
}
