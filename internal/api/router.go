package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/api/handlers"
	"github.com/jafarshop/retailapi/internal/api/middleware"
	"github.com/jafarshop/retailapi/internal/breaker"
	"github.com/jafarshop/retailapi/internal/config"
	"github.com/jafarshop/retailapi/internal/metrics"
	"github.com/jafarshop/retailapi/internal/repository"
	"github.com/jafarshop/retailapi/internal/service"
)

// NewRouter creates and configures the Gin router
func NewRouter(
	cfg *config.Config,
	repos *repository.Repositories,
	svcs *service.Services,
	cb *breaker.Breaker,
	registry *metrics.Registry,
	logger *zap.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(loggingMiddleware(logger))

	// Root: friendly response so GET / returns 200 instead of 404
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Retail API",
			"endpoints": []string{
				"GET /health",
				"GET /v1/products",
				"GET /v1/cart",
				"POST /v1/cart/items",
				"POST /v1/checkout",
				"GET /v1/sales",
				"POST /v1/returns",
				"GET /v1/flash-sales",
				"GET /v1/admin/queue",
			},
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes
	v1 := router.Group("/v1")
	{
		// Customer routes (require authentication)
		customerRoutes := v1.Group("")
		customerRoutes.Use(middleware.AuthMiddleware(cfg, repos, logger))
		{
			customerRoutes.GET("/products", handlers.HandleListProducts(repos, logger))
			customerRoutes.GET("/products/:id", handlers.HandleGetProduct(repos, logger))

			customerRoutes.GET("/cart", handlers.HandleGetCart(svcs, logger))
			customerRoutes.POST("/cart/items", handlers.HandleAddToCart(svcs, logger))
			customerRoutes.PUT("/cart/items", handlers.HandleSetCartQuantity(svcs, logger))

			customerRoutes.POST("/checkout", handlers.HandleCheckout(svcs, logger))
			customerRoutes.GET("/sales", handlers.HandleListSales(svcs, logger))
			customerRoutes.GET("/sales/:id", handlers.HandleGetSale(svcs, logger))

			customerRoutes.POST("/returns", handlers.HandleCreateReturn(svcs, logger))
			customerRoutes.GET("/returns", handlers.HandleListMyReturns(svcs, logger))
			customerRoutes.GET("/returns/:id", handlers.HandleGetReturn(svcs, logger))
			customerRoutes.POST("/returns/:id/cancel", handlers.HandleCancelReturn(svcs, logger))
			customerRoutes.POST("/returns/:id/shipment", handlers.HandleRecordShipment(svcs, logger))

			customerRoutes.GET("/flash-sales", handlers.HandleListFlashSales(svcs, logger))
			customerRoutes.POST("/flash-sales/:id/reserve", handlers.HandleReserveFlashSale(svcs, logger))
		}

		// Admin routes (require authentication plus the admin flag)
		adminRoutes := v1.Group("/admin")
		adminRoutes.Use(middleware.AuthMiddleware(cfg, repos, logger))
		adminRoutes.Use(middleware.AdminMiddleware())
		{
			adminRoutes.POST("/products", handlers.HandleCreateProduct(repos, logger))
			adminRoutes.PUT("/products/:id", handlers.HandleUpdateProduct(repos, logger))

			adminRoutes.POST("/returns/:id/authorize", handlers.HandleAuthorizeReturn(svcs, logger))
			adminRoutes.POST("/returns/:id/receive", handlers.HandleMarkReceived(svcs, logger))
			adminRoutes.POST("/returns/:id/inspection", handlers.HandleRecordInspection(svcs, logger))
			adminRoutes.POST("/returns/:id/refund", handlers.HandleProcessRefund(svcs, logger))

			adminRoutes.POST("/flash-sales", handlers.HandleCreateFlashSale(svcs, logger))

			adminRoutes.GET("/queue", handlers.HandleListQueue(svcs, logger))
			adminRoutes.GET("/metrics", handlers.HandleMetrics(registry))
			adminRoutes.GET("/breaker", handlers.HandleBreakerStatus(cb, logger))
			adminRoutes.POST("/breaker/reset", handlers.HandleResetBreaker(repos, logger))
		}
	}

	return router
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal server error",
			"details": fmt.Sprintf("%v", recovered),
		})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		)
	}
}
