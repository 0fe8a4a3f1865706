package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/api/middleware"
	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/repository"
	"github.com/jafarshop/retailapi/internal/service"
)

// ReturnItemResponse is one returned line of an RMA
type ReturnItemResponse struct {
	ID              string  `json:"id"`
	SaleItemID      string  `json:"sale_item_id"`
	Quantity        int     `json:"quantity"`
	ConditionReport *string `json:"condition_report,omitempty"`
	RestockingFee   float64 `json:"restocking_fee"`
}

// ReturnResponse is the RMA representation
type ReturnResponse struct {
	ID            string                     `json:"id"`
	SaleID        string                     `json:"sale_id"`
	Status        domain.ReturnRequestStatus `json:"status"`
	Reason        domain.ReturnReason        `json:"reason"`
	Details       *string                    `json:"details,omitempty"`
	RMANumber     *string                    `json:"rma_number,omitempty"`
	DecisionNotes *string                    `json:"decision_notes,omitempty"`
	Items         []ReturnItemResponse       `json:"items,omitempty"`
	CreatedAt     string                     `json:"created_at"`
	UpdatedAt     string                     `json:"updated_at"`
}

func returnResponse(req *domain.ReturnRequest, items []*domain.ReturnItem) ReturnResponse {
	resp := ReturnResponse{
		ID:            req.ID.String(),
		SaleID:        req.SaleID.String(),
		Status:        req.Status,
		Reason:        req.Reason,
		Details:       req.Details,
		RMANumber:     req.RMANumber,
		DecisionNotes: req.DecisionNotes,
		CreatedAt:     req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     req.UpdatedAt.Format(time.RFC3339),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, ReturnItemResponse{
			ID:              item.ID.String(),
			SaleItemID:      item.SaleItemID.String(),
			Quantity:        item.Quantity,
			ConditionReport: item.ConditionReport,
			RestockingFee:   item.RestockingFee,
		})
	}
	return resp
}

// HandleCreateReturn handles POST /v1/returns
func HandleCreateReturn(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req service.CreateReturnRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		request, err := svcs.Returns.CreateReturnRequest(c.Request.Context(), user.ID, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, returnResponse(request, nil))
	}
}

// HandleListMyReturns handles GET /v1/returns. Supports history filtering
// via status, from/to dates and a q keyword matched against the RMA number
// or request ID.
func HandleListMyReturns(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit, offset := pagination(c)
		from, to := historyWindow(c)
		filter := repository.ReturnHistoryFilter{
			Status:  domain.ReturnRequestStatus(strings.ToUpper(c.Query("status"))),
			From:    from,
			To:      to,
			Keyword: c.Query("q"),
			Limit:   limit,
			Offset:  offset,
		}

		requests, total, err := svcs.Returns.ListByCustomer(c.Request.Context(), user.ID, filter)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		responses := make([]ReturnResponse, len(requests))
		for i, r := range requests {
			responses[i] = returnResponse(r, nil)
		}
		c.JSON(http.StatusOK, gin.H{
			"returns":     responses,
			"total_count": total,
			"limit":       limit,
			"offset":      offset,
		})
	}
}

// HandleGetReturn handles GET /v1/returns/:id
func HandleGetReturn(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
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

		request, items, err := svcs.Returns.GetReturnRequest(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		// Customers may only see their own returns
		if request.CustomerID != user.ID && !user.IsAdmin {
			c.JSON(http.StatusNotFound, gin.H{"error": "return request not found"})
			return
		}
		c.JSON(http.StatusOK, returnResponse(request, items))
	}
}

// HandleCancelReturn handles POST /v1/returns/:id/cancel
func HandleCancelReturn(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
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

		request, _, err := svcs.Returns.GetReturnRequest(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		if request.CustomerID != user.ID && !user.IsAdmin {
			c.JSON(http.StatusNotFound, gin.H{"error": "return request not found"})
			return
		}

		var body struct {
			Notes *string `json:"notes,omitempty"`
		}
		// Body is optional
		_ = c.ShouldBindJSON(&body)

		request, err = svcs.Returns.Cancel(c.Request.Context(), id, body.Notes)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, returnResponse(request, nil))
	}
}

// HandleRecordShipment handles POST /v1/returns/:id/shipment
func HandleRecordShipment(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
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

		request, _, err := svcs.Returns.GetReturnRequest(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		if request.CustomerID != user.ID && !user.IsAdmin {
			c.JSON(http.StatusNotFound, gin.H{"error": "return request not found"})
			return
		}

		var req service.RecordShipmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		request, err = svcs.Returns.RecordShipment(c.Request.Context(), id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, returnResponse(request, nil))
	}
}
