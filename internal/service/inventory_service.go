package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/events"
	"github.com/jafarshop/retailapi/internal/repository"
)

type inventoryService struct {
	repos     *repository.Repositories
	publisher events.Publisher
	logger    *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(repos *repository.Repositories, publisher events.Publisher, logger *zap.Logger) *inventoryService {
	return &inventoryService{
		repos:     repos,
		publisher: publisher,
		logger:    logger,
	}
}

// RestockAdjustments computes the stock deltas restored by a refunded
// return: min(requested, purchased) units per item, grouped by product.
func (s *inventoryService) RestockAdjustments(returnItems []*domain.ReturnItem, saleItems []*domain.SaleItem) []domain.StockAdjustment {
	itemsByID := make(map[uuid.UUID]*domain.SaleItem, len(saleItems))
	for _, item := range saleItems {
		itemsByID[item.ID] = item
	}

	deltas := make(map[uuid.UUID]int)
	order := make([]uuid.UUID, 0, len(returnItems))
	for _, ri := range returnItems {
		saleItem := itemsByID[ri.SaleItemID]
		qty := ri.ApprovedQuantity(saleItem)
		if qty == 0 {
			continue
		}
		if _, seen := deltas[saleItem.ProductID]; !seen {
			order = append(order, saleItem.ProductID)
		}
		deltas[saleItem.ProductID] += qty
	}

	adjustments := make([]domain.StockAdjustment, 0, len(order))
	for _, productID := range order {
		adjustments = append(adjustments, domain.StockAdjustment{
			ProductID: productID,
			Delta:     deltas[productID],
		})
	}
	return adjustments
}

// PublishChanges emits one inventory event per applied stock mutation
func (s *inventoryService) PublishChanges(ctx context.Context, changes []domain.InventoryChange) {
	for _, change := range changes {
		event := events.InventoryChange{
			ProductID:  change.ProductID,
			OldStock:   change.OldStock,
			NewStock:   change.NewStock,
			Reason:     change.Reason,
			OccurredAt: time.Now(),
		}
		if err := s.publisher.PublishInventoryChange(ctx, event); err != nil {
			s.logger.Error("Failed to publish inventory change",
				zap.String("product_id", change.ProductID.String()),
				zap.Error(err))
		}
	}
}
