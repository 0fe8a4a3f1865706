package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/repository"
	"github.com/jafarshop/retailapi/pkg/errors"
)

type cartService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(repos *repository.Repositories, logger *zap.Logger) *cartService {
	return &cartService{
		repos:  repos,
		logger: logger,
	}
}

// GetOrCreateCart returns the user's open cart, creating it on first use
func (s *cartService) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*domain.Sale, error) {
	cart, err := s.repos.Sale.GetCartByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if _, ok := err.(*errors.ErrNotFound); !ok {
		return nil, err
	}

	cart = &domain.Sale{
		ID:     uuid.New(),
		UserID: userID,
		Status: domain.SaleStatusCart,
	}
	if err := s.repos.Sale.Create(ctx, cart); err != nil {
		s.logger.Error("Failed to create cart", zap.Error(err))
		return nil, err
	}

	s.logger.Info("Created cart", zap.String("user_id", userID.String()))
	return cart, nil
}

// AddItem merges a quantity of a product into the user's cart. The line
// carries provisional snapshot pricing; the final snapshot is captured at
// checkout.
func (s *cartService) AddItem(ctx context.Context, userID uuid.UUID, req AddToCartRequest) (*domain.Sale, error) {
	product, err := s.repos.Product.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product.Stock < req.Quantity {
		return nil, &errors.ErrStockConflict{ProductName: product.Name, Available: product.Stock}
	}

	cart, err := s.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot := product.SnapshotSaleItem(req.Quantity)
	snapshot.SaleID = cart.ID
	if err := s.repos.SaleItem.UpsertCartItem(ctx, &snapshot); err != nil {
		s.logger.Error("Failed to add cart item", zap.Error(err))
		return nil, err
	}

	return s.recomputeTotal(ctx, cart)
}

// SetItemQuantity rewrites a cart line; zero quantity removes it
func (s *cartService) SetItemQuantity(ctx context.Context, userID uuid.UUID, req SetCartQuantityRequest) (*domain.Sale, error) {
	cart, err := s.repos.Sale.GetCartByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	product, err := s.repos.Product.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if req.Quantity > 0 && product.Stock < req.Quantity {
		return nil, &errors.ErrStockConflict{ProductName: product.Name, Available: product.Stock}
	}

	snapshot := product.SnapshotSaleItem(req.Quantity)
	snapshot.SaleID = cart.ID
	if err := s.repos.SaleItem.SetQuantity(ctx, cart.ID, req.ProductID, &snapshot); err != nil {
		s.logger.Error("Failed to set cart quantity", zap.Error(err))
		return nil, err
	}

	return s.recomputeTotal(ctx, cart)
}

// GetCart returns the user's cart with its line items
func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*domain.Sale, []*domain.SaleItem, error) {
	cart, err := s.repos.Sale.GetCartByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.repos.SaleItem.ListBySale(ctx, cart.ID)
	if err != nil {
		return nil, nil, err
	}
	return cart, items, nil
}

// GetSale returns one of the user's sales with its line items
func (s *cartService) GetSale(ctx context.Context, userID, saleID uuid.UUID) (*domain.Sale, []*domain.SaleItem, error) {
	sale, err := s.repos.Sale.GetByID(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}
	if sale.UserID != userID {
		return nil, nil, &errors.ErrNotFound{Resource: "sale", ID: saleID.String()}
	}
	items, err := s.repos.SaleItem.ListBySale(ctx, sale.ID)
	if err != nil {
		return nil, nil, err
	}
	return sale, items, nil
}

// ListSales returns the filtered page of the user's order history with
// the total match count
func (s *cartService) ListSales(ctx context.Context, userID uuid.UUID, filter repository.SaleHistoryFilter) ([]*domain.Sale, int, error) {
	return s.repos.Sale.ListHistoryByUser(ctx, userID, filter)
}

func (s *cartService) recomputeTotal(ctx context.Context, cart *domain.Sale) (*domain.Sale, error) {
	items, err := s.repos.SaleItem.ListBySale(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	var total float64
	for _, item := range items {
		total += item.Subtotal + item.ShippingFeeApplied + item.ImportDutyApplied
	}

	if err := s.repos.Sale.UpdateTotals(ctx, cart.ID, total); err != nil {
		return nil, fmt.Errorf("failed to update cart total: %w", err)
	}
	cart.TotalAmount = total
	return cart, nil
}
