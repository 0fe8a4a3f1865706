package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/repository"
	"github.com/jafarshop/retailapi/pkg/errors"
)

type flashSaleService struct {
	repos  *repository.Repositories
	logger *zap.Logger

	now func() time.Time
}

// NewFlashSaleService creates a new flash sale service
func NewFlashSaleService(repos *repository.Repositories, logger *zap.Logger) *flashSaleService {
	return &flashSaleService{
		repos:  repos,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the service clock. Tests only.
func (s *flashSaleService) SetClock(now func() time.Time) {
	s.now = now
}

// Create schedules a flash sale. A product can carry only one active sale
// over any time range.
func (s *flashSaleService) Create(ctx context.Context, req CreateFlashSaleRequest) (*domain.FlashSale, error) {
	if !req.EndTime.After(req.StartTime) {
		return nil, &errors.ErrValidation{Message: "end time must be after start time"}
	}
	if req.EndTime.Before(s.now()) {
		return nil, &errors.ErrValidation{Message: "flash sale would already be over"}
	}

	if _, err := s.repos.Product.GetByID(ctx, req.ProductID); err != nil {
		return nil, err
	}

	overlapping, err := s.repos.FlashSale.HasOverlappingActive(ctx, req.ProductID, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if overlapping {
		return nil, &errors.ErrConflict{Message: "product already has an active flash sale in this window"}
	}

	sale := &domain.FlashSale{
		ID:              uuid.New(),
		ProductID:       req.ProductID,
		Title:           req.Title,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DiscountPercent: req.DiscountPercent,
		MaxQuantity:     req.MaxQuantity,
		Status:          domain.FlashSaleActive,
	}
	if err := s.repos.FlashSale.Create(ctx, sale); err != nil {
		s.logger.Error("Failed to create flash sale", zap.Error(err))
		return nil, err
	}

	s.logger.Info("Flash sale created",
		zap.String("flash_sale_id", sale.ID.String()),
		zap.String("product_id", sale.ProductID.String()))
	return sale, nil
}

// ListActive returns flash sales currently accepting reservations
func (s *flashSaleService) ListActive(ctx context.Context) ([]*domain.FlashSale, error) {
	return s.repos.FlashSale.ListActive(ctx, s.now())
}

// Reserve holds units of a flash sale for the user
func (s *flashSaleService) Reserve(ctx context.Context, flashSaleID, userID uuid.UUID, req ReserveFlashSaleRequest) (*domain.FlashSaleReservation, error) {
	reservation, err := s.repos.FlashSale.Reserve(ctx, flashSaleID, userID, req.Quantity, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("Flash sale reservation created",
		zap.String("flash_sale_id", flashSaleID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("quantity", req.Quantity))
	return reservation, nil
}
