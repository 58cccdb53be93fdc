package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dealhub/dealhub/internal/model"
	"github.com/dealhub/dealhub/internal/repository"
)

// DealService owns catalog management. Capacity state is out of its hands:
// current_claims belongs to the admission path alone.
type DealService struct {
	deals  DealStore
	logger *zap.Logger
}

// NewDealService creates a new deal service.
func NewDealService(deals DealStore, logger *zap.Logger) *DealService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DealService{deals: deals, logger: logger}
}

// CreateDeal validates and inserts a new catalog entry.
func (s *DealService) CreateDeal(ctx context.Context, deal *model.Deal) (*model.Deal, error) {
	if err := deal.Validate(); err != nil {
		return nil, err
	}

	deal.ID = uuid.NewString()
	deal.CurrentClaims = 0

	if err := s.deals.Create(ctx, deal); err != nil {
		return nil, err
	}

	s.logger.Info("deal created",
		zap.String("deal_id", deal.ID),
		zap.String("partner", deal.PartnerName),
	)
	return deal, nil
}

// UpdateDeal rewrites the catalog fields of an existing deal.
//
// max_claims may be lowered below current_claims; the deal then reads as
// maxed out and admissions freeze, but no existing claims are revoked and
// the counter is never rewritten.
func (s *DealService) UpdateDeal(ctx context.Context, deal *model.Deal) (*model.Deal, error) {
	if err := deal.Validate(); err != nil {
		return nil, err
	}
	if err := s.deals.Update(ctx, deal); err != nil {
		return nil, err
	}
	return s.deals.Get(ctx, deal.ID)
}

// DeleteDeal removes a deal and, via the schema's cascade, its claims.
func (s *DealService) DeleteDeal(ctx context.Context, id string) error {
	if err := s.deals.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deal deleted", zap.String("deal_id", id))
	return nil
}

// GetDeal fetches a single deal.
func (s *DealService) GetDeal(ctx context.Context, id string) (*model.Deal, error) {
	return s.deals.Get(ctx, id)
}

// ListDeals returns a filtered, paginated page of deals.
func (s *DealService) ListDeals(ctx context.Context, filter repository.DealFilter) ([]model.Deal, int64, error) {
	return s.deals.List(ctx, filter)
}
