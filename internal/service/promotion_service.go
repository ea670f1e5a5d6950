package service

import (
	"context"
	"strings"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/fjod/go_cart/canteen/internal/policy"
	"github.com/fjod/go_cart/canteen/internal/repository"
	"github.com/google/uuid"
)

type PromotionService struct {
	tx      TxRunner
	promos  PromotionStore
	catalog Catalog
	checker *policy.Checker
	opts    options
}

func NewPromotionService(tx TxRunner, promos PromotionStore, catalog Catalog, checker *policy.Checker, opts ...Option) *PromotionService {
	return &PromotionService{
		tx:      tx,
		promos:  promos,
		catalog: catalog,
		checker: checker,
		opts:    buildOptions(opts),
	}
}

func (s *PromotionService) authorize(ctx context.Context, actorID, canteenID int64) error {
	if _, err := s.catalog.GetCanteen(ctx, canteenID); err != nil {
		return err
	}
	return s.checker.CanManageCanteen(ctx, actorID, canteenID)
}

// Create stores a new promotion for p.CanteenID. The use counter always starts at zero.
func (s *PromotionService) Create(ctx context.Context, actorID int64, p *domain.Promotion) (*domain.Promotion, error) {
	if err := s.authorize(ctx, actorID, p.CanteenID); err != nil {
		return nil, err
	}
	p.Code = strings.TrimSpace(p.Code)
	if err := p.Check(); err != nil {
		return nil, err
	}

	now := s.opts.clock()
	p.ID = uuid.New()
	p.CurrentUses = 0
	p.CreatedAt = now
	p.UpdatedAt = now

	err := s.tx.Atomic(ctx, func(q repository.Queryer) error {
		return s.promos.CreatePromotion(ctx, q, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PromotionService) List(ctx context.Context, actorID, canteenID int64) ([]*domain.Promotion, error) {
	if err := s.authorize(ctx, actorID, canteenID); err != nil {
		return nil, err
	}
	return s.promos.ListPromotions(ctx, s.tx.Reader(), canteenID)
}
