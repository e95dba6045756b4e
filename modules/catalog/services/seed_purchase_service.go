package services

import (
	"context"

	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/seedpurchase"
	"github.com/verdantlabs/seedbank/pkg/composables"
)

type SeedPurchaseService struct {
	repo seedpurchase.Repository
}

func NewSeedPurchaseService(repo seedpurchase.Repository) *SeedPurchaseService {
	return &SeedPurchaseService{repo: repo}
}

func (s *SeedPurchaseService) List(ctx context.Context, params *seedpurchase.FindParams) ([]*seedpurchase.SeedPurchase, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) ([]*seedpurchase.SeedPurchase, error) {
		return s.repo.List(txCtx, params)
	})
}

func (s *SeedPurchaseService) Count(ctx context.Context, params *seedpurchase.FindParams) (int64, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (int64, error) {
		return s.repo.Count(txCtx, params)
	})
}
