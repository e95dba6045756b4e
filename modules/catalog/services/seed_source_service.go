package services

import (
	"context"

	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/seedsource"
	"github.com/verdantlabs/seedbank/pkg/composables"
)

type SeedSourceService struct {
	repo seedsource.Repository
}

func NewSeedSourceService(repo seedsource.Repository) *SeedSourceService {
	return &SeedSourceService{repo: repo}
}

func (s *SeedSourceService) List(ctx context.Context, params *seedsource.FindParams) ([]*seedsource.SeedSource, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) ([]*seedsource.SeedSource, error) {
		return s.repo.List(txCtx, params)
	})
}

func (s *SeedSourceService) Names(ctx context.Context) ([]string, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) ([]string, error) {
		return s.repo.Names(txCtx)
	})
}
