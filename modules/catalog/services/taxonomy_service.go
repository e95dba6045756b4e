package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/taxonomy"
	"github.com/verdantlabs/seedbank/pkg/composables"
	"github.com/verdantlabs/seedbank/pkg/eventbus"
)

type TaxonomyService struct {
	repo      taxonomy.Repository
	publisher eventbus.EventBus
}

func NewTaxonomyService(repo taxonomy.Repository, publisher eventbus.EventBus) *TaxonomyService {
	return &TaxonomyService{
		repo:      repo,
		publisher: publisher,
	}
}

func (s *TaxonomyService) ListTypes(ctx context.Context) ([]*taxonomy.PlantType, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) ([]*taxonomy.PlantType, error) {
		return s.repo.ListTypes(txCtx)
	})
}

func (s *TaxonomyService) Snapshot(ctx context.Context) ([]taxonomy.Entry, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) ([]taxonomy.Entry, error) {
		return s.repo.Snapshot(txCtx)
	})
}

// SearchMatch ranks a category or subcategory name against a query.
type SearchMatch struct {
	Type        string `json:"type"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Rank        int    `json:"rank"`
}

// Search fuzzily matches category and subcategory names, best first.
func (s *TaxonomyService) Search(ctx context.Context, query string) ([]SearchMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	entries, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var matches []SearchMatch
	for _, entry := range entries {
		if rank := fuzzy.RankMatchNormalizedFold(query, entry.Category); rank >= 0 {
			matches = append(matches, SearchMatch{
				Type:     entry.Type,
				Category: entry.Category,
				Rank:     rank,
			})
		}
		for _, sub := range entry.Subcategories {
			if rank := fuzzy.RankMatchNormalizedFold(query, sub); rank >= 0 {
				matches = append(matches, SearchMatch{
					Type:        entry.Type,
					Category:    entry.Category,
					Subcategory: sub,
					Rank:        rank,
				})
			}
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Rank < matches[j].Rank
	})
	return matches, nil
}

// CreateCategory finds or creates a category under the named type. The
// plant type must already exist.
func (s *TaxonomyService) CreateCategory(ctx context.Context, typeName, categoryName string) (*taxonomy.PlantCategory, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (*taxonomy.PlantCategory, error) {
		plantType, err := s.repo.GetTypeByName(txCtx, typeName)
		if err != nil {
			return nil, err
		}
		existing, err := s.repo.GetCategoryByName(txCtx, plantType.ID, categoryName)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, taxonomy.ErrCategoryNotFound) {
			return nil, err
		}
		category := &taxonomy.PlantCategory{
			PlantTypeID: plantType.ID,
			Name:        strings.TrimSpace(categoryName),
		}
		if err := s.repo.CreateCategory(txCtx, category); err != nil {
			return nil, err
		}
		s.publisher.Publish(&taxonomy.CategoryCreatedEvent{Category: category})
		return category, nil
	})
}

// CreateSubcategory finds or creates a subcategory, creating the parent
// category first when needed.
func (s *TaxonomyService) CreateSubcategory(ctx context.Context, typeName, categoryName, subcategoryName string) (*taxonomy.PlantSubcategory, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (*taxonomy.PlantSubcategory, error) {
		category, err := s.CreateCategory(txCtx, typeName, categoryName)
		if err != nil {
			return nil, err
		}
		existing, err := s.repo.GetSubcategoryByName(txCtx, category.ID, subcategoryName)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, taxonomy.ErrSubcategoryNotFound) {
			return nil, err
		}
		subcategory := &taxonomy.PlantSubcategory{
			PlantCategoryID: category.ID,
			Name:            strings.TrimSpace(subcategoryName),
		}
		if err := s.repo.CreateSubcategory(txCtx, subcategory); err != nil {
			return nil, err
		}
		s.publisher.Publish(&taxonomy.SubcategoryCreatedEvent{Subcategory: subcategory})
		return subcategory, nil
	})
}
