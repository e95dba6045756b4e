package services

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/importrow"
	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/seedimport"
	"github.com/verdantlabs/seedbank/pkg/composables"
)

// ModifyParams carries the reviewer's corrected classification. Blank
// fields keep the row's current value.
type ModifyParams struct {
	PlantType   string
	Category    string
	Subcategory string
	Source      string
}

// ReviewService applies per-row reviewer decisions between the mapping
// and execute stages.
type ReviewService struct {
	imports seedimport.Repository
	rows    importrow.Repository
}

func NewReviewService(imports seedimport.Repository, rows importrow.Repository) *ReviewService {
	return &ReviewService{imports: imports, rows: rows}
}

func (s *ReviewService) Accept(ctx context.Context, rowID uint) (*importrow.ImportRow, error) {
	return s.decide(ctx, rowID, func(row *importrow.ImportRow) error {
		row.MappingStatus = importrow.MappingAccepted
		return nil
	})
}

func (s *ReviewService) Reject(ctx context.Context, rowID uint) (*importrow.ImportRow, error) {
	return s.decide(ctx, rowID, func(row *importrow.ImportRow) error {
		row.MappingStatus = importrow.MappingRejected
		return nil
	})
}

func (s *ReviewService) Modify(ctx context.Context, rowID uint, params ModifyParams) (*importrow.ImportRow, error) {
	return s.decide(ctx, rowID, func(row *importrow.ImportRow) error {
		if v := strings.TrimSpace(params.PlantType); v != "" {
			row.MappedPlantTypeName = v
		}
		if v := strings.TrimSpace(params.Category); v != "" {
			row.MappedCategoryName = v
		}
		if v := strings.TrimSpace(params.Subcategory); v != "" {
			row.MappedSubcategoryName = v
		}
		if v := strings.TrimSpace(params.Source); v != "" {
			row.MappedSourceName = v
		}
		if row.MappedPlantTypeName == "" || row.MappedCategoryName == "" {
			return errors.New("modified row needs a plant type and a category")
		}
		row.MappingStatus = importrow.MappingModified
		return nil
	})
}

func (s *ReviewService) decide(ctx context.Context, rowID uint, apply func(*importrow.ImportRow) error) (*importrow.ImportRow, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (*importrow.ImportRow, error) {
		row, err := s.rows.GetByID(txCtx, rowID)
		if err != nil {
			return nil, err
		}
		imp, err := s.imports.GetByID(txCtx, row.ImportID)
		if err != nil {
			return nil, err
		}
		// Decisions are only meaningful between mapping and execution.
		if imp.Status != seedimport.StatusMapped {
			return nil, errors.Errorf("import %d is %s, rows are reviewable only when mapped", imp.ID, imp.Status)
		}
		if err := apply(row); err != nil {
			return nil, err
		}
		if err := s.rows.Update(txCtx, row); err != nil {
			return nil, err
		}
		return row, nil
	})
}
