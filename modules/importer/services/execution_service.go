package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/seedpurchase"
	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/seedsource"
	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/taxonomy"
	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/importrow"
	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/seedimport"
	"github.com/verdantlabs/seedbank/pkg/composables"
	"github.com/verdantlabs/seedbank/pkg/eventbus"
)

// progressEvery is how many executed rows pass between progress events.
const progressEvery = 10

type ExecutionService struct {
	imports   seedimport.Repository
	rows      importrow.Repository
	taxonomy  taxonomy.Repository
	sources   seedsource.Repository
	purchases seedpurchase.Repository
	publisher eventbus.EventBus
	log       *logrus.Logger
}

func NewExecutionService(
	imports seedimport.Repository,
	rows importrow.Repository,
	taxonomyRepo taxonomy.Repository,
	sources seedsource.Repository,
	purchases seedpurchase.Repository,
	publisher eventbus.EventBus,
	log *logrus.Logger,
) *ExecutionService {
	return &ExecutionService{
		imports:   imports,
		rows:      rows,
		taxonomy:  taxonomyRepo,
		sources:   sources,
		purchases: purchases,
		publisher: publisher,
		log:       log,
	}
}

// Execute commits every eligible row into the catalog inside a single
// transaction. Any row error aborts the whole run, so the catalog never
// carries a partial import.
func (s *ExecutionService) Execute(ctx context.Context, importID uint) error {
	claimed, err := composables.InTxResult(ctx, func(txCtx context.Context) (bool, error) {
		return s.imports.TransitionStatus(txCtx, importID, seedimport.StatusMapped, seedimport.StatusExecuting)
	})
	if err != nil {
		return err
	}
	if !claimed {
		s.log.WithField("import_id", importID).Info("execution skipped, import not mapped")
		return nil
	}
	s.notify(ctx, importID)

	report := &seedimport.Report{}
	if err := s.execute(ctx, importID, report); err != nil {
		if failErr := composables.InTx(ctx, func(txCtx context.Context) error {
			imp, getErr := s.imports.GetByID(txCtx, importID)
			if getErr != nil {
				return getErr
			}
			imp.Status = seedimport.StatusFailed
			imp.ErrorMessage = err.Error()
			imp.Report = report
			return s.imports.Update(txCtx, imp)
		}); failErr != nil {
			s.log.WithError(failErr).WithField("import_id", importID).Error("failed to mark import failed")
		}
		s.notify(ctx, importID)
		return err
	}
	return nil
}

func (s *ExecutionService) execute(ctx context.Context, importID uint, report *seedimport.Report) error {
	imp, err := composables.InTxResult(ctx, func(txCtx context.Context) (*seedimport.Import, error) {
		return s.imports.GetByID(txCtx, importID)
	})
	if err != nil {
		return err
	}
	imp.ExecutedRows = 0
	imp.Report = nil

	err = composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.imports.Update(txCtx, imp); err != nil {
			return err
		}
		eligible, err := s.rows.ListEligible(txCtx, importID)
		if err != nil {
			return err
		}
		for _, row := range eligible {
			if err := s.executeRow(txCtx, row, report); err != nil {
				report.RowsSkipped++
				report.Errors = append(report.Errors, seedimport.ReportError{
					RowID:       row.ID,
					RowNumber:   row.RowNumber,
					SheetName:   row.SheetName,
					VarietyName: row.VarietyName,
					Error:       err.Error(),
				})
				return errors.Wrapf(err, "row %d on %s", row.RowNumber, row.SheetName)
			}
			imp.ExecutedRows++
			if imp.ExecutedRows%progressEvery == 0 {
				if err := s.imports.Update(txCtx, imp); err != nil {
					return err
				}
				s.notifyImport(imp)
			}
		}
		imp.Status = seedimport.StatusExecuted
		imp.Report = report
		return s.imports.Update(txCtx, imp)
	})
	if err != nil {
		return err
	}
	s.notifyImport(imp)
	return nil
}

// executeRow resolves one reviewed row into catalog records, creating
// missing categories, subcategories, varieties and sources on the way.
// Plant types are operator-seeded; an unknown type fails the row.
func (s *ExecutionService) executeRow(ctx context.Context, row *importrow.ImportRow, report *seedimport.Report) error {
	plantType, err := s.taxonomy.GetTypeByName(ctx, row.MappedPlantTypeName)
	if err != nil {
		if errors.Is(err, taxonomy.ErrTypeNotFound) {
			return errors.Errorf("unknown plant type %q", row.MappedPlantTypeName)
		}
		return err
	}

	category, err := s.resolveCategory(ctx, plantType.ID, row.MappedCategoryName, report)
	if err != nil {
		return err
	}

	var subcategoryID *uint
	if strings.TrimSpace(row.MappedSubcategoryName) != "" {
		subcategory, err := s.resolveSubcategory(ctx, category.ID, row.MappedSubcategoryName, report)
		if err != nil {
			return err
		}
		subcategoryID = &subcategory.ID
	}

	variety, err := s.resolveVariety(ctx, category.ID, subcategoryID, row, report)
	if err != nil {
		return err
	}

	source, err := s.resolveSource(ctx, row, report)
	if err != nil {
		return err
	}

	year := time.Now().Year()
	if row.YearPurchased != nil {
		year = *row.YearPurchased
	}
	purchase := &seedpurchase.SeedPurchase{
		PlantVarietyID:  variety.ID,
		SeedSourceID:    source.ID,
		YearPurchased:   year,
		LotNumber:       row.LotNumber,
		Cost:            row.Cost,
		Quantity:        row.Quantity,
		GerminationRate: row.GerminationRate,
		Notes:           row.Notes,
		UsedUp:          row.DetectedUsedUp,
	}
	if row.DetectedUsedUp {
		now := time.Now()
		purchase.UsedUpAt = &now
	}
	if err := s.purchases.Create(ctx, purchase); err != nil {
		return err
	}
	report.PurchasesCreated++
	return nil
}

func (s *ExecutionService) resolveCategory(ctx context.Context, plantTypeID uint, name string, report *seedimport.Report) (*taxonomy.PlantCategory, error) {
	category, err := s.taxonomy.GetCategoryByName(ctx, plantTypeID, name)
	if err == nil {
		return category, nil
	}
	if !errors.Is(err, taxonomy.ErrCategoryNotFound) {
		return nil, err
	}
	category = &taxonomy.PlantCategory{PlantTypeID: plantTypeID, Name: strings.TrimSpace(name)}
	if err := s.taxonomy.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	report.CategoriesCreated++
	s.publisher.Publish(&taxonomy.CategoryCreatedEvent{Category: category})
	return category, nil
}

func (s *ExecutionService) resolveSubcategory(ctx context.Context, categoryID uint, name string, report *seedimport.Report) (*taxonomy.PlantSubcategory, error) {
	subcategory, err := s.taxonomy.GetSubcategoryByName(ctx, categoryID, name)
	if err == nil {
		return subcategory, nil
	}
	if !errors.Is(err, taxonomy.ErrSubcategoryNotFound) {
		return nil, err
	}
	subcategory = &taxonomy.PlantSubcategory{PlantCategoryID: categoryID, Name: strings.TrimSpace(name)}
	if err := s.taxonomy.CreateSubcategory(ctx, subcategory); err != nil {
		return nil, err
	}
	report.SubcategoriesCreated++
	s.publisher.Publish(&taxonomy.SubcategoryCreatedEvent{Subcategory: subcategory})
	return subcategory, nil
}

// resolveVariety finds or creates the variety under the mapped
// category. An existing variety without a subcategory gets the mapped
// one backfilled.
func (s *ExecutionService) resolveVariety(ctx context.Context, categoryID uint, subcategoryID *uint, row *importrow.ImportRow, report *seedimport.Report) (*taxonomy.PlantVariety, error) {
	name := strings.TrimSpace(row.VarietyName)
	if name == "" {
		name = strings.TrimSpace(row.MappedCategoryName)
	}
	variety, err := s.taxonomy.GetVarietyByName(ctx, categoryID, name)
	if err == nil {
		if variety.PlantSubcategoryID == nil && subcategoryID != nil {
			variety.PlantSubcategoryID = subcategoryID
			if err := s.taxonomy.UpdateVariety(ctx, variety); err != nil {
				return nil, err
			}
		}
		return variety, nil
	}
	if !errors.Is(err, taxonomy.ErrVarietyNotFound) {
		return nil, err
	}
	variety = &taxonomy.PlantVariety{
		PlantCategoryID:    categoryID,
		PlantSubcategoryID: subcategoryID,
		Name:               name,
		Notes:              row.Notes,
	}
	if err := s.taxonomy.CreateVariety(ctx, variety); err != nil {
		return nil, err
	}
	report.PlantsCreated++
	return variety, nil
}

// resolveSource finds or creates the row's source, preferring the
// mapped name over the raw cell and falling back to the shared
// placeholder when both are blank.
func (s *ExecutionService) resolveSource(ctx context.Context, row *importrow.ImportRow, report *seedimport.Report) (*seedsource.SeedSource, error) {
	name := strings.TrimSpace(row.MappedSourceName)
	if name == "" {
		name = strings.TrimSpace(row.SeedSourceName)
	}
	if name == "" {
		name = seedsource.FallbackName
	}
	source, err := s.sources.GetByName(ctx, name)
	if err == nil {
		return source, nil
	}
	if !errors.Is(err, seedsource.ErrNotFound) {
		return nil, err
	}
	source = &seedsource.SeedSource{Name: name}
	if err := s.sources.Create(ctx, source); err != nil {
		return nil, err
	}
	report.SourcesCreated++
	return source, nil
}

func (s *ExecutionService) notify(ctx context.Context, importID uint) {
	imp, err := composables.InTxResult(ctx, func(txCtx context.Context) (*seedimport.Import, error) {
		return s.imports.GetByID(txCtx, importID)
	})
	if err != nil {
		s.log.WithError(err).WithField("import_id", importID).Warn("failed to load import for progress event")
		return
	}
	s.notifyImport(imp)
}

func (s *ExecutionService) notifyImport(imp *seedimport.Import) {
	s.publisher.Publish(&seedimport.ProgressEvent{Import: imp})
}
