package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/seedsource"
	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/taxonomy"
	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/importrow"
	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/seedimport"
	"github.com/verdantlabs/seedbank/modules/importer/infrastructure/classify"
	"github.com/verdantlabs/seedbank/pkg/composables"
	"github.com/verdantlabs/seedbank/pkg/eventbus"
)

type MappingService struct {
	imports    seedimport.Repository
	rows       importrow.Repository
	taxonomy   taxonomy.Repository
	sources    seedsource.Repository
	classifier classify.Classifier
	publisher  eventbus.EventBus
	batchSize  int
	log        *logrus.Logger
}

func NewMappingService(
	imports seedimport.Repository,
	rows importrow.Repository,
	taxonomyRepo taxonomy.Repository,
	sources seedsource.Repository,
	classifier classify.Classifier,
	publisher eventbus.EventBus,
	batchSize int,
	log *logrus.Logger,
) *MappingService {
	return &MappingService{
		imports:    imports,
		rows:       rows,
		taxonomy:   taxonomyRepo,
		sources:    sources,
		classifier: classifier,
		publisher:  publisher,
		batchSize:  batchSize,
		log:        log,
	}
}

// Map classifies every unmapped row of the import in batches, then
// marks within-import duplicates. Entry is guarded by a status
// compare-and-swap so redelivered jobs no-op.
func (s *MappingService) Map(ctx context.Context, importID uint) error {
	claimed, err := composables.InTxResult(ctx, func(txCtx context.Context) (bool, error) {
		return s.imports.TransitionStatus(txCtx, importID, seedimport.StatusParsed, seedimport.StatusMapping)
	})
	if err != nil {
		return err
	}
	if !claimed {
		s.log.WithField("import_id", importID).Info("mapping skipped, import not parsed")
		return nil
	}
	s.notify(ctx, importID)

	if err := s.mapRows(ctx, importID); err != nil {
		if failErr := composables.InTx(ctx, func(txCtx context.Context) error {
			return s.imports.SetFailed(txCtx, importID, err.Error())
		}); failErr != nil {
			s.log.WithError(failErr).WithField("import_id", importID).Error("failed to mark import failed")
		}
		s.notify(ctx, importID)
		return err
	}
	return nil
}

func (s *MappingService) mapRows(ctx context.Context, importID uint) error {
	imp, err := composables.InTxResult(ctx, func(txCtx context.Context) (*seedimport.Import, error) {
		return s.imports.GetByID(txCtx, importID)
	})
	if err != nil {
		return err
	}

	// Taxonomy and source snapshots are built once per run; batches within
	// a run all see the same context.
	entries, names, err := s.snapshot(ctx)
	if err != nil {
		return err
	}

	unmappedStatus := importrow.MappingUnmapped
	unmapped, err := composables.InTxResult(ctx, func(txCtx context.Context) ([]*importrow.ImportRow, error) {
		return s.rows.List(txCtx, &importrow.FindParams{
			ImportID:      importID,
			MappingStatus: &unmappedStatus,
		})
	})
	if err != nil {
		return err
	}

	for start := 0; start < len(unmapped); start += s.batchSize {
		end := start + s.batchSize
		if end > len(unmapped) {
			end = len(unmapped)
		}
		batch := unmapped[start:end]

		applied, err := s.classifyBatch(ctx, batch, entries, names)
		if err != nil {
			return err
		}

		if err := composables.InTx(ctx, func(txCtx context.Context) error {
			imp.MappedRows += applied
			return s.imports.Update(txCtx, imp)
		}); err != nil {
			return err
		}
		s.notifyImport(imp)
	}

	if err := s.markDuplicates(ctx, importID); err != nil {
		return err
	}

	done, err := composables.InTxResult(ctx, func(txCtx context.Context) (bool, error) {
		return s.imports.TransitionStatus(txCtx, importID, seedimport.StatusMapping, seedimport.StatusMapped)
	})
	if err != nil {
		return err
	}
	if !done {
		return errors.Errorf("import %d left mapping state mid-run", importID)
	}
	imp.Status = seedimport.StatusMapped
	s.notifyImport(imp)
	return nil
}

func (s *MappingService) snapshot(ctx context.Context) ([]taxonomy.Entry, []string, error) {
	var entries []taxonomy.Entry
	var names []string
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		var err error
		entries, err = s.taxonomy.Snapshot(txCtx)
		if err != nil {
			return err
		}
		names, err = s.sources.Names(txCtx)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return entries, names, nil
}

// classifyBatch submits one batch and applies the decoded results. Rows
// the response skipped stay unmapped; the decoded entries carry batch
// indexes, never row ids.
func (s *MappingService) classifyBatch(
	ctx context.Context,
	batch []*importrow.ImportRow,
	entries []taxonomy.Entry,
	names []string,
) (int, error) {
	inputs := make([]classify.RowInput, len(batch))
	for i, row := range batch {
		inputs[i] = classify.RowInput{
			Index:       i,
			VarietyName: row.VarietyName,
			SourceName:  row.SeedSourceName,
			Sheet:       row.SheetName,
			Year:        row.YearPurchased,
			Notes:       row.Notes,
		}
	}

	results, raw, err := s.classifier.Classify(ctx, classify.Request{
		Rows:             inputs,
		ExistingTaxonomy: entries,
		ExistingSources:  names,
	})
	if err != nil {
		return 0, err
	}

	applied := 0
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		for _, result := range results {
			row := batch[result.Index]
			row.MappedPlantTypeName = result.PlantType
			row.MappedCategoryName = result.Category
			if result.Subcategory != nil {
				row.MappedSubcategoryName = *result.Subcategory
			}
			row.MappedSourceName = result.NormalizedSource
			if strings.TrimSpace(row.MappedSourceName) == "" {
				row.MappedSourceName = row.SeedSourceName
			}
			confidence := result.Confidence
			row.MappingConfidence = &confidence
			if result.Notes != nil {
				row.MappingNotes = *result.Notes
			}
			row.MappingStatus = importrow.MappingAIMapped
			row.RawClassification = raw
			if err := s.rows.Update(txCtx, row); err != nil {
				return err
			}
			applied++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

// markDuplicates flags repeated varieties within one import. The first
// occurrence in identity order stays canonical, later ones point at it.
func (s *MappingService) markDuplicates(ctx context.Context, importID uint) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		scan, err := s.rows.ListForDuplicateScan(txCtx, importID)
		if err != nil {
			return err
		}
		canonical := make(map[string]*importrow.ImportRow, len(scan))
		for _, row := range scan {
			key := duplicateKey(row)
			if key == "" {
				continue
			}
			first, seen := canonical[key]
			if !seen {
				canonical[key] = row
				continue
			}
			row.DuplicateOfRowID = &first.ID
			note := fmt.Sprintf("duplicate of %s row %d", first.SheetName, first.RowNumber)
			if row.MappingNotes == "" {
				row.MappingNotes = note
			} else {
				row.MappingNotes += "; " + note
			}
			if err := s.rows.Update(txCtx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

// duplicateKey normalizes the variety name for comparison, falling back
// to the mapped category when the name cell was blank.
func duplicateKey(row *importrow.ImportRow) string {
	name := row.VarietyName
	if strings.TrimSpace(name) == "" {
		name = row.MappedCategoryName
	}
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func (s *MappingService) notify(ctx context.Context, importID uint) {
	imp, err := composables.InTxResult(ctx, func(txCtx context.Context) (*seedimport.Import, error) {
		return s.imports.GetByID(txCtx, importID)
	})
	if err != nil {
		s.log.WithError(err).WithField("import_id", importID).Warn("failed to load import for progress event")
		return
	}
	s.notifyImport(imp)
}

func (s *MappingService) notifyImport(imp *seedimport.Import) {
	s.publisher.Publish(&seedimport.ProgressEvent{Import: imp})
}
