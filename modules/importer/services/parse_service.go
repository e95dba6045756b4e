package services

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/importrow"
	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/seedimport"
	"github.com/verdantlabs/seedbank/modules/importer/infrastructure/workbook"
	"github.com/verdantlabs/seedbank/pkg/composables"
	"github.com/verdantlabs/seedbank/pkg/eventbus"
)

type ParseService struct {
	imports   seedimport.Repository
	rows      importrow.Repository
	publisher eventbus.EventBus
	log       *logrus.Logger
}

func NewParseService(
	imports seedimport.Repository,
	rows importrow.Repository,
	publisher eventbus.EventBus,
	log *logrus.Logger,
) *ParseService {
	return &ParseService{
		imports:   imports,
		rows:      rows,
		publisher: publisher,
		log:       log,
	}
}

// Parse runs the parse stage for one import. Entry is guarded by a
// status compare-and-swap, so a redelivered job against an import that
// already moved on is a no-op.
func (s *ParseService) Parse(ctx context.Context, importID uint) error {
	claimed, err := composables.InTxResult(ctx, func(txCtx context.Context) (bool, error) {
		return s.imports.TransitionStatus(txCtx, importID, seedimport.StatusPending, seedimport.StatusParsing)
	})
	if err != nil {
		return err
	}
	if !claimed {
		s.log.WithField("import_id", importID).Info("parse skipped, import not pending")
		return nil
	}

	if err := s.parse(ctx, importID); err != nil {
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

func (s *ParseService) parse(ctx context.Context, importID uint) error {
	imp, err := composables.InTxResult(ctx, func(txCtx context.Context) (*seedimport.Import, error) {
		return s.imports.GetByID(txCtx, importID)
	})
	if err != nil {
		return err
	}

	wb, err := workbook.Open(imp.StoredPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := wb.Close(); closeErr != nil {
			s.log.WithError(closeErr).Warn("failed to close workbook")
		}
	}()

	sheets := wb.SheetNames()
	if len(sheets) == 0 {
		return errors.New("workbook has no recognized sheets")
	}

	// Re-parsing replaces earlier rows instead of mixing generations.
	if err := composables.InTx(ctx, func(txCtx context.Context) error {
		imp.SheetNames = sheets
		imp.TotalRows = 0
		imp.ParsedRows = 0
		imp.MappedRows = 0
		imp.ExecutedRows = 0
		imp.Report = nil
		if err := s.imports.Update(txCtx, imp); err != nil {
			return err
		}
		return s.rows.DeleteByImportID(txCtx, importID)
	}); err != nil {
		return err
	}
	s.notifyImport(imp)

	for _, sheet := range sheets {
		parsed, err := wb.ParseSheet(sheet)
		if err != nil {
			return err
		}
		if err := composables.InTx(ctx, func(txCtx context.Context) error {
			for _, row := range parsed {
				row.ImportID = importID
				if err := s.rows.Create(txCtx, row); err != nil {
					return err
				}
			}
			imp.TotalRows += len(parsed)
			imp.ParsedRows += len(parsed)
			return s.imports.Update(txCtx, imp)
		}); err != nil {
			return err
		}
		s.notifyImport(imp)
	}

	done, err := composables.InTxResult(ctx, func(txCtx context.Context) (bool, error) {
		return s.imports.TransitionStatus(txCtx, importID, seedimport.StatusParsing, seedimport.StatusParsed)
	})
	if err != nil {
		return err
	}
	if !done {
		return errors.Errorf("import %d left parsing state mid-run", importID)
	}
	imp.Status = seedimport.StatusParsed
	s.notifyImport(imp)
	return nil
}

func (s *ParseService) notify(ctx context.Context, importID uint) {
	imp, err := composables.InTxResult(ctx, func(txCtx context.Context) (*seedimport.Import, error) {
		return s.imports.GetByID(txCtx, importID)
	})
	if err != nil {
		s.log.WithError(err).WithField("import_id", importID).Warn("failed to load import for progress event")
		return
	}
	s.notifyImport(imp)
}

func (s *ParseService) notifyImport(imp *seedimport.Import) {
	s.publisher.Publish(&seedimport.ProgressEvent{Import: imp})
}
