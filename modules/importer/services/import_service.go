package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/importrow"
	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/seedimport"
	"github.com/verdantlabs/seedbank/pkg/composables"
	"github.com/verdantlabs/seedbank/pkg/configuration"
	"github.com/verdantlabs/seedbank/pkg/eventbus"
	"github.com/verdantlabs/seedbank/pkg/jobqueue"
)

const (
	TopicParse   = "import.parse"
	TopicMap     = "import.map"
	TopicExecute = "import.execute"
)

// JobsTable is where pipeline stage jobs are queued.
var JobsTable = pgx.Identifier{"import_jobs"}

type jobPayload struct {
	ImportID uint `json:"import_id"`
}

func encodeJobPayload(importID uint) []byte {
	payload, _ := json.Marshal(jobPayload{ImportID: importID})
	return payload
}

func DecodeJobPayload(payload []byte) (uint, error) {
	var p jobPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, errors.Wrap(err, "malformed job payload")
	}
	if p.ImportID == 0 {
		return 0, errors.New("job payload has no import_id")
	}
	return p.ImportID, nil
}

type ImportService struct {
	imports   seedimport.Repository
	rows      importrow.Repository
	publisher eventbus.EventBus
	jobs      jobqueue.Publisher
}

func NewImportService(
	imports seedimport.Repository,
	rows importrow.Repository,
	publisher eventbus.EventBus,
	jobs jobqueue.Publisher,
) *ImportService {
	return &ImportService{
		imports:   imports,
		rows:      rows,
		publisher: publisher,
		jobs:      jobs,
	}
}

// Upload stores the workbook on disk, creates the import in pending
// state and queues the parse stage. The job insert shares the import's
// transaction, so a visible import always has its parse job queued.
func (s *ImportService) Upload(ctx context.Context, filename string, file io.Reader) (*seedimport.Import, error) {
	conf := configuration.Use()
	if err := os.MkdirAll(conf.UploadsPath, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create uploads directory")
	}
	storedPath := filepath.Join(conf.UploadsPath, uuid.New().String()+filepath.Ext(filename))
	dst, err := os.Create(storedPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to store upload")
	}
	if _, err := io.Copy(dst, file); err != nil {
		_ = dst.Close()
		_ = os.Remove(storedPath)
		return nil, errors.Wrap(err, "failed to store upload")
	}
	if err := dst.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to store upload")
	}

	imp, err := composables.InTxResult(ctx, func(txCtx context.Context) (*seedimport.Import, error) {
		imp := &seedimport.Import{
			Filename:   filename,
			StoredPath: storedPath,
			Status:     seedimport.StatusPending,
		}
		if err := s.imports.Create(txCtx, imp); err != nil {
			return nil, err
		}
		if err := s.enqueue(txCtx, imp.ID, TopicParse); err != nil {
			return nil, err
		}
		return imp, nil
	})
	if err != nil {
		_ = os.Remove(storedPath)
		return nil, err
	}

	s.publisher.Publish(&seedimport.CreatedEvent{Import: imp})
	return imp, nil
}

func (s *ImportService) GetByID(ctx context.Context, id uint) (*seedimport.Import, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (*seedimport.Import, error) {
		return s.imports.GetByID(txCtx, id)
	})
}

func (s *ImportService) List(ctx context.Context, params *seedimport.FindParams) ([]*seedimport.Import, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) ([]*seedimport.Import, error) {
		return s.imports.List(txCtx, params)
	})
}

func (s *ImportService) Rows(ctx context.Context, params *importrow.FindParams) ([]*importrow.ImportRow, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) ([]*importrow.ImportRow, error) {
		return s.rows.List(txCtx, params)
	})
}

// TriggerMapping queues the mapping stage for an import that finished
// parsing.
func (s *ImportService) TriggerMapping(ctx context.Context, importID uint) error {
	return s.triggerStage(ctx, importID, seedimport.StatusParsed, TopicMap)
}

// TriggerExecution queues the execute stage for a reviewed import.
func (s *ImportService) TriggerExecution(ctx context.Context, importID uint) error {
	return s.triggerStage(ctx, importID, seedimport.StatusMapped, TopicExecute)
}

func (s *ImportService) triggerStage(ctx context.Context, importID uint, expected seedimport.Status, topic string) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		imp, err := s.imports.GetByID(txCtx, importID)
		if err != nil {
			return err
		}
		// Re-running a stage on a failed import is an explicit caller
		// decision; the status is rewound so the stage entry CAS can
		// claim it again.
		if imp.Status == seedimport.StatusFailed {
			imp.Status = expected
			imp.ErrorMessage = ""
			if err := s.imports.Update(txCtx, imp); err != nil {
				return err
			}
		}
		if imp.Status != expected {
			return fmt.Errorf("import %d is %s, expected %s", importID, imp.Status, expected)
		}
		return s.enqueue(txCtx, importID, topic)
	})
}

func (s *ImportService) enqueue(ctx context.Context, importID uint, topic string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = s.jobs.Enqueue(ctx, tx, JobsTable, jobqueue.Message{
		Topic:   topic,
		Payload: encodeJobPayload(importID),
		EventID: uuid.New(),
	})
	return err
}
