package seedimport

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("import not found")

// Status is the import lifecycle. It only moves forward, except for the
// universal transition into StatusFailed from a running stage.
type Status string

const (
	StatusPending   Status = "pending"
	StatusParsing   Status = "parsing"
	StatusParsed    Status = "parsed"
	StatusMapping   Status = "mapping"
	StatusMapped    Status = "mapped"
	StatusExecuting Status = "executing"
	StatusExecuted  Status = "executed"
	StatusFailed    Status = "failed"
)

var forward = map[Status]Status{
	StatusPending:   StatusParsing,
	StatusParsing:   StatusParsed,
	StatusParsed:    StatusMapping,
	StatusMapping:   StatusMapped,
	StatusMapped:    StatusExecuting,
	StatusExecuting: StatusExecuted,
}

// CanTransitionTo reports whether next is a legal successor of s.
// StatusFailed is reachable only from the three running states.
func (s Status) CanTransitionTo(next Status) bool {
	if next == StatusFailed {
		return s == StatusParsing || s == StatusMapping || s == StatusExecuting
	}
	return forward[s] == next
}

// Running reports whether a stage currently owns the import.
func (s Status) Running() bool {
	return s == StatusParsing || s == StatusMapping || s == StatusExecuting
}

func (s Status) Terminal() bool {
	return s == StatusExecuted
}

// ReportError captures one row that failed during execution.
type ReportError struct {
	RowID       uint   `json:"row_id"`
	RowNumber   int    `json:"row_number"`
	SheetName   string `json:"sheet_name"`
	VarietyName string `json:"variety_name"`
	Error       string `json:"error"`
}

// Report is the execution summary persisted on the import.
type Report struct {
	PlantsCreated        int           `json:"plants_created"`
	CategoriesCreated    int           `json:"categories_created"`
	SubcategoriesCreated int           `json:"subcategories_created"`
	SourcesCreated       int           `json:"sources_created"`
	PurchasesCreated     int           `json:"purchases_created"`
	RowsSkipped          int           `json:"rows_skipped"`
	Errors               []ReportError `json:"errors"`
}

type Import struct {
	ID           uint
	Filename     string
	StoredPath   string
	Status       Status
	SheetNames   []string
	TotalRows    int
	ParsedRows   int
	MappedRows   int
	ExecutedRows int
	ErrorMessage string
	Report       *Report
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type FindParams struct {
	Status *Status
	Limit  int
	Offset int
}

type Repository interface {
	Create(ctx context.Context, imp *Import) error
	GetByID(ctx context.Context, id uint) (*Import, error)
	List(ctx context.Context, params *FindParams) ([]*Import, error)
	Update(ctx context.Context, imp *Import) error

	// TransitionStatus is a compare-and-swap on status. It returns false
	// without error when the import is not in the expected state, which
	// is how concurrent duplicate stage runs lose the race.
	TransitionStatus(ctx context.Context, id uint, from, to Status) (bool, error)

	SetFailed(ctx context.Context, id uint, message string) error
}
