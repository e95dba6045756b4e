package importrow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("import row not found")

type MappingStatus string

const (
	MappingUnmapped MappingStatus = "unmapped"
	MappingAIMapped MappingStatus = "ai_mapped"
	MappingAccepted MappingStatus = "accepted"
	MappingModified MappingStatus = "modified"
	MappingRejected MappingStatus = "rejected"
)

// ImportRow is one spreadsheet data row. (ImportID, SheetName, RowNumber)
// is unique, which keeps identity stable across re-parses.
type ImportRow struct {
	ID        uint
	ImportID  uint
	SheetName string
	RowNumber int

	VarietyName         string
	SeedSourceName      string
	YearPurchased       *int
	RawDateValue        string
	GerminationRate     *decimal.Decimal
	RawGerminationValue string
	LotNumber           string
	Cost                *decimal.Decimal
	Quantity            string
	Notes               string
	DetectedUsedUp      bool
	HasGrayText         bool
	RawData             map[string]string
	ParseWarnings       []string

	MappedPlantTypeName   string
	MappedCategoryName    string
	MappedSubcategoryName string
	MappedSourceName      string
	MappingStatus         MappingStatus
	MappingConfidence     *float64
	MappingNotes          string
	RawClassification     json.RawMessage
	DuplicateOfRowID      *uint

	CreatedAt time.Time
	UpdatedAt time.Time
}

type FindParams struct {
	ImportID      uint
	MappingStatus *MappingStatus
	Limit         int
	Offset        int
}

type Repository interface {
	Create(ctx context.Context, row *ImportRow) error
	GetByID(ctx context.Context, id uint) (*ImportRow, error)

	// List orders by id ascending, the identity order duplicate
	// detection depends on.
	List(ctx context.Context, params *FindParams) ([]*ImportRow, error)
	Count(ctx context.Context, params *FindParams) (int64, error)

	// ListForDuplicateScan returns every non-rejected row of the import
	// in identity order.
	ListForDuplicateScan(ctx context.Context, importID uint) ([]*ImportRow, error)

	// ListEligible returns accepted or modified rows that are not
	// duplicates, ordered by (sheet_name, row_number).
	ListEligible(ctx context.Context, importID uint) ([]*ImportRow, error)

	Update(ctx context.Context, row *ImportRow) error
	DeleteByImportID(ctx context.Context, importID uint) error
}
