package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Import struct {
	ID           uint
	Filename     string
	StoredPath   string
	Status       string
	SheetNames   []string
	TotalRows    int
	ParsedRows   int
	MappedRows   int
	ExecutedRows int
	ErrorMessage *string
	Report       []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ImportRow struct {
	ID        uint
	ImportID  uint
	SheetName string
	RowNumber int

	VarietyName         *string
	SeedSourceName      *string
	YearPurchased       *int
	RawDateValue        *string
	GerminationRate     *decimal.Decimal
	RawGerminationValue *string
	LotNumber           *string
	Cost                *decimal.Decimal
	Quantity            *string
	Notes               *string
	DetectedUsedUp      bool
	HasGrayText         bool
	RawData             []byte
	ParseWarnings       []string

	MappedPlantTypeName   *string
	MappedCategoryName    *string
	MappedSubcategoryName *string
	MappedSourceName      *string
	MappingStatus         string
	MappingConfidence     *float64
	MappingNotes          *string
	RawClassification     []byte
	DuplicateOfRowID      *uint

	CreatedAt time.Time
	UpdatedAt time.Time
}
