package controllers

import (
	"time"

	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/importrow"
	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/seedimport"
)

type importResponse struct {
	ID           uint               `json:"id"`
	Filename     string             `json:"filename"`
	Status       string             `json:"status"`
	SheetNames   []string           `json:"sheet_names"`
	TotalRows    int                `json:"total_rows"`
	ParsedRows   int                `json:"parsed_rows"`
	MappedRows   int                `json:"mapped_rows"`
	ExecutedRows int                `json:"executed_rows"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Report       *seedimport.Report `json:"report,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func toImportResponse(imp *seedimport.Import) *importResponse {
	return &importResponse{
		ID:           imp.ID,
		Filename:     imp.Filename,
		Status:       string(imp.Status),
		SheetNames:   imp.SheetNames,
		TotalRows:    imp.TotalRows,
		ParsedRows:   imp.ParsedRows,
		MappedRows:   imp.MappedRows,
		ExecutedRows: imp.ExecutedRows,
		ErrorMessage: imp.ErrorMessage,
		Report:       imp.Report,
		CreatedAt:    imp.CreatedAt,
		UpdatedAt:    imp.UpdatedAt,
	}
}

type rowResponse struct {
	ID        uint   `json:"id"`
	SheetName string `json:"sheet_name"`
	RowNumber int    `json:"row_number"`

	VarietyName     string            `json:"variety_name"`
	SeedSourceName  string            `json:"seed_source_name"`
	YearPurchased   *int              `json:"year_purchased"`
	GerminationRate *string           `json:"germination_rate"`
	LotNumber       string            `json:"lot_number,omitempty"`
	Cost            *string           `json:"cost"`
	Quantity        string            `json:"quantity,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	DetectedUsedUp  bool              `json:"detected_used_up"`
	RawData         map[string]string `json:"raw_data"`
	ParseWarnings   []string          `json:"parse_warnings,omitempty"`

	MappedPlantType   string   `json:"mapped_plant_type,omitempty"`
	MappedCategory    string   `json:"mapped_category,omitempty"`
	MappedSubcategory string   `json:"mapped_subcategory,omitempty"`
	MappedSource      string   `json:"mapped_source,omitempty"`
	MappingStatus     string   `json:"mapping_status"`
	MappingConfidence *float64 `json:"mapping_confidence"`
	MappingNotes      string   `json:"mapping_notes,omitempty"`
	DuplicateOfRowID  *uint    `json:"duplicate_of_row_id,omitempty"`
}

func toRowResponse(row *importrow.ImportRow) *rowResponse {
	out := &rowResponse{
		ID:                row.ID,
		SheetName:         row.SheetName,
		RowNumber:         row.RowNumber,
		VarietyName:       row.VarietyName,
		SeedSourceName:    row.SeedSourceName,
		YearPurchased:     row.YearPurchased,
		LotNumber:         row.LotNumber,
		Quantity:          row.Quantity,
		Notes:             row.Notes,
		DetectedUsedUp:    row.DetectedUsedUp,
		RawData:           row.RawData,
		ParseWarnings:     row.ParseWarnings,
		MappedPlantType:   row.MappedPlantTypeName,
		MappedCategory:    row.MappedCategoryName,
		MappedSubcategory: row.MappedSubcategoryName,
		MappedSource:      row.MappedSourceName,
		MappingStatus:     string(row.MappingStatus),
		MappingConfidence: row.MappingConfidence,
		MappingNotes:      row.MappingNotes,
		DuplicateOfRowID:  row.DuplicateOfRowID,
	}
	if row.GerminationRate != nil {
		rate := row.GerminationRate.String()
		out.GerminationRate = &rate
	}
	if row.Cost != nil {
		cost := row.Cost.String()
		out.Cost = &cost
	}
	return out
}
