package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/importrow"
	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/seedimport"
	"github.com/verdantlabs/seedbank/modules/importer/infrastructure/persistence/models"
)

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toDomainImport(row *models.Import) (*seedimport.Import, error) {
	var report *seedimport.Report
	if len(row.Report) > 0 {
		report = &seedimport.Report{}
		if err := json.Unmarshal(row.Report, report); err != nil {
			return nil, fmt.Errorf("failed to decode import report: %w", err)
		}
	}
	return &seedimport.Import{
		ID:           row.ID,
		Filename:     row.Filename,
		StoredPath:   row.StoredPath,
		Status:       seedimport.Status(row.Status),
		SheetNames:   row.SheetNames,
		TotalRows:    row.TotalRows,
		ParsedRows:   row.ParsedRows,
		MappedRows:   row.MappedRows,
		ExecutedRows: row.ExecutedRows,
		ErrorMessage: derefString(row.ErrorMessage),
		Report:       report,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

func reportToDB(report *seedimport.Report) ([]byte, error) {
	if report == nil {
		return nil, nil
	}
	return json.Marshal(report)
}

func toDomainImportRow(row *models.ImportRow) (*importrow.ImportRow, error) {
	var rawData map[string]string
	if len(row.RawData) > 0 {
		if err := json.Unmarshal(row.RawData, &rawData); err != nil {
			return nil, fmt.Errorf("failed to decode raw_data: %w", err)
		}
	}
	return &importrow.ImportRow{
		ID:        row.ID,
		ImportID:  row.ImportID,
		SheetName: row.SheetName,
		RowNumber: row.RowNumber,

		VarietyName:         derefString(row.VarietyName),
		SeedSourceName:      derefString(row.SeedSourceName),
		YearPurchased:       row.YearPurchased,
		RawDateValue:        derefString(row.RawDateValue),
		GerminationRate:     row.GerminationRate,
		RawGerminationValue: derefString(row.RawGerminationValue),
		LotNumber:           derefString(row.LotNumber),
		Cost:                row.Cost,
		Quantity:            derefString(row.Quantity),
		Notes:               derefString(row.Notes),
		DetectedUsedUp:      row.DetectedUsedUp,
		HasGrayText:         row.HasGrayText,
		RawData:             rawData,
		ParseWarnings:       row.ParseWarnings,

		MappedPlantTypeName:   derefString(row.MappedPlantTypeName),
		MappedCategoryName:    derefString(row.MappedCategoryName),
		MappedSubcategoryName: derefString(row.MappedSubcategoryName),
		MappedSourceName:      derefString(row.MappedSourceName),
		MappingStatus:         importrow.MappingStatus(row.MappingStatus),
		MappingConfidence:     row.MappingConfidence,
		MappingNotes:          derefString(row.MappingNotes),
		RawClassification:     row.RawClassification,
		DuplicateOfRowID:      row.DuplicateOfRowID,

		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func rawDataToDB(rawData map[string]string) ([]byte, error) {
	if len(rawData) == 0 {
		return nil, nil
	}
	return json.Marshal(rawData)
}
