package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/importrow"
	"github.com/verdantlabs/seedbank/modules/importer/infrastructure/persistence/models"
	"github.com/verdantlabs/seedbank/pkg/composables"
	"github.com/verdantlabs/seedbank/pkg/repo"
)

const importRowColumns = `id, import_id, sheet_name, row_number, variety_name, seed_source_name,
	year_purchased, raw_date_value, germination_rate, raw_germination_value, lot_number, cost,
	quantity, notes, detected_used_up, has_gray_text, raw_data, parse_warnings,
	mapped_plant_type_name, mapped_category_name, mapped_subcategory_name, mapped_source_name,
	mapping_status, mapping_confidence, mapping_notes, raw_classification, duplicate_of_row_id,
	created_at, updated_at`

type ImportRowRepository struct{}

func NewImportRowRepository() importrow.Repository {
	return &ImportRowRepository{}
}

func scanImportRowModel(scanner interface{ Scan(dest ...any) error }, m *models.ImportRow) error {
	return scanner.Scan(
		&m.ID,
		&m.ImportID,
		&m.SheetName,
		&m.RowNumber,
		&m.VarietyName,
		&m.SeedSourceName,
		&m.YearPurchased,
		&m.RawDateValue,
		&m.GerminationRate,
		&m.RawGerminationValue,
		&m.LotNumber,
		&m.Cost,
		&m.Quantity,
		&m.Notes,
		&m.DetectedUsedUp,
		&m.HasGrayText,
		&m.RawData,
		&m.ParseWarnings,
		&m.MappedPlantTypeName,
		&m.MappedCategoryName,
		&m.MappedSubcategoryName,
		&m.MappedSourceName,
		&m.MappingStatus,
		&m.MappingConfidence,
		&m.MappingNotes,
		&m.RawClassification,
		&m.DuplicateOfRowID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
}

func (r *ImportRowRepository) Create(ctx context.Context, row *importrow.ImportRow) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	rawData, err := rawDataToDB(row.RawData)
	if err != nil {
		return err
	}
	if row.MappingStatus == "" {
		row.MappingStatus = importrow.MappingUnmapped
	}
	return tx.QueryRow(ctx, `
		INSERT INTO import_rows (
			import_id, sheet_name, row_number, variety_name, seed_source_name,
			year_purchased, raw_date_value, germination_rate, raw_germination_value,
			lot_number, cost, quantity, notes, detected_used_up, has_gray_text,
			raw_data, parse_warnings, mapping_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, created_at, updated_at
	`,
		row.ImportID,
		row.SheetName,
		row.RowNumber,
		nilIfEmpty(row.VarietyName),
		nilIfEmpty(row.SeedSourceName),
		row.YearPurchased,
		nilIfEmpty(row.RawDateValue),
		row.GerminationRate,
		nilIfEmpty(row.RawGerminationValue),
		nilIfEmpty(row.LotNumber),
		row.Cost,
		nilIfEmpty(row.Quantity),
		nilIfEmpty(row.Notes),
		row.DetectedUsedUp,
		row.HasGrayText,
		rawData,
		row.ParseWarnings,
		string(row.MappingStatus),
	).Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt)
}

func (r *ImportRowRepository) GetByID(ctx context.Context, id uint) (*importrow.ImportRow, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var m models.ImportRow
	err = scanImportRowModel(tx.QueryRow(ctx, `
		SELECT `+importRowColumns+`
		FROM import_rows
		WHERE id = $1
	`, id), &m)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, importrow.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainImportRow(&m)
}

func (r *ImportRowRepository) List(ctx context.Context, params *importrow.FindParams) ([]*importrow.ImportRow, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	where, args := buildImportRowFilters(params)
	query := `
		SELECT ` + importRowColumns + `
		FROM import_rows
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id
	`
	if params != nil {
		query += " " + repo.FormatLimitOffset(params.Limit, params.Offset)
	}
	return r.queryRows(ctx, tx, query, args...)
}

func (r *ImportRowRepository) Count(ctx context.Context, params *importrow.FindParams) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	where, args := buildImportRowFilters(params)

	var count int64
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM import_rows
		WHERE `+strings.Join(where, " AND "),
		args...,
	).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ImportRowRepository) ListForDuplicateScan(ctx context.Context, importID uint) ([]*importrow.ImportRow, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return r.queryRows(ctx, tx, `
		SELECT `+importRowColumns+`
		FROM import_rows
		WHERE import_id = $1 AND mapping_status != $2
		ORDER BY id
	`, importID, string(importrow.MappingRejected))
}

func (r *ImportRowRepository) ListEligible(ctx context.Context, importID uint) ([]*importrow.ImportRow, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return r.queryRows(ctx, tx, `
		SELECT `+importRowColumns+`
		FROM import_rows
		WHERE import_id = $1
		  AND mapping_status = ANY($2)
		  AND duplicate_of_row_id IS NULL
		ORDER BY sheet_name, row_number
	`, importID, []string{string(importrow.MappingAccepted), string(importrow.MappingModified)})
}

func (r *ImportRowRepository) Update(ctx context.Context, row *importrow.ImportRow) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE import_rows
		SET mapped_plant_type_name = $2,
		    mapped_category_name = $3,
		    mapped_subcategory_name = $4,
		    mapped_source_name = $5,
		    mapping_status = $6,
		    mapping_confidence = $7,
		    mapping_notes = $8,
		    raw_classification = $9,
		    duplicate_of_row_id = $10,
		    updated_at = now()
		WHERE id = $1
	`,
		row.ID,
		nilIfEmpty(row.MappedPlantTypeName),
		nilIfEmpty(row.MappedCategoryName),
		nilIfEmpty(row.MappedSubcategoryName),
		nilIfEmpty(row.MappedSourceName),
		string(row.MappingStatus),
		row.MappingConfidence,
		nilIfEmpty(row.MappingNotes),
		[]byte(row.RawClassification),
		row.DuplicateOfRowID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return importrow.ErrNotFound
	}
	return nil
}

func (r *ImportRowRepository) DeleteByImportID(ctx context.Context, importID uint) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM import_rows WHERE import_id = $1`, importID)
	return err
}

func (r *ImportRowRepository) queryRows(ctx context.Context, tx repo.Tx, query string, args ...interface{}) ([]*importrow.ImportRow, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*importrow.ImportRow
	for rows.Next() {
		var m models.ImportRow
		if err := scanImportRowModel(rows, &m); err != nil {
			return nil, err
		}
		row, err := toDomainImportRow(&m)
		if err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func buildImportRowFilters(params *importrow.FindParams) ([]string, []interface{}) {
	where := []string{"1 = 1"}
	args := []interface{}{}
	argPos := 1
	if params == nil {
		return where, args
	}
	if params.ImportID != 0 {
		where = append(where, fmt.Sprintf("import_id = $%d", argPos))
		args = append(args, params.ImportID)
		argPos++
	}
	if params.MappingStatus != nil {
		where = append(where, fmt.Sprintf("mapping_status = $%d", argPos))
		args = append(args, string(*params.MappingStatus))
	}
	return where, args
}
