package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/seedimport"
	"github.com/verdantlabs/seedbank/modules/importer/infrastructure/persistence/models"
	"github.com/verdantlabs/seedbank/pkg/composables"
	"github.com/verdantlabs/seedbank/pkg/repo"
)

const importColumns = `id, filename, stored_path, status, sheet_names, total_rows,
	parsed_rows, mapped_rows, executed_rows, error_message, report, created_at, updated_at`

type ImportRepository struct{}

func NewImportRepository() seedimport.Repository {
	return &ImportRepository{}
}

func scanImport(row pgx.Row) (*seedimport.Import, error) {
	var m models.Import
	err := row.Scan(
		&m.ID,
		&m.Filename,
		&m.StoredPath,
		&m.Status,
		&m.SheetNames,
		&m.TotalRows,
		&m.ParsedRows,
		&m.MappedRows,
		&m.ExecutedRows,
		&m.ErrorMessage,
		&m.Report,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, seedimport.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainImport(&m)
}

func (r *ImportRepository) Create(ctx context.Context, imp *seedimport.Import) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if imp.Status == "" {
		imp.Status = seedimport.StatusPending
	}
	return tx.QueryRow(ctx, `
		INSERT INTO imports (filename, stored_path, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, imp.Filename, imp.StoredPath, string(imp.Status)).Scan(&imp.ID, &imp.CreatedAt, &imp.UpdatedAt)
}

func (r *ImportRepository) GetByID(ctx context.Context, id uint) (*seedimport.Import, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanImport(tx.QueryRow(ctx, `
		SELECT `+importColumns+`
		FROM imports
		WHERE id = $1
	`, id))
}

func (r *ImportRepository) List(ctx context.Context, params *seedimport.FindParams) ([]*seedimport.Import, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	where := []string{"1 = 1"}
	args := []interface{}{}
	if params != nil && params.Status != nil {
		where = append(where, "status = $1")
		args = append(args, string(*params.Status))
	}
	query := `
		SELECT ` + importColumns + `
		FROM imports
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC
	`
	if params != nil {
		query += " " + repo.FormatLimitOffset(params.Limit, params.Offset)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*seedimport.Import
	for rows.Next() {
		var m models.Import
		if err := rows.Scan(
			&m.ID,
			&m.Filename,
			&m.StoredPath,
			&m.Status,
			&m.SheetNames,
			&m.TotalRows,
			&m.ParsedRows,
			&m.MappedRows,
			&m.ExecutedRows,
			&m.ErrorMessage,
			&m.Report,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		imp, err := toDomainImport(&m)
		if err != nil {
			return nil, err
		}
		results = append(results, imp)
	}
	return results, rows.Err()
}

func (r *ImportRepository) Update(ctx context.Context, imp *seedimport.Import) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	report, err := reportToDB(imp.Report)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE imports
		SET status = $2,
		    sheet_names = $3,
		    total_rows = $4,
		    parsed_rows = $5,
		    mapped_rows = $6,
		    executed_rows = $7,
		    error_message = $8,
		    report = $9,
		    updated_at = now()
		WHERE id = $1
	`,
		imp.ID,
		string(imp.Status),
		imp.SheetNames,
		imp.TotalRows,
		imp.ParsedRows,
		imp.MappedRows,
		imp.ExecutedRows,
		nilIfEmpty(imp.ErrorMessage),
		report,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return seedimport.ErrNotFound
	}
	return nil
}

// TransitionStatus only succeeds when the import is still in the
// expected state, which serializes concurrent stage runs.
func (r *ImportRepository) TransitionStatus(ctx context.Context, id uint, from, to seedimport.Status) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("illegal status transition %s -> %s", from, to)
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE imports
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ImportRepository) SetFailed(ctx context.Context, id uint, message string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE imports
		SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1
	`, id, string(seedimport.StatusFailed), message)
	return err
}
