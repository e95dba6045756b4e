package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/seedsource"
	"github.com/verdantlabs/seedbank/modules/catalog/infrastructure/persistence/models"
	"github.com/verdantlabs/seedbank/pkg/composables"
	"github.com/verdantlabs/seedbank/pkg/repo"
)

type SeedSourceRepository struct{}

func NewSeedSourceRepository() seedsource.Repository {
	return &SeedSourceRepository{}
}

func (r *SeedSourceRepository) List(ctx context.Context, params *seedsource.FindParams) ([]*seedsource.SeedSource, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	where, args := buildSeedSourceFilters(params)
	query := `
		SELECT id, name, website, notes, created_at
		FROM seed_sources
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY name
	`
	if params != nil {
		query += " " + repo.FormatLimitOffset(params.Limit, params.Offset)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*seedsource.SeedSource
	for rows.Next() {
		var row models.SeedSource
		if err := rows.Scan(&row.ID, &row.Name, &row.Website, &row.Notes, &row.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, toDomainSeedSource(&row))
	}
	return results, rows.Err()
}

func (r *SeedSourceRepository) Names(ctx context.Context) ([]string, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT name FROM seed_sources ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *SeedSourceRepository) GetByName(ctx context.Context, name string) (*seedsource.SeedSource, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var row models.SeedSource
	err = tx.QueryRow(ctx, `
		SELECT id, name, website, notes, created_at
		FROM seed_sources
		WHERE LOWER(name) = LOWER(TRIM($1))
	`, name).Scan(&row.ID, &row.Name, &row.Website, &row.Notes, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, seedsource.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainSeedSource(&row), nil
}

func (r *SeedSourceRepository) Create(ctx context.Context, source *seedsource.SeedSource) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	return tx.QueryRow(ctx, `
		INSERT INTO seed_sources (name, website, notes)
		VALUES (TRIM($1), $2, $3)
		RETURNING id, created_at
	`, source.Name, nilIfEmpty(source.Website), nilIfEmpty(source.Notes)).Scan(&source.ID, &source.CreatedAt)
}

func buildSeedSourceFilters(params *seedsource.FindParams) ([]string, []interface{}) {
	where := []string{"1 = 1"}
	args := []interface{}{}
	argPos := 1
	if params == nil {
		return where, args
	}
	if q := strings.TrimSpace(params.Query); q != "" {
		where = append(where, fmt.Sprintf("name ILIKE $%d", argPos))
		args = append(args, "%"+q+"%")
	}
	return where, args
}
