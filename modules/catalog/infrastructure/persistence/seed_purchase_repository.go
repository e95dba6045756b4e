package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/seedpurchase"
	"github.com/verdantlabs/seedbank/modules/catalog/infrastructure/persistence/models"
	"github.com/verdantlabs/seedbank/pkg/composables"
	"github.com/verdantlabs/seedbank/pkg/repo"
)

type SeedPurchaseRepository struct{}

func NewSeedPurchaseRepository() seedpurchase.Repository {
	return &SeedPurchaseRepository{}
}

func (r *SeedPurchaseRepository) List(ctx context.Context, params *seedpurchase.FindParams) ([]*seedpurchase.SeedPurchase, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	where, args := buildSeedPurchaseFilters(params)
	query := `
		SELECT id, plant_variety_id, seed_source_id, year_purchased, lot_number,
		       cost, quantity, germination_rate, notes, used_up, used_up_at, created_at
		FROM seed_purchases
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY year_purchased DESC, id DESC
	`
	if params != nil {
		query += " " + repo.FormatLimitOffset(params.Limit, params.Offset)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*seedpurchase.SeedPurchase
	for rows.Next() {
		var row models.SeedPurchase
		if err := rows.Scan(
			&row.ID,
			&row.PlantVarietyID,
			&row.SeedSourceID,
			&row.YearPurchased,
			&row.LotNumber,
			&row.Cost,
			&row.Quantity,
			&row.GerminationRate,
			&row.Notes,
			&row.UsedUp,
			&row.UsedUpAt,
			&row.CreatedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, toDomainSeedPurchase(&row))
	}
	return results, rows.Err()
}

func (r *SeedPurchaseRepository) Count(ctx context.Context, params *seedpurchase.FindParams) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	where, args := buildSeedPurchaseFilters(params)

	var count int64
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM seed_purchases
		WHERE `+strings.Join(where, " AND "),
		args...,
	).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SeedPurchaseRepository) Create(ctx context.Context, purchase *seedpurchase.SeedPurchase) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	return tx.QueryRow(ctx, `
		INSERT INTO seed_purchases (
			plant_variety_id, seed_source_id, year_purchased, lot_number,
			cost, quantity, germination_rate, notes, used_up, used_up_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`,
		purchase.PlantVarietyID,
		purchase.SeedSourceID,
		purchase.YearPurchased,
		nilIfEmpty(purchase.LotNumber),
		purchase.Cost,
		nilIfEmpty(purchase.Quantity),
		purchase.GerminationRate,
		nilIfEmpty(purchase.Notes),
		purchase.UsedUp,
		purchase.UsedUpAt,
	).Scan(&purchase.ID, &purchase.CreatedAt)
}

func buildSeedPurchaseFilters(params *seedpurchase.FindParams) ([]string, []interface{}) {
	where := []string{"1 = 1"}
	args := []interface{}{}
	argPos := 1
	if params == nil {
		return where, args
	}

	if params.PlantVarietyID != nil {
		where = append(where, fmt.Sprintf("plant_variety_id = $%d", argPos))
		args = append(args, *params.PlantVarietyID)
		argPos++
	}
	if params.SeedSourceID != nil {
		where = append(where, fmt.Sprintf("seed_source_id = $%d", argPos))
		args = append(args, *params.SeedSourceID)
		argPos++
	}
	if params.YearPurchased != nil {
		where = append(where, fmt.Sprintf("year_purchased = $%d", argPos))
		args = append(args, *params.YearPurchased)
		argPos++
	}
	if params.UsedUp != nil {
		where = append(where, fmt.Sprintf("used_up = $%d", argPos))
		args = append(args, *params.UsedUp)
	}
	return where, args
}
