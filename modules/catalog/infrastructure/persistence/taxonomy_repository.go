package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/taxonomy"
	"github.com/verdantlabs/seedbank/modules/catalog/infrastructure/persistence/models"
	"github.com/verdantlabs/seedbank/pkg/composables"
)

type TaxonomyRepository struct{}

func NewTaxonomyRepository() taxonomy.Repository {
	return &TaxonomyRepository{}
}

func (r *TaxonomyRepository) ListTypes(ctx context.Context) ([]*taxonomy.PlantType, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT id, name, created_at
		FROM plant_types
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*taxonomy.PlantType
	for rows.Next() {
		var row models.PlantType
		if err := rows.Scan(&row.ID, &row.Name, &row.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, toDomainPlantType(&row))
	}
	return results, rows.Err()
}

func (r *TaxonomyRepository) GetTypeByName(ctx context.Context, name string) (*taxonomy.PlantType, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var row models.PlantType
	err = tx.QueryRow(ctx, `
		SELECT id, name, created_at
		FROM plant_types
		WHERE LOWER(name) = LOWER(TRIM($1))
	`, name).Scan(&row.ID, &row.Name, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, taxonomy.ErrTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainPlantType(&row), nil
}

func (r *TaxonomyRepository) GetCategoryByName(ctx context.Context, plantTypeID uint, name string) (*taxonomy.PlantCategory, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var row models.PlantCategory
	err = tx.QueryRow(ctx, `
		SELECT id, plant_type_id, name, created_at
		FROM plant_categories
		WHERE plant_type_id = $1 AND LOWER(name) = LOWER(TRIM($2))
	`, plantTypeID, name).Scan(&row.ID, &row.PlantTypeID, &row.Name, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, taxonomy.ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainPlantCategory(&row), nil
}

func (r *TaxonomyRepository) CreateCategory(ctx context.Context, category *taxonomy.PlantCategory) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	return tx.QueryRow(ctx, `
		INSERT INTO plant_categories (plant_type_id, name)
		VALUES ($1, TRIM($2))
		RETURNING id, created_at
	`, category.PlantTypeID, category.Name).Scan(&category.ID, &category.CreatedAt)
}

func (r *TaxonomyRepository) GetSubcategoryByName(ctx context.Context, categoryID uint, name string) (*taxonomy.PlantSubcategory, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var row models.PlantSubcategory
	err = tx.QueryRow(ctx, `
		SELECT id, plant_category_id, name, created_at
		FROM plant_subcategories
		WHERE plant_category_id = $1 AND LOWER(name) = LOWER(TRIM($2))
	`, categoryID, name).Scan(&row.ID, &row.PlantCategoryID, &row.Name, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, taxonomy.ErrSubcategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainPlantSubcategory(&row), nil
}

func (r *TaxonomyRepository) CreateSubcategory(ctx context.Context, subcategory *taxonomy.PlantSubcategory) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	return tx.QueryRow(ctx, `
		INSERT INTO plant_subcategories (plant_category_id, name)
		VALUES ($1, TRIM($2))
		RETURNING id, created_at
	`, subcategory.PlantCategoryID, subcategory.Name).Scan(&subcategory.ID, &subcategory.CreatedAt)
}

func (r *TaxonomyRepository) GetVarietyByName(ctx context.Context, categoryID uint, name string) (*taxonomy.PlantVariety, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var row models.PlantVariety
	err = tx.QueryRow(ctx, `
		SELECT id, plant_category_id, plant_subcategory_id, name, notes, created_at, updated_at
		FROM plant_varieties
		WHERE plant_category_id = $1 AND LOWER(name) = LOWER(TRIM($2))
	`, categoryID, name).Scan(
		&row.ID,
		&row.PlantCategoryID,
		&row.PlantSubcategoryID,
		&row.Name,
		&row.Notes,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, taxonomy.ErrVarietyNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainPlantVariety(&row), nil
}

func (r *TaxonomyRepository) CreateVariety(ctx context.Context, variety *taxonomy.PlantVariety) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	return tx.QueryRow(ctx, `
		INSERT INTO plant_varieties (plant_category_id, plant_subcategory_id, name, notes)
		VALUES ($1, $2, TRIM($3), $4)
		RETURNING id, created_at, updated_at
	`,
		variety.PlantCategoryID,
		variety.PlantSubcategoryID,
		variety.Name,
		nilIfEmpty(variety.Notes),
	).Scan(&variety.ID, &variety.CreatedAt, &variety.UpdatedAt)
}

func (r *TaxonomyRepository) UpdateVariety(ctx context.Context, variety *taxonomy.PlantVariety) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE plant_varieties
		SET plant_subcategory_id = $2,
		    notes = $3,
		    updated_at = now()
		WHERE id = $1
	`, variety.ID, variety.PlantSubcategoryID, nilIfEmpty(variety.Notes))
	return err
}

// Snapshot flattens the taxonomy into the (type, category, subcategories)
// tuples handed to the classification service as context.
func (r *TaxonomyRepository) Snapshot(ctx context.Context) ([]taxonomy.Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT t.name, c.id, c.name
		FROM plant_categories c
		JOIN plant_types t ON t.id = c.plant_type_id
		ORDER BY t.name, c.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []taxonomy.Entry
	var categoryIDs []uint
	for rows.Next() {
		var typeName, categoryName string
		var categoryID uint
		if err := rows.Scan(&typeName, &categoryID, &categoryName); err != nil {
			return nil, err
		}
		entries = append(entries, taxonomy.Entry{
			Type:          typeName,
			Category:      categoryName,
			Subcategories: []string{},
		})
		categoryIDs = append(categoryIDs, categoryID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	byCategory := make(map[uint]int, len(categoryIDs))
	for i, id := range categoryIDs {
		byCategory[id] = i
	}

	subRows, err := tx.Query(ctx, `
		SELECT plant_category_id, name
		FROM plant_subcategories
		ORDER BY plant_category_id, name
	`)
	if err != nil {
		return nil, err
	}
	defer subRows.Close()

	for subRows.Next() {
		var categoryID uint
		var name string
		if err := subRows.Scan(&categoryID, &name); err != nil {
			return nil, err
		}
		if i, ok := byCategory[categoryID]; ok {
			entries[i].Subcategories = append(entries[i].Subcategories, name)
		}
	}
	return entries, subRows.Err()
}
