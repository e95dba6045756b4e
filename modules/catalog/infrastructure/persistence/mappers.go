package persistence

import (
	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/seedpurchase"
	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/seedsource"
	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/taxonomy"
	"github.com/verdantlabs/seedbank/modules/catalog/infrastructure/persistence/models"
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

func toDomainPlantType(row *models.PlantType) *taxonomy.PlantType {
	return &taxonomy.PlantType{
		ID:        row.ID,
		Name:      row.Name,
		CreatedAt: row.CreatedAt,
	}
}

func toDomainPlantCategory(row *models.PlantCategory) *taxonomy.PlantCategory {
	return &taxonomy.PlantCategory{
		ID:          row.ID,
		PlantTypeID: row.PlantTypeID,
		Name:        row.Name,
		CreatedAt:   row.CreatedAt,
	}
}

func toDomainPlantSubcategory(row *models.PlantSubcategory) *taxonomy.PlantSubcategory {
	return &taxonomy.PlantSubcategory{
		ID:              row.ID,
		PlantCategoryID: row.PlantCategoryID,
		Name:            row.Name,
		CreatedAt:       row.CreatedAt,
	}
}

func toDomainPlantVariety(row *models.PlantVariety) *taxonomy.PlantVariety {
	return &taxonomy.PlantVariety{
		ID:                 row.ID,
		PlantCategoryID:    row.PlantCategoryID,
		PlantSubcategoryID: row.PlantSubcategoryID,
		Name:               row.Name,
		Notes:              derefString(row.Notes),
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}

func toDomainSeedSource(row *models.SeedSource) *seedsource.SeedSource {
	return &seedsource.SeedSource{
		ID:        row.ID,
		Name:      row.Name,
		Website:   derefString(row.Website),
		Notes:     derefString(row.Notes),
		CreatedAt: row.CreatedAt,
	}
}

func toDomainSeedPurchase(row *models.SeedPurchase) *seedpurchase.SeedPurchase {
	return &seedpurchase.SeedPurchase{
		ID:              row.ID,
		PlantVarietyID:  row.PlantVarietyID,
		SeedSourceID:    row.SeedSourceID,
		YearPurchased:   row.YearPurchased,
		LotNumber:       derefString(row.LotNumber),
		Cost:            row.Cost,
		Quantity:        derefString(row.Quantity),
		GerminationRate: row.GerminationRate,
		Notes:           derefString(row.Notes),
		UsedUp:          row.UsedUp,
		UsedUpAt:        row.UsedUpAt,
		CreatedAt:       row.CreatedAt,
	}
}
