package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PlantType struct {
	ID        uint
	Name      string
	CreatedAt time.Time
}

type PlantCategory struct {
	ID          uint
	PlantTypeID uint
	Name        string
	CreatedAt   time.Time
}

type PlantSubcategory struct {
	ID              uint
	PlantCategoryID uint
	Name            string
	CreatedAt       time.Time
}

type PlantVariety struct {
	ID                 uint
	PlantCategoryID    uint
	PlantSubcategoryID *uint
	Name               string
	Notes              *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type SeedSource struct {
	ID        uint
	Name      string
	Website   *string
	Notes     *string
	CreatedAt time.Time
}

type SeedPurchase struct {
	ID              uint
	PlantVarietyID  uint
	SeedSourceID    uint
	YearPurchased   int
	LotNumber       *string
	Cost            *decimal.Decimal
	Quantity        *string
	GerminationRate *decimal.Decimal
	Notes           *string
	UsedUp          bool
	UsedUpAt        *time.Time
	CreatedAt       time.Time
}
