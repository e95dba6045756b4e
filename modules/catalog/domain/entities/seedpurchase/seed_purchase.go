package seedpurchase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type SeedPurchase struct {
	ID              uint
	PlantVarietyID  uint
	SeedSourceID    uint
	YearPurchased   int
	LotNumber       string
	Cost            *decimal.Decimal
	Quantity        string
	GerminationRate *decimal.Decimal
	Notes           string
	UsedUp          bool
	UsedUpAt        *time.Time
	CreatedAt       time.Time
}

type FindParams struct {
	PlantVarietyID *uint
	SeedSourceID   *uint
	YearPurchased  *int
	UsedUp         *bool
	Limit          int
	Offset         int
}

type Repository interface {
	List(ctx context.Context, params *FindParams) ([]*SeedPurchase, error)
	Count(ctx context.Context, params *FindParams) (int64, error)
	Create(ctx context.Context, purchase *SeedPurchase) error
}
