package seedsource

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("seed source not found")

// FallbackName is assigned to purchases whose row carried no usable
// source name.
const FallbackName = "Unknown"

type SeedSource struct {
	ID        uint
	Name      string
	Website   string
	Notes     string
	CreatedAt time.Time
}

type FindParams struct {
	Query  string
	Limit  int
	Offset int
}

type Repository interface {
	List(ctx context.Context, params *FindParams) ([]*SeedSource, error)
	Names(ctx context.Context) ([]string, error)
	GetByName(ctx context.Context, name string) (*SeedSource, error)
	Create(ctx context.Context, source *SeedSource) error
}
