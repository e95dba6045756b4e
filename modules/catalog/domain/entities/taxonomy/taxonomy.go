package taxonomy

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTypeNotFound        = errors.New("plant type not found")
	ErrCategoryNotFound    = errors.New("plant category not found")
	ErrSubcategoryNotFound = errors.New("plant subcategory not found")
	ErrVarietyNotFound     = errors.New("plant variety not found")
)

// PlantType is the top level of the taxonomy. Types are seeded by
// operators and never auto-created by the import pipeline.
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
	Notes              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Entry is one (type, category, subcategories) tuple of the taxonomy
// snapshot handed to the classification service.
type Entry struct {
	Type          string   `json:"type"`
	Category      string   `json:"category"`
	Subcategories []string `json:"subcategories"`
}

type Repository interface {
	ListTypes(ctx context.Context) ([]*PlantType, error)
	GetTypeByName(ctx context.Context, name string) (*PlantType, error)

	GetCategoryByName(ctx context.Context, plantTypeID uint, name string) (*PlantCategory, error)
	CreateCategory(ctx context.Context, category *PlantCategory) error

	GetSubcategoryByName(ctx context.Context, categoryID uint, name string) (*PlantSubcategory, error)
	CreateSubcategory(ctx context.Context, subcategory *PlantSubcategory) error

	GetVarietyByName(ctx context.Context, categoryID uint, name string) (*PlantVariety, error)
	CreateVariety(ctx context.Context, variety *PlantVariety) error
	UpdateVariety(ctx context.Context, variety *PlantVariety) error

	Snapshot(ctx context.Context) ([]Entry, error)
}
