package classify

import (
	"context"

	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/taxonomy"
)

// RowInput is one row submitted for classification, addressed by its
// index within the batch.
type RowInput struct {
	Index       int    `json:"index"`
	VarietyName string `json:"variety_name"`
	SourceName  string `json:"source_name"`
	Sheet       string `json:"sheet"`
	Year        *int   `json:"year"`
	Notes       string `json:"notes"`
}

// Request carries a batch of rows plus the taxonomy and source-name
// context snapshots built once per mapping run.
type Request struct {
	Rows             []RowInput       `json:"rows"`
	ExistingTaxonomy []taxonomy.Entry `json:"existing_taxonomy"`
	ExistingSources  []string         `json:"existing_sources"`
}

// Result is one classification entry, matched back to its row strictly
// by Index.
type Result struct {
	Index            int     `json:"index"`
	PlantType        string  `json:"plant_type"`
	Category         string  `json:"category"`
	Subcategory      *string `json:"subcategory"`
	NormalizedSource string  `json:"normalized_source"`
	Confidence       float64 `json:"confidence"`
	Notes            *string `json:"notes"`
}

// Classifier is the contract with the external classification service.
// The raw payload is returned alongside the decoded results so callers
// can persist it for audit.
type Classifier interface {
	Classify(ctx context.Context, req Request) ([]Result, []byte, error)
}
