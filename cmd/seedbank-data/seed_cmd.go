package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verdantlabs/seedbank/pkg/configuration"
)

// plantTypes is the operator-managed top level of the taxonomy. The
// import pipeline never creates types, so a fresh database needs them
// seeded before the first import.
var plantTypes = []string{"Vegetable", "Herb", "Flower", "Fruit"}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed plant types and the fallback seed source",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()
			pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			for _, name := range plantTypes {
				if _, err := pool.Exec(cmd.Context(), `
					INSERT INTO plant_types (name)
					VALUES ($1)
					ON CONFLICT DO NOTHING
				`, name); err != nil {
					return fmt.Errorf("failed to seed plant type %q: %w", name, err)
				}
			}
			if _, err := pool.Exec(cmd.Context(), `
				INSERT INTO seed_sources (name)
				VALUES ('Unknown')
				ON CONFLICT DO NOTHING
			`); err != nil {
				return fmt.Errorf("failed to seed fallback source: %w", err)
			}

			conf.Logger().WithField("types", len(plantTypes)).Info("seeded taxonomy roots")
			return nil
		},
	}
}
