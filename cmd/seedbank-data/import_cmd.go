package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/verdantlabs/seedbank/modules"
	importerservices "github.com/verdantlabs/seedbank/modules/importer/services"
	"github.com/verdantlabs/seedbank/pkg/application"
	"github.com/verdantlabs/seedbank/pkg/composables"
	"github.com/verdantlabs/seedbank/pkg/configuration"
	"github.com/verdantlabs/seedbank/pkg/eventbus"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Register a workbook and queue its parse stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()
			pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			app := application.New(&application.ApplicationOptions{
				Pool:     pool,
				EventBus: eventbus.NewEventPublisher(conf.Logger()),
				Logger:   conf.Logger(),
			})
			if err := modules.Load(app, modules.BuiltInModules...); err != nil {
				return err
			}

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open workbook: %w", err)
			}
			defer file.Close()

			ctx := composables.WithPool(cmd.Context(), pool)
			imports := app.Service(importerservices.ImportService{}).(*importerservices.ImportService)
			imp, err := imports.Upload(ctx, filepath.Base(args[0]), file)
			if err != nil {
				return err
			}

			conf.Logger().WithField("import_id", imp.ID).Info("import queued for parsing")
			return nil
		},
	}
}
