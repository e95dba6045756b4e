package main

import (
	"github.com/spf13/cobra"

	"github.com/verdantlabs/seedbank/modules"
	"github.com/verdantlabs/seedbank/pkg/application"
	"github.com/verdantlabs/seedbank/pkg/configuration"
	"github.com/verdantlabs/seedbank/pkg/eventbus"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply module schemas",
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
			return app.Migrations().Apply(cmd.Context())
		},
	}
}
