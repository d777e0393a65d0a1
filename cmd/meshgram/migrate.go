package main

import (
	"github.com/spf13/cobra"

	"github.com/kabili207/mesh-telegram-bridge/pkg/config"
	"github.com/kabili207/mesh-telegram-bridge/pkg/store"
)

func newMigrateCommand() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply every pending database migration, or roll back the latest one with --down",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			setupLogging(cfg.Bridge.LogLevel)

			if down {
				return store.MigrateDown(cfg.DatabaseURL())
			}
			return store.Migrate(cfg.DatabaseURL())
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "Roll back the most recent migration")
	return cmd
}
