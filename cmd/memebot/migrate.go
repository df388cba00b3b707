package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/memebot/core/config"
	"github.com/m3rciful/memebot/core/database"
	"github.com/m3rciful/memebot/core/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the postgres session schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Session.Backend != config.BackendPostgres {
			return fmt.Errorf("session.backend is %q; migrations apply to postgres only", cfg.Session.Backend)
		}
		if err := logger.Init(cfg); err != nil {
			return err
		}
		defer func() { _ = logger.Shutdown() }()
		return database.RunMigrations(cmd.Context(), cfg.Database)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
