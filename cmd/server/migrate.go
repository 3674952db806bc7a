package main

import (
	"github.com/spf13/cobra"

	"askme/internal/db"
	"askme/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := logging.New(cfg.LogLevel, cfg.LogFormat, nil)
		if err != nil {
			return err
		}
		store, err := db.Open(cfg.DB, log)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := db.Migrate(cmd.Context(), store); err != nil {
			return err
		}
		log.WithField("driver", cfg.DB.Driver).Info("schema up to date")
		return nil
	},
}
