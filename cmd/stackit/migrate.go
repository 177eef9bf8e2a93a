package main

import (
	"github.com/spf13/cobra"

	"github.com/emilythestrangee/stackit/backend/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, logger, err := setup()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.Migrate(db.GetDB()); err != nil {
			return err
		}
		logger.Info("database migrated", "event", "database_migrated")
		return nil
	},
}
