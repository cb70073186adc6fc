package main

import (
	"github.com/spf13/cobra"

	"github.com/jorcase/exadocs/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Применить миграции базы данных и выйти",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		return database.Migrate(cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
