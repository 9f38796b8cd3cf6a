package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"studium/db"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop and recreate the database schema",
	RunE:  runDBReset,
}

func init() {
	dbCmd.AddCommand(dbResetCmd)
}

func runDBReset(cmd *cobra.Command, args []string) error {
	path := viper.GetString("db_path")

	var confirm bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Reset database at %s?", path)).
		Description("All sessions and study material will be deleted.").
		Value(&confirm).
		Run()
	if err != nil {
		return fmt.Errorf("confirmation: %w", err)
	}
	if !confirm {
		logger.Info("reset cancelled")
		return nil
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := db.Reset(store.DB, logger); err != nil {
		return err
	}

	logger.Info("database reset", "path", path)
	return nil
}
