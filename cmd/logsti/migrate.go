package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tchayre/logsti/internal/database"
)

var rollbackSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Open(cmd.Context(), cfg.Database, log)
		if err != nil {
			return err
		}
		defer db.Close()
		n, err := database.Migrate(cmd.Context(), db, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", n)
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if rollbackSteps < 1 {
			return fmt.Errorf("--steps must be at least 1")
		}
		db, err := database.Open(cmd.Context(), cfg.Database, log)
		if err != nil {
			return err
		}
		defer db.Close()
		n, err := database.Rollback(cmd.Context(), db, rollbackSteps, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migrations\n", n)
		return nil
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&rollbackSteps, "steps", 1, "Number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}
