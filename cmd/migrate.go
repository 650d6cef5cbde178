package cmd

import (
	"fmt"
	"log/slog"

	"github.com/jandubois/multiping/internal/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply history database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("down", false, "Roll back all migrations")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	path, err := databasePath(cmd)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("migrate requires --database")
	}
	down, _ := cmd.Flags().GetBool("down")

	if down {
		slog.Info("rolling back all migrations", "database", path)
		if err := db.RollbackMigrations(path); err != nil {
			return err
		}
		slog.Info("migrations rolled back")
		return nil
	}

	slog.Info("running migrations", "database", path)
	if err := db.RunMigrations(path); err != nil {
		return err
	}
	slog.Info("migrations complete")
	return nil
}
