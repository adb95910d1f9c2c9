package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prona-platform/prona/internal/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return database.RunMigrations(a.cfg.DB.DSN(), a.cfg.DB.MigrationsPath)
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Revert applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			return database.RollbackMigrations(a.cfg.DB.DSN(), a.cfg.DB.MigrationsPath, steps)
		},
	}
	down.Flags().Int("steps", 1, "Number of migrations to revert")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ver, dirty, err := database.MigrationVersion(a.cfg.DB.DSN(), a.cfg.DB.MigrationsPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", ver, dirty)
			return nil
		},
	})

	return cmd
}
