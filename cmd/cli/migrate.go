package cli

import (
	"context"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/lanscan/internal/store"
)

var migrateResetForce bool

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the session database schema",
	Long: `Apply, inspect or reset the embedded schema migrations for the
configured PostgreSQL or SQLite database.`,
	Example: `  lanscan migrate up
  lanscan migrate status
  lanscan migrate reset --force`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

var migrateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop all lanscan tables",
	Args:  cobra.NoArgs,
	RunE:  runMigrateReset,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateResetCmd)

	migrateResetCmd.Flags().BoolVar(&migrateResetForce, "force", false, "Confirm dropping every table")
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	return withDatabase(false, func(ctx context.Context, database *store.DB) error {
		applied, err := store.NewMigrator(database).Up(ctx)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Database schema is up to date")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", name)
		}
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	return withDatabase(false, func(ctx context.Context, database *store.DB) error {
		statuses, err := store.NewMigrator(database).Status(ctx)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Migration", "Status", "Applied At")
		for _, s := range statuses {
			status, appliedAt := "pending", "-"
			if s.Applied {
				status = "applied"
				appliedAt = s.AppliedAt.Local().Format(timeLayout)
			}
			if s.Modified {
				status = "modified"
			}
			_ = table.Append([]string{s.Name, status, appliedAt})
		}
		return table.Render()
	})
}

func runMigrateReset(cmd *cobra.Command, _ []string) error {
	if !migrateResetForce {
		return fmt.Errorf("refusing to drop the lanscan tables without --force")
	}
	return withDatabase(false, func(ctx context.Context, database *store.DB) error {
		if err := store.NewMigrator(database).Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Dropped all lanscan tables")
		return nil
	})
}
