package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anstrom/lanscan/internal/store"
)

const defaultHistoryLimit = 20

var (
	historyLimit int
	historyJSON  bool
)

// historyCmd represents the history command.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List sessions stored in the database",
	Long: `List the most recent sessions persisted by the SQL sink. Requires
storage.database to be configured.`,
	Example: `  lanscan history
  lanscan history --limit 5
  lanscan history hosts 3f1c2a9e-...`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyHostsCmd = &cobra.Command{
	Use:   "hosts <session-id>",
	Short: "Show the inventory of a stored session",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryHosts,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyHostsCmd)

	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "Print results as JSON")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", defaultHistoryLimit, "Number of sessions to show")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if historyLimit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	return withDatabase(true, func(ctx context.Context, database *store.DB) error {
		sessions, err := store.NewSQLSink(database).RecentSessions(ctx, historyLimit)
		if err != nil {
			return err
		}
		if historyJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(sessions)
		}
		printSessions(cmd.OutOrStdout(), sessions)
		return nil
	})
}

func runHistoryHosts(cmd *cobra.Command, args []string) error {
	return withDatabase(true, func(ctx context.Context, database *store.DB) error {
		hosts, err := store.NewSQLSink(database).SessionHosts(ctx, args[0])
		if err != nil {
			return err
		}
		if historyJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(hosts)
		}
		printInventory(cmd.OutOrStdout(), hosts)
		return nil
	})
}
