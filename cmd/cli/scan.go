package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anstrom/lanscan/internal/logging"
	"github.com/anstrom/lanscan/internal/session"
)

// selfTestRange is scanned by --self-test.
const selfTestRange = "127.0.0.1/32"

var (
	scanSelfTest bool
	scanJSON     bool
	scanQuiet    bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [cidr...]",
	Short: "Run a discovery session in the foreground",
	Long: `Run one discovery session over the given ranges and print the resulting
inventory. Without arguments the stored network list is scanned.

Session events are streamed to stderr while the scan runs. Interrupting the
command cancels the session after the current range; hosts already found
are kept and persisted like a completed session.`,
	Example: `  lanscan scan
  lanscan scan 192.168.1.0/24
  lanscan scan 192.168.1.0/24 10.0.0.0/28 --json
  lanscan scan --self-test`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanSelfTest, "self-test", false, "Scan only the loopback address to check the toolchain")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the final session snapshot as JSON")
	scanCmd.Flags().BoolVarP(&scanQuiet, "quiet", "q", false, "Do not stream session events")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanSelfTest && len(args) > 0 {
		return fmt.Errorf("--self-test does not take ranges")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if scanJSON {
		redirectStdoutLogs(cfg.Logging)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	ranges := []string{selfTestRange}
	if !scanSelfTest {
		if ranges, err = resolveRanges(args, e.networks); err != nil {
			return err
		}
	}

	snapshot, err := runSession(ctx, e.orchestrator, ranges, eventWriter(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	if scanJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}

	printSnapshot(cmd.OutOrStdout(), snapshot)
	return nil
}

// sessionRunner is the part of the orchestrator a foreground scan uses.
type sessionRunner interface {
	Start(ranges []string) (string, error)
	Cancel() bool
	Status() session.Snapshot
	Subscribe(fn func(session.Event)) func()
	Wait()
}

// runSession starts a session, forwards its events to onEvent and blocks
// until it ends. Canceling ctx cancels the session cooperatively.
func runSession(ctx context.Context, runner sessionRunner, ranges []string, onEvent func(session.Event)) (session.Snapshot, error) {
	if onEvent != nil {
		unsubscribe := runner.Subscribe(onEvent)
		defer unsubscribe()
	}

	if _, err := runner.Start(ranges); err != nil {
		return session.Snapshot{}, err
	}

	finished := make(chan struct{})
	go func() {
		runner.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		logging.Info("Interrupted, cancelling session")
		runner.Cancel()
		<-finished
	}

	return runner.Status(), nil
}

// eventWriter prints events as they arrive, or nothing with --quiet.
func eventWriter(w io.Writer) func(session.Event) {
	if scanQuiet {
		return nil
	}
	return func(e session.Event) {
		fmt.Fprintf(w, "%s [%s] %s\n", e.Time.Format("15:04:05"), e.Severity, e.Message)
	}
}

// redirectStdoutLogs keeps logs off stdout so JSON output stays parseable.
func redirectStdoutLogs(logConfig logging.Config) {
	if logConfig.Output != "stdout" {
		return
	}
	logConfig.Output = "stderr"
	if logger, err := logging.New(logConfig); err == nil {
		logging.SetDefault(logger)
	}
}
