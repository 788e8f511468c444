package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/lanscan/internal/api"
	"github.com/anstrom/lanscan/internal/config"
	"github.com/anstrom/lanscan/internal/logging"
	"github.com/anstrom/lanscan/internal/metrics"
	"github.com/anstrom/lanscan/internal/scheduler"
	"github.com/anstrom/lanscan/internal/services"
)

const systemMetricsInterval = 15 * time.Second

var serveNoSchedule bool

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and scheduled sessions",
	Long: `Run lanscan as a long-lived service. The HTTP API controls sessions and
streams their events; configured schedule entries start sessions
automatically. A session already running when a schedule fires causes that
tick to be skipped.

The process runs in the foreground and shuts down gracefully on SIGINT or
SIGTERM, cancelling any running session.`,
	Example: `  lanscan serve
  lanscan serve --host 0.0.0.0 --port 8080
  LANSCAN_API_PORT=8080 lanscan serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Override API listen host")
	serveCmd.Flags().Int("port", 0, "Override API listen port")
	serveCmd.Flags().BoolVar(&serveNoSchedule, "no-schedule", false, "Do not start scheduled sessions")

	if err := viper.BindPFlag("api.host", serveCmd.Flags().Lookup("host")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind host flag: %v\n", err)
	}
	if err := viper.BindPFlag("api.port", serveCmd.Flags().Lookup("port")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind port flag: %v\n", err)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := logging.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.API.Enabled && (serveNoSchedule || len(cfg.Schedule) == 0) {
		return fmt.Errorf("nothing to serve: the API is disabled and no schedule is configured\n" +
			"Enable it by setting 'api.enabled: true' in config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	go metrics.GetGlobalMetrics().StartPeriodicUpdates(ctx, systemMetricsInterval)

	if seeded, err := e.networks.Seed(services.DefaultNetworks); err != nil {
		logger.Warn("Failed to seed network list", "path", e.networks.Path(), "error", err)
	} else if seeded {
		logger.Info("Seeded network list with defaults", "path", e.networks.Path())
	}

	if !serveNoSchedule {
		sched, err := startScheduler(cfg, e)
		if err != nil {
			return err
		}
		defer sched.Stop()
	}

	logger.Info("Starting lanscan",
		"version", version,
		"commit", commit,
		"build_time", buildTime,
		"api_enabled", cfg.API.Enabled)

	if !cfg.API.Enabled {
		<-ctx.Done()
		logger.Info("Received shutdown signal")
		return nil
	}

	server, err := api.New(cfg.API, apiDependencies(e))
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	fmt.Printf("API server listening on http://%s\n", cfg.GetAPIAddress())
	fmt.Printf("Health check: http://%s/api/v1/health\n", cfg.GetAPIAddress())

	if err := server.Start(ctx); err != nil {
		logger.Error("API server error", "error", err)
		return fmt.Errorf("API server error: %w", err)
	}

	fmt.Println("Server stopped successfully")
	return nil
}

// apiDependencies exposes the engine to the API. Optional collaborators
// stay nil interfaces when unconfigured.
func apiDependencies(e *engine) api.Dependencies {
	deps := api.Dependencies{
		Controller: e.orchestrator,
		Networks:   e.networks,
		Metrics:    metrics.GetGlobalMetrics(),
		Version:    version,
	}
	if e.history != nil {
		deps.History = e.history
	}
	if e.database != nil {
		deps.Database = e.database
	}
	return deps
}

func startScheduler(cfg *config.Config, e *engine) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler(e.orchestrator, e.networks)
	if err := sched.AddEntries(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}
	if err := sched.Start(); err != nil {
		return nil, err
	}
	return sched, nil
}
