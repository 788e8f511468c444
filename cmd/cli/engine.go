package cli

import (
	"context"
	"fmt"

	"github.com/anstrom/lanscan/internal/config"
	"github.com/anstrom/lanscan/internal/discovery"
	"github.com/anstrom/lanscan/internal/logging"
	"github.com/anstrom/lanscan/internal/oui"
	"github.com/anstrom/lanscan/internal/services"
	"github.com/anstrom/lanscan/internal/session"
	"github.com/anstrom/lanscan/internal/store"
)

// engine bundles the collaborators a scan session needs, wired from the
// configuration.
type engine struct {
	cfg          *config.Config
	orchestrator *session.Orchestrator
	networks     *services.NetworkService
	database     *store.DB
	history      *store.SQLSink
}

// newEngine builds the scanner, sinks and orchestrator. A configured
// database that cannot be reached is an error; the JSON sink never is.
func newEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	e := &engine{
		cfg:      cfg,
		networks: services.NewNetworkService(cfg.NetworksFile),
	}

	opts := cfg.SessionOptions()
	if cfg.Storage.JSONEnabled {
		opts.Sinks = append(opts.Sinks, store.NewJSONFileSink(cfg.Storage.ResultsDir))
	}

	if cfg.Storage.Database.Enabled() {
		connectCtx, cancel := context.WithTimeout(ctx, databaseTimeout)
		database, err := store.ConnectAndMigrate(connectCtx, &cfg.Storage.Database)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		e.database = database
		e.history = store.NewSQLSink(database)
		opts.Sinks = append(opts.Sinks, e.history)
	}

	e.orchestrator = session.New(buildScanner(cfg), opts)
	return e, nil
}

// Close stops any running session and releases the database.
func (e *engine) Close() {
	e.orchestrator.Close()
	if e.database != nil {
		if err := e.database.Close(); err != nil {
			logging.Warn("Failed to close database connection", "error", err)
		}
	}
}

// buildScanner wires the discovery capabilities: an nmap ping sweep with
// ICMP fallback, DNS and system reverse lookups, the neighbor table, the
// vendor table and nmap fingerprinting.
func buildScanner(cfg *config.Config) *discovery.RangeScanner {
	d := cfg.Discovery

	var names []discovery.NameResolver
	if resolver, err := discovery.NewDNSResolver(d.DNSServer, d.IdentityTimeout); err == nil {
		names = append(names, resolver)
	} else {
		logging.Warn("DNS reverse lookups unavailable, using system resolver", "error", err)
	}
	names = append(names, discovery.NewSystemNameResolver())

	identity := discovery.NewHostIdentityResolver(
		discovery.NewSystemNeighborTable(d.IdentityTimeout), d.IdentityTimeout, names...)

	var fingerprinter discovery.Fingerprinter
	if !d.DisableFingerprint {
		fingerprinter = discovery.NewNmapFingerprinter(d.NmapPath, d.EnrichTimeout)
	}

	sweeper := discovery.NewNmapSweeper(d.NmapPath, d.SweepTimeout)
	if !sweeper.Available() {
		logging.Warn("nmap not found, ranges will be probed sequentially", "fallback_cap", d.FallbackCap)
	}

	return discovery.NewRangeScanner(
		sweeper,
		discovery.NewICMPProber(d.PrivilegedPing),
		discovery.NewEnricher(identity, vendorTable(d.OUIFile), fingerprinter),
		cfg.ScannerConfig(),
	)
}

// vendorTable returns the built-in OUI table extended by path, if set. A
// broken file is logged and ignored.
func vendorTable(path string) *oui.Table {
	if path == "" {
		return nil
	}
	table, err := oui.LoadFile(path)
	if err != nil {
		logging.Warn("Failed to load OUI file, using built-in vendors", "path", path, "error", err)
		return nil
	}
	logging.Info("Loaded OUI file", "path", path, "prefixes", table.Len())
	return table
}

// resolveRanges returns args, or the stored network list when args is empty.
func resolveRanges(args []string, networks *services.NetworkService) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	stored, err := networks.List()
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, session.ErrEmptyInput
	}
	return stored, nil
}
