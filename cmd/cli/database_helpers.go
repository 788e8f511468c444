package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anstrom/lanscan/internal/config"
	"github.com/anstrom/lanscan/internal/store"
)

const databaseTimeout = 10 * time.Second

// DatabaseOperation represents a function that operates on a database connection.
type DatabaseOperation func(ctx context.Context, database *store.DB) error

// withDatabase loads the configuration, connects to the configured
// database and runs operation. migrate applies pending migrations first.
func withDatabase(migrate bool, operation DatabaseOperation) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return withConfiguredDatabase(cfg, migrate, operation)
}

func withConfiguredDatabase(cfg *config.Config, migrate bool, operation DatabaseOperation) error {
	if !cfg.Storage.Database.Enabled() {
		return fmt.Errorf("no database configured: set storage.database.driver to %q or %q",
			store.DriverPostgres, store.DriverSQLite)
	}

	ctx, cancel := context.WithTimeout(context.Background(), databaseTimeout)
	defer cancel()

	connect := store.Connect
	if migrate {
		connect = store.ConnectAndMigrate
	}
	database, err := connect(ctx, &cfg.Storage.Database)
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	defer func() {
		if closeErr := database.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database connection: %v\n", closeErr)
		}
	}()

	return operation(context.Background(), database)
}
