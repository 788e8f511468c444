// Package store persists completed scan sessions. It provides a JSON results
// file sink and a SQL sink backed by PostgreSQL or SQLite, together with the
// embedded schema migrations the SQL sink needs.
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/anstrom/lanscan/internal/errors"
	"github.com/anstrom/lanscan/internal/logging"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	defaultPostgresPort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5
	defaultConnMaxIdleTime = 5
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Config holds database configuration. An empty Driver disables the SQL sink.
type Config struct {
	Driver          string        `yaml:"driver" json:"driver"`
	DSN             string        `yaml:"dsn" json:"dsn"`
	Path            string        `yaml:"path" json:"path"`
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	Database        string        `yaml:"database" json:"database"`
	Username        string        `yaml:"username" json:"username"`
	Password        string        `yaml:"password" json:"password"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

// DefaultConfig returns the default database configuration. The SQL sink
// is disabled until a driver is configured.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            defaultPostgresPort,
		Path:            "lanscan.db",
		SSLMode:         "disable",
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime * time.Minute,
		ConnMaxIdleTime: defaultConnMaxIdleTime * time.Minute,
	}
}

// Enabled reports whether a driver is configured.
func (c *Config) Enabled() bool {
	return c.Driver != ""
}

// Validate checks the driver and the fields it needs.
func (c *Config) Validate() error {
	switch c.Driver {
	case "":
		return nil
	case DriverPostgres:
		if c.DSN != "" {
			return nil
		}
		if c.Database == "" {
			return errors.ErrConfigInvalid("storage.database.database", c.Database)
		}
		if c.Username == "" {
			return errors.ErrConfigInvalid("storage.database.username", c.Username)
		}
		if c.Port <= 0 || c.Port > 65535 {
			return errors.ErrConfigInvalid("storage.database.port", c.Port)
		}
		return nil
	case DriverSQLite:
		if c.DSN == "" && c.Path == "" {
			return errors.ErrConfigInvalid("storage.database.path", c.Path)
		}
		return nil
	default:
		return errors.ErrConfigInvalid("storage.database.driver", c.Driver)
	}
}

// dataSource returns the driver specific connection string.
func (c *Config) dataSource() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode,
	)
}

// location describes the database for logs without credentials.
func (c *Config) location() string {
	if c.Driver == DriverSQLite {
		if c.DSN != "" {
			return "sqlite"
		}
		return c.Path
	}
	if c.DSN != "" {
		return "postgres"
	}
	return fmt.Sprintf("%s:%d/%s", c.Host, c.Port, c.Database)
}

// DB wraps sqlx.DB with the driver it was opened with.
type DB struct {
	*sqlx.DB
	driver string
}

// Driver returns the driver name.
func (db *DB) Driver() string {
	return db.driver
}

// Connect opens the database and verifies the connection. Returned errors
// never carry the DSN.
func Connect(ctx context.Context, config *Config) (*DB, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !config.Enabled() {
		return nil, errors.NewDatabaseError(errors.CodeConfiguration, "no database driver configured")
	}

	db, err := sqlx.Open(config.Driver, config.dataSource())
	if err != nil {
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseConnection, "open", err)
	}

	if config.Driver == DriverSQLite {
		// SQLite performs best with a single writer.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseConnection, "ping", err)
	}

	if config.Driver == DriverSQLite {
		// modernc.org/sqlite takes pragmas as statements, not DSN params.
		for _, p := range []string{"PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
			if _, err := db.ExecContext(ctx, p); err != nil {
				_ = db.Close()
				return nil, errors.WrapDatabaseError(errors.CodeDatabaseConnection, "pragma", err)
			}
		}
	}

	logging.InfoDatabase("Connected to database", "driver", config.Driver, "location", config.location())
	return &DB{DB: db, driver: config.Driver}, nil
}

// ConnectAndMigrate connects and applies pending migrations.
func ConnectAndMigrate(ctx context.Context, config *Config) (*DB, error) {
	db, err := Connect(ctx, config)
	if err != nil {
		return nil, err
	}

	if _, err := NewMigrator(db).Up(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// sanitizeDBError converts raw driver errors into coded errors that do not
// expose SQL or credentials. The original error is kept as the cause.
func sanitizeDBError(operation string, err error) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, sql.ErrNoRows) {
		dbErr := errors.NewDatabaseError(errors.CodeNotFound, "Resource not found")
		dbErr.Operation = operation
		dbErr.Cause = err
		return dbErr
	}
	if stderrors.Is(err, context.Canceled) {
		return errors.WrapDatabaseError(errors.CodeCanceled, operation, err)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.WrapDatabaseError(errors.CodeTimeout, operation, err)
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		var dbErr *errors.DatabaseError
		switch pqErr.Code {
		case "23505": // unique_violation
			dbErr = errors.NewDatabaseError(errors.CodeConflict, "Resource already exists")
		case "23503": // foreign_key_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Referenced resource does not exist")
		case "23502": // not_null_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Required field is missing")
		case "57014": // query_canceled
			dbErr = errors.NewDatabaseError(errors.CodeCanceled, "Database operation was canceled")
		case "57P01", "08000", "08003", "08006":
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseConnection, "Database connection error")
		default:
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseQuery,
				fmt.Sprintf("Database operation failed: %s", operation))
		}
		dbErr.Operation = operation
		dbErr.Cause = err
		return dbErr
	}

	// SQLite reports constraint failures only through the message.
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		dbErr := errors.NewDatabaseError(errors.CodeConflict, "Resource already exists")
		dbErr.Operation = operation
		dbErr.Cause = err
		return dbErr
	}

	dbErr := errors.NewDatabaseError(errors.CodeDatabaseQuery,
		fmt.Sprintf("Database operation failed: %s", operation))
	dbErr.Operation = operation
	dbErr.Cause = err
	return dbErr
}
