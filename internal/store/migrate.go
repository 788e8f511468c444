package store

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/anstrom/lanscan/internal/errors"
	"github.com/anstrom/lanscan/internal/logging"
)

//go:embed migrations
var migrationFiles embed.FS

// Migration is a row of schema_migrations.
type Migration struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	AppliedAt time.Time `db:"applied_at"`
	Checksum  string    `db:"checksum"`
}

// MigrationStatus describes one embedded migration.
type MigrationStatus struct {
	Name      string
	Applied   bool
	AppliedAt time.Time
	// Modified is set when the applied checksum differs from the file.
	Modified bool
}

// Migrator applies the embedded migrations for the connection's driver.
type Migrator struct {
	db  *DB
	fs  fs.FS
	dir string
}

// NewMigrator creates a migrator for db.
func NewMigrator(db *DB) *Migrator {
	return &Migrator{db: db, fs: migrationFiles, dir: path.Join("migrations", db.Driver())}
}

var migrationsTableDDL = map[string]string{
	DriverPostgres: `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ DEFAULT NOW(),
			checksum VARCHAR(64) NOT NULL
		)`,
	DriverSQLite: `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			checksum TEXT NOT NULL
		)`,
}

func (m *Migrator) ensureMigrationsTable(ctx context.Context) error {
	ddl, ok := migrationsTableDDL[m.db.Driver()]
	if !ok {
		return errors.NewDatabaseError(errors.CodeDatabaseMigration,
			fmt.Sprintf("no migrations for driver %q", m.db.Driver()))
	}
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return errors.WrapDatabaseError(errors.CodeDatabaseMigration, "create migrations table", err)
	}
	return nil
}

func (m *Migrator) appliedMigrations(ctx context.Context) (map[string]Migration, error) {
	var migrations []Migration
	query := `SELECT id, name, applied_at, checksum FROM schema_migrations ORDER BY id`
	if err := m.db.SelectContext(ctx, &migrations, query); err != nil {
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseMigration, "list applied migrations", err)
	}

	applied := make(map[string]Migration, len(migrations))
	for _, migration := range migrations {
		applied[migration.Name] = migration
	}
	return applied, nil
}

// migrationFiles returns the sorted migration file paths.
func (m *Migrator) migrationFiles() ([]string, error) {
	var files []string
	err := fs.WalkDir(m.fs, m.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ".sql") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseMigration, "read migration files", err)
	}
	sort.Strings(files)
	return files, nil
}

func migrationName(file string) string {
	return strings.TrimSuffix(path.Base(file), ".sql")
}

func checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func (m *Migrator) execute(ctx context.Context, file string) error {
	content, err := fs.ReadFile(m.fs, file)
	if err != nil {
		return fmt.Errorf("failed to read migration file %s: %w", file, err)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", file, err)
	}

	insert := m.db.Rebind(`INSERT INTO schema_migrations (name, checksum) VALUES (?, ?)`)
	if _, err := tx.ExecContext(ctx, insert, migrationName(file), checksum(content)); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", file, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", file, err)
	}
	return nil
}

// Up applies every pending migration in name order and returns the names
// it applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	files, err := m.migrationFiles()
	if err != nil {
		return nil, err
	}

	var done []string
	for _, file := range files {
		name := migrationName(file)
		if _, ok := applied[name]; ok {
			continue
		}

		logging.InfoDatabase("Applying migration", "migration", name)
		if err := m.execute(ctx, file); err != nil {
			logging.ErrorDatabase("Migration failed", err, "migration", name)
			return done, errors.WrapDatabaseError(errors.CodeDatabaseMigration, "migrate "+name, err)
		}
		done = append(done, name)
	}
	return done, nil
}

// Status reports every embedded migration and whether it has been applied.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	files, err := m.migrationFiles()
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(files))
	for _, file := range files {
		name := migrationName(file)
		st := MigrationStatus{Name: name}
		if migration, ok := applied[name]; ok {
			st.Applied = true
			st.AppliedAt = migration.AppliedAt
			content, err := fs.ReadFile(m.fs, file)
			if err != nil {
				return nil, errors.WrapDatabaseError(errors.CodeDatabaseMigration, "read "+name, err)
			}
			st.Modified = migration.Checksum != checksum(content)
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// Reset drops every table and re-applies the migrations. All stored
// sessions are lost.
func (m *Migrator) Reset(ctx context.Context) error {
	drops := []string{
		"DROP TABLE IF EXISTS host_ports",
		"DROP TABLE IF EXISTS hosts",
		"DROP TABLE IF EXISTS scan_sessions",
		"DROP TABLE IF EXISTS schema_migrations",
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.WrapDatabaseError(errors.CodeDatabaseMigration, "begin reset", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return errors.WrapDatabaseError(errors.CodeDatabaseMigration, "reset", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.WrapDatabaseError(errors.CodeDatabaseMigration, "commit reset", err)
	}

	logging.InfoDatabase("Dropped all tables")
	_, err = m.Up(ctx)
	return err
}
