package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/small-frappuccino/guildpanel/pkg/log"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Dialect selects the SQL flavour and its migration set.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// MigrationStatus is the schema version recorded by golang-migrate.
type MigrationStatus struct {
	Version uint
	Dirty   bool
	Applied bool
}

// newMigrate builds a migrate instance that owns db; closing it closes db.
func newMigrate(dialect Dialect, db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations/"+string(dialect))
	if err != nil {
		return nil, fmt.Errorf("open %s migrations: %w", dialect, err)
	}

	var driver database.Driver
	switch dialect {
	case DialectSQLite:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	case DialectPostgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		return nil, fmt.Errorf("unknown dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s migration driver: %w", dialect, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// openForMigration opens a dedicated connection, since golang-migrate closes
// the database it was handed.
func openForMigration(dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case DialectSQLite:
		return sql.Open("sqlite", dsn)
	case DialectPostgres:
		cfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse database URL: %w", err)
		}
		return stdlib.OpenDB(*cfg.ConnConfig), nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", dialect)
	}
}

// MigrateUp applies every pending migration for dialect against dsn.
func MigrateUp(dialect Dialect, dsn string) error {
	db, err := openForMigration(dialect, dsn)
	if err != nil {
		return err
	}
	m, err := newMigrate(dialect, db)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run %s migrations: %w", dialect, err)
	} else if errors.Is(err, migrate.ErrNoChange) {
		log.DatabaseLogger().Debug("No new migrations to apply", "dialect", string(dialect))
		return nil
	}

	version, _, _ := m.Version()
	log.DatabaseLogger().Info("Schema migrated", "dialect", string(dialect), "version", version)
	return nil
}

// MigrateDown rolls back steps migrations.
func MigrateDown(dialect Dialect, dsn string, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	db, err := openForMigration(dialect, dsn)
	if err != nil {
		return err
	}
	m, err := newMigrate(dialect, db)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("roll back %s migrations: %w", dialect, err)
	}
	return nil
}

// Status reports the current schema version.
func Status(dialect Dialect, dsn string) (MigrationStatus, error) {
	db, err := openForMigration(dialect, dsn)
	if err != nil {
		return MigrationStatus{}, err
	}
	m, err := newMigrate(dialect, db)
	if err != nil {
		_ = db.Close()
		return MigrationStatus{}, err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("read migration version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty, Applied: true}, nil
}
