package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"homeledger/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func dsn(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func newMigrator(dbPath string) (*migrate.Migrate, error) {
	ledgerDB, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}

	driver, err := sqlite.WithInstance(ledgerDB, &sqlite.Config{})
	if err != nil {
		ledgerDB.Close()
		return nil, fmt.Errorf("create sqlite driver: %w", err)
	}

	schema, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("load ledger schema: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", schema, "sqlite", driver)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// RunMigrations brings the ledger schema at dbPath up to the latest version.
// It uses its own connection, closed before the main pool opens.
func RunMigrations(dbPath string) error {
	m, err := newMigrator(dbPath)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	version, err := SchemaVersion(m)
	if err != nil {
		return err
	}
	log.Default(log.ComponentStorage).Debug("Ledger schema ready", "version", version)
	return nil
}

// SchemaVersion reports the applied migration, 0 for an empty database.
// A dirty schema (a migration that failed halfway) is an error.
func SchemaVersion(m *migrate.Migrate) (uint, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("ledger schema version %d is dirty", version)
	}
	return version, nil
}
