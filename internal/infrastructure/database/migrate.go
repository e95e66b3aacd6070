package database

import (
	"embed"
	"errors"
	"fmt"

	"bingoledger/internal/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/mysql/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// MigrateUp applies every pending migration.
func MigrateUp(cfg *config.DatabaseConfig, log *zap.Logger) error {
	m, err := newMigrate(cfg.Driver, cfg.MigrationURL())
	if err != nil {
		return err
	}
	defer closeMigrate(m, log)

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("no new migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, _, _ := m.Version()
	log.Info("migrated", zap.Uint("version", version))
	return nil
}

// MigrateDown rolls back the given number of migrations.
func MigrateDown(cfg *config.DatabaseConfig, steps int, log *zap.Logger) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}

	m, err := newMigrate(cfg.Driver, cfg.MigrationURL())
	if err != nil {
		return err
	}
	defer closeMigrate(m, log)

	err = m.Steps(-steps)
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("no migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("roll back migrations: %w", err)
	}

	version, _, verr := m.Version()
	if errors.Is(verr, migrate.ErrNilVersion) {
		log.Info("rolled back to empty schema")
		return nil
	}
	log.Info("rolled back", zap.Uint("version", version))
	return nil
}

// MigrateStatus reports the applied version. Version 0 means nothing has
// been applied yet.
func MigrateStatus(cfg *config.DatabaseConfig, log *zap.Logger) (uint, bool, error) {
	m, err := newMigrate(cfg.Driver, cfg.MigrationURL())
	if err != nil {
		return 0, false, err
	}
	defer closeMigrate(m, log)

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info("no migrations have been applied yet")
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}

	log.Info("migration status", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return version, dirty, nil
}

// RunMigrationsWithURL applies all migrations against an explicit URL. Tests
// use it with container-provided addresses.
func RunMigrationsWithURL(driver, databaseURL string) error {
	m, err := newMigrate(driver, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func newMigrate(driver, databaseURL string) (*migrate.Migrate, error) {
	switch driver {
	case "mysql", "postgres":
	default:
		return nil, fmt.Errorf("migrate: unsupported driver %q", driver)
	}

	source, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

func closeMigrate(m *migrate.Migrate, log *zap.Logger) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		log.Warn("close migrate", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
	}
}
