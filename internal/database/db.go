// Package database provides database setup, models, and the data access layer
// (Store) for the message log, settings, moderation and points tables.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/itl33054/wwannengBOT/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// MemoryPath opens a private in-memory database, mostly useful for tests.
const MemoryPath = ":memory:"

// filePragmas tune an on-disk database for one writer and many short reads.
var filePragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA busy_timeout=5000;",
	"PRAGMA synchronous=NORMAL;",
}

// NewDB opens the SQLite database at path and brings its schema up to date.
func NewDB(path string) (*sqlx.DB, error) {
	if path == "" {
		return nil, errors.New("database path cannot be empty")
	}
	log := slog.Default().With("component", "database", "path", path)

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite serializes writers anyway, and the points,
	// check-in and redemption transactions rely on never interleaving.
	// An in-memory database also only exists on its own connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if path != MemoryPath {
		db.SetConnMaxLifetime(5 * time.Minute)
		for _, pragma := range filePragmas {
			if _, err := db.Exec(pragma); err != nil {
				log.Warn("SQLite pragma rejected", "pragma", pragma, "error", err)
			}
		}
	}

	version, err := migrateUp(db.DB)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Closing database after failed migration", "error", closeErr)
		}
		return nil, err
	}

	log.Info("Database ready", "schema_version", version)
	return db, nil
}

// CloseDB closes the database, logging instead of returning the error so it
// can be deferred.
func CloseDB(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Error("Closing database failed", "component", "database", "error", err)
	}
}

// migrateUp applies the embedded migrations and returns the resulting
// schema version.
func migrateUp(db *sql.DB) (uint, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return 0, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	target, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("failed to prepare migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}
