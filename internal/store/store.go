// Package store is the sole durable state of the synchronizer: it exposes
// repositories for every entity in the data model and a Transaction
// primitive that gives the caller exclusive, atomic, serialized write
// access. Every other component — Intent API, Dispatcher, Reconciler — is
// handed a *Store explicitly; there is no package-level singleton.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"synctl/internal/models"
)

// Store wraps a *gorm.DB and exposes the repository operations named in
// the package doc comment above.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the SQLite database at path, enables
// WAL mode and foreign keys, and runs forward-only migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	database, err := gorm.Open(sqlite.Open(path), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// SQLite: many readers, one writer. A small pool is enough to let
	// readers proceed while a write transaction holds the WAL lock.
	sqlDB.SetMaxOpenConns(8)
	sqlDB.SetMaxIdleConns(4)

	if err := database.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := database.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := database.Exec("PRAGMA busy_timeout=5000").Error; err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := migrate(database); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: database}, nil
}

// OpenWithDB wraps an already-open *gorm.DB without re-running PRAGMAs —
// used by tests that want an in-memory database.
func OpenWithDB(database *gorm.DB) (*Store, error) {
	if err := migrate(database); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{db: database}, nil
}

func migrate(database *gorm.DB) error {
	return database.AutoMigrate(
		&models.Member{},
		&models.Task{},
		&models.Mapping{},
		&models.SheetTableRegistryEntry{},
		&models.OutboxEvent{},
		&models.SyncCursor{},
		&models.AuditEntry{},
	)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction gives fn exclusive, atomic, serialized write access: all of
// fn's writes commit together or none do. fn receives a *Store bound to
// the transactional connection, so every repository method called through
// it participates in the same transaction.
func (s *Store) Transaction(fn func(tx *Store) error) error {
	return s.db.Transaction(func(gtx *gorm.DB) error {
		return fn(&Store{db: gtx})
	})
}

// DB exposes the underlying *gorm.DB for callers that need direct query
// flexibility (e.g. CLI listing commands with ad-hoc filters). Mutations
// should go through the typed repository methods instead.
func (s *Store) DB() *gorm.DB {
	return s.db
}
