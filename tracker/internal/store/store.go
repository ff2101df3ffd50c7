// Package store is the data access layer for the hit counters.
//
// Every counter mutation is a single conditional upsert (INSERT ... ON
// CONFLICT DO UPDATE), so N concurrent callers targeting the same key
// always produce exactly N increments. Concurrency control lives entirely
// in the storage engine; no application-level locks are held across a
// round trip, which lets multiple collector processes share one database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Store wraps the counters database.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the counters database at dsn and applies the
// schema. Remote libsql:// and wss:// DSNs use the libsql driver; anything
// else is treated as a local SQLite path with production pragmas applied.
func Open(dsn string) (*Store, error) {
	driver := "sqlite"
	local := true
	if strings.HasPrefix(dsn, "libsql://") || strings.HasPrefix(dsn, "wss://") {
		driver = "libsql"
		local = false
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		// Each connection to :memory: is a separate database; force a
		// single connection so every caller sees the same tables.
		db.SetMaxOpenConns(1)
	}
	if local {
		for _, pragma := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 10000",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA foreign_keys = ON",
		} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("store: %s: %w", pragma, err)
			}
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{DB: db}, nil
}

// New wraps an already-opened database. The caller owns schema setup.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Init applies the schema. Only needed with New; Open does this itself.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, Schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}
