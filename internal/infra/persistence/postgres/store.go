// Package postgres provides a Postgres-backed record store that mirrors the
// in-memory semantics and writes each committed change log through to a JSONB
// records table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"spoolbook/internal/infra/persistence/memory"
	"spoolbook/internal/infra/persistence/recordsql"
	"spoolbook/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/spoolbook?sslmode=disable"
)

const recordsDDL = `CREATE TABLE IF NOT EXISTS records (
	collection TEXT NOT NULL,
	key TEXT NOT NULL,
	payload JSONB NOT NULL,
	PRIMARY KEY (collection, key)
)`

var dialect = recordsql.Dialect{
	SelectAll:   `SELECT collection, key, payload FROM records ORDER BY collection, key`,
	Upsert:      `INSERT INTO records(collection, key, payload) VALUES($1, $2, $3) ON CONFLICT(collection, key) DO UPDATE SET payload = EXCLUDED.payload`,
	Delete:      `DELETE FROM records WHERE collection = $1 AND key = $2`,
	DeleteTable: `DELETE FROM records WHERE collection = $1`,
}

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists records to Postgres while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN).
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, recordsDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure records table: %w", err)
	}
	snapshot, err := recordsql.Load(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db}
	s.Store = memory.NewStore(memory.WithCommitHook(s.persist))
	if err := s.ImportState(snapshot); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("hydrate postgres state: %w", err)
	}
	return s, nil
}

func (s *Store) persist(ctx context.Context, changes []domain.Change) error {
	return recordsql.Apply(ctx, s.db, dialect, changes)
}

// Close closes the in-memory store and the database handle.
func (s *Store) Close() error {
	_ = s.Store.Close()
	return s.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
