// Package sqlite provides the SQLite-backed record store. Records are kept in
// memory for transactions and every committed change log is written through
// to a single records table before it becomes visible.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"spoolbook/internal/infra/persistence/memory"
	"spoolbook/internal/infra/persistence/recordsql"
	"spoolbook/internal/infra/persistence/sqlite/migrations"
	"spoolbook/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// DefaultPath is used when no database path is configured.
const DefaultPath = "spoolbook.db"

var dialect = recordsql.Dialect{
	SelectAll:   `SELECT collection, key, payload FROM records ORDER BY collection, key`,
	Upsert:      `INSERT INTO records(collection, key, payload) VALUES(?, ?, ?) ON CONFLICT(collection, key) DO UPDATE SET payload = excluded.payload`,
	Delete:      `DELETE FROM records WHERE collection = ? AND key = ?`,
	DeleteTable: `DELETE FROM records WHERE collection = ?`,
}

// Store persists records to SQLite while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

// NewStore opens (creating when needed) the database at path, migrates it
// and hydrates the in-memory state.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serializes writers and keeps :memory: databases coherent
	db.SetMaxOpenConns(1)
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	snapshot, err := recordsql.Load(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, path: path}
	s.Store = memory.NewStore(memory.WithCommitHook(s.persist))
	if err := s.ImportState(snapshot); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("hydrate sqlite state: %w", err)
	}
	return s, nil
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
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

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
