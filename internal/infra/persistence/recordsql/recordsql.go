// Package recordsql holds the SQL plumbing shared by the durable record
// stores: a transaction helper, snapshot loading and change-log replay.
package recordsql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"spoolbook/internal/infra/persistence/memory"
	"spoolbook/pkg/domain"
)

// DBTX is the subset of database/sql used by the stores.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Dialect carries the statements a driver needs to persist records.
type Dialect struct {
	SelectAll   string
	Upsert      string // collection, key, payload
	Delete      string // collection, key
	DeleteTable string // collection
}

// WithTx begins a transaction, runs fn with it, and commits on success or
// rolls back on error or panic. Panics are rethrown.
func WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(ctx, tx)
}

// Load reads every persisted record into a snapshot. Rows of collections the
// current schema does not know are skipped.
func Load(ctx context.Context, db DBTX, d Dialect) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, d.SelectAll)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := memory.Snapshot{}
	for rows.Next() {
		var (
			collection string
			key        string
			payload    []byte
		)
		if err := rows.Scan(&collection, &key, &payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		c := domain.Collection(collection)
		if !c.Known() {
			continue
		}
		if snapshot[c] == nil {
			snapshot[c] = make(map[string]json.RawMessage)
		}
		snapshot[c][key] = json.RawMessage(payload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return snapshot, nil
}

// Apply replays a transaction change log inside one database transaction.
func Apply(ctx context.Context, db *sql.DB, d Dialect, changes []domain.Change) error {
	return WithTx(ctx, db, func(ctx context.Context, tx DBTX) error {
		for _, ch := range changes {
			var err error
			switch ch.Action {
			case domain.ActionCreate, domain.ActionUpdate:
				_, err = tx.ExecContext(ctx, d.Upsert, string(ch.Collection), ch.Key, []byte(ch.After))
			case domain.ActionDelete:
				_, err = tx.ExecContext(ctx, d.Delete, string(ch.Collection), ch.Key)
			case domain.ActionClear:
				_, err = tx.ExecContext(ctx, d.DeleteTable, string(ch.Collection))
			default:
				err = fmt.Errorf("unknown action %q", ch.Action)
			}
			if err != nil {
				return fmt.Errorf("%s %s/%s: %w", ch.Action, ch.Collection, ch.Key, err)
			}
		}
		return nil
	})
}
