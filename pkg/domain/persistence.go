package domain

import (
	"context"
	"encoding/json"
)

// Action describes a mutation captured in a transaction change log.
type Action string

// Change log actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionClear  Action = "clear"
)

// Change is one entry of a transaction change log. Before and After hold the
// raw records; Key is empty for ActionClear.
type Change struct {
	Collection Collection
	Key        string
	Action     Action
	Before     json.RawMessage
	After      json.RawMessage
}

// Reader is the read surface shared by transactions and read-only views.
// Sequences are ordered by primary key.
type Reader interface {
	Read(c Collection, key string) (json.RawMessage, bool, error)
	ReadAll(c Collection) ([]json.RawMessage, error)
	ReadIndex(c Collection, index, value string) ([]json.RawMessage, error)
}

// Transaction is a mutable atomic scope over a declared set of collections.
// Reads observe the scope's own earlier writes.
type Transaction interface {
	Reader
	// Write upserts record by the collection's primary key and returns the key.
	Write(c Collection, record json.RawMessage) (string, error)
	Remove(c Collection, key string) error
	Clear(c Collection) error
	Changes() []Change
}

// PersistentStore is the store adapter contract. Transactions that share a
// collection are serialized; transactions over disjoint collections may run
// concurrently. A transaction whose fn returns an error commits nothing.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, scope []Collection, fn func(Transaction) error) error
	View(ctx context.Context, scope []Collection, fn func(Reader) error) error
	Close() error
}

// CommitHook receives the change log of a transaction before it becomes
// visible. Returning an error discards the transaction.
type CommitHook func(ctx context.Context, changes []Change) error
