// Package memory provides the in-memory transactional record store. It is the
// store used by tests and the engine the durable stores hydrate at open.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"spoolbook/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

// Snapshot captures a point-in-time copy of every collection keyed by primary key.
type Snapshot map[domain.Collection]map[string]json.RawMessage

// Option configures a Store.
type Option func(*Store)

// WithCommitHook installs a hook that sees every non-empty change log before
// the transaction becomes visible.
func WithCommitHook(hook domain.CommitHook) Option {
	return func(s *Store) { s.hook = hook }
}

// Store is a set of keyed collections guarded by one lock per collection.
// Transactions lock the collections they declare in canonical order, so
// transactions over disjoint collections never contend.
type Store struct {
	locks  []sync.RWMutex
	tables []*table
	hook   domain.CommitHook
	closed atomic.Bool
}

// NewStore constructs an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		locks:  make([]sync.RWMutex, len(domain.Collections)),
		tables: make([]*table, len(domain.Collections)),
	}
	for i, c := range domain.Collections {
		schema, _ := domain.SchemaFor(c)
		s.tables[i] = newTable(schema)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTransaction executes fn within a copy-on-write scope over the declared
// collections. Nothing is visible to other callers unless fn and the commit
// hook both succeed.
func (s *Store) RunInTransaction(ctx context.Context, scope []domain.Collection, fn func(domain.Transaction) error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	ordinals, err := normalizeScope(scope)
	if err != nil {
		return err
	}
	for _, i := range ordinals {
		s.locks[i].Lock()
	}
	defer func() {
		for j := len(ordinals) - 1; j >= 0; j-- {
			s.locks[ordinals[j]].Unlock()
		}
	}()

	tx := &transaction{store: s, scope: make(map[int]*table, len(ordinals))}
	for _, i := range ordinals {
		tx.scope[i] = nil
	}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.changes) == 0 {
		return nil
	}
	if s.hook != nil {
		if err := s.hook(ctx, tx.Changes()); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrTransaction, err)
		}
	}
	for i, working := range tx.scope {
		if working != nil {
			s.tables[i] = working
		}
	}
	return nil
}

// View executes fn against a read scope spanning the declared collections.
// Writers to those collections wait until fn returns.
func (s *Store) View(ctx context.Context, scope []domain.Collection, fn func(domain.Reader) error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	ordinals, err := normalizeScope(scope)
	if err != nil {
		return err
	}
	for _, i := range ordinals {
		s.locks[i].RLock()
	}
	defer func() {
		for j := len(ordinals) - 1; j >= 0; j-- {
			s.locks[ordinals[j]].RUnlock()
		}
	}()
	v := view{tables: make(map[int]*table, len(ordinals))}
	for _, i := range ordinals {
		v.tables[i] = s.tables[i]
	}
	return fn(v)
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	out := make(Snapshot, len(domain.Collections))
	for i, c := range domain.Collections {
		s.locks[i].RLock()
		records := make(map[string]json.RawMessage, len(s.tables[i].records))
		for k, v := range s.tables[i].records {
			records[k] = cloneRaw(v)
		}
		s.locks[i].RUnlock()
		out[c] = records
	}
	return out
}

// ImportState replaces the store state with the snapshot without invoking the
// commit hook. Durable stores use it to hydrate at open.
func (s *Store) ImportState(snapshot Snapshot) error {
	fresh := make([]*table, len(domain.Collections))
	for i, c := range domain.Collections {
		schema, _ := domain.SchemaFor(c)
		t := newTable(schema)
		for key, raw := range snapshot[c] {
			got, err := t.put(raw)
			if err != nil {
				return fmt.Errorf("import %s: %w", c, err)
			}
			if got != key {
				return fmt.Errorf("import %s: record stored under %q has key %q", c, key, got)
			}
		}
		fresh[i] = t
	}
	for i := range fresh {
		s.locks[i].Lock()
	}
	copy(s.tables, fresh)
	for i := len(fresh) - 1; i >= 0; i-- {
		s.locks[i].Unlock()
	}
	return nil
}

// Close releases the store; later calls fail with domain.ErrStoreClosed.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if s.closed.Load() {
		return domain.ErrStoreClosed
	}
	return ctx.Err()
}

func normalizeScope(scope []domain.Collection) ([]int, error) {
	if len(scope) == 0 {
		return nil, fmt.Errorf("empty transaction scope")
	}
	seen := make(map[int]struct{}, len(scope))
	out := make([]int, 0, len(scope))
	for _, c := range scope {
		i := c.Ordinal()
		if i < 0 {
			return nil, fmt.Errorf("unknown collection %q", c)
		}
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

type transaction struct {
	store   *Store
	scope   map[int]*table
	changes []domain.Change
}

func (tx *transaction) base(c domain.Collection) (int, *table, error) {
	i := c.Ordinal()
	working, ok := tx.scope[i]
	if i < 0 || !ok {
		return 0, nil, fmt.Errorf("%w: %s", domain.ErrOutOfScope, c)
	}
	if working != nil {
		return i, working, nil
	}
	return i, tx.store.tables[i], nil
}

func (tx *transaction) writable(c domain.Collection) (*table, error) {
	i, t, err := tx.base(c)
	if err != nil {
		return nil, err
	}
	if tx.scope[i] == nil {
		t = t.clone()
		tx.scope[i] = t
	}
	return t, nil
}

func (tx *transaction) Read(c domain.Collection, key string) (json.RawMessage, bool, error) {
	_, t, err := tx.base(c)
	if err != nil {
		return nil, false, err
	}
	raw, ok := t.records[key]
	return cloneRaw(raw), ok, nil
}

func (tx *transaction) ReadAll(c domain.Collection) ([]json.RawMessage, error) {
	_, t, err := tx.base(c)
	if err != nil {
		return nil, err
	}
	return t.all(), nil
}

func (tx *transaction) ReadIndex(c domain.Collection, index, value string) ([]json.RawMessage, error) {
	_, t, err := tx.base(c)
	if err != nil {
		return nil, err
	}
	return t.lookup(index, value)
}

func (tx *transaction) Write(c domain.Collection, record json.RawMessage) (string, error) {
	t, err := tx.writable(c)
	if err != nil {
		return "", err
	}
	key, err := t.keyOf(record)
	if err != nil {
		return "", err
	}
	before, existed := t.records[key]
	if _, err := t.put(record); err != nil {
		return "", err
	}
	action := domain.ActionCreate
	if existed {
		action = domain.ActionUpdate
	}
	tx.changes = append(tx.changes, domain.Change{
		Collection: c,
		Key:        key,
		Action:     action,
		Before:     cloneRaw(before),
		After:      cloneRaw(t.records[key]),
	})
	return key, nil
}

func (tx *transaction) Remove(c domain.Collection, key string) error {
	t, err := tx.writable(c)
	if err != nil {
		return err
	}
	before, ok := t.records[key]
	if !ok {
		return nil
	}
	t.remove(key)
	tx.changes = append(tx.changes, domain.Change{Collection: c, Key: key, Action: domain.ActionDelete, Before: cloneRaw(before)})
	return nil
}

func (tx *transaction) Clear(c domain.Collection) error {
	t, err := tx.writable(c)
	if err != nil {
		return err
	}
	t.reset()
	tx.changes = append(tx.changes, domain.Change{Collection: c, Action: domain.ActionClear})
	return nil
}

func (tx *transaction) Changes() []domain.Change {
	return append([]domain.Change(nil), tx.changes...)
}

type view struct {
	tables map[int]*table
}

func (v view) table(c domain.Collection) (*table, error) {
	t, ok := v.tables[c.Ordinal()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOutOfScope, c)
	}
	return t, nil
}

func (v view) Read(c domain.Collection, key string) (json.RawMessage, bool, error) {
	t, err := v.table(c)
	if err != nil {
		return nil, false, err
	}
	raw, ok := t.records[key]
	return cloneRaw(raw), ok, nil
}

func (v view) ReadAll(c domain.Collection) ([]json.RawMessage, error) {
	t, err := v.table(c)
	if err != nil {
		return nil, err
	}
	return t.all(), nil
}

func (v view) ReadIndex(c domain.Collection, index, value string) ([]json.RawMessage, error) {
	t, err := v.table(c)
	if err != nil {
		return nil, err
	}
	return t.lookup(index, value)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

// compact normalizes a record to its compact JSON encoding.
func compact(raw json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
