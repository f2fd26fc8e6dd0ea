package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"spoolbook/pkg/domain"
)

// table holds one collection's records and its secondary indexes
// (index name -> field value -> set of primary keys).
type table struct {
	schema  domain.Schema
	records map[string]json.RawMessage
	indexes map[string]map[string]map[string]struct{}
}

func newTable(schema domain.Schema) *table {
	t := &table{schema: schema}
	t.reset()
	return t
}

func (t *table) reset() {
	t.records = make(map[string]json.RawMessage)
	t.indexes = make(map[string]map[string]map[string]struct{}, len(t.schema.Indexes))
	for _, idx := range t.schema.Indexes {
		t.indexes[idx] = make(map[string]map[string]struct{})
	}
}

// clone copies the maps; raw records are never mutated in place so they are shared.
func (t *table) clone() *table {
	cp := &table{
		schema:  t.schema,
		records: make(map[string]json.RawMessage, len(t.records)),
		indexes: make(map[string]map[string]map[string]struct{}, len(t.indexes)),
	}
	for k, v := range t.records {
		cp.records[k] = v
	}
	for name, values := range t.indexes {
		vals := make(map[string]map[string]struct{}, len(values))
		for value, keys := range values {
			set := make(map[string]struct{}, len(keys))
			for k := range keys {
				set[k] = struct{}{}
			}
			vals[value] = set
		}
		cp.indexes[name] = vals
	}
	return cp
}

func (t *table) keyOf(record json.RawMessage) (string, error) {
	fields, err := decodeFields(record)
	if err != nil {
		return "", err
	}
	key, ok := stringField(fields, t.schema.KeyField)
	if !ok || key == "" {
		return "", domain.Invalid(t.schema.KeyField, fmt.Sprintf("must be a non-empty string in %s records", t.schema.Name))
	}
	return key, nil
}

// put upserts a record and maintains the indexes, returning its primary key.
func (t *table) put(record json.RawMessage) (string, error) {
	normalized, err := compact(record)
	if err != nil {
		return "", domain.Invalid("record", fmt.Sprintf("is not valid JSON: %v", err))
	}
	fields, err := decodeFields(normalized)
	if err != nil {
		return "", err
	}
	key, ok := stringField(fields, t.schema.KeyField)
	if !ok || key == "" {
		return "", domain.Invalid(t.schema.KeyField, fmt.Sprintf("must be a non-empty string in %s records", t.schema.Name))
	}
	if _, exists := t.records[key]; exists {
		t.unindex(key)
	}
	t.records[key] = normalized
	for _, idx := range t.schema.Indexes {
		value, ok := indexValue(fields, idx)
		if !ok {
			continue
		}
		keys := t.indexes[idx][value]
		if keys == nil {
			keys = make(map[string]struct{})
			t.indexes[idx][value] = keys
		}
		keys[key] = struct{}{}
	}
	return key, nil
}

func (t *table) remove(key string) {
	if _, ok := t.records[key]; !ok {
		return
	}
	t.unindex(key)
	delete(t.records, key)
}

func (t *table) unindex(key string) {
	fields, err := decodeFields(t.records[key])
	if err != nil {
		return
	}
	for _, idx := range t.schema.Indexes {
		value, ok := indexValue(fields, idx)
		if !ok {
			continue
		}
		if keys := t.indexes[idx][value]; keys != nil {
			delete(keys, key)
			if len(keys) == 0 {
				delete(t.indexes[idx], value)
			}
		}
	}
}

func (t *table) all() []json.RawMessage {
	keys := make([]string, 0, len(t.records))
	for k := range t.records {
		keys = append(keys, k)
	}
	return t.collect(keys)
}

func (t *table) lookup(index, value string) ([]json.RawMessage, error) {
	values, ok := t.indexes[index]
	if !ok {
		return nil, fmt.Errorf("collection %s has no index %q", t.schema.Name, index)
	}
	keys := make([]string, 0, len(values[value]))
	for k := range values[value] {
		keys = append(keys, k)
	}
	return t.collect(keys), nil
}

func (t *table) collect(keys []string) []json.RawMessage {
	sort.Strings(keys)
	out := make([]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		out = append(out, cloneRaw(t.records[k]))
	}
	return out
}

func decodeFields(record json.RawMessage) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(record, &fields); err != nil || fields == nil {
		return nil, domain.Invalid("record", "must be a JSON object")
	}
	return fields, nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := fields[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// indexValue returns the indexed form of a field: strings as-is, other
// scalars by their JSON text. Missing, null and empty values are not indexed.
func indexValue(fields map[string]json.RawMessage, name string) (string, bool) {
	if s, ok := stringField(fields, name); ok {
		return s, s != ""
	}
	raw, ok := fields[name]
	if !ok {
		return "", false
	}
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return "", false
	}
	return text, true
}
