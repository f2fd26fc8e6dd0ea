package domain

import (
	"encoding/json"
	"fmt"
)

// Get decodes the record stored under key.
func Get[T any](r Reader, c Collection, key string) (T, bool, error) {
	var out T
	raw, ok, err := r.Read(c, key)
	if err != nil || !ok {
		return out, ok, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("decode %s %s: %w", c, key, err)
	}
	return out, true, nil
}

// List decodes every record of a collection.
func List[T any](r Reader, c Collection) ([]T, error) {
	raws, err := r.ReadAll(c)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](c, raws)
}

// ListBy decodes the records whose index field equals value.
func ListBy[T any](r Reader, c Collection, index, value string) ([]T, error) {
	raws, err := r.ReadIndex(c, index, value)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](c, raws)
}

// Put encodes v and writes it to the collection.
func Put(tx Transaction, c Collection, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c, err)
	}
	_, err = tx.Write(c, raw)
	return err
}

func decodeAll[T any](c Collection, raws []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c, err)
		}
		out = append(out, v)
	}
	return out, nil
}
