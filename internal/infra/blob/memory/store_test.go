package memory

import (
	"bytes"
	"context"
	"io"
	"testing"

	"spoolbook/internal/blob/core"
)

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	store := New()
	meta := map[string]string{"collections": "8"}
	if _, err := store.Put(ctx, "backups/a.json", bytes.NewBufferString("data"), core.PutOptions{Metadata: meta}); err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["collections"] = "mutated"

	info, rc, err := store.Get(ctx, "backups/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if info.Metadata["collections"] != "8" {
		t.Fatalf("metadata must be copied on put, got %v", info.Metadata)
	}
	info.Metadata["collections"] = "again"
	body, _ := io.ReadAll(rc)
	if string(body) != "data" {
		t.Fatalf("unexpected body %q", body)
	}
	head, err := store.Head(ctx, "backups/a.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Metadata["collections"] != "8" {
		t.Fatalf("metadata must be copied on get, got %v", head.Metadata)
	}
}
