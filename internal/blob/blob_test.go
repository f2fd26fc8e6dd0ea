package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"spoolbook/internal/config"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	fsStore, err := Open(ctx, config.Blob{Driver: "fs", FSRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if fsStore.Driver() != DriverFilesystem {
		t.Fatalf("unexpected driver %s", fsStore.Driver())
	}
	mem, err := Open(ctx, config.Blob{Driver: "memory"})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if mem.Driver() != DriverMemory {
		t.Fatalf("unexpected driver %s", mem.Driver())
	}
	if _, err := Open(ctx, config.Blob{Driver: "s3"}); err == nil {
		t.Fatalf("expected s3 without bucket to fail")
	}
	if _, err := Open(ctx, config.Blob{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

// Every backend must honour the same create-only and prefix listing semantics.
func TestStoresShareSemantics(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	for _, store := range []Store{fsStore, NewMemory()} {
		t.Run(string(store.Driver()), func(t *testing.T) {
			if _, err := store.Put(ctx, "backups/b.json", bytes.NewBufferString("two"), PutOptions{ContentType: "application/json"}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, err := store.Put(ctx, "backups/a.json", bytes.NewBufferString("one"), PutOptions{}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, err := store.Put(ctx, "other/c.json", bytes.NewBufferString("x"), PutOptions{}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, err := store.Put(ctx, "backups/a.json", bytes.NewBufferString("again"), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected exists error, got %v", err)
			}
			infos, err := store.List(ctx, "backups/")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(infos) != 2 || infos[0].Key != "backups/a.json" || infos[1].Key != "backups/b.json" {
				t.Fatalf("unexpected listing %+v", infos)
			}
			info, rc, err := store.Get(ctx, "backups/b.json")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			body, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(body) != "two" || info.ContentType != "application/json" || info.Size != 3 {
				t.Fatalf("unexpected blob %q %+v", body, info)
			}
			if _, _, err := store.Get(ctx, "backups/missing.json"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
			existed, err := store.Delete(ctx, "backups/a.json")
			if err != nil || !existed {
				t.Fatalf("delete: %v %v", existed, err)
			}
			existed, err = store.Delete(ctx, "backups/a.json")
			if err != nil || existed {
				t.Fatalf("second delete: %v %v", existed, err)
			}
			if _, err := store.Head(ctx, "backups/a.json"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected head not found, got %v", err)
			}
		})
	}
}
