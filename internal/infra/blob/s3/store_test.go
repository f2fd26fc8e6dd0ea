package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"spoolbook/internal/blob/core"
)

func newTestStore(t *testing.T) (*Store, *fakeS3) {
	t.Helper()
	fake := newFakeS3()
	store, err := New(context.Background(), Config{
		Bucket:          "spoolbook-backups",
		Endpoint:        "https://s3.test.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      &http.Client{Transport: fake},
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, fake
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestPutGetListDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	if store.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver")
	}
	info, err := store.Put(ctx, "backups/a.json", bytes.NewReader([]byte(`{"version":1}`)), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.ETag != "etag" || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "backups/a.json", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected exists error, got %v", err)
	}
	_, rc, err := store.Get(ctx, "backups/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"version":1}` {
		t.Fatalf("unexpected body %q", body)
	}
	if _, _, err := store.Get(ctx, "backups/none.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	infos, err := store.List(ctx, "backups/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "backups/a.json" {
		t.Fatalf("unexpected listing %+v", infos)
	}
	existed, err := store.Delete(ctx, "backups/a.json")
	if err != nil || !existed {
		t.Fatalf("delete: %v %v", existed, err)
	}
	existed, err = store.Delete(ctx, "backups/a.json")
	if err != nil || existed {
		t.Fatalf("second delete should report absence: %v %v", existed, err)
	}
}
