package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spoolbook/internal/config"
	"spoolbook/internal/infra/persistence/memory"
	"spoolbook/internal/infra/persistence/sqlite"
	"spoolbook/pkg/domain"
)

func TestOpenPersistentStore(t *testing.T) {
	ctx := context.Background()

	mem, err := OpenPersistentStore(ctx, config.Storage{Driver: string(StorageMemory)})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, mem)
	require.NoError(t, mem.Close())

	path := filepath.Join(t.TempDir(), "spoolbook.db")
	store, err := OpenPersistentStore(ctx, config.Storage{SQLitePath: path})
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, store)

	svc := NewService(store)
	sku, err := svc.CreateSku(ctx, SkuInput{Brand: "Polymaker"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := OpenPersistentStore(ctx, config.Storage{Driver: string(StorageSQLite), SQLitePath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	got, err := NewService(reopened).GetSku(ctx, sku.ID)
	require.NoError(t, err)
	assert.Equal(t, sku, got)

	_, err = OpenPersistentStore(ctx, config.Storage{Driver: "carrier-pigeon"})
	require.Error(t, err)
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	svc, store := newTestService(t)
	require.NoError(t, store.Close())
	_, err := svc.ListSkus(context.Background(), SkuFilter{})
	require.ErrorIs(t, err, domain.ErrStoreClosed)
}
