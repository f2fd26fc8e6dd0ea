package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spoolbook/internal/core"
	"spoolbook/internal/infra/persistence/memory"
	"spoolbook/pkg/domain"
)

var now = time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type fixture struct {
	svc   *core.Service
	store *memory.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	return fixture{store: store, svc: core.NewService(store, core.WithClock(func() time.Time { return now }))}
}

func (f fixture) aggregator(opts ...Option) *Aggregator {
	return NewAggregator(f.store, append([]Option{WithClock(func() time.Time { return now })}, opts...)...)
}

func (f fixture) sku(t *testing.T, brand string) domain.FilamentSku {
	t.Helper()
	sku, err := f.svc.CreateSku(context.Background(), core.SkuInput{Brand: brand})
	require.NoError(t, err)
	return sku
}

func (f fixture) job(t *testing.T, skuID string, grams, scrap float64, at time.Time) {
	t.Helper()
	_, err := f.svc.RecordPrintJob(context.Background(), core.PrintJobInput{SkuID: skuID, GramsUsed: grams, ScrapG: scrap, Timestamp: at})
	require.NoError(t, err)
}

func (f fixture) snapshot(t *testing.T, skuID, vendor string, price float64, weight *float64, at time.Time) {
	t.Helper()
	_, err := f.svc.RecordSnapshot(context.Background(), core.SnapshotInput{SkuID: skuID, Vendor: vendor, BasePrice: price, WeightOverride: weight, Timestamp: at})
	require.NoError(t, err)
}

func grams(v float64) *float64 { return &v }

func TestUsageRollupHonoursWindow(t *testing.T) {
	f := newFixture(t)
	sku := f.sku(t, "Sunlu")
	f.job(t, sku.ID, 100, 0, now)
	f.job(t, sku.ID, 50, 0, now.Add(-31*day))
	f.job(t, sku.ID, 25, 0, now.Add(-30*day))

	usage, err := f.aggregator().UsageRollup(context.Background())
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.InDelta(t, 100, usage[0].UsedG, 1e-9)
	assert.Equal(t, 1, usage[0].Jobs)
	assert.Equal(t, "Sunlu", usage[0].Sku.Brand)

	usage, err = f.aggregator(WithWindowDays(60)).UsageRollup(context.Background())
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.InDelta(t, 175, usage[0].UsedG, 1e-9)
}

func TestUsageRollupAggregatesBeforeTruncating(t *testing.T) {
	f := newFixture(t)
	big := f.sku(t, "Big")
	mid := f.sku(t, "Mid")
	many := f.sku(t, "Many")
	f.job(t, big.ID, 300, 0, now.Add(-time.Hour))
	f.job(t, mid.ID, 200, 0, now.Add(-time.Hour))
	for i := 0; i < 8; i++ {
		f.job(t, many.ID, 50, 0, now.Add(-time.Duration(i)*day))
	}

	usage, err := f.aggregator(WithTopN(2)).UsageRollup(context.Background())
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, many.ID, usage[0].Sku.ID)
	assert.InDelta(t, 400, usage[0].UsedG, 1e-9)
	assert.Equal(t, big.ID, usage[1].Sku.ID)
}

func TestWasteHotspots(t *testing.T) {
	f := newFixture(t)
	clean := f.sku(t, "Clean")
	messy := f.sku(t, "Messy")
	old := f.sku(t, "Old")
	f.job(t, clean.ID, 100, 5, now.Add(-day))
	f.job(t, messy.ID, 40, 10, now.Add(-day))
	f.job(t, messy.ID, 60, 15, now.Add(-2*day))
	f.job(t, old.ID, 10, 10, now.Add(-40*day))

	hot, err := f.aggregator().WasteHotspots(context.Background())
	require.NoError(t, err)
	require.Len(t, hot, 2, "SKUs without usage in the window have no rate")
	assert.Equal(t, messy.ID, hot[0].Sku.ID)
	assert.InDelta(t, 25, hot[0].WasteRate, 1e-9)
	assert.Equal(t, clean.ID, hot[1].Sku.ID)
	assert.InDelta(t, 5, hot[1].WasteRate, 1e-9)
}

func TestDealRadarUsesLatestWatchedSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.sku(t, "A")
	b := f.sku(t, "B")
	c := f.sku(t, "C")
	unwatched := f.sku(t, "Unwatched")
	for _, id := range []string{a.ID, b.ID, c.ID} {
		require.NoError(t, f.svc.ToggleWatch(ctx, id, true))
	}

	f.snapshot(t, a.ID, "Amazon", 10, nil, now.Add(-2*day))
	f.snapshot(t, a.ID, "Prusa", 8, nil, now.Add(-day))
	f.snapshot(t, b.ID, "Amazon", 12, nil, now.Add(-day))
	f.snapshot(t, c.ID, "Amazon", 5, nil, now.Add(-3*day))
	f.snapshot(t, c.ID, "Amazon", 5, grams(0), now.Add(-day))
	f.snapshot(t, unwatched.ID, "Amazon", 1, nil, now.Add(-day))

	deals, err := f.aggregator().DealRadar(ctx)
	require.NoError(t, err)
	require.Len(t, deals, 2)
	assert.Equal(t, a.ID, deals[0].Sku.ID)
	assert.InDelta(t, 8, *deals[0].Snapshot.PerKg, 1e-9)
	assert.Equal(t, "Prusa", deals[0].Vendor)
	assert.Equal(t, b.ID, deals[1].Sku.ID)
}

func TestTrend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sku := f.sku(t, "Trendy")
	agg := f.aggregator()

	empty, err := agg.Trend(ctx, sku.ID)
	require.NoError(t, err)
	assert.Nil(t, empty.Latest)
	assert.Nil(t, empty.PercentChange)
	assert.Empty(t, empty.Snapshots)

	f.snapshot(t, sku.ID, "Amazon", 25, nil, now.Add(-10*day))
	f.snapshot(t, sku.ID, "Amazon", 22, nil, now.Add(-5*day))
	f.snapshot(t, sku.ID, "Amazon", 20, nil, now.Add(-day))

	trend, err := agg.Trend(ctx, sku.ID)
	require.NoError(t, err)
	require.Len(t, trend.Snapshots, 3)
	assert.InDelta(t, 20, trend.Latest.FinalPrice, 1e-9)
	assert.InDelta(t, 25, trend.Oldest.FinalPrice, 1e-9)
	require.NotNil(t, trend.PercentChange)
	assert.InDelta(t, -20, *trend.PercentChange, 1e-9)
}

func TestTrendUndefinedChange(t *testing.T) {
	f := newFixture(t)
	sku := f.sku(t, "Free")
	f.snapshot(t, sku.ID, "Giveaway", 0, nil, now.Add(-day))
	f.snapshot(t, sku.ID, "Shop", 20, nil, now)

	trend, err := f.aggregator().Trend(context.Background(), sku.ID)
	require.NoError(t, err)
	require.NotNil(t, trend.Oldest)
	assert.Nil(t, trend.PercentChange, "a zero oldest per-kg has no percent change")
}

func TestAnalyticsOnEmptyStore(t *testing.T) {
	agg := NewAggregator(memory.NewStore())
	ctx := context.Background()

	usage, err := agg.UsageRollup(ctx)
	require.NoError(t, err)
	assert.Empty(t, usage)
	hot, err := agg.WasteHotspots(ctx)
	require.NoError(t, err)
	assert.Empty(t, hot)
	deals, err := agg.DealRadar(ctx)
	require.NoError(t, err)
	assert.Empty(t, deals)
}
