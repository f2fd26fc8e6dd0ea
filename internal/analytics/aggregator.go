// Package analytics computes read-only roll-ups over the spoolbook dataset.
// Results are derived from the current store contents on every call and are
// never persisted.
package analytics

import (
	"context"
	"sort"
	"time"

	"spoolbook/internal/logging"
	"spoolbook/pkg/domain"
)

const (
	defaultWindow = 30 * 24 * time.Hour
	defaultTopN   = 12
)

// Aggregator computes usage, waste, deal and trend views.
type Aggregator struct {
	store  domain.PersistentStore
	now    func() time.Time
	window time.Duration
	topN   int
	logger logging.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the reference time for the trailing window.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithWindowDays sets the trailing window used by usage and waste roll-ups.
func WithWindowDays(days int) Option {
	return func(a *Aggregator) {
		if days > 0 {
			a.window = time.Duration(days) * 24 * time.Hour
		}
	}
}

// WithTopN sets how many rows the ranked views return.
func WithTopN(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.topN = n
		}
	}
}

// WithLogger installs a structured logger.
func WithLogger(logger logging.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAggregator constructs an aggregator reading from store.
func NewAggregator(store domain.PersistentStore, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		window: defaultWindow,
		topN:   defaultTopN,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SkuUsage is the filament consumed by one SKU inside the window.
type SkuUsage struct {
	Sku    domain.FilamentSku
	UsedG  float64
	ScrapG float64
	Jobs   int
}

// WasteHotspot is a SKU ranked by scrap as a percentage of grams used.
type WasteHotspot struct {
	SkuUsage
	WasteRate float64
}

// Deal is the latest priced snapshot of a watched SKU.
type Deal struct {
	Sku      domain.FilamentSku
	Vendor   string
	Snapshot domain.PriceSnapshot
}

// Trend summarises the price history of one SKU. Latest and Oldest are nil
// when the SKU has no snapshots; PercentChange is nil when it is undefined.
type Trend struct {
	SkuID         string
	Snapshots     []domain.PriceSnapshot
	Latest        *domain.PriceSnapshot
	Oldest        *domain.PriceSnapshot
	PercentChange *float64
}

// UsageRollup ranks SKUs by grams used in the trailing window, highest first.
func (a *Aggregator) UsageRollup(ctx context.Context) ([]SkuUsage, error) {
	usage, err := a.windowUsage(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(usage, func(i, j int) bool {
		if usage[i].UsedG != usage[j].UsedG {
			return usage[i].UsedG > usage[j].UsedG
		}
		return usage[i].Sku.ID < usage[j].Sku.ID
	})
	a.logger.Debug(ctx, "usage rollup computed", "skus", len(usage))
	return truncate(usage, a.topN), nil
}

// WasteHotspots ranks SKUs by waste rate in the trailing window, highest
// first. SKUs without usage have no rate and are left out.
func (a *Aggregator) WasteHotspots(ctx context.Context) ([]WasteHotspot, error) {
	usage, err := a.windowUsage(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]WasteHotspot, 0, len(usage))
	for _, u := range usage {
		if u.UsedG <= 0 {
			continue
		}
		out = append(out, WasteHotspot{SkuUsage: u, WasteRate: u.ScrapG / u.UsedG * 100})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WasteRate != out[j].WasteRate {
			return out[i].WasteRate > out[j].WasteRate
		}
		return out[i].Sku.ID < out[j].Sku.ID
	})
	a.logger.Debug(ctx, "waste hotspots computed", "skus", len(out))
	return truncate(out, a.topN), nil
}

// DealRadar lists the latest snapshot of every watched SKU, cheapest per kg
// first. A SKU whose latest snapshot has no per-kg price is left out.
func (a *Aggregator) DealRadar(ctx context.Context) ([]Deal, error) {
	scope := []domain.Collection{
		domain.CollectionFilamentSkus,
		domain.CollectionVendorListings,
		domain.CollectionPriceSnapshots,
		domain.CollectionWatchlist,
	}
	var deals []Deal
	err := a.store.View(ctx, scope, func(r domain.Reader) error {
		watched, err := domain.List[domain.WatchlistEntry](r, domain.CollectionWatchlist)
		if err != nil {
			return err
		}
		for _, w := range watched {
			snaps, err := domain.ListBy[domain.PriceSnapshot](r, domain.CollectionPriceSnapshots, domain.IndexFilamentSku, w.FilamentSkuID)
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				continue
			}
			domain.SortSnapshotsNewestFirst(snaps)
			latest := snaps[0]
			if latest.PerKg == nil {
				continue
			}
			sku, err := lookupSku(r, w.FilamentSkuID)
			if err != nil {
				return err
			}
			listing, _, err := domain.Get[domain.VendorListing](r, domain.CollectionVendorListings, latest.ListingID)
			if err != nil {
				return err
			}
			deals = append(deals, Deal{Sku: sku, Vendor: listing.Vendor, Snapshot: latest})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(deals, func(i, j int) bool {
		pi, pj := *deals[i].Snapshot.PerKg, *deals[j].Snapshot.PerKg
		if pi != pj {
			return pi < pj
		}
		return deals[i].Sku.ID < deals[j].Sku.ID
	})
	a.logger.Debug(ctx, "deal radar computed", "deals", len(deals))
	return truncate(deals, a.topN), nil
}

// Trend returns the price history summary of one SKU. A SKU without
// snapshots yields an empty trend, not an error.
func (a *Aggregator) Trend(ctx context.Context, skuID string) (Trend, error) {
	trend := Trend{SkuID: skuID}
	err := a.store.View(ctx, []domain.Collection{domain.CollectionPriceSnapshots}, func(r domain.Reader) error {
		var err error
		trend.Snapshots, err = domain.ListBy[domain.PriceSnapshot](r, domain.CollectionPriceSnapshots, domain.IndexFilamentSku, skuID)
		return err
	})
	if err != nil {
		return Trend{}, err
	}
	if len(trend.Snapshots) == 0 {
		a.logger.Debug(ctx, "trend has no snapshots", "sku", skuID)
		return trend, nil
	}
	domain.SortSnapshotsNewestFirst(trend.Snapshots)
	latest := trend.Snapshots[0]
	oldest := trend.Snapshots[len(trend.Snapshots)-1]
	trend.Latest, trend.Oldest = &latest, &oldest
	if latest.PerKg != nil && oldest.PerKg != nil && *oldest.PerKg != 0 {
		pct := (*latest.PerKg - *oldest.PerKg) / *oldest.PerKg * 100
		trend.PercentChange = &pct
	}
	a.logger.Debug(ctx, "trend computed", "sku", skuID, "snapshots", len(trend.Snapshots))
	return trend, nil
}

// windowUsage aggregates every job newer than now minus the window, per SKU.
func (a *Aggregator) windowUsage(ctx context.Context) ([]SkuUsage, error) {
	cutoff := a.now().Add(-a.window)
	scope := []domain.Collection{domain.CollectionFilamentSkus, domain.CollectionPrintJobs}
	var out []SkuUsage
	err := a.store.View(ctx, scope, func(r domain.Reader) error {
		jobs, err := domain.List[domain.PrintJob](r, domain.CollectionPrintJobs)
		if err != nil {
			return err
		}
		bySku := make(map[string]*SkuUsage)
		var order []string
		for _, job := range jobs {
			if !job.Timestamp.After(cutoff) {
				continue
			}
			u, ok := bySku[job.FilamentSkuID]
			if !ok {
				sku, err := lookupSku(r, job.FilamentSkuID)
				if err != nil {
					return err
				}
				u = &SkuUsage{Sku: sku}
				bySku[job.FilamentSkuID] = u
				order = append(order, job.FilamentSkuID)
			}
			u.UsedG += job.GramsUsed
			u.ScrapG += job.ScrapG
			u.Jobs++
		}
		out = make([]SkuUsage, 0, len(order))
		for _, id := range order {
			out = append(out, *bySku[id])
		}
		return nil
	})
	return out, err
}

// lookupSku returns the SKU, or a stub carrying only the id when the record
// is gone.
func lookupSku(r domain.Reader, id string) (domain.FilamentSku, error) {
	sku, ok, err := domain.Get[domain.FilamentSku](r, domain.CollectionFilamentSkus, id)
	if err != nil {
		return domain.FilamentSku{}, err
	}
	if !ok {
		return domain.FilamentSku{ID: id}, nil
	}
	return sku, nil
}

func truncate[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
