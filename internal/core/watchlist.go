package core

import (
	"context"
	"sort"

	"spoolbook/pkg/domain"
)

// ToggleWatch adds the SKU to the watchlist when on, otherwise removes it.
// Adding twice keeps the original entry; removing an absent entry is a no-op.
func (s *Service) ToggleWatch(ctx context.Context, skuID string, on bool) error {
	scope := []domain.Collection{domain.CollectionFilamentSkus, domain.CollectionWatchlist}
	return s.run(ctx, "toggle_watch", scope, func(tx domain.Transaction) error {
		if !on {
			return tx.Remove(domain.CollectionWatchlist, skuID)
		}
		if _, err := requireSku(tx, skuID); err != nil {
			return err
		}
		if _, ok, err := tx.Read(domain.CollectionWatchlist, skuID); err != nil || ok {
			return err
		}
		return domain.Put(tx, domain.CollectionWatchlist, domain.WatchlistEntry{FilamentSkuID: skuID, AddedAt: s.now().UTC()})
	}, "sku", skuID, "on", on)
}

// ListWatchlist returns the watched SKUs, oldest entry first.
func (s *Service) ListWatchlist(ctx context.Context) ([]domain.WatchlistEntry, error) {
	var out []domain.WatchlistEntry
	err := s.view(ctx, "list_watchlist", []domain.Collection{domain.CollectionWatchlist}, func(r domain.Reader) error {
		var err error
		out, err = domain.List[domain.WatchlistEntry](r, domain.CollectionWatchlist)
		return err
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out, err
}
