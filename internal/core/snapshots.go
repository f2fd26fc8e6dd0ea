package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"spoolbook/pkg/domain"
)

// SnapshotInput describes one price observation. WeightOverride is nil when
// the SKU nominal weight should be used. A zero Timestamp means now.
type SnapshotInput struct {
	SkuID          string
	Vendor         string
	Ref            string
	BasePrice      float64
	Shipping       float64
	Discount       float64
	WeightOverride *float64
	Timestamp      time.Time
}

var snapshotScope = []domain.Collection{
	domain.CollectionFilamentSkus,
	domain.CollectionVendorListings,
	domain.CollectionPriceSnapshots,
}

// GetOrCreateListing returns the listing for (sku, vendor, ref), creating it
// when absent. Repeated calls with the same arguments return the same listing.
func (s *Service) GetOrCreateListing(ctx context.Context, skuID, vendor, ref string) (domain.VendorListing, error) {
	var listing domain.VendorListing
	scope := []domain.Collection{domain.CollectionFilamentSkus, domain.CollectionVendorListings}
	err := s.run(ctx, "get_or_create_listing", scope, func(tx domain.Transaction) error {
		if _, err := requireSku(tx, skuID); err != nil {
			return err
		}
		var err error
		listing, err = s.getOrCreateListing(tx, skuID, vendor, ref)
		return err
	}, "sku", skuID, "vendor", vendor)
	return listing, err
}

func (s *Service) getOrCreateListing(tx domain.Transaction, skuID, vendor, ref string) (domain.VendorListing, error) {
	vendor = strings.TrimSpace(vendor)
	ref = strings.TrimSpace(ref)
	if vendor == "" {
		return domain.VendorListing{}, domain.Invalid("vendor", "is required")
	}
	existing, err := domain.ListBy[domain.VendorListing](tx, domain.CollectionVendorListings, domain.IndexFilamentSku, skuID)
	if err != nil {
		return domain.VendorListing{}, err
	}
	for _, l := range existing {
		if l.Vendor == vendor && l.Ref == ref {
			return l, nil
		}
	}
	listing := domain.VendorListing{
		ID:            s.newID(),
		FilamentSkuID: skuID,
		Vendor:        vendor,
		Ref:           ref,
		CreatedAt:     s.now().UTC(),
	}
	if err := domain.Put(tx, domain.CollectionVendorListings, listing); err != nil {
		return domain.VendorListing{}, err
	}
	return listing, nil
}

// ListListingsForSku returns the vendor listings of a SKU, oldest first.
func (s *Service) ListListingsForSku(ctx context.Context, skuID string) ([]domain.VendorListing, error) {
	var out []domain.VendorListing
	err := s.view(ctx, "list_listings", []domain.Collection{domain.CollectionVendorListings}, func(r domain.Reader) error {
		var err error
		out, err = domain.ListBy[domain.VendorListing](r, domain.CollectionVendorListings, domain.IndexFilamentSku, skuID)
		return err
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

// RecordSnapshot resolves the listing, derives the final price and price per
// kilogram and stores the snapshot, all in one transaction.
func (s *Service) RecordSnapshot(ctx context.Context, in SnapshotInput) (domain.PriceSnapshot, error) {
	snap := domain.PriceSnapshot{ID: s.newID()}
	err := s.run(ctx, "record_snapshot", snapshotScope, func(tx domain.Transaction) error {
		if err := validateSnapshotInput(in); err != nil {
			return err
		}
		sku, err := requireSku(tx, in.SkuID)
		if err != nil {
			return err
		}
		listing, err := s.getOrCreateListing(tx, sku.ID, in.Vendor, in.Ref)
		if err != nil {
			return err
		}
		weight := domain.EffectiveWeight(in.WeightOverride, sku)
		final := domain.FinalPrice(in.BasePrice, in.Shipping, in.Discount)
		snap = domain.PriceSnapshot{
			ID:            snap.ID,
			FilamentSkuID: sku.ID,
			ListingID:     listing.ID,
			Timestamp:     s.timestamp(in.Timestamp),
			BasePrice:     in.BasePrice,
			Shipping:      in.Shipping,
			Discount:      in.Discount,
			FinalPrice:    final,
			WeightG:       weight,
			PerKg:         domain.PerKg(final, weight),
		}
		return domain.Put(tx, domain.CollectionPriceSnapshots, snap)
	}, "snapshot", snap.ID, "sku", in.SkuID)
	if err != nil {
		return domain.PriceSnapshot{}, err
	}
	return snap, nil
}

// ListSnapshotsForSku returns the SKU's snapshots newest first.
func (s *Service) ListSnapshotsForSku(ctx context.Context, skuID string) ([]domain.PriceSnapshot, error) {
	var out []domain.PriceSnapshot
	err := s.view(ctx, "list_snapshots", []domain.Collection{domain.CollectionPriceSnapshots}, func(r domain.Reader) error {
		var err error
		out, err = domain.ListBy[domain.PriceSnapshot](r, domain.CollectionPriceSnapshots, domain.IndexFilamentSku, skuID)
		return err
	})
	domain.SortSnapshotsNewestFirst(out)
	return out, err
}

func validateSnapshotInput(in SnapshotInput) error {
	switch {
	case strings.TrimSpace(in.SkuID) == "":
		return domain.Invalid("filamentSkuId", "is required")
	case strings.TrimSpace(in.Vendor) == "":
		return domain.Invalid("vendor", "is required")
	case !isFinite(in.BasePrice):
		return domain.Invalid("basePrice", notFinite)
	case !isFinite(in.Shipping):
		return domain.Invalid("shipping", notFinite)
	case !isFinite(in.Discount):
		return domain.Invalid("discount", notFinite)
	case in.WeightOverride != nil && !isFinite(*in.WeightOverride):
		return domain.Invalid("weight_g", notFinite)
	case in.BasePrice < 0:
		return domain.Invalid("basePrice", "must not be negative")
	case in.Shipping < 0:
		return domain.Invalid("shipping", "must not be negative")
	case in.Discount < 0:
		return domain.Invalid("discount", "must not be negative")
	case in.WeightOverride != nil && *in.WeightOverride < 0:
		return domain.Invalid("weight_g", "must not be negative")
	}
	return nil
}
