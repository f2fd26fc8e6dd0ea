package core

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"spoolbook/pkg/domain"
)

const priceEpsilon = 1e-6

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewSpoolWeightBoundsRule())
	engine.Register(NewListingUniquenessRule())
	engine.Register(NewSnapshotPricingRule())
	engine.Register(NewPrintJobValidityRule())
	return engine
}

// written yields the decoded post-image of every create or update on c.
func written[T any](changes []domain.Change, c domain.Collection, fn func(key string, v T)) error {
	for _, ch := range changes {
		if ch.Collection != c || ch.After == nil {
			continue
		}
		var v T
		if err := json.Unmarshal(ch.After, &v); err != nil {
			return fmt.Errorf("decode %s %s: %w", c, ch.Key, err)
		}
		fn(ch.Key, v)
	}
	return nil
}

// NewSpoolWeightBoundsRule blocks spools whose remaining weight leaves
// [0, startingWeight] or whose status is unknown.
func NewSpoolWeightBoundsRule() domain.Rule { return spoolWeightBoundsRule{} }

type spoolWeightBoundsRule struct{}

func (spoolWeightBoundsRule) Name() string { return "spool_weight_bounds" }

func (r spoolWeightBoundsRule) Evaluate(_ context.Context, _ domain.Reader, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	err := written(changes, domain.CollectionSpools, func(key string, sp domain.Spool) {
		var msg string
		switch {
		case sp.CurrentEstimatedWeight < 0 || sp.CurrentEstimatedWeight > sp.StartingWeightG:
			msg = fmt.Sprintf("spool %s remaining weight %.1fg outside [0, %.1f]", key, sp.CurrentEstimatedWeight, sp.StartingWeightG)
		case sp.Status != domain.SpoolSealed && sp.Status != domain.SpoolOpened && sp.Status != domain.SpoolLow && sp.Status != domain.SpoolEmpty:
			msg = fmt.Sprintf("spool %s has unknown status %q", key, sp.Status)
		case sp.Status == domain.SpoolEmpty && sp.CurrentEstimatedWeight > 0:
			msg = fmt.Sprintf("spool %s is empty but holds %.1fg", key, sp.CurrentEstimatedWeight)
		default:
			return
		}
		res.Violations = append(res.Violations, domain.Violation{Rule: r.Name(), Severity: domain.SeverityBlock, Message: msg, Collection: domain.CollectionSpools, Key: key})
	})
	return res, err
}

// NewListingUniquenessRule blocks a second listing for the same
// (sku, vendor, ref) triple.
func NewListingUniquenessRule() domain.Rule { return listingUniquenessRule{} }

type listingUniquenessRule struct{}

func (listingUniquenessRule) Name() string { return "listing_uniqueness" }

func (r listingUniquenessRule) Evaluate(_ context.Context, view domain.Reader, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	var listings []domain.VendorListing
	if err := written(changes, domain.CollectionVendorListings, func(_ string, l domain.VendorListing) {
		listings = append(listings, l)
	}); err != nil {
		return res, err
	}
	for _, l := range listings {
		siblings, err := domain.ListBy[domain.VendorListing](view, domain.CollectionVendorListings, domain.IndexFilamentSku, l.FilamentSkuID)
		if err != nil {
			return res, err
		}
		for _, other := range siblings {
			if other.ID != l.ID && other.Vendor == l.Vendor && other.Ref == l.Ref {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:       r.Name(),
					Severity:   domain.SeverityBlock,
					Message:    fmt.Sprintf("listing %s duplicates %s for vendor %q ref %q", l.ID, other.ID, l.Vendor, l.Ref),
					Collection: domain.CollectionVendorListings,
					Key:        l.ID,
				})
				break
			}
		}
	}
	return res, nil
}

// NewSnapshotPricingRule blocks snapshots whose stored derived fields
// disagree with their inputs.
func NewSnapshotPricingRule() domain.Rule { return snapshotPricingRule{} }

type snapshotPricingRule struct{}

func (snapshotPricingRule) Name() string { return "snapshot_pricing" }

func (r snapshotPricingRule) Evaluate(_ context.Context, _ domain.Reader, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	err := written(changes, domain.CollectionPriceSnapshots, func(key string, sn domain.PriceSnapshot) {
		want := domain.FinalPrice(sn.BasePrice, sn.Shipping, sn.Discount)
		wantPerKg := domain.PerKg(want, sn.WeightG)
		var msg string
		switch {
		case math.Abs(sn.FinalPrice-want) > priceEpsilon:
			msg = fmt.Sprintf("snapshot %s final price %.2f, expected %.2f", key, sn.FinalPrice, want)
		case (wantPerKg == nil) != (sn.PerKg == nil):
			msg = fmt.Sprintf("snapshot %s per-kg presence does not match weight %.1fg", key, sn.WeightG)
		case wantPerKg != nil && math.Abs(*wantPerKg-*sn.PerKg) > priceEpsilon:
			msg = fmt.Sprintf("snapshot %s per-kg %.4f, expected %.4f", key, *sn.PerKg, *wantPerKg)
		default:
			return
		}
		res.Violations = append(res.Violations, domain.Violation{Rule: r.Name(), Severity: domain.SeverityBlock, Message: msg, Collection: domain.CollectionPriceSnapshots, Key: key})
	})
	return res, err
}

// NewPrintJobValidityRule blocks malformed print jobs and warns when a job
// scraps more than it used.
func NewPrintJobValidityRule() domain.Rule { return printJobValidityRule{} }

type printJobValidityRule struct{}

func (printJobValidityRule) Name() string { return "print_job_validity" }

func (r printJobValidityRule) Evaluate(_ context.Context, _ domain.Reader, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	err := written(changes, domain.CollectionPrintJobs, func(key string, job domain.PrintJob) {
		add := func(sev domain.Severity, msg string) {
			res.Violations = append(res.Violations, domain.Violation{Rule: r.Name(), Severity: sev, Message: msg, Collection: domain.CollectionPrintJobs, Key: key})
		}
		switch {
		case job.FilamentSkuID == "":
			add(domain.SeverityBlock, fmt.Sprintf("print job %s has no SKU", key))
		case job.GramsUsed <= 0:
			add(domain.SeverityBlock, fmt.Sprintf("print job %s used %.1fg", key, job.GramsUsed))
		case job.ScrapG < 0 || !job.Outcome.Valid():
			add(domain.SeverityBlock, fmt.Sprintf("print job %s has invalid scrap or outcome", key))
		case job.ScrapG > job.GramsUsed:
			add(domain.SeverityWarn, fmt.Sprintf("print job %s scrapped %.1fg of %.1fg used", key, job.ScrapG, job.GramsUsed))
		}
	})
	return res, err
}
