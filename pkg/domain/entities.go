// Package domain defines the persistent entities, collection schema, derived
// field rules and store contracts used by spoolbook.
package domain

import "time"

// Setting stores an arbitrary list of strings under a unique key.
type Setting struct {
	Key   string   `json:"key"`
	Value []string `json:"value"`
}

// FilamentSku is a distinct purchasable filament variant.
type FilamentSku struct {
	ID        string  `json:"id"`
	Brand     string  `json:"brand"`
	Line      string  `json:"line"`
	Material  string  `json:"material"`
	Color     string  `json:"color"`
	Finish    string  `json:"finish"`
	Additives string  `json:"additives"`
	Diameter  float64 `json:"diameter"`
	// WeightG is the nominal spool weight in grams.
	WeightG float64 `json:"weight_g"`
	Notes   string  `json:"notes"`
	// Search is derived from the categorical fields on every write.
	Search string `json:"search"`
}

// Label renders a short human readable name for the SKU.
func (s FilamentSku) Label() string {
	return joinNonEmpty(" ", s.Brand, s.Line, s.Material, s.Color)
}

// VendorListing is one vendor offering of a SKU, unique on (sku, vendor, ref).
type VendorListing struct {
	ID            string    `json:"id"`
	FilamentSkuID string    `json:"filamentSkuId"`
	Vendor        string    `json:"vendor"`
	Ref           string    `json:"ref"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PriceSnapshot is a timestamped price observation against a listing.
// FinalPrice and PerKg are computed once when the snapshot is recorded.
type PriceSnapshot struct {
	ID            string    `json:"id"`
	FilamentSkuID string    `json:"filamentSkuId"`
	ListingID     string    `json:"listingId"`
	Timestamp     time.Time `json:"timestamp"`
	BasePrice     float64   `json:"basePrice"`
	Shipping      float64   `json:"shipping"`
	Discount      float64   `json:"discount"`
	FinalPrice    float64   `json:"finalPrice"`
	WeightG       float64   `json:"weight_g"`
	PerKg         *float64  `json:"perKg"`
}

// WatchlistEntry marks a SKU for the deal radar.
type WatchlistEntry struct {
	FilamentSkuID string    `json:"filamentSkuId"`
	AddedAt       time.Time `json:"addedAt"`
}

// Purchase is a standalone order record.
type Purchase struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Vendor    string    `json:"vendor"`
	OrderID   string    `json:"orderId"`
	Tax       float64   `json:"tax"`
	Shipping  float64   `json:"shipping"`
	Notes     string    `json:"notes"`
}

// SpoolStatus is the depletion state of a physical spool.
type SpoolStatus string

// Spool depletion states in their only permitted order.
const (
	SpoolSealed SpoolStatus = "sealed"
	SpoolOpened SpoolStatus = "opened"
	SpoolLow    SpoolStatus = "low"
	SpoolEmpty  SpoolStatus = "empty"
)

// Spool is a physical unit of filament whose remaining weight only decreases.
type Spool struct {
	ID                     string      `json:"id"`
	FilamentSkuID          string      `json:"filamentSkuId"`
	StartingWeightG        float64     `json:"startingWeight_g"`
	CurrentEstimatedWeight float64     `json:"currentEstimatedWeight_g"`
	Status                 SpoolStatus `json:"status"`
	CreatedAt              time.Time   `json:"createdAt"`
}

// PrintOutcome describes how a print job finished.
type PrintOutcome string

// Recognised print outcomes.
const (
	OutcomeSuccess PrintOutcome = "success"
	OutcomeFail    PrintOutcome = "fail"
	OutcomePartial PrintOutcome = "partial"
)

// Valid reports whether the outcome is one of the recognised values.
func (o PrintOutcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFail, OutcomePartial:
		return true
	}
	return false
}

// PrintJob records filament consumed by one print.
type PrintJob struct {
	ID            string       `json:"id"`
	Timestamp     time.Time    `json:"timestamp"`
	FilamentSkuID string       `json:"filamentSkuId"`
	SpoolID       string       `json:"spoolId,omitempty"`
	GramsUsed     float64      `json:"gramsUsed"`
	Outcome       PrintOutcome `json:"outcome"`
	ScrapG        float64      `json:"scrap_g"`
	Notes         string       `json:"notes"`
}
