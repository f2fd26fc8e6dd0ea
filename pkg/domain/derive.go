package domain

import (
	"math"
	"sort"
	"strings"
)

const (
	// FallbackWeightG is used when neither an override nor the SKU provides a weight.
	FallbackWeightG = 1000.0
	// DefaultLowThresholdG is the remaining weight below which a spool is low.
	DefaultLowThresholdG = 150.0
)

// BuildSearch derives the lowercase search string of a SKU.
func BuildSearch(s FilamentSku) string {
	return strings.ToLower(joinNonEmpty(" ", s.Brand, s.Line, s.Material, s.Color, s.Finish, s.Additives))
}

// FinalPrice returns max(0, base + shipping - discount).
func FinalPrice(base, shipping, discount float64) float64 {
	return math.Max(0, base+shipping-discount)
}

// PerKg returns the price per kilogram, or nil when the weight is not positive.
func PerKg(finalPrice, weightG float64) *float64 {
	if weightG <= 0 {
		return nil
	}
	v := finalPrice / (weightG / 1000)
	return &v
}

// EffectiveWeight resolves the weight used for a snapshot: the override when
// provided, else the SKU nominal weight when positive, else FallbackWeightG.
func EffectiveWeight(override *float64, sku FilamentSku) float64 {
	if override != nil {
		return *override
	}
	if sku.WeightG > 0 {
		return sku.WeightG
	}
	return FallbackWeightG
}

// Deplete applies a print job to a spool and returns the new remaining weight
// and status. States only move forward: sealed, opened, low, empty.
func Deplete(current float64, status SpoolStatus, gramsUsed, lowThreshold float64) (float64, SpoolStatus) {
	next := math.Max(0, current-gramsUsed)
	switch {
	case next == 0:
		return 0, SpoolEmpty
	case status == SpoolEmpty:
		// empty is terminal; a weight left on an empty spool does not revive it
		return next, SpoolEmpty
	case next < lowThreshold:
		return next, SpoolLow
	case status == SpoolSealed:
		return next, SpoolOpened
	default:
		return next, status
	}
}

// SortSnapshotsNewestFirst orders snapshots by descending timestamp, ties by
// descending id.
func SortSnapshotsNewestFirst(snaps []PriceSnapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		if !snaps[i].Timestamp.Equal(snaps[j].Timestamp) {
			return snaps[i].Timestamp.After(snaps[j].Timestamp)
		}
		return snaps[i].ID > snaps[j].ID
	})
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
