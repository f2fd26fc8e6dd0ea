package domain

import (
	"math"
	"testing"
	"time"
)

func TestFinalPriceAndPerKg(t *testing.T) {
	cases := []struct {
		name                     string
		base, shipping, discount float64
		weight                   float64
		wantFinal                float64
		wantPerKg                *float64
	}{
		{name: "plain", base: 20, shipping: 5, discount: 0, weight: 1000, wantFinal: 25, wantPerKg: ptr(25)},
		{name: "half kilo", base: 10, shipping: 0, discount: 2, weight: 500, wantFinal: 8, wantPerKg: ptr(16)},
		{name: "discount exceeds price", base: 10, shipping: 1, discount: 30, weight: 1000, wantFinal: 0, wantPerKg: ptr(0)},
		{name: "zero weight", base: 10, weight: 0, wantFinal: 10},
		{name: "negative weight", base: 10, weight: -5, wantFinal: 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			final := FinalPrice(tc.base, tc.shipping, tc.discount)
			if final != tc.wantFinal {
				t.Fatalf("final price = %v, want %v", final, tc.wantFinal)
			}
			perKg := PerKg(final, tc.weight)
			switch {
			case tc.wantPerKg == nil && perKg != nil:
				t.Fatalf("expected nil perKg, got %v", *perKg)
			case tc.wantPerKg != nil && (perKg == nil || math.Abs(*perKg-*tc.wantPerKg) > 1e-9):
				t.Fatalf("perKg = %v, want %v", perKg, *tc.wantPerKg)
			}
		})
	}
}

func TestEffectiveWeight(t *testing.T) {
	if got := EffectiveWeight(ptr(750), FilamentSku{WeightG: 1000}); got != 750 {
		t.Fatalf("override ignored: %v", got)
	}
	if got := EffectiveWeight(ptr(0), FilamentSku{WeightG: 1000}); got != 0 {
		t.Fatalf("explicit zero override must be kept: %v", got)
	}
	if got := EffectiveWeight(nil, FilamentSku{WeightG: 800}); got != 800 {
		t.Fatalf("sku weight ignored: %v", got)
	}
	if got := EffectiveWeight(nil, FilamentSku{}); got != FallbackWeightG {
		t.Fatalf("fallback weight = %v", got)
	}
}

func TestDeplete(t *testing.T) {
	cases := []struct {
		name       string
		current    float64
		status     SpoolStatus
		used       float64
		wantWeight float64
		wantStatus SpoolStatus
	}{
		{name: "overdraw empties", current: 200, status: SpoolOpened, used: 250, wantWeight: 0, wantStatus: SpoolEmpty},
		{name: "exact empties", current: 200, status: SpoolLow, used: 200, wantWeight: 0, wantStatus: SpoolEmpty},
		{name: "sealed opens", current: 1000, status: SpoolSealed, used: 10, wantWeight: 990, wantStatus: SpoolOpened},
		{name: "sealed straight to low", current: 1000, status: SpoolSealed, used: 900, wantWeight: 100, wantStatus: SpoolLow},
		{name: "opened stays opened", current: 800, status: SpoolOpened, used: 100, wantWeight: 700, wantStatus: SpoolOpened},
		{name: "low never regresses", current: 140, status: SpoolLow, used: 1, wantWeight: 139, wantStatus: SpoolLow},
		{name: "threshold is exclusive", current: 200, status: SpoolOpened, used: 50, wantWeight: 150, wantStatus: SpoolOpened},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, s := Deplete(tc.current, tc.status, tc.used, DefaultLowThresholdG)
			if w != tc.wantWeight || s != tc.wantStatus {
				t.Fatalf("Deplete = (%v, %s), want (%v, %s)", w, s, tc.wantWeight, tc.wantStatus)
			}
		})
	}
}

func TestBuildSearch(t *testing.T) {
	sku := FilamentSku{Brand: "Prusament", Line: "Standard", Material: "PETG", Color: "Galaxy Black", Finish: "Glossy", Additives: "None"}
	if got := BuildSearch(sku); got != "prusament standard petg galaxy black glossy none" {
		t.Fatalf("unexpected search %q", got)
	}
	if got := sku.Label(); got != "Prusament Standard PETG Galaxy Black" {
		t.Fatalf("unexpected label %q", got)
	}
}

func TestCollectionSchema(t *testing.T) {
	for i, c := range Collections {
		if !c.Known() || c.Ordinal() != i {
			t.Fatalf("collection %s not registered in order", c)
		}
		if s, ok := SchemaFor(c); !ok || s.KeyField == "" {
			t.Fatalf("collection %s missing key field", c)
		}
	}
	if Collection("organisms").Known() || Collection("organisms").Ordinal() != -1 {
		t.Fatalf("unexpected collection accepted")
	}
	if !PrintOutcome("partial").Valid() || PrintOutcome("abandoned").Valid() {
		t.Fatalf("outcome validation mismatch")
	}
}

func ptr(v float64) *float64 { return &v }

func TestSortSnapshotsNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snaps := []PriceSnapshot{
		{ID: "a", Timestamp: base},
		{ID: "b", Timestamp: base.Add(time.Hour)},
		{ID: "c", Timestamp: base},
	}
	SortSnapshotsNewestFirst(snaps)
	got := []string{snaps[0].ID, snaps[1].ID, snaps[2].ID}
	want := []string{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
