package domain

// Collection names a persisted record collection. The set is closed.
type Collection string

// Persisted collections, also the top-level keys of the backup document.
const (
	CollectionSettings       Collection = "settings"
	CollectionFilamentSkus   Collection = "filamentSkus"
	CollectionVendorListings Collection = "vendorListings"
	CollectionPriceSnapshots Collection = "priceSnapshots"
	CollectionWatchlist      Collection = "watchlist"
	CollectionPurchases      Collection = "purchases"
	CollectionSpools         Collection = "spools"
	CollectionPrintJobs      Collection = "printJobs"
)

// Secondary index names. Each index is keyed by the JSON field of the same name.
const (
	IndexFilamentSku = "filamentSkuId"
	IndexListing     = "listingId"
	IndexSpool       = "spoolId"
	IndexVendor      = "vendor"
	IndexMaterial    = "material"
	IndexBrand       = "brand"
)

// Schema describes how a collection is keyed and indexed.
type Schema struct {
	Name     Collection
	KeyField string
	Indexes  []string
}

// Collections lists every collection in canonical order. Stores acquire
// collection locks in this order.
var Collections = []Collection{
	CollectionSettings,
	CollectionFilamentSkus,
	CollectionVendorListings,
	CollectionPriceSnapshots,
	CollectionWatchlist,
	CollectionPurchases,
	CollectionSpools,
	CollectionPrintJobs,
}

var schemas = map[Collection]Schema{
	CollectionSettings:       {Name: CollectionSettings, KeyField: "key"},
	CollectionFilamentSkus:   {Name: CollectionFilamentSkus, KeyField: "id", Indexes: []string{IndexMaterial, IndexBrand}},
	CollectionVendorListings: {Name: CollectionVendorListings, KeyField: "id", Indexes: []string{IndexFilamentSku, IndexVendor}},
	CollectionPriceSnapshots: {Name: CollectionPriceSnapshots, KeyField: "id", Indexes: []string{IndexFilamentSku, IndexListing}},
	CollectionWatchlist:      {Name: CollectionWatchlist, KeyField: "filamentSkuId"},
	CollectionPurchases:      {Name: CollectionPurchases, KeyField: "id", Indexes: []string{IndexVendor}},
	CollectionSpools:         {Name: CollectionSpools, KeyField: "id", Indexes: []string{IndexFilamentSku}},
	CollectionPrintJobs:      {Name: CollectionPrintJobs, KeyField: "id", Indexes: []string{IndexFilamentSku, IndexSpool}},
}

// SchemaFor returns the schema of a known collection.
func SchemaFor(c Collection) (Schema, bool) {
	s, ok := schemas[c]
	return s, ok
}

// Known reports whether c belongs to the closed collection set.
func (c Collection) Known() bool {
	_, ok := schemas[c]
	return ok
}

// Ordinal returns the canonical position of c, or -1 when unknown.
func (c Collection) Ordinal() int {
	for i, known := range Collections {
		if known == c {
			return i
		}
	}
	return -1
}
