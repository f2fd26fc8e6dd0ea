package backup

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"spoolbook/pkg/domain"
)

// Table is a flattened, lossy projection of the dataset for spreadsheets.
type Table struct {
	Columns []string
	Rows    [][]string
}

// SnapshotColumns is the header of the snapshot table, one row per snapshot.
var SnapshotColumns = []string{
	"timestamp", "snapshot_id", "sku_id", "brand", "line", "material", "color", "finish",
	"vendor", "ref", "base_price", "shipping", "discount", "final_price", "weight_g", "per_kg",
}

// PrintJobColumns is the header of the print job table, one row per job.
var PrintJobColumns = []string{
	"timestamp", "job_id", "sku_id", "brand", "line", "material", "color",
	"spool_id", "grams_used", "outcome", "scrap_g", "notes",
}

// SnapshotTable joins every snapshot with its SKU and listing, oldest first.
func (m *Manager) SnapshotTable(ctx context.Context) (Table, error) {
	table := Table{Columns: SnapshotColumns}
	scope := []domain.Collection{domain.CollectionFilamentSkus, domain.CollectionVendorListings, domain.CollectionPriceSnapshots}
	err := m.store.View(ctx, scope, func(r domain.Reader) error {
		skus, err := indexSkus(r)
		if err != nil {
			return err
		}
		listings, err := domain.List[domain.VendorListing](r, domain.CollectionVendorListings)
		if err != nil {
			return err
		}
		byListing := make(map[string]domain.VendorListing, len(listings))
		for _, l := range listings {
			byListing[l.ID] = l
		}
		snaps, err := domain.List[domain.PriceSnapshot](r, domain.CollectionPriceSnapshots)
		if err != nil {
			return err
		}
		sort.SliceStable(snaps, func(i, j int) bool {
			if !snaps[i].Timestamp.Equal(snaps[j].Timestamp) {
				return snaps[i].Timestamp.Before(snaps[j].Timestamp)
			}
			return snaps[i].ID < snaps[j].ID
		})
		for _, sn := range snaps {
			sku := skus[sn.FilamentSkuID]
			listing := byListing[sn.ListingID]
			perKg := ""
			if sn.PerKg != nil {
				perKg = formatNumber(*sn.PerKg)
			}
			table.Rows = append(table.Rows, []string{
				formatTime(sn.Timestamp), sn.ID, sn.FilamentSkuID, sku.Brand, sku.Line, sku.Material, sku.Color, sku.Finish,
				listing.Vendor, listing.Ref, formatNumber(sn.BasePrice), formatNumber(sn.Shipping), formatNumber(sn.Discount),
				formatNumber(sn.FinalPrice), formatNumber(sn.WeightG), perKg,
			})
		}
		return nil
	})
	return table, err
}

// PrintJobTable joins every print job with its SKU, oldest first.
func (m *Manager) PrintJobTable(ctx context.Context) (Table, error) {
	table := Table{Columns: PrintJobColumns}
	scope := []domain.Collection{domain.CollectionFilamentSkus, domain.CollectionPrintJobs}
	err := m.store.View(ctx, scope, func(r domain.Reader) error {
		skus, err := indexSkus(r)
		if err != nil {
			return err
		}
		jobs, err := domain.List[domain.PrintJob](r, domain.CollectionPrintJobs)
		if err != nil {
			return err
		}
		sort.SliceStable(jobs, func(i, j int) bool {
			if !jobs[i].Timestamp.Equal(jobs[j].Timestamp) {
				return jobs[i].Timestamp.Before(jobs[j].Timestamp)
			}
			return jobs[i].ID < jobs[j].ID
		})
		for _, job := range jobs {
			sku := skus[job.FilamentSkuID]
			table.Rows = append(table.Rows, []string{
				formatTime(job.Timestamp), job.ID, job.FilamentSkuID, sku.Brand, sku.Line, sku.Material, sku.Color,
				job.SpoolID, formatNumber(job.GramsUsed), string(job.Outcome), formatNumber(job.ScrapG), job.Notes,
			})
		}
		return nil
	})
	return table, err
}

// WriteCSV renders the table with a header row. Fields holding a comma,
// quote or newline are quoted with doubled inner quotes.
func WriteCSV(w io.Writer, table Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(table.Columns); err != nil {
		return err
	}
	for _, row := range table.Rows {
		if len(row) != len(table.Columns) {
			return fmt.Errorf("row has %d fields, header has %d", len(row), len(table.Columns))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func indexSkus(r domain.Reader) (map[string]domain.FilamentSku, error) {
	skus, err := domain.List[domain.FilamentSku](r, domain.CollectionFilamentSkus)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.FilamentSku, len(skus))
	for _, s := range skus {
		out[s.ID] = s
	}
	return out, nil
}

func formatNumber(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }
