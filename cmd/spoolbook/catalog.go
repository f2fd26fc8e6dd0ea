package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"spoolbook/internal/core"
	"spoolbook/pkg/domain"
)

// timeFlag parses an optional RFC 3339 timestamp.
type timeFlag struct{ t time.Time }

func (f *timeFlag) String() string {
	if f.t.IsZero() {
		return ""
	}
	return f.t.Format(time.RFC3339)
}

func (f *timeFlag) Set(v string) error {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return fmt.Errorf("want RFC 3339 time: %w", err)
	}
	f.t = t.UTC()
	return nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func formatPerKg(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

type seedCmd struct{}

func (*seedCmd) Name() string           { return "seed" }
func (*seedCmd) Synopsis() string       { return "write the default vocabularies" }
func (*seedCmd) Usage() string          { return "seed\n  Writes default brands, materials, colors and vendors that are missing.\n" }
func (*seedCmd) SetFlags(*flag.FlagSet) {}
func (*seedCmd) Run(ctx context.Context, a *app, _ []string) error {
	n, err := a.service.SeedDefaults(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.env.stdout, "seeded %d settings\n", n)
	return nil
}

type skuAddCmd struct {
	in core.SkuInput
}

func (*skuAddCmd) Name() string     { return "sku-add" }
func (*skuAddCmd) Synopsis() string { return "create a filament SKU" }
func (*skuAddCmd) Usage() string {
	return "sku-add [-brand B] [-line L] [-material M] [-color C] [-finish F] [-additives A] [-diameter D] [-weight G] [-notes N]\n  Prints the new SKU id.\n"
}

func (c *skuAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.in.Brand, "brand", "", "brand")
	f.StringVar(&c.in.Line, "line", "", "product line")
	f.StringVar(&c.in.Material, "material", "", "material, e.g. PLA")
	f.StringVar(&c.in.Color, "color", "", "color")
	f.StringVar(&c.in.Finish, "finish", "", "finish")
	f.StringVar(&c.in.Additives, "additives", "", "additives")
	f.Float64Var(&c.in.Diameter, "diameter", 0, "filament diameter in mm")
	f.Float64Var(&c.in.WeightG, "weight", 0, "nominal spool weight in grams")
	f.StringVar(&c.in.Notes, "notes", "", "free-form notes")
}

func (c *skuAddCmd) Run(ctx context.Context, a *app, _ []string) error {
	sku, err := a.service.CreateSku(ctx, c.in)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.env.stdout, sku.ID)
	return nil
}

type skuListCmd struct {
	filter core.SkuFilter
}

func (*skuListCmd) Name() string     { return "sku-list" }
func (*skuListCmd) Synopsis() string { return "list filament SKUs" }
func (*skuListCmd) Usage() string {
	return "sku-list [-material M] [-brand B] [-search TEXT]\n"
}

func (c *skuListCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.filter.Material, "material", "", "only this material")
	f.StringVar(&c.filter.Brand, "brand", "", "only this brand")
	f.StringVar(&c.filter.SearchText, "search", "", "words that must all appear")
}

func (c *skuListCmd) Run(ctx context.Context, a *app, _ []string) error {
	skus, err := a.service.ListSkus(ctx, c.filter)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSKU\tFINISH\tADDITIVES\tWEIGHT_G")
	for _, s := range skus {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Label(), s.Finish, s.Additives, formatFloat(s.WeightG))
	}
	return w.Flush()
}

type watchCmd struct {
	off bool
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "add or remove a SKU on the watchlist" }
func (*watchCmd) Usage() string    { return "watch [-off] <sku-id>\n" }

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.off, "off", false, "remove the SKU from the watchlist")
}

func (c *watchCmd) Run(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	return a.service.ToggleWatch(ctx, args[0], !c.off)
}

type snapshotCmd struct {
	in core.SnapshotInput
	at timeFlag
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "record a price observation" }
func (*snapshotCmd) Usage() string {
	return "snapshot -sku ID -vendor V [-ref R] -price P [-shipping S] [-discount D] [-weight G] [-at TIME]\n  Prints final price and price per kg.\n"
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.in.SkuID, "sku", "", "SKU id")
	f.StringVar(&c.in.Vendor, "vendor", "", "vendor name")
	f.StringVar(&c.in.Ref, "ref", "", "vendor reference, may be empty")
	f.Float64Var(&c.in.BasePrice, "price", 0, "base price")
	f.Float64Var(&c.in.Shipping, "shipping", 0, "shipping cost")
	f.Float64Var(&c.in.Discount, "discount", 0, "discount")
	f.Func("weight", "weight override in grams", func(v string) error {
		w, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.in.WeightOverride = &w
		return nil
	})
	f.Var(&c.at, "at", "observation time (RFC 3339), default now")
}

func (c *snapshotCmd) Run(ctx context.Context, a *app, _ []string) error {
	c.in.Timestamp = c.at.t
	snap, err := a.service.RecordSnapshot(ctx, c.in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.env.stdout, "%s final=%s per_kg=%s\n", snap.ID, formatFloat(snap.FinalPrice), formatPerKg(snap.PerKg))
	return nil
}

type purchaseCmd struct {
	in core.PurchaseInput
	at timeFlag
}

func (*purchaseCmd) Name() string     { return "purchase" }
func (*purchaseCmd) Synopsis() string { return "record an order" }
func (*purchaseCmd) Usage() string {
	return "purchase -vendor V [-order ID] [-tax T] [-shipping S] [-notes N] [-at TIME]\n"
}

func (c *purchaseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.in.Vendor, "vendor", "", "vendor name")
	f.StringVar(&c.in.OrderID, "order", "", "order id")
	f.Float64Var(&c.in.Tax, "tax", 0, "tax paid")
	f.Float64Var(&c.in.Shipping, "shipping", 0, "shipping paid")
	f.StringVar(&c.in.Notes, "notes", "", "free-form notes")
	f.Var(&c.at, "at", "order time (RFC 3339), default now")
}

func (c *purchaseCmd) Run(ctx context.Context, a *app, _ []string) error {
	c.in.Timestamp = c.at.t
	p, err := a.service.RecordPurchase(ctx, c.in)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.env.stdout, p.ID)
	return nil
}

type spoolAddCmd struct {
	sku    string
	weight float64
}

func (*spoolAddCmd) Name() string     { return "spool-add" }
func (*spoolAddCmd) Synopsis() string { return "register a sealed spool" }
func (*spoolAddCmd) Usage() string    { return "spool-add -sku ID -weight G\n  Prints the new spool id.\n" }

func (c *spoolAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.sku, "sku", "", "SKU id")
	f.Float64Var(&c.weight, "weight", 0, "starting filament weight in grams")
}

func (c *spoolAddCmd) Run(ctx context.Context, a *app, _ []string) error {
	spool, err := a.service.CreateSpool(ctx, c.sku, c.weight)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.env.stdout, spool.ID)
	return nil
}

type spoolListCmd struct {
	sku string
}

func (*spoolListCmd) Name() string     { return "spool-list" }
func (*spoolListCmd) Synopsis() string { return "list spools and their remaining weight" }
func (*spoolListCmd) Usage() string    { return "spool-list [-sku ID]\n" }

func (c *spoolListCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.sku, "sku", "", "only spools of this SKU")
}

func (c *spoolListCmd) Run(ctx context.Context, a *app, _ []string) error {
	spools, err := a.service.ListSpools(ctx, c.sku)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSKU\tSTATUS\tREMAINING_G\tSTARTING_G")
	for _, s := range spools {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.FilamentSkuID, s.Status, formatFloat(s.CurrentEstimatedWeight), formatFloat(s.StartingWeightG))
	}
	return w.Flush()
}

type jobCmd struct {
	in      core.PrintJobInput
	outcome string
	at      timeFlag
}

func (*jobCmd) Name() string     { return "job" }
func (*jobCmd) Synopsis() string { return "record a print job" }
func (*jobCmd) Usage() string {
	return "job [-spool ID] [-sku ID] -grams G [-outcome success|fail|partial] [-scrap G] [-notes N] [-at TIME]\n  Prints the job id and the spool state after depletion.\n"
}

func (c *jobCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.in.SpoolID, "spool", "", "spool id")
	f.StringVar(&c.in.SkuID, "sku", "", "SKU id, taken from the spool when omitted")
	f.Float64Var(&c.in.GramsUsed, "grams", 0, "grams used")
	f.StringVar(&c.outcome, "outcome", string(domain.OutcomeSuccess), "success|fail|partial")
	f.Float64Var(&c.in.ScrapG, "scrap", 0, "grams scrapped")
	f.StringVar(&c.in.Notes, "notes", "", "free-form notes")
	f.Var(&c.at, "at", "print time (RFC 3339), default now")
}

func (c *jobCmd) Run(ctx context.Context, a *app, _ []string) error {
	c.in.Outcome = domain.PrintOutcome(strings.ToLower(strings.TrimSpace(c.outcome)))
	c.in.Timestamp = c.at.t
	job, err := a.service.RecordPrintJob(ctx, c.in)
	if err != nil {
		return err
	}
	if job.SpoolID == "" {
		fmt.Fprintln(a.env.stdout, job.ID)
		return nil
	}
	spools, err := a.service.ListSpools(ctx, job.FilamentSkuID)
	if err != nil {
		return err
	}
	for _, s := range spools {
		if s.ID == job.SpoolID {
			fmt.Fprintf(a.env.stdout, "%s spool=%s status=%s remaining_g=%s\n", job.ID, s.ID, s.Status, formatFloat(s.CurrentEstimatedWeight))
		}
	}
	return nil
}
