package main

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"
)

type trendCmd struct{}

func (*trendCmd) Name() string           { return "trend" }
func (*trendCmd) Synopsis() string       { return "show the price history of a SKU" }
func (*trendCmd) Usage() string          { return "trend <sku-id>\n" }
func (*trendCmd) SetFlags(*flag.FlagSet) {}

func (*trendCmd) Run(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	trend, err := a.analytics().Trend(ctx, args[0])
	if err != nil {
		return err
	}
	if trend.Latest == nil {
		fmt.Fprintln(a.env.stdout, "no snapshots")
		return nil
	}
	w := tabwriter.NewWriter(a.env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tFINAL\tWEIGHT_G\tPER_KG")
	for _, s := range trend.Snapshots {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Timestamp.Format("2006-01-02 15:04"), formatFloat(s.FinalPrice), formatFloat(s.WeightG), formatPerKg(s.PerKg))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if trend.PercentChange != nil {
		fmt.Fprintf(a.env.stdout, "change: %+.1f%%\n", *trend.PercentChange)
	} else {
		fmt.Fprintln(a.env.stdout, "change: n/a")
	}
	return nil
}

type insightsCmd struct{}

func (*insightsCmd) Name() string           { return "insights" }
func (*insightsCmd) Synopsis() string       { return "usage, waste hotspots and deal radar" }
func (*insightsCmd) Usage() string          { return "insights\n" }
func (*insightsCmd) SetFlags(*flag.FlagSet) {}

func (*insightsCmd) Run(ctx context.Context, a *app, _ []string) error {
	agg := a.analytics()
	usage, err := agg.UsageRollup(ctx)
	if err != nil {
		return err
	}
	waste, err := agg.WasteHotspots(ctx)
	if err != nil {
		return err
	}
	deals, err := agg.DealRadar(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "USAGE (last %d days)\n", a.cfg.Defaults.AnalyticsWindowDays)
	fmt.Fprintln(w, "SKU\tUSED_G\tJOBS")
	for _, u := range usage {
		fmt.Fprintf(w, "%s\t%s\t%d\n", u.Sku.Label(), formatFloat(u.UsedG), u.Jobs)
	}
	fmt.Fprintln(w, "\nWASTE")
	fmt.Fprintln(w, "SKU\tSCRAP_G\tRATE")
	for _, h := range waste {
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\n", h.Sku.Label(), formatFloat(h.ScrapG), h.WasteRate)
	}
	fmt.Fprintln(w, "\nDEALS")
	fmt.Fprintln(w, "SKU\tVENDOR\tPER_KG\tSEEN")
	for _, d := range deals {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Sku.Label(), d.Vendor, formatPerKg(d.Snapshot.PerKg), d.Snapshot.Timestamp.Format("2006-01-02"))
	}
	return w.Flush()
}
