package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"spoolbook/internal/backup"
	"spoolbook/pkg/domain"
)

// withOutput runs fn against the named file, or stdout when path is empty.
func withOutput(a *app, path string, fn func(io.Writer) error) (err error) {
	if path == "" {
		return fn(a.env.stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(f)
}

func printCounts(w io.Writer, verb string, counts map[domain.Collection]int) {
	names := make([]string, 0, len(counts))
	for c := range counts {
		names = append(names, string(c))
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "%s %s: %d\n", verb, n, counts[domain.Collection(n)])
	}
}

type exportCmd struct {
	out string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the full dataset as a JSON backup" }
func (*exportCmd) Usage() string    { return "export [-o FILE]\n  Writes to stdout when -o is omitted.\n" }

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", "", "output file")
}

func (c *exportCmd) Run(ctx context.Context, a *app, _ []string) error {
	mgr, err := a.backups(ctx, false)
	if err != nil {
		return err
	}
	return withOutput(a, c.out, func(w io.Writer) error {
		_, err := mgr.ExportTo(ctx, w)
		return err
	})
}

type exportCSVCmd struct {
	kind string
	out  string
}

func (*exportCSVCmd) Name() string     { return "export-csv" }
func (*exportCSVCmd) Synopsis() string { return "write snapshots or print jobs as CSV" }
func (*exportCSVCmd) Usage() string {
	return "export-csv [-kind snapshots|jobs] [-o FILE]\n"
}

func (c *exportCSVCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "kind", "snapshots", "snapshots|jobs")
	f.StringVar(&c.out, "o", "", "output file")
}

func (c *exportCSVCmd) Run(ctx context.Context, a *app, _ []string) error {
	mgr, err := a.backups(ctx, false)
	if err != nil {
		return err
	}
	var table backup.Table
	switch c.kind {
	case "snapshots":
		table, err = mgr.SnapshotTable(ctx)
	case "jobs":
		table, err = mgr.PrintJobTable(ctx)
	default:
		return fmt.Errorf("%w: unknown kind %q", errUsage, c.kind)
	}
	if err != nil {
		return err
	}
	return withOutput(a, c.out, func(w io.Writer) error { return backup.WriteCSV(w, table) })
}

type importCmd struct {
	confirm string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "replace the dataset from a JSON backup" }
func (*importCmd) Usage() string {
	return "import [-confirm FILE] <file>\n  Replaces every collection present in the backup. Confirm by typing the file name.\n"
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.confirm, "confirm", "", "repeat the file name to confirm without a prompt")
}

func (c *importCmd) Run(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	plan, err := backup.PrepareImport(args[0], f)
	if err != nil {
		return err
	}
	return applyPlan(ctx, a, plan, c.confirm)
}

// applyPlan shows what will be replaced, asks for the plan's filename and imports.
func applyPlan(ctx context.Context, a *app, plan *backup.ImportPlan, confirm string) error {
	mgr, err := a.backups(ctx, false)
	if err != nil {
		return err
	}
	printCounts(a.env.stdout, "replace", plan.Counts())
	answer, err := a.confirm(confirm, fmt.Sprintf("Type %q to replace the dataset", plan.Filename))
	if err != nil {
		return err
	}
	if err := plan.Confirm(answer); err != nil {
		return err
	}
	counts, err := mgr.Import(ctx, plan)
	if err != nil {
		return err
	}
	printCounts(a.env.stdout, "imported", counts)
	return nil
}

type resetCmd struct {
	confirm string
}

func (*resetCmd) Name() string     { return "reset" }
func (*resetCmd) Synopsis() string { return "irreversibly wipe every collection" }
func (*resetCmd) Usage() string {
	return "reset [-confirm " + backup.ResetToken + "]\n  Deletes all data. Confirm by typing " + backup.ResetToken + ".\n"
}

func (c *resetCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.confirm, "confirm", "", "type "+backup.ResetToken+" to confirm without a prompt")
}

func (c *resetCmd) Run(ctx context.Context, a *app, _ []string) error {
	mgr, err := a.backups(ctx, false)
	if err != nil {
		return err
	}
	answer, err := a.confirm(c.confirm, fmt.Sprintf("Type %s to delete all data", backup.ResetToken))
	if err != nil {
		return err
	}
	counts, err := mgr.Reset(ctx, answer)
	if err != nil {
		return err
	}
	printCounts(a.env.stdout, "deleted", counts)
	return nil
}

type archiveCmd struct {
	csv bool
}

func (*archiveCmd) Name() string     { return "archive" }
func (*archiveCmd) Synopsis() string { return "save a backup to the archive store" }
func (*archiveCmd) Usage() string    { return "archive [-csv]\n" }

func (c *archiveCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.csv, "csv", false, "also archive the CSV tables")
}

func (c *archiveCmd) Run(ctx context.Context, a *app, _ []string) error {
	mgr, err := a.backups(ctx, true)
	if err != nil {
		return err
	}
	info, err := mgr.SaveArchive(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.env.stdout, info.Key)
	if !c.csv {
		return nil
	}
	infos, err := mgr.SaveCSVArchive(ctx)
	if err != nil {
		return err
	}
	for _, i := range infos {
		fmt.Fprintln(a.env.stdout, i.Key)
	}
	return nil
}

type archivesCmd struct{}

func (*archivesCmd) Name() string           { return "archives" }
func (*archivesCmd) Synopsis() string       { return "list archived backups" }
func (*archivesCmd) Usage() string          { return "archives\n" }
func (*archivesCmd) SetFlags(*flag.FlagSet) {}

func (*archivesCmd) Run(ctx context.Context, a *app, _ []string) error {
	mgr, err := a.backups(ctx, true)
	if err != nil {
		return err
	}
	infos, err := mgr.ListArchives(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSIZE\tMODIFIED")
	for _, i := range infos {
		fmt.Fprintf(w, "%s\t%d\t%s\n", i.Key, i.Size, i.LastModified.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

type restoreCmd struct {
	confirm string
}

func (*restoreCmd) Name() string     { return "restore" }
func (*restoreCmd) Synopsis() string { return "replace the dataset from an archived backup" }
func (*restoreCmd) Usage() string {
	return "restore [-confirm KEY] <key>\n  Confirm by typing the archive key.\n"
}

func (c *restoreCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.confirm, "confirm", "", "repeat the archive key to confirm without a prompt")
}

func (c *restoreCmd) Run(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	mgr, err := a.backups(ctx, true)
	if err != nil {
		return err
	}
	plan, err := mgr.PrepareArchiveRestore(ctx, args[0])
	if err != nil {
		return err
	}
	return applyPlan(ctx, a, plan, c.confirm)
}
