// Command spoolbook tracks filament SKUs, prices, spools and print jobs on
// one machine and reports usage, waste and deal analytics.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"spoolbook/internal/analytics"
	"spoolbook/internal/backup"
	"spoolbook/internal/blob"
	"spoolbook/internal/config"
	"spoolbook/internal/core"
	"spoolbook/internal/logging"
	"spoolbook/pkg/domain"
)

// environment is the process boundary of a CLI run.
type environment struct {
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer
	lookup      func(string) (string, bool)
	interactive func() bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	env := environment{
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		lookup:      os.LookupEnv,
		interactive: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
	}
	os.Exit(run(ctx, os.Args[1:], env))
}

func run(ctx context.Context, args []string, env environment) int {
	cfg, err := config.Load(config.ConfigPath(args, env.lookup), env.lookup)
	if err != nil {
		fmt.Fprintf(env.stderr, "spoolbook: %v\n", err)
		return int(subcommands.ExitFailure)
	}
	fs := flag.NewFlagSet("spoolbook", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	cfg.RegisterFlags(fs)

	a := &app{cfg: cfg, env: env, in: bufio.NewReader(env.stdin)}
	cdr := subcommands.NewCommander(fs, "spoolbook")
	cdr.Output = env.stdout
	cdr.Error = env.stderr
	cdr.Register(cdr.HelpCommand(), "")
	cdr.Register(cdr.FlagsCommand(), "")
	cdr.Register(cdr.CommandsCommand(), "")
	for _, g := range commandGroups() {
		for _, c := range g.commands {
			cdr.Register(adapter{runner: c, app: a}, g.name)
		}
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return int(subcommands.ExitSuccess)
		}
		return int(subcommands.ExitUsageError)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(env.stderr, "spoolbook: %v\n", err)
		return int(subcommands.ExitFailure)
	}
	defer a.close(ctx)
	return int(cdr.Execute(ctx))
}

// app holds the collaborators shared by the commands. The store is opened on
// first use so help output never touches the database.
type app struct {
	cfg *config.Config
	env environment
	in  *bufio.Reader

	logger  logging.Logger
	prom    *core.PrometheusMetricsRecorder
	store   domain.PersistentStore
	service *core.Service
}

func (a *app) open(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	logger, err := logging.New(a.env.stderr, a.cfg.Log.Level, a.cfg.Log.Format)
	if err != nil {
		return err
	}
	prom, err := core.NewPrometheusMetricsRecorder(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	store, err := core.OpenPersistentStore(ctx, a.cfg.Storage)
	if err != nil {
		return fmt.Errorf("open %s store: %w", a.cfg.Storage.Driver, err)
	}
	a.logger, a.prom, a.store = logger, prom, store
	a.service = core.NewService(store,
		core.WithLogger(logger),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{prom, core.NewExpvarMetricsRecorder(a.cfg.Metrics.ExpvarName)}),
		core.WithDefaults(a.cfg.Defaults),
	)
	return nil
}

func (a *app) analytics() *analytics.Aggregator {
	return analytics.NewAggregator(a.store,
		analytics.WithLogger(a.logger),
		analytics.WithWindowDays(a.cfg.Defaults.AnalyticsWindowDays),
		analytics.WithTopN(a.cfg.Defaults.TopN),
	)
}

// backups returns a backup manager, wired to the archive store when asked.
func (a *app) backups(ctx context.Context, withArchive bool) (*backup.Manager, error) {
	opts := []backup.Option{backup.WithLogger(a.logger)}
	if withArchive {
		archive, err := blob.Open(ctx, a.cfg.Blob)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		opts = append(opts, backup.WithArchive(archive))
	}
	return backup.NewManager(a.store, opts...), nil
}

func (a *app) close(ctx context.Context) {
	if a.store == nil {
		return
	}
	if path := a.cfg.Metrics.TextfilePath; path != "" {
		if err := a.prom.WriteTextfile(path); err != nil {
			a.logger.Error(ctx, "write metrics textfile", "path", path, "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error(ctx, "close store", "error", err)
	}
}

// confirm returns the confirmation text from the flag value or, on an
// interactive terminal, from a prompt. Non-interactive runs must pass the flag.
func (a *app) confirm(given, prompt string) (string, error) {
	if given != "" {
		return given, nil
	}
	if !a.env.interactive() {
		return "", fmt.Errorf("%w: stdin is not a terminal, pass -confirm", domain.ErrConfirmationRequired)
	}
	fmt.Fprint(a.env.stdout, prompt+"\n> ")
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// runner is a spoolbook command before it is bound to the app.
type runner interface {
	Name() string
	Synopsis() string
	Usage() string
	SetFlags(*flag.FlagSet)
	Run(ctx context.Context, a *app, args []string) error
}

// errUsage marks invalid arguments; the command's usage is printed.
var errUsage = errors.New("usage error")

type adapter struct {
	runner
	app *app
}

func (c adapter) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if err := c.app.open(ctx); err != nil {
		fmt.Fprintf(c.app.env.stderr, "spoolbook: %v\n", err)
		return subcommands.ExitFailure
	}
	err := c.Run(ctx, c.app, f.Args())
	switch {
	case err == nil:
		return subcommands.ExitSuccess
	case errors.Is(err, errUsage):
		fmt.Fprintf(c.app.env.stderr, "%v\n%s", err, c.Usage())
		return subcommands.ExitUsageError
	default:
		fmt.Fprintf(c.app.env.stderr, "%s: %v\n", c.Name(), err)
		return subcommands.ExitFailure
	}
}

type commandGroup struct {
	name     string
	commands []runner
}

func commandGroups() []commandGroup {
	return []commandGroup{
		{"catalog", []runner{&seedCmd{}, &skuAddCmd{}, &skuListCmd{}, &watchCmd{}, &snapshotCmd{}, &purchaseCmd{}}},
		{"inventory", []runner{&spoolAddCmd{}, &spoolListCmd{}, &jobCmd{}}},
		{"insights", []runner{&trendCmd{}, &insightsCmd{}}},
		{"backup", []runner{&exportCmd{}, &exportCSVCmd{}, &importCmd{}, &resetCmd{}, &archiveCmd{}, &archivesCmd{}, &restoreCmd{}}},
	}
}
