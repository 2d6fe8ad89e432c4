package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"NewsRelay/internal/app"
	"NewsRelay/internal/config"
	"NewsRelay/internal/domain"
	"NewsRelay/internal/infrastructure/scheduler"
	"NewsRelay/internal/logging"
	"NewsRelay/internal/ports"
)

const usage = `usage: newsrelay [-config path] [-secrets path] <command> [flags]

commands:
  run      run the pipeline on an interval until interrupted
  once     run a single iteration
  list     list stored items
  show     print one item by id or unique id prefix
  reset    return an item to dedup_checked for reprocessing
  delete   remove an item from the store
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "newsrelay:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("newsrelay", flag.ContinueOnError)
	global.Usage = func() { fmt.Fprint(global.Output(), usage) }
	configPath := global.String("config", "", "path to YAML configuration")
	secretsPath := global.String("secrets", "", "path to YAML secrets overlay")
	if err := global.Parse(args); err != nil {
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.Load(*configPath, *secretsPath)
	if err != nil {
		return err
	}

	command, cmdArgs := rest[0], rest[1:]
	switch command {
	case "run":
		return runCommand(ctx, cfg, cmdArgs, false)
	case "once":
		return runCommand(ctx, cfg, cmdArgs, true)
	case "list":
		return listCommand(ctx, cfg, cmdArgs, out)
	case "show":
		return showCommand(ctx, cfg, cmdArgs, out)
	case "reset":
		return resetCommand(ctx, cfg, cmdArgs, out)
	case "delete":
		return deleteCommand(ctx, cfg, cmdArgs, out)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runCommand(ctx context.Context, cfg config.Config, args []string, once bool) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	interval := fs.String("interval", "", "iteration interval, e.g. 30m or 1h (overrides config)")
	maxIterations := fs.Int("max-iterations", cfg.Runner.MaxIterations, "stop after N iterations, 0 for unlimited")
	stopOnError := fs.Bool("stop-on-error", cfg.Runner.StopOnError, "stop at the first failing iteration")
	logLevel := fs.String("log-level", "", "log level override")
	logFile := fs.String("log-file", "", "log file path override")
	noLogFile := fs.Bool("no-log-file", false, "log to stdout only")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *interval != "" {
		cfg.Runner.Interval = *interval
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Logging.File = *logFile
	}
	if *noLogFile {
		cfg.Logging.File = ""
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closer, err := logging.Open(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("start application: %w", err)
	}
	defer application.Close()

	if once {
		_, err := application.RunOnce(ctx)
		return err
	}

	every, err := scheduler.ParseInterval(cfg.Runner.Interval)
	if err != nil {
		return err
	}
	err = application.Run(ctx, app.RunOptions{
		Interval:      every,
		MaxIterations: *maxIterations,
		StopOnError:   *stopOnError,
	})
	if errors.Is(err, context.Canceled) {
		logger.Info("stopped by signal")
		return nil
	}
	return err
}

func openAdmin(ctx context.Context, cfg config.Config) (*app.Admin, func(), error) {
	store, err := app.OpenStore(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			slog.Warn("close store", "error", err)
		}
	}
	return app.NewAdmin(store), closeStore, nil
}

func listCommand(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	stage := fs.String("stage", "", "only items at this stage")
	status := fs.String("status", "", "only items with this publish status")
	limit := fs.Int("limit", 50, "maximum number of items, 0 for all")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := ports.ListFilter{PublishStatus: domain.PublishStatus(*status), Limit: *limit}
	if *stage != "" {
		s := domain.Stage(*stage)
		if !s.Valid() {
			return fmt.Errorf("unknown stage %q", *stage)
		}
		filter.Stages = []domain.Stage{s}
	}

	admin, closeStore, err := openAdmin(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	items, err := admin.List(ctx, filter)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTAGE\tSTATUS\tSOURCE\tHEADLINE")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", shortID(item.ID), item.Stage, item.PublishStatus, item.SourceName, item.Headline)
	}
	return tw.Flush()
}

func showCommand(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("show needs exactly one id")
	}

	admin, closeStore, err := openAdmin(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	item, err := admin.Find(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	printItem(out, item)
	return nil
}

func resetCommand(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	return mutateCommand(ctx, cfg, "reset", args, out, func(admin *app.Admin, id string, force bool) (domain.Item, error) {
		return admin.Reset(ctx, id, force)
	})
}

func deleteCommand(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	return mutateCommand(ctx, cfg, "delete", args, out, func(admin *app.Admin, id string, force bool) (domain.Item, error) {
		return admin.Delete(ctx, id, force)
	})
}

func mutateCommand(
	ctx context.Context,
	cfg config.Config,
	name string,
	args []string,
	out io.Writer,
	apply func(*app.Admin, string, bool) (domain.Item, error),
) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	force := fs.Bool("force", false, "allow touching published items")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%s needs exactly one id", name)
	}

	admin, closeStore, err := openAdmin(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	item, err := apply(admin, fs.Arg(0), *force)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s (%s)\n", name, item.ID, item.Headline)
	return nil
}

func printItem(out io.Writer, item domain.Item) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", k, v)
		}
	}
	row("id", item.ID)
	row("headline", item.Headline)
	row("source", item.SourceName)
	row("source_class", string(item.SourceClass))
	row("byline", item.Byline)
	row("url", item.RawSourceURL)
	row("resolved_url", item.ResolvedURL)
	row("published_at", formatTime(item.PublishedAt))
	row("stage", string(item.Stage))
	row("stage_reason", item.StageReason)
	row("stage_attempts", fmt.Sprint(item.StageAttempts))
	row("extractor", item.Extractor)
	row("summary", item.Summary)
	row("summary_origin", string(item.SummaryOrigin))
	row("publish_status", string(item.PublishStatus))
	row("publish_attempts", fmt.Sprint(item.PublishAttempts))
	row("posted_at", formatTime(item.PublishedAtTS))
	row("post_ref", item.PostRef)
	row("created_at", formatTime(item.CreatedAt))
	row("updated_at", formatTime(item.UpdatedAt))
	row("text_length", fmt.Sprint(len([]rune(item.ExtractedText))))
	_ = tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
