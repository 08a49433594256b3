package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pable/go-cs-matchstats/internal/aggregator"
	"github.com/pable/go-cs-matchstats/internal/api"
	"github.com/pable/go-cs-matchstats/internal/cleanup"
	"github.com/pable/go-cs-matchstats/internal/config"
	"github.com/pable/go-cs-matchstats/internal/lock"
	"github.com/pable/go-cs-matchstats/internal/log"
	"github.com/pable/go-cs-matchstats/internal/metrics"
	"github.com/pable/go-cs-matchstats/internal/outcome"
	"github.com/pable/go-cs-matchstats/internal/pipeline"
	"github.com/pable/go-cs-matchstats/internal/report"
	"github.com/pable/go-cs-matchstats/internal/roster"
	"github.com/pable/go-cs-matchstats/internal/storage"
	"github.com/pable/go-cs-matchstats/internal/storage/pgstore"
	"github.com/pable/go-cs-matchstats/internal/upload"
)

var (
	processDryRun   bool
	processInterval time.Duration
	processVerbose  bool
)

var ErrNoSource = errors.New("no recording path given and source.dir not set")

var processCmd = &cobra.Command{
	Use:   "process [path]",
	Short: "Derive stats from recordings and deliver them",
	Long: `Process a recording (.dem or .json event export) or every recording in a
directory. Each match is delivered at most once: recordings already stored
are reported as already_exists. Recordings missing a tracked player are
skipped.

Without a path, source.dir (or the download_folder environment variable) is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().Bool("recursive", false, "descend into subdirectories")
	processCmd.Flags().String("sink", "", "api, sqlite or postgres (overrides config)")
	processCmd.Flags().Int("workers", 0, "recordings processed concurrently (overrides config)")
	processCmd.Flags().BoolVar(&processDryRun, "dry-run", false, "derive and print stats without delivering")
	processCmd.Flags().DurationVar(&processInterval, "interval", 0, "re-scan the source every interval until interrupted")
	processCmd.Flags().BoolVarP(&processVerbose, "verbose", "v", false, "print the player table for every match")

	cobra.CheckErr(v.BindPFlag("source.recursive", processCmd.Flags().Lookup("recursive")))
	cobra.CheckErr(v.BindPFlag("sink.kind", processCmd.Flags().Lookup("sink")))
	cobra.CheckErr(v.BindPFlag("workers", processCmd.Flags().Lookup("workers")))
}

func runProcess(cmd *cobra.Command, args []string) error {
	source := cfg.Source.Dir
	if len(args) == 1 {
		source = args[0]
	}
	if source == "" {
		return ErrNoSource
	}

	validate := cfg.Validate
	if processDryRun {
		validate = cfg.ValidateDerivation
	}
	if err := validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracked, err := roster.New(cfg.Roster)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	collector := metrics.New()
	opts := []pipeline.Option{
		pipeline.WithUtilityWeapons(aggregator.NewWeaponSet(cfg.UtilityWeapons...)),
		pipeline.WithResolver(outcome.NewResolver(tracked, outcome.WithLookbackTicks(cfg.SideLookbackTicks))),
		pipeline.WithLocation(loc),
		pipeline.WithMetrics(collector),
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithDryRun(processDryRun),
		pipeline.WithRememberFinished(processInterval > 0),
	}

	var coordinator *upload.Coordinator
	if !processDryRun {
		sink, closeSink, err := openSink(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSink()

		coordOpts := []upload.Option{upload.WithTimeout(cfg.Sink.Timeout)}
		if cfg.Lock.RedisURL != "" {
			matchLock, err := lock.NewMatchLock(ctx, cfg.Lock.RedisURL, cfg.Lock.TTL)
			if err != nil {
				return fmt.Errorf("connect lock: %w", err)
			}
			defer matchLock.Close()
			coordOpts = append(coordOpts, upload.WithLocker(matchLock))
		}
		coordinator = upload.NewCoordinator(sink, coordOpts...)

		if cfg.Cleanup.Enabled {
			if processInterval == 0 {
				slog.Warn("Cleanup is enabled but this is a single pass; pending deletions are cancelled at exit",
					slog.Duration("delay", cfg.Cleanup.Delay))
			}
			sched := cleanup.New()
			defer sched.Stop()
			opts = append(opts, pipeline.WithCleanup(sched, cfg.Cleanup.Delay))
		}
	}

	proc := pipeline.NewProcessor(tracked, coordinator, opts...)
	out := cmd.OutOrStdout()

	slog.Info("Processing recordings", slog.String("source", source),
		slog.String("sink", string(cfg.Sink.Kind)), slog.Bool("dry_run", processDryRun), slog.Any("roster", tracked.Names()))

	for {
		summary, err := processOnce(ctx, out, proc, source)
		if err != nil {
			return err
		}
		writeMetrics(collector)

		if processInterval == 0 {
			if n := summary.Failures(); n > 0 {
				return fmt.Errorf("%d recording(s) failed", n)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			slog.Info("Stopping")
			return nil
		case <-time.After(processInterval):
		}
	}
}

func processOnce(ctx context.Context, out io.Writer, proc *pipeline.Processor, source string) (pipeline.Summary, error) {
	paths, err := pipeline.Collect(source, cfg.Source.Recursive)
	if err != nil {
		return pipeline.Summary{}, err
	}
	if len(paths) == 0 {
		slog.Info("No recordings found", slog.String("source", source))
		return pipeline.Summary{}, nil
	}

	results := slices.DeleteFunc(proc.ProcessAll(ctx, paths), func(r pipeline.Result) bool { return r.Unchanged })
	if len(results) == 0 {
		slog.Debug("No new or changed recordings", slog.Int("scanned", len(paths)))
		return pipeline.Summary{}, nil
	}

	for _, r := range results {
		if r.Stats == nil || (!processDryRun && !processVerbose) {
			continue
		}
		fmt.Fprintf(out, "\n%s", filepath.Base(r.Path))
		report.PrintOutcome(out, r.MatchID, r.Outcome)
		report.PrintPlayerTable(out, r.Stats)
	}

	fmt.Fprintln(out)
	report.PrintResults(out, results)
	summary := pipeline.Summarize(results)
	report.PrintSummary(out, summary)

	return summary, nil
}

// openSink connects the configured delivery sink.
func openSink(ctx context.Context, c config.Config) (upload.Sink, func(), error) {
	switch c.Sink.Kind {
	case config.SinkAPI:
		return api.NewClient(c.Sink.APIURL, c.Sink.APIToken, c.Sink.Timeout), func() {}, nil
	case config.SinkSQLite:
		if err := os.MkdirAll(filepath.Dir(c.Sink.SQLitePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create db dir: %w", err)
		}
		db, err := storage.Open(c.Sink.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage: %w", err)
		}
		return db, func() { log.Closer(db) }, nil
	case config.SinkPostgres:
		store, err := pgstore.Connect(ctx, c.Sink.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownSink, c.Sink.Kind)
	}
}

func writeMetrics(collector *metrics.Collector) {
	if cfg.Metrics.Textfile == "" {
		return
	}
	if err := collector.WriteTextfile(cfg.Metrics.Textfile, time.Now()); err != nil {
		slog.Error("Failed to write metrics", slog.String("error", err.Error()))
	}
}
