// Package pipeline runs one recording through derivation and delivery and
// fans a batch of recordings out over a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pable/go-cs-matchstats/internal/aggregator"
	"github.com/pable/go-cs-matchstats/internal/cleanup"
	"github.com/pable/go-cs-matchstats/internal/identity"
	"github.com/pable/go-cs-matchstats/internal/metrics"
	"github.com/pable/go-cs-matchstats/internal/model"
	"github.com/pable/go-cs-matchstats/internal/outcome"
	"github.com/pable/go-cs-matchstats/internal/parser"
	"github.com/pable/go-cs-matchstats/internal/roster"
	"github.com/pable/go-cs-matchstats/internal/upload"
)

var ErrNoCoordinator = errors.New("no delivery coordinator configured")

// OpenFunc loads one recording.
type OpenFunc func(path string) (*model.Snapshot, error)

// Result is the terminal state of one recording.
type Result struct {
	Path     string
	MatchID  string
	Status   model.Status // empty for a dry run
	DryRun   bool
	Reason   string
	Missing  []string // tracked players absent, when skipped
	Warnings []aggregator.Warning
	Outcome  model.MatchOutcome
	Stats    []model.PlayerMatchStats
	// NameTimestamp is false when the match time came from the file's
	// modification time.
	NameTimestamp bool
	// Unchanged is set when the result was remembered from an earlier pass
	// and the recording was not read again.
	Unchanged bool
	Err       error
}

// Processor derives and delivers recordings. It is safe for concurrent use.
type Processor struct {
	roster       *roster.Roster
	utility      aggregator.WeaponSet
	resolver     *outcome.Resolver
	coordinator  *upload.Coordinator
	location     *time.Location
	open         OpenFunc
	cleanup      *cleanup.Scheduler
	cleanupDelay time.Duration
	metrics      *metrics.Collector
	dryRun       bool
	workers      int
	seen         *seenFiles
}

// Option configures a Processor.
type Option func(*Processor)

func WithUtilityWeapons(s aggregator.WeaponSet) Option {
	return func(p *Processor) { p.utility = s }
}

func WithResolver(r *outcome.Resolver) Option {
	return func(p *Processor) {
		if r != nil {
			p.resolver = r
		}
	}
}

// WithLocation sets the zone filename timestamps are read in.
func WithLocation(loc *time.Location) Option {
	return func(p *Processor) {
		if loc != nil {
			p.location = loc
		}
	}
}

func WithOpenFunc(fn OpenFunc) Option {
	return func(p *Processor) {
		if fn != nil {
			p.open = fn
		}
	}
}

// WithCleanup deletes each delivered recording after delay.
func WithCleanup(s *cleanup.Scheduler, delay time.Duration) Option {
	return func(p *Processor) {
		p.cleanup = s
		p.cleanupDelay = delay
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithDryRun derives stats without delivering them.
func WithDryRun(dry bool) Option {
	return func(p *Processor) { p.dryRun = dry }
}

// WithRememberFinished makes the processor return the earlier result for a
// recording that already finished and has not changed since, without
// reading it again. Used when the same folder is scanned repeatedly.
func WithRememberFinished(remember bool) Option {
	return func(p *Processor) {
		if remember {
			p.seen = newSeenFiles()
		} else {
			p.seen = nil
		}
	}
}

func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewProcessor returns a Processor for tracked. coordinator may be nil only
// in dry-run mode.
func NewProcessor(tracked *roster.Roster, coordinator *upload.Coordinator, opts ...Option) *Processor {
	p := &Processor{
		roster:      tracked,
		utility:     aggregator.NewWeaponSet(aggregator.DefaultUtilityWeapons...),
		resolver:    outcome.NewResolver(tracked),
		coordinator: coordinator,
		location:    time.Local,
		open:        parser.Open,
		metrics:     metrics.New(),
		workers:     1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Metrics returns the collector results are counted in.
func (p *Processor) Metrics() *metrics.Collector { return p.metrics }

// Process runs one recording to a terminal result.
func (p *Processor) Process(ctx context.Context, path string) Result {
	var stamp fileStamp
	if p.seen != nil {
		prev, current, ok := p.seen.lookup(path)
		if ok {
			slog.Debug("Recording unchanged since last pass", slog.String("path", path),
				slog.String("status", string(prev.Status)))
			return prev
		}
		stamp = current
	}

	res := p.process(ctx, path)
	if res.Status != "" {
		p.metrics.ObserveResult(res.Status)
	}
	if p.seen != nil && !res.DryRun {
		p.seen.record(path, stamp, res)
	}
	return res
}

func (p *Processor) process(ctx context.Context, path string) Result {
	res := Result{Path: path}
	logger := slog.With(slog.String("path", path))

	if err := ctx.Err(); err != nil {
		return failed(res, err)
	}

	snap, err := p.open(path)
	if err != nil {
		logger.Error("Failed to read recording", slog.String("error", err.Error()))
		return failed(res, err)
	}

	check := p.roster.Check(snap.PlayerNames())
	if !check.Pass {
		logger.Info("Skipping recording, tracked players absent", slog.Any("missing", check.Missing))
		res.Status = model.StatusSkipped
		res.Missing = check.Missing
		res.Reason = fmt.Sprintf("tracked players absent: %v", check.Missing)
		return res
	}

	for _, c := range model.AllCollections {
		if !snap.Has(c) || len(snap.MissingColumns[c]) > 0 {
			p.metrics.ObserveMissing(c)
		}
	}

	stats, warnings, err := aggregator.Aggregate(snap, p.roster, p.utility)
	if err != nil {
		return failed(res, fmt.Errorf("aggregate: %w", err))
	}
	res.Warnings = warnings
	for _, w := range warnings {
		logger.Warn("Partial telemetry", slog.String("collection", string(w.Collection)),
			slog.String("column", w.Column), slog.String("reason", w.Reason), slog.Any("zeroed", w.Metrics))
	}

	decision := p.resolver.Resolve(snap.Rounds, snap.Sides)
	switch decision.Resolution {
	case model.ResolvedByRoundCount:
		logger.Warn("Final-round side not observed, outcome approximated from round counts",
			slog.Bool("won", decision.Won))
	case model.Unresolved:
		logger.Warn("No round boundaries, match recorded as a loss")
	}

	id := identity.Derive(path, snap.ModTime, p.location)
	res.MatchID = id.ID
	res.NameTimestamp = id.FromName
	if !id.FromName {
		logger.Info("No timestamp in recording name, using modification time",
			slog.String("match_id", id.ID), slog.Time("occurred_at", id.OccurredAt))
	}

	for i := range stats {
		stats[i].MatchID = id.ID
	}
	res.Stats = stats
	res.Outcome = model.MatchOutcome{
		MapName:    snap.MapName,
		OccurredAt: id.OccurredAt,
		RosterWon:  decision.Won,
		Side:       decision.Side,
		Resolution: decision.Resolution,
	}

	if p.dryRun {
		res.DryRun = true
		return res
	}
	if p.coordinator == nil {
		return failed(res, ErrNoCoordinator)
	}

	start := time.Now()
	delivery := p.coordinator.Deliver(ctx, upload.NewPayload(id.ID, stats, res.Outcome))
	p.metrics.ObserveDelivery(p.coordinator.Sink().Name(), time.Since(start))

	res.Status = delivery.Status
	res.Reason = delivery.Reason
	res.Err = delivery.Err

	logger = logger.With(slog.String("match_id", id.ID))
	switch delivery.Status {
	case model.StatusDelivered:
		logger.Info("Delivered match", slog.String("map", snap.MapName), slog.Bool("won", decision.Won))
		p.scheduleCleanup(logger, path)
	case model.StatusAlreadyExists:
		logger.Info("Match already stored")
	default:
		logger.Error("Delivery rejected", slog.String("reason", delivery.Reason))
	}

	return res
}

func (p *Processor) scheduleCleanup(logger *slog.Logger, path string) {
	if p.cleanup == nil {
		return
	}
	if _, err := p.cleanup.Schedule(path, p.cleanupDelay); err != nil {
		logger.Warn("Could not schedule cleanup", slog.String("error", err.Error()))
	}
}

func failed(res Result, err error) Result {
	res.Status = model.StatusFailed
	res.Reason = err.Error()
	res.Err = err
	return res
}

// ProcessAll processes paths on up to the configured number of workers.
// Results are returned in input order.
func (p *Processor) ProcessAll(ctx context.Context, paths []string) []Result {
	if p.seen != nil {
		p.seen.retain(paths)
	}
	results := make([]Result, len(paths))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, path := range paths {
		g.Go(func() error {
			results[i] = p.Process(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
