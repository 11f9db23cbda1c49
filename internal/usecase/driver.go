package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ReportHarvester/internal/domain"
	"ReportHarvester/internal/ports"
)

// DriverOptions control a multi-ticker run.
type DriverOptions struct {
	Workers     int
	YearsAgo    int
	TickerDelay time.Duration
}

// Driver runs the harvester over a ticker universe.
type Driver struct {
	harvester *Harvester
	notifier  ports.Notifier
	opts      DriverOptions
	logger    *slog.Logger
	now       func() time.Time
}

// NewDriver wires the harvester with an optional notifier.
func NewDriver(harvester *Harvester, notifier ports.Notifier, opts DriverOptions, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Driver{
		harvester: harvester,
		notifier:  notifier,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Run harvests every ticker of universe with at most opts.Workers tickers in
// flight. A failing ticker never stops its siblings. When ctx is cancelled no
// new ticker is started and ctx.Err() is returned with the partial summary.
func (d *Driver) Run(ctx context.Context, universe []domain.Ticker) (domain.RunSummary, error) {
	started := d.now()
	run := domain.RunSummary{RunID: uuid.NewString(), StartedAt: started}
	window := domain.WindowYearsBack(started, d.opts.YearsAgo)
	log := d.logger.With("run_id", run.RunID)

	log.Info("harvest started", "tickers", len(universe), "workers", d.opts.Workers,
		"begin", window.Begin, "end", window.End)

	results := make([]*domain.TickerSummary, len(universe))
	var g errgroup.Group
	g.SetLimit(d.opts.Workers)

	for i, ticker := range universe {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			summary := d.harvestOne(ctx, log, run.RunID, ticker, window)
			results[i] = &summary
			_ = sleep(ctx, d.opts.TickerDelay)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res != nil {
			run.Tickers = append(run.Tickers, *res)
		}
	}
	run.Elapsed = d.now().Sub(started)

	totals := run.Totals()
	log.Info("harvest finished",
		"elapsed", run.Elapsed.Round(time.Millisecond),
		"tickers", len(run.Tickers),
		"verified", totals.Verified,
		"unverifiable", totals.Unverifiable,
		"failed", totals.Failed,
		"already_on_disk", totals.AlreadyOnDisk)

	d.notify(ctx, log, run)
	return run, ctx.Err()
}

func (d *Driver) harvestOne(ctx context.Context, log *slog.Logger, runID string, ticker domain.Ticker, window domain.DateWindow) domain.TickerSummary {
	log.Info("ticker started", "ticker", ticker.Code, "name", ticker.Name)

	summary, err := d.harvester.HarvestTicker(ctx, runID, ticker, window)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn("ticker interrupted", "ticker", ticker.Code, "error", err)
	default:
		summary.Aborted = true
		log.Error("ticker aborted", "ticker", ticker.Code, "kind", domain.KindOf(err), "error", err)
	}
	return summary
}

func (d *Driver) notify(ctx context.Context, log *slog.Logger, run domain.RunSummary) {
	if d.notifier == nil || len(run.Tickers) == 0 {
		return
	}
	if err := d.notifier.PublishSummary(context.WithoutCancel(ctx), FormatSummary(run)); err != nil {
		log.Warn("summary notification failed", "error", err)
	}
}
