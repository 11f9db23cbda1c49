package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ReportHarvester/internal/domain"
	"ReportHarvester/internal/layout"
	"ReportHarvester/internal/ports"
)

// HarvestOptions are the per-report knobs of a ticker run.
type HarvestOptions struct {
	MinPages    int
	DownloadDir string
	MaxRetries  int
	ReportDelay time.Duration
}

// HarvesterDeps wires all driven adapters into the per-ticker workflow.
type HarvesterDeps struct {
	Resolver   *Resolver
	Downloader ports.Downloader
	Manifest   ports.ManifestRepository
	Extraction ports.ExtractionQueue
	Options    HarvestOptions
	Logger     *slog.Logger
	Now        func() time.Time
}

// Harvester walks the listing pages of one ticker and downloads every
// report that passes the filters.
type Harvester struct {
	resolver   *Resolver
	downloader ports.Downloader
	manifest   ports.ManifestRepository
	extraction ports.ExtractionQueue
	opts       HarvestOptions
	logger     *slog.Logger
	now        func() time.Time
}

// NewHarvester constructs the per-ticker orchestration component.
func NewHarvester(deps HarvesterDeps) *Harvester {
	h := &Harvester{
		resolver:   deps.Resolver,
		downloader: deps.Downloader,
		manifest:   deps.Manifest,
		extraction: deps.Extraction,
		opts:       deps.Options,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.opts.MaxRetries < 1 {
		h.opts.MaxRetries = 3
	}
	return h
}

// HarvestTicker processes every listing page of ticker inside window. Only a
// failure on the first page aborts the run; later pages and single reports
// fail in isolation. Cancellation is honoured between pages and reports.
func (h *Harvester) HarvestTicker(ctx context.Context, runID string, ticker domain.Ticker, window domain.DateWindow) (domain.TickerSummary, error) {
	summary := domain.TickerSummary{Ticker: ticker}
	log := h.logger.With("ticker", ticker.Code)

	first, err := h.resolver.Listing(ctx, ticker.Code, 1, window)
	if err != nil {
		summary.Aborted = ctx.Err() == nil
		return summary, fmt.Errorf("ticker %s: first listing page: %w", ticker.Code, err)
	}

	total := first.TotalPages
	log.Info("listing resolved", "name", ticker.Name, "total_pages", total, "hits", first.TotalHits,
		"begin", window.Begin, "end", window.End)

	listing := first
	for page := 1; page == 1 || page <= total; page++ {
		if page > 1 {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			listing, err = h.resolver.Listing(ctx, ticker.Code, page, window)
			if err != nil {
				log.Warn("listing page unavailable, skipping", "page", page, "error", err)
				continue
			}
		}
		summary.Pages++

		for _, report := range listing.Reports {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			h.processReport(ctx, log.With("page", page), runID, ticker, report, &summary)
		}
	}

	log.Info("ticker finished",
		"reports", summary.Reports,
		"verified", summary.Verified,
		"unverifiable", summary.Unverifiable,
		"failed", summary.Failed,
		"already_on_disk", summary.AlreadyOnDisk)
	return summary, nil
}

func (h *Harvester) processReport(ctx context.Context, log *slog.Logger, runID string, ticker domain.Ticker, report domain.ReportSummary, summary *domain.TickerSummary) {
	summary.Reports++
	if report.ID == "" {
		log.Debug("report without id skipped", "title", report.Title)
		return
	}
	log = log.With("report_id", report.ID)

	if pages := report.AttachPages.Int(); pages < h.opts.MinPages {
		summary.BelowMinimum++
		log.Info("below minimum pages, skipping", "pages", pages, "min_pages", h.opts.MinPages, "title", report.Title)
		return
	}

	detail, err := h.resolver.Detail(ctx, report.ID)
	if err != nil {
		summary.DetailMissing++
		log.Warn("detail unresolved, skipping", "kind", domain.KindOf(err), "error", err)
		h.pause(ctx)
		return
	}

	target := layout.ComputeTarget(h.opts.DownloadDir, detail)
	path := target.Path()
	log = log.With("path", path)

	res, err := h.downloader.DownloadAndVerify(ctx, detail.AttachURL, path, detail.ExpectedPages, h.opts.MaxRetries)
	if res.Existing {
		summary.Record(res)
		log.Info("already on disk, skipping")
		return
	}
	defer h.pause(ctx)

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Warn("download interrupted", "attempts", res.Attempts, "error", err)
		return
	}
	if err != nil {
		res.Outcome = domain.OutcomeFailed
		res.LastErr = err
	}
	summary.Record(res)

	switch res.Outcome {
	case domain.OutcomeVerified:
		log.Info("report downloaded", "outcome", res.Outcome, "pages", res.ActualPages, "attempts", res.Attempts)
	case domain.OutcomeUnverifiable:
		log.Warn("report downloaded without page count", "outcome", res.Outcome, "attempts", res.Attempts)
	default:
		log.Error("report download failed", "outcome", res.Outcome, "attempts", res.Attempts,
			"expected_pages", detail.ExpectedPages, "error", res.LastErr)
	}

	h.record(ctx, log, domain.DownloadRecord{
		RunID:         runID,
		Ticker:        ticker.Code,
		ReportID:      report.ID,
		Title:         detail.NoticeTitle,
		Path:          path,
		Outcome:       res.Outcome,
		ExpectedPages: detail.ExpectedPages,
		Attempts:      res.Attempts,
		RecordedAt:    h.now(),
	})

	if res.Outcome.Succeeded() {
		h.submit(ctx, log, domain.Artifact{
			ReportID: report.ID,
			Ticker:   ticker.Code,
			Path:     path,
			Pages:    res.ActualPages,
			Outcome:  res.Outcome,
		})
	}
}

func (h *Harvester) record(ctx context.Context, log *slog.Logger, rec domain.DownloadRecord) {
	if h.manifest == nil {
		return
	}
	if err := h.manifest.SaveOutcome(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("manifest write failed", "error", err)
	}
}

func (h *Harvester) submit(ctx context.Context, log *slog.Logger, artifact domain.Artifact) {
	if h.extraction == nil {
		return
	}
	if err := h.extraction.Submit(ctx, artifact); err != nil {
		log.Warn("extraction hand-off failed", "error", err)
	}
}

func (h *Harvester) pause(ctx context.Context) {
	_ = sleep(ctx, h.opts.ReportDelay)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
