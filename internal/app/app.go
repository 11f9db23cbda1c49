package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ReportHarvester/internal/config"
	"ReportHarvester/internal/domain"
	"ReportHarvester/internal/infrastructure/cache"
	"ReportHarvester/internal/infrastructure/download"
	"ReportHarvester/internal/infrastructure/eastmoney"
	"ReportHarvester/internal/infrastructure/ml"
	"ReportHarvester/internal/infrastructure/parser"
	"ReportHarvester/internal/infrastructure/scheduler"
	"ReportHarvester/internal/infrastructure/storage"
	"ReportHarvester/internal/infrastructure/telegram"
	"ReportHarvester/internal/infrastructure/transport"
	"ReportHarvester/internal/infrastructure/universe"
	"ReportHarvester/internal/ports"
	"ReportHarvester/internal/usecase"
)

const stopTimeout = 30 * time.Second

// Options are the per-invocation settings that are not part of the config file.
type Options struct {
	Refresh usecase.RefreshPolicy
	// PageCounter replaces the pdfcpu counter when set.
	PageCounter download.PageCounter
}

// RunOptions select what a single Run covers.
type RunOptions struct {
	Once    bool
	Tickers []domain.Ticker
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	manifest *storage.ManifestRepository
	driver   *usecase.Driver
}

// New builds a runnable application instance. The caller must Close it.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = slog.New(slog.DiscardHandler)
	}

	manifest, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}

	gate := transport.NewGate(cfg.Politeness.RequestsPerSecond, cfg.Politeness.Burst)
	referer := cfg.Remote.Referer
	if referer == "" {
		referer = eastmoney.DefaultReferer
	}
	identity := transport.NewRandomIdentity(cfg.Remote.UserAgents, referer)

	remote := eastmoney.NewClient(eastmoney.Options{
		ListURL:       cfg.Remote.ListURL,
		DetailBaseURL: cfg.Remote.DetailBaseURL,
		PageSize:      cfg.Remote.PageSize,
		HTTPClient:    &http.Client{Timeout: cfg.Remote.RequestTimeout},
		Identity:      identity,
		Gate:          gate,
	})

	details := cache.NewFileStore(cfg.Cache.DetailDir)
	resolver := usecase.NewResolver(usecase.ResolverDeps{
		Remote:   remote,
		Listings: cache.NewFileStore(cfg.Cache.ListingDir),
		Details:  details,
		Parser:   parser.NewZwinfoParser(details, baseLogger.With("component", "parser.zwinfo")),
		Refresh:  opts.Refresh,
		Logger:   baseLogger.With("component", "resolver"),
	})

	downloader := download.NewVerifier(download.Options{
		HTTPClient: transport.NewDownloadClient(cfg.Download.ConnectTimeout, cfg.Download.TotalTimeout, cfg.Download.MaxRedirects),
		Identity: identity.WithHeaders(map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "zh-CN,zh;q=0.9",
		}),
		Gate:    gate,
		Counter: opts.PageCounter,
		Backoff: cfg.Politeness.RetryBackoff,
		Logger:  baseLogger.With("component", "download"),
	})

	var extraction ports.ExtractionQueue
	if cfg.Extraction.Endpoint != "" {
		extraction = ml.NewClient(cfg.Extraction.Endpoint, cfg.Extraction.APIKey, cfg.Extraction.Timeout)
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	harvester := usecase.NewHarvester(usecase.HarvesterDeps{
		Resolver:   resolver,
		Downloader: downloader,
		Manifest:   manifest,
		Extraction: extraction,
		Options: usecase.HarvestOptions{
			MinPages:    cfg.MinPages,
			DownloadDir: cfg.DownloadDir,
			MaxRetries:  cfg.MaxRetries,
			ReportDelay: cfg.Politeness.ReportDelay,
		},
		Logger: baseLogger.With("component", "harvester"),
	})

	driver := usecase.NewDriver(harvester, notifier, usecase.DriverOptions{
		Workers:     cfg.Workers,
		YearsAgo:    cfg.YearsAgo,
		TickerDelay: cfg.Politeness.TickerDelay,
	}, baseLogger.With("component", "driver"))

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		manifest: manifest,
		driver:   driver,
	}, nil
}

// Close releases the manifest database.
func (a *Application) Close() error {
	return a.manifest.Close()
}

// Run harvests once, or on the configured cron schedule until ctx is done.
// Per-report and per-ticker failures are logged, never returned.
func (a *Application) Run(ctx context.Context, opts RunOptions) error {
	tickers, err := a.universe(opts.Tickers)
	if err != nil {
		return err
	}

	if a.cfg.Scheduler.CronExpression == "" || opts.Once {
		_, err := a.driver.Run(ctx, tickers)
		if errors.Is(err, context.Canceled) {
			a.logger.Info("harvest stopped before completion")
			return nil
		}
		return err
	}

	cron := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(),
		a.logger.With("component", "scheduler"))
	sched := usecase.NewScheduler(cron, a.driver, tickers, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Status reports manifest totals.
func (a *Application) Status(ctx context.Context) (domain.ManifestStats, error) {
	return a.manifest.Stats(ctx)
}

// universe prefers explicit tickers over the configured file and inline list.
func (a *Application) universe(explicit []domain.Ticker) ([]domain.Ticker, error) {
	if len(explicit) > 0 {
		return universe.Merge(explicit), nil
	}

	var fromFile []domain.Ticker
	if a.cfg.Universe.File != "" {
		loaded, err := universe.LoadCSV(a.cfg.Universe.File)
		if err != nil {
			return nil, err
		}
		fromFile = loaded
	}

	inline := make([]domain.Ticker, 0, len(a.cfg.Universe.Tickers))
	for _, t := range a.cfg.Universe.Tickers {
		inline = append(inline, domain.Ticker{Code: t.Code, Name: t.Name})
	}

	tickers := universe.Merge(fromFile, inline)
	if len(tickers) == 0 {
		return nil, errors.New("empty ticker universe: set universe.file, universe.tickers or --ticker")
	}
	return tickers, nil
}
