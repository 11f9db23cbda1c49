package cli

import (
	"fmt"

	"ReportHarvester/internal/app"
	"ReportHarvester/internal/domain"
	"ReportHarvester/internal/infrastructure/universe"
	"ReportHarvester/internal/usecase"
)

// Execute implements the go-flags Commander interface for RunCommand.
func (c *RunCommand) Execute(args []string) error {
	cfg, logger, logCloser, err := loadEnvironment(c.globals)
	if err != nil {
		return err
	}
	defer closeQuietly(logCloser, nil, "log file")

	if c.Workers > 0 {
		cfg.Workers = c.Workers
	}
	if c.Universe != "" {
		cfg.Universe.File = c.Universe
		cfg.Universe.Tickers = nil
	}

	tickers := make([]domain.Ticker, 0, len(c.Tickers))
	for _, raw := range c.Tickers {
		t, err := universe.ParseTicker(raw)
		if err != nil {
			return fmt.Errorf("--ticker %q: %w", raw, err)
		}
		tickers = append(tickers, t)
	}

	ctx := commandContext(c.ctx)
	application, err := app.New(ctx, cfg, logger, app.Options{Refresh: c.refreshPolicy()})
	if err != nil {
		return err
	}
	defer closeQuietly(application, logger, "manifest")

	return application.Run(ctx, app.RunOptions{Once: c.Once, Tickers: tickers})
}

func (c *RunCommand) refreshPolicy() usecase.RefreshPolicy {
	policy := usecase.RefreshPolicy{
		Listings: c.RefreshListings,
		Details:  c.RefreshDetails,
	}
	if len(c.RefreshReports) > 0 {
		policy.ReportIDs = make(map[string]bool, len(c.RefreshReports))
		for _, id := range c.RefreshReports {
			policy.ReportIDs[id] = true
		}
	}
	return policy
}
