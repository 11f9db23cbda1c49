package cli

import (
	"fmt"
	"io"
	"time"

	"ReportHarvester/internal/app"
	"ReportHarvester/internal/domain"
)

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	cfg, logger, logCloser, err := loadEnvironment(c.globals)
	if err != nil {
		return err
	}
	defer closeQuietly(logCloser, nil, "log file")

	ctx := commandContext(c.ctx)
	application, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer closeQuietly(application, logger, "manifest")

	stats, err := application.Status(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	writeStatus(stdout, cfg.DownloadDir, stats)
	return nil
}

func writeStatus(w io.Writer, downloadDir string, stats domain.ManifestStats) {
	fmt.Fprintf(w, "Download dir:  %s\n", downloadDir)
	fmt.Fprintf(w, "Verified:      %d\n", stats.ByOutcome[domain.OutcomeVerified])
	fmt.Fprintf(w, "Unverifiable:  %d\n", stats.ByOutcome[domain.OutcomeUnverifiable])
	fmt.Fprintf(w, "Failed:        %d\n", stats.ByOutcome[domain.OutcomeFailed])
	if stats.LastRunID == "" {
		fmt.Fprintln(w, "Last run:      never")
		return
	}
	fmt.Fprintf(w, "Last run:      %s at %s\n", stats.LastRunID, stats.LastRunAt.Format(time.RFC3339))
}
