package usecase

import (
	"fmt"
	"strings"
	"time"

	"ReportHarvester/internal/domain"
)

// FormatSummary renders a run summary as a short plain-text message.
func FormatSummary(run domain.RunSummary) string {
	totals := run.Totals()

	var b strings.Builder
	fmt.Fprintf(&b, "Research report harvest %s\n", run.RunID)
	fmt.Fprintf(&b, "Started %s, took %s\n", run.StartedAt.Format(time.DateTime), run.Elapsed.Round(time.Second))
	fmt.Fprintf(&b, "Tickers: %d, pages: %d, reports: %d\n", len(run.Tickers), totals.Pages, totals.Reports)
	fmt.Fprintf(&b, "Verified: %d\nUnverifiable: %d\nFailed: %d\nAlready on disk: %d\n",
		totals.Verified, totals.Unverifiable, totals.Failed, totals.AlreadyOnDisk)
	fmt.Fprintf(&b, "Skipped: %d below minimum pages, %d without detail\n", totals.BelowMinimum, totals.DetailMissing)

	var aborted []string
	for _, t := range run.Tickers {
		if t.Aborted {
			aborted = append(aborted, t.Ticker.String())
		}
	}
	if len(aborted) > 0 {
		fmt.Fprintf(&b, "Aborted: %s\n", strings.Join(aborted, ", "))
	}

	return b.String()
}
