package domain

import "time"

// Outcome describes how a single report download ended.
type Outcome string

const (
	// OutcomeVerified means the page count of the file matched the expected count,
	// or the file was already present from an earlier run.
	OutcomeVerified Outcome = "verified"
	// OutcomeUnverifiable means the transfer succeeded but no expected page count was known.
	OutcomeUnverifiable Outcome = "unverifiable"
	// OutcomeFailed means every attempt failed transport or page-count verification.
	OutcomeFailed Outcome = "failed"
)

// Succeeded reports whether the artifact is on disk after the download.
func (o Outcome) Succeeded() bool {
	return o == OutcomeVerified || o == OutcomeUnverifiable
}

// DownloadResult is returned by the download verifier.
type DownloadResult struct {
	Outcome     Outcome
	Attempts    int
	ActualPages int
	Existing    bool
	LastErr     error
}

// DownloadRecord is the manifest row written after each download decision.
type DownloadRecord struct {
	RunID         string
	Ticker        string
	ReportID      string
	Title         string
	Path          string
	Outcome       Outcome
	ExpectedPages int
	Attempts      int
	RecordedAt    time.Time
}

// Artifact is handed to the downstream text extraction service.
type Artifact struct {
	ReportID string  `json:"report_id"`
	Ticker   string  `json:"ticker"`
	Path     string  `json:"path"`
	Pages    int     `json:"pages"`
	Outcome  Outcome `json:"outcome"`
}

// TickerSummary counts what happened during one ticker run.
type TickerSummary struct {
	Ticker        Ticker
	Pages         int
	Reports       int
	BelowMinimum  int
	DetailMissing int
	AlreadyOnDisk int
	Verified      int
	Unverifiable  int
	Failed        int
	Aborted       bool
}

// Record tallies one download outcome.
func (s *TickerSummary) Record(res DownloadResult) {
	if res.Existing {
		s.AlreadyOnDisk++
		return
	}
	switch res.Outcome {
	case OutcomeVerified:
		s.Verified++
	case OutcomeUnverifiable:
		s.Unverifiable++
	case OutcomeFailed:
		s.Failed++
	}
}

// RunSummary aggregates a whole driver execution.
type RunSummary struct {
	RunID     string
	StartedAt time.Time
	Elapsed   time.Duration
	Tickers   []TickerSummary
}

// Totals sums the per-ticker counters.
func (r RunSummary) Totals() TickerSummary {
	var total TickerSummary
	for _, t := range r.Tickers {
		total.Pages += t.Pages
		total.Reports += t.Reports
		total.BelowMinimum += t.BelowMinimum
		total.DetailMissing += t.DetailMissing
		total.AlreadyOnDisk += t.AlreadyOnDisk
		total.Verified += t.Verified
		total.Unverifiable += t.Unverifiable
		total.Failed += t.Failed
		if t.Aborted {
			total.Aborted = true
		}
	}
	return total
}

// ManifestStats is what the status command prints.
type ManifestStats struct {
	ByOutcome map[Outcome]int
	LastRunID string
	LastRunAt time.Time
}
