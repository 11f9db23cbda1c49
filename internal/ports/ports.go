package ports

import (
	"context"
	"errors"
	"time"

	"ReportHarvester/internal/domain"
)

// RemoteAPI talks to the research-report provider.
type RemoteAPI interface {
	FetchListing(ctx context.Context, ticker string, page int, window domain.DateWindow) ([]byte, error)
	FetchDetail(ctx context.Context, reportID string) ([]byte, error)
}

// ErrMiss is returned by PayloadStore.Get when nothing is stored under a name.
var ErrMiss = errors.New("cache: entry not found")

// PayloadStore is a durable key/value store of raw payloads.
type PayloadStore interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, payload []byte) error
}

// DetailParser maps a raw detail payload to report metadata. A nil detail
// with a nil error means the payload carries no metadata marker.
type DetailParser interface {
	Parse(ctx context.Context, raw []byte, reportID string) (*domain.ReportDetail, error)
}

// Downloader fetches a PDF to path and checks its page count.
type Downloader interface {
	DownloadAndVerify(ctx context.Context, url, path string, expectedPages, maxRetries int) (domain.DownloadResult, error)
}

// ManifestRepository persists download outcomes for audit and status reporting.
type ManifestRepository interface {
	SaveOutcome(ctx context.Context, rec domain.DownloadRecord) error
	Stats(ctx context.Context) (domain.ManifestStats, error)
}

// Notifier delivers the end-of-run summary.
type Notifier interface {
	PublishSummary(ctx context.Context, summary string) error
}

// ExtractionQueue hands finished PDFs to the downstream text extraction service.
type ExtractionQueue interface {
	Submit(ctx context.Context, artifact domain.Artifact) error
}

// Scheduler controls when harvest runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
