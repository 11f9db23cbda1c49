package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"ReportHarvester/internal/domain"
	"ReportHarvester/internal/infrastructure/transport"
	"ReportHarvester/internal/ports"
)

const partSuffix = ".part"

// Options configures a Verifier.
type Options struct {
	HTTPClient *http.Client
	Identity   transport.Identity
	Gate       *transport.Gate
	Counter    PageCounter
	Backoff    time.Duration
	Logger     *slog.Logger
}

// Verifier downloads report PDFs and accepts them only when their page count
// matches the expected one. Files are staged as <path>.part and renamed into
// place after verification, so a file at the target path is always complete.
type Verifier struct {
	client   *http.Client
	identity transport.Identity
	gate     *transport.Gate
	counter  PageCounter
	backoff  time.Duration
	locks    *pathLocks
	logger   *slog.Logger
}

var _ ports.Downloader = (*Verifier)(nil)

// NewVerifier wires options; a nil counter defaults to PDFPageCounter.
func NewVerifier(opts Options) *Verifier {
	v := &Verifier{
		client:   opts.HTTPClient,
		identity: opts.Identity,
		gate:     opts.Gate,
		counter:  opts.Counter,
		backoff:  opts.Backoff,
		locks:    newPathLocks(),
		logger:   opts.Logger,
	}
	if v.client == nil {
		v.client = transport.NewDownloadClient(30*time.Second, 300*time.Second, 5)
	}
	if v.identity == nil {
		v.identity = transport.NewRandomIdentity(nil, "")
	}
	if v.counter == nil {
		v.counter = PDFPageCounter{}
	}
	return v
}

// DownloadAndVerify returns Verified without network activity when path
// already exists. The returned error is only set for filesystem failures and
// cancellation between attempts; exhausted retries are reported as
// OutcomeFailed with LastErr.
func (v *Verifier) DownloadAndVerify(ctx context.Context, url, path string, expectedPages, maxRetries int) (domain.DownloadResult, error) {
	unlock := v.locks.lock(path)
	defer unlock()

	if exists(path) {
		return domain.DownloadResult{Outcome: domain.OutcomeVerified, Existing: true}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.DownloadResult{Outcome: domain.OutcomeFailed}, domain.IOFailure("create download dir", err)
	}

	if maxRetries < 1 {
		maxRetries = 1
	}

	part := path + partSuffix
	res := domain.DownloadResult{Outcome: domain.OutcomeFailed}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			if err := transport.Sleep(ctx, v.backoff); err != nil {
				return res, err
			}
		}
		res.Attempts = attempt

		if err := v.fetch(ctx, url, part); err != nil {
			_ = os.Remove(part)
			res.LastErr = err
			v.warn("download attempt failed", "path", path, "attempt", attempt, "max", maxRetries, "error", err)
			continue
		}

		if expectedPages <= 0 {
			if err := os.Rename(part, path); err != nil {
				_ = os.Remove(part)
				return res, domain.IOFailure("store download", err)
			}
			res.Outcome = domain.OutcomeUnverifiable
			res.LastErr = nil
			return res, nil
		}

		actual, err := v.counter.CountPages(part)
		res.ActualPages = actual
		if err == nil && actual == expectedPages {
			if err := os.Rename(part, path); err != nil {
				_ = os.Remove(part)
				return res, domain.IOFailure("store download", err)
			}
			res.Outcome = domain.OutcomeVerified
			res.LastErr = nil
			v.info("page count verified", "path", path, "pages", actual)
			return res, nil
		}

		_ = os.Remove(part)
		if err == nil {
			err = fmt.Errorf("got %d pages, expected %d", actual, expectedPages)
		}
		res.LastErr = domain.NewError("verify download", domain.KindIntegrityMismatch, err)
		v.warn("page count mismatch", "path", path, "attempt", attempt, "max", maxRetries, "actual", actual, "expected", expectedPages)
	}

	return res, nil
}

// fetch streams url into dst. Waiting for a request slot honours ctx, the
// transfer itself does not: an operator stop never cuts a download short.
func (v *Verifier) fetch(ctx context.Context, url, dst string) error {
	if err := v.gate.Wait(ctx); err != nil {
		return fmt.Errorf("wait for request slot: %w", err)
	}

	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, url, nil)
	if err != nil {
		return domain.Transient("download", fmt.Errorf("build request: %w", err))
	}
	v.identity.Apply(req.Header)

	resp, err := v.client.Do(req)
	if err != nil {
		return domain.Transient("download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Transient("download", fmt.Errorf("server returned %s", resp.Status))
	}

	f, err := os.Create(dst)
	if err != nil {
		return domain.IOFailure("download", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return domain.Transient("download", fmt.Errorf("stream body: %w", err))
	}
	if err := f.Close(); err != nil {
		return domain.IOFailure("download", err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

func (v *Verifier) info(msg string, args ...any) {
	if v.logger != nil {
		v.logger.Info(msg, args...)
	}
}

func (v *Verifier) warn(msg string, args ...any) {
	if v.logger != nil {
		v.logger.Warn(msg, args...)
	}
}
