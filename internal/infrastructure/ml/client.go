package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ReportHarvester/internal/domain"
	"ReportHarvester/internal/ports"
)

// Client hands finished PDFs to the external text extraction service.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.ExtractionQueue = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// Submit enqueues one downloaded report for extraction. The report id is
// sent as Idempotency-Key, and a 409 from the service means the report is
// already queued.
func (c *Client) Submit(ctx context.Context, artifact domain.Artifact) error {
	if c.endpoint == "" {
		return nil
	}

	body, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("submit %s: marshal: %w", artifact.ReportID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("submit %s: new request: %w", artifact.ReportID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", artifact.ReportID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Transient("submit extraction", fmt.Errorf("report %s: %w", artifact.ReportID, err))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("submit %s: close response body: %w", artifact.ReportID, err)
	}

	switch {
	case resp.StatusCode == http.StatusConflict:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return domain.Transient("submit extraction", fmt.Errorf("report %s: unexpected status %s", artifact.ReportID, resp.Status))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("submit %s: unexpected status %s", artifact.ReportID, resp.Status)
	}
	return nil
}
