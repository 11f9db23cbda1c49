package eastmoney

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ReportHarvester/internal/domain"
	"ReportHarvester/internal/infrastructure/transport"
	"ReportHarvester/internal/ports"
)

const (
	DefaultListURL       = "https://reportapi.eastmoney.com/report/list"
	DefaultDetailBaseURL = "https://data.eastmoney.com/report/info/"
	DefaultReferer       = "https://data.eastmoney.com/"
	DefaultPageSize      = 50

	callbackName = "datatable6333112"
	maxBodyBytes = 16 << 20
)

var jsonpExpr = regexp.MustCompile(`(?s)\((.*)\)`)

// Options configures a Client. Zero values fall back to the public endpoints.
type Options struct {
	ListURL       string
	DetailBaseURL string
	PageSize      int
	HTTPClient    *http.Client
	Identity      transport.Identity
	Gate          *transport.Gate
	Now           func() time.Time
}

// Client issues listing and detail requests. It owns no state beyond its
// configuration.
type Client struct {
	listURL    string
	detailBase string
	pageSize   int
	http       *http.Client
	identity   transport.Identity
	gate       *transport.Gate
	now        func() time.Time
	bodyLimit  int64
}

var _ ports.RemoteAPI = (*Client)(nil)

// NewClient wires options with defaults.
func NewClient(opts Options) *Client {
	c := &Client{
		listURL:    opts.ListURL,
		detailBase: opts.DetailBaseURL,
		pageSize:   opts.PageSize,
		http:       opts.HTTPClient,
		identity:   opts.Identity,
		gate:       opts.Gate,
		now:        opts.Now,
		bodyLimit:  maxBodyBytes,
	}
	if c.listURL == "" {
		c.listURL = DefaultListURL
	}
	if c.detailBase == "" {
		c.detailBase = DefaultDetailBaseURL
	}
	if c.pageSize <= 0 {
		c.pageSize = DefaultPageSize
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.identity == nil {
		c.identity = transport.NewRandomIdentity(nil, DefaultReferer)
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// FetchListing returns the unwrapped JSON body of one listing page.
func (c *Client) FetchListing(ctx context.Context, ticker string, page int, window domain.DateWindow) ([]byte, error) {
	pageURL, err := buildListURL(c.listURL, ticker, page, c.pageSize, window, c.now())
	if err != nil {
		return nil, domain.Transient("fetch listing", err)
	}

	body, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, domain.Transient("fetch listing", fmt.Errorf("ticker %s page %d: %w", ticker, page, err))
	}

	payload, err := UnwrapJSONP(body)
	if err != nil {
		return nil, domain.Transient("fetch listing", fmt.Errorf("ticker %s page %d: %w", ticker, page, err))
	}
	return payload, nil
}

// FetchDetail returns the raw HTML of a report detail page.
func (c *Client) FetchDetail(ctx context.Context, reportID string) ([]byte, error) {
	detailURL, err := buildDetailURL(c.detailBase, reportID)
	if err != nil {
		return nil, domain.Transient("fetch detail", err)
	}

	body, err := c.get(ctx, detailURL)
	if err != nil {
		return nil, domain.Transient("fetch detail", fmt.Errorf("report %s: %w", reportID, err))
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for request slot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.identity.Apply(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.bodyLimit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.bodyLimit {
		return nil, fmt.Errorf("response exceeds limit of %d bytes", c.bodyLimit)
	}
	return body, nil
}

// UnwrapJSONP strips a `callback(...)` wrapper and checks the inner JSON.
func UnwrapJSONP(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if json.Valid(trimmed) {
		return trimmed, nil
	}

	m := jsonpExpr.FindSubmatch(trimmed)
	if m == nil {
		return nil, fmt.Errorf("response is not a callback-wrapped payload")
	}
	inner := bytes.TrimSpace(m[1])
	if !json.Valid(inner) {
		return nil, fmt.Errorf("callback payload is not valid JSON")
	}
	return inner, nil
}

func buildListURL(base, ticker string, page, pageSize int, window domain.DateWindow, now time.Time) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid list url %s: %w", base, err)
	}

	p := strconv.Itoa(page)
	query := parsed.Query()
	query.Set("cb", callbackName)
	query.Set("pageNo", p)
	query.Set("pageSize", strconv.Itoa(pageSize))
	query.Set("code", ticker)
	query.Set("industryCode", "*")
	query.Set("industry", "*")
	query.Set("rating", "*")
	query.Set("ratingchange", "*")
	query.Set("beginTime", window.Begin)
	query.Set("endTime", window.End)
	query.Set("fields", "")
	query.Set("qType", "0")
	query.Set("p", p)
	query.Set("pageNum", p)
	query.Set("pageNumber", p)
	query.Set("_", strconv.FormatInt(now.UnixMilli(), 10))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func buildDetailURL(base, reportID string) (string, error) {
	if strings.TrimSpace(reportID) == "" {
		return "", fmt.Errorf("empty report id")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid detail url %s: %w", base, err)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	ref := &url.URL{Path: reportID + ".html"}
	return parsed.ResolveReference(ref).String(), nil
}
