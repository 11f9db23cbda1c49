package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReportHarvester/internal/config"
	"ReportHarvester/internal/domain"
	"ReportHarvester/internal/infrastructure/download"
)

type providerStub struct {
	mu   sync.Mutex
	hits map[string]int
	srv  *httptest.Server
}

func newProviderStub(t *testing.T) *providerStub {
	t.Helper()
	p := &providerStub{hits: map[string]int{}}
	p.srv = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *providerStub) serve(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.hits[r.URL.Path]++
	p.mu.Unlock()

	switch {
	case r.URL.Path == "/list":
		cb := r.URL.Query().Get("cb")
		fmt.Fprintf(w, `%s({"TotalPage":1,"hits":2,"data":[`+
			`{"infoCode":"AP1","title":"茅台深度","attachPages":"24"},`+
			`{"infoCode":"AP2","title":"纪要","attachPages":1}]})`, cb)
	case r.URL.Path == "/detail/AP1.html":
		fmt.Fprintf(w, `<html><script>var zwinfo = {"attach_url": "%s/pdf/AP1.pdf", "notice_title": "茅台深度",`+
			` "short_name": "贵州茅台", "notice_date": "2024-01-05 00:00:00", "source_sample_name": "中信证券",`+
			` "attach_pages": 24};</script></html>`, p.srv.URL)
	case strings.HasPrefix(r.URL.Path, "/pdf/"):
		_, _ = w.Write([]byte("%PDF-1.4 stub"))
	default:
		http.NotFound(w, r)
	}
}

func (p *providerStub) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.hits {
		n += c
	}
	return n
}

func (p *providerStub) count(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[path]
}

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.DownloadDir = filepath.Join(root, "reports_pdf")
	cfg.Cache.ListingDir = filepath.Join(root, "rawData")
	cfg.Cache.DetailDir = filepath.Join(root, "detailData")
	cfg.Storage.DSN = filepath.Join(root, "harvest.db")
	cfg.Remote.ListURL = baseURL + "/list"
	cfg.Remote.DetailBaseURL = baseURL + "/detail/"
	cfg.Politeness = config.PolitenessConfig{}
	cfg.Universe.Tickers = []config.TickerConfig{{Code: "600519", Name: "贵州茅台"}}
	return cfg
}

func fixedPages(n int) download.PageCounter {
	return download.PageCounterFunc(func(string) (int, error) { return n, nil })
}

func TestApplicationHarvestsAndIsIdempotent(t *testing.T) {
	provider := newProviderStub(t)
	cfg := testConfig(t, provider.srv.URL)
	ctx := context.Background()

	application, err := New(ctx, cfg, nil, Options{PageCounter: fixedPages(24)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	require.NoError(t, application.Run(ctx, RunOptions{Once: true}))

	want := filepath.Join(cfg.DownloadDir, "贵州茅台", "深度报告", "20240105_中信证券_贵州茅台_茅台深度.pdf")
	_, err = os.Stat(want)
	require.NoError(t, err)
	assert.Zero(t, provider.count("/detail/AP2.html"), "report below min_pages fetched")
	assert.FileExists(t, filepath.Join(cfg.Cache.DetailDir, domain.DetailKey("AP1")))
	assert.FileExists(t, filepath.Join(cfg.Cache.DetailDir, domain.MetadataKey("AP1")))

	stats, err := application.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ByOutcome[domain.OutcomeVerified])
	assert.NotEmpty(t, stats.LastRunID)

	before := provider.total()
	require.NoError(t, application.Run(ctx, RunOptions{Once: true}))
	assert.Equal(t, before, provider.total(), "second run touched the network")
}

func TestApplicationExplicitTickersReplaceUniverse(t *testing.T) {
	provider := newProviderStub(t)
	cfg := testConfig(t, provider.srv.URL)
	ctx := context.Background()

	application, err := New(ctx, cfg, nil, Options{PageCounter: fixedPages(24)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	tickers, err := application.universe([]domain.Ticker{{Code: "000001"}, {Code: "000001"}})
	require.NoError(t, err)
	assert.Equal(t, []domain.Ticker{{Code: "000001"}}, tickers)
}

func TestApplicationRejectsEmptyUniverse(t *testing.T) {
	provider := newProviderStub(t)
	cfg := testConfig(t, provider.srv.URL)
	cfg.Universe.Tickers = nil
	ctx := context.Background()

	application, err := New(ctx, cfg, nil, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	err = application.Run(ctx, RunOptions{Once: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty ticker universe")
	assert.Zero(t, provider.total())
}

func TestApplicationCancelledRunIsClean(t *testing.T) {
	provider := newProviderStub(t)
	cfg := testConfig(t, provider.srv.URL)

	application, err := New(context.Background(), cfg, nil, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, application.Run(ctx, RunOptions{Once: true}))
	assert.Zero(t, provider.total())
}
