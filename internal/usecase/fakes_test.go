package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"ReportHarvester/internal/domain"
	"ReportHarvester/internal/ports"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	puts    int
}

func newMemStore() *memStore {
	return &memStore{entries: map[string][]byte{}}
}

func (s *memStore) Get(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[name]
	if !ok {
		return nil, ports.ErrMiss
	}
	return v, nil
}

func (s *memStore) Put(ctx context.Context, name string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = payload
	s.puts++
	return nil
}

func (s *memStore) get(name string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[name]
}

type fakeRemote struct {
	mu           sync.Mutex
	listings     map[string][]byte
	listingErrs  map[string]error
	details      map[string][]byte
	listingCalls int
	detailCalls  int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		listings:    map[string][]byte{},
		listingErrs: map[string]error{},
		details:     map[string][]byte{},
	}
}

func listingKey(ticker string, page int) string {
	return fmt.Sprintf("%s/%d", ticker, page)
}

func (r *fakeRemote) FetchListing(ctx context.Context, ticker string, page int, window domain.DateWindow) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listingCalls++
	key := listingKey(ticker, page)
	if err := r.listingErrs[key]; err != nil {
		return nil, err
	}
	payload, ok := r.listings[key]
	if !ok {
		return nil, domain.Transient("fetch listing", fmt.Errorf("no listing %s", key))
	}
	return payload, nil
}

func (r *fakeRemote) FetchDetail(ctx context.Context, reportID string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detailCalls++
	payload, ok := r.details[reportID]
	if !ok {
		return nil, domain.Transient("fetch detail", fmt.Errorf("no detail %s", reportID))
	}
	return payload, nil
}

func (r *fakeRemote) calls() (listings, details int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listingCalls, r.detailCalls
}

// jsonParser reads details encoded as plain JSON. "none" stands for a page
// without the metadata marker.
type jsonParser struct{}

func (jsonParser) Parse(ctx context.Context, raw []byte, reportID string) (*domain.ReportDetail, error) {
	if string(raw) == "none" {
		return nil, nil
	}
	var d domain.ReportDetail
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, domain.Transient("parse detail", err)
	}
	d.ReportID = reportID
	return &d, nil
}

type fakeDownloader struct {
	mu      sync.Mutex
	onDisk  map[string]bool
	outcome domain.Outcome
	err     error
	calls   []string
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{onDisk: map[string]bool{}, outcome: domain.OutcomeVerified}
}

func (d *fakeDownloader) DownloadAndVerify(ctx context.Context, url, path string, expectedPages, maxRetries int) (domain.DownloadResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.onDisk[path] {
		return domain.DownloadResult{Outcome: domain.OutcomeVerified, Existing: true}, nil
	}
	d.calls = append(d.calls, url)
	if d.err != nil {
		return domain.DownloadResult{Outcome: domain.OutcomeFailed, Attempts: 1}, d.err
	}
	res := domain.DownloadResult{Outcome: d.outcome, Attempts: 1, ActualPages: expectedPages}
	if d.outcome.Succeeded() {
		d.onDisk[path] = true
	} else {
		res.Attempts = maxRetries
	}
	return res, nil
}

func (d *fakeDownloader) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type fakeManifest struct {
	mu      sync.Mutex
	records []domain.DownloadRecord
}

func (m *fakeManifest) SaveOutcome(ctx context.Context, rec domain.DownloadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *fakeManifest) Stats(ctx context.Context) (domain.ManifestStats, error) {
	return domain.ManifestStats{}, nil
}

type fakeExtraction struct {
	mu        sync.Mutex
	artifacts []domain.Artifact
}

func (e *fakeExtraction) Submit(ctx context.Context, artifact domain.Artifact) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.artifacts = append(e.artifacts, artifact)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) PublishSummary(ctx context.Context, summary string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, summary)
	return nil
}

type listedReport struct {
	ID    string
	Title string
	Pages any
}

func listingPayload(t *testing.T, totalPages int, reports ...listedReport) []byte {
	t.Helper()
	data := make([]map[string]any, 0, len(reports))
	for _, r := range reports {
		data = append(data, map[string]any{
			"infoCode":    r.ID,
			"title":       r.Title,
			"attachPages": r.Pages,
		})
	}
	raw, err := json.Marshal(map[string]any{
		"TotalPage": totalPages,
		"hits":      len(reports),
		"data":      data,
	})
	if err != nil {
		t.Fatalf("marshal listing: %v", err)
	}
	return raw
}

func detailPayload(t *testing.T, d domain.ReportDetail) []byte {
	t.Helper()
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal detail: %v", err)
	}
	return raw
}

var testWindow = domain.DateWindow{Begin: "2015-05-03", End: "2025-05-01"}

type harvestFixture struct {
	remote     *fakeRemote
	listings   *memStore
	details    *memStore
	downloader *fakeDownloader
	manifest   *fakeManifest
	extraction *fakeExtraction
	harvester  *Harvester
}

func newHarvestFixture(t *testing.T, minPages int) *harvestFixture {
	t.Helper()
	f := &harvestFixture{
		remote:     newFakeRemote(),
		listings:   newMemStore(),
		details:    newMemStore(),
		downloader: newFakeDownloader(),
		manifest:   &fakeManifest{},
		extraction: &fakeExtraction{},
	}
	resolver := NewResolver(ResolverDeps{
		Remote:   f.remote,
		Listings: f.listings,
		Details:  f.details,
		Parser:   jsonParser{},
	})
	f.harvester = NewHarvester(HarvesterDeps{
		Resolver:   resolver,
		Downloader: f.downloader,
		Manifest:   f.manifest,
		Extraction: f.extraction,
		Options: HarvestOptions{
			MinPages:    minPages,
			DownloadDir: "reports_pdf",
			MaxRetries:  3,
		},
		Now: func() time.Time { return time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC) },
	})
	return f
}
