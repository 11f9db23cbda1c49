package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReportHarvester/internal/domain"
)

func TestResolverListingIsCacheFirst(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	listings := newMemStore()
	listings.entries[domain.ListingKey("600519", 1, testWindow)] = listingPayload(t, 4,
		listedReport{ID: "AP1", Title: "贵州茅台深度", Pages: 23})

	r := NewResolver(ResolverDeps{Remote: remote, Listings: listings, Details: newMemStore(), Parser: jsonParser{}})

	page, err := r.Listing(context.Background(), "600519", 1, testWindow)
	require.NoError(t, err)

	listingCalls, _ := remote.calls()
	assert.Zero(t, listingCalls)
	assert.Equal(t, 4, page.TotalPages)
	assert.Equal(t, "600519", page.Ticker)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, testWindow, page.Window)
	require.Len(t, page.Reports, 1)
	assert.Equal(t, "AP1", page.Reports[0].ID)
	assert.Equal(t, 23, page.Reports[0].AttachPages.Int())
}

func TestResolverListingMissFetchesAndStores(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	payload := listingPayload(t, 1, listedReport{ID: "AP1", Pages: "5"})
	remote.listings[listingKey("000001", 1)] = payload
	listings := newMemStore()

	r := NewResolver(ResolverDeps{Remote: remote, Listings: listings, Details: newMemStore(), Parser: jsonParser{}})

	for i := 0; i < 3; i++ {
		page, err := r.Listing(context.Background(), "000001", 1, testWindow)
		require.NoError(t, err)
		assert.Equal(t, 5, page.Reports[0].AttachPages.Int())
	}

	listingCalls, _ := remote.calls()
	assert.Equal(t, 1, listingCalls)
	assert.Equal(t, payload, listings.get(domain.ListingKey("000001", 1, testWindow)))
}

func TestResolverCorruptListingFallsThrough(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	fresh := listingPayload(t, 2)
	remote.listings[listingKey("000001", 1)] = fresh
	listings := newMemStore()
	key := domain.ListingKey("000001", 1, testWindow)
	listings.entries[key] = []byte("{truncated")

	r := NewResolver(ResolverDeps{Remote: remote, Listings: listings, Details: newMemStore(), Parser: jsonParser{}})

	page, err := r.Listing(context.Background(), "000001", 1, testWindow)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPages)

	listingCalls, _ := remote.calls()
	assert.Equal(t, 1, listingCalls)
	assert.Equal(t, fresh, listings.get(key))
}

func TestResolverListingFetchFailureIsTransient(t *testing.T) {
	t.Parallel()

	r := NewResolver(ResolverDeps{Remote: newFakeRemote(), Listings: newMemStore(), Details: newMemStore(), Parser: jsonParser{}})

	_, err := r.Listing(context.Background(), "000001", 1, testWindow)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindTransient))
}

func TestResolverRefreshBypassesListingCache(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	fresh := listingPayload(t, 7)
	remote.listings[listingKey("600519", 1)] = fresh
	listings := newMemStore()
	key := domain.ListingKey("600519", 1, testWindow)
	listings.entries[key] = listingPayload(t, 3)

	r := NewResolver(ResolverDeps{
		Remote:   remote,
		Listings: listings,
		Details:  newMemStore(),
		Parser:   jsonParser{},
		Refresh:  RefreshPolicy{Listings: true},
	})

	page, err := r.Listing(context.Background(), "600519", 1, testWindow)
	require.NoError(t, err)
	assert.Equal(t, 7, page.TotalPages)
	assert.Equal(t, fresh, listings.get(key))
}

func TestResolverDetailCacheFirst(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	details := newMemStore()
	details.entries[domain.DetailKey("AP1")] = detailPayload(t, domain.ReportDetail{AttachURL: "https://pdf.example/AP1.pdf", ExpectedPages: 12})

	r := NewResolver(ResolverDeps{Remote: remote, Listings: newMemStore(), Details: details, Parser: jsonParser{}})

	d, err := r.Detail(context.Background(), "AP1")
	require.NoError(t, err)
	assert.Equal(t, "https://pdf.example/AP1.pdf", d.AttachURL)
	assert.Equal(t, 12, d.ExpectedPages)

	_, detailCalls := remote.calls()
	assert.Zero(t, detailCalls)
}

func TestResolverDetailRefreshByReportID(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.details["AP2"] = detailPayload(t, domain.ReportDetail{AttachURL: "https://pdf.example/new.pdf"})
	details := newMemStore()
	details.entries[domain.DetailKey("AP1")] = detailPayload(t, domain.ReportDetail{AttachURL: "https://pdf.example/AP1.pdf"})
	details.entries[domain.DetailKey("AP2")] = detailPayload(t, domain.ReportDetail{AttachURL: "https://pdf.example/old.pdf"})

	r := NewResolver(ResolverDeps{
		Remote:   remote,
		Listings: newMemStore(),
		Details:  details,
		Parser:   jsonParser{},
		Refresh:  RefreshPolicy{ReportIDs: map[string]bool{"AP2": true}},
	})

	d1, err := r.Detail(context.Background(), "AP1")
	require.NoError(t, err)
	assert.Equal(t, "https://pdf.example/AP1.pdf", d1.AttachURL)

	d2, err := r.Detail(context.Background(), "AP2")
	require.NoError(t, err)
	assert.Equal(t, "https://pdf.example/new.pdf", d2.AttachURL)

	_, detailCalls := remote.calls()
	assert.Equal(t, 1, detailCalls)
}

func TestResolverDetailNotFound(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.details["NOMARK"] = []byte("none")
	remote.details["NOURL"] = detailPayload(t, domain.ReportDetail{NoticeTitle: "无附件"})

	r := NewResolver(ResolverDeps{Remote: remote, Listings: newMemStore(), Details: newMemStore(), Parser: jsonParser{}})

	_, err := r.Detail(context.Background(), "NOMARK")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	_, err = r.Detail(context.Background(), "NOURL")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestResolverCorruptDetailFallsThrough(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.details["AP1"] = detailPayload(t, domain.ReportDetail{AttachURL: "https://pdf.example/AP1.pdf"})
	details := newMemStore()
	details.entries[domain.DetailKey("AP1")] = []byte("{broken")

	r := NewResolver(ResolverDeps{Remote: remote, Listings: newMemStore(), Details: details, Parser: jsonParser{}})

	d, err := r.Detail(context.Background(), "AP1")
	require.NoError(t, err)
	assert.Equal(t, "https://pdf.example/AP1.pdf", d.AttachURL)

	_, detailCalls := remote.calls()
	assert.Equal(t, 1, detailCalls)
}
