package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"ReportHarvester/internal/domain"
	"ReportHarvester/internal/ports"
)

// RefreshPolicy selects cache entries whose stored copy is ignored for one
// run. The fresh payload still replaces the stored one.
type RefreshPolicy struct {
	Listings  bool
	Details   bool
	ReportIDs map[string]bool
}

func (p RefreshPolicy) detail(reportID string) bool {
	return p.Details || p.ReportIDs[reportID]
}

// ResolverDeps wires the collaborators of a Resolver.
type ResolverDeps struct {
	Remote   ports.RemoteAPI
	Listings ports.PayloadStore
	Details  ports.PayloadStore
	Parser   ports.DetailParser
	Refresh  RefreshPolicy
	Logger   *slog.Logger
}

// Resolver answers listing and detail lookups cache-first.
type Resolver struct {
	remote   ports.RemoteAPI
	listings ports.PayloadStore
	details  ports.PayloadStore
	parser   ports.DetailParser
	refresh  RefreshPolicy
	logger   *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(deps ResolverDeps) *Resolver {
	return &Resolver{
		remote:   deps.Remote,
		listings: deps.Listings,
		details:  deps.Details,
		parser:   deps.Parser,
		refresh:  deps.Refresh,
		logger:   deps.Logger,
	}
}

// Listing returns one listing page. A stored page is trusted verbatim; an
// unreadable one is refetched and overwritten.
func (r *Resolver) Listing(ctx context.Context, ticker string, page int, window domain.DateWindow) (domain.ListingPage, error) {
	key := domain.ListingKey(ticker, page, window)

	if !r.refresh.Listings {
		raw, ok, err := r.cached(ctx, r.listings, key)
		if err != nil {
			return domain.ListingPage{}, err
		}
		if ok {
			listing, decErr := decodeListing(raw)
			if decErr == nil {
				r.debug("listing cache hit", "ticker", ticker, "page", page)
				return withPosition(listing, ticker, page, window), nil
			}
			r.warn("cached listing unreadable, refetching", "ticker", ticker, "page", page, "error", decErr)
		}
	}

	raw, err := r.remote.FetchListing(ctx, ticker, page, window)
	if err != nil {
		return domain.ListingPage{}, fmt.Errorf("fetch listing page %d: %w", page, err)
	}
	listing, err := decodeListing(raw)
	if err != nil {
		return domain.ListingPage{}, domain.Transient("decode listing", fmt.Errorf("page %d: %w", page, err))
	}
	if err := r.listings.Put(ctx, key, raw); err != nil {
		return domain.ListingPage{}, fmt.Errorf("store listing page %d: %w", page, err)
	}

	return withPosition(listing, ticker, page, window), nil
}

// Detail resolves the metadata of one report. A missing metadata marker or
// attachment URL is reported as KindNotFound.
func (r *Resolver) Detail(ctx context.Context, reportID string) (domain.ReportDetail, error) {
	key := domain.DetailKey(reportID)

	if !r.refresh.detail(reportID) {
		raw, ok, err := r.cached(ctx, r.details, key)
		if err != nil {
			return domain.ReportDetail{}, err
		}
		if ok {
			detail, parseErr := r.parser.Parse(ctx, raw, reportID)
			if parseErr == nil {
				r.debug("detail cache hit", "report_id", reportID)
				return requireAttachment(detail, reportID)
			}
			if domain.IsKind(parseErr, domain.KindIOFailure) {
				return domain.ReportDetail{}, parseErr
			}
			r.warn("cached detail unreadable, refetching", "report_id", reportID, "error", parseErr)
		}
	}

	raw, err := r.remote.FetchDetail(ctx, reportID)
	if err != nil {
		return domain.ReportDetail{}, fmt.Errorf("fetch detail %s: %w", reportID, err)
	}
	if err := r.details.Put(ctx, key, raw); err != nil {
		return domain.ReportDetail{}, fmt.Errorf("store detail %s: %w", reportID, err)
	}

	detail, err := r.parser.Parse(ctx, raw, reportID)
	if err != nil {
		return domain.ReportDetail{}, err
	}
	return requireAttachment(detail, reportID)
}

// cached reports ok=false on a miss. Read failures other than cancellation
// are logged and treated as misses.
func (r *Resolver) cached(ctx context.Context, store ports.PayloadStore, key string) ([]byte, bool, error) {
	raw, err := store.Get(ctx, key)
	switch {
	case err == nil:
		return raw, true, nil
	case errors.Is(err, ports.ErrMiss):
		return nil, false, nil
	case ctx.Err() != nil:
		return nil, false, ctx.Err()
	default:
		r.warn("cache read failed", "key", key, "error", err)
		return nil, false, nil
	}
}

func decodeListing(raw []byte) (domain.ListingPage, error) {
	var listing domain.ListingPage
	if err := json.Unmarshal(raw, &listing); err != nil {
		return domain.ListingPage{}, err
	}
	return listing, nil
}

func withPosition(listing domain.ListingPage, ticker string, page int, window domain.DateWindow) domain.ListingPage {
	listing.Ticker = ticker
	listing.Page = page
	listing.Window = window
	return listing
}

func requireAttachment(detail *domain.ReportDetail, reportID string) (domain.ReportDetail, error) {
	if detail == nil {
		return domain.ReportDetail{}, domain.NewError("resolve detail", domain.KindNotFound,
			fmt.Errorf("report %s: no metadata in detail page", reportID))
	}
	if detail.AttachURL == "" {
		return domain.ReportDetail{}, domain.NewError("resolve detail", domain.KindNotFound,
			fmt.Errorf("report %s: no attachment url", reportID))
	}
	return *detail, nil
}

func (r *Resolver) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Resolver) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
