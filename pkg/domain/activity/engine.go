package activity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowtrack/server/pkg/integrations/strava"
	"github.com/flowtrack/server/pkg/observability"
)

const (
	// MaxUpstreamPages caps how many Strava pages one request may pull.
	MaxUpstreamPages = 20
	// MinUpstreamPerPage is the smallest upstream page size requested, so a
	// selective filter does not cost one round trip per handful of matches.
	MinUpstreamPerPage = 50
)

// PageFetcher lists one page of the athlete's activities.
type PageFetcher interface {
	FetchPage(ctx context.Context, accessToken string, perPage, page int, before, after *int64) ([]strava.ActivitySummary, error)
}

// Page is one page of filtered, sorted activities.
type Page struct {
	Items   []strava.ActivitySummary `json:"items"`
	Page    int                      `json:"page"`
	PerPage int                      `json:"per_page"`
	// Exhausted is true when Strava ran out of activities.
	Exhausted bool `json:"exhausted"`
	// UpstreamPages is how many Strava pages were fetched.
	UpstreamPages int `json:"upstream_pages"`
}

// Engine answers filtered activity queries on top of Strava's date-only
// filtering, pulling as many upstream pages as the requested page needs.
type Engine struct {
	fetcher PageFetcher
	logger  *slog.Logger
}

func NewEngine(fetcher PageFetcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{fetcher: fetcher, logger: logger.With("component", "query")}
}

// Query returns page q.Page of the activities matching q. The page holds
// q.PerPage items unless Strava is exhausted or MaxUpstreamPages is reached
// first. Upstream errors are returned as is, wrapped.
func (e *Engine) Query(ctx context.Context, accessToken string, q QuerySpec) (*Page, error) {
	q = q.Normalized()
	preds := Predicates(q)
	before, after := q.Bounds()

	upstreamPerPage := max(q.PerPage, MinUpstreamPerPage)
	if upstreamPerPage > strava.MaxPerPage {
		upstreamPerPage = strava.MaxPerPage
	}
	need := q.Page * q.PerPage

	var matches []strava.ActivitySummary
	exhausted := false
	pages := 0

	for len(matches) < need {
		if pages >= MaxUpstreamPages {
			e.logger.Warn("Upstream page cap reached",
				"max_pages", MaxUpstreamPages, "matches", len(matches), "needed", need)
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := e.fetcher.FetchPage(ctx, accessToken, upstreamPerPage, pages+1, before, after)
		if err != nil {
			return nil, fmt.Errorf("fetch activities page %d: %w", pages+1, err)
		}
		pages++

		for _, a := range batch {
			if Match(a, preds) {
				matches = append(matches, a)
			}
		}
		if len(batch) < upstreamPerPage {
			exhausted = true
			break
		}
	}

	observability.RecordQueryPages(pages)
	e.logger.Debug("Activity query complete",
		"upstream_pages", pages, "matches", len(matches), "exhausted", exhausted)

	Sort(matches, q.Sort)

	start := len(matches)
	if q.Page-1 <= len(matches)/q.PerPage {
		start = min((q.Page-1)*q.PerPage, len(matches))
	}
	end := min(start+q.PerPage, len(matches))

	items := make([]strava.ActivitySummary, end-start)
	copy(items, matches[start:end])

	return &Page{
		Items:         items,
		Page:          q.Page,
		PerPage:       q.PerPage,
		Exhausted:     exhausted,
		UpstreamPages: pages,
	}, nil
}
