// Package engine is the entry point for activity listing and activity
// detail. It composes the Strava fetcher, the query engine, the stream
// converter and, when configured, the analytics bridge.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flowtrack/server/pkg/domain/activity"
	"github.com/flowtrack/server/pkg/domain/streams"
	"github.com/flowtrack/server/pkg/integrations/cyclinganalytics"
	"github.com/flowtrack/server/pkg/integrations/strava"
)

// Fetcher is the Strava surface the engine needs.
type Fetcher interface {
	activity.PageFetcher
	FetchOne(ctx context.Context, accessToken string, activityID int64) (*strava.ActivitySummary, error)
	FetchStreams(ctx context.Context, accessToken string, activityID int64, keys []string, keyByType bool) (json.RawMessage, error)
}

// Analyzer produces an analysis for a stream table, or nil when none is
// available. It never fails the caller.
type Analyzer interface {
	Safe(ctx context.Context, activityID int64, table streams.ActivityTable) *cyclinganalytics.AnalysisResult
}

// BadRequestError is returned for caller input that cannot be used.
type BadRequestError struct {
	Field  string
	Value  string
	Reason string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Detail is one activity with its sample table and analysis. Table is nil
// when the activity has no time stream; Analysis is nil when the analytics
// service is not configured or could not produce one.
type Detail struct {
	Summary  *strava.ActivitySummary          `json:"summary"`
	Table    *streams.ActivityTable           `json:"table,omitempty"`
	Analysis *cyclinganalytics.AnalysisResult `json:"analysis,omitempty"`
}

type Options struct {
	// Location is the reference zone for date filters. Defaults to time.Local.
	Location *time.Location
	Logger   *slog.Logger
}

type Engine struct {
	fetcher  Fetcher
	query    *activity.Engine
	analyzer Analyzer
	loc      *time.Location
	logger   *slog.Logger
}

// New creates an Engine. analyzer may be nil, in which case Detail.Analysis
// is always nil.
func New(fetcher Fetcher, analyzer Analyzer, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		fetcher:  fetcher,
		query:    activity.NewEngine(fetcher, opts.Logger),
		analyzer: analyzer,
		loc:      opts.Location,
		logger:   opts.Logger.With("component", "engine"),
	}
}

// Location returns the reference zone used for date filters.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// ParseQuery builds a QuerySpec from raw parameters in the engine's zone.
func (e *Engine) ParseQuery(params map[string]string) activity.QuerySpec {
	return activity.ParseQuery(params, e.loc)
}

// ListActivities returns one filtered, sorted page of the athlete's
// activities.
func (e *Engine) ListActivities(ctx context.Context, accessToken string, q activity.QuerySpec) (*activity.Page, error) {
	return e.query.Query(ctx, accessToken, q)
}

// GetActivityDetail fetches the activity and its streams concurrently, builds
// the sample table and, if an analyzer is configured, attaches its analysis.
// A Strava failure on either fetch fails the call; analysis never does.
func (e *Engine) GetActivityDetail(ctx context.Context, accessToken, activityIDRaw string) (*Detail, error) {
	id, err := ParseActivityID(activityIDRaw)
	if err != nil {
		return nil, err
	}

	var (
		summary *strava.ActivitySummary
		raw     json.RawMessage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := e.fetcher.FetchOne(gctx, accessToken, id)
		if err != nil {
			return fmt.Errorf("fetch activity %d: %w", id, err)
		}
		summary = s
		return nil
	})
	g.Go(func() error {
		r, err := e.fetcher.FetchStreams(gctx, accessToken, id, strava.AnalysisStreamKeys, true)
		if err != nil {
			return fmt.Errorf("fetch streams %d: %w", id, err)
		}
		raw = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	detail := &Detail{Summary: summary}

	set, err := streams.DecodeStreamSet(raw)
	if err != nil {
		return nil, fmt.Errorf("decode streams %d: %w", id, err)
	}
	table, err := streams.Convert(set)
	switch {
	case errors.Is(err, streams.ErrEmptyTable):
		e.logger.Info("Activity has no time stream", "activity_id", id)
		return detail, nil
	case err != nil:
		return nil, fmt.Errorf("convert streams %d: %w", id, err)
	}
	detail.Table = &table

	if e.analyzer != nil {
		detail.Analysis = e.analyzer.Safe(ctx, id, table)
	}
	return detail, nil
}

// ParseActivityID validates a caller-supplied Strava activity id.
func ParseActivityID(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, &BadRequestError{Field: "activity id", Value: raw, Reason: "empty"}
	}
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, &BadRequestError{Field: "activity id", Value: raw, Reason: "not an integer"}
	}
	if id <= 0 {
		return 0, &BadRequestError{Field: "activity id", Value: raw, Reason: "must be positive"}
	}
	return id, nil
}
