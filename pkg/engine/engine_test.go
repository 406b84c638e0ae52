package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowtrack/server/pkg/bridge"
	"github.com/flowtrack/server/pkg/domain/activity"
	"github.com/flowtrack/server/pkg/domain/streams"
	"github.com/flowtrack/server/pkg/integrations/cyclinganalytics"
	"github.com/flowtrack/server/pkg/integrations/strava"
	"github.com/flowtrack/server/pkg/testing/mocks"
)

const streamsJSON = `{
	"time": {"data": [0, 1, 2, 3, 4]},
	"watts": {"data": [150, 160, 170]},
	"heartrate": {"data": [120, 121, 122, 123, 124]}
}`

func detailStrava() *mocks.MockStrava {
	return &mocks.MockStrava{
		FetchOneFunc: func(ctx context.Context, token string, id int64) (*strava.ActivitySummary, error) {
			return &strava.ActivitySummary{ID: id, Name: "Tempo", Type: "Ride"}, nil
		},
		FetchStreamsFunc: func(ctx context.Context, token string, id int64, keys []string, keyByType bool) (json.RawMessage, error) {
			return json.RawMessage(streamsJSON), nil
		},
	}
}

func TestGetActivityDetail(t *testing.T) {
	// Setup
	fetcher := detailStrava()
	var gotKeys []string
	var gotKeyByType bool
	fetcher.FetchStreamsFunc = func(ctx context.Context, token string, id int64, keys []string, keyByType bool) (json.RawMessage, error) {
		gotKeys, gotKeyByType = keys, keyByType
		return json.RawMessage(streamsJSON), nil
	}
	load := 55.0
	analyzer := &mocks.MockAnalyzer{
		SafeFunc: func(ctx context.Context, id int64, table streams.ActivityTable) *cyclinganalytics.AnalysisResult {
			assert.Equal(t, int64(42), id)
			assert.Equal(t, 5, table.Len())
			return &cyclinganalytics.AnalysisResult{Load: &load}
		},
	}
	eng := New(fetcher, analyzer, Options{})

	// Exec
	detail, err := eng.GetActivityDetail(context.Background(), "tok", "42")

	// Verify
	require.NoError(t, err)
	assert.Equal(t, int64(42), detail.Summary.ID)
	require.NotNil(t, detail.Table)
	assert.Equal(t, 5, detail.Table.Len())
	assert.Equal(t, 0, detail.Table.Rows[4].Power)
	require.NotNil(t, detail.Analysis)
	assert.Equal(t, 55.0, *detail.Analysis.Load)
	assert.Equal(t, []string{"time", "watts", "heartrate", "cadence", "altitude", "velocity_smooth"}, gotKeys)
	assert.True(t, gotKeyByType)
}

func TestGetActivityDetail_BadID(t *testing.T) {
	eng := New(&mocks.MockStrava{}, nil, Options{})

	for _, raw := range []string{"", "abc", "12.5", "-3", "0", "99999999999999999999"} {
		_, err := eng.GetActivityDetail(context.Background(), "tok", raw)
		var bad *BadRequestError
		assert.True(t, errors.As(err, &bad), "id %q: expected BadRequestError, got %v", raw, err)
	}
}

func TestGetActivityDetail_NoStreams(t *testing.T) {
	fetcher := detailStrava()
	fetcher.FetchStreamsFunc = func(ctx context.Context, token string, id int64, keys []string, keyByType bool) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	}
	analyzer := &mocks.MockAnalyzer{}

	detail, err := New(fetcher, analyzer, Options{}).GetActivityDetail(context.Background(), "tok", "7")
	require.NoError(t, err)
	assert.NotNil(t, detail.Summary)
	assert.Nil(t, detail.Table)
	assert.Nil(t, detail.Analysis)
	assert.Zero(t, analyzer.Calls)
}

func TestGetActivityDetail_WithoutAnalyzer(t *testing.T) {
	detail, err := New(detailStrava(), nil, Options{}).GetActivityDetail(context.Background(), "tok", "7")
	require.NoError(t, err)
	assert.NotNil(t, detail.Table)
	assert.Nil(t, detail.Analysis)
}

func TestGetActivityDetail_FetchFailureCancelsSibling(t *testing.T) {
	upErr := &strava.UpstreamError{Op: "get_activity", StatusCode: http.StatusNotFound}
	var streamsCancelled atomic.Bool

	fetcher := &mocks.MockStrava{
		FetchOneFunc: func(ctx context.Context, token string, id int64) (*strava.ActivitySummary, error) {
			return nil, upErr
		},
		FetchStreamsFunc: func(ctx context.Context, token string, id int64, keys []string, keyByType bool) (json.RawMessage, error) {
			select {
			case <-ctx.Done():
				streamsCancelled.Store(true)
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return json.RawMessage(streamsJSON), nil
			}
		},
	}

	_, err := New(fetcher, nil, Options{}).GetActivityDetail(context.Background(), "tok", "1")

	var got *strava.UpstreamError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, http.StatusNotFound, got.StatusCode)
	assert.True(t, streamsCancelled.Load(), "streams fetch should observe cancellation")
}

func TestListActivities_UsesEngineZone(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	var after *int64
	fetcher := &mocks.MockStrava{
		FetchPageFunc: func(ctx context.Context, token string, perPage, page int, b, a *int64) ([]strava.ActivitySummary, error) {
			after = a
			return nil, nil
		},
	}
	eng := New(fetcher, nil, Options{Location: loc})

	q := eng.ParseQuery(map[string]string{"date_from": "2024-01-01"})
	page, err := eng.ListActivities(context.Background(), "tok", q)

	require.NoError(t, err)
	assert.True(t, page.Exhausted)
	require.NotNil(t, after)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Unix(), *after)
	assert.Equal(t, loc, eng.Location())
}

// TestGetActivityDetail_AnalyticsDown wires the real clients against a fake
// Strava and a Cycling Analytics address that refuses connections.
func TestGetActivityDetail_AnalyticsDown(t *testing.T) {
	stravaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/activities/9":
			w.Write([]byte(`{"id": 9, "name": "Evening Ride", "type": "Ride"}`))
		case "/api/v3/activities/9/streams":
			w.Write([]byte(streamsJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	defer stravaSrv.Close()

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	stravaClient := strava.NewClient(strava.Options{BaseURL: stravaSrv.URL, HTTPClient: stravaSrv.Client()})
	caClient := cyclinganalytics.NewClient("ca", cyclinganalytics.Options{BaseURL: deadURL})
	reporter := &mocks.MockReporter{}

	eng := New(stravaClient, bridge.New(caClient, nil, reporter), Options{})

	detail, err := eng.GetActivityDetail(context.Background(), "tok", "9")
	require.NoError(t, err)
	assert.Equal(t, "Evening Ride", detail.Summary.Name)
	require.NotNil(t, detail.Table)
	assert.Equal(t, 5, detail.Table.Len())
	assert.Nil(t, detail.Analysis)
	assert.Equal(t, []string{bridge.StageSubmit}, reporter.Reports)
}

func TestParseActivityID(t *testing.T) {
	id, err := ParseActivityID(" 12345 ")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), id)
}

var _ activity.PageFetcher = (*mocks.MockStrava)(nil)
var _ Fetcher = (*strava.Client)(nil)
var _ Analyzer = (*bridge.Bridge)(nil)
