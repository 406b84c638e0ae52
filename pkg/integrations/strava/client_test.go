package strava

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
}

func TestFetchPage(t *testing.T) {
	before, after := int64(1704153600), int64(1704067200)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/athlete/activities", r.URL.Path)
		assert.Equal(t, "Bearer acc", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, "50", q.Get("per_page"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "1704153600", q.Get("before"))
		assert.Equal(t, "1704067200", q.Get("after"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 1, "name": "Morning Ride", "type": "Ride", "sport_type": "Ride",
			 "start_date_local": "2024-01-01T07:30:00Z", "distance": 40123.4,
			 "moving_time": 5400, "elapsed_time": 6000, "average_watts": 182.5},
			{"id": 2, "name": "Lunch Run", "type": "Run", "sport_type": "Run",
			 "start_date_local": "2024-01-01T12:00:00Z", "distance": 5012.0,
			 "moving_time": 1500, "elapsed_time": 1550}
		]`))
	})

	got, err := c.FetchPage(context.Background(), "acc", 50, 2, &before, &after)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "Ride", got[0].Type)
	require.NotNil(t, got[0].AverageWatts)
	assert.InDelta(t, 182.5, *got[0].AverageWatts, 0.001)
	assert.Equal(t, time.Date(2024, 1, 1, 7, 30, 0, 0, time.UTC), got[0].StartDateLocal)
	assert.Nil(t, got[1].AverageWatts)
	require.NotNil(t, got[1].ElapsedTime)
	assert.Equal(t, 1550, *got[1].ElapsedTime)
}

func TestFetchPage_OmitsUnsetBounds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.False(t, q.Has("before"))
		assert.False(t, q.Has("after"))
		w.Write([]byte(`[]`))
	})

	got, err := c.FetchPage(context.Background(), "acc", 30, 1, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchPage_RejectsBadPaging(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:1"})

	_, err := c.FetchPage(context.Background(), "acc", 0, 1, nil, nil)
	assert.Error(t, err)
	_, err = c.FetchPage(context.Background(), "acc", MaxPerPage+1, 1, nil, nil)
	assert.Error(t, err)
	_, err = c.FetchPage(context.Background(), "acc", 10, 0, nil, nil)
	assert.Error(t, err)
}

func TestFetchPage_UpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"Rate Limit Exceeded"}`))
	})

	_, err := c.FetchPage(context.Background(), "acc", 30, 1, nil, nil)

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr), "expected *UpstreamError, got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, upErr.StatusCode)
	assert.Contains(t, upErr.Body, "Rate Limit Exceeded")
	assert.Equal(t, "list_activities", upErr.Op)
}

func TestFetchOne(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/activities/123456789", r.URL.Path)
		w.Write([]byte(`{"id": 123456789, "name": "Gravel", "type": "Ride", "sport_type": "GravelRide",
			"device_watts": true, "weighted_average_watts": 210, "gear_id": "b123"}`))
	})

	got, err := c.FetchOne(context.Background(), "acc", 123456789)
	require.NoError(t, err)
	assert.Equal(t, "GravelRide", got.SportType)
	require.NotNil(t, got.WeightedAverageWatts)
	assert.Equal(t, 210, *got.WeightedAverageWatts)
	require.NotNil(t, got.DeviceWatts)
	assert.True(t, *got.DeviceWatts)
}

func TestFetchOne_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Record Not Found"}`, http.StatusNotFound)
	})

	_, err := c.FetchOne(context.Background(), "acc", 1)
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusNotFound, upErr.StatusCode)
}

func TestFetchStreams_ReturnsRawJSON(t *testing.T) {
	raw := `{"time":{"data":[0,1,2],"series_type":"time","original_size":3,"resolution":"high"}}`

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/activities/9/streams", r.URL.Path)
		assert.Equal(t, "time,watts,heartrate", r.URL.Query().Get("keys"))
		assert.Equal(t, "true", r.URL.Query().Get("key_by_type"))
		w.Write([]byte(raw))
	})

	got, err := c.FetchStreams(context.Background(), "acc", 9, []string{"time", "watts", "heartrate"}, true)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(got))
}

func TestFetch_MissingToken(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	_, err := c.FetchOne(context.Background(), "", 1)
	assert.Error(t, err)
}

func TestFetch_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchPage(ctx, "acc", 30, 1, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
