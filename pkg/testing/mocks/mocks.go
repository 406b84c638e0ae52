package mocks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowtrack/server/pkg/domain/streams"
	"github.com/flowtrack/server/pkg/integrations/cyclinganalytics"
	"github.com/flowtrack/server/pkg/integrations/strava"
)

// --- Mock Strava ---
type MockStrava struct {
	FetchPageFunc    func(ctx context.Context, accessToken string, perPage, page int, before, after *int64) ([]strava.ActivitySummary, error)
	FetchOneFunc     func(ctx context.Context, accessToken string, activityID int64) (*strava.ActivitySummary, error)
	FetchStreamsFunc func(ctx context.Context, accessToken string, activityID int64, keys []string, keyByType bool) (json.RawMessage, error)
}

func (m *MockStrava) FetchPage(ctx context.Context, accessToken string, perPage, page int, before, after *int64) ([]strava.ActivitySummary, error) {
	if m.FetchPageFunc != nil {
		return m.FetchPageFunc(ctx, accessToken, perPage, page, before, after)
	}
	return nil, nil
}
func (m *MockStrava) FetchOne(ctx context.Context, accessToken string, activityID int64) (*strava.ActivitySummary, error) {
	if m.FetchOneFunc != nil {
		return m.FetchOneFunc(ctx, accessToken, activityID)
	}
	return nil, fmt.Errorf("activity %d not found", activityID)
}
func (m *MockStrava) FetchStreams(ctx context.Context, accessToken string, activityID int64, keys []string, keyByType bool) (json.RawMessage, error) {
	if m.FetchStreamsFunc != nil {
		return m.FetchStreamsFunc(ctx, accessToken, activityID, keys, keyByType)
	}
	return json.RawMessage(`{}`), nil
}

// --- Mock Analyzer ---
type MockAnalyzer struct {
	SafeFunc func(ctx context.Context, activityID int64, table streams.ActivityTable) *cyclinganalytics.AnalysisResult
	Calls    int
}

func (m *MockAnalyzer) Safe(ctx context.Context, activityID int64, table streams.ActivityTable) *cyclinganalytics.AnalysisResult {
	m.Calls++
	if m.SafeFunc != nil {
		return m.SafeFunc(ctx, activityID, table)
	}
	return nil
}

// --- Mock Uploader ---
type MockUploader struct {
	UploadFunc  func(ctx context.Context, name string, csv []byte) (*cyclinganalytics.UploadOutcome, error)
	GetRideFunc func(ctx context.Context, id string) ([]byte, error)
}

func (m *MockUploader) Upload(ctx context.Context, name string, csv []byte) (*cyclinganalytics.UploadOutcome, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, name, csv)
	}
	return &cyclinganalytics.UploadOutcome{Kind: cyclinganalytics.OutcomeSuccess, StatusCode: 201, Body: []byte(`{}`)}, nil
}
func (m *MockUploader) GetRide(ctx context.Context, id string) ([]byte, error) {
	if m.GetRideFunc != nil {
		return m.GetRideFunc(ctx, id)
	}
	return nil, fmt.Errorf("ride %s not found", id)
}

// --- Mock Reporter ---
type MockReporter struct {
	ReportFunc func(err error, activityID int64, stage string)
	Reports    []string
}

func (m *MockReporter) ReportAnalysisFailure(err error, activityID int64, stage string) {
	m.Reports = append(m.Reports, stage)
	if m.ReportFunc != nil {
		m.ReportFunc(err, activityID, stage)
	}
}
