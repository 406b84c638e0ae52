// Package bridge submits an activity's stream table to Cycling Analytics and
// returns the normalized analysis, recovering the existing ride when the
// upload is rejected as a duplicate.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowtrack/server/pkg/domain/streams"
	httputil "github.com/flowtrack/server/pkg/infrastructure/http"
	"github.com/flowtrack/server/pkg/integrations/cyclinganalytics"
	"github.com/flowtrack/server/pkg/observability"
)

// Stages at which an analysis can fail.
const (
	StageConvert       = "convert"
	StageSubmit        = "submit"
	StageFetchExisting = "fetch_existing"
	StageNormalize     = "normalize"
)

// AnalyticsError describes where the analysis stopped. StatusCode and Body
// are set when the service answered.
type AnalyticsError struct {
	Stage      string
	StatusCode int
	Body       string
	Err        error
}

func (e *AnalyticsError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("analytics %s: %v", e.Stage, e.Err)
	case e.Body != "":
		return fmt.Sprintf("analytics %s: status %d: %s", e.Stage, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("analytics %s: status %d", e.Stage, e.StatusCode)
	}
}

func (e *AnalyticsError) Unwrap() error {
	return e.Err
}

// Uploader is the Cycling Analytics surface the bridge drives.
type Uploader interface {
	Upload(ctx context.Context, name string, csv []byte) (*cyclinganalytics.UploadOutcome, error)
	GetRide(ctx context.Context, id string) ([]byte, error)
}

// Reporter receives failures that Safe absorbs.
type Reporter interface {
	ReportAnalysisFailure(err error, activityID int64, stage string)
}

// Bridge runs the submit / recover-duplicate / normalize sequence.
type Bridge struct {
	uploader Uploader
	logger   *slog.Logger
	reporter Reporter
}

// New creates a Bridge. logger and reporter may be nil.
func New(uploader Uploader, logger *slog.Logger, reporter Reporter) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		uploader: uploader,
		logger:   logger.With("component", "bridge"),
		reporter: reporter,
	}
}

// RideName is the upload file name (without extension) for an activity.
func RideName(activityID int64) string {
	return fmt.Sprintf("strava_%d", activityID)
}

// Analyze uploads table for activityID and returns the analysis. Every
// failure is an *AnalyticsError.
func (b *Bridge) Analyze(ctx context.Context, activityID int64, table streams.ActivityTable) (*cyclinganalytics.AnalysisResult, error) {
	if table.Len() == 0 {
		return nil, &AnalyticsError{Stage: StageConvert, Err: streams.ErrEmptyTable}
	}

	outcome, err := b.uploader.Upload(ctx, RideName(activityID), table.CSV())
	if err != nil {
		return nil, &AnalyticsError{Stage: StageSubmit, Err: err}
	}

	var raw []byte
	switch outcome.Kind {
	case cyclinganalytics.OutcomeSuccess:
		raw = outcome.Body
	case cyclinganalytics.OutcomeDuplicate:
		b.logger.Info("Ride already uploaded, fetching existing analysis",
			"activity_id", activityID, "ride_id", outcome.ExistingID)
		raw, err = b.uploader.GetRide(ctx, outcome.ExistingID)
		if err != nil {
			return nil, fetchError(err)
		}
	default:
		return nil, &AnalyticsError{
			Stage:      StageSubmit,
			StatusCode: outcome.StatusCode,
			Body:       httputil.TruncateBody(string(outcome.Body)),
		}
	}

	result, err := cyclinganalytics.Normalize(raw)
	if err != nil {
		return nil, &AnalyticsError{Stage: StageNormalize, Err: err}
	}

	observability.RecordAnalysisOutcome(outcome.Kind.String())
	return result, nil
}

// Safe is Analyze with every error absorbed: failures are logged, reported
// and come back as nil.
func (b *Bridge) Safe(ctx context.Context, activityID int64, table streams.ActivityTable) *cyclinganalytics.AnalysisResult {
	result, err := b.Analyze(ctx, activityID, table)
	if err == nil {
		return result
	}

	stage := "unknown"
	var aErr *AnalyticsError
	if errors.As(err, &aErr) {
		stage = aErr.Stage
	}

	if errors.Is(err, streams.ErrEmptyTable) {
		observability.RecordAnalysisOutcome("skipped")
		b.logger.Debug("No streams to analyze", "activity_id", activityID)
		return nil
	}

	observability.RecordAnalysisOutcome("failure")
	b.logger.Warn("Analysis unavailable", "activity_id", activityID, "stage", stage, "error", err)
	if b.reporter != nil {
		b.reporter.ReportAnalysisFailure(err, activityID, stage)
	}
	return nil
}

func fetchError(err error) *AnalyticsError {
	aErr := &AnalyticsError{Stage: StageFetchExisting, Err: err}
	var httpErr *httputil.HTTPError
	if errors.As(err, &httpErr) {
		aErr.StatusCode = httpErr.StatusCode
		aErr.Body = httpErr.Body
	}
	return aErr
}
