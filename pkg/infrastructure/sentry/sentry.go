package sentry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

type Config struct {
	DSN              string
	Environment      string
	Release          string
	ServerName       string
	TracesSampleRate float64
}

// Init initializes the Sentry client. An empty DSN disables error tracking.
func Init(cfg Config, logger *slog.Logger) error {
	if cfg.DSN == "" {
		if logger != nil {
			logger.Warn("Sentry DSN not configured - error tracking disabled")
		}
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       cfg.ServerName,
		TracesSampleRate: cfg.TracesSampleRate,
		BeforeSend:       scrub,
	})
	if err != nil {
		if logger != nil {
			logger.Error("Failed to initialize Sentry", "error", err)
		}
		return fmt.Errorf("sentry init: %w", err)
	}

	if logger != nil {
		logger.Info("Sentry initialized", "environment", cfg.Environment, "release", cfg.Release)
	}
	return nil
}

// scrub drops credentials before an event leaves the process.
func scrub(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		if event.Request.Headers != nil {
			delete(event.Request.Headers, "Authorization")
			delete(event.Request.Headers, "Cookie")
		}
		event.Request.QueryString = ""
	}
	return event
}

// Reporter sends failures that were absorbed locally (and so never reach a
// caller) to Sentry, tagged with the activity and the stage that failed.
type Reporter struct {
	hub    *sentry.Hub
	logger *slog.Logger
}

// NewReporter reports through the current hub. With no client bound (DSN
// unset) captures are no-ops.
func NewReporter(logger *slog.Logger) *Reporter {
	return &Reporter{hub: sentry.CurrentHub(), logger: logger}
}

// ReportAnalysisFailure implements bridge.Reporter.
func (r *Reporter) ReportAnalysisFailure(err error, activityID int64, stage string) {
	if err == nil || r == nil || r.hub == nil {
		return
	}

	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "analytics_bridge")
		scope.SetTag("stage", stage)
		scope.SetContext("activity", sentry.Context{"id": activityID})
		r.hub.CaptureException(err)
	})

	if r.logger != nil {
		r.logger.Debug("Analysis failure captured in Sentry", "activity_id", activityID, "stage", stage)
	}
}

// Flush waits for queued events. Call it before the process exits.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
