package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/flowtrack/server/pkg/bridge"
	"github.com/flowtrack/server/pkg/engine"
	"github.com/flowtrack/server/pkg/infrastructure/oauth"
	"github.com/flowtrack/server/pkg/infrastructure/sentry"
	"github.com/flowtrack/server/pkg/integrations/cyclinganalytics"
	"github.com/flowtrack/server/pkg/integrations/strava"
)

const (
	DefaultRedirectURI = "http://localhost:8080/exchange_token"
	DefaultHTTPTimeout = 30 * time.Second
)

// Config holds the credentials and endpoints every component is built from.
type Config struct {
	ClientID       string
	ClientSecret   string
	RedirectURI    string
	AnalyticsToken string

	StravaBaseURL    string
	AnalyticsBaseURL string

	TimeZone    *time.Location
	HTTPTimeout time.Duration

	SentryDSN   string
	Environment string
}

// Service holds initialized dependencies
type Service struct {
	Config *Config
	Logger *slog.Logger
	Auth   *oauth.Lifecycle
	Strava *strava.Client
	Engine *engine.Engine
}

// LoadConfig reads configuration from environment variables. A .env file in
// the working directory, if present, seeds variables that are not already set.
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		ClientID:         os.Getenv("STRAVA_CLIENT_ID"),
		ClientSecret:     os.Getenv("STRAVA_CLIENT_SECRET"),
		RedirectURI:      getEnv("STRAVA_REDIRECT_URI", DefaultRedirectURI),
		AnalyticsToken:   os.Getenv("CYCLINGANALYTICS_TOKEN"),
		StravaBaseURL:    getEnv("STRAVA_BASE_URL", strava.DefaultBaseURL),
		AnalyticsBaseURL: getEnv("CYCLINGANALYTICS_BASE_URL", cyclinganalytics.DefaultBaseURL),
		TimeZone:         time.Local,
		HTTPTimeout:      DefaultHTTPTimeout,
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		Environment:      getEnv("APP_ENV", "development"),
	}

	if tz := os.Getenv("FLOWTRACK_TIMEZONE"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			cfg.TimeZone = loc
		} else {
			slog.Warn("Ignoring invalid FLOWTRACK_TIMEZONE", "value", tz, "error", err)
		}
	}
	if raw := os.Getenv("HTTP_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.HTTPTimeout = d
		} else {
			slog.Warn("Ignoring invalid HTTP_TIMEOUT", "value", raw)
		}
	}

	return cfg
}

// Validate reports missing Strava credentials. A missing analytics token is
// not an error: the bridge is simply disabled.
func (c *Config) Validate() error {
	var errs []error
	if c.ClientID == "" {
		errs = append(errs, errors.New("STRAVA_CLIENT_ID is required"))
	}
	if c.ClientSecret == "" {
		errs = append(errs, errors.New("STRAVA_CLIENT_SECRET is required"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// credentialKeys are attribute keys whose values never reach the log.
var credentialKeys = map[string]bool{
	"access_token":    true,
	"refresh_token":   true,
	"token":           true,
	"client_secret":   true,
	"authorization":   true,
	"analytics_token": true,
}

// GetSlogHandlerOptions returns handler options for Cloud Logging: message
// and severity keys, and credential attributes replaced by [REDACTED].
func GetSlogHandlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch {
			case len(groups) == 0 && a.Key == slog.MessageKey:
				return slog.Attr{Key: "message", Value: a.Value}
			case len(groups) == 0 && a.Key == slog.LevelKey:
				return slog.Attr{Key: "severity", Value: a.Value}
			case credentialKeys[strings.ToLower(a.Key)]:
				return slog.String(a.Key, "[REDACTED]")
			}
			return a
		},
	}
}

// ComponentHandler wraps a slog.Handler to prepend [component] to the message
type ComponentHandler struct {
	slog.Handler
	component string
}

// WithGroup implements slog.Handler
func (h *ComponentHandler) WithGroup(name string) slog.Handler {
	return &ComponentHandler{
		Handler:   h.Handler.WithGroup(name),
		component: h.component,
	}
}

// WithAttrs implements slog.Handler
func (h *ComponentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	comp := h.component
	for _, a := range attrs {
		if a.Key == "component" {
			comp = a.Value.String()
		}
	}
	return &ComponentHandler{
		Handler:   h.Handler.WithAttrs(attrs),
		component: comp,
	}
}

// Handle implements slog.Handler
func (h *ComponentHandler) Handle(ctx context.Context, r slog.Record) error {
	comp := h.component
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			comp = a.Value.String()
			return false
		}
		return true
	})

	if comp != "" {
		prefixed := slog.NewRecord(r.Time, r.Level, fmt.Sprintf("[%s] %s", comp, r.Message), r.PC)
		r.Attrs(func(a slog.Attr) bool {
			prefixed.AddAttrs(a)
			return true
		})
		r = prefixed
	}

	return h.Handler.Handle(ctx, r)
}

// ParseLevel maps LOG_LEVEL style strings onto slog levels, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a configured logger instance
func NewLogger(serviceName string) *slog.Logger {
	opts := GetSlogHandlerOptions(ParseLevel(os.Getenv("LOG_LEVEL")))
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(&ComponentHandler{Handler: handler}).With("service", serviceName)
}

// NewService wires the token lifecycle, the Strava client and, when an
// analytics token is configured, the Cycling Analytics bridge.
func NewService(ctx context.Context, cfg *Config, logger *slog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := sentry.Init(sentry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		ServerName:  "flowtrack",
	}, logger); err != nil {
		// Error tracking is optional; keep going without it.
		logger.Warn("Continuing without Sentry", "error", err)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	auth := oauth.NewLifecycle(oauth.Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     strings.TrimRight(cfg.StravaBaseURL, "/") + "/oauth/token",
	}, httpClient)

	stravaClient := strava.NewClient(strava.Options{
		BaseURL:    cfg.StravaBaseURL,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	var analyzer engine.Analyzer
	if cfg.AnalyticsToken != "" {
		caClient := cyclinganalytics.NewClient(cfg.AnalyticsToken, cyclinganalytics.Options{
			BaseURL:    cfg.AnalyticsBaseURL,
			HTTPClient: httpClient,
		})
		analyzer = bridge.New(caClient, logger, sentry.NewReporter(logger))
	} else {
		logger.Info("CYCLINGANALYTICS_TOKEN not set - analysis disabled")
	}

	eng := engine.New(stravaClient, analyzer, engine.Options{
		Location: cfg.TimeZone,
		Logger:   logger,
	})

	logger.Info("Service initialized", "environment", cfg.Environment, "analysis_enabled", analyzer != nil)

	return &Service{
		Config: cfg,
		Logger: logger,
		Auth:   auth,
		Strava: stravaClient,
		Engine: eng,
	}, nil
}
