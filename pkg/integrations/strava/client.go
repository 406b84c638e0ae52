package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	httputil "github.com/flowtrack/server/pkg/infrastructure/http"
	"github.com/flowtrack/server/pkg/infrastructure/oauth"
	"github.com/flowtrack/server/pkg/observability"
)

const (
	DefaultBaseURL = "https://www.strava.com"
	apiPrefix      = "/api/v3"
	// MaxPerPage is Strava's upper bound for per_page.
	MaxPerPage = 200
)

// UpstreamError is a non-2xx answer from Strava. It fails whatever operation
// depended on it; status and body are kept for diagnostics.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
	URL        string
}

func (e *UpstreamError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("strava %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("strava %s: status %d", e.Op, e.StatusCode)
}

// Options configure a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a Strava API v3 client. Access tokens are supplied per call, so
// one Client serves every session.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a new Strava API client
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  oauth.NewHTTPClient(opts.HTTPClient),
		logger:  opts.Logger.With("component", "strava"),
	}
}

// get performs an authenticated GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, op, accessToken, path string, query url.Values) ([]byte, error) {
	if accessToken == "" {
		return nil, errors.New("strava: missing access token")
	}

	u := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(oauth.ContextWithToken(ctx, accessToken), http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		observability.RecordUpstreamCall("strava", op, 0, time.Since(start))
		return nil, fmt.Errorf("strava %s: %w", op, err)
	}
	defer resp.Body.Close()
	observability.RecordUpstreamCall("strava", op, resp.StatusCode, time.Since(start))

	c.logger.Debug("Strava call",
		"op", op,
		"status", resp.StatusCode,
		"rate_limit", resp.Header.Get("X-RateLimit-Limit"),
		"rate_usage", resp.Header.Get("X-RateLimit-Usage"),
	)

	if err := httputil.ParseErrorResponse(resp); err != nil {
		var httpErr *httputil.HTTPError
		if errors.As(err, &httpErr) {
			c.logger.Warn("Strava call failed", "op", op, "status", httpErr.StatusCode, "body", httpErr.Body)
			return nil, &UpstreamError{Op: op, StatusCode: httpErr.StatusCode, Body: httpErr.Body, URL: httpErr.URL}
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("strava %s: read body: %w", op, err)
	}
	return body, nil
}

// FetchPage lists one page of the athlete's activities. before and after are
// optional UNIX-second bounds applied by Strava. A page shorter than perPage
// means there is nothing further; Strava reports no total count.
func (c *Client) FetchPage(ctx context.Context, accessToken string, perPage, page int, before, after *int64) ([]ActivitySummary, error) {
	if perPage <= 0 || perPage > MaxPerPage {
		return nil, fmt.Errorf("strava: per_page %d out of range 1..%d", perPage, MaxPerPage)
	}
	if page < 1 {
		return nil, fmt.Errorf("strava: page %d must be >= 1", page)
	}

	q := url.Values{}
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	if before != nil {
		q.Set("before", strconv.FormatInt(*before, 10))
	}
	if after != nil {
		q.Set("after", strconv.FormatInt(*after, 10))
	}

	body, err := c.get(ctx, "list_activities", accessToken, "/athlete/activities", q)
	if err != nil {
		return nil, err
	}

	var activities []ActivitySummary
	if err := json.Unmarshal(body, &activities); err != nil {
		return nil, fmt.Errorf("decode activities: %w", err)
	}
	return activities, nil
}

// FetchOne retrieves a single activity with full detail.
func (c *Client) FetchOne(ctx context.Context, accessToken string, activityID int64) (*ActivitySummary, error) {
	body, err := c.get(ctx, "get_activity", accessToken, fmt.Sprintf("/activities/%d", activityID), nil)
	if err != nil {
		return nil, err
	}

	var activity ActivitySummary
	if err := json.Unmarshal(body, &activity); err != nil {
		return nil, fmt.Errorf("decode activity: %w", err)
	}
	return &activity, nil
}

// FetchStreams returns the raw streams JSON for an activity. Interpreting it
// is the table converter's job.
func (c *Client) FetchStreams(ctx context.Context, accessToken string, activityID int64, keys []string, keyByType bool) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("keys", strings.Join(keys, ","))
	q.Set("key_by_type", strconv.FormatBool(keyByType))

	body, err := c.get(ctx, "get_streams", accessToken, fmt.Sprintf("/activities/%d/streams", activityID), q)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, errors.New("strava get_streams: response is not valid JSON")
	}
	return json.RawMessage(body), nil
}
