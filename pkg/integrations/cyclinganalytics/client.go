package cyclinganalytics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	httputil "github.com/flowtrack/server/pkg/infrastructure/http"
	"github.com/flowtrack/server/pkg/observability"
)

const (
	DefaultBaseURL = "https://www.cyclinganalytics.com/api"

	// maxResponseSize bounds how much of a response body is buffered.
	maxResponseSize = 8 << 20
)

// Options configure a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client is an API client for Cycling Analytics. It authenticates with a
// single static bearer token.
type Client struct {
	token       string
	baseURL     string
	client      *http.Client
	newBoundary func() string
}

// NewClient creates a new Cycling Analytics API client
func NewClient(token string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		token:   token,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  opts.HTTPClient,
		newBoundary: func() string {
			return "---Bound" + uuid.NewString()
		},
	}
}

// Upload submits a CSV ride file as "{name}.csv" to POST /me/rides. Transport
// failures are returned as errors; every HTTP answer becomes an UploadOutcome.
func (c *Client) Upload(ctx context.Context, name string, csv []byte) (*UploadOutcome, error) {
	boundary := c.newBoundary()
	body := buildMultipartBody(boundary, name, csv)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/me/rides", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)

	status, respBody, err := c.do(req, "upload_ride")
	if err != nil {
		return nil, err
	}
	return classifyUpload(status, respBody), nil
}

// GetRide fetches an existing ride by id. Anything but 200 is an error.
func (c *Client) GetRide(ctx context.Context, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ride/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req, "get_ride")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, httputil.NewHTTPError(status, body, req)
	}
	return body, nil
}

func (c *Client) do(req *http.Request, op string) (int, []byte, error) {
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		observability.RecordUpstreamCall("cyclinganalytics", op, 0, time.Since(start))
		return 0, nil, fmt.Errorf("cyclinganalytics %s: %w", op, err)
	}
	defer resp.Body.Close()
	observability.RecordUpstreamCall("cyclinganalytics", op, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("cyclinganalytics %s: read body: %w", op, err)
	}
	return resp.StatusCode, body, nil
}
