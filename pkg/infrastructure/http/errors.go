// Package httputil provides HTTP error handling utilities shared by the
// upstream clients.
package httputil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// MaxErrorBodySize is the maximum size of error body to include in error messages
const MaxErrorBodySize = 500

// HTTPError represents a non-2xx upstream response with its status and body
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
	URL        string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s (status %d): %s", e.Status, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s (status %d)", e.Status, e.StatusCode)
}

// IsSuccess reports whether the status code is in the 2xx range.
func IsSuccess(statusCode int) bool {
	return statusCode/100 == 2
}

// truncate truncates a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateBody shortens an error body to MaxErrorBodySize.
func TruncateBody(s string) string {
	return truncate(s, MaxErrorBodySize)
}

// ParseErrorResponse returns nil for 2xx responses. For anything else it
// reads the body into a *HTTPError and re-wraps resp.Body so the caller can
// still inspect the full, untruncated payload.
func ParseErrorResponse(resp *http.Response) error {
	if IsSuccess(resp.StatusCode) {
		return nil
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	if err != nil {
		bodyBytes = nil
	}
	return NewHTTPError(resp.StatusCode, bodyBytes, resp.Request)
}

// NewHTTPError builds the error for an unwanted answer whose body the caller
// has already read. req may be nil; its query string is never kept.
func NewHTTPError(statusCode int, body []byte, req *http.Request) *HTTPError {
	httpErr := &HTTPError{
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		Body:       TruncateBody(string(body)),
	}
	if req != nil && req.URL != nil {
		httpErr.URL = redactedURL(req)
	}
	return httpErr
}

// redactedURL drops the query string, which may carry tokens or codes.
func redactedURL(req *http.Request) string {
	u := *req.URL
	u.RawQuery = ""
	return u.String()
}
