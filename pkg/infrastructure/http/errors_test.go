package httputil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseErrorResponse_Success(t *testing.T) {
	for _, code := range []int{200, 201, 204} {
		resp := &http.Response{StatusCode: code, Body: http.NoBody}
		if err := ParseErrorResponse(resp); err != nil {
			t.Errorf("Expected nil error for %d response, got: %v", code, err)
		}
	}
}

func TestParseErrorResponse_Error(t *testing.T) {
	body := `{"message":"Authorization Error","errors":[{"resource":"Athlete","code":"invalid"}]}`
	resp := &http.Response{
		StatusCode: 401,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    httptest.NewRequest("GET", "https://www.strava.com/api/v3/athlete/activities?page=1&per_page=30", nil),
	}

	err := ParseErrorResponse(resp)
	if err == nil {
		t.Fatal("Expected error for 401 response")
	}

	httpErr, ok := err.(*HTTPError)
	if !ok {
		t.Fatalf("Expected *HTTPError, got %T", err)
	}
	if httpErr.StatusCode != 401 {
		t.Errorf("Expected status 401, got %d", httpErr.StatusCode)
	}
	if !strings.Contains(httpErr.Body, "Authorization Error") {
		t.Errorf("Expected body to contain error message, got: %s", httpErr.Body)
	}
	if httpErr.URL != "https://www.strava.com/api/v3/athlete/activities" {
		t.Errorf("Expected query string to be dropped, got: %s", httpErr.URL)
	}
}

func TestParseErrorResponse_NonSuccessRedirect(t *testing.T) {
	resp := &http.Response{
		StatusCode: 302,
		Body:       http.NoBody,
	}
	if err := ParseErrorResponse(resp); err == nil {
		t.Error("Expected 302 to be treated as an error")
	}
}

func TestParseErrorResponse_BodyRewrap(t *testing.T) {
	body := strings.Repeat("x", MaxErrorBodySize+50)
	resp := &http.Response{
		StatusCode: 400,
		Body:       io.NopCloser(strings.NewReader(body)),
	}

	_ = ParseErrorResponse(resp)

	rewrapped, _ := io.ReadAll(resp.Body)
	if string(rewrapped) != body {
		t.Errorf("Body not fully re-wrapped, got %d bytes", len(rewrapped))
	}
}

func TestTruncate(t *testing.T) {
	if truncate("hello", 10) != "hello" {
		t.Error("Short string should not be truncated")
	}

	truncated := truncate(strings.Repeat("a", 600), 500)
	if len(truncated) != 503 {
		t.Errorf("Expected length 503, got %d", len(truncated))
	}
	if !strings.HasSuffix(truncated, "...") {
		t.Error("Truncated string should end with ...")
	}
}

func TestTruncateBody(t *testing.T) {
	short := `{"error":"duplicate_ride"}`
	if TruncateBody(short) != short {
		t.Error("Short body should be unchanged")
	}
	if got := TruncateBody(strings.Repeat("a", 2*MaxErrorBodySize)); len(got) != MaxErrorBodySize+3 {
		t.Errorf("Expected truncated length %d, got %d", MaxErrorBodySize+3, len(got))
	}
}

func TestNewHTTPError(t *testing.T) {
	req := httptest.NewRequest("GET", "https://www.cyclinganalytics.com/api/ride/42?access_token=secret", nil)

	httpErr := NewHTTPError(http.StatusAccepted, []byte(strings.Repeat("p", MaxErrorBodySize+1)), req)

	if httpErr.StatusCode != http.StatusAccepted || httpErr.Status != "Accepted" {
		t.Errorf("Unexpected status %d %q", httpErr.StatusCode, httpErr.Status)
	}
	if len(httpErr.Body) != MaxErrorBodySize+3 {
		t.Errorf("Expected truncated body, got %d bytes", len(httpErr.Body))
	}
	if httpErr.URL != "https://www.cyclinganalytics.com/api/ride/42" {
		t.Errorf("Expected query string to be dropped, got: %s", httpErr.URL)
	}

	if NewHTTPError(http.StatusNotFound, nil, nil).URL != "" {
		t.Error("Expected empty URL without a request")
	}
}
