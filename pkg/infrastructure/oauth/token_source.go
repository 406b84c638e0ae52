package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenURL is Strava's OAuth token endpoint.
const DefaultTokenURL = "https://www.strava.com/oauth/token"

// Token is the session-held credential for Strava. It is produced only by
// Lifecycle and is invalid once the clock reaches ExpiresAt.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Athlete      *Athlete  `json:"athlete,omitempty"`
}

// Athlete is the profile Strava returns alongside an authorization-code exchange.
type Athlete struct {
	ID            int64  `json:"id"`
	Username      string `json:"username,omitempty"`
	Firstname     string `json:"firstname"`
	Lastname      string `json:"lastname"`
	ProfileMedium string `json:"profile_medium,omitempty"`
}

// AuthError means the token endpoint rejected the exchange or refresh; the
// user must re-authenticate. It is never retried automatically.
type AuthError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("oauth %s failed (status %d): %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("oauth %s failed (status %d)", e.Op, e.StatusCode)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Credentials identify the application to Strava.
type Credentials struct {
	ClientID     string
	ClientSecret string
	// TokenURL defaults to DefaultTokenURL.
	TokenURL string
}

// Lifecycle exchanges authorization codes and refreshes tokens against
// Strava. It keeps no state between calls.
type Lifecycle struct {
	creds      Credentials
	httpClient *http.Client
	now        func() time.Time
}

// NewLifecycle builds a Lifecycle. httpClient may be nil.
func NewLifecycle(creds Credentials, httpClient *http.Client) *Lifecycle {
	if creds.TokenURL == "" {
		creds.TokenURL = DefaultTokenURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Lifecycle{
		creds:      creds,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// WithClock replaces the clock used for expiry calculations.
func (l *Lifecycle) WithClock(now func() time.Time) *Lifecycle {
	cp := *l
	cp.now = now
	return &cp
}

func (l *Lifecycle) config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     l.creds.ClientID,
		ClientSecret: l.creds.ClientSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL: l.creds.TokenURL,
			// Strava wants client_id/client_secret in the form body.
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Exchange trades an authorization code for a token.
func (l *Lifecycle) Exchange(ctx context.Context, code, redirectURI string) (*Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, l.httpClient)

	tok, err := l.config(redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, l.wrap("exchange", err)
	}
	return l.convert(tok, ""), nil
}

// Refresh obtains a new access token. Strava may rotate the refresh token;
// when it does not return one the previous value is kept.
func (l *Lifecycle) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, &AuthError{Op: "refresh", Err: errors.New("missing refresh token")}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, l.httpClient)

	// An empty access token forces the source to hit the token endpoint.
	src := l.config("").TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, l.wrap("refresh", err)
	}
	return l.convert(tok, refreshToken), nil
}

// IsExpired reports whether token must be refreshed before use.
func (l *Lifecycle) IsExpired(token *Token) bool {
	if token == nil {
		return true
	}
	return !l.now().Before(token.ExpiresAt)
}

func (l *Lifecycle) wrap(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		authErr := &AuthError{Op: op, Body: string(re.Body), Err: err}
		if re.Response != nil {
			authErr.StatusCode = re.Response.StatusCode
		}
		return authErr
	}
	return fmt.Errorf("oauth %s: %w", op, err)
}

func (l *Lifecycle) convert(tok *oauth2.Token, previousRefresh string) *Token {
	out := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    l.expiry(tok),
	}
	if out.RefreshToken == "" {
		out.RefreshToken = previousRefresh
	}
	if raw := tok.Extra("athlete"); raw != nil {
		if b, err := json.Marshal(raw); err == nil {
			var a Athlete
			if json.Unmarshal(b, &a) == nil && a.ID != 0 {
				out.Athlete = &a
			}
		}
	}
	return out
}

// expiry prefers the relative expires_in measured on our own clock, then the
// absolute expires_at, then whatever the oauth2 package derived.
func (l *Lifecycle) expiry(tok *oauth2.Token) time.Time {
	if secs, ok := numericExtra(tok.Extra("expires_in")); ok {
		return l.now().Add(time.Duration(secs) * time.Second)
	}
	if at, ok := numericExtra(tok.Extra("expires_at")); ok && at > 0 {
		return time.Unix(at, 0)
	}
	return tok.Expiry
}

func numericExtra(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}
