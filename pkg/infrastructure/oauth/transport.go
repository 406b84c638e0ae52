package oauth

import (
	"context"
	"errors"
	"net/http"
)

type tokenKey struct{}

// ErrNoToken is returned by Transport when the request context carries no
// access token.
var ErrNoToken = errors.New("oauth: no access token in request context")

// ContextWithToken attaches the caller's access token to ctx so Transport can
// authenticate requests made under it.
func ContextWithToken(ctx context.Context, accessToken string) context.Context {
	return context.WithValue(ctx, tokenKey{}, accessToken)
}

// TokenFromContext returns the access token stored by ContextWithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	return tok, ok && tok != ""
}

// Transport is an http.RoundTripper that stamps the bearer token found in
// the request context. It never refreshes: refresh is the caller's decision.
type Transport struct {
	// Base is the base RoundTripper used to make the actual HTTP requests.
	// If nil, http.DefaultTransport is used.
	Base http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	token, ok := TokenFromContext(req.Context())
	if !ok {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, ErrNoToken
	}

	// RoundTrippers must not mutate the caller's request.
	req2 := req.Clone(req.Context())
	req2.Header.Set("Authorization", "Bearer "+token)

	return base.RoundTrip(req2)
}

// NewHTTPClient wraps base (which may be nil) so every request is
// authenticated from its context.
func NewHTTPClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	wrapped := *base
	wrapped.Transport = &Transport{Base: base.Transport}
	return &wrapped
}
