package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
)

var (
	// ErrMissingCredentials is returned when no OAuth client is configured.
	ErrMissingCredentials = errors.New("google OAuth client id and client secret are required")

	// ErrNoRefreshToken is returned when a token cannot be refreshed because
	// it carries no refresh token.
	ErrNoRefreshToken = errors.New("token has no refresh token")
)

// Credentials identify the OAuth client registered in the Google Cloud console.
type Credentials struct {
	ClientID     string
	ClientSecret string

	// Endpoint overrides google.Endpoint when set.
	Endpoint oauth2.Endpoint
}

// NewOAuthConfig returns the OAuth2 configuration for all Google services
// used by the scheduler.
func NewOAuthConfig(creds Credentials, redirectURL string) (*oauth2.Config, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	endpoint := creds.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  redirectURL,
		Scopes:       DefaultOAuthScopes,
	}, nil
}

// Refresher exchanges refresh tokens for new access tokens.
type Refresher struct {
	config *oauth2.Config
}

// NewRefresher returns a Refresher using config's token endpoint.
func NewRefresher(config *oauth2.Config) *Refresher {
	return &Refresher{config: config}
}

// Refresh always contacts the token endpoint, regardless of tok's expiry.
func (r *Refresher) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	stale := *tok
	// Mark the token expired so the token source refreshes it.
	stale.Expiry = time.Unix(1, 0)

	fresh, err := r.config.TokenSource(ctx, &stale).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	return fresh, nil
}

// NewLimiter returns a limiter admitting requestsPerSecond with the given
// burst, or nil (unlimited) when requestsPerSecond is not positive.
func NewLimiter(requestsPerSecond float64, burst int) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// NewHTTPClient returns an HTTP client authenticating with ts.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
// A non-nil limiter delays each request until it is admitted.
func NewHTTPClient(ts oauth2.TokenSource, limiter *rate.Limiter) *http.Client {
	var base http.RoundTripper = &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
	}
	if limiter != nil {
		base = &limitedTransport{base: base, limiter: limiter}
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: base},
	}
}

type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return t.base.RoundTrip(req)
}
