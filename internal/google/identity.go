package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// UserInfoLookup discovers the email address owning a token through the
// OAuth2 userinfo endpoint.
type UserInfoLookup struct {
	config *oauth2.Config

	// endpoint overrides the API base URL in tests.
	endpoint string
}

// NewUserInfoLookup returns a lookup that refreshes tokens through config.
func NewUserInfoLookup(config *oauth2.Config) *UserInfoLookup {
	return &UserInfoLookup{config: config}
}

// LookupEmail returns the lowercased email address of tok's owner together
// with the token used for the request. An expired tok is refreshed first, so
// callers should store the returned token rather than tok.
func (l *UserInfoLookup) LookupEmail(ctx context.Context, tok *oauth2.Token) (string, *oauth2.Token, error) {
	if tok == nil {
		return "", nil, errors.New("token is nil")
	}

	ts := l.config.TokenSource(ctx, tok)
	opts := []option.ClientOption{
		option.WithHTTPClient(NewHTTPClient(ts, nil)),
	}
	if l.endpoint != "" {
		opts = append(opts, option.WithEndpoint(l.endpoint))
	}

	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("failed to get user info: %w", err)
	}
	if info.Email == "" {
		return "", nil, errors.New("user info carries no email address")
	}

	// The source caches the token it last used.
	current, err := ts.Token()
	if err != nil {
		current = tok
	}
	return strings.ToLower(info.Email), current, nil
}
