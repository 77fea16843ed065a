package oauthflow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Refresher trades a stored refresh token for a new access token.
// Concurrent refreshes of the same token share one request.
type Refresher struct {
	HTTPClient *http.Client
	Log        *slog.Logger

	group singleflight.Group
}

// Refresh returns a fresh TokenResult for current. If the provider does not
// rotate the refresh token the old one is kept.
func (r *Refresher) Refresh(ctx context.Context, cfg AuthorizationConfig, current TokenResult) (*TokenResult, error) {
	if current.RefreshToken == "" {
		return nil, fmt.Errorf("refresh: no refresh token stored")
	}
	if cfg.TokenEndpoint == "" {
		return nil, &ConfigurationError{Field: "token endpoint", Reason: "must not be empty"}
	}

	// The shared request outlives any one caller; each caller only stops
	// waiting when its own ctx is done.
	key := cfg.TokenEndpoint + "|" + cfg.ClientID + "|" + current.RefreshToken
	ch := r.group.DoChan(key, func() (interface{}, error) {
		return r.refresh(context.WithoutCancel(ctx), cfg, current)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared && r.Log != nil {
			r.Log.Debug("refresh shared with concurrent caller", "token_endpoint", cfg.TokenEndpoint)
		}
		tok := *res.Val.(*TokenResult)
		return &tok, nil
	}
}

func (r *Refresher) refresh(ctx context.Context, cfg AuthorizationConfig, current TokenResult) (*TokenResult, error) {
	client := r.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)

	// An empty access token forces the source to hit the token endpoint.
	src := cfg.OAuth2().TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	res := fromOAuth2Token(tok)
	if res.UserID == "" {
		res.UserID = current.UserID
	}
	return res, nil
}
