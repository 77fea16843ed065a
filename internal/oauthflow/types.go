package oauthflow

import (
	"time"

	"golang.org/x/oauth2"
)

// Status is where an attempt is in its lifecycle.
type Status int

const (
	StatusPending Status = iota
	StatusSucceeded
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// Viewport is the size of the caller's window, used to center the popup.
type Viewport struct {
	Width  int
	Height int
}

// StartParams are the caller-supplied inputs for one attempt.
type StartParams struct {
	AuthorizationBaseURL string
	ClientID             string
	ClientSecret         string
	DeploymentOrigin     string

	// RedirectURI overrides DeploymentOrigin + "/static/oauth.html", e.g.
	// when the deployment runs in a subfolder.
	RedirectURI string
	// TokenEndpoint overrides the endpoint derived from AuthorizationBaseURL.
	TokenEndpoint string

	Viewport Viewport
}

// AuthorizationConfig is fixed for the lifetime of an attempt.
type AuthorizationConfig struct {
	AuthorizationEndpoint string
	TokenEndpoint         string
	ClientID              string
	ClientSecret          string
	RedirectURI           string
	// Origin is the deployment origin sent as Origin and Referer on exchange.
	Origin string
}

// OAuth2 returns the equivalent golang.org/x/oauth2 configuration.
func (c AuthorizationConfig) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthorizationEndpoint,
			TokenURL:  c.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthURL builds the authorization URL. An empty state is omitted.
func (c AuthorizationConfig) AuthURL(state string) string {
	return c.OAuth2().AuthCodeURL(state)
}

// TokenResponse is the token endpoint's JSON body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	UserID       string `json:"user_id,omitempty"`
}

// TokenResult is handed to the caller after a successful exchange. The flow
// never stores it.
type TokenResult struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the access token is past its expiry at now.
// Tokens without an expiry never expire.
func (t TokenResult) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

func newTokenResult(resp *TokenResponse, now time.Time) *TokenResult {
	res := &TokenResult{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		UserID:       resp.UserID,
	}
	if resp.ExpiresIn > 0 {
		res.ExpiresAt = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return res
}

func fromOAuth2Token(tok *oauth2.Token) *TokenResult {
	res := &TokenResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
	}
	if uid, ok := tok.Extra("user_id").(string); ok {
		res.UserID = uid
	}
	return res
}

// Result is reported once per attempt when it leaves Pending.
type Result struct {
	AttemptID string
	Status    Status
	Token     *TokenResult
	Err       error
}
