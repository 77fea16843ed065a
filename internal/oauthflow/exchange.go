package oauthflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
	Code         string `json:"code"`
}

// ExchangeCode trades an authorization code for tokens. The request is a
// JSON POST that presents the deployment origin as Origin and Referer.
// Every failure is returned as a *TransportError.
func ExchangeCode(ctx context.Context, client *http.Client, cfg AuthorizationConfig, code string) (*TokenResponse, error) {
	body, err := json.Marshal(tokenRequest{
		GrantType:    "authorization_code",
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Code:         code,
	})
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("marshal token request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Origin", cfg.Origin)
	req.Header.Set("Referer", cfg.Origin)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("token request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var errResp struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
			return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("token error: %s: %s", errResp.Error, errResp.Description)}
		}
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("token endpoint returned %d", resp.StatusCode)}
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("parse token response: %w", err)}
	}
	if tokenResp.AccessToken == "" {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("token response missing access_token")}
	}

	return &tokenResp, nil
}
