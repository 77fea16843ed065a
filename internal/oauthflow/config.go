package oauthflow

import (
	"net/url"
	"strings"
)

const (
	authorizePath = "/index.php/apps/oauth2/authorize"
	tokenPath     = "/index.php/apps/oauth2/api/v1/token"
	landingPath   = "/static/oauth.html"
)

// BuildConfig validates p and derives the attempt's endpoints. redirectURI
// and tokenEndpoint are deployment-wide overrides used when p leaves them empty.
func BuildConfig(p StartParams, redirectURI, tokenEndpoint string) (AuthorizationConfig, error) {
	if strings.TrimSpace(p.ClientID) == "" {
		return AuthorizationConfig{}, &ConfigurationError{Field: "client id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(p.ClientSecret) == "" {
		return AuthorizationConfig{}, &ConfigurationError{Field: "client secret", Reason: "must not be empty"}
	}

	origin, err := parseOrigin(p.DeploymentOrigin)
	if err != nil {
		return AuthorizationConfig{}, err
	}

	base, err := parseAbsolute("authorization base URL", p.AuthorizationBaseURL)
	if err != nil {
		return AuthorizationConfig{}, err
	}
	base = strings.TrimRight(base, "/")

	if p.RedirectURI != "" {
		redirectURI = p.RedirectURI
	}
	if redirectURI == "" {
		redirectURI = origin + landingPath
	} else if _, err := parseAbsolute("redirect URI", redirectURI); err != nil {
		return AuthorizationConfig{}, err
	}

	if p.TokenEndpoint != "" {
		tokenEndpoint = p.TokenEndpoint
	}
	if tokenEndpoint == "" {
		tokenEndpoint = base + tokenPath
	} else if _, err := parseAbsolute("token endpoint", tokenEndpoint); err != nil {
		return AuthorizationConfig{}, err
	}

	return AuthorizationConfig{
		AuthorizationEndpoint: base + authorizePath,
		TokenEndpoint:         tokenEndpoint,
		ClientID:              p.ClientID,
		ClientSecret:          p.ClientSecret,
		RedirectURI:           redirectURI,
		Origin:                origin,
	}, nil
}

// OriginOf returns scheme://host of rawURL, or "" if it has none.
func OriginOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

func parseOrigin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &ConfigurationError{Field: "deployment origin", Reason: "must be an absolute http(s) origin"}
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return "", &ConfigurationError{Field: "deployment origin", Reason: "must not carry a path, query or fragment"}
	}
	return OriginOf(u.String()), nil
}

func parseAbsolute(field, raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &ConfigurationError{Field: field, Reason: "must be an absolute http(s) URL"}
	}
	return u.String(), nil
}
