package oauthflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() StartParams {
	return StartParams{
		AuthorizationBaseURL: "https://cloud.example.com/",
		ClientID:             "client-1",
		ClientSecret:         "secret-1",
		DeploymentOrigin:     "https://meet.example.com",
	}
}

func TestBuildConfig_Defaults(t *testing.T) {
	cfg, err := BuildConfig(validParams(), "", "")
	require.NoError(t, err)

	assert.Equal(t, "https://cloud.example.com/index.php/apps/oauth2/authorize", cfg.AuthorizationEndpoint)
	assert.Equal(t, "https://cloud.example.com/index.php/apps/oauth2/api/v1/token", cfg.TokenEndpoint)
	assert.Equal(t, "https://meet.example.com/static/oauth.html", cfg.RedirectURI)
	assert.Equal(t, "https://meet.example.com", cfg.Origin)
	assert.Equal(t, "client-1", cfg.ClientID)
	assert.Equal(t, "secret-1", cfg.ClientSecret)
}

func TestBuildConfig_RedirectOverride(t *testing.T) {
	cfg, err := BuildConfig(validParams(), "https://meet.example.com/tenant/static/oauth.html", "")
	require.NoError(t, err)
	assert.Equal(t, "https://meet.example.com/tenant/static/oauth.html", cfg.RedirectURI)

	p := validParams()
	p.RedirectURI = "https://meet.example.com/other/oauth.html"
	cfg, err = BuildConfig(p, "https://meet.example.com/tenant/static/oauth.html", "")
	require.NoError(t, err)
	assert.Equal(t, "https://meet.example.com/other/oauth.html", cfg.RedirectURI, "per-call override wins")
}

func TestBuildConfig_TokenEndpointOverride(t *testing.T) {
	cfg, err := BuildConfig(validParams(), "", "https://tokens.example.com/token")
	require.NoError(t, err)
	assert.Equal(t, "https://tokens.example.com/token", cfg.TokenEndpoint)
}

func TestBuildConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *StartParams)
		field  string
	}{
		{"empty client id", func(p *StartParams) { p.ClientID = "" }, "client id"},
		{"blank client secret", func(p *StartParams) { p.ClientSecret = "  " }, "client secret"},
		{"relative origin", func(p *StartParams) { p.DeploymentOrigin = "meet.example.com" }, "deployment origin"},
		{"origin with path", func(p *StartParams) { p.DeploymentOrigin = "https://meet.example.com/room" }, "deployment origin"},
		{"ftp origin", func(p *StartParams) { p.DeploymentOrigin = "ftp://meet.example.com" }, "deployment origin"},
		{"missing base url", func(p *StartParams) { p.AuthorizationBaseURL = "" }, "authorization base URL"},
		{"relative redirect", func(p *StartParams) { p.RedirectURI = "/static/oauth.html" }, "redirect URI"},
		{"relative token endpoint", func(p *StartParams) { p.TokenEndpoint = "token" }, "token endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			_, err := BuildConfig(p, "", "")
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestOriginOf(t *testing.T) {
	assert.Equal(t, "https://meet.example.com", OriginOf("https://Meet.Example.com/static/oauth.html?x=1"))
	assert.Equal(t, "http://127.0.0.1:8080", OriginOf("http://127.0.0.1:8080"))
	assert.Equal(t, "", OriginOf("/static/oauth.html"))
}
