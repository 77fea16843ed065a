package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/thellimist/oauthlink/internal/credentials"
	"github.com/thellimist/oauthlink/internal/oauthflow"
)

var refreshCmd = &cobra.Command{
	Use:           "refresh",
	Short:         "Refresh the access token of a linked account",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRefresh,
}

func init() {
	addProviderFlags(refreshCmd.Flags())
}

// addProviderFlags registers the flags shared by link and refresh.
func addProviderFlags(f *pflag.FlagSet) {
	f.StringVar(&flagBaseURL, "base-url", "", "provider base URL, e.g. https://cloud.example.com")
	f.StringVar(&flagClientID, "client-id", "", "OAuth client ID")
	f.StringVar(&flagClientSecret, "client-secret", "", "OAuth client secret")
	f.StringVar(&flagTokenEndpoint, "token-endpoint", "", "override the token endpoint")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	baseURL := linkKey(stringFlag(cmd, "base-url", flagBaseURL, cfg.BaseURL))
	if baseURL == "" {
		return fmt.Errorf("provide --base-url or OAUTHLINK_BASE_URL")
	}

	creds, err := credentials.Load(cfg.CredentialsFile)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	link := credentials.GetLink(creds, baseURL)
	if link == nil {
		return fmt.Errorf("no linked account for %s; run oauthlink link first", baseURL)
	}

	authCfg := oauthflow.AuthorizationConfig{
		TokenEndpoint: stringFlag(cmd, "token-endpoint", flagTokenEndpoint, link.TokenEndpoint),
		ClientID:      stringFlag(cmd, "client-id", flagClientID, cfg.ClientID),
		ClientSecret:  stringFlag(cmd, "client-secret", flagClientSecret, cfg.ClientSecret),
	}
	if authCfg.ClientID == "" {
		authCfg.ClientID = link.ClientID
	}
	if authCfg.ClientSecret == "" {
		return fmt.Errorf("provide --client-secret or OAUTHLINK_CLIENT_SECRET")
	}

	r := &oauthflow.Refresher{Log: logger}
	tok, err := r.Refresh(cmd.Context(), authCfg, link.Token)
	if err != nil {
		return err
	}

	credentials.UpdateToken(creds, baseURL, *tok, time.Now().UTC())
	if err := credentials.Save(cfg.CredentialsFile, creds); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %s (expires %s)\n", baseURL, formatExpiry(tok.ExpiresAt))
	return nil
}
