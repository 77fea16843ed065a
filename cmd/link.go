package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thellimist/oauthlink/internal/channel"
	"github.com/thellimist/oauthlink/internal/credentials"
	"github.com/thellimist/oauthlink/internal/oauthflow"
	"github.com/thellimist/oauthlink/internal/relay"
)

var (
	flagBaseURL       string
	flagClientID      string
	flagClientSecret  string
	flagOrigin        string
	flagRedirectURI   string
	flagTokenEndpoint string
	flagListen        string
	flagTimeout       time.Duration
	flagNoOriginCheck bool
	flagNoCorrelate   bool
	flagNoSave        bool
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link a storage account",
	Long: `Run the OAuth authorization-code flow against a Nextcloud-style provider.

A local landing page receives the provider redirect. Its origin is used as
the deployment origin unless --origin is given.

Examples:
  # Link using a local landing page
  oauthlink link --base-url https://cloud.example.com --client-id ID --client-secret SECRET

  # Behind a deployment that serves /static/oauth.html from a subfolder
  oauthlink link --base-url https://cloud.example.com --client-id ID --client-secret SECRET \
    --origin https://meet.example.com --redirect-uri https://meet.example.com/tenant/static/oauth.html`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runLink,
}

func init() {
	f := linkCmd.Flags()
	addProviderFlags(f)
	f.StringVar(&flagOrigin, "origin", "", "deployment origin sent as Origin/Referer (default: the local landing page)")
	f.StringVar(&flagRedirectURI, "redirect-uri", "", "override the redirect URI (default: <origin>/static/oauth.html)")
	f.StringVar(&flagListen, "listen", "", "address for the local landing page (default 127.0.0.1:0)")
	f.DurationVar(&flagTimeout, "timeout", 0, "give up waiting for the authorization code after this long (0 waits forever)")
	f.BoolVar(&flagNoOriginCheck, "no-origin-check", false, "accept authorization codes posted from any origin")
	f.BoolVar(&flagNoCorrelate, "no-correlate", false, "omit the state parameter; the latest listener receives the code")
	f.BoolVar(&flagNoSave, "no-save", false, "print the tokens instead of saving them")
}

func runLink(cmd *cobra.Command, args []string) error {
	baseURL := linkKey(stringFlag(cmd, "base-url", flagBaseURL, cfg.BaseURL))
	if baseURL == "" {
		return fmt.Errorf("provide --base-url or OAUTHLINK_BASE_URL")
	}
	timeout := cfg.Timeout
	if cmd.Flags().Changed("timeout") {
		timeout = flagTimeout
	}

	hub := channel.NewHub(logger)
	srv := &relay.Server{Addr: stringFlag(cmd, "listen", flagListen, cfg.ListenAddr), Hub: hub, Log: logger}
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("could not start local landing page: %w", err)
	}
	defer srv.Close()

	redirectURI := stringFlag(cmd, "redirect-uri", flagRedirectURI, cfg.RedirectURI)
	origin := stringFlag(cmd, "origin", flagOrigin, cfg.Origin)
	if origin == "" {
		origin = srv.Origin()
	}
	landing := redirectURI
	if landing == "" {
		landing = strings.TrimRight(origin, "/") + relay.LandingPath
	}
	if u, err := url.Parse(landing); err == nil && u.Host != "" && !strings.EqualFold(u.Host, srv.Host()) {
		// Landing page is proxied to this listener from a public host.
		srv.Hosts = append(srv.Hosts, u.Host)
		srv.TrustForwarded = true
	}

	ctrl, err := oauthflow.NewController(oauthflow.Options{
		Hub:                hub,
		Log:                logger,
		RedirectURI:        redirectURI,
		TokenEndpoint:      stringFlag(cmd, "token-endpoint", flagTokenEndpoint, cfg.TokenEndpoint),
		Timeout:            timeout,
		DisableOriginCheck: flagNoOriginCheck || !cfg.OriginCheck,
		DisableCorrelation: flagNoCorrelate || !cfg.Correlate,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx) })

	attempt, err := ctrl.Start(oauthflow.StartParams{
		AuthorizationBaseURL: baseURL,
		ClientID:             stringFlag(cmd, "client-id", flagClientID, cfg.ClientID),
		ClientSecret:         stringFlag(cmd, "client-secret", flagClientSecret, cfg.ClientSecret),
		DeploymentOrigin:     origin,
	})
	if err != nil {
		cancel()
		g.Wait()
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "If the browser doesn't open, visit:\n%s\n\n", attempt.AuthURL())
	fmt.Fprintln(out, "Waiting for authorization...")

	var token *oauthflow.TokenResult
	g.Go(func() error {
		defer cancel()
		tok, err := attempt.Wait(gctx)
		if err != nil {
			attempt.Cancel()
			return fmt.Errorf("authorization failed: %w", err)
		}
		token = tok
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if flagNoSave {
		fmt.Fprintf(out, "access_token: %s\nrefresh_token: %s\nexpires_at: %s\n",
			token.AccessToken, token.RefreshToken, formatExpiry(token.ExpiresAt))
		return nil
	}

	creds, err := credentials.Load(cfg.CredentialsFile)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	credentials.SetLink(creds, baseURL, credentials.Link{
		ClientID:      attempt.Config.ClientID,
		TokenEndpoint: attempt.Config.TokenEndpoint,
		Token:         *token,
		LinkedAt:      time.Now().UTC(),
	})
	if err := credentials.Save(cfg.CredentialsFile, creds); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	fmt.Fprintf(out, "Linked %s (expires %s)\n", baseURL, formatExpiry(token.ExpiresAt))
	return nil
}

// linkKey normalises a provider base URL the way endpoints are derived from
// it, so links saved and looked up with or without a trailing slash agree.
func linkKey(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}
