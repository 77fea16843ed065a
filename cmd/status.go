package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/thellimist/oauthlink/internal/credentials"
)

var statusCmd = &cobra.Command{
	Use:           "status",
	Short:         "Show linked accounts",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	creds, err := credentials.Load(cfg.CredentialsFile)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(creds.Links) == 0 {
		fmt.Fprintln(out, "No linked accounts.")
		return nil
	}

	urls := make([]string, 0, len(creds.Links))
	for u := range creds.Links {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	now := time.Now()
	for _, u := range urls {
		l := creds.Links[u]
		state := "valid"
		if l.Token.Expired(now) {
			state = "expired"
		}
		fmt.Fprintf(out, "%s\n  client:  %s\n  user:    %s\n  status:  %s (expires %s)\n",
			u, l.ClientID, l.Token.UserID, state, formatExpiry(l.Token.ExpiresAt))
	}
	return nil
}
