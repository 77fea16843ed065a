package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/thellimist/oauthlink/internal/config"
	"github.com/thellimist/oauthlink/internal/credentials"
	"github.com/thellimist/oauthlink/internal/logx"
)

var appVersion = "dev"

func SetVersion(v string) {
	appVersion = v
}

var (
	flagLogLevel    string
	flagLogFormat   string
	flagCredentials string
)

// cfg and logger are populated before any subcommand runs.
var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "oauthlink",
	Short: "Link a cloud-storage account through the OAuth authorization-code flow",
	Long: `oauthlink links a Nextcloud-style storage account for recording uploads.

It opens the provider's consent screen, receives the authorization code on a
local landing page, exchanges it for tokens and stores them for later use.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		if flagLogLevel != "" {
			cfg.LogLevel = flagLogLevel
		}
		if flagLogFormat != "" {
			cfg.LogFormat = flagLogFormat
		}
		if flagCredentials != "" {
			cfg.CredentialsFile = flagCredentials
		}
		if cfg.CredentialsFile == "" {
			cfg.CredentialsFile = credentials.DefaultPath()
		}
		logger = logx.New(cmd.ErrOrStderr(), logx.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&flagCredentials, "credentials", "", "path to the credentials file (default ~/.oauthlink/credentials.json)")

	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.SetVersionTemplate(fmt.Sprintf("oauthlink v%s\n", appVersion))
}

func Execute() error {
	rootCmd.Version = appVersion
	return rootCmd.Execute()
}

// stringFlag returns the flag value when set on the command line, otherwise fallback.
func stringFlag(cmd *cobra.Command, name, value, fallback string) string {
	if cmd.Flags().Changed(name) {
		return value
	}
	return fallback
}
