package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"flulance/internal/client"
	"flulance/internal/config"
	"flulance/internal/logger"

	"github.com/spf13/cobra"
)

type cliOptions struct {
	cfg        *config.ClientConfig
	jsonOutput bool
	baseURL    string
	token      string
	logLevel   string
}

func newRootCmd(cfg *config.ClientConfig) *cobra.Command {
	opts := &cliOptions{cfg: cfg}

	cmd := &cobra.Command{
		Use:           "flulance",
		Short:         "Chat and notification client for the flulance marketplace",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.baseURL != "" {
				cfg.BaseURL = strings.TrimRight(opts.baseURL, "/")
			}
			if opts.token != "" {
				cfg.Token = opts.token
			}
			if opts.logLevel != "" {
				cfg.LogLevel = opts.logLevel
			}
			logger.InitText(os.Stderr, cfg.LogLevel)
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "API base URL (overrides base_url)")
	cmd.PersistentFlags().StringVar(&opts.token, "token", "", "bearer token (overrides token)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newChatCmd(opts),
		newNotificationsCmd(opts),
		newConfigCmd(opts),
		newWhoamiCmd(opts),
	)

	return cmd
}

func (o *cliOptions) client() (*client.Client, error) {
	if o.cfg.Token == "" {
		return nil, errors.New("no token configured: run `flulance config set-token` or pass --token")
	}
	return client.New(o.cfg.BaseURL, o.cfg.Token, o.cfg.Timeout), nil
}

// formatCLIError turns API errors into short actionable lines.
func formatCLIError(err error) []string {
	lines := []string{"error: " + err.Error()}

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		if client.IsRetryable(err) {
			lines = append(lines, "hint: the server could not be reached; check base_url")
		}
		return lines
	}

	switch {
	case apiErr.IsStateConflict():
		if status := apiErr.CurrentStatus(); status != "" {
			lines = append(lines, fmt.Sprintf("hint: it is already %s; refresh and try again", status))
		} else {
			lines = append(lines, "hint: the state changed on the server; refresh and try again")
		}
	case apiErr.IsRetryable():
		lines = append(lines, "hint: temporary server failure, safe to retry")
	case apiErr.Code == "TOKEN_EXPIRED":
		lines = append(lines, "hint: the token expired; set a new one with `flulance config set-token`")
	}
	return lines
}
