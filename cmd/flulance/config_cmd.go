package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"flulance/internal/auth"
	"flulance/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newConfigCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set client configuration",
	}
	cmd.AddCommand(
		newConfigGetCmd(opts),
		newConfigSetCmd(opts),
		newConfigPathCmd(opts),
		newConfigSetTokenCmd(opts),
	)
	return cmd
}

func newConfigGetCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a config value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := opts.cfg.Get(args[0])
			if err != nil {
				return err
			}
			if args[0] == "token" && value != "" {
				value = maskToken(value)
			}
			return writePlain(cmd.OutOrStdout(), "%s\n", value)
		},
	}
}

func newConfigSetCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: fmt.Sprintf("Set a config value (%s)", strings.Join(config.ClientKeys(), ", ")),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.SetClientKey(opts.cfg.Path, args[0], args[1])
		},
	}
}

func newConfigPathCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writePlain(cmd.OutOrStdout(), "%s\n", opts.cfg.Path)
		},
	}
}

// newConfigSetTokenCmd reads the token from stdin so it stays out of shell
// history. On a terminal the input is not echoed.
func newConfigSetTokenCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-token",
		Short: "Store a bearer token read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readToken(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			claims, err := auth.InspectToken(token)
			if err != nil {
				return err
			}
			if err := config.SetClientKey(opts.cfg.Path, "token", token); err != nil {
				return err
			}
			return writePlain(cmd.OutOrStdout(), "token for %s saved to %s\n", claims.UserID, opts.cfg.Path)
		},
	}
}

func readToken(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "token: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("empty token")
	}
	return token, nil
}

func newWhoamiCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity and expiry of the configured token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.Token == "" {
				return errors.New("no token configured")
			}
			claims, err := auth.InspectToken(opts.cfg.Token)
			if err != nil {
				return err
			}

			info := map[string]string{
				"user_id": claims.UserID,
				"role":    claims.Role,
				"issuer":  claims.Issuer,
			}
			if claims.ExpiresAt != nil {
				info["expires_at"] = claims.ExpiresAt.Time.Format(time.RFC3339)
				if time.Now().After(claims.ExpiresAt.Time) {
					info["status"] = "expired"
				} else {
					info["status"] = "valid for " + time.Until(claims.ExpiresAt.Time).Round(time.Minute).String()
				}
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			for _, key := range []string{"user_id", "role", "issuer", "expires_at", "status"} {
				if v := info[key]; v != "" {
					if err := writePlain(cmd.OutOrStdout(), "%s: %s\n", key, v); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "…" + token[len(token)-4:]
}
