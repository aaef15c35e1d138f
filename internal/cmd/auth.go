package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/trackvia-tools/tv-cli/internal/api"
	"github.com/trackvia-tools/tv-cli/internal/config"
	"github.com/trackvia-tools/tv-cli/internal/debug"
	"github.com/trackvia-tools/tv-cli/internal/iocontext"
)

const (
	envUsername = "TRACKVIA_USERNAME"
	envPassword = "TRACKVIA_PASSWORD"
)

// newAuthCmd returns the auth command with subcommands
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication credentials",
		Long:  "Store TrackVia user keys and session tokens in your OS keychain, one profile per account.",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthRefreshCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthLogoutCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var (
		userKey       string
		username      string
		password      string
		passwordStdin bool
		envFile       string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save a user key and log in",
		Long: strings.TrimSpace(`
Save TrackVia credentials to your OS keychain.

The user key (Account Settings > API Access) is always required. With
--username, the password grant is used to obtain an access token and a
refresh token, which are stored alongside the key and renewed automatically.
`),
		Example: strings.TrimSpace(`
  # User key only
  tv auth login --user-key KEY

  # Log in with a password read from stdin
  echo "$PW" | tv auth login --user-key KEY --username ops@example.com --password-stdin

  # Save to a named profile against a sandbox host
  tv --profile sandbox --base-url https://sandbox.trackvia.com auth login --user-key KEY

  # Load TRACKVIA_* values from a .env file
  tv auth login --env-file .env
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			baseURL := flags.BaseURL
			profile := flags.Profile

			if envFile != "" {
				envVars, err := loadAuthEnvFile(envFile)
				if err != nil {
					return err
				}
				applyAuthEnvFileRuntimeVars(envVars)
				if userKey == "" {
					userKey = strings.TrimSpace(envVars[config.EnvUserKey])
				}
				if username == "" {
					username = strings.TrimSpace(envVars[envUsername])
				}
				if password == "" && !passwordStdin {
					password = envVars[envPassword]
				}
				if baseURL == "" {
					baseURL = strings.TrimSpace(envVars[config.EnvBaseURL])
				}
				if profile == "" {
					profile = strings.TrimSpace(envVars[config.EnvProfile])
				}
			}

			if password != "" && passwordStdin {
				return fmt.Errorf("--password conflicts with --password-stdin")
			}
			if strings.TrimSpace(userKey) == "" {
				return fmt.Errorf("--user-key is required")
			}
			if profile == "" {
				profile = "default"
			}
			baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")

			creds := config.Credentials{BaseURL: baseURL, UserKey: strings.TrimSpace(userKey), Username: username}

			if username != "" {
				if passwordStdin {
					secret, err := iocontext.GetIO(cmd.Context()).ReadSecret()
					if err != nil {
						return fmt.Errorf("--password-stdin: %w", err)
					}
					password = secret
				}
				if password == "" {
					password = os.Getenv(envPassword)
				}
				if password == "" {
					return fmt.Errorf("a password is required with --username (use --password-stdin)")
				}

				// No session hook: the profile is written once, below.
				factory := newClientFactory().withLogger(debug.Logger(cmd.Context()))
				client, err := factory.newClient(config.ClientConfig{BaseURL: baseURL, UserKey: creds.UserKey, FromEnv: true})
				if err != nil {
					return err
				}
				if err := client.Login(cmd.Context(), username, password); err != nil {
					return err
				}
				session := client.Session()
				creds.Token = session.Token
				creds.RefreshToken = session.RefreshToken
			}

			if err := config.SaveProfile(profile, creds); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{
					"profile":  profile,
					"base_url": displayBaseURL(baseURL),
					"username": username,
					"session":  creds.HasSession(),
				})
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "Credentials saved.")
			_, _ = fmt.Fprintf(out, "  Profile: %s\n", profile)
			_, _ = fmt.Fprintf(out, "  Base URL: %s\n", displayBaseURL(baseURL))
			if username != "" {
				_, _ = fmt.Fprintf(out, "  Logged in as: %s\n", username)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&userKey, "user-key", "", "TrackVia API user key")
	cmd.Flags().StringVar(&username, "username", "", "Username for the password grant (optional)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Load TRACKVIA_* (and optional TV_KEYRING_*) values from a .env file")

	return cmd
}

func loadAuthEnvFile(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("--env-file requires a file path")
	}
	envVars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read --env-file %q: %w", path, err)
	}
	return envVars, nil
}

// applyAuthEnvFileRuntimeVars copies keyring settings from --env-file into the
// process environment when they are not already exported.
func applyAuthEnvFileRuntimeVars(envVars map[string]string) {
	for _, key := range []string{"TV_KEYRING_BACKEND", "TV_KEYRING_PASSWORD", "TV_CREDENTIALS_DIR"} {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if value := strings.TrimSpace(envVars[key]); value != "" {
			_ = os.Setenv(key, value)
		}
	}
}

func newAuthRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new session",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			factory := newClientFactory().withLogger(debug.Logger(cmd.Context()))
			cfg, err := config.ResolveClientConfig(factory.profile, factory.baseURL)
			if err != nil {
				return err
			}
			client, err := factory.newClient(cfg)
			if err != nil {
				return err
			}
			if err := client.RefreshToken(cmd.Context()); err != nil {
				return err
			}

			persisted := !cfg.FromEnv
			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{
					"refreshed": true,
					"profile":   cfg.Profile,
					"persisted": persisted,
					"token":     maskToken(client.Session().Token),
				})
			}
			printAction(cmd, "Session refreshed.")
			if !persisted {
				printAction(cmd, "  Credentials come from the environment; the new token was not saved.")
			}
			return nil
		}),
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current authentication configuration",
		Long:  "Display the resolved credentials (keys and tokens are masked).",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ResolveClientConfig(flags.Profile, flags.BaseURL)
			if err != nil {
				if errors.Is(err, config.ErrNotConfigured) {
					if isJSON(cmd) {
						return printJSON(cmd, map[string]any{
							"authenticated": false,
							"message":       "Not authenticated. Run 'tv auth login' to configure credentials.",
						})
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Not authenticated.")
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Run 'tv auth login' to configure credentials.")
					return nil
				}
				return fmt.Errorf("failed to load credentials: %w", err)
			}

			source := "keychain"
			if cfg.FromEnv {
				source = "env"
			}
			profiles, _ := config.ListProfiles()

			if isJSON(cmd) {
				payload := map[string]any{
					"authenticated": true,
					"base_url":      displayBaseURL(cfg.BaseURL),
					"user_key":      maskToken(cfg.UserKey),
					"session":       cfg.Token != "",
					"refreshable":   cfg.RefreshToken != "",
					"source":        source,
					"profiles":      profiles,
				}
				if cfg.Profile != "" {
					payload["profile"] = cfg.Profile
				}
				return printJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "Authenticated")
			if cfg.Profile != "" {
				_, _ = fmt.Fprintf(out, "  Profile: %s\n", cfg.Profile)
			}
			_, _ = fmt.Fprintf(out, "  Base URL: %s\n", displayBaseURL(cfg.BaseURL))
			_, _ = fmt.Fprintf(out, "  User Key: %s\n", maskToken(cfg.UserKey))
			if cfg.Token != "" {
				_, _ = fmt.Fprintf(out, "  Token: %s\n", maskToken(cfg.Token))
			} else {
				_, _ = fmt.Fprintln(out, "  Token: none (user key only)")
			}
			_, _ = fmt.Fprintf(out, "  Source: %s\n", source)
			return nil
		}),
	}
}

func newAuthLogoutCmd() *cobra.Command {
	var forget bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		Long:  "Clear the stored access and refresh tokens. With --forget the whole profile, user key included, is deleted.",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			profile, err := config.ResolveProfileName(flags.Profile)
			if err != nil {
				return err
			}

			if forget {
				if err := config.DeleteProfile(profile); err != nil {
					return fmt.Errorf("failed to remove credentials: %w", err)
				}
				printAction(cmd, "Profile %s removed.", profile)
				return nil
			}

			if err := config.ClearSession(profile); err != nil {
				if errors.Is(err, config.ErrNotConfigured) {
					printAction(cmd, "No credentials found for profile %s.", profile)
					return nil
				}
				return fmt.Errorf("failed to clear session: %w", err)
			}
			printAction(cmd, "Logged out of profile %s (user key kept).", profile)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&forget, "forget", false, "Delete the profile including its user key")
	return cmd
}

func displayBaseURL(baseURL string) string {
	if baseURL == "" {
		return api.DefaultBaseURL
	}
	return baseURL
}

// maskToken masks a secret for display, showing only first and last 4 characters
func maskToken(token string) string {
	if len(token) < 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
