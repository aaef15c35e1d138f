package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/trackvia-tools/tv-cli/internal/api"
	"github.com/trackvia-tools/tv-cli/internal/debug"
	"github.com/trackvia-tools/tv-cli/internal/dryrun"
	"github.com/trackvia-tools/tv-cli/internal/filter"
	"github.com/trackvia-tools/tv-cli/internal/iocontext"
	"github.com/trackvia-tools/tv-cli/internal/outfmt"
)

const envOutput = "TV_OUTPUT"

// rootFlags holds global CLI flags
type rootFlags struct {
	Profile string
	BaseURL string
	Output  string
	JSON    bool
	Query   string
	Compact bool
	Debug   bool
	DryRun  bool
	Quiet   bool
	Timeout time.Duration
}

// flags holds the global command flags. It is reset at the start of every
// Execute call; reading it outside a command's RunE sees the previous run.
var flags = defaultFlags()

func defaultFlags() rootFlags {
	return rootFlags{
		Output:  defaultOutput(),
		Timeout: api.DefaultTimeout,
	}
}

func defaultOutput() string {
	if value := strings.TrimSpace(os.Getenv(envOutput)); value != "" {
		return value
	}
	return "text"
}

// loadDotEnv loads <config dir>/trackvia-cli/.env when present. Variables
// already set in the environment win.
func loadDotEnv() {
	dir, err := os.UserConfigDir()
	if err != nil {
		return
	}
	path := filepath.Join(dir, "trackvia-cli", ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// Execute runs the root command
func Execute(ctx context.Context, args []string) error {
	loadDotEnv()
	flags = defaultFlags()

	root := &cobra.Command{
		Use:                "tv",
		Short:              "CLI for the TrackVia REST API",
		Long:               "Query and update TrackVia views and records, and run the payment linking job.",
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableSuggestions: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if flags.JSON {
				if cmd.Flags().Changed("output") && flags.Output != "json" {
					return fmt.Errorf("--json conflicts with --output %s", flags.Output)
				}
				flags.Output = "json"
			}
			mode, err := outfmt.Parse(flags.Output)
			if err != nil {
				return err
			}
			if flags.Query != "" && mode == outfmt.Text {
				if cmd.Flags().Changed("output") {
					return fmt.Errorf("--query requires --output json or yaml")
				}
				mode = outfmt.JSON
			}
			ctx = outfmt.WithMode(ctx, mode)
			ctx = outfmt.WithCompact(ctx, flags.Compact)

			if flags.Query != "" {
				if _, err := filter.Compile(flags.Query); err != nil {
					return err
				}
				ctx = outfmt.WithQuery(ctx, flags.Query)
			}

			if flags.Timeout < 0 {
				return fmt.Errorf("--timeout must be >= 0")
			}

			ioStreams := iocontext.DefaultIO()
			if flags.Quiet {
				ioStreams.ErrOut = io.Discard
				if mode == outfmt.Text {
					ioStreams.Out = io.Discard
				}
			}
			ctx = iocontext.WithIO(ctx, ioStreams)
			cmd.SetOut(ioStreams.Out)
			cmd.SetErr(ioStreams.ErrOut)

			logger := debug.SetupLogger(flags.Debug)
			ctx = debug.WithDebug(ctx, flags.Debug)
			ctx = debug.WithLogger(ctx, logger)

			ctx = dryrun.WithDryRun(ctx, flags.DryRun)

			cmd.SetContext(ctx)
			return nil
		},
	}

	root.SetContext(ctx)
	root.SetArgs(args)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.Profile, "profile", "", "Credential profile to use (env TRACKVIA_PROFILE)")
	pf.StringVar(&flags.BaseURL, "base-url", "", "TrackVia API base URL (env TRACKVIA_BASE_URL)")
	pf.DurationVar(&flags.Timeout, "timeout", flags.Timeout, "HTTP request timeout (e.g., 30s, 2m)")
	pf.StringVarP(&flags.Output, "output", "o", flags.Output, "Output format: text|json|yaml (env TV_OUTPUT)")
	pf.BoolVar(&flags.JSON, "json", false, "Shorthand for --output json")
	pf.StringVarP(&flags.Query, "query", "q", "", "JQ expression to filter JSON/YAML output")
	pf.BoolVar(&flags.Compact, "compact-json", false, "Compact JSON output (no indentation)")
	pf.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	pf.BoolVar(&flags.DryRun, "dry-run", false, "Preview changes without executing")
	pf.BoolVarP(&flags.Quiet, "quiet", "Q", false, "Suppress non-essential output")

	root.AddCommand(newAuthCmd())
	root.AddCommand(newAppsCmd())
	root.AddCommand(newViewsCmd())
	root.AddCommand(newRecordsCmd())
	root.AddCommand(newFilesCmd())
	root.AddCommand(newUsersCmd())
	root.AddCommand(newLinkCmd())
	root.AddCommand(newVersionCmd())

	targetCmd, err := root.ExecuteC()
	if err != nil {
		if !errors.Is(err, errAlreadyHandled) {
			_, _ = fmt.Fprintln(root.ErrOrStderr(), enhanceUnknownError(err, root, targetCmd)) //nolint:errcheck
		}
		return err
	}
	return nil
}

// enhanceUnknownError adds "did you mean?" suggestions to unknown command/flag errors.
func enhanceUnknownError(err error, root *cobra.Command, targetCmd *cobra.Command) string {
	msg := err.Error()

	if strings.Contains(msg, "unknown command") {
		if unknown := extractQuoted(msg); unknown != "" {
			parent := root
			if targetCmd != nil {
				parent = targetCmd
			}
			var names []string
			for _, c := range parent.Commands() {
				if c.IsAvailableCommand() {
					names = append(names, c.Name())
					names = append(names, c.Aliases...)
				}
			}
			if suggestion := suggestCommand(unknown, names); suggestion != "" {
				return fmt.Sprintf("%s\n\nDid you mean %q?", msg, suggestion)
			}
		}
	}

	if strings.Contains(msg, "unknown flag") || strings.Contains(msg, "unknown shorthand flag") {
		if unknown := extractFlag(msg); unknown != "" {
			seen := map[string]bool{}
			var names []string
			add := func(fs *pflag.FlagSet) {
				fs.VisitAll(func(f *pflag.Flag) {
					if name := "--" + f.Name; !seen[name] {
						seen[name] = true
						names = append(names, name)
					}
				})
			}
			helpCmd := "tv --help"
			if targetCmd != nil {
				add(targetCmd.Flags())
				add(targetCmd.InheritedFlags())
				helpCmd = targetCmd.CommandPath() + " --help"
			} else {
				add(root.PersistentFlags())
			}
			if suggestion := suggestFlag(unknown, names); suggestion != "" {
				return fmt.Sprintf("%s\n\nDid you mean %q?\nRun %q to see supported flags.", msg, suggestion, helpCmd)
			}
			return fmt.Sprintf("%s\n\nRun %q to see supported flags.", msg, helpCmd)
		}
	}

	return msg
}

// extractQuoted extracts the first double-quoted substring from s.
func extractQuoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

// extractFlag extracts a flag name (e.g., "--foo") from an error message.
func extractFlag(s string) string {
	idx := strings.Index(s, "--")
	if idx < 0 {
		return ""
	}
	rest := s[idx:]
	if end := strings.IndexByte(rest, ' '); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimRight(rest, ".,;:!?\"'")
}
