package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/trackvia-tools/tv-cli/internal/debug"
	"github.com/trackvia-tools/tv-cli/internal/dryrun"
	"github.com/trackvia-tools/tv-cli/internal/iocontext"
	"github.com/trackvia-tools/tv-cli/internal/ledger"
	"github.com/trackvia-tools/tv-cli/internal/linker"
)

// linkFlags override the loaded job configuration when set.
type linkFlags struct {
	configPath string
	allPages   bool
	ledgerType string
	ledgerPath string
	redisURL   string
}

func (f *linkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Link job YAML file (defaults and TV_LINK_* env apply)")
	cmd.Flags().BoolVar(&f.allPages, "all-pages", false, "Process every page of the payments view, not just the first")
	cmd.Flags().StringVar(&f.ledgerType, "ledger", "", "Ledger backend: none, bbolt or redis")
	cmd.Flags().StringVar(&f.ledgerPath, "ledger-path", "", "bbolt ledger file")
	cmd.Flags().StringVar(&f.redisURL, "redis-url", "", "Redis ledger URL (redis://...)")
}

func (f *linkFlags) load(cmd *cobra.Command) (linker.Config, error) {
	cfg, err := linker.LoadConfig(f.configPath)
	if err != nil {
		return linker.Config{}, err
	}
	if cmd.Flags().Changed("all-pages") {
		cfg.AllPages = f.allPages
	}
	if f.ledgerType != "" {
		cfg.Ledger.Type = f.ledgerType
	}
	if f.ledgerPath != "" {
		cfg.Ledger.Path = f.ledgerPath
		if f.ledgerType == "" && cfg.Ledger.Type == "none" {
			cfg.Ledger.Type = "bbolt"
		}
	}
	if f.redisURL != "" {
		cfg.Ledger.RedisURL = f.redisURL
		if f.ledgerType == "" && cfg.Ledger.Type == "none" {
			cfg.Ledger.Type = "redis"
		}
	}
	return cfg, nil
}

func newLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link payment records to their source records",
		Long: `Link payment records to the records their reference points at.

Each payment's reference is checked against the configured rules. For every
rule that matches, the target view is searched for the reference and the
first hit is written into the payment's link field.`,
	}

	cmd.AddCommand(newLinkPaymentsCmd())
	cmd.AddCommand(newLinkConfigCmd())
	return cmd
}

func newLinkPaymentsCmd() *cobra.Command {
	var lf linkFlags

	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Run the payment linking job",
		Example: `  tv link payments
  tv link payments --dry-run -o json
  tv link payments --all-pages --ledger bbolt --ledger-path ~/.local/share/tv/links.db`,
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := lf.load(cmd)
			if err != nil {
				return err
			}

			client, err := getClient(cmd)
			if err != nil {
				return err
			}

			store, err := ledger.Open(ctx, cfg.Ledger.Options())
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer func() {
				if cerr := store.Close(); cerr != nil {
					debug.Logger(ctx).Warn("closing ledger failed", zap.Error(cerr))
				}
			}()

			job, err := linker.New(client.Records(), cfg,
				linker.WithLedger(store),
				linker.WithLogger(debug.Logger(ctx)),
				linker.WithDryRun(dryrun.IsEnabled(ctx)),
			)
			if err != nil {
				return err
			}

			report, runErr := job.Run(ctx)
			if report != nil {
				if err := printLinkReport(cmd, report); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d payment link(s) failed; see the report for details", report.Failed)
			}
			return nil
		}),
	}

	lf.register(cmd)
	return cmd
}

func printLinkReport(cmd *cobra.Command, report *linker.Report) error {
	if isJSON(cmd) {
		return printJSON(cmd, report)
	}
	if flags.Quiet {
		return nil
	}

	f := newFormatter(cmd)
	if len(report.Outcomes) > 0 {
		f.StartTable([]string{"PAYMENT", "REFERENCE", "RULE", "TARGET", "STATUS", "ERROR"})
		for _, o := range report.Outcomes {
			target := ""
			if o.TargetID > 0 {
				target = strconv.FormatInt(o.TargetID, 10)
			}
			f.Row(strconv.FormatInt(o.PaymentID, 10), o.Reference, o.Rule, target, string(o.Status), o.Error)
		}
		if err := f.EndTable(); err != nil {
			return err
		}
	}

	out := iocontext.GetIO(cmd.Context()).Out
	verb := "linked"
	count := report.Linked
	if report.DryRun {
		verb = "planned"
		count = report.Planned
	}
	_, _ = fmt.Fprintf(out, "\nRun %s: scanned %d payment(s) on %d page(s), %s %d, skipped %d, missing %d, failed %d (%s)\n",
		report.RunID, report.Scanned, report.Pages, verb, count, report.Skipped, report.Missing, report.Failed,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return nil
}

func newLinkConfigCmd() *cobra.Command {
	var lf linkFlags

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective link job configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			cfg, err := lf.load(cmd)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printJSON(cmd, cfg)
			}
			enc := yaml.NewEncoder(iocontext.GetIO(cmd.Context()).Out)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode link config: %w", err)
			}
			return enc.Close()
		}),
	}

	lf.register(cmd)
	return cmd
}
