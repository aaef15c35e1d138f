package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trackvia-tools/tv-cli/internal/api"
)

// ListResult is one fetched listing. Raw, when set, is printed in structured
// modes instead of Items so no field the service returned is lost.
type ListResult[T any] struct {
	Items []T
	Raw   any
	Total int
}

// ListConfig defines how a list command behaves
type ListConfig[T any] struct {
	Use     string
	Aliases []string
	Short   string
	Long    string
	Example string
	Args    cobra.PositionalArgs
	// Paginated adds --start and --max.
	Paginated bool
	Fetch     func(ctx context.Context, client *api.Client, args []string, page api.Page) (ListResult[T], error)
	// Headers and RowFunc render text mode. HeadersFunc, when set, derives the
	// headers from the fetched items.
	Headers      []string
	HeadersFunc  func(items []T) []string
	RowFunc      func(item T, headers []string) []string
	EmptyMessage string
}

// NewListCommand creates a cobra command from ListConfig
func NewListCommand[T any](cfg ListConfig[T]) *cobra.Command {
	var start, size int

	args := cfg.Args
	if args == nil {
		args = cobra.NoArgs
	}

	cmd := &cobra.Command{
		Use:     cfg.Use,
		Aliases: cfg.Aliases,
		Short:   cfg.Short,
		Long:    cfg.Long,
		Example: cfg.Example,
		Args:    args,
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			if start < 0 {
				return fmt.Errorf("--start must be >= 0")
			}
			if size < 0 {
				return fmt.Errorf("--max must be >= 0")
			}

			client, err := getClient(cmd)
			if err != nil {
				return err
			}

			result, err := cfg.Fetch(cmd.Context(), client, args, api.Page{Start: start, Max: size})
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				if result.Raw != nil {
					return printJSON(cmd, result.Raw)
				}
				items := result.Items
				if items == nil {
					items = []T{}
				}
				return printJSON(cmd, items)
			}

			f := newFormatter(cmd)
			if len(result.Items) == 0 {
				if cfg.EmptyMessage != "" {
					f.Empty(cfg.EmptyMessage)
				}
				return nil
			}

			headers := cfg.Headers
			if cfg.HeadersFunc != nil {
				headers = cfg.HeadersFunc(result.Items)
			}
			f.StartTable(headers)
			for _, item := range result.Items {
				f.Row(cfg.RowFunc(item, headers)...)
			}
			if err := f.EndTable(); err != nil {
				return err
			}
			if cfg.Paginated && result.Total > start+len(result.Items) {
				f.Empty(fmt.Sprintf("Showing %d-%d of %d (use --start %d for more)",
					start+1, start+len(result.Items), result.Total, start+len(result.Items)))
			}
			return nil
		}),
	}

	if cfg.Paginated {
		cmd.Flags().IntVar(&start, "start", 0, "Index of the first item")
		cmd.Flags().IntVar(&size, "max", api.DefaultPageSize, "Maximum number of items")
	}
	return cmd
}
