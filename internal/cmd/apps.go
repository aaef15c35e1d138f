package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/trackvia-tools/tv-cli/internal/api"
)

func newAppsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "apps",
		Aliases: []string{"app"},
		Short:   "List applications",
	}

	cmd.AddCommand(NewListCommand(ListConfig[api.App]{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List applications in the account",
		Example: "  tv apps list\n  tv apps list -o json",
		Fetch: func(ctx context.Context, client *api.Client, _ []string, _ api.Page) (ListResult[api.App], error) {
			resp, err := client.Apps().List(ctx)
			if err != nil {
				return ListResult[api.App]{}, err
			}
			apps, err := api.DecodeApps(resp)
			if err != nil {
				return ListResult[api.App]{}, err
			}
			raw, err := resp.RawJSON()
			if err != nil {
				return ListResult[api.App]{}, err
			}
			return ListResult[api.App]{Items: apps, Raw: raw}, nil
		},
		Headers: []string{"ID", "NAME"},
		RowFunc: func(app api.App, _ []string) []string {
			return []string{strconv.FormatInt(int64(app.ID), 10), app.Name}
		},
		EmptyMessage: "No applications found",
	}))

	return cmd
}
