package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/trackvia-tools/tv-cli/internal/api"
)

func newViewsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "views",
		Aliases: []string{"view"},
		Short:   "List and inspect views",
	}

	cmd.AddCommand(NewListCommand(ListConfig[api.View]{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List views visible to the user",
		Example: "  tv views list\n  tv views list -q '.[] | select(.applicationName == \"Billing\")'",
		Fetch: func(ctx context.Context, client *api.Client, _ []string, _ api.Page) (ListResult[api.View], error) {
			resp, err := client.Views().List(ctx)
			if err != nil {
				return ListResult[api.View]{}, err
			}
			views, err := api.DecodeViews(resp)
			if err != nil {
				return ListResult[api.View]{}, err
			}
			raw, err := resp.RawJSON()
			if err != nil {
				return ListResult[api.View]{}, err
			}
			return ListResult[api.View]{Items: views, Raw: raw}, nil
		},
		Headers: []string{"ID", "NAME", "APP"},
		RowFunc: func(v api.View, _ []string) []string {
			return []string{strconv.FormatInt(int64(v.ID), 10), v.Name, v.ApplicationName}
		},
		EmptyMessage: "No views found",
	}))
	cmd.AddCommand(newViewsGetCmd())

	return cmd
}

func newViewsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <view>",
		Short: "Show a view's field structure and first page of records",
		Long:  "Show a view. <view> is a numeric view ID or a (fuzzy) view name.",
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			viewID, err := resolveViewArg(cmd, client, args[0])
			if err != nil {
				return err
			}

			resp, err := client.Views().Get(cmd.Context(), viewID)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}

			page, err := api.DecodeRecordPage(resp)
			if err != nil {
				return err
			}
			f := newFormatter(cmd)
			if len(page.Structure) == 0 {
				f.Empty("View has no readable fields")
				return nil
			}
			f.StartTable([]string{"FIELD", "TYPE", "REQUIRED", "UNIQUE"})
			for _, field := range page.Structure {
				f.Row(field.Name, field.Type, yesNo(field.Required), yesNo(field.Unique))
			}
			if err := f.EndTable(); err != nil {
				return err
			}
			f.Empty(fmt.Sprintf("View %d: %d records", viewID, page.TotalCount))
			return nil
		}),
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
