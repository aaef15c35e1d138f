package cmd

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/spf13/cobra"

	"github.com/trackvia-tools/tv-cli/internal/api"
	"github.com/trackvia-tools/tv-cli/internal/dryrun"
	"github.com/trackvia-tools/tv-cli/internal/resolve"
)

func newRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"record", "rec"},
		Short:   "Read and change records in a view",
		Long: `Read and change records in a view.

<view> is a numeric view ID or a view name; names are matched fuzzily and an
ambiguous name is an error listing the candidates.`,
	}

	cmd.AddCommand(newRecordsListCmd())
	cmd.AddCommand(newRecordsFindCmd())
	cmd.AddCommand(newRecordsGetCmd())
	cmd.AddCommand(newRecordsCreateCmd())
	cmd.AddCommand(newRecordsUpdateCmd())
	cmd.AddCommand(newRecordsDeleteCmd())

	return cmd
}

func recordListResult(resp *api.Response) (ListResult[api.Record], error) {
	page, err := api.DecodeRecordPage(resp)
	if err != nil {
		return ListResult[api.Record]{}, err
	}
	raw, err := resp.RawJSON()
	if err != nil {
		return ListResult[api.Record]{}, err
	}
	return ListResult[api.Record]{Items: page.Data, Raw: raw, Total: page.TotalCount}, nil
}

// recordHeaders is the union of the records' fields, "id" first.
func recordHeaders(records []api.Record) []string {
	seen := map[string]struct{}{}
	var names []string
	hasID := false
	for _, r := range records {
		for _, name := range r.Fields() {
			if name == "id" {
				hasID = true
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if hasID {
		names = append([]string{"id"}, names...)
	}
	return names
}

func recordRow(r api.Record, headers []string) []string {
	row := make([]string, len(headers))
	for i, h := range headers {
		row[i] = r.String(h)
	}
	return row
}

func newRecordsListCmd() *cobra.Command {
	return NewListCommand(ListConfig[api.Record]{
		Use:       "list <view>",
		Aliases:   []string{"ls"},
		Short:     "List records in a view",
		Example:   "  tv records list 1719\n  tv records list Payments --start 50 --max 50 -o json",
		Args:      cobra.ExactArgs(1),
		Paginated: true,
		Fetch: func(ctx context.Context, client *api.Client, args []string, page api.Page) (ListResult[api.Record], error) {
			viewID, err := resolve.ViewID(ctx, client.Views(), args[0])
			if err != nil {
				return ListResult[api.Record]{}, err
			}
			resp, err := client.Records().List(ctx, viewID, page)
			if err != nil {
				return ListResult[api.Record]{}, err
			}
			return recordListResult(resp)
		},
		HeadersFunc:  recordHeaders,
		RowFunc:      recordRow,
		EmptyMessage: "No records found",
	})
}

func newRecordsFindCmd() *cobra.Command {
	return NewListCommand(ListConfig[api.Record]{
		Use:       "find <view> <query>",
		Aliases:   []string{"search"},
		Short:     "Find records in a view matching free text",
		Example:   "  tv records find \"Counter Tickets\" C10001",
		Args:      cobra.ExactArgs(2),
		Paginated: true,
		Fetch: func(ctx context.Context, client *api.Client, args []string, page api.Page) (ListResult[api.Record], error) {
			viewID, err := resolve.ViewID(ctx, client.Views(), args[0])
			if err != nil {
				return ListResult[api.Record]{}, err
			}
			resp, err := client.Records().Find(ctx, viewID, args[1], page)
			if err != nil {
				return ListResult[api.Record]{}, err
			}
			return recordListResult(resp)
		},
		HeadersFunc:  recordHeaders,
		RowFunc:      recordRow,
		EmptyMessage: "No matching records",
	})
}

func newRecordsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <view> <record>",
		Short: "Show a record",
		Args:  cobra.ExactArgs(2),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			viewID, err := resolveViewArg(cmd, client, args[0])
			if err != nil {
				return err
			}
			recordID, err := parseRecordID(args[1])
			if err != nil {
				return err
			}

			resp, err := client.Records().Get(cmd.Context(), viewID, recordID)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			detail, err := api.DecodeRecord(resp)
			if err != nil {
				return err
			}
			return printRecordDetail(cmd, []api.Record{detail.Data})
		}),
	}
}

// printRecordDetail prints each record as FIELD/VALUE pairs.
func printRecordDetail(cmd *cobra.Command, records []api.Record) error {
	f := newFormatter(cmd)
	if len(records) == 0 {
		f.Empty("No records returned")
		return nil
	}
	for i, r := range records {
		if i > 0 {
			f.Row()
		}
		f.StartTable([]string{"FIELD", "VALUE"})
		for _, name := range r.Fields() {
			f.Row(name, r.String(name))
		}
	}
	return f.EndTable()
}

func newRecordsCreateCmd() *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "create <view>",
		Short: "Create one or more records",
		Long: `Create records in a view.

--data takes a JSON object (one record) or an array of objects. Use @file to
read it from a file or - to read it from stdin.`,
		Example: `  tv records create 1719 --data '{"Payment Reference": "C10001", "Amount": 25}'
  tv records create Payments --data @payments.json`,
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			rows, err := parseRecordData(cmd, data)
			if err != nil {
				return err
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			viewID, err := resolveViewArg(cmd, client, args[0])
			if err != nil {
				return err
			}

			preview := dryrun.New("create", fmt.Sprintf("%d record(s)", len(rows)), http.MethodPost,
				fmt.Sprintf("/openapi/views/%d/records", viewID)).
				WithBody(map[string]any{"data": rows})
			if done, err := maybeDryRun(cmd, preview); done {
				return err
			}

			resp, err := client.Records().Create(cmd.Context(), viewID, rows)
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
			for _, r := range page.Data {
				id, _ := r.ID()
				printAction(cmd, "Created record %d in view %d", id, viewID)
			}
			return nil
		}),
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "Record fields as JSON, @file or - for stdin (required)")
	return cmd
}

func newRecordsUpdateCmd() *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "update <view> <record>",
		Short: "Update fields of a record",
		Long: `Update a record. --data is a JSON object holding only the fields to change.
Use @file to read it from a file or - to read it from stdin.`,
		Example: `  tv records update 1719 42 --data '{"Link to Site Visit": 701}'`,
		Args:    cobra.ExactArgs(2),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			rows, err := parseRecordData(cmd, data)
			if err != nil {
				return err
			}
			if len(rows) != 1 {
				return fmt.Errorf("--data must be a single JSON object when updating a record")
			}
			recordID, err := parseRecordID(args[1])
			if err != nil {
				return err
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			viewID, err := resolveViewArg(cmd, client, args[0])
			if err != nil {
				return err
			}

			preview := dryrun.New("update", fmt.Sprintf("record %d", recordID), http.MethodPut,
				fmt.Sprintf("/openapi/views/%d/records/%d", viewID, recordID)).
				WithBody(map[string]any{"data": rows})
			if done, err := maybeDryRun(cmd, preview); done {
				return err
			}

			resp, err := client.Records().Update(cmd.Context(), viewID, recordID, rows)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			printAction(cmd, "Updated record %d in view %d", recordID, viewID)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "Fields to change as JSON, @file or - for stdin (required)")
	return cmd
}

func newRecordsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <view> <record>",
		Aliases: []string{"rm"},
		Short:   "Delete a record",
		Args:    cobra.ExactArgs(2),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			recordID, err := parseRecordID(args[1])
			if err != nil {
				return err
			}
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			viewID, err := resolveViewArg(cmd, client, args[0])
			if err != nil {
				return err
			}

			preview := dryrun.New("delete", fmt.Sprintf("record %d", recordID), http.MethodDelete,
				fmt.Sprintf("/openapi/views/%d/records/%d", viewID, recordID)).
				Warn("deleted records cannot be restored from the CLI")
			if done, err := maybeDryRun(cmd, preview); done {
				return err
			}

			resp, err := client.Records().Delete(cmd.Context(), viewID, recordID)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			printAction(cmd, "Deleted record %d from view %d", recordID, viewID)
			return nil
		}),
	}
}
