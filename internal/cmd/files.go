package cmd

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/trackvia-tools/tv-cli/internal/api"
	"github.com/trackvia-tools/tv-cli/internal/dryrun"
	"github.com/trackvia-tools/tv-cli/internal/iocontext"
)

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "files",
		Aliases: []string{"file"},
		Short:   "Download and attach record files",
	}

	cmd.AddCommand(newFilesGetCmd())
	cmd.AddCommand(newFilesAttachCmd())
	return cmd
}

// recordTarget resolves the <view> <record> <field> arguments shared by the file commands.
func recordTarget(cmd *cobra.Command, client *api.Client, args []string) (int64, int64, string, error) {
	recordID, err := parseRecordID(args[1])
	if err != nil {
		return 0, 0, "", err
	}
	if args[2] == "" {
		return 0, 0, "", fmt.Errorf("field name is required")
	}
	viewID, err := resolveViewArg(cmd, client, args[0])
	if err != nil {
		return 0, 0, "", err
	}
	return viewID, recordID, args[2], nil
}

func newFilesGetCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:     "get <view> <record> <field>",
		Aliases: []string{"download"},
		Short:   "Download the file stored in a record field",
		Example: `  tv files get 1719 42 "Receipt" --out receipt.pdf`,
		Args:    cobra.ExactArgs(3),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			viewID, recordID, field, err := recordTarget(cmd, client, args)
			if err != nil {
				return err
			}

			resp, err := client.Files().Get(cmd.Context(), viewID, recordID, field)
			if err != nil {
				return err
			}
			if resp.Kind != api.KindBytes {
				return printResponse(cmd, resp)
			}

			content := resp.Bytes()
			if outPath == "" || outPath == "-" {
				_, err := iocontext.GetIO(cmd.Context()).Out.Write(content)
				return err
			}
			if err := os.WriteFile(outPath, content, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{
					"path":         outPath,
					"bytes":        len(content),
					"content_type": resp.Header.Get("Content-Type"),
				})
			}
			printAction(cmd, "Saved %d bytes to %s", len(content), outPath)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&outPath, "out", "O", "", "Write the file here instead of stdout")
	return cmd
}

func newFilesAttachCmd() *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:     "attach <view> <record> <field> <path>",
		Aliases: []string{"upload"},
		Short:   "Attach a local file to a record field",
		Example: `  tv files attach 1719 42 "Receipt" ./receipt.pdf`,
		Args:    cobra.ExactArgs(4),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			path := args[3]
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(path))
			}
			if contentType == "" {
				contentType = http.DetectContentType(content)
			}

			client, err := getClient(cmd)
			if err != nil {
				return err
			}
			viewID, recordID, field, err := recordTarget(cmd, client, args)
			if err != nil {
				return err
			}

			preview := dryrun.New("attach", filepath.Base(path), http.MethodPost,
				fmt.Sprintf("/openapi/views/%d/records/%d/files/%s", viewID, recordID, field)).
				WithDetail("bytes", len(content)).
				WithDetail("content_type", contentType)
			if done, err := maybeDryRun(cmd, preview); done {
				return err
			}

			resp, err := client.Files().Attach(cmd.Context(), viewID, recordID, field, api.FilePayload{
				Name:        filepath.Base(path),
				ContentType: contentType,
				Content:     content,
			})
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResponse(cmd, resp)
			}
			printAction(cmd, "Attached %s to record %d (%s)", filepath.Base(path), recordID, field)
			return nil
		}),
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "MIME type of the file (default: guessed from the name)")
	return cmd
}
