package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trackvia-tools/tv-cli/internal/api"
	"github.com/trackvia-tools/tv-cli/internal/debug"
	"github.com/trackvia-tools/tv-cli/internal/dryrun"
	"github.com/trackvia-tools/tv-cli/internal/iocontext"
	"github.com/trackvia-tools/tv-cli/internal/outfmt"
	"github.com/trackvia-tools/tv-cli/internal/resolve"
)

// getClient creates an API client from the resolved credentials
func getClient(cmd *cobra.Command) (*api.Client, error) {
	return newClientFactory().withLogger(debug.Logger(cmd.Context())).client()
}

func newFormatter(cmd *cobra.Command) *outfmt.Formatter {
	ioStreams := iocontext.GetIO(cmd.Context())
	return outfmt.NewFormatter(cmd.Context(), ioStreams.Out, ioStreams.ErrOut)
}

// isJSON reports whether the command writes structured (json or yaml) output.
func isJSON(cmd *cobra.Command) bool {
	return outfmt.IsStructured(cmd.Context())
}

// printJSON writes v in the structured output mode, applying --query.
func printJSON(cmd *cobra.Command, v any) error {
	if !isJSON(cmd) {
		ioStreams := iocontext.GetIO(cmd.Context())
		return outfmt.WriteJSONFiltered(ioStreams.Out, v, "", outfmt.IsCompact(cmd.Context()))
	}
	return newFormatter(cmd).Output(v)
}

// printResponse writes an API response body. JSON bodies keep their numbers
// exact; empty responses become {"status": "ok"}.
func printResponse(cmd *cobra.Command, resp *api.Response) error {
	if resp.IsEmpty() {
		return printJSON(cmd, map[string]any{"status": "ok", "status_code": resp.StatusCode})
	}
	raw, err := resp.RawJSON()
	if err != nil {
		return err
	}
	return printJSON(cmd, raw)
}

// printAction reports a completed mutation in text mode.
func printAction(cmd *cobra.Command, format string, args ...any) {
	if flags.Quiet || isJSON(cmd) {
		return
	}
	ioStreams := iocontext.GetIO(cmd.Context())
	_, _ = fmt.Fprintf(ioStreams.Out, format+"\n", args...)
}

// maybeDryRun prints the preview and returns true when --dry-run is set.
func maybeDryRun(cmd *cobra.Command, preview *dryrun.Preview) (bool, error) {
	if !dryrun.IsEnabled(cmd.Context()) {
		return false, nil
	}
	if isJSON(cmd) {
		return true, printJSON(cmd, preview)
	}
	preview.Write(iocontext.GetIO(cmd.Context()).Out)
	return true, nil
}

// resolveViewArg turns a view ID or name into an ID.
func resolveViewArg(cmd *cobra.Command, client *api.Client, arg string) (int64, error) {
	return resolve.ViewID(cmd.Context(), client.Views(), arg)
}

func parseRecordID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record ID %q: must be a positive integer", arg)
	}
	return id, nil
}

// loadAtValue returns value, or the content of the file it names when it
// starts with "@", or stdin when it is "-".
func loadAtValue(value string, in io.Reader) (string, error) {
	switch {
	case value == "-":
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	case strings.HasPrefix(value, "@"):
		data, err := os.ReadFile(strings.TrimPrefix(value, "@"))
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", strings.TrimPrefix(value, "@"), err)
		}
		return string(data), nil
	}
	return value, nil
}

// parseRecordData reads --data: a JSON object or an array of objects.
func parseRecordData(cmd *cobra.Command, value string) ([]map[string]any, error) {
	if strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("--data is required")
	}
	raw, err := loadAtValue(value, iocontext.GetIO(cmd.Context()).In)
	if err != nil {
		return nil, err
	}
	raw = strings.TrimSpace(raw)

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if strings.HasPrefix(raw, "[") {
		var rows []map[string]any
		if err := dec.Decode(&rows); err != nil {
			return nil, fmt.Errorf("invalid --data JSON: %w", err)
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("--data must include at least one record")
		}
		return rows, nil
	}
	var row map[string]any
	if err := dec.Decode(&row); err != nil || row == nil {
		return nil, fmt.Errorf("invalid --data JSON: must be an object or an array of objects")
	}
	return []map[string]any{row}, nil
}

// errAlreadyHandled is a sentinel error indicating the error was already printed to stderr.
// Commands using RunE return this to signal Cobra that an error occurred (for exit code)
// without Cobra printing it again (since SilenceErrors is true on root command).
var errAlreadyHandled = errors.New("error already handled")

type handledError struct {
	err      error
	exitCode int
}

func (e *handledError) Error() string {
	return e.err.Error()
}

func (e *handledError) Unwrap() error {
	return errAlreadyHandled
}

func (e *handledError) ExitCode() int {
	return e.exitCode
}

// printJSONErr writes a JSON value to stderr.
func printJSONErr(cmd *cobra.Command, v any) error {
	return outfmt.WriteJSON(iocontext.GetIO(cmd.Context()).ErrOut, v)
}

// RunE wraps a command function with enhanced error handling
func RunE(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err != nil {
			if isJSON(cmd) {
				if structured := api.StructuredErrorFromError(err); structured != nil {
					_ = printJSONErr(cmd, structured)
				}
			} else {
				_, _ = fmt.Fprint(cmd.ErrOrStderr(), HandleError(err))
			}
			// Return a handled error so tests can still inspect the original message.
			return &handledError{err: err, exitCode: ExitCode(err)}
		}
		return nil
	}
}
