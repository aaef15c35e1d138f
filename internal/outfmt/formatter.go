package outfmt

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"
)

// Formatter handles output formatting for commands.
type Formatter struct {
	ctx       context.Context
	out       io.Writer
	errOut    io.Writer
	tabWriter *tabwriter.Writer
}

// NewFormatter creates a new Formatter
func NewFormatter(ctx context.Context, out, errOut io.Writer) *Formatter {
	return &Formatter{
		ctx:       ctx,
		out:       out,
		errOut:    errOut,
		tabWriter: tabwriter.NewWriter(out, 0, 4, 2, ' ', 0),
	}
}

// Output writes data in the context's structured mode after applying the
// context query. It does nothing in text mode.
func (f *Formatter) Output(data any) error {
	switch ModeFromContext(f.ctx) {
	case JSON:
		return WriteJSONFiltered(f.out, data, GetQuery(f.ctx), IsCompact(f.ctx))
	case YAML:
		filtered, err := ApplyQuery(data, GetQuery(f.ctx))
		if err != nil {
			return err
		}
		return WriteYAML(f.out, filtered)
	}
	return nil
}

// StartTable writes table headers. Returns true if in text mode.
func (f *Formatter) StartTable(headers []string) bool {
	if IsStructured(f.ctx) {
		return false
	}
	f.Row(headers...)
	return true
}

// MaxCellWidth caps table cells, in runes. Longer values end in "...".
const MaxCellWidth = 60

// Row writes a single row to the table. Cells are flattened to one line so
// multi-line record fields do not break the column layout.
func (f *Formatter) Row(columns ...string) {
	for i, col := range columns {
		if i > 0 {
			_, _ = fmt.Fprint(f.tabWriter, "\t")
		}
		_, _ = fmt.Fprint(f.tabWriter, Cell(col))
	}
	_, _ = fmt.Fprintln(f.tabWriter)
}

// Cell collapses whitespace runs (tabs and newlines included) into single
// spaces and truncates the result to MaxCellWidth runes.
func Cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= MaxCellWidth {
		return s
	}
	r := []rune(s)
	return string(r[:MaxCellWidth-3]) + "..."
}

// EndTable flushes the table output.
func (f *Formatter) EndTable() error {
	return f.tabWriter.Flush()
}

// Empty writes a message to stderr indicating no results.
func (f *Formatter) Empty(message string) {
	_, _ = fmt.Fprintln(f.errOut, message)
}
