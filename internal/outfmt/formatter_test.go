package outfmt

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestFormatter_Output(t *testing.T) {
	data := map[string]any{"name": "Payments", "id": 1719}

	tests := []struct {
		name  string
		mode  Mode
		query string
		want  string
	}{
		{"json", JSON, "", "\"name\": \"Payments\""},
		{"json query", JSON, ".id", "1719"},
		{"yaml", YAML, "", "name: Payments"},
		{"yaml query", YAML, ".name", "Payments"},
		{"text writes nothing", Text, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			ctx := WithQuery(WithMode(context.Background(), tt.mode), tt.query)
			f := NewFormatter(ctx, &out, &out)
			if err := f.Output(data); err != nil {
				t.Fatalf("Output: %v", err)
			}
			if tt.want == "" {
				if out.Len() != 0 {
					t.Errorf("expected no output, got %q", out.String())
				}
				return
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output %q does not contain %q", out.String(), tt.want)
			}
		})
	}
}

func TestFormatter_Table(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(WithMode(context.Background(), Text), &buf, &buf)

	if !f.StartTable([]string{"ID", "NAME"}) {
		t.Fatal("StartTable should return true in text mode")
	}
	f.Row("1719", "Payments")
	_ = f.EndTable()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[1], "Payments") {
		t.Errorf("table = %q", buf.String())
	}
}

func TestFormatter_TableSkippedInStructuredMode(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(WithMode(context.Background(), YAML), &buf, &buf)
	if f.StartTable([]string{"ID"}) {
		t.Error("StartTable should return false in yaml mode")
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestFormatter_Empty(t *testing.T) {
	var out, errOut bytes.Buffer
	f := NewFormatter(context.Background(), &out, &errOut)

	f.Empty("No records found")

	if !strings.Contains(errOut.String(), "No records found") || out.Len() != 0 {
		t.Error("empty message should be written to stderr only")
	}
}

func TestCell(t *testing.T) {
	long := strings.Repeat("x", MaxCellWidth+10)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Payments", "Payments"},
		{"multi-line note", "line one\nline two\r\n\tthree", "line one line two three"},
		{"blank", "  ", ""},
		{"exact width", strings.Repeat("y", MaxCellWidth), strings.Repeat("y", MaxCellWidth)},
		{"truncated", long, strings.Repeat("x", MaxCellWidth-3) + "..."},
		{"runes", strings.Repeat("é", MaxCellWidth+1), strings.Repeat("é", MaxCellWidth-3) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cell(tt.in); got != tt.want {
				t.Errorf("Cell(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatter_RowKeepsColumnsAligned(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(WithMode(context.Background(), Text), &buf, &buf)

	f.StartTable([]string{"ID", "NOTES"})
	f.Row("1", "called back\nleft voicemail")
	_ = f.EndTable()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("table = %q", buf.String())
	}
	if !strings.HasSuffix(lines[1], "called back left voicemail") {
		t.Errorf("row = %q", lines[1])
	}
}
