package outfmt

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/trackvia-tools/tv-cli/internal/filter"
)

type queryKey struct{}

// WithQuery adds a jq query to the context
func WithQuery(ctx context.Context, query string) context.Context {
	return context.WithValue(ctx, queryKey{}, query)
}

// GetQuery retrieves the jq query from context
func GetQuery(ctx context.Context) string {
	if q, ok := ctx.Value(queryKey{}).(string); ok {
		return q
	}
	return ""
}

// ApplyQuery applies a jq query to v. Without a query v is returned unchanged,
// except that raw JSON is decoded so every structured writer sees plain values.
func ApplyQuery(v any, query string) (any, error) {
	if query == "" {
		if raw, ok := v.(json.RawMessage); ok {
			return decodeRaw(raw)
		}
		return v, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return filter.ApplyFromJSON(raw, query)
	}
	return filter.ApplyToValue(v, query)
}

// WriteJSONFiltered writes JSON with optional jq filtering.
func WriteJSONFiltered(w io.Writer, v any, query string, compact bool) error {
	result, err := ApplyQuery(v, query)
	if err != nil {
		return err
	}
	return WriteJSONMaybeCompact(w, result, compact)
}

// decodeRaw keeps numbers as json.Number so record IDs print exactly.
func decodeRaw(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
