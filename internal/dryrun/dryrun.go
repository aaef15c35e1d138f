// Package dryrun previews mutating requests without sending them.
package dryrun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

type contextKey string

const dryRunKey contextKey = "dry_run_enabled"

// WithDryRun returns a context with dry-run mode enabled/disabled.
func WithDryRun(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, dryRunKey, enabled)
}

// IsEnabled returns true if dry-run mode is enabled.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(dryRunKey).(bool); ok {
		return v
	}
	return false
}

// Preview describes the request a mutating command would have sent.
type Preview struct {
	Operation string         `json:"operation"`
	Resource  string         `json:"resource"`
	Method    string         `json:"method"`
	Endpoint  string         `json:"endpoint"`
	Body      any            `json:"body,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
	DryRun    bool           `json:"dry_run"`
}

// New creates a preview for method and endpoint.
func New(operation, resource, method, endpoint string) *Preview {
	return &Preview{
		Operation: operation,
		Resource:  resource,
		Method:    method,
		Endpoint:  endpoint,
		DryRun:    true,
	}
}

// WithBody sets the request body shown in the preview.
func (p *Preview) WithBody(body any) *Preview {
	p.Body = body
	return p
}

// WithDetail adds a key/value line to the preview.
func (p *Preview) WithDetail(key string, value any) *Preview {
	if p.Details == nil {
		p.Details = map[string]any{}
	}
	p.Details[key] = value
	return p
}

// Warn appends a warning.
func (p *Preview) Warn(msg string) *Preview {
	p.Warnings = append(p.Warnings, msg)
	return p
}

// Write renders the preview for humans. Details are printed in key order.
func (p *Preview) Write(w io.Writer) {
	rule := strings.Repeat("-", 40)
	_, _ = fmt.Fprintf(w, "[DRY-RUN] Would %s %s\n", p.Operation, p.Resource)
	_, _ = fmt.Fprintln(w, rule)
	_, _ = fmt.Fprintf(w, "  %s %s\n", p.Method, p.Endpoint)

	if len(p.Details) > 0 {
		keys := make([]string, 0, len(p.Details))
		for k := range p.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(w, "  %s: %v\n", k, p.Details[k])
		}
	}

	if p.Body != nil {
		data, err := json.MarshalIndent(p.Body, "  ", "  ")
		if err == nil {
			_, _ = fmt.Fprintf(w, "  body: %s\n", data)
		}
	}

	for _, warning := range p.Warnings {
		_, _ = fmt.Fprintf(w, "  ! %s\n", warning)
	}

	_, _ = fmt.Fprintln(w, rule)
	_, _ = fmt.Fprintln(w, "No changes made (dry-run mode)")
}
