// Package filter applies jq expressions (--query) to command output.
package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// NormalizeExpression fixes shell-escaped operators in jq expressions.
// Zsh escapes ! to \! even in single quotes, breaking operators like !=.
func NormalizeExpression(expr string) string {
	return strings.ReplaceAll(strings.TrimSpace(expr), `\!`, `!`)
}

// Compile parses a jq expression so callers can reject it before doing any work.
func Compile(expression string) (*gojq.Query, error) {
	query, err := gojq.Parse(NormalizeExpression(expression))
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	return query, nil
}

// Apply runs a jq expression against data, which must be built from the
// types encoding/json produces (map[string]any, []any, float64, string, bool, nil).
// A single result is returned as-is; several results are returned as a slice.
func Apply(data any, expression string) (any, error) {
	if strings.TrimSpace(expression) == "" {
		return data, nil
	}

	query, err := Compile(expression)
	if err != nil {
		return nil, err
	}

	results, err := runQuery(query, data)
	if err != nil {
		return nil, err
	}
	return collapseQueryResults(results), nil
}

// ApplyFromJSON decodes jsonData and applies the expression.
func ApplyFromJSON(jsonData []byte, expression string) (any, error) {
	var data any
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return Apply(data, expression)
}

// ApplyToValue round-trips v through encoding/json, which turns structs and
// json.Number into values gojq accepts, then applies the expression.
func ApplyToValue(v any, expression string) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode filter input: %w", err)
	}
	return ApplyFromJSON(data, expression)
}

func runQuery(query *gojq.Query, data any) ([]any, error) {
	iter := query.Run(data)

	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("filter error: %w", err)
		}
		results = append(results, v)
	}
	return results, nil
}

func collapseQueryResults(results []any) any {
	if len(results) == 1 {
		return results[0]
	}
	return results
}
