// Package resolve turns user-supplied names into TrackVia IDs.
package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Named is any resource with an ID and a display name. Group, when set, is
// shown next to the name in ambiguity errors (for views, the app name).
type Named struct {
	ID    int64
	Name  string
	Group string
}

// Match is a fuzzy match result with score.
type Match struct {
	ID    int64
	Name  string
	Group string
	Score int
}

var (
	ErrEmptyQuery = errors.New("empty search query")
	ErrEmptyItems = errors.New("no items to match against")
)

// AmbiguousError indicates several candidates matched equally well.
type AmbiguousError struct {
	Query   string
	Matches []Match
}

func (e *AmbiguousError) Error() string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "ambiguous match for %q", e.Query)
	if len(e.Matches) > 0 {
		b.WriteString(", candidates:")
		for _, m := range e.Matches {
			if m.Group != "" {
				_, _ = fmt.Fprintf(&b, "\n  %d: %s (%s)", m.ID, m.Name, m.Group)
				continue
			}
			_, _ = fmt.Fprintf(&b, "\n  %d: %s", m.ID, m.Name)
		}
	}
	return b.String()
}

type namedSourceLower []Named

func (s namedSourceLower) String(i int) string { return strings.ToLower(s[i].Name) }
func (s namedSourceLower) Len() int            { return len(s) }

// FuzzyMatch finds the best matching item by name and returns its ID.
// An exact case-insensitive name wins outright; two exact hits, or two fuzzy
// hits with the same top score, are reported as *AmbiguousError.
func FuzzyMatch(query string, items []Named) (int64, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, ErrEmptyQuery
	}
	if len(items) == 0 {
		return 0, ErrEmptyItems
	}

	var exact []Match
	for _, item := range items {
		if strings.EqualFold(item.Name, query) {
			exact = append(exact, Match{ID: item.ID, Name: item.Name, Group: item.Group})
		}
	}
	switch len(exact) {
	case 0:
	case 1:
		return exact[0].ID, nil
	default:
		return 0, &AmbiguousError{Query: query, Matches: exact}
	}

	results := fuzzy.FindFrom(strings.ToLower(query), namedSourceLower(items))
	if len(results) == 0 {
		return 0, fmt.Errorf("no match found for %q", query)
	}
	if len(results) > 1 && results[0].Score == results[1].Score {
		return 0, &AmbiguousError{
			Query:   query,
			Matches: buildMatches(items, results, 5),
		}
	}
	return items[results[0].Index].ID, nil
}

// FuzzyMatchAll returns up to limit matches ranked by score (best first).
func FuzzyMatchAll(query string, items []Named, limit int) []Match {
	query = strings.TrimSpace(query)
	if query == "" || len(items) == 0 || limit <= 0 {
		return nil
	}
	return buildMatches(items, fuzzy.FindFrom(strings.ToLower(query), namedSourceLower(items)), limit)
}

func buildMatches(items []Named, results fuzzy.Matches, limit int) []Match {
	if len(results) == 0 || limit <= 0 {
		return nil
	}
	if len(results) > limit {
		results = results[:limit]
	}
	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			ID:    items[r.Index].ID,
			Name:  items[r.Index].Name,
			Group: items[r.Index].Group,
			Score: r.Score,
		}
	}
	return matches
}
