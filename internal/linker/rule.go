package linker

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	matchContains = "contains:"
	matchPrefix   = "prefix:"
	matchNumeric  = "numeric"
)

// Rule links a payment to a record in another view when the payment
// reference matches. Match is one of "contains:<text>", "prefix:<text>" or
// "numeric" (every character a decimal digit). Matching is case-sensitive.
type Rule struct {
	Name      string `mapstructure:"name" json:"name" yaml:"name"`
	Match     string `mapstructure:"match" json:"match" yaml:"match"`
	View      int64  `mapstructure:"view" json:"view" yaml:"view"`
	LinkField string `mapstructure:"link_field" json:"link_field" yaml:"link_field"`
}

// Matches reports whether reference satisfies the rule.
func (r Rule) Matches(reference string) bool {
	switch {
	case strings.HasPrefix(r.Match, matchContains):
		return strings.Contains(reference, strings.TrimPrefix(r.Match, matchContains))
	case strings.HasPrefix(r.Match, matchPrefix):
		return strings.HasPrefix(reference, strings.TrimPrefix(r.Match, matchPrefix))
	case r.Match == matchNumeric:
		return isDecimal(reference)
	}
	return false
}

func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if r.View <= 0 {
		return fmt.Errorf("rule %q: view must be a positive view ID", r.Name)
	}
	if strings.TrimSpace(r.LinkField) == "" {
		return fmt.Errorf("rule %q: link_field is required", r.Name)
	}
	switch {
	case r.Match == matchNumeric:
	case strings.HasPrefix(r.Match, matchContains) && len(r.Match) > len(matchContains):
	case strings.HasPrefix(r.Match, matchPrefix) && len(r.Match) > len(matchPrefix):
	default:
		return fmt.Errorf("rule %q: invalid match %q (use contains:<text>, prefix:<text> or numeric)", r.Name, r.Match)
	}
	return nil
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
