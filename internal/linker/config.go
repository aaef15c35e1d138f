package linker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/trackvia-tools/tv-cli/internal/ledger"
)

// EnvPrefix prefixes environment overrides, e.g. TV_LINK_PAGE_SIZE or
// TV_LINK_LEDGER_TYPE.
const EnvPrefix = "TV_LINK"

// Config describes one linking job.
type Config struct {
	PaymentsView       int64        `mapstructure:"payments_view" json:"payments_view" yaml:"payments_view"`
	ReferenceField     string       `mapstructure:"reference_field" json:"reference_field" yaml:"reference_field"`
	MinReferenceLength int          `mapstructure:"min_reference_length" json:"min_reference_length" yaml:"min_reference_length"`
	PageSize           int          `mapstructure:"page_size" json:"page_size" yaml:"page_size"`
	AllPages           bool         `mapstructure:"all_pages" json:"all_pages" yaml:"all_pages"`
	Rules              []Rule       `mapstructure:"rules" json:"rules" yaml:"rules"`
	Ledger             LedgerConfig `mapstructure:"ledger" json:"ledger" yaml:"ledger"`
}

// LedgerConfig selects where completed links are remembered.
type LedgerConfig struct {
	Type     string        `mapstructure:"type" json:"type" yaml:"type"`
	Path     string        `mapstructure:"path" json:"path,omitempty" yaml:"path,omitempty"`
	RedisURL string        `mapstructure:"redis_url" json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	Prefix   string        `mapstructure:"prefix" json:"prefix,omitempty" yaml:"prefix,omitempty"`
	TTL      time.Duration `mapstructure:"ttl" json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// Options converts the config into ledger.Open options.
func (l LedgerConfig) Options() ledger.Options {
	return ledger.Options{
		Type:     l.Type,
		Path:     l.Path,
		RedisURL: l.RedisURL,
		Prefix:   l.Prefix,
		TTL:      l.TTL,
	}
}

// DefaultRules links counter tickets, recurring charges and site visits.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "counter-ticket", Match: "contains:C", View: 1361, LinkField: "Link to Counter Ticket"},
		{Name: "recurring-charge", Match: "contains:M", View: 1837, LinkField: "Link to ToQBO Reoccurring Charges"},
		{Name: "site-visit", Match: "numeric", View: 1358, LinkField: "Link to Site Visit"},
	}
}

// DefaultConfig returns the built-in job.
func DefaultConfig() Config {
	return Config{
		PaymentsView:       1719,
		ReferenceField:     "Payment Reference",
		MinReferenceLength: 6,
		PageSize:           10,
		Rules:              DefaultRules(),
		Ledger:             LedgerConfig{Type: "none"},
	}
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("payments_view", def.PaymentsView)
	v.SetDefault("reference_field", def.ReferenceField)
	v.SetDefault("min_reference_length", def.MinReferenceLength)
	v.SetDefault("page_size", def.PageSize)
	v.SetDefault("all_pages", def.AllPages)
	v.SetDefault("ledger.type", def.Ledger.Type)
	v.SetDefault("ledger.path", "")
	v.SetDefault("ledger.redis_url", "")
	v.SetDefault("ledger.prefix", "")
	v.SetDefault("ledger.ttl", "0s")

	rules := make([]map[string]any, 0, len(def.Rules))
	for _, r := range def.Rules {
		rules = append(rules, map[string]any{
			"name":       r.Name,
			"match":      r.Match,
			"view":       r.View,
			"link_field": r.LinkField,
		})
	}
	v.SetDefault("rules", rules)
}

// LoadConfig builds the job configuration from defaults, an optional YAML
// file, and TV_LINK_* environment variables, in increasing precedence.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read link config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal link config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the job configuration.
func (c Config) Validate() error {
	var errs []error
	if c.PaymentsView <= 0 {
		errs = append(errs, fmt.Errorf("payments_view must be a positive view ID"))
	}
	if strings.TrimSpace(c.ReferenceField) == "" {
		errs = append(errs, fmt.Errorf("reference_field is required"))
	}
	if c.MinReferenceLength < 0 {
		errs = append(errs, fmt.Errorf("min_reference_length must be >= 0"))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page_size must be positive"))
	}
	if len(c.Rules) == 0 {
		errs = append(errs, fmt.Errorf("at least one rule is required"))
	}
	seen := map[string]bool{}
	for i, r := range c.Rules {
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("rules[%d]: %w", i, err))
		}
		if seen[r.Name] {
			errs = append(errs, fmt.Errorf("rules[%d]: duplicate rule name %q", i, r.Name))
		}
		seen[r.Name] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid link config: %w", errors.Join(errs...))
	}
	return nil
}
