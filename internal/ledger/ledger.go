// Package ledger records which payments have already been linked so repeated
// link runs do not re-issue the same updates.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Key identifies one link: a payment record and the rule that linked it.
type Key struct {
	PaymentID int64
	Rule      string
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%s", k.PaymentID, k.Rule)
}

// Entry is what a store remembers about a link.
type Entry struct {
	TargetID int64     `json:"target_id"`
	LinkedAt time.Time `json:"linked_at"`
}

// Store tracks completed links.
type Store interface {
	Linked(ctx context.Context, key Key) (bool, error)
	MarkLinked(ctx context.Context, key Key, targetID int64) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	// Type is "none", "bbolt" or "redis".
	Type string
	// Path is the bbolt database file.
	Path string
	// RedisURL is a redis:// or rediss:// URL.
	RedisURL string
	// Prefix namespaces redis keys.
	Prefix string
	// TTL expires entries; zero keeps them forever.
	TTL time.Duration
}

const defaultRedisPrefix = "tv:link:"

// Types lists the accepted backend names.
var Types = []string{"none", "bbolt", "redis"}

// Open creates the configured store.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.TrimSpace(strings.ToLower(opts.Type)) {
	case "", "none", "disabled":
		return None(), nil
	case "bbolt", "bolt":
		if strings.TrimSpace(opts.Path) == "" {
			return nil, fmt.Errorf("bbolt ledger requires a path")
		}
		return openBolt(opts.Path, opts.TTL)
	case "redis":
		if strings.TrimSpace(opts.RedisURL) == "" {
			return nil, fmt.Errorf("redis ledger requires a URL")
		}
		prefix := opts.Prefix
		if prefix == "" {
			prefix = defaultRedisPrefix
		}
		return openRedis(ctx, opts.RedisURL, prefix, opts.TTL)
	default:
		return nil, fmt.Errorf("unsupported ledger type %q (use %s)", opts.Type, strings.Join(Types, ", "))
	}
}

// None returns a store that remembers nothing, so every link is attempted.
func None() Store {
	return noopStore{}
}

type noopStore struct{}

func (noopStore) Close() error                                 { return nil }
func (noopStore) Linked(context.Context, Key) (bool, error)    { return false, nil }
func (noopStore) MarkLinked(context.Context, Key, int64) error { return nil }
