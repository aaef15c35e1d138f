package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func openRedis(ctx context.Context, rawURL, prefix string, ttl time.Duration) (*redisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &redisStore{client: client, prefix: prefix, ttl: ttl}, nil
}

func (r *redisStore) key(k Key) string {
	return r.prefix + k.String()
}

func (r *redisStore) Close() error {
	return r.client.Close()
}

func (r *redisStore) Linked(ctx context.Context, key Key) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

// MarkLinked stores the entry as JSON; a zero TTL keeps it forever.
func (r *redisStore) MarkLinked(ctx context.Context, key Key, targetID int64) error {
	data, err := json.Marshal(Entry{TargetID: targetID, LinkedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
