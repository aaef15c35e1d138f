package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const linksBucket = "links"

type boltStore struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

func openBolt(path string, ttl time.Duration) (*boltStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt ledger: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(linksBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltStore{db: db, ttl: ttl, now: time.Now}, nil
}

func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Linked reports whether key has an entry that has not expired. Expired
// entries are deleted on read.
func (b *boltStore) Linked(_ context.Context, key Key) (bool, error) {
	var linked bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(linksBucket))
		if bucket == nil {
			return fmt.Errorf("links bucket missing")
		}

		k := []byte(key.String())
		value := bucket.Get(k)
		if value == nil {
			return nil
		}

		var entry Entry
		if err := json.Unmarshal(value, &entry); err != nil {
			return bucket.Delete(k)
		}
		if b.ttl > 0 && !entry.LinkedAt.Add(b.ttl).After(b.now()) {
			return bucket.Delete(k)
		}
		linked = true
		return nil
	})
	return linked, err
}

func (b *boltStore) MarkLinked(_ context.Context, key Key, targetID int64) error {
	data, err := json.Marshal(Entry{TargetID: targetID, LinkedAt: b.now().UTC()})
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(linksBucket))
		if bucket == nil {
			return fmt.Errorf("links bucket missing")
		}
		return bucket.Put([]byte(key.String()), data)
	})
}
