package lakehouse

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var statsBucket = []byte("row_counts")

// StatsCache memoizes Parquet row counts by (key, etag), so repeated
// GetStorageStats calls against an S3-backed Gold tier don't re-fetch
// and re-decode the footer of every file that hasn't changed since the
// last call.
type StatsCache struct {
	db *bolt.DB
}

type cachedCount struct {
	Etag string `json:"etag"`
	Rows int64  `json:"rows"`
}

// OpenStatsCache opens (creating if absent) a bbolt-backed cache at path.
func OpenStatsCache(path string) (*StatsCache, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("lakehouse: open stats cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(statsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("lakehouse: init stats cache bucket: %w", err)
	}
	return &StatsCache{db: db}, nil
}

// Close releases the underlying bbolt file handle.
func (c *StatsCache) Close() error {
	return c.db.Close()
}

// Get returns the cached row count for key if its etag still matches.
func (c *StatsCache) Get(key, etag string) (int64, bool) {
	var entry *cachedCount
	_ = c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(statsBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		var decoded cachedCount
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil
		}
		entry = &decoded
		return nil
	})
	if entry == nil || entry.Etag != etag {
		return 0, false
	}
	return entry.Rows, true
}

// Put stores the row count for key under its current etag.
func (c *StatsCache) Put(key, etag string, rows int64) error {
	encoded, err := json.Marshal(cachedCount{Etag: etag, Rows: rows})
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(statsBucket).Put([]byte(key), encoded)
	})
}
