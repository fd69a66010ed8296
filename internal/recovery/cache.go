package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/dshills/neurosearch/pkg/types"
)

var bucketEntries = []byte("entries")

var (
	// ErrNotFound is returned by Get for an unknown id
	ErrNotFound = errors.New("recovery entry not found")
	// ErrInvalidEntry is returned by Put for an entry without id or vector
	ErrInvalidEntry = errors.New("invalid recovery entry")
)

// Entry is everything needed to rebuild one document's vector-index entry
// and metadata record
type Entry struct {
	ID        string         `json:"id"`
	Vector    []float32      `json:"vector"`
	Title     string         `json:"title"`
	SourceURL string         `json:"url"`
	FileType  types.FileType `json:"file_type"`
	Content   string         `json:"text"`

	// InputHash is the SHA-256 of the exact text that was embedded and
	// TruncateChars the limit used to cut it from Content.
	InputHash     string    `json:"input_hash"`
	TruncateChars int       `json:"truncate_chars"`
	Provider      string    `json:"provider,omitempty"`
	Model         string    `json:"model,omitempty"`
	CachedAt      time.Time `json:"cached_at"`
}

// Cache is the local recovery cache: a bbolt file keyed by document id.
// Every Put runs in its own write transaction, which bbolt fsyncs before
// returning.
type Cache struct {
	db   *bbolt.DB
	path string
}

// Open opens or creates the cache file at path
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open recovery cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &Cache{db: db, path: path}, nil
}

// Path returns the cache file location
func (c *Cache) Path() string {
	return c.path
}

// Put durably stores entry, replacing any previous entry with the same id
func (c *Cache) Put(entry Entry) error {
	if entry.ID == "" || len(entry.Vector) == 0 {
		return ErrInvalidEntry
	}
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntries).Put([]byte(entry.ID), data)
	})
}

// Get returns the entry for id or ErrNotFound
func (c *Cache) Get(id string) (*Entry, error) {
	var entry Entry
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEntries).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// LoadAll reads every entry. Undecodable entries are skipped and counted in
// the returned int so a single corrupt value cannot block recovery.
func (c *Cache) LoadAll() (map[string]Entry, int, error) {
	entries := make(map[string]Entry)
	corrupt := 0

	err := c.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil || entry.ID != string(k) {
				corrupt++
				return nil
			}
			entries[entry.ID] = entry
			return nil
		})
	})
	if err != nil {
		return nil, 0, fmt.Errorf("load recovery cache: %w", err)
	}
	return entries, corrupt, nil
}

// Len returns the number of cached entries
func (c *Cache) Len() (int, error) {
	var n int
	err := c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketEntries).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the cache file
func (c *Cache) Close() error {
	return c.db.Close()
}
