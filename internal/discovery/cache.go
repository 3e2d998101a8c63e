package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// CacheEntry is a persisted discovery result.
type CacheEntry struct {
	Key        string          `json:"key"`
	FetchedAt  time.Time       `json:"fetched_at"`
	TTLSeconds int             `json:"ttl_seconds"`
	Payload    json.RawMessage `json:"payload"`
}

// Cache keeps discovery results in memory and on disk, one JSON file per key.
type Cache struct {
	dir string
	mu  sync.RWMutex
	mem map[string]*CacheEntry
	now func() time.Time
}

// NewCache creates a cache rooted at dir, creating the directory if needed.
func NewCache(dir string) (*Cache, error) {
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Cache{
		dir: dir,
		mem: make(map[string]*CacheEntry),
		now: time.Now,
	}, nil
}

// Get decodes the cached payload for key into v. It reports false when the
// entry is missing, expired or unreadable.
func (c *Cache) Get(key string, v any) bool {
	c.mu.RLock()
	entry, ok := c.mem[key]
	c.mu.RUnlock()

	if !ok || c.isExpired(entry) {
		var err error
		entry, err = c.loadFromDisk(key)
		if err != nil {
			log.WithField("key", key).Debugf("ignoring cache entry: %v", err)
			return false
		}
		if entry == nil || c.isExpired(entry) {
			return false
		}
		c.mu.Lock()
		c.mem[key] = entry
		c.mu.Unlock()
	}

	if err := json.Unmarshal(entry.Payload, v); err != nil {
		log.WithField("key", key).Debugf("failed to decode cache payload: %v", err)
		return false
	}
	return true
}

// Set stores v under key with the given TTL.
func (c *Cache) Set(key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}
	entry := &CacheEntry{
		Key:        key,
		FetchedAt:  c.now(),
		TTLSeconds: int(ttl / time.Second),
		Payload:    payload,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[key] = entry
	return c.saveToDisk(entry)
}

// Clear removes one key from the cache.
func (c *Cache) Clear(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.mem, key)

	if err := os.Remove(c.filePath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}

// ClearAll removes every cache entry.
func (c *Cache) ClearAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem = make(map[string]*CacheEntry)

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove cache file %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func (c *Cache) isExpired(entry *CacheEntry) bool {
	expiresAt := entry.FetchedAt.Add(time.Duration(entry.TTLSeconds) * time.Second)
	return !c.now().Before(expiresAt)
}

func (c *Cache) filePath(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(key)
	return filepath.Join(c.dir, safe+".json")
}

func (c *Cache) loadFromDisk(key string) (*CacheEntry, error) {
	data, err := os.ReadFile(c.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse cache file: %w", err)
	}
	return &entry, nil
}

func (c *Cache) saveToDisk(entry *CacheEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := os.WriteFile(c.filePath(entry.Key), data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}
