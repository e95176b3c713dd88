package cache

import (
	"container/list"
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultMemoryQuota is the default memory cache size bound.
const DefaultMemoryQuota = 100 << 20 // 100 MiB

// MemConfig configures the in-memory cache backend.
type MemConfig struct {
	// QuotaBytes bounds the total cached bytes; LRU entries are evicted
	// past it. Zero means DefaultMemoryQuota.
	QuotaBytes int64
}

type memEntry struct {
	key  string
	data []byte
}

// MemCache is a bounded in-process LRU of decoded reference blobs.
type MemCache struct {
	quota  int64
	group  singleflight.Group
	logger zerolog.Logger

	mu      sync.Mutex
	order   *list.List               // front = most recent
	entries map[string]*list.Element // key.String() -> *memEntry element
	bytes   int64
	stats   Stats
}

// NewMemory creates a bounded in-memory reference cache.
func NewMemory(cfg MemConfig, logger zerolog.Logger) *MemCache {
	quota := cfg.QuotaBytes
	if quota <= 0 {
		quota = DefaultMemoryQuota
	}
	return &MemCache{
		quota:   quota,
		logger:  logger.With().Str("component", "refcache").Logger(),
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// Fetch implements RefCache.
func (c *MemCache) Fetch(ctx context.Context, key Key, fetch FetchFunc) ([]byte, error) {
	if data, ok := c.lookup(key, true); ok {
		return data, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		// Re-check under the flight: a concurrent caller may have
		// populated the entry while we queued.
		if data, ok := c.lookup(key, false); ok {
			return data, nil
		}
		data, err := fetchVerified(ctx, key, fetch)
		if err != nil {
			return nil, err
		}
		c.insert(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *MemCache) lookup(key Key, count bool) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key.String()]
	if !ok {
		if count {
			c.stats.Misses++
		}
		return nil, false
	}
	c.order.MoveToFront(el)
	if count {
		c.stats.Hits++
	}
	entry := el.Value.(*memEntry)
	// Entries are immutable once inserted; the verified hash keyed them.
	return entry.data, true
}

func (c *MemCache) insert(key Key, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := key.String()
	if el, ok := c.entries[id]; ok {
		old := el.Value.(*memEntry)
		c.bytes -= int64(len(old.data))
		old.data = data
		c.bytes += int64(len(data))
		c.order.MoveToFront(el)
	} else {
		el := c.order.PushFront(&memEntry{key: id, data: data})
		c.entries[id] = el
		c.bytes += int64(len(data))
	}

	for c.bytes > c.quota && c.order.Len() > 1 {
		back := c.order.Back()
		if back == nil {
			break
		}
		victim := back.Value.(*memEntry)
		c.order.Remove(back)
		delete(c.entries, victim.key)
		c.bytes -= int64(len(victim.data))
		c.stats.Evictions++
	}
	c.stats.Bytes = c.bytes
}

// Evict implements RefCache.
func (c *MemCache) Evict(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key.String()]; ok {
		entry := el.Value.(*memEntry)
		c.order.Remove(el)
		delete(c.entries, entry.key)
		c.bytes -= int64(len(entry.data))
		c.stats.Evictions++
		c.stats.Bytes = c.bytes
	}
}

// Clear implements RefCache.
func (c *MemCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element)
	c.bytes = 0
	c.stats.Bytes = 0
	return nil
}

// Stats implements RefCache.
func (c *MemCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

var _ RefCache = (*MemCache)(nil)
