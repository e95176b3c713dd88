package cache

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/prn-tf/deltaglider/internal/hash"
)

// DefaultFSQuota is the default filesystem cache size bound.
const DefaultFSQuota = 2 << 30 // 2 GiB

// FSConfig configures the filesystem cache backend.
type FSConfig struct {
	// Dir is the cache directory. Created if missing.
	Dir string

	// QuotaBytes bounds the total cache size; LRU entries are evicted
	// past it. Zero means DefaultFSQuota.
	QuotaBytes int64

	// EncryptionSecret enables at-rest AEAD when non-empty. The secret
	// is held in memory only.
	EncryptionSecret string
}

// FSCache is a disk-backed reference cache. Entries are content-addressed
// by SHA-256, so concurrent processes sharing the directory cannot corrupt
// one another: writers publish with create-temp-then-rename and readers
// verify the hash before use. No lockfile is needed; eviction is
// best-effort per process.
type FSCache struct {
	dir    string
	quota  int64
	enc    *Encryptor
	group  singleflight.Group
	logger zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewFS creates a filesystem cache rooted at cfg.Dir.
func NewFS(cfg FSConfig, logger zerolog.Logger) (*FSCache, error) {
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
	}

	quota := cfg.QuotaBytes
	if quota <= 0 {
		quota = DefaultFSQuota
	}

	c := &FSCache{
		dir:    dir,
		quota:  quota,
		logger: logger.With().Str("component", "refcache").Logger(),
	}
	if cfg.EncryptionSecret != "" {
		c.enc = NewEncryptor(cfg.EncryptionSecret)
	}

	c.logger.Info().
		Str("dir", dir).
		Int64("quota_bytes", quota).
		Bool("encrypted", c.enc != nil).
		Msg("filesystem reference cache initialized")
	return c, nil
}

// Fetch implements RefCache.
func (c *FSCache) Fetch(ctx context.Context, key Key, fetch FetchFunc) ([]byte, error) {
	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		return c.fetchLocked(ctx, key, fetch)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *FSCache) fetchLocked(ctx context.Context, key Key, fetch FetchFunc) ([]byte, error) {
	path := c.entryPath(key.SHA256)

	if data, ok := c.readEntry(path, key.SHA256); ok {
		c.count(func(s *Stats) { s.Hits++ })
		now := time.Now()
		_ = os.Chtimes(path, now, now)
		return data, nil
	}

	c.count(func(s *Stats) { s.Misses++ })

	data, err := fetchVerified(ctx, key, fetch)
	if err != nil {
		return nil, err
	}
	if err := c.writeEntry(path, key.SHA256, data); err != nil {
		// A failed cache write only costs a future re-download.
		c.logger.Warn().Err(err).Str("sha256", key.SHA256).Msg("failed to persist cache entry")
	}
	c.evictOver(key.SHA256)
	return data, nil
}

// readEntry loads and verifies an on-disk entry. A mismatching or
// unreadable entry is removed so the miss path re-populates it.
func (c *FSCache) readEntry(path, sha string) ([]byte, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	data := raw
	if c.enc != nil {
		data, err = c.enc.Decrypt(raw, []byte(sha))
		if err != nil {
			c.logger.Warn().Err(err).Str("sha256", sha).Msg("evicting undecryptable cache entry")
			_ = os.Remove(path)
			return nil, false
		}
	}

	if hash.Bytes(data) != sha {
		c.logger.Warn().Str("sha256", sha).Msg("evicting cache entry with stale content")
		_ = os.Remove(path)
		return nil, false
	}
	return data, true
}

// writeEntry publishes an entry atomically: temp file in the same
// directory, then rename.
func (c *FSCache) writeEntry(path, sha string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create entry directory: %w", err)
	}

	out := data
	if c.enc != nil {
		var err error
		out, err = c.enc.Encrypt(data, []byte(sha))
		if err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "ref-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache entry: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to publish cache entry: %w", err)
	}
	success = true
	return nil
}

// Evict implements RefCache.
func (c *FSCache) Evict(key Key) {
	if err := os.Remove(c.entryPath(key.SHA256)); err == nil {
		c.count(func(s *Stats) { s.Evictions++ })
	}
}

// Clear implements RefCache.
func (c *FSCache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Stats implements RefCache.
func (c *FSCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Bytes = c.diskUsage()
	return s
}

// evictOver removes least-recently-used entries until the cache fits the
// quota. The entry named keep is exempt; it was just populated.
func (c *FSCache) evictOver(keep string) {
	type entry struct {
		path  string
		size  int64
		atime time.Time
	}

	var entries []entry
	var total int64
	_ = filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		entries = append(entries, entry{path: path, size: info.Size(), atime: info.ModTime()})
		return nil
	})
	if total <= c.quota {
		return
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].atime.Before(entries[j].atime) })
	keepPath := c.entryPath(keep)
	for _, e := range entries {
		if total <= c.quota {
			break
		}
		if e.path == keepPath {
			continue
		}
		if err := os.Remove(e.path); err == nil {
			total -= e.size
			c.count(func(s *Stats) { s.Evictions++ })
			c.logger.Debug().Str("path", e.path).Int64("size", e.size).Msg("evicted cache entry")
		}
	}
}

func (c *FSCache) diskUsage() int64 {
	var total int64
	_ = filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

// entryPath shards entries by hash prefix to avoid huge flat directories.
func (c *FSCache) entryPath(sha string) string {
	if len(sha) < 2 {
		return filepath.Join(c.dir, sha)
	}
	return filepath.Join(c.dir, sha[:2], sha)
}

func (c *FSCache) count(f func(*Stats)) {
	c.mu.Lock()
	f(&c.stats)
	c.mu.Unlock()
}

var _ RefCache = (*FSCache)(nil)
