// Package disktier implements the bounded on-disk byte cache: one file per
// key in a flat directory, an in-memory index, least-recently-accessed
// eviction, and optional TTL.
package disktier

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/luhtfiimanal/zarrs-cache/cacheerr"
	"github.com/luhtfiimanal/zarrs-cache/observability"
	"github.com/luhtfiimanal/zarrs-cache/store"
)

// indexEntry is the in-memory record for one on-disk file (spec §3,
// "Disk entry"). The bytes themselves are never held in memory.
type indexEntry struct {
	path         string
	size         int64
	created      time.Time
	lastAccessed time.Time
}

// Config configures a Tier.
type Config struct {
	// Dir is the cache directory; created if absent.
	Dir string
	// MaxSizeBytes bounds the sum of indexed sizes. Zero means
	// unbounded.
	MaxSizeBytes int64
	// TTL is optional; zero disables expiry.
	TTL time.Duration
	// RebuildIndex, if true, scans Dir at construction time and
	// populates the index from any existing *.cache files (spec §4.D
	// allows, but does not require, this).
	RebuildIndex bool

	Logger  observability.Logger
	Metrics observability.MetricsClient
}

// Tier is the disk-backed store of spec §4.D.
type Tier struct {
	dir     string
	maxSize int64
	ttl     time.Duration

	mu    sync.RWMutex
	index map[string]*indexEntry
	size  atomic.Int64

	hits   atomic.Int64
	misses atomic.Int64

	logger  observability.Logger
	metrics observability.MetricsClient
}

var _ store.Store = (*Tier)(nil)

// New creates (if absent) cfg.Dir and returns a disk tier backed by it.
func New(cfg Config) (*Tier, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, cacheerr.Wrap(cacheerr.Io, err, "create cache dir %q", cfg.Dir)
	}

	t := &Tier{
		dir:     cfg.Dir,
		maxSize: cfg.MaxSizeBytes,
		ttl:     cfg.TTL,
		index:   make(map[string]*indexEntry),
		logger:  logger,
		metrics: metrics,
	}

	if cfg.RebuildIndex {
		t.rebuildIndex()
	}

	return t, nil
}

// rebuildIndex scans t.dir for *.cache files and seeds the index from
// their file metadata. Keys cannot be recovered from sanitised filenames
// in general (the mapping is not invertible for keys containing the
// sanitisation target characters), so rebuilt entries are indexed under
// their sanitised filename itself; a fresh process therefore regains the
// disk bytes as cache capacity even though old callers' original keys may
// now miss once and re-populate. This is the "recoverable only to the
// extent of the live in-memory map" contract from spec §3.
func (t *Tier) rebuildIndex() {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		t.logger.Warn("disktier: rebuild index scan failed", map[string]interface{}{"error": err.Error()})
		return
	}

	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".cache") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		key := strings.TrimSuffix(de.Name(), ".cache")
		t.index[key] = &indexEntry{
			path:         filepath.Join(t.dir, de.Name()),
			size:         info.Size(),
			created:      info.ModTime(),
			lastAccessed: info.ModTime(),
		}
		t.size.Add(info.Size())
	}
}

// keyToPath maps a cache key to its file path. The mapping need only be
// injective and filesystem-safe, not invertible (spec §4.D).
func (t *Tier) keyToPath(key string) string {
	sanitised := strings.NewReplacer("/", "_", "\\", "_").Replace(key)
	return filepath.Join(t.dir, sanitised+".cache")
}

// Get implements store.Store.
func (t *Tier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	t.pruneExpired()

	t.mu.RLock()
	e, ok := t.index[key]
	t.mu.RUnlock()
	if !ok {
		t.recordMiss()
		return nil, false, nil
	}
	if t.isExpired(e) {
		t.removeIndexed(key)
		t.recordMiss()
		return nil, false, nil
	}

	data, err := os.ReadFile(e.path)
	if err != nil {
		t.logger.Warn("disktier: read failed, evicting entry", map[string]interface{}{"key": key, "error": err.Error()})
		t.removeIndexed(key)
		t.recordMiss()
		return nil, false, nil
	}

	t.mu.Lock()
	if cur, ok := t.index[key]; ok {
		cur.lastAccessed = time.Now()
	}
	t.mu.Unlock()

	t.hits.Add(1)
	t.metrics.IncrementCounter("disktier_hits_total", 1, nil)
	return data, true, nil
}

// Set implements store.Store.
func (t *Tier) Set(ctx context.Context, key string, value []byte) error {
	incoming := int64(len(value))

	if t.maxSize > 0 && incoming > t.maxSize {
		return cacheerr.CacheFullError(key, int(incoming))
	}

	t.mu.RLock()
	var oldSize int64
	if old, ok := t.index[key]; ok {
		oldSize = old.size
	}
	t.mu.RUnlock()

	// Evict by least-recently-accessed until the incoming value fits,
	// pretending key's own old bytes are already freed.
	for t.maxSize > 0 && t.size.Load()-oldSize+incoming > t.maxSize {
		victim, ok := t.lruKey(key)
		if !ok {
			break
		}
		t.removeIndexed(victim)
	}
	if t.maxSize > 0 && t.size.Load()-oldSize+incoming > t.maxSize {
		return cacheerr.CacheFullError(key, int(incoming))
	}

	path := t.keyToPath(key)
	if err := t.writeFile(path, value); err != nil {
		return cacheerr.IoError(key, err)
	}

	now := time.Now()
	t.mu.Lock()
	t.index[key] = &indexEntry{path: path, size: incoming, created: now, lastAccessed: now}
	t.mu.Unlock()

	t.size.Add(incoming - oldSize)
	t.metrics.RecordGauge("disktier_size_bytes", float64(t.size.Load()), nil)
	return nil
}

// writeFile performs the actual file write, retrying a couple of times on
// transient failures via a short bounded backoff before surfacing the
// error to the caller as Io.
func (t *Tier) writeFile(path string, value []byte) error {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	return backoff.Retry(func() error {
		return os.WriteFile(path, value, 0o644)
	}, b)
}

// Remove implements store.Store.
func (t *Tier) Remove(ctx context.Context, key string) error {
	t.removeIndexed(key)
	return nil
}

// Clear implements store.Store.
func (t *Tier) Clear(ctx context.Context) error {
	t.mu.Lock()
	entries := t.index
	t.index = make(map[string]*indexEntry)
	t.mu.Unlock()

	for _, e := range entries {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("disktier: clear failed to remove file", map[string]interface{}{"path": e.path, "error": err.Error()})
		}
	}
	t.size.Store(0)
	return nil
}

// Size implements store.Store.
func (t *Tier) Size(ctx context.Context) int64 {
	return t.size.Load()
}

// Stats implements store.Store. EntryCount is the authoritative key count
// elsewhere in this module (spec §3): every key is persisted to disk.
func (t *Tier) Stats(ctx context.Context) store.Stats {
	t.mu.RLock()
	count := int64(len(t.index))
	t.mu.RUnlock()

	return store.Stats{
		Hits:       t.hits.Load(),
		Misses:     t.misses.Load(),
		SizeBytes:  t.size.Load(),
		EntryCount: count,
	}
}

func (t *Tier) recordMiss() {
	t.misses.Add(1)
	t.metrics.IncrementCounter("disktier_misses_total", 1, nil)
}

func (t *Tier) isExpired(e *indexEntry) bool {
	return t.ttl > 0 && time.Since(e.created) > t.ttl
}

// pruneExpired does one bounded pass removing TTL-expired entries. It is
// called opportunistically from Get, never from a dedicated timer.
func (t *Tier) pruneExpired() {
	if t.ttl <= 0 {
		return
	}

	t.mu.RLock()
	var expired []string
	for k, e := range t.index {
		if t.isExpired(e) {
			expired = append(expired, k)
		}
	}
	t.mu.RUnlock()

	for _, k := range expired {
		t.removeIndexed(k)
	}
}

// lruKey returns the key with the oldest LastAccessed among indexed
// entries, excluding exclude (the key currently being set, which may
// already be present in the index with a stale size we've already
// subtracted). Returns ok=false if the index is empty.
func (t *Tier) lruKey(exclude string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var victim string
	var oldest time.Time
	found := false
	for k, e := range t.index {
		if k == exclude {
			continue
		}
		if !found || e.lastAccessed.Before(oldest) {
			victim = k
			oldest = e.lastAccessed
			found = true
		}
	}
	return victim, found
}

// removeIndexed drops key from the index and best-effort deletes its
// file; failures are logged, never returned (spec §7 tier 1).
func (t *Tier) removeIndexed(key string) {
	t.mu.Lock()
	e, ok := t.index[key]
	if ok {
		delete(t.index, key)
	}
	t.mu.Unlock()

	if !ok {
		return
	}

	t.size.Add(-e.size)
	if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
		t.logger.Warn("disktier: failed to remove file", map[string]interface{}{"path": e.path, "error": err.Error()})
	}
}
