// Package memtier implements the bounded in-process byte cache: an LRU
// container with optional TTL and size-byte accounting.
package memtier

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/luhtfiimanal/zarrs-cache/cacheerr"
	"github.com/luhtfiimanal/zarrs-cache/observability"
	"github.com/luhtfiimanal/zarrs-cache/store"
)

// entry is what the LRU container actually holds: the bytes plus the
// instant they were inserted, which anchors TTL independently of LRU
// order (spec §3, "Memory entry").
type entry struct {
	value     []byte
	insertion time.Time
}

// Config configures a Tier.
type Config struct {
	// MaxSizeBytes bounds the sum of stored value sizes. Zero means no
	// size bound is enforced (not recommended for production use).
	MaxSizeBytes int64
	// TTL is optional; zero disables expiry.
	TTL time.Duration

	Logger  observability.Logger
	Metrics observability.MetricsClient
}

// Tier is the bounded-LRU-with-TTL memory cache of spec §4.C. The
// underlying ordering container is hashicorp/golang-lru/v2's simplelru,
// used purely for its MRU/LRU bookkeeping: capacity enforcement is our
// own, driven by byte size rather than entry count, since simplelru only
// understands a fixed count bound.
type Tier struct {
	mu   sync.Mutex
	lru  *lru.LRU[string, entry]
	size atomic.Int64

	maxSize int64
	ttl     time.Duration

	hits   atomic.Int64
	misses atomic.Int64

	logger  observability.Logger
	metrics observability.MetricsClient
}

// unboundedCount is the capacity passed to simplelru itself; our own
// byte-budget logic is the real bound, so the container must never evict
// on our behalf via its own count-based policy.
const unboundedCount = math.MaxInt32

// New constructs a memory tier.
func New(cfg Config) *Tier {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}

	l, err := lru.NewLRU[string, entry](unboundedCount, nil)
	if err != nil {
		// Only possible if unboundedCount <= 0, which it never is.
		panic(err)
	}

	return &Tier{
		lru:     l,
		maxSize: cfg.MaxSizeBytes,
		ttl:     cfg.TTL,
		logger:  logger,
		metrics: metrics,
	}
}

var _ store.Store = (*Tier)(nil)

// Get implements store.Store. It opportunistically sweeps the whole
// cache for TTL-expired entries before the lookup proper, amortising
// expiry cleanup over calls rather than running a dedicated timer (spec
// §4.C; mirrors disktier's pruneExpired).
func (t *Tier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	t.pruneExpired()

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.lru.Get(key)
	if !ok {
		t.misses.Add(1)
		t.metrics.IncrementCounter("memtier_misses_total", 1, nil)
		return nil, false, nil
	}
	if t.expired(e) {
		t.evictLocked(key, e)
		t.misses.Add(1)
		t.metrics.IncrementCounter("memtier_misses_total", 1, nil)
		return nil, false, nil
	}

	t.hits.Add(1)
	t.metrics.IncrementCounter("memtier_hits_total", 1, nil)
	return e.value, true, nil
}

// pruneExpired does one bounded pass evicting every TTL-expired entry in
// the cache, not just the key a caller happens to be looking up. It is
// called opportunistically from Get, never from a dedicated timer.
func (t *Tier) pruneExpired() {
	if t.ttl <= 0 {
		return
	}

	t.mu.Lock()
	var expired []string
	for _, k := range t.lru.Keys() {
		if e, ok := t.lru.Peek(k); ok && t.expired(e) {
			expired = append(expired, k)
		}
	}
	for _, k := range expired {
		if e, ok := t.lru.Peek(k); ok {
			t.evictLocked(k, e)
		}
	}
	t.mu.Unlock()
}

// Set implements store.Store.
func (t *Tier) Set(ctx context.Context, key string, value []byte) error {
	incoming := int64(len(value))

	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.lru.Peek(key); ok {
		t.size.Add(-int64(len(old.value)))
		t.lru.Remove(key)
	}

	for t.maxSize > 0 && t.size.Load()+incoming > t.maxSize {
		k, e, ok := t.lru.GetOldest()
		if !ok {
			break
		}
		t.evictLocked(k, e)
	}

	if t.maxSize > 0 && incoming > t.maxSize {
		return cacheerr.CacheFullError(key, int(incoming))
	}

	t.lru.Add(key, entry{value: value, insertion: time.Now()})
	t.size.Add(incoming)
	t.metrics.RecordGauge("memtier_size_bytes", float64(t.size.Load()), nil)
	return nil
}

// Remove implements store.Store.
func (t *Tier) Remove(ctx context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.lru.Peek(key); ok {
		t.evictLocked(key, e)
	}
	return nil
}

// Clear implements store.Store.
func (t *Tier) Clear(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lru.Purge()
	t.size.Store(0)
	return nil
}

// Size implements store.Store.
func (t *Tier) Size(ctx context.Context) int64 {
	return t.size.Load()
}

// Stats implements store.Store.
func (t *Tier) Stats(ctx context.Context) store.Stats {
	t.mu.Lock()
	count := int64(t.lru.Len())
	t.mu.Unlock()

	return store.Stats{
		Hits:       t.hits.Load(),
		Misses:     t.misses.Load(),
		SizeBytes:  t.size.Load(),
		EntryCount: count,
	}
}

func (t *Tier) expired(e entry) bool {
	return t.ttl > 0 && time.Since(e.insertion) > t.ttl
}

// evictLocked removes key/e from the container and size counter. Caller
// holds t.mu.
func (t *Tier) evictLocked(key string, e entry) {
	t.lru.Remove(key)
	t.size.Add(-int64(len(e.value)))
}
