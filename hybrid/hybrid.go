// Package hybrid composes a memory tier and a disk tier into the
// two-tier engine of spec §4.G: per-key access tracking, promotion on
// repeated access, demotion on idleness, and a self-rate-limited
// maintenance pass.
package hybrid

import (
	"context"
	"sync"
	"time"

	"github.com/luhtfiimanal/zarrs-cache/observability"
	"github.com/luhtfiimanal/zarrs-cache/store"
)

// Config configures an Engine.
type Config struct {
	Memory store.Store
	Disk   store.Store

	// PromotionThreshold is the access-frequency (per second) at or
	// above which a disk-resident key is promoted into memory.
	PromotionThreshold float64
	// DemotionThreshold is how long a memory-resident key may go
	// unaccessed before a maintenance pass demotes it to disk-only.
	DemotionThreshold time.Duration
	// MaintenanceInterval rate-limits maintenance passes, which only
	// run opportunistically on a Get miss.
	MaintenanceInterval time.Duration

	Clock   Clock
	Logger  observability.Logger
	Metrics observability.MetricsClient
}

// AccessStat is the public view of per-key access bookkeeping, returned
// by Engine.AccessStats for diagnostics and tests (spec §8 scenario 4).
type AccessStat struct {
	Count     int64
	Frequency float64
}

// Engine is the hybrid two-tier cache of spec §4.G.
type Engine struct {
	memory store.Store
	disk   store.Store

	promotionThreshold float64
	demotionThreshold  time.Duration
	maintenanceEvery   time.Duration

	clock Clock

	mu              sync.Mutex
	tracker         map[string]*accessInfo
	lastMaintenance time.Time

	logger  observability.Logger
	metrics observability.MetricsClient
}

// New constructs a hybrid Engine over cfg.Memory and cfg.Disk.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}

	return &Engine{
		memory:             cfg.Memory,
		disk:               cfg.Disk,
		promotionThreshold: cfg.PromotionThreshold,
		demotionThreshold:  cfg.DemotionThreshold,
		maintenanceEvery:   cfg.MaintenanceInterval,
		clock:              clock,
		tracker:            make(map[string]*accessInfo),
		logger:             logger,
		metrics:            metrics,
	}
}

var _ store.Store = (*Engine)(nil)

// Get implements the read path of spec §4.G.
func (e *Engine) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := observability.StartSpan(ctx, "hybrid.get")
	defer span.End()

	now := e.clock.Now()
	info := e.recordAccess(key, now)

	if v, ok, _ := e.memory.Get(ctx, key); ok {
		return v, true, nil
	}

	v, ok, _ := e.disk.Get(ctx, key)
	if ok {
		if info.frequency(now) >= e.promotionThreshold {
			if err := e.memory.Set(ctx, key, v); err != nil {
				e.logger.Warn("hybrid: promotion failed", map[string]interface{}{"key": key, "error": err.Error()})
			} else {
				e.mu.Lock()
				info.promote(now)
				e.mu.Unlock()
				e.metrics.IncrementCounter("hybrid_promotions_total", 1, nil)
			}
		}
		return v, true, nil
	}

	e.maybeRunMaintenance(ctx, now)
	return nil, false, nil
}

// Set implements the write path of spec §4.G: always to disk, and to
// memory when the key is frequent or new.
func (e *Engine) Set(ctx context.Context, key string, value []byte) error {
	ctx, span := observability.StartSpan(ctx, "hybrid.set")
	defer span.End()

	now := e.clock.Now()

	e.mu.Lock()
	_, existed := e.tracker[key]
	e.mu.Unlock()
	info := e.recordAccess(key, now)

	if err := e.disk.Set(ctx, key, value); err != nil {
		return err
	}

	shouldCacheInMemory := !existed || info.frequency(now) >= e.promotionThreshold
	if shouldCacheInMemory {
		if err := e.memory.Set(ctx, key, value); err != nil {
			e.logger.Warn("hybrid: memory-side set failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}

	return nil
}

// Remove implements store.Store.
func (e *Engine) Remove(ctx context.Context, key string) error {
	memErr := e.memory.Remove(ctx, key)
	diskErr := e.disk.Remove(ctx, key)

	e.mu.Lock()
	delete(e.tracker, key)
	e.mu.Unlock()

	if memErr != nil {
		return memErr
	}
	return diskErr
}

// Clear implements store.Store.
func (e *Engine) Clear(ctx context.Context) error {
	memErr := e.memory.Clear(ctx)
	diskErr := e.disk.Clear(ctx)

	e.mu.Lock()
	e.tracker = make(map[string]*accessInfo)
	e.mu.Unlock()

	if memErr != nil {
		return memErr
	}
	return diskErr
}

// Size implements store.Store: memory + disk bytes, double-counting
// values resident in both tiers by design (spec §3, §9 open question 4).
func (e *Engine) Size(ctx context.Context) int64 {
	return e.memory.Size(ctx) + e.disk.Size(ctx)
}

// Stats implements store.Store. EntryCount is the disk tier's (the
// authoritative key count, since every key is persisted).
func (e *Engine) Stats(ctx context.Context) store.Stats {
	ms := e.memory.Stats(ctx)
	ds := e.disk.Stats(ctx)
	return store.Stats{
		Hits:       ms.Hits + ds.Hits,
		Misses:     ms.Misses + ds.Misses,
		SizeBytes:  ms.SizeBytes + ds.SizeBytes,
		EntryCount: ds.EntryCount,
	}
}

// AccessStats returns a snapshot of per-key access bookkeeping, primarily
// for diagnostics and tests.
func (e *Engine) AccessStats() map[string]AccessStat {
	now := e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]AccessStat, len(e.tracker))
	for k, info := range e.tracker {
		out[k] = AccessStat{Count: info.count, Frequency: info.frequency(now)}
	}
	return out
}

func (e *Engine) recordAccess(key string, now time.Time) *accessInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, ok := e.tracker[key]
	if !ok {
		info = &accessInfo{}
		e.tracker[key] = info
	}
	info.recordAccess(now)
	return info
}

// maybeRunMaintenance checks the self-rate-limiter and, if due, runs one
// maintenance pass. Eligibility is checked on Get misses only (spec
// §4.G).
func (e *Engine) maybeRunMaintenance(ctx context.Context, now time.Time) {
	e.mu.Lock()
	due := e.maintenanceEvery > 0 && now.Sub(e.lastMaintenance) >= e.maintenanceEvery
	if due {
		e.lastMaintenance = now
	}
	e.mu.Unlock()

	if !due {
		return
	}
	e.runMaintenance(ctx, now)
}

// runMaintenance executes one pass: promotions, then demotions, then
// tracker pruning. Any per-key failure is logged and skipped; the pass
// never aborts (spec §4.G, §7 tier 1).
func (e *Engine) runMaintenance(ctx context.Context, now time.Time) {
	ctx, span := observability.StartSpan(ctx, "hybrid.maintenance")
	defer span.End()

	for _, key := range e.candidatesForPromotion(now) {
		v, ok, _ := e.disk.Get(ctx, key)
		if !ok {
			continue
		}
		if err := e.memory.Set(ctx, key, v); err != nil {
			e.logger.Warn("hybrid: maintenance promotion failed", map[string]interface{}{"key": key, "error": err.Error()})
			continue
		}
		e.mu.Lock()
		if info, ok := e.tracker[key]; ok {
			info.promote(now)
		}
		e.mu.Unlock()
	}

	for _, key := range e.candidatesForDemotion(now) {
		v, ok, _ := e.memory.Get(ctx, key)
		if !ok {
			continue
		}
		if err := e.disk.Set(ctx, key, v); err != nil {
			e.logger.Warn("hybrid: maintenance demotion write failed", map[string]interface{}{"key": key, "error": err.Error()})
			continue
		}
		if err := e.memory.Remove(ctx, key); err != nil {
			e.logger.Warn("hybrid: maintenance demotion evict failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}

	e.pruneTracker(now)
}

func (e *Engine) candidatesForPromotion(now time.Time) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []string
	for key, info := range e.tracker {
		if info.frequency(now) >= e.promotionThreshold {
			if _, inMem, _ := e.memory.Get(context.Background(), key); !inMem {
				out = append(out, key)
			}
		}
	}
	return out
}

func (e *Engine) candidatesForDemotion(now time.Time) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []string
	for key, info := range e.tracker {
		if e.demotionThreshold > 0 && info.idleFor(now) > e.demotionThreshold {
			out = append(out, key)
		}
	}
	return out
}

// pruneTracker drops tracker entries idle for more than 2x the demotion
// threshold (spec §4.G, §3 lifecycle).
func (e *Engine) pruneTracker(now time.Time) {
	if e.demotionThreshold <= 0 {
		return
	}
	limit := 2 * e.demotionThreshold

	e.mu.Lock()
	defer e.mu.Unlock()
	for key, info := range e.tracker {
		if info.idleFor(now) > limit {
			delete(e.tracker, key)
		}
	}
}
