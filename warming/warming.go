// Package warming proactively populates a cache before callers request
// the keys, using pluggable strategies over a recent-access snapshot
// (spec §4.H).
package warming

import (
	"context"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/luhtfiimanal/zarrs-cache/keycodec"
	"github.com/luhtfiimanal/zarrs-cache/observability"
	"github.com/luhtfiimanal/zarrs-cache/store"
)

// defaultCapacitySentinel is the fallback "available capacity" used when
// the cache does not expose a capacity figure of its own (spec §4.H).
const defaultCapacitySentinel = 100 * 1024 * 1024

// TimeContext describes wall-clock position, used by strategies that
// want to condition warming on time-of-day/week patterns.
type TimeContext struct {
	HourOfDay int
	DayOfWeek time.Weekday
	IsWeekend bool
}

// NewTimeContext derives a TimeContext from now, in UTC.
func NewTimeContext(now time.Time) TimeContext {
	u := now.UTC()
	dow := u.Weekday()
	return TimeContext{
		HourOfDay: u.Hour(),
		DayOfWeek: dow,
		IsWeekend: dow == time.Saturday || dow == time.Sunday,
	}
}

// WarmingContext is the snapshot strategies plan against.
type WarmingContext struct {
	RecentAccess           map[string]int64
	HitRate                float64
	AvailableCapacityBytes int64
	Time                   TimeContext
}

// Strategy generates candidate keys to warm from a WarmingContext.
type Strategy interface {
	Name() string
	Candidates(ctx WarmingContext, maxWarmKeys int) []string
}

// accessRecord is one timestamped access in a Predictive strategy's
// per-key history.
type accessRecord struct {
	at time.Time
}

// PredictiveStrategy keeps its own bounded per-key access history and
// ranks keys by recent-access count, filtered by a minimum frequency.
type PredictiveStrategy struct {
	minFrequency float64

	mu      sync.Mutex
	history map[string][]accessRecord
}

const predictiveHistoryCap = 1000

// NewPredictiveStrategy constructs a PredictiveStrategy that only keeps
// keys whose frequency over their recorded history meets minFrequency.
func NewPredictiveStrategy(minFrequency float64) *PredictiveStrategy {
	return &PredictiveStrategy{
		minFrequency: minFrequency,
		history:      make(map[string][]accessRecord),
	}
}

// RecordAccess appends an access timestamp for key, capping history at
// the last 1000 entries.
func (p *PredictiveStrategy) RecordAccess(key string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := append(p.history[key], accessRecord{at: at})
	if len(h) > predictiveHistoryCap {
		h = h[len(h)-predictiveHistoryCap:]
	}
	p.history[key] = h
}

func (p *PredictiveStrategy) Name() string { return "predictive" }

// Candidates ranks keys descending by recent-access count (spec §4.H:
// "Order descending by recent_access.count"), keeping only keys whose
// own history frequency is ≥ minFrequency and that "match" the time
// context. The default match rule always matches; refinements are a
// strategy-subclass concern the spec leaves open.
func (p *PredictiveStrategy) Candidates(ctx WarmingContext, maxWarmKeys int) []string {
	type scored struct {
		key   string
		count int64
	}

	p.mu.Lock()
	var eligible []scored
	for key, count := range ctx.RecentAccess {
		if p.frequency(key) < p.minFrequency {
			continue
		}
		if !p.matchesTimeContext(ctx.Time) {
			continue
		}
		eligible = append(eligible, scored{key: key, count: count})
	}
	p.mu.Unlock()

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].count != eligible[j].count {
			return eligible[i].count > eligible[j].count
		}
		return eligible[i].key < eligible[j].key
	})

	if maxWarmKeys > 0 && len(eligible) > maxWarmKeys {
		eligible = eligible[:maxWarmKeys]
	}

	out := make([]string, len(eligible))
	for i, e := range eligible {
		out[i] = e.key
	}
	return out
}

// frequency computes count / history span in seconds for key. Callers
// must hold p.mu.
func (p *PredictiveStrategy) frequency(key string) float64 {
	h := p.history[key]
	if len(h) == 0 {
		return 0
	}
	span := h[len(h)-1].at.Sub(h[0].at).Seconds()
	if span < 1 {
		span = 1
	}
	return float64(len(h)) / span
}

// matchesTimeContext is the default always-match policy (spec §4.H).
func (p *PredictiveStrategy) matchesTimeContext(TimeContext) bool { return true }

// NeighborStrategy expands every recently-accessed chunk key into its
// spatial neighbors via the key codec.
type NeighborStrategy struct {
	distance int
}

// NewNeighborStrategy constructs a NeighborStrategy warming up to
// distance chunks away from each recently-accessed key.
func NewNeighborStrategy(distance int) *NeighborStrategy {
	return &NeighborStrategy{distance: distance}
}

func (n *NeighborStrategy) Name() string { return "neighbor" }

// Candidates unions the neighbor sets of every recently-accessed key,
// sorts, dedupes, and truncates to maxWarmKeys.
func (n *NeighborStrategy) Candidates(ctx WarmingContext, maxWarmKeys int) []string {
	seen := make(map[string]struct{})
	var out []string

	for key := range ctx.RecentAccess {
		coord, ok := keycodec.Parse(key)
		if !ok {
			continue
		}
		for _, nb := range keycodec.Neighbors(coord, n.distance, 0) {
			k := nb.Key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}

	sort.Strings(out)
	if maxWarmKeys > 0 && len(out) > maxWarmKeys {
		out = out[:maxWarmKeys]
	}
	return out
}

// Loader fetches the bytes for a key that is not yet cached. A nil
// slice with ok=false means nothing exists for that key.
type Loader func(ctx context.Context, key string) (value []byte, ok bool, err error)

// CacheWarmer owns the underlying cache, a mutable list of strategies,
// and an access-count map independent of any engine-internal tracker
// (spec §5 "the warmer's access map is independent of the engine's
// tracker").
type CacheWarmer struct {
	cache store.Store

	mu         sync.Mutex
	strategies []Strategy
	accessed   map[string]int64

	maxWarmKeys int

	logger  observability.Logger
	metrics observability.MetricsClient
}

// Config configures a CacheWarmer.
type Config struct {
	Cache       store.Store
	Strategies  []Strategy
	MaxWarmKeys int
	Logger      observability.Logger
	Metrics     observability.MetricsClient
}

// New constructs a CacheWarmer.
func New(cfg Config) *CacheWarmer {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}
	return &CacheWarmer{
		cache:       cfg.Cache,
		strategies:  append([]Strategy(nil), cfg.Strategies...),
		accessed:    make(map[string]int64),
		maxWarmKeys: cfg.MaxWarmKeys,
		logger:      logger,
		metrics:     metrics,
	}
}

// AddStrategy appends a strategy to the warmer's mutable strategy list.
func (w *CacheWarmer) AddStrategy(s Strategy) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.strategies = append(w.strategies, s)
}

// RecordAccess increments the warmer's own access count for key.
func (w *CacheWarmer) RecordAccess(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accessed[key]++
}

// Warm builds a context snapshot, runs every strategy, and for each
// generated key not already cached invokes loader, storing any value it
// returns. It returns the number of keys successfully warmed.
func (w *CacheWarmer) Warm(ctx context.Context, loader Loader) (int, error) {
	snapshot := w.snapshot(ctx)

	w.mu.Lock()
	strategies := append([]Strategy(nil), w.strategies...)
	w.mu.Unlock()

	seen := make(map[string]struct{})
	warmed := 0

	for _, strat := range strategies {
		for _, key := range strat.Candidates(snapshot, w.maxWarmKeys) {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			if _, ok, _ := w.cache.Get(ctx, key); ok {
				continue
			}

			value, ok, err := loader(ctx, key)
			if err != nil {
				w.logger.Warn("warming: loader failed", map[string]interface{}{
					"key": key, "strategy": strat.Name(), "error": err.Error(),
				})
				continue
			}
			if !ok {
				continue
			}

			if err := w.cache.Set(ctx, key, value); err != nil {
				w.logger.Warn("warming: set failed", map[string]interface{}{
					"key": key, "strategy": strat.Name(), "error": err.Error(),
				})
				continue
			}
			warmed++
		}
	}

	w.metrics.IncrementCounter("warming_keys_warmed_total", float64(warmed), nil)
	return warmed, nil
}

func (w *CacheWarmer) snapshot(ctx context.Context) WarmingContext {
	w.mu.Lock()
	recent := make(map[string]int64, len(w.accessed))
	for k, v := range w.accessed {
		recent[k] = v
	}
	w.mu.Unlock()

	stats := w.cache.Stats(ctx)
	available := defaultCapacitySentinel - stats.SizeBytes
	if available < 0 {
		available = 0
	}

	return WarmingContext{
		RecentAccess:           recent,
		HitRate:                stats.HitRate(),
		AvailableCapacityBytes: available,
		Time:                   NewTimeContext(time.Now()),
	}
}

// ScheduledWarmer runs Warm on a ticker in a managed goroutine, with
// panic recovery — additive to the core CacheWarmer, for a host process
// that wants periodic warming instead of only explicit calls.
type ScheduledWarmer struct {
	warmer   *CacheWarmer
	loader   Loader
	interval time.Duration
	timeout  time.Duration
	logger   observability.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduledWarmer constructs a ScheduledWarmer. timeout bounds each
// individual warmup cycle; if zero, it defaults to 5 minutes.
func NewScheduledWarmer(warmer *CacheWarmer, loader Loader, interval, timeout time.Duration, logger observability.Logger) *ScheduledWarmer {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &ScheduledWarmer{
		warmer:   warmer,
		loader:   loader,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the scheduled warming loop, running once immediately and
// then on every tick until ctx is canceled or Stop is called.
func (sw *ScheduledWarmer) Start(ctx context.Context) {
	sw.wg.Add(1)
	go func() {
		defer sw.wg.Done()

		sw.runWarmup(ctx)

		ticker := time.NewTicker(sw.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sw.runWarmup(ctx)
			case <-ctx.Done():
				sw.logger.Info("scheduled warmer stopped: context canceled", nil)
				return
			case <-sw.stopCh:
				sw.logger.Info("scheduled warmer stopped", nil)
				return
			}
		}
	}()
}

// Stop halts the scheduled warming loop and waits for it to exit.
func (sw *ScheduledWarmer) Stop() {
	close(sw.stopCh)
	sw.wg.Wait()
}

func (sw *ScheduledWarmer) runWarmup(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			sw.logger.Error("panic in scheduled warmup", map[string]interface{}{
				"panic": r,
				"stack": string(debug.Stack()),
			})
		}
	}()

	warmupCtx, cancel := context.WithTimeout(ctx, sw.timeout)
	defer cancel()

	warmed, err := sw.warmer.Warm(warmupCtx, sw.loader)
	if err != nil {
		sw.logger.Error("scheduled warmup failed", map[string]interface{}{"error": err.Error()})
		return
	}
	sw.logger.Info("scheduled warmup completed", map[string]interface{}{"warmed": warmed})
}
