// Package prefetch reactively populates the cache with keys related to
// one just-observed access (spec §4.I).
package prefetch

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/luhtfiimanal/zarrs-cache/keycodec"
	"github.com/luhtfiimanal/zarrs-cache/observability"
	"github.com/luhtfiimanal/zarrs-cache/store"
)

// Loader fetches the bytes for a key not yet cached.
type Loader func(ctx context.Context, key string) (value []byte, ok bool, err error)

// Strategy maps one just-accessed key to the related keys it believes
// should be prefetched.
type Strategy interface {
	Name() string
	Related(key string) []string
}

// NeighborChunk prefetches the spatial neighbors of an accessed chunk
// key via the key codec.
type NeighborChunk struct {
	distance int
}

// NewNeighborChunk constructs a NeighborChunk strategy out to distance
// chunks in each dimension.
func NewNeighborChunk(distance int) NeighborChunk { return NeighborChunk{distance: distance} }

func (n NeighborChunk) Name() string { return "neighbor_chunk" }

func (n NeighborChunk) Related(key string) []string {
	coord, ok := keycodec.Parse(key)
	if !ok {
		return nil
	}
	neighbors := keycodec.Neighbors(coord, n.distance, 0)
	out := make([]string, len(neighbors))
	for i, nb := range neighbors {
		out[i] = nb.Key()
	}
	return out
}

// Sequential prefetches the cumulative sequential successors of an
// accessed chunk key via the key codec (see keycodec.Sequential for the
// deliberately preserved cumulative-stride behavior).
type Sequential struct {
	lookahead int
}

// NewSequential constructs a Sequential strategy prefetching lookahead
// successor keys.
func NewSequential(lookahead int) Sequential { return Sequential{lookahead: lookahead} }

func (s Sequential) Name() string { return "sequential" }

func (s Sequential) Related(key string) []string {
	coord, ok := keycodec.Parse(key)
	if !ok {
		return nil
	}
	successors := keycodec.Sequential(coord, s.lookahead)
	out := make([]string, len(successors))
	for i, nb := range successors {
		out[i] = nb.Key()
	}
	return out
}

// None never prefetches anything.
type None struct{}

func (None) Name() string            { return "none" }
func (None) Related(string) []string { return nil }

// Prefetcher drives one Strategy over a bounded, drop-oldest FIFO queue.
// An optional rate limiter throttles how fast the queue drains, useful
// when the loader is a remote call and neighbor fan-out is large.
type Prefetcher struct {
	cache    store.Store
	strategy Strategy
	maxQueue int
	limiter  *rate.Limiter

	mu    sync.Mutex
	queue []string
	queued map[string]struct{}

	logger  observability.Logger
	metrics observability.MetricsClient
}

// Config configures a Prefetcher.
type Config struct {
	Cache    store.Store
	Strategy Strategy
	// MaxQueueSize bounds the internal FIFO; 0 means unbounded.
	MaxQueueSize int
	// Limiter, if set, is waited on once before each loader call while
	// the queue drains, capping loader calls per second. Optional (spec
	// §4.I does not require throttling).
	Limiter *rate.Limiter
	Logger  observability.Logger
	Metrics observability.MetricsClient
}

// New constructs a Prefetcher.
func New(cfg Config) *Prefetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}
	strategy := cfg.Strategy
	if strategy == nil {
		strategy = None{}
	}
	return &Prefetcher{
		cache:    cfg.Cache,
		strategy: strategy,
		maxQueue: cfg.MaxQueueSize,
		limiter:  cfg.Limiter,
		queue:    nil,
		queued:   make(map[string]struct{}),
		logger:   logger,
		metrics:  metrics,
	}
}

// Prefetch is called after an access to accessedKey. It computes the
// related keys via the strategy, enqueues the ones not already cached,
// dropping the oldest queued entries if the bound is exceeded, then
// drains up to MaxQueueSize keys through the loader.
func (p *Prefetcher) Prefetch(ctx context.Context, accessedKey string, loader Loader) error {
	for _, key := range p.strategy.Related(accessedKey) {
		if _, ok, _ := p.cache.Get(ctx, key); ok {
			continue
		}
		p.enqueue(key)
	}
	return p.drain(ctx, loader)
}

func (p *Prefetcher) enqueue(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, dup := p.queued[key]; dup {
		return
	}

	p.queue = append(p.queue, key)
	p.queued[key] = struct{}{}

	for p.maxQueue > 0 && len(p.queue) > p.maxQueue {
		dropped := p.queue[0]
		p.queue = p.queue[1:]
		delete(p.queued, dropped)
		p.metrics.IncrementCounter("prefetch_queue_drops_total", 1, nil)
	}
}

// drain services up to MaxQueueSize keys from the queue.
func (p *Prefetcher) drain(ctx context.Context, loader Loader) error {
	limit := p.maxQueue
	if limit <= 0 {
		limit = len(p.pending())
	}

	for i := 0; i < limit; i++ {
		key, ok := p.dequeue()
		if !ok {
			break
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		value, found, err := loader(ctx, key)
		if err != nil {
			p.logger.Warn("prefetch: loader failed", map[string]interface{}{"key": key, "error": err.Error()})
			continue
		}
		if !found {
			continue
		}
		if err := p.cache.Set(ctx, key, value); err != nil {
			p.logger.Warn("prefetch: set failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return nil
}

func (p *Prefetcher) dequeue() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return "", false
	}
	key := p.queue[0]
	p.queue = p.queue[1:]
	delete(p.queued, key)
	return key, true
}

func (p *Prefetcher) pending() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.queue...)
}
