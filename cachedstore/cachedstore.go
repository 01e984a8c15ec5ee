// Package cachedstore wires memory, disk, compression, the hybrid
// engine, warming, prefetch, and analytics into one store.Store façade
// built from a cacheconfig.Config (spec §4, end-to-end).
package cachedstore

import (
	"context"
	"time"

	"github.com/luhtfiimanal/zarrs-cache/analytics"
	"github.com/luhtfiimanal/zarrs-cache/cacheconfig"
	"github.com/luhtfiimanal/zarrs-cache/compression"
	"github.com/luhtfiimanal/zarrs-cache/disktier"
	"github.com/luhtfiimanal/zarrs-cache/hybrid"
	"github.com/luhtfiimanal/zarrs-cache/memtier"
	"github.com/luhtfiimanal/zarrs-cache/observability"
	"github.com/luhtfiimanal/zarrs-cache/prefetch"
	"github.com/luhtfiimanal/zarrs-cache/store"
	"github.com/luhtfiimanal/zarrs-cache/warming"
)

// Store is the assembled cache: the hybrid engine (optionally wrapped
// in compression) plus its warming, prefetch, and analytics
// collaborators.
type Store struct {
	store.Store

	Engine     *hybrid.Engine
	Warmer     *warming.CacheWarmer
	Prefetcher *prefetch.Prefetcher
	Analytics  *analytics.Collector

	// ScheduledWarmer runs Warmer on cfg.Warming.ScheduleInterval when
	// Options.Loader is set, nil otherwise. The caller owns its
	// lifecycle: call Start(ctx) to begin ticking and Stop() to halt it.
	ScheduledWarmer *warming.ScheduledWarmer

	logger observability.Logger
}

// Options lets a caller inject a Codec, Logger, Metrics, Clock, and a
// warming Loader into New without threading them through
// cacheconfig.Config (which is purely the serializable surface of
// spec §6).
type Options struct {
	Codec   compression.Codec
	Logger  observability.Logger
	Metrics observability.MetricsClient
	Clock   hybrid.Clock

	// Loader, if set, drives a ScheduledWarmer ticking every
	// cfg.Warming.ScheduleInterval. Left nil, no ScheduledWarmer is
	// constructed (the caller still has the standalone Warmer to call
	// Warm on explicitly).
	Loader warming.Loader
}

// New assembles a Store from cfg. The disk directory is created as a
// side effect (disktier.New's responsibility).
func New(cfg cacheconfig.Config, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}

	mem := memtier.New(memtier.Config{
		MaxSizeBytes: cfg.Hybrid.MemorySize,
		TTL:          cfg.Hybrid.TTL,
		Logger:       logger.WithPrefix("memtier"),
		Metrics:      metrics,
	})

	disk, err := disktier.New(disktier.Config{
		Dir:          cfg.Hybrid.DiskDir,
		MaxSizeBytes: cfg.Hybrid.DiskSize,
		TTL:          cfg.Hybrid.TTL,
		RebuildIndex: true,
		Logger:       logger.WithPrefix("disktier"),
		Metrics:      metrics,
	})
	if err != nil {
		return nil, err
	}

	var memStore, diskStore store.Store = mem, disk
	if opts.Codec != nil {
		memStore = compression.New(compression.Config{Inner: mem, Codec: opts.Codec, Logger: logger, Metrics: metrics})
		diskStore = compression.New(compression.Config{Inner: disk, Codec: opts.Codec, Logger: logger, Metrics: metrics})
	}

	engine := hybrid.New(hybrid.Config{
		Memory:              memStore,
		Disk:                diskStore,
		PromotionThreshold:  cfg.Hybrid.PromotionThreshold,
		DemotionThreshold:   cfg.Hybrid.DemotionThreshold,
		MaintenanceInterval: cfg.Hybrid.MaintenanceInterval,
		Clock:               opts.Clock,
		Logger:              logger.WithPrefix("hybrid"),
		Metrics:             metrics,
	})

	warmer := warming.New(warming.Config{
		Cache:       engine,
		MaxWarmKeys: cfg.Warming.MaxWarmKeys,
		Strategies: []warming.Strategy{
			warming.NewPredictiveStrategy(cfg.Warming.MinFrequency),
			warming.NewNeighborStrategy(cfg.Warming.NeighborDistance),
		},
		Logger:  logger.WithPrefix("warming"),
		Metrics: metrics,
	})

	pf := prefetch.New(prefetch.Config{
		Cache:        engine,
		Strategy:     prefetch.NewNeighborChunk(cfg.Cache.Prefetch.NeighborChunks),
		MaxQueueSize: cfg.Cache.Prefetch.MaxQueueSize,
		Logger:       logger.WithPrefix("prefetch"),
		Metrics:      metrics,
	})

	collector := analytics.New(analytics.Config{
		MaxHistorySize:      cfg.Metrics.MaxHistorySize,
		TrackAccessPatterns: cfg.Metrics.TrackAccessPatterns,
		TrackEfficiency:     cfg.Metrics.TrackEfficiency,
	})

	var scheduledWarmer *warming.ScheduledWarmer
	if opts.Loader != nil {
		scheduledWarmer = warming.NewScheduledWarmer(
			warmer,
			opts.Loader,
			cfg.Warming.ScheduleInterval,
			0,
			logger.WithPrefix("warming"),
		)
	}

	return &Store{
		Store:           engine,
		Engine:          engine,
		Warmer:          warmer,
		Prefetcher:      pf,
		Analytics:       collector,
		ScheduledWarmer: scheduledWarmer,
		logger:          logger,
	}, nil
}

// GetTracked is a Get that additionally records the operation with the
// warmer's access tracker and the analytics collector and, on a hit with
// a non-nil prefetchLoader, runs the prefetcher synchronously before
// returning (a prefetch error is logged, not returned), wiring the read
// path described across spec §4.H/§4.I/§4.J into one call.
func (s *Store) GetTracked(ctx context.Context, key string, prefetchLoader prefetch.Loader) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := s.Engine.Get(ctx, key)
	elapsed := time.Since(start)

	s.Warmer.RecordAccess(key)
	s.Analytics.RecordOperation(key, ok, elapsed, time.Now())

	if ok && prefetchLoader != nil {
		if perr := s.Prefetcher.Prefetch(ctx, key, prefetchLoader); perr != nil {
			s.logger.Warn("cachedstore: prefetch failed", map[string]interface{}{"key": key, "error": perr.Error()})
		}
	}

	return value, ok, err
}
