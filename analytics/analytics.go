// Package analytics collects performance snapshots and access patterns
// from a running cache and aggregates them into a reporting structure
// (spec §4.J).
package analytics

import (
	"container/heap"
	"math"
	"sync"
	"time"

	"github.com/luhtfiimanal/zarrs-cache/keycodec"
)

const (
	maxIntervalHistory = 100
	maxTemporalHistory = 10000
	maxSequenceHistory = 1000
)

// Snapshot is one point-in-time performance reading fed to
// Collector.RecordSnapshot.
type Snapshot struct {
	At         time.Time
	HitRate    float64
	ResponseMs float64
	Throughput float64
	SizeBytes  int64
}

// Config configures a Collector.
type Config struct {
	MaxHistorySize      int
	TrackAccessPatterns bool
	TrackEfficiency     bool
}

// keyInfo is per-key pattern-analysis bookkeeping (spec §4.J).
type keyInfo struct {
	total     int64
	hits      int64
	misses    int64
	lastSeen  time.Time
	intervals []time.Duration
}

// temporalRecord is one entry in the bounded access-order FIFO.
type temporalRecord struct {
	key    string
	at     time.Time
	wasHit bool
}

// Collector aggregates operation records, periodic snapshots, and
// efficiency counters into a CacheAnalyticsReport on demand.
type Collector struct {
	cfg Config

	mu       sync.Mutex
	history  []Snapshot
	keyInfo  map[string]*keyInfo
	temporal []temporalRecord
	sequence []keycodec.Coord

	promotionsExecuted  int64
	promotionsEffective int64
	promotionAccuracy   float64

	warmingCalls      int64
	warmingKeysWarmed int64
	warmingHitRate    float64

	memoryUtilization float64
	diskUtilization   float64
}

// New constructs a Collector.
func New(cfg Config) *Collector {
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = 1000
	}
	return &Collector{
		cfg:     cfg,
		keyInfo: make(map[string]*keyInfo),
	}
}

// RecordOperation records one cache operation's outcome, updating
// per-key bookkeeping and the temporal and spatial trackers.
func (c *Collector) RecordOperation(key string, wasHit bool, responseTime time.Duration, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.TrackAccessPatterns {
		info, ok := c.keyInfo[key]
		if !ok {
			info = &keyInfo{}
			c.keyInfo[key] = info
		}
		info.total++
		if wasHit {
			info.hits++
		} else {
			info.misses++
		}
		if !info.lastSeen.IsZero() {
			info.intervals = append(info.intervals, at.Sub(info.lastSeen))
			if len(info.intervals) > maxIntervalHistory {
				info.intervals = info.intervals[len(info.intervals)-maxIntervalHistory:]
			}
		}
		info.lastSeen = at

		c.temporal = append(c.temporal, temporalRecord{key: key, at: at, wasHit: wasHit})
		if len(c.temporal) > maxTemporalHistory {
			c.temporal = c.temporal[len(c.temporal)-maxTemporalHistory:]
		}

		if coord, ok := keycodec.Parse(key); ok {
			c.sequence = append(c.sequence, coord)
			if len(c.sequence) > maxSequenceHistory {
				c.sequence = c.sequence[len(c.sequence)-maxSequenceHistory:]
			}
		}
	}

	_ = responseTime // folded into snapshots via RecordSnapshot, not per-op here
}

// RecordSnapshot appends a performance snapshot, evicting the oldest
// past MaxHistorySize.
func (c *Collector) RecordSnapshot(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, s)
	if len(c.history) > c.cfg.MaxHistorySize {
		c.history = c.history[len(c.history)-c.cfg.MaxHistorySize:]
	}
}

// RecordUtilization feeds the most recent memory/disk utilization
// fractions (0..1) into the efficiency analysis.
func (c *Collector) RecordUtilization(memory, disk float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memoryUtilization = memory
	c.diskUtilization = disk
}

// RecordPromotion increments the promotion counters and recomputes
// promotion_accuracy = effective / executed.
func (c *Collector) RecordPromotion(wasEffective bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.promotionsExecuted++
	if wasEffective {
		c.promotionsEffective++
	}
	if c.promotionsExecuted > 0 {
		c.promotionAccuracy = float64(c.promotionsEffective) / float64(c.promotionsExecuted)
	}
}

// RecordWarming increments warming counters and updates the running
// warming hit-rate as the arithmetic mean of the new per-call hit-rate
// with the previous aggregate — a biased online average, preserved for
// fidelity with observed behavior (spec §4.J, §9 open question 2).
func (c *Collector) RecordWarming(keysWarmed int, subsequentHits int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.warmingCalls++
	c.warmingKeysWarmed += int64(keysWarmed)

	callRate := 0.0
	if keysWarmed > 0 {
		callRate = float64(subsequentHits) / float64(keysWarmed)
	}

	if c.warmingCalls == 1 {
		c.warmingHitRate = callRate
	} else {
		c.warmingHitRate = (callRate + c.warmingHitRate) / 2
	}
}

// Recommendation is one actionable suggestion in a report.
type Recommendation struct {
	Category       string
	Priority       string
	Description    string
	ExpectedImpact string
}

// AccessPatterns summarizes the spatial/temporal view of recent access.
type AccessPatterns struct {
	MostAccessedKeys     []KeyCount
	SpatialLocalityScore float64
	AccessDistribution   string
}

// KeyCount pairs a key with its total access count.
type KeyCount struct {
	Key   string
	Count int64
}

// PerformanceSummary aggregates the snapshot history.
type PerformanceSummary struct {
	MeanHitRate    float64
	PeakHitRate    float64
	MeanResponseMs float64
	MeanThroughput float64
	SizeTrend      string
}

// EfficiencyAnalysis aggregates promotion/warming/resource metrics.
type EfficiencyAnalysis struct {
	PromotionEffectiveness float64
	WarmingEffectiveness   float64
	ResourceEfficiency     float64
	Bottlenecks            []string
}

// Report is the CacheAnalyticsReport of spec §6.
type Report struct {
	GeneratedAt        time.Time
	TimeRange          time.Duration
	PerformanceSummary PerformanceSummary
	AccessPatterns     AccessPatterns
	EfficiencyAnalysis EfficiencyAnalysis
	Recommendations    []Recommendation
}

// Generate synchronously aggregates the collector's state into a
// Report covering the given window (used only to label TimeRange; all
// history currently held is considered).
func (c *Collector) Generate(window time.Duration) Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := Report{
		GeneratedAt: time.Now(),
		TimeRange:   window,
	}

	report.PerformanceSummary = c.performanceSummary()
	report.AccessPatterns = c.accessPatterns()
	report.EfficiencyAnalysis = c.efficiencyAnalysis()
	report.Recommendations = c.recommendations(report)

	return report
}

func (c *Collector) performanceSummary() PerformanceSummary {
	if len(c.history) == 0 {
		return PerformanceSummary{SizeTrend: "unknown"}
	}

	var sumHit, sumResp, sumThroughput, peak float64
	for _, s := range c.history {
		sumHit += s.HitRate
		sumResp += s.ResponseMs
		sumThroughput += s.Throughput
		if s.HitRate > peak {
			peak = s.HitRate
		}
	}
	n := float64(len(c.history))

	trend := "unknown"
	if len(c.history) >= 2 {
		first := c.history[0].SizeBytes
		last := c.history[len(c.history)-1].SizeBytes
		if first != 0 {
			ratio := float64(last) / float64(first)
			switch {
			case ratio > 1.1:
				trend = "increasing"
			case ratio < 0.9:
				trend = "decreasing"
			default:
				trend = "stable"
			}
		}
	}

	return PerformanceSummary{
		MeanHitRate:    sumHit / n,
		PeakHitRate:    peak,
		MeanResponseMs: sumResp / n,
		MeanThroughput: sumThroughput / n,
		SizeTrend:      trend,
	}
}

func (c *Collector) accessPatterns() AccessPatterns {
	return AccessPatterns{
		MostAccessedKeys:     c.topKeys(10),
		SpatialLocalityScore: c.spatialLocalityScore(),
		AccessDistribution:   c.accessDistribution(),
	}
}

// topKeys returns the n keys with the highest total access count, using
// a bounded min-heap for top-K selection (container/heap), matching the
// corpus's GetTopQueries pattern.
func (c *Collector) topKeys(n int) []KeyCount {
	h := &keyCountHeap{}
	heap.Init(h)

	for key, info := range c.keyInfo {
		kc := KeyCount{Key: key, Count: info.total}
		if h.Len() < n {
			heap.Push(h, kc)
		} else if len(*h) > 0 && kc.Count > (*h)[0].Count {
			heap.Pop(h)
			heap.Push(h, kc)
		}
	}

	out := make([]KeyCount, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(KeyCount)
	}
	return out
}

type keyCountHeap []KeyCount

func (h keyCountHeap) Len() int            { return len(h) }
func (h keyCountHeap) Less(i, j int) bool  { return h[i].Count < h[j].Count }
func (h keyCountHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *keyCountHeap) Push(x interface{}) { *h = append(*h, x.(KeyCount)) }
func (h *keyCountHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// spatialLocalityScore is the fraction of consecutive pairs in the
// recent-sequence deque that are axis-neighbors (spec §4.J, GLOSSARY).
func (c *Collector) spatialLocalityScore() float64 {
	if len(c.sequence) < 2 {
		return 0
	}
	neighborPairs := 0
	for i := 1; i < len(c.sequence); i++ {
		if areNeighbors(c.sequence[i-1], c.sequence[i]) {
			neighborPairs++
		}
	}
	return float64(neighborPairs) / float64(len(c.sequence)-1)
}

// areNeighbors reports whether a and b share an array name and arity,
// every per-dimension difference is ≤ 1, and exactly one dimension
// differs by 1 (spec §4.J).
func areNeighbors(a, b keycodec.Coord) bool {
	if a.Array != b.Array || len(a.Coords) != len(b.Coords) {
		return false
	}
	diffDims := 0
	for i := range a.Coords {
		d := a.Coords[i] - b.Coords[i]
		if d < 0 {
			d = -d
		}
		if d > 1 {
			return false
		}
		if d == 1 {
			diffDims++
		}
	}
	return diffDims == 1
}

func (c *Collector) accessDistribution() string {
	if len(c.keyInfo) == 0 {
		return "uniform"
	}

	var total int64
	counts := make([]int64, 0, len(c.keyInfo))
	for _, info := range c.keyInfo {
		counts = append(counts, info.total)
		total += info.total
	}
	if total == 0 {
		return "uniform"
	}

	mean := float64(total) / float64(len(counts))
	var variance float64
	for _, cnt := range counts {
		d := float64(cnt) - mean
		variance += d * d
	}
	variance /= float64(len(counts))
	stddev := math.Sqrt(variance)
	locality := c.spatialLocalityScore()

	switch {
	case stddev < mean*0.5 && locality < 0.3:
		return "uniform"
	case stddev >= mean*0.5 && locality >= 0.5:
		return "clustered"
	case stddev >= mean*0.5:
		return "skewed"
	default:
		return "mixed"
	}
}

func (c *Collector) efficiencyAnalysis() EfficiencyAnalysis {
	resourceEfficiency := (c.memoryUtilization + c.diskUtilization) / 2

	var bottlenecks []string
	if c.memoryUtilization > 0.9 {
		bottlenecks = append(bottlenecks, "memory tier near capacity")
	}
	if c.diskUtilization > 0.9 {
		bottlenecks = append(bottlenecks, "disk tier near capacity")
	}
	if c.promotionAccuracy < 0.5 && c.promotionsExecuted > 0 {
		bottlenecks = append(bottlenecks, "promotion heuristic frequently ineffective")
	}

	return EfficiencyAnalysis{
		PromotionEffectiveness: c.promotionAccuracy,
		WarmingEffectiveness:   c.warmingHitRate,
		ResourceEfficiency:     resourceEfficiency,
		Bottlenecks:            bottlenecks,
	}
}

// recommendations applies the rule set of spec §4.J.
func (c *Collector) recommendations(r Report) []Recommendation {
	var out []Recommendation

	if r.PerformanceSummary.MeanHitRate < 0.8 {
		out = append(out, Recommendation{
			Category:       "Performance",
			Priority:       "high",
			Description:    "Overall hit rate is below 80%. Consider increasing cache size or tuning warming strategies.",
			ExpectedImpact: "Higher hit rate reduces average request latency.",
		})
	}
	if r.PerformanceSummary.MeanResponseMs > 10 {
		out = append(out, Recommendation{
			Category:       "Latency",
			Priority:       "medium",
			Description:    "Average response time exceeds 10ms. Investigate slow tiers or I/O contention.",
			ExpectedImpact: "Lower latency improves throughput under load.",
		})
	}
	if r.AccessPatterns.SpatialLocalityScore < 0.5 {
		out = append(out, Recommendation{
			Category:       "Access Patterns",
			Priority:       "medium",
			Description:    "Spatial locality score is low. Consider a neighbor-based prefetch or warming strategy.",
			ExpectedImpact: "Better locality utilization increases effective hit rate for adjacent chunk access.",
		})
	}
	if r.EfficiencyAnalysis.WarmingEffectiveness < 0.6 {
		out = append(out, Recommendation{
			Category:       "Cache Warming",
			Priority:       "low",
			Description:    "Warming hit-rate is below 60%. Revisit warming strategy selection or thresholds.",
			ExpectedImpact: "More effective warming reduces cold-start misses.",
		})
	}

	return out
}
