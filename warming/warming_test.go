package warming_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/zarrs-cache/memtier"
	"github.com/luhtfiimanal/zarrs-cache/warming"
)

func TestNeighborStrategy_WarmsAdjacentChunks(t *testing.T) {
	ctx := context.Background()
	cache := memtier.New(memtier.Config{MaxSizeBytes: 1 << 20})

	w := warming.New(warming.Config{
		Cache:       cache,
		MaxWarmKeys: 10,
		Strategies:  []warming.Strategy{warming.NewNeighborStrategy(1)},
	})

	w.RecordAccess("temperature/2.2.2")

	loaded := map[string][]byte{
		"temperature/3.2.2": []byte("neighbor"),
	}
	loader := func(_ context.Context, key string) ([]byte, bool, error) {
		v, ok := loaded[key]
		return v, ok, nil
	}

	warmed, err := w.Warm(ctx, loader)
	require.NoError(t, err)
	assert.Equal(t, 1, warmed)

	v, ok, _ := cache.Get(ctx, "temperature/3.2.2")
	require.True(t, ok)
	assert.Equal(t, []byte("neighbor"), v)
}

// TestNeighborStrategy_ChunkPrefixedKey exercises the literal scenario
// from spec.md §8: a "chunk_"-prefixed key warms exactly its six
// axis-neighbors, also "chunk_"-prefixed.
func TestNeighborStrategy_ChunkPrefixedKey(t *testing.T) {
	strategy := warming.NewNeighborStrategy(1)
	ctx := warming.WarmingContext{RecentAccess: map[string]int64{"temperature/chunk_2.2.2": 1}}

	candidates := strategy.Candidates(ctx, 0)

	assert.ElementsMatch(t, []string{
		"temperature/chunk_1.2.2",
		"temperature/chunk_2.1.2",
		"temperature/chunk_2.2.1",
		"temperature/chunk_2.2.3",
		"temperature/chunk_2.3.2",
		"temperature/chunk_3.2.2",
	}, candidates)
}

func TestWarm_SkipsAlreadyCachedKeys(t *testing.T) {
	ctx := context.Background()
	cache := memtier.New(memtier.Config{MaxSizeBytes: 1 << 20})
	require.NoError(t, cache.Set(ctx, "temperature/3.2.2", []byte("already here")))

	w := warming.New(warming.Config{
		Cache:      cache,
		Strategies: []warming.Strategy{warming.NewNeighborStrategy(1)},
	})
	w.RecordAccess("temperature/2.2.2")

	calls := 0
	loader := func(_ context.Context, key string) ([]byte, bool, error) {
		calls++
		return []byte("should not be used"), true, nil
	}

	_, err := w.Warm(ctx, loader)
	require.NoError(t, err)

	v, _, _ := cache.Get(ctx, "temperature/3.2.2")
	assert.Equal(t, []byte("already here"), v)
}

func TestPredictiveStrategy_FiltersByMinFrequency(t *testing.T) {
	p := warming.NewPredictiveStrategy(1000) // effectively unreachable frequency
	p.RecordAccess("a", time.Now())

	ctx := warming.WarmingContext{RecentAccess: map[string]int64{"a": 5}}
	candidates := p.Candidates(ctx, 10)
	assert.Empty(t, candidates)
}

func TestScheduledWarmer_StopsCleanly(t *testing.T) {
	cache := memtier.New(memtier.Config{MaxSizeBytes: 1 << 20})
	w := warming.New(warming.Config{Cache: cache})

	loader := func(_ context.Context, _ string) ([]byte, bool, error) { return nil, false, nil }
	sw := warming.NewScheduledWarmer(w, loader, time.Hour, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sw.Start(ctx)
	sw.Stop()
}
