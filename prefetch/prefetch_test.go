package prefetch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/zarrs-cache/memtier"
	"github.com/luhtfiimanal/zarrs-cache/prefetch"
)

func TestNeighborChunk_PrefetchesAndFills(t *testing.T) {
	ctx := context.Background()
	cache := memtier.New(memtier.Config{MaxSizeBytes: 1 << 20})

	p := prefetch.New(prefetch.Config{
		Cache:        cache,
		Strategy:     prefetch.NewNeighborChunk(1),
		MaxQueueSize: 10,
	})

	loaded := map[string][]byte{"temperature/3.2.2": []byte("data")}
	loader := func(_ context.Context, key string) ([]byte, bool, error) {
		v, ok := loaded[key]
		return v, ok, nil
	}

	require.NoError(t, p.Prefetch(ctx, "temperature/2.2.2", loader))

	v, ok, _ := cache.Get(ctx, "temperature/3.2.2")
	require.True(t, ok)
	assert.Equal(t, []byte("data"), v)
}

func TestNone_NeverPrefetches(t *testing.T) {
	ctx := context.Background()
	cache := memtier.New(memtier.Config{MaxSizeBytes: 1 << 20})

	calls := 0
	loader := func(_ context.Context, _ string) ([]byte, bool, error) {
		calls++
		return nil, false, nil
	}

	p := prefetch.New(prefetch.Config{Cache: cache, Strategy: prefetch.None{}})
	require.NoError(t, p.Prefetch(ctx, "temperature/2.2.2", loader))
	assert.Equal(t, 0, calls)
}

func TestSequential_UsesCumulativeSuccessors(t *testing.T) {
	ctx := context.Background()
	cache := memtier.New(memtier.Config{MaxSizeBytes: 1 << 20})

	p := prefetch.New(prefetch.Config{
		Cache:        cache,
		Strategy:     prefetch.NewSequential(2),
		MaxQueueSize: 10,
	})

	var seen []string
	loader := func(_ context.Context, key string) ([]byte, bool, error) {
		seen = append(seen, key)
		return []byte("x"), true, nil
	}

	require.NoError(t, p.Prefetch(ctx, "temperature/0.0.0", loader))

	assert.ElementsMatch(t, []string{"temperature/0.0.1", "temperature/0.0.3"}, seen)
}

func TestQueue_DropsOldestWhenFull(t *testing.T) {
	ctx := context.Background()
	cache := memtier.New(memtier.Config{MaxSizeBytes: 1 << 20})

	// Distance 2 on a 3-d key produces more neighbors than the bound, so
	// enqueue must drop some before drain ever runs.
	p := prefetch.New(prefetch.Config{
		Cache:        cache,
		Strategy:     prefetch.NewNeighborChunk(2),
		MaxQueueSize: 2,
	})

	var seen []string
	loader := func(_ context.Context, key string) ([]byte, bool, error) {
		seen = append(seen, key)
		return []byte("x"), true, nil
	}

	require.NoError(t, p.Prefetch(ctx, "temperature/5.5.5", loader))
	assert.LessOrEqual(t, len(seen), 2)
	// Only the two most recently enqueued neighbors (last dimension,
	// offset 2) survive; everything enqueued earlier was dropped.
	assert.Equal(t, []string{"temperature/5.5.7", "temperature/5.5.3"}, seen)
}
