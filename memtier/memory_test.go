package memtier_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/zarrs-cache/cacheerr"
	"github.com/luhtfiimanal/zarrs-cache/memtier"
)

func TestTier_SetGet_RoundTrip(t *testing.T) {
	ctx := context.Background()
	tier := memtier.New(memtier.Config{MaxSizeBytes: 1024})

	require.NoError(t, tier.Set(ctx, "a", []byte("hello")))

	v, ok, err := tier.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), v)
}

func TestTier_Get_Miss(t *testing.T) {
	ctx := context.Background()
	tier := memtier.New(memtier.Config{MaxSizeBytes: 1024})

	_, ok, err := tier.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	stats := tier.Stats(ctx)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestTier_EvictsOldestWhenFull(t *testing.T) {
	ctx := context.Background()
	tier := memtier.New(memtier.Config{MaxSizeBytes: 10})

	require.NoError(t, tier.Set(ctx, "a", []byte("12345")))
	require.NoError(t, tier.Set(ctx, "b", []byte("67890")))

	// Touch "b" so "a" becomes the least-recently-used entry.
	_, _, _ = tier.Get(ctx, "b")

	require.NoError(t, tier.Set(ctx, "c", []byte("abcde")))

	_, ok, _ := tier.Get(ctx, "a")
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok, _ = tier.Get(ctx, "b")
	assert.True(t, ok)

	_, ok, _ = tier.Get(ctx, "c")
	assert.True(t, ok)
}

func TestTier_Set_RejectsOversizedValue(t *testing.T) {
	ctx := context.Background()
	tier := memtier.New(memtier.Config{MaxSizeBytes: 4})

	err := tier.Set(ctx, "a", []byte("way too big"))
	require.Error(t, err)
	assert.Equal(t, cacheerr.CacheFull, cacheerr.KindOf(err))
}

func TestTier_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	tier := memtier.New(memtier.Config{MaxSizeBytes: 1024, TTL: 10 * time.Millisecond})

	require.NoError(t, tier.Set(ctx, "a", []byte("v")))
	time.Sleep(20 * time.Millisecond)

	_, ok, _ := tier.Get(ctx, "a")
	assert.False(t, ok, "entry should have expired")
}

func TestTier_Remove(t *testing.T) {
	ctx := context.Background()
	tier := memtier.New(memtier.Config{MaxSizeBytes: 1024})

	require.NoError(t, tier.Set(ctx, "a", []byte("v")))
	require.NoError(t, tier.Remove(ctx, "a"))

	_, ok, _ := tier.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, int64(0), tier.Size(ctx))
}

func TestTier_Clear(t *testing.T) {
	ctx := context.Background()
	tier := memtier.New(memtier.Config{MaxSizeBytes: 1024})

	require.NoError(t, tier.Set(ctx, "a", []byte("v1")))
	require.NoError(t, tier.Set(ctx, "b", []byte("v2")))
	require.NoError(t, tier.Clear(ctx))

	assert.Equal(t, int64(0), tier.Size(ctx))
	stats := tier.Stats(ctx)
	assert.Equal(t, int64(0), stats.EntryCount)
}

func TestTier_Overwrite_UpdatesSize(t *testing.T) {
	ctx := context.Background()
	tier := memtier.New(memtier.Config{MaxSizeBytes: 1024})

	require.NoError(t, tier.Set(ctx, "a", []byte("short")))
	require.NoError(t, tier.Set(ctx, "a", []byte("a much longer value")))

	assert.Equal(t, int64(len("a much longer value")), tier.Size(ctx))
}
