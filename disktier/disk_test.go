package disktier_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/zarrs-cache/cacheerr"
	"github.com/luhtfiimanal/zarrs-cache/disktier"
)

func newTier(t *testing.T, maxSize int64) *disktier.Tier {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "cache")
	tier, err := disktier.New(disktier.Config{Dir: dir, MaxSizeBytes: maxSize})
	require.NoError(t, err)
	return tier
}

func TestTier_SetGet_RoundTrip(t *testing.T) {
	ctx := context.Background()
	tier := newTier(t, 0)

	require.NoError(t, tier.Set(ctx, "temperature/1.2.3", []byte("payload")))

	v, ok, err := tier.Get(ctx, "temperature/1.2.3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), v)
}

func TestTier_Get_Miss(t *testing.T) {
	ctx := context.Background()
	tier := newTier(t, 0)

	_, ok, err := tier.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTier_EvictsLeastRecentlyAccessed(t *testing.T) {
	ctx := context.Background()
	tier := newTier(t, 10)

	require.NoError(t, tier.Set(ctx, "a", []byte("12345")))
	require.NoError(t, tier.Set(ctx, "b", []byte("67890")))

	_, _, _ = tier.Get(ctx, "b")

	require.NoError(t, tier.Set(ctx, "c", []byte("abcde")))

	_, ok, _ := tier.Get(ctx, "a")
	assert.False(t, ok)

	_, ok, _ = tier.Get(ctx, "b")
	assert.True(t, ok)
}

func TestTier_Set_RejectsOversizedValue(t *testing.T) {
	ctx := context.Background()
	tier := newTier(t, 4)

	err := tier.Set(ctx, "a", []byte("way too big"))
	require.Error(t, err)
	assert.Equal(t, cacheerr.CacheFull, cacheerr.KindOf(err))
}

func TestTier_Overwrite_KeepsSizeConsistentWithIndex(t *testing.T) {
	ctx := context.Background()
	tier := newTier(t, 0)

	require.NoError(t, tier.Set(ctx, "a", []byte("short")))
	require.NoError(t, tier.Set(ctx, "a", []byte("a much longer value")))

	stats := tier.Stats(ctx)
	assert.Equal(t, int64(len("a much longer value")), stats.SizeBytes)
	assert.Equal(t, int64(1), stats.EntryCount)
}

func TestTier_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "cache")
	tier, err := disktier.New(disktier.Config{Dir: dir, TTL: 10 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, tier.Set(ctx, "a", []byte("v")))
	time.Sleep(20 * time.Millisecond)

	_, ok, _ := tier.Get(ctx, "a")
	assert.False(t, ok)
}

func TestTier_Clear_RemovesFiles(t *testing.T) {
	ctx := context.Background()
	tier := newTier(t, 0)

	require.NoError(t, tier.Set(ctx, "a", []byte("v1")))
	require.NoError(t, tier.Set(ctx, "b", []byte("v2")))
	require.NoError(t, tier.Clear(ctx))

	assert.Equal(t, int64(0), tier.Size(ctx))
	_, ok, _ := tier.Get(ctx, "a")
	assert.False(t, ok)
}

func TestTier_RebuildIndex_RecoversEntries(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "cache")

	tier, err := disktier.New(disktier.Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, tier.Set(ctx, "a", []byte("v1")))

	reopened, err := disktier.New(disktier.Config{Dir: dir, RebuildIndex: true})
	require.NoError(t, err)

	stats := reopened.Stats(ctx)
	assert.Equal(t, int64(1), stats.EntryCount)
}
