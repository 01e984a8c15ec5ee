package cacheconfig_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/zarrs-cache/cacheconfig"
)

func TestDefault_MatchesSpecDefaults(t *testing.T) {
	cfg := cacheconfig.Default()

	assert.EqualValues(t, 100*1024*1024, cfg.Cache.MaxMemorySize)
	assert.Equal(t, 2, cfg.Cache.Prefetch.NeighborChunks)
	assert.Equal(t, 10, cfg.Cache.Prefetch.MaxQueueSize)
	assert.EqualValues(t, 64*1024*1024, cfg.Hybrid.MemorySize)
	assert.EqualValues(t, 1024*1024*1024, cfg.Hybrid.DiskSize)
	assert.InDelta(t, 0.1, cfg.Hybrid.PromotionThreshold, 0.0001)
	assert.Equal(t, 1000, cfg.Metrics.MaxHistorySize)
	assert.True(t, cfg.Metrics.TrackAccessPatterns)
}

func TestLoadFromViper_OverridesDefaults(t *testing.T) {
	v := viper.New()
	v.Set("hybrid.memory_size", 128*1024*1024)
	v.Set("hybrid.promotion_threshold", 0.25)

	cfg, err := cacheconfig.LoadFromViper(v)
	require.NoError(t, err)

	assert.EqualValues(t, 128*1024*1024, cfg.Hybrid.MemorySize)
	assert.InDelta(t, 0.25, cfg.Hybrid.PromotionThreshold, 0.0001)
}

func TestValidate_RejectsNonPositiveMemorySize(t *testing.T) {
	cfg := cacheconfig.Default()
	cfg.Cache.MaxMemorySize = 0

	err := cacheconfig.Validate(cfg)
	assert.Error(t, err)
}

func TestYAML_RoundTripsAllFields(t *testing.T) {
	cfg := cacheconfig.Default()
	cfg.Hybrid.MemorySize = 42 * 1024 * 1024
	cfg.Hybrid.DiskDir = "/tmp/custom-dir"
	cfg.Hybrid.PromotionThreshold = 0.33
	cfg.Warming.MaxWarmKeys = 250
	cfg.Cache.Prefetch.NeighborChunks = 3

	data, err := cfg.ToYAML()
	require.NoError(t, err)

	roundTripped, err := cacheconfig.LoadFromYAML(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, roundTripped)
}
