package cacheerr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/zarrs-cache/cacheerr"
)

func TestCacheFullError(t *testing.T) {
	err := cacheerr.CacheFullError("temperature/1.2.3", 4096)
	require.Error(t, err)
	assert.Equal(t, cacheerr.CacheFull, cacheerr.KindOf(err))
	assert.Contains(t, err.Error(), "temperature/1.2.3")
}

func TestIoError_Wrapping(t *testing.T) {
	cause := errors.New("disk full")
	err := cacheerr.IoError("temperature/1.2.3", cause)

	assert.Equal(t, cacheerr.Io, cacheerr.KindOf(err))
	assert.True(t, errors.Is(err, cause))
	assert.ErrorContains(t, err, "disk full")
}

func TestKindOf_UnknownForPlainError(t *testing.T) {
	assert.Equal(t, cacheerr.Unknown, cacheerr.KindOf(errors.New("oops")))
}

func TestError_Is_MatchesByKind(t *testing.T) {
	a := cacheerr.New(cacheerr.Serialization, "bad payload")
	b := cacheerr.New(cacheerr.Serialization, "different message, same kind")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, cacheerr.New(cacheerr.Io, "bad payload")))
}
