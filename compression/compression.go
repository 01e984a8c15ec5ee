// Package compression wraps any store.Store with transparent
// compress-on-set / decompress-on-get behavior.
package compression

import (
	"bytes"
	"context"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/luhtfiimanal/zarrs-cache/observability"
	"github.com/luhtfiimanal/zarrs-cache/store"
)

// Codec compresses and decompresses byte slices. Two implementations are
// provided: Identity (no-op) and Deflate.
type Codec interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// identity is the no-op Codec.
type identity struct{}

// Identity returns a Codec that passes bytes through unchanged.
func Identity() Codec { return identity{} }

func (identity) Compress(data []byte) ([]byte, error)   { return data, nil }
func (identity) Decompress(data []byte) ([]byte, error) { return data, nil }

// deflateCodec implements Codec over klauspost/compress/flate, a drop-in,
// faster replacement for the standard library's compress/flate and a
// direct dependency of the teacher corpus.
type deflateCodec struct {
	level int
}

// DefaultDeflateLevel matches spec §4.E's default.
const DefaultDeflateLevel = 6

// Deflate returns a deflate Codec at the given level (clamped to [0,9]).
func Deflate(level int) Codec {
	if level < 0 {
		level = 0
	}
	if level > 9 {
		level = 9
	}
	return deflateCodec{level: level}
}

func (d deflateCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, d.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (deflateCodec) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}

// Store wraps an inner store.Store, compressing values on Set and
// decompressing on Get. Compression failures fall back to storing the
// value uncompressed (logged); decompression failures are treated as a
// miss, leaving the stored entry in place (spec §4.E, §7 tier 1).
type Store struct {
	inner   store.Store
	codec   Codec
	logger  observability.Logger
	metrics observability.MetricsClient
}

// Config configures a compression Store.
type Config struct {
	Inner   store.Store
	Codec   Codec
	Logger  observability.Logger
	Metrics observability.MetricsClient
}

// New wraps cfg.Inner with cfg.Codec.
func New(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}
	codec := cfg.Codec
	if codec == nil {
		codec = Identity()
	}
	return &Store{inner: cfg.Inner, codec: codec, logger: logger, metrics: metrics}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}

	decompressed, err := s.codec.Decompress(raw)
	if err != nil {
		s.logger.Warn("compression: decompress failed, treating as miss", map[string]interface{}{
			"key": key, "error": err.Error(),
		})
		s.metrics.IncrementCounter("compression_decompress_failures_total", 1, nil)
		return nil, false, nil
	}
	return decompressed, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	compressed, err := s.codec.Compress(value)
	if err != nil {
		s.logger.Warn("compression: compress failed, storing uncompressed", map[string]interface{}{
			"key": key, "error": err.Error(),
		})
		s.metrics.IncrementCounter("compression_compress_failures_total", 1, nil)
		compressed = value
	}
	return s.inner.Set(ctx, key, compressed)
}

func (s *Store) Remove(ctx context.Context, key string) error { return s.inner.Remove(ctx, key) }
func (s *Store) Clear(ctx context.Context) error              { return s.inner.Clear(ctx) }
func (s *Store) Size(ctx context.Context) int64               { return s.inner.Size(ctx) }
func (s *Store) Stats(ctx context.Context) store.Stats         { return s.inner.Stats(ctx) }
