// Package store defines the byte store contract every tier (memory, disk)
// and every decorator (compression, hybrid, façade) implements.
package store

import (
	"context"
)

// Store is the uniform async contract every single-tier and composed cache
// in this module satisfies. Implementations must be safe for concurrent
// use by multiple goroutines.
type Store interface {
	// Get returns the current value for key, or ok=false if absent,
	// expired, or unreadable. Get never returns a non-nil error: I/O
	// failures are logged internally, the offending entry is removed,
	// and the call is counted as a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set inserts or replaces key, evicting other entries as needed to
	// respect configured bounds. Returns *cacheerr.Error{Kind: CacheFull}
	// if value cannot fit even after eviction, or {Kind: Io} on a
	// filesystem write failure.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key if present. Absence is not an error.
	Remove(ctx context.Context, key string) error

	// Clear drops every entry and resets Size to zero.
	Clear(ctx context.Context) error

	// Size returns current total bytes held.
	Size(ctx context.Context) int64

	// Stats returns a non-blocking snapshot of counters. Counters may be
	// updated concurrently with the read.
	Stats(ctx context.Context) Stats
}

// Stats is the non-blocking snapshot every Store exposes.
type Stats struct {
	Hits       int64
	Misses     int64
	SizeBytes  int64
	EntryCount int64
}

// HitRate returns hits/(hits+misses), or 0 if both are zero.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
