// Package cacheerr defines the closed set of failure kinds shared by every
// tier, wrapper and coordinator in zarrs-cache.
package cacheerr

import (
	"errors"
	"fmt"
)

// Kind is the stable part of the error contract. Callers should switch on
// Kind (via errors.As + *Error) rather than matching error strings.
type Kind int

const (
	// Unknown is never produced deliberately; it guards against a
	// zero-value Error being mistaken for a specific kind.
	Unknown Kind = iota
	// CacheFull indicates a bounded store could not make room for an
	// incoming value even after evicting everything it is allowed to.
	CacheFull
	// Io wraps an underlying filesystem failure.
	Io
	// Serialization indicates a codec failed to encode or decode. No
	// package in this module returns it: cacheconfig reports YAML and
	// viper decode failures as plain wrapped errors.
	Serialization
	// InvalidKey indicates a key could not be interpreted in the context
	// that required it (e.g. the key codec).
	InvalidKey
	// Compression indicates a compress/decompress step failed.
	Compression
)

func (k Kind) String() string {
	switch k {
	case CacheFull:
		return "cache_full"
	case Io:
		return "io"
	case Serialization:
		return "serialization"
	case InvalidKey:
		return "invalid_key"
	case Compression:
		return "compression"
	default:
		return "unknown"
	}
}

// Error is the single exported error type produced by zarrs-cache. The Kind
// is the part callers may depend on; Message and Cause are for humans.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind, so
// errors.Is(err, cacheerr.New(cacheerr.CacheFull, "")) matches any
// CacheFull error without exposing sentinel values per kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CacheFullError is a convenience constructor for the most common surfaced
// failure: a Set that cannot fit within configured bounds.
func CacheFullError(key string, size int) *Error {
	return New(CacheFull, "key %q (%d bytes) exceeds available capacity", key, size)
}

// IoError wraps a filesystem failure observed while serving cacheKey.
func IoError(cacheKey string, cause error) *Error {
	return Wrap(Io, cause, "i/o failure for key %q", cacheKey)
}

// KindOf extracts the Kind from err, or Unknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
