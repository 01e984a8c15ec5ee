// Package keycodec parses and formats chunk-coordinate keys of the form
// "array_name/c0.c1....cN-1", and its "array_name/chunk_c0.c1....cN-1"
// variant used by the spatial locality tracker, deriving neighbor /
// sequential successor keys from a parsed coordinate. There is no
// ecosystem library in the example corpus for this bespoke grammar, so it
// is implemented on the standard library only (see DESIGN.md).
package keycodec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/luhtfiimanal/zarrs-cache/cacheerr"
)

// Coord is a parsed chunk coordinate: an array name plus its integer
// indices along each dimension. Prefixed records whether the coordinate
// segment carried a "chunk_" prefix (the grammar used by the spatial
// locality tracker) so that re-formatting the key round-trips it.
type Coord struct {
	Array    string
	Coords   []int
	Prefixed bool
}

// Parse splits key on the first "/" into an array name and a
// dot-separated list of signed decimal integers. The coordinate segment
// may optionally carry a "chunk_" prefix (e.g. "temperature/chunk_2.2.2"),
// a second grammar used by the spatial locality tracker alongside the
// plain "array/c0.c1.c2" form used elsewhere; Parse accepts both and
// records which one it saw in Coord.Prefixed. Keys that do not split into
// exactly two "/"-segments, or whose second segment contains a
// non-integer component, fail with ok=false.
func Parse(key string) (Coord, bool) {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) != 2 {
		return Coord{}, false
	}
	if strings.Contains(parts[1], "/") {
		return Coord{}, false
	}

	coordPart := parts[1]
	prefixed := false
	if rest, ok := strings.CutPrefix(coordPart, "chunk_"); ok {
		coordPart = rest
		prefixed = true
	}

	segs := strings.Split(coordPart, ".")
	coords := make([]int, len(segs))
	for i, s := range segs {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Coord{}, false
		}
		coords[i] = n
	}

	return Coord{Array: parts[0], Coords: coords, Prefixed: prefixed}, true
}

// Format renders array/coords back into a chunk key, e.g.
// Format("temperature", []int{2, 2, 2}) == "temperature/2.2.2".
func Format(array string, coords []int) string {
	return FormatPrefixed(array, coords, false)
}

// FormatPrefixed is Format with control over whether the coordinate
// segment carries the "chunk_" prefix, so callers that parsed a
// "chunk_"-prefixed key can round-trip derived keys in the same form.
func FormatPrefixed(array string, coords []int, prefixed bool) string {
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = strconv.Itoa(c)
	}
	coordPart := strings.Join(parts, ".")
	if prefixed {
		coordPart = "chunk_" + coordPart
	}
	return array + "/" + coordPart
}

// Neighbors emits, for each dimension k and each offset o in 1..=distance,
// the coordinate with coords[k]+o and coords[k]-o, skipping any result
// with a negative component. Ordering is dimension-major,
// positive-before-negative, matching spec §4.F. No deduplication is
// performed here. When maxResults > 0, generation stops once maxResults
// coordinates have been emitted; zero or a negative value means no cap.
func Neighbors(c Coord, distance int, maxResults int) []Coord {
	var out []Coord
	for k := range c.Coords {
		for o := 1; o <= distance; o++ {
			if maxResults > 0 && len(out) >= maxResults {
				return out
			}
			plus := cloneWith(c, k, c.Coords[k]+o)
			if allNonNegative(plus.Coords) {
				out = append(out, plus)
				if maxResults > 0 && len(out) >= maxResults {
					return out
				}
			}

			minus := cloneWith(c, k, c.Coords[k]-o)
			if allNonNegative(minus.Coords) {
				out = append(out, minus)
			}
		}
	}
	return out
}

// Sequential emits lookahead keys by incrementing the last coordinate
// cumulatively: the coordinate vector is mutated in place across
// iterations, so successive offsets are 1, 1+2, 1+2+3, ... (i.e. +1, +3,
// +6, ...). This is the observed behavior of the system this module is
// grounded on (spec §4.F, §9 open question 1) and is preserved exactly,
// bug-for-bug, rather than "fixed" to a flat +1 stride per step.
func Sequential(c Coord, lookahead int) []Coord {
	if len(c.Coords) == 0 {
		return nil
	}

	working := append([]int(nil), c.Coords...)
	last := len(working) - 1

	out := make([]Coord, 0, lookahead)
	for i := 1; i <= lookahead; i++ {
		working[last] += i
		next := Coord{Array: c.Array, Coords: append([]int(nil), working...), Prefixed: c.Prefixed}
		out = append(out, next)
	}
	return out
}

func cloneWith(c Coord, dim int, value int) Coord {
	coords := append([]int(nil), c.Coords...)
	coords[dim] = value
	return Coord{Array: c.Array, Coords: coords, Prefixed: c.Prefixed}
}

func allNonNegative(coords []int) bool {
	for _, v := range coords {
		if v < 0 {
			return false
		}
	}
	return true
}

// Key renders c back into its string form, preserving whichever grammar
// Parse observed (equivalent to FormatPrefixed(c.Array, c.Coords, c.Prefixed)).
func (c Coord) Key() string { return FormatPrefixed(c.Array, c.Coords, c.Prefixed) }

// String implements fmt.Stringer for debugging/logging.
func (c Coord) String() string { return c.Key() }

// errNotChunkKey documents the parse failure message used by callers that
// want a human-readable reason (Parse itself just returns ok=false, per
// spec §4.F's "returns 'not a chunk key'" being a description of intent
// rather than a literal string contract callers should switch on).
var errNotChunkKey = fmt.Errorf("not a chunk key")

// ParseStrict is Parse for callers that prefer an error-returning
// signature: where Parse would return ok=false it returns a
// *cacheerr.Error of kind InvalidKey wrapping errNotChunkKey.
func ParseStrict(key string) (Coord, error) {
	c, ok := Parse(key)
	if !ok {
		return Coord{}, cacheerr.Wrap(cacheerr.InvalidKey, errNotChunkKey, "key %q", key)
	}
	return c, nil
}
