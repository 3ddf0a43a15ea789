// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package timeline holds pure helpers over seekable ranges and the live edge.
// All values are milliseconds: wall-clock for time ranges, stream-relative for
// position ranges.
package timeline

import (
	"errors"
	"fmt"
)

// ErrNoSeekableRange is returned when the engine reports no seekable range.
var ErrNoSeekableRange = errors.New("timeline: no seekable range")

// Range is a closed interval [Start, End].
type Range struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Valid reports whether Start <= End.
func (r Range) Valid() bool {
	return r.Start <= r.End
}

// Contains reports whether v lies inside the range, bounds included.
func (r Range) Contains(v int64) bool {
	return v >= r.Start && v <= r.End
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}

// Clamp returns r.End if v is past the end, r.Start if v is before the start,
// and v otherwise.
func Clamp(v int64, r Range) int64 {
	if v > r.End {
		return r.End
	}
	if v < r.Start {
		return r.Start
	}
	return v
}

// WithinLiveDelta reports whether requested - delta <= edge, i.e. a request past
// the live edge is close enough to be served as "go live".
func WithinLiveDelta(requested, edge, delta int64) bool {
	return requested-delta <= edge
}

// DistanceToEdge is how far v is behind the end of r. Negative when v is past
// the end.
func DistanceToEdge(v int64, r Range) int64 {
	return r.End - v
}

// First returns the authoritative (first) range. discontinuous is true when the
// engine reported more than one range. An empty list yields ErrNoSeekableRange.
func First(ranges []Range) (first Range, discontinuous bool, err error) {
	if len(ranges) == 0 {
		return Range{}, false, ErrNoSeekableRange
	}
	return ranges[0], len(ranges) > 1, nil
}

// ContainsAny reports whether v lies within the first reported range. Unknown
// ranges never contain anything.
func ContainsAny(ranges []Range, v int64) bool {
	first, _, err := First(ranges)
	if err != nil {
		return false
	}
	return first.Contains(v)
}

// TimestampFromPosition converts a stream position into a wall-clock timestamp
// using a (time, position) reference pair taken from the same playhead sample.
func TimestampFromPosition(position, refTime, refPosition int64) int64 {
	return refTime + (position - refPosition)
}
