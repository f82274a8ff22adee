// Package series holds the time-ordered (timestamp, value) sequences that flow
// between the resampler, the renderer and the exporters.
package series

import (
	"math"
	"time"
)

// Point is one sample of a channel. A NaN Value marks a missing sample.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is a chronologically ordered run of points for one channel.
type Series []Point

// IsMissing reports whether v stands for a missing sample.
func IsMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// Valid returns the points that carry a value, preserving order.
func (s Series) Valid() Series {
	out := make(Series, 0, len(s))
	for _, p := range s {
		if !IsMissing(p.Value) {
			out = append(out, p)
		}
	}
	return out
}

// HasData reports whether at least one point carries a value.
func (s Series) HasData() bool {
	for _, p := range s {
		if !IsMissing(p.Value) {
			return true
		}
	}
	return false
}

// Span returns the first and last timestamps. Both are zero for an empty series.
func (s Series) Span() (time.Time, time.Time) {
	if len(s) == 0 {
		return time.Time{}, time.Time{}
	}
	return s[0].Time, s[len(s)-1].Time
}

// Duration is the time covered between the first and last point.
func (s Series) Duration() time.Duration {
	first, last := s.Span()
	return last.Sub(first)
}

// Values extracts the value column.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}
