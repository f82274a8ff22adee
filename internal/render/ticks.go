package render

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/plot"
)

// TickPolicy selects how the time axis is graduated.
type TickPolicy int

const (
	// Adaptive picks a fixed interval and label format from the series duration.
	Adaptive TickPolicy = iota
	// LibraryDefault leaves tick placement to gonum/plot and stamps the date
	// of the first sample on the chart.
	LibraryDefault
)

func (p TickPolicy) String() string {
	if p == LibraryDefault {
		return "default"
	}
	return "adaptive"
}

// ParseTickPolicy reads "adaptive" or "default".
func ParseTickPolicy(s string) (TickPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "adaptive":
		return Adaptive, nil
	case "default":
		return LibraryDefault, nil
	default:
		return Adaptive, fmt.Errorf("unknown tick policy %q", s)
	}
}

// TickSpec is a major tick interval and the layout of its labels.
type TickSpec struct {
	Interval time.Duration
	Layout   string // Go time layout
	Pattern  string // same layout in HH:MM:SS notation, for the web UI
}

const (
	layoutSeconds = "15:04:05"
	layoutMinutes = "15:04"
)

var tickBuckets = []struct {
	maxSeconds float64
	spec       TickSpec
}{
	{600, TickSpec{30 * time.Second, layoutSeconds, "HH:MM:SS"}},
	{1800, TickSpec{2 * time.Minute, layoutSeconds, "HH:MM:SS"}},
	{3600, TickSpec{5 * time.Minute, layoutMinutes, "HH:MM"}},
	{10800, TickSpec{10 * time.Minute, layoutMinutes, "HH:MM"}},
}

var longTicks = TickSpec{30 * time.Minute, layoutMinutes, "HH:MM"}

// ChooseTicks buckets a series duration: up to 10 minutes ticks every 30s,
// up to 30 minutes every 2min, up to an hour every 5min, up to 3 hours every
// 10min, beyond that every 30min. Bounds are inclusive.
func ChooseTicks(d time.Duration) TickSpec {
	seconds := d.Seconds()
	for _, b := range tickBuckets {
		if seconds <= b.maxSeconds {
			return b.spec
		}
	}
	return longTicks
}

// maxTicks keeps very long recordings readable; the interval is widened by
// whole multiples beyond it.
const maxTicks = 48

// intervalTicker places ticks on wall-clock multiples of an interval.
// Axis values are Unix seconds in UTC.
type intervalTicker struct {
	spec TickSpec
}

var _ plot.Ticker = intervalTicker{}

func (t intervalTicker) Ticks(min, max float64) []plot.Tick {
	step := t.spec.Interval.Seconds()
	if step <= 0 || max < min {
		return nil
	}
	if n := (max - min) / step; n > maxTicks {
		step *= math.Ceil(n / maxTicks)
	}

	var ticks []plot.Tick
	for v := math.Ceil(min/step) * step; v <= max+1e-6; v += step {
		ticks = append(ticks, plot.Tick{Value: v, Label: unixSeconds(v).Format(t.spec.Layout)})
	}
	return ticks
}

func unixSeconds(v float64) time.Time {
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func toUnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
