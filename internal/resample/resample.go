// Package resample turns high-frequency channels into one point per second
// and smooths them with a centered moving average.
package resample

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	"datalogger-plots/internal/series"
)

// MaxInteractiveWindow bounds the smoothing slider of the web UI.
const MaxInteractiveWindow = 10

// ErrInvalidWindow is returned for a negative or out of range window.
var ErrInvalidWindow = errors.New("invalid smoothing window")

// FloorToSecond truncates t to the start of its second.
func FloorToSecond(t time.Time) time.Time {
	return t.Truncate(time.Second)
}

// PerSecondMean buckets points by FloorToSecond and averages the values of
// each bucket. Missing values are ignored; a bucket with no value yields NaN.
// Seconds without samples are not filled in.
func PerSecondMean(s series.Series) series.Series {
	if len(s) == 0 {
		return series.Series{}
	}

	sorted := slices.Clone(s)
	slices.SortStableFunc(sorted, func(a, b series.Point) int {
		return a.Time.Compare(b.Time)
	})

	out := make(series.Series, 0, len(sorted))
	bucket := make([]float64, 0, 16)
	current := FloorToSecond(sorted[0].Time)

	flush := func() {
		out = append(out, series.Point{Time: current, Value: mean(bucket)})
		bucket = bucket[:0]
	}

	for _, p := range sorted {
		sec := FloorToSecond(p.Time)
		if !sec.Equal(current) {
			flush()
			current = sec
		}
		if !series.IsMissing(p.Value) {
			bucket = append(bucket, p.Value)
		}
	}
	flush()

	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

// CenteredMovingAverage smooths values with a window centered on each point.
// For window w, output[i] averages values[i-w/2 .. i+(w-1)/2], the bounds
// pandas uses for rolling(w, center=True). Points whose window runs past
// either end, or covers a missing value, are NaN, so n inputs give
// max(0, n-w+1) values. A window of 0 or 1 returns a copy.
func CenteredMovingAverage(values []float64, window int) ([]float64, error) {
	if window < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}

	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out, nil
	}

	ahead := (window - 1) / 2
	behind := window - 1 - ahead

	for i := range values {
		lo, hi := i-behind, i+ahead
		if lo < 0 || hi >= len(values) {
			out[i] = math.NaN()
			continue
		}

		sum := 0.0
		for _, v := range values[lo : hi+1] {
			if series.IsMissing(v) {
				sum = math.NaN()
				break
			}
			sum += v
		}
		out[i] = sum / float64(window)
	}

	return out, nil
}

// Smooth applies CenteredMovingAverage to the values of s.
func Smooth(s series.Series, window int) (series.Series, error) {
	smoothed, err := CenteredMovingAverage(s.Values(), window)
	if err != nil {
		return nil, err
	}

	out := make(series.Series, len(s))
	for i, p := range s {
		out[i] = series.Point{Time: p.Time, Value: smoothed[i]}
	}
	return out, nil
}

// Resample runs the high-frequency treatment: per-second mean, then smoothing.
func Resample(s series.Series, window int) (series.Series, error) {
	return Smooth(PerSecondMean(s), window)
}

// ValidateInteractiveWindow checks a window coming from the web UI slider.
func ValidateInteractiveWindow(window int) error {
	if window < 0 || window > MaxInteractiveWindow {
		return fmt.Errorf("%w: %d not in 0..%d", ErrInvalidWindow, window, MaxInteractiveWindow)
	}
	return nil
}
