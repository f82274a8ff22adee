package render

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/recorder"

	"datalogger-plots/internal/channels"
	"datalogger-plots/internal/series"
)

func tenMinuteSeries() series.Series {
	start := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	s := make(series.Series, 0, 601)
	for i := 0; i <= 600; i++ {
		v := float64(i)
		if i%100 == 50 {
			v = math.NaN()
		}
		s = append(s, series.Point{Time: start.Add(time.Duration(i) * time.Second), Value: v})
	}
	return s
}

func TestNewChart(t *testing.T) {
	ch := channels.Channel{Name: "Tension_bat", Category: channels.Voltage}

	c, ok := NewChart(ch, tenMinuteSeries(), true)
	require.True(t, ok)
	assert.Equal(t, "Tension_bat", c.Title())
	assert.Len(t, c.Points, 595)
	assert.Equal(t, 30*time.Second, c.Ticks.Interval)
	assert.Equal(t, "18/10/2026", c.Date())
	assert.True(t, c.Smoothed)

	_, ok = NewChart(ch, series.Series{{Time: time.Now(), Value: math.NaN()}}, false)
	assert.False(t, ok)
}

func TestPlotAdaptive(t *testing.T) {
	c, ok := NewChart(channels.Channel{Name: "Temp_1", Category: channels.Temperature}, tenMinuteSeries(), false)
	require.True(t, ok)

	p, err := Plot(c, Style{Ticks: Adaptive})
	require.NoError(t, err)

	assert.Equal(t, "Temp_1", p.Title.Text)
	assert.Equal(t, "Heure", p.X.Label.Text)
	assert.Equal(t, "Temp_1", p.Y.Label.Text)
	assert.Equal(t, toUnixSeconds(c.Points[0].Time), p.X.Min)
	assert.Equal(t, toUnixSeconds(c.Points[len(c.Points)-1].Time), p.X.Max)
	assert.IsType(t, intervalTicker{}, p.X.Tick.Marker)
}

func TestPlotDefaultTicksWithMarkers(t *testing.T) {
	c, ok := NewChart(channels.Channel{Name: "Courant", Category: channels.Current}, tenMinuteSeries(), false)
	require.True(t, ok)

	p, err := Plot(c, Style{Ticks: LibraryDefault, Markers: true})
	require.NoError(t, err)
	assert.IsType(t, plot.TimeTicks{}, p.X.Tick.Marker)
}

func TestPlotEmpty(t *testing.T) {
	_, err := Plot(Chart{Channel: "x"}, Style{})
	assert.True(t, errors.Is(err, ErrEmptySeries))
}

func TestDrawPlacesTitleOnTheLeft(t *testing.T) {
	c, ok := NewChart(channels.Channel{Name: "Temp_1", Category: channels.Temperature}, tenMinuteSeries(), false)
	require.True(t, ok)
	p, err := Plot(c, Style{Ticks: Adaptive})
	require.NoError(t, err)

	rec := new(recorder.Canvas)
	Draw(draw.NewCanvas(rec, 10*vg.Inch, 4*vg.Inch), p)

	var titles []*recorder.FillString
	for _, a := range rec.Actions {
		if fs, ok := a.(*recorder.FillString); ok && fs.String == "Temp_1" {
			titles = append(titles, fs)
		}
	}
	// The title plus the y axis label.
	require.NotEmpty(t, titles)
	top := titles[0]
	for _, fs := range titles[1:] {
		if fs.Point.Y > top.Point.Y {
			top = fs
		}
	}
	assert.Equal(t, vg.Length(0), top.Point.X)
	assert.Equal(t, "Temp_1", p.Title.Text, "title restored after drawing")
}
