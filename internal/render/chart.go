// Package render draws one gonum/plot chart per datalogger channel.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"golang.org/x/image/colornames"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"datalogger-plots/internal/channels"
	"datalogger-plots/internal/series"
)

// ErrEmptySeries is returned when asked to draw a series with no value.
var ErrEmptySeries = errors.New("series has no valid points")

const (
	xAxisLabel = "Heure"
	dateLayout = "02/01/2006"
)

// Chart is a processed channel ready to be drawn.
type Chart struct {
	Channel  string
	Category channels.Category
	Points   series.Series
	Ticks    TickSpec
	Smoothed bool
}

// Title is the text shown above the chart.
func (c Chart) Title() string {
	return c.Channel
}

// Date returns the day of the first sample, day first.
func (c Chart) Date() string {
	if len(c.Points) == 0 {
		return ""
	}
	return c.Points[0].Time.Format(dateLayout)
}

// NewChart keeps the valid points of s and picks the adaptive tick spec.
// The boolean is false when nothing is left to draw.
func NewChart(ch channels.Channel, s series.Series, smoothed bool) (Chart, bool) {
	valid := s.Valid()
	if len(valid) == 0 {
		return Chart{}, false
	}
	return Chart{
		Channel:  ch.Name,
		Category: ch.Category,
		Points:   valid,
		Ticks:    ChooseTicks(valid.Duration()),
		Smoothed: smoothed,
	}, true
}

// Style controls chart decorations.
type Style struct {
	Ticks          TickPolicy
	Markers        bool
	DateAnnotation bool
}

var categoryColors = map[channels.Category]color.RGBA{
	channels.Temperature: colornames.Firebrick,
	channels.Voltage:     colornames.Steelblue,
	channels.Current:     colornames.Seagreen,
}

// Plot builds the gonum plot for a chart.
func Plot(c Chart, style Style) (*plot.Plot, error) {
	if len(c.Points) == 0 {
		return nil, fmt.Errorf("%s: %w", c.Channel, ErrEmptySeries)
	}

	p := plot.New()
	p.Title.Text = c.Title()
	p.X.Label.Text = xAxisLabel
	p.Y.Label.Text = c.Channel

	xys := make(plotter.XYs, len(c.Points))
	for i, pt := range c.Points {
		xys[i].X = toUnixSeconds(pt.Time)
		xys[i].Y = pt.Value
	}

	grid := plotter.NewGrid()
	for _, ls := range []*draw.LineStyle{&grid.Vertical, &grid.Horizontal} {
		ls.Width = vg.Points(0.5)
		ls.Dashes = []vg.Length{vg.Points(3), vg.Points(2)}
		ls.Color = color.Gray{Y: 180}
	}
	p.Add(grid)

	lineColor, ok := categoryColors[c.Category]
	if !ok {
		lineColor = colornames.Black
	}

	if style.Markers {
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, fmt.Errorf("%s: line: %w", c.Channel, err)
		}
		line.Color = lineColor
		points.Shape = draw.CircleGlyph{}
		points.Radius = vg.Points(1.2)
		points.Color = lineColor
		p.Add(line, points)
	} else {
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("%s: line: %w", c.Channel, err)
		}
		line.Color = lineColor
		p.Add(line)
	}

	switch style.Ticks {
	case LibraryDefault:
		p.X.Tick.Marker = plot.TimeTicks{Format: layoutSeconds, Time: plot.UTCUnixTime}
	default:
		p.X.Tick.Marker = intervalTicker{spec: c.Ticks}
		p.X.Tick.Label.Rotation = math.Pi / 4
		p.X.Tick.Label.XAlign = draw.XRight
		p.X.Tick.Label.YAlign = draw.YCenter
	}

	if style.DateAnnotation || style.Ticks == LibraryDefault {
		if err := addDateLabel(p, c, xys); err != nil {
			return nil, err
		}
	}

	// Set after Add, which widens the range to the data.
	p.X.Min = xys[0].X
	p.X.Max = xys[len(xys)-1].X

	return p, nil
}

// Draw renders p on c with its title flush left above the axes.
func Draw(c draw.Canvas, p *plot.Plot) {
	title := p.Title.Text
	if title == "" {
		p.Draw(c)
		return
	}

	sty := p.Title.TextStyle
	sty.XAlign = draw.XLeft
	descent := sty.FontExtents().Descent
	c.FillText(sty, vg.Point{X: c.Min.X, Y: c.Max.Y + descent}, title)
	c.Max.Y -= sty.Rectangle(title).Size().Y + p.Title.Padding

	p.Title.Text = ""
	defer func() { p.Title.Text = title }()
	p.Draw(c)
}

func addDateLabel(p *plot.Plot, c Chart, xys plotter.XYs) error {
	_, _, _, ymax := plotter.XYRange(xys)
	labels, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    []plotter.XY{{X: xys[0].X, Y: ymax}},
		Labels: []string{c.Date()},
	})
	if err != nil {
		return fmt.Errorf("%s: date label: %w", c.Channel, err)
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].Color = colornames.Dimgray
		labels.TextStyle[i].YAlign = draw.YTop
	}
	p.Add(labels)
	return nil
}
