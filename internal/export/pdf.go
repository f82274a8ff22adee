// Package export writes rendered charts to PDF documents and PNG files.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"

	"datalogger-plots/internal/logging"
	"datalogger-plots/internal/render"
)

// ErrNoCharts is returned when there is nothing to write.
var ErrNoCharts = errors.New("no charts to export")

// PageSize is the size of one chart, in inches.
type PageSize struct {
	Width  float64
	Height float64
}

// DefaultPageSize matches a 10x4 inch figure.
var DefaultPageSize = PageSize{Width: 10, Height: 4}

func (s PageSize) lengths() (vg.Length, vg.Length) {
	if s.Width <= 0 || s.Height <= 0 {
		s = DefaultPageSize
	}
	return vg.Length(s.Width) * vg.Inch, vg.Length(s.Height) * vg.Inch
}

// Document accumulates one chart per page.
type Document struct {
	canvas *vgpdf.Canvas
	titles []string
}

// NewDocument starts an empty PDF document.
func NewDocument(size PageSize) *Document {
	w, h := size.lengths()
	return &Document{canvas: vgpdf.New(w, h)}
}

// AddPlot draws p on a new page.
func (d *Document) AddPlot(title string, p *plot.Plot) {
	if len(d.titles) > 0 {
		d.canvas.NextPage()
	}
	render.Draw(draw.New(d.canvas), p)
	d.titles = append(d.titles, title)
}

// Pages returns the number of pages drawn so far.
func (d *Document) Pages() int {
	return len(d.titles)
}

// Titles returns the title of each page in order.
func (d *Document) Titles() []string {
	return append([]string(nil), d.titles...)
}

// WriteTo writes the finished PDF.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	if len(d.titles) == 0 {
		return 0, ErrNoCharts
	}
	return d.canvas.WriteTo(w)
}

// BuildDocument renders every chart onto its own page.
func BuildDocument(charts []render.Chart, style render.Style, size PageSize) (*Document, error) {
	if len(charts) == 0 {
		return nil, ErrNoCharts
	}

	doc := NewDocument(size)
	for _, c := range charts {
		p, err := render.Plot(c, style)
		if err != nil {
			return nil, err
		}
		doc.AddPlot(c.Title(), p)
	}
	return doc, nil
}

// WritePDF renders charts into a single PDF written to w and returns the
// page count.
func WritePDF(w io.Writer, charts []render.Chart, style render.Style, size PageSize) (int, error) {
	doc, err := BuildDocument(charts, style, size)
	if err != nil {
		return 0, err
	}
	if _, err := doc.WriteTo(w); err != nil {
		return 0, fmt.Errorf("failed to write PDF: %w", err)
	}
	return doc.Pages(), nil
}

// SavePDF writes charts to path.
func SavePDF(path string, charts []render.Chart, style render.Style, size PageSize, logger *logging.Logger) (pages int, err error) {
	if len(charts) == 0 {
		return 0, ErrNoCharts
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("error closing output file: %w", closeErr)
		}
	}()

	bw := bufio.NewWriter(f)
	pages, err = WritePDF(bw, charts, style, size)
	if err != nil {
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("failed to write PDF: %w", err)
	}

	if logger != nil {
		logger.Info("wrote PDF", zap.String("path", path), zap.Int("pages", pages))
	}
	return pages, nil
}

// SavePNGs writes one PNG per chart into dir and returns the file paths.
func SavePNGs(dir, stem string, charts []render.Chart, style render.Style, size PageSize, logger *logging.Logger) ([]string, error) {
	if len(charts) == 0 {
		return nil, ErrNoCharts
	}

	w, h := size.lengths()
	paths := make([]string, 0, len(charts))
	used := make(map[string]int)

	for _, c := range charts {
		p, err := render.Plot(c, style)
		if err != nil {
			return paths, err
		}

		name := stem + "_" + SafeName(c.Channel)
		if n := used[name]; n > 0 {
			used[name] = n + 1
			name = fmt.Sprintf("%s_%s_%d", stem, SafeName(c.Channel), n+1)
		} else {
			used[name] = 1
		}

		path := filepath.Join(dir, name+".png")
		if err := savePNG(path, p, w, h); err != nil {
			return paths, fmt.Errorf("failed to save %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	if logger != nil {
		logger.Info("wrote PNG charts", zap.String("dir", dir), zap.Int("files", len(paths)))
	}
	return paths, nil
}

func savePNG(path string, p *plot.Plot, w, h vg.Length) (err error) {
	img := vgimg.PngCanvas{Canvas: vgimg.New(w, h)}
	render.Draw(draw.New(img), p)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = img.WriteTo(f)
	return err
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)

// SafeName turns a channel name into a file name fragment.
func SafeName(name string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "_")
	if s == "" {
		return "channel"
	}
	return s
}

// Stem strips directories and the .csv / .gz extensions from an input path.
func Stem(input string) string {
	base := filepath.Base(input)
	for _, ext := range []string{".gz", ".csv", ".txt"} {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			base = base[:len(base)-len(ext)]
		}
	}
	return base
}

// DocumentPath returns <dir>/<input-stem>_plots.pdf. An empty dir places the
// document next to the input.
func DocumentPath(input, dir string) string {
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, Stem(input)+"_plots.pdf")
}
