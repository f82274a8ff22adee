package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"datalogger-plots/internal/channels"
	"datalogger-plots/internal/export"
	"datalogger-plots/internal/parser"
	"datalogger-plots/internal/pipeline"
	"datalogger-plots/internal/resample"
)

var errUnsupportedUpload = errors.New("unsupported upload type")

type channelInfo struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type datasetResponse struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Uploaded time.Time     `json:"uploaded"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Records  int           `json:"records"`
	Channels []channelInfo `json:"channels"`
	Excluded []string      `json:"excluded"`
	Stats    loadStats     `json:"stats"`
	Window   int           `json:"default_smoothing"`
}

type loadStats struct {
	RowsRead         int `json:"rows_read"`
	DroppedTimestamp int `json:"dropped_timestamp"`
	DroppedEmpty     int `json:"dropped_empty"`
}

type tickInfo struct {
	IntervalSeconds float64 `json:"interval_seconds"`
	Pattern         string  `json:"pattern"`
	Layout          string  `json:"layout"`
}

type point struct {
	T int64   `json:"t"` // unix milliseconds
	V float64 `json:"v"`
}

type seriesResponse struct {
	Channel  string   `json:"channel"`
	Category string   `json:"category"`
	Title    string   `json:"title"`
	Date     string   `json:"date"`
	Smoothed bool     `json:"smoothed"`
	Window   int      `json:"smoothing"`
	Ticks    tickInfo `json:"ticks"`
	Points   []point  `json:"points"`
}

func (s *Server) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"datasets": s.store.Len(),
	})
}

func (s *Server) upload(c *gin.Context) {
	limit := s.cfg.Server.MaxUploadMB << 20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.uploadFailed(c, http.StatusRequestEntityTooLarge,
				fmt.Errorf("file exceeds %d MB", s.cfg.Server.MaxUploadMB))
			return
		}
		s.uploadFailed(c, http.StatusBadRequest, fmt.Errorf("missing file field: %w", err))
		return
	}
	if header.Size > limit {
		s.uploadFailed(c, http.StatusRequestEntityTooLarge,
			fmt.Errorf("file exceeds %d MB", s.cfg.Server.MaxUploadMB))
		return
	}

	f, err := header.Open()
	if err != nil {
		s.uploadFailed(c, http.StatusBadRequest, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.uploadFailed(c, http.StatusBadRequest, err)
		return
	}

	body, err := uploadReader(data)
	if err != nil {
		s.uploadFailed(c, http.StatusUnsupportedMediaType, err)
		return
	}

	ds, err := parser.NewCSVParser(header.Filename).
		WithFilterOptions(parser.FilterOptions{
			SampleRate:    1,
			Delimiter:     s.cfg.DelimiterRune(),
			DetectCharset: s.cfg.Loader.DetectCharset,
		}).
		WithLogger(s.logger).
		ParseReader(body)
	if err != nil {
		s.uploadFailed(c, statusFor(err), err)
		return
	}
	s.metrics.RecordLoad(ds.Stats.RowsRead, ds.Stats.DroppedTimestamp, ds.Stats.DroppedEmpty)

	entry := s.store.Put(header.Filename, ds)
	s.metrics.DatasetsStored.Set(float64(s.store.Len()))
	s.metrics.UploadsTotal.WithLabelValues("ok").Inc()

	s.logger.Info("dataset uploaded",
		zap.String("id", entry.ID),
		zap.String("name", entry.Name),
		zap.Int("records", len(ds.Records)))

	c.JSON(http.StatusCreated, s.describe(entry))
}

func (s *Server) uploadFailed(c *gin.Context, status int, err error) {
	s.metrics.UploadsTotal.WithLabelValues("error").Inc()
	s.logger.Warn("upload rejected", zap.Int("status", status), zap.Error(err))
	c.JSON(status, gin.H{"error": err.Error()})
}

// uploadReader accepts text files and gzip archives of them.
func uploadReader(data []byte) (io.Reader, error) {
	kind := mimetype.Detect(data)
	if kind.Is("application/gzip") {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errUnsupportedUpload, err)
		}
		return zr, nil
	}
	for m := kind; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") {
			return bytes.NewReader(data), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", errUnsupportedUpload, kind.String())
}

func (s *Server) dataset(c *gin.Context) {
	entry, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.describe(entry))
}

func (s *Server) deleteDataset(c *gin.Context) {
	s.store.Delete(c.Param("id"))
	s.metrics.DatasetsStored.Set(float64(s.store.Len()))
	c.Status(http.StatusNoContent)
}

func (s *Server) series(c *gin.Context) {
	entry, ok := s.lookup(c)
	if !ok {
		return
	}

	opts, err := s.requestOptions(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	opts.Channel = c.Query("channel")

	res, err := s.pipeline.Run(entry.Dataset, opts)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := seriesResponse{
		Channel: opts.Channel,
		Title:   opts.Channel,
		Window:  opts.SmoothingWindow,
		Points:  []point{},
	}
	if cat, ok := res.Classification.Lookup(opts.Channel); ok {
		resp.Category = cat.String()
	}
	// No chart means the channel has nothing in range; the UI shows an empty plot.
	if len(res.Charts) > 0 {
		chart := res.Charts[0]
		resp.Date = chart.Date()
		resp.Smoothed = chart.Smoothed
		resp.Ticks = tickInfo{
			IntervalSeconds: chart.Ticks.Interval.Seconds(),
			Pattern:         chart.Ticks.Pattern,
			Layout:          chart.Ticks.Layout,
		}
		resp.Points = make([]point, 0, len(chart.Points))
		for _, p := range chart.Points {
			resp.Points = append(resp.Points, point{T: p.Time.UnixMilli(), V: p.Value})
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) report(c *gin.Context) {
	entry, ok := s.lookup(c)
	if !ok {
		return
	}

	opts, err := s.requestOptions(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	opts.Mode = pipeline.Batch

	res, err := s.pipeline.Run(entry.Dataset, opts)
	if err != nil {
		s.fail(c, err)
		return
	}

	var buf bytes.Buffer
	pages, err := export.WritePDF(&buf, res.Charts, opts.Style, s.pageSize)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.logger.Info("report generated", zap.String("id", entry.ID), zap.Int("pages", pages))

	filename := export.Stem(entry.Name) + "_plots.pdf"
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (s *Server) lookup(c *gin.Context) (*Entry, bool) {
	entry, err := s.store.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return entry, true
}

// requestOptions reads start, end and smoothing from the query string.
func (s *Server) requestOptions(c *gin.Context) (pipeline.Options, error) {
	opts := s.options

	var err error
	if opts.Start, err = parser.ParseBound(c.Query("start")); err != nil {
		return opts, fmt.Errorf("%w: start: %v", errBadRequest, err)
	}
	if opts.End, err = parser.ParseBound(c.Query("end")); err != nil {
		return opts, fmt.Errorf("%w: end: %v", errBadRequest, err)
	}

	opts.SmoothingWindow = s.cfg.Server.DefaultSmoothing
	if raw := c.Query("smoothing"); raw != "" {
		window, err := strconv.Atoi(raw)
		if err != nil {
			return opts, fmt.Errorf("%w: %q", resample.ErrInvalidWindow, raw)
		}
		opts.SmoothingWindow = window
	}
	if err := resample.ValidateInteractiveWindow(opts.SmoothingWindow); err != nil {
		return opts, err
	}
	return opts, nil
}

var errBadRequest = errors.New("bad request")

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrDatasetNotFound), errors.Is(err, pipeline.ErrUnknownChannel):
		return http.StatusNotFound
	case errors.Is(err, parser.ErrNoTimestamps), errors.Is(err, parser.ErrMissingColumn),
		errors.Is(err, export.ErrNoCharts):
		return http.StatusUnprocessableEntity
	case errors.Is(err, resample.ErrInvalidWindow), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) describe(e *Entry) datasetResponse {
	ds := e.Dataset
	class := channels.Classify(ds.Channels, s.options.Policy)
	first, last := ds.Span()

	resp := datasetResponse{
		ID:       e.ID,
		Name:     e.Name,
		Uploaded: e.Uploaded,
		Start:    first,
		End:      last,
		Records:  len(ds.Records),
		Channels: []channelInfo{},
		Excluded: class.Excluded,
		Stats: loadStats{
			RowsRead:         ds.Stats.RowsRead,
			DroppedTimestamp: ds.Stats.DroppedTimestamp,
			DroppedEmpty:     ds.Stats.DroppedEmpty,
		},
		Window: s.cfg.Server.DefaultSmoothing,
	}
	if resp.Excluded == nil {
		resp.Excluded = []string{}
	}
	for _, ch := range class.Ordered() {
		resp.Channels = append(resp.Channels, channelInfo{Name: ch.Name, Category: ch.Category.String()})
	}
	return resp
}
