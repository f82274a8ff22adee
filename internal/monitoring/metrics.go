// Package monitoring exposes Prometheus metrics for the pipeline and the
// interactive server.
package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	RowsRead        prometheus.Counter
	RowsDropped     *prometheus.CounterVec
	ChartsRendered  *prometheus.CounterVec
	ChannelsSkipped prometheus.Counter
	PipelineRuns    *prometheus.CounterVec

	// Upload store
	DatasetsStored prometheus.Gauge
	UploadsTotal   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics registers every collector on a dedicated registry, so several
// instances can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datalogger_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "datalogger_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		RowsRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "datalogger_rows_read_total",
				Help: "CSV data rows read",
			},
		),
		RowsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datalogger_rows_dropped_total",
				Help: "CSV data rows dropped, by reason",
			},
			[]string{"reason"},
		),
		ChartsRendered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datalogger_charts_rendered_total",
				Help: "Charts produced, by channel category",
			},
			[]string{"category"},
		),
		ChannelsSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "datalogger_channels_skipped_total",
				Help: "Classified channels left without any valid point",
			},
		),
		PipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datalogger_pipeline_runs_total",
				Help: "Pipeline runs, by mode and outcome",
			},
			[]string{"mode", "status"},
		),

		DatasetsStored: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "datalogger_datasets_stored",
				Help: "Uploaded datasets currently held in memory",
			},
		),
		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datalogger_uploads_total",
				Help: "Uploads received, by outcome",
			},
			[]string{"status"},
		),
	}
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLoad records what the loader did with a file.
func (m *Metrics) RecordLoad(rowsRead, droppedTimestamp, droppedEmpty int) {
	m.RowsRead.Add(float64(rowsRead))
	m.RowsDropped.WithLabelValues("timestamp").Add(float64(droppedTimestamp))
	m.RowsDropped.WithLabelValues("empty").Add(float64(droppedEmpty))
}

// Middleware creates a Gin middleware for metrics collection.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route template keeps label cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
