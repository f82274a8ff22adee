// Package server serves the interactive chart UI: uploads, per-channel series
// as JSON and the PDF report of a filtered dataset.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"datalogger-plots/internal/config"
	"datalogger-plots/internal/export"
	"datalogger-plots/internal/logging"
	"datalogger-plots/internal/monitoring"
	"datalogger-plots/internal/pipeline"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg      *config.Config
	router   *gin.Engine
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	pipeline *pipeline.Pipeline
	store    *Store
	options  pipeline.Options
	pageSize export.PageSize
}

// New builds the router. A nil logger or metrics gets a silent default.
func New(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts.Mode = pipeline.Interactive

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		router:   gin.New(),
		logger:   logger.Named("server"),
		metrics:  metrics,
		pipeline: pipeline.New(logger, metrics),
		store:    NewStore(cfg.Server.MaxDatasets, cfg.Server.DatasetTTL),
		options:  opts,
		pageSize: export.PageSize{Width: cfg.Export.WidthInches, Height: cfg.Export.HeightInches},
	}

	s.router.MaxMultipartMemory = 32 << 20
	s.router.Use(gin.Recovery())
	s.router.Use(monitoring.Middleware(metrics))
	s.router.Use(requestLogger(s.logger))

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.GET("/", s.index)
	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	api := s.router.Group("/api")
	api.POST("/datasets", s.upload)
	api.GET("/datasets/:id", s.dataset)
	api.DELETE("/datasets/:id", s.deleteDataset)
	api.GET("/datasets/:id/series", s.series)
	api.GET("/datasets/:id/report.pdf", s.report)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Store() *Store {
	return s.store
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func requestLogger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
