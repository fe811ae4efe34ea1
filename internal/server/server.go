// Package server serves dashboard rows as JSON for an external presentation
// layer.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sorenmh/pushdash/internal/dashboard"
	"github.com/sorenmh/pushdash/internal/models"
	"github.com/sorenmh/pushdash/internal/restlink"
	"github.com/sorenmh/pushdash/internal/viewmodel"
)

// Version is reported by the health endpoint
var Version = "dev"

const defaultShutdownTimeout = 10 * time.Second

// Dashboard is the data source of the server
type Dashboard interface {
	Apps(ctx context.Context) ([]models.App, error)
	Deployments(ctx context.Context, app string) ([]models.Deployment, error)
	DeploymentMetrics(ctx context.Context, app, deployment string) (models.Metrics, error)
	History(ctx context.Context, app, deployment string) ([]models.HistoryEntry, error)
}

// Resetter empties a cache
type Resetter interface {
	Reset()
}

// Config holds the server settings
type Config struct {
	Listen          string
	Debug           bool
	ShutdownTimeout time.Duration
}

type Server struct {
	cfg    Config
	dash   Dashboard
	cache  Resetter
	logger *slog.Logger
	router *gin.Engine
}

// Option configures a Server
type Option func(*Server)

// WithCache enables the cache reset endpoint
func WithCache(c Resetter) Option {
	return func(s *Server) { s.cache = c }
}

func New(cfg Config, dash Dashboard, logger *slog.Logger, opts ...Option) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		cfg:    cfg,
		dash:   dash,
		logger: logger,
		router: gin.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery(), requestID(), requestLogger(s.logger), cors())

	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api/v1")
	{
		api.GET("/apps", s.handleListApps)
		api.GET("/apps/:app/deployments", s.handleListDeployments)
		api.GET("/apps/:app/deployments/:deployment/metrics", s.handleGetMetrics)
		api.GET("/apps/:app/deployments/:deployment/history", s.handleGetHistory)
		api.POST("/cache/reset", s.handleResetCache)
	}
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type appURI struct {
	App string `uri:"app" binding:"required"`
}

type deploymentURI struct {
	App        string `uri:"app" binding:"required"`
	Deployment string `uri:"deployment" binding:"required"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: Version,
	})
}

func (s *Server) handleListApps(c *gin.Context) {
	apps, err := s.dash.Apps(c.Request.Context())
	if err != nil {
		s.writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, AppsResponse{Apps: viewmodel.NewAppRows(apps)})
}

func (s *Server) handleListDeployments(c *gin.Context) {
	var uri appURI
	if err := c.ShouldBindUri(&uri); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	deployments, err := s.dash.Deployments(c.Request.Context(), uri.App)
	if err != nil {
		s.writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, DeploymentsResponse{
		App:         uri.App,
		Deployments: viewmodel.NewDeploymentRows(deployments),
	})
}

func (s *Server) handleGetMetrics(c *gin.Context) {
	var uri deploymentURI
	if err := c.ShouldBindUri(&uri); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	metrics, err := s.dash.DeploymentMetrics(c.Request.Context(), uri.App, uri.Deployment)
	if err != nil {
		s.writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, MetricsResponse{
		App:        uri.App,
		Deployment: uri.Deployment,
		Metrics:    viewmodel.NewMetricRows(metrics),
	})
}

func (s *Server) handleGetHistory(c *gin.Context) {
	var uri deploymentURI
	if err := c.ShouldBindUri(&uri); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	history, err := s.dash.History(c.Request.Context(), uri.App, uri.Deployment)
	if err != nil {
		s.writeDashboardError(c, err)
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{
		App:        uri.App,
		Deployment: uri.Deployment,
		History:    viewmodel.NewHistoryRows(history),
	})
}

func (s *Server) handleResetCache(c *gin.Context) {
	if s.cache == nil {
		writeError(c, http.StatusNotImplemented, "not_implemented", "cache is not enabled")
		return
	}
	s.cache.Reset()
	c.Status(http.StatusNoContent)
}

// writeDashboardError maps a query failure to a response. Upstream 404s are
// passed through; other upstream failures are reported as bad gateway.
func (s *Server) writeDashboardError(c *gin.Context, err error) {
	var statusErr *restlink.StatusError
	var netErr *restlink.NetworkError

	switch {
	case errors.Is(err, dashboard.ErrInvalidInput):
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &statusErr):
		s.logger.Warn("upstream error", "status", statusErr.StatusCode, "url", statusErr.URL)
		writeError(c, http.StatusBadGateway, "upstream_error", err.Error())
	case errors.Is(err, context.Canceled):
		writeError(c, http.StatusRequestTimeout, "cancelled", err.Error())
	case errors.As(err, &netErr):
		s.logger.Warn("upstream unreachable", "url", netErr.URL, "error", netErr.Err)
		writeError(c, http.StatusBadGateway, "upstream_unreachable", err.Error())
	default:
		s.logger.Error("query failed", "error", err)
		writeError(c, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
