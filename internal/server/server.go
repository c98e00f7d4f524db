package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"day2do/internal/models"
	"day2do/internal/planner"
	"day2do/internal/stats"
)

// Server exposes the day planner over a JSON API.
type Server struct {
	engine   *gin.Engine
	store    *planner.Store
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics
}

// New constructs the HTTP server with routes and middleware configured.
func New(store *planner.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz", "/metrics"))

	registry := prometheus.NewRegistry()
	srv := &Server{
		engine:   router,
		store:    store,
		logger:   logger,
		registry: registry,
		metrics:  newMetrics(registry, store),
	}
	router.Use(srv.metrics.middleware())

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.GET("/state", s.handleState)
		api.GET("/insights", s.handleInsights)

		tasks := api.Group("/tasks")
		{
			tasks.GET("", s.handleListTasks)
			tasks.POST("", s.handleCreateTask)
			tasks.GET(":id", s.handleGetTask)
			tasks.PUT(":id", s.handleUpdateTask)
			tasks.POST(":id/toggle", s.handleToggleTask)
			tasks.DELETE(":id", s.handleDeleteTask)
		}

		api.GET("/thoughts", s.handleGetThoughts)
		api.PUT("/thoughts", s.handleSetThoughts)
	}

	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleState returns everything a client needs to render the planner.
func (s *Server) handleState(c *gin.Context) {
	tasks := s.store.Tasks()
	st := stats.ComputeStats(tasks)
	respondSuccess(c, http.StatusOK, gin.H{
		"tasks":    tasks,
		"thoughts": s.store.Thoughts(),
		"stats":    st,
		"insights": stats.ComputeInsights(st),
		"persist":  s.store.PersistStatus(),
	})
}

// handleInsights returns the derived progress view only.
func (s *Server) handleInsights(c *gin.Context) {
	st := stats.ComputeStats(s.store.Tasks())
	respondSuccess(c, http.StatusOK, gin.H{
		"stats":    st,
		"insights": stats.ComputeInsights(st),
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrEmptyTitle):
		return http.StatusBadRequest
	case errors.Is(err, planner.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, planner.ErrConfirmationRequired):
		return http.StatusPreconditionRequired
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(c.Request.Context(), level, "request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
