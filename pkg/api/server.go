// Package api provides the HTTP API for the justification pipeline
// (spec.md §6): submitting and inspecting runs, reading justifications,
// searching, and working through the clarification queue.
package api

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codegraph-labs/justify/pkg/config"
	"github.com/codegraph-labs/justify/pkg/events"
	"github.com/codegraph-labs/justify/pkg/graphstore"
	"github.com/codegraph-labs/justify/pkg/justify"
	"github.com/codegraph-labs/justify/pkg/queue"
)

// Server is the HTTP API server.
type Server struct {
	engine      *gin.Engine
	httpServer  *http.Server
	cfg         *config.Config
	db          *sql.DB
	pipeline    *justify.Pipeline
	pool        *queue.WorkerPool
	broadcaster *events.Broadcaster
}

// NewServer creates a new API server with Gin, wiring every route
// up front (spec.md §6's operation list). broadcaster may be nil, in which
// case GET /runs/:id/progress always reports 404 (no progress recorded).
// registry may be nil, in which case GET /metrics is not registered.
func NewServer(cfg *config.Config, db *sql.DB, pipeline *justify.Pipeline, pool *queue.WorkerPool, broadcaster *events.Broadcaster, registry *prometheus.Registry) *Server {
	e := gin.New()
	e.Use(gin.Recovery(), securityHeaders())

	s := &Server{
		engine:      e,
		cfg:         cfg,
		db:          db,
		pipeline:    pipeline,
		pool:        pool,
		broadcaster: broadcaster,
	}

	s.setupRoutes(registry)
	return s
}

func (s *Server) setupRoutes(registry *prometheus.Registry) {
	s.engine.GET("/healthz", s.healthzHandler)
	if registry != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	s.engine.POST("/runs", s.createRunHandler)
	s.engine.GET("/runs/:id", s.getRunHandler)
	s.engine.GET("/runs/:id/progress", s.getRunProgressHandler)
	s.engine.POST("/runs/:id/cancel", s.cancelRunHandler)

	s.engine.GET("/entities/:id/justification", s.getEntityJustificationHandler)
	s.engine.GET("/search", s.searchHandler)

	s.engine.GET("/clarifications", s.listClarificationsHandler)
	s.engine.POST("/clarifications/:id/answer", s.answerClarificationHandler)
}

// Handler returns the underlying http.Handler, primarily for tests that
// want to drive the server with httptest without binding a real port.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the HTTP server on the given address (non-blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener.
// Used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.engine}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthzHandler handles GET /healthz.
func (s *Server) healthzHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := graphstore.Health(reqCtx, s.db)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:   "unhealthy",
			Database: dbHealth,
		})
		return
	}

	resp := HealthResponse{
		Status:   "healthy",
		Database: dbHealth,
		Config:   s.cfg.Stats(),
	}
	if s.pool != nil {
		resp.WorkerPool = s.pool.Health()
	}
	c.JSON(http.StatusOK, resp)
}
