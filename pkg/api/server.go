// Package api provides the HTTP surface: a thin gin dispatcher over the
// intake, job, and review services.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/docproc/pkg/database"
	"github.com/codeready-toolchain/docproc/pkg/queue"
	"github.com/codeready-toolchain/docproc/pkg/services"
	"github.com/codeready-toolchain/docproc/pkg/version"
)

// maxUploadBytes bounds POST /v1/process bodies.
const maxUploadBytes = 25 << 20 // 25 MB

// Server is the HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	dbClient   *database.Client
	intake     *services.IntakeService
	jobs       *services.JobService
	reviews    *services.ReviewService
	workerPool *queue.WorkerPool
}

// NewServer creates the API server and registers all routes.
func NewServer(
	dbClient *database.Client,
	intake *services.IntakeService,
	jobs *services.JobService,
	reviews *services.ReviewService,
	workerPool *queue.WorkerPool,
) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:     engine,
		dbClient:   dbClient,
		intake:     intake,
		jobs:       jobs,
		reviews:    reviews,
		workerPool: workerPool,
	}
	s.setupRoutes()
	return s
}

// Engine returns the underlying gin engine (used by tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")
	v1.POST("/process", s.processHandler)
	v1.GET("/jobs/:id", s.getJobHandler)
	v1.GET("/documents/:id/preview", s.documentPreviewHandler)
	v1.GET("/queue", s.listQueueHandler)
	v1.GET("/queue/stats", s.queueStatsHandler)
	v1.POST("/queue/claim", s.claimHandler)
	v1.POST("/queue/:id/submit", s.submitHandler)
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.engine,
		MaxHeaderBytes: 1 << 20,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth := database.Health(reqCtx, s.dbClient)
	response := &HealthResponse{
		Status:   "healthy",
		Version:  version.Full(),
		Database: dbHealth,
	}
	if s.workerPool != nil {
		response.Pool = s.workerPool.Health()
	}

	if !dbHealth.Reachable {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}
