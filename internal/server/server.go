package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"assetstore/internal/assets"
	"assetstore/internal/cleanup"
	"assetstore/internal/clientid"
	"assetstore/internal/models"
	"assetstore/internal/trigger"
)

// Deps are the collaborators the HTTP layer dispatches to.
type Deps struct {
	Assets    *assets.Service
	Worker    *cleanup.Worker
	Reporter  *cleanup.Reporter
	Clients   *clientid.Validator
	Publisher *trigger.Publisher
	// Health reports whether the metadata store is reachable.
	Health func(ctx context.Context) error
	// FilesRoot is served under /files when objects live on the local disk.
	FilesRoot string
}

type Server struct {
	cfg    *models.Config
	router *gin.Engine
	http   *http.Server
	deps   Deps
}

func NewServer(cfg *models.Config, deps Deps) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), metricsMiddleware())
	r.MaxMultipartMemory = 8 << 20

	s := &Server{cfg: cfg, router: r, deps: deps}
	s.http = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if deps.FilesRoot != "" {
		r.Static("/files", deps.FilesRoot)
	}
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.POST("/images", s.handleUpload)
	api.GET("/images", s.handleListImages)
	api.GET("/images/:id", s.handleGetImage)
	api.GET("/images/:id/file", s.handleGetImageFile)
	api.PUT("/images/:id", s.handleUpdateImage)
	api.DELETE("/images/:id", s.handleDeleteImage)
	api.POST("/images/bulk-delete", s.handleBulkDelete)

	api.GET("/stats", s.handleStats)
	api.GET("/clients", s.handleListClients)
	api.POST("/clients/validate", s.handleValidateClient)
	api.DELETE("/clients/:client_id/images", s.handleDeleteClientImages)

	api.POST("/cleanup/run", s.handleCleanupRun)
	api.GET("/cleanup/stats", s.handleCleanupStats)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	log.Infof("HTTP server listening on %s", s.cfg.ServerAddr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.deps.Health != nil {
		if err := s.deps.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}
