package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"assetstore/internal/models"
)

func (s *Server) handleCleanupRun(c *gin.Context) {
	const op = "server.handleCleanupRun"

	opts := models.CleanupOptions{
		BatchSize:   s.cfg.Cleanup.BatchSize,
		MaxAttempts: s.cfg.Cleanup.MaxAttempts,
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON in request body.")
			return
		}
	}
	var err error
	if opts.BatchSize, err = intQuery(c, "batch_size", opts.BatchSize); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if opts.MaxAttempts, err = intQuery(c, "max_attempts", opts.MaxAttempts); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.deps.Worker.Run(c.Request.Context(), opts)
	if err != nil {
		s.assetError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": summary})
}

func (s *Server) handleCleanupStats(c *gin.Context) {
	stats, err := s.deps.Reporter.Stats(c.Request.Context())
	if err != nil {
		s.assetError(c, "server.handleCleanupStats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}
