package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"assetstore/internal/clientid"
)

func (s *Server) handleListClients(c *gin.Context) {
	clients, err := s.deps.Assets.Clients(c.Request.Context())
	if err != nil {
		s.assetError(c, "server.handleListClients", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "clients": clients})
}

func (s *Server) handleDeleteClientImages(c *gin.Context) {
	clientID := c.Param("client_id")
	res, err := s.deps.Assets.DeleteByClient(c.Request.Context(), clientID)
	if err != nil {
		s.assetError(c, "server.handleDeleteClientImages", err)
		return
	}
	s.afterDelete(c, res, "client delete")
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"message":            fmt.Sprintf("%d images of client %s deleted, %d files queued for background cleanup.", res.Deleted, clientID, res.QueuedForCleanup),
		"deleted":            res.Deleted,
		"queued_for_cleanup": res.QueuedForCleanup,
	})
}

func (s *Server) handleValidateClient(c *gin.Context) {
	var body struct {
		ClientID string `json:"client_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON in request body.")
		return
	}
	clientID := strings.TrimSpace(body.ClientID)
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "valid": false, "error": "client_id is required"})
		return
	}

	err := s.deps.Clients.Validate(c.Request.Context(), clientID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "valid": true, "message": "Client ID is valid"})
	case errors.Is(err, clientid.ErrNotRegistered):
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"valid":   false,
			"error":   fmt.Sprintf("Invalid client ID. Client ID '%s' is not registered in the system.", clientID),
		})
	default:
		fail(c, http.StatusInternalServerError, err.Error())
	}
}
