package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"assetstore/internal/assets"
	"assetstore/internal/clientid"
	"assetstore/internal/models"
	"assetstore/internal/objectstore"
	"assetstore/internal/trigger"
)

func (s *Server) handleUpload(c *gin.Context) {
	const op = "server.handleUpload"

	file, err := c.FormFile("image")
	if err != nil {
		fail(c, http.StatusBadRequest, `No image file provided. Please send a file with key "image".`)
		return
	}
	src, err := file.Open()
	if err != nil {
		fail(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", op, err))
		return
	}
	defer src.Close()

	asset, err := s.deps.Assets.Upload(c.Request.Context(), assets.UploadInput{
		Filename:    file.Filename,
		ClientID:    c.PostForm("client_id"),
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Body:        src,
	})
	if err != nil {
		s.assetError(c, op, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "image": asset})
}

func (s *Server) handleListImages(c *gin.Context) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	pageSize, err := intQuery(c, "page_size", models.DefaultPageSize)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	q := models.ListQuery{
		ClientID: c.Query("client_id"),
		Search:   c.Query("search"),
		SortBy:   c.DefaultQuery("sort_by", models.DefaultSort),
		Page:     page,
		PageSize: pageSize,
	}
	result, err := s.deps.Assets.List(c.Request.Context(), q)
	if err != nil {
		s.assetError(c, "server.handleListImages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"images":  result.Assets,
		"pagination": gin.H{
			"page":         result.Page,
			"page_size":    result.PageSize,
			"total_count":  result.TotalCount,
			"total_pages":  result.TotalPages,
			"has_next":     result.HasNext,
			"has_previous": result.HasPrevious,
		},
		"filters": gin.H{"client_id": q.ClientID, "search": q.Search, "sort_by": q.SortBy},
	})
}

func (s *Server) handleGetImage(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	asset, err := s.deps.Assets.Get(c.Request.Context(), id)
	if err != nil {
		s.assetError(c, "server.handleGetImage", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "image": asset})
}

func (s *Server) handleGetImageFile(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	rc, asset, err := s.deps.Assets.Open(c.Request.Context(), id)
	if err != nil {
		s.assetError(c, "server.handleGetImageFile", err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, asset.Size, asset.ContentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf(`inline; filename=%q`, asset.Filename),
	})
}

func (s *Server) handleUpdateImage(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var u models.AssetUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON in request body.")
		return
	}
	asset, err := s.deps.Assets.Update(c.Request.Context(), id, u)
	if err != nil {
		s.assetError(c, "server.handleUpdateImage", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "image": asset})
}

func (s *Server) handleDeleteImage(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	res, err := s.deps.Assets.Delete(c.Request.Context(), id)
	if err != nil {
		s.assetError(c, "server.handleDeleteImage", err)
		return
	}
	s.afterDelete(c, res, "image deleted")
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"message":            fmt.Sprintf("Image %d deleted successfully.", id),
		"deleted":            res.Deleted,
		"queued_for_cleanup": res.QueuedForCleanup,
	})
}

func (s *Server) handleBulkDelete(c *gin.Context) {
	var body struct {
		IDs []int64 `json:"ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON in request body.")
		return
	}
	if len(body.IDs) == 0 {
		fail(c, http.StatusBadRequest, "ids must be a non-empty list")
		return
	}
	res, err := s.deps.Assets.BulkDelete(c.Request.Context(), body.IDs)
	if err != nil {
		s.assetError(c, "server.handleBulkDelete", err)
		return
	}
	s.afterDelete(c, res, "bulk delete")
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"message":            fmt.Sprintf("%d images deleted, %d files queued for background cleanup.", res.Deleted, res.QueuedForCleanup),
		"deleted":            res.Deleted,
		"queued_for_cleanup": res.QueuedForCleanup,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.deps.Assets.Stats(c.Request.Context())
	if err != nil {
		s.assetError(c, "server.handleStats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

// afterDelete asks the worker for a run when the deletion queued any rows.
func (s *Server) afterDelete(c *gin.Context, res assets.DeleteResult, reason string) {
	if !s.cfg.Cleanup.TriggerOnDelete || res.QueuedForCleanup == 0 || s.deps.Publisher == nil {
		return
	}
	err := s.deps.Publisher.Publish(c.Request.Context(), trigger.Message{Reason: reason})
	if err != nil {
		log.Warnf("failed to publish cleanup trigger: %v", err)
	}
}

func (s *Server) assetError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, models.ErrAssetNotFound):
		fail(c, http.StatusNotFound, "Image not found.")
	case errors.Is(err, objectstore.ErrNotFound):
		fail(c, http.StatusNotFound, "Image file not found in storage.")
	case errors.Is(err, assets.ErrClientIDRequired), errors.Is(err, clientid.ErrRequired):
		fail(c, http.StatusBadRequest, "client_id is required")
	case errors.Is(err, clientid.ErrNotRegistered):
		fail(c, http.StatusForbidden, err.Error())
	case errors.Is(err, assets.ErrUnsupportedType), errors.Is(err, assets.ErrInvalidImage):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, assets.ErrTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, err.Error())
	default:
		log.Errorf("%s: %v", op, err)
		fail(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", op, err))
	}
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, fmt.Sprintf("invalid image id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid parameter: %s must be an integer", key)
	}
	return n, nil
}
