package handler

import (
	"errors"
	"net/http"

	"mooshihub/internal/microservices/http-api/dto"
	"mooshihub/internal/microservices/http-api/middleware"
	"mooshihub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

type CDNHandler struct {
	cdnService service.CDNService
}

func NewCDNHandler(cdnService service.CDNService) *CDNHandler {
	return &CDNHandler{cdnService: cdnService}
}

// Upload stores the multipart "file" field under the caller's folder.
func (h *CDNHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	defer f.Close()

	stored, err := h.cdnService.Upload(c.Request.Context(), c.GetString(middleware.ContextOwner), header.Header.Get("Content-Type"), f)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUnsupportedFileType):
		c.String(http.StatusBadRequest, "Invalid file type")
		return
	case errors.Is(err, service.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	c.JSON(http.StatusCreated, dto.UploadResponse{
		Message: "File uploaded to " + stored.URL,
		File:    *stored,
	})
}

func (h *CDNHandler) List(c *gin.Context) {
	owner := c.GetString(middleware.ContextOwner)
	files, err := h.cdnService.List(c.Request.Context(), owner)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
		return
	}
	c.JSON(http.StatusOK, dto.FileListResponse{
		Owner: owner,
		Files: files,
		Total: len(files),
	})
}

func (h *CDNHandler) Delete(c *gin.Context) {
	err := h.cdnService.Delete(c.Request.Context(), c.GetString(middleware.ContextOwner), c.Param("name"))
	if errors.Is(err, service.ErrFileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete file"})
		return
	}
	c.Status(http.StatusNoContent)
}
