package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messenger-service/internal/storage"
)

// MaxUploadBytes caps a single uploaded file.
const MaxUploadBytes = 10 << 20

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// UploadHandler pushes user media to the blob store.
type UploadHandler struct {
	blobs *storage.Client
}

func NewUploadHandler(blobs *storage.Client) *UploadHandler {
	return &UploadHandler{blobs: blobs}
}

// Upload accepts one multipart file. ?purpose=avatar restricts the
// content type to images.
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds 10MB"})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if c.Query("purpose") == "avatar" && !imageTypes[contentType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar must be an image"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file"})
		return
	}
	if len(data) > MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds 10MB"})
		return
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
	publicID := fmt.Sprintf("u%d-%s", c.GetInt("userID"), uuid.NewString())

	url, err := h.blobs.Upload(c.Request.Context(), dataURI, publicID)
	if errors.Is(err, storage.ErrNotConfigured) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads are not configured"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"url":      url,
		"filename": fileHeader.Filename,
		"size":     len(data),
		"type":     contentType,
	})
}

// Delete removes a previously uploaded blob given its url.
func (h *UploadHandler) Delete(c *gin.Context) {
	blobURL := strings.TrimSpace(c.Query("url"))
	if blobURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	err := h.blobs.Delete(c.Request.Context(), blobURL)
	if errors.Is(err, storage.ErrNotConfigured) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads are not configured"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
