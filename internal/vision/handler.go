package vision

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Storage interface {
	Upload(ctx context.Context, key string, body io.Reader) (string, error)
}

type Handler struct {
	client  Client
	storage Storage
}

func NewHandler(client Client, storage Storage) *Handler {
	return &Handler{client: client, storage: storage}
}

// DetectItems accepts a page image, archives it, and returns the vision
// model's detection payload. A model failure degrades to an error result the
// operator still sees free text for; it never aborts the upload cycle.
func (h *Handler) DetectItems(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file must be an image"})
		return
	}

	image, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}

	var imageURL string
	if h.storage != nil {
		key := fmt.Sprintf("pages/%s%s", uuid.New().String(), strings.ToLower(filepath.Ext(header.Filename)))
		imageURL, err = h.storage.Upload(c.Request.Context(), key, bytes.NewReader(image))
		if err != nil {
			// Archival is provenance, not a precondition for detection.
			log.Printf("PAGE_ARCHIVE_FAILED key=%s err=%v", key, err)
		}
	}

	result, err := h.client.DetectItems(c.Request.Context(), image, mimeType)
	if err != nil {
		log.Printf("VISION_FAILED file=%s err=%v", header.Filename, err)
		c.JSON(http.StatusOK, gin.H{
			"description":  fmt.Sprintf("Error: %s", err.Error()),
			"raw_response": fmt.Sprintf("Error occurred: %s", err.Error()),
			"status":       "error",
			"image_url":    imageURL,
		})
		return
	}

	log.Printf("VISION_DONE file=%s raw_len=%d", header.Filename, len(result.RawResponse))

	c.JSON(http.StatusOK, gin.H{
		"description":  result.Description,
		"raw_response": result.RawResponse,
		"status":       result.Status,
		"image_url":    imageURL,
	})
}
