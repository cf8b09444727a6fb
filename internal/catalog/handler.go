package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func scopeFromParams(c *gin.Context) (Scope, bool) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page number"})
		return Scope{}, false
	}
	return Scope{SourceID: c.Param("source_id"), Page: page}, true
}

// --------------------------------------------------
// GET /api/catalog/:source_id/page/:page
// --------------------------------------------------
func (h *Handler) GetPage(c *gin.Context) {
	scope, ok := scopeFromParams(c)
	if !ok {
		return
	}

	page, err := h.service.GetPage(c.Request.Context(), scope)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, page)
}

// --------------------------------------------------
// POST /api/catalog/:source_id/page/:page/items
// --------------------------------------------------
func (h *Handler) CreateItem(c *gin.Context) {
	scope, ok := scopeFromParams(c)
	if !ok {
		return
	}

	var item Item
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item payload"})
		return
	}

	created, err := h.service.CreateItem(c.Request.Context(), scope, item)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

// --------------------------------------------------
// PATCH /api/item/:id
// --------------------------------------------------
func (h *Handler) UpdateItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}

	var patch Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patch payload"})
		return
	}

	updated, err := h.service.UpdateItem(c.Request.Context(), id, patch)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// --------------------------------------------------
// POST /api/export/:source_id
// --------------------------------------------------
func (h *Handler) Export(c *gin.Context) {
	doc, err := h.service.Export(c.Request.Context(), c.Param("source_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, doc)
}
