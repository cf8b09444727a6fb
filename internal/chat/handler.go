package chat

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maercaestro/poc-data/internal/handoff"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// --------------------------------------------------
// POST /api/chat/session
// --------------------------------------------------
func (h *Handler) CreateSession(c *gin.Context) {
	var req struct {
		TempSessionID string `json:"temp_session_id"`
	}
	_ = c.ShouldBindJSON(&req)

	session, err := h.service.CreateSession(c.Request.Context(), req.TempSessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, session)
}

// --------------------------------------------------
// GET /api/chat/session/:id/history
// --------------------------------------------------
func (h *Handler) History(c *gin.Context) {
	messages, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// --------------------------------------------------
// POST /api/chat
// --------------------------------------------------
func (h *Handler) Send(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sessionID, reply, err := h.service.Send(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"reply":      reply,
	})
}

// --------------------------------------------------
// POST /api/chat/menu — the handoff consumer
// --------------------------------------------------
func (h *Handler) AttachMenu(c *gin.Context) {
	var req struct {
		SessionID string              `json:"session_id"`
		MenuData  handoff.MenuContext `json:"menu_data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	if len(req.MenuData.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "menu_data.items is empty"})
		return
	}

	if err := h.service.AttachContext(c.Request.Context(), req.SessionID, &req.MenuData); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": req.SessionID,
		"items":      len(req.MenuData.Items),
		"message":    "menu context stored",
	})
}
