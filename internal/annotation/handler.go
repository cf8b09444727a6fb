package annotation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/maercaestro/poc-data/internal/catalog"
	"github.com/maercaestro/poc-data/internal/gateway"
	"github.com/maercaestro/poc-data/internal/handoff"
	"github.com/maercaestro/poc-data/internal/vision"
)

type Handler struct {
	manager *Manager
	handoff *handoff.Service
}

func NewHandler(manager *Manager, handoffSvc *handoff.Service) *Handler {
	return &Handler{manager: manager, handoff: handoffSvc}
}

func scopeFromParams(c *gin.Context) (catalog.Scope, bool) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page number"})
		return catalog.Scope{}, false
	}
	return catalog.Scope{SourceID: c.Param("source_id"), Page: page}, true
}

func (h *Handler) session(c *gin.Context) (*Session, bool) {
	scope, ok := scopeFromParams(c)
	if !ok {
		return nil, false
	}
	session, err := h.manager.Get(scope)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return session, true
}

// failure writes the error with the status its taxonomy calls for. Gateway
// rejections pass through verbatim; local id misses are the caller's bug.
func failure(c *gin.Context, err error) {
	var gwErr *gateway.Error
	switch {
	case errors.As(err, &gwErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": gwErr.Error()})
	case errors.Is(err, ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotPersisted), errors.Is(err, ErrExportBlocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// --------------------------------------------------
// POST /api/review/:source_id/page/:page/start
// --------------------------------------------------
// With a vision payload in the body the session is seeded from that parse;
// otherwise it is seeded from the stored catalog page.
func (h *Handler) Start(c *gin.Context) {
	scope, ok := scopeFromParams(c)
	if !ok {
		return
	}

	var req struct {
		Vision *vision.DetectResult `json:"vision"`
	}
	_ = c.ShouldBindJSON(&req)

	if req.Vision != nil {
		result := catalog.Parse(*req.Vision)
		session := h.manager.StartFromParse(scope, result)

		resp := gin.H{
			"source_id":  scope.SourceID,
			"page":       scope.Page,
			"items":      session.Items(FilterAll),
			"can_export": session.CanExport(),
		}
		if result.ParseError != "" {
			resp["parse_error"] = result.ParseError
		}
		if result.ParsedStructure != nil {
			resp["parsed_menu"] = result.ParsedStructure
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	session, err := h.manager.Start(c.Request.Context(), scope)
	if err != nil {
		failure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source_id":  scope.SourceID,
		"page":       scope.Page,
		"items":      session.Items(FilterAll),
		"can_export": session.CanExport(),
	})
}

// --------------------------------------------------
// GET /api/review/:source_id/page/:page
// --------------------------------------------------
func (h *Handler) List(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	filter := Filter(c.DefaultQuery("filter", string(FilterAll)))
	c.JSON(http.StatusOK, gin.H{
		"items":      session.Items(filter),
		"can_export": session.CanExport(),
	})
}

// --------------------------------------------------
// POST /api/review/:source_id/page/:page/items
// --------------------------------------------------
func (h *Handler) AddManual(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, session.AddManual())
}

// --------------------------------------------------
// PATCH /api/review/:source_id/page/:page/items/:id
// --------------------------------------------------
func (h *Handler) Save(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	id, err := catalog.ParseItemID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var patch catalog.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patch payload"})
		return
	}

	item, err := session.Save(c.Request.Context(), id, patch)
	if err != nil {
		failure(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// --------------------------------------------------
// POST /api/review/:source_id/page/:page/items/:id/verify
// --------------------------------------------------
func (h *Handler) Verify(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	id, err := catalog.ParseItemID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := session.Verify(c.Request.Context(), id)
	if err != nil {
		failure(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// --------------------------------------------------
// POST /api/review/:source_id/page/:page/bulk-verify
// --------------------------------------------------
func (h *Handler) BulkVerify(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		IDs []catalog.ItemID `json:"ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids is required"})
		return
	}

	result := session.BulkVerify(c.Request.Context(), req.IDs)

	verified := make([]string, 0, len(result.Verified))
	for _, id := range result.Verified {
		verified = append(verified, id.String())
	}
	failures := make([]gin.H, 0, len(result.Failures))
	for _, f := range result.Failures {
		failures = append(failures, gin.H{"id": f.ID.String(), "error": f.Err.Error()})
	}

	c.JSON(http.StatusOK, gin.H{
		"verified": verified,
		"failures": failures,
	})
}

// --------------------------------------------------
// POST /api/review/:source_id/page/:page/export
// --------------------------------------------------
func (h *Handler) Export(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	doc, err := session.Export(c.Request.Context())
	if err != nil {
		failure(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", doc)
}

// --------------------------------------------------
// POST /api/review/:source_id/page/:page/handoff
// --------------------------------------------------
func (h *Handler) Handoff(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
	}
	_ = c.ShouldBindJSON(&req)

	mc, sessionID, err := h.handoff.Handoff(c.Request.Context(), req.SessionID, session.Store().All())
	if err != nil {
		if errors.Is(err, handoff.ErrNoItems) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		failure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"items":      len(mc.Items),
		"timestamp":  mc.Timestamp,
		"source":     mc.Source,
	})
}
