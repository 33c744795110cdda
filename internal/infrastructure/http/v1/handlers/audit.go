package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"sitetrack/internal/infrastructure/storage/postgres"
)

// AuditReader loads the change history of an entity.
type AuditReader interface {
	GetEntityHistory(ctx context.Context, entityType, entityID string, limit int) ([]postgres.AuditEntry, error)
}

// AuditHandler exposes the administrative change log.
type AuditHandler struct {
	*BaseHandler
	reader AuditReader
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(base *BaseHandler, reader AuditReader) *AuditHandler {
	return &AuditHandler{BaseHandler: base, reader: reader}
}

// History handles GET /audit/:entityType/:entityId
func (h *AuditHandler) History(c *gin.Context) {
	limit := h.ParseIntQuery(c, "limit", 50)
	if limit > 500 {
		limit = 500
	}

	entries, err := h.reader.GetEntityHistory(c.Request.Context(), c.Param("entityType"), c.Param("entityId"), limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	if entries == nil {
		entries = []postgres.AuditEntry{}
	}
	h.OK(c, gin.H{"items": entries})
}
