package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"sitetrack/internal/core/id"
	"sitetrack/internal/domain"
	"sitetrack/internal/infrastructure/http/v1/dto"
)

// CatalogCRUD is the part of domain.CatalogService the handler calls.
type CatalogCRUD[T domain.CatalogEntity] interface {
	Create(ctx context.Context, e T) error
	GetByID(ctx context.Context, entityID id.ID) (T, error)
	Update(ctx context.Context, e T) error
	Delete(ctx context.Context, entityID id.ID) error
}

// CatalogHandler provides generic HTTP handlers for catalog entities.
// C and U are the create and update request bodies, Q the list query.
type CatalogHandler[T domain.CatalogEntity, C any, U any, Q any] struct {
	*BaseHandler
	service CatalogCRUD[T]

	list        func(ctx context.Context, q Q) (domain.ListResult[T], error)
	mapCreate   func(req *C) (T, error)
	applyUpdate func(req *U, existing T) error
}

// CatalogHandlerConfig configures the catalog handler.
type CatalogHandlerConfig[T domain.CatalogEntity, C any, U any, Q any] struct {
	Service     CatalogCRUD[T]
	List        func(ctx context.Context, q Q) (domain.ListResult[T], error)
	MapCreate   func(req *C) (T, error)
	ApplyUpdate func(req *U, existing T) error
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler[T domain.CatalogEntity, C any, U any, Q any](
	base *BaseHandler,
	cfg CatalogHandlerConfig[T, C, U, Q],
) *CatalogHandler[T, C, U, Q] {
	return &CatalogHandler[T, C, U, Q]{
		BaseHandler: base,
		service:     cfg.Service,
		list:        cfg.List,
		mapCreate:   cfg.MapCreate,
		applyUpdate: cfg.ApplyUpdate,
	}
}

// List handles GET /{entity} - list with filtering and pagination.
func (h *CatalogHandler[T, C, U, Q]) List(c *gin.Context) {
	var q Q
	if !h.BindQuery(c, &q) {
		return
	}

	result, err := h.list(c.Request.Context(), q)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(result))
}

// Get handles GET /{entity}/:id - get single entity.
func (h *CatalogHandler[T, C, U, Q]) Get(c *gin.Context) {
	entityID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	e, err := h.service.GetByID(c.Request.Context(), entityID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, e)
}

// Create handles POST /{entity} - create new entity.
func (h *CatalogHandler[T, C, U, Q]) Create(c *gin.Context) {
	var req C
	if !h.BindJSON(c, &req) {
		return
	}

	e, err := h.mapCreate(&req)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(c.Request.Context(), e); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, e)
}

// Update handles PUT /{entity}/:id - update existing entity.
func (h *CatalogHandler[T, C, U, Q]) Update(c *gin.Context) {
	ctx := c.Request.Context()

	entityID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req U
	if !h.BindJSON(c, &req) {
		return
	}

	existing, err := h.service.GetByID(ctx, entityID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.applyUpdate(&req, existing); err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Update(ctx, existing); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, existing)
}

// Delete handles DELETE /{entity}/:id - sets the deletion mark.
func (h *CatalogHandler[T, C, U, Q]) Delete(c *gin.Context) {
	entityID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), entityID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
