package handlers

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sitetrack/internal/core/id"
	"sitetrack/internal/core/types"
	"sitetrack/internal/domain"
	"sitetrack/internal/domain/materials"
	"sitetrack/internal/infrastructure/export"
	"sitetrack/internal/infrastructure/http/v1/dto"
)

// MaterialService is the ledger API used by the handler.
type MaterialService interface {
	AddBatch(ctx context.Context, req materials.AddBatchRequest) (*materials.Batch, error)
	Consume(ctx context.Context, req materials.ConsumeRequest) (*materials.ConsumptionResult, error)
	Get(ctx context.Context, batchID id.ID) (*materials.Batch, error)
	List(ctx context.Context, filter materials.ListFilter) (domain.ListResult[materials.Batch], error)
	UpdateBatch(ctx context.Context, batchID id.ID, req materials.UpdateBatchRequest) (*materials.Batch, error)
	BulkUpdateStatus(ctx context.Context, code string, status materials.Status) (int64, error)
	DeleteByID(ctx context.Context, batchID id.ID) error
	DeleteByCode(ctx context.Context, code string) (int64, error)
	TotalAvailable(ctx context.Context, code string) (types.Quantity, error)
	TotalConsumed(ctx context.Context, code string) (types.Quantity, error)
	Summaries(ctx context.Context, filter materials.SummaryFilter) ([]materials.Summary, error)
	MonthlyReport(ctx context.Context, projectID id.ID, year, month int) (*materials.MonthlyReport, error)
}

// MaterialHandler serves the material ledger.
type MaterialHandler struct {
	*BaseHandler
	service  MaterialService
	location *time.Location
}

// NewMaterialHandler creates a material handler. loc interprets bare dates.
func NewMaterialHandler(base *BaseHandler, service MaterialService, loc *time.Location) *MaterialHandler {
	if loc == nil {
		loc = time.Local
	}
	return &MaterialHandler{BaseHandler: base, service: service, location: loc}
}

// AddBatch handles POST /materials/batches
func (h *MaterialHandler) AddBatch(c *gin.Context) {
	var req dto.AddBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToDomain(h.location)
	if err != nil {
		h.Error(c, err)
		return
	}

	batch, err := h.service.AddBatch(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.CreatedWith(c, batch)
}

// Consume handles POST /materials/consume
func (h *MaterialHandler) Consume(c *gin.Context) {
	var req dto.ConsumeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToDomain(h.location)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.Consume(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// List handles GET /materials/batches
func (h *MaterialHandler) List(c *gin.Context) {
	var q dto.BatchListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result))
}

// Get handles GET /materials/batches/:id
func (h *MaterialHandler) Get(c *gin.Context) {
	batchID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	batch, err := h.service.Get(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, batch)
}

// Update handles PUT /materials/batches/:id
func (h *MaterialHandler) Update(c *gin.Context) {
	batchID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	batch, err := h.service.UpdateBatch(c.Request.Context(), batchID, req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, batch)
}

// Delete handles DELETE /materials/batches/:id
func (h *MaterialHandler) Delete(c *gin.Context) {
	batchID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteByID(c.Request.Context(), batchID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// DeleteByCode handles DELETE /materials/codes/:code
func (h *MaterialHandler) DeleteByCode(c *gin.Context) {
	n, err := h.service.DeleteByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.AffectedResponse{Affected: n})
}

// SetStatus handles PUT /materials/codes/:code/status
func (h *MaterialHandler) SetStatus(c *gin.Context) {
	var req dto.BulkStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	n, err := h.service.BulkUpdateStatus(c.Request.Context(), c.Param("code"), materials.Status(req.Status))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.AffectedResponse{Affected: n})
}

// Available handles GET /materials/codes/:code/available
func (h *MaterialHandler) Available(c *gin.Context) {
	h.total(c, h.service.TotalAvailable)
}

// Consumed handles GET /materials/codes/:code/consumed
func (h *MaterialHandler) Consumed(c *gin.Context) {
	h.total(c, h.service.TotalConsumed)
}

func (h *MaterialHandler) total(c *gin.Context, fn func(context.Context, string) (types.Quantity, error)) {
	code := materials.NormalizeCode(c.Param("code"))
	q, err := fn(c.Request.Context(), code)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.TotalResponse{MaterialCode: code, Quantity: q})
}

// Summaries handles GET /materials/summaries
func (h *MaterialHandler) Summaries(c *gin.Context) {
	projectID, err := dto.ParseOptionalID("projectId", c.Query("projectId"))
	if err != nil {
		h.Error(c, err)
		return
	}
	items, err := h.service.Summaries(c.Request.Context(), materials.SummaryFilter{ProjectID: projectID})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": items})
}

// MonthlyReport handles GET /materials/reports/monthly. format=xlsx returns
// a spreadsheet attachment.
func (h *MaterialHandler) MonthlyReport(c *gin.Context) {
	var q dto.ReportQuery
	if !h.BindQuery(c, &q) {
		return
	}
	projectID, err := dto.ParseRequiredID("projectId", q.ProjectID)
	if err != nil {
		h.Error(c, err)
		return
	}

	report, err := h.service.MonthlyReport(c.Request.Context(), projectID, q.Year, q.Month)
	if err != nil {
		h.Error(c, err)
		return
	}

	if q.Format != "xlsx" {
		h.OK(c, report)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteMonthlyReport(&buf, report); err != nil {
		h.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.MonthlyReportFilename(report)+`"`)
	c.Data(http.StatusOK, export.XLSXContentType, buf.Bytes())
}

// RegisterRoutes registers material routes. write guards mutating routes,
// idempotent additionally wraps the stock-changing POSTs.
func (h *MaterialHandler) RegisterRoutes(g *gin.RouterGroup, write, idempotent gin.HandlerFunc) {
	g.GET("/batches", h.List)
	g.GET("/batches/:id", h.Get)
	g.POST("/batches", write, idempotent, h.AddBatch)
	g.PUT("/batches/:id", write, h.Update)
	g.DELETE("/batches/:id", write, h.Delete)

	g.POST("/consume", idempotent, h.Consume)

	g.GET("/codes/:code/available", h.Available)
	g.GET("/codes/:code/consumed", h.Consumed)
	g.PUT("/codes/:code/status", write, h.SetStatus)
	g.DELETE("/codes/:code", write, h.DeleteByCode)

	g.GET("/summaries", h.Summaries)
	g.GET("/reports/monthly", h.MonthlyReport)
}
