package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"sitetrack/internal/core/id"
	"sitetrack/internal/domain"
	"sitetrack/internal/domain/attendance"
	"sitetrack/internal/infrastructure/http/v1/dto"
)

// AttendanceService is the attendance API used by the handler.
type AttendanceService interface {
	Mark(ctx context.Context, req attendance.MarkRequest) (*attendance.Record, error)
	List(ctx context.Context, filter attendance.ListFilter) (domain.ListResult[attendance.Record], error)
	MonthlySummary(ctx context.Context, projectID id.ID, year, month int) (*attendance.MonthlySummary, error)
}

// AttendanceHandler serves /attendance.
type AttendanceHandler struct {
	*BaseHandler
	service  AttendanceService
	location *time.Location
}

// NewAttendanceHandler creates an attendance handler.
func NewAttendanceHandler(base *BaseHandler, service AttendanceService, loc *time.Location) *AttendanceHandler {
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceHandler{BaseHandler: base, service: service, location: loc}
}

// Mark handles POST /attendance
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req dto.MarkAttendanceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToDomain(h.location)
	if err != nil {
		h.Error(c, err)
		return
	}

	rec, err := h.service.Mark(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// List handles GET /attendance
func (h *AttendanceHandler) List(c *gin.Context) {
	var q dto.AttendanceListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter(h.location)
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

// MonthlySummary handles GET /attendance/summary
func (h *AttendanceHandler) MonthlySummary(c *gin.Context) {
	var q dto.PeriodQuery
	if !h.BindQuery(c, &q) {
		return
	}
	projectID, err := dto.ParseRequiredID("projectId", q.ProjectID)
	if err != nil {
		h.Error(c, err)
		return
	}

	summary, err := h.service.MonthlySummary(c.Request.Context(), projectID, q.Year, q.Month)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, summary)
}

// RegisterRoutes registers attendance routes.
func (h *AttendanceHandler) RegisterRoutes(g *gin.RouterGroup, write gin.HandlerFunc) {
	g.GET("", h.List)
	g.POST("", write, h.Mark)
	g.GET("/summary", write, h.MonthlySummary)
}
