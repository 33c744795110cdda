// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"strings"
	"time"

	"sitetrack/internal/core/apperror"
	"sitetrack/internal/core/id"
	"sitetrack/internal/domain"
)

// --- List Response ---

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// NewListResponse wraps a domain page as is.
func NewListResponse[T any](r domain.ListResult[T]) ListResponse[T] {
	items := r.Items
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, TotalCount: r.TotalCount, Limit: r.Limit, Offset: r.Offset}
}

// FromListResult maps a domain page through fn.
func FromListResult[E, T any](r domain.ListResult[E], fn func(E) T) ListResponse[T] {
	items := make([]T, len(r.Items))
	for i, e := range r.Items {
		items[i] = fn(e)
	}
	return ListResponse[T]{
		Items:      items,
		TotalCount: r.TotalCount,
		Limit:      r.Limit,
		Offset:     r.Offset,
	}
}

// ListQuery contains the common list query parameters.
type ListQuery struct {
	Search         string `form:"search"`
	Limit          int    `form:"limit" binding:"omitempty,min=1"`
	Offset         int    `form:"offset" binding:"omitempty,min=0"`
	OrderBy        string `form:"orderBy"`
	IncludeDeleted bool   `form:"includeDeleted"`
}

// ToFilter converts to the domain list filter.
func (q ListQuery) ToFilter() domain.ListFilter {
	f := domain.DefaultListFilter()
	f.Search = strings.TrimSpace(q.Search)
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	f.Offset = q.Offset
	f.OrderBy = q.OrderBy
	f.IncludeDeleted = q.IncludeDeleted
	return f
}

// --- Base DTOs ---

// BaseResponse contains common response fields.
type BaseResponse struct {
	ID           string    `json:"id"`
	DeletionMark bool      `json:"deletionMark"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Success Response ---

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// --- Parsing helpers ---

// ParseOptionalID parses a query/body id, returning nil for empty input.
func ParseOptionalID(field, raw string) (*id.ID, error) {
	v, err := id.ParseOptional(strings.TrimSpace(raw))
	if err != nil {
		return nil, apperror.NewValidation("invalid id format").WithDetail("field", field)
	}
	return v, nil
}

// ParseDate accepts "2006-01-02" (midnight in loc) or RFC 3339. Empty input
// yields the zero time.
func ParseDate(field, raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperror.NewValidation("invalid date, expected YYYY-MM-DD or RFC 3339").
			WithDetail("field", field).
			WithDetail("value", raw)
	}
	return t, nil
}

// ParseRequiredID parses a mandatory id.
func ParseRequiredID(field, raw string) (id.ID, error) {
	v, err := ParseOptionalID(field, raw)
	if err != nil {
		return id.Nil(), err
	}
	if v == nil {
		return id.Nil(), apperror.NewValidation(field + " is required").WithDetail("field", field)
	}
	return *v, nil
}

// PeriodQuery selects a calendar month of a project.
type PeriodQuery struct {
	ProjectID string `form:"projectId" binding:"required"`
	Year      int    `form:"year" binding:"required"`
	Month     int    `form:"month" binding:"required"`
}
