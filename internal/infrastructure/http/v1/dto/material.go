package dto

import (
	"strings"
	"time"

	"sitetrack/internal/core/types"
	"sitetrack/internal/domain/materials"
)

// AddBatchRequest records a delivery.
type AddBatchRequest struct {
	ProjectID    string         `json:"projectId" binding:"required"`
	MaterialCode string         `json:"materialCode" binding:"required,max=50"`
	Name         string         `json:"name" binding:"required"`
	Quantity     types.Quantity `json:"quantity"`
	Amount       types.Money    `json:"amount"`
	AddedBy      string         `json:"addedBy"`
	Date         string         `json:"date"`
}

// ToDomain converts to the service request. Dates without a time of day are
// taken as midnight in loc.
func (r *AddBatchRequest) ToDomain(loc *time.Location) (materials.AddBatchRequest, error) {
	projectID, err := ParseRequiredID("projectId", r.ProjectID)
	if err != nil {
		return materials.AddBatchRequest{}, err
	}
	date, err := ParseDate("date", r.Date, loc)
	if err != nil {
		return materials.AddBatchRequest{}, err
	}
	return materials.AddBatchRequest{
		ProjectID:    projectID,
		MaterialCode: r.MaterialCode,
		Name:         r.Name,
		Quantity:     r.Quantity,
		Amount:       r.Amount,
		AddedBy:      r.AddedBy,
		Date:         date,
	}, nil
}

// ConsumeRequest withdraws a material across its batches.
type ConsumeRequest struct {
	MaterialCode string         `json:"materialCode" binding:"required"`
	Quantity     types.Quantity `json:"quantity"`
	TakenBy      string         `json:"takenBy"`
	Date         string         `json:"date"`
}

// ToDomain converts to the service request.
func (r *ConsumeRequest) ToDomain(loc *time.Location) (materials.ConsumeRequest, error) {
	date, err := ParseDate("date", r.Date, loc)
	if err != nil {
		return materials.ConsumeRequest{}, err
	}
	return materials.ConsumeRequest{
		MaterialCode: r.MaterialCode,
		Quantity:     r.Quantity,
		TakenBy:      r.TakenBy,
		Date:         date,
	}, nil
}

// UpdateBatchRequest edits descriptive fields of a batch. Quantities are
// not editable here.
type UpdateBatchRequest struct {
	Name       *string      `json:"name"`
	UnitAmount *types.Money `json:"unitAmount"`
	AddedBy    *string      `json:"addedBy"`
	Status     *string      `json:"status" binding:"omitempty,oneof=available out_of_stock on_hold"`
	Version    int          `json:"version" binding:"required,min=1"`
}

// ToDomain converts to the service request.
func (r *UpdateBatchRequest) ToDomain() materials.UpdateBatchRequest {
	req := materials.UpdateBatchRequest{
		Name:       r.Name,
		UnitAmount: r.UnitAmount,
		AddedBy:    r.AddedBy,
		Version:    r.Version,
	}
	if r.Status != nil {
		s := materials.Status(*r.Status)
		req.Status = &s
	}
	return req
}

// BulkStatusRequest sets the status of every batch of a material.
type BulkStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=available out_of_stock on_hold"`
}

// BatchListQuery filters GET /materials/batches.
type BatchListQuery struct {
	ListQuery
	MaterialCode string `form:"materialCode"`
	ProjectID    string `form:"projectId"`
	Status       string `form:"status" binding:"omitempty,oneof=available out_of_stock on_hold"`
	OnlyInStock  bool   `form:"onlyInStock"`
}

// ToFilter converts to the domain filter.
func (q BatchListQuery) ToFilter() (materials.ListFilter, error) {
	projectID, err := ParseOptionalID("projectId", q.ProjectID)
	if err != nil {
		return materials.ListFilter{}, err
	}
	return materials.ListFilter{
		ListFilter:   q.ListQuery.ToFilter(),
		MaterialCode: strings.TrimSpace(q.MaterialCode),
		ProjectID:    projectID,
		Status:       materials.Status(q.Status),
		OnlyInStock:  q.OnlyInStock,
	}, nil
}

// TotalResponse is an aggregated quantity of one material.
type TotalResponse struct {
	MaterialCode string         `json:"materialCode"`
	Quantity     types.Quantity `json:"quantity"`
}

// AffectedResponse reports how many batches a bulk operation touched.
type AffectedResponse struct {
	Affected int64 `json:"affected"`
}

// ReportQuery selects a monthly material report.
type ReportQuery struct {
	PeriodQuery
	Format string `form:"format" binding:"omitempty,oneof=json xlsx"`
}
