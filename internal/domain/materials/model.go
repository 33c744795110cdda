// Package materials implements the material-batch ledger: inbound deliveries,
// FIFO consumption across batches of the same material code, availability
// aggregation and the monthly addition/consumption report.
package materials

import (
	"context"
	"strings"
	"time"

	"sitetrack/internal/core/apperror"
	"sitetrack/internal/core/id"
	"sitetrack/internal/core/types"
	"sitetrack/internal/domain"
)

// Status is an administrative flag on a batch.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusOutOfStock Status = "out_of_stock"
	StatusOnHold     Status = "on_hold"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusOutOfStock, StatusOnHold:
		return true
	}
	return false
}

// Batch is one inbound delivery of a material.
type Batch struct {
	ID                id.ID          `db:"id" json:"id"`
	ProjectID         id.ID          `db:"project_id" json:"projectId"`
	MaterialCode      string         `db:"material_code" json:"materialCode"`
	Name              string         `db:"name" json:"name"`
	DeliveredQuantity types.Quantity `db:"delivered_quantity" json:"deliveredQuantity"`
	RemainingQuantity types.Quantity `db:"remaining_quantity" json:"remainingQuantity"`
	UnitAmount        types.Money    `db:"unit_amount" json:"unitAmount"`
	DeliveredDate     time.Time      `db:"delivered_date" json:"deliveredDate"`
	AddedBy           string         `db:"added_by" json:"addedBy"`
	Status            Status         `db:"status" json:"status"`
	DeletedAt         *time.Time     `db:"deleted_at" json:"deletedAt,omitempty"`
	Version           int            `db:"version" json:"version"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updatedAt"`

	UsageEvents []UsageEvent `db:"-" json:"usageEvents"`
}

// NewBatch creates a batch with remaining == delivered.
func NewBatch(projectID id.ID, code, name string, qty types.Quantity, amount types.Money, deliveredAt time.Time, addedBy string) *Batch {
	now := time.Now().UTC()
	return &Batch{
		ID:                id.New(),
		ProjectID:         projectID,
		MaterialCode:      NormalizeCode(code),
		Name:              strings.TrimSpace(name),
		DeliveredQuantity: qty,
		RemainingQuantity: qty,
		UnitAmount:        amount,
		DeliveredDate:     deliveredAt,
		AddedBy:           strings.TrimSpace(addedBy),
		Status:            StatusAvailable,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
		UsageEvents:       []UsageEvent{},
	}
}

// NormalizeCode trims a material code. Codes are case-sensitive.
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}

// Validate checks the batch invariants.
func (b *Batch) Validate(ctx context.Context) error {
	if b.MaterialCode == "" {
		return apperror.NewValidation("material code is required").WithDetail("field", "materialCode")
	}
	if b.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if id.IsNil(b.ProjectID) {
		return apperror.NewValidation("project is required").WithDetail("field", "projectId")
	}
	if !b.DeliveredQuantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}
	if b.DeliveredQuantity > types.MaxQuantity {
		return apperror.NewValidation("quantity exceeds the per-batch limit").
			WithDetail("field", "quantity").
			WithDetail("max", types.MaxQuantity.String())
	}
	if b.RemainingQuantity.IsNegative() || b.RemainingQuantity > b.DeliveredQuantity {
		return apperror.NewValidation("remaining quantity out of range").
			WithDetail("remaining", b.RemainingQuantity.String()).
			WithDetail("delivered", b.DeliveredQuantity.String())
	}
	if b.UnitAmount.IsNegative() {
		return apperror.NewValidation("amount must not be negative").WithDetail("field", "amount")
	}
	if b.DeliveredDate.IsZero() {
		return apperror.NewValidation("delivered date is required").WithDetail("field", "date")
	}
	if !b.Status.Valid() {
		return apperror.NewValidation("unknown status").WithDetail("status", string(b.Status))
	}
	return nil
}

// IsDeleted reports whether the batch has been tombstoned.
func (b *Batch) IsDeleted() bool {
	return b.DeletedAt != nil
}

// Consumed returns the total quantity recorded in usage events.
func (b *Batch) Consumed() types.Quantity {
	var total types.Quantity
	for _, e := range b.UsageEvents {
		total = total.Add(e.Quantity)
	}
	return total
}

// SetStatus changes the status. Marking a batch out of stock writes off
// whatever is left.
func (b *Batch) SetStatus(s Status) {
	b.Status = s
	if s == StatusOutOfStock {
		b.RemainingQuantity = 0
	}
	b.UpdatedAt = time.Now().UTC()
}

// UsageEvent is an append-only record of a quantity taken from a batch.
type UsageEvent struct {
	ID        id.ID          `db:"id" json:"id"`
	BatchID   id.ID          `db:"batch_id" json:"batchId"`
	TakenBy   string         `db:"taken_by" json:"takenBy"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	Date      time.Time      `db:"used_at" json:"date"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
}

// ConsumeRequest asks for a FIFO withdrawal of a material.
type ConsumeRequest struct {
	MaterialCode string
	Quantity     types.Quantity
	TakenBy      string
	// Date defaults to now; callers may backdate.
	Date time.Time
}

// Allocation is the part of a consumption served by one batch.
type Allocation struct {
	BatchID        id.ID          `json:"batchId"`
	DeliveredDate  time.Time      `json:"deliveredDate"`
	Quantity       types.Quantity `json:"quantity"`
	RemainingAfter types.Quantity `json:"remainingAfter"`
}

// ConsumptionResult describes a successful consumption.
type ConsumptionResult struct {
	MaterialCode string         `json:"materialCode"`
	Requested    types.Quantity `json:"requested"`
	TakenBy      string         `json:"takenBy"`
	Date         time.Time      `json:"date"`
	Allocations  []Allocation   `json:"allocations"`
}

// AddBatchRequest records a delivery.
type AddBatchRequest struct {
	ProjectID    id.ID
	MaterialCode string
	Name         string
	Quantity     types.Quantity
	Amount       types.Money
	AddedBy      string
	Date         time.Time
}

// UpdateBatchRequest edits the mutable descriptive fields of a batch.
// Nil fields are left unchanged.
type UpdateBatchRequest struct {
	Name       *string
	UnitAmount *types.Money
	AddedBy    *string
	Status     *Status
	Version    int
}

// ListFilter narrows batch listings.
type ListFilter struct {
	domain.ListFilter

	MaterialCode string
	ProjectID    *id.ID
	Status       Status
	OnlyInStock  bool
}

// Summary is the per-material rollup of all live batches.
type Summary struct {
	MaterialCode string         `db:"material_code" json:"materialCode"`
	Name         string         `db:"name" json:"name"`
	Batches      int            `db:"batches" json:"batches"`
	Delivered    types.Quantity `db:"delivered" json:"delivered"`
	Available    types.Quantity `db:"available" json:"available"`
	Consumed     types.Quantity `db:"consumed" json:"consumed"`
}

// SummaryFilter narrows Summaries to one project.
type SummaryFilter struct {
	ProjectID *id.ID
}
