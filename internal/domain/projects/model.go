// Package projects provides construction projects: the owners of material
// batches, attendance and employee assignments.
package projects

import (
	"context"
	"strings"
	"time"

	"sitetrack/internal/core/apperror"
	"sitetrack/internal/core/entity"
	"sitetrack/internal/core/types"
	"sitetrack/internal/domain"
)

// Status is the lifecycle stage of a project.
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusActive    Status = "active"
	StatusOnHold    Status = "on_hold"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusActive, StatusOnHold, StatusCompleted:
		return true
	}
	return false
}

// Project is a construction site.
type Project struct {
	entity.Catalog

	// Location is the site address
	Location string `db:"location" json:"location"`

	// Client is the customer the project is built for
	Client string `db:"client" json:"client"`

	Status Status `db:"status" json:"status"`

	StartDate time.Time  `db:"start_date" json:"startDate"`
	EndDate   *time.Time `db:"end_date" json:"endDate,omitempty"`

	Budget types.Money `db:"budget" json:"budget"`

	Description *string `db:"description" json:"description,omitempty"`
}

// NewProject creates a planned project.
func NewProject(code, name string) *Project {
	return &Project{
		Catalog: entity.NewCatalog(code, name),
		Status:  StatusPlanned,
	}
}

// Validate implements entity.Validatable interface.
func (p *Project) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !p.Status.Valid() {
		return apperror.NewValidation("invalid project status").
			WithDetail("field", "status").
			WithDetail("value", string(p.Status))
	}

	if p.EndDate != nil && !p.StartDate.IsZero() && p.EndDate.Before(p.StartDate) {
		return apperror.NewValidation("end date must not be before start date").
			WithDetail("field", "endDate")
	}

	if p.Budget.IsNegative() {
		return apperror.NewValidation("budget must not be negative").
			WithDetail("field", "budget")
	}

	return nil
}

// IsOpen reports whether work can still be recorded against the project.
func (p *Project) IsOpen() bool {
	return !p.DeletionMark && p.Status != StatusCompleted
}

// ListFilter narrows project listings.
type ListFilter struct {
	domain.ListFilter

	Status Status
}

// Normalize trims free-text fields copied from requests.
func (p *Project) Normalize() {
	p.Code = strings.TrimSpace(p.Code)
	p.Name = strings.TrimSpace(p.Name)
	p.Location = strings.TrimSpace(p.Location)
	p.Client = strings.TrimSpace(p.Client)
}
