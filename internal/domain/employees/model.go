// Package employees provides site workers and their project assignment.
package employees

import (
	"context"
	"regexp"
	"strings"

	"sitetrack/internal/core/apperror"
	"sitetrack/internal/core/entity"
	"sitetrack/internal/core/id"
	"sitetrack/internal/core/types"
	"sitetrack/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Employee is a worker who can be assigned to a project.
// Name holds the full name.
type Employee struct {
	entity.Catalog

	Phone    *string `db:"phone" json:"phone,omitempty"`
	Email    *string `db:"email" json:"email,omitempty"`
	Position string  `db:"position" json:"position"`

	// DailyWage is used by the attendance payroll summary
	DailyWage types.Money `db:"daily_wage" json:"dailyWage"`

	// ProjectID is the current assignment (nullable)
	ProjectID *id.ID `db:"project_id" json:"projectId,omitempty"`

	IsActive bool `db:"is_active" json:"isActive"`
}

// NewEmployee creates an active employee.
func NewEmployee(code, fullName string) *Employee {
	return &Employee{
		Catalog:  entity.NewCatalog(code, fullName),
		IsActive: true,
	}
}

// Validate implements entity.Validatable interface.
func (e *Employee) Validate(ctx context.Context) error {
	if err := e.Catalog.Validate(ctx); err != nil {
		return err
	}

	if e.Email != nil && *e.Email != "" && !emailPattern.MatchString(*e.Email) {
		return apperror.NewValidation("invalid email").
			WithDetail("field", "email").
			WithDetail("value", *e.Email)
	}

	if e.DailyWage.IsNegative() {
		return apperror.NewValidation("daily wage must not be negative").
			WithDetail("field", "dailyWage")
	}

	return nil
}

// ListFilter narrows employee listings.
type ListFilter struct {
	domain.ListFilter

	ProjectID *id.ID
	IsActive  *bool
}

// Normalize trims text fields and lowercases the email.
func (e *Employee) Normalize() {
	e.Code = strings.TrimSpace(e.Code)
	e.Name = strings.TrimSpace(e.Name)
	e.Position = strings.TrimSpace(e.Position)
	if e.Email != nil {
		v := strings.ToLower(strings.TrimSpace(*e.Email))
		e.Email = &v
	}
}
