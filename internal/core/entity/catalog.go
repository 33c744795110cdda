package entity

import (
	"context"
	"strings"

	"sitetrack/internal/core/apperror"
	"sitetrack/internal/core/id"
)

// MaxCodeLength bounds human-readable codes.
const MaxCodeLength = 50

// Catalog is the base type for reference records identified by a unique
// human-readable code (projects, employees).
type Catalog struct {
	BaseEntity

	// Code is a human-readable identifier, unique per table
	Code string `db:"code" json:"code"`

	// Name is the display name
	Name string `db:"name" json:"name"`
}

// NewCatalog creates a new Catalog with generated ID.
func NewCatalog(code, name string) Catalog {
	return Catalog{
		BaseEntity: NewBaseEntity(),
		Code:       strings.TrimSpace(code),
		Name:       strings.TrimSpace(name),
	}
}

// Validate implements Validatable interface.
func (c *Catalog) Validate(ctx context.Context) error {
	if c.Code == "" {
		return apperror.NewValidation("code is required").
			WithDetail("field", "code")
	}
	if len(c.Code) > MaxCodeLength {
		return apperror.NewValidation("code is too long").
			WithDetail("field", "code").
			WithDetail("max", MaxCodeLength)
	}
	if c.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	return nil
}

func (c *Catalog) GetID() id.ID { return c.ID }

func (c *Catalog) GetCode() string { return c.Code }
