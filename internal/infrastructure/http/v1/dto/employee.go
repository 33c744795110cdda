package dto

import (
	"sitetrack/internal/core/types"
	"sitetrack/internal/domain/employees"
)

// CreateEmployeeRequest is the request body for hiring an employee.
type CreateEmployeeRequest struct {
	Code      string      `json:"code" binding:"omitempty,max=50"`
	Name      string      `json:"name" binding:"required,max=255"`
	Phone     *string     `json:"phone"`
	Email     *string     `json:"email"`
	Position  string      `json:"position"`
	DailyWage types.Money `json:"dailyWage"`
	ProjectID string      `json:"projectId"`
	IsActive  *bool       `json:"isActive"`
}

// ToEntity converts DTO to a domain entity.
func (r *CreateEmployeeRequest) ToEntity() (*employees.Employee, error) {
	e := employees.NewEmployee(r.Code, r.Name)
	if err := applyEmployeeFields(e, r); err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateEmployeeRequest replaces the editable fields of an employee.
type UpdateEmployeeRequest struct {
	CreateEmployeeRequest
	Version int `json:"version" binding:"required,min=1"`
}

// ApplyTo copies the request onto an existing employee.
func (r *UpdateEmployeeRequest) ApplyTo(e *employees.Employee) error {
	if r.Code != "" {
		e.Code = r.Code
	}
	e.Name = r.Name
	e.Version = r.Version
	return applyEmployeeFields(e, &r.CreateEmployeeRequest)
}

func applyEmployeeFields(e *employees.Employee, r *CreateEmployeeRequest) error {
	projectID, err := ParseOptionalID("projectId", r.ProjectID)
	if err != nil {
		return err
	}
	e.Phone = r.Phone
	e.Email = r.Email
	e.Position = r.Position
	e.DailyWage = r.DailyWage
	e.ProjectID = projectID
	if r.IsActive != nil {
		e.IsActive = *r.IsActive
	}
	return nil
}

// EmployeeListQuery filters GET /employees.
type EmployeeListQuery struct {
	ListQuery
	ProjectID string `form:"projectId"`
	IsActive  *bool  `form:"isActive"`
}

// ToFilter converts to the domain filter.
func (q EmployeeListQuery) ToFilter() (employees.ListFilter, error) {
	projectID, err := ParseOptionalID("projectId", q.ProjectID)
	if err != nil {
		return employees.ListFilter{}, err
	}
	return employees.ListFilter{
		ListFilter: q.ListQuery.ToFilter(),
		ProjectID:  projectID,
		IsActive:   q.IsActive,
	}, nil
}
