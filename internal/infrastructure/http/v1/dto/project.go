package dto

import (
	"time"

	"sitetrack/internal/core/types"
	"sitetrack/internal/domain/projects"
)

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Code        string      `json:"code" binding:"omitempty,max=50"`
	Name        string      `json:"name" binding:"required,max=255"`
	Location    string      `json:"location"`
	Client      string      `json:"client"`
	Status      string      `json:"status" binding:"omitempty,oneof=planned active on_hold completed"`
	StartDate   string      `json:"startDate"`
	EndDate     string      `json:"endDate"`
	Budget      types.Money `json:"budget"`
	Description *string     `json:"description"`
}

// ToEntity converts DTO to a domain entity.
func (r *CreateProjectRequest) ToEntity(loc *time.Location) (*projects.Project, error) {
	p := projects.NewProject(r.Code, r.Name)
	if err := applyProjectFields(p, r, loc); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProjectRequest replaces the editable fields of a project.
type UpdateProjectRequest struct {
	CreateProjectRequest
	Version int `json:"version" binding:"required,min=1"`
}

// ApplyTo copies the request onto an existing project.
func (r *UpdateProjectRequest) ApplyTo(p *projects.Project, loc *time.Location) error {
	if r.Code != "" {
		p.Code = r.Code
	}
	p.Name = r.Name
	p.Version = r.Version
	return applyProjectFields(p, &r.CreateProjectRequest, loc)
}

func applyProjectFields(p *projects.Project, r *CreateProjectRequest, loc *time.Location) error {
	start, err := ParseDate("startDate", r.StartDate, loc)
	if err != nil {
		return err
	}
	end, err := ParseDate("endDate", r.EndDate, loc)
	if err != nil {
		return err
	}

	p.Location = r.Location
	p.Client = r.Client
	if r.Status != "" {
		p.Status = projects.Status(r.Status)
	}
	if !start.IsZero() {
		p.StartDate = start
	}
	p.EndDate = nil
	if !end.IsZero() {
		p.EndDate = &end
	}
	p.Budget = r.Budget
	p.Description = r.Description
	return nil
}

// ProjectListQuery filters GET /projects.
type ProjectListQuery struct {
	ListQuery
	Status string `form:"status" binding:"omitempty,oneof=planned active on_hold completed"`
}

// ToFilter converts to the domain filter.
func (q ProjectListQuery) ToFilter() projects.ListFilter {
	return projects.ListFilter{
		ListFilter: q.ListQuery.ToFilter(),
		Status:     projects.Status(q.Status),
	}
}
