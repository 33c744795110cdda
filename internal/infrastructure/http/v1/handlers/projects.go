package handlers

import (
	"context"
	"time"

	"sitetrack/internal/domain"
	"sitetrack/internal/domain/projects"
	"sitetrack/internal/infrastructure/http/v1/dto"
)

// ProjectHandler serves /projects.
type ProjectHandler = CatalogHandler[*projects.Project, dto.CreateProjectRequest, dto.UpdateProjectRequest, dto.ProjectListQuery]

// NewProjectHandler creates a project handler. loc interprets bare dates.
func NewProjectHandler(base *BaseHandler, service *projects.Service, loc *time.Location) *ProjectHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*projects.Project, dto.CreateProjectRequest, dto.UpdateProjectRequest, dto.ProjectListQuery]{
		Service: service,
		List: func(ctx context.Context, q dto.ProjectListQuery) (domain.ListResult[*projects.Project], error) {
			return service.List(ctx, q.ToFilter())
		},
		MapCreate: func(req *dto.CreateProjectRequest) (*projects.Project, error) {
			return req.ToEntity(loc)
		},
		ApplyUpdate: func(req *dto.UpdateProjectRequest, p *projects.Project) error {
			return req.ApplyTo(p, loc)
		},
	})
}
