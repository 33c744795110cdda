package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"sitetrack/internal/domain"
	"sitetrack/internal/domain/projects"
	"sitetrack/internal/infrastructure/storage/postgres"
)

const projectTable = "projects"

// ProjectRepo implements projects.Repository.
type ProjectRepo struct {
	*BaseCatalogRepo[*projects.Project]
}

var _ projects.Repository = (*ProjectRepo)(nil)

// NewProjectRepo creates a new project repository.
func NewProjectRepo(txManager *postgres.TxManager) *ProjectRepo {
	return &ProjectRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			projectTable,
			"project",
			postgres.ExtractDBColumns[projects.Project](),
			func() *projects.Project { return &projects.Project{} },
		),
	}
}

// List retrieves projects with filtering and pagination.
func (r *ProjectRepo) List(ctx context.Context, filter projects.ListFilter) (domain.ListResult[*projects.Project], error) {
	return r.list(ctx, filter.ListFilter, projectConditions(filter))
}

func projectConditions(filter projects.ListFilter) func(squirrel.SelectBuilder) squirrel.SelectBuilder {
	return func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
		if filter.Status != "" {
			q = q.Where(squirrel.Eq{"status": filter.Status})
		}
		return q
	}
}
