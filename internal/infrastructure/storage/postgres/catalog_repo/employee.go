package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"sitetrack/internal/domain"
	"sitetrack/internal/domain/employees"
	"sitetrack/internal/infrastructure/storage/postgres"
)

const employeeTable = "employees"

// EmployeeRepo implements employees.Repository.
type EmployeeRepo struct {
	*BaseCatalogRepo[*employees.Employee]
}

var _ employees.Repository = (*EmployeeRepo)(nil)

// NewEmployeeRepo creates a new employee repository.
func NewEmployeeRepo(txManager *postgres.TxManager) *EmployeeRepo {
	return &EmployeeRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			employeeTable,
			"employee",
			postgres.ExtractDBColumns[employees.Employee](),
			func() *employees.Employee { return &employees.Employee{} },
		),
	}
}

// List retrieves employees with filtering and pagination.
func (r *EmployeeRepo) List(ctx context.Context, filter employees.ListFilter) (domain.ListResult[*employees.Employee], error) {
	return r.list(ctx, filter.ListFilter, employeeConditions(filter))
}

func employeeConditions(filter employees.ListFilter) func(squirrel.SelectBuilder) squirrel.SelectBuilder {
	return func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
		if filter.ProjectID != nil {
			q = q.Where(squirrel.Eq{"project_id": *filter.ProjectID})
		}
		if filter.IsActive != nil {
			q = q.Where(squirrel.Eq{"is_active": *filter.IsActive})
		}
		return q
	}
}
