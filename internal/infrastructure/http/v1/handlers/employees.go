package handlers

import (
	"context"

	"sitetrack/internal/domain"
	"sitetrack/internal/domain/employees"
	"sitetrack/internal/infrastructure/http/v1/dto"
)

// EmployeeHandler serves /employees.
type EmployeeHandler = CatalogHandler[*employees.Employee, dto.CreateEmployeeRequest, dto.UpdateEmployeeRequest, dto.EmployeeListQuery]

// NewEmployeeHandler creates an employee handler.
func NewEmployeeHandler(base *BaseHandler, service *employees.Service) *EmployeeHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*employees.Employee, dto.CreateEmployeeRequest, dto.UpdateEmployeeRequest, dto.EmployeeListQuery]{
		Service: service,
		List: func(ctx context.Context, q dto.EmployeeListQuery) (domain.ListResult[*employees.Employee], error) {
			filter, err := q.ToFilter()
			if err != nil {
				return domain.ListResult[*employees.Employee]{}, err
			}
			return service.List(ctx, filter)
		},
		MapCreate: func(req *dto.CreateEmployeeRequest) (*employees.Employee, error) {
			return req.ToEntity()
		},
		ApplyUpdate: func(req *dto.UpdateEmployeeRequest, e *employees.Employee) error {
			return req.ApplyTo(e)
		},
	})
}
