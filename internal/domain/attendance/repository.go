package attendance

import (
	"context"
	"time"

	"sitetrack/internal/core/id"
	"sitetrack/internal/domain"
	"sitetrack/internal/domain/employees"
)

// Repository persists attendance records.
type Repository interface {
	// Upsert inserts or replaces the record for (employee, work date) and
	// writes the stored row back into r.
	Upsert(ctx context.Context, r *Record) error

	// List retrieves records with filtering and pagination.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[Record], error)

	// ListRange returns all records of a project between two dates inclusive.
	ListRange(ctx context.Context, projectID id.ID, from, to time.Time) ([]Record, error)
}

// EmployeeDirectory resolves employees for validation and wages.
type EmployeeDirectory interface {
	GetByID(ctx context.Context, employeeID id.ID) (*employees.Employee, error)
}

// ProjectLookup checks that a project exists.
type ProjectLookup interface {
	Exists(ctx context.Context, projectID id.ID) (bool, error)
}
