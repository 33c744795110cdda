package employees

import (
	"context"

	"sitetrack/internal/core/id"
	"sitetrack/internal/domain"
)

// Repository defines the interface for Employee persistence.
type Repository interface {
	domain.CatalogRepository[*Employee]

	// List retrieves employees with filtering and pagination.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Employee], error)
}

// ProjectLookup checks that an assigned project exists.
type ProjectLookup interface {
	Exists(ctx context.Context, projectID id.ID) (bool, error)
}
