package projects

import (
	"context"

	"sitetrack/internal/domain"
)

// Repository defines the interface for Project persistence.
type Repository interface {
	domain.CatalogRepository[*Project]

	// List retrieves projects with filtering and pagination.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Project], error)
}
