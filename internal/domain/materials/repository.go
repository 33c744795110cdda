package materials

import (
	"context"
	"time"

	"sitetrack/internal/core/id"
	"sitetrack/internal/core/types"
	"sitetrack/internal/domain"
)

// Repository persists batches and their usage events.
// Methods suffixed ForUpdate must run inside a transaction and lock the rows.
type Repository interface {
	// Create inserts a new batch.
	Create(ctx context.Context, b *Batch) error

	// GetByID returns a live batch with its usage events.
	GetByID(ctx context.Context, batchID id.ID) (*Batch, error)

	// GetByIDForUpdate locks a live batch (usage events not loaded).
	GetByIDForUpdate(ctx context.Context, batchID id.ID) (*Batch, error)

	// List returns live batches matching the filter (usage events not loaded).
	List(ctx context.Context, filter ListFilter) (domain.ListResult[Batch], error)

	// ListByProject returns every batch of a project, tombstoned ones
	// included, with usage events. Used by reports.
	ListByProject(ctx context.Context, projectID id.ID) ([]*Batch, error)

	// LockAvailableByCode locks live batches of a code with remaining > 0
	// in FIFO order.
	LockAvailableByCode(ctx context.Context, code string) ([]*Batch, error)

	// LockByCode locks all live batches of a code.
	LockByCode(ctx context.Context, code string) ([]*Batch, error)

	// UpdateRemaining writes new remaining quantities, checking each version.
	UpdateRemaining(ctx context.Context, batches []*Batch) error

	// AppendUsageEvents inserts usage events.
	AppendUsageEvents(ctx context.Context, events []UsageEvent) error

	// Update writes descriptive fields, status and remaining with an
	// optimistic version check.
	Update(ctx context.Context, b *Batch) error

	// UpdateStatusByCode sets status on all live batches of a code,
	// zeroing remaining when zeroRemaining is set.
	UpdateStatusByCode(ctx context.Context, code string, status Status, zeroRemaining bool) (int64, error)

	// SoftDelete tombstones batches.
	SoftDelete(ctx context.Context, ids []id.ID, at time.Time) (int64, error)

	// SumRemaining sums remaining over live batches of a code.
	SumRemaining(ctx context.Context, code string) (types.Quantity, error)

	// SumConsumed sums usage over all batches of a code.
	SumConsumed(ctx context.Context, code string) (types.Quantity, error)

	// Summaries groups live batches by material code.
	Summaries(ctx context.Context, filter SummaryFilter) ([]Summary, error)
}

// ProjectLookup checks that a project exists.
type ProjectLookup interface {
	Exists(ctx context.Context, projectID id.ID) (bool, error)
}

// Audited ledger operations.
const (
	AuditEntityBatch    = "material_batch"
	AuditEntityCode     = "material_code"
	AuditStatusOverride = "status_override"
	AuditUpdate         = "update"
	AuditDelete         = "delete"
)

// Auditor records administrative changes that bypass the consumption path.
type Auditor interface {
	Record(ctx context.Context, entityType, entityID, action string, changes map[string]any) error
}

// Ledger event types.
const (
	EventBatchAdded    = "material.batch_added"
	EventBatchUpdated  = "material.batch_updated"
	EventConsumed      = "material.consumed"
	EventStatusChanged = "material.status_changed"
	EventDeleted       = "material.deleted"
)

// EventPublisher stores ledger events. Publish runs inside the ledger
// transaction; an error rolls the change back.
type EventPublisher interface {
	Publish(ctx context.Context, aggregateType, aggregateID, eventType string, payload any) error
}

// Observer receives consumption outcomes (metrics).
type Observer interface {
	ObserveConsumption(code string, outcome string, quantity float64, batches int, elapsed time.Duration)
}
