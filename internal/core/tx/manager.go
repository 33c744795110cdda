// Package tx defines the transaction boundary used by domain services.
// The implementation lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager runs a unit of work atomically.
//
// RunInTransaction commits when fn returns nil and rolls back otherwise.
// Nested calls reuse the transaction already stored in ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transactions, used by
// projections that must see one consistent snapshot (reports, summaries).
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
