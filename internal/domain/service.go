package domain

import (
	"context"
	"fmt"

	"sitetrack/internal/core/apperror"
	"sitetrack/internal/core/entity"
	"sitetrack/internal/core/id"
	"sitetrack/internal/core/tx"
	"sitetrack/pkg/logger"
)

// CatalogEntity is a validatable record addressed by id and code.
type CatalogEntity interface {
	entity.Validatable
	GetID() id.ID
	GetCode() string
}

// CatalogService provides create/read/update/soft-delete for catalog
// entities. Entity packages embed it and register hooks for their own rules.
type CatalogService[T CatalogEntity] struct {
	repo      CatalogRepository[T]
	txManager tx.Manager
	hooks     *HookRegistry[T]

	// entityName for error messages and logs
	entityName string
}

// CatalogServiceConfig configures the catalog service.
type CatalogServiceConfig[T CatalogEntity] struct {
	Repo       CatalogRepository[T]
	TxManager  tx.Manager
	EntityName string
}

// NewCatalogService creates a new catalog service.
func NewCatalogService[T CatalogEntity](cfg CatalogServiceConfig[T]) *CatalogService[T] {
	return &CatalogService[T]{
		repo:       cfg.Repo,
		txManager:  cfg.TxManager,
		hooks:      NewHookRegistry[T](),
		entityName: cfg.EntityName,
	}
}

// Hooks returns the hook registry for external registration.
func (s *CatalogService[T]) Hooks() *HookRegistry[T] {
	return s.hooks
}

// validate normalizes input when the entity supports it, then checks invariants.
func (s *CatalogService[T]) validate(ctx context.Context, e T) error {
	if n, ok := any(e).(entity.Normalizable); ok {
		n.Normalize()
	}
	return s.normalizeValidationErr(e.Validate(ctx))
}

func (s *CatalogService[T]) normalizeValidationErr(err error) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewValidation(err.Error())
}

func (s *CatalogService[T]) normalizeGetErr(err error, idOrCode any) error {
	if err == nil {
		return nil
	}
	// Preserve existing AppError, but ensure not-found names this entity.
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound(s.entityName, idOrCode)
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewInternal(err).WithDetail("entity", s.entityName).WithDetail("id", idOrCode)
}

// Create validates and inserts a new entity. Codes must be unique.
func (s *CatalogService[T]) Create(ctx context.Context, e T) error {
	if err := s.validate(ctx, e); err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, BeforeCreate, e); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		taken, err := s.repo.ExistsByCode(ctx, e.GetCode())
		if err != nil {
			return fmt.Errorf("check %s code: %w", s.entityName, err)
		}
		if taken {
			return apperror.NewDuplicate(s.entityName, "code", e.GetCode())
		}
		if err := s.repo.Create(ctx, e); err != nil {
			return fmt.Errorf("create %s: %w", s.entityName, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// After-hooks run outside the transaction; the record already exists.
	if err := s.hooks.Run(ctx, AfterCreate, e); err != nil {
		logger.Warn(ctx, "after-create hook failed", "entity", s.entityName, "id", e.GetID(), "error", err)
	}

	logger.Info(ctx, s.entityName+" created", "id", e.GetID(), "code", e.GetCode())
	return nil
}

// GetByID retrieves entity by ID.
func (s *CatalogService[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	e, err := s.repo.GetByID(ctx, entityID)
	if err != nil {
		return e, s.normalizeGetErr(err, entityID.String())
	}
	return e, nil
}

// GetByCode retrieves entity by code.
func (s *CatalogService[T]) GetByCode(ctx context.Context, code string) (T, error) {
	e, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return e, s.normalizeGetErr(err, code)
	}
	return e, nil
}

// Update validates and saves an entity. The repository checks the version.
func (s *CatalogService[T]) Update(ctx context.Context, e T) error {
	if err := s.validate(ctx, e); err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, BeforeUpdate, e); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, e); err != nil {
			return fmt.Errorf("update %s: %w", s.entityName, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, AfterUpdate, e); err != nil {
		logger.Warn(ctx, "after-update hook failed", "entity", s.entityName, "id", e.GetID(), "error", err)
	}

	logger.Info(ctx, s.entityName+" updated", "id", e.GetID())
	return nil
}

// Delete sets the deletion mark.
func (s *CatalogService[T]) Delete(ctx context.Context, entityID id.ID) error {
	e, err := s.repo.GetByID(ctx, entityID)
	if err != nil {
		return s.normalizeGetErr(err, entityID.String())
	}

	if err := s.hooks.Run(ctx, BeforeDelete, e); err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.SetDeletionMark(ctx, entityID, true); err != nil {
			return fmt.Errorf("delete %s: %w", s.entityName, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, AfterDelete, e); err != nil {
		logger.Warn(ctx, "after-delete hook failed", "entity", s.entityName, "id", entityID, "error", err)
	}

	logger.Info(ctx, s.entityName+" deleted", "id", entityID)
	return nil
}

// Exists checks if a live entity exists.
func (s *CatalogService[T]) Exists(ctx context.Context, entityID id.ID) (bool, error) {
	return s.repo.Exists(ctx, entityID)
}
