package projects

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sitetrack/internal/core/apperror"
	"sitetrack/internal/core/numerator"
	"sitetrack/internal/core/tx"
	"sitetrack/internal/domain"
)

// Service provides business logic for projects.
type Service struct {
	*domain.CatalogService[*Project]
	repo  Repository
	codes numerator.Generator
	now   func() time.Time
}

// NewService creates a new project service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Project]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "project",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		now:            time.Now,
	}

	base.Hooks().OnBeforeCreate(svc.prepareForCreate)
	base.Hooks().OnBeforeUpdate(svc.prepareForUpdate)
	base.Hooks().OnBeforeDelete(svc.checkDeletable)

	return svc
}

// SetCodeGenerator enables automatic codes (PRJ-2024-00001) for projects
// created without one.
func (s *Service) SetCodeGenerator(gen numerator.Generator) {
	s.codes = gen
}

// Create assigns a generated code when none is given and stores the project.
func (s *Service) Create(ctx context.Context, p *Project) error {
	if strings.TrimSpace(p.Code) == "" && s.codes != nil {
		code, err := s.codes.Next(ctx, numerator.DefaultConfig("PRJ"), s.now())
		if err != nil {
			return fmt.Errorf("generate project code: %w", err)
		}
		p.Code = code
	}
	return s.CatalogService.Create(ctx, p)
}

func (s *Service) prepareForCreate(ctx context.Context, p *Project) error {
	if p.StartDate.IsZero() {
		y, m, d := s.now().Date()
		p.StartDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return nil
}

func (s *Service) prepareForUpdate(ctx context.Context, p *Project) error {
	p.Touch()
	return nil
}

// checkDeletable rejects deleting an active project.
func (s *Service) checkDeletable(ctx context.Context, p *Project) error {
	if p.Status == StatusActive {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule,
			"active project must be put on hold or completed before deletion").
			WithDetail("id", p.ID.String())
	}
	return nil
}

// List returns projects matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Project], error) {
	if err := filter.Normalize(); err != nil {
		return domain.ListResult[*Project]{}, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return domain.ListResult[*Project]{}, apperror.NewValidation("invalid project status").
			WithDetail("value", string(filter.Status))
	}
	return s.repo.List(ctx, filter)
}
