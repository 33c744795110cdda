package employees

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

// Service provides business logic for employees.
type Service struct {
	*domain.CatalogService[*Employee]
	repo     Repository
	projects ProjectLookup
	codes    numerator.Generator
}

// employeeCodes is a single series that never resets: E-00001.
var employeeCodes = numerator.Config{Prefix: "E", PadWidth: 5, ResetPeriod: numerator.ResetNever}

// NewService creates a new employee service.
func NewService(repo Repository, projects ProjectLookup, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Employee]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "employee",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		projects:       projects,
	}

	base.Hooks().OnBeforeCreate(svc.prepare)
	base.Hooks().OnBeforeUpdate(svc.prepare)

	return svc
}

// SetCodeGenerator enables automatic codes for employees created without one.
func (s *Service) SetCodeGenerator(gen numerator.Generator) {
	s.codes = gen
}

// Create assigns a generated code when none is given and stores the employee.
func (s *Service) Create(ctx context.Context, e *Employee) error {
	if strings.TrimSpace(e.Code) == "" && s.codes != nil {
		code, err := s.codes.Next(ctx, employeeCodes, time.Now())
		if err != nil {
			return fmt.Errorf("generate employee code: %w", err)
		}
		e.Code = code
	}
	return s.CatalogService.Create(ctx, e)
}

// prepare checks the project assignment.
func (s *Service) prepare(ctx context.Context, e *Employee) error {
	if e.ProjectID == nil {
		return nil
	}
	ok, err := s.projects.Exists(ctx, *e.ProjectID)
	if err != nil {
		return fmt.Errorf("check project: %w", err)
	}
	if !ok {
		return apperror.NewNotFound("project", e.ProjectID.String())
	}
	return nil
}

// List returns employees matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Employee], error) {
	if err := filter.Normalize(); err != nil {
		return domain.ListResult[*Employee]{}, err
	}
	return s.repo.List(ctx, filter)
}
