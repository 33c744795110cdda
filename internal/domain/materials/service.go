package materials

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"sitetrack/internal/core/apperror"
	appctx "sitetrack/internal/core/context"
	"sitetrack/internal/core/id"
	"sitetrack/internal/core/tx"
	"sitetrack/internal/core/types"
	"sitetrack/internal/domain"
	"sitetrack/pkg/logger"
)

var tracer = otel.Tracer("sitetrack/materials")

// Consumption outcomes reported to the Observer.
const (
	OutcomeOK           = "ok"
	OutcomeInsufficient = "insufficient_stock"
	OutcomeNotFound     = "not_found"
	OutcomeError        = "error"
)

// ServiceConfig holds materials service configuration.
type ServiceConfig struct {
	// Eligibility filters batches before FIFO planning.
	Eligibility Eligibility
	// Location is the time zone of month boundaries in reports.
	Location *time.Location
}

// DefaultServiceConfig returns the default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Eligibility: SkipOutOfStock{},
		Location:    time.Local,
	}
}

// Service provides the material ledger operations.
type Service struct {
	repo      Repository
	projects  ProjectLookup
	txManager tx.Manager
	config    ServiceConfig
	auditor   Auditor
	observer  Observer
	events    EventPublisher
	now       func() time.Time
}

// NewService creates a new materials service.
func NewService(repo Repository, projects ProjectLookup, txManager tx.Manager, config ServiceConfig) *Service {
	if config.Eligibility == nil {
		config.Eligibility = SkipOutOfStock{}
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	return &Service{
		repo:      repo,
		projects:  projects,
		txManager: txManager,
		config:    config,
		now:       time.Now,
	}
}

// SetAuditor enables audit records for overrides and deletes.
func (s *Service) SetAuditor(a Auditor) { s.auditor = a }

// SetObserver enables consumption metrics.
func (s *Service) SetObserver(o Observer) { s.observer = o }

// SetEventPublisher enables ledger events.
func (s *Service) SetEventPublisher(p EventPublisher) { s.events = p }

func (s *Service) publish(ctx context.Context, aggregateType, aggregateID, eventType string, payload any) error {
	if s.events == nil {
		return nil
	}
	if err := s.events.Publish(ctx, aggregateType, aggregateID, eventType, payload); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// AddBatch records an inbound delivery.
func (s *Service) AddBatch(ctx context.Context, req AddBatchRequest) (*Batch, error) {
	if req.Date.IsZero() {
		req.Date = s.now()
	}
	if strings.TrimSpace(req.AddedBy) == "" {
		req.AddedBy = appctx.DisplayName(ctx)
	}

	b := NewBatch(req.ProjectID, req.MaterialCode, req.Name, req.Quantity, req.Amount, req.Date, req.AddedBy)
	if err := b.Validate(ctx); err != nil {
		return nil, err
	}

	exists, err := s.projects.Exists(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("check project: %w", err)
	}
	if !exists {
		return nil, apperror.NewNotFound("project", req.ProjectID.String())
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, b); err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		return s.publish(ctx, AuditEntityBatch, b.ID.String(), EventBatchAdded, b)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "material batch added",
		"batch_id", b.ID,
		"material_code", b.MaterialCode,
		"quantity", b.DeliveredQuantity.String(),
		"project_id", b.ProjectID,
	)

	return b, nil
}

// Consume withdraws req.Quantity of a material, oldest deliveries first.
// The whole withdrawal is one transaction: either every touched batch is
// updated and every usage event appended, or nothing changes.
func (s *Service) Consume(ctx context.Context, req ConsumeRequest) (*ConsumptionResult, error) {
	started := time.Now()

	req.MaterialCode = NormalizeCode(req.MaterialCode)
	req.TakenBy = strings.TrimSpace(req.TakenBy)
	if req.TakenBy == "" {
		req.TakenBy = appctx.DisplayName(ctx)
	}
	if req.Date.IsZero() {
		req.Date = s.now()
	}

	if err := validateConsume(req); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "materials.consume")
	span.SetAttributes(
		attribute.String("material.code", req.MaterialCode),
		attribute.String("material.quantity", req.Quantity.String()),
	)
	defer span.End()

	var result *ConsumptionResult
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.repo.LockAvailableByCode(ctx, req.MaterialCode)
		if err != nil {
			return fmt.Errorf("lock batches: %w", err)
		}

		eligible, err := filterEligible(s.config.Eligibility, locked, s.now())
		if err != nil {
			return apperror.NewInternal(err)
		}

		allocations, err := PlanConsumption(req.MaterialCode, eligible, req.Quantity)
		if err != nil {
			return err
		}

		byID := make(map[id.ID]*Batch, len(eligible))
		for _, b := range eligible {
			byID[b.ID] = b
		}

		touched := make([]*Batch, 0, len(allocations))
		events := make([]UsageEvent, 0, len(allocations))
		for _, a := range allocations {
			b := byID[a.BatchID]
			events = append(events, ApplyAllocation(b, a, req.TakenBy, req.Date))
			touched = append(touched, b)
		}

		if err := s.repo.UpdateRemaining(ctx, touched); err != nil {
			return fmt.Errorf("update remaining: %w", err)
		}
		if err := s.repo.AppendUsageEvents(ctx, events); err != nil {
			return fmt.Errorf("append usage events: %w", err)
		}

		result = &ConsumptionResult{
			MaterialCode: req.MaterialCode,
			Requested:    req.Quantity,
			TakenBy:      req.TakenBy,
			Date:         req.Date,
			Allocations:  allocations,
		}
		return s.publish(ctx, AuditEntityCode, req.MaterialCode, EventConsumed, result)
	})

	s.observe(req, result, err, time.Since(started))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "material consumed",
		"material_code", req.MaterialCode,
		"quantity", req.Quantity.String(),
		"taken_by", req.TakenBy,
		"batches", len(result.Allocations),
	)

	return result, nil
}

func validateConsume(req ConsumeRequest) error {
	if req.MaterialCode == "" {
		return apperror.NewValidation("material code is required").WithDetail("field", "materialCode")
	}
	if !req.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}
	if req.TakenBy == "" {
		return apperror.NewValidation("takenBy is required").WithDetail("field", "takenBy")
	}
	return nil
}

func (s *Service) observe(req ConsumeRequest, result *ConsumptionResult, err error, elapsed time.Duration) {
	if s.observer == nil {
		return
	}
	outcome := OutcomeOK
	batches := 0
	switch {
	case err == nil:
		batches = len(result.Allocations)
	case apperror.HasCode(err, apperror.CodeInsufficientStock):
		outcome = OutcomeInsufficient
	case apperror.IsNotFound(err):
		outcome = OutcomeNotFound
	default:
		outcome = OutcomeError
	}
	quantity := 0.0
	if err == nil {
		quantity = req.Quantity.Float64()
	}
	s.observer.ObserveConsumption(req.MaterialCode, outcome, quantity, batches, elapsed)
}

// Get returns a batch with its usage history.
func (s *Service) Get(ctx context.Context, batchID id.ID) (*Batch, error) {
	return s.repo.GetByID(ctx, batchID)
}

// List returns live batches filtered by code, project or status.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[Batch], error) {
	if err := filter.Normalize(); err != nil {
		return domain.ListResult[Batch]{}, err
	}
	filter.MaterialCode = NormalizeCode(filter.MaterialCode)
	if filter.Status != "" && !filter.Status.Valid() {
		return domain.ListResult[Batch]{}, apperror.NewValidation("unknown status").WithDetail("status", string(filter.Status))
	}
	return s.repo.List(ctx, filter)
}

// UpdateBatch edits descriptive fields and status of one batch.
func (s *Service) UpdateBatch(ctx context.Context, batchID id.ID, req UpdateBatchRequest) (*Batch, error) {
	var updated *Batch
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetByIDForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if req.Version != 0 && req.Version != b.Version {
			return apperror.NewConcurrentModification(AuditEntityBatch, batchID.String())
		}

		before := batchSnapshot(b)

		if req.Name != nil {
			b.Name = strings.TrimSpace(*req.Name)
		}
		if req.UnitAmount != nil {
			b.UnitAmount = *req.UnitAmount
		}
		if req.AddedBy != nil {
			b.AddedBy = strings.TrimSpace(*req.AddedBy)
		}
		if req.Status != nil {
			if !req.Status.Valid() {
				return apperror.NewValidation("unknown status").WithDetail("status", string(*req.Status))
			}
			b.SetStatus(*req.Status)
		}
		b.UpdatedAt = s.now().UTC()

		if err := b.Validate(ctx); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}

		changes := map[string]any{
			"before": before,
			"after":  batchSnapshot(b),
		}
		if err := s.audit(ctx, AuditEntityBatch, b.ID.String(), AuditUpdate, changes); err != nil {
			return err
		}

		updated = b
		return s.publish(ctx, AuditEntityBatch, b.ID.String(), EventBatchUpdated, changes)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "material batch updated", "batch_id", batchID, "version", updated.Version)
	return updated, nil
}

func batchSnapshot(b *Batch) map[string]any {
	return map[string]any{
		"name":       b.Name,
		"unitAmount": b.UnitAmount.String(),
		"addedBy":    b.AddedBy,
		"status":     string(b.Status),
		"remaining":  b.RemainingQuantity.String(),
	}
}

// BulkUpdateStatus sets status for every live batch of a material code.
// Setting out_of_stock also writes off the remaining quantity.
func (s *Service) BulkUpdateStatus(ctx context.Context, code string, status Status) (int64, error) {
	code = NormalizeCode(code)
	if code == "" {
		return 0, apperror.NewValidation("material code is required").WithDetail("field", "materialCode")
	}
	if !status.Valid() {
		return 0, apperror.NewValidation("unknown status").WithDetail("status", string(status))
	}

	var affected int64
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		batches, err := s.repo.LockByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("lock batches: %w", err)
		}
		if len(batches) == 0 {
			return apperror.NewNotFound("material", code)
		}

		zero := status == StatusOutOfStock
		affected, err = s.repo.UpdateStatusByCode(ctx, code, status, zero)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		prior := make([]map[string]any, 0, len(batches))
		for _, b := range batches {
			prior = append(prior, map[string]any{
				"id":        b.ID.String(),
				"status":    string(b.Status),
				"remaining": b.RemainingQuantity.String(),
			})
		}
		changes := map[string]any{
			"status":        string(status),
			"zeroRemaining": zero,
			"batches":       prior,
		}
		if err := s.audit(ctx, AuditEntityCode, code, AuditStatusOverride, changes); err != nil {
			return err
		}
		return s.publish(ctx, AuditEntityCode, code, EventStatusChanged, changes)
	})
	if err != nil {
		return 0, err
	}

	logger.Info(ctx, "material status updated",
		"material_code", code,
		"status", status,
		"affected", affected,
	)
	return affected, nil
}

// DeleteByID tombstones a batch. Only empty batches can be deleted.
func (s *Service) DeleteByID(ctx context.Context, batchID id.ID) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetByIDForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		return s.tombstone(ctx, AuditEntityBatch, batchID.String(), []*Batch{b})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "material batch deleted", "batch_id", batchID)
	return nil
}

// DeleteByCode tombstones every live batch of a material code. Fails without
// changes if any of them still holds stock.
func (s *Service) DeleteByCode(ctx context.Context, code string) (int64, error) {
	code = NormalizeCode(code)
	if code == "" {
		return 0, apperror.NewValidation("material code is required").WithDetail("field", "materialCode")
	}

	var deleted int64
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		batches, err := s.repo.LockByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("lock batches: %w", err)
		}
		if len(batches) == 0 {
			return apperror.NewNotFound("material", code)
		}
		deleted = int64(len(batches))
		return s.tombstone(ctx, AuditEntityCode, code, batches)
	})
	if err != nil {
		return 0, err
	}

	logger.Info(ctx, "material batches deleted", "material_code", code, "count", deleted)
	return deleted, nil
}

func (s *Service) tombstone(ctx context.Context, entityType, entityID string, batches []*Batch) error {
	nonEmpty := make(map[string]string)
	ids := make([]id.ID, 0, len(batches))
	for _, b := range batches {
		if b.RemainingQuantity.IsPositive() {
			nonEmpty[b.ID.String()] = b.RemainingQuantity.String()
		}
		ids = append(ids, b.ID)
	}
	if len(nonEmpty) > 0 {
		return apperror.NewBatchNotEmpty(nonEmpty)
	}

	if _, err := s.repo.SoftDelete(ctx, ids, s.now().UTC()); err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}

	idStrings := make([]string, len(ids))
	for i, v := range ids {
		idStrings[i] = v.String()
	}
	changes := map[string]any{"batches": idStrings}
	if err := s.audit(ctx, entityType, entityID, AuditDelete, changes); err != nil {
		return err
	}
	return s.publish(ctx, entityType, entityID, EventDeleted, changes)
}

// audit records an entry in the caller's transaction. A failed record
// fails the whole change.
func (s *Service) audit(ctx context.Context, entityType, entityID, action string, changes map[string]any) error {
	if s.auditor == nil {
		return nil
	}
	if err := s.auditor.Record(ctx, entityType, entityID, action, changes); err != nil {
		logger.Warn(ctx, "audit record failed",
			"entity_type", entityType,
			"entity_id", entityID,
			"action", action,
			"error", err,
		)
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

// TotalAvailable is the aggregate remaining quantity of a material.
func (s *Service) TotalAvailable(ctx context.Context, code string) (types.Quantity, error) {
	code = NormalizeCode(code)
	if code == "" {
		return 0, apperror.NewValidation("material code is required").WithDetail("field", "materialCode")
	}
	return s.repo.SumRemaining(ctx, code)
}

// TotalConsumed is the quantity ever consumed of a material.
func (s *Service) TotalConsumed(ctx context.Context, code string) (types.Quantity, error) {
	code = NormalizeCode(code)
	if code == "" {
		return 0, apperror.NewValidation("material code is required").WithDetail("field", "materialCode")
	}
	return s.repo.SumConsumed(ctx, code)
}

// Summaries returns the per-material rollup.
func (s *Service) Summaries(ctx context.Context, filter SummaryFilter) ([]Summary, error) {
	return s.repo.Summaries(ctx, filter)
}

// MonthlyReport builds the material report of a project for a month.
func (s *Service) MonthlyReport(ctx context.Context, projectID id.ID, year, month int) (*MonthlyReport, error) {
	if err := domain.ValidatePeriod(year, month); err != nil {
		return nil, err
	}

	exists, err := s.projects.Exists(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("check project: %w", err)
	}
	if !exists {
		return nil, apperror.NewNotFound("project", projectID.String())
	}

	batches, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project batches: %w", err)
	}

	return BuildMonthlyReport(projectID, batches, year, time.Month(month), s.config.Location), nil
}
