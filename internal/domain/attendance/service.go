package attendance

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sitetrack/internal/core/apperror"
	appctx "sitetrack/internal/core/context"
	"sitetrack/internal/core/id"
	"sitetrack/internal/domain"
	"sitetrack/pkg/logger"
)

var half = decimal.NewFromFloat(0.5)

// Service provides attendance operations.
type Service struct {
	repo      Repository
	employees EmployeeDirectory
	projects  ProjectLookup
	location  *time.Location
	now       func() time.Time
}

// NewService creates a new attendance service. loc decides which calendar
// day a timestamp belongs to.
func NewService(repo Repository, employees EmployeeDirectory, projects ProjectLookup, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:      repo,
		employees: employees,
		projects:  projects,
		location:  loc,
		now:       time.Now,
	}
}

// Mark records the attendance of an employee for a day, replacing any
// earlier mark for the same day.
func (s *Service) Mark(ctx context.Context, req MarkRequest) (*Record, error) {
	if !req.Status.Valid() {
		return nil, apperror.NewValidation("invalid attendance status").
			WithDetail("field", "status").
			WithDetail("value", string(req.Status))
	}
	if id.IsNil(req.EmployeeID) {
		return nil, apperror.NewValidation("employee is required").WithDetail("field", "employeeId")
	}
	if id.IsNil(req.ProjectID) {
		return nil, apperror.NewValidation("project is required").WithDetail("field", "projectId")
	}
	if req.CheckIn != nil && req.CheckOut != nil && !req.CheckOut.After(*req.CheckIn) {
		return nil, apperror.NewValidation("check-out must be after check-in").WithDetail("field", "checkOut")
	}
	if req.WorkDate.IsZero() {
		req.WorkDate = s.now()
	}
	if strings.TrimSpace(req.RecordedBy) == "" {
		req.RecordedBy = appctx.DisplayName(ctx)
	}

	emp, err := s.employees.GetByID(ctx, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !emp.IsActive || emp.DeletionMark {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "employee is not active").
			WithDetail("employeeId", req.EmployeeID.String())
	}

	exists, err := s.projects.Exists(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("check project: %w", err)
	}
	if !exists {
		return nil, apperror.NewNotFound("project", req.ProjectID.String())
	}

	now := s.now().UTC()
	rec := &Record{
		ID:         id.New(),
		EmployeeID: req.EmployeeID,
		ProjectID:  req.ProjectID,
		WorkDate:   DateOf(req.WorkDate, s.location),
		Status:     req.Status,
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		Note:       strings.TrimSpace(req.Note),
		RecordedBy: strings.TrimSpace(req.RecordedBy),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("save attendance: %w", err)
	}

	logger.Info(ctx, "attendance marked",
		"employee_id", rec.EmployeeID,
		"project_id", rec.ProjectID,
		"work_date", rec.WorkDate.Format(time.DateOnly),
		"status", rec.Status,
	)
	return rec, nil
}

// List returns attendance records matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[Record], error) {
	if err := filter.Normalize(); err != nil {
		return domain.ListResult[Record]{}, err
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return domain.ListResult[Record]{}, apperror.NewValidation("date range is inverted").WithDetail("field", "to")
	}
	return s.repo.List(ctx, filter)
}

// MonthlySummary counts attendance per employee for a project month and
// computes payable wages: worked days = present + half of half-days.
func (s *Service) MonthlySummary(ctx context.Context, projectID id.ID, year, month int) (*MonthlySummary, error) {
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

	from, to := domain.MonthDays(year, time.Month(month))
	records, err := s.repo.ListRange(ctx, projectID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}

	lines := make(map[id.ID]*EmployeeSummary)
	for _, r := range records {
		line, ok := lines[r.EmployeeID]
		if !ok {
			line = &EmployeeSummary{EmployeeID: r.EmployeeID}
			lines[r.EmployeeID] = line
		}
		switch r.Status {
		case StatusPresent:
			line.Present++
		case StatusAbsent:
			line.Absent++
		case StatusHalfDay:
			line.HalfDay++
		case StatusLeave:
			line.Leave++
		}
	}

	summary := &MonthlySummary{
		ProjectID: projectID,
		Year:      year,
		Month:     time.Month(month),
		Lines:     make([]EmployeeSummary, 0, len(lines)),
	}

	for employeeID, line := range lines {
		emp, err := s.employees.GetByID(ctx, employeeID)
		if err != nil && !apperror.IsNotFound(err) {
			return nil, fmt.Errorf("load employee %s: %w", employeeID, err)
		}
		if emp != nil {
			line.Code = emp.Code
			line.Name = emp.Name
			line.DailyWage = emp.DailyWage
		}
		line.WorkedDays = decimal.NewFromInt(int64(line.Present)).
			Add(decimal.NewFromInt(int64(line.HalfDay)).Mul(half))
		line.Payable = line.WorkedDays.Mul(line.DailyWage)
		summary.TotalPayable = summary.TotalPayable.Add(line.Payable)
		summary.Lines = append(summary.Lines, *line)
	}

	slices.SortFunc(summary.Lines, func(a, b EmployeeSummary) int {
		if c := strings.Compare(a.Code, b.Code); c != 0 {
			return c
		}
		return id.Compare(a.EmployeeID, b.EmployeeID)
	})

	return summary, nil
}
