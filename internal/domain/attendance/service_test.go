package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitetrack/internal/core/apperror"
	appctx "sitetrack/internal/core/context"
	"sitetrack/internal/core/id"
	"sitetrack/internal/core/types"
	"sitetrack/internal/domain"
	"sitetrack/internal/domain/employees"
)

type dayKey struct {
	employee id.ID
	date     time.Time
}

type memoryRepo struct {
	records map[dayKey]Record
}

func (m *memoryRepo) Upsert(ctx context.Context, r *Record) error {
	key := dayKey{r.EmployeeID, r.WorkDate}
	if prev, ok := m.records[key]; ok {
		r.ID = prev.ID
		r.CreatedAt = prev.CreatedAt
	}
	m.records[key] = *r
	return nil
}

func (m *memoryRepo) List(ctx context.Context, f ListFilter) (domain.ListResult[Record], error) {
	res := domain.NewListResult[Record](f.ListFilter)
	for _, r := range m.records {
		if f.EmployeeID != nil && r.EmployeeID != *f.EmployeeID {
			continue
		}
		res.Items = append(res.Items, r)
	}
	res.TotalCount = int64(len(res.Items))
	return res, nil
}

func (m *memoryRepo) ListRange(ctx context.Context, projectID id.ID, from, to time.Time) ([]Record, error) {
	var out []Record
	for _, r := range m.records {
		if r.ProjectID == projectID && !r.WorkDate.Before(from) && !r.WorkDate.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

type directory map[id.ID]*employees.Employee

func (d directory) GetByID(ctx context.Context, employeeID id.ID) (*employees.Employee, error) {
	e, ok := d[employeeID]
	if !ok {
		return nil, apperror.NewNotFound("employee", employeeID.String())
	}
	return e, nil
}

type projectSet map[id.ID]bool

func (p projectSet) Exists(ctx context.Context, projectID id.ID) (bool, error) {
	return p[projectID], nil
}

type fixture struct {
	svc     *Service
	repo    *memoryRepo
	site    id.ID
	mason   *employees.Employee
	helper  *employees.Employee
	retired *employees.Employee
}

func newFixture() *fixture {
	site := id.New()

	mason := employees.NewEmployee("E-001", "Mason")
	mason.DailyWage = types.MustMoney("800")
	helper := employees.NewEmployee("E-002", "Helper")
	helper.DailyWage = types.MustMoney("500")
	retired := employees.NewEmployee("E-003", "Retired")
	retired.IsActive = false

	repo := &memoryRepo{records: map[dayKey]Record{}}
	svc := NewService(repo,
		directory{mason.ID: mason, helper.ID: helper, retired.ID: retired},
		projectSet{site: true},
		time.UTC,
	)
	svc.now = func() time.Time { return time.Date(2024, 7, 15, 18, 0, 0, 0, time.UTC) }

	return &fixture{svc: svc, repo: repo, site: site, mason: mason, helper: helper, retired: retired}
}

func TestService_MarkUpsertsPerDay(t *testing.T) {
	f := newFixture()
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{FullName: "Site Supervisor"})

	first, err := f.svc.Mark(ctx, MarkRequest{EmployeeID: f.mason.ID, ProjectID: f.site, Status: StatusPresent})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), first.WorkDate)
	assert.Equal(t, "Site Supervisor", first.RecordedBy)

	second, err := f.svc.Mark(ctx, MarkRequest{EmployeeID: f.mason.ID, ProjectID: f.site, Status: StatusHalfDay})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.repo.records, 1)
}

func TestService_MarkValidation(t *testing.T) {
	f := newFixture()
	in := time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC)
	out := in.Add(-time.Hour)

	tests := []struct {
		name string
		req  MarkRequest
		code string
	}{
		{"bad status", MarkRequest{EmployeeID: f.mason.ID, ProjectID: f.site, Status: "late"}, apperror.CodeValidation},
		{"no employee", MarkRequest{ProjectID: f.site, Status: StatusPresent}, apperror.CodeValidation},
		{"check-out before check-in", MarkRequest{EmployeeID: f.mason.ID, ProjectID: f.site, Status: StatusPresent, CheckIn: &in, CheckOut: &out}, apperror.CodeValidation},
		{"unknown employee", MarkRequest{EmployeeID: id.New(), ProjectID: f.site, Status: StatusPresent, RecordedBy: "x"}, apperror.CodeNotFound},
		{"inactive employee", MarkRequest{EmployeeID: f.retired.ID, ProjectID: f.site, Status: StatusPresent, RecordedBy: "x"}, apperror.CodeBusinessRule},
		{"unknown project", MarkRequest{EmployeeID: f.mason.ID, ProjectID: id.New(), Status: StatusPresent, RecordedBy: "x"}, apperror.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Mark(context.Background(), tt.req)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestService_MonthlySummary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	mark := func(e *employees.Employee, d int, s Status) {
		_, err := f.svc.Mark(ctx, MarkRequest{
			EmployeeID: e.ID,
			ProjectID:  f.site,
			WorkDate:   time.Date(2024, 7, d, 10, 0, 0, 0, time.UTC),
			Status:     s,
			RecordedBy: "supervisor",
		})
		require.NoError(t, err)
	}

	for d := 1; d <= 10; d++ {
		mark(f.mason, d, StatusPresent)
	}
	mark(f.mason, 11, StatusHalfDay)
	mark(f.mason, 12, StatusHalfDay)
	mark(f.mason, 13, StatusAbsent)
	mark(f.helper, 1, StatusLeave)
	mark(f.helper, 2, StatusHalfDay)
	// June is outside the period.
	_, err := f.svc.Mark(ctx, MarkRequest{EmployeeID: f.helper.ID, ProjectID: f.site, Status: StatusPresent,
		WorkDate: time.Date(2024, 6, 30, 10, 0, 0, 0, time.UTC), RecordedBy: "x"})
	require.NoError(t, err)

	summary, err := f.svc.MonthlySummary(ctx, f.site, 2024, 7)
	require.NoError(t, err)
	require.Len(t, summary.Lines, 2)

	m := summary.Lines[0]
	assert.Equal(t, "E-001", m.Code)
	assert.Equal(t, 10, m.Present)
	assert.Equal(t, 2, m.HalfDay)
	assert.Equal(t, 1, m.Absent)
	assert.Equal(t, "11", m.WorkedDays.String())
	assert.Equal(t, "8800", m.Payable.String())

	h := summary.Lines[1]
	assert.Equal(t, 1, h.Leave)
	assert.Equal(t, "0.5", h.WorkedDays.String())
	assert.Equal(t, "250", h.Payable.String())

	assert.Equal(t, "9050", summary.TotalPayable.String())

	_, err = f.svc.MonthlySummary(ctx, id.New(), 2024, 7)
	assert.True(t, apperror.IsNotFound(err))
	_, err = f.svc.MonthlySummary(ctx, f.site, 2024, 0)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestDateOf(t *testing.T) {
	site := time.FixedZone("site", 5*3600+1800)
	ts := time.Date(2024, 3, 31, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), DateOf(ts, site))
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), DateOf(ts, time.UTC))
}
