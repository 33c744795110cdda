package employees

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitetrack/internal/core/apperror"
	"sitetrack/internal/core/id"
	"sitetrack/internal/core/types"
	"sitetrack/internal/domain"
)

type memoryRepo struct {
	items map[id.ID]Employee
}

func (r *memoryRepo) Create(ctx context.Context, e *Employee) error {
	r.items[e.ID] = *e
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, employeeID id.ID) (*Employee, error) {
	e, ok := r.items[employeeID]
	if !ok {
		return nil, apperror.NewNotFound("employee", employeeID.String())
	}
	return &e, nil
}

func (r *memoryRepo) GetByCode(ctx context.Context, code string) (*Employee, error) {
	for _, e := range r.items {
		if e.Code == code {
			return &e, nil
		}
	}
	return nil, apperror.NewNotFound("employee", code)
}

func (r *memoryRepo) Update(ctx context.Context, e *Employee) error {
	e.Version++
	r.items[e.ID] = *e
	return nil
}

func (r *memoryRepo) SetDeletionMark(ctx context.Context, employeeID id.ID, marked bool) error {
	e := r.items[employeeID]
	e.DeletionMark = marked
	r.items[employeeID] = e
	return nil
}

func (r *memoryRepo) Exists(ctx context.Context, employeeID id.ID) (bool, error) {
	e, ok := r.items[employeeID]
	return ok && !e.DeletionMark, nil
}

func (r *memoryRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	_, err := r.GetByCode(ctx, code)
	return err == nil, nil
}

func (r *memoryRepo) List(ctx context.Context, f ListFilter) (domain.ListResult[*Employee], error) {
	res := domain.NewListResult[*Employee](f.ListFilter)
	for _, e := range r.items {
		if f.ProjectID != nil && (e.ProjectID == nil || *e.ProjectID != *f.ProjectID) {
			continue
		}
		res.Items = append(res.Items, &e)
	}
	res.TotalCount = int64(len(res.Items))
	return res, nil
}

type projectSet map[id.ID]bool

func (p projectSet) Exists(ctx context.Context, projectID id.ID) (bool, error) {
	return p[projectID], nil
}

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func TestService_CreateChecksAssignment(t *testing.T) {
	site := id.New()
	repo := &memoryRepo{items: map[id.ID]Employee{}}
	svc := NewService(repo, projectSet{site: true}, passthroughTx{})
	ctx := context.Background()

	e := NewEmployee("E-001", "Asha Patel")
	email := "  Asha@Site.Test "
	e.Email = &email
	e.DailyWage = types.MustMoney("850")
	e.ProjectID = &site
	require.NoError(t, svc.Create(ctx, e))
	assert.Equal(t, "asha@site.test", *repo.items[e.ID].Email)

	orphan := NewEmployee("E-002", "Li Wei")
	missing := id.New()
	orphan.ProjectID = &missing
	err := svc.Create(ctx, orphan)
	assert.True(t, apperror.IsNotFound(err), "got %v", err)

	res, err := svc.List(ctx, ListFilter{ProjectID: &site})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.TotalCount)
}

func TestEmployee_Validate(t *testing.T) {
	bad := "not-an-email"
	tests := []struct {
		name   string
		mutate func(e *Employee)
	}{
		{"missing code", func(e *Employee) { e.Code = "" }},
		{"missing name", func(e *Employee) { e.Name = "" }},
		{"bad email", func(e *Employee) { e.Email = &bad }},
		{"negative wage", func(e *Employee) { e.DailyWage = types.MustMoney("-1") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmployee("E-1", "Worker")
			tt.mutate(e)
			assert.True(t, apperror.HasCode(e.Validate(context.Background()), apperror.CodeValidation))
		})
	}
}

func TestService_UpdateNormalizesBeforeValidation(t *testing.T) {
	repo := &memoryRepo{items: map[id.ID]Employee{}}
	svc := NewService(repo, projectSet{}, passthroughTx{})
	ctx := context.Background()

	e := NewEmployee(" E-010 ", " Ravi Kumar ")
	require.NoError(t, svc.Create(ctx, e))
	assert.Equal(t, "E-010", repo.items[e.ID].Code)
	assert.Equal(t, "Ravi Kumar", repo.items[e.ID].Name)

	email := "\tRAVI@Site.Test"
	e.Email = &email
	require.NoError(t, svc.Update(ctx, e))
	assert.Equal(t, "ravi@site.test", *repo.items[e.ID].Email)
}
