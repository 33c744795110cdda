package catalog_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitetrack/internal/core/id"
	"sitetrack/internal/domain"
	"sitetrack/internal/domain/employees"
	"sitetrack/internal/domain/projects"
)

func TestListQuery_Filters(t *testing.T) {
	repo := NewBaseCatalogRepo(nil, "test_table", "test", []string{"id", "code", "name"}, func() *struct{} { return &struct{}{} })

	tests := []struct {
		name     string
		filter   domain.ListFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "live only",
			filter:   domain.ListFilter{},
			wantSQL:  "SELECT id, code, name FROM test_table WHERE deletion_mark = $1",
			wantArgs: []any{false},
		},
		{
			name:     "with deleted and search",
			filter:   domain.ListFilter{IncludeDeleted: true, Search: "cem"},
			wantSQL:  "SELECT id, code, name FROM test_table WHERE (name ILIKE $1 OR code ILIKE $2)",
			wantArgs: []any{"%cem%", "%cem%"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.listQuery(tt.filter, nil).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestUpdateQuery_OptimisticLock(t *testing.T) {
	repo := NewProjectRepo(nil)
	p := projects.NewProject("P-1", "Tower")
	p.Version = 4

	q, gotID, err := repo.updateQuery(p)
	require.NoError(t, err)
	assert.Equal(t, p.ID, gotID)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "UPDATE projects SET")
	assert.Contains(t, sql, "version = version + 1")
	assert.Contains(t, sql, "WHERE id = $")
	assert.Contains(t, sql, "AND version = $")
	assert.NotContains(t, sql, "created_at =")
	assert.Equal(t, 4, args[len(args)-1])
}

func TestEmployeeConditions(t *testing.T) {
	repo := NewEmployeeRepo(nil)
	site := id.New()
	active := true

	f := employees.ListFilter{ProjectID: &site, IsActive: &active}
	sql, args, err := repo.listQuery(f.ListFilter, employeeConditions(f)).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM employees WHERE deletion_mark = $1 AND project_id = $2 AND is_active = $3")
	// squirrel passes driver.Valuer arguments (uuid) by value.
	assert.Equal(t, []any{false, site.String(), true}, args)
}

func TestProjectConditions(t *testing.T) {
	repo := NewProjectRepo(nil)

	f := projects.ListFilter{Status: projects.StatusActive}
	sql, args, err := repo.listQuery(f.ListFilter, projectConditions(f)).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM projects WHERE deletion_mark = $1 AND status = $2")
	assert.Equal(t, []any{false, projects.StatusActive}, args)
}
