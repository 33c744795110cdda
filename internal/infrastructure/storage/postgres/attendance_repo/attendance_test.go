package attendance_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitetrack/internal/core/id"
	"sitetrack/internal/domain/attendance"
)

func TestUpsertQuery(t *testing.T) {
	rec := &attendance.Record{
		ID:         id.New(),
		EmployeeID: id.New(),
		ProjectID:  id.New(),
		WorkDate:   time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		Status:     attendance.StatusPresent,
	}

	sql, args, err := upsertQuery(rec).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "INSERT INTO attendance (id,employee_id,project_id,work_date,status,check_in,check_out,note,recorded_by,created_at,updated_at)")
	assert.Contains(t, sql, "ON CONFLICT (employee_id, work_date) DO UPDATE SET")
	assert.Contains(t, sql, "RETURNING id, created_at")
	assert.NotContains(t, sql, "created_at = EXCLUDED")
	assert.Len(t, args, 11)
}

func TestListQuery_DateRange(t *testing.T) {
	repo := NewRepo(nil)
	from := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)
	site := id.New()

	sql, args, err := repo.listQuery(attendance.ListFilter{ProjectID: &site, From: &from, To: &to}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM attendance WHERE project_id = $1 AND work_date >= $2 AND work_date <= $3")
	assert.Equal(t, from, args[1])
	assert.Equal(t, to, args[2])
}
