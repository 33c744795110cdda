// Package attendance_repo provides the PostgreSQL attendance store.
package attendance_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"sitetrack/internal/core/id"
	"sitetrack/internal/domain"
	"sitetrack/internal/domain/attendance"
	"sitetrack/internal/infrastructure/storage/postgres"
)

const attendanceTable = "attendance"

var orderCols = []string{"work_date", "status", "created_at"}

// Repo implements attendance.Repository.
type Repo struct {
	txManager *postgres.TxManager
	columns   []string
}

var _ attendance.Repository = (*Repo)(nil)

// NewRepo creates a new attendance repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager: txManager,
		columns:   postgres.ExtractDBColumns[attendance.Record](),
	}
}

func upsertQuery(r *attendance.Record) squirrel.InsertBuilder {
	return postgres.Builder().
		Insert(attendanceTable).
		Columns("id", "employee_id", "project_id", "work_date", "status",
			"check_in", "check_out", "note", "recorded_by", "created_at", "updated_at").
		Values(r.ID, r.EmployeeID, r.ProjectID, r.WorkDate, r.Status,
			r.CheckIn, r.CheckOut, r.Note, r.RecordedBy, r.CreatedAt, r.UpdatedAt).
		Suffix(`ON CONFLICT (employee_id, work_date) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			status = EXCLUDED.status,
			check_in = EXCLUDED.check_in,
			check_out = EXCLUDED.check_out,
			note = EXCLUDED.note,
			recorded_by = EXCLUDED.recorded_by,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`)
}

// Upsert inserts or replaces the record of (employee, work date).
func (r *Repo) Upsert(ctx context.Context, rec *attendance.Record) error {
	sql, args, err := upsertQuery(rec).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	err = r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return postgres.MapError(fmt.Errorf("upsert attendance: %w", err), "attendance")
	}
	return nil
}

func (r *Repo) listQuery(filter attendance.ListFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(r.columns...).From(attendanceTable)

	if filter.EmployeeID != nil {
		q = q.Where(squirrel.Eq{"employee_id": *filter.EmployeeID})
	}
	if filter.ProjectID != nil {
		q = q.Where(squirrel.Eq{"project_id": *filter.ProjectID})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"work_date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"work_date": *filter.To})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"note": "%" + filter.Search + "%"})
	}
	return q
}

// List retrieves records with filtering and pagination.
func (r *Repo) List(ctx context.Context, filter attendance.ListFilter) (domain.ListResult[attendance.Record], error) {
	result := domain.NewListResult[attendance.Record](filter.ListFilter)
	q := r.listQuery(filter)

	countSQL, countArgs, err := postgres.Builder().
		Select("COUNT(*)").
		FromSelect(q, "sub").
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, postgres.MapError(fmt.Errorf("count attendance: %w", err), "attendance")
	}

	orderBy, err := postgres.ParseOrderBy(filter.OrderBy, "work_date DESC", orderCols...)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy, "id ASC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, postgres.MapError(fmt.Errorf("list attendance: %w", err), "attendance")
	}
	return result, nil
}

// ListRange returns all records of a project between two dates inclusive.
func (r *Repo) ListRange(ctx context.Context, projectID id.ID, from, to time.Time) ([]attendance.Record, error) {
	sql, args, err := r.listQuery(attendance.ListFilter{ProjectID: &projectID, From: &from, To: &to}).
		OrderBy("work_date ASC", "employee_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	records := []attendance.Record{}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &records, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("list attendance range: %w", err), "attendance")
	}
	return records, nil
}
