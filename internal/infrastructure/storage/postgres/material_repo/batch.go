// Package material_repo provides the PostgreSQL material ledger: batches
// and their append-only usage events.
package material_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"sitetrack/internal/core/apperror"
	"sitetrack/internal/core/id"
	"sitetrack/internal/core/types"
	"sitetrack/internal/domain"
	"sitetrack/internal/domain/materials"
	"sitetrack/internal/infrastructure/storage/postgres"
)

const (
	batchTable = "material_batches"
	eventTable = "material_usage_events"
	entityName = "material_batch"
)

// fifoOrder is the consumption order; matches the partial FIFO index.
var fifoOrder = []string{"delivered_date ASC", "created_at ASC", "id ASC"}

var batchOrderCols = []string{"material_code", "name", "delivered_date", "remaining_quantity", "status", "created_at"}

var eventColumns = []string{"id", "batch_id", "taken_by", "quantity", "used_at", "created_at"}

// BatchRepo implements materials.Repository.
type BatchRepo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
	executor  *postgres.BatchExecutor
	columns   []string
}

var _ materials.Repository = (*BatchRepo)(nil)

// NewBatchRepo creates a new batch repository.
func NewBatchRepo(txManager *postgres.TxManager) *BatchRepo {
	return &BatchRepo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
		executor:  postgres.NewBatchExecutor(txManager),
		columns:   postgres.ExtractDBColumns[materials.Batch](),
	}
}

func (r *BatchRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

func (r *BatchRepo) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().Select(r.columns...).From(batchTable)
}

func live(q squirrel.SelectBuilder) squirrel.SelectBuilder {
	return q.Where(squirrel.Eq{"deleted_at": nil})
}

// Create inserts a new batch.
func (r *BatchRepo) Create(ctx context.Context, b *materials.Batch) error {
	data := postgres.StructToMap(b)
	sql, args, err := postgres.Builder().
		Insert(batchTable).
		SetMap(data).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert batch: %w", err), entityName)
	}
	return nil
}

// GetByID returns a live batch with its usage events.
func (r *BatchRepo) GetByID(ctx context.Context, batchID id.ID) (*materials.Batch, error) {
	b, err := r.getOne(ctx, live(r.baseSelect()).Where(squirrel.Eq{"id": batchID}), batchID)
	if err != nil {
		return nil, err
	}

	if err := r.loadEvents(ctx, []*materials.Batch{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// GetByIDForUpdate locks a live batch row.
func (r *BatchRepo) GetByIDForUpdate(ctx context.Context, batchID id.ID) (*materials.Batch, error) {
	q := live(r.baseSelect()).
		Where(squirrel.Eq{"id": batchID}).
		Suffix("FOR UPDATE")
	return r.getOne(ctx, q, batchID)
}

func (r *BatchRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, batchID id.ID) (*materials.Batch, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var b materials.Batch
	if err := pgxscan.Get(ctx, r.querier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(entityName, batchID.String())
		}
		return nil, postgres.MapError(fmt.Errorf("get batch: %w", err), entityName)
	}
	return &b, nil
}

// listQuery applies ListFilter conditions to live batches.
func (r *BatchRepo) listQuery(filter materials.ListFilter) squirrel.SelectBuilder {
	q := live(r.baseSelect())

	if filter.MaterialCode != "" {
		q = q.Where(squirrel.Eq{"material_code": filter.MaterialCode})
	}
	if filter.ProjectID != nil {
		q = q.Where(squirrel.Eq{"project_id": *filter.ProjectID})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.OnlyInStock {
		q = q.Where(squirrel.Gt{"remaining_quantity": 0})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"name": "%" + filter.Search + "%"})
	}
	return q
}

// List returns live batches matching the filter in FIFO order unless
// OrderBy says otherwise.
func (r *BatchRepo) List(ctx context.Context, filter materials.ListFilter) (domain.ListResult[materials.Batch], error) {
	result := domain.NewListResult[materials.Batch](filter.ListFilter)
	q := r.listQuery(filter)

	countSQL, countArgs, err := postgres.Builder().
		Select("COUNT(*)").
		FromSelect(q, "sub").
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}

	querier := r.querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, postgres.MapError(fmt.Errorf("count batches: %w", err), entityName)
	}

	if filter.OrderBy != "" {
		orderBy, err := postgres.ParseOrderBy(filter.OrderBy, "", batchOrderCols...)
		if err != nil {
			return result, err
		}
		q = q.OrderBy(orderBy)
	}
	q = q.OrderBy(fifoOrder...)

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
		return result, postgres.MapError(fmt.Errorf("list batches: %w", err), entityName)
	}

	page := make([]*materials.Batch, len(result.Items))
	for i := range result.Items {
		page[i] = &result.Items[i]
	}
	if err := r.loadEvents(ctx, page); err != nil {
		return result, err
	}
	return result, nil
}

// ListByProject returns every batch of a project, tombstoned ones included,
// with usage events.
func (r *BatchRepo) ListByProject(ctx context.Context, projectID id.ID) ([]*materials.Batch, error) {
	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{"project_id": projectID}).
		OrderBy(fifoOrder...).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []*materials.Batch
	if err := pgxscan.Select(ctx, r.querier(ctx), &batches, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("list project batches: %w", err), entityName)
	}
	if err := r.loadEvents(ctx, batches); err != nil {
		return nil, err
	}
	return batches, nil
}

// loadEvents fills the usage log of every batch with one query.
func (r *BatchRepo) loadEvents(ctx context.Context, batches []*materials.Batch) error {
	if len(batches) == 0 {
		return nil
	}
	ids := make([]id.ID, len(batches))
	for i, b := range batches {
		ids[i] = b.ID
	}
	events, err := r.eventsFor(ctx, ids)
	if err != nil {
		return err
	}
	attachEvents(batches, events)
	return nil
}

// attachEvents sets each batch's log; batches without events get an empty one.
func attachEvents(batches []*materials.Batch, byBatch map[id.ID][]materials.UsageEvent) {
	for _, b := range batches {
		b.UsageEvents = byBatch[b.ID]
		if b.UsageEvents == nil {
			b.UsageEvents = []materials.UsageEvent{}
		}
	}
}

func (r *BatchRepo) eventsFor(ctx context.Context, batchIDs []id.ID) (map[id.ID][]materials.UsageEvent, error) {
	sql, args, err := postgres.Builder().
		Select(eventColumns...).
		From(eventTable).
		Where(squirrel.Eq{"batch_id": batchIDs}).
		OrderBy("used_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build events query: %w", err)
	}

	var events []materials.UsageEvent
	if err := pgxscan.Select(ctx, r.querier(ctx), &events, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("load usage events: %w", err), entityName)
	}

	byBatch := make(map[id.ID][]materials.UsageEvent, len(batchIDs))
	for _, e := range events {
		byBatch[e.BatchID] = append(byBatch[e.BatchID], e)
	}
	return byBatch, nil
}

// lockQuery selects live batches of a code in FIFO order with a row lock.
func (r *BatchRepo) lockQuery(code string, onlyAvailable bool) squirrel.SelectBuilder {
	q := live(r.baseSelect()).Where(squirrel.Eq{"material_code": code})
	if onlyAvailable {
		q = q.Where(squirrel.Gt{"remaining_quantity": 0})
	}
	return q.OrderBy(fifoOrder...).Suffix("FOR UPDATE")
}

// LockAvailableByCode locks live batches of a code that still hold stock.
func (r *BatchRepo) LockAvailableByCode(ctx context.Context, code string) ([]*materials.Batch, error) {
	return r.lock(ctx, r.lockQuery(code, true))
}

// LockByCode locks every live batch of a code.
func (r *BatchRepo) LockByCode(ctx context.Context, code string) ([]*materials.Batch, error) {
	return r.lock(ctx, r.lockQuery(code, false))
}

func (r *BatchRepo) lock(ctx context.Context, q squirrel.SelectBuilder) ([]*materials.Batch, error) {
	if !r.txManager.InTransaction(ctx) {
		return nil, fmt.Errorf("row locks require transaction context")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lock query: %w", err)
	}

	var batches []*materials.Batch
	if err := pgxscan.Select(ctx, r.querier(ctx), &batches, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("lock batches: %w", err), entityName)
	}
	return batches, nil
}

// UpdateRemaining writes new remaining quantities in one round-trip. Every
// row must still carry the version read under lock.
func (r *BatchRepo) UpdateRemaining(ctx context.Context, batches []*materials.Batch) error {
	if len(batches) == 0 {
		return nil
	}

	now := time.Now().UTC()
	queries := make([]postgres.BatchQuery, 0, len(batches))
	for _, b := range batches {
		sql, args, err := remainingUpdate(b, now).ToSql()
		if err != nil {
			return fmt.Errorf("build remaining update: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	affected, err := r.executor.ExecuteBatch(ctx, queries)
	if err != nil {
		return postgres.MapError(err, entityName)
	}
	for i, n := range affected {
		if n == 0 {
			return apperror.NewConcurrentModification(entityName, batches[i].ID.String())
		}
	}

	for _, b := range batches {
		b.Version++
		b.UpdatedAt = now
	}
	return nil
}

func remainingUpdate(b *materials.Batch, now time.Time) squirrel.UpdateBuilder {
	return postgres.Builder().
		Update(batchTable).
		Set("remaining_quantity", b.RemainingQuantity).
		Set("updated_at", now).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": b.ID, "version": b.Version, "deleted_at": nil})
}

// AppendUsageEvents inserts events, over COPY when inside a transaction.
func (r *BatchRepo) AppendUsageEvents(ctx context.Context, events []materials.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(events))
	for _, e := range events {
		rows = append(rows, []any{e.ID, e.BatchID, e.TakenBy, e.Quantity.Int64Scaled(), e.Date, e.CreatedAt})
	}

	if r.txManager.InTransaction(ctx) {
		n, err := r.inserter.CopyFromSlice(ctx, eventTable, eventColumns, rows)
		if err != nil {
			return postgres.MapError(err, entityName)
		}
		if n != int64(len(rows)) {
			return fmt.Errorf("copied %d of %d usage events", n, len(rows))
		}
		return nil
	}

	sql, args, err := eventInsert(rows).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert usage events: %w", err), entityName)
	}
	return nil
}

func eventInsert(rows [][]any) squirrel.InsertBuilder {
	q := postgres.Builder().Insert(eventTable).Columns(eventColumns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	return q
}

// Update writes descriptive fields, status and remaining of a batch.
func (r *BatchRepo) Update(ctx context.Context, b *materials.Batch) error {
	sql, args, err := postgres.Builder().
		Update(batchTable).
		Set("name", b.Name).
		Set("unit_amount", b.UnitAmount).
		Set("added_by", b.AddedBy).
		Set("status", b.Status).
		Set("remaining_quantity", b.RemainingQuantity).
		Set("updated_at", b.UpdatedAt).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": b.ID, "version": b.Version, "deleted_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update batch: %w", err), entityName)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(entityName, b.ID.String())
	}
	b.Version++
	return nil
}

func statusUpdate(code string, status materials.Status, zeroRemaining bool, now time.Time) squirrel.UpdateBuilder {
	q := postgres.Builder().
		Update(batchTable).
		Set("status", status).
		Set("updated_at", now).
		Set("version", squirrel.Expr("version + 1"))
	if zeroRemaining {
		q = q.Set("remaining_quantity", 0)
	}
	return q.Where(squirrel.Eq{"material_code": code, "deleted_at": nil})
}

// UpdateStatusByCode sets status on every live batch of a code.
func (r *BatchRepo) UpdateStatusByCode(ctx context.Context, code string, status materials.Status, zeroRemaining bool) (int64, error) {
	sql, args, err := statusUpdate(code, status, zeroRemaining, time.Now().UTC()).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build status update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.MapError(fmt.Errorf("update status: %w", err), entityName)
	}
	return result.RowsAffected(), nil
}

// SoftDelete tombstones batches that are not already deleted.
func (r *BatchRepo) SoftDelete(ctx context.Context, ids []id.ID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	sql, args, err := postgres.Builder().
		Update(batchTable).
		Set("deleted_at", at).
		Set("updated_at", at).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": ids, "deleted_at": nil}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build soft delete: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.MapError(fmt.Errorf("soft delete: %w", err), entityName)
	}
	return result.RowsAffected(), nil
}

// SumRemaining sums remaining over live batches of a code.
func (r *BatchRepo) SumRemaining(ctx context.Context, code string) (types.Quantity, error) {
	q := live(postgres.Builder().
		Select("COALESCE(SUM(remaining_quantity), 0)::BIGINT").
		From(batchTable)).
		Where(squirrel.Eq{"material_code": code})
	return r.sum(ctx, q)
}

// SumConsumed sums usage over all batches of a code, tombstoned included.
func (r *BatchRepo) SumConsumed(ctx context.Context, code string) (types.Quantity, error) {
	q := postgres.Builder().
		Select("COALESCE(SUM(e.quantity), 0)::BIGINT").
		From(eventTable + " e").
		Join(batchTable + " b ON b.id = e.batch_id").
		Where(squirrel.Eq{"b.material_code": code})
	return r.sum(ctx, q)
}

func (r *BatchRepo) sum(ctx context.Context, q squirrel.SelectBuilder) (types.Quantity, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sum query: %w", err)
	}

	var total int64
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, postgres.MapError(fmt.Errorf("sum: %w", err), entityName)
	}
	return types.Quantity(total), nil
}

func summaryQuery(filter materials.SummaryFilter) squirrel.SelectBuilder {
	consumed := "SELECT batch_id, SUM(quantity) AS qty FROM " + eventTable + " GROUP BY batch_id"

	q := postgres.Builder().
		Select(
			"b.material_code",
			"(ARRAY_AGG(b.name ORDER BY b.delivered_date, b.created_at, b.id))[1] AS name",
			"COUNT(*) AS batches",
			"SUM(b.delivered_quantity)::BIGINT AS delivered",
			"SUM(b.remaining_quantity)::BIGINT AS available",
			"COALESCE(SUM(u.qty), 0)::BIGINT AS consumed",
		).
		From(batchTable + " b").
		LeftJoin("(" + consumed + ") u ON u.batch_id = b.id").
		Where(squirrel.Eq{"b.deleted_at": nil})
	if filter.ProjectID != nil {
		q = q.Where(squirrel.Eq{"b.project_id": *filter.ProjectID})
	}
	return q.GroupBy("b.material_code").OrderBy("b.material_code ASC")
}

// Summaries groups live batches by material code.
func (r *BatchRepo) Summaries(ctx context.Context, filter materials.SummaryFilter) ([]materials.Summary, error) {
	sql, args, err := summaryQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build summary query: %w", err)
	}

	summaries := []materials.Summary{}
	if err := pgxscan.Select(ctx, r.querier(ctx), &summaries, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("summaries: %w", err), entityName)
	}
	return summaries, nil
}
