package materials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitetrack/internal/core/apperror"
	appctx "sitetrack/internal/core/context"
	"sitetrack/internal/core/id"
	"sitetrack/internal/core/types"
	"sitetrack/internal/domain"
)

type serviceFixture struct {
	svc       *Service
	repo      *memoryRepo
	tx        *snapshotTx
	auditor   *fakeAuditor
	observer  *fakeObserver
	projectID id.ID
}

func newFixture(t *testing.T, policy Eligibility) *serviceFixture {
	t.Helper()
	repo := newMemoryRepo()
	txm := &snapshotTx{repo: repo}
	projectID := id.New()

	cfg := DefaultServiceConfig()
	cfg.Location = time.UTC
	if policy != nil {
		cfg.Eligibility = policy
	}

	svc := NewService(repo, fakeProjects{projectID: true}, txm, cfg)
	svc.now = func() time.Time { return day(25) }

	f := &serviceFixture{
		svc:       svc,
		repo:      repo,
		tx:        txm,
		auditor:   &fakeAuditor{},
		observer:  &fakeObserver{},
		projectID: projectID,
	}
	svc.SetAuditor(f.auditor)
	svc.SetObserver(f.observer)
	return f
}

func (f *serviceFixture) add(t *testing.T, code string, qty int64, at time.Time) *Batch {
	t.Helper()
	b, err := f.svc.AddBatch(context.Background(), AddBatchRequest{
		ProjectID:    f.projectID,
		MaterialCode: code,
		Name:         "Portland cement",
		Quantity:     types.NewQuantity(qty),
		Amount:       types.MustMoney("12.50"),
		AddedBy:      "store keeper",
		Date:         at,
	})
	require.NoError(t, err)
	return b
}

func (f *serviceFixture) remaining(t *testing.T, batchID id.ID) types.Quantity {
	t.Helper()
	b, err := f.repo.GetByID(context.Background(), batchID)
	require.NoError(t, err)
	return b.RemainingQuantity
}

func TestService_ConsumeAcrossBatches(t *testing.T) {
	f := newFixture(t, nil)
	a := f.add(t, "CEM1", 100, day(1))
	b := f.add(t, "CEM1", 50, day(5))
	f.tx.calls = 0

	res, err := f.svc.Consume(context.Background(), ConsumeRequest{
		MaterialCode: "CEM1",
		Quantity:     types.NewQuantity(120),
		TakenBy:      "crew A",
	})
	require.NoError(t, err)

	require.Len(t, res.Allocations, 2)
	assert.Equal(t, a.ID, res.Allocations[0].BatchID)
	assert.Equal(t, types.NewQuantity(100), res.Allocations[0].Quantity)
	assert.Equal(t, b.ID, res.Allocations[1].BatchID)
	assert.Equal(t, types.NewQuantity(20), res.Allocations[1].Quantity)
	assert.Equal(t, day(25), res.Date)

	assert.True(t, f.remaining(t, a.ID).IsZero())
	assert.Equal(t, types.NewQuantity(30), f.remaining(t, b.ID))
	assert.Len(t, f.repo.events, 2)
	assert.Equal(t, 1, f.tx.calls)
	assert.Equal(t, []string{OutcomeOK}, f.observer.outcomes)
}

func TestService_ConsumeInsufficientLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, nil)
	a := f.add(t, "CEM1", 100, day(1))
	b := f.add(t, "CEM1", 50, day(5))

	_, err := f.svc.Consume(context.Background(), ConsumeRequest{
		MaterialCode: "CEM1",
		Quantity:     types.NewQuantity(200),
		TakenBy:      "crew A",
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	assert.Equal(t, types.NewQuantity(100), f.remaining(t, a.ID))
	assert.Equal(t, types.NewQuantity(50), f.remaining(t, b.ID))
	assert.Empty(t, f.repo.events)
	assert.Equal(t, []string{OutcomeInsufficient}, f.observer.outcomes)
}

func TestService_ConsumeNotFound(t *testing.T) {
	f := newFixture(t, nil)
	empty := f.add(t, "SAND", 5, day(1))
	_, err := f.svc.Consume(context.Background(), ConsumeRequest{MaterialCode: "SAND", Quantity: types.NewQuantity(5), TakenBy: "x"})
	require.NoError(t, err)
	require.True(t, f.remaining(t, empty.ID).IsZero())

	for _, code := range []string{"SAND", "NOPE"} {
		_, err := f.svc.Consume(context.Background(), ConsumeRequest{MaterialCode: code, Quantity: types.NewQuantity(1), TakenBy: "x"})
		assert.True(t, apperror.HasCode(err, apperror.CodeMaterialNotFound), code)
	}
	assert.Equal(t, []string{OutcomeOK, OutcomeNotFound, OutcomeNotFound}, f.observer.outcomes)
}

func TestService_ConsumeValidation(t *testing.T) {
	f := newFixture(t, nil)
	f.add(t, "CEM1", 10, day(1))
	f.tx.calls = 0

	tests := []struct {
		name string
		req  ConsumeRequest
	}{
		{"missing code", ConsumeRequest{MaterialCode: "  ", Quantity: types.NewQuantity(1), TakenBy: "x"}},
		{"zero quantity", ConsumeRequest{MaterialCode: "CEM1", TakenBy: "x"}},
		{"negative quantity", ConsumeRequest{MaterialCode: "CEM1", Quantity: types.NewQuantity(-1), TakenBy: "x"}},
		{"anonymous taker", ConsumeRequest{MaterialCode: "CEM1", Quantity: types.NewQuantity(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Consume(context.Background(), tt.req)
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
		})
	}
	assert.Zero(t, f.tx.calls)
}

func TestService_ConsumeDefaultsTakerFromUser(t *testing.T) {
	f := newFixture(t, nil)
	f.add(t, "CEM1", 10, day(1))

	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u1", FullName: "Ravi K"})
	res, err := f.svc.Consume(ctx, ConsumeRequest{MaterialCode: "CEM1", Quantity: types.NewQuantity(3)})
	require.NoError(t, err)
	assert.Equal(t, "Ravi K", res.TakenBy)
	assert.Equal(t, "Ravi K", f.repo.events[0].TakenBy)
}

func TestService_ConsumeRollsBackOnWriteFailure(t *testing.T) {
	f := newFixture(t, nil)
	a := f.add(t, "CEM1", 100, day(1))
	b := f.add(t, "CEM1", 50, day(5))
	f.repo.failAppend = errors.New("connection reset")

	_, err := f.svc.Consume(context.Background(), ConsumeRequest{MaterialCode: "CEM1", Quantity: types.NewQuantity(120), TakenBy: "x"})
	require.Error(t, err)

	assert.Equal(t, types.NewQuantity(100), f.remaining(t, a.ID))
	assert.Equal(t, types.NewQuantity(50), f.remaining(t, b.ID))
	assert.Equal(t, []string{OutcomeError}, f.observer.outcomes)
}

func TestService_PublishesLedgerEvents(t *testing.T) {
	f := newFixture(t, nil)
	events := &fakeEvents{}
	f.svc.SetEventPublisher(events)

	a := f.add(t, "CEM1", 100, day(1))
	_, err := f.svc.Consume(context.Background(), ConsumeRequest{MaterialCode: "CEM1", Quantity: types.NewQuantity(100), TakenBy: "x"})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteByID(context.Background(), a.ID))

	assert.Equal(t, []publishedEvent{
		{a.ID.String(), EventBatchAdded},
		{"CEM1", EventConsumed},
		{a.ID.String(), EventDeleted},
	}, events.published)

	// A failed publish rolls the consumption back.
	b := f.add(t, "CEM1", 50, day(5))
	events.fail = errors.New("outbox unavailable")
	_, err = f.svc.Consume(context.Background(), ConsumeRequest{MaterialCode: "CEM1", Quantity: types.NewQuantity(20), TakenBy: "x"})
	require.Error(t, err)
	assert.Equal(t, types.NewQuantity(50), f.remaining(t, b.ID))
}

func TestService_AuditFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	full := f.add(t, "CEM1", 30, day(1))
	empty := f.add(t, "SND1", 10, day(2))
	_, err := f.svc.Consume(ctx, ConsumeRequest{MaterialCode: "SND1", Quantity: types.NewQuantity(10), TakenBy: "x"})
	require.NoError(t, err)

	f.auditor.fail = errors.New("audit insert failed")

	_, err = f.svc.BulkUpdateStatus(ctx, "CEM1", StatusOutOfStock)
	require.Error(t, err)
	assert.Equal(t, types.NewQuantity(30), f.remaining(t, full.ID))
	assert.Equal(t, StatusAvailable, f.repo.batches[full.ID].Status)

	err = f.svc.DeleteByID(ctx, empty.ID)
	require.Error(t, err)
	assert.Nil(t, f.repo.batches[empty.ID].DeletedAt)

	assert.Empty(t, f.auditor.entries)
}

func TestService_ConsumeRespectsPolicy(t *testing.T) {
	tests := []struct {
		name     string
		policy   Eligibility
		wantFrom int
	}{
		{"skip out of stock takes from second", SkipOutOfStock{}, 1},
		{"advisory takes from first", Advisory{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.policy)
			batches := []*Batch{f.add(t, "CEM1", 10, day(1)), f.add(t, "CEM1", 10, day(2))}
			// flag the older batch without writing off its stock
			f.repo.batches[batches[0].ID].Status = StatusOutOfStock

			res, err := f.svc.Consume(context.Background(), ConsumeRequest{MaterialCode: "CEM1", Quantity: types.NewQuantity(4), TakenBy: "x"})
			require.NoError(t, err)
			require.Len(t, res.Allocations, 1)
			assert.Equal(t, batches[tt.wantFrom].ID, res.Allocations[0].BatchID)
		})
	}
}

func TestService_AddBatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{Email: "store@site.test"})

	b, err := f.svc.AddBatch(ctx, AddBatchRequest{
		ProjectID:    f.projectID,
		MaterialCode: " CEM1 ",
		Name:         "Cement",
		Quantity:     types.NewQuantity(40),
		Amount:       types.MustMoney("9"),
	})
	require.NoError(t, err)
	assert.Equal(t, "CEM1", b.MaterialCode)
	assert.Equal(t, b.DeliveredQuantity, b.RemainingQuantity)
	assert.Equal(t, StatusAvailable, b.Status)
	assert.Equal(t, "store@site.test", b.AddedBy)
	assert.Equal(t, day(25), b.DeliveredDate)

	tests := []struct {
		name string
		req  AddBatchRequest
		code string
	}{
		{"unknown project", AddBatchRequest{ProjectID: id.New(), MaterialCode: "CEM1", Name: "c", Quantity: types.NewQuantity(1), AddedBy: "x"}, apperror.CodeNotFound},
		{"no project", AddBatchRequest{MaterialCode: "CEM1", Name: "c", Quantity: types.NewQuantity(1), AddedBy: "x"}, apperror.CodeValidation},
		{"zero quantity", AddBatchRequest{ProjectID: f.projectID, MaterialCode: "CEM1", Name: "c", AddedBy: "x"}, apperror.CodeValidation},
		{"negative amount", AddBatchRequest{ProjectID: f.projectID, MaterialCode: "CEM1", Name: "c", Quantity: types.NewQuantity(1), Amount: types.MustMoney("-1"), AddedBy: "x"}, apperror.CodeValidation},
		{"no name", AddBatchRequest{ProjectID: f.projectID, MaterialCode: "CEM1", Quantity: types.NewQuantity(1), AddedBy: "x"}, apperror.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddBatch(context.Background(), tt.req)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestService_ListByCodeAndProject(t *testing.T) {
	f := newFixture(t, nil)
	f.add(t, "CEM1", 10, day(3))
	f.add(t, "CEM1", 10, day(1))
	f.add(t, "SAND", 10, day(2))

	res, err := f.svc.List(context.Background(), ListFilter{MaterialCode: "CEM1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.TotalCount)
	assert.Equal(t, domain.DefaultPageLimit, res.Limit)
	assert.True(t, res.Items[0].DeliveredDate.Before(res.Items[1].DeliveredDate))

	pid := f.projectID
	res, err = f.svc.List(context.Background(), ListFilter{ProjectID: &pid})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.TotalCount)

	_, err = f.svc.List(context.Background(), ListFilter{Status: "lost"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestService_BulkUpdateStatus(t *testing.T) {
	f := newFixture(t, nil)
	a := f.add(t, "CEM1", 10, day(1))
	b := f.add(t, "CEM1", 20, day(2))
	other := f.add(t, "SAND", 5, day(1))

	n, err := f.svc.BulkUpdateStatus(context.Background(), "CEM1", StatusOnHold)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, types.NewQuantity(10), f.remaining(t, a.ID))

	n, err = f.svc.BulkUpdateStatus(context.Background(), "CEM1", StatusOutOfStock)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.True(t, f.remaining(t, a.ID).IsZero())
	assert.True(t, f.remaining(t, b.ID).IsZero())
	assert.Equal(t, types.NewQuantity(5), f.remaining(t, other.ID))

	require.Len(t, f.auditor.entries, 2)
	last := f.auditor.entries[1]
	assert.Equal(t, AuditEntityCode, last.entityType)
	assert.Equal(t, "CEM1", last.entityID)
	assert.Equal(t, AuditStatusOverride, last.action)
	assert.Equal(t, true, last.changes["zeroRemaining"])

	_, err = f.svc.BulkUpdateStatus(context.Background(), "NOPE", StatusOnHold)
	assert.True(t, apperror.IsNotFound(err))
	_, err = f.svc.BulkUpdateStatus(context.Background(), "CEM1", "lost")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestService_UpdateBatch(t *testing.T) {
	f := newFixture(t, nil)
	b := f.add(t, "CEM1", 10, day(1))

	name := "Cement OPC 53"
	status := StatusOutOfStock
	updated, err := f.svc.UpdateBatch(context.Background(), b.ID, UpdateBatchRequest{Name: &name, Status: &status, Version: b.Version})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.True(t, updated.RemainingQuantity.IsZero())
	assert.Equal(t, b.Version+1, updated.Version)
	require.Len(t, f.auditor.entries, 1)
	assert.Equal(t, AuditUpdate, f.auditor.entries[0].action)

	_, err = f.svc.UpdateBatch(context.Background(), b.ID, UpdateBatchRequest{Name: &name, Version: b.Version})
	assert.True(t, apperror.IsConcurrentModification(err))

	_, err = f.svc.UpdateBatch(context.Background(), id.New(), UpdateBatchRequest{Name: &name})
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_DeleteByID(t *testing.T) {
	f := newFixture(t, nil)
	b := f.add(t, "CEM1", 10, day(1))

	err := f.svc.DeleteByID(context.Background(), b.ID)
	require.True(t, apperror.HasCode(err, apperror.CodeBatchNotEmpty), "got %v", err)

	_, err = f.svc.Consume(context.Background(), ConsumeRequest{MaterialCode: "CEM1", Quantity: types.NewQuantity(10), TakenBy: "x"})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteByID(context.Background(), b.ID))

	_, err = f.svc.Get(context.Background(), b.ID)
	assert.True(t, apperror.IsNotFound(err))
	assert.True(t, apperror.IsNotFound(f.svc.DeleteByID(context.Background(), b.ID)))

	// history survives the tombstone
	consumed, err := f.svc.TotalConsumed(context.Background(), "CEM1")
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(10), consumed)
}

func TestService_DeleteByCode(t *testing.T) {
	f := newFixture(t, nil)
	a := f.add(t, "CEM1", 10, day(1))
	f.add(t, "CEM1", 10, day(2))

	_, err := f.svc.Consume(context.Background(), ConsumeRequest{MaterialCode: "CEM1", Quantity: types.NewQuantity(10), TakenBy: "x"})
	require.NoError(t, err)

	_, err = f.svc.DeleteByCode(context.Background(), "CEM1")
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBatchNotEmpty, appErr.Code)
	assert.NotContains(t, appErr.Details["remaining"], a.ID.String())

	// nothing was tombstoned
	res, err := f.svc.List(context.Background(), ListFilter{MaterialCode: "CEM1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.TotalCount)

	_, err = f.svc.BulkUpdateStatus(context.Background(), "CEM1", StatusOutOfStock)
	require.NoError(t, err)
	n, err := f.svc.DeleteByCode(context.Background(), "CEM1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = f.svc.DeleteByCode(context.Background(), "CEM1")
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_Totals(t *testing.T) {
	f := newFixture(t, nil)
	f.add(t, "CEM1", 100, day(1))
	f.add(t, "CEM1", 50, day(5))

	_, err := f.svc.Consume(context.Background(), ConsumeRequest{MaterialCode: "CEM1", Quantity: types.NewQuantity(120), TakenBy: "x"})
	require.NoError(t, err)

	available, err := f.svc.TotalAvailable(context.Background(), "CEM1")
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(30), available)

	consumed, err := f.svc.TotalConsumed(context.Background(), "CEM1")
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(120), consumed)

	available, err = f.svc.TotalAvailable(context.Background(), "UNKNOWN")
	require.NoError(t, err)
	assert.True(t, available.IsZero())

	_, err = f.svc.TotalAvailable(context.Background(), "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	sums, err := f.svc.Summaries(context.Background(), SummaryFilter{})
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, 2, sums[0].Batches)
	assert.Equal(t, types.NewQuantity(150), sums[0].Delivered)
	assert.Equal(t, types.NewQuantity(30), sums[0].Available)
	assert.Equal(t, types.NewQuantity(120), sums[0].Consumed)
}

func TestService_MonthlyReport(t *testing.T) {
	f := newFixture(t, nil)
	b := f.add(t, "CEM1", 100, time.Date(2024, time.March, 3, 8, 0, 0, 0, time.UTC))

	for _, use := range []struct {
		qty int64
		at  time.Time
	}{
		{30, time.Date(2024, time.March, 20, 8, 0, 0, 0, time.UTC)},
		{15, time.Date(2024, time.April, 2, 8, 0, 0, 0, time.UTC)},
	} {
		_, err := f.svc.Consume(context.Background(), ConsumeRequest{MaterialCode: "CEM1", Quantity: types.NewQuantity(use.qty), TakenBy: "x", Date: use.at})
		require.NoError(t, err)
	}

	report, err := f.svc.MonthlyReport(context.Background(), f.projectID, 2024, 3)
	require.NoError(t, err)
	require.Len(t, report.Lines, 1)
	assert.Equal(t, b.ID, report.Lines[0].BatchID)
	assert.Equal(t, types.NewQuantity(100), report.Lines[0].MonthlyAdded)
	assert.Equal(t, types.NewQuantity(30), report.Lines[0].MonthlyConsumed)

	_, err = f.svc.MonthlyReport(context.Background(), id.New(), 2024, 3)
	assert.True(t, apperror.IsNotFound(err))
	_, err = f.svc.MonthlyReport(context.Background(), f.projectID, 2024, 13)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
