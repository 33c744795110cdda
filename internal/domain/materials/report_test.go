package materials

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitetrack/internal/core/id"
	"sitetrack/internal/core/types"
)

func TestMonthBounds(t *testing.T) {
	loc := time.FixedZone("site", 3*3600)

	tests := []struct {
		year      int
		month     time.Month
		wantStart time.Time
		wantEnd   time.Time
	}{
		{2024, time.February, time.Date(2024, 2, 1, 0, 0, 0, 0, loc), time.Date(2024, 2, 29, 23, 59, 59, 999_000_000, loc)},
		{2023, time.February, time.Date(2023, 2, 1, 0, 0, 0, 0, loc), time.Date(2023, 2, 28, 23, 59, 59, 999_000_000, loc)},
		{2024, time.December, time.Date(2024, 12, 1, 0, 0, 0, 0, loc), time.Date(2024, 12, 31, 23, 59, 59, 999_000_000, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.month.String(), func(t *testing.T) {
			start, end := MonthBounds(tt.year, tt.month, loc)
			assert.True(t, tt.wantStart.Equal(start), "start %s", start)
			assert.True(t, tt.wantEnd.Equal(end), "end %s", end)
		})
	}
}

func TestBuildMonthlyReport_SplitsByMonth(t *testing.T) {
	loc := time.UTC
	projectID := id.New()

	b := NewBatch(projectID, "STEEL", "Rebar 12mm", types.NewQuantity(80), types.MustMoney("4.5"),
		time.Date(2024, time.May, 3, 10, 0, 0, 0, loc), "store")
	ApplyAllocation(b, Allocation{Quantity: types.NewQuantity(25)}, "crew A", time.Date(2024, time.May, 20, 15, 0, 0, 0, loc))
	ApplyAllocation(b, Allocation{Quantity: types.NewQuantity(10)}, "crew B", time.Date(2024, time.June, 2, 8, 0, 0, 0, loc))

	may := BuildMonthlyReport(projectID, []*Batch{b}, 2024, time.May, loc)
	require.Len(t, may.Lines, 1)
	line := may.Lines[0]

	require.Len(t, line.Additions, 1)
	assert.True(t, line.Additions[0].WithinMonth)
	assert.Equal(t, types.NewQuantity(80), line.MonthlyAdded)

	require.Len(t, line.Consumptions, 2)
	assert.True(t, line.Consumptions[0].WithinMonth)
	assert.False(t, line.Consumptions[1].WithinMonth)
	assert.Equal(t, types.NewQuantity(25), line.MonthlyConsumed)
	assert.Equal(t, types.NewQuantity(80), may.TotalAdded)
	assert.Equal(t, types.NewQuantity(25), may.TotalConsumed)

	june := BuildMonthlyReport(projectID, []*Batch{b}, 2024, time.June, loc)
	line = june.Lines[0]
	assert.False(t, line.Additions[0].WithinMonth)
	assert.True(t, line.MonthlyAdded.IsZero())
	assert.Equal(t, types.NewQuantity(10), line.MonthlyConsumed)
	// Full history is listed regardless of the month.
	assert.Len(t, line.Consumptions, 2)
}

func TestBuildMonthlyReport_InclusiveBoundaries(t *testing.T) {
	loc := time.UTC
	projectID := id.New()

	b := NewBatch(projectID, "SAND", "Sand", types.NewQuantity(10), types.MustMoney("1"),
		time.Date(2024, time.April, 1, 0, 0, 0, 0, loc), "store")
	ApplyAllocation(b, Allocation{Quantity: types.NewQuantity(1)}, "x", time.Date(2024, time.April, 30, 23, 59, 59, 999_000_000, loc))
	ApplyAllocation(b, Allocation{Quantity: types.NewQuantity(2)}, "y", time.Date(2024, time.May, 1, 0, 0, 0, 0, loc))

	r := BuildMonthlyReport(projectID, []*Batch{b}, 2024, time.April, loc)
	assert.Equal(t, types.NewQuantity(10), r.Lines[0].MonthlyAdded)
	assert.Equal(t, types.NewQuantity(1), r.Lines[0].MonthlyConsumed)
}

func TestBuildMonthlyReport_SubMillisecondEndOfMonth(t *testing.T) {
	loc := time.UTC
	projectID := id.New()

	b := NewBatch(projectID, "SAND", "Sand", types.NewQuantity(10), types.MustMoney("1"),
		time.Date(2024, time.March, 1, 0, 0, 0, 0, loc), "store")
	ApplyAllocation(b, Allocation{Quantity: types.NewQuantity(4)}, "x", time.Date(2024, time.March, 31, 23, 59, 59, 999_500_000, loc))

	march := BuildMonthlyReport(projectID, []*Batch{b}, 2024, time.March, loc)
	april := BuildMonthlyReport(projectID, []*Batch{b}, 2024, time.April, loc)

	assert.Equal(t, types.NewQuantity(4), march.Lines[0].MonthlyConsumed)
	assert.True(t, march.Lines[0].Consumptions[0].WithinMonth)
	assert.True(t, april.Lines[0].MonthlyConsumed.IsZero())
}

func TestBuildMonthlyReport_LocationShiftsBoundary(t *testing.T) {
	site := time.FixedZone("site", 5*3600)
	projectID := id.New()

	// 22:00 UTC on Jan 31 is already Feb 1 at the site.
	b := NewBatch(projectID, "SAND", "Sand", types.NewQuantity(10), types.MustMoney("1"),
		time.Date(2024, time.January, 31, 22, 0, 0, 0, time.UTC), "store")

	jan := BuildMonthlyReport(projectID, []*Batch{b}, 2024, time.January, site)
	feb := BuildMonthlyReport(projectID, []*Batch{b}, 2024, time.February, site)

	assert.True(t, jan.Lines[0].MonthlyAdded.IsZero())
	assert.Equal(t, types.NewQuantity(10), feb.Lines[0].MonthlyAdded)
}

func TestBuildMonthlyReport_OrderAndIdempotence(t *testing.T) {
	projectID := id.New()
	late := testBatch("CEM1", 50, day(5))
	early := testBatch("CEM1", 100, day(1))
	deleted := testBatch("GRAVEL", 5, day(2))
	deleted.RemainingQuantity = 0
	at := day(6)
	deleted.DeletedAt = &at

	input := []*Batch{late, early, deleted}
	first := BuildMonthlyReport(projectID, input, 2024, time.March, time.UTC)
	second := BuildMonthlyReport(projectID, input, 2024, time.March, time.UTC)

	assert.Equal(t, first, second)
	require.Len(t, first.Lines, 3)
	assert.Equal(t, early.ID, first.Lines[0].BatchID)
	assert.Equal(t, deleted.ID, first.Lines[1].BatchID)
	assert.True(t, first.Lines[1].Deleted)
	assert.Equal(t, late.ID, first.Lines[2].BatchID)
	// input slice order is untouched
	assert.Equal(t, late, input[0])
}
