package materials

import (
	"time"

	"sitetrack/internal/core/id"
	"sitetrack/internal/core/types"
)

// ReportEntry is one addition or consumption shown in a report line.
type ReportEntry struct {
	Date        time.Time      `json:"date"`
	Quantity    types.Quantity `json:"quantity"`
	By          string         `json:"by"`
	WithinMonth bool           `json:"withinMonth"`
}

// ReportLine reconstructs a batch's activity for one month.
type ReportLine struct {
	BatchID           id.ID          `json:"batchId"`
	MaterialCode      string         `json:"materialCode"`
	Name              string         `json:"name"`
	Status            Status         `json:"status"`
	DeliveredQuantity types.Quantity `json:"deliveredQuantity"`
	RemainingQuantity types.Quantity `json:"remainingQuantity"`
	UnitAmount        types.Money    `json:"unitAmount"`
	Deleted           bool           `json:"deleted"`
	Additions         []ReportEntry  `json:"additions"`
	Consumptions      []ReportEntry  `json:"consumptions"`
	MonthlyAdded      types.Quantity `json:"monthlyAdded"`
	MonthlyConsumed   types.Quantity `json:"monthlyConsumed"`
}

// MonthlyReport is the material report of a project for one month.
type MonthlyReport struct {
	ProjectID     id.ID          `json:"projectId"`
	Year          int            `json:"year"`
	Month         time.Month     `json:"month"`
	From          time.Time      `json:"from"`
	To            time.Time      `json:"to"`
	Lines         []ReportLine   `json:"lines"`
	TotalAdded    types.Quantity `json:"totalAdded"`
	TotalConsumed types.Quantity `json:"totalConsumed"`
}

// MonthBounds returns the first instant of the month and 23:59:59.999 of its
// last day, both in loc. The end is for display; membership is checked with
// inMonth so sub-millisecond timestamps past .999 still count.
func MonthBounds(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0).Add(-time.Millisecond)
	return start, end
}

// inMonth reports start <= t < first instant of the following month.
func inMonth(t, start time.Time) bool {
	return !t.Before(start) && t.Before(start.AddDate(0, 1, 0))
}

// BuildMonthlyReport reconstructs additions and consumptions of batches for
// the month. It reads batches only, so the result depends solely on the
// recorded history.
func BuildMonthlyReport(projectID id.ID, batches []*Batch, year int, month time.Month, loc *time.Location) *MonthlyReport {
	start, end := MonthBounds(year, month, loc)

	ordered := make([]*Batch, len(batches))
	copy(ordered, batches)
	SortFIFO(ordered)

	report := &MonthlyReport{
		ProjectID: projectID,
		Year:      year,
		Month:     month,
		From:      start,
		To:        end,
		Lines:     make([]ReportLine, 0, len(ordered)),
	}

	for _, b := range ordered {
		line := ReportLine{
			BatchID:           b.ID,
			MaterialCode:      b.MaterialCode,
			Name:              b.Name,
			Status:            b.Status,
			DeliveredQuantity: b.DeliveredQuantity,
			RemainingQuantity: b.RemainingQuantity,
			UnitAmount:        b.UnitAmount,
			Deleted:           b.IsDeleted(),
			Consumptions:      make([]ReportEntry, 0, len(b.UsageEvents)),
		}

		added := inMonth(b.DeliveredDate, start)
		line.Additions = []ReportEntry{{
			Date:        b.DeliveredDate,
			Quantity:    b.DeliveredQuantity,
			By:          b.AddedBy,
			WithinMonth: added,
		}}
		if added {
			line.MonthlyAdded = b.DeliveredQuantity
		}

		for _, e := range b.UsageEvents {
			in := inMonth(e.Date, start)
			line.Consumptions = append(line.Consumptions, ReportEntry{
				Date:        e.Date,
				Quantity:    e.Quantity,
				By:          e.TakenBy,
				WithinMonth: in,
			})
			if in {
				line.MonthlyConsumed = line.MonthlyConsumed.Add(e.Quantity)
			}
		}

		report.TotalAdded += line.MonthlyAdded
		report.TotalConsumed = report.TotalConsumed.Add(line.MonthlyConsumed)
		report.Lines = append(report.Lines, line)
	}

	return report
}
