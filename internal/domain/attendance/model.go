// Package attendance records daily presence of employees on project sites
// and derives the monthly payroll summary.
package attendance

import (
	"time"

	"github.com/shopspring/decimal"

	"sitetrack/internal/core/id"
	"sitetrack/internal/core/types"
	"sitetrack/internal/domain"
)

// Status is the attendance mark for one work day.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusHalfDay Status = "half_day"
	StatusLeave   Status = "leave"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusHalfDay, StatusLeave:
		return true
	}
	return false
}

// Record is the attendance of one employee on one day. An employee has at
// most one record per day; marking again replaces it.
type Record struct {
	ID         id.ID      `db:"id" json:"id"`
	EmployeeID id.ID      `db:"employee_id" json:"employeeId"`
	ProjectID  id.ID      `db:"project_id" json:"projectId"`
	WorkDate   time.Time  `db:"work_date" json:"workDate"`
	Status     Status     `db:"status" json:"status"`
	CheckIn    *time.Time `db:"check_in" json:"checkIn,omitempty"`
	CheckOut   *time.Time `db:"check_out" json:"checkOut,omitempty"`
	Note       string     `db:"note" json:"note,omitempty"`
	RecordedBy string     `db:"recorded_by" json:"recordedBy"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
}

// MarkRequest records attendance for a day.
type MarkRequest struct {
	EmployeeID id.ID
	ProjectID  id.ID
	WorkDate   time.Time
	Status     Status
	CheckIn    *time.Time
	CheckOut   *time.Time
	Note       string
	RecordedBy string
}

// ListFilter narrows attendance listings. From/To are inclusive dates.
type ListFilter struct {
	domain.ListFilter

	EmployeeID *id.ID
	ProjectID  *id.ID
	From       *time.Time
	To         *time.Time
}

// EmployeeSummary is one employee's line in the monthly summary.
type EmployeeSummary struct {
	EmployeeID id.ID           `json:"employeeId"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Present    int             `json:"present"`
	Absent     int             `json:"absent"`
	HalfDay    int             `json:"halfDay"`
	Leave      int             `json:"leave"`
	WorkedDays decimal.Decimal `json:"workedDays"`
	DailyWage  types.Money     `json:"dailyWage"`
	Payable    types.Money     `json:"payable"`
}

// MonthlySummary aggregates attendance of a project for one month.
type MonthlySummary struct {
	ProjectID    id.ID             `json:"projectId"`
	Year         int               `json:"year"`
	Month        time.Month        `json:"month"`
	Lines        []EmployeeSummary `json:"lines"`
	TotalPayable types.Money       `json:"totalPayable"`
}

// DateOf truncates t to its calendar day in loc, returned as UTC midnight.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
