package dto

import (
	"time"

	"sitetrack/internal/domain/attendance"
)

// MarkAttendanceRequest records one employee's day.
type MarkAttendanceRequest struct {
	EmployeeID string     `json:"employeeId" binding:"required"`
	ProjectID  string     `json:"projectId" binding:"required"`
	WorkDate   string     `json:"workDate"`
	Status     string     `json:"status" binding:"required,oneof=present absent half_day leave"`
	CheckIn    *time.Time `json:"checkIn"`
	CheckOut   *time.Time `json:"checkOut"`
	Note       string     `json:"note"`
	RecordedBy string     `json:"recordedBy"`
}

// ToDomain converts to the service request.
func (r *MarkAttendanceRequest) ToDomain(loc *time.Location) (attendance.MarkRequest, error) {
	employeeID, err := ParseRequiredID("employeeId", r.EmployeeID)
	if err != nil {
		return attendance.MarkRequest{}, err
	}
	projectID, err := ParseRequiredID("projectId", r.ProjectID)
	if err != nil {
		return attendance.MarkRequest{}, err
	}
	day, err := ParseDate("workDate", r.WorkDate, loc)
	if err != nil {
		return attendance.MarkRequest{}, err
	}
	return attendance.MarkRequest{
		EmployeeID: employeeID,
		ProjectID:  projectID,
		WorkDate:   day,
		Status:     attendance.Status(r.Status),
		CheckIn:    r.CheckIn,
		CheckOut:   r.CheckOut,
		Note:       r.Note,
		RecordedBy: r.RecordedBy,
	}, nil
}

// AttendanceListQuery filters GET /attendance.
type AttendanceListQuery struct {
	ListQuery
	EmployeeID string `form:"employeeId"`
	ProjectID  string `form:"projectId"`
	From       string `form:"from"`
	To         string `form:"to"`
}

// ToFilter converts to the domain filter.
func (q AttendanceListQuery) ToFilter(loc *time.Location) (attendance.ListFilter, error) {
	f := attendance.ListFilter{ListFilter: q.ListQuery.ToFilter()}

	var err error
	if f.EmployeeID, err = ParseOptionalID("employeeId", q.EmployeeID); err != nil {
		return f, err
	}
	if f.ProjectID, err = ParseOptionalID("projectId", q.ProjectID); err != nil {
		return f, err
	}
	for _, p := range []struct {
		field string
		raw   string
		dst   **time.Time
	}{{"from", q.From, &f.From}, {"to", q.To, &f.To}} {
		t, err := ParseDate(p.field, p.raw, loc)
		if err != nil {
			return f, err
		}
		if !t.IsZero() {
			d := attendance.DateOf(t, loc)
			*p.dst = &d
		}
	}
	return f, nil
}
