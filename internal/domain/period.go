package domain

import (
	"time"

	"sitetrack/internal/core/apperror"
)

// ValidatePeriod checks the year/month pair of a monthly report request.
func ValidatePeriod(year, month int) error {
	if month < 1 || month > 12 {
		return apperror.NewValidation("month must be between 1 and 12").WithDetail("month", month)
	}
	if year < 2000 || year > 2100 {
		return apperror.NewValidation("year out of range").WithDetail("year", year)
	}
	return nil
}

// MonthDays returns the first and last calendar day of a month as UTC
// midnights, suitable for DATE columns.
func MonthDays(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}
