// Package export renders reports into downloadable files.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"sitetrack/internal/domain/materials"
)

const (
	sheetSummary   = "Summary"
	sheetMovements = "Movements"

	// XLSXContentType is the MIME type of workbooks written here.
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	summaryHeader = []any{
		"Batch ID", "Material code", "Name", "Status", "Delivered",
		"Remaining", "Unit amount", "Added in month", "Consumed in month", "Deleted",
	}
	movementsHeader = []any{"Batch ID", "Material code", "Kind", "Date", "Quantity", "By", "Within month"}
)

// MonthlyReportFilename returns the attachment name of a report workbook.
func MonthlyReportFilename(r *materials.MonthlyReport) string {
	return fmt.Sprintf("materials_%04d_%02d.xlsx", r.Year, int(r.Month))
}

// WriteMonthlyReport writes the report as a workbook with a per-batch
// summary sheet and a sheet listing every addition and consumption.
func WriteMonthlyReport(w io.Writer, r *materials.MonthlyReport) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetMovements); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeSummary(f, r, bold); err != nil {
		return err
	}
	if err := writeMovements(f, r, bold); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, r *materials.MonthlyReport, bold int) error {
	title := []any{fmt.Sprintf("Materials %04d-%02d", r.Year, int(r.Month)), r.From.Format(time.DateOnly), r.To.Format(time.DateOnly)}
	if err := f.SetSheetRow(sheetSummary, "A1", &title); err != nil {
		return fmt.Errorf("write title: %w", err)
	}
	if err := writeHeader(f, sheetSummary, 2, summaryHeader, bold); err != nil {
		return err
	}

	row := 3
	for _, l := range r.Lines {
		values := []any{
			l.BatchID.String(),
			l.MaterialCode,
			l.Name,
			string(l.Status),
			l.DeliveredQuantity.Float64(),
			l.RemainingQuantity.Float64(),
			l.UnitAmount.InexactFloat64(),
			l.MonthlyAdded.Float64(),
			l.MonthlyConsumed.Float64(),
			l.Deleted,
		}
		if err := setRow(f, sheetSummary, row, values); err != nil {
			return err
		}
		row++
	}

	totals := []any{"Total", "", "", "", "", "", "", r.TotalAdded.Float64(), r.TotalConsumed.Float64()}
	if err := setRow(f, sheetSummary, row, totals); err != nil {
		return err
	}
	cell, _ := excelize.CoordinatesToCellName(len(totals), row)
	if err := f.SetCellStyle(sheetSummary, fmt.Sprintf("A%d", row), cell, bold); err != nil {
		return fmt.Errorf("style totals: %w", err)
	}
	return f.SetColWidth(sheetSummary, "A", "A", 38)
}

func writeMovements(f *excelize.File, r *materials.MonthlyReport, bold int) error {
	if err := writeHeader(f, sheetMovements, 1, movementsHeader, bold); err != nil {
		return err
	}

	row := 2
	write := func(l materials.ReportLine, kind string, e materials.ReportEntry) error {
		values := []any{
			l.BatchID.String(),
			l.MaterialCode,
			kind,
			e.Date.In(r.From.Location()).Format(time.DateTime),
			e.Quantity.Float64(),
			e.By,
			e.WithinMonth,
		}
		if err := setRow(f, sheetMovements, row, values); err != nil {
			return err
		}
		row++
		return nil
	}

	for _, l := range r.Lines {
		for _, e := range l.Additions {
			if err := write(l, "addition", e); err != nil {
				return err
			}
		}
		for _, e := range l.Consumptions {
			if err := write(l, "consumption", e); err != nil {
				return err
			}
		}
	}
	return f.SetColWidth(sheetMovements, "A", "A", 38)
}

func writeHeader(f *excelize.File, sheet string, row int, header []any, style int) error {
	if err := setRow(f, sheet, row, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), row)
	if err != nil {
		return fmt.Errorf("header cell: %w", err)
	}
	if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), last, style); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("row cell: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
