package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/clinicdesk/clinicdesk/internal/platform/backend"
)

// RevenueXLSX builds the revenue rollup as a spreadsheet: one row per day
// plus a totals footer.
func RevenueXLSX(clinicName, from, to string, rows []backend.RevenueRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Revenue"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Date", "Bills", "Gross", "Discounts", "Net"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for i, row := range rows {
		values := []interface{}{row.Date, row.BillCount, row.GrossTotal, row.Discounts, row.NetTotal}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", i, err)
			}
		}
	}

	totals := SumRevenue(rows)
	footerRow := len(rows) + 2
	footer := []interface{}{"Total", totals.Bills, totals.Gross, totals.Discounts, totals.Net}
	for j, v := range footer {
		cell, _ := excelize.CoordinatesToCellName(j+1, footerRow)
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return nil, fmt.Errorf("write totals: %w", err)
		}
	}

	title := fmt.Sprintf("%s %s..%s", clinicName, from, to)
	if err := f.SetDocProps(&excelize.DocProperties{Title: title}); err != nil {
		return nil, fmt.Errorf("set doc props: %w", err)
	}
	return f.WriteToBuffer()
}
