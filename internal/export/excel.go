// Package export renders cost sheets as XLSX workbooks.
package export

import (
	"bytes"
	"fmt"

	"costing-service/internal/costing"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Cost Sheet"

// SheetWorkbook renders one cost sheet, its lines, the computed costing
// result, and an optional what-if scenario table into a single-sheet XLSX
// workbook. Displayed amounts come from the result's display figures so the
// export matches the API's reported values.
func SheetWorkbook(sheet *costing.CostSheet, lines []costing.CostLineItem, result costing.Result, scenarios []costing.Scenario) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	// Header block
	number := ""
	if sheet.SheetNumber != nil {
		number = *sheet.SheetNumber
	}
	header := [][]any{
		{"Sheet", number},
		{"Style", sheet.Style},
		{"Description", sheet.Description},
		{"Version", sheet.Version},
		{"Status", string(sheet.Status)},
		{"Currency", sheet.Currency},
		{"Target quantity", sheet.TargetQuantity},
		{"Overhead method", string(sheet.OverheadMethod)},
	}
	row := 1
	for _, pair := range header {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), pair[0])
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), pair[1])
		row++
	}
	row++

	// Line items
	for col, title := range []string{"#", "Section", "Name", "Consumption", "Unit", "Waste %", "Rate", "Setup cost"} {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		f.SetCellValue(sheetName, cell, title)
	}
	row++
	for _, l := range lines {
		values := []any{l.LineNumber, string(l.Section), l.Name, l.ConsumptionPerPiece.String(),
			l.Unit, l.WastePercent.String(), l.Rate.String(), l.SetupCost.String()}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheetName, cell, v)
		}
		row++
	}
	row++

	// Section breakdown
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Section")
	f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), "Unit cost")
	f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), "Share %")
	row++
	for _, b := range result.Sections {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), string(b.Section))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), b.UnitCost.StringFixed(2))
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), b.SharePercent.StringFixed(2))
		row++
	}
	row++

	// Totals from the display figures
	totals := [][]any{
		{"Total cost / piece", result.Display.TotalCostPerPiece.String()},
		{"Quote price / piece", result.Display.QuotePricePerPiece.String()},
		{"Profit / piece", result.Display.ProfitPerPiece.String()},
		{"Margin %", result.Display.MarginPercent.String()},
		{"Total quote value", result.Display.TotalQuoteValue.String()},
	}
	for _, pair := range totals {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), pair[0])
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), pair[1])
		row++
	}

	// Scenario table
	if len(scenarios) > 0 {
		row++
		for col, title := range []string{"Quantity", "Cost / piece", "Quote / piece", "Total quote value"} {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheetName, cell, title)
		}
		row++
		for _, sc := range scenarios {
			values := []any{sc.Quantity, sc.Result.Display.TotalCostPerPiece.String(),
				sc.Result.Display.QuotePricePerPiece.String(), sc.Result.Display.TotalQuoteValue.String()}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				f.SetCellValue(sheetName, cell, v)
			}
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
