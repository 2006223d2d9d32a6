package importer

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// SheetRow is one raw spreadsheet row. RowIndex is the 0-based file row; the
// displayed row number is RowIndex+1.
type SheetRow struct {
	Sheet    string
	RowIndex int
	Cells    []string
}

// ReadWorkbook turns an XLSX byte blob into a flat list of rows. The first
// skipRows rows of every sheet are dropped (the header). Sheets with fewer
// rows than skipRows are ignored. A sheet whose header row does not carry
// expectedColumns cells, or any cell that is not stored as text, aborts the
// batch with a fatal SCHEMA error; the returned bool reports success.
func ReadWorkbook(rep *Report, data []byte, skipRows, expectedColumns int) ([]SheetRow, bool) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		rep.AddError(fmt.Sprintf("Couldn't read the file. Make sure it is a valid Excel workbook. Error: %v", err), CategorySchema)
		return nil, false
	}
	defer func() { _ = f.Close() }()

	var out []SheetRow
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			rep.AddError(fmt.Sprintf("Couldn't read sheet '%s'. Error: %v", sheet, err), CategorySchema)
			return nil, false
		}
		if len(rows) < skipRows {
			continue
		}
		if len(rows) > 0 && len(rows[0]) != expectedColumns {
			rep.AddError(
				fmt.Sprintf("Sheet '%s' has %d columns, expected %d. No data was imported.", sheet, len(rows[0]), expectedColumns),
				CategorySchema,
			)
			return nil, false
		}

		ok := true
		for i := skipRows; i < len(rows); i++ {
			if len(rows[i]) > expectedColumns {
				rep.AddError(
					fmt.Sprintf("Sheet '%s', row %d has %d columns, expected %d. No data was imported.", sheet, i+1, len(rows[i]), expectedColumns),
					CategorySchema,
				)
				return nil, false
			}
			if !checkCellTypes(rep, f, sheet, i, len(rows[i])) {
				ok = false
			}
			out = append(out, SheetRow{Sheet: sheet, RowIndex: i, Cells: rows[i]})
		}
		if !ok {
			return nil, false
		}
		rep.AddSuccess(fmt.Sprintf("Successfully read sheet '%s'.", sheet), CategoryResult)
	}
	return out, true
}

// checkCellTypes rejects cells that are stored as numbers, dates or booleans.
// Identity columns (emails, names) must be pre-formatted as text; silently
// accepting formatted numbers has produced truncated matriculation numbers
// before.
func checkCellTypes(rep *Report, f *excelize.File, sheet string, rowIndex, columns int) bool {
	ok := true
	for col := 0; col < columns; col++ {
		cell, err := excelize.CoordinatesToCellName(col+1, rowIndex+1)
		if err != nil {
			continue
		}
		value, err := f.GetCellValue(sheet, cell)
		if err != nil || value == "" {
			continue
		}
		cellType, err := f.GetCellType(sheet, cell)
		if err != nil {
			continue
		}
		switch cellType {
		case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula, excelize.CellTypeError:
			// stored as text
		default:
			rep.AddError(
				fmt.Sprintf("%s: The cell %s contains a non-text value. Please format all cells as text.", Location{Sheet: sheet, Row: rowIndex + 1}, cell),
				CategorySchema,
			)
			ok = false
		}
	}
	return ok
}
