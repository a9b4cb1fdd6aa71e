package loader

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// readXLSX returns the rows of the named sheet, or of the first sheet when
// sheet is empty.
func readXLSX(data []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, ErrEmptyFile
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// readXLS returns the rows of the first sheet of a legacy workbook.
func readXLS(data []byte) ([][]string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	if wb == nil {
		return nil, fmt.Errorf("open workbook: no workbook stream")
	}
	if wb.NumSheets() == 0 {
		return nil, ErrEmptyFile
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrEmptyFile
	}

	rows := make([]*xls.Row, int(sheet.MaxRow)+1)
	width := 0
	for i := range rows {
		rows[i] = xlsRow(sheet, i)
		if rows[i] != nil {
			width = max(width, rows[i].LastCol())
		}
	}

	records := make([][]string, len(rows))
	for i, row := range rows {
		if row == nil {
			continue
		}
		// Rows without a ROW record report LastCol 0, so read the sheet width.
		rec := make([]string, max(width, row.LastCol()))
		for c := range rec {
			rec[c] = row.Col(c)
		}
		records[i] = rec
	}
	return records, nil
}

// xlsRow returns row i, or nil when the sheet has no cells in it.
// WorkSheet.Row dereferences a nil entry for blank rows.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}
