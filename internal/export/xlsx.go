package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/FuzzyCleanse/internal/table"
)

// SheetName is the worksheet XLSX exports are written to.
const SheetName = "Sheet1"

// WriteXLSX writes t as a single-sheet workbook. Numeric values are written
// as numbers, text as strings and Empty cells are left blank.
func WriteXLSX(w io.Writer, t *table.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}

	header := make([]interface{}, t.Width())
	for i, name := range t.Fields() {
		header[i] = name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]interface{}, t.Width())
	for i := 0; i < t.Len(); i++ {
		for c := range row {
			row[c] = cellValue(t.At(i, c))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return f.Write(w)
}

func cellValue(v table.Value) interface{} {
	switch v.Kind() {
	case table.KindEmpty:
		return nil
	case table.KindNumber:
		f, _ := v.Float()
		return f
	default:
		return v.String()
	}
}
