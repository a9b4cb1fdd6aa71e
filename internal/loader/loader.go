// Package loader turns uploaded files into tables.
//
// Supported formats are chosen by file extension:
//
//   - .csv: comma-separated text, optional UTF-8 BOM, invalid UTF-8 replaced
//   - .xlsx, .xlsm: Office Open XML workbooks (first sheet unless Options.Sheet is set)
//   - .xls: legacy BIFF workbooks (first sheet)
//
// The first non-empty row is the header. Blank header cells become
// "column_N" and repeated names get a ".1", ".2" suffix so every table has
// a unique schema. Fully blank data rows are skipped. Cell text is kept as
// given; no type inference is performed.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/FuzzyCleanse/internal/table"
)

var (
	// ErrUnsupportedFormat is returned for file extensions no reader handles.
	ErrUnsupportedFormat = errors.New("unsupported file type")

	// ErrEmptyFile is returned when a file holds no header row.
	ErrEmptyFile = errors.New("empty file")

	// ErrFileTooLarge is returned when a file exceeds Options.MaxSize.
	ErrFileTooLarge = errors.New("file too large")
)

// DefaultMaxSize is the size limit used when Options.MaxSize is zero (100MB).
const DefaultMaxSize int64 = 100 * 1024 * 1024

// Options tunes loading.
type Options struct {
	// MaxSize caps the number of bytes read from the source.
	MaxSize int64
	// Sheet selects a workbook sheet by name. Empty means the first sheet.
	Sheet string
}

// Format is a supported input format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// DetectFormat maps a file name to its format by extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	case ".xlsb":
		return "", fmt.Errorf("%w: %s (binary workbooks are not supported, save as .xlsx)", ErrUnsupportedFormat, filepath.Base(name))
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(name))
	}
}

// Load reads r as the format implied by name and returns a table named
// after the file's base name.
func Load(name string, r io.Reader, opts Options) (*table.Table, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}

	data, err := readLimited(r, opts.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(name), err)
	}

	var records [][]string
	switch format {
	case FormatCSV:
		records, err = parseCSV(data)
	case FormatXLSX:
		records, err = readXLSX(data, opts.Sheet)
	case FormatXLS:
		records, err = readXLS(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(name), err)
	}

	t, err := fromRecords(filepath.Base(name), records)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(name), err)
	}
	return t, nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		max = DefaultMaxSize
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: exceeds %dMB limit", ErrFileTooLarge, max/(1024*1024))
	}
	return data, nil
}

// fromRecords builds a table from raw records: header detection, header
// de-duplication and blank-row skipping.
func fromRecords(name string, records [][]string) (*table.Table, error) {
	start := -1
	for i, rec := range records {
		if !isEmptyRow(rec) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, ErrEmptyFile
	}

	var data [][]string
	width := 0
	for _, rec := range records[start+1:] {
		if isEmptyRow(rec) {
			continue
		}
		data = append(data, rec)
		width = max(width, filledWidth(rec))
	}
	return table.FromStrings(name, buildHeader(records[start], width), data)
}

// buildHeader names at least minWidth columns. Trailing blank header cells
// beyond that are spreadsheet padding and dropped.
func buildHeader(raw []string, minWidth int) []string {
	n := len(raw)
	for n > 0 && cleanCell(raw[n-1]) == "" {
		n--
	}
	n = max(n, minWidth)

	header := make([]string, n)
	used := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		var h string
		if i < len(raw) {
			h = cleanCell(raw[i])
		}
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if used[h] {
			base := h
			for k := 1; used[h]; k++ {
				h = fmt.Sprintf("%s.%d", base, k)
			}
		}
		used[h] = true
		header[i] = h
	}
	return header
}

// filledWidth is the index of the last non-blank cell plus one.
func filledWidth(row []string) int {
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	return n
}

// cleanCell strips the artifacts spreadsheets leave on header cells:
// surrounding whitespace, an Excel text-formula wrapper (="...") and quotes.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(strings.Trim(s, `"'`))
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// stripBOM removes a leading UTF-8 byte order mark.
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}
