package export

import (
	"path/filepath"
	"strings"
)

// DefaultName is the export file stem for consolidated data.
const DefaultName = "cleaned_data"

// FileName returns the download name for an export. A single source keeps
// its own stem with an "-edited" suffix; consolidated data uses DefaultName.
func FileName(sources []string, f Format) string {
	ext := "." + string(f)
	if len(sources) != 1 {
		return DefaultName + ext
	}
	base := filepath.Base(sources[0])
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." {
		return DefaultName + ext
	}
	return stem + "-edited" + ext
}
