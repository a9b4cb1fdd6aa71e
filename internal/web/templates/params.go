// Package templates holds the HTML views. The *_templ.go files are
// generated from the .templ sources with `templ generate`.
package templates

// IndexParams feeds IndexPage.
type IndexParams struct {
	MaxFiles        int
	DatabaseEnabled bool
}

// ResultParams feeds ResultTable. Rows holds at most the preview rows;
// Kept and Total are the counts of the whole run.
type ResultParams struct {
	Kept   int
	Total  int
	Fields []string
	Rows   [][]string
}

// Truncated reports whether the preview shows fewer rows than were kept.
func (p ResultParams) Truncated() bool {
	return len(p.Rows) < p.Kept
}

// AlertParams feeds ErrorAlert.
type AlertParams struct {
	Message string
	Action  string
	Code    string
}
