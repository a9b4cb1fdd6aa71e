// Package table defines the in-memory tabular model shared by the join,
// filter, loader and export packages.
//
// A Table has a fixed, ordered schema and an ordered list of rows. Every row
// holds exactly one Value per field; missing data is the Empty marker rather
// than an absent key, so later stages can assume total field presence.
// Tables are immutable once built: accessors hand out copies and every
// transformation produces a new Table.
package table

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoFields is returned when a table is built without any field names.
	ErrNoFields = errors.New("table has no fields")

	// ErrBlankField is returned when a field name is empty or whitespace.
	ErrBlankField = errors.New("blank field name")

	// ErrEmptySet is returned when a Set contains no tables.
	ErrEmptySet = errors.New("table set is empty")
)

// DuplicateFieldError reports a field name that appears twice in one schema.
type DuplicateFieldError struct {
	Table string
	Field string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("table %q: duplicate field %q", e.Table, e.Field)
}

// Row is one record, positionally aligned with its table's fields.
type Row []Value

// Table is an immutable, ordered collection of rows over a fixed schema.
type Table struct {
	name   string
	fields []string
	index  map[string]int
	rows   []Row
}

// New builds a table. Rows shorter than the schema are padded with Empty
// and longer rows are truncated. The inputs are copied.
func New(name string, fields []string, rows []Row) (*Table, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("table %q: %w", name, ErrNoFields)
	}

	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if strings.TrimSpace(f) == "" {
			return nil, fmt.Errorf("table %q: field %d: %w", name, i+1, ErrBlankField)
		}
		if _, dup := index[f]; dup {
			return nil, &DuplicateFieldError{Table: name, Field: f}
		}
		index[f] = i
	}

	t := &Table{
		name:   name,
		fields: append([]string(nil), fields...),
		index:  index,
		rows:   make([]Row, len(rows)),
	}
	for i, r := range rows {
		t.rows[i] = fit(r, len(fields))
	}
	return t, nil
}

// MustNew is like New but panics on error. Intended for tests and literals.
func MustNew(name string, fields []string, rows []Row) *Table {
	t, err := New(name, fields, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// FromStrings builds a table from text records, converting each cell with Cell.
func FromStrings(name string, fields []string, records [][]string) (*Table, error) {
	rows := make([]Row, len(records))
	for i, rec := range records {
		row := make(Row, len(rec))
		for j, s := range rec {
			row[j] = Cell(s)
		}
		rows[i] = row
	}
	return New(name, fields, rows)
}

func fit(r Row, width int) Row {
	out := make(Row, width)
	copy(out, r)
	return out
}

// Name returns the table's source name.
func (t *Table) Name() string { return t.name }

// Fields returns a copy of the schema.
func (t *Table) Fields() []string { return append([]string(nil), t.fields...) }

// Width returns the number of fields.
func (t *Table) Width() int { return len(t.fields) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Has reports whether field is part of the schema.
func (t *Table) Has(field string) bool {
	_, ok := t.index[field]
	return ok
}

// FieldIndex returns the schema position of field.
func (t *Table) FieldIndex(field string) (int, bool) {
	i, ok := t.index[field]
	return i, ok
}

// Row returns a copy of row i.
func (t *Table) Row(i int) Row {
	return append(Row(nil), t.rows[i]...)
}

// At returns the value at row i, column col.
func (t *Table) At(i, col int) Value {
	return t.rows[i][col]
}

// Value returns the cell for field in row i, or Empty when the field is
// not part of the schema.
func (t *Table) Value(i int, field string) Value {
	col, ok := t.index[field]
	if !ok {
		return Empty()
	}
	return t.rows[i][col]
}

// Records returns every row as text, in schema order.
func (t *Table) Records() [][]string {
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		rec := make([]string, len(r))
		for j, v := range r {
			rec[j] = v.String()
		}
		out[i] = rec
	}
	return out
}

// Distinct returns the distinct non-empty text values of field in
// first-seen order. Nil when the field does not exist.
func (t *Table) Distinct(field string) []string {
	col, ok := t.index[field]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t.rows {
		v := r[col]
		if v.IsEmpty() {
			continue
		}
		s := v.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Subset returns a new table holding the rows at the given indices, in the
// order given. Rows are shared with t, which is safe because rows are never
// mutated after construction.
func (t *Table) Subset(indices []int) *Table {
	rows := make([]Row, len(indices))
	for i, idx := range indices {
		rows[i] = t.rows[idx]
	}
	return &Table{name: t.name, fields: t.fields, index: t.index, rows: rows}
}

// Head returns at most n leading rows.
func (t *Table) Head(n int) *Table {
	if n < 0 || n >= len(t.rows) {
		return t
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return t.Subset(idx)
}

// Rename returns t under a different name.
func (t *Table) Rename(name string) *Table {
	return &Table{name: name, fields: t.fields, index: t.index, rows: t.rows}
}

// Equal reports whether both tables have the same schema and rows.
// Names are ignored.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.fields) != len(o.fields) || len(t.rows) != len(o.rows) {
		return false
	}
	for i := range t.fields {
		if t.fields[i] != o.fields[i] {
			return false
		}
	}
	for i := range t.rows {
		for j := range t.rows[i] {
			if !t.rows[i][j].Equal(o.rows[i][j]) {
				return false
			}
		}
	}
	return true
}

// Set is an ordered list of tables, one per source.
type Set []*Table

// Validate checks that the set is non-empty and holds no nil tables.
func (s Set) Validate() error {
	if len(s) == 0 {
		return ErrEmptySet
	}
	for i, t := range s {
		if t == nil {
			return fmt.Errorf("table %d is nil", i)
		}
	}
	return nil
}

// Names returns the source names in order.
func (s Set) Names() []string {
	out := make([]string, len(s))
	for i, t := range s {
		out[i] = t.name
	}
	return out
}

// MaxLen returns the largest row count in the set.
func (s Set) MaxLen() int {
	m := 0
	for _, t := range s {
		if t.Len() > m {
			m = t.Len()
		}
	}
	return m
}

// TotalLen returns the sum of row counts.
func (s Set) TotalLen() int {
	n := 0
	for _, t := range s {
		n += t.Len()
	}
	return n
}
