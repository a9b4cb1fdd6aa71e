package join

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/FuzzyCleanse/internal/table"
)

// ConsolidatedName is the name given to merged and stacked tables.
const ConsolidatedName = "consolidated"

// ErrPlanMismatch is returned when a plan does not describe the given tables.
var ErrPlanMismatch = errors.New("join plan does not match tables")

// Summary describes the outcome of Consolidate.
type Summary struct {
	InputCount int      `json:"inputCount"`
	InputRows  int      `json:"inputRows"`
	OutputRows int      `json:"outputRows"`
	Keys       []string `json:"keys"`
	Fields     []string `json:"fields"`
	Strategy   Strategy `json:"strategy"`
	Matched    int      `json:"matched"`
}

// slot identifies one output row group: the n-th occurrence of a key tuple.
type slot struct {
	key string
	occ int
}

// Merge joins tables according to plan.
//
// Rows are grouped by the tuple of key values; Empty key values are
// ordinary values. The n-th row carrying a tuple in a later table joins the
// n-th group with that tuple, so duplicates pair up by occurrence instead
// of multiplying. Rows that match nothing become groups of their own with
// the other tables' fields left Empty.
//
// Output order is the first table's rows, then each later table's unmatched
// rows in their original order. For a non-key field shared by some tables
// the earliest non-empty value wins.
func Merge(tables table.Set, plan Plan) (*table.Table, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	if len(plan.Sources) != len(tables) {
		return nil, fmt.Errorf("%w: %d sources, %d tables", ErrPlanMismatch, len(plan.Sources), len(tables))
	}
	if plan.Identity {
		return tables[0], nil
	}
	if len(plan.Keys) == 0 {
		return nil, &NoCommonFieldError{Sources: plan.Sources}
	}

	rows, _, err := mergeRows(tables, plan)
	if err != nil {
		return nil, err
	}
	return table.New(ConsolidatedName, plan.Fields, rows)
}

func mergeRows(tables table.Set, plan Plan) ([]table.Row, int, error) {
	target := make(map[string]int, len(plan.Fields))
	for i, f := range plan.Fields {
		target[f] = i
	}

	var out []table.Row
	slots := make(map[slot]int, tables.MaxLen())
	matched := 0

	for _, t := range tables {
		fields := t.Fields()
		cols := make([]int, len(fields))
		for i, f := range fields {
			pos, ok := target[f]
			if !ok {
				return nil, 0, fmt.Errorf("%w: field %q of %q not in plan", ErrPlanMismatch, f, t.Name())
			}
			cols[i] = pos
		}

		keyCols := make([]int, len(plan.Keys))
		for i, k := range plan.Keys {
			pos, ok := t.FieldIndex(k)
			if !ok {
				return nil, 0, fmt.Errorf("%w: key %q missing from %q", ErrPlanMismatch, k, t.Name())
			}
			keyCols[i] = pos
		}

		occurrences := make(map[string]int)
		for r := 0; r < t.Len(); r++ {
			k := tupleKey(t, r, keyCols)
			s := slot{key: k, occ: occurrences[k]}
			occurrences[k]++

			idx, found := slots[s]
			if found {
				matched++
			} else {
				idx = len(out)
				slots[s] = idx
				out = append(out, make(table.Row, len(plan.Fields)))
			}

			dst := out[idx]
			for c, pos := range cols {
				if dst[pos].IsEmpty() {
					dst[pos] = t.At(r, c)
				}
			}
		}
	}
	return out, matched, nil
}

func tupleKey(t *table.Table, row int, cols []int) string {
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(t.At(row, c).Key())
	}
	return b.String()
}

// Stack concatenates tables over their union schema. Fields a table lacks
// are Empty. Used when tables share no key.
func Stack(tables table.Set) (*table.Table, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	fields := unionFields(tables)
	target := make(map[string]int, len(fields))
	for i, f := range fields {
		target[f] = i
	}

	rows := make([]table.Row, 0, tables.TotalLen())
	for _, t := range tables {
		src := t.Fields()
		for r := 0; r < t.Len(); r++ {
			row := make(table.Row, len(fields))
			for c, f := range src {
				row[target[f]] = t.At(r, c)
			}
			rows = append(rows, row)
		}
	}
	return table.New(ConsolidatedName, fields, rows)
}

// Fallback selects what Consolidate does when the tables share no key.
type Fallback string

const (
	// FallbackAbort surfaces the NoCommonFieldError to the caller.
	FallbackAbort Fallback = "abort"
	// FallbackStack concatenates the tables instead.
	FallbackStack Fallback = "stack"
)

// ParseFallback parses a fallback name.
func ParseFallback(s string) (Fallback, error) {
	switch Fallback(strings.ToLower(strings.TrimSpace(s))) {
	case FallbackAbort:
		return FallbackAbort, nil
	case FallbackStack:
		return FallbackStack, nil
	default:
		return "", fmt.Errorf("unknown join fallback %q (want abort or stack)", s)
	}
}

// Consolidate plans and merges tables in one step. With FallbackStack a
// missing common key is not an error; the tables are stacked instead.
func Consolidate(tables table.Set, fallback Fallback) (*table.Table, Summary, error) {
	plan, err := NewPlan(tables)
	if err != nil {
		if !errors.Is(err, ErrNoCommonField) || fallback != FallbackStack {
			return nil, Summary{}, err
		}
		out, serr := Stack(tables)
		if serr != nil {
			return nil, Summary{}, serr
		}
		return out, summarize(tables, out, plan, StrategyStack, 0), nil
	}

	if plan.Identity {
		return tables[0], summarize(tables, tables[0], plan, StrategyIdentity, 0), nil
	}

	rows, matched, err := mergeRows(tables, plan)
	if err != nil {
		return nil, Summary{}, err
	}
	out, err := table.New(ConsolidatedName, plan.Fields, rows)
	if err != nil {
		return nil, Summary{}, err
	}
	return out, summarize(tables, out, plan, StrategyJoin, matched), nil
}

func summarize(tables table.Set, out *table.Table, plan Plan, s Strategy, matched int) Summary {
	return Summary{
		InputCount: len(tables),
		InputRows:  tables.TotalLen(),
		OutputRows: out.Len(),
		Keys:       plan.Keys,
		Fields:     out.Fields(),
		Strategy:   s,
		Matched:    matched,
	}
}
