package filter

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/FuzzyCleanse/internal/table"
)

// DefaultParallelMinRows is the row count from which Executor splits work
// across goroutines.
const DefaultParallelMinRows = 20000

// Result is the outcome of applying a rule set.
type Result struct {
	// Table holds the surviving rows in their original order.
	Table *table.Table `json:"-"`
	// InputRows is the row count before filtering.
	InputRows int `json:"inputRows"`
	// OutputRows is the row count after filtering.
	OutputRows int `json:"outputRows"`
	// Failed counts, per field, the rows that did not satisfy that field's
	// rule. A row failing several rules is counted once per rule.
	Failed map[string]int `json:"failed"`
	// MissingFields lists ruled fields absent from the table's schema. Their
	// cells are treated as Empty.
	MissingFields []string `json:"missingFields,omitempty"`
}

// Executor applies rule sets to tables.
type Executor struct {
	matcher         *Matcher
	workers         int
	parallelMinRows int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithWorkers sets the number of goroutines used for large tables.
// Values below 1 select runtime.GOMAXPROCS(0).
func WithWorkers(n int) ExecutorOption {
	return func(e *Executor) { e.workers = n }
}

// WithParallelMinRows sets the row count from which evaluation runs in parallel.
func WithParallelMinRows(n int) ExecutorOption {
	return func(e *Executor) { e.parallelMinRows = n }
}

// NewExecutor returns an Executor using m. A nil m uses NewMatcher(nil).
func NewExecutor(m *Matcher, opts ...ExecutorOption) *Executor {
	if m == nil {
		m = NewMatcher(nil)
	}
	e := &Executor{
		matcher:         m,
		parallelMinRows: DefaultParallelMinRows,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	if e.parallelMinRows < 1 {
		e.parallelMinRows = DefaultParallelMinRows
	}
	return e
}

// Apply filters t with the rules in a fresh sequential Executor.
func Apply(t *table.Table, rules RuleSet) *table.Table {
	// A sequential run with a background context never returns an error.
	res, err := NewExecutor(nil, WithWorkers(1)).Run(context.Background(), t, rules)
	if err != nil {
		panic(err)
	}
	return res.Table
}

// Run filters t. A row survives when it satisfies every rule; fields
// without a rule impose nothing. Row order is preserved and neither t nor
// rules are modified, so Run can be repeated freely. The only error is ctx
// cancellation during a parallel run.
func (e *Executor) Run(ctx context.Context, t *table.Table, rules RuleSet) (*Result, error) {
	compiled, missing := e.compileAll(t, rules)

	res := &Result{
		InputRows:     t.Len(),
		Failed:        make(map[string]int, len(compiled)),
		MissingFields: missing,
	}
	for _, c := range compiled {
		res.Failed[c.Field] = 0
	}

	if len(compiled) == 0 {
		res.Table = t
		res.OutputRows = t.Len()
		return res, nil
	}

	keep := make([]bool, t.Len())
	failed := make([][]int, 0, 1)

	if e.workers > 1 && t.Len() >= e.parallelMinRows {
		chunks := e.workers
		size := (t.Len() + chunks - 1) / chunks
		failed = make([][]int, chunks)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for w := 0; w < chunks; w++ {
			lo, hi := w*size, min((w+1)*size, t.Len())
			if lo >= hi {
				continue
			}
			counts := make([]int, len(compiled))
			failed[w] = counts
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				evaluate(t, compiled, lo, hi, keep, counts)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		counts := make([]int, len(compiled))
		evaluate(t, compiled, 0, t.Len(), keep, counts)
		failed = append(failed, counts)
	}

	for _, counts := range failed {
		for i, n := range counts {
			res.Failed[compiled[i].Field] += n
		}
	}

	indices := make([]int, 0, t.Len())
	for i, ok := range keep {
		if ok {
			indices = append(indices, i)
		}
	}
	res.Table = t.Subset(indices)
	res.OutputRows = len(indices)
	return res, nil
}

// evaluate decides rows [lo, hi). Each call writes only its own range of
// keep and its own counts slice.
func evaluate(t *table.Table, compiled []*compiledRule, lo, hi int, keep []bool, counts []int) {
	for row := lo; row < hi; row++ {
		ok := true
		for i, c := range compiled {
			cell := table.Empty()
			if c.present {
				cell = t.At(row, c.col)
			}
			if !c.keep(cell) {
				counts[i]++
				ok = false
			}
		}
		keep[row] = ok
	}
}

func (e *Executor) compileAll(t *table.Table, rules RuleSet) ([]*compiledRule, []string) {
	var compiled []*compiledRule
	var missing []string
	for _, field := range rules.Fields() {
		r := rules[field]
		if len(r.Keywords) == 0 {
			continue
		}
		col, ok := t.FieldIndex(field)
		c := e.matcher.compile(r, col)
		c.Field = field
		c.present = ok
		if !ok {
			missing = append(missing, field)
		}
		compiled = append(compiled, c)
	}
	return compiled, missing
}
