// Package join consolidates several source tables into one.
//
// NewPlan discovers the join keys (fields shared by every table) and the
// union schema. Merge executes a plan with full-outer semantics: every
// source row ends up in exactly one output row. Stack is the fallback used
// when the sources share no field at all.
package join

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/FuzzyCleanse/internal/table"
)

// ErrNoCommonField is matched by NoCommonFieldError via errors.Is.
var ErrNoCommonField = errors.New("no common key field")

// NoCommonFieldError is returned when two or more tables share no field name.
type NoCommonFieldError struct {
	Sources []string
}

func (e *NoCommonFieldError) Error() string {
	return fmt.Sprintf("no common key field across %d tables (%s)",
		len(e.Sources), strings.Join(e.Sources, ", "))
}

// Is makes errors.Is(err, ErrNoCommonField) hold.
func (e *NoCommonFieldError) Is(target error) bool {
	return target == ErrNoCommonField
}

// Strategy names how a consolidated table was produced.
type Strategy string

const (
	StrategyIdentity Strategy = "identity"
	StrategyJoin     Strategy = "join"
	StrategyStack    Strategy = "stack"
)

// Plan describes how to merge a table set.
type Plan struct {
	// Keys are the fields present in every table, sorted.
	Keys []string
	// Fields is the union schema in first-appearance order.
	Fields []string
	// Sources are the input table names, in order.
	Sources []string
	// Identity is set when the set holds a single table and no merge happens.
	Identity bool
}

// NewPlan computes the join plan for tables. A single table yields an
// identity plan. Two or more tables without a shared field yield a
// *NoCommonFieldError.
func NewPlan(tables table.Set) (Plan, error) {
	if err := tables.Validate(); err != nil {
		return Plan{}, err
	}

	plan := Plan{
		Fields:  unionFields(tables),
		Sources: tables.Names(),
	}

	if len(tables) == 1 {
		plan.Identity = true
		return plan, nil
	}

	plan.Keys = commonFields(tables)
	if len(plan.Keys) == 0 {
		return plan, &NoCommonFieldError{Sources: plan.Sources}
	}
	return plan, nil
}

// Strategy returns the strategy this plan executes.
func (p Plan) Strategy() Strategy {
	if p.Identity {
		return StrategyIdentity
	}
	return StrategyJoin
}

func unionFields(tables table.Set) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range tables {
		for _, f := range t.Fields() {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

func commonFields(tables table.Set) []string {
	var keys []string
	for _, f := range tables[0].Fields() {
		shared := true
		for _, t := range tables[1:] {
			if !t.Has(f) {
				shared = false
				break
			}
		}
		if shared {
			keys = append(keys, f)
		}
	}
	sort.Strings(keys)
	return keys
}
