package filter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/FuzzyCleanse/internal/similarity"
	"github.com/JonMunkholm/FuzzyCleanse/internal/table"
)

func namesTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.FromStrings("people", []string{"name", "city"}, [][]string{
		{"Alice", "Paris"},
		{"Bob", "London"},
		{"alice", "Berlin"},
	})
	require.NoError(t, err)
	return tbl
}

func column(tbl *table.Table, field string) []string {
	out := make([]string, tbl.Len())
	for i := range out {
		out[i] = tbl.Value(i, field).String()
	}
	return out
}

func TestParseModeAndMatchType(t *testing.T) {
	m, err := ParseMode(" Exclude ")
	require.NoError(t, err)
	assert.Equal(t, Exclude, m)

	mt, err := ParseMatchType("FUZZY")
	require.NoError(t, err)
	assert.Equal(t, Fuzzy, mt)

	_, err = ParseMode("keep")
	assert.ErrorIs(t, err, ErrInvalidRule)
	_, err = ParseMatchType("regex")
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestRule_JSON(t *testing.T) {
	var r Rule
	require.NoError(t, json.Unmarshal([]byte(`{"field":"name","mode":"exclude","match":"fuzzy","keywords":["a"],"threshold":70}`), &r))
	assert.Equal(t, Rule{Field: "name", Mode: Exclude, Match: Fuzzy, Keywords: []string{"a"}, Threshold: 70}, r)

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"field":"name","mode":"exclude","match":"fuzzy","keywords":["a"],"threshold":70}`, string(b))
}

func TestParseKeywords(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d"}, ParseKeywords(" a, b c ,, d ,"))
	assert.Nil(t, ParseKeywords(" , "))
}

func TestStore_SetOverwritesAndClears(t *testing.T) {
	s := NewStore(0)

	require.NoError(t, s.Set(Rule{Field: "name", Mode: Include, Match: Exact, Keywords: []string{"alice"}}))
	require.NoError(t, s.Set(Rule{Field: "name", Mode: Exclude, Match: Exact, Keywords: []string{"bob"}}))

	r, ok := s.Get("name")
	require.True(t, ok)
	assert.Equal(t, Exclude, r.Mode)
	assert.Equal(t, []string{"bob"}, r.Keywords)
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.Clear("name"))
	assert.False(t, s.Clear("name"))
	assert.Equal(t, 0, s.Len())
}

func TestStore_EmptyKeywordsRemoveRule(t *testing.T) {
	s := NewStore(0)
	require.NoError(t, s.Set(Rule{Field: "name", Keywords: []string{"  ", ""}}))
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Set(Rule{Field: "name", Keywords: []string{"x"}}))
	require.NoError(t, s.Set(Rule{Field: "name", Keywords: nil}))
	assert.Equal(t, 0, s.Len())
}

func TestStore_NormalizesKeywords(t *testing.T) {
	s := NewStore(0)
	require.NoError(t, s.Set(Rule{Field: "f", Keywords: []string{" Alice ", "ALICE", "bob", "alice"}}))
	r, _ := s.Get("f")
	assert.Equal(t, []string{"Alice", "bob"}, r.Keywords)
}

func TestStore_InvalidThresholdLeavesStateUnchanged(t *testing.T) {
	s := NewStore(0)
	require.NoError(t, s.Set(Rule{Field: "name", Match: Fuzzy, Keywords: []string{"x"}, Threshold: 90}))
	before := s.Active()
	depth := s.UndoDepth()

	for _, th := range []float64{150, -1, 100.5} {
		err := s.Set(Rule{Field: "name", Match: Fuzzy, Keywords: []string{"y"}, Threshold: th})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidThreshold))

		var ite *InvalidThresholdError
		require.True(t, errors.As(err, &ite))
		assert.Equal(t, th, ite.Threshold)
	}

	assert.Equal(t, before, s.Active())
	assert.Equal(t, depth, s.UndoDepth())
}

func TestStore_ExactIgnoresThreshold(t *testing.T) {
	s := NewStore(0)
	require.NoError(t, s.Set(Rule{Field: "f", Match: Exact, Keywords: []string{"x"}, Threshold: 500}))
	r, _ := s.Get("f")
	assert.Equal(t, 0.0, r.Threshold)
}

func TestStore_Undo(t *testing.T) {
	s := NewStore(0)
	assert.False(t, s.Undo())

	require.NoError(t, s.Set(Rule{Field: "a", Keywords: []string{"1"}}))
	require.NoError(t, s.Set(Rule{Field: "b", Keywords: []string{"2"}}))
	require.NoError(t, s.Set(Rule{Field: "a", Keywords: []string{"3"}}))
	s.Clear("b")

	require.True(t, s.Undo())
	assert.Equal(t, []string{"a", "b"}, s.Active().Fields())

	require.True(t, s.Undo())
	r, _ := s.Get("a")
	assert.Equal(t, []string{"1"}, r.Keywords)

	require.True(t, s.Undo())
	require.True(t, s.Undo())
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Undo())
}

func TestStore_UnchangedSetSkipsHistory(t *testing.T) {
	s := NewStore(0)
	rule := Rule{Field: "a", Keywords: []string{"1"}}
	require.NoError(t, s.Set(rule))
	require.NoError(t, s.Set(rule))
	assert.Equal(t, 1, s.UndoDepth())
}

func TestStore_HistoryLimit(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Set(Rule{Field: "a", Keywords: []string{fmt.Sprint(i)}}))
	}
	assert.Equal(t, 3, s.UndoDepth())
	for s.Undo() {
	}
	r, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, []string{"6"}, r.Keywords)
}

func TestStore_ActiveIsSnapshot(t *testing.T) {
	s := NewStore(0)
	require.NoError(t, s.Set(Rule{Field: "a", Keywords: []string{"1"}}))
	snap := s.Active()
	r := snap["a"]
	r.Keywords[0] = "mutated"
	got, _ := s.Get("a")
	assert.Equal(t, []string{"1"}, got.Keywords)

	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Len(t, snap, 1)
	require.True(t, s.Undo())
	assert.Equal(t, 1, s.Len())
}

func TestMatcher_Exact(t *testing.T) {
	m := NewMatcher(nil)
	r := Rule{Field: "name", Mode: Include, Match: Exact, Keywords: []string{"alice", "carol"}}

	assert.True(t, m.Matches(table.Str("Alice"), r))
	assert.True(t, m.Matches(table.Str("  ALICE "), r))
	assert.True(t, m.Matches(table.Str("carol"), r))
	assert.False(t, m.Matches(table.Str("alicia"), r))
	assert.False(t, m.Matches(table.Empty(), r))
	assert.False(t, m.Matches(table.Str("   "), r))
	assert.True(t, m.Matches(table.Num(42), Rule{Match: Exact, Keywords: []string{"42"}}))
}

func TestMatcher_FuzzyThresholdBoundary(t *testing.T) {
	m := NewMatcher(similarity.Ratio)
	cell := table.Str("color")
	score := similarity.Ratio("color", "colour")
	require.InDelta(t, 83.33, score, 0.01)

	rule := func(th float64) Rule {
		return Rule{Field: "c", Mode: Include, Match: Fuzzy, Keywords: []string{"colour"}, Threshold: th}
	}

	assert.True(t, m.Matches(cell, rule(score)), "threshold == score must match")
	assert.True(t, m.Matches(cell, rule(score-1)))
	assert.False(t, m.Matches(cell, rule(score+1)))
	assert.Equal(t, score, m.BestScore(cell, rule(0)))
}

func TestMatcher_FuzzyBestKeywordWins(t *testing.T) {
	m := NewMatcher(nil)
	r := Rule{Match: Fuzzy, Keywords: []string{"zzzzzz", "colour"}, Threshold: 80}
	assert.True(t, m.Matches(table.Str("Color"), r))
	assert.False(t, m.Matches(table.Empty(), Rule{Match: Fuzzy, Keywords: []string{"x"}, Threshold: 0}))
	assert.Equal(t, 0.0, m.BestScore(table.Empty(), r))
}

func TestMatcher_Deterministic(t *testing.T) {
	m := NewMatcher(similarity.PartialRatio)
	r := Rule{Match: Fuzzy, Keywords: []string{"smith"}, Threshold: 75}
	first := m.Matches(table.Str("Smyth & Co"), r)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, m.Matches(table.Str("Smyth & Co"), r))
	}
}

func TestApply_ExactInclude(t *testing.T) {
	out := Apply(namesTable(t), RuleSet{
		"name": {Field: "name", Mode: Include, Match: Exact, Keywords: []string{"alice"}},
	})
	assert.Equal(t, []string{"Alice", "alice"}, column(out, "name"))
}

func TestApply_ExactExclude(t *testing.T) {
	out := Apply(namesTable(t), RuleSet{
		"name": {Field: "name", Mode: Exclude, Match: Exact, Keywords: []string{"bob"}},
	})
	assert.Equal(t, []string{"Alice", "alice"}, column(out, "name"))
}

func TestApply_ConjunctiveAcrossFields(t *testing.T) {
	rules := RuleSet{
		"name": {Field: "name", Mode: Include, Match: Exact, Keywords: []string{"alice"}},
		"city": {Field: "city", Mode: Exclude, Match: Exact, Keywords: []string{"berlin"}},
	}
	res, err := NewExecutor(nil).Run(context.Background(), namesTable(t), rules)
	require.NoError(t, err)

	assert.Equal(t, []string{"Alice"}, column(res.Table, "name"))
	assert.Equal(t, 3, res.InputRows)
	assert.Equal(t, 1, res.OutputRows)
	assert.Equal(t, map[string]int{"name": 1, "city": 1}, res.Failed)
}

func TestApply_LargeTableRunsSequentially(t *testing.T) {
	records := make([][]string, DefaultParallelMinRows+5)
	for i := range records {
		records[i] = []string{fmt.Sprintf("n%d", i%10)}
	}
	tbl, err := table.FromStrings("big", []string{"name"}, records)
	require.NoError(t, err)

	var out *table.Table
	require.NotPanics(t, func() {
		out = Apply(tbl, RuleSet{"name": {Field: "name", Mode: Exclude, Match: Exact, Keywords: []string{"n0"}}})
	})
	assert.Equal(t, len(records)-(len(records)+9)/10, out.Len())
}

func TestApply_EmptyCellsPolicy(t *testing.T) {
	tbl, err := table.FromStrings("t", []string{"name"}, [][]string{{"bob"}, {""}, {"amy"}})
	require.NoError(t, err)

	inc := Apply(tbl, RuleSet{"name": {Field: "name", Mode: Include, Match: Fuzzy, Keywords: []string{"bob"}, Threshold: 0}})
	assert.Equal(t, []string{"bob", "amy"}, column(inc, "name"))

	exc := Apply(tbl, RuleSet{"name": {Field: "name", Mode: Exclude, Match: Exact, Keywords: []string{"bob"}}})
	assert.Equal(t, []string{"", "amy"}, column(exc, "name"))
}

func TestApply_MissingFieldTreatedAsEmpty(t *testing.T) {
	tbl := namesTable(t)
	res, err := NewExecutor(nil).Run(context.Background(), tbl, RuleSet{
		"ghost": {Field: "ghost", Mode: Exclude, Match: Exact, Keywords: []string{"x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.OutputRows)
	assert.Equal(t, []string{"ghost"}, res.MissingFields)

	res, err = NewExecutor(nil).Run(context.Background(), tbl, RuleSet{
		"ghost": {Field: "ghost", Mode: Include, Match: Exact, Keywords: []string{"x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.OutputRows)
}

func TestApply_NoRulesPassesThrough(t *testing.T) {
	tbl := namesTable(t)
	assert.Same(t, tbl, Apply(tbl, nil))
	assert.Same(t, tbl, Apply(tbl, RuleSet{"name": {Field: "name"}}))
}

func TestApply_Idempotent(t *testing.T) {
	rules := RuleSet{
		"name": {Field: "name", Mode: Include, Match: Fuzzy, Keywords: []string{"alic"}, Threshold: 70},
	}
	once := Apply(namesTable(t), rules)
	twice := Apply(once, rules)
	assert.True(t, once.Equal(twice))
}

func TestApply_DoesNotMutateInputs(t *testing.T) {
	tbl := namesTable(t)
	rules := RuleSet{"name": {Field: "name", Mode: Exclude, Match: Exact, Keywords: []string{"bob"}}}
	before := tbl.Records()

	Apply(tbl, rules)
	Apply(tbl, rules)

	assert.Equal(t, before, tbl.Records())
	assert.Equal(t, []string{"bob"}, rules["name"].Keywords)
}

func TestExecutor_ParallelMatchesSequential(t *testing.T) {
	records := make([][]string, 1000)
	for i := range records {
		records[i] = []string{fmt.Sprintf("item-%d", i%37), fmt.Sprintf("group %d", i%5)}
	}
	tbl, err := table.FromStrings("big", []string{"item", "group"}, records)
	require.NoError(t, err)

	rules := RuleSet{
		"item":  {Field: "item", Mode: Include, Match: Fuzzy, Keywords: []string{"item-1", "item-2"}, Threshold: 80},
		"group": {Field: "group", Mode: Exclude, Match: Exact, Keywords: []string{"group 3"}},
	}

	seq, err := NewExecutor(nil, WithWorkers(1)).Run(context.Background(), tbl, rules)
	require.NoError(t, err)
	par, err := NewExecutor(nil, WithWorkers(7), WithParallelMinRows(10)).Run(context.Background(), tbl, rules)
	require.NoError(t, err)

	assert.True(t, seq.Table.Equal(par.Table))
	assert.Equal(t, seq.Failed, par.Failed)
	assert.Greater(t, seq.OutputRows, 0)
}

func TestExecutor_ParallelCancelled(t *testing.T) {
	records := make([][]string, 100)
	for i := range records {
		records[i] = []string{"x"}
	}
	tbl, err := table.FromStrings("t", []string{"f"}, records)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewExecutor(nil, WithWorkers(4), WithParallelMinRows(1)).Run(ctx, tbl, RuleSet{
		"f": {Field: "f", Keywords: []string{"x"}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func BenchmarkExecutor_Fuzzy(b *testing.B) {
	records := make([][]string, 5000)
	for i := range records {
		records[i] = []string{fmt.Sprintf("customer number %d", i)}
	}
	tbl, _ := table.FromStrings("t", []string{"name"}, records)
	rules := RuleSet{"name": {Field: "name", Mode: Include, Match: Fuzzy, Keywords: []string{"customer nmber 42"}, Threshold: 85}}
	e := NewExecutor(nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Run(context.Background(), tbl, rules)
	}
}
