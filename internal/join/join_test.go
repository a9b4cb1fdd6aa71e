package join

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/FuzzyCleanse/internal/table"
)

func mustTable(t *testing.T, name string, fields []string, records ...[]string) *table.Table {
	t.Helper()
	tbl, err := table.FromStrings(name, fields, records)
	require.NoError(t, err)
	return tbl
}

func TestNewPlan_SingleTableIsIdentity(t *testing.T) {
	a := mustTable(t, "a.csv", []string{"id", "v"}, []string{"1", "x"})

	plan, err := NewPlan(table.Set{a})
	require.NoError(t, err)
	assert.True(t, plan.Identity)
	assert.Equal(t, StrategyIdentity, plan.Strategy())
	assert.Empty(t, plan.Keys)
	assert.Equal(t, []string{"id", "v"}, plan.Fields)
}

func TestNewPlan_KeysAreSortedIntersection(t *testing.T) {
	a := mustTable(t, "a", []string{"zip", "id", "name"})
	b := mustTable(t, "b", []string{"id", "city", "zip"})
	c := mustTable(t, "c", []string{"zip", "id", "phone"})

	plan, err := NewPlan(table.Set{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "zip"}, plan.Keys)
	assert.Equal(t, []string{"zip", "id", "name", "city", "phone"}, plan.Fields)
	assert.Equal(t, []string{"a", "b", "c"}, plan.Sources)
}

func TestNewPlan_NoCommonField(t *testing.T) {
	a := mustTable(t, "a", []string{"id"})
	b := mustTable(t, "b", []string{"x"})

	_, err := NewPlan(table.Set{a, b})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCommonField))

	var ncf *NoCommonFieldError
	require.True(t, errors.As(err, &ncf))
	assert.Equal(t, []string{"a", "b"}, ncf.Sources)
}

func TestNewPlan_EmptySet(t *testing.T) {
	_, err := NewPlan(nil)
	assert.ErrorIs(t, err, table.ErrEmptySet)
}

func TestMerge_SimpleJoin(t *testing.T) {
	a := mustTable(t, "a", []string{"id", "v1"}, []string{"1", "10"}, []string{"2", "20"})
	b := mustTable(t, "b", []string{"id", "v2"}, []string{"1", "30"}, []string{"2", "40"})
	set := table.Set{a, b}

	plan, err := NewPlan(set)
	require.NoError(t, err)
	out, err := Merge(set, plan)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "v1", "v2"}, out.Fields())
	assert.Equal(t, [][]string{{"1", "10", "30"}, {"2", "20", "40"}}, out.Records())
}

func TestMerge_FullOuterOrder(t *testing.T) {
	a := mustTable(t, "a", []string{"id", "a"},
		[]string{"2", "a2"}, []string{"1", "a1"})
	b := mustTable(t, "b", []string{"id", "b"},
		[]string{"3", "b3"}, []string{"1", "b1"}, []string{"4", "b4"})

	set := table.Set{a, b}
	plan, err := NewPlan(set)
	require.NoError(t, err)
	out, err := Merge(set, plan)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"2", "a2", ""},
		{"1", "a1", "b1"},
		{"3", "", "b3"},
		{"4", "", "b4"},
	}, out.Records())
	assert.True(t, out.Value(0, "b").IsEmpty())
}

func TestMerge_EmptyKeyIsAValue(t *testing.T) {
	a := mustTable(t, "a", []string{"id", "a"}, []string{"", "a-empty"})
	b := mustTable(t, "b", []string{"id", "b"}, []string{"", "b-empty"})

	out, _, err := Consolidate(table.Set{a, b}, FallbackAbort)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"", "a-empty", "b-empty"}}, out.Records())
}

func TestMerge_DuplicateKeysPairByOccurrence(t *testing.T) {
	a := mustTable(t, "a", []string{"id", "a"},
		[]string{"k", "a1"}, []string{"k", "a2"}, []string{"k", "a3"})
	b := mustTable(t, "b", []string{"id", "b"},
		[]string{"k", "b1"}, []string{"k", "b2"}, []string{"k", "b3"})

	out, sum, err := Consolidate(table.Set{a, b}, FallbackAbort)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Len())
	assert.Equal(t, 3, sum.Matched)
	assert.Equal(t, [][]string{
		{"k", "a1", "b1"},
		{"k", "a2", "b2"},
		{"k", "a3", "b3"},
	}, out.Records())
}

func TestMerge_SharedNonKeyFieldEarliestWins(t *testing.T) {
	a := mustTable(t, "a", []string{"id", "note"}, []string{"1", ""}, []string{"2", "from-a"})
	b := mustTable(t, "b", []string{"id", "note", "x"}, []string{"1", "from-b", "x1"}, []string{"2", "from-b", "x2"})
	c := mustTable(t, "c", []string{"id"}, []string{"1"})

	out, sum, err := Consolidate(table.Set{a, b, c}, FallbackAbort)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, sum.Keys)
	assert.Equal(t, [][]string{
		{"1", "from-b", "x1"},
		{"2", "from-a", "x2"},
	}, out.Records())
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	a := mustTable(t, "a", []string{"id", "a"}, []string{"1", "a1"})
	b := mustTable(t, "b", []string{"id", "b"}, []string{"1", "b1"})
	before := a.Records()

	_, _, err := Consolidate(table.Set{a, b}, FallbackAbort)
	require.NoError(t, err)
	assert.Equal(t, before, a.Records())
	assert.Equal(t, []string{"id", "a"}, a.Fields())
}

func TestMerge_PlanMismatch(t *testing.T) {
	a := mustTable(t, "a", []string{"id"})
	b := mustTable(t, "b", []string{"id"})

	_, err := Merge(table.Set{a, b}, Plan{Sources: []string{"a"}})
	assert.ErrorIs(t, err, ErrPlanMismatch)
}

func TestConsolidate_Deterministic(t *testing.T) {
	build := func() table.Set {
		return table.Set{
			mustTable(t, "a", []string{"id", "k2", "a"}, []string{"1", "x", "a1"}, []string{"2", "y", "a2"}),
			mustTable(t, "b", []string{"k2", "id", "b"}, []string{"y", "2", "b2"}, []string{"z", "9", "b9"}),
		}
	}

	first, _, err := Consolidate(build(), FallbackAbort)
	require.NoError(t, err)
	second, _, err := Consolidate(build(), FallbackAbort)
	require.NoError(t, err)

	assert.Equal(t, first.Fields(), second.Fields())
	assert.Equal(t, first.Records(), second.Records())
}

func TestConsolidate_NoFieldLossAndRowBound(t *testing.T) {
	set := table.Set{
		mustTable(t, "a", []string{"id", "a"}, []string{"1", "a"}, []string{"1", "a"}, []string{"2", "a"}),
		mustTable(t, "b", []string{"id", "b"}, []string{"1", "b"}, []string{"3", "b"}),
		mustTable(t, "c", []string{"id", "c"}, []string{"3", "c"}, []string{"4", "c"}, []string{"1", "c"}, []string{"1", "c"}),
	}

	out, sum, err := Consolidate(set, FallbackAbort)
	require.NoError(t, err)

	for _, tbl := range set {
		for _, f := range tbl.Fields() {
			assert.True(t, out.Has(f), "field %q lost", f)
		}
	}
	assert.GreaterOrEqual(t, out.Len(), set.MaxLen())
	assert.LessOrEqual(t, out.Len(), set.TotalLen())
	assert.Equal(t, out.Len(), sum.OutputRows)
	assert.Equal(t, StrategyJoin, sum.Strategy)
}

func TestConsolidate_SingleTablePassthrough(t *testing.T) {
	a := mustTable(t, "only.csv", []string{"id", "a"}, []string{"1", "x"}, []string{"2", ""})

	out, sum, err := Consolidate(table.Set{a}, FallbackAbort)
	require.NoError(t, err)
	assert.Same(t, a, out)
	assert.Equal(t, StrategyIdentity, sum.Strategy)
	assert.Equal(t, 1, sum.InputCount)
}

func TestConsolidate_Fallbacks(t *testing.T) {
	a := mustTable(t, "a", []string{"id"}, []string{"1"}, []string{"2"})
	b := mustTable(t, "b", []string{"x"}, []string{"9"})

	_, _, err := Consolidate(table.Set{a, b}, FallbackAbort)
	assert.ErrorIs(t, err, ErrNoCommonField)

	out, sum, err := Consolidate(table.Set{a, b}, FallbackStack)
	require.NoError(t, err)
	assert.Equal(t, StrategyStack, sum.Strategy)
	assert.Equal(t, []string{"id", "x"}, out.Fields())
	assert.Equal(t, [][]string{{"1", ""}, {"2", ""}, {"", "9"}}, out.Records())
}

func TestParseFallback(t *testing.T) {
	f, err := ParseFallback(" Stack ")
	require.NoError(t, err)
	assert.Equal(t, FallbackStack, f)

	_, err = ParseFallback("skip")
	assert.Error(t, err)
}
