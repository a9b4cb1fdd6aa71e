package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/FuzzyCleanse/internal/filter"
	"github.com/JonMunkholm/FuzzyCleanse/internal/join"
)

func TestParseRuleSpec(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		in   string
		want ruleSpec
	}{
		{"city=Paris", ruleSpec{Field: "city", Mode: filter.Include, Match: filter.Exact, Keywords: []string{"Paris"}}},
		{"city:exclude=Paris, Rome", ruleSpec{Field: "city", Mode: filter.Exclude, Match: filter.Exact, Keywords: []string{"Paris", "Rome"}}},
		{"name:include:fuzzy=jon", ruleSpec{Field: "name", Mode: filter.Include, Match: filter.Fuzzy, Keywords: []string{"jon"}}},
		{"name:exclude:fuzzy:85=test,dummy", ruleSpec{Field: "name", Mode: filter.Exclude, Match: filter.Fuzzy, Keywords: []string{"test", "dummy"}, Threshold: f(85)}},
		{"a:b:exclude=x", ruleSpec{Field: "a:b", Mode: filter.Exclude, Match: filter.Exact, Keywords: []string{"x"}}},
		{"note=", ruleSpec{Field: "note", Mode: filter.Include, Match: filter.Exact}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseRuleSpec(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRuleSpec_Errors(t *testing.T) {
	for _, in := range []string{"city", "=Paris", ":exact=x", "city:exact:90=x"} {
		t.Run(in, func(t *testing.T) {
			_, err := parseRuleSpec(in)
			assert.ErrorIs(t, err, filter.ErrInvalidRule)
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func fixtures(t *testing.T) (string, string) {
	dir := t.TempDir()
	people := writeFile(t, dir, "people.csv", "id,name\n1,Alice\n2,Bob\n3,Carol\n")
	cities := writeFile(t, dir, "cities.csv", "id,city\n1,Paris\n2,Rome\n3,paris\n")
	return people, cities
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestPlanCommand(t *testing.T) {
	people, cities := fixtures(t)

	out, _, err := run(t, "plan", people, cities)
	require.NoError(t, err)
	assert.Contains(t, out, "source    people.csv (3 rows, 2 fields)")
	assert.Contains(t, out, "strategy  join")
	assert.Contains(t, out, "keys      id")
	assert.Contains(t, out, "fields    id, name, city")
	assert.Contains(t, out, "rows      3")
}

func TestPlanCommand_NoCommonField(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "x\n1\n")
	b := writeFile(t, dir, "b.csv", "y\n2\n")

	_, _, err := run(t, "plan", a, b)
	assert.ErrorIs(t, err, join.ErrNoCommonField)

	out, _, err := run(t, "plan", "--fallback", "stack", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "strategy  stack")
	assert.Contains(t, out, "rows      2")
}

func TestFilterCommand_Stdout(t *testing.T) {
	people, cities := fixtures(t)

	out, _, err := run(t, "filter", people, cities, "--rule", "city:include:exact=PARIS")
	require.NoError(t, err)
	assert.Equal(t, "id,name,city\n1,Alice,Paris\n3,Carol,paris\n", out)
}

func TestFilterCommand_NoRulesKeepsAll(t *testing.T) {
	people, cities := fixtures(t)

	out, _, err := run(t, "filter", people, cities)
	require.NoError(t, err)
	assert.Equal(t, "id,name,city\n1,Alice,Paris\n2,Bob,Rome\n3,Carol,paris\n", out)
}

func TestFilterCommand_XLSXOutput(t *testing.T) {
	people, cities := fixtures(t)
	dest := filepath.Join(t.TempDir(), "out.xlsx")

	_, stderr, err := run(t, "filter", people, cities, "-r", "name:exclude:fuzzy=Alise", "-o", dest)
	require.NoError(t, err)
	assert.Contains(t, stderr, "2 of 3 rows kept")

	f, err := excelize.OpenFile(dest)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"id", "name", "city"},
		{"2", "Bob", "Rome"},
		{"3", "Carol", "paris"},
	}, rows)
}

func TestFilterCommand_Errors(t *testing.T) {
	people, cities := fixtures(t)

	_, _, err := run(t, "filter", people, cities, "--rule", "name:exact:90=x")
	assert.ErrorIs(t, err, filter.ErrInvalidRule)

	_, _, err = run(t, "filter", people, "--rule", "name:fuzzy:150=x")
	assert.ErrorIs(t, err, filter.ErrInvalidThreshold)

	_, _, err = run(t, "filter", people, "-o", filepath.Join(t.TempDir(), "out.json"))
	assert.Error(t, err)

	_, _, err = run(t, "filter", filepath.Join(t.TempDir(), "missing.csv"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFilterCommand_MissingField(t *testing.T) {
	people, cities := fixtures(t)

	out, stderr, err := run(t, "filter", people, cities, "--rule", "country:exclude=France")
	require.NoError(t, err)
	assert.Contains(t, stderr, "rule ignored: country")
	assert.Equal(t, "id,name,city\n1,Alice,Paris\n2,Bob,Rome\n3,Carol,paris\n", out)
}

func TestFormatError(t *testing.T) {
	assert.Contains(t, formatError(join.ErrNoCommonField), "JOIN001")
	assert.Equal(t, "error: boom", formatError(errors.New("boom")))
}
