package filter

import (
	"github.com/JonMunkholm/FuzzyCleanse/internal/similarity"
	"github.com/JonMunkholm/FuzzyCleanse/internal/table"
)

// Matcher decides whether a cell matches a rule.
type Matcher struct {
	score similarity.Func
}

// NewMatcher returns a Matcher that scores fuzzy rules with score.
// A nil score selects similarity.Ratio.
func NewMatcher(score similarity.Func) *Matcher {
	if score == nil {
		score = similarity.Ratio
	}
	return &Matcher{score: score}
}

// Matches reports whether cell matches any keyword of r. Both sides are
// trimmed and case-folded first. An empty cell never matches.
func (m *Matcher) Matches(cell table.Value, r Rule) bool {
	return m.compile(r, 0).matches(cell)
}

// BestScore returns the highest similarity between cell and r's keywords,
// or 0 for an empty cell or a rule without keywords.
func (m *Matcher) BestScore(cell table.Value, r Rule) float64 {
	c := m.compile(r, 0)
	text := normalizeCell(cell)
	if text == "" {
		return 0
	}
	best := 0.0
	for _, kw := range c.keywords {
		if s := m.score(text, kw); s > best {
			best = s
		}
	}
	return best
}

// compiledRule is a rule with its keywords normalized once and its field
// resolved to a column.
type compiledRule struct {
	Rule
	col      int
	present  bool
	keywords []string
	set      map[string]struct{}
	score    similarity.Func
}

func (m *Matcher) compile(r Rule, col int) *compiledRule {
	c := &compiledRule{Rule: r, col: col, present: true, score: m.score}
	for _, kw := range r.Keywords {
		n := similarity.Normalize(kw)
		if n == "" {
			continue
		}
		c.keywords = append(c.keywords, n)
	}
	if r.Match == Exact {
		c.set = make(map[string]struct{}, len(c.keywords))
		for _, kw := range c.keywords {
			c.set[kw] = struct{}{}
		}
	}
	return c
}

func (c *compiledRule) matches(cell table.Value) bool {
	text := normalizeCell(cell)
	if text == "" {
		return false
	}
	if c.Match == Exact {
		_, ok := c.set[text]
		return ok
	}
	for _, kw := range c.keywords {
		if c.score(text, kw) >= c.Threshold {
			return true
		}
	}
	return false
}

// keep reports whether a row whose cell for this rule's field is cell
// satisfies the rule.
func (c *compiledRule) keep(cell table.Value) bool {
	hit := c.matches(cell)
	if c.Mode == Exclude {
		return !hit
	}
	return hit
}

func normalizeCell(v table.Value) string {
	if v.IsEmpty() {
		return ""
	}
	return similarity.Normalize(v.String())
}
