package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/FuzzyCleanse/internal/filter"
)

// ruleSpec is a rule given on the command line as
//
//	field:include|exclude:exact|fuzzy[:threshold]=kw1,kw2
//
// Mode and match type default to include and exact, so "city=Paris" is a
// valid spec. The field name may itself contain colons.
type ruleSpec struct {
	Field     string
	Mode      filter.Mode
	Match     filter.MatchType
	Keywords  []string
	Threshold *float64
}

func parseRuleSpec(s string) (ruleSpec, error) {
	eq := strings.IndexByte(s, '=')
	if eq < 0 {
		return ruleSpec{}, fmt.Errorf("%w: rule %q: missing \"=keywords\"", filter.ErrInvalidRule, s)
	}
	head, kws := s[:eq], s[eq+1:]

	spec := ruleSpec{Mode: filter.Include, Match: filter.Exact, Keywords: filter.ParseKeywords(kws)}
	parts := strings.Split(head, ":")

	// Options are peeled off the right end; whatever is left is the field.
	if n := len(parts); n > 1 {
		if v, err := strconv.ParseFloat(parts[n-1], 64); err == nil {
			spec.Threshold = &v
			parts = parts[:n-1]
		}
	}
	if n := len(parts); n > 1 {
		if m, err := filter.ParseMatchType(parts[n-1]); err == nil {
			spec.Match = m
			parts = parts[:n-1]
		}
	}
	if n := len(parts); n > 1 {
		if m, err := filter.ParseMode(parts[n-1]); err == nil {
			spec.Mode = m
			parts = parts[:n-1]
		}
	}

	spec.Field = strings.TrimSpace(strings.Join(parts, ":"))
	if spec.Field == "" {
		return ruleSpec{}, fmt.Errorf("%w: rule %q: missing field", filter.ErrInvalidRule, s)
	}
	if spec.Threshold != nil && spec.Match != filter.Fuzzy {
		return ruleSpec{}, fmt.Errorf("%w: rule %q: threshold needs fuzzy matching", filter.ErrInvalidRule, s)
	}
	return spec, nil
}
