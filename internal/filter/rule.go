// Package filter narrows a consolidated table with per-field keyword rules.
//
// Each field carries at most one Rule. An Include rule keeps a row only when
// the row's cell matches one of the rule's keywords; an Exclude rule drops
// the row when it does. Rules on different fields combine with AND.
// Matching is Exact (case-folded equality) or Fuzzy (similarity score at or
// above the rule's threshold). Empty cells never match anything.
package filter

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/JonMunkholm/FuzzyCleanse/internal/similarity"
)

// DefaultThreshold is used for fuzzy rules that do not set one.
const DefaultThreshold = 80.0

var (
	// ErrInvalidThreshold is matched by InvalidThresholdError via errors.Is.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidRule is returned for rules with an unknown mode, match type or blank field.
	ErrInvalidRule = errors.New("invalid filter rule")
)

// InvalidThresholdError rejects a fuzzy threshold outside [0, 100].
type InvalidThresholdError struct {
	Field     string
	Threshold float64
}

func (e *InvalidThresholdError) Error() string {
	return fmt.Sprintf("invalid threshold %g for field %q: must be between 0 and 100", e.Threshold, e.Field)
}

// Is makes errors.Is(err, ErrInvalidThreshold) hold.
func (e *InvalidThresholdError) Is(target error) bool {
	return target == ErrInvalidThreshold
}

// Mode decides whether matching rows are kept or dropped.
type Mode int

const (
	Include Mode = iota
	Exclude
)

func (m Mode) String() string {
	switch m {
	case Include:
		return "include"
	case Exclude:
		return "exclude"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "include" or "exclude", ignoring case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "include":
		return Include, nil
	case "exclude":
		return Exclude, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidRule, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// MatchType selects exact or fuzzy comparison.
type MatchType int

const (
	Exact MatchType = iota
	Fuzzy
)

func (t MatchType) String() string {
	switch t {
	case Exact:
		return "exact"
	case Fuzzy:
		return "fuzzy"
	default:
		return fmt.Sprintf("MatchType(%d)", int(t))
	}
}

// ParseMatchType parses "exact" or "fuzzy", ignoring case.
func ParseMatchType(s string) (MatchType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact":
		return Exact, nil
	case "fuzzy":
		return Fuzzy, nil
	default:
		return 0, fmt.Errorf("%w: unknown match type %q", ErrInvalidRule, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t MatchType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *MatchType) UnmarshalText(b []byte) error {
	v, err := ParseMatchType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Rule is the filter for a single field.
type Rule struct {
	Field     string    `json:"field"`
	Mode      Mode      `json:"mode"`
	Match     MatchType `json:"match"`
	Keywords  []string  `json:"keywords"`
	Threshold float64   `json:"threshold"`
}

// Validate checks the rule's mode, match type, field and threshold.
// The threshold is only checked for fuzzy rules.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Field) == "" {
		return fmt.Errorf("%w: blank field", ErrInvalidRule)
	}
	if r.Mode != Include && r.Mode != Exclude {
		return fmt.Errorf("%w: field %q: mode %v", ErrInvalidRule, r.Field, r.Mode)
	}
	if r.Match != Exact && r.Match != Fuzzy {
		return fmt.Errorf("%w: field %q: match type %v", ErrInvalidRule, r.Field, r.Match)
	}
	if r.Match == Fuzzy && (math.IsNaN(r.Threshold) || r.Threshold < 0 || r.Threshold > 100) {
		return &InvalidThresholdError{Field: r.Field, Threshold: r.Threshold}
	}
	return nil
}

func (r Rule) clone() Rule {
	r.Keywords = append([]string(nil), r.Keywords...)
	return r
}

// ParseKeywords splits comma-separated input into trimmed, non-blank terms.
func ParseKeywords(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeKeywords trims keywords, drops blanks and removes entries that
// are equal after normalization. The first spelling is kept.
func normalizeKeywords(kws []string) []string {
	seen := make(map[string]struct{}, len(kws))
	out := make([]string, 0, len(kws))
	for _, kw := range kws {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		n := similarity.Normalize(kw)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// RuleSet maps field names to their active rule.
type RuleSet map[string]Rule

// Fields returns the ruled field names, sorted.
func (rs RuleSet) Fields() []string {
	out := make([]string, 0, len(rs))
	for f := range rs {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy.
func (rs RuleSet) Clone() RuleSet {
	out := make(RuleSet, len(rs))
	for f, r := range rs {
		out[f] = r.clone()
	}
	return out
}

// List returns the rules ordered by field name.
func (rs RuleSet) List() []Rule {
	out := make([]Rule, 0, len(rs))
	for _, f := range rs.Fields() {
		out = append(out, rs[f].clone())
	}
	return out
}
