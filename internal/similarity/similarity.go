// Package similarity scores how alike two strings are on a 0-100 scale.
//
// Scores are deterministic and symmetric. Callers are expected to pass
// strings that went through Normalize; the scorers themselves do not fold
// case or trim.
//
// The default scorer is Ratio, which compares whole cell values, so a
// keyword only matches cells of about its own length. PartialRatio scores
// the best-aligned substring instead and lets a short keyword such as "par"
// match "Paris" or "Paris, France" at 100. Select it with ByName("partial")
// (FILTER_SCORER=partial) for substring-style filtering.
package similarity

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// Func scores a and b in [0, 100]. 100 means identical.
type Func func(a, b string) float64

// Scorer names accepted by ByName.
const (
	NameRatio   = "ratio"
	NamePartial = "partial"
)

// Normalize trims surrounding whitespace and applies Unicode case folding.
func Normalize(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Ratio is the normalized Levenshtein similarity over runes:
//
//	100 * (1 - distance(a, b) / max(len(a), len(b)))
//
// Two empty strings score 100.
func Ratio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

// PartialRatio scores the shorter string against every window of the same
// rune length in the longer one and returns the best Ratio. A keyword that
// appears inside a longer cell therefore scores 100.
func PartialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		if len(long) == 0 {
			return 100
		}
		return 0
	}
	if len(short) == len(long) {
		return Ratio(a, b)
	}

	s := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		score := Ratio(s, string(long[i:i+len(short)]))
		if score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

// ByName returns the scorer registered under name. The empty name selects Ratio.
func ByName(name string) (Func, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameRatio:
		return Ratio, nil
	case NamePartial:
		return PartialRatio, nil
	default:
		return nil, fmt.Errorf("unknown similarity scorer %q (want %s or %s)", name, NameRatio, NamePartial)
	}
}
