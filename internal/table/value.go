package table

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies what a Value holds.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindString
	KindNumber
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return "empty"
	}
}

// Value is a single cell. The zero Value is the Empty marker.
type Value struct {
	kind Kind
	str  string
	num  float64
}

// Empty returns the missing-value marker.
func Empty() Value { return Value{} }

// Str returns a string value. The empty string is stored as Empty.
func Str(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{kind: KindString, str: s}
}

// Num returns a numeric value. NaN is stored as Empty.
func Num(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Cell converts raw loader text into a Value. Text that is blank after
// trimming becomes Empty; otherwise the original text is kept as-is.
func Cell(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Value{}
	}
	return Value{kind: KindString, str: s}
}

// Kind returns the value kind.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether v is the Empty marker.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// Float returns the numeric payload and whether v is a number.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// String returns the text form used for matching and export.
// Empty renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// Equal reports whether both values have the same kind and text.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.String() == o.String()
}

// Key returns a string that is equal for two values iff Equal reports true.
// Used to build join index keys.
func (v Value) Key() string {
	return string(rune('0'+v.kind)) + v.String()
}
