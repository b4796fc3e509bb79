// Package value defines the tagged-union type SQLite columns decode into
// and the comparison rules the B-tree walker and expression evaluator share.
package value

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	Null Kind = iota
	Integer
	Real
	Text
	Blob
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "NULL"
	case Integer:
		return "INTEGER"
	case Real:
		return "REAL"
	case Text:
		return "TEXT"
	case Blob:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// Value is the tagged union every decoded column, literal, and computed
// result is represented as. The zero Value is Null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
}

// NewNull returns the Null value.
func NewNull() Value { return Value{kind: Null} }

// NewInteger wraps a signed 64-bit integer.
func NewInteger(i int64) Value { return Value{kind: Integer, i: i} }

// NewReal wraps a float64, including NaN.
func NewReal(f float64) Value { return Value{kind: Real, f: f} }

// NewText wraps UTF-8 text.
func NewText(s string) Value { return Value{kind: Text, s: s} }

// NewBlob wraps raw bytes. The slice is retained, not copied.
func NewBlob(b []byte) Value { return Value{kind: Blob, b: b} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }

// Integer returns the wrapped integer and whether the value was an Integer.
func (v Value) Integer() (int64, bool) {
	if v.kind != Integer {
		return 0, false
	}
	return v.i, true
}

// Real returns the wrapped float and whether the value was numeric
// (Integer is widened to float64).
func (v Value) Real() (float64, bool) {
	switch v.kind {
	case Real:
		return v.f, true
	case Integer:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// Text returns the wrapped string and whether the value was Text.
func (v Value) Text() (string, bool) {
	if v.kind != Text {
		return "", false
	}
	return v.s, true
}

// Blob returns the wrapped bytes and whether the value was Blob.
func (v Value) Blob() ([]byte, bool) {
	if v.kind != Blob {
		return nil, false
	}
	return v.b, true
}

// IsNumeric reports whether the value is Integer or Real.
func (v Value) IsNumeric() bool {
	return v.kind == Integer || v.kind == Real
}

func (v Value) String() string {
	switch v.kind {
	case Null:
		return "NULL"
	case Integer:
		return strconv.FormatInt(v.i, 10)
	case Real:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case Text:
		return v.s
	case Blob:
		return fmt.Sprintf("x'%x'", v.b)
	default:
		return "?"
	}
}

// Equal reports value equality per the database-model's §3 rules: Integer
// and Real compare numerically, NaN equals NaN, everything else compares
// by kind and payload.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// typeClassRank returns the ordering class of a value per §3: Null < numeric
// < Text < Blob.
func typeClassRank(v Value) int {
	switch v.kind {
	case Null:
		return 0
	case Integer, Real:
		return 1
	case Text:
		return 2
	case Blob:
		return 3
	default:
		return 4
	}
}

// Compare implements the total order from §3: Null < numeric < Text < Blob,
// with NaN treated as equal to itself and greater than any finite real.
func Compare(a, b Value) int {
	ra, rb := typeClassRank(a), typeClassRank(b)
	if ra != rb {
		return ra - rb
	}

	switch ra {
	case 0: // Null == Null
		return 0
	case 1:
		return compareNumeric(a, b)
	case 2:
		as, _ := a.Text()
		bs, _ := b.Text()
		return strings.Compare(as, bs)
	case 3:
		ab, _ := a.Blob()
		bb, _ := b.Blob()
		return bytes.Compare(ab, bb)
	default:
		return 0
	}
}

func compareNumeric(a, b Value) int {
	af, _ := a.Real()
	bf, _ := b.Real()

	aNaN := math.IsNaN(af)
	bNaN := math.IsNaN(bf)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	}

	// Prefer exact integer comparison when both sides are integral to avoid
	// precision loss for values beyond float64's 53-bit mantissa.
	if ai, aok := a.Integer(); aok {
		if bi, bok := b.Integer(); bok {
			switch {
			case ai < bi:
				return -1
			case ai > bi:
				return 1
			default:
				return 0
			}
		}
	}

	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

// Affinity is SQLite's declared-type-driven coercion class.
type Affinity int

const (
	AffinityNone Affinity = iota
	AffinityText
	AffinityNumeric
	AffinityInteger
	AffinityReal
	AffinityBlob
)

// AffinityFromDeclaredType derives a column affinity from its declared SQL
// type string following SQLite's textual matching rules, simplified: the
// first substring match wins in the order INT, CHAR/CLOB/TEXT, BLOB/absent,
// REAL/FLOA/DOUB, else NUMERIC.
func AffinityFromDeclaredType(declared string) Affinity {
	t := strings.ToUpper(strings.TrimSpace(declared))
	switch {
	case strings.Contains(t, "INT"):
		return AffinityInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return AffinityText
	case strings.Contains(t, "BLOB"), t == "":
		return AffinityBlob
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return AffinityReal
	default:
		return AffinityNumeric
	}
}

// CoerceText attempts to parse s as a number for a numeric-affinity
// comparison. ok is false when s is not parseable as a number at all, in
// which case the caller should fall back to an Unknown/string comparison.
func CoerceText(s string) (Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NewInteger(i), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return NewReal(f), true
	}
	return Value{}, false
}
