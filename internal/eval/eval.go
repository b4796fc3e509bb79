// Package eval evaluates WHERE-clause AST expressions against a single row
// using SQLite's three-valued logic: every predicate yields True, False, or
// Unknown, and only True survives a WHERE filter. Grounded on the
// comparison and pattern-matching rules the original engine implemented in
// query.rs (compare_values, value_like, values_equal), generalized here to
// the fuller grammar this front-end parses (IN, BETWEEN, IS [NOT] NULL, a
// general %/_ LIKE matcher rather than a single-wildcard one).
package eval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joeandaverde/litescan/internal/errs"
	"github.com/joeandaverde/litescan/internal/value"
	"github.com/joeandaverde/litescan/tsql/ast"
	"github.com/joeandaverde/litescan/tsql/lexer"
)

// Tri is a three-valued logic result.
type Tri int

const (
	Unknown Tri = iota
	False
	True
)

// Bool collapses a Tri to a boolean, treating Unknown as false, the rule a
// WHERE filter applies to its predicate's result.
func (t Tri) Bool() bool { return t == True }

// FromBool lifts a boolean into Tri.
func FromBool(b bool) Tri {
	if b {
		return True
	}
	return False
}

func negate(t Tri) Tri {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// Lookup resolves an unqualified column name to its value in the row
// currently being evaluated. ok is false for an unknown column name.
type Lookup func(name string) (value.Value, bool)

// Eval evaluates a boolean-context expression (a WHERE predicate, or a
// sub-expression combined with AND/OR/NOT) against a row.
func Eval(expr ast.Expression, lookup Lookup) (Tri, error) {
	switch e := expr.(type) {
	case *ast.BinaryOperation:
		return evalBinary(e, lookup)
	case *ast.InExpression:
		return evalIn(e, lookup)
	case *ast.BetweenExpression:
		return evalBetween(e, lookup)
	case *ast.IsNullExpression:
		return evalIsNull(e, lookup)
	case *ast.NotExpression:
		inner, err := Eval(e.Expr, lookup)
		if err != nil {
			return Unknown, err
		}
		return negate(inner), nil
	case *ast.Ident, *ast.BasicLiteral:
		v, err := evalValue(expr, lookup)
		if err != nil {
			return Unknown, err
		}
		return truthiness(v), nil
	default:
		return Unknown, fmt.Errorf("eval: unsupported predicate expression %T", expr)
	}
}

func truthiness(v value.Value) Tri {
	if v.IsNull() {
		return Unknown
	}
	if f, ok := v.Real(); ok {
		return FromBool(f != 0)
	}
	return True
}

func evalBinary(e *ast.BinaryOperation, lookup Lookup) (Tri, error) {
	switch e.Operator {
	case "AND":
		l, err := Eval(e.Left, lookup)
		if err != nil {
			return Unknown, err
		}
		if l == False {
			return False, nil
		}
		r, err := Eval(e.Right, lookup)
		if err != nil {
			return Unknown, err
		}
		if r == False {
			return False, nil
		}
		if l == True && r == True {
			return True, nil
		}
		return Unknown, nil
	case "OR":
		l, err := Eval(e.Left, lookup)
		if err != nil {
			return Unknown, err
		}
		if l == True {
			return True, nil
		}
		r, err := Eval(e.Right, lookup)
		if err != nil {
			return Unknown, err
		}
		if r == True {
			return True, nil
		}
		if l == False && r == False {
			return False, nil
		}
		return Unknown, nil
	case "LIKE", "NOT LIKE":
		return evalLike(e, lookup)
	default:
		return evalComparison(e.Operator, e.Left, e.Right, lookup)
	}
}

// LiteralValue evaluates an expression known not to reference any row —
// an index seek's equality literal, for instance — to a concrete value.
func LiteralValue(expr ast.Expression) (value.Value, error) {
	return evalValue(expr, func(string) (value.Value, bool) { return value.Value{}, false })
}

// evalValue evaluates an expression in value context: column references,
// literals, and the arithmetic operators the term grammar allows.
func evalValue(expr ast.Expression, lookup Lookup) (value.Value, error) {
	switch e := expr.(type) {
	case *ast.Ident:
		v, ok := lookup(e.Value)
		if !ok {
			return value.Value{}, fmt.Errorf("eval: unknown column %q", e.Value)
		}
		return v, nil
	case *ast.BasicLiteral:
		return literalValue(e)
	case *ast.BinaryOperation:
		switch e.Operator {
		case "+", "-", "*", "/":
			return evalArithmetic(e, lookup)
		default:
			return value.Value{}, fmt.Errorf("eval: %q does not produce a value", e.Operator)
		}
	default:
		return value.Value{}, fmt.Errorf("eval: unsupported value expression %T", expr)
	}
}

func literalValue(lit *ast.BasicLiteral) (value.Value, error) {
	switch lit.Kind {
	case lexer.TokenNull:
		return value.NewNull(), nil
	case lexer.TokenString:
		return value.NewText(lit.Value), nil
	case lexer.TokenBoolean:
		if strings.EqualFold(lit.Value, "TRUE") {
			return value.NewInteger(1), nil
		}
		return value.NewInteger(0), nil
	case lexer.TokenNumber:
		if i, err := strconv.ParseInt(lit.Value, 10, 64); err == nil {
			return value.NewInteger(i), nil
		}
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return value.Value{}, fmt.Errorf("eval: malformed numeric literal %q", lit.Value)
		}
		return value.NewReal(f), nil
	default:
		return value.Value{}, fmt.Errorf("eval: unsupported literal kind %s", lit.Kind)
	}
}

func evalArithmetic(e *ast.BinaryOperation, lookup Lookup) (value.Value, error) {
	l, err := evalValue(e.Left, lookup)
	if err != nil {
		return value.Value{}, err
	}
	r, err := evalValue(e.Right, lookup)
	if err != nil {
		return value.Value{}, err
	}
	if l.IsNull() || r.IsNull() {
		return value.NewNull(), nil
	}

	lf, lok := numericValue(l)
	rf, rok := numericValue(r)
	if !lok || !rok {
		return value.Value{}, &errs.TypeMismatchError{Msg: fmt.Sprintf("%q operand is not numeric", e.Operator)}
	}

	// Preserve integer results when both operands and the operation stay
	// exact, otherwise fall back to floating point.
	li, liok := l.Integer()
	ri, riok := r.Integer()
	if liok && riok && e.Operator != "/" {
		switch e.Operator {
		case "+":
			return value.NewInteger(li + ri), nil
		case "-":
			return value.NewInteger(li - ri), nil
		case "*":
			return value.NewInteger(li * ri), nil
		}
	}

	switch e.Operator {
	case "+":
		return value.NewReal(lf + rf), nil
	case "-":
		return value.NewReal(lf - rf), nil
	case "*":
		return value.NewReal(lf * rf), nil
	case "/":
		if rf == 0 {
			return value.NewNull(), nil
		}
		return value.NewReal(lf / rf), nil
	default:
		return value.Value{}, fmt.Errorf("eval: unsupported arithmetic operator %q", e.Operator)
	}
}

func numericValue(v value.Value) (float64, bool) {
	if f, ok := v.Real(); ok {
		return f, true
	}
	if s, ok := v.Text(); ok {
		if cv, ok := value.CoerceText(s); ok {
			f, _ := cv.Real()
			return f, true
		}
	}
	return 0, false
}

// coerceForCompare applies numeric affinity to a Text operand compared
// against a numeric one, per SQLite's affinity rules. ok is false when the
// text side isn't parseable as a number, meaning the two values can't be
// compared numerically.
func coerceForCompare(a, b value.Value) (value.Value, value.Value, bool) {
	switch {
	case a.Kind() == value.Text && b.IsNumeric():
		s, _ := a.Text()
		cv, ok := value.CoerceText(s)
		if !ok {
			return a, b, false
		}
		return cv, b, true
	case b.Kind() == value.Text && a.IsNumeric():
		s, _ := b.Text()
		cv, ok := value.CoerceText(s)
		if !ok {
			return a, b, false
		}
		return a, cv, true
	default:
		return a, b, true
	}
}

func evalComparison(op string, leftExpr, rightExpr ast.Expression, lookup Lookup) (Tri, error) {
	l, err := evalValue(leftExpr, lookup)
	if err != nil {
		return Unknown, err
	}
	r, err := evalValue(rightExpr, lookup)
	if err != nil {
		return Unknown, err
	}
	if l.IsNull() || r.IsNull() {
		return Unknown, nil
	}

	cl, cr, ok := coerceForCompare(l, r)
	if !ok {
		// Text that doesn't parse as a number can never equal a numeric
		// value, but an unparseable text/numeric pair has no sensible
		// order.
		switch op {
		case "=":
			return False, nil
		case "<>", "!=":
			return True, nil
		default:
			return Unknown, nil
		}
	}

	cmp := value.Compare(cl, cr)
	switch op {
	case "=":
		return FromBool(cmp == 0), nil
	case "<>", "!=":
		return FromBool(cmp != 0), nil
	case "<":
		return FromBool(cmp < 0), nil
	case "<=":
		return FromBool(cmp <= 0), nil
	case ">":
		return FromBool(cmp > 0), nil
	case ">=":
		return FromBool(cmp >= 0), nil
	default:
		return Unknown, fmt.Errorf("eval: unsupported comparison operator %q", op)
	}
}

func evalLike(e *ast.BinaryOperation, lookup Lookup) (Tri, error) {
	l, err := evalValue(e.Left, lookup)
	if err != nil {
		return Unknown, err
	}
	r, err := evalValue(e.Right, lookup)
	if err != nil {
		return Unknown, err
	}
	if l.IsNull() || r.IsNull() {
		return Unknown, nil
	}

	text, ok := l.Text()
	if !ok {
		return False, nil
	}
	pattern, ok := r.Text()
	if !ok {
		return False, nil
	}

	matched := likeMatch(text, pattern)
	if e.Operator == "NOT LIKE" {
		matched = !matched
	}
	return FromBool(matched), nil
}

// likeMatch implements SQLite's LIKE pattern language: % matches any run of
// bytes (including none), _ matches exactly one byte, case-insensitive over
// ASCII. No ESCAPE clause.
func likeMatch(text, pattern string) bool {
	s := []byte(strings.ToUpper(text))
	p := []byte(strings.ToUpper(pattern))

	si, pi := 0, 0
	starIdx, starMatch := -1, -1
	for si < len(s) {
		switch {
		case pi < len(p) && (p[pi] == '_' || p[pi] == s[si]):
			si++
			pi++
		case pi < len(p) && p[pi] == '%':
			starIdx = pi
			starMatch = si
			pi++
		case starIdx != -1:
			pi = starIdx + 1
			starMatch++
			si = starMatch
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '%' {
		pi++
	}
	return pi == len(p)
}

func evalIn(e *ast.InExpression, lookup Lookup) (Tri, error) {
	l, err := evalValue(e.Expr, lookup)
	if err != nil {
		return Unknown, err
	}
	if l.IsNull() {
		return Unknown, nil
	}

	found := false
	sawUnknown := false
	for _, candExpr := range e.Values {
		r, err := evalValue(candExpr, lookup)
		if err != nil {
			return Unknown, err
		}
		if r.IsNull() {
			sawUnknown = true
			continue
		}
		cl, cr, ok := coerceForCompare(l, r)
		if !ok {
			continue
		}
		if value.Compare(cl, cr) == 0 {
			found = true
			break
		}
	}

	switch {
	case found:
		return FromBool(!e.Negate), nil
	case sawUnknown:
		return Unknown, nil
	default:
		return FromBool(e.Negate), nil
	}
}

func evalBetween(e *ast.BetweenExpression, lookup Lookup) (Tri, error) {
	v, err := evalValue(e.Expr, lookup)
	if err != nil {
		return Unknown, err
	}
	lo, err := evalValue(e.Low, lookup)
	if err != nil {
		return Unknown, err
	}
	hi, err := evalValue(e.High, lookup)
	if err != nil {
		return Unknown, err
	}
	if v.IsNull() || lo.IsNull() || hi.IsNull() {
		return Unknown, nil
	}

	a, b, ok := coerceForCompare(v, lo)
	if !ok {
		return Unknown, nil
	}
	geLo := value.Compare(a, b) >= 0

	a, b, ok = coerceForCompare(v, hi)
	if !ok {
		return Unknown, nil
	}
	leHi := value.Compare(a, b) <= 0

	result := geLo && leHi
	if e.Negate {
		result = !result
	}
	return FromBool(result), nil
}

func evalIsNull(e *ast.IsNullExpression, lookup Lookup) (Tri, error) {
	v, err := evalValue(e.Expr, lookup)
	if err != nil {
		return Unknown, err
	}
	isNull := v.IsNull()
	if e.Negate {
		isNull = !isNull
	}
	return FromBool(isNull), nil
}
