// Package operators implements the binary and unary operator dispatch
// tables of the language: closed tables indexed by the pair of concrete
// value variants, rather than virtual dispatch on the values themselves,
// so that adding a variant only touches this package.
package operators

import (
	"fmt"
	"math"
	"strings"

	"github.com/mna/glacier/glarerr"
	"github.com/mna/glacier/lang/value"
)

// Error is a kind+message pair describing an operator failure. Callers
// attach a source span to produce a *glarerr.Error.
type Error struct {
	Kind    glarerr.Kind
	Message string
}

func errf(kind glarerr.Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Binary applies op to the dereferenced operands l and r, allocating any
// new composite result through h. It returns the result value (not yet
// allocated) and a nil error, or a nil value and a non-nil error.
func Binary(op string, h *value.Heap, l, r value.Value) (value.Value, *Error) {
	switch op {
	case "+":
		return binAdd(h, l, r)
	case "-":
		return binSub(l, r)
	case "*":
		return binMul(h, l, r)
	case "/":
		return binDiv(l, r)
	case "%":
		return binMod(l, r)
	case "**":
		return binExp(h, l, r)
	case "==":
		return value.Bool(value.Equal(h, l, r)), nil
	case "!=":
		return value.Bool(!value.Equal(h, l, r)), nil
	case "<", "<=", ">", ">=":
		return binCompare(op, l, r)
	case "&&", "||":
		// Short-circuit operators never reach here: the compiler lowers them
		// to jumps, not to a BINARY_* opcode.
		return nil, errf(glarerr.UnsupportedBinary, "Unsupported Binary operation: %s %s %s", l.Type(), op, r.Type())
	default:
		return nil, errf(glarerr.UnsupportedBinary, "Unsupported Binary operation: %s %s %s", l.Type(), op, r.Type())
	}
}

func unsupportedBinary(op string, l, r value.Value) *Error {
	return errf(glarerr.UnsupportedBinary, "Unsupported Binary operation: %s %s %s", l.Type(), op, r.Type())
}

func asIntFloat(v value.Value) (f float64, isFloat, ok bool) {
	switch x := v.(type) {
	case value.Int:
		return float64(x), false, true
	case value.Float:
		return float64(x), true, true
	default:
		return 0, false, false
	}
}

func binAdd(h *value.Heap, l, r value.Value) (value.Value, *Error) {
	if li, ok := l.(value.Int); ok {
		if ri, ok := r.(value.Int); ok {
			return li + ri, nil
		}
	}
	if lf, rf, ok := bothNumeric(l, r); ok {
		return value.Float(lf + rf), nil
	}
	if ls, ok := l.(value.String); ok {
		if rs, ok := r.(value.String); ok {
			return value.String(string(ls) + string(rs)), nil
		}
	}
	if la, ok := l.(*value.Array); ok {
		if ra, ok := r.(*value.Array); ok {
			elems := make([]value.Handle, 0, len(la.Elems)+len(ra.Elems))
			elems = append(elems, la.Elems...)
			elems = append(elems, ra.Elems...)
			return value.NewArray(elems), nil
		}
	}
	return nil, unsupportedBinary("+", l, r)
}

func binSub(l, r value.Value) (value.Value, *Error) {
	if li, ok := l.(value.Int); ok {
		if ri, ok := r.(value.Int); ok {
			return li - ri, nil
		}
	}
	if lf, rf, ok := bothNumeric(l, r); ok {
		return value.Float(lf - rf), nil
	}
	return nil, unsupportedBinary("-", l, r)
}

// bothNumeric returns the float value of both operands if both are Int or
// Float (in any combination), with Int widened to Float.
func bothNumeric(l, r value.Value) (lf, rf float64, ok bool) {
	lfv, _, lok := asIntFloat(l)
	rfv, _, rok := asIntFloat(r)
	if !lok || !rok {
		return 0, 0, false
	}
	return lfv, rfv, true
}

func binMul(h *value.Heap, l, r value.Value) (value.Value, *Error) {
	if li, ok := l.(value.Int); ok {
		if ri, ok := r.(value.Int); ok {
			return li * ri, nil
		}
	}
	if lf, rf, ok := bothNumeric(l, r); ok {
		return value.Float(lf * rf), nil
	}
	if arr, n, ok := arrayIntPair(l, r); ok {
		return repeatShallow(h, arr, n)
	}
	if arr, s, ok := arrayStringPair(l, r); ok {
		return joinArray(h, arr, s)
	}
	return nil, unsupportedBinary("*", l, r)
}

func arrayIntPair(l, r value.Value) (*value.Array, int64, bool) {
	if la, ok := l.(*value.Array); ok {
		if ri, ok := r.(value.Int); ok {
			return la, int64(ri), true
		}
	}
	if ra, ok := r.(*value.Array); ok {
		if li, ok := l.(value.Int); ok {
			return ra, int64(li), true
		}
	}
	return nil, 0, false
}

func arrayStringPair(l, r value.Value) (*value.Array, value.String, bool) {
	if la, ok := l.(*value.Array); ok {
		if rs, ok := r.(value.String); ok {
			return la, rs, true
		}
	}
	if ra, ok := r.(*value.Array); ok {
		if ls, ok := l.(value.String); ok {
			return ra, ls, true
		}
	}
	return nil, "", false
}

func repeatShallow(h *value.Heap, arr *value.Array, n int64) (value.Value, *Error) {
	if n < 0 {
		return nil, errf(glarerr.ArgumentError, "Array repeat count must be non-negative, got %d", n)
	}
	elems := make([]value.Handle, 0, int64(len(arr.Elems))*n)
	for i := int64(0); i < n; i++ {
		for _, e := range arr.Elems {
			elems = append(elems, h.ShallowCopy(e))
		}
	}
	return value.NewArray(elems), nil
}

func repeatDeep(h *value.Heap, arr *value.Array, n int64) (value.Value, *Error) {
	if n < 0 {
		return nil, errf(glarerr.ArgumentError, "Array repeat count must be non-negative, got %d", n)
	}
	elems := make([]value.Handle, 0, int64(len(arr.Elems))*n)
	for i := int64(0); i < n; i++ {
		for _, e := range arr.Elems {
			elems = append(elems, h.DeepCopy(e))
		}
	}
	return value.NewArray(elems), nil
}

func joinArray(h *value.Heap, arr *value.Array, sep value.String) (value.Value, *Error) {
	parts := make([]string, len(arr.Elems))
	for i, e := range arr.Elems {
		parts[i] = h.Format(e, false)
	}
	return value.String(strings.Join(parts, string(sep))), nil
}

func binDiv(l, r value.Value) (value.Value, *Error) {
	if li, ok := l.(value.Int); ok {
		if ri, ok := r.(value.Int); ok {
			if ri == 0 {
				return nil, errf(glarerr.ZeroDivision, "Division by zero: %d / 0", li)
			}
			return li / ri, nil
		}
	}
	if lf, rf, ok := bothNumeric(l, r); ok {
		if rf == 0 {
			return nil, errf(glarerr.ZeroDivision, "Division by zero: %s / 0", l.Display())
		}
		return value.Float(lf / rf), nil
	}
	return nil, unsupportedBinary("/", l, r)
}

func binMod(l, r value.Value) (value.Value, *Error) {
	if li, ok := l.(value.Int); ok {
		if ri, ok := r.(value.Int); ok {
			if ri == 0 {
				return nil, errf(glarerr.ZeroDivision, "Modulo by zero: %d %% 0", li)
			}
			m := li % ri
			if m != 0 && (m < 0) != (ri < 0) {
				m += ri
			}
			return m, nil
		}
	}
	if lf, rf, ok := bothNumeric(l, r); ok {
		if rf == 0 {
			return nil, errf(glarerr.ZeroDivision, "Modulo by zero: %s %% 0", l.Display())
		}
		m := floorMod(lf, rf)
		return value.Float(m), nil
	}
	return nil, unsupportedBinary("%", l, r)
}

func floorMod(a, b float64) float64 {
	m := a - b*float64(int64(a/b))
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

func binExp(h *value.Heap, l, r value.Value) (value.Value, *Error) {
	if arr, n, ok := arrayIntPair(l, r); ok {
		return repeatDeep(h, arr, n)
	}
	if lf, rf, ok := bothNumeric(l, r); ok {
		return value.Float(math.Pow(lf, rf)), nil
	}
	return nil, unsupportedBinary("**", l, r)
}

func binCompare(op string, l, r value.Value) (value.Value, *Error) {
	if lf, rf, ok := bothNumeric(l, r); ok {
		return value.Bool(compareOp(op, cmpFloat(lf, rf))), nil
	}
	if ls, ok := l.(value.String); ok {
		if rs, ok := r.(value.String); ok {
			return value.Bool(compareOp(op, strings.Compare(string(ls), string(rs)))), nil
		}
	}
	return nil, unsupportedBinary(op, l, r)
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareOp(op string, c int) bool {
	switch op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}
