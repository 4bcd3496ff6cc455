package operators

import (
	"math"

	"github.com/mna/glacier/glarerr"
	"github.com/mna/glacier/lang/value"
)

// Unary applies a unary op ("-" or "!") to the dereferenced operand v.
func Unary(op string, v value.Value) (value.Value, *Error) {
	switch op {
	case "-":
		return unaryNeg(v)
	case "!":
		return value.Bool(!v.Truth()), nil
	default:
		return nil, errf(glarerr.UnsupportedUnary, "Unsupported Unary operation: %s%s", op, v.Type())
	}
}

func unaryNeg(v value.Value) (value.Value, *Error) {
	switch x := v.(type) {
	case value.Int:
		return value.Int(saturatingNeg(int64(x))), nil
	case value.Float:
		return -x, nil
	case value.Bool:
		return nil, errf(glarerr.UnsupportedUnary,
			"Unsupported Unary operation: -bool (Hint: Use !bool instead)")
	default:
		return nil, errf(glarerr.UnsupportedUnary, "Unsupported Unary operation: -%s", v.Type())
	}
}

// saturatingNeg negates i, saturating at math.MaxInt64 for the one value
// whose two's-complement negation would overflow (math.MinInt64). All
// other arithmetic in this module wraps on overflow; negation is the one
// specified exception (§9).
func saturatingNeg(i int64) int64 {
	if i == math.MinInt64 {
		return math.MaxInt64
	}
	return -i
}
