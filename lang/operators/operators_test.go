package operators

import (
	"math"
	"testing"

	"github.com/mna/glacier/glarerr"
	"github.com/mna/glacier/lang/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryIntArithmeticWraps(t *testing.T) {
	h := value.NewHeap()
	v, err := Binary("+", h, value.Int(math.MaxInt64), value.Int(1))
	require.Nil(t, err)
	assert.Equal(t, value.Int(math.MinInt64), v)
}

func TestBinaryMixedIntFloatWidensToFloat(t *testing.T) {
	h := value.NewHeap()
	v, err := Binary("+", h, value.Int(1), value.Float(2.5))
	require.Nil(t, err)
	assert.Equal(t, value.Float(3.5), v)
}

func TestBinaryStringConcat(t *testing.T) {
	h := value.NewHeap()
	v, err := Binary("+", h, value.String("Hello, "), value.String("world!"))
	require.Nil(t, err)
	assert.Equal(t, value.String("Hello, world!"), v)
}

func TestBinaryDivisionByZero(t *testing.T) {
	h := value.NewHeap()
	_, err := Binary("/", h, value.Int(10), value.Int(0))
	require.NotNil(t, err)
	assert.Equal(t, glarerr.ZeroDivision, err.Kind)
}

func TestBinaryModFlooredForm(t *testing.T) {
	h := value.NewHeap()
	v, err := Binary("%", h, value.Int(-7), value.Int(3))
	require.Nil(t, err)
	assert.Equal(t, value.Int(2), v, "floored modulo takes the divisor's sign")
}

func TestBinaryCompareStrict(t *testing.T) {
	h := value.NewHeap()
	lt, err := Binary("<", h, value.Int(1), value.Int(1))
	require.Nil(t, err)
	assert.Equal(t, value.Bool(false), lt)

	le, err := Binary("<=", h, value.Int(1), value.Int(1))
	require.Nil(t, err)
	assert.Equal(t, value.Bool(true), le)
}

func TestBinaryEqualityNeverErrors(t *testing.T) {
	h := value.NewHeap()
	v, err := Binary("==", h, value.Int(1), value.String("1"))
	require.Nil(t, err)
	assert.Equal(t, value.Bool(false), v)
}

func TestBinaryArrayConcat(t *testing.T) {
	h := value.NewHeap()
	a1 := value.NewArray([]value.Handle{h.Allocate(value.Int(1))})
	a2 := value.NewArray([]value.Handle{h.Allocate(value.Int(2))})
	v, err := Binary("+", h, a1, a2)
	require.Nil(t, err)
	arr := v.(*value.Array)
	assert.Len(t, arr.Elems, 2)
}

func TestBinaryArrayRepeatNegativeCount(t *testing.T) {
	h := value.NewHeap()
	arr := value.NewArray(nil)
	_, err := Binary("*", h, arr, value.Int(-1))
	require.NotNil(t, err)
	assert.Equal(t, glarerr.ArgumentError, err.Kind)
}

func TestBinaryArrayRepeatZeroYieldsEmpty(t *testing.T) {
	h := value.NewHeap()
	arr := value.NewArray([]value.Handle{h.Allocate(value.Int(1))})
	v, err := Binary("*", h, arr, value.Int(0))
	require.Nil(t, err)
	assert.Empty(t, v.(*value.Array).Elems)
}

func TestBinaryExpArrayRepeatZeroYieldsEmpty(t *testing.T) {
	h := value.NewHeap()
	arr := value.NewArray([]value.Handle{h.Allocate(value.Int(1))})
	v, err := Binary("**", h, arr, value.Int(0))
	require.Nil(t, err)
	assert.Empty(t, v.(*value.Array).Elems)
}

func TestUnaryNegSaturatesOnMinInt(t *testing.T) {
	v, err := Unary("-", value.Int(math.MinInt64))
	require.Nil(t, err)
	assert.Equal(t, value.Int(math.MaxInt64), v)
}

func TestUnaryNegOnBoolFails(t *testing.T) {
	_, err := Unary("-", value.Bool(true))
	require.NotNil(t, err)
	assert.Equal(t, glarerr.UnsupportedUnary, err.Kind)
	assert.Contains(t, err.Message, "Hint")
}

func TestUnaryNotAlwaysSucceeds(t *testing.T) {
	v, err := Unary("!", value.Int(0))
	require.Nil(t, err)
	assert.Equal(t, value.Bool(true), v)
}
