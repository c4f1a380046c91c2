package value

import (
	"errors"
	"fmt"
	"math"

	"github.com/daimatz/deobvm/pkg/ir"
)

// ErrDivideByZero is returned by integer division and remainder by zero.
// The interpreter turns it into a guest ArithmeticException.
var ErrDivideByZero = errors.New("/ by zero")

// Binary applies a two-operand arithmetic, bitwise, shift or comparison
// opcode with exact JVM semantics. a is the deeper stack operand.
func Binary(op ir.Opcode, a, b Value) (Value, error) {
	switch op {
	case ir.OpIadd, ir.OpIsub, ir.OpImul, ir.OpIdiv, ir.OpIrem,
		ir.OpIand, ir.OpIor, ir.OpIxor, ir.OpIshl, ir.OpIshr, ir.OpIushr:
		if a.Kind != KindInt || b.Kind != KindInt {
			return Value{}, operandError(op, a, b)
		}
		return intBinary(op, a.Int, b.Int)

	case ir.OpLshl, ir.OpLshr, ir.OpLushr:
		if a.Kind != KindLong || b.Kind != KindInt {
			return Value{}, operandError(op, a, b)
		}
		s := uint(b.Int & 63)
		switch op {
		case ir.OpLshl:
			return LongValue(a.Long << s), nil
		case ir.OpLshr:
			return LongValue(a.Long >> s), nil
		}
		return LongValue(int64(uint64(a.Long) >> s)), nil

	case ir.OpLadd, ir.OpLsub, ir.OpLmul, ir.OpLdiv, ir.OpLrem,
		ir.OpLand, ir.OpLor, ir.OpLxor, ir.OpLcmp:
		if a.Kind != KindLong || b.Kind != KindLong {
			return Value{}, operandError(op, a, b)
		}
		return longBinary(op, a.Long, b.Long)

	case ir.OpFadd, ir.OpFsub, ir.OpFmul, ir.OpFdiv, ir.OpFrem, ir.OpFcmpl, ir.OpFcmpg:
		if a.Kind != KindFloat || b.Kind != KindFloat {
			return Value{}, operandError(op, a, b)
		}
		x, y := a.Float, b.Float
		switch op {
		case ir.OpFadd:
			return FloatValue(float32(x + y)), nil
		case ir.OpFsub:
			return FloatValue(float32(x - y)), nil
		case ir.OpFmul:
			return FloatValue(float32(x * y)), nil
		case ir.OpFdiv:
			return FloatValue(float32(x / y)), nil
		case ir.OpFrem:
			return FloatValue(float32(math.Mod(float64(x), float64(y)))), nil
		}
		return IntValue(fcmp(float64(x), float64(y), op == ir.OpFcmpg)), nil

	case ir.OpDadd, ir.OpDsub, ir.OpDmul, ir.OpDdiv, ir.OpDrem, ir.OpDcmpl, ir.OpDcmpg:
		if a.Kind != KindDouble || b.Kind != KindDouble {
			return Value{}, operandError(op, a, b)
		}
		x, y := a.Double, b.Double
		switch op {
		case ir.OpDadd:
			return DoubleValue(float64(x + y)), nil
		case ir.OpDsub:
			return DoubleValue(float64(x - y)), nil
		case ir.OpDmul:
			return DoubleValue(float64(x * y)), nil
		case ir.OpDdiv:
			return DoubleValue(float64(x / y)), nil
		case ir.OpDrem:
			return DoubleValue(math.Mod(x, y)), nil
		}
		return IntValue(fcmp(x, y, op == ir.OpDcmpg)), nil
	}
	return Value{}, fmt.Errorf("%s is not a binary operator", op)
}

func intBinary(op ir.Opcode, x, y int32) (Value, error) {
	switch op {
	case ir.OpIadd:
		return IntValue(x + y), nil
	case ir.OpIsub:
		return IntValue(x - y), nil
	case ir.OpImul:
		return IntValue(x * y), nil
	case ir.OpIdiv:
		if y == 0 {
			return Value{}, ErrDivideByZero
		}
		// MinInt32 / -1 wraps to MinInt32 in Go as in the JVM.
		return IntValue(x / y), nil
	case ir.OpIrem:
		if y == 0 {
			return Value{}, ErrDivideByZero
		}
		return IntValue(x % y), nil
	case ir.OpIand:
		return IntValue(x & y), nil
	case ir.OpIor:
		return IntValue(x | y), nil
	case ir.OpIxor:
		return IntValue(x ^ y), nil
	case ir.OpIshl:
		return IntValue(x << uint(y&31)), nil
	case ir.OpIshr:
		return IntValue(x >> uint(y&31)), nil
	}
	return IntValue(int32(uint32(x) >> uint(y&31))), nil
}

func longBinary(op ir.Opcode, x, y int64) (Value, error) {
	switch op {
	case ir.OpLadd:
		return LongValue(x + y), nil
	case ir.OpLsub:
		return LongValue(x - y), nil
	case ir.OpLmul:
		return LongValue(x * y), nil
	case ir.OpLdiv:
		if y == 0 {
			return Value{}, ErrDivideByZero
		}
		return LongValue(x / y), nil
	case ir.OpLrem:
		if y == 0 {
			return Value{}, ErrDivideByZero
		}
		return LongValue(x % y), nil
	case ir.OpLand:
		return LongValue(x & y), nil
	case ir.OpLor:
		return LongValue(x | y), nil
	case ir.OpLxor:
		return LongValue(x ^ y), nil
	}
	switch {
	case x < y:
		return IntValue(-1), nil
	case x > y:
		return IntValue(1), nil
	}
	return IntValue(0), nil
}

// fcmp implements fcmpl/fcmpg and dcmpl/dcmpg. NaN yields 1 for the g
// variants and -1 for the l variants.
func fcmp(x, y float64, nanIsGreater bool) int32 {
	switch {
	case x > y:
		return 1
	case x == y:
		return 0
	case x < y:
		return -1
	}
	if nanIsGreater {
		return 1
	}
	return -1
}

// unaryOperand maps each unary opcode to the kind it consumes.
var unaryOperand = map[ir.Opcode]Kind{
	ir.OpIneg: KindInt, ir.OpLneg: KindLong, ir.OpFneg: KindFloat, ir.OpDneg: KindDouble,
	ir.OpI2l: KindInt, ir.OpI2f: KindInt, ir.OpI2d: KindInt,
	ir.OpL2i: KindLong, ir.OpL2f: KindLong, ir.OpL2d: KindLong,
	ir.OpF2i: KindFloat, ir.OpF2l: KindFloat, ir.OpF2d: KindFloat,
	ir.OpD2i: KindDouble, ir.OpD2l: KindDouble, ir.OpD2f: KindDouble,
	ir.OpI2b: KindInt, ir.OpI2c: KindInt, ir.OpI2s: KindInt,
}

// Unary applies negation or a primitive conversion opcode.
func Unary(op ir.Opcode, v Value) (Value, error) {
	k, ok := unaryOperand[op]
	if !ok {
		return Value{}, fmt.Errorf("%s is not a unary operator", op)
	}
	if v.Kind != k {
		return Value{}, fmt.Errorf("%s: expected %s operand, got %s", op, k, v.Kind)
	}

	switch op {
	case ir.OpIneg:
		return IntValue(-v.Int), nil
	case ir.OpLneg:
		return LongValue(-v.Long), nil
	case ir.OpFneg:
		return FloatValue(-v.Float), nil
	case ir.OpDneg:
		return DoubleValue(-v.Double), nil
	case ir.OpI2l:
		return LongValue(int64(v.Int)), nil
	case ir.OpI2f:
		return FloatValue(float32(v.Int)), nil
	case ir.OpI2d:
		return DoubleValue(float64(v.Int)), nil
	case ir.OpL2i:
		return IntValue(int32(v.Long)), nil
	case ir.OpL2f:
		return FloatValue(float32(v.Long)), nil
	case ir.OpL2d:
		return DoubleValue(float64(v.Long)), nil
	case ir.OpF2i:
		return IntValue(int32(floatToInt(float64(v.Float), math.MinInt32, math.MaxInt32))), nil
	case ir.OpF2l:
		return LongValue(floatToInt(float64(v.Float), math.MinInt64, math.MaxInt64)), nil
	case ir.OpF2d:
		return DoubleValue(float64(v.Float)), nil
	case ir.OpD2i:
		return IntValue(int32(floatToInt(v.Double, math.MinInt32, math.MaxInt32))), nil
	case ir.OpD2l:
		return LongValue(floatToInt(v.Double, math.MinInt64, math.MaxInt64)), nil
	case ir.OpD2f:
		return FloatValue(float32(v.Double)), nil
	case ir.OpI2b:
		return IntValue(int32(int8(v.Int))), nil
	case ir.OpI2c:
		return IntValue(int32(uint16(v.Int))), nil
	}
	return IntValue(int32(int16(v.Int))), nil
}

// floatToInt converts with JVM saturation: NaN is 0 and out-of-range
// values clamp to the target bounds.
func floatToInt(f float64, lo, hi int64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f <= float64(lo):
		return lo
	case f >= float64(hi):
		return hi
	}
	return int64(f)
}

func operandError(op ir.Opcode, a, b Value) error {
	return fmt.Errorf("%s: bad operand kinds %s, %s", op, a.Kind, b.Kind)
}
