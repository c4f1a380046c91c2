package vm

import (
	"fmt"

	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/provider"
	"github.com/daimatz/deobvm/pkg/value"
)

// arrayOperand checks that ref is a non-null array.
func arrayOperand(ctx *provider.Context, op ir.Opcode, ref value.Value) (*value.JArray, error) {
	if ref.IsNull() {
		return nil, ctx.NullPointer(fmt.Sprintf("Cannot %s because array is null", op))
	}
	arr, ok := ref.Ref.(*value.JArray)
	if !ok {
		return nil, fmt.Errorf("%s: %s is not an array", op, value.TypeOf(ref))
	}
	return arr, nil
}

// element returns a pointer to arr[index], throwing when out of bounds.
func element(ctx *provider.Context, arr *value.JArray, index int32) (*value.Value, error) {
	if index < 0 || int(index) >= len(arr.Elements) {
		return nil, ctx.Throw(excArrayIndex, indexMessage(index, len(arr.Elements)))
	}
	return &arr.Elements[index], nil
}

// narrowStore truncates an int stored into a byte, boolean, char or short
// array to the element width.
func narrowStore(arrType string, v value.Value) value.Value {
	if v.Kind != value.KindInt {
		return v
	}
	switch ir.ElementType(arrType) {
	case "Z":
		return value.IntValue(v.Int & 1)
	case "B":
		return value.IntValue(int32(int8(v.Int)))
	case "C":
		return value.IntValue(int32(uint16(v.Int)))
	case "S":
		return value.IntValue(int32(int16(v.Int)))
	}
	return v
}

// newArray allocates a one-dimensional array, throwing on a negative
// length.
func newArray(ctx *provider.Context, typ string, length int32) (value.Value, error) {
	if length < 0 {
		return value.Value{}, ctx.Throw(excNegativeSize, fmt.Sprint(length))
	}
	return value.RefValue(value.NewArray(typ, int(length))), nil
}

// multiNewArray allocates nested arrays for each given dimension. Deeper
// levels named by typ but not by dims stay null.
func multiNewArray(ctx *provider.Context, typ string, dims []int32) (value.Value, error) {
	for _, d := range dims {
		if d < 0 {
			return value.Value{}, ctx.Throw(excNegativeSize, fmt.Sprint(d))
		}
	}
	return buildArray(typ, dims), nil
}

func buildArray(typ string, dims []int32) value.Value {
	arr := value.NewArray(typ, int(dims[0]))
	if len(dims) > 1 {
		elem := typ[1:]
		for i := range arr.Elements {
			arr.Elements[i] = buildArray(elem, dims[1:])
		}
	}
	return value.RefValue(arr)
}
