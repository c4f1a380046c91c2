package provider

import (
	"math"
	"strconv"

	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/native"
	"github.com/daimatz/deobvm/pkg/value"
)

var numericWrappers = []string{
	"java/lang/Integer", "java/lang/Long", "java/lang/Short",
	"java/lang/Byte", "java/lang/Float", "java/lang/Double",
}

var conversions = map[[2]value.Kind]ir.Opcode{
	{value.KindInt, value.KindLong}: ir.OpI2l, {value.KindInt, value.KindFloat}: ir.OpI2f,
	{value.KindInt, value.KindDouble}: ir.OpI2d, {value.KindLong, value.KindInt}: ir.OpL2i,
	{value.KindLong, value.KindFloat}: ir.OpL2f, {value.KindLong, value.KindDouble}: ir.OpL2d,
	{value.KindFloat, value.KindInt}: ir.OpF2i, {value.KindFloat, value.KindLong}: ir.OpF2l,
	{value.KindFloat, value.KindDouble}: ir.OpF2d, {value.KindDouble, value.KindInt}: ir.OpD2i,
	{value.KindDouble, value.KindLong}: ir.OpD2l, {value.KindDouble, value.KindFloat}: ir.OpD2f,
}

// convertPrim converts a primitive to descriptor to as a Java cast would.
func convertPrim(v value.Value, to string) value.Value {
	if op, ok := conversions[[2]value.Kind{v.Kind, value.KindOf(to)}]; ok {
		v, _ = value.Unary(op, v)
	}
	narrow := map[string]ir.Opcode{"B": ir.OpI2b, "S": ir.OpI2s, "C": ir.OpI2c}
	if op, ok := narrow[to]; ok {
		v, _ = value.Unary(op, v)
	}
	return v
}

func recvBox(ctx *Context, c *Call) (*native.Box, error) {
	if c.Receiver.IsNull() {
		return nil, ctx.NullPointer("boxed value is null")
	}
	b, ok := c.Receiver.Ref.(*native.Box)
	if !ok {
		return nil, ctx.Throw("java/lang/ClassCastException", value.TypeOf(c.Receiver)+" is not a boxed primitive")
	}
	return b, nil
}

// boxHash is the hashCode of each wrapper class.
func boxHash(b *native.Box) int32 {
	v := b.Value
	switch v.Kind {
	case value.KindLong:
		return int32(v.Long ^ int64(uint64(v.Long)>>32))
	case value.KindFloat:
		return int32(math.Float32bits(v.Float))
	case value.KindDouble:
		bits := math.Float64bits(v.Double)
		return int32(bits ^ bits>>32)
	}
	if b.Class == "java/lang/Boolean" {
		if v.Int != 0 {
			return 1231
		}
		return 1237
	}
	return v.Int
}

// boxEquals compares wrapped values the way the wrapper equals methods do:
// floating-point values by bit pattern.
func boxEquals(a, b *native.Box) bool {
	if a.Class != b.Class || a.Value.Kind != b.Value.Kind {
		return false
	}
	switch a.Value.Kind {
	case value.KindFloat:
		return math.Float32bits(a.Value.Float) == math.Float32bits(b.Value.Float)
	case value.KindDouble:
		return math.Float64bits(a.Value.Double) == math.Float64bits(b.Value.Double)
	}
	return a.Value == b.Value
}

func defBoxes() {
	for _, class := range []string{
		"java/lang/Integer", "java/lang/Long", "java/lang/Short", "java/lang/Byte",
		"java/lang/Float", "java/lang/Double", "java/lang/Character", "java/lang/Boolean",
	} {
		class := class
		prim := native.PrimitiveOf(class)
		def(class, "valueOf", "("+prim+")L"+class+";", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
			return value.RefValue(p.boxes.ValueOf(class, c.Args[0])), nil
		})
		def(class, "<init>", "("+prim+")V", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
			return value.RefValue(&native.Box{Class: class, Value: c.Args[0]}), nil
		})
		def(class, "toString", "("+prim+")Ljava/lang/String;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
			return str(native.Format(c.Args[0], prim)), nil
		})
		def(class, "toString", "()Ljava/lang/String;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
			b, err := recvBox(ctx, c)
			if err != nil {
				return value.Value{}, err
			}
			return str(native.Format(b.Value, prim)), nil
		})
		def(class, "hashCode", "()I", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
			b, err := recvBox(ctx, c)
			if err != nil {
				return value.Value{}, err
			}
			return value.IntValue(boxHash(b)), nil
		})
		def(class, "equals", "(Ljava/lang/Object;)Z", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
			b, err := recvBox(ctx, c)
			if err != nil {
				return value.Value{}, err
			}
			other, ok := c.Args[0].Ref.(*native.Box)
			return value.BoolValue(ok && boxEquals(b, other)), nil
		})
	}

	unbox := func(to string) platformMethod {
		return func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
			b, err := recvBox(ctx, c)
			if err != nil {
				return value.Value{}, err
			}
			return convertPrim(b.Value, to), nil
		}
	}
	accessors := map[string]string{
		"intValue": "I", "longValue": "J", "shortValue": "S",
		"byteValue": "B", "floatValue": "F", "doubleValue": "D",
	}
	for _, class := range append(numericWrappers, "java/lang/Number") {
		for name, d := range accessors {
			def(class, name, "()"+d, unbox(d))
		}
	}
	def("java/lang/Character", "charValue", "()C", unbox("C"))
	def("java/lang/Boolean", "booleanValue", "()Z", unbox("Z"))

	parseInt := func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		s, err := stringArg(ctx, c.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		radix := 10
		if len(c.Args) > 1 {
			radix = int(c.Args[1].Int)
		}
		n, perr := strconv.ParseInt(s, radix, 32)
		if perr != nil {
			return value.Value{}, ctx.Throw("java/lang/NumberFormatException", "For input string: \""+s+"\"")
		}
		return value.IntValue(int32(n)), nil
	}
	def("java/lang/Integer", "parseInt", "(Ljava/lang/String;)I", parseInt)
	def("java/lang/Integer", "parseInt", "(Ljava/lang/String;I)I", parseInt)
	def("java/lang/Integer", "valueOf", "(Ljava/lang/String;)Ljava/lang/Integer;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		n, err := parseInt(p, ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		return value.RefValue(p.boxes.ValueOf("java/lang/Integer", n)), nil
	})
	def("java/lang/Long", "parseLong", "(Ljava/lang/String;)J", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		s, err := stringArg(ctx, c.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		n, perr := strconv.ParseInt(s, 10, 64)
		if perr != nil {
			return value.Value{}, ctx.Throw("java/lang/NumberFormatException", "For input string: \""+s+"\"")
		}
		return value.LongValue(n), nil
	})
	def("java/lang/Integer", "toHexString", "(I)Ljava/lang/String;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return str(strconv.FormatUint(uint64(uint32(c.Args[0].Int)), 16)), nil
	})
}

func defMath() {
	m := "java/lang/Math"
	def(m, "abs", "(I)I", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		if x := c.Args[0].Int; x < 0 {
			return value.IntValue(-x), nil
		}
		return c.Args[0], nil
	})
	def(m, "abs", "(J)J", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		if x := c.Args[0].Long; x < 0 {
			return value.LongValue(-x), nil
		}
		return c.Args[0], nil
	})
	def(m, "abs", "(D)D", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return value.DoubleValue(math.Abs(c.Args[0].Double)), nil
	})
	def(m, "max", "(II)I", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return value.IntValue(max(c.Args[0].Int, c.Args[1].Int)), nil
	})
	def(m, "min", "(II)I", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return value.IntValue(min(c.Args[0].Int, c.Args[1].Int)), nil
	})
	def(m, "max", "(JJ)J", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return value.LongValue(max(c.Args[0].Long, c.Args[1].Long)), nil
	})
	def(m, "min", "(JJ)J", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return value.LongValue(min(c.Args[0].Long, c.Args[1].Long)), nil
	})
	def(m, "floorMod", "(II)I", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		x, y := c.Args[0].Int, c.Args[1].Int
		if y == 0 {
			return value.Value{}, ctx.Throw("java/lang/ArithmeticException", "/ by zero")
		}
		r := x % y
		if r != 0 && (r < 0) != (y < 0) {
			r += y
		}
		return value.IntValue(r), nil
	})
	def(m, "pow", "(DD)D", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return value.DoubleValue(math.Pow(c.Args[0].Double, c.Args[1].Double)), nil
	})
	def(m, "sqrt", "(D)D", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return value.DoubleValue(math.Sqrt(c.Args[0].Double)), nil
	})
}
