package provider

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/native"
	"github.com/daimatz/deobvm/pkg/value"
)

const stringClass = "java/lang/String"

// javaHash is String.hashCode over UTF-16 code units.
func javaHash(s string) int32 {
	var h int32
	for _, u := range ir.StringToUTF16(s) {
		h = 31*h + int32(u)
	}
	return h
}

func recvString(ctx *Context, c *Call) ([]uint16, error) {
	s, err := stringArg(ctx, c.Receiver)
	if err != nil {
		return nil, err
	}
	return ir.StringToUTF16(s), nil
}

func stringIndex(ctx *Context, i, n int) error {
	if i < 0 || i > n {
		return ctx.Throw("java/lang/StringIndexOutOfBoundsException", (&native.IndexError{Index: i, Length: n}).Error())
	}
	return nil
}

func charArray(units []uint16) value.Value {
	arr := value.NewArray("[C", len(units))
	for i, u := range units {
		arr.Elements[i] = value.IntValue(int32(u))
	}
	return value.RefValue(arr)
}

func arrayArg(ctx *Context, v value.Value) (*value.JArray, error) {
	if v.IsNull() {
		return nil, ctx.NullPointer("array is null")
	}
	arr, ok := v.Ref.(*value.JArray)
	if !ok {
		return nil, ctx.Throw("java/lang/ClassCastException", value.TypeOf(v)+" is not an array")
	}
	return arr, nil
}

func unitsOf(arr *value.JArray, off, n int) []uint16 {
	units := make([]uint16, n)
	for i := range units {
		units[i] = uint16(arr.Elements[off+i].Int)
	}
	return units
}

func defStrings() {
	s := stringClass
	def(s, "<init>", "()V", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return str(""), nil
	})
	def(s, "<init>", "(Ljava/lang/String;)V", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		v, err := stringArg(ctx, c.Args[0])
		return str(v), err
	})
	def(s, "<init>", "([C)V", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		arr, err := arrayArg(ctx, c.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		return str(ir.StringFromUTF16(unitsOf(arr, 0, len(arr.Elements)))), nil
	})
	def(s, "<init>", "([CII)V", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		arr, err := arrayArg(ctx, c.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		off, n := int(c.Args[1].Int), int(c.Args[2].Int)
		if off < 0 || n < 0 || off+n > len(arr.Elements) {
			return value.Value{}, ctx.Throw("java/lang/StringIndexOutOfBoundsException", "offset "+strconv.Itoa(off)+", count "+strconv.Itoa(n))
		}
		return str(ir.StringFromUTF16(unitsOf(arr, off, n))), nil
	})
	def(s, "<init>", "([B)V", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		arr, err := arrayArg(ctx, c.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		b := make([]byte, len(arr.Elements))
		for i, e := range arr.Elements {
			b[i] = byte(e.Int)
		}
		return str(strings.ToValidUTF8(string(b), string(utf8.RuneError))), nil
	})
	def(s, "length", "()I", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		u, err := recvString(ctx, c)
		return value.IntValue(int32(len(u))), err
	})
	def(s, "isEmpty", "()Z", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		u, err := recvString(ctx, c)
		return value.BoolValue(len(u) == 0), err
	})
	def(s, "charAt", "(I)C", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		u, err := recvString(ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		i := int(c.Args[0].Int)
		if err := stringIndex(ctx, i, len(u)-1); err != nil {
			return value.Value{}, err
		}
		return value.IntValue(int32(u[i])), nil
	})
	def(s, "toCharArray", "()[C", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		u, err := recvString(ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		return charArray(u), nil
	})
	def(s, "getBytes", "()[B", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		v, err := stringArg(ctx, c.Receiver)
		if err != nil {
			return value.Value{}, err
		}
		b := []byte(strings.ToValidUTF8(v, "?"))
		arr := value.NewArray("[B", len(b))
		for i, x := range b {
			arr.Elements[i] = value.IntValue(int32(int8(x)))
		}
		return value.RefValue(arr), nil
	})
	def(s, "hashCode", "()I", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		v, err := stringArg(ctx, c.Receiver)
		return value.IntValue(javaHash(v)), err
	})
	def(s, "equals", "(Ljava/lang/Object;)Z", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		a, err := stringArg(ctx, c.Receiver)
		if err != nil {
			return value.Value{}, err
		}
		b, ok := value.AsString(c.Args[0])
		return value.BoolValue(ok && a == b), nil
	})
	def(s, "toString", "()Ljava/lang/String;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		_, err := stringArg(ctx, c.Receiver)
		return c.Receiver, err
	})
	def(s, "intern", "()Ljava/lang/String;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		v, err := stringArg(ctx, c.Receiver)
		return value.Intern(v), err
	})
	def(s, "concat", "(Ljava/lang/String;)Ljava/lang/String;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		a, err := stringArg(ctx, c.Receiver)
		if err != nil {
			return value.Value{}, err
		}
		b, err := stringArg(ctx, c.Args[0])
		return str(a + b), err
	})
	substring := func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		u, err := recvString(ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		begin, end := int(c.Args[0].Int), len(u)
		if len(c.Args) > 1 {
			end = int(c.Args[1].Int)
		}
		if begin < 0 || end > len(u) || begin > end {
			return value.Value{}, ctx.Throw("java/lang/StringIndexOutOfBoundsException", "begin "+strconv.Itoa(begin)+", end "+strconv.Itoa(end)+", length "+strconv.Itoa(len(u)))
		}
		return str(ir.StringFromUTF16(u[begin:end])), nil
	}
	def(s, "substring", "(I)Ljava/lang/String;", substring)
	def(s, "substring", "(II)Ljava/lang/String;", substring)
	def(s, "indexOf", "(I)I", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		u, err := recvString(ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		for i, x := range u {
			if int32(x) == c.Args[0].Int {
				return value.IntValue(int32(i)), nil
			}
		}
		return value.IntValue(-1), nil
	})
	def(s, "indexOf", "(Ljava/lang/String;)I", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		a, err := stringArg(ctx, c.Receiver)
		if err != nil {
			return value.Value{}, err
		}
		b, err := stringArg(ctx, c.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		i := strings.Index(a, b)
		if i < 0 {
			return value.IntValue(-1), nil
		}
		return value.IntValue(int32(ir.StringLength(a[:i]))), nil
	})

	valueOf := func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		if _, ok := value.AsString(c.Args[0]); ok {
			return c.Args[0], nil
		}
		out, err := toJavaString(ctx, c.Args[0], argTypes(c)[0])
		return str(out), err
	}
	for _, d := range []string{"I", "J", "C", "Z", "F", "D", "Ljava/lang/Object;"} {
		def(s, "valueOf", "("+d+")Ljava/lang/String;", valueOf)
	}
	def(s, "valueOf", "([C)Ljava/lang/String;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		arr, err := arrayArg(ctx, c.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		return str(ir.StringFromUTF16(unitsOf(arr, 0, len(arr.Elements)))), nil
	})
}

const builderClass = "java/lang/StringBuilder"

func recvBuilder(ctx *Context, c *Call) (*native.StringBuilder, error) {
	if c.Receiver.IsNull() {
		return nil, ctx.NullPointer("builder is null")
	}
	b, ok := c.Receiver.Ref.(*native.StringBuilder)
	if !ok {
		return nil, ctx.Throw("java/lang/ClassCastException", value.TypeOf(c.Receiver)+" is not a string builder")
	}
	return b, nil
}

func builderIndex(ctx *Context, err error) error {
	if err != nil {
		return ctx.Throw("java/lang/StringIndexOutOfBoundsException", err.Error())
	}
	return nil
}

func defBuilders() {
	b := builderClass
	ctor := func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		class := c.Owner
		if c.Receiver.IsPending() {
			class = c.Receiver.PendingType()
		}
		init := ""
		if len(c.Args) == 1 && c.Args[0].Kind != value.KindInt {
			s, err := stringArg(ctx, c.Args[0])
			if err != nil {
				return value.Value{}, err
			}
			init = s
		}
		return value.RefValue(native.NewStringBuilder(class, init)), nil
	}
	def(b, "<init>", "()V", ctor)
	def(b, "<init>", "(I)V", ctor)
	def(b, "<init>", "(Ljava/lang/String;)V", ctor)

	ret := "Ljava/lang/StringBuilder;"
	for _, d := range []string{"Ljava/lang/String;", "Ljava/lang/Object;", "Ljava/lang/CharSequence;", "I", "J", "C", "Z", "F", "D"} {
		def(b, "append", "("+d+")"+ret, func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
			sb, err := recvBuilder(ctx, c)
			if err != nil {
				return value.Value{}, err
			}
			s, err := toJavaString(ctx, c.Args[0], argTypes(c)[0])
			if err != nil {
				return value.Value{}, err
			}
			sb.Append(s)
			return c.Receiver, nil
		})
	}
	def(b, "toString", "()Ljava/lang/String;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		sb, err := recvBuilder(ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		return str(sb.String()), nil
	})
	def(b, "length", "()I", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		sb, err := recvBuilder(ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		return value.IntValue(int32(sb.Len())), nil
	})
	def(b, "charAt", "(I)C", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		sb, err := recvBuilder(ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		u, err := sb.CharAt(int(c.Args[0].Int))
		return value.IntValue(int32(u)), builderIndex(ctx, err)
	})
	def(b, "setCharAt", "(IC)V", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		sb, err := recvBuilder(ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		return value.Top(), builderIndex(ctx, sb.SetCharAt(int(c.Args[0].Int), uint16(c.Args[1].Int)))
	})
	def(b, "setLength", "(I)V", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		sb, err := recvBuilder(ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		return value.Top(), builderIndex(ctx, sb.SetLength(int(c.Args[0].Int)))
	})
	def(b, "deleteCharAt", "(I)"+ret, func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		sb, err := recvBuilder(ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		return c.Receiver, builderIndex(ctx, sb.DeleteCharAt(int(c.Args[0].Int)))
	})
	for _, d := range []string{"Ljava/lang/String;", "C"} {
		def(b, "insert", "(I"+d+")"+ret, func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
			sb, err := recvBuilder(ctx, c)
			if err != nil {
				return value.Value{}, err
			}
			s, err := toJavaString(ctx, c.Args[1], argTypes(c)[1])
			if err != nil {
				return value.Value{}, err
			}
			return c.Receiver, builderIndex(ctx, sb.Insert(int(c.Args[0].Int), s))
		})
	}
	def(b, "reverse", "()"+ret, func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		sb, err := recvBuilder(ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		sb.Reverse()
		return c.Receiver, nil
	})
}
