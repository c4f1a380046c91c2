package provider

import (
	"strconv"

	"github.com/daimatz/deobvm/pkg/native"
	"github.com/daimatz/deobvm/pkg/value"
)

func recvMap(ctx *Context, c *Call) (*native.HashMap, error) {
	if c.Receiver.IsNull() {
		return nil, ctx.NullPointer("map is null")
	}
	m, ok := c.Receiver.Ref.(*native.HashMap)
	if !ok {
		return nil, ctx.Throw("java/lang/ClassCastException", value.TypeOf(c.Receiver)+" is not a HashMap")
	}
	return m, nil
}

func defCollections() {
	for _, owner := range []string{"java/util/HashMap", "java/util/Map", "java/util/AbstractMap"} {
		def(owner, "get", "(Ljava/lang/Object;)Ljava/lang/Object;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
			m, err := recvMap(ctx, c)
			if err != nil {
				return value.Value{}, err
			}
			return m.Get(c.Args[0]), nil
		})
		def(owner, "put", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
			m, err := recvMap(ctx, c)
			if err != nil {
				return value.Value{}, err
			}
			return m.Put(c.Args[0], c.Args[1]), nil
		})
		def(owner, "remove", "(Ljava/lang/Object;)Ljava/lang/Object;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
			m, err := recvMap(ctx, c)
			if err != nil {
				return value.Value{}, err
			}
			return m.Remove(c.Args[0]), nil
		})
		def(owner, "containsKey", "(Ljava/lang/Object;)Z", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
			m, err := recvMap(ctx, c)
			if err != nil {
				return value.Value{}, err
			}
			return value.BoolValue(m.ContainsKey(c.Args[0])), nil
		})
		def(owner, "size", "()I", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
			m, err := recvMap(ctx, c)
			if err != nil {
				return value.Value{}, err
			}
			return value.IntValue(int32(m.Size())), nil
		})
	}
	def("java/util/HashMap", "<init>", "()V", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return value.RefValue(native.NewHashMap()), nil
	})
}

func defSystem() {
	ps := "java/io/PrintStream"
	for _, d := range []string{"I", "J", "C", "Z", "F", "D", "Ljava/lang/String;", "Ljava/lang/Object;"} {
		for _, name := range []string{"print", "println"} {
			newline := name == "println"
			def(ps, name, "("+d+")V", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
				out, err := recvStream(ctx, c)
				if err != nil {
					return value.Value{}, err
				}
				s, err := toJavaString(ctx, c.Args[0], argTypes(c)[0])
				if err != nil {
					return value.Value{}, err
				}
				if newline {
					out.Println(s)
				} else {
					out.Print(s)
				}
				return void()
			})
		}
	}
	def(ps, "println", "()V", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		out, err := recvStream(ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		out.Println("")
		return void()
	})

	sys := "java/lang/System"
	def(sys, "identityHashCode", "(Ljava/lang/Object;)I", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return value.IntValue(p.identityHash(c.Args[0])), nil
	})
	def(sys, "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		src, err := arrayArg(ctx, c.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		dst, err := arrayArg(ctx, c.Args[2])
		if err != nil {
			return value.Value{}, err
		}
		sp, dp, n := int(c.Args[1].Int), int(c.Args[3].Int), int(c.Args[4].Int)
		if sp < 0 || dp < 0 || n < 0 || sp+n > len(src.Elements) || dp+n > len(dst.Elements) {
			return value.Value{}, ctx.Throw("java/lang/ArrayIndexOutOfBoundsException", "arraycopy: last source index "+strconv.Itoa(sp+n)+" out of bounds")
		}
		copy(dst.Elements[dp:dp+n], src.Elements[sp:sp+n])
		return void()
	})
}

func recvStream(ctx *Context, c *Call) (*native.PrintStream, error) {
	if c.Receiver.IsNull() {
		return nil, ctx.NullPointer("stream is null")
	}
	out, ok := c.Receiver.Ref.(*native.PrintStream)
	if !ok {
		return nil, ctx.Throw("java/lang/ClassCastException", value.TypeOf(c.Receiver)+" is not a PrintStream")
	}
	return out, nil
}
