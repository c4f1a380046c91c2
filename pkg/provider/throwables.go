package provider

import (
	"strings"

	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/native"
	"github.com/daimatz/deobvm/pkg/value"
)

// throwableTrace is the stack captured when a throwable is constructed.
// Frames of constructors still running on the new object are dropped, as
// fillInStackTrace does.
func throwableTrace(ctx *Context) value.Value {
	elems := ctx.StackTrace()
	for len(elems) > 0 && elems[0].Method == "<init>" && isThrowable(ctx, elems[0].Class) {
		elems = elems[1:]
	}
	return traceArray(elems)
}

func recvObject(ctx *Context, c *Call) (*value.JObject, error) {
	if c.Receiver.IsPending() {
		return value.NewObject(c.Receiver.PendingType()), nil
	}
	if c.Receiver.IsNull() {
		return nil, ctx.NullPointer("receiver is null")
	}
	obj, ok := c.Receiver.Ref.(*value.JObject)
	if !ok {
		return nil, ctx.Throw("java/lang/ClassCastException", value.TypeOf(c.Receiver)+" is not an emulated object")
	}
	return obj, nil
}

func defThrowables() {
	t := ir.ThrowableClass
	ctor := func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		obj, err := recvObject(ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		for i, d := range argTypes(c) {
			switch d {
			case "Ljava/lang/String;":
				obj.Fields[fieldMessage] = c.Args[i]
			case "Ljava/lang/Throwable;":
				obj.Fields[fieldCause] = c.Args[i]
				if len(c.Args) == 1 && !c.Args[i].IsNull() {
					msg, err := toJavaString(ctx, c.Args[i], d)
					if err != nil {
						return value.Value{}, err
					}
					obj.Fields[fieldMessage] = str(msg)
				}
			}
		}
		obj.Fields[fieldStackTrace] = throwableTrace(ctx)
		return value.RefValue(obj), nil
	}
	for _, d := range []string{"()V", "(Ljava/lang/String;)V", "(Ljava/lang/Throwable;)V", "(Ljava/lang/String;Ljava/lang/Throwable;)V"} {
		def(t, "<init>", d, ctor)
	}

	field := func(name string) platformMethod {
		return func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
			obj, err := recvObject(ctx, c)
			if err != nil {
				return value.Value{}, err
			}
			if v, ok := obj.Fields[name]; ok {
				return v, nil
			}
			return value.NullValue(), nil
		}
	}
	def(t, "getMessage", "()Ljava/lang/String;", field(fieldMessage))
	def(t, "getLocalizedMessage", "()Ljava/lang/String;", field(fieldMessage))
	def(t, "getCause", "()Ljava/lang/Throwable;", field(fieldCause))
	def(t, "getStackTrace", "()[Ljava/lang/StackTraceElement;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		obj, err := recvObject(ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		arr, ok := obj.Fields[fieldStackTrace].Ref.(*value.JArray)
		if !ok {
			return traceArray(nil), nil
		}
		// Callers get a copy, as on a real VM.
		cp := &value.JArray{Type: arr.Type, Elements: append([]value.Value(nil), arr.Elements...)}
		return value.RefValue(cp), nil
	})
	def(t, "fillInStackTrace", "()Ljava/lang/Throwable;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		obj, err := recvObject(ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		obj.Fields[fieldStackTrace] = throwableTrace(ctx)
		return c.Receiver, nil
	})
	def(t, "toString", "()Ljava/lang/String;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		obj, err := recvObject(ctx, c)
		if err != nil {
			return value.Value{}, err
		}
		s := strings.ReplaceAll(obj.Class, "/", ".")
		if msg, ok := value.AsString(obj.Fields[fieldMessage]); ok {
			s += ": " + msg
		}
		return str(s), nil
	})

	th := "java/lang/Thread"
	def(th, "currentThread", "()Ljava/lang/Thread;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return value.RefValue(p.thread), nil
	})
	def(th, "getName", "()Ljava/lang/String;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return str(p.thread.Name), nil
	})
	def(th, "getStackTrace", "()[Ljava/lang/StackTraceElement;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		elems := append([]*native.StackTraceElement{{Class: th, Method: "getStackTrace"}}, ctx.StackTrace()...)
		return traceArray(elems), nil
	})

	ste := "java/lang/StackTraceElement"
	elem := func(get func(*native.StackTraceElement) string) platformMethod {
		return func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
			if c.Receiver.IsNull() {
				return value.Value{}, ctx.NullPointer("stack trace element is null")
			}
			e, ok := c.Receiver.Ref.(*native.StackTraceElement)
			if !ok {
				return value.Value{}, ctx.Throw("java/lang/ClassCastException", value.TypeOf(c.Receiver)+" is not a stack trace element")
			}
			return str(get(e)), nil
		}
	}
	def(ste, "getClassName", "()Ljava/lang/String;", elem((*native.StackTraceElement).ClassName))
	def(ste, "getMethodName", "()Ljava/lang/String;", elem(func(e *native.StackTraceElement) string { return e.Method }))
	def(ste, "toString", "()Ljava/lang/String;", elem((*native.StackTraceElement).String))
}
