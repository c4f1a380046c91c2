package provider

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/native"
	"github.com/daimatz/deobvm/pkg/value"
)

// Hidden fields of emulated throwables.
const (
	fieldMessage    = "detailMessage"
	fieldCause      = "cause"
	fieldStackTrace = "stackTrace"
)

type platformMethod func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error)

// platformMethods is keyed by owner + "." + name + desc.
var platformMethods = map[string]platformMethod{}

func def(owner, name, desc string, fn platformMethod) {
	platformMethods[owner+"."+name+desc] = fn
}

// PlatformProvider emulates the parts of the platform library that
// obfuscator-authored code calls: strings and builders, boxing, Math,
// Object, HashMap, throwables and stack traces, System.out.
type PlatformProvider struct {
	Stdout io.Writer
	Stderr io.Writer

	boxes    *native.BoxCache
	hashes   map[interface{}]int32
	nextHash int32
	thread   *native.Thread
	out, err *native.PrintStream
}

// NewPlatformProvider creates a provider printing to stdout and stderr.
// Nil writers default to the process streams.
func NewPlatformProvider(stdout, stderr io.Writer) *PlatformProvider {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &PlatformProvider{
		Stdout: stdout,
		Stderr: stderr,
		boxes:  native.NewBoxCache(),
		hashes: make(map[interface{}]int32),
		thread: &native.Thread{Name: "main"},
		out:    &native.PrintStream{Writer: stdout},
		err:    &native.PrintStream{Writer: stderr},
	}
}

// CanInvoke implements MethodProvider.
func (p *PlatformProvider) CanInvoke(ctx *Context, c *Call) bool {
	return p.lookup(ctx, c) != nil
}

// Invoke implements MethodProvider.
func (p *PlatformProvider) Invoke(ctx *Context, c *Call) (value.Value, error) {
	return p.lookup(ctx, c)(p, ctx, c)
}

// lookup resolves a call the way the platform would dispatch it: by the
// receiver's runtime class for virtual calls, then by the declared owner,
// each with the Throwable method family as a fallback, and finally by the
// methods every object inherits from Object.
func (p *PlatformProvider) lookup(ctx *Context, c *Call) platformMethod {
	classes := make([]string, 0, 2)
	if c.IsVirtual() && c.Receiver.Kind == value.KindRef {
		classes = append(classes, value.TypeOf(c.Receiver))
	}
	classes = append(classes, c.Owner)
	for _, class := range classes {
		desc := c.Desc
		if class == "java/lang/StringBuffer" {
			class = builderClass
			desc = strings.ReplaceAll(desc, "Ljava/lang/StringBuffer;", "Ljava/lang/StringBuilder;")
		}
		if fn, ok := platformMethods[class+"."+c.Name+desc]; ok {
			return fn
		}
		if c.HasReceiver() && isThrowable(ctx, class) {
			if fn, ok := platformMethods[ir.ThrowableClass+"."+c.Name+c.Desc]; ok {
				return fn
			}
		}
	}
	if c.HasReceiver() && !c.IsConstructor() {
		return platformMethods[ir.ObjectClass+"."+c.Name+c.Desc]
	}
	return nil
}

func isThrowable(ctx *Context, class string) bool {
	if class == ir.ThrowableClass {
		return true
	}
	ok, err := ctx.Session.Resolver.IsAssignableFrom(ir.ThrowableClass, class)
	return err == nil && ok
}

// CanGetField implements FieldProvider for System.out and System.err.
func (p *PlatformProvider) CanGetField(ctx *Context, ref FieldRef, obj value.Value) bool {
	return ref.Static && ref.Owner == "java/lang/System" && (ref.Name == "out" || ref.Name == "err")
}

// GetField implements FieldProvider.
func (p *PlatformProvider) GetField(ctx *Context, ref FieldRef, obj value.Value) (value.Value, error) {
	if ref.Name == "err" {
		return value.RefValue(p.err), nil
	}
	return value.RefValue(p.out), nil
}

// CanPutField implements FieldProvider; the platform streams are final.
func (p *PlatformProvider) CanPutField(ctx *Context, ref FieldRef, obj, v value.Value) bool {
	return false
}

// PutField implements FieldProvider.
func (p *PlatformProvider) PutField(ctx *Context, ref FieldRef, obj, v value.Value) error {
	return nil
}

// identityHash returns a stable per-provider hash for a reference.
func (p *PlatformProvider) identityHash(v value.Value) int32 {
	if v.IsNull() {
		return 0
	}
	if h, ok := p.hashes[v.Ref]; ok {
		return h
	}
	// Multiplicative spread keeps consecutive objects from looking related.
	p.nextHash++
	h := int32(uint32(p.nextHash) * 0x9E3779B1 >> 1)
	p.hashes[v.Ref] = h
	return h
}

// argTypes returns the descriptors of c's parameters. Descriptors in the
// method table are well formed.
func argTypes(c *Call) []string {
	args, _ := ir.ArgumentTypes(c.Desc)
	return args
}

func stringArg(ctx *Context, v value.Value) (string, error) {
	if v.IsNull() {
		return "", ctx.NullPointer("string is null")
	}
	s, ok := value.AsString(v)
	if !ok {
		return "", ctx.Throw("java/lang/ClassCastException", value.TypeOf(v)+" cannot be cast to java.lang.String")
	}
	return s, nil
}

// str creates a string the way the platform does at run time: a new
// object, never an interned one.
func str(s string) value.Value { return value.NewString(s) }

func void() (value.Value, error) { return value.Top(), nil }

func init() {
	defObject()
	defStrings()
	defBuilders()
	defBoxes()
	defMath()
	defThrowables()
	defCollections()
	defSystem()
}

func defObject() {
	obj := ir.ObjectClass
	def(obj, "<init>", "()V", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		if c.Receiver.IsPending() {
			return value.RefValue(value.NewObject(c.Receiver.PendingType())), nil
		}
		return c.Receiver, nil
	})
	def(obj, "hashCode", "()I", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return value.IntValue(p.identityHash(c.Receiver)), nil
	})
	def(obj, "equals", "(Ljava/lang/Object;)Z", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return value.BoolValue(value.SameObject(c.Receiver, c.Args[0])), nil
	})
	def(obj, "getClass", "()Ljava/lang/Class;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return value.RefValue(value.ClassRef{Name: value.TypeOf(c.Receiver)}), nil
	})
	def(obj, "toString", "()Ljava/lang/String;", func(p *PlatformProvider, ctx *Context, c *Call) (value.Value, error) {
		return str(p.objectString(c.Receiver)), nil
	})
}

// objectString is Object.toString: binary class name, '@', hex hash.
func (p *PlatformProvider) objectString(v value.Value) string {
	name := strings.ReplaceAll(value.TypeOf(v), "/", ".")
	return name + "@" + strconv.FormatUint(uint64(uint32(p.identityHash(v))), 16)
}

// toJavaString is String.valueOf(Object): dispatches toString through the
// chain so guest overrides run.
func toJavaString(ctx *Context, v value.Value, fdesc string) (string, error) {
	if v.Kind != value.KindRef {
		return native.Format(v, fdesc), nil
	}
	switch v.Ref.(type) {
	case string, *value.JString, *native.Box, *native.StringBuilder, value.ClassRef, *native.StackTraceElement:
		return native.Format(v, fdesc), nil
	}
	out, err := ctx.Chain.Invoke(ctx, &Call{
		Op:       ir.OpInvokevirtual,
		Owner:    ir.ObjectClass,
		Name:     "toString",
		Desc:     "()Ljava/lang/String;",
		Receiver: v,
	})
	if err != nil {
		return "", err
	}
	if out.IsNull() {
		return "null", nil
	}
	return stringArg(ctx, out)
}
