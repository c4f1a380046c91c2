package provider

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/deobvm/pkg/config"
	"github.com/daimatz/deobvm/pkg/errs"
	"github.com/daimatz/deobvm/pkg/hierarchy"
	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/native"
	"github.com/daimatz/deobvm/pkg/session"
	"github.com/daimatz/deobvm/pkg/value"
)

func newSession(t *testing.T, cfg *config.Config, classes ...*ir.Class) *session.Session {
	t.Helper()
	s, err := session.New(cfg, classes, session.WithLoader(hierarchy.BuiltinLoader()))
	require.NoError(t, err)
	return s
}

func newContext(t *testing.T, cfg *config.Config, opts ...Option) (*Context, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	s := newSession(t, cfg)
	chain := Standard(s, append([]Option{WithOutput(&out, &out)}, opts...)...)
	return NewContext(context.Background(), s, chain), &out
}

func static(owner, name, desc string, args ...value.Value) *Call {
	return &Call{Op: ir.OpInvokestatic, Owner: owner, Name: name, Desc: desc, Receiver: value.Top(), Args: args}
}

func virtual(recv value.Value, owner, name, desc string, args ...value.Value) *Call {
	return &Call{Op: ir.OpInvokevirtual, Owner: owner, Name: name, Desc: desc, Receiver: recv, Args: args}
}

func construct(recv value.Value, owner, desc string, args ...value.Value) *Call {
	return &Call{Op: ir.OpInvokespecial, Owner: owner, Name: "<init>", Desc: desc, Receiver: recv, Args: args}
}

// fixed claims every call and returns its value.
type fixed struct {
	v     value.Value
	calls int
}

func (f *fixed) CanInvoke(ctx *Context, c *Call) bool { return true }

func (f *fixed) Invoke(ctx *Context, c *Call) (value.Value, error) {
	f.calls++
	return f.v, nil
}

func TestChainFirstMatchWins(t *testing.T) {
	s := newSession(t, nil)
	a, b := &fixed{v: value.IntValue(1)}, &fixed{v: value.IntValue(2)}
	chain := NewChain(s.Log).Register(a).Register(b)
	ctx := NewContext(context.Background(), s, chain)

	got, err := chain.Invoke(ctx, static("t/X", "m", "()I"))
	require.NoError(t, err)
	assert.Equal(t, value.IntValue(1), got)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 0, b.calls, "later providers never run once one claims")
}

func TestChainNoProvider(t *testing.T) {
	s := newSession(t, nil)
	chain := NewChain(s.Log)
	ctx := NewContext(context.Background(), s, chain)

	_, err := chain.Invoke(ctx, static("t/X", "m", "()I"))
	var np *errs.NoProviderError
	require.True(t, errors.As(err, &np))
	assert.Equal(t, "invokestatic", np.Op)
	assert.Equal(t, "t/X", np.Owner)
	assert.Equal(t, "m", np.Name)
	assert.Equal(t, "()I", np.Desc)

	_, err = chain.GetField(ctx, FieldRef{Owner: "t/X", Name: "f", Desc: "I", Static: true}, value.NullValue())
	require.True(t, errors.As(err, &np))
	assert.Equal(t, "getstatic", np.Op)
}

func TestRegisterWithoutCapabilityPanics(t *testing.T) {
	assert.Panics(t, func() { NewChain(nil).Register(struct{}{}) })
}

func TestStandardWithFirstOverrides(t *testing.T) {
	override := &fixed{v: value.RefValue("decrypted")}
	ctx, _ := newContext(t, nil, WithFirst(override))
	got, err := ctx.Chain.Invoke(ctx, virtual(value.RefValue("x"), "java/lang/String", "length", "()I"))
	require.NoError(t, err)
	assert.Equal(t, value.RefValue("decrypted"), got)
}

func guestClass(t *testing.T, err error) string {
	t.Helper()
	var guest *errs.GuestExecutionError
	require.True(t, errors.As(err, &guest), "want guest exception, got %v", err)
	return guest.ClassName()
}

func TestPlatformStrings(t *testing.T) {
	hello := value.RefValue("hello")
	tests := []struct {
		name string
		call *Call
		want value.Value
		exc  string
	}{
		{"length", virtual(hello, "java/lang/String", "length", "()I"), value.IntValue(5), ""},
		{"charAt", virtual(hello, "java/lang/String", "charAt", "(I)C", value.IntValue(1)), value.IntValue('e'), ""},
		{"charAt out of range", virtual(hello, "java/lang/String", "charAt", "(I)C", value.IntValue(5)), value.Value{}, "java/lang/StringIndexOutOfBoundsException"},
		{"hashCode", virtual(hello, "java/lang/String", "hashCode", "()I"), value.IntValue(99162322), ""},
		{"hashCode through Object", virtual(hello, ir.ObjectClass, "hashCode", "()I"), value.IntValue(99162322), ""},
		{"substring", virtual(hello, "java/lang/String", "substring", "(II)Ljava/lang/String;", value.IntValue(1), value.IntValue(3)), value.NewString("el"), ""},
		{"indexOf", virtual(hello, "java/lang/String", "indexOf", "(I)I", value.IntValue('l')), value.IntValue(2), ""},
		{"equals", virtual(hello, "java/lang/String", "equals", "(Ljava/lang/Object;)Z", value.RefValue("hello")), value.IntValue(1), ""},
		{"valueOf char", static("java/lang/String", "valueOf", "(C)Ljava/lang/String;", value.IntValue('x')), value.NewString("x"), ""},
		{"valueOf int", static("java/lang/String", "valueOf", "(I)Ljava/lang/String;", value.IntValue(-3)), value.NewString("-3"), ""},
		{"null receiver", virtual(value.NullValue(), "java/lang/String", "length", "()I"), value.Value{}, "java/lang/NullPointerException"},
		{"parseInt", static("java/lang/Integer", "parseInt", "(Ljava/lang/String;)I", value.RefValue("-42")), value.IntValue(-42), ""},
		{"parseInt bad", static("java/lang/Integer", "parseInt", "(Ljava/lang/String;)I", value.RefValue("4x")), value.Value{}, "java/lang/NumberFormatException"},
		{"abs", static("java/lang/Math", "abs", "(I)I", value.IntValue(-7)), value.IntValue(7), ""},
		{"floorMod", static("java/lang/Math", "floorMod", "(II)I", value.IntValue(-7), value.IntValue(3)), value.IntValue(2), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := newContext(t, nil)
			got, err := ctx.Chain.Invoke(ctx, tt.call)
			if tt.exc != "" {
				assert.Equal(t, tt.exc, guestClass(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringFromCharArray(t *testing.T) {
	ctx, _ := newContext(t, nil)
	chars, err := ctx.Chain.Invoke(ctx, virtual(value.RefValue("abc"), "java/lang/String", "toCharArray", "()[C"))
	require.NoError(t, err)
	arr := chars.Ref.(*value.JArray)
	arr.Elements[0] = value.IntValue('z')

	got, err := ctx.Chain.Invoke(ctx, construct(value.PendingValue("java/lang/String"), "java/lang/String", "([C)V", chars))
	require.NoError(t, err)
	assert.Equal(t, value.NewString("zbc"), got)
}

func TestStringBuilder(t *testing.T) {
	ctx, _ := newContext(t, nil)
	sb, err := ctx.Chain.Invoke(ctx, construct(value.PendingValue(builderClass), builderClass, "(Ljava/lang/String;)V", value.RefValue("a")))
	require.NoError(t, err)

	steps := []*Call{
		virtual(sb, builderClass, "append", "(I)Ljava/lang/StringBuilder;", value.IntValue(1)),
		virtual(sb, builderClass, "append", "(C)Ljava/lang/StringBuilder;", value.IntValue('b')),
		virtual(sb, builderClass, "append", "(Z)Ljava/lang/StringBuilder;", value.IntValue(0)),
		virtual(sb, builderClass, "append", "(Ljava/lang/Object;)Ljava/lang/StringBuilder;", value.NullValue()),
		virtual(sb, builderClass, "reverse", "()Ljava/lang/StringBuilder;"),
	}
	for _, c := range steps {
		got, err := ctx.Chain.Invoke(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, sb, got, "builder methods return the receiver")
	}
	s, err := ctx.Chain.Invoke(ctx, virtual(sb, builderClass, "toString", "()Ljava/lang/String;"))
	require.NoError(t, err)
	assert.Equal(t, value.NewString("lluneslafb1a"), s)
}

func TestStringBufferSharesBuilder(t *testing.T) {
	ctx, _ := newContext(t, nil)
	const buf = "java/lang/StringBuffer"
	sb, err := ctx.Chain.Invoke(ctx, construct(value.PendingValue(buf), buf, "()V"))
	require.NoError(t, err)
	assert.Equal(t, buf, value.TypeOf(sb))
	_, err = ctx.Chain.Invoke(ctx, virtual(sb, buf, "append", "(Ljava/lang/String;)Ljava/lang/StringBuffer;", value.RefValue("q")))
	require.NoError(t, err)
	assert.Equal(t, "q", sb.Ref.(*native.StringBuilder).String())
}

func TestBoxing(t *testing.T) {
	ctx, _ := newContext(t, nil)
	box := func(n int32) value.Value {
		v, err := ctx.Chain.Invoke(ctx, static("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;", value.IntValue(n)))
		require.NoError(t, err)
		return v
	}
	assert.True(t, value.SameObject(box(5), box(5)), "small values come from the cache")
	assert.False(t, value.SameObject(box(1000), box(1000)))

	got, err := ctx.Chain.Invoke(ctx, virtual(box(1000), "java/lang/Number", "longValue", "()J"))
	require.NoError(t, err)
	assert.Equal(t, value.LongValue(1000), got)

	eq, err := ctx.Chain.Invoke(ctx, virtual(box(1000), "java/lang/Integer", "equals", "(Ljava/lang/Object;)Z", box(1000)))
	require.NoError(t, err)
	assert.Equal(t, value.IntValue(1), eq)

	ok, err := ctx.Chain.CheckInstance(ctx, box(1), "java/lang/Number")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashMap(t *testing.T) {
	ctx, _ := newContext(t, nil)
	m, err := ctx.Chain.Invoke(ctx, construct(value.PendingValue("java/util/HashMap"), "java/util/HashMap", "()V"))
	require.NoError(t, err)

	put := &Call{Op: ir.OpInvokeinterface, Owner: "java/util/Map", Name: "put", Desc: "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;", Receiver: m,
		Args: []value.Value{value.RefValue("k"), value.IntValue(3)}}
	old, err := ctx.Chain.Invoke(ctx, put)
	require.NoError(t, err)
	assert.True(t, old.IsNull())

	got, err := ctx.Chain.Invoke(ctx, virtual(m, "java/util/HashMap", "get", "(Ljava/lang/Object;)Ljava/lang/Object;", value.RefValue("k")))
	require.NoError(t, err)
	assert.Equal(t, value.IntValue(3), got)
}

func TestThrowableStackTrace(t *testing.T) {
	ctx, _ := newContext(t, nil)
	require.NoError(t, ctx.Enter("t/Main", "main", "()V"))
	require.NoError(t, ctx.Enter("t/Decrypt", "run", "(I)Ljava/lang/String;"))

	exc, err := ctx.Chain.Invoke(ctx, construct(value.PendingValue("java/lang/IllegalStateException"), "java/lang/IllegalStateException", "(Ljava/lang/String;)V", value.RefValue("boom")))
	require.NoError(t, err)
	assert.Equal(t, "java/lang/IllegalStateException", value.TypeOf(exc))

	msg, err := ctx.Chain.Invoke(ctx, virtual(exc, "java/lang/Throwable", "getMessage", "()Ljava/lang/String;"))
	require.NoError(t, err)
	assert.Equal(t, value.RefValue("boom"), msg)

	trace, err := ctx.Chain.Invoke(ctx, virtual(exc, "java/lang/Throwable", "getStackTrace", "()[Ljava/lang/StackTraceElement;"))
	require.NoError(t, err)
	elems := trace.Ref.(*value.JArray).Elements
	require.Len(t, elems, 2)
	first := elems[0]
	name, err := ctx.Chain.Invoke(ctx, virtual(first, "java/lang/StackTraceElement", "getMethodName", "()Ljava/lang/String;"))
	require.NoError(t, err)
	assert.Equal(t, value.NewString("run"), name)
	class, err := ctx.Chain.Invoke(ctx, virtual(first, "java/lang/StackTraceElement", "getClassName", "()Ljava/lang/String;"))
	require.NoError(t, err)
	assert.Equal(t, value.NewString("t.Decrypt"), class)

	s, err := ctx.Chain.Invoke(ctx, virtual(exc, ir.ObjectClass, "toString", "()Ljava/lang/String;"))
	require.NoError(t, err)
	assert.Equal(t, value.NewString("java.lang.IllegalStateException: boom"), s)
}

func TestThreadStackTrace(t *testing.T) {
	ctx, _ := newContext(t, nil)
	require.NoError(t, ctx.Enter("t/Decrypt", "run", "()V"))
	thread, err := ctx.Chain.Invoke(ctx, static("java/lang/Thread", "currentThread", "()Ljava/lang/Thread;"))
	require.NoError(t, err)
	trace, err := ctx.Chain.Invoke(ctx, virtual(thread, "java/lang/Thread", "getStackTrace", "()[Ljava/lang/StackTraceElement;"))
	require.NoError(t, err)

	elems := trace.Ref.(*value.JArray).Elements
	require.Len(t, elems, 2)
	assert.Equal(t, "java.lang.Thread.getStackTrace(Unknown Source)", elems[0].Ref.(*native.StackTraceElement).String())
	assert.Equal(t, "t/Decrypt", elems[1].Ref.(*native.StackTraceElement).Class)
}

func TestPrintln(t *testing.T) {
	ctx, out := newContext(t, nil)
	stream, err := ctx.Chain.GetField(ctx, FieldRef{Owner: "java/lang/System", Name: "out", Desc: "Ljava/io/PrintStream;", Static: true}, value.NullValue())
	require.NoError(t, err)

	for _, c := range []*Call{
		virtual(stream, "java/io/PrintStream", "print", "(Ljava/lang/String;)V", value.RefValue("n=")),
		virtual(stream, "java/io/PrintStream", "println", "(I)V", value.IntValue(42)),
		virtual(stream, "java/io/PrintStream", "println", "(D)V", value.DoubleValue(2)),
	} {
		_, err := ctx.Chain.Invoke(ctx, c)
		require.NoError(t, err)
	}
	assert.Equal(t, "n=42\n2.0\n", out.String())
}

func TestFieldStore(t *testing.T) {
	base := &ir.Class{Name: "t/Base", Super: ir.ObjectClass, Fields: []*ir.Field{
		{Access: ir.AccStatic, Name: "KEY", Desc: "I", Value: int32(7)},
		{Access: ir.AccStatic, Name: "table", Desc: "[I"},
	}}
	sub := &ir.Class{Name: "t/Sub", Super: "t/Base"}
	s := newSession(t, nil, base, sub)
	fs := NewFieldStore(s.Classes)
	chain := Standard(s, WithFieldStore(fs))
	ctx := NewContext(context.Background(), s, chain)

	key := FieldRef{Owner: "t/Sub", Name: "KEY", Desc: "I", Static: true}
	got, err := chain.GetField(ctx, key, value.NullValue())
	require.NoError(t, err)
	assert.Equal(t, value.IntValue(7), got, "ConstantValue through a subclass reference")

	table := FieldRef{Owner: "t/Base", Name: "table", Desc: "[I", Static: true}
	got, err = chain.GetField(ctx, table, value.NullValue())
	require.NoError(t, err)
	assert.True(t, got.IsNull())

	require.NoError(t, chain.PutField(ctx, key, value.NullValue(), value.IntValue(9)))
	assert.Equal(t, value.IntValue(9), fs.Get("t/Base", "KEY", "I"))

	obj := value.RefValue(value.NewObject("t/Base"))
	inst := FieldRef{Owner: "t/Base", Name: "count", Desc: "J"}
	got, err = chain.GetField(ctx, inst, obj)
	require.NoError(t, err)
	assert.Equal(t, value.LongValue(0), got)
	require.NoError(t, chain.PutField(ctx, inst, obj, value.LongValue(5)))
	got, err = chain.GetField(ctx, inst, obj)
	require.NoError(t, err)
	assert.Equal(t, value.LongValue(5), got)

	_, err = chain.GetField(ctx, FieldRef{Owner: "t/Unknown", Name: "x", Desc: "I", Static: true}, value.NullValue())
	var np *errs.NoProviderError
	assert.True(t, errors.As(err, &np))
}

func TestFieldStoreKeysByDeclaration(t *testing.T) {
	base := &ir.Class{Name: "t/Base", Super: ir.ObjectClass, Fields: []*ir.Field{
		{Access: ir.AccStatic, Name: "a", Desc: "I"},
		{Access: ir.AccStatic, Name: "a", Desc: "Ljava/lang/String;"},
		{Name: "x", Desc: "I"},
		{Name: "y", Desc: "I"},
	}}
	sub := &ir.Class{Name: "t/Sub", Super: "t/Base", Fields: []*ir.Field{
		{Name: "x", Desc: "I"},
	}}
	s := newSession(t, nil, base, sub)
	chain := Standard(s)
	ctx := NewContext(context.Background(), s, chain)

	intA := FieldRef{Owner: "t/Base", Name: "a", Desc: "I", Static: true}
	strA := FieldRef{Owner: "t/Base", Name: "a", Desc: "Ljava/lang/String;", Static: true}
	require.NoError(t, chain.PutField(ctx, intA, value.NullValue(), value.IntValue(7)))
	require.NoError(t, chain.PutField(ctx, strA, value.NullValue(), value.Intern("s")))
	got, err := chain.GetField(ctx, intA, value.NullValue())
	require.NoError(t, err)
	assert.Equal(t, value.IntValue(7), got)
	got, err = chain.GetField(ctx, strA, value.NullValue())
	require.NoError(t, err)
	assert.Equal(t, value.Intern("s"), got)

	obj := value.RefValue(value.NewObject("t/Sub"))
	put := func(owner, name string, v int32) {
		require.NoError(t, chain.PutField(ctx, FieldRef{Owner: owner, Name: name, Desc: "I"}, obj, value.IntValue(v)))
	}
	get := func(owner, name string) value.Value {
		v, err := chain.GetField(ctx, FieldRef{Owner: owner, Name: name, Desc: "I"}, obj)
		require.NoError(t, err)
		return v
	}
	put("t/Sub", "x", 1)
	put("t/Base", "x", 2)
	put("t/Sub", "y", 3)
	assert.Equal(t, value.IntValue(1), get("t/Sub", "x"), "subclass field hides the inherited one")
	assert.Equal(t, value.IntValue(2), get("t/Base", "x"))
	assert.Equal(t, value.IntValue(3), get("t/Base", "y"), "inherited field is shared")
}

func TestPrimitiveClasses(t *testing.T) {
	ctx, _ := newContext(t, nil)
	mirror, err := ctx.Chain.GetField(ctx, FieldRef{Owner: "java/lang/Integer", Name: "TYPE", Desc: "Ljava/lang/Class;", Static: true}, value.NullValue())
	require.NoError(t, err)

	name, err := ctx.Chain.Invoke(ctx, virtual(mirror, classClass, "getName", "()Ljava/lang/String;"))
	require.NoError(t, err)
	assert.Equal(t, value.NewString("int"), name)
	prim, err := ctx.Chain.Invoke(ctx, virtual(mirror, classClass, "isPrimitive", "()Z"))
	require.NoError(t, err)
	assert.Equal(t, value.IntValue(1), prim)

	cls, err := ctx.Chain.Invoke(ctx, static(classClass, "forName", "(Ljava/lang/String;)Ljava/lang/Class;", value.RefValue("java.lang.String")))
	require.NoError(t, err)
	super, err := ctx.Chain.Invoke(ctx, virtual(cls, classClass, "getSuperclass", "()Ljava/lang/Class;"))
	require.NoError(t, err)
	assert.Equal(t, ir.ObjectClass, super.Ref.(value.ClassRef).Name)

	_, err = ctx.Chain.Invoke(ctx, static(classClass, "forName", "(Ljava/lang/String;)Ljava/lang/Class;", value.RefValue("x.Missing")))
	assert.Equal(t, "java/lang/ClassNotFoundException", guestClass(t, err))

	arr, err := ctx.Chain.Invoke(ctx, virtual(value.RefValue(value.NewArray("[I", 1)), ir.ObjectClass, "getClass", "()Ljava/lang/Class;"))
	require.NoError(t, err)
	comp, err := ctx.Chain.Invoke(ctx, virtual(arr, classClass, "getComponentType", "()Ljava/lang/Class;"))
	require.NoError(t, err)
	assert.Equal(t, "int", comp.Ref.(value.ClassRef).Name)

	again, err := ctx.Chain.GetField(ctx, FieldRef{Owner: "java/lang/Integer", Name: "TYPE", Desc: "Ljava/lang/Class;", Static: true}, value.NullValue())
	require.NoError(t, err)
	same, err := ctx.Chain.CheckEquality(ctx, mirror, again)
	require.NoError(t, err)
	assert.True(t, same, "Integer.TYPE is one mirror")
	same, err = ctx.Chain.CheckEquality(ctx, comp, mirror)
	require.NoError(t, err)
	assert.True(t, same, "int[].class.getComponentType() == int.class")

	strClass, err := ctx.Chain.Invoke(ctx, virtual(value.NewString("s"), ir.ObjectClass, "getClass", "()Ljava/lang/Class;"))
	require.NoError(t, err)
	same, err = ctx.Chain.CheckEquality(ctx, strClass, cls)
	require.NoError(t, err)
	assert.True(t, same, "getClass() == Class.forName(...)")
}

type hostKey struct {
	Seed int32
}

func (k *hostKey) Mix(x int32) int32 { return x ^ k.Seed }

func (k *hostKey) Fail() error { return errors.New("no key") }

func TestReflectionProvider(t *testing.T) {
	host := value.RefValue(&hostKey{Seed: 0x55})
	mix := virtual(host, "t/Key", "mix", "(I)I", value.IntValue(0x0F))

	ctx, _ := newContext(t, nil)
	_, err := ctx.Chain.Invoke(ctx, mix)
	var np *errs.NoProviderError
	require.True(t, errors.As(err, &np), "reflection is off by default")

	cfg := config.Default()
	cfg.Providers.AllowReflection = true
	ctx, _ = newContext(t, cfg)
	got, err := ctx.Chain.Invoke(ctx, mix)
	require.NoError(t, err)
	assert.Equal(t, value.IntValue(0x5A), got)

	_, err = ctx.Chain.Invoke(ctx, virtual(host, "t/Key", "fail", "()V"))
	assert.Equal(t, "java/lang/RuntimeException", guestClass(t, err))

	seed, err := ctx.Chain.GetField(ctx, FieldRef{Owner: "t/Key", Name: "seed", Desc: "I"}, host)
	require.NoError(t, err)
	assert.Equal(t, value.IntValue(0x55), seed)
}

func TestTypesAndEquality(t *testing.T) {
	ctx, _ := newContext(t, nil)
	s := value.RefValue("x")
	tests := []struct {
		typ  string
		want bool
	}{
		{"java/lang/String", true},
		{"java/lang/CharSequence", true},
		{ir.ObjectClass, true},
		{"java/lang/Integer", false},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			got, err := ctx.Chain.CheckInstance(ctx, s, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	a, b := value.RefValue(value.NewObject("t/A")), value.RefValue(value.NewObject("t/A"))
	same, err := ctx.Chain.CheckEquality(ctx, a, a)
	require.NoError(t, err)
	assert.True(t, same)
	same, err = ctx.Chain.CheckEquality(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, same)
}

func TestStringIdentity(t *testing.T) {
	ctx, _ := newContext(t, nil)
	literal := value.Intern("abc")
	created, err := ctx.Chain.Invoke(ctx, construct(value.PendingValue(stringClass), stringClass, "(Ljava/lang/String;)V", literal))
	require.NoError(t, err)

	tests := []struct {
		name string
		a, b value.Value
		want bool
	}{
		{"literals", literal, value.Intern("abc"), true},
		{"new String vs literal", created, literal, false},
		{"new String vs itself", created, created, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			same, err := ctx.Chain.CheckEquality(ctx, tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, same)
		})
	}

	interned, err := ctx.Chain.Invoke(ctx, virtual(created, stringClass, "intern", "()Ljava/lang/String;"))
	require.NoError(t, err)
	assert.True(t, value.SameObject(literal, interned))
	self, err := ctx.Chain.Invoke(ctx, virtual(created, stringClass, "toString", "()Ljava/lang/String;"))
	require.NoError(t, err)
	assert.True(t, value.SameObject(created, self))
	eq, err := ctx.Chain.Invoke(ctx, virtual(created, stringClass, "equals", "(Ljava/lang/Object;)Z", literal))
	require.NoError(t, err)
	assert.Equal(t, value.IntValue(1), eq)
}

func TestContextDepth(t *testing.T) {
	cfg := config.Default()
	cfg.Execution.MaxCallDepth = 2
	ctx, _ := newContext(t, cfg)
	require.NoError(t, ctx.Enter("t/A", "a", "()V"))
	require.NoError(t, ctx.Enter("t/A", "b", "()V"))
	err := ctx.Enter("t/A", "c", "()V")
	var deep *errs.AnalysisTooDeepError
	require.True(t, errors.As(err, &deep))
	assert.Equal(t, 2, deep.Limit)

	ctx.Leave()
	assert.Equal(t, 1, ctx.Depth())
	assert.Equal(t, []string{"t/A.a"}, ctx.Trace())
}
