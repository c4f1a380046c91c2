package provider

import (
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"

	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/value"
)

// ReflectionProvider exposes Go host values that a pass places in guest
// references. A Java method name maps to the exported Go method with the
// first letter upper-cased, and a field to the exported struct field.
//
// It runs arbitrary host code on behalf of the guest, so Standard only
// registers it when providers.allow_reflection is set.
type ReflectionProvider struct{}

// isGuest reports whether ref is one of the interpreter's own reference
// payloads rather than a host value.
func isGuest(ref interface{}) bool {
	switch ref.(type) {
	case string, *value.JObject, *value.JArray, value.ClassRef, *value.Pending,
		value.Typed, ir.TypeConst, ir.MethodTypeConst, *ir.Handle:
		return true
	}
	return false
}

func exported(name string) string {
	r, n := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[n:]
}

func (ReflectionProvider) method(c *Call) (reflect.Value, bool) {
	if !c.HasReceiver() || c.IsConstructor() || c.Receiver.Kind != value.KindRef || isGuest(c.Receiver.Ref) {
		return reflect.Value{}, false
	}
	m := reflect.ValueOf(c.Receiver.Ref).MethodByName(exported(c.Name))
	if !m.IsValid() || m.Type().IsVariadic() || m.Type().NumIn() != len(c.Args) {
		return reflect.Value{}, false
	}
	return m, true
}

// CanInvoke implements MethodProvider.
func (r ReflectionProvider) CanInvoke(ctx *Context, c *Call) bool {
	_, ok := r.method(c)
	return ok
}

var (
	valueType = reflect.TypeOf(value.Value{})
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// Invoke implements MethodProvider. A non-nil trailing error result is
// rethrown in the guest as a RuntimeException.
func (r ReflectionProvider) Invoke(ctx *Context, c *Call) (value.Value, error) {
	m, _ := r.method(c)
	mt := m.Type()
	in := make([]reflect.Value, len(c.Args))
	for i, a := range c.Args {
		v, err := toHost(a, mt.In(i))
		if err != nil {
			return value.Value{}, fmt.Errorf("reflection: %s argument %d: %w", c, i, err)
		}
		in[i] = v
	}
	out := m.Call(in)
	if n := len(out); n > 0 && mt.Out(n-1) == errorType {
		if err, _ := out[n-1].Interface().(error); err != nil {
			return value.Value{}, ctx.Throw("java/lang/RuntimeException", err.Error())
		}
		out = out[:n-1]
	}
	ret := ir.ReturnType(c.Desc)
	if len(out) == 0 || ret == "V" {
		return value.Top(), nil
	}
	return fromHost(out[0], ret), nil
}

// CanGetField implements FieldProvider for exported struct fields.
func (ReflectionProvider) CanGetField(ctx *Context, ref FieldRef, obj value.Value) bool {
	_, ok := hostField(ref, obj)
	return ok
}

// GetField implements FieldProvider.
func (ReflectionProvider) GetField(ctx *Context, ref FieldRef, obj value.Value) (value.Value, error) {
	f, _ := hostField(ref, obj)
	return fromHost(f, ref.Desc), nil
}

// CanPutField implements FieldProvider.
func (ReflectionProvider) CanPutField(ctx *Context, ref FieldRef, obj, v value.Value) bool {
	f, ok := hostField(ref, obj)
	return ok && f.CanSet()
}

// PutField implements FieldProvider.
func (ReflectionProvider) PutField(ctx *Context, ref FieldRef, obj, v value.Value) error {
	f, _ := hostField(ref, obj)
	hv, err := toHost(v, f.Type())
	if err != nil {
		return fmt.Errorf("reflection: %s: %w", ref, err)
	}
	f.Set(hv)
	return nil
}

func hostField(ref FieldRef, obj value.Value) (reflect.Value, bool) {
	if ref.Static || obj.Kind != value.KindRef || isGuest(obj.Ref) {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(obj.Ref)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	f := rv.FieldByName(exported(ref.Name))
	if !f.IsValid() || !f.CanInterface() {
		return reflect.Value{}, false
	}
	return f, true
}

// toHost converts a guest value to the Go type t.
func toHost(v value.Value, t reflect.Type) (reflect.Value, error) {
	if t == valueType {
		return reflect.ValueOf(v), nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return reflect.ValueOf(v.Int != 0).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := int64(v.Int)
		if v.Kind == value.KindLong {
			n = v.Long
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Float32, reflect.Float64:
		f := v.Double
		if v.Kind == value.KindFloat {
			f = float64(v.Float)
		}
		return reflect.ValueOf(f).Convert(t), nil
	case reflect.String:
		s, ok := value.AsString(v)
		if !ok {
			return reflect.Value{}, fmt.Errorf("%s is not a string", v)
		}
		return reflect.ValueOf(s), nil
	}
	if v.IsNull() {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v.Ref)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", rv.Type(), t)
	}
	return rv, nil
}

// fromHost converts a Go value to a guest value of descriptor fdesc.
func fromHost(rv reflect.Value, fdesc string) value.Value {
	if rv.Type() == valueType {
		return rv.Interface().(value.Value)
	}
	switch rv.Kind() {
	case reflect.Bool:
		return value.BoolValue(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return convertPrim(value.LongValue(rv.Int()), fdesc)
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return convertPrim(value.LongValue(int64(rv.Uint())), fdesc)
	case reflect.Float32, reflect.Float64:
		return convertPrim(value.DoubleValue(rv.Float()), fdesc)
	case reflect.String:
		return value.NewString(rv.String())
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		if rv.IsNil() {
			return value.NullValue()
		}
	}
	return value.RefValue(rv.Interface())
}
