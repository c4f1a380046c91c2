package provider

import (
	"strings"

	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/native"
	"github.com/daimatz/deobvm/pkg/value"
)

const classClass = "java/lang/Class"

// PrimitiveClassProvider supplies the primitive class mirrors behind
// Integer.TYPE and friends and the java.lang.Class methods that inspect
// mirrors.
type PrimitiveClassProvider struct{}

// CanGetField implements FieldProvider for the wrapper TYPE fields.
func (PrimitiveClassProvider) CanGetField(ctx *Context, ref FieldRef, obj value.Value) bool {
	return ref.Static && ref.Name == "TYPE" && (native.PrimitiveOf(ref.Owner) != "" || ref.Owner == "java/lang/Void")
}

// GetField implements FieldProvider.
func (PrimitiveClassProvider) GetField(ctx *Context, ref FieldRef, obj value.Value) (value.Value, error) {
	prim := "V"
	if ref.Owner != "java/lang/Void" {
		prim = native.PrimitiveOf(ref.Owner)
	}
	return value.RefValue(value.ClassRef{Name: native.PrimitiveName(prim)}), nil
}

// CanPutField implements FieldProvider; TYPE fields are final.
func (PrimitiveClassProvider) CanPutField(ctx *Context, ref FieldRef, obj, v value.Value) bool {
	return false
}

// PutField implements FieldProvider.
func (PrimitiveClassProvider) PutField(ctx *Context, ref FieldRef, obj, v value.Value) error {
	return nil
}

// CanInvoke implements MethodProvider for java.lang.Class.
func (PrimitiveClassProvider) CanInvoke(ctx *Context, c *Call) bool {
	if c.Owner != classClass {
		return false
	}
	switch c.Name + c.Desc {
	case "forName(Ljava/lang/String;)Ljava/lang/Class;":
		return true
	case "getName()Ljava/lang/String;", "getSimpleName()Ljava/lang/String;",
		"isPrimitive()Z", "isArray()Z", "isInterface()Z",
		"getSuperclass()Ljava/lang/Class;", "getComponentType()Ljava/lang/Class;":
		_, ok := c.Receiver.Ref.(value.ClassRef)
		return ok || c.Receiver.IsNull()
	}
	return false
}

// Invoke implements MethodProvider.
func (PrimitiveClassProvider) Invoke(ctx *Context, c *Call) (value.Value, error) {
	if c.Name == "forName" {
		name, err := stringArg(ctx, c.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		internal := strings.ReplaceAll(name, ".", "/")
		if _, err := ctx.Session.Resolver.Resolve(internal); err != nil {
			return value.Value{}, ctx.Throw("java/lang/ClassNotFoundException", name)
		}
		return value.RefValue(value.ClassRef{Name: internal}), nil
	}
	if c.Receiver.IsNull() {
		return value.Value{}, ctx.NullPointer("class is null")
	}
	cls := c.Receiver.Ref.(value.ClassRef)
	prim := native.IsPrimitiveName(cls.Name)
	switch c.Name {
	case "getName":
		return str(strings.ReplaceAll(cls.Name, "/", ".")), nil
	case "getSimpleName":
		n := cls.Name
		if i := strings.LastIndexAny(n, "/$"); i >= 0 && !ir.IsArray(n) {
			n = n[i+1:]
		}
		return str(n), nil
	case "isPrimitive":
		return value.BoolValue(prim), nil
	case "isArray":
		return value.BoolValue(ir.IsArray(cls.Name)), nil
	case "getComponentType":
		if !ir.IsArray(cls.Name) {
			return value.NullValue(), nil
		}
		elem := ir.ElementType(cls.Name)
		if ir.IsPrimitive(elem) {
			elem = native.PrimitiveName(elem)
		}
		return value.RefValue(value.ClassRef{Name: elem}), nil
	}
	if prim {
		return value.BoolValue(false), nil
	}
	k, err := ctx.Session.Resolver.Resolve(cls.Name)
	if err != nil {
		return value.Value{}, err
	}
	if c.Name == "isInterface" {
		return value.BoolValue(k.IsInterface()), nil
	}
	if k.Super == "" || k.IsInterface() {
		return value.NullValue(), nil
	}
	return value.RefValue(value.ClassRef{Name: k.Super}), nil
}
