package value

import (
	"github.com/daimatz/deobvm/pkg/ir"
)

// JObject represents a JVM object instance whose class is under analysis.
type JObject struct {
	Class  string
	Fields map[string]Value
}

// NewObject allocates an object with no field values.
func NewObject(class string) *JObject {
	return &JObject{Class: class, Fields: make(map[string]Value)}
}

// JArray represents a JVM array. Type is the array descriptor, e.g. "[I".
type JArray struct {
	Type     string
	Elements []Value
}

// NewArray allocates an array of the given descriptor filled with the
// element type's default value.
func NewArray(typ string, length int) *JArray {
	elem := typ[1:]
	zero := Zero(elem)
	elements := make([]Value, length)
	for i := range elements {
		elements[i] = zero
	}
	return &JArray{Type: typ, Elements: elements}
}

// ClassRef is a java.lang.Class mirror. It is stored by value, so two
// mirrors of the same class are the same reference.
type ClassRef struct {
	Name string
}

// JavaClass implements Typed.
func (c ClassRef) JavaClass() string { return "java/lang/Class" }

// JString is a java.lang.String created at run time. Its pointer is its
// identity. Interned strings (ldc constants and intern results) are plain
// Go strings, whose identity is their content.
type JString struct {
	S string
}

// JavaClass implements Typed.
func (s *JString) JavaClass() string { return "java/lang/String" }

// NewString creates a string reference distinct from every other.
func NewString(s string) Value {
	return RefValue(&JString{S: s})
}

// Intern returns the canonical reference for s.
func Intern(s string) Value {
	return RefValue(s)
}

// Typed is implemented by emulated platform objects so type checks can
// find their runtime class.
type Typed interface {
	JavaClass() string
}

// TypeOf returns the runtime class (or array descriptor) of a reference.
func TypeOf(v Value) string {
	switch r := v.Ref.(type) {
	case *JObject:
		return r.Class
	case *JArray:
		return r.Type
	case string:
		return "java/lang/String"
	case Typed:
		return r.JavaClass()
	case ir.MethodTypeConst:
		return "java/lang/invoke/MethodType"
	case *ir.Handle:
		return "java/lang/invoke/MethodHandle"
	}
	return ir.ObjectClass
}

// NewThrowable builds a guest exception object of the given class.
func NewThrowable(class, message string) Value {
	obj := NewObject(class)
	if message != "" {
		obj.Fields["detailMessage"] = NewString(message)
	}
	return RefValue(obj)
}

// AsString returns the Go string behind a java.lang.String reference,
// interned or not.
func AsString(v Value) (string, bool) {
	if v.Kind != KindRef {
		return "", false
	}
	switch r := v.Ref.(type) {
	case string:
		return r, true
	case *JString:
		return r.S, true
	}
	return "", false
}
