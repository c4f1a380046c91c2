// Package value holds the live values manipulated by the concrete
// interpreter: tagged stack/local slots, guest objects and arrays.
package value

import (
	"fmt"

	"github.com/daimatz/deobvm/pkg/ir"
)

// Kind tags a Value.
type Kind uint8

const (
	// KindTop marks an empty slot or the upper half of a wide local.
	KindTop Kind = iota
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindRef
	KindNull
	// KindPending is the result of new before its constructor has run.
	KindPending
)

var kindNames = [...]string{"top", "int", "long", "float", "double", "ref", "null", "pending"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value represents a value on the operand stack or in local variables.
type Value struct {
	Kind   Kind
	Int    int32
	Long   int64
	Float  float32
	Double float64
	Ref    interface{}
}

// Pending is the placeholder payload of an uninitialized object. It carries
// only the type being constructed; its pointer identity ties together all
// copies made by dup/store before the constructor runs.
type Pending struct {
	Type string
}

// IntValue creates an integer Value.
func IntValue(v int32) Value {
	return Value{Kind: KindInt, Int: v}
}

// BoolValue creates the int 1 or 0.
func BoolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

// LongValue creates a long Value.
func LongValue(v int64) Value {
	return Value{Kind: KindLong, Long: v}
}

// FloatValue creates a float Value.
func FloatValue(v float32) Value {
	return Value{Kind: KindFloat, Float: v}
}

// DoubleValue creates a double Value.
func DoubleValue(v float64) Value {
	return Value{Kind: KindDouble, Double: v}
}

// RefValue creates a reference Value. A nil ref is the null reference.
func RefValue(ref interface{}) Value {
	if ref == nil {
		return NullValue()
	}
	return Value{Kind: KindRef, Ref: ref}
}

// NullValue creates a null reference Value.
func NullValue() Value {
	return Value{Kind: KindNull}
}

// PendingValue creates the placeholder pushed by new.
func PendingValue(typ string) Value {
	return Value{Kind: KindPending, Ref: &Pending{Type: typ}}
}

// Top is the empty slot.
func Top() Value {
	return Value{}
}

// IsWide reports whether the value occupies two slots.
func (v Value) IsWide() bool {
	return v.Kind == KindLong || v.Kind == KindDouble
}

// IsNull reports whether v is the null reference.
func (v Value) IsNull() bool {
	return v.Kind == KindNull || (v.Kind == KindRef && v.Ref == nil)
}

// IsPending reports whether v is an uninitialized placeholder.
func (v Value) IsPending() bool {
	return v.Kind == KindPending
}

// PendingType returns the type under construction, or "".
func (v Value) PendingType() string {
	if p, ok := v.Ref.(*Pending); ok && v.Kind == KindPending {
		return p.Type
	}
	return ""
}

// SameObject reports reference identity. Two nulls are identical, as are
// two interned strings or two class mirrors with equal content.
func SameObject(a, b Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if a.Kind != b.Kind {
		return false
	}
	return a.Ref == b.Ref
}

// Zero returns the default value of a field descriptor.
func Zero(fdesc string) Value {
	switch fdesc {
	case "Z", "B", "C", "S", "I":
		return IntValue(0)
	case "J":
		return LongValue(0)
	case "F":
		return FloatValue(0)
	case "D":
		return DoubleValue(0)
	}
	return NullValue()
}

// FromConstant converts an ldc or ConstantValue constant into a Value.
func FromConstant(c interface{}) (Value, error) {
	switch c := c.(type) {
	case int32:
		return IntValue(c), nil
	case int64:
		return LongValue(c), nil
	case float32:
		return FloatValue(c), nil
	case float64:
		return DoubleValue(c), nil
	case string:
		return Intern(c), nil
	case ir.TypeConst:
		return RefValue(ClassRef{Name: c.Name}), nil
	case ir.MethodTypeConst, *ir.Handle:
		return RefValue(c), nil
	}
	return Value{}, fmt.Errorf("unsupported constant %T", c)
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindLong:
		return fmt.Sprintf("%dL", v.Long)
	case KindFloat:
		return fmt.Sprintf("%gF", v.Float)
	case KindDouble:
		return fmt.Sprintf("%gD", v.Double)
	case KindNull:
		return "null"
	case KindPending:
		return "uninitialized " + v.PendingType()
	case KindRef:
		if s, ok := AsString(v); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("%s@%p", TypeOf(v), v.Ref)
	}
	return "top"
}

// KindOf returns the slot kind of a field descriptor. Sub-int primitives
// are ints on the stack; "V" and "" give KindTop.
func KindOf(fdesc string) Kind {
	switch fdesc {
	case "Z", "B", "C", "S", "I":
		return KindInt
	case "J":
		return KindLong
	case "F":
		return KindFloat
	case "D":
		return KindDouble
	case "V", "":
		return KindTop
	}
	return KindRef
}
