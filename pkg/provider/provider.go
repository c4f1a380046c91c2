// Package provider answers the questions the concrete interpreter cannot
// answer from bytecode alone: what a call returns, what a field holds,
// whether two references are equal and whether a value is an instance of a
// type. Each question is a capability interface with a claim method and an
// action method; a Chain asks registered providers in order and the first
// one that claims an operation performs it.
package provider

import (
	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/value"
)

// Call is one method invocation as seen by providers.
//
// For <init> calls the provider returns the initialized object. When
// Receiver is pending the provider allocates it; otherwise the call is a
// superclass or this(...) constructor call on an existing object.
type Call struct {
	Op       ir.Opcode
	Owner    string
	Name     string
	Desc     string
	Receiver value.Value
	Args     []value.Value

	// Bootstrap and BootstrapArgs are set for invokedynamic.
	Bootstrap     *ir.Handle
	BootstrapArgs []interface{}
}

// HasReceiver reports whether the call has a receiver.
func (c *Call) HasReceiver() bool {
	return c.Op != ir.OpInvokestatic && c.Op != ir.OpInvokedynamic
}

// IsConstructor reports whether the call is an <init> call.
func (c *Call) IsConstructor() bool {
	return c.Name == "<init>"
}

// IsVirtual reports whether the call dispatches on the receiver's runtime
// class.
func (c *Call) IsVirtual() bool {
	return c.Op == ir.OpInvokevirtual || c.Op == ir.OpInvokeinterface
}

func (c *Call) String() string {
	return c.Owner + "." + c.Name + c.Desc
}

// FieldRef identifies a field access.
type FieldRef struct {
	Owner  string
	Name   string
	Desc   string
	Static bool
}

func (r FieldRef) String() string {
	return r.Owner + "." + r.Name + ":" + r.Desc
}

// MethodProvider executes method calls.
type MethodProvider interface {
	CanInvoke(ctx *Context, call *Call) bool
	Invoke(ctx *Context, call *Call) (value.Value, error)
}

// FieldProvider reads and writes fields. obj is null for static fields.
type FieldProvider interface {
	CanGetField(ctx *Context, ref FieldRef, obj value.Value) bool
	GetField(ctx *Context, ref FieldRef, obj value.Value) (value.Value, error)
	CanPutField(ctx *Context, ref FieldRef, obj, v value.Value) bool
	PutField(ctx *Context, ref FieldRef, obj, v value.Value) error
}

// EqualityProvider decides reference equality for if_acmpeq/if_acmpne.
type EqualityProvider interface {
	CanCheckEquality(ctx *Context, a, b value.Value) bool
	CheckEquality(ctx *Context, a, b value.Value) (bool, error)
}

// TypeProvider decides instanceof and checkcast for non-null references.
type TypeProvider interface {
	CanCheckInstance(ctx *Context, v value.Value, typ string) bool
	CheckInstance(ctx *Context, v value.Value, typ string) (bool, error)
}
