package provider

import (
	"fmt"

	"github.com/apex/log"

	"github.com/daimatz/deobvm/pkg/errs"
	"github.com/daimatz/deobvm/pkg/value"
)

// Chain dispatches operations to providers in registration order. Only the
// first provider that claims an operation runs it.
type Chain struct {
	methods  []MethodProvider
	fields   []FieldProvider
	equality []EqualityProvider
	types    []TypeProvider
	log      log.Interface
}

// NewChain creates an empty chain.
func NewChain(logger log.Interface) *Chain {
	if logger == nil {
		logger = log.Log
	}
	return &Chain{log: logger}
}

// Register appends p under every capability it implements. It panics if p
// implements none, which is a programming error.
func (c *Chain) Register(p interface{}) *Chain {
	ok := false
	if m, is := p.(MethodProvider); is {
		c.methods = append(c.methods, m)
		ok = true
	}
	if f, is := p.(FieldProvider); is {
		c.fields = append(c.fields, f)
		ok = true
	}
	if e, is := p.(EqualityProvider); is {
		c.equality = append(c.equality, e)
		ok = true
	}
	if t, is := p.(TypeProvider); is {
		c.types = append(c.types, t)
		ok = true
	}
	if !ok {
		panic(fmt.Sprintf("provider: %T implements no capability", p))
	}
	return c
}

func (c *Chain) miss(e *errs.NoProviderError) error {
	c.log.WithFields(log.Fields{
		"op":    e.Op,
		"owner": e.Owner,
		"name":  e.Name,
		"desc":  e.Desc,
	}).Debug("no provider")
	return e
}

// Invoke runs call on the first provider that claims it.
func (c *Chain) Invoke(ctx *Context, call *Call) (value.Value, error) {
	for _, p := range c.methods {
		if p.CanInvoke(ctx, call) {
			return p.Invoke(ctx, call)
		}
	}
	return value.Value{}, c.miss(&errs.NoProviderError{Op: call.Op.String(), Owner: call.Owner, Name: call.Name, Desc: call.Desc})
}

func fieldOp(ref FieldRef, put bool) string {
	switch {
	case ref.Static && put:
		return "putstatic"
	case ref.Static:
		return "getstatic"
	case put:
		return "putfield"
	}
	return "getfield"
}

// GetField reads a field through the first claiming provider.
func (c *Chain) GetField(ctx *Context, ref FieldRef, obj value.Value) (value.Value, error) {
	for _, p := range c.fields {
		if p.CanGetField(ctx, ref, obj) {
			return p.GetField(ctx, ref, obj)
		}
	}
	return value.Value{}, c.miss(&errs.NoProviderError{Op: fieldOp(ref, false), Owner: ref.Owner, Name: ref.Name, Desc: ref.Desc})
}

// PutField writes a field through the first claiming provider.
func (c *Chain) PutField(ctx *Context, ref FieldRef, obj, v value.Value) error {
	for _, p := range c.fields {
		if p.CanPutField(ctx, ref, obj, v) {
			return p.PutField(ctx, ref, obj, v)
		}
	}
	return c.miss(&errs.NoProviderError{Op: fieldOp(ref, true), Owner: ref.Owner, Name: ref.Name, Desc: ref.Desc})
}

// CheckEquality decides a == b through the first claiming provider.
func (c *Chain) CheckEquality(ctx *Context, a, b value.Value) (bool, error) {
	for _, p := range c.equality {
		if p.CanCheckEquality(ctx, a, b) {
			return p.CheckEquality(ctx, a, b)
		}
	}
	return false, c.miss(&errs.NoProviderError{Op: "acmp", Owner: value.TypeOf(a), Desc: value.TypeOf(b)})
}

// CheckInstance decides v instanceof typ through the first claiming
// provider.
func (c *Chain) CheckInstance(ctx *Context, v value.Value, typ string) (bool, error) {
	for _, p := range c.types {
		if p.CanCheckInstance(ctx, v, typ) {
			return p.CheckInstance(ctx, v, typ)
		}
	}
	return false, c.miss(&errs.NoProviderError{Op: "instanceof", Owner: value.TypeOf(v), Desc: typ})
}
