package vm

import (
	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/provider"
	"github.com/daimatz/deobvm/pkg/value"
)

// ExecutionProvider runs calls whose target is a method with code in a
// class under analysis. Virtual calls dispatch on the receiver's runtime
// class; constructors on a pending receiver allocate the object first.
type ExecutionProvider struct {
	vm *VM
}

// CanInvoke implements provider.MethodProvider.
func (p *ExecutionProvider) CanInvoke(ctx *provider.Context, call *provider.Call) bool {
	_, m := p.target(call)
	return m != nil
}

// Invoke implements provider.MethodProvider.
func (p *ExecutionProvider) Invoke(ctx *provider.Context, call *provider.Call) (value.Value, error) {
	c, m := p.target(call)
	if !call.IsConstructor() {
		return p.vm.executeMethod(ctx, c, m, call.Receiver, call.Args)
	}
	recv := call.Receiver
	if recv.IsPending() {
		recv = value.RefValue(value.NewObject(recv.PendingType()))
	}
	if _, err := p.vm.executeMethod(ctx, c, m, recv, call.Args); err != nil {
		return value.Value{}, err
	}
	return recv, nil
}

// target resolves the method a call runs, or returns a nil method when the
// call does not land in analyzed code.
func (p *ExecutionProvider) target(call *provider.Call) (*ir.Class, *ir.Method) {
	switch {
	case call.Op == ir.OpInvokedynamic:
		return nil, nil
	case call.IsConstructor():
		c, ok := p.vm.session.Class(call.Owner)
		if !ok {
			return nil, nil
		}
		if m := c.FindMethod(call.Name, call.Desc); m != nil && m.HasCode() {
			return c, m
		}
		return nil, nil
	case call.IsVirtual() && call.Receiver.Kind == value.KindRef:
		return p.resolve(value.TypeOf(call.Receiver), call.Name, call.Desc)
	}
	return p.resolve(call.Owner, call.Name, call.Desc)
}

// resolve looks a method up the analyzed superclass chain of start, then
// through the analyzed superinterfaces for a default method.
func (p *ExecutionProvider) resolve(start, name, desc string) (*ir.Class, *ir.Method) {
	var ifaces []string
	for cur := start; cur != ""; {
		c, ok := p.vm.session.Class(cur)
		if !ok {
			break
		}
		if m := c.FindMethod(name, desc); m != nil {
			if m.HasCode() {
				return c, m
			}
			return nil, nil
		}
		ifaces = append(ifaces, c.Interfaces...)
		cur = c.Super
	}

	seen := make(map[string]bool)
	for len(ifaces) > 0 {
		n := ifaces[0]
		ifaces = ifaces[1:]
		if seen[n] {
			continue
		}
		seen[n] = true
		c, ok := p.vm.session.Class(n)
		if !ok {
			continue
		}
		if m := c.FindMethod(name, desc); m != nil && m.HasCode() && !m.IsStatic() {
			return c, m
		}
		ifaces = append(ifaces, c.Interfaces...)
	}
	return nil, nil
}
