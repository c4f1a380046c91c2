package vm

import (
	"fmt"

	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/value"
)

// frameError is raised by Frame on stack underflow or a bad local index.
// The execution loop recovers it into an error.
type frameError struct {
	msg string
}

// misuse is raised when a pending value is popped by an instruction that
// requires an initialized one.
type misuse struct {
	typ string
}

// Frame is the activation of one method: its locals, operand stack and
// the index of the next instruction.
type Frame struct {
	Class  *ir.Class
	Method *ir.Method
	Locals []value.Value
	Stack  []value.Value
	// PC is the index of the next instruction; cur is the one executing.
	PC  int
	cur int
}

// NewFrame creates an activation of m with room for at least nlocals
// locals.
func NewFrame(class *ir.Class, m *ir.Method, nlocals int) *Frame {
	if m.MaxLocals > nlocals {
		nlocals = m.MaxLocals
	}
	return &Frame{
		Class:  class,
		Method: m,
		Locals: make([]value.Value, nlocals),
		Stack:  make([]value.Value, 0, m.MaxStack),
	}
}

// Push pushes a value onto the operand stack.
func (f *Frame) Push(v value.Value) {
	f.Stack = append(f.Stack, v)
}

// PopAny pops a value, which may be pending.
func (f *Frame) PopAny() value.Value {
	if len(f.Stack) == 0 {
		panic(frameError{"operand stack underflow"})
	}
	v := f.Stack[len(f.Stack)-1]
	f.Stack = f.Stack[:len(f.Stack)-1]
	return v
}

// Pop pops an initialized value.
func (f *Frame) Pop() value.Value {
	v := f.PopAny()
	if v.IsPending() {
		panic(misuse{v.PendingType()})
	}
	return v
}

// PopInt pops an int.
func (f *Frame) PopInt() int32 {
	v := f.Pop()
	if v.Kind != value.KindInt {
		panic(frameError{fmt.Sprintf("expected int on stack, got %s", v.Kind)})
	}
	return v.Int
}

// PopN pops n initialized values, deepest first.
func (f *Frame) PopN(n int) []value.Value {
	out := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = f.Pop()
	}
	return out
}

// Peek returns the top of the operand stack without popping it.
func (f *Frame) Peek() value.Value {
	if len(f.Stack) == 0 {
		panic(frameError{"operand stack underflow"})
	}
	return f.Stack[len(f.Stack)-1]
}

// GetLocal returns the value at the given local variable index.
func (f *Frame) GetLocal(index int) value.Value {
	if index < 0 || index >= len(f.Locals) {
		panic(frameError{fmt.Sprintf("local variable index out of range: index=%d, max=%d", index, len(f.Locals))})
	}
	return f.Locals[index]
}

// SetLocal stores v at index. Wide values also clear index+1, and
// overwriting the upper half of a wide value invalidates it.
func (f *Frame) SetLocal(index int, v value.Value) {
	need := index + 1
	if v.IsWide() {
		need++
	}
	if index < 0 || need > len(f.Locals) {
		panic(frameError{fmt.Sprintf("local variable index out of range: index=%d, max=%d", index, len(f.Locals))})
	}
	if index > 0 && f.Locals[index-1].IsWide() {
		f.Locals[index-1] = value.Top()
	}
	f.Locals[index] = v
	if v.IsWide() {
		f.Locals[index+1] = value.Top()
	}
}

// Initialize replaces every copy of the pending value p in the stack and
// locals with obj.
func (f *Frame) Initialize(p *value.Pending, obj value.Value) {
	replace := func(vs []value.Value) {
		for i, v := range vs {
			if v.IsPending() && v.Ref == p {
				vs[i] = obj
			}
		}
	}
	replace(f.Stack)
	replace(f.Locals)
}

// Catch resets the operand stack to the single thrown value.
func (f *Frame) Catch(thrown value.Value) {
	f.Stack = append(f.Stack[:0], thrown)
}
