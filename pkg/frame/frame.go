// Package frame is the data-flow model produced by the abstract
// interpreter. A Frame records one execution of one instruction on one
// explored path: its category, operand provenance and the stack and locals
// as they look right after the instruction. Frames live in an Arena and
// refer to each other by ID, so back edges never create pointer cycles.
package frame

import (
	"fmt"
	"strings"

	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/value"
)

// ID addresses a Frame in its Arena.
type ID int32

// NoID marks a value with no recorded producer, such as an empty slot.
const NoID ID = -1

// Category tags what kind of operation a Frame records.
type Category uint8

const (
	Param Category = iota // seeded receiver or parameter
	Catch                 // exception value seeded at a handler
	Const
	LocalLoad
	LocalStore
	Increment
	FieldGet
	FieldPut
	Invoke
	ArrayLoad
	ArrayStore
	ArrayLength
	Arith
	Convert
	Compare
	TypeCheck
	Jump
	Switch
	Stack
	New
	NewArray
	Return
	Throw
	Monitor
	Nop
)

var categoryNames = [...]string{
	"param", "catch", "const", "load", "store", "increment", "getfield", "putfield",
	"invoke", "arrayload", "arraystore", "arraylength", "arith", "convert", "compare",
	"typecheck", "jump", "switch", "stack", "new", "newarray", "return", "throw",
	"monitor", "nop",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// Value describes one stack or local slot: its kind, its static type and
// the frame that produced it. Kind reuses value.Kind; KindPending marks an
// uninitialized object whose Type is the class under construction.
type Value struct {
	Kind   value.Kind
	Type   string
	Source ID
}

// Top is an empty slot or the upper half of a wide local.
var Top = Value{Kind: value.KindTop, Source: NoID}

func (v Value) String() string {
	switch v.Kind {
	case value.KindRef, value.KindPending:
		if v.Kind == value.KindPending {
			return "uninit " + v.Type
		}
		return v.Type
	case value.KindTop:
		return "."
	}
	return v.Kind.String()
}

// IsWide reports whether the value takes two local slots.
func (v Value) IsWide() bool {
	return v.Kind == value.KindLong || v.Kind == value.KindDouble
}

// Frame is one recorded execution of an instruction.
type Frame struct {
	ID       ID
	Category Category
	Op       ir.Opcode
	// Insn is the instruction index, or -1 for parameter seeds.
	Insn     int
	Operands []ID

	// Stack and Locals hold the state right after the instruction.
	Stack  []Value
	Locals []Value

	// Const is the pushed constant for Const frames and the increment for
	// Increment frames.
	Const interface{}
	// Var is the slot of local and Param frames.
	Var int
	// Owner, Name and Desc describe member references. Type instructions
	// and Catch frames use Desc alone.
	Owner, Name, Desc string
}

func (f *Frame) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s", f.ID, f.Category)
	if f.Insn >= 0 {
		fmt.Fprintf(&b, " %s@%d", f.Op, f.Insn)
	}
	switch {
	case f.Name != "":
		fmt.Fprintf(&b, " %s.%s%s", f.Owner, f.Name, f.Desc)
	case f.Desc != "":
		fmt.Fprintf(&b, " %s", f.Desc)
	case f.Const != nil:
		fmt.Fprintf(&b, " %v", f.Const)
	}
	if len(f.Operands) > 0 {
		fmt.Fprintf(&b, " <- %v", f.Operands)
	}
	return b.String()
}

// Arena owns every Frame produced by one analysis.
type Arena struct {
	frames []*Frame
}

// Add stores f, assigns its ID and returns it.
func (a *Arena) Add(f *Frame) ID {
	f.ID = ID(len(a.frames))
	a.frames = append(a.frames, f)
	return f.ID
}

// Get returns the frame with the given ID, or nil.
func (a *Arena) Get(id ID) *Frame {
	if id < 0 || int(id) >= len(a.frames) {
		return nil
	}
	return a.frames[id]
}

// Len returns the number of frames.
func (a *Arena) Len() int {
	return len(a.frames)
}

// All returns every frame in creation order.
func (a *Arena) All() []*Frame {
	return a.frames
}
