package frame

import (
	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/value"
)

// Result maps each reached instruction of one method to the frames
// recorded for it. Frames for the same instruction are kept in discovery
// order and are never merged.
type Result struct {
	Method *ir.Method
	Arena  *Arena
	// Params holds the seed frames for the receiver and parameters.
	Params []ID

	byInsn map[*ir.Instruction][]ID
}

// NewResult creates an empty result for m.
func NewResult(m *ir.Method) *Result {
	return &Result{Method: m, Arena: &Arena{}, byInsn: make(map[*ir.Instruction][]ID)}
}

// Record adds f to the arena and indexes it under insn.
func (r *Result) Record(insn *ir.Instruction, f *Frame) ID {
	id := r.Arena.Add(f)
	if insn != nil {
		r.byInsn[insn] = append(r.byInsn[insn], id)
	}
	return id
}

// Frames returns every frame recorded for insn.
func (r *Result) Frames(insn *ir.Instruction) []*Frame {
	ids := r.byInsn[insn]
	out := make([]*Frame, len(ids))
	for i, id := range ids {
		out[i] = r.Arena.Get(id)
	}
	return out
}

// FramesAt returns the frames of the instruction at index i.
func (r *Result) FramesAt(i int) []*Frame {
	if r.Method == nil || i < 0 || i >= len(r.Method.Instructions) {
		return nil
	}
	return r.Frames(r.Method.Instructions[i])
}

// Reached reports whether any explored path reached insn.
func (r *Result) Reached(insn *ir.Instruction) bool {
	return len(r.byInsn[insn]) > 0
}

// Empty reports whether nothing was analyzed, as for abstract methods.
func (r *Result) Empty() bool {
	return r.Arena.Len() == 0
}

// ConstantValue folds the expression rooted at id when every leaf is a
// numeric or string constant. Loads and stores are followed to the value
// that reached them; parameters, fields, calls and anything involving a
// merge of paths are not constant.
func (r *Result) ConstantValue(id ID) (value.Value, bool) {
	return r.fold(id, 0)
}

// maxFoldDepth bounds how far fold follows operand links; loop-carried
// increments can otherwise chain through many frames.
const maxFoldDepth = 512

func (r *Result) fold(id ID, depth int) (value.Value, bool) {
	f := r.Arena.Get(id)
	if f == nil || depth > maxFoldDepth {
		return value.Value{}, false
	}
	operand := func(i int) (value.Value, bool) {
		if i >= len(f.Operands) {
			return value.Value{}, false
		}
		return r.fold(f.Operands[i], depth+1)
	}

	switch f.Category {
	case Const:
		if f.Const == nil {
			return value.NullValue(), true
		}
		v, err := value.FromConstant(f.Const)
		return v, err == nil
	case LocalLoad, LocalStore:
		return operand(0)
	case Increment:
		v, ok := operand(0)
		inc, isInt := f.Const.(int32)
		if !ok || !isInt || v.Kind != value.KindInt {
			return value.Value{}, false
		}
		return value.IntValue(v.Int + inc), true
	case Arith, Compare:
		if len(f.Operands) == 1 {
			v, ok := operand(0)
			if !ok {
				return value.Value{}, false
			}
			out, err := value.Unary(f.Op, v)
			return out, err == nil
		}
		a, ok := operand(0)
		if !ok {
			return value.Value{}, false
		}
		b, ok := operand(1)
		if !ok {
			return value.Value{}, false
		}
		out, err := value.Binary(f.Op, a, b)
		return out, err == nil
	case Convert:
		v, ok := operand(0)
		if !ok {
			return value.Value{}, false
		}
		out, err := value.Unary(f.Op, v)
		return out, err == nil
	}
	return value.Value{}, false
}
