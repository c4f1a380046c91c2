package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/value"
)

func TestArena(t *testing.T) {
	a := &Arena{}
	first := a.Add(&Frame{Category: Const, Insn: 0})
	second := a.Add(&Frame{Category: Arith, Insn: 1, Operands: []ID{first}})

	assert.Equal(t, ID(0), first)
	assert.Equal(t, ID(1), second)
	assert.Equal(t, 2, a.Len())
	assert.Same(t, a.All()[1], a.Get(second))
	assert.Nil(t, a.Get(NoID))
	assert.Nil(t, a.Get(2))
}

func TestFrameString(t *testing.T) {
	tests := []struct {
		f    *Frame
		want string
	}{
		{&Frame{ID: 0, Category: Param, Insn: -1}, "#0 param"},
		{&Frame{ID: 1, Category: Const, Op: ir.OpBipush, Insn: 0, Const: int32(7)}, "#1 const bipush@0 7"},
		{&Frame{ID: 3, Category: Invoke, Op: ir.OpInvokestatic, Insn: 2, Owner: "a/B", Name: "f", Desc: "(I)I", Operands: []ID{1}}, "#3 invoke invokestatic@2 a/B.f(I)I <- [1]"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.String())
		})
	}
	assert.Equal(t, "category(200)", Category(200).String())
}

func TestConstantValue(t *testing.T) {
	m := &ir.Method{Name: "m", Desc: "()I", Instructions: []*ir.Instruction{
		ir.IntInsn(ir.OpBipush, 6),
		ir.Insn(ir.OpIconst5),
		ir.Insn(ir.OpIsub),
		ir.Insn(ir.OpI2l),
	}}
	r := NewResult(m)
	a := r.Record(m.Instructions[0], &Frame{Category: Const, Op: ir.OpBipush, Const: int32(6)})
	b := r.Record(m.Instructions[1], &Frame{Category: Const, Op: ir.OpIconst5, Const: int32(5)})
	sub := r.Record(m.Instructions[2], &Frame{Category: Arith, Op: ir.OpIsub, Operands: []ID{a, b}})
	conv := r.Record(m.Instructions[3], &Frame{Category: Convert, Op: ir.OpI2l, Operands: []ID{sub}})
	param := r.Arena.Add(&Frame{Category: Param, Insn: -1})
	mixed := r.Arena.Add(&Frame{Category: Arith, Op: ir.OpIadd, Operands: []ID{a, param}})

	v, ok := r.ConstantValue(conv)
	require.True(t, ok)
	assert.Equal(t, value.LongValue(1), v)

	_, ok = r.ConstantValue(mixed)
	assert.False(t, ok, "parameters are not constant")

	assert.True(t, r.Reached(m.Instructions[2]))
	assert.Len(t, r.FramesAt(3), 1)
	assert.Nil(t, r.FramesAt(4))
}
