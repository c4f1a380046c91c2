package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/deobvm/pkg/config"
	"github.com/daimatz/deobvm/pkg/errs"
	"github.com/daimatz/deobvm/pkg/frame"
	"github.com/daimatz/deobvm/pkg/hierarchy"
	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/session"
	"github.com/daimatz/deobvm/pkg/value"
)

const owner = "t/T"

func newAnalyzer(t *testing.T, cfg *config.Config, classes ...*ir.Class) *Analyzer {
	t.Helper()
	s, err := session.New(cfg, classes, session.WithLoader(hierarchy.BuiltinLoader()))
	require.NoError(t, err)
	return New(s)
}

func staticMethod(desc string, maxLocals int, insns ...*ir.Instruction) *ir.Method {
	return &ir.Method{
		Access:       ir.AccPublic | ir.AccStatic,
		Name:         "m",
		Desc:         desc,
		MaxLocals:    maxLocals,
		Instructions: insns,
	}
}

func testClass(methods ...*ir.Method) *ir.Class {
	return &ir.Class{Name: owner, Super: ir.ObjectClass, Methods: methods}
}

func TestBranchFreeOneFramePerInstruction(t *testing.T) {
	tests := []struct {
		name  string
		insns []*ir.Instruction
		// net is the stack depth after the last instruction.
		net int
	}{
		{
			name: "arith",
			insns: []*ir.Instruction{
				ir.Insn(ir.OpIconst2),
				ir.Insn(ir.OpIconst3),
				ir.Insn(ir.OpImul),
			},
			net: 1,
		},
		{
			name: "locals and stack ops",
			insns: []*ir.Instruction{
				ir.IntInsn(ir.OpBipush, 7),
				ir.VarInsn(ir.OpIstore, 0),
				ir.VarInsn(ir.OpIload, 0),
				ir.Insn(ir.OpDup),
				ir.Insn(ir.OpIconst1),
				ir.Insn(ir.OpSwap),
				ir.Insn(ir.OpPop),
			},
			net: 2,
		},
		{
			name: "wide values",
			insns: []*ir.Instruction{
				ir.LdcInsn(int64(5)),
				ir.Insn(ir.OpDup2),
				ir.Insn(ir.OpLadd),
				ir.Insn(ir.OpL2i),
				ir.LdcInsn(1.5),
				ir.Insn(ir.OpPop2),
			},
			net: 1,
		},
		{
			name: "calls and fields",
			insns: []*ir.Instruction{
				ir.FieldInsn(ir.OpGetstatic, "java/lang/System", "out", "Ljava/io/PrintStream;"),
				ir.LdcInsn("hi"),
				ir.MethodInsn(ir.OpInvokevirtual, "java/io/PrintStream", "println", "(Ljava/lang/String;)V"),
				ir.Insn(ir.OpIconst1),
				ir.MethodInsn(ir.OpInvokestatic, "java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;"),
			},
			net: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := staticMethod("()V", 1, append(tt.insns, ir.Insn(ir.OpReturn))...)
			a := newAnalyzer(t, nil)

			res, err := a.Analyze(testClass(m), m)
			require.NoError(t, err)
			for i := range m.Instructions {
				assert.Len(t, res.FramesAt(i), 1, "instruction %d", i)
			}
			last := res.FramesAt(len(tt.insns) - 1)[0]
			assert.Len(t, last.Stack, tt.net)
		})
	}
}

func TestConstantFolding(t *testing.T) {
	m := staticMethod("()I", 1,
		ir.Insn(ir.OpIconst2),
		ir.Insn(ir.OpIconst3),
		ir.Insn(ir.OpImul),
		ir.VarInsn(ir.OpIstore, 0),
		ir.IincInsn(0, 4),
		ir.VarInsn(ir.OpIload, 0),
		ir.IntInsn(ir.OpBipush, 0x0F),
		ir.Insn(ir.OpIxor),
		ir.Insn(ir.OpI2b),
		ir.Insn(ir.OpIreturn),
	)
	a := newAnalyzer(t, nil)
	res, err := a.Analyze(testClass(m), m)
	require.NoError(t, err)

	mul := res.FramesAt(2)[0]
	v, ok := res.ConstantValue(mul.ID)
	require.True(t, ok)
	assert.Equal(t, value.IntValue(6), v)

	ret := res.FramesAt(9)[0]
	require.Len(t, ret.Operands, 1)
	v, ok = res.ConstantValue(ret.Operands[0])
	require.True(t, ok)
	assert.Equal(t, value.IntValue(10^0x0F), v)
}

func TestParameterIsNotConstant(t *testing.T) {
	m := staticMethod("(I)I",
		1,
		ir.VarInsn(ir.OpIload, 0),
		ir.Insn(ir.OpIconst1),
		ir.Insn(ir.OpIadd),
		ir.Insn(ir.OpIreturn),
	)
	a := newAnalyzer(t, nil)
	res, err := a.Analyze(testClass(m), m)
	require.NoError(t, err)
	_, ok := res.ConstantValue(res.FramesAt(2)[0].ID)
	assert.False(t, ok)
}

func TestBranchesForkFrames(t *testing.T) {
	ret := ir.Insn(ir.OpIreturn)
	other := ir.Insn(ir.OpIconst2)
	m := staticMethod("(I)I", 1,
		ir.VarInsn(ir.OpIload, 0),
		ir.JumpInsn(ir.OpIfeq, other),
		ir.Insn(ir.OpIconst1),
		ir.JumpInsn(ir.OpGoto, ret),
		other,
		ret,
	)
	a := newAnalyzer(t, nil)
	res, err := a.Analyze(testClass(m), m)
	require.NoError(t, err)

	frames := res.Frames(ret)
	require.Len(t, frames, 2, "one frame per incoming path")
	pushed := map[interface{}]bool{}
	for _, f := range frames {
		require.Len(t, f.Operands, 1)
		v, ok := res.ConstantValue(f.Operands[0])
		require.True(t, ok)
		pushed[v.Int] = true
	}
	assert.Equal(t, map[interface{}]bool{int32(1): true, int32(2): true}, pushed)
}

func TestLoopBackEdgeExploredOnce(t *testing.T) {
	loop := ir.IincInsn(0, 1)
	m := staticMethod("()V", 1,
		ir.Insn(ir.OpIconst0),
		ir.VarInsn(ir.OpIstore, 0),
		loop,
		ir.VarInsn(ir.OpIload, 0),
		ir.IntInsn(ir.OpBipush, 10),
		ir.JumpInsn(ir.OpIfIcmplt, loop),
		ir.Insn(ir.OpReturn),
	)
	a := newAnalyzer(t, nil)
	res, err := a.Analyze(testClass(m), m)
	require.NoError(t, err)

	assert.Len(t, res.Frames(loop), 2, "entry edge and back edge")
	assert.Len(t, res.FramesAt(3), 1, "edge iinc->iload is taken once")
	assert.Len(t, res.FramesAt(6), 1)
}

func TestHandlerForks(t *testing.T) {
	handler := ir.VarInsn(ir.OpAstore, 1)
	guardedEnd := ir.Insn(ir.OpIreturn)
	m := staticMethod("()I", 2,
		ir.Insn(ir.OpIconst1),
		ir.Insn(ir.OpIconst0),
		ir.Insn(ir.OpIdiv),
		guardedEnd,
		handler,
		ir.Insn(ir.OpIconstM1),
		ir.Insn(ir.OpIreturn),
	)
	m.TryRegions = []*ir.TryRegion{{
		Start:   m.Instructions[0],
		End:     guardedEnd,
		Handler: handler,
		Type:    "java/lang/ArithmeticException",
	}}
	a := newAnalyzer(t, nil)
	res, err := a.Analyze(testClass(m), m)
	require.NoError(t, err)

	frames := res.Frames(handler)
	require.Len(t, frames, 3, "one fork per guarded instruction")
	for _, f := range frames {
		require.Len(t, f.Operands, 1)
		caught := res.Arena.Get(f.Operands[0])
		require.NotNil(t, caught)
		assert.Equal(t, frame.Catch, caught.Category)
		require.Len(t, caught.Stack, 1)
		assert.Equal(t, "java/lang/ArithmeticException", caught.Stack[0].Type)
		assert.Equal(t, value.KindRef, f.Locals[1].Kind)
		assert.Empty(t, f.Stack)
	}
	assert.Len(t, res.FramesAt(3), 1)
}

func TestSupertypeHandlerShadowsLater(t *testing.T) {
	h1 := ir.Insn(ir.OpPop)
	h2 := ir.Insn(ir.OpPop)
	m := staticMethod("()V", 0,
		ir.Insn(ir.OpNop),
		ir.Insn(ir.OpReturn),
		h1,
		ir.Insn(ir.OpReturn),
		h2,
		ir.Insn(ir.OpReturn),
	)
	m.TryRegions = []*ir.TryRegion{
		{Start: m.Instructions[0], End: m.Instructions[1], Handler: h1, Type: "java/lang/Exception"},
		{Start: m.Instructions[0], End: m.Instructions[1], Handler: h2, Type: "java/lang/ArithmeticException"},
	}
	a := newAnalyzer(t, nil)
	res, err := a.Analyze(testClass(m), m)
	require.NoError(t, err)
	assert.True(t, res.Reached(h1))
	assert.False(t, res.Reached(h2), "Exception handler catches every ArithmeticException first")
}

func TestSeedLocals(t *testing.T) {
	m := &ir.Method{
		Name:         "m",
		Desc:         "(JLjava/lang/String;D[I)V",
		Instructions: []*ir.Instruction{ir.Insn(ir.OpReturn)},
	}
	a := newAnalyzer(t, nil)
	res, err := a.Analyze(testClass(m), m)
	require.NoError(t, err)
	require.Len(t, res.Params, 5)

	locals := res.FramesAt(0)[0].Locals
	require.Len(t, locals, 7)
	assert.Equal(t, value.KindRef, locals[0].Kind)
	assert.Equal(t, owner, locals[0].Type)
	assert.Equal(t, value.KindLong, locals[1].Kind)
	assert.Equal(t, value.KindTop, locals[2].Kind)
	assert.Equal(t, "java/lang/String", locals[3].Type)
	assert.Equal(t, value.KindDouble, locals[4].Kind)
	assert.Equal(t, value.KindTop, locals[5].Kind)
	assert.Equal(t, "[I", locals[6].Type)
}

func TestConstructorInitialization(t *testing.T) {
	m := &ir.Method{
		Name:      "<init>",
		Desc:      "()V",
		MaxLocals: 2,
		Instructions: []*ir.Instruction{
			ir.VarInsn(ir.OpAload, 0),
			ir.MethodInsn(ir.OpInvokespecial, ir.ObjectClass, "<init>", "()V"),
			ir.TypeInsn(ir.OpNew, "t/Foo"),
			ir.Insn(ir.OpDup),
			ir.VarInsn(ir.OpAstore, 1),
			ir.MethodInsn(ir.OpInvokespecial, "t/Foo", "<init>", "()V"),
			ir.Insn(ir.OpReturn),
		},
	}
	a := newAnalyzer(t, nil)
	res, err := a.Analyze(testClass(m), m)
	require.NoError(t, err)

	entry := res.FramesAt(0)[0]
	assert.Equal(t, value.KindPending, entry.Locals[0].Kind)
	assert.Equal(t, value.KindPending, entry.Stack[0].Kind)

	afterSuper := res.FramesAt(1)[0]
	assert.Equal(t, value.KindRef, afterSuper.Locals[0].Kind)

	stored := res.FramesAt(4)[0]
	assert.Equal(t, value.KindPending, stored.Locals[1].Kind)
	assert.Equal(t, value.KindPending, stored.Stack[0].Kind)

	afterInit := res.FramesAt(5)[0]
	assert.Empty(t, afterInit.Stack)
	assert.Equal(t, value.KindRef, afterInit.Locals[1].Kind)
	assert.Equal(t, "t/Foo", afterInit.Locals[1].Type)
}

func TestSubroutineUnsupported(t *testing.T) {
	target := ir.Insn(ir.OpReturn)
	m := staticMethod("()V", 1, ir.JumpInsn(ir.OpJsr, target), target)
	a := newAnalyzer(t, nil)
	_, err := a.Analyze(testClass(m), m)

	var unsupported *errs.UnsupportedInstructionError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, ir.OpJsr, unsupported.Op)
	assert.Equal(t, 0, unsupported.Index)
}

func TestStepLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.MaxSteps = 3
	insns := make([]*ir.Instruction, 0, 11)
	for i := 0; i < 10; i++ {
		insns = append(insns, ir.Insn(ir.OpNop))
	}
	m := staticMethod("()V", 0, append(insns, ir.Insn(ir.OpReturn))...)

	a := newAnalyzer(t, cfg)
	_, err := a.Analyze(testClass(m), m)
	var tooDeep *errs.AnalysisTooDeepError
	require.True(t, errors.As(err, &tooDeep))
	assert.Equal(t, 3, tooDeep.Limit)
	assert.Equal(t, owner, tooDeep.Owner)
}

func TestAbstractMethodIsEmpty(t *testing.T) {
	m := &ir.Method{Access: ir.AccPublic | ir.AccAbstract, Name: "m", Desc: "()V"}
	a := newAnalyzer(t, nil)
	res, err := a.Analyze(testClass(m), m)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestStackUnderflowIsDiagnosed(t *testing.T) {
	m := staticMethod("()V", 0, ir.Insn(ir.OpIadd), ir.Insn(ir.OpReturn))
	a := newAnalyzer(t, nil)
	_, err := a.Analyze(testClass(m), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stack underflow")
}

func TestExportRoundTrip(t *testing.T) {
	m := staticMethod("()I", 0, ir.Insn(ir.OpIconst2), ir.Insn(ir.OpIreturn))
	a := newAnalyzer(t, nil)
	res, err := a.Analyze(testClass(m), m)
	require.NoError(t, err)

	data, err := frame.MarshalExport(frame.NewExport(owner, res))
	require.NoError(t, err)
	e, err := frame.UnmarshalExport(data)
	require.NoError(t, err)
	assert.Equal(t, owner, e.Owner)
	require.Len(t, e.Frames, 2)
	assert.Equal(t, "const", e.Frames[0].Category)
	assert.Equal(t, "2", e.Frames[0].Const)
	assert.Equal(t, []string{"int"}, e.Frames[0].Stack)
}
