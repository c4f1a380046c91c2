package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/deobvm/pkg/errs"
	"github.com/daimatz/deobvm/pkg/hierarchy"
	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/session"
)

func method(name string, insns ...*ir.Instruction) *ir.Method {
	return &ir.Method{
		Access:       ir.AccPublic | ir.AccStatic,
		Name:         name,
		Desc:         "()V",
		MaxLocals:    1,
		Instructions: insns,
	}
}

func newSession(t *testing.T, classes ...*ir.Class) *session.Session {
	t.Helper()
	s, err := session.New(nil, classes, session.WithLoader(hierarchy.BuiltinLoader()))
	require.NoError(t, err)
	return s
}

// long returns a straight-line method of n nops.
func long(name string, n int) *ir.Method {
	insns := make([]*ir.Instruction, 0, n+1)
	for i := 0; i < n; i++ {
		insns = append(insns, ir.Insn(ir.OpNop))
	}
	return method(name, append(insns, ir.Insn(ir.OpReturn))...)
}

func TestAnalyze(t *testing.T) {
	ret := ir.Insn(ir.OpReturn)
	a := &ir.Class{Name: "t/A", Super: ir.ObjectClass, Methods: []*ir.Method{
		method("ok", ir.Insn(ir.OpIconst1), ir.Insn(ir.OpPop), ir.Insn(ir.OpReturn)),
		method("sub", ir.JumpInsn(ir.OpJsr, ret), ret),
		{Access: ir.AccPublic | ir.AccAbstract, Name: "abs", Desc: "()V"},
	}}
	b := &ir.Class{Name: "t/B", Super: ir.ObjectClass, Methods: []*ir.Method{
		method("ok", ir.Insn(ir.OpReturn)),
	}}

	r, err := Analyze(context.Background(), newSession(t, b, a), Options{Workers: 2})
	require.NoError(t, err)
	require.Len(t, r.Items, 3, "methods without code are not analyzed")

	var names []string
	for _, it := range r.Items {
		names = append(names, it.Class.Name+"."+it.Method.Name)
	}
	assert.Equal(t, []string{"t/A.ok", "t/A.sub", "t/B.ok"}, names)

	assert.NotNil(t, r.Items[0].Result)
	assert.True(t, r.Items[0].Result.Reached(a.Methods[0].Instructions[2]))

	failed := r.Failed()
	require.Len(t, failed, 1)
	var unsupported *errs.UnsupportedInstructionError
	assert.True(t, errors.As(failed[0].Err, &unsupported))
	assert.Nil(t, failed[0].Result)
	assert.Empty(t, r.Skipped())
}

func TestAnalyzeTimeout(t *testing.T) {
	c := &ir.Class{Name: "t/A", Super: ir.ObjectClass, Methods: []*ir.Method{
		long("slow", 1<<14),
	}}

	r, err := Analyze(context.Background(), newSession(t, c), Options{Timeout: time.Nanosecond})
	require.NoError(t, err, "a timeout skips the method")
	skipped := r.Skipped()
	require.Len(t, skipped, 1)
	assert.Nil(t, skipped[0].Result)
	assert.NoError(t, skipped[0].Err)
	assert.Empty(t, r.Failed())
}

func TestAnalyzeCancelled(t *testing.T) {
	c := &ir.Class{Name: "t/A", Super: ir.ObjectClass, Methods: []*ir.Method{
		long("slow", 1<<14),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Analyze(ctx, newSession(t, c), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
