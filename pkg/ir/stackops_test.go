package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Entries starting with "W" are wide.
func isWide(s string) bool { return s[0] == 'W' }

func TestApplyStackOp(t *testing.T) {
	tests := []struct {
		name  string
		op    Opcode
		stack []string
		want  []string
	}{
		{"pop", OpPop, []string{"a", "b"}, []string{"a"}},
		{"pop2 narrow", OpPop2, []string{"a", "b", "c"}, []string{"a"}},
		{"pop2 wide", OpPop2, []string{"a", "W"}, []string{"a"}},
		{"dup", OpDup, []string{"a"}, []string{"a", "a"}},
		{"dup_x1", OpDupX1, []string{"x", "b", "a"}, []string{"x", "a", "b", "a"}},
		{"dup_x2 form1", OpDupX2, []string{"c", "b", "a"}, []string{"a", "c", "b", "a"}},
		{"dup_x2 form2", OpDupX2, []string{"W", "a"}, []string{"a", "W", "a"}},
		{"dup2 form1", OpDup2, []string{"b", "a"}, []string{"b", "a", "b", "a"}},
		{"dup2 form2", OpDup2, []string{"W"}, []string{"W", "W"}},
		{"dup2_x1 form1", OpDup2X1, []string{"c", "b", "a"}, []string{"b", "a", "c", "b", "a"}},
		{"dup2_x1 form2", OpDup2X1, []string{"b", "W"}, []string{"W", "b", "W"}},
		{"dup2_x2 form1", OpDup2X2, []string{"d", "c", "b", "a"}, []string{"b", "a", "d", "c", "b", "a"}},
		{"dup2_x2 form2", OpDup2X2, []string{"c", "b", "W"}, []string{"W", "c", "b", "W"}},
		{"dup2_x2 form3", OpDup2X2, []string{"Wc", "b", "a"}, []string{"b", "a", "Wc", "b", "a"}},
		{"dup2_x2 form4", OpDup2X2, []string{"Wb", "Wa"}, []string{"Wa", "Wb", "Wa"}},
		{"swap", OpSwap, []string{"x", "b", "a"}, []string{"x", "a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyStackOp(tt.op, tt.stack, isWide)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyStackOpUnderflow(t *testing.T) {
	for _, op := range []Opcode{OpPop, OpDup, OpDupX1, OpDup2X2, OpSwap} {
		_, err := ApplyStackOp(op, []string{}, isWide)
		assert.Error(t, err, op.String())
	}
	_, err := ApplyStackOp(OpIadd, []string{"a"}, isWide)
	assert.Error(t, err)
}

func TestApplyStackOpDoesNotAliasDup(t *testing.T) {
	stack := make([]string, 1, 8)
	stack[0] = "a"
	out, err := ApplyStackOp(OpDup, stack, isWide)
	require.NoError(t, err)
	out[0] = "z"
	assert.Equal(t, "a", stack[0])
}
