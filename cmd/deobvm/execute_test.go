package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/deobvm/pkg/value"
)

func TestSplitMethod(t *testing.T) {
	tests := []struct {
		in                string
		owner, name, desc string
		wantErr           bool
	}{
		{in: "a/B.decrypt(I)Ljava/lang/String;", owner: "a/B", name: "decrypt", desc: "(I)Ljava/lang/String;"},
		{in: "B.run()V", owner: "B", name: "run", desc: "()V"},
		{in: "a/B.run", wantErr: true},
		{in: "run()V", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			owner, name, desc, err := splitMethod(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.desc, desc)
		})
	}
}

func TestParseArgs(t *testing.T) {
	got, err := parseArgs("(IJZCLjava/lang/String;D)V", []string{"0x10", "-5", "true", "x", "hi", "1.5"})
	require.NoError(t, err)
	assert.Equal(t, []value.Value{
		value.IntValue(16),
		value.LongValue(-5),
		value.BoolValue(true),
		value.IntValue('x'),
		value.NewString("hi"),
		value.DoubleValue(1.5),
	}, got)

	_, err = parseArgs("(I)V", nil)
	assert.Error(t, err, "argument count mismatch")
	_, err = parseArgs("(I)V", []string{"nope"})
	assert.Error(t, err)
	_, err = parseArgs("(C)V", []string{"ab"})
	assert.Error(t, err)
	_, err = parseArgs("([I)V", []string{"1"})
	assert.Error(t, err)
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)

	root.SetArgs([]string{"execute", "does-not-exist.class"})
	assert.Error(t, root.Execute(), "--method is required")

	root.SetArgs([]string{"analyze", "--workers", "1", "does-not-exist"})
	assert.Error(t, root.Execute(), "missing input")
}
