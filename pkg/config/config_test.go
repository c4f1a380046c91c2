package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 1<<20, c.Analysis.MaxSteps)
	assert.Equal(t, 256, c.Execution.MaxCallDepth)
	assert.Equal(t, PolicyStrict, c.Hierarchy.Policy)
	assert.True(t, c.UseBuiltins())
	assert.False(t, c.Providers.AllowReflection)
}

func TestParse(t *testing.T) {
	t.Run("overrides", func(t *testing.T) {
		c, err := Parse(`
[analysis]
max_steps = 500

[execution]
max_call_depth = 16

[hierarchy]
policy = "prune"
library = ["/opt/jdk/jmods/java.base.jmod", "lib"]
builtins = false

[providers]
allow_reflection = true
`)
		require.NoError(t, err)
		assert.Equal(t, 500, c.Analysis.MaxSteps)
		assert.Equal(t, 16, c.Execution.MaxCallDepth)
		assert.Equal(t, PolicyPrune, c.Hierarchy.Policy)
		assert.Equal(t, []string{"/opt/jdk/jmods/java.base.jmod", "lib"}, c.Hierarchy.Library)
		assert.False(t, c.UseBuiltins())
		assert.True(t, c.Providers.AllowReflection)
	})

	t.Run("unknown policy", func(t *testing.T) {
		_, err := Parse("[hierarchy]\npolicy = \"lenient\"\n")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lenient")
	})

	t.Run("syntax error", func(t *testing.T) {
		_, err := Parse("[analysis\n")
		require.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deobvm.toml")
	require.NoError(t, os.WriteFile(path, []byte("[execution]\nmax_call_depth = 8\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, c.Execution.MaxCallDepth)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)
}
