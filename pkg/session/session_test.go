package session

import (
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/deobvm/pkg/config"
	"github.com/daimatz/deobvm/pkg/hierarchy"
	"github.com/daimatz/deobvm/pkg/ir"
)

func TestNewSession(t *testing.T) {
	handler := memory.New()
	logger := &log.Logger{Handler: handler, Level: log.DebugLevel}
	a := &ir.Class{Name: "a/A", Super: ir.ObjectClass}

	s, err := New(nil, []*ir.Class{a}, WithLogger(logger))
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, config.Default().Analysis.MaxSteps, s.Config.Analysis.MaxSteps)

	got, ok := s.Class("a/A")
	require.True(t, ok)
	assert.Same(t, a, got)

	ok, err = s.Resolver.IsAssignableFrom("java/lang/Throwable", "java/lang/ArithmeticException")
	require.NoError(t, err)
	assert.True(t, ok, "builtin platform stubs are on the default library path")

	require.NotEmpty(t, handler.Entries)
	assert.Equal(t, s.ID, handler.Entries[0].Fields["session"])
}

func TestSessionsAreIsolated(t *testing.T) {
	lib := hierarchy.MapLoader{"l/Base": {Name: "l/Base", Super: ir.ObjectClass}}
	s1, err := New(nil, []*ir.Class{{Name: "a/A", Super: "l/Base"}}, WithLoader(lib))
	require.NoError(t, err)
	s2, err := New(nil, nil, WithLoader(lib))
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID, s2.ID)

	got, err := s1.Resolver.Descendants("l/Base")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/A"}, got)

	got, err = s2.Resolver.Descendants("l/Base")
	require.NoError(t, err)
	assert.Empty(t, got)

	s1.Reset()
	_, ok := s1.Class("a/A")
	assert.True(t, ok, "reset keeps analyzed classes")
}

func TestNewSessionBadPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Hierarchy.Policy = "sometimes"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}
