package hierarchy

import (
	"errors"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/deobvm/pkg/errs"
	"github.com/daimatz/deobvm/pkg/ir"
)

func class(name, super string, interfaces ...string) *ir.Class {
	return &ir.Class{Name: name, Super: super, Interfaces: interfaces}
}

func itf(name string, extends ...string) *ir.Class {
	c := class(name, ir.ObjectClass, extends...)
	c.Access = ir.AccInterface | ir.AccAbstract
	return c
}

// graph:
//
//	Object <- A <- B <- C
//	          A <- D
//	     I <- B, J <- D, I <- K (interface)
func newTestResolver(t *testing.T, policy Policy, logger log.Interface) *Resolver {
	t.Helper()
	cp := NewClassPath(BuiltinLoader(),
		class("t/A", ir.ObjectClass),
		class("t/B", "t/A", "t/I"),
		class("t/C", "t/B"),
		class("t/D", "t/A", "t/J"),
		itf("t/I"),
		itf("t/J"),
		itf("t/K", "t/I"),
	)
	return NewResolver(cp, policy, logger)
}

func TestIsAssignableFrom(t *testing.T) {
	r := newTestResolver(t, Strict, nil)

	tests := []struct {
		sup, sub string
		want     bool
	}{
		{"t/A", "t/A", true},
		{"t/A", "t/B", true},
		{"t/A", "t/C", true},
		{"t/B", "t/A", false},
		{"t/C", "t/A", false},
		{"t/B", "t/D", false},
		{"t/I", "t/B", true},
		{"t/I", "t/C", true},
		{"t/I", "t/K", true},
		{"t/J", "t/B", false},
		{ir.ObjectClass, "t/C", true},
		{ir.ObjectClass, "t/I", true},
		{"t/A", ir.ObjectClass, false},
		{"java/lang/Exception", "java/lang/ArithmeticException", true},
		{"java/lang/ArithmeticException", "java/lang/Exception", false},
		{"[Lt/A;", "[Lt/C;", true},
		{"[Lt/C;", "[Lt/A;", false},
		{"[I", "[I", true},
		{"[I", "[J", false},
		{"java/lang/Cloneable", "[I", true},
		{"t/A", "[Lt/A;", false},
	}
	for _, tt := range tests {
		t.Run(tt.sup+"<-"+tt.sub, func(t *testing.T) {
			got, err := r.IsAssignableFrom(tt.sup, tt.sub)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAncestorDescendantPairs(t *testing.T) {
	r := newTestResolver(t, Strict, nil)
	names := []string{"t/A", "t/B", "t/C", "t/D", "t/I", "t/J", "t/K"}
	for _, b := range names {
		ancestors, err := r.Ancestors(b)
		require.NoError(t, err)
		for _, a := range ancestors {
			ok, err := r.IsAssignableFrom(a, b)
			require.NoError(t, err)
			assert.True(t, ok, "%s should accept descendant %s", a, b)

			back, err := r.IsAssignableFrom(b, a)
			require.NoError(t, err)
			assert.False(t, back, "%s should not accept ancestor %s", b, a)
		}
	}
}

func TestCommonSuperclass(t *testing.T) {
	r := newTestResolver(t, Strict, nil)

	tests := []struct {
		a, b string
		want string
	}{
		{"t/B", "t/C", "t/B"},
		{"t/C", "t/D", "t/A"},
		{"t/B", "t/D", "t/A"},
		{"t/A", "t/I", ir.ObjectClass},
		{"t/I", "t/J", ir.ObjectClass},
		{"t/K", "t/I", "t/I"},
		{"java/lang/ArithmeticException", "java/lang/NullPointerException", "java/lang/RuntimeException"},
		{"java/lang/ArithmeticException", "java/lang/Error", "java/lang/Throwable"},
		{"[I", "t/A", ir.ObjectClass},
	}
	for _, tt := range tests {
		t.Run(tt.a+"^"+tt.b, func(t *testing.T) {
			got, err := r.CommonSuperclass(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			rev, err := r.CommonSuperclass(tt.b, tt.a)
			require.NoError(t, err)
			assert.Equal(t, got, rev, "common superclass must be symmetric")
		})
	}
}

func TestMissingClassStrict(t *testing.T) {
	cp := NewClassPath(BuiltinLoader(), class("t/X", "t/Gone"))
	r := NewResolver(cp, Strict, nil)

	_, err := r.IsAssignableFrom("t/A", "t/X")
	var missing *errs.MissingClassError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "t/Gone", missing.Name)
	assert.Equal(t, "t/X", missing.Referrer)
	assert.True(t, cp.IsAnalyzed("t/X"))
}

func TestMissingClassPrune(t *testing.T) {
	handler := memory.New()
	logger := &log.Logger{Handler: handler, Level: log.DebugLevel}

	cp := NewClassPath(BuiltinLoader(), class("t/X", "t/Gone"), class("t/Y", ir.ObjectClass))
	r := NewResolver(cp, Prune, logger)

	_, err := r.IsAssignableFrom("t/Y", "t/X")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrPruned))
	var missing *errs.MissingClassError
	assert.True(t, errors.As(err, &missing))

	assert.False(t, cp.IsAnalyzed("t/X"))
	assert.Equal(t, []string{"t/X"}, cp.Removed())
	require.Len(t, handler.Entries, 1)
	assert.Equal(t, log.WarnLevel, handler.Entries[0].Level)

	require.NoError(t, r.IndexAll())
}

func TestDescendantsAndReset(t *testing.T) {
	r := newTestResolver(t, Strict, nil)
	got, err := r.Descendants("t/A")
	require.NoError(t, err)
	assert.Equal(t, []string{"t/B", "t/C", "t/D"}, got)

	got, err = r.Descendants("t/I")
	require.NoError(t, err)
	assert.Equal(t, []string{"t/B", "t/C", "t/K"}, got)

	r.Reset()
	r.mu.RLock()
	assert.Empty(t, r.nodes)
	r.mu.RUnlock()
}

// reentrantLoader resolves hierarchy queries from inside LoadClass, the
// way a class writer computing frames can call back into the resolver.
type reentrantLoader struct {
	r     *Resolver
	inner Loader
	calls int
}

func (l *reentrantLoader) LoadClass(name string) (*ir.Class, error) {
	l.calls++
	if name == "t/Lib" {
		if _, err := l.r.CommonSuperclass("t/B", "t/D"); err != nil {
			return nil, err
		}
		return class("t/Lib", "t/A"), nil
	}
	return l.inner.LoadClass(name)
}

func TestResolverReentrant(t *testing.T) {
	loader := &reentrantLoader{inner: BuiltinLoader()}
	cp := NewClassPath(loader,
		class("t/A", ir.ObjectClass),
		class("t/B", "t/A"),
		class("t/D", "t/A"),
	)
	r := NewResolver(cp, Strict, nil)
	loader.r = r

	got, err := r.CommonSuperclass("t/Lib", "t/B")
	require.NoError(t, err)
	assert.Equal(t, "t/A", got)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("prune")
	require.NoError(t, err)
	assert.Equal(t, Prune, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Strict, p)

	_, err = ParsePolicy("lenient")
	assert.Error(t, err)
}
