package provider

import (
	"io"

	"github.com/daimatz/deobvm/pkg/session"
)

// Option customizes Standard.
type Option func(*standardOptions)

type standardOptions struct {
	stdout, stderr io.Writer
	first          []interface{}
	fields         *FieldStore
}

// WithOutput redirects System.out and System.err.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *standardOptions) {
		o.stdout, o.stderr = stdout, stderr
	}
}

// WithFirst registers providers ahead of the standard ones, so they win
// every operation they claim.
func WithFirst(providers ...interface{}) Option {
	return func(o *standardOptions) {
		o.first = append(o.first, providers...)
	}
}

// WithFieldStore uses fs for static and instance fields, so the caller can
// seed or inspect statics.
func WithFieldStore(fs *FieldStore) Option {
	return func(o *standardOptions) {
		o.fields = fs
	}
}

// Standard composes the usual chain: caller-supplied providers, primitive
// class mirrors, the platform emulation, the field store, reflection when
// the configuration allows it, then hierarchy type checks and identity
// equality.
func Standard(s *session.Session, opts ...Option) *Chain {
	var o standardOptions
	for _, opt := range opts {
		opt(&o)
	}
	c := NewChain(s.Log)
	for _, p := range o.first {
		c.Register(p)
	}
	c.Register(PrimitiveClassProvider{})
	c.Register(NewPlatformProvider(o.stdout, o.stderr))
	if o.fields == nil {
		o.fields = NewFieldStore(s.Classes)
	}
	c.Register(o.fields)
	if s.Config.Providers.AllowReflection {
		c.Register(ReflectionProvider{})
	}
	c.Register(HierarchyTypeProvider{})
	c.Register(IdentityEqualityProvider{})
	return c
}
