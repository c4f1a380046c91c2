// Package session ties together the state shared by one deobfuscation run:
// configuration, class path, hierarchy resolver and logger.
package session

import (
	"fmt"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/daimatz/deobvm/pkg/config"
	"github.com/daimatz/deobvm/pkg/hierarchy"
	"github.com/daimatz/deobvm/pkg/ir"
)

// Session is the explicit analysis context passed to every component.
// Nothing in it is process-global; two sessions never share hierarchy
// nodes or library caches.
type Session struct {
	ID       string
	Config   *config.Config
	Log      log.Interface
	Classes  *hierarchy.ClassPath
	Resolver *hierarchy.Resolver
}

// Option customizes New.
type Option func(*options)

type options struct {
	loader hierarchy.Loader
	logger log.Interface
}

// WithLoader replaces the library loader built from the configuration.
func WithLoader(l hierarchy.Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithLogger sets the logger; the default is the apex/log package logger.
func WithLogger(l log.Interface) Option {
	return func(o *options) { o.logger = l }
}

// New creates a session analyzing classes. A nil cfg uses config.Default.
func New(cfg *config.Config, classes []*ir.Class, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.loader == nil {
		o.loader = hierarchy.LibraryLoader(cfg.Hierarchy.Library, cfg.UseBuiltins())
	}
	if o.logger == nil {
		o.logger = log.Log
	}
	policy, err := hierarchy.ParsePolicy(cfg.Hierarchy.Policy)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	id := uuid.NewString()
	logger := o.logger.WithField("session", id)
	cp := hierarchy.NewClassPath(o.loader, classes...)
	s := &Session{
		ID:       id,
		Config:   cfg,
		Log:      logger,
		Classes:  cp,
		Resolver: hierarchy.NewResolver(cp, policy, logger),
	}
	logger.WithFields(log.Fields{
		"classes": len(classes),
		"policy":  cfg.Hierarchy.Policy,
	}).Debug("session created")
	return s, nil
}

// Reset drops every cached hierarchy node and library class. Classes under
// analysis, including removals, are kept.
func (s *Session) Reset() {
	s.Classes.Reset()
	s.Resolver.Reset()
	s.Log.Debug("session reset")
}

// Class returns a class under analysis.
func (s *Session) Class(name string) (*ir.Class, bool) {
	return s.Classes.Analyzed(name)
}
