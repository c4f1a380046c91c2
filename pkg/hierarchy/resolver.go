// Package hierarchy resolves class descriptors and answers subtype and
// common-superclass queries over classes under analysis and library
// classes.
package hierarchy

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/apex/log"

	"github.com/daimatz/deobvm/pkg/errs"
	"github.com/daimatz/deobvm/pkg/ir"
)

// Policy selects what happens when a class cannot be resolved.
type Policy int

const (
	// Strict fails with MissingClassError.
	Strict Policy = iota
	// Prune removes the analyzed class that referenced the missing one.
	Prune
)

// ParsePolicy maps a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "strict":
		return Strict, nil
	case "prune":
		return Prune, nil
	}
	return Strict, fmt.Errorf("unknown missing-class policy %q", s)
}

// Node is one class in the lazily built hierarchy graph.
type Node struct {
	Name       string
	Subclasses map[string]struct{}
	Parents    map[string]struct{}
}

// Resolver caches hierarchy nodes for one session. Nodes are created on
// first use and live until Reset.
type Resolver struct {
	cp     *ClassPath
	policy Policy
	log    log.Interface

	mu         sync.RWMutex
	nodes      map[string]*Node
	registered map[string]bool
}

// NewResolver creates a resolver over a class path.
func NewResolver(cp *ClassPath, policy Policy, logger log.Interface) *Resolver {
	if logger == nil {
		logger = log.Log
	}
	return &Resolver{
		cp:         cp,
		policy:     policy,
		log:        logger,
		nodes:      make(map[string]*Node),
		registered: make(map[string]bool),
	}
}

// ClassPath returns the underlying class path.
func (r *Resolver) ClassPath() *ClassPath {
	return r.cp
}

// Reset clears every cached node.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = make(map[string]*Node)
	r.registered = make(map[string]bool)
}

// Resolve looks up a class by internal name.
func (r *Resolver) Resolve(name string) (*ir.Class, error) {
	return r.ResolveFrom(name, "")
}

// ResolveFrom looks up a class needed by referrer. Under the Prune policy
// an unresolvable class removes referrer from the analyzed set and the
// returned error wraps errs.ErrPruned.
func (r *Resolver) ResolveFrom(name, referrer string) (*ir.Class, error) {
	c, err := r.cp.Lookup(name)
	if err == nil {
		return c, nil
	}
	var missing *errs.MissingClassError
	if errors.As(err, &missing) {
		missing.Referrer = referrer
	}
	if r.policy == Prune && referrer != "" && r.cp.IsAnalyzed(referrer) {
		r.cp.Remove(referrer)
		r.log.WithFields(log.Fields{
			"class":   referrer,
			"missing": name,
		}).Warn("pruning class with unresolvable dependency")
		return nil, fmt.Errorf("%w: %s: %w", errs.ErrPruned, referrer, err)
	}
	return nil, err
}

func parentsOf(c *ir.Class) []string {
	parents := make([]string, 0, len(c.Interfaces)+1)
	if c.Super != "" {
		parents = append(parents, c.Super)
	}
	return append(parents, c.Interfaces...)
}

// register makes sure name and all its ancestors have nodes with their
// edges recorded.
func (r *Resolver) register(name, referrer string, visiting map[string]bool) error {
	r.mu.RLock()
	done := r.registered[name]
	r.mu.RUnlock()
	if done || visiting[name] {
		return nil
	}
	visiting[name] = true

	c, err := r.ResolveFrom(name, referrer)
	if err != nil {
		return err
	}
	parents := parentsOf(c)
	for _, p := range parents {
		if err := r.register(p, name, visiting); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	node := r.nodeLocked(name)
	for _, p := range parents {
		node.Parents[p] = struct{}{}
		r.nodeLocked(p).Subclasses[name] = struct{}{}
	}
	r.registered[name] = true
	return nil
}

func (r *Resolver) nodeLocked(name string) *Node {
	n, ok := r.nodes[name]
	if !ok {
		n = &Node{Name: name, Subclasses: make(map[string]struct{}), Parents: make(map[string]struct{})}
		r.nodes[name] = n
	}
	return n
}

// IndexAll registers every class under analysis, which makes descendant
// queries complete for the analyzed set.
func (r *Resolver) IndexAll() error {
	for _, c := range r.cp.Classes() {
		if err := r.register(c.Name, "", make(map[string]bool)); err != nil && !errors.Is(err, errs.ErrPruned) {
			return err
		}
	}
	return nil
}

// IsAssignableFrom reports whether a value of type sub can be stored in a
// location of type sup. Both are internal names or array descriptors.
func (r *Resolver) IsAssignableFrom(sup, sub string) (bool, error) {
	if sup == sub || sup == ir.ObjectClass {
		return true, nil
	}
	if ir.IsArray(sub) {
		if ir.IsArray(sup) {
			se, be := ir.ElementType(sup), ir.ElementType(sub)
			if ir.IsPrimitive(se) || ir.IsPrimitive(be) {
				return se == be, nil
			}
			return r.IsAssignableFrom(se, be)
		}
		return sup == "java/lang/Cloneable" || sup == "java/io/Serializable", nil
	}
	if ir.IsArray(sup) || ir.IsPrimitive(sup) || ir.IsPrimitive(sub) {
		return false, nil
	}

	if err := r.register(sub, "", make(map[string]bool)); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]bool{sup: true}
	queue := []string{sup}
	for len(queue) > 0 {
		n, ok := r.nodes[queue[0]]
		queue = queue[1:]
		if !ok {
			continue
		}
		for s := range n.Subclasses {
			if s == sub {
				return true, nil
			}
			if !seen[s] {
				seen[s] = true
				queue = append(queue, s)
			}
		}
	}
	return false, nil
}

// CommonSuperclass returns the most derived class both a and b are
// assignable to. It is the query a class writer issues while computing
// stack map frames and may run while other resolution is in progress.
func (r *Resolver) CommonSuperclass(a, b string) (string, error) {
	if ok, err := r.IsAssignableFrom(a, b); err != nil || ok {
		return a, err
	}
	if ok, err := r.IsAssignableFrom(b, a); err != nil || ok {
		return b, err
	}
	if ir.IsArray(a) || ir.IsArray(b) {
		return ir.ObjectClass, nil
	}

	ca, err := r.Resolve(a)
	if err != nil {
		return "", err
	}
	cb, err := r.Resolve(b)
	if err != nil {
		return "", err
	}
	if ca.IsInterface() || cb.IsInterface() {
		return ir.ObjectClass, nil
	}

	// Step each superclass chain in turn; the first ancestor of one side
	// that accepts the other side is the lowest common ancestor.
	x, y := ca, cb
	for x.Super != "" && y.Super != "" {
		if ok, err := r.IsAssignableFrom(x.Super, b); err != nil || ok {
			return x.Super, err
		}
		if ok, err := r.IsAssignableFrom(y.Super, a); err != nil || ok {
			return y.Super, err
		}
		if x, err = r.ResolveFrom(x.Super, x.Name); err != nil {
			return "", err
		}
		if y, err = r.ResolveFrom(y.Super, y.Name); err != nil {
			return "", err
		}
	}
	return ir.ObjectClass, nil
}

// Ancestors returns every superclass and superinterface of name, sorted.
func (r *Resolver) Ancestors(name string) ([]string, error) {
	if err := r.register(name, "", make(map[string]bool)); err != nil {
		return nil, err
	}
	return r.walk(name, func(n *Node) map[string]struct{} { return n.Parents }), nil
}

// Descendants returns every known subclass and implementor of name among
// the classes under analysis and loaded library classes, sorted.
func (r *Resolver) Descendants(name string) ([]string, error) {
	if err := r.IndexAll(); err != nil {
		return nil, err
	}
	return r.walk(name, func(n *Node) map[string]struct{} { return n.Subclasses }), nil
}

func (r *Resolver) walk(start string, edges func(*Node) map[string]struct{}) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]bool{start: true}
	queue := []string{start}
	var out []string
	for len(queue) > 0 {
		n, ok := r.nodes[queue[0]]
		queue = queue[1:]
		if !ok {
			continue
		}
		for next := range edges(n) {
			if !seen[next] {
				seen[next] = true
				out = append(out, next)
				queue = append(queue, next)
			}
		}
	}
	sort.Strings(out)
	return out
}
