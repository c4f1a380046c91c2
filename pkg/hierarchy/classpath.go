package hierarchy

import (
	"sort"
	"sync"

	"github.com/daimatz/deobvm/pkg/errs"
	"github.com/daimatz/deobvm/pkg/ir"
)

// ClassPath partitions class lookups into classes under analysis, which
// callers may mutate, and library classes, which are loaded lazily and
// treated as read-only.
//
// Population is guarded by a lock; the loader itself runs unlocked so a
// loader may re-enter the class path.
type ClassPath struct {
	mu       sync.RWMutex
	analyzed map[string]*ir.Class
	library  map[string]*ir.Class
	removed  map[string]bool
	loader   Loader
}

// NewClassPath creates a class path over the given analyzed classes. A nil
// loader means no library classes are available.
func NewClassPath(loader Loader, classes ...*ir.Class) *ClassPath {
	cp := &ClassPath{
		analyzed: make(map[string]*ir.Class, len(classes)),
		library:  make(map[string]*ir.Class),
		removed:  make(map[string]bool),
		loader:   loader,
	}
	for _, c := range classes {
		cp.analyzed[c.Name] = c
	}
	return cp
}

// Add puts a class under analysis.
func (cp *ClassPath) Add(c *ir.Class) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.analyzed[c.Name] = c
	delete(cp.removed, c.Name)
}

// Remove takes a class out of the analyzed set and records it as removed.
func (cp *ClassPath) Remove(name string) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if _, ok := cp.analyzed[name]; ok {
		delete(cp.analyzed, name)
		cp.removed[name] = true
	}
}

// Analyzed returns a class under analysis.
func (cp *ClassPath) Analyzed(name string) (*ir.Class, bool) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	c, ok := cp.analyzed[name]
	return c, ok
}

// IsAnalyzed reports whether name is under analysis.
func (cp *ClassPath) IsAnalyzed(name string) bool {
	_, ok := cp.Analyzed(name)
	return ok
}

// Classes returns the analyzed classes sorted by name.
func (cp *ClassPath) Classes() []*ir.Class {
	cp.mu.RLock()
	out := make([]*ir.Class, 0, len(cp.analyzed))
	for _, c := range cp.analyzed {
		out = append(out, c)
	}
	cp.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Removed returns the names pruned from the analyzed set, sorted.
func (cp *ClassPath) Removed() []string {
	cp.mu.RLock()
	out := make([]string, 0, len(cp.removed))
	for name := range cp.removed {
		out = append(out, name)
	}
	cp.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Lookup finds a class under analysis or loads it from the library.
func (cp *ClassPath) Lookup(name string) (*ir.Class, error) {
	cp.mu.RLock()
	if c, ok := cp.analyzed[name]; ok {
		cp.mu.RUnlock()
		return c, nil
	}
	if c, ok := cp.library[name]; ok {
		cp.mu.RUnlock()
		return c, nil
	}
	cp.mu.RUnlock()

	if cp.loader == nil {
		return nil, &errs.MissingClassError{Name: name}
	}
	c, err := cp.loader.LoadClass(name)
	if err != nil {
		return nil, &errs.MissingClassError{Name: name, Err: err}
	}

	cp.mu.Lock()
	defer cp.mu.Unlock()
	if existing, ok := cp.library[name]; ok {
		return existing, nil
	}
	cp.library[name] = c
	return c, nil
}

// Reset drops the library cache and restores nothing that was removed.
func (cp *ClassPath) Reset() {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.library = make(map[string]*ir.Class)
}
