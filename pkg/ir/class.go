// Package ir is the decoded class model shared by the reader, the
// hierarchy resolver and both interpreters.
//
// Instructions are identified by pointer. Branch targets and try-region
// bounds refer to instructions directly, so analyses can key maps by
// *Instruction across calls.
package ir

import "sync"

// Access flags
const (
	AccPublic    = 0x0001
	AccPrivate   = 0x0002
	AccProtected = 0x0004
	AccStatic    = 0x0008
	AccFinal     = 0x0010
	AccSuper     = 0x0020
	AccNative    = 0x0100
	AccInterface = 0x0200
	AccAbstract  = 0x0400
)

// ObjectClass is the universal supertype.
const ObjectClass = "java/lang/Object"

// ThrowableClass is the root of all exception types.
const ThrowableClass = "java/lang/Throwable"

// Class is a decoded class descriptor.
type Class struct {
	Name       string
	Super      string // "" only for java/lang/Object
	Interfaces []string
	Access     uint16
	Fields     []*Field
	Methods    []*Method
}

// IsInterface reports whether the class is an interface.
func (c *Class) IsInterface() bool {
	return c.Access&AccInterface != 0
}

// FindMethod finds a method by name and descriptor.
func (c *Class) FindMethod(name, desc string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc == desc {
			return m
		}
	}
	return nil
}

// FindField finds a field by name and descriptor.
func (c *Class) FindField(name, desc string) *Field {
	for _, f := range c.Fields {
		if f.Name == name && f.Desc == desc {
			return f
		}
	}
	return nil
}

// Field is a field declaration. Value holds the ConstantValue, if any.
type Field struct {
	Access uint16
	Name   string
	Desc   string
	Value  interface{}
}

// IsStatic reports whether the field is static.
func (f *Field) IsStatic() bool {
	return f.Access&AccStatic != 0
}

// Method is a method declaration with its linear instruction list.
type Method struct {
	Access       uint16
	Name         string
	Desc         string
	MaxLocals    int
	MaxStack     int
	Instructions []*Instruction
	TryRegions   []*TryRegion

	indexOnce sync.Once
	index     map[*Instruction]int
}

// IsStatic reports whether the method is static.
func (m *Method) IsStatic() bool {
	return m.Access&AccStatic != 0
}

// HasCode reports whether the method has a body to interpret.
func (m *Method) HasCode() bool {
	return m.Access&(AccAbstract|AccNative) == 0 && len(m.Instructions) > 0
}

// IndexOf returns the position of insn in the method, or -1.
// The index is built on first use; callers must not mutate Instructions
// afterwards without calling Reindex.
func (m *Method) IndexOf(insn *Instruction) int {
	if insn == nil {
		return -1
	}
	m.indexOnce.Do(m.buildIndex)
	if i, ok := m.index[insn]; ok {
		return i
	}
	return -1
}

// Reindex drops the cached instruction positions.
func (m *Method) Reindex() {
	m.indexOnce = sync.Once{}
	m.index = nil
}

func (m *Method) buildIndex() {
	m.index = make(map[*Instruction]int, len(m.Instructions))
	for i, insn := range m.Instructions {
		m.index[insn] = i
	}
}

// TryRegion is one exception table entry. End is exclusive; a nil End
// extends the region to the end of the method. An empty Type catches
// everything.
type TryRegion struct {
	Start   *Instruction
	End     *Instruction
	Handler *Instruction
	Type    string
}

// Covers reports whether the instruction at index i lies inside the region.
func (r *TryRegion) Covers(m *Method, i int) bool {
	start := m.IndexOf(r.Start)
	end := len(m.Instructions)
	if r.End != nil {
		end = m.IndexOf(r.End)
	}
	return start >= 0 && i >= start && i < end
}

// CatchType returns the declared type or java/lang/Throwable for catch-all.
func (r *TryRegion) CatchType() string {
	if r.Type == "" {
		return ThrowableClass
	}
	return r.Type
}
