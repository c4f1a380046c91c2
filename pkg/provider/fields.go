package provider

import (
	"github.com/daimatz/deobvm/pkg/hierarchy"
	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/value"
)

// FieldStore keeps static fields of analyzed classes and instance fields
// of emulated objects. Unwritten statics start at their ConstantValue or
// the type's default.
//
// Fields are keyed by declaring class, name and descriptor: class files may
// declare several fields with one name and different types, and a subclass
// field hides, not replaces, a superclass field of the same name.
type FieldStore struct {
	classes *hierarchy.ClassPath
	statics map[string]value.Value
}

// NewFieldStore creates a store for the classes under analysis.
func NewFieldStore(classes *hierarchy.ClassPath) *FieldStore {
	return &FieldStore{classes: classes, statics: make(map[string]value.Value)}
}

// declaring finds the analyzed class that declares a field, searching
// superclasses and superinterfaces of owner.
func (s *FieldStore) declaring(owner, name, desc string) (*ir.Class, *ir.Field) {
	seen := make(map[string]bool)
	queue := []string{owner}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen[n] {
			continue
		}
		seen[n] = true
		c, ok := s.classes.Analyzed(n)
		if !ok {
			continue
		}
		if f := c.FindField(name, desc); f != nil {
			return c, f
		}
		queue = append(queue, c.Interfaces...)
		if c.Super != "" {
			queue = append(queue, c.Super)
		}
	}
	return nil, nil
}

func fieldKey(owner, name, desc string) string {
	return owner + "." + name + ":" + desc
}

// key returns the storage key of a field reference.
func (s *FieldStore) key(ref FieldRef) string {
	if c, _ := s.declaring(ref.Owner, ref.Name, ref.Desc); c != nil {
		return fieldKey(c.Name, ref.Name, ref.Desc)
	}
	return fieldKey(ref.Owner, ref.Name, ref.Desc)
}

// Get returns a static field value.
func (s *FieldStore) Get(owner, name, desc string) value.Value {
	k := s.key(FieldRef{Owner: owner, Name: name, Desc: desc})
	if v, ok := s.statics[k]; ok {
		return v
	}
	if _, f := s.declaring(owner, name, desc); f != nil && f.Value != nil {
		if v, err := value.FromConstant(f.Value); err == nil {
			return v
		}
	}
	return value.Zero(desc)
}

// Set stores a static field value. Passes use it to seed statics that a
// decryptor reads without running the owner's initializer.
func (s *FieldStore) Set(owner, name, desc string, v value.Value) {
	s.statics[s.key(FieldRef{Owner: owner, Name: name, Desc: desc})] = v
}

func (s *FieldStore) claims(ref FieldRef, obj value.Value) bool {
	if ref.Static {
		if _, ok := s.statics[s.key(ref)]; ok {
			return true
		}
		c, _ := s.declaring(ref.Owner, ref.Name, ref.Desc)
		return c != nil
	}
	_, ok := obj.Ref.(*value.JObject)
	return ok
}

// CanGetField implements FieldProvider.
func (s *FieldStore) CanGetField(ctx *Context, ref FieldRef, obj value.Value) bool {
	return s.claims(ref, obj)
}

// GetField implements FieldProvider.
func (s *FieldStore) GetField(ctx *Context, ref FieldRef, obj value.Value) (value.Value, error) {
	if ref.Static {
		return s.Get(ref.Owner, ref.Name, ref.Desc), nil
	}
	if v, ok := obj.Ref.(*value.JObject).Fields[s.key(ref)]; ok {
		return v, nil
	}
	return value.Zero(ref.Desc), nil
}

// CanPutField implements FieldProvider.
func (s *FieldStore) CanPutField(ctx *Context, ref FieldRef, obj, v value.Value) bool {
	return s.claims(ref, obj)
}

// PutField implements FieldProvider.
func (s *FieldStore) PutField(ctx *Context, ref FieldRef, obj, v value.Value) error {
	if ref.Static {
		s.Set(ref.Owner, ref.Name, ref.Desc, v)
		return nil
	}
	obj.Ref.(*value.JObject).Fields[s.key(ref)] = v
	return nil
}
