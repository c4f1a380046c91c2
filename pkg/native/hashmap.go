package native

import "github.com/daimatz/deobvm/pkg/value"

// HashMap represents a java.util.HashMap. Keys follow Java equality for
// strings, boxed primitives and class mirrors and identity for every other
// reference. Iteration order is insertion order.
type HashMap struct {
	index map[interface{}]int
	keys  []value.Value
	vals  []value.Value
}

// NewHashMap creates an empty map.
func NewHashMap() *HashMap {
	return &HashMap{index: make(map[interface{}]int)}
}

// JavaClass implements value.Typed.
func (m *HashMap) JavaClass() string { return "java/util/HashMap" }

type boxKey struct {
	class string
	v     value.Value
}

type classKey string

func mapKey(v value.Value) interface{} {
	if v.IsNull() {
		return nil
	}
	switch r := v.Ref.(type) {
	case string:
		return r
	case *value.JString:
		return r.S
	case *Box:
		return boxKey{class: r.Class, v: r.Value}
	case value.ClassRef:
		return classKey(r.Name)
	}
	return v.Ref
}

// Get returns the value for key, or null.
func (m *HashMap) Get(key value.Value) value.Value {
	if i, ok := m.index[mapKey(key)]; ok {
		return m.vals[i]
	}
	return value.NullValue()
}

// ContainsKey reports whether key is present.
func (m *HashMap) ContainsKey(key value.Value) bool {
	_, ok := m.index[mapKey(key)]
	return ok
}

// Put stores a key-value pair and returns the previous value, or null.
func (m *HashMap) Put(key, val value.Value) value.Value {
	k := mapKey(key)
	if i, ok := m.index[k]; ok {
		old := m.vals[i]
		m.vals[i] = val
		return old
	}
	m.index[k] = len(m.keys)
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, val)
	return value.NullValue()
}

// Remove deletes key and returns its value, or null.
func (m *HashMap) Remove(key value.Value) value.Value {
	k := mapKey(key)
	i, ok := m.index[k]
	if !ok {
		return value.NullValue()
	}
	old := m.vals[i]
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.vals = append(m.vals[:i], m.vals[i+1:]...)
	delete(m.index, k)
	for j := i; j < len(m.keys); j++ {
		m.index[mapKey(m.keys[j])] = j
	}
	return old
}

// Size returns the number of entries.
func (m *HashMap) Size() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *HashMap) Keys() []value.Value {
	return append([]value.Value(nil), m.keys...)
}
