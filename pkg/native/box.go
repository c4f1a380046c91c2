package native

import "github.com/daimatz/deobvm/pkg/value"

// Box is a boxed primitive such as java.lang.Integer.
type Box struct {
	Class string
	Value value.Value
}

// JavaClass implements value.Typed.
func (b *Box) JavaClass() string { return b.Class }

// boxDesc maps wrapper classes to the descriptor of the wrapped primitive.
var boxDesc = map[string]string{
	"java/lang/Integer":   "I",
	"java/lang/Long":      "J",
	"java/lang/Short":     "S",
	"java/lang/Byte":      "B",
	"java/lang/Character": "C",
	"java/lang/Boolean":   "Z",
	"java/lang/Float":     "F",
	"java/lang/Double":    "D",
}

// WrapperOf returns the wrapper class of a primitive descriptor, or "".
func WrapperOf(fdesc string) string {
	for class, d := range boxDesc {
		if d == fdesc {
			return class
		}
	}
	return ""
}

// PrimitiveOf returns the primitive descriptor wrapped by class, or "".
func PrimitiveOf(class string) string {
	return boxDesc[class]
}

// BoxCache implements the valueOf caches of the wrapper classes, so that
// small boxed values compare identical with == as they do on a real VM.
// One cache belongs to one session.
type BoxCache struct {
	boxes map[boxKey]*Box
}

// NewBoxCache creates an empty cache.
func NewBoxCache() *BoxCache {
	return &BoxCache{boxes: make(map[boxKey]*Box)}
}

func cacheable(class string, v value.Value) bool {
	switch class {
	case "java/lang/Integer", "java/lang/Short", "java/lang/Byte":
		return v.Int >= -128 && v.Int <= 127
	case "java/lang/Long":
		return v.Long >= -128 && v.Long <= 127
	case "java/lang/Character":
		return v.Int >= 0 && v.Int <= 127
	case "java/lang/Boolean":
		return true
	}
	return false
}

// ValueOf boxes v as class, reusing the cached box where the platform does.
func (c *BoxCache) ValueOf(class string, v value.Value) *Box {
	if !cacheable(class, v) {
		return &Box{Class: class, Value: v}
	}
	k := boxKey{class: class, v: v}
	if b, ok := c.boxes[k]; ok {
		return b
	}
	b := &Box{Class: class, Value: v}
	c.boxes[k] = b
	return b
}
