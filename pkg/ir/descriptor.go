package ir

import (
	"fmt"
	"strings"
)

// ArgumentTypes splits a method descriptor into its parameter field
// descriptors.
func ArgumentTypes(desc string) ([]string, error) {
	start := strings.IndexByte(desc, '(')
	end := strings.IndexByte(desc, ')')
	if start != 0 || end == -1 {
		return nil, fmt.Errorf("invalid method descriptor: %s", desc)
	}

	params := desc[start+1 : end]
	var out []string
	i := 0
	for i < len(params) {
		j := i
		for j < len(params) && params[j] == '[' {
			j++
		}
		if j >= len(params) {
			return nil, fmt.Errorf("invalid method descriptor: %s", desc)
		}
		switch params[j] {
		case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
			j++
		case 'L':
			semi := strings.IndexByte(params[j:], ';')
			if semi == -1 {
				return nil, fmt.Errorf("unterminated class type in %s", desc)
			}
			j += semi + 1
		default:
			return nil, fmt.Errorf("invalid type descriptor char '%c' in %s", params[j], desc)
		}
		out = append(out, params[i:j])
		i = j
	}
	return out, nil
}

// ReturnType returns the return field descriptor of a method descriptor.
func ReturnType(desc string) string {
	end := strings.IndexByte(desc, ')')
	if end == -1 {
		return ""
	}
	return desc[end+1:]
}

// IsVoidReturn checks if a method descriptor has void return type.
func IsVoidReturn(desc string) bool {
	return strings.HasSuffix(desc, ")V")
}

// TypeSize returns the number of slots a field descriptor occupies.
func TypeSize(fdesc string) int {
	switch fdesc {
	case "V", "":
		return 0
	case "J", "D":
		return 2
	}
	return 1
}

// InternalName converts a field descriptor to the name used for class
// lookups: "Ljava/lang/String;" becomes "java/lang/String"; arrays and
// primitives are returned unchanged.
func InternalName(fdesc string) string {
	if strings.HasPrefix(fdesc, "L") && strings.HasSuffix(fdesc, ";") {
		return fdesc[1 : len(fdesc)-1]
	}
	return fdesc
}

// Descriptor converts an internal name back to a field descriptor.
// Single-letter primitive descriptors are returned unchanged, so a class
// literally named "I" cannot be expressed here.
func Descriptor(name string) string {
	if strings.HasPrefix(name, "[") || IsPrimitive(name) {
		return name
	}
	return "L" + name + ";"
}

// IsArray reports whether the name or descriptor denotes an array.
func IsArray(name string) bool {
	return strings.HasPrefix(name, "[")
}

// ElementType strips one array dimension: "[[I" becomes "[I" and
// "[Ljava/lang/String;" becomes "java/lang/String".
func ElementType(arr string) string {
	if !IsArray(arr) {
		return ""
	}
	return InternalName(arr[1:])
}

// ArrayOf returns the array type whose elements have the given internal
// name or primitive descriptor.
func ArrayOf(elem string) string {
	return "[" + Descriptor(elem)
}

// NewArrayType returns the array descriptor created by newarray atype.
func NewArrayType(atype int32) (string, error) {
	switch atype {
	case TBoolean:
		return "[Z", nil
	case TChar:
		return "[C", nil
	case TFloat:
		return "[F", nil
	case TDouble:
		return "[D", nil
	case TByte:
		return "[B", nil
	case TShort:
		return "[S", nil
	case TInt:
		return "[I", nil
	case TLong:
		return "[J", nil
	}
	return "", fmt.Errorf("newarray: invalid atype %d", atype)
}

// IsPrimitive reports whether the descriptor is a primitive type.
func IsPrimitive(fdesc string) bool {
	return len(fdesc) == 1 && strings.Contains("BCDFIJSZ", fdesc)
}
