package native

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/value"
)

// PrintStream represents a java.io.PrintStream such as System.out.
type PrintStream struct {
	Writer io.Writer
}

// JavaClass implements value.Typed.
func (ps *PrintStream) JavaClass() string { return "java/io/PrintStream" }

// Print writes s without a line terminator.
func (ps *PrintStream) Print(s string) {
	io.WriteString(ps.Writer, s)
}

// Println writes s followed by a newline.
func (ps *PrintStream) Println(s string) {
	io.WriteString(ps.Writer, s+"\n")
}

// Format renders v the way String.valueOf does for a value of field
// descriptor fdesc. Sub-int descriptors matter: an int slot is printed as
// a char for "C" and as a boolean for "Z".
func Format(v value.Value, fdesc string) string {
	switch v.Kind {
	case value.KindInt:
		switch fdesc {
		case "C":
			return ir.StringFromUTF16([]uint16{uint16(v.Int)})
		case "Z":
			return strconv.FormatBool(v.Int != 0)
		}
		return strconv.FormatInt(int64(v.Int), 10)
	case value.KindLong:
		return strconv.FormatInt(v.Long, 10)
	case value.KindFloat:
		return FormatFloat(float64(v.Float), 32)
	case value.KindDouble:
		return FormatFloat(v.Double, 64)
	case value.KindNull:
		return "null"
	}
	switch r := v.Ref.(type) {
	case string:
		return r
	case *value.JString:
		return r.S
	case *Box:
		return Format(r.Value, PrimitiveOf(r.Class))
	case *StringBuilder:
		return r.String()
	case value.ClassRef:
		if IsPrimitiveName(r.Name) {
			return r.Name
		}
		return "class " + strings.ReplaceAll(r.Name, "/", ".")
	case *StackTraceElement:
		return r.String()
	}
	return v.String()
}

// FormatFloat follows Float.toString and Double.toString: plain notation
// with at least one fractional digit in [1e-3, 1e7), computerized
// scientific notation outside it.
func FormatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}
	if abs := math.Abs(f); abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(f, 'f', -1, bits)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, bits), "e")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	n, _ := strconv.Atoi(exp)
	return mant + "E" + strconv.Itoa(n)
}

// primitiveNames are the names of the primitive class mirrors.
var primitiveNames = map[string]string{
	"boolean": "Z", "byte": "B", "char": "C", "short": "S",
	"int": "I", "long": "J", "float": "F", "double": "D", "void": "V",
}

// IsPrimitiveName reports whether name is a primitive mirror such as "int".
func IsPrimitiveName(name string) bool {
	_, ok := primitiveNames[name]
	return ok
}

// PrimitiveName returns the mirror name of a primitive descriptor.
func PrimitiveName(fdesc string) string {
	for name, d := range primitiveNames {
		if d == fdesc {
			return name
		}
	}
	return ""
}
