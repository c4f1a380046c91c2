package hierarchy

import "github.com/daimatz/deobvm/pkg/ir"

type stub struct {
	name, super string
	access      uint16
	interfaces  []string
}

const (
	iface  = ir.AccPublic | ir.AccInterface | ir.AccAbstract
	public = ir.AccPublic
)

// platformStubs is the part of the platform hierarchy the interpreters
// touch without a JDK on the library path: exception types raised by
// bytecode semantics and the classes the platform provider emulates.
var platformStubs = []stub{
	{"java/lang/Object", "", public, nil},
	{"java/io/Serializable", ir.ObjectClass, iface, nil},
	{"java/lang/Cloneable", ir.ObjectClass, iface, nil},
	{"java/lang/Comparable", ir.ObjectClass, iface, nil},
	{"java/lang/CharSequence", ir.ObjectClass, iface, nil},
	{"java/lang/Appendable", ir.ObjectClass, iface, nil},
	{"java/lang/Runnable", ir.ObjectClass, iface, nil},
	{"java/lang/Iterable", ir.ObjectClass, iface, nil},
	{"java/util/Collection", ir.ObjectClass, iface, []string{"java/lang/Iterable"}},
	{"java/util/Map", ir.ObjectClass, iface, nil},

	{"java/lang/Throwable", ir.ObjectClass, public, []string{"java/io/Serializable"}},
	{"java/lang/Exception", "java/lang/Throwable", public, nil},
	{"java/lang/Error", "java/lang/Throwable", public, nil},
	{"java/lang/RuntimeException", "java/lang/Exception", public, nil},
	{"java/lang/ReflectiveOperationException", "java/lang/Exception", public, nil},
	{"java/lang/ClassNotFoundException", "java/lang/ReflectiveOperationException", public, nil},
	{"java/lang/NoSuchMethodException", "java/lang/ReflectiveOperationException", public, nil},
	{"java/lang/NoSuchFieldException", "java/lang/ReflectiveOperationException", public, nil},
	{"java/lang/ArithmeticException", "java/lang/RuntimeException", public, nil},
	{"java/lang/NullPointerException", "java/lang/RuntimeException", public, nil},
	{"java/lang/ClassCastException", "java/lang/RuntimeException", public, nil},
	{"java/lang/ArrayStoreException", "java/lang/RuntimeException", public, nil},
	{"java/lang/NegativeArraySizeException", "java/lang/RuntimeException", public, nil},
	{"java/lang/IllegalArgumentException", "java/lang/RuntimeException", public, nil},
	{"java/lang/NumberFormatException", "java/lang/IllegalArgumentException", public, nil},
	{"java/lang/IllegalStateException", "java/lang/RuntimeException", public, nil},
	{"java/lang/IllegalMonitorStateException", "java/lang/RuntimeException", public, nil},
	{"java/lang/UnsupportedOperationException", "java/lang/RuntimeException", public, nil},
	{"java/lang/IndexOutOfBoundsException", "java/lang/RuntimeException", public, nil},
	{"java/lang/ArrayIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException", public, nil},
	{"java/lang/StringIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException", public, nil},
	{"java/lang/VirtualMachineError", "java/lang/Error", public, nil},
	{"java/lang/StackOverflowError", "java/lang/VirtualMachineError", public, nil},
	{"java/lang/LinkageError", "java/lang/Error", public, nil},
	{"java/lang/ExceptionInInitializerError", "java/lang/LinkageError", public, nil},
	{"java/lang/NoClassDefFoundError", "java/lang/LinkageError", public, nil},

	{"java/lang/String", ir.ObjectClass, public | ir.AccFinal, []string{"java/io/Serializable", "java/lang/Comparable", "java/lang/CharSequence"}},
	{"java/lang/AbstractStringBuilder", ir.ObjectClass, ir.AccAbstract, []string{"java/lang/Appendable", "java/lang/CharSequence"}},
	{"java/lang/StringBuilder", "java/lang/AbstractStringBuilder", public | ir.AccFinal, []string{"java/io/Serializable", "java/lang/CharSequence"}},
	{"java/lang/StringBuffer", "java/lang/AbstractStringBuilder", public | ir.AccFinal, []string{"java/io/Serializable", "java/lang/CharSequence"}},
	{"java/lang/Number", ir.ObjectClass, public | ir.AccAbstract, []string{"java/io/Serializable"}},
	{"java/lang/Integer", "java/lang/Number", public | ir.AccFinal, []string{"java/lang/Comparable"}},
	{"java/lang/Long", "java/lang/Number", public | ir.AccFinal, []string{"java/lang/Comparable"}},
	{"java/lang/Short", "java/lang/Number", public | ir.AccFinal, []string{"java/lang/Comparable"}},
	{"java/lang/Byte", "java/lang/Number", public | ir.AccFinal, []string{"java/lang/Comparable"}},
	{"java/lang/Float", "java/lang/Number", public | ir.AccFinal, []string{"java/lang/Comparable"}},
	{"java/lang/Double", "java/lang/Number", public | ir.AccFinal, []string{"java/lang/Comparable"}},
	{"java/lang/Character", ir.ObjectClass, public | ir.AccFinal, []string{"java/io/Serializable", "java/lang/Comparable"}},
	{"java/lang/Boolean", ir.ObjectClass, public | ir.AccFinal, []string{"java/io/Serializable", "java/lang/Comparable"}},
	{"java/lang/Void", ir.ObjectClass, public | ir.AccFinal, nil},
	{"java/lang/Enum", ir.ObjectClass, public | ir.AccAbstract, []string{"java/lang/Comparable", "java/io/Serializable"}},
	{"java/lang/Class", ir.ObjectClass, public | ir.AccFinal, []string{"java/io/Serializable"}},
	{"java/lang/Math", ir.ObjectClass, public | ir.AccFinal, nil},
	{"java/lang/System", ir.ObjectClass, public | ir.AccFinal, nil},
	{"java/lang/Thread", ir.ObjectClass, public, []string{"java/lang/Runnable"}},
	{"java/lang/StackTraceElement", ir.ObjectClass, public | ir.AccFinal, []string{"java/io/Serializable"}},
	{"java/util/AbstractMap", ir.ObjectClass, public | ir.AccAbstract, []string{"java/util/Map"}},
	{"java/util/HashMap", "java/util/AbstractMap", public, []string{"java/util/Map", "java/lang/Cloneable", "java/io/Serializable"}},
	{"java/io/OutputStream", ir.ObjectClass, public | ir.AccAbstract, nil},
	{"java/io/FilterOutputStream", "java/io/OutputStream", public, nil},
	{"java/io/PrintStream", "java/io/FilterOutputStream", public, []string{"java/lang/Appendable"}},
}

// BuiltinLoader serves method-less descriptors for common platform
// classes. It is meant as the last loader in a chain.
func BuiltinLoader() MapLoader {
	m := make(MapLoader, len(platformStubs))
	for _, s := range platformStubs {
		m[s.name] = &ir.Class{
			Name:       s.name,
			Super:      s.super,
			Access:     s.access,
			Interfaces: s.interfaces,
		}
	}
	return m
}
