package native

import "strings"

// StackTraceElement is one entry of an emulated stack trace.
type StackTraceElement struct {
	Class  string // internal name
	Method string
}

// JavaClass implements value.Typed.
func (e *StackTraceElement) JavaClass() string { return "java/lang/StackTraceElement" }

// ClassName returns the binary class name, as getClassName does.
func (e *StackTraceElement) ClassName() string {
	return strings.ReplaceAll(e.Class, "/", ".")
}

func (e *StackTraceElement) String() string {
	return e.ClassName() + "." + e.Method + "(Unknown Source)"
}

// Thread is the single emulated java.lang.Thread.
type Thread struct {
	Name string
}

// JavaClass implements value.Typed.
func (t *Thread) JavaClass() string { return "java/lang/Thread" }
