package provider

import (
	"context"

	"github.com/daimatz/deobvm/pkg/errs"
	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/native"
	"github.com/daimatz/deobvm/pkg/session"
	"github.com/daimatz/deobvm/pkg/value"
)

// StackEntry is one emulated call stack entry.
type StackEntry struct {
	Class  string
	Method string
	Desc   string
}

// Context is the state of one top-level execution: the emulated call
// stack, the chain and the session. It is not safe for concurrent use.
type Context struct {
	Ctx     context.Context
	Session *session.Session
	Chain   *Chain

	stack    []StackEntry
	maxDepth int
}

// NewContext creates a context with an empty call stack.
func NewContext(ctx context.Context, s *session.Session, chain *Chain) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{
		Ctx:      ctx,
		Session:  s,
		Chain:    chain,
		maxDepth: s.Config.Execution.MaxCallDepth,
	}
}

// Enter pushes a call stack entry. Exceeding the configured call depth
// fails with AnalysisTooDeepError.
func (c *Context) Enter(class, method, desc string) error {
	if c.maxDepth > 0 && len(c.stack) >= c.maxDepth {
		return &errs.AnalysisTooDeepError{Owner: class, Method: method + desc, Limit: c.maxDepth}
	}
	c.stack = append(c.stack, StackEntry{Class: class, Method: method, Desc: desc})
	return nil
}

// Leave pops the innermost entry.
func (c *Context) Leave() {
	if len(c.stack) > 0 {
		c.stack = c.stack[:len(c.stack)-1]
	}
}

// Depth returns the number of active calls.
func (c *Context) Depth() int {
	return len(c.stack)
}

// Stack returns the call stack, innermost first.
func (c *Context) Stack() []StackEntry {
	out := make([]StackEntry, len(c.stack))
	for i, e := range c.stack {
		out[len(c.stack)-1-i] = e
	}
	return out
}

// Trace renders the call stack as "owner.name" strings, innermost first.
func (c *Context) Trace() []string {
	stack := c.Stack()
	out := make([]string, len(stack))
	for i, e := range stack {
		out[i] = e.Class + "." + e.Method
	}
	return out
}

// StackTrace builds the elements returned by getStackTrace, innermost
// first.
func (c *Context) StackTrace() []*native.StackTraceElement {
	stack := c.Stack()
	out := make([]*native.StackTraceElement, len(stack))
	for i, e := range stack {
		out[i] = &native.StackTraceElement{Class: e.Class, Method: e.Method}
	}
	return out
}

// Throw creates a guest exception of class carrying the current stack.
func (c *Context) Throw(class, message string) *errs.GuestExecutionError {
	thrown := value.NewThrowable(class, message)
	obj := thrown.Ref.(*value.JObject)
	obj.Fields[fieldStackTrace] = traceArray(c.StackTrace())
	return &errs.GuestExecutionError{Thrown: thrown, Trace: c.Trace()}
}

// ThrowCaused is Throw with cause recorded for getCause.
func (c *Context) ThrowCaused(class, message string, cause value.Value) *errs.GuestExecutionError {
	g := c.Throw(class, message)
	g.Thrown.Ref.(*value.JObject).Fields[fieldCause] = cause
	return g
}

// NullPointer is Throw for java/lang/NullPointerException.
func (c *Context) NullPointer(what string) *errs.GuestExecutionError {
	return c.Throw("java/lang/NullPointerException", what)
}

func traceArray(elems []*native.StackTraceElement) value.Value {
	arr := value.NewArray(ir.ArrayOf("java/lang/StackTraceElement"), len(elems))
	for i, e := range elems {
		arr.Elements[i] = value.RefValue(e)
	}
	return value.RefValue(arr)
}
