// Package errs defines the failure taxonomy shared by the resolver and both
// interpreters. Every error is a distinct type so callers can classify with
// errors.As and decide whether to abort, skip or log.
package errs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/value"
)

// ErrPruned is wrapped by resolution failures under the prune policy: the
// referring class was removed from the analyzed set instead of failing.
var ErrPruned = errors.New("class pruned")

// MissingClassError reports a class that no loader could supply.
type MissingClassError struct {
	Name     string
	Referrer string
	Err      error
}

func (e *MissingClassError) Error() string {
	msg := "missing class " + e.Name
	if e.Referrer != "" {
		msg += " (referenced by " + e.Referrer + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MissingClassError) Unwrap() error { return e.Err }

// UnsupportedInstructionError reports an opcode the interpreters refuse to
// model, such as jsr and ret.
type UnsupportedInstructionError struct {
	Op     ir.Opcode
	Owner  string
	Method string
	Index  int
}

func (e *UnsupportedInstructionError) Error() string {
	return fmt.Sprintf("unsupported instruction %s at %s.%s #%d", e.Op, e.Owner, e.Method, e.Index)
}

// AnalysisTooDeepError reports that a depth or step budget was exhausted.
type AnalysisTooDeepError struct {
	Owner  string
	Method string
	Limit  int
}

func (e *AnalysisTooDeepError) Error() string {
	return fmt.Sprintf("analysis too deep in %s.%s: limit %d exceeded", e.Owner, e.Method, e.Limit)
}

// NoProviderError reports an operation no registered provider claimed.
type NoProviderError struct {
	Op    string
	Owner string
	Name  string
	Desc  string
}

func (e *NoProviderError) Error() string {
	return fmt.Sprintf("no provider for %s %s.%s %s", e.Op, e.Owner, e.Name, e.Desc)
}

// UninitializedValueMisuseError reports a pending new result used before
// its constructor ran.
type UninitializedValueMisuseError struct {
	Type  string
	Op    ir.Opcode
	Owner string
	Index int
}

func (e *UninitializedValueMisuseError) Error() string {
	return fmt.Sprintf("uninitialized %s used by %s at %s #%d", e.Type, e.Op, e.Owner, e.Index)
}

// GuestExecutionError carries a value thrown by the simulated code itself.
// Trace holds the emulated call stack at the throw site, innermost first.
type GuestExecutionError struct {
	Thrown value.Value
	Trace  []string
}

func (e *GuestExecutionError) Error() string {
	msg := "guest exception " + e.ClassName()
	if obj, ok := e.Thrown.Ref.(*value.JObject); ok {
		if m, ok := value.AsString(obj.Fields["detailMessage"]); ok {
			msg += ": " + m
		}
	}
	if len(e.Trace) > 0 {
		msg += " at " + strings.Join(e.Trace, " <- ")
	}
	return msg
}

// ClassName returns the runtime class of the thrown value.
func (e *GuestExecutionError) ClassName() string {
	return value.TypeOf(e.Thrown)
}

// Throw builds a GuestExecutionError for a new exception of class.
func Throw(class, message string) *GuestExecutionError {
	return &GuestExecutionError{Thrown: value.NewThrowable(class, message)}
}
