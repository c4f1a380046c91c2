package vm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/daimatz/deobvm/pkg/errs"
	"github.com/daimatz/deobvm/pkg/provider"
	"github.com/daimatz/deobvm/pkg/value"
)

// Runtime exception classes raised by the interpreter itself.
const (
	excArithmetic   = "java/lang/ArithmeticException"
	excArrayIndex   = "java/lang/ArrayIndexOutOfBoundsException"
	excNegativeSize = "java/lang/NegativeArraySizeException"
	excClassCast    = "java/lang/ClassCastException"
	excError        = "java/lang/Error"
	excInitializer  = "java/lang/ExceptionInInitializerError"
	excNoClassDef   = "java/lang/NoClassDefFoundError"
)

// guestError turns interpreter failures that Java reports as exceptions
// into guest exceptions. Other errors pass through unchanged.
func guestError(ctx *provider.Context, err error) error {
	if errors.Is(err, value.ErrDivideByZero) {
		return ctx.Throw(excArithmetic, "/ by zero")
	}
	return err
}

// throwValue builds the error for athrow.
func throwValue(ctx *provider.Context, thrown value.Value) error {
	if thrown.IsNull() {
		return ctx.NullPointer("Cannot throw exception because value is null")
	}
	if thrown.Kind != value.KindRef {
		return fmt.Errorf("athrow: %s is not a reference", thrown.Kind)
	}
	return &errs.GuestExecutionError{Thrown: thrown, Trace: ctx.Trace()}
}

// findHandler returns the index of the first handler in f's method that
// covers the current instruction and accepts thrown, or -1.
func (v *VM) findHandler(f *Frame, thrown value.Value) (int, error) {
	m := f.Method
	typ := value.TypeOf(thrown)
	for _, r := range m.TryRegions {
		if !r.Covers(m, f.cur) {
			continue
		}
		if r.Type != "" {
			ok, err := v.session.Resolver.IsAssignableFrom(r.Type, typ)
			if err != nil {
				return -1, fmt.Errorf("handler search in %s.%s%s: %w", f.Class.Name, m.Name, m.Desc, err)
			}
			if !ok {
				continue
			}
		}
		if h := m.IndexOf(r.Handler); h >= 0 {
			return h, nil
		}
	}
	return -1, nil
}

func dotted(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}

func classCastMessage(from, to string) string {
	return fmt.Sprintf("class %s cannot be cast to class %s", dotted(from), dotted(to))
}

func indexMessage(index int32, length int) string {
	return fmt.Sprintf("Index %d out of bounds for length %d", index, length)
}

// isGuest reports whether err carries a guest exception.
func isGuest(err error) (*errs.GuestExecutionError, bool) {
	var g *errs.GuestExecutionError
	ok := errors.As(err, &g)
	return g, ok
}
