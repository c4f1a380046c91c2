package ir

import "fmt"

// ApplyStackOp performs pop, pop2, dup*, and swap on stack. Wide values
// occupy a single entry; wide reports whether an entry is a long or double,
// which selects between the category-1 and category-2 forms of pop2 and
// the dup2 family. The returned slice may share storage with stack.
func ApplyStackOp[T any](op Opcode, stack []T, wide func(T) bool) ([]T, error) {
	n := len(stack)
	need := func(k int) error {
		if n < k {
			return fmt.Errorf("%s: stack underflow (depth %d)", op, n)
		}
		return nil
	}
	// top(1) is the top of stack.
	top := func(i int) T { return stack[n-i] }
	rebuild := func(drop int, vals ...T) []T {
		out := append([]T(nil), stack[:n-drop]...)
		return append(out, vals...)
	}

	switch op {
	case OpPop:
		if err := need(1); err != nil {
			return nil, err
		}
		return stack[:n-1], nil

	case OpPop2:
		if err := need(1); err != nil {
			return nil, err
		}
		if wide(top(1)) {
			return stack[:n-1], nil
		}
		if err := need(2); err != nil {
			return nil, err
		}
		return stack[:n-2], nil

	case OpDup:
		if err := need(1); err != nil {
			return nil, err
		}
		return rebuild(0, top(1)), nil

	case OpDupX1:
		if err := need(2); err != nil {
			return nil, err
		}
		v1, v2 := top(1), top(2)
		return rebuild(2, v1, v2, v1), nil

	case OpDupX2:
		if err := need(2); err != nil {
			return nil, err
		}
		v1, v2 := top(1), top(2)
		if wide(v2) {
			return rebuild(2, v1, v2, v1), nil
		}
		if err := need(3); err != nil {
			return nil, err
		}
		v3 := top(3)
		return rebuild(3, v1, v3, v2, v1), nil

	case OpDup2:
		if err := need(1); err != nil {
			return nil, err
		}
		v1 := top(1)
		if wide(v1) {
			return rebuild(0, v1), nil
		}
		if err := need(2); err != nil {
			return nil, err
		}
		v2 := top(2)
		return rebuild(0, v2, v1), nil

	case OpDup2X1:
		if err := need(2); err != nil {
			return nil, err
		}
		v1, v2 := top(1), top(2)
		if wide(v1) {
			return rebuild(2, v1, v2, v1), nil
		}
		if err := need(3); err != nil {
			return nil, err
		}
		v3 := top(3)
		return rebuild(3, v2, v1, v3, v2, v1), nil

	case OpDup2X2:
		if err := need(2); err != nil {
			return nil, err
		}
		v1, v2 := top(1), top(2)
		if wide(v1) {
			if wide(v2) {
				return rebuild(2, v1, v2, v1), nil
			}
			if err := need(3); err != nil {
				return nil, err
			}
			v3 := top(3)
			return rebuild(3, v1, v3, v2, v1), nil
		}
		if err := need(3); err != nil {
			return nil, err
		}
		v3 := top(3)
		if wide(v3) {
			return rebuild(3, v2, v1, v3, v2, v1), nil
		}
		if err := need(4); err != nil {
			return nil, err
		}
		v4 := top(4)
		return rebuild(4, v2, v1, v4, v3, v2, v1), nil

	case OpSwap:
		if err := need(2); err != nil {
			return nil, err
		}
		v1, v2 := top(1), top(2)
		return rebuild(2, v1, v2), nil
	}
	return nil, fmt.Errorf("%s is not a stack operation", op)
}

// IsStackOp reports whether op is handled by ApplyStackOp.
func (op Opcode) IsStackOp() bool {
	return op >= OpPop && op <= OpSwap
}
