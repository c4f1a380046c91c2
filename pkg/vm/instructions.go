package vm

import (
	"fmt"

	"github.com/daimatz/deobvm/pkg/errs"
	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/provider"
	"github.com/daimatz/deobvm/pkg/value"
)

// executeInstruction executes a single instruction.
// Returns (returnValue, hasReturn, error).
func (v *VM) executeInstruction(ctx *provider.Context, frame *Frame, insn *ir.Instruction) (value.Value, bool, error) {
	op := insn.Op
	switch {
	case op == ir.OpNop:
		// do nothing

	// --- Constants ---
	case op == ir.OpAconstNull:
		frame.Push(value.NullValue())
	case op >= ir.OpIconstM1 && op <= ir.OpIconst5:
		frame.Push(value.IntValue(int32(op) - int32(ir.OpIconst0)))
	case op == ir.OpLconst0 || op == ir.OpLconst1:
		frame.Push(value.LongValue(int64(op - ir.OpLconst0)))
	case op >= ir.OpFconst0 && op <= ir.OpFconst2:
		frame.Push(value.FloatValue(float32(op - ir.OpFconst0)))
	case op == ir.OpDconst0 || op == ir.OpDconst1:
		frame.Push(value.DoubleValue(float64(op - ir.OpDconst0)))
	case op == ir.OpBipush || op == ir.OpSipush:
		frame.Push(value.IntValue(insn.Operand))
	case op == ir.OpLdc || op == ir.OpLdcW || op == ir.OpLdc2W:
		return value.Value{}, false, v.executeLdc(frame, insn)

	// --- Locals ---
	case op >= ir.OpIload && op <= ir.OpAload:
		frame.Push(frame.GetLocal(insn.Var))
	case op >= ir.OpIstore && op <= ir.OpAstore:
		frame.SetLocal(insn.Var, frame.PopAny())
	case op == ir.OpIinc:
		cur := frame.GetLocal(insn.Var)
		if cur.Kind != value.KindInt {
			return value.Value{}, false, fmt.Errorf("iinc: local %d holds %s", insn.Var, cur.Kind)
		}
		frame.SetLocal(insn.Var, value.IntValue(cur.Int+insn.Operand))

	// --- Arrays ---
	case op >= ir.OpIaload && op <= ir.OpSaload:
		index := frame.PopInt()
		arr, err := arrayOperand(ctx, op, frame.Pop())
		if err != nil {
			return value.Value{}, false, err
		}
		elem, err := element(ctx, arr, index)
		if err != nil {
			return value.Value{}, false, err
		}
		frame.Push(*elem)
	case op >= ir.OpIastore && op <= ir.OpSastore:
		val := frame.Pop()
		index := frame.PopInt()
		arr, err := arrayOperand(ctx, op, frame.Pop())
		if err != nil {
			return value.Value{}, false, err
		}
		elem, err := element(ctx, arr, index)
		if err != nil {
			return value.Value{}, false, err
		}
		*elem = narrowStore(arr.Type, val)
	case op == ir.OpArraylength:
		arr, err := arrayOperand(ctx, op, frame.Pop())
		if err != nil {
			return value.Value{}, false, err
		}
		frame.Push(value.IntValue(int32(len(arr.Elements))))
	case op == ir.OpNewarray:
		typ, err := ir.NewArrayType(insn.Operand)
		if err != nil {
			return value.Value{}, false, err
		}
		arr, err := newArray(ctx, typ, frame.PopInt())
		if err != nil {
			return value.Value{}, false, err
		}
		frame.Push(arr)
	case op == ir.OpAnewarray:
		arr, err := newArray(ctx, ir.ArrayOf(insn.Desc), frame.PopInt())
		if err != nil {
			return value.Value{}, false, err
		}
		frame.Push(arr)
	case op == ir.OpMultianewarray:
		dims := make([]int32, insn.Operand)
		for i := len(dims) - 1; i >= 0; i-- {
			dims[i] = frame.PopInt()
		}
		arr, err := multiNewArray(ctx, insn.Desc, dims)
		if err != nil {
			return value.Value{}, false, err
		}
		frame.Push(arr)

	// --- Stack manipulation ---
	case op.IsStackOp():
		out, err := ir.ApplyStackOp(op, frame.Stack, value.Value.IsWide)
		if err != nil {
			return value.Value{}, false, err
		}
		frame.Stack = out

	// --- Arithmetic, conversions and comparisons ---
	case op >= ir.OpIadd && op <= ir.OpDrem, op >= ir.OpIshl && op <= ir.OpLxor,
		op >= ir.OpLcmp && op <= ir.OpDcmpg:
		b := frame.Pop()
		a := frame.Pop()
		r, err := value.Binary(op, a, b)
		if err != nil {
			return value.Value{}, false, err
		}
		frame.Push(r)
	case op >= ir.OpIneg && op <= ir.OpDneg, op >= ir.OpI2l && op <= ir.OpI2s:
		r, err := value.Unary(op, frame.Pop())
		if err != nil {
			return value.Value{}, false, err
		}
		frame.Push(r)

	// --- Control flow ---
	case op >= ir.OpIfeq && op <= ir.OpIfle:
		return v.executeBranchUnary(frame, insn, frame.PopInt())
	case op >= ir.OpIfIcmpeq && op <= ir.OpIfIcmple:
		return v.executeBranchBinary(frame, insn)
	case op == ir.OpIfAcmpeq || op == ir.OpIfAcmpne:
		b := frame.Pop()
		a := frame.Pop()
		eq, err := v.chain.CheckEquality(ctx, a, b)
		if err != nil {
			return value.Value{}, false, err
		}
		return jump(frame, insn, eq == (op == ir.OpIfAcmpeq))
	case op == ir.OpIfnull || op == ir.OpIfnonnull:
		isNull := frame.Pop().IsNull()
		return jump(frame, insn, isNull == (op == ir.OpIfnull))
	case op == ir.OpGoto || op == ir.OpGotoW:
		return jump(frame, insn, true)
	case op == ir.OpTableswitch || op == ir.OpLookupswitch:
		key := frame.PopInt()
		return jumpTo(frame, insn, insn.SwitchTarget(key))
	case op.IsSubroutine():
		return value.Value{}, false, &errs.UnsupportedInstructionError{
			Op: op, Owner: frame.Class.Name, Method: frame.Method.Name + frame.Method.Desc, Index: frame.cur,
		}

	case op >= ir.OpIreturn && op <= ir.OpAreturn:
		return frame.Pop(), true, nil
	case op == ir.OpReturn:
		return value.Value{}, true, nil

	// --- Fields and calls ---
	case op == ir.OpGetstatic:
		return value.Value{}, false, v.executeGetstatic(ctx, frame, insn)
	case op == ir.OpPutstatic:
		return value.Value{}, false, v.executePutstatic(ctx, frame, insn)
	case op == ir.OpGetfield:
		return value.Value{}, false, v.executeGetfield(ctx, frame, insn)
	case op == ir.OpPutfield:
		return value.Value{}, false, v.executePutfield(ctx, frame, insn)
	case op >= ir.OpInvokevirtual && op <= ir.OpInvokedynamic:
		return value.Value{}, false, v.executeInvoke(ctx, frame, insn)
	case op == ir.OpNew:
		return value.Value{}, false, v.executeNew(ctx, frame, insn)

	// --- Exceptions, type checks and monitors ---
	case op == ir.OpAthrow:
		return value.Value{}, false, throwValue(ctx, frame.Pop())
	case op == ir.OpCheckcast:
		ref := frame.Pop()
		if !ref.IsNull() {
			ok, err := v.chain.CheckInstance(ctx, ref, insn.Desc)
			if err != nil {
				return value.Value{}, false, err
			}
			if !ok {
				return value.Value{}, false, ctx.Throw(excClassCast, classCastMessage(value.TypeOf(ref), insn.Desc))
			}
		}
		frame.Push(ref)
	case op == ir.OpInstanceof:
		ref := frame.Pop()
		ok := false
		if !ref.IsNull() {
			var err error
			if ok, err = v.chain.CheckInstance(ctx, ref, insn.Desc); err != nil {
				return value.Value{}, false, err
			}
		}
		frame.Push(value.BoolValue(ok))
	case op == ir.OpMonitorenter || op == ir.OpMonitorexit:
		if frame.Pop().IsNull() {
			return value.Value{}, false, ctx.NullPointer("Cannot enter synchronized block because value is null")
		}

	default:
		return value.Value{}, false, fmt.Errorf("unknown opcode: 0x%02X at #%d", uint8(op), frame.cur)
	}

	return value.Value{}, false, nil
}

// jump transfers control to insn's target when taken.
func jump(frame *Frame, insn *ir.Instruction, taken bool) (value.Value, bool, error) {
	if !taken {
		return value.Value{}, false, nil
	}
	return jumpTo(frame, insn, insn.Target)
}

func jumpTo(frame *Frame, insn *ir.Instruction, target *ir.Instruction) (value.Value, bool, error) {
	i := frame.Method.IndexOf(target)
	if i < 0 {
		return value.Value{}, false, fmt.Errorf("%s at #%d: branch target is not in %s%s", insn.Op, frame.cur, frame.Method.Name, frame.Method.Desc)
	}
	frame.PC = i
	return value.Value{}, false, nil
}

// executeBranchUnary handles unary branch instructions (ifeq, ifne, etc.)
func (v *VM) executeBranchUnary(frame *Frame, insn *ir.Instruction, val int32) (value.Value, bool, error) {
	var taken bool
	switch insn.Op {
	case ir.OpIfeq:
		taken = val == 0
	case ir.OpIfne:
		taken = val != 0
	case ir.OpIflt:
		taken = val < 0
	case ir.OpIfge:
		taken = val >= 0
	case ir.OpIfgt:
		taken = val > 0
	case ir.OpIfle:
		taken = val <= 0
	}
	return jump(frame, insn, taken)
}

// executeBranchBinary handles binary branch instructions (if_icmpeq, etc.)
func (v *VM) executeBranchBinary(frame *Frame, insn *ir.Instruction) (value.Value, bool, error) {
	v2 := frame.PopInt()
	v1 := frame.PopInt()
	var taken bool
	switch insn.Op {
	case ir.OpIfIcmpeq:
		taken = v1 == v2
	case ir.OpIfIcmpne:
		taken = v1 != v2
	case ir.OpIfIcmplt:
		taken = v1 < v2
	case ir.OpIfIcmpge:
		taken = v1 >= v2
	case ir.OpIfIcmpgt:
		taken = v1 > v2
	case ir.OpIfIcmple:
		taken = v1 <= v2
	}
	return jump(frame, insn, taken)
}
