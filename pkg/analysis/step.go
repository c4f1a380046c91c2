package analysis

import (
	"fmt"

	"github.com/daimatz/deobvm/pkg/frame"
	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/value"
)

// opKind gives the operand kind of typed instruction families laid out
// in I, L, F, D order.
var opKind = [4]value.Kind{value.KindInt, value.KindLong, value.KindFloat, value.KindDouble}

// convertResult is the result kind of each conversion opcode.
var convertResult = map[ir.Opcode]value.Kind{
	ir.OpI2l: value.KindLong, ir.OpI2f: value.KindFloat, ir.OpI2d: value.KindDouble,
	ir.OpL2i: value.KindInt, ir.OpL2f: value.KindFloat, ir.OpL2d: value.KindDouble,
	ir.OpF2i: value.KindInt, ir.OpF2l: value.KindLong, ir.OpF2d: value.KindDouble,
	ir.OpD2i: value.KindInt, ir.OpD2l: value.KindLong, ir.OpD2f: value.KindFloat,
	ir.OpI2b: value.KindInt, ir.OpI2c: value.KindInt, ir.OpI2s: value.KindInt,
}

// arrayElem is the pushed kind of each primitive array load.
var arrayElem = map[ir.Opcode]value.Kind{
	ir.OpIaload: value.KindInt, ir.OpLaload: value.KindLong, ir.OpFaload: value.KindFloat,
	ir.OpDaload: value.KindDouble, ir.OpBaload: value.KindInt, ir.OpCaload: value.KindInt,
	ir.OpSaload: value.KindInt,
}

// stepper simulates one instruction on a copy of the incoming state and
// fills in the frame recorded for it.
type stepper struct {
	in    *interp
	index int
	insn  *ir.Instruction
	f     *frame.Frame
	id    frame.ID
	st    *state
}

func (s *stepper) fail(format string, args ...interface{}) error {
	m := s.in.method
	return fmt.Errorf("analysis of %s.%s%s #%d %s: %s",
		s.in.class.Name, m.Name, m.Desc, s.index, s.insn.Op, fmt.Sprintf(format, args...))
}

// pop removes n values and records them as operands, deepest first.
func (s *stepper) pop(n int) ([]frame.Value, error) {
	if len(s.st.stack) < n {
		return nil, s.fail("stack underflow: need %d, have %d", n, len(s.st.stack))
	}
	vals := append([]frame.Value(nil), s.st.stack[len(s.st.stack)-n:]...)
	s.st.stack = s.st.stack[:len(s.st.stack)-n]
	for _, v := range vals {
		s.f.Operands = append(s.f.Operands, v.Source)
	}
	return vals, nil
}

func (s *stepper) push(kind value.Kind, typ string) {
	s.st.stack = append(s.st.stack, frame.Value{Kind: kind, Type: typ, Source: s.id})
}

func (s *stepper) pushDesc(fdesc string) {
	if k := value.KindOf(fdesc); k != value.KindTop {
		s.push(k, slotType(fdesc))
	}
}

func (s *stepper) local(slot int) (frame.Value, error) {
	if slot < 0 || slot >= len(s.st.locals) {
		return frame.Value{}, s.fail("local %d out of range", slot)
	}
	return s.st.locals[slot], nil
}

func (s *stepper) setLocal(slot int, v frame.Value) {
	need := slot + 1
	if v.IsWide() {
		need++
	}
	for len(s.st.locals) < need {
		s.st.locals = append(s.st.locals, frame.Top)
	}
	// Overwriting the upper half of a wide value invalidates it.
	if slot > 0 && s.st.locals[slot-1].IsWide() {
		s.st.locals[slot-1] = frame.Top
	}
	s.st.locals[slot] = v
	if v.IsWide() {
		s.st.locals[slot+1] = frame.Top
	}
}

// step simulates insn at index on a copy of st, records its frame and
// returns the resulting state.
func (in *interp) step(index int, insn *ir.Instruction, st *state) (*state, error) {
	s := &stepper{
		in:    in,
		index: index,
		insn:  insn,
		f:     &frame.Frame{Op: insn.Op, Insn: index},
		st:    st.clone(),
	}
	s.id = in.res.Record(insn, s.f)
	if err := s.exec(); err != nil {
		return nil, err
	}
	s.f.Stack = append([]frame.Value(nil), s.st.stack...)
	s.f.Locals = append([]frame.Value(nil), s.st.locals...)
	return s.st, nil
}

func (s *stepper) exec() error {
	insn, f := s.insn, s.f
	op := insn.Op

	switch {
	case op == ir.OpNop:
		f.Category = frame.Nop

	case op == ir.OpAconstNull:
		f.Category = frame.Const
		s.push(value.KindNull, "")
	case op >= ir.OpIconstM1 && op <= ir.OpIconst5:
		f.Category = frame.Const
		f.Const = int32(op) - int32(ir.OpIconst0)
		s.push(value.KindInt, "I")
	case op == ir.OpLconst0 || op == ir.OpLconst1:
		f.Category = frame.Const
		f.Const = int64(op - ir.OpLconst0)
		s.push(value.KindLong, "J")
	case op >= ir.OpFconst0 && op <= ir.OpFconst2:
		f.Category = frame.Const
		f.Const = float32(op - ir.OpFconst0)
		s.push(value.KindFloat, "F")
	case op == ir.OpDconst0 || op == ir.OpDconst1:
		f.Category = frame.Const
		f.Const = float64(op - ir.OpDconst0)
		s.push(value.KindDouble, "D")
	case op == ir.OpBipush || op == ir.OpSipush:
		f.Category = frame.Const
		f.Const = insn.Operand
		s.push(value.KindInt, "I")
	case op == ir.OpLdc || op == ir.OpLdcW || op == ir.OpLdc2W:
		f.Category = frame.Const
		f.Const = insn.Const
		kind, typ, err := constSlot(insn.Const)
		if err != nil {
			return s.fail("%v", err)
		}
		s.push(kind, typ)

	case op >= ir.OpIload && op <= ir.OpAload:
		f.Category = frame.LocalLoad
		f.Var = insn.Var
		v, err := s.local(insn.Var)
		if err != nil {
			return err
		}
		f.Operands = []frame.ID{v.Source}
		if v.Kind == value.KindPending {
			// Uninitialized values keep their origin so the constructor
			// call can find every alias.
			s.st.stack = append(s.st.stack, v)
		} else {
			s.push(v.Kind, v.Type)
		}

	case op >= ir.OpIstore && op <= ir.OpAstore:
		f.Category = frame.LocalStore
		f.Var = insn.Var
		vals, err := s.pop(1)
		if err != nil {
			return err
		}
		v := vals[0]
		if v.Kind != value.KindPending {
			v.Source = s.id
		}
		s.setLocal(insn.Var, v)

	case op == ir.OpIinc:
		f.Category = frame.Increment
		f.Var = insn.Var
		f.Const = insn.Operand
		v, err := s.local(insn.Var)
		if err != nil {
			return err
		}
		f.Operands = []frame.ID{v.Source}
		s.setLocal(insn.Var, frame.Value{Kind: value.KindInt, Type: "I", Source: s.id})

	case op >= ir.OpIaload && op <= ir.OpSaload:
		f.Category = frame.ArrayLoad
		vals, err := s.pop(2)
		if err != nil {
			return err
		}
		if op == ir.OpAaload {
			elem := ir.ElementType(vals[0].Type)
			if elem == "" {
				elem = ir.ObjectClass
			}
			s.push(value.KindRef, elem)
		} else {
			k := arrayElem[op]
			s.push(k, kindType(k))
		}

	case op >= ir.OpIastore && op <= ir.OpSastore:
		f.Category = frame.ArrayStore
		if _, err := s.pop(3); err != nil {
			return err
		}

	case op.IsStackOp():
		f.Category = frame.Stack
		out, err := ir.ApplyStackOp(op, s.st.stack, frame.Value.IsWide)
		if err != nil {
			return s.fail("%v", err)
		}
		s.st.stack = out

	case op >= ir.OpIadd && op <= ir.OpDrem:
		f.Category = frame.Arith
		if _, err := s.pop(2); err != nil {
			return err
		}
		k := opKind[(op-ir.OpIadd)%4]
		s.push(k, kindType(k))
	case op >= ir.OpIneg && op <= ir.OpDneg:
		f.Category = frame.Arith
		if _, err := s.pop(1); err != nil {
			return err
		}
		k := opKind[op-ir.OpIneg]
		s.push(k, kindType(k))
	case op >= ir.OpIshl && op <= ir.OpLxor:
		f.Category = frame.Arith
		if _, err := s.pop(2); err != nil {
			return err
		}
		k := value.KindInt
		if (op-ir.OpIshl)%2 == 1 {
			k = value.KindLong
		}
		s.push(k, kindType(k))

	case op >= ir.OpI2l && op <= ir.OpI2s:
		f.Category = frame.Convert
		if _, err := s.pop(1); err != nil {
			return err
		}
		k := convertResult[op]
		s.push(k, kindType(k))

	case op >= ir.OpLcmp && op <= ir.OpDcmpg:
		f.Category = frame.Compare
		if _, err := s.pop(2); err != nil {
			return err
		}
		s.push(value.KindInt, "I")

	case op >= ir.OpIfeq && op <= ir.OpIfle, op == ir.OpIfnull, op == ir.OpIfnonnull:
		f.Category = frame.Jump
		if _, err := s.pop(1); err != nil {
			return err
		}
	case op >= ir.OpIfIcmpeq && op <= ir.OpIfAcmpne:
		f.Category = frame.Jump
		if _, err := s.pop(2); err != nil {
			return err
		}
	case op == ir.OpGoto || op == ir.OpGotoW:
		f.Category = frame.Jump

	case op == ir.OpTableswitch || op == ir.OpLookupswitch:
		f.Category = frame.Switch
		if _, err := s.pop(1); err != nil {
			return err
		}

	case op >= ir.OpIreturn && op <= ir.OpAreturn:
		f.Category = frame.Return
		if _, err := s.pop(1); err != nil {
			return err
		}
	case op == ir.OpReturn:
		f.Category = frame.Return

	case op == ir.OpGetstatic:
		f.Category = frame.FieldGet
		f.Owner, f.Name, f.Desc = insn.Owner, insn.Name, insn.Desc
		s.pushDesc(insn.Desc)
	case op == ir.OpPutstatic:
		f.Category = frame.FieldPut
		f.Owner, f.Name, f.Desc = insn.Owner, insn.Name, insn.Desc
		if _, err := s.pop(1); err != nil {
			return err
		}
	case op == ir.OpGetfield:
		f.Category = frame.FieldGet
		f.Owner, f.Name, f.Desc = insn.Owner, insn.Name, insn.Desc
		if _, err := s.pop(1); err != nil {
			return err
		}
		s.pushDesc(insn.Desc)
	case op == ir.OpPutfield:
		f.Category = frame.FieldPut
		f.Owner, f.Name, f.Desc = insn.Owner, insn.Name, insn.Desc
		if _, err := s.pop(2); err != nil {
			return err
		}

	case op >= ir.OpInvokevirtual && op <= ir.OpInvokedynamic:
		return s.invoke()

	case op == ir.OpNew:
		f.Category = frame.New
		f.Desc = insn.Desc
		s.push(value.KindPending, insn.Desc)
	case op == ir.OpNewarray:
		f.Category = frame.NewArray
		typ, err := ir.NewArrayType(insn.Operand)
		if err != nil {
			return s.fail("%v", err)
		}
		f.Desc = typ
		if _, err := s.pop(1); err != nil {
			return err
		}
		s.push(value.KindRef, typ)
	case op == ir.OpAnewarray:
		f.Category = frame.NewArray
		f.Desc = ir.ArrayOf(insn.Desc)
		if _, err := s.pop(1); err != nil {
			return err
		}
		s.push(value.KindRef, f.Desc)
	case op == ir.OpMultianewarray:
		f.Category = frame.NewArray
		f.Desc = insn.Desc
		if _, err := s.pop(int(insn.Operand)); err != nil {
			return err
		}
		s.push(value.KindRef, insn.Desc)

	case op == ir.OpArraylength:
		f.Category = frame.ArrayLength
		if _, err := s.pop(1); err != nil {
			return err
		}
		s.push(value.KindInt, "I")

	case op == ir.OpAthrow:
		f.Category = frame.Throw
		if _, err := s.pop(1); err != nil {
			return err
		}

	case op == ir.OpCheckcast:
		f.Category = frame.TypeCheck
		f.Desc = insn.Desc
		vals, err := s.pop(1)
		if err != nil {
			return err
		}
		if vals[0].Kind == value.KindNull {
			s.push(value.KindNull, "")
		} else {
			s.push(value.KindRef, insn.Desc)
		}
	case op == ir.OpInstanceof:
		f.Category = frame.TypeCheck
		f.Desc = insn.Desc
		if _, err := s.pop(1); err != nil {
			return err
		}
		s.push(value.KindInt, "I")

	case op == ir.OpMonitorenter || op == ir.OpMonitorexit:
		f.Category = frame.Monitor
		if _, err := s.pop(1); err != nil {
			return err
		}

	default:
		return s.fail("unhandled opcode 0x%02x", uint8(op))
	}
	return nil
}

// invoke pops the receiver and arguments, converts an uninitialized
// receiver passed to <init> and pushes the return value.
func (s *stepper) invoke() error {
	insn, f := s.insn, s.f
	f.Category = frame.Invoke
	f.Owner, f.Name, f.Desc = insn.Owner, insn.Name, insn.Desc
	if insn.Op == ir.OpInvokedynamic && insn.Bootstrap != nil {
		f.Owner = insn.Bootstrap.Owner
	}

	args, err := ir.ArgumentTypes(insn.Desc)
	if err != nil {
		return s.fail("%v", err)
	}
	n := len(args)
	hasReceiver := insn.Op != ir.OpInvokestatic && insn.Op != ir.OpInvokedynamic
	if hasReceiver {
		n++
	}
	vals, err := s.pop(n)
	if err != nil {
		return err
	}

	if hasReceiver && insn.Op == ir.OpInvokespecial && insn.Name == "<init>" {
		recv := vals[0]
		if recv.Kind == value.KindPending {
			s.initialize(recv)
		}
	}
	s.pushDesc(ir.ReturnType(insn.Desc))
	return nil
}

// initialize rewrites every alias of the uninitialized value recv in the
// current state to a ready reference produced by this frame.
func (s *stepper) initialize(recv frame.Value) {
	ready := frame.Value{Kind: value.KindRef, Type: recv.Type, Source: s.id}
	same := func(v frame.Value) bool {
		return v.Kind == value.KindPending && v.Source == recv.Source && v.Type == recv.Type
	}
	for i, v := range s.st.stack {
		if same(v) {
			s.st.stack[i] = ready
		}
	}
	for i, v := range s.st.locals {
		if same(v) {
			s.st.locals[i] = ready
		}
	}
}

func constSlot(c interface{}) (value.Kind, string, error) {
	switch c.(type) {
	case int32:
		return value.KindInt, "I", nil
	case int64:
		return value.KindLong, "J", nil
	case float32:
		return value.KindFloat, "F", nil
	case float64:
		return value.KindDouble, "D", nil
	case string:
		return value.KindRef, "java/lang/String", nil
	case ir.TypeConst:
		return value.KindRef, "java/lang/Class", nil
	case ir.MethodTypeConst:
		return value.KindRef, "java/lang/invoke/MethodType", nil
	case *ir.Handle:
		return value.KindRef, "java/lang/invoke/MethodHandle", nil
	}
	return value.KindTop, "", fmt.Errorf("unsupported constant %T", c)
}

func kindType(k value.Kind) string {
	switch k {
	case value.KindInt:
		return "I"
	case value.KindLong:
		return "J"
	case value.KindFloat:
		return "F"
	case value.KindDouble:
		return "D"
	}
	return ""
}
