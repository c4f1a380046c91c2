package classfile

import (
	"encoding/binary"
	"fmt"

	"github.com/daimatz/deobvm/pkg/ir"
)

// Decode converts a parsed class file into the ir class model used by the
// resolver and both interpreters.
func Decode(cf *ClassFile) (*ir.Class, error) {
	name, err := cf.ClassName()
	if err != nil {
		return nil, fmt.Errorf("resolving this_class: %w", err)
	}
	super, err := cf.SuperClassName()
	if err != nil {
		return nil, fmt.Errorf("resolving super_class of %s: %w", name, err)
	}
	cls := &ir.Class{
		Name:   name,
		Super:  super,
		Access: cf.AccessFlags,
	}
	for i, idx := range cf.Interfaces {
		itf, err := GetClassName(cf.ConstantPool, idx)
		if err != nil {
			return nil, fmt.Errorf("resolving interface %d of %s: %w", i, name, err)
		}
		cls.Interfaces = append(cls.Interfaces, itf)
	}

	for _, f := range cf.Fields {
		field := &ir.Field{Access: f.AccessFlags, Name: f.Name, Desc: f.Descriptor}
		if data, ok := f.Attribute("ConstantValue"); ok && len(data) >= 2 {
			v, err := LoadableConstant(cf.ConstantPool, binary.BigEndian.Uint16(data))
			if err != nil {
				return nil, fmt.Errorf("field %s.%s ConstantValue: %w", name, f.Name, err)
			}
			field.Value = v
		}
		cls.Fields = append(cls.Fields, field)
	}

	for i := range cf.Methods {
		mi := &cf.Methods[i]
		m := &ir.Method{Access: mi.AccessFlags, Name: mi.Name, Desc: mi.Descriptor}
		if mi.Code != nil {
			m.MaxLocals = int(mi.Code.MaxLocals)
			m.MaxStack = int(mi.Code.MaxStack)
			m.Instructions, m.TryRegions, err = DecodeCode(cf, mi.Code.Code, mi.Code.ExceptionHandlers)
			if err != nil {
				return nil, fmt.Errorf("decoding %s.%s%s: %w", name, mi.Name, mi.Descriptor, err)
			}
		}
		cls.Methods = append(cls.Methods, m)
	}
	return cls, nil
}

// codeReader walks a Code array. The first out-of-range read is recorded
// in err and every later read returns zero.
type codeReader struct {
	code []byte
	pc   int
	err  error
}

func (r *codeReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pc+n > len(r.code) {
		r.err = fmt.Errorf("truncated instruction at pc %d", r.pc)
		return false
	}
	return true
}

func (r *codeReader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.code[r.pc]
	r.pc++
	return v
}

func (r *codeReader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.code[r.pc:])
	r.pc += 2
	return v
}

func (r *codeReader) i32() int32 {
	if !r.need(4) {
		return 0
	}
	v := int32(binary.BigEndian.Uint32(r.code[r.pc:]))
	r.pc += 4
	return v
}

// DecodeCode disassembles a Code array into linear instructions, patches
// branch targets to instruction pointers and maps the exception table onto
// try regions. Short load/store forms (iload_0 and friends), ldc_w and
// wide prefixes are normalized away.
func DecodeCode(cf *ClassFile, code []byte, handlers []ExceptionHandler) ([]*ir.Instruction, []*ir.TryRegion, error) {
	var pool []ConstantPoolEntry
	if cf != nil {
		pool = cf.ConstantPool
	}

	type fixup struct {
		insn    *ir.Instruction
		target  int   // Target
		dflt    int   // Default, switches only
		targets []int // Targets, switches only
	}

	var insns []*ir.Instruction
	byPC := make(map[int]*ir.Instruction)
	var fixups []fixup

	r := &codeReader{code: code}
	for r.pc < len(code) {
		start := r.pc
		op := ir.Opcode(r.u8())
		insn := &ir.Instruction{Op: op}

		switch {
		case op >= 0x1A && op <= 0x2D: // xload_n
			n := int(op - 0x1A)
			insn.Op = ir.OpIload + ir.Opcode(n/4)
			insn.Var = n % 4
		case op >= 0x3B && op <= 0x4E: // xstore_n
			n := int(op - 0x3B)
			insn.Op = ir.OpIstore + ir.Opcode(n/4)
			insn.Var = n % 4
		}

		switch insn.Op {
		case ir.OpBipush:
			insn.Operand = int32(int8(r.u8()))
		case ir.OpSipush:
			insn.Operand = int32(int16(r.u16()))
		case ir.OpNewarray:
			insn.Operand = int32(r.u8())

		case ir.OpLdc, ir.OpLdcW, ir.OpLdc2W:
			var idx uint16
			if op == ir.OpLdc {
				idx = uint16(r.u8())
			} else {
				idx = r.u16()
			}
			if r.err != nil {
				break
			}
			c, err := LoadableConstant(pool, idx)
			if err != nil {
				return nil, nil, fmt.Errorf("pc %d: %w", start, err)
			}
			if op == ir.OpLdcW {
				insn.Op = ir.OpLdc
			}
			insn.Const = c

		case ir.OpIload, ir.OpLload, ir.OpFload, ir.OpDload, ir.OpAload,
			ir.OpIstore, ir.OpLstore, ir.OpFstore, ir.OpDstore, ir.OpAstore, ir.OpRet:
			if op == insn.Op {
				insn.Var = int(r.u8())
			}
		case ir.OpIinc:
			insn.Var = int(r.u8())
			insn.Operand = int32(int8(r.u8()))

		case ir.OpWide:
			insn.Op = ir.Opcode(r.u8())
			insn.Var = int(r.u16())
			switch insn.Op {
			case ir.OpIinc:
				insn.Operand = int32(int16(r.u16()))
			case ir.OpIload, ir.OpLload, ir.OpFload, ir.OpDload, ir.OpAload,
				ir.OpIstore, ir.OpLstore, ir.OpFstore, ir.OpDstore, ir.OpAstore, ir.OpRet:
			default:
				return nil, nil, fmt.Errorf("pc %d: invalid wide opcode %s", start, insn.Op)
			}

		case ir.OpGetstatic, ir.OpPutstatic, ir.OpGetfield, ir.OpPutfield:
			ref, err := ResolveFieldref(pool, r.u16())
			if r.err != nil {
				break
			}
			if err != nil {
				return nil, nil, fmt.Errorf("pc %d: %w", start, err)
			}
			insn.Owner, insn.Name, insn.Desc = ref.ClassName, ref.FieldName, ref.Descriptor

		case ir.OpInvokevirtual, ir.OpInvokespecial, ir.OpInvokestatic, ir.OpInvokeinterface:
			ref, err := ResolveMethodref(pool, r.u16())
			if insn.Op == ir.OpInvokeinterface {
				r.u8() // count
				r.u8() // zero
			}
			if r.err != nil {
				break
			}
			if err != nil {
				return nil, nil, fmt.Errorf("pc %d: %w", start, err)
			}
			insn.Owner, insn.Name, insn.Desc, insn.Itf = ref.ClassName, ref.MethodName, ref.Descriptor, ref.Interface

		case ir.OpInvokedynamic:
			idx := r.u16()
			r.u16()
			if r.err != nil {
				break
			}
			if err := decodeInvokeDynamic(cf, idx, insn); err != nil {
				return nil, nil, fmt.Errorf("pc %d: %w", start, err)
			}

		case ir.OpNew, ir.OpAnewarray, ir.OpCheckcast, ir.OpInstanceof:
			name, err := GetClassName(pool, r.u16())
			if r.err != nil {
				break
			}
			if err != nil {
				return nil, nil, fmt.Errorf("pc %d: %w", start, err)
			}
			insn.Desc = name
		case ir.OpMultianewarray:
			name, err := GetClassName(pool, r.u16())
			insn.Operand = int32(r.u8())
			if r.err != nil {
				break
			}
			if err != nil {
				return nil, nil, fmt.Errorf("pc %d: %w", start, err)
			}
			insn.Desc = name

		case ir.OpGotoW, ir.OpJsrW:
			fixups = append(fixups, fixup{insn: insn, target: start + int(r.i32())})

		case ir.OpTableswitch:
			r.pc = (r.pc + 3) &^ 3
			f := fixup{insn: insn, target: -1}
			f.dflt = start + int(r.i32())
			insn.Low = r.i32()
			insn.High = r.i32()
			if r.err == nil && insn.High >= insn.Low {
				n := int(insn.High) - int(insn.Low) + 1
				if !r.need(4 * n) {
					break
				}
				for i := 0; i < n; i++ {
					f.targets = append(f.targets, start+int(r.i32()))
				}
			}
			fixups = append(fixups, f)

		case ir.OpLookupswitch:
			r.pc = (r.pc + 3) &^ 3
			f := fixup{insn: insn, target: -1}
			f.dflt = start + int(r.i32())
			n := r.i32()
			if r.err == nil && n >= 0 && r.need(8*int(n)) {
				for i := int32(0); i < n; i++ {
					insn.Keys = append(insn.Keys, r.i32())
					f.targets = append(f.targets, start+int(r.i32()))
				}
			}
			fixups = append(fixups, f)

		default:
			if insn.Op.IsConditionalJump() || insn.Op == ir.OpGoto || insn.Op == ir.OpJsr {
				fixups = append(fixups, fixup{insn: insn, target: start + int(int16(r.u16()))})
			}
		}

		if r.err != nil {
			return nil, nil, r.err
		}
		byPC[start] = insn
		insns = append(insns, insn)
	}

	at := func(pc int) (*ir.Instruction, error) {
		if insn, ok := byPC[pc]; ok {
			return insn, nil
		}
		return nil, fmt.Errorf("branch to pc %d is not an instruction boundary", pc)
	}
	for _, f := range fixups {
		var err error
		if f.target >= 0 {
			if f.insn.Target, err = at(f.target); err != nil {
				return nil, nil, err
			}
			continue
		}
		if f.insn.Default, err = at(f.dflt); err != nil {
			return nil, nil, err
		}
		f.insn.Targets = make([]*ir.Instruction, len(f.targets))
		for i, pc := range f.targets {
			if f.insn.Targets[i], err = at(pc); err != nil {
				return nil, nil, err
			}
		}
	}

	var regions []*ir.TryRegion
	for i, h := range handlers {
		region := &ir.TryRegion{}
		var err error
		if region.Start, err = at(int(h.StartPC)); err != nil {
			return nil, nil, fmt.Errorf("exception table entry %d: %w", i, err)
		}
		if int(h.EndPC) < len(code) {
			if region.End, err = at(int(h.EndPC)); err != nil {
				return nil, nil, fmt.Errorf("exception table entry %d: %w", i, err)
			}
		}
		if region.Handler, err = at(int(h.HandlerPC)); err != nil {
			return nil, nil, fmt.Errorf("exception table entry %d: %w", i, err)
		}
		if h.CatchType != 0 {
			if region.Type, err = GetClassName(pool, h.CatchType); err != nil {
				return nil, nil, fmt.Errorf("exception table entry %d: %w", i, err)
			}
		}
		regions = append(regions, region)
	}
	return insns, regions, nil
}

func decodeInvokeDynamic(cf *ClassFile, idx uint16, insn *ir.Instruction) error {
	if cf == nil || int(idx) >= len(cf.ConstantPool) {
		return fmt.Errorf("invalid InvokeDynamic index %d", idx)
	}
	indy, ok := cf.ConstantPool[idx].(*ConstantInvokeDynamic)
	if !ok {
		return fmt.Errorf("constant pool index %d is not InvokeDynamic", idx)
	}
	name, desc, err := ResolveNameAndType(cf.ConstantPool, indy.NameAndTypeIndex)
	if err != nil {
		return err
	}
	insn.Name, insn.Desc = name, desc
	if int(indy.BootstrapMethodAttrIndex) >= len(cf.BootstrapMethods) {
		return fmt.Errorf("bootstrap method %d out of range", indy.BootstrapMethodAttrIndex)
	}
	bsm := cf.BootstrapMethods[indy.BootstrapMethodAttrIndex]
	if insn.Bootstrap, err = ResolveMethodHandle(cf.ConstantPool, bsm.MethodRef); err != nil {
		return fmt.Errorf("bootstrap method: %w", err)
	}
	for _, a := range bsm.BootstrapArguments {
		v, err := LoadableConstant(cf.ConstantPool, a)
		if err != nil {
			return fmt.Errorf("bootstrap argument: %w", err)
		}
		insn.BootstrapArgs = append(insn.BootstrapArgs, v)
	}
	return nil
}
