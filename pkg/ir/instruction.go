package ir

import "fmt"

// Instruction is one decoded bytecode instruction. Only the operand fields
// relevant to Op are set.
type Instruction struct {
	Op Opcode

	// Operand is the immediate of bipush/sipush, the atype of newarray, the
	// dimension count of multianewarray and the increment of iinc.
	Operand int32
	// Var is the local slot of loads, stores and iinc.
	Var int
	// Const is the ldc constant: int32, float32, int64, float64, string,
	// TypeConst, MethodTypeConst or *Handle.
	Const interface{}

	// Owner/Name/Desc describe field and method references. Type
	// instructions (new, anewarray, checkcast, instanceof, multianewarray)
	// carry the internal class name or array descriptor in Desc.
	Owner string
	Name  string
	Desc  string
	Itf   bool

	Target  *Instruction
	Default *Instruction
	Low     int32
	High    int32
	Keys    []int32
	Targets []*Instruction

	Bootstrap     *Handle
	BootstrapArgs []interface{}
}

// TypeConst is a class literal loaded by ldc.
type TypeConst struct {
	Name string
}

// MethodTypeConst is a method type loaded by ldc.
type MethodTypeConst struct {
	Desc string
}

// Handle is a method handle constant.
type Handle struct {
	Kind  int
	Owner string
	Name  string
	Desc  string
	Itf   bool
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s.%s%s", h.Owner, h.Name, h.Desc)
}

func (insn *Instruction) String() string {
	switch {
	case insn.Name != "":
		return fmt.Sprintf("%s %s.%s %s", insn.Op, insn.Owner, insn.Name, insn.Desc)
	case insn.Desc != "":
		return fmt.Sprintf("%s %s", insn.Op, insn.Desc)
	case insn.Const != nil:
		return fmt.Sprintf("%s %v", insn.Op, insn.Const)
	}
	return insn.Op.String()
}

// Insn builds an instruction without operands.
func Insn(op Opcode) *Instruction {
	return &Instruction{Op: op}
}

// IntInsn builds bipush, sipush or newarray.
func IntInsn(op Opcode, operand int32) *Instruction {
	return &Instruction{Op: op, Operand: operand}
}

// VarInsn builds a load or store.
func VarInsn(op Opcode, slot int) *Instruction {
	return &Instruction{Op: op, Var: slot}
}

// IincInsn builds iinc.
func IincInsn(slot int, inc int32) *Instruction {
	return &Instruction{Op: OpIinc, Var: slot, Operand: inc}
}

// LdcInsn builds ldc (or ldc2_w for long and double constants).
func LdcInsn(c interface{}) *Instruction {
	switch c.(type) {
	case int64, float64:
		return &Instruction{Op: OpLdc2W, Const: c}
	}
	return &Instruction{Op: OpLdc, Const: c}
}

// TypeInsn builds new, anewarray, checkcast or instanceof.
func TypeInsn(op Opcode, desc string) *Instruction {
	return &Instruction{Op: op, Desc: desc}
}

// MultiANewArrayInsn builds multianewarray.
func MultiANewArrayInsn(desc string, dims int) *Instruction {
	return &Instruction{Op: OpMultianewarray, Desc: desc, Operand: int32(dims)}
}

// FieldInsn builds a field access.
func FieldInsn(op Opcode, owner, name, desc string) *Instruction {
	return &Instruction{Op: op, Owner: owner, Name: name, Desc: desc}
}

// MethodInsn builds a method invocation.
func MethodInsn(op Opcode, owner, name, desc string) *Instruction {
	return &Instruction{Op: op, Owner: owner, Name: name, Desc: desc, Itf: op == OpInvokeinterface}
}

// InvokeDynamicInsn builds invokedynamic.
func InvokeDynamicInsn(name, desc string, bsm *Handle, args ...interface{}) *Instruction {
	return &Instruction{Op: OpInvokedynamic, Name: name, Desc: desc, Bootstrap: bsm, BootstrapArgs: args}
}

// JumpInsn builds a conditional or unconditional jump. The target may be
// patched after construction.
func JumpInsn(op Opcode, target *Instruction) *Instruction {
	return &Instruction{Op: op, Target: target}
}

// TableSwitchInsn builds tableswitch over [low, high].
func TableSwitchInsn(low, high int32, dflt *Instruction, targets ...*Instruction) *Instruction {
	return &Instruction{Op: OpTableswitch, Low: low, High: high, Default: dflt, Targets: targets}
}

// LookupSwitchInsn builds lookupswitch.
func LookupSwitchInsn(dflt *Instruction, keys []int32, targets ...*Instruction) *Instruction {
	return &Instruction{Op: OpLookupswitch, Default: dflt, Keys: keys, Targets: targets}
}

// Successors returns the explicit branch targets of a jump or switch,
// default first for switches.
func (insn *Instruction) Successors() []*Instruction {
	switch {
	case insn.Op == OpTableswitch || insn.Op == OpLookupswitch:
		out := make([]*Instruction, 0, len(insn.Targets)+1)
		out = append(out, insn.Default)
		return append(out, insn.Targets...)
	case insn.Op.IsConditionalJump() || insn.Op.IsUnconditionalJump():
		return []*Instruction{insn.Target}
	}
	return nil
}

// SwitchTarget returns the branch taken by a switch for key.
func (insn *Instruction) SwitchTarget(key int32) *Instruction {
	if insn.Op == OpTableswitch {
		if key >= insn.Low && key <= insn.High && int(key-insn.Low) < len(insn.Targets) {
			return insn.Targets[key-insn.Low]
		}
		return insn.Default
	}
	for i, k := range insn.Keys {
		if k == key {
			return insn.Targets[i]
		}
	}
	return insn.Default
}
