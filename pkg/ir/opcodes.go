package ir

// Opcode is the numeric tag of a bytecode instruction.
type Opcode uint8

// Opcodes
const (
	OpNop             Opcode = 0x00
	OpAconstNull      Opcode = 0x01
	OpIconstM1        Opcode = 0x02
	OpIconst0         Opcode = 0x03
	OpIconst1         Opcode = 0x04
	OpIconst2         Opcode = 0x05
	OpIconst3         Opcode = 0x06
	OpIconst4         Opcode = 0x07
	OpIconst5         Opcode = 0x08
	OpLconst0         Opcode = 0x09
	OpLconst1         Opcode = 0x0A
	OpFconst0         Opcode = 0x0B
	OpFconst1         Opcode = 0x0C
	OpFconst2         Opcode = 0x0D
	OpDconst0         Opcode = 0x0E
	OpDconst1         Opcode = 0x0F
	OpBipush          Opcode = 0x10
	OpSipush          Opcode = 0x11
	OpLdc             Opcode = 0x12
	OpLdcW            Opcode = 0x13
	OpLdc2W           Opcode = 0x14
	OpIload           Opcode = 0x15
	OpLload           Opcode = 0x16
	OpFload           Opcode = 0x17
	OpDload           Opcode = 0x18
	OpAload           Opcode = 0x19
	OpIaload          Opcode = 0x2E
	OpLaload          Opcode = 0x2F
	OpFaload          Opcode = 0x30
	OpDaload          Opcode = 0x31
	OpAaload          Opcode = 0x32
	OpBaload          Opcode = 0x33
	OpCaload          Opcode = 0x34
	OpSaload          Opcode = 0x35
	OpIstore          Opcode = 0x36
	OpLstore          Opcode = 0x37
	OpFstore          Opcode = 0x38
	OpDstore          Opcode = 0x39
	OpAstore          Opcode = 0x3A
	OpIastore         Opcode = 0x4F
	OpLastore         Opcode = 0x50
	OpFastore         Opcode = 0x51
	OpDastore         Opcode = 0x52
	OpAastore         Opcode = 0x53
	OpBastore         Opcode = 0x54
	OpCastore         Opcode = 0x55
	OpSastore         Opcode = 0x56
	OpPop             Opcode = 0x57
	OpPop2            Opcode = 0x58
	OpDup             Opcode = 0x59
	OpDupX1           Opcode = 0x5A
	OpDupX2           Opcode = 0x5B
	OpDup2            Opcode = 0x5C
	OpDup2X1          Opcode = 0x5D
	OpDup2X2          Opcode = 0x5E
	OpSwap            Opcode = 0x5F
	OpIadd            Opcode = 0x60
	OpLadd            Opcode = 0x61
	OpFadd            Opcode = 0x62
	OpDadd            Opcode = 0x63
	OpIsub            Opcode = 0x64
	OpLsub            Opcode = 0x65
	OpFsub            Opcode = 0x66
	OpDsub            Opcode = 0x67
	OpImul            Opcode = 0x68
	OpLmul            Opcode = 0x69
	OpFmul            Opcode = 0x6A
	OpDmul            Opcode = 0x6B
	OpIdiv            Opcode = 0x6C
	OpLdiv            Opcode = 0x6D
	OpFdiv            Opcode = 0x6E
	OpDdiv            Opcode = 0x6F
	OpIrem            Opcode = 0x70
	OpLrem            Opcode = 0x71
	OpFrem            Opcode = 0x72
	OpDrem            Opcode = 0x73
	OpIneg            Opcode = 0x74
	OpLneg            Opcode = 0x75
	OpFneg            Opcode = 0x76
	OpDneg            Opcode = 0x77
	OpIshl            Opcode = 0x78
	OpLshl            Opcode = 0x79
	OpIshr            Opcode = 0x7A
	OpLshr            Opcode = 0x7B
	OpIushr           Opcode = 0x7C
	OpLushr           Opcode = 0x7D
	OpIand            Opcode = 0x7E
	OpLand            Opcode = 0x7F
	OpIor             Opcode = 0x80
	OpLor             Opcode = 0x81
	OpIxor            Opcode = 0x82
	OpLxor            Opcode = 0x83
	OpIinc            Opcode = 0x84
	OpI2l             Opcode = 0x85
	OpI2f             Opcode = 0x86
	OpI2d             Opcode = 0x87
	OpL2i             Opcode = 0x88
	OpL2f             Opcode = 0x89
	OpL2d             Opcode = 0x8A
	OpF2i             Opcode = 0x8B
	OpF2l             Opcode = 0x8C
	OpF2d             Opcode = 0x8D
	OpD2i             Opcode = 0x8E
	OpD2l             Opcode = 0x8F
	OpD2f             Opcode = 0x90
	OpI2b             Opcode = 0x91
	OpI2c             Opcode = 0x92
	OpI2s             Opcode = 0x93
	OpLcmp            Opcode = 0x94
	OpFcmpl           Opcode = 0x95
	OpFcmpg           Opcode = 0x96
	OpDcmpl           Opcode = 0x97
	OpDcmpg           Opcode = 0x98
	OpIfeq            Opcode = 0x99
	OpIfne            Opcode = 0x9A
	OpIflt            Opcode = 0x9B
	OpIfge            Opcode = 0x9C
	OpIfgt            Opcode = 0x9D
	OpIfle            Opcode = 0x9E
	OpIfIcmpeq        Opcode = 0x9F
	OpIfIcmpne        Opcode = 0xA0
	OpIfIcmplt        Opcode = 0xA1
	OpIfIcmpge        Opcode = 0xA2
	OpIfIcmpgt        Opcode = 0xA3
	OpIfIcmple        Opcode = 0xA4
	OpIfAcmpeq        Opcode = 0xA5
	OpIfAcmpne        Opcode = 0xA6
	OpGoto            Opcode = 0xA7
	OpJsr             Opcode = 0xA8
	OpRet             Opcode = 0xA9
	OpTableswitch     Opcode = 0xAA
	OpLookupswitch    Opcode = 0xAB
	OpIreturn         Opcode = 0xAC
	OpLreturn         Opcode = 0xAD
	OpFreturn         Opcode = 0xAE
	OpDreturn         Opcode = 0xAF
	OpAreturn         Opcode = 0xB0
	OpReturn          Opcode = 0xB1
	OpGetstatic       Opcode = 0xB2
	OpPutstatic       Opcode = 0xB3
	OpGetfield        Opcode = 0xB4
	OpPutfield        Opcode = 0xB5
	OpInvokevirtual   Opcode = 0xB6
	OpInvokespecial   Opcode = 0xB7
	OpInvokestatic    Opcode = 0xB8
	OpInvokeinterface Opcode = 0xB9
	OpInvokedynamic   Opcode = 0xBA
	OpNew             Opcode = 0xBB
	OpNewarray        Opcode = 0xBC
	OpAnewarray       Opcode = 0xBD
	OpArraylength     Opcode = 0xBE
	OpAthrow          Opcode = 0xBF
	OpCheckcast       Opcode = 0xC0
	OpInstanceof      Opcode = 0xC1
	OpMonitorenter    Opcode = 0xC2
	OpMonitorexit     Opcode = 0xC3
	OpWide            Opcode = 0xC4
	OpMultianewarray  Opcode = 0xC5
	OpIfnull          Opcode = 0xC6
	OpIfnonnull       Opcode = 0xC7
	OpGotoW           Opcode = 0xC8
	OpJsrW            Opcode = 0xC9
)

// Array type codes used by newarray.
const (
	TBoolean = 4
	TChar    = 5
	TFloat   = 6
	TDouble  = 7
	TByte    = 8
	TShort   = 9
	TInt     = 10
	TLong    = 11
)

var opNames = [...]string{
	"nop", "aconst_null", "iconst_m1", "iconst_0", "iconst_1", "iconst_2", "iconst_3", "iconst_4", "iconst_5",
	"lconst_0", "lconst_1", "fconst_0", "fconst_1", "fconst_2", "dconst_0", "dconst_1", "bipush", "sipush",
	"ldc", "ldc_w", "ldc2_w", "iload", "lload", "fload", "dload", "aload",
	"iload_0", "iload_1", "iload_2", "iload_3", "lload_0", "lload_1", "lload_2", "lload_3",
	"fload_0", "fload_1", "fload_2", "fload_3", "dload_0", "dload_1", "dload_2", "dload_3",
	"aload_0", "aload_1", "aload_2", "aload_3", "iaload", "laload", "faload", "daload", "aaload", "baload",
	"caload", "saload", "istore", "lstore", "fstore", "dstore", "astore",
	"istore_0", "istore_1", "istore_2", "istore_3", "lstore_0", "lstore_1", "lstore_2", "lstore_3",
	"fstore_0", "fstore_1", "fstore_2", "fstore_3", "dstore_0", "dstore_1", "dstore_2", "dstore_3",
	"astore_0", "astore_1", "astore_2", "astore_3", "iastore", "lastore", "fastore", "dastore", "aastore",
	"bastore", "castore", "sastore", "pop", "pop2", "dup", "dup_x1", "dup_x2", "dup2", "dup2_x1", "dup2_x2",
	"swap", "iadd", "ladd", "fadd", "dadd", "isub", "lsub", "fsub", "dsub", "imul", "lmul", "fmul", "dmul",
	"idiv", "ldiv", "fdiv", "ddiv", "irem", "lrem", "frem", "drem", "ineg", "lneg", "fneg", "dneg",
	"ishl", "lshl", "ishr", "lshr", "iushr", "lushr", "iand", "land", "ior", "lor", "ixor", "lxor", "iinc",
	"i2l", "i2f", "i2d", "l2i", "l2f", "l2d", "f2i", "f2l", "f2d", "d2i", "d2l", "d2f", "i2b", "i2c", "i2s",
	"lcmp", "fcmpl", "fcmpg", "dcmpl", "dcmpg", "ifeq", "ifne", "iflt", "ifge", "ifgt", "ifle",
	"if_icmpeq", "if_icmpne", "if_icmplt", "if_icmpge", "if_icmpgt", "if_icmple", "if_acmpeq", "if_acmpne",
	"goto", "jsr", "ret", "tableswitch", "lookupswitch", "ireturn", "lreturn", "freturn", "dreturn",
	"areturn", "return", "getstatic", "putstatic", "getfield", "putfield", "invokevirtual", "invokespecial",
	"invokestatic", "invokeinterface", "invokedynamic", "new", "newarray", "anewarray", "arraylength",
	"athrow", "checkcast", "instanceof", "monitorenter", "monitorexit", "wide", "multianewarray",
	"ifnull", "ifnonnull", "goto_w", "jsr_w",
}

// String returns the mnemonic of the opcode.
func (op Opcode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "unknown"
}

// IsConditionalJump reports whether op is a two-way branch.
func (op Opcode) IsConditionalJump() bool {
	return (op >= OpIfeq && op <= OpIfAcmpne) || op == OpIfnull || op == OpIfnonnull
}

// IsUnconditionalJump reports whether op always transfers control.
func (op Opcode) IsUnconditionalJump() bool {
	return op == OpGoto || op == OpGotoW
}

// IsReturn reports whether op returns from the method.
func (op Opcode) IsReturn() bool {
	return op >= OpIreturn && op <= OpReturn
}

// IsSubroutine reports whether op is one of the unsupported subroutine opcodes.
func (op Opcode) IsSubroutine() bool {
	return op == OpJsr || op == OpJsrW || op == OpRet
}

// EndsFlow reports whether execution never falls through to the next instruction.
func (op Opcode) EndsFlow() bool {
	return op.IsReturn() || op.IsUnconditionalJump() || op == OpAthrow ||
		op == OpTableswitch || op == OpLookupswitch
}
