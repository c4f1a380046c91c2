package classfile

import (
	"fmt"
	"math"

	"github.com/daimatz/deobvm/pkg/ir"
)

// Constant pool tags
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
)

// parseConstantPool reads constant_pool_count-1 entries. The returned
// slice is indexed like the pool itself: index 0 and the slot after each
// Long or Double are nil.
func parseConstantPool(r *reader, count uint16) ([]ConstantPoolEntry, error) {
	pool := make([]ConstantPoolEntry, count)
	for i := 1; i < int(count); i++ {
		tag := r.u1()
		var e ConstantPoolEntry
		switch tag {
		case TagUtf8:
			e = &ConstantUtf8{Value: ir.DecodeModifiedUTF8(r.bytes(uint32(r.u2())))}
		case TagInteger:
			e = &ConstantInteger{Value: int32(r.u4())}
		case TagFloat:
			e = &ConstantFloat{Value: math.Float32frombits(r.u4())}
		case TagLong:
			e = &ConstantLong{Value: int64(r.u8())}
		case TagDouble:
			e = &ConstantDouble{Value: math.Float64frombits(r.u8())}
		case TagClass:
			e = &ConstantClass{NameIndex: r.u2()}
		case TagString:
			e = &ConstantString{StringIndex: r.u2()}
		case TagFieldref:
			e = &ConstantFieldref{ClassIndex: r.u2(), NameAndTypeIndex: r.u2()}
		case TagMethodref:
			e = &ConstantMethodref{ClassIndex: r.u2(), NameAndTypeIndex: r.u2()}
		case TagInterfaceMethodref:
			e = &ConstantInterfaceMethodref{ClassIndex: r.u2(), NameAndTypeIndex: r.u2()}
		case TagNameAndType:
			e = &ConstantNameAndType{NameIndex: r.u2(), DescriptorIndex: r.u2()}
		case TagMethodHandle:
			e = &ConstantMethodHandle{ReferenceKind: r.u1(), ReferenceIndex: r.u2()}
		case TagMethodType:
			e = &ConstantMethodType{DescriptorIndex: r.u2()}
		case TagDynamic, TagInvokeDynamic:
			e = &ConstantInvokeDynamic{tag: tag, BootstrapMethodAttrIndex: r.u2(), NameAndTypeIndex: r.u2()}
		default:
			if r.err == nil {
				return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
			}
		}
		if r.err != nil {
			return nil, fmt.Errorf("reading constant pool entry %d: %w", i, r.err)
		}
		pool[i] = e
		if tag == TagLong || tag == TagDouble {
			i++
		}
	}
	return pool, nil
}

// GetUtf8 returns the Utf8 string at the given constant pool index.
func GetUtf8(pool []ConstantPoolEntry, index uint16) (string, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return "", fmt.Errorf("invalid constant pool index %d", index)
	}
	utf8, ok := pool[index].(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, pool[index].Tag())
	}
	return utf8.Value, nil
}

// GetClassName returns the class name referenced by a CONSTANT_Class entry.
func GetClassName(pool []ConstantPoolEntry, classIndex uint16) (string, error) {
	if int(classIndex) >= len(pool) || pool[classIndex] == nil {
		return "", fmt.Errorf("invalid constant pool index %d", classIndex)
	}
	class, ok := pool[classIndex].(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class", classIndex)
	}
	return GetUtf8(pool, class.NameIndex)
}

// MethodRefInfo holds resolved method reference info.
type MethodRefInfo struct {
	ClassName  string
	MethodName string
	Descriptor string
	Interface  bool
}

// FieldRefInfo holds resolved field reference info.
type FieldRefInfo struct {
	ClassName  string
	FieldName  string
	Descriptor string
}

// ResolveNameAndType returns the name and descriptor of a
// CONSTANT_NameAndType entry.
func ResolveNameAndType(pool []ConstantPoolEntry, index uint16) (string, string, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return "", "", fmt.Errorf("invalid NameAndType index %d", index)
	}
	nat, ok := pool[index].(*ConstantNameAndType)
	if !ok {
		return "", "", fmt.Errorf("constant pool index %d is not NameAndType", index)
	}
	name, err := GetUtf8(pool, nat.NameIndex)
	if err != nil {
		return "", "", fmt.Errorf("resolving name: %w", err)
	}
	desc, err := GetUtf8(pool, nat.DescriptorIndex)
	if err != nil {
		return "", "", fmt.Errorf("resolving descriptor: %w", err)
	}
	return name, desc, nil
}

// resolveMemberRef resolves the class and NameAndType of any
// Fieldref/Methodref/InterfaceMethodref entry.
func resolveMemberRef(pool []ConstantPoolEntry, index uint16) (class, name, desc string, tag uint8, err error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return "", "", "", 0, fmt.Errorf("invalid constant pool index %d", index)
	}
	var classIndex, natIndex uint16
	switch ref := pool[index].(type) {
	case *ConstantFieldref:
		classIndex, natIndex = ref.ClassIndex, ref.NameAndTypeIndex
	case *ConstantMethodref:
		classIndex, natIndex = ref.ClassIndex, ref.NameAndTypeIndex
	case *ConstantInterfaceMethodref:
		classIndex, natIndex = ref.ClassIndex, ref.NameAndTypeIndex
	default:
		return "", "", "", 0, fmt.Errorf("constant pool index %d is not a member reference (tag=%d)", index, pool[index].Tag())
	}
	class, err = GetClassName(pool, classIndex)
	if err != nil {
		return "", "", "", 0, fmt.Errorf("resolving member class: %w", err)
	}
	name, desc, err = ResolveNameAndType(pool, natIndex)
	if err != nil {
		return "", "", "", 0, err
	}
	return class, name, desc, pool[index].Tag(), nil
}

// ResolveMethodref resolves a CONSTANT_Methodref or
// CONSTANT_InterfaceMethodref entry.
func ResolveMethodref(pool []ConstantPoolEntry, index uint16) (*MethodRefInfo, error) {
	class, name, desc, tag, err := resolveMemberRef(pool, index)
	if err != nil {
		return nil, err
	}
	if tag == TagFieldref {
		return nil, fmt.Errorf("constant pool index %d is not Methodref", index)
	}
	return &MethodRefInfo{
		ClassName:  class,
		MethodName: name,
		Descriptor: desc,
		Interface:  tag == TagInterfaceMethodref,
	}, nil
}

// ResolveFieldref resolves a CONSTANT_Fieldref entry.
func ResolveFieldref(pool []ConstantPoolEntry, index uint16) (*FieldRefInfo, error) {
	class, name, desc, tag, err := resolveMemberRef(pool, index)
	if err != nil {
		return nil, err
	}
	if tag != TagFieldref {
		return nil, fmt.Errorf("constant pool index %d is not Fieldref", index)
	}
	return &FieldRefInfo{ClassName: class, FieldName: name, Descriptor: desc}, nil
}

// ResolveMethodHandle resolves a CONSTANT_MethodHandle entry.
func ResolveMethodHandle(pool []ConstantPoolEntry, index uint16) (*ir.Handle, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return nil, fmt.Errorf("invalid constant pool index %d", index)
	}
	mh, ok := pool[index].(*ConstantMethodHandle)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not MethodHandle", index)
	}
	class, name, desc, tag, err := resolveMemberRef(pool, mh.ReferenceIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving MethodHandle: %w", err)
	}
	return &ir.Handle{
		Kind:  int(mh.ReferenceKind),
		Owner: class,
		Name:  name,
		Desc:  desc,
		Itf:   tag == TagInterfaceMethodref,
	}, nil
}

// LoadableConstant converts a loadable constant pool entry (ldc operand or
// bootstrap argument) to its ir representation.
func LoadableConstant(pool []ConstantPoolEntry, index uint16) (interface{}, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return nil, fmt.Errorf("invalid constant pool index %d", index)
	}
	switch c := pool[index].(type) {
	case *ConstantInteger:
		return c.Value, nil
	case *ConstantFloat:
		return c.Value, nil
	case *ConstantLong:
		return c.Value, nil
	case *ConstantDouble:
		return c.Value, nil
	case *ConstantString:
		return GetUtf8(pool, c.StringIndex)
	case *ConstantClass:
		name, err := GetUtf8(pool, c.NameIndex)
		if err != nil {
			return nil, err
		}
		return ir.TypeConst{Name: name}, nil
	case *ConstantMethodType:
		desc, err := GetUtf8(pool, c.DescriptorIndex)
		if err != nil {
			return nil, err
		}
		return ir.MethodTypeConst{Desc: desc}, nil
	case *ConstantMethodHandle:
		return ResolveMethodHandle(pool, index)
	}
	return nil, fmt.Errorf("constant pool index %d is not loadable (tag=%d)", index, pool[index].Tag())
}
