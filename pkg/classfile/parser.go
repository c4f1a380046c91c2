package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const classMagic = 0xCAFEBABE

// Oldest class file version accepted (JDK 1.0.2).
const minMajorVersion = 45

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cf, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cf, nil
}

// ParseBytes parses an in-memory .class file.
func ParseBytes(data []byte) (*ClassFile, error) {
	return Parse(bytes.NewReader(data))
}

// reader reads big-endian class file items. The first failure is kept in
// err and later reads return zero values, so callers check once per
// section.
type reader struct {
	r   io.Reader
	err error
	buf [8]byte
}

func (r *reader) fill(n int) []byte {
	if r.err != nil {
		return nil
	}
	if _, err := io.ReadFull(r.r, r.buf[:n]); err != nil {
		r.err = err
		return nil
	}
	return r.buf[:n]
}

func (r *reader) u1() uint8 {
	b := r.fill(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u2() uint16 {
	b := r.fill(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) u4() uint32 {
	b := r.fill(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) u8() uint64 {
	b := r.fill(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) bytes(n uint32) []byte {
	if r.err != nil {
		return nil
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r.r, out); err != nil {
		r.err = err
		return nil
	}
	return out
}

// Parse reads a .class file and returns its structure with names and
// descriptors of members already resolved.
func Parse(rd io.Reader) (*ClassFile, error) {
	r := &reader{r: rd}
	cf := &ClassFile{}

	if magic := r.u4(); r.err != nil {
		return nil, fmt.Errorf("reading magic number: %w", r.err)
	} else if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}
	cf.MinorVersion = r.u2()
	cf.MajorVersion = r.u2()
	if r.err != nil {
		return nil, fmt.Errorf("reading version: %w", r.err)
	}
	if cf.MajorVersion < minMajorVersion {
		return nil, fmt.Errorf("unsupported class file version %d.%d", cf.MajorVersion, cf.MinorVersion)
	}

	count := r.u2()
	if r.err != nil {
		return nil, fmt.Errorf("reading constant pool count: %w", r.err)
	}
	pool, err := parseConstantPool(r, count)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.ConstantPool = pool

	cf.AccessFlags = r.u2()
	cf.ThisClass = r.u2()
	cf.SuperClass = r.u2()
	cf.Interfaces = make([]uint16, r.u2())
	for i := range cf.Interfaces {
		cf.Interfaces[i] = r.u2()
	}
	if r.err != nil {
		return nil, fmt.Errorf("reading class header: %w", r.err)
	}

	fields, err := parseMembers(r, pool, "field")
	if err != nil {
		return nil, err
	}
	for _, m := range fields {
		cf.Fields = append(cf.Fields, FieldInfo{MemberInfo: m})
	}

	methods, err := parseMembers(r, pool, "method")
	if err != nil {
		return nil, err
	}
	for _, m := range methods {
		mi := MethodInfo{MemberInfo: m}
		if data, ok := m.Attribute("Code"); ok {
			if mi.Code, err = parseCodeAttribute(data); err != nil {
				return nil, fmt.Errorf("method %s%s: %w", m.Name, m.Descriptor, err)
			}
		}
		cf.Methods = append(cf.Methods, mi)
	}

	attrs, err := parseAttributes(r, pool)
	if err != nil {
		return nil, fmt.Errorf("class attributes: %w", err)
	}
	for _, a := range attrs {
		if a.Name != "BootstrapMethods" {
			continue
		}
		if cf.BootstrapMethods, err = parseBootstrapMethods(a.Data); err != nil {
			return nil, fmt.Errorf("parsing BootstrapMethods: %w", err)
		}
	}
	return cf, nil
}

// parseMembers reads a fields or methods table.
func parseMembers(r *reader, pool []ConstantPoolEntry, kind string) ([]MemberInfo, error) {
	count := r.u2()
	if r.err != nil {
		return nil, fmt.Errorf("reading %s count: %w", kind, r.err)
	}
	members := make([]MemberInfo, count)
	for i := range members {
		access, nameIndex, descIndex := r.u2(), r.u2(), r.u2()
		if r.err != nil {
			return nil, fmt.Errorf("reading %s %d: %w", kind, i, r.err)
		}
		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving %s %d name: %w", kind, i, err)
		}
		desc, err := GetUtf8(pool, descIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving %s %s descriptor: %w", kind, name, err)
		}
		attrs, err := parseAttributes(r, pool)
		if err != nil {
			return nil, fmt.Errorf("%s %s attributes: %w", kind, name, err)
		}
		members[i] = MemberInfo{AccessFlags: access, Name: name, Descriptor: desc, Attributes: attrs}
	}
	return members, nil
}

// parseAttributes reads an attribute table. Attributes whose name does not
// resolve are kept with an empty name; obfuscators plant such entries and
// the JVM ignores them.
func parseAttributes(r *reader, pool []ConstantPoolEntry) ([]AttributeInfo, error) {
	count := r.u2()
	attrs := make([]AttributeInfo, 0, count)
	for i := uint16(0); i < count; i++ {
		nameIndex := r.u2()
		data := r.bytes(r.u4())
		if r.err != nil {
			return nil, fmt.Errorf("reading attribute %d: %w", i, r.err)
		}
		name, _ := GetUtf8(pool, nameIndex)
		attrs = append(attrs, AttributeInfo{Name: name, Data: data})
	}
	if r.err != nil {
		return nil, fmt.Errorf("reading attribute count: %w", r.err)
	}
	return attrs, nil
}

func parseCodeAttribute(data []byte) (*CodeAttribute, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("Code attribute too short: %d bytes", len(data))
	}
	code := &CodeAttribute{
		MaxStack:  binary.BigEndian.Uint16(data[0:2]),
		MaxLocals: binary.BigEndian.Uint16(data[2:4]),
	}
	length := int(binary.BigEndian.Uint32(data[4:8]))
	off := 8 + length
	if length <= 0 || off+2 > len(data) {
		return nil, fmt.Errorf("Code attribute truncated: code_length %d in %d bytes", length, len(data))
	}
	code.Code = data[8:off]

	n := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+8*n > len(data) {
		return nil, fmt.Errorf("exception table truncated: %d entries in %d bytes", n, len(data)-off)
	}
	code.ExceptionHandlers = make([]ExceptionHandler, n)
	for i := range code.ExceptionHandlers {
		e := data[off+8*i:]
		code.ExceptionHandlers[i] = ExceptionHandler{
			StartPC:   binary.BigEndian.Uint16(e[0:]),
			EndPC:     binary.BigEndian.Uint16(e[2:]),
			HandlerPC: binary.BigEndian.Uint16(e[4:]),
			CatchType: binary.BigEndian.Uint16(e[6:]),
		}
	}
	return code, nil
}

func parseBootstrapMethods(data []byte) ([]BootstrapMethod, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("BootstrapMethods data too short")
	}
	methods := make([]BootstrapMethod, binary.BigEndian.Uint16(data))
	off := 2
	for i := range methods {
		if off+4 > len(data) {
			return nil, fmt.Errorf("BootstrapMethods truncated at method %d", i)
		}
		bm := BootstrapMethod{MethodRef: binary.BigEndian.Uint16(data[off:])}
		nargs := int(binary.BigEndian.Uint16(data[off+2:]))
		off += 4
		if off+2*nargs > len(data) {
			return nil, fmt.Errorf("BootstrapMethods truncated in arguments of method %d", i)
		}
		bm.BootstrapArguments = make([]uint16, nargs)
		for j := range bm.BootstrapArguments {
			bm.BootstrapArguments[j] = binary.BigEndian.Uint16(data[off+2*j:])
		}
		off += 2 * nargs
		methods[i] = bm
	}
	return methods, nil
}

// ClassName returns the internal name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}
