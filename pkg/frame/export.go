package frame

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var exportEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("frame: failed to create CBOR enc mode: %v", err))
	}
	exportEncMode = em
}

// Export is the serialized form of a Result, written by the CLI for
// offline inspection of a method's data-flow graph.
type Export struct {
	Owner  string        `cbor:"1,keyasint"`
	Method string        `cbor:"2,keyasint"`
	Desc   string        `cbor:"3,keyasint"`
	Frames []ExportFrame `cbor:"4,keyasint"`
}

// ExportFrame is one frame with its slots rendered as type strings.
type ExportFrame struct {
	ID       int32    `cbor:"1,keyasint"`
	Category string   `cbor:"2,keyasint"`
	Op       string   `cbor:"3,keyasint,omitempty"`
	Insn     int      `cbor:"4,keyasint"`
	Operands []int32  `cbor:"5,keyasint,omitempty"`
	Stack    []string `cbor:"6,keyasint,omitempty"`
	Locals   []string `cbor:"7,keyasint,omitempty"`
	Member   string   `cbor:"8,keyasint,omitempty"`
	Const    string   `cbor:"9,keyasint,omitempty"`
}

// NewExport flattens r for serialization.
func NewExport(owner string, r *Result) *Export {
	e := &Export{Owner: owner}
	if r.Method != nil {
		e.Method, e.Desc = r.Method.Name, r.Method.Desc
	}
	for _, f := range r.Arena.All() {
		ef := ExportFrame{
			ID:       int32(f.ID),
			Category: f.Category.String(),
			Insn:     f.Insn,
			Stack:    slotStrings(f.Stack),
			Locals:   slotStrings(f.Locals),
		}
		if f.Insn >= 0 {
			ef.Op = f.Op.String()
		}
		for _, id := range f.Operands {
			ef.Operands = append(ef.Operands, int32(id))
		}
		switch {
		case f.Name != "":
			ef.Member = f.Owner + "." + f.Name + f.Desc
		case f.Desc != "":
			ef.Member = f.Desc
		}
		if f.Const != nil {
			ef.Const = fmt.Sprintf("%v", f.Const)
		}
		e.Frames = append(e.Frames, ef)
	}
	return e
}

func slotStrings(vs []Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

// MarshalExport encodes e as canonical CBOR.
func MarshalExport(e *Export) ([]byte, error) {
	return exportEncMode.Marshal(e)
}

// UnmarshalExport decodes CBOR produced by MarshalExport.
func UnmarshalExport(data []byte) (*Export, error) {
	var e Export
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("frame: unmarshal export: %w", err)
	}
	return &e, nil
}
