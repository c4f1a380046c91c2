package native

import (
	"fmt"

	"github.com/daimatz/deobvm/pkg/ir"
)

// IndexError is an out-of-range string or builder index.
type IndexError struct {
	Index, Length int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of bounds for length %d", e.Index, e.Length)
}

// StringBuilder represents java.lang.StringBuilder and StringBuffer. The
// content is kept as UTF-16 code units so indices match the guest's view.
type StringBuilder struct {
	Class string
	units []uint16
}

// NewStringBuilder creates a builder of class holding s.
func NewStringBuilder(class, s string) *StringBuilder {
	return &StringBuilder{Class: class, units: ir.StringToUTF16(s)}
}

// JavaClass implements value.Typed.
func (b *StringBuilder) JavaClass() string { return b.Class }

// Append appends a Java string.
func (b *StringBuilder) Append(s string) {
	b.units = append(b.units, ir.StringToUTF16(s)...)
}

// AppendChar appends one code unit.
func (b *StringBuilder) AppendChar(c uint16) {
	b.units = append(b.units, c)
}

// Len returns the length in code units.
func (b *StringBuilder) Len() int {
	return len(b.units)
}

func (b *StringBuilder) check(i, limit int) error {
	if i < 0 || i >= limit {
		return &IndexError{Index: i, Length: len(b.units)}
	}
	return nil
}

// CharAt returns the code unit at i.
func (b *StringBuilder) CharAt(i int) (uint16, error) {
	if err := b.check(i, len(b.units)); err != nil {
		return 0, err
	}
	return b.units[i], nil
}

// SetCharAt replaces the code unit at i.
func (b *StringBuilder) SetCharAt(i int, c uint16) error {
	if err := b.check(i, len(b.units)); err != nil {
		return err
	}
	b.units[i] = c
	return nil
}

// DeleteCharAt removes the code unit at i.
func (b *StringBuilder) DeleteCharAt(i int) error {
	if err := b.check(i, len(b.units)); err != nil {
		return err
	}
	b.units = append(b.units[:i], b.units[i+1:]...)
	return nil
}

// Insert inserts s before offset.
func (b *StringBuilder) Insert(offset int, s string) error {
	if err := b.check(offset, len(b.units)+1); err != nil {
		return err
	}
	ins := ir.StringToUTF16(s)
	out := make([]uint16, 0, len(b.units)+len(ins))
	out = append(out, b.units[:offset]...)
	out = append(out, ins...)
	b.units = append(out, b.units[offset:]...)
	return nil
}

// SetLength truncates or zero-pads the builder.
func (b *StringBuilder) SetLength(n int) error {
	if n < 0 {
		return &IndexError{Index: n, Length: len(b.units)}
	}
	for len(b.units) < n {
		b.units = append(b.units, 0)
	}
	b.units = b.units[:n]
	return nil
}

// Reverse reverses the code units, keeping surrogate pairs in order.
func (b *StringBuilder) Reverse() {
	u := b.units
	for i, j := 0, len(u)-1; i < j; i, j = i+1, j-1 {
		u[i], u[j] = u[j], u[i]
	}
	for i := 0; i+1 < len(u); i++ {
		if u[i] >= 0xDC00 && u[i] <= 0xDFFF && u[i+1] >= 0xD800 && u[i+1] <= 0xDBFF {
			u[i], u[i+1] = u[i+1], u[i]
			i++
		}
	}
}

func (b *StringBuilder) String() string {
	return ir.StringFromUTF16(b.units)
}
