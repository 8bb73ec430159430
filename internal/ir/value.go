package ir

import (
	"fmt"
	"math"
	"strconv"
)

// Value is anything usable as an instruction operand.
type Value interface {
	Type() *Type
	// Ref renders the operand without its type ("%3", "42", "@f").
	Ref() string
}

// ConstInt is an integer constant. V holds the value sign-extended to 64
// bits; printing and evaluation truncate it to the type's width.
type ConstInt struct {
	Typ *Type
	V   int64
}

// ConstFloat is a float or double constant.
type ConstFloat struct {
	Typ *Type
	V   float64
}

// ConstNull is the null pointer of a pointer type.
type ConstNull struct {
	Typ *Type
}

// Undef is an unspecified value of a type.
type Undef struct {
	Typ *Type
}

// NewInt returns an integer constant of type t, normalised to t's width.
func NewInt(t *Type, v int64) *ConstInt {
	return &ConstInt{Typ: t, V: SignExtend(v, t.Bits)}
}

// NewFloat returns a float or double constant.
func NewFloat(t *Type, v float64) *ConstFloat {
	if t.Kind == KindFloat {
		v = float64(float32(v))
	}
	return &ConstFloat{Typ: t, V: v}
}

// NewNull returns a null pointer constant.
func NewNull(t *Type) *ConstNull { return &ConstNull{Typ: t} }

func (c *ConstInt) Type() *Type   { return c.Typ }
func (c *ConstFloat) Type() *Type { return c.Typ }
func (c *ConstNull) Type() *Type  { return c.Typ }
func (u *Undef) Type() *Type      { return u.Typ }

func (c *ConstInt) Ref() string {
	if c.Typ.Bits == 1 {
		if c.V != 0 {
			return "true"
		}
		return "false"
	}
	return strconv.FormatInt(c.V, 10)
}

func (c *ConstFloat) Ref() string {
	// LLVM accepts the exact double bit pattern in hex for both widths.
	return fmt.Sprintf("0x%016X", math.Float64bits(c.V))
}

func (c *ConstNull) Ref() string { return "null" }
func (u *Undef) Ref() string     { return "undef" }

// SignExtend truncates v to bits and sign-extends it back to 64 bits.
func SignExtend(v int64, bits int) int64 {
	if bits <= 0 || bits >= 64 {
		return v
	}
	shift := 64 - bits
	return v << shift >> shift
}

// ZeroExtend truncates v to bits and zero-extends it.
func ZeroExtend(v int64, bits int) uint64 {
	if bits <= 0 || bits >= 64 {
		return uint64(v)
	}
	return uint64(v) & (1<<uint(bits) - 1)
}

// Param is a function parameter.
type Param struct {
	Fn    *Function
	Index int
	Typ   *Type
	Name  string
}

func (p *Param) Type() *Type { return p.Typ }

func (p *Param) Ref() string {
	if p.Name != "" {
		return "%" + quoteName(p.Name)
	}
	return fmt.Sprintf("%%arg%d", p.Index)
}

// IsConst reports whether v is a constant.
func IsConst(v Value) bool {
	switch v.(type) {
	case *ConstInt, *ConstFloat, *ConstNull, *Undef:
		return true
	}
	return false
}
