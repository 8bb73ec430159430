package cil

import (
	"encoding/binary"
	"fmt"
	"math"

	"fortio.org/safecast"

	"iljit/internal/metadata"
)

type fixup struct {
	at     int // operand position
	next   int // offset of the following instruction
	width  int
	label  string
	source int // instruction offset, for errors
}

// Assembler emits IL bytes with symbolic branch labels.
type Assembler struct {
	buf    []byte
	labels map[string]int
	fixups []fixup
	err    error
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{labels: make(map[string]int)}
}

// Len returns the number of bytes emitted so far.
func (a *Assembler) Len() int { return len(a.buf) }

func (a *Assembler) opcode(op Opcode, want ...OperandKind) {
	info, ok := op.Info()
	if !ok {
		a.fail(fmt.Errorf("IL_%04x: unknown opcode %s", len(a.buf), op))
		return
	}
	matched := len(want) == 0 && info.Operand == OperandNone
	for _, w := range want {
		if info.Operand == w {
			matched = true
		}
	}
	if !matched {
		a.fail(fmt.Errorf("IL_%04x: %s takes a %d-byte operand", len(a.buf), info.Name, info.Operand.Size()))
	}
	if op.IsTwoByte() {
		a.buf = append(a.buf, Prefix)
	}
	a.buf = append(a.buf, byte(op))
}

func (a *Assembler) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

// Emit appends an opcode without operand.
func (a *Assembler) Emit(op Opcode) *Assembler {
	a.opcode(op)
	return a
}

// EmitI1 appends an opcode with a signed byte operand.
func (a *Assembler) EmitI1(op Opcode, v int8) *Assembler {
	a.opcode(op, OperandInt8, OperandUInt8)
	a.buf = append(a.buf, byte(v))
	return a
}

// EmitU1 appends an opcode with an unsigned byte operand (short local and
// argument indices).
func (a *Assembler) EmitU1(op Opcode, v uint8) *Assembler {
	a.opcode(op, OperandUInt8, OperandInt8)
	a.buf = append(a.buf, v)
	return a
}

// EmitU2 appends an opcode with a 16-bit index operand.
func (a *Assembler) EmitU2(op Opcode, v uint16) *Assembler {
	a.opcode(op, OperandUInt16)
	a.buf = binary.LittleEndian.AppendUint16(a.buf, v)
	return a
}

// EmitI4 appends an opcode with a 32-bit integer operand.
func (a *Assembler) EmitI4(op Opcode, v int32) *Assembler {
	a.opcode(op, OperandInt32)
	a.buf = binary.LittleEndian.AppendUint32(a.buf, uint32(v))
	return a
}

// EmitI8 appends an opcode with a 64-bit integer operand.
func (a *Assembler) EmitI8(op Opcode, v int64) *Assembler {
	a.opcode(op, OperandInt64)
	a.buf = binary.LittleEndian.AppendUint64(a.buf, uint64(v))
	return a
}

// EmitR4 appends an opcode with a 32-bit float operand.
func (a *Assembler) EmitR4(op Opcode, v float32) *Assembler {
	a.opcode(op, OperandFloat32)
	a.buf = binary.LittleEndian.AppendUint32(a.buf, math.Float32bits(v))
	return a
}

// EmitR8 appends an opcode with a 64-bit float operand.
func (a *Assembler) EmitR8(op Opcode, v float64) *Assembler {
	a.opcode(op, OperandFloat64)
	a.buf = binary.LittleEndian.AppendUint64(a.buf, math.Float64bits(v))
	return a
}

// EmitToken appends an opcode with a metadata token operand.
func (a *Assembler) EmitToken(op Opcode, tok metadata.Token) *Assembler {
	a.opcode(op, OperandToken)
	a.buf = binary.LittleEndian.AppendUint32(a.buf, uint32(tok))
	return a
}

// EmitBranch appends a branch to label. The label may be marked later.
func (a *Assembler) EmitBranch(op Opcode, label string) *Assembler {
	source := len(a.buf)
	a.opcode(op, OperandBranch8, OperandBranch32)
	info, _ := op.Info()
	width := info.Operand.Size()
	at := len(a.buf)
	a.buf = append(a.buf, make([]byte, width)...)
	a.fixups = append(a.fixups, fixup{at: at, next: len(a.buf), width: width, label: label, source: source})
	return a
}

// EmitSwitch appends a switch over the given labels.
func (a *Assembler) EmitSwitch(labels ...string) *Assembler {
	source := len(a.buf)
	a.opcode(Switch, OperandSwitch)
	a.buf = binary.LittleEndian.AppendUint32(a.buf, uint32(len(labels)))
	first := len(a.buf)
	a.buf = append(a.buf, make([]byte, 4*len(labels))...)
	for i, l := range labels {
		a.fixups = append(a.fixups, fixup{at: first + 4*i, next: len(a.buf), width: 4, label: l, source: source})
	}
	return a
}

// MarkLabel binds label to the current offset.
func (a *Assembler) MarkLabel(label string) *Assembler {
	if _, dup := a.labels[label]; dup {
		a.fail(fmt.Errorf("label %q defined twice", label))
		return a
	}
	a.labels[label] = len(a.buf)
	return a
}

// Bytes resolves branch fixups and returns the encoded stream.
func (a *Assembler) Bytes() ([]byte, error) {
	if a.err != nil {
		return nil, a.err
	}
	out := append([]byte(nil), a.buf...)
	for _, f := range a.fixups {
		target, ok := a.labels[f.label]
		if !ok {
			return nil, fmt.Errorf("IL_%04x: undefined label %q", f.source, f.label)
		}
		rel := target - f.next
		switch f.width {
		case 1:
			v, err := safecast.Conv[int8](rel)
			if err != nil {
				return nil, fmt.Errorf("IL_%04x: short branch to %q out of range (%d): %w", f.source, f.label, rel, err)
			}
			out[f.at] = byte(v)
		case 4:
			v, err := safecast.Conv[int32](rel)
			if err != nil {
				return nil, fmt.Errorf("IL_%04x: branch to %q out of range: %w", f.source, f.label, err)
			}
			binary.LittleEndian.PutUint32(out[f.at:], uint32(v))
		}
	}
	return out, nil
}

// MustBytes is Bytes for statically known programs; it panics on error.
func (a *Assembler) MustBytes() []byte {
	b, err := a.Bytes()
	if err != nil {
		panic(err)
	}
	return b
}
