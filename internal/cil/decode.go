package cil

import (
	"encoding/binary"
	"fmt"
	"math"

	"iljit/internal/metadata"
)

// Instruction is one decoded instruction.
type Instruction struct {
	Offset int
	Op     Opcode
	// Size covers opcode and operand bytes.
	Size int

	// Int holds integer immediates and local/argument indices.
	Int int64
	// Float holds ldc.r4/ldc.r8 immediates.
	Float float64
	// Token holds metadata token operands.
	Token metadata.Token
	// Targets holds absolute branch targets (one for branches, n for switch).
	Targets []int
}

// Next returns the offset of the instruction that follows.
func (in Instruction) Next() int { return in.Offset + in.Size }

// Info returns the opcode table row.
func (in Instruction) Info() OpInfo {
	info, _ := in.Op.Info()
	return info
}

// Target returns the single branch target.
func (in Instruction) Target() int {
	if len(in.Targets) == 0 {
		return -1
	}
	return in.Targets[0]
}

func (in Instruction) String() string {
	info := in.Info()
	switch info.Operand {
	case OperandNone:
		return info.Name
	case OperandToken:
		return fmt.Sprintf("%s %s", info.Name, in.Token)
	case OperandFloat32, OperandFloat64:
		return fmt.Sprintf("%s %g", info.Name, in.Float)
	case OperandBranch8, OperandBranch32:
		return fmt.Sprintf("%s IL_%04x", info.Name, in.Target())
	case OperandSwitch:
		return fmt.Sprintf("%s %v", info.Name, in.Targets)
	default:
		return fmt.Sprintf("%s %d", info.Name, in.Int)
	}
}

// DecodeError reports a malformed or truncated instruction stream.
type DecodeError struct {
	Offset int
	Msg    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("IL_%04x: %s", e.Offset, e.Msg)
}

// Decoder walks an immutable byte stream one instruction at a time.
type Decoder struct {
	code []byte
	pos  int
}

// NewDecoder creates a decoder positioned at offset 0.
func NewDecoder(code []byte) *Decoder {
	return &Decoder{code: code}
}

// Offset returns the current cursor.
func (d *Decoder) Offset() int { return d.pos }

// Done reports whether the cursor reached the end of the stream.
func (d *Decoder) Done() bool { return d.pos >= len(d.code) }

func (d *Decoder) take(start, n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.code) {
		return nil, &DecodeError{Offset: start, Msg: fmt.Sprintf("truncated operand: need %d bytes, have %d", n, len(d.code)-d.pos)}
	}
	b := d.code[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// Next decodes the instruction at the cursor and advances past it.
func (d *Decoder) Next() (Instruction, error) {
	start := d.pos
	if d.Done() {
		return Instruction{}, &DecodeError{Offset: start, Msg: "unexpected end of stream"}
	}
	op := Opcode(d.code[d.pos])
	d.pos++
	if byte(op) == Prefix {
		b, err := d.take(start, 1)
		if err != nil {
			return Instruction{}, err
		}
		op = Opcode(uint16(Prefix)<<8 | uint16(b[0]))
	}
	info, ok := op.Info()
	if !ok {
		return Instruction{}, &DecodeError{Offset: start, Msg: fmt.Sprintf("unknown opcode %s", op.Name())}
	}
	in := Instruction{Offset: start, Op: op}
	if err := d.operand(&in, info.Operand); err != nil {
		return Instruction{}, err
	}
	in.Size = d.pos - start
	return in, nil
}

func (d *Decoder) operand(in *Instruction, kind OperandKind) error {
	start := in.Offset
	switch kind {
	case OperandNone:
		return nil
	case OperandInt8:
		b, err := d.take(start, 1)
		if err != nil {
			return err
		}
		in.Int = int64(int8(b[0]))
	case OperandUInt8:
		b, err := d.take(start, 1)
		if err != nil {
			return err
		}
		in.Int = int64(b[0])
	case OperandUInt16:
		b, err := d.take(start, 2)
		if err != nil {
			return err
		}
		in.Int = int64(binary.LittleEndian.Uint16(b))
	case OperandInt32:
		b, err := d.take(start, 4)
		if err != nil {
			return err
		}
		in.Int = int64(int32(binary.LittleEndian.Uint32(b)))
	case OperandInt64:
		b, err := d.take(start, 8)
		if err != nil {
			return err
		}
		in.Int = int64(binary.LittleEndian.Uint64(b))
	case OperandFloat32:
		b, err := d.take(start, 4)
		if err != nil {
			return err
		}
		in.Float = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case OperandFloat64:
		b, err := d.take(start, 8)
		if err != nil {
			return err
		}
		in.Float = math.Float64frombits(binary.LittleEndian.Uint64(b))
	case OperandToken:
		b, err := d.take(start, 4)
		if err != nil {
			return err
		}
		in.Token = metadata.Token(binary.LittleEndian.Uint32(b))
	case OperandBranch8:
		b, err := d.take(start, 1)
		if err != nil {
			return err
		}
		in.Targets = []int{d.pos + int(int8(b[0]))}
	case OperandBranch32:
		b, err := d.take(start, 4)
		if err != nil {
			return err
		}
		in.Targets = []int{d.pos + int(int32(binary.LittleEndian.Uint32(b)))}
	case OperandSwitch:
		b, err := d.take(start, 4)
		if err != nil {
			return err
		}
		n := binary.LittleEndian.Uint32(b)
		if uint64(n)*4 > uint64(len(d.code)-d.pos) {
			return &DecodeError{Offset: start, Msg: fmt.Sprintf("switch table of %d entries exceeds stream", n)}
		}
		raw := make([]int32, n)
		for i := range raw {
			e, _ := d.take(start, 4)
			raw[i] = int32(binary.LittleEndian.Uint32(e))
		}
		base := d.pos
		in.Targets = make([]int, n)
		for i, rel := range raw {
			in.Targets[i] = base + int(rel)
		}
	default:
		return &DecodeError{Offset: start, Msg: fmt.Sprintf("unhandled operand kind %d", kind)}
	}
	return nil
}

// DecodeAll decodes the whole stream.
func DecodeAll(code []byte) ([]Instruction, error) {
	d := NewDecoder(code)
	var out []Instruction
	for !d.Done() {
		in, err := d.Next()
		if err != nil {
			return out, err
		}
		out = append(out, in)
	}
	return out, nil
}

// Disassemble renders the stream one instruction per line.
func Disassemble(code []byte) (string, error) {
	ins, err := DecodeAll(code)
	var sb []byte
	for _, in := range ins {
		sb = fmt.Appendf(sb, "IL_%04x: %s\n", in.Offset, in)
	}
	return string(sb), err
}
