package exec

import (
	"encoding/binary"
	"math"
)

// Address space layout. Each region is a separate byte slice; an address
// maps to a region by its base. Address 0 is never mapped.
const (
	heapBase  uint64 = 0x0000_0000_0001_0000
	stackBase uint64 = 0x0000_0100_0000_0000
	funcBase  uint64 = 0x0000_7F00_0000_0000
	funcStep  uint64 = 16
)

type region struct {
	base uint64
	data []byte
	// top is the first unused byte.
	top int
}

func (r *region) contains(addr uint64, n int) (int, bool) {
	if addr < r.base || n < 0 {
		return 0, false
	}
	off := addr - r.base
	if off > uint64(r.top) || uint64(n) > uint64(r.top)-off {
		return 0, false
	}
	return int(off), true
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// bump reserves size zeroed bytes aligned to align, growing up to limit.
func (r *region) bump(size, align, limit int) (uint64, bool) {
	start := alignUp(r.top, align)
	end := start + size
	if end > limit {
		return 0, false
	}
	if end > len(r.data) {
		grown := make([]byte, max(end, 2*len(r.data), 256))
		copy(grown, r.data[:r.top])
		r.data = grown
	}
	clear(r.data[r.top:end])
	r.top = end
	return r.base + uint64(start), true
}

func (e *Engine) bytes(addr uint64, n int) ([]byte, *Fault) {
	for _, r := range []*region{&e.stack, &e.heap} {
		if off, ok := r.contains(addr, n); ok {
			return r.data[off : off+n], nil
		}
	}
	return nil, e.fault(FaultBadAddress, "access of %d bytes at 0x%x", n, addr)
}

func readUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

func writeUint(b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, v)
	}
}

// Helpers for decoding raw results and encoding arguments.

func I8(v uint64) int8     { return int8(v) }
func I16(v uint64) int16   { return int16(v) }
func I32(v uint64) int32   { return int32(v) }
func I64(v uint64) int64   { return int64(v) }
func U8(v uint64) uint8    { return uint8(v) }
func U16(v uint64) uint16  { return uint16(v) }
func U32(v uint64) uint32  { return uint32(v) }
func Bool(v uint64) bool   { return v&1 != 0 }
func F32(v uint64) float32 { return math.Float32frombits(uint32(v)) }
func F64(v uint64) float64 { return math.Float64frombits(v) }

// Int encodes a signed integer argument.
func Int(v int64) uint64 { return uint64(v) }

// Float32Arg encodes a float argument.
func Float32Arg(f float32) uint64 { return uint64(math.Float32bits(f)) }

// Float64Arg encodes a double argument.
func Float64Arg(f float64) uint64 { return math.Float64bits(f) }
