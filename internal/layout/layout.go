// Package layout computes sizes, alignments and field offsets of backend
// types for a Target.
package layout

import (
	"fmt"

	"fortio.org/safecast"

	"iljit/internal/ir"
)

// TypeLayout is the ABI layout of a type.
type TypeLayout struct {
	Size  int
	Align int

	// Structs only.
	FieldOffsets []int
	FieldAligns  []int
}

var unsized = TypeLayout{Size: 0, Align: 1}

type entry struct {
	layout TypeLayout
	err    *Error
}

// Engine computes and memoizes layouts. It is not safe for concurrent use;
// every compilation unit owns one.
type Engine struct {
	Target Target

	memo map[*ir.Type]entry
}

// New creates an Engine for target.
func New(target Target) *Engine {
	return &Engine{Target: target, memo: make(map[*ir.Type]entry, 64)}
}

// LayoutOf returns the layout of t.
func (e *Engine) LayoutOf(t *ir.Type) (TypeLayout, error) {
	if e.memo == nil {
		e.memo = make(map[*ir.Type]entry, 64)
	}
	l, err := e.layoutOf(t, map[*ir.Type]int{}, nil)
	if err != nil {
		return l, err
	}
	return l, nil
}

// layoutOf walks t. onPath maps every struct currently being laid out to
// its position in path, so a by-value cycle is reported with its members.
func (e *Engine) layoutOf(t *ir.Type, onPath map[*ir.Type]int, path []*ir.Type) (TypeLayout, *Error) {
	if m, ok := e.memo[t]; ok {
		return m.layout, m.err
	}
	if i, ok := onPath[t]; ok {
		cycle := append(append([]*ir.Type(nil), path[i:]...), t)
		return unsized, &Error{Kind: ErrRecursive, Type: t, Cycle: cycle}
	}

	var (
		l   TypeLayout
		err *Error
	)
	switch t.Kind {
	case ir.KindInt:
		l = scalar((t.Bits + 7) / 8)
	case ir.KindFloat:
		l = scalar(4)
	case ir.KindDouble:
		l = scalar(8)
	case ir.KindPointer:
		l = TypeLayout{Size: e.Target.PtrSize, Align: e.Target.PtrAlign}
	case ir.KindStruct:
		if t.IsOpaque() {
			// A body may still arrive, so the answer is not remembered.
			return unsized, &Error{Kind: ErrOpaque, Type: t}
		}
		onPath[t] = len(path)
		l, err = e.structLayout(t, onPath, append(path, t))
		delete(onPath, t)
	default:
		l, err = unsized, &Error{Kind: ErrUnsized, Type: t}
	}
	if err == nil || err.Kind != ErrOpaque {
		e.memo[t] = entry{layout: l, err: err}
	}
	return l, err
}

func (e *Engine) structLayout(t *ir.Type, onPath map[*ir.Type]int, path []*ir.Type) (TypeLayout, *Error) {
	fields := t.Fields()
	out := TypeLayout{
		Align:        1,
		FieldOffsets: make([]int, len(fields)),
		FieldAligns:  make([]int, len(fields)),
	}
	for i, f := range fields {
		fl, err := e.layoutOf(f, onPath, path)
		if err != nil {
			return unsized, err
		}
		a := max(fl.Align, 1)
		out.Size = roundUp(out.Size, a)
		out.FieldOffsets[i] = out.Size
		out.FieldAligns[i] = a
		out.Size += fl.Size
		out.Align = max(out.Align, a)
	}
	out.Size = roundUp(out.Size, out.Align)
	return out, nil
}

func scalar(size int) TypeLayout {
	if size <= 0 {
		return unsized
	}
	return TypeLayout{Size: size, Align: size}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// SizeOf returns the size of t in bytes.
func (e *Engine) SizeOf(t *ir.Type) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Size, err
}

// SizeOf64 returns the size of t as an int64 for IR constants.
func (e *Engine) SizeOf64(t *ir.Type) (int64, error) {
	n, err := e.SizeOf(t)
	if err != nil {
		return 0, err
	}
	return safecast.Conv[int64](n)
}

// AlignOf returns the alignment of t in bytes.
func (e *Engine) AlignOf(t *ir.Type) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Align, err
}

// FieldOffset returns the byte offset of field i of a struct.
func (e *Engine) FieldOffset(st *ir.Type, i int) (int, error) {
	l, err := e.LayoutOf(st)
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= len(l.FieldOffsets) {
		return 0, fmt.Errorf("%s has no field %d", st, i)
	}
	return l.FieldOffsets[i], nil
}
