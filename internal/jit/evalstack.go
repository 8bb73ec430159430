package jit

import "iljit/internal/ir"

// evalStack is the runtime buffer that carries operands across block
// boundaries. The buffer and its cursor live in the method's init block;
// every push and pop moves the cursor by the operand's backend size.
type evalStack struct {
	cursor ir.Value
	size   int64
}

func newEvalStack(b *ir.Builder, maxStack int) *evalStack {
	size := max(int64(maxStack)*8, 8)
	buf := b.ArrayAlloca(ir.I8, ir.NewInt(ir.I32, size), "evalstack")
	cursor := b.Alloca(ir.PointerTo(ir.I8), "evalstack.top")
	b.Store(buf, cursor)
	return &evalStack{cursor: cursor, size: size}
}

// advance moves addr by delta bytes.
func advance(b *ir.Builder, addr ir.Value, delta int64) ir.Value {
	n := b.Cast(ir.OpPtrToInt, addr, ir.I64, "")
	return b.Cast(ir.OpIntToPtr, b.Add(n, ir.NewInt(ir.I64, delta), ""), ir.PointerTo(ir.I8), "")
}

func (s *evalStack) push(b *ir.Builder, v ir.Value, size int64) {
	top := b.Load(s.cursor, "")
	b.Store(v, b.PointerCast(top, ir.PointerTo(v.Type()), ""))
	b.Store(advance(b, top, size), s.cursor)
}

func (s *evalStack) pop(b *ir.Builder, t *ir.Type, size int64) ir.Value {
	top := advance(b, b.Load(s.cursor, ""), -size)
	b.Store(top, s.cursor)
	return b.Load(b.PointerCast(top, ir.PointerTo(t), ""), "")
}
