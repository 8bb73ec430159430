package jit

import (
	"errors"
	"fmt"
	"slices"

	"iljit/internal/cil"
	"iljit/internal/ir"
	"iljit/internal/metadata"
	"iljit/internal/trace"
)

// lowerer holds the state of one method body while its blocks are lowered.
type lowerer struct {
	u  *Unit
	m  *metadata.Method
	fn *ir.Function

	b    *ir.Builder
	init *ir.Builder

	// args and locals hold each slot as pushed by ldarg and ldloc.
	args   []Value
	locals []Value
	stack  *evalStack

	spans  []Span
	blocks map[int]*ir.Block
	// entries records the operand types live on the evaluation stack when
	// control enters a block, bottom first.
	entries map[int][]*metadata.Type

	cur     Span
	in      cil.Instruction
	pending []Value
	// entry is what remains of the current block's entry types.
	entry []*metadata.Type
	// inferring is set while lowering a block no lowered predecessor has
	// reached yet; pops below the entry extend inferred.
	inferring bool
	inferred  []*metadata.Type
}

// lowerBody emits fn's body and returns the number of IL blocks.
func (u *Unit) lowerBody(m *metadata.Method, fn *ir.Function, params []*metadata.Type) (int, error) {
	initBlock := fn.AddBlock("init")
	spans, blocks, err := u.partition(fn, m)
	if err != nil {
		return 0, err
	}
	l := &lowerer{
		u:       u,
		m:       m,
		fn:      fn,
		b:       ir.NewBuilder(initBlock),
		init:    ir.NewBuilder(initBlock),
		spans:   spans,
		blocks:  blocks,
		entries: map[int][]*metadata.Type{0: nil},
	}
	l.stack = newEvalStack(l.init, m.Body.MaxStack)
	if err := l.bindArgs(params); err != nil {
		return 0, err
	}
	if err := l.bindLocals(m.Body.Locals); err != nil {
		return 0, err
	}
	for _, sp := range spans {
		name := fmt.Sprintf("IL_%04x", sp.Start)
		span := trace.Begin(u.tracer, trace.ScopeBlock, name, u.parentSpan())
		if err := l.lowerBlock(sp); err != nil {
			span.Fail(err)
			return 0, err
		}
		span.IntAttr("instrs", len(sp.Instrs)).End("ok")
	}
	// Allocas land in the init block while blocks are lowered, so its
	// jump to the first block goes in last.
	l.init.Br(blocks[0])
	return len(spans), nil
}

func (l *lowerer) bindArgs(params []*metadata.Type) error {
	l.args = make([]Value, len(params))
	for i, t := range params {
		p := l.fn.Params[i]
		if t.IsByRef() {
			l.args[i] = Value{Type: t, IR: p}
			continue
		}
		slot := l.init.Alloca(p.Type(), fmt.Sprintf("arg%d", i))
		l.init.Store(p, slot)
		l.args[i] = Value{Type: t.MakeByRef(), IR: slot, slot: true}
	}
	return nil
}

// bindLocals allocates and zeroes one slot per local.
func (l *lowerer) bindLocals(locals []*metadata.Type) error {
	l.locals = make([]Value, len(locals))
	for i, t := range locals {
		var it *ir.Type
		if t.IsByRef() {
			elem, err := l.u.irType(t.Elem)
			if err != nil {
				return fmt.Errorf("local %d: %w", i, err)
			}
			it = ir.PointerTo(elem)
		} else {
			var err error
			if it, err = l.u.irType(t); err != nil {
				return fmt.Errorf("local %d: %w", i, err)
			}
		}
		size, err := l.u.sizeOf(it)
		if err != nil {
			return fmt.Errorf("local %d: %w", i, err)
		}
		slot := l.init.Alloca(it, fmt.Sprintf("loc%d", i))
		l.init.Memset(slot, 0, size)
		l.locals[i] = Value{Type: t.MakeByRef(), IR: slot, slot: true}
	}
	return nil
}

func (l *lowerer) lowerBlock(sp Span) error {
	l.cur = sp
	l.b.SetInsertPoint(l.blocks[sp.Start])
	l.pending = l.pending[:0]
	entry, known := l.entries[sp.Start]
	l.entry = slices.Clone(entry)
	l.inferring = !known
	l.inferred = nil

	for _, in := range sp.Instrs {
		l.in = in
		if err := l.lower(in); err != nil {
			return l.wrap(err)
		}
	}
	if sp.Fallthrough {
		if err := l.flush(sp.End); err != nil {
			return l.wrap(err)
		}
		l.b.Br(l.blocks[sp.End])
	}
	l.settleEntry()
	return nil
}

// wrap attaches the current instruction to err.
func (l *lowerer) wrap(err error) error {
	if ui, ok := err.(*UnsupportedInstructionError); ok && ui.Method == nil {
		ui.Method = l.m
		return ui
	}
	return &LoweringError{Method: l.m, Offset: l.in.Offset, Opcode: l.in.Op, Err: err}
}

func (l *lowerer) unsupported(reason string) error {
	return &UnsupportedInstructionError{Opcode: l.in.Op, Offset: l.in.Offset, Method: l.m, Reason: reason}
}

// settleEntry fixes the entry types of a block that was lowered before any
// predecessor reached it.
func (l *lowerer) settleEntry() {
	if l.inferring {
		l.entries[l.cur.Start] = l.inferred
		l.inferring = false
	}
}

func (l *lowerer) alloca(t *ir.Type, name string) ir.Value {
	return l.init.Alloca(t, name)
}

func (l *lowerer) push(v Value) { l.pending = append(l.pending, v) }

// popRaw takes the top operand as it is, reading it back from the runtime
// buffer when the block's own operands are exhausted. hint types operands
// of blocks whose entry is still being inferred.
func (l *lowerer) popRaw(hint *metadata.Type) (Value, error) {
	if n := len(l.pending); n > 0 {
		v := l.pending[n-1]
		l.pending = l.pending[:n-1]
		return v, nil
	}
	var t *metadata.Type
	switch n := len(l.entry); {
	case n > 0:
		t = l.entry[n-1]
		l.entry = l.entry[:n-1]
	case l.inferring && hint != nil:
		t = hint
		if t.Kind == metadata.KindStruct {
			t = t.MakeByRef()
		}
		l.inferred = append([]*metadata.Type{t}, l.inferred...)
	case l.inferring:
		return Value{}, errors.New("operand type unknown at block entry")
	default:
		return Value{}, errors.New("evaluation stack underflow")
	}
	it, err := l.u.irType(t)
	if err != nil {
		return Value{}, err
	}
	size, err := l.u.sizeOf(it)
	if err != nil {
		return Value{}, err
	}
	return Value{Type: t, IR: l.stack.pop(l.b, it, size)}, nil
}

// pop takes the top operand coerced to t. A nil t accepts any operand.
func (l *lowerer) pop(t *metadata.Type) (Value, error) {
	v, err := l.popRaw(t)
	if err != nil || t == nil {
		return v, err
	}
	return l.u.Cast(l.b, v, t)
}

// materialize reads a slot operand, turning it into the value it holds.
func (l *lowerer) materialize(v Value) Value {
	if !v.slot {
		return v
	}
	return Value{Type: v.Type.Elem, IR: l.b.Load(v.IR, "")}
}

// deref materializes v and loads through it once if it is a reference.
func (l *lowerer) deref(v Value) Value {
	v = l.materialize(v)
	if v.Type.IsByRef() {
		return Value{Type: v.Type.Elem, IR: l.b.Load(v.IR, "")}
	}
	return v
}

// settle reads every pending slot operand. It runs before anything that
// may write a local or argument, so earlier loads observe earlier contents.
func (l *lowerer) settle() {
	for i, v := range l.pending {
		l.pending[i] = l.materialize(v)
	}
}

// address turns v into a pointer to elem: references are reinterpreted,
// aggregates are spilled and native integers are converted.
func (l *lowerer) address(v Value, elem *metadata.Type) (ir.Value, error) {
	et, err := l.u.irType(elem)
	if err != nil {
		return nil, err
	}
	ptr := ir.PointerTo(et)
	if v.slot && v.Type.Elem == elem {
		return v.IR, nil
	}
	v = l.materialize(v)
	switch v.IR.Type().Kind {
	case ir.KindPointer:
		return l.b.PointerCast(v.IR, ptr, ""), nil
	case ir.KindStruct:
		tmp := l.alloca(v.IR.Type(), "spill")
		l.b.Store(v.IR, tmp)
		return l.b.PointerCast(tmp, ptr, ""), nil
	case ir.KindInt:
		return l.b.Cast(ir.OpIntToPtr, v.IR, ptr, ""), nil
	}
	return nil, fmt.Errorf("%s is not an address of %s", v.Type, elem)
}

// flush moves the block's pending operands to the runtime buffer and
// records the resulting stack shape as the entry of each successor.
func (l *lowerer) flush(succs ...int) error {
	l.settleEntry()
	shape := slices.Clone(l.entry)
	var depth int64
	for _, t := range shape {
		size, err := l.operandSize(t)
		if err != nil {
			return err
		}
		depth += size
	}
	for _, v := range l.pending {
		v = l.materialize(v)
		if v.IR.Type().Kind == ir.KindStruct {
			tmp := l.alloca(v.IR.Type(), "spill")
			l.b.Store(v.IR, tmp)
			v = Value{Type: v.Type.MakeByRef(), IR: tmp}
		}
		size, err := l.u.sizeOf(v.IR.Type())
		if err != nil {
			return err
		}
		depth += size
		if depth > l.stack.size {
			return fmt.Errorf("evaluation stack overflow: %d bytes live, buffer holds %d", depth, l.stack.size)
		}
		l.stack.push(l.b, v.IR, size)
		shape = append(shape, v.Type)
	}
	l.pending = l.pending[:0]

	for _, s := range succs {
		prev, known := l.entries[s]
		if !known {
			l.entries[s] = shape
			continue
		}
		same, err := l.sameShape(prev, shape)
		if err != nil {
			return err
		}
		if !same {
			return fmt.Errorf("stack shape %v does not match %v already recorded for IL_%04x", shape, prev, s)
		}
	}
	return nil
}

func (l *lowerer) operandSize(t *metadata.Type) (int64, error) {
	it, err := l.u.irType(t)
	if err != nil {
		return 0, err
	}
	return l.u.sizeOf(it)
}

// sameShape compares two stack shapes by backend type.
func (l *lowerer) sameShape(a, b []*metadata.Type) (bool, error) {
	if len(a) != len(b) {
		return false, nil
	}
	for i := range a {
		x, err := l.u.irType(a[i])
		if err != nil {
			return false, err
		}
		y, err := l.u.irType(b[i])
		if err != nil {
			return false, err
		}
		if x != y {
			return false, nil
		}
	}
	return true, nil
}
