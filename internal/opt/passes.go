package opt

import (
	"fmt"

	"iljit/internal/ir"
)

// BasicAA marks allocas whose address escapes.
type BasicAA struct{}

func (BasicAA) Name() string { return "basic-aa" }

func (BasicAA) Run(f *ir.Function, a *Analysis) bool {
	users := uses(f)
	f.Instructions(func(in *ir.Instr) {
		if in.Op != ir.OpAlloca {
			return
		}
		escapes := len(in.Operands) > 0 // array allocas are addressed by offset
		for _, u := range users[ir.Value(in)] {
			switch {
			case u.Op == ir.OpLoad:
			case u.Op == ir.OpStore && u.Operands[1] == ir.Value(in) && u.Operands[0] != ir.Value(in):
			default:
				escapes = true
			}
		}
		a.Escapes[in] = escapes
	})
	return false
}

func promotable(a *Analysis, v ir.Value) (*ir.Instr, bool) {
	in, ok := v.(*ir.Instr)
	if !ok || in.Op != ir.OpAlloca {
		return nil, false
	}
	escapes, known := a.Escapes[in]
	return in, known && !escapes
}

// Mem2Reg forwards stored values to later loads in the same block and
// deletes allocas that are never read.
type Mem2Reg struct{}

func (Mem2Reg) Name() string { return "mem2reg" }

func (Mem2Reg) Run(f *ir.Function, a *Analysis) bool {
	changed := false
	for _, b := range f.Blocks {
		known := make(map[*ir.Instr]ir.Value)
		for _, in := range append([]*ir.Instr(nil), b.Instrs...) {
			switch in.Op {
			case ir.OpStore:
				if slot, ok := promotable(a, in.Operands[1]); ok {
					known[slot] = in.Operands[0]
				}
			case ir.OpLoad:
				slot, ok := promotable(a, in.Operands[0])
				if !ok {
					continue
				}
				if v, ok := known[slot]; ok && v.Type() == in.Typ {
					replaceAllUses(f, in, v)
					b.Remove(in)
					changed = true
				} else {
					known[slot] = in
				}
			}
		}
	}

	users := uses(f)
	for _, b := range f.Blocks {
		for _, in := range append([]*ir.Instr(nil), b.Instrs...) {
			if _, ok := promotable(a, in); !ok {
				continue
			}
			onlyStores := true
			for _, u := range users[ir.Value(in)] {
				if u.Op != ir.OpStore {
					onlyStores = false
					break
				}
			}
			if !onlyStores {
				continue
			}
			for _, u := range users[ir.Value(in)] {
				u.Block.Remove(u)
			}
			b.Remove(in)
			delete(a.Escapes, in)
			changed = true
		}
	}
	return changed
}

// InstCombine folds constant expressions, applies algebraic identities and
// removes unused side-effect-free instructions.
type InstCombine struct{}

func (InstCombine) Name() string { return "instcombine" }

func (InstCombine) Run(f *ir.Function, a *Analysis) bool {
	changed := false
	for progress := true; progress; {
		progress = false
		for _, b := range f.Blocks {
			for _, in := range append([]*ir.Instr(nil), b.Instrs...) {
				if v := simplify(in); v != nil {
					replaceAllUses(f, in, v)
					b.Remove(in)
					progress = true
				}
			}
		}
		if removeDead(f, a) {
			progress = true
		}
		changed = changed || progress
	}
	return changed
}

func simplify(in *ir.Instr) ir.Value {
	switch {
	case in.Op.IsBinary():
		x, y := in.Operands[0], in.Operands[1]
		xb, xc := ir.ConstBits(x)
		yb, yc := ir.ConstBits(y)
		if xc && yc {
			if r, err := ir.EvalBinary(in.Op, in.Typ, xb, yb); err == nil {
				return ir.ConstFromBits(in.Typ, r)
			}
			return nil
		}
		if ci, ok := y.(*ir.ConstInt); ok {
			switch {
			case (in.Op == ir.OpAdd || in.Op == ir.OpSub) && ci.V == 0:
				return x
			case in.Op == ir.OpMul && ci.V == 1:
				return x
			case in.Op == ir.OpMul && ci.V == 0:
				return ci
			}
		}
	case in.Op == ir.OpICmp || in.Op == ir.OpFCmp:
		xb, xc := ir.ConstBits(in.Operands[0])
		yb, yc := ir.ConstBits(in.Operands[1])
		if xc && yc {
			return ir.ConstFromBits(ir.I1, ir.BoolBits(ir.EvalCompare(in.Pred, in.Operands[0].Type(), xb, yb)))
		}
	case in.Op.IsCast():
		v := in.Operands[0]
		if v.Type() == in.Typ {
			return v
		}
		if bits, ok := ir.ConstBits(v); ok && in.Op != ir.OpIntToPtr && in.Op != ir.OpBitCast {
			if r, err := ir.EvalCast(in.Op, v.Type(), in.Typ, bits); err == nil {
				return ir.ConstFromBits(in.Typ, r)
			}
		}
	case in.Op == ir.OpSelect:
		if c, ok := in.Operands[0].(*ir.ConstInt); ok {
			if c.V != 0 {
				return in.Operands[1]
			}
			return in.Operands[2]
		}
		if in.Operands[1] == in.Operands[2] {
			return in.Operands[1]
		}
	}
	return nil
}

func removeDead(f *ir.Function, a *Analysis) bool {
	changed := false
	for again := true; again; {
		again = false
		users := uses(f)
		for _, b := range f.Blocks {
			for _, in := range append([]*ir.Instr(nil), b.Instrs...) {
				if !in.Op.IsPure() || !in.HasValue() || len(users[ir.Value(in)]) > 0 {
					continue
				}
				b.Remove(in)
				delete(a.Escapes, in)
				again = true
				changed = true
			}
		}
	}
	return changed
}

// Reassociate canonicalises commutative operations so constants sit on
// the right.
type Reassociate struct{}

func (Reassociate) Name() string { return "reassociate" }

func (Reassociate) Run(f *ir.Function, _ *Analysis) bool {
	changed := false
	f.Instructions(func(in *ir.Instr) {
		if len(in.Operands) != 2 || !ir.IsConst(in.Operands[0]) || ir.IsConst(in.Operands[1]) {
			return
		}
		switch in.Op {
		case ir.OpAdd, ir.OpMul, ir.OpFAdd, ir.OpFMul:
		case ir.OpICmp, ir.OpFCmp:
			in.Pred = in.Pred.Swapped()
		default:
			return
		}
		in.Operands[0], in.Operands[1] = in.Operands[1], in.Operands[0]
		changed = true
	})
	return changed
}

// GVN removes redundant pure computations and loads within a block.
type GVN struct{}

func (GVN) Name() string { return "gvn" }

func valueKey(in *ir.Instr) (string, bool) {
	if !in.Op.IsPure() || in.Op == ir.OpAlloca || in.Op == ir.OpLoad {
		return "", false
	}
	key := fmt.Sprintf("%d|%p|%d|%d", in.Op, in.Typ, in.Pred, in.Index)
	for _, op := range in.Operands {
		if bits, ok := ir.ConstBits(op); ok {
			key += fmt.Sprintf("|c%p:%d", op.Type(), bits)
			continue
		}
		key += fmt.Sprintf("|%p", op)
	}
	return key, true
}

func (GVN) Run(f *ir.Function, _ *Analysis) bool {
	changed := false
	for _, b := range f.Blocks {
		seen := make(map[string]*ir.Instr)
		loads := make(map[ir.Value]*ir.Instr)
		for _, in := range append([]*ir.Instr(nil), b.Instrs...) {
			switch in.Op {
			case ir.OpStore, ir.OpCall:
				clear(loads)
				continue
			case ir.OpLoad:
				if prev, ok := loads[in.Operands[0]]; ok && prev.Typ == in.Typ {
					replaceAllUses(f, in, prev)
					b.Remove(in)
					changed = true
					continue
				}
				loads[in.Operands[0]] = in
				continue
			}
			key, ok := valueKey(in)
			if !ok {
				continue
			}
			if prev, dup := seen[key]; dup {
				replaceAllUses(f, in, prev)
				b.Remove(in)
				changed = true
				continue
			}
			seen[key] = in
		}
	}
	return changed
}

func findLoops(f *ir.Function, a *Analysis) []Loop {
	if a.Dom == nil {
		a.Dom = ir.Dominators(f)
		a.Loops = nil
	}
	if a.Loops != nil {
		return a.Loops
	}
	preds := ir.Predecessors(f)
	loops := []Loop{}
	for _, b := range f.Blocks {
		t := b.Terminator()
		if t == nil || !a.Dom.Reachable(b) {
			continue
		}
		for _, h := range t.Successors() {
			if !a.Dom.Dominates(h, b) {
				continue
			}
			body := map[*ir.Block]bool{h: true}
			work := []*ir.Block{b}
			for len(work) > 0 {
				n := work[len(work)-1]
				work = work[:len(work)-1]
				if body[n] {
					continue
				}
				body[n] = true
				work = append(work, preds[n]...)
			}
			l := Loop{Header: h, Latch: b}
			for _, blk := range f.Blocks {
				if body[blk] {
					l.Blocks = append(l.Blocks, blk)
				}
			}
			loops = append(loops, l)
		}
	}
	a.Loops = loops
	return loops
}

// LoopUnroll records the natural loops of f in the analysis and leaves the
// function unchanged. Unrolling is left to the backend that consumes the IR.
type LoopUnroll struct{}

func (LoopUnroll) Name() string { return "loop-unroll" }

func (LoopUnroll) Run(f *ir.Function, a *Analysis) bool {
	findLoops(f, a)
	return false
}

// LoopVectorize records the natural loops of f like LoopUnroll and never
// rewrites them. Vectorization belongs to the backend.
type LoopVectorize struct{}

func (LoopVectorize) Name() string { return "loop-vectorize" }

func (LoopVectorize) Run(f *ir.Function, a *Analysis) bool {
	findLoops(f, a)
	return false
}
