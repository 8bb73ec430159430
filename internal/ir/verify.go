package ir

import (
	"errors"
	"fmt"
)

// VerifyFunction checks structural invariants of f and returns every
// violation joined into one error.
func VerifyFunction(f *Function) error {
	if f == nil {
		return errors.New("nil function")
	}
	if f.IsDeclaration() {
		return nil
	}
	v := &verifier{fn: f, owned: make(map[*Block]bool, len(f.Blocks)), pos: make(map[*Instr]int)}
	for _, b := range f.Blocks {
		v.owned[b] = true
		for i, in := range b.Instrs {
			v.pos[in] = i
		}
	}
	v.dom = Dominators(f)
	for _, b := range f.Blocks {
		v.block(b)
	}
	return errors.Join(v.errs...)
}

type verifier struct {
	fn    *Function
	owned map[*Block]bool
	pos   map[*Instr]int
	dom   *DomTree
	errs  []error
}

func (v *verifier) failf(b *Block, in *Instr, format string, args ...any) {
	where := b.Label()
	if in != nil {
		where += fmt.Sprintf(": %q", in.String())
	}
	v.errs = append(v.errs, fmt.Errorf("%s: %s", where, fmt.Sprintf(format, args...)))
}

func (v *verifier) block(b *Block) {
	if len(b.Instrs) == 0 {
		v.failf(b, nil, "empty block")
		return
	}
	for i, in := range b.Instrs {
		last := i == len(b.Instrs)-1
		if in.Op.IsTerminator() && !last {
			v.failf(b, in, "terminator in the middle of a block")
		}
		if last && !in.Op.IsTerminator() {
			v.failf(b, in, "block does not end in a terminator")
		}
		if in.Block != b {
			v.failf(b, in, "instruction parent mismatch")
		}
		v.operands(b, i, in)
		v.instr(b, in)
	}
}

func (v *verifier) operands(b *Block, idx int, in *Instr) {
	for _, op := range in.Operands {
		switch def := op.(type) {
		case nil:
			v.failf(b, in, "nil operand")
		case *Instr:
			if def.Block == nil || !v.owned[def.Block] {
				v.failf(b, in, "operand %s is not defined in this function", def.Ref())
				continue
			}
			if !def.HasValue() {
				v.failf(b, in, "operand %s produces no value", def.Ref())
				continue
			}
			if def.Block == b {
				if v.pos[def] >= idx {
					v.failf(b, in, "operand %s does not dominate its use", def.Ref())
				}
			} else if !v.dom.Dominates(def.Block, b) {
				v.failf(b, in, "operand %s does not dominate its use", def.Ref())
			}
		case *Param:
			if def.Fn != v.fn {
				v.failf(b, in, "parameter %s belongs to another function", def.Ref())
			}
		case *Function:
			if def.Module != v.fn.Module {
				v.failf(b, in, "function %s belongs to another module", def.Ref())
			}
		}
		if op != nil && op.Type() == nil {
			v.failf(b, in, "operand %s has no type", op.Ref())
		}
	}
	for _, t := range in.Targets {
		if t == nil || !v.owned[t] {
			v.failf(b, in, "branch target outside of function")
		}
	}
}

func (v *verifier) want(b *Block, in *Instr, n int) bool {
	if len(in.Operands) != n {
		v.failf(b, in, "expected %d operands, got %d", n, len(in.Operands))
		return false
	}
	for _, op := range in.Operands {
		if op == nil || op.Type() == nil {
			return false
		}
	}
	return true
}

func (v *verifier) instr(b *Block, in *Instr) {
	switch in.Op {
	case OpAlloca:
		if in.Allocated == nil || in.Allocated.Kind == KindVoid || in.Allocated.Kind == KindFunc || in.Allocated.IsOpaque() {
			v.failf(b, in, "cannot allocate %v", in.Allocated)
		}
		if len(in.Operands) == 1 && in.Operands[0] != nil && !in.Operands[0].Type().IsInt() {
			v.failf(b, in, "array size must be an integer")
		}
	case OpLoad:
		if !v.want(b, in, 1) {
			return
		}
		p := in.Operands[0].Type()
		if !p.IsPointer() {
			v.failf(b, in, "load from non-pointer %s", p)
		} else if p.Elem != in.Typ || p.Elem.Kind == KindVoid || p.Elem.IsOpaque() {
			v.failf(b, in, "load of %s through %s", in.Typ, p)
		}
	case OpStore:
		if !v.want(b, in, 2) {
			return
		}
		val, p := in.Operands[0].Type(), in.Operands[1].Type()
		if !p.IsPointer() {
			v.failf(b, in, "store to non-pointer %s", p)
		} else if p.Elem != val {
			v.failf(b, in, "stored value type %s does not match pointer %s", val, p)
		}
	case OpStructGEP:
		if !v.want(b, in, 1) {
			return
		}
		p := in.Operands[0].Type()
		if !p.IsPointer() || p.Elem.Kind != KindStruct {
			v.failf(b, in, "struct GEP on %s", p)
		} else if p.Elem.IsOpaque() || in.Index < 0 || in.Index >= len(p.Elem.fields) {
			v.failf(b, in, "member index %d out of range for %s", in.Index, p.Elem)
		}
	case OpAdd, OpSub, OpMul:
		if v.want(b, in, 2) {
			v.sameTypes(b, in, func(t *Type) bool { return t.IsInt() }, "integer")
		}
	case OpFAdd, OpFSub, OpFMul:
		if v.want(b, in, 2) {
			v.sameTypes(b, in, (*Type).IsFloating, "floating-point")
		}
	case OpICmp:
		if v.want(b, in, 2) {
			v.sameTypes(b, in, func(t *Type) bool { return t.IsInt() || t.IsPointer() }, "integer or pointer")
			if in.Pred == 0 || in.Pred.IsFloatPred() {
				v.failf(b, in, "invalid icmp predicate %s", in.Pred)
			}
		}
	case OpFCmp:
		if v.want(b, in, 2) {
			v.sameTypes(b, in, (*Type).IsFloating, "floating-point")
			if !in.Pred.IsFloatPred() {
				v.failf(b, in, "invalid fcmp predicate %s", in.Pred)
			}
		}
	case OpSelect:
		if !v.want(b, in, 3) {
			return
		}
		if in.Operands[0].Type() != I1 {
			v.failf(b, in, "select condition must be i1")
		}
		if in.Operands[1].Type() != in.Operands[2].Type() || in.Typ != in.Operands[1].Type() {
			v.failf(b, in, "select arms disagree")
		}
	case OpTrunc, OpZExt, OpSExt, OpFPTrunc, OpFPExt, OpSIToFP, OpUIToFP, OpFPToSI, OpFPToUI, OpIntToPtr, OpPtrToInt, OpBitCast:
		if v.want(b, in, 1) && !validCast(in.Op, in.Operands[0].Type(), in.Typ) {
			v.failf(b, in, "invalid %s from %s to %s", in.Op, in.Operands[0].Type(), in.Typ)
		}
	case OpCall:
		v.call(b, in)
	case OpBr:
		if len(in.Targets) != 1 {
			v.failf(b, in, "br needs one target")
		}
	case OpCondBr:
		if len(in.Targets) != 2 {
			v.failf(b, in, "conditional br needs two targets")
		}
		if v.want(b, in, 1) && in.Operands[0].Type() != I1 {
			v.failf(b, in, "branch condition must be i1, got %s", in.Operands[0].Type())
		}
	case OpRet:
		ret := v.fn.Sig.Ret
		switch {
		case ret.Kind == KindVoid && len(in.Operands) != 0:
			v.failf(b, in, "void function returns a value")
		case ret.Kind != KindVoid && len(in.Operands) != 1:
			v.failf(b, in, "missing return value of type %s", ret)
		case len(in.Operands) == 1 && in.Operands[0] != nil && in.Operands[0].Type() != ret:
			v.failf(b, in, "returned %s from function returning %s", in.Operands[0].Type(), ret)
		}
	default:
		v.failf(b, in, "unknown opcode %s", in.Op)
	}
}

func (v *verifier) sameTypes(b *Block, in *Instr, ok func(*Type) bool, what string) {
	a, c := in.Operands[0].Type(), in.Operands[1].Type()
	if a != c {
		v.failf(b, in, "operand types %s and %s differ", a, c)
		return
	}
	if !ok(a) {
		v.failf(b, in, "operands must be %s, got %s", what, a)
	}
}

func (v *verifier) call(b *Block, in *Instr) {
	fn := in.Callee
	if fn == nil {
		v.failf(b, in, "call without callee")
		return
	}
	if fn.Module != v.fn.Module {
		v.failf(b, in, "callee %s belongs to another module", fn.Ref())
	}
	params := fn.Sig.Params
	if len(in.Operands) != len(params) {
		v.failf(b, in, "%s expects %d arguments, got %d", fn.Ref(), len(params), len(in.Operands))
		return
	}
	for i, a := range in.Operands {
		if a != nil && a.Type() != params[i] {
			v.failf(b, in, "argument %d has type %s, want %s", i, a.Type(), params[i])
		}
	}
	if in.Typ != fn.Sig.Ret {
		v.failf(b, in, "call result type %s does not match %s", in.Typ, fn.Sig.Ret)
	}
}

func validCast(op Op, from, to *Type) bool {
	if from == nil || to == nil {
		return false
	}
	switch op {
	case OpTrunc:
		return from.IsInt() && to.IsInt() && from.Bits > to.Bits
	case OpZExt, OpSExt:
		return from.IsInt() && to.IsInt() && from.Bits < to.Bits
	case OpFPTrunc:
		return from.Kind == KindDouble && to.Kind == KindFloat
	case OpFPExt:
		return from.Kind == KindFloat && to.Kind == KindDouble
	case OpSIToFP, OpUIToFP:
		return from.IsInt() && to.IsFloating()
	case OpFPToSI, OpFPToUI:
		return from.IsFloating() && to.IsInt()
	case OpIntToPtr:
		return from.IsInt() && to.IsPointer()
	case OpPtrToInt:
		return from.IsPointer() && to.IsInt()
	case OpBitCast:
		return from.IsPointer() && to.IsPointer()
	}
	return false
}
