package ir

// Builder appends instructions at the end of a block. It performs no type
// checking beyond computing result types; malformed IR is reported by
// VerifyFunction.
type Builder struct {
	block *Block
}

// NewBuilder returns a builder positioned at the end of b.
func NewBuilder(b *Block) *Builder { return &Builder{block: b} }

// SetInsertPoint moves the builder to the end of b.
func (bd *Builder) SetInsertPoint(b *Block) { bd.block = b }

// Block returns the current insertion block.
func (bd *Builder) Block() *Block { return bd.block }

func (bd *Builder) insert(in *Instr) *Instr {
	b := bd.block
	in.Block = b
	if in.Name != "" {
		in.Name = b.Fn.uniqueName(in.Name)
	}
	in.id = b.Fn.nextID
	b.Fn.nextID++
	b.Instrs = append(b.Instrs, in)
	return in
}

func pointee(ptr Value) *Type {
	if t := ptr.Type(); t != nil && t.Kind == KindPointer {
		return t.Elem
	}
	return Void()
}

// Alloca reserves a stack slot of type t.
func (bd *Builder) Alloca(t *Type, name string) *Instr {
	return bd.insert(&Instr{Op: OpAlloca, Typ: PointerTo(t), Allocated: t, Name: name})
}

// ArrayAlloca reserves count contiguous elements of type t.
func (bd *Builder) ArrayAlloca(t *Type, count Value, name string) *Instr {
	return bd.insert(&Instr{Op: OpAlloca, Typ: PointerTo(t), Allocated: t, Operands: []Value{count}, Name: name})
}

// Load reads through ptr.
func (bd *Builder) Load(ptr Value, name string) *Instr {
	return bd.insert(&Instr{Op: OpLoad, Typ: pointee(ptr), Operands: []Value{ptr}, Name: name})
}

// Store writes v through ptr.
func (bd *Builder) Store(v, ptr Value) *Instr {
	return bd.insert(&Instr{Op: OpStore, Typ: Void(), Operands: []Value{v, ptr}})
}

// StructGEP computes the address of member index of the struct at ptr.
func (bd *Builder) StructGEP(ptr Value, index int, name string) *Instr {
	res := Void()
	if st := pointee(ptr); st.Kind == KindStruct && index >= 0 && index < len(st.fields) {
		res = PointerTo(st.fields[index])
	}
	return bd.insert(&Instr{Op: OpStructGEP, Typ: res, Operands: []Value{ptr}, Index: index, Name: name})
}

func (bd *Builder) binary(op Op, a, b Value, name string) *Instr {
	return bd.insert(&Instr{Op: op, Typ: a.Type(), Operands: []Value{a, b}, Name: name})
}

func (bd *Builder) Add(a, b Value, name string) *Instr  { return bd.binary(OpAdd, a, b, name) }
func (bd *Builder) Sub(a, b Value, name string) *Instr  { return bd.binary(OpSub, a, b, name) }
func (bd *Builder) Mul(a, b Value, name string) *Instr  { return bd.binary(OpMul, a, b, name) }
func (bd *Builder) FAdd(a, b Value, name string) *Instr { return bd.binary(OpFAdd, a, b, name) }
func (bd *Builder) FSub(a, b Value, name string) *Instr { return bd.binary(OpFSub, a, b, name) }
func (bd *Builder) FMul(a, b Value, name string) *Instr { return bd.binary(OpFMul, a, b, name) }

// ICmp compares integers or pointers.
func (bd *Builder) ICmp(p Pred, a, b Value, name string) *Instr {
	return bd.insert(&Instr{Op: OpICmp, Typ: I1, Pred: p, Operands: []Value{a, b}, Name: name})
}

// FCmp compares floating-point values.
func (bd *Builder) FCmp(p Pred, a, b Value, name string) *Instr {
	return bd.insert(&Instr{Op: OpFCmp, Typ: I1, Pred: p, Operands: []Value{a, b}, Name: name})
}

// Select picks a or b by the i1 condition c.
func (bd *Builder) Select(c, a, b Value, name string) *Instr {
	return bd.insert(&Instr{Op: OpSelect, Typ: a.Type(), Operands: []Value{c, a, b}, Name: name})
}

// Cast emits a conversion op of v to t.
func (bd *Builder) Cast(op Op, v Value, t *Type, name string) *Instr {
	return bd.insert(&Instr{Op: op, Typ: t, Operands: []Value{v}, Name: name})
}

// IntCast adjusts an integer to t's width: trunc when narrowing, sext or
// zext by signed when widening. Equal widths return v unchanged.
func (bd *Builder) IntCast(v Value, t *Type, signed bool, name string) Value {
	from := v.Type().Bits
	switch {
	case from > t.Bits:
		return bd.Cast(OpTrunc, v, t, name)
	case from < t.Bits && signed:
		return bd.Cast(OpSExt, v, t, name)
	case from < t.Bits:
		return bd.Cast(OpZExt, v, t, name)
	}
	return v
}

// FPCast adjusts a floating-point value to t's width.
func (bd *Builder) FPCast(v Value, t *Type, name string) Value {
	from, to := v.Type(), t
	switch {
	case from == to:
		return v
	case from.Kind == KindDouble && to.Kind == KindFloat:
		return bd.Cast(OpFPTrunc, v, t, name)
	default:
		return bd.Cast(OpFPExt, v, t, name)
	}
}

// PointerCast reinterprets a pointer as another pointer type.
func (bd *Builder) PointerCast(v Value, t *Type, name string) Value {
	if v.Type() == t {
		return v
	}
	return bd.Cast(OpBitCast, v, t, name)
}

// Call invokes fn with args.
func (bd *Builder) Call(fn *Function, args []Value, name string) *Instr {
	ret := fn.Sig.Ret
	if ret.Kind == KindVoid {
		name = ""
	}
	return bd.insert(&Instr{Op: OpCall, Typ: ret, Callee: fn, Operands: append([]Value(nil), args...), Name: name})
}

// Br jumps unconditionally to dest.
func (bd *Builder) Br(dest *Block) *Instr {
	return bd.insert(&Instr{Op: OpBr, Typ: Void(), Targets: []*Block{dest}})
}

// CondBr jumps to then when c is true and to els otherwise.
func (bd *Builder) CondBr(c Value, then, els *Block) *Instr {
	return bd.insert(&Instr{Op: OpCondBr, Typ: Void(), Operands: []Value{c}, Targets: []*Block{then, els}})
}

// Ret returns v.
func (bd *Builder) Ret(v Value) *Instr {
	return bd.insert(&Instr{Op: OpRet, Typ: Void(), Operands: []Value{v}})
}

// RetVoid returns from a void function.
func (bd *Builder) RetVoid() *Instr {
	return bd.insert(&Instr{Op: OpRet, Typ: Void()})
}

// Memset fills size bytes at dst with val through the intrinsic.
func (bd *Builder) Memset(dst Value, val byte, size int64) *Instr {
	fn := bd.block.Fn.Module.Memset()
	p := bd.PointerCast(dst, PointerTo(I8), "")
	return bd.Call(fn, []Value{p, NewInt(I8, int64(val)), NewInt(I64, size), NewInt(I1, 0)}, "")
}
