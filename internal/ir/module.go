package ir

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// MemsetName is the memory fill intrinsic.
const MemsetName = "llvm.memset.p0i8.i64"

// Module owns named structs and functions. A Module is not safe for
// concurrent mutation.
type Module struct {
	Name string

	structs     map[string]*Type
	structOrder []*Type
	funcs       map[string]*Function
	funcOrder   []*Function
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{
		Name:    name,
		structs: make(map[string]*Type),
		funcs:   make(map[string]*Function),
	}
}

// symbol normalises a symbol name to NFC so that equal names written with
// different Unicode compositions map to one symbol.
func symbol(name string) string { return norm.NFC.String(name) }

// NamedStruct returns the struct called name, creating an opaque one if
// it does not exist yet.
func (m *Module) NamedStruct(name string) *Type {
	name = symbol(name)
	if t, ok := m.structs[name]; ok {
		return t
	}
	t := &Type{Kind: KindStruct, Name: name}
	m.structs[name] = t
	m.structOrder = append(m.structOrder, t)
	return t
}

// LookupStruct finds a named struct.
func (m *Module) LookupStruct(name string) (*Type, bool) {
	t, ok := m.structs[symbol(name)]
	return t, ok
}

// RemoveStruct drops a named struct. Existing references keep the type
// alive but it is no longer printed or found by name.
func (m *Module) RemoveStruct(name string) {
	name = symbol(name)
	t, ok := m.structs[name]
	if !ok {
		return
	}
	delete(m.structs, name)
	for i, s := range m.structOrder {
		if s == t {
			m.structOrder = append(m.structOrder[:i], m.structOrder[i+1:]...)
			break
		}
	}
}

// Structs returns the named structs in creation order.
func (m *Module) Structs() []*Type { return append([]*Type(nil), m.structOrder...) }

// AddFunction declares a function. It fails if the name is taken.
func (m *Module) AddFunction(name string, sig *Type) (*Function, error) {
	name = symbol(name)
	if sig == nil || sig.Kind != KindFunc {
		return nil, fmt.Errorf("function @%s: signature %v is not a function type", name, sig)
	}
	if _, ok := m.funcs[name]; ok {
		return nil, fmt.Errorf("function @%s already defined", name)
	}
	f := &Function{Name: name, Sig: sig, Module: m}
	for i, p := range sig.Params {
		f.Params = append(f.Params, &Param{Fn: f, Index: i, Typ: p})
	}
	m.funcs[name] = f
	m.funcOrder = append(m.funcOrder, f)
	return f, nil
}

// NamedFunction finds a function by name.
func (m *Module) NamedFunction(name string) (*Function, bool) {
	f, ok := m.funcs[symbol(name)]
	return f, ok
}

// RemoveFunction deletes a function from the module.
func (m *Module) RemoveFunction(name string) {
	name = symbol(name)
	f, ok := m.funcs[name]
	if !ok {
		return
	}
	delete(m.funcs, name)
	for i, g := range m.funcOrder {
		if g == f {
			m.funcOrder = append(m.funcOrder[:i], m.funcOrder[i+1:]...)
			break
		}
	}
}

// Functions returns functions in creation order.
func (m *Module) Functions() []*Function { return append([]*Function(nil), m.funcOrder...) }

// Memset returns the memory fill intrinsic, declaring it on first use.
func (m *Module) Memset() *Function {
	if f, ok := m.funcs[MemsetName]; ok {
		return f
	}
	f, _ := m.AddFunction(MemsetName, FuncType(Void(), PointerTo(I8), I8, I64, I1))
	return f
}

// Function is a function definition or declaration.
type Function struct {
	Name   string
	Sig    *Type
	Params []*Param
	Blocks []*Block
	Module *Module

	names  map[string]int
	nextID int
}

func (f *Function) Type() *Type { return PointerTo(f.Sig) }
func (f *Function) Ref() string { return "@" + quoteName(f.Name) }

// IsDeclaration reports whether f has no body.
func (f *Function) IsDeclaration() bool { return len(f.Blocks) == 0 }

// ReturnType returns the declared return type.
func (f *Function) ReturnType() *Type { return f.Sig.Ret }

// Entry returns the first block.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// uniqueName returns name, suffixed if it is already used in f.
func (f *Function) uniqueName(name string) string {
	if name == "" {
		return ""
	}
	if f.names == nil {
		f.names = make(map[string]int)
	}
	n, taken := f.names[name]
	f.names[name] = n + 1
	if !taken {
		return name
	}
	for {
		cand := fmt.Sprintf("%s.%d", name, n)
		if _, dup := f.names[cand]; !dup {
			f.names[cand] = 1
			return cand
		}
		n++
	}
}

// renumber assigns sequential ids to unnamed values.
func (f *Function) renumber() {
	id := 0
	f.Instructions(func(in *Instr) {
		if in.Name == "" && in.HasValue() {
			in.id = id
			id++
		}
	})
	f.nextID = id
}

// AddBlock appends a basic block. Names are made unique within f.
func (f *Function) AddBlock(name string) *Block {
	if name == "" {
		name = "bb"
	}
	b := &Block{Name: f.uniqueName(name), Fn: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

// Instructions calls fn for every instruction in block order.
func (f *Function) Instructions(fn func(*Instr)) {
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			fn(in)
		}
	}
}

// Block is a basic block.
type Block struct {
	Name   string
	Fn     *Function
	Instrs []*Instr
}

// Terminator returns the last instruction if it is a terminator.
func (b *Block) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}

// Label renders the block as a branch operand.
func (b *Block) Label() string { return "%" + quoteName(b.Name) }

// Remove deletes in from the block.
func (b *Block) Remove(in *Instr) {
	for i, cur := range b.Instrs {
		if cur == in {
			b.Instrs = append(b.Instrs[:i], b.Instrs[i+1:]...)
			in.Block = nil
			return
		}
	}
}
