package metadata

import (
	"fmt"
	"strings"
	"sync"
)

type memberRef struct {
	parent *Type
	name   string
	field  bool
	params int
}

// Module is an in-memory metadata scope: token tables plus the types,
// fields and methods they point at. Tables are append-only; reads are safe
// for concurrent use with each other and with appends.
type Module struct {
	name string

	mu         sync.RWMutex
	typeDefs   []*Type
	typeSpecs  []*Type
	fields     []*Field
	methods    []*Method
	memberRefs []memberRef
}

var _ Scope = (*Module)(nil)

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{name: name}
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// String implements fmt.Stringer.
func (m *Module) String() string { return m.name }

// Types returns every defined type in definition order.
func (m *Module) Types() []*Type {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Type(nil), m.typeDefs...)
}

// DefineType adds a class or struct definition. A positive arity makes it an
// open generic definition whose GenericArgs are the parameters !0..!n-1.
func (m *Module) DefineType(ns, name string, kind Kind, arity int) *Type {
	if kind != KindStruct && kind != KindClass {
		panic(fmt.Sprintf("metadata: cannot define type of kind %s", kind))
	}
	t := &Type{Name: name, Namespace: ns, Kind: kind, Scope: m}
	for i := 0; i < arity; i++ {
		t.GenericArgs = append(t.GenericArgs, GenericParam(i))
	}
	m.mu.Lock()
	m.typeDefs = append(m.typeDefs, t)
	t.Token = MakeToken(TableTypeDef, uint32(len(m.typeDefs)))
	m.mu.Unlock()
	return t
}

// DefineStruct adds a non-generic value type.
func (m *Module) DefineStruct(ns, name string) *Type {
	return m.DefineType(ns, name, KindStruct, 0)
}

// DefineClass adds a non-generic reference type.
func (m *Module) DefineClass(ns, name string) *Type {
	return m.DefineType(ns, name, KindClass, 0)
}

// DefineField adds an instance field to owner.
func (m *Module) DefineField(owner *Type, name string, t *Type) *Field {
	return m.defineField(owner, name, t, false)
}

// DefineStaticField adds a static field to owner.
func (m *Module) DefineStaticField(owner *Type, name string, t *Type) *Field {
	return m.defineField(owner, name, t, true)
}

func (m *Module) defineField(owner *Type, name string, t *Type, static bool) *Field {
	f := &Field{Name: name, Type: t, DeclaringType: owner, Static: static}
	m.mu.Lock()
	m.fields = append(m.fields, f)
	f.Token = MakeToken(TableField, uint32(len(m.fields)))
	owner.fields = append(owner.fields, f)
	m.mu.Unlock()
	return f
}

// DefineMethod adds a method to owner.
func (m *Module) DefineMethod(owner *Type, name string, static bool, ret *Type, params ...*Type) *Method {
	if ret == nil {
		ret = Void
	}
	meth := &Method{Name: name, DeclaringType: owner, Return: ret, Static: static, Scope: m}
	for i, p := range params {
		meth.Params = append(meth.Params, Param{Name: fmt.Sprintf("arg%d", i), Type: p})
	}
	m.addMethod(owner, meth)
	return meth
}

// DefineConstructor adds an instance constructor to owner.
func (m *Module) DefineConstructor(owner *Type, params ...*Type) *Method {
	meth := &Method{Name: ".ctor", DeclaringType: owner, Return: Void, Ctor: true, Scope: m}
	for i, p := range params {
		meth.Params = append(meth.Params, Param{Name: fmt.Sprintf("arg%d", i), Type: p})
	}
	m.addMethod(owner, meth)
	return meth
}

func (m *Module) addMethod(owner *Type, meth *Method) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.methods = append(m.methods, meth)
	meth.Token = MakeToken(TableMethod, uint32(len(m.methods)))
	if owner != nil {
		owner.methods = append(owner.methods, meth)
	}
}

// TypeSpec adds a type specification row for t and returns its token.
func (m *Module) TypeSpec(t *Type) Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typeSpecs = append(m.typeSpecs, t)
	return MakeToken(TableTypeSpec, uint32(len(m.typeSpecs)))
}

// TypeToken returns a token naming t from this module: the TypeDef token for
// types defined here, otherwise a new TypeSpec.
func (m *Module) TypeToken(t *Type) Token {
	if t.Scope == Scope(m) && t.GenericDef == nil && (t.Kind == KindStruct || t.Kind == KindClass) {
		return t.Token
	}
	return m.TypeSpec(t)
}

// FieldRef adds a member reference to field name on parent. parent may be
// open (mention generic parameters) or live in another module.
func (m *Module) FieldRef(parent *Type, name string) Token {
	return m.addMemberRef(memberRef{parent: parent, name: name, field: true})
}

// MethodRef adds a member reference to a method on parent with the given
// number of parameters.
func (m *Module) MethodRef(parent *Type, name string, params int) Token {
	return m.addMemberRef(memberRef{parent: parent, name: name, params: params})
}

func (m *Module) addMemberRef(r memberRef) Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memberRefs = append(m.memberRefs, r)
	return MakeToken(TableMemberRef, uint32(len(m.memberRefs)))
}

func row[T any](table []T, tok Token) (T, bool) {
	var zero T
	r := tok.Row()
	if r == 0 || int(r) > len(table) {
		return zero, false
	}
	return table[r-1], true
}

func (m *Module) notFound(tok Token) error {
	return fmt.Errorf("%w: %s in module %s", ErrTokenNotFound, tok, m.name)
}

// ResolveType implements Scope.
func (m *Module) ResolveType(tok Token, typeArgs []*Type) (*Type, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var t *Type
	var ok bool
	switch tok.Table() {
	case TableTypeDef:
		t, ok = row(m.typeDefs, tok)
	case TableTypeSpec:
		t, ok = row(m.typeSpecs, tok)
		if ok && t.IsOpen() && typeArgs == nil {
			return nil, fmt.Errorf("%w: type spec %s in module %s", ErrOpenGeneric, tok, m.name)
		}
	case TableField, TableMethod, TableMemberRef:
		return nil, fmt.Errorf("%w: %s is not a type token", ErrKindMismatch, tok)
	}
	if !ok {
		return nil, m.notFound(tok)
	}
	if typeArgs != nil {
		t = Substitute(t, typeArgs)
	}
	return t, nil
}

// ResolveField implements Scope.
func (m *Module) ResolveField(tok Token, typeArgs []*Type) (*Field, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch tok.Table() {
	case TableField:
		f, ok := row(m.fields, tok)
		if !ok {
			return nil, m.notFound(tok)
		}
		return f, nil
	case TableMemberRef:
		r, ok := row(m.memberRefs, tok)
		if !ok {
			return nil, m.notFound(tok)
		}
		if !r.field {
			return nil, fmt.Errorf("%w: %s is a method reference", ErrKindMismatch, tok)
		}
		parent, err := m.refParent(r, tok, typeArgs)
		if err != nil {
			return nil, err
		}
		if f := parent.FieldByName(r.name); f != nil {
			return f, nil
		}
		return nil, fmt.Errorf("%w: field %s on %s", ErrTokenNotFound, r.name, parent)
	default:
		return nil, fmt.Errorf("%w: %s is not a field token", ErrKindMismatch, tok)
	}
}

// ResolveMethod implements Scope.
func (m *Module) ResolveMethod(tok Token, typeArgs []*Type) (*Method, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch tok.Table() {
	case TableMethod:
		meth, ok := row(m.methods, tok)
		if !ok {
			return nil, m.notFound(tok)
		}
		return meth, nil
	case TableMemberRef:
		r, ok := row(m.memberRefs, tok)
		if !ok {
			return nil, m.notFound(tok)
		}
		if r.field {
			return nil, fmt.Errorf("%w: %s is a field reference", ErrKindMismatch, tok)
		}
		parent, err := m.refParent(r, tok, typeArgs)
		if err != nil {
			return nil, err
		}
		if meth := parent.MethodByName(r.name, r.params); meth != nil {
			return meth, nil
		}
		return nil, fmt.Errorf("%w: method %s/%d on %s", ErrTokenNotFound, r.name, r.params, parent)
	default:
		return nil, fmt.Errorf("%w: %s is not a method token", ErrKindMismatch, tok)
	}
}

func (m *Module) refParent(r memberRef, tok Token, typeArgs []*Type) (*Type, error) {
	parent := r.parent
	if parent.IsOpen() {
		if typeArgs == nil {
			return nil, fmt.Errorf("%w: member ref %s in module %s", ErrOpenGeneric, tok, m.name)
		}
		parent = Substitute(parent, typeArgs)
	}
	return parent, nil
}

// FindMethod locates a method by selector "Namespace.Type::Name" or
// "Type::Name". An optional "/N" suffix selects by parameter count.
func (m *Module) FindMethod(selector string) (*Method, error) {
	typeName, methodName, ok := strings.Cut(selector, "::")
	if !ok {
		return nil, fmt.Errorf("invalid method selector %q (expected Type::Method)", selector)
	}
	arity := -1
	if name, n, hasArity := strings.Cut(methodName, "/"); hasArity {
		if _, err := fmt.Sscanf(n, "%d", &arity); err != nil {
			return nil, fmt.Errorf("invalid arity in selector %q", selector)
		}
		methodName = name
	}
	for _, t := range m.Types() {
		if t.FullName() != typeName && t.Name != typeName {
			continue
		}
		if meth := t.MethodByName(methodName, arity); meth != nil {
			return meth, nil
		}
	}
	return nil, fmt.Errorf("method %q not found in module %s", selector, m.name)
}
