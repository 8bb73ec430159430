package metadata

import (
	"fmt"
	"strings"
	"sync"
)

// Kind classifies a type descriptor.
type Kind uint8

const (
	// KindVoid is the absence of a value.
	KindVoid Kind = iota + 1
	// KindPrimitive is one of the built-in scalar types.
	KindPrimitive
	// KindPointer is an unmanaged pointer (T*).
	KindPointer
	// KindByRef is a managed reference (T&).
	KindByRef
	// KindClass is a reference type.
	KindClass
	// KindStruct is a value type laid out as an aggregate.
	KindStruct
	// KindGenericParam is a placeholder for a type argument (!0, !1, ...).
	KindGenericParam
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindPrimitive:
		return "primitive"
	case KindPointer:
		return "pointer"
	case KindByRef:
		return "byref"
	case KindClass:
		return "class"
	case KindStruct:
		return "struct"
	case KindGenericParam:
		return "generic-param"
	default:
		return "unknown"
	}
}

// Prim enumerates primitive types.
type Prim uint8

const (
	PrimNone Prim = iota
	PrimBool
	PrimChar
	PrimInt8
	PrimUInt8
	PrimInt16
	PrimUInt16
	PrimInt32
	PrimUInt32
	PrimInt64
	PrimUInt64
	PrimFloat32
	PrimFloat64
	PrimIntPtr
	PrimUIntPtr
)

var primNames = [...]string{
	PrimNone:    "<none>",
	PrimBool:    "bool",
	PrimChar:    "char",
	PrimInt8:    "int8",
	PrimUInt8:   "uint8",
	PrimInt16:   "int16",
	PrimUInt16:  "uint16",
	PrimInt32:   "int32",
	PrimUInt32:  "uint32",
	PrimInt64:   "int64",
	PrimUInt64:  "uint64",
	PrimFloat32: "float32",
	PrimFloat64: "float64",
	PrimIntPtr:  "native int",
	PrimUIntPtr: "native uint",
}

// String returns the IL spelling of the primitive.
func (p Prim) String() string {
	if int(p) < len(primNames) {
		return primNames[p]
	}
	return fmt.Sprintf("prim(%d)", p)
}

// Type describes a managed type. Identity is pointer identity: derived types
// (byref, pointer, generic instances) are interned so that two requests for
// the same shape yield the same *Type.
type Type struct {
	Name      string
	Namespace string
	Kind      Kind
	Prim      Prim
	Elem      *Type
	Token     Token
	Scope     Scope

	// GenericIndex is the parameter position for KindGenericParam.
	GenericIndex int
	// GenericArgs holds the parameters of an open definition or the
	// arguments of an instance.
	GenericArgs []*Type
	// GenericDef points at the open definition of an instance.
	GenericDef *Type

	fields  []*Field
	methods []*Method

	// lazy fills fields and methods of generic instances on first use.
	lazy func(*Type)
	once sync.Once

	mu        sync.Mutex
	byRef     *Type
	ptr       *Type
	instances []*Type
}

func (t *Type) load() {
	if t.lazy != nil {
		t.once.Do(func() { t.lazy(t) })
	}
}

// Fields returns all fields, static and instance, in declaration order.
func (t *Type) Fields() []*Field {
	t.load()
	return t.fields
}

// Methods returns all methods and constructors in declaration order.
func (t *Type) Methods() []*Method {
	t.load()
	return t.methods
}

// InstanceFields returns the instance fields in declaration order. This list
// defines aggregate member order everywhere.
func (t *Type) InstanceFields() []*Field {
	t.load()
	out := make([]*Field, 0, len(t.fields))
	for _, f := range t.fields {
		if !f.Static {
			out = append(out, f)
		}
	}
	return out
}

// FieldByName finds a field declared on t.
func (t *Type) FieldByName(name string) *Field {
	t.load()
	for _, f := range t.fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// MethodByName finds a method declared on t with the given parameter count.
// A negative count matches any arity.
func (t *Type) MethodByName(name string, params int) *Method {
	t.load()
	for _, m := range t.methods {
		if m.Name == name && (params < 0 || len(m.Params) == params) {
			return m
		}
	}
	return nil
}

// MakeByRef returns the interned T& for t.
func (t *Type) MakeByRef() *Type {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byRef == nil {
		t.byRef = &Type{Kind: KindByRef, Elem: t, Name: t.Name + "&", Namespace: t.Namespace, Scope: t.Scope}
	}
	return t.byRef
}

// MakePointer returns the interned T* for t.
func (t *Type) MakePointer() *Type {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ptr == nil {
		t.ptr = &Type{Kind: KindPointer, Elem: t, Name: t.Name + "*", Namespace: t.Namespace, Scope: t.Scope}
	}
	return t.ptr
}

// IsByRef reports whether t is a managed reference.
func (t *Type) IsByRef() bool { return t != nil && t.Kind == KindByRef }

// IsPointer reports whether t is an unmanaged pointer.
func (t *Type) IsPointer() bool { return t != nil && t.Kind == KindPointer }

// IsVoid reports whether t is void.
func (t *Type) IsVoid() bool { return t == nil || t.Kind == KindVoid }

// IsGeneric reports whether t is an open generic definition or an instance.
func (t *Type) IsGeneric() bool { return t != nil && len(t.GenericArgs) > 0 }

// IsOpen reports whether t mentions a generic parameter anywhere.
func (t *Type) IsOpen() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindGenericParam:
		return true
	case KindByRef, KindPointer:
		return t.Elem.IsOpen()
	}
	for _, a := range t.GenericArgs {
		if a.IsOpen() {
			return true
		}
	}
	return false
}

// FullName returns the namespace-qualified name without generic arguments.
func (t *Type) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// String renders t in IL-like notation.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindPrimitive:
		return t.Prim.String()
	case KindByRef:
		return t.Elem.String() + "&"
	case KindPointer:
		return t.Elem.String() + "*"
	case KindGenericParam:
		return fmt.Sprintf("!%d", t.GenericIndex)
	}
	name := t.FullName()
	if len(t.GenericArgs) == 0 {
		return name
	}
	args := make([]string, len(t.GenericArgs))
	for i, a := range t.GenericArgs {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s`%d<%s>", name, len(args), strings.Join(args, ","))
}

// Field describes a field of a type.
type Field struct {
	Name          string
	Type          *Type
	DeclaringType *Type
	Static        bool
	Token         Token
}

// String renders the field as Type::name.
func (f *Field) String() string {
	if f == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s::%s", f.DeclaringType, f.Name)
}
