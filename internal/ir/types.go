package ir

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Kind is the closed set of backend type kinds. Code that switches over it
// must handle every case and fail in the default branch.
type Kind uint8

const (
	KindVoid Kind = iota + 1
	KindInt
	KindFloat
	KindDouble
	KindPointer
	KindStruct
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindPointer:
		return "pointer"
	case KindStruct:
		return "struct"
	case KindFunc:
		return "func"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// ErrBodyAlreadySet is returned when a named struct body is set twice.
var ErrBodyAlreadySet = errors.New("struct body already set")

// Type is an interned backend type; identity is pointer identity.
type Type struct {
	Kind Kind
	// Bits is the width of integer types.
	Bits int
	// Elem is the pointee of pointer types.
	Elem *Type

	// Name is set for named structs.
	Name    string
	fields  []*Type
	bodySet bool

	// Ret and Params describe function types.
	Ret    *Type
	Params []*Type

	mu  sync.Mutex
	ptr *Type
}

var (
	voidType   = &Type{Kind: KindVoid}
	floatType  = &Type{Kind: KindFloat}
	doubleType = &Type{Kind: KindDouble}

	internMu  sync.Mutex
	intTypes  = map[int]*Type{}
	funcTypes = map[string]*Type{}
)

// Void returns the no-value type.
func Void() *Type { return voidType }

// Float returns the 32-bit float type.
func Float() *Type { return floatType }

// Double returns the 64-bit float type.
func Double() *Type { return doubleType }

// Int returns the integer type of the given width.
func Int(bits int) *Type {
	internMu.Lock()
	defer internMu.Unlock()
	t, ok := intTypes[bits]
	if !ok {
		t = &Type{Kind: KindInt, Bits: bits}
		intTypes[bits] = t
	}
	return t
}

// Common integer types.
var (
	I1  = Int(1)
	I8  = Int(8)
	I16 = Int(16)
	I32 = Int(32)
	I64 = Int(64)
)

// PointerTo returns the interned pointer to elem.
func PointerTo(elem *Type) *Type {
	elem.mu.Lock()
	defer elem.mu.Unlock()
	if elem.ptr == nil {
		elem.ptr = &Type{Kind: KindPointer, Elem: elem}
	}
	return elem.ptr
}

// FuncType returns the interned function type.
func FuncType(ret *Type, params ...*Type) *Type {
	var key strings.Builder
	fmt.Fprintf(&key, "%p(", ret)
	for _, p := range params {
		fmt.Fprintf(&key, "%p,", p)
	}
	internMu.Lock()
	defer internMu.Unlock()
	t, ok := funcTypes[key.String()]
	if !ok {
		t = &Type{Kind: KindFunc, Ret: ret, Params: append([]*Type(nil), params...)}
		funcTypes[key.String()] = t
	}
	return t
}

// Fields returns the body of a struct type.
func (t *Type) Fields() []*Type { return t.fields }

// IsOpaque reports whether a named struct has no body yet.
func (t *Type) IsOpaque() bool { return t.Kind == KindStruct && !t.bodySet }

// SetBody sets the member list of a named struct. A body is set once.
func (t *Type) SetBody(fields ...*Type) error {
	if t.Kind != KindStruct {
		return fmt.Errorf("SetBody on %s type", t.Kind)
	}
	if t.bodySet {
		return fmt.Errorf("%%%s: %w", t.Name, ErrBodyAlreadySet)
	}
	t.fields = append([]*Type(nil), fields...)
	t.bodySet = true
	return nil
}

// IsInt reports whether t is an integer of any width.
func (t *Type) IsInt() bool { return t != nil && t.Kind == KindInt }

// IsFloating reports whether t is float or double.
func (t *Type) IsFloating() bool { return t != nil && (t.Kind == KindFloat || t.Kind == KindDouble) }

// IsPointer reports whether t is a pointer.
func (t *Type) IsPointer() bool { return t != nil && t.Kind == KindPointer }

// String renders t in LLVM typed-pointer syntax.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindInt:
		return fmt.Sprintf("i%d", t.Bits)
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindPointer:
		return t.Elem.String() + "*"
	case KindStruct:
		return "%" + quoteName(t.Name)
	case KindFunc:
		params := make([]string, len(t.Params))
		for i, p := range t.Params {
			params[i] = p.String()
		}
		return fmt.Sprintf("%s (%s)", t.Ret, strings.Join(params, ", "))
	default:
		return fmt.Sprintf("<%s>", t.Kind)
	}
}

// quoteName quotes a symbol that is not a plain LLVM identifier.
func quoteName(name string) string {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '$':
		default:
			return `"` + strings.ReplaceAll(name, `"`, `\22`) + `"`
		}
	}
	return name
}
