package jit

import (
	"errors"
	"fmt"

	"iljit/internal/ir"
	"iljit/internal/layout"
	"iljit/internal/metadata"
)

var primitiveTypes = map[metadata.Prim]*ir.Type{
	metadata.PrimBool:    ir.I1,
	metadata.PrimInt8:    ir.I8,
	metadata.PrimUInt8:   ir.I8,
	metadata.PrimInt16:   ir.I16,
	metadata.PrimUInt16:  ir.I16,
	metadata.PrimInt32:   ir.I32,
	metadata.PrimUInt32:  ir.I32,
	metadata.PrimInt64:   ir.I64,
	metadata.PrimUInt64:  ir.I64,
	metadata.PrimFloat32: ir.Float(),
	metadata.PrimFloat64: ir.Double(),
	metadata.PrimIntPtr:  ir.PointerTo(ir.I8),
	metadata.PrimUIntPtr: ir.PointerTo(ir.I8),
}

// aggregateName is the IR name of an aggregate: its rendered type followed
// by its metadata token.
func aggregateName(t *metadata.Type) string {
	return fmt.Sprintf("%s_0x%x", t, uint32(t.Token))
}

func (u *Unit) remember(t *metadata.Type, ct *CompiledType) *CompiledType {
	u.types[t] = ct
	if u.journal != nil {
		u.journal.types = append(u.journal.types, t)
	}
	return ct
}

func (u *Unit) compileType(t *metadata.Type) (*CompiledType, error) {
	if t == nil {
		t = metadata.Void
	}
	if ct, ok := u.types[t]; ok {
		return ct, nil
	}
	switch t.Kind {
	case metadata.KindVoid:
		return u.remember(t, &CompiledType{Source: t, IR: ir.Void()}), nil

	case metadata.KindByRef, metadata.KindPointer:
		if t.Elem.IsByRef() {
			return nil, &UnsupportedTypeError{Type: t, Reason: "reference to a reference"}
		}
		if t.Elem.IsVoid() {
			return u.remember(t, &CompiledType{Source: t, IR: ir.PointerTo(ir.I8)}), nil
		}
		elem, err := u.compileType(t.Elem)
		if err != nil {
			return nil, err
		}
		return u.remember(t, &CompiledType{Source: t, IR: ir.PointerTo(elem.IR)}), nil

	case metadata.KindClass:
		return nil, &UnsupportedTypeError{Type: t, Reason: "reference types are not supported"}

	case metadata.KindGenericParam:
		return nil, &UnsupportedTypeError{Type: t, Reason: "open generic parameter"}

	case metadata.KindPrimitive:
		it, ok := primitiveTypes[t.Prim]
		if !ok {
			return nil, &UnsupportedTypeError{Type: t, Reason: "primitive has no backend mapping"}
		}
		return u.remember(t, &CompiledType{Source: t, IR: it}), nil

	case metadata.KindStruct:
		return u.compileAggregate(t)
	}
	return nil, &UnsupportedTypeError{Type: t, Reason: fmt.Sprintf("kind %s", t.Kind)}
}

// compileAggregate registers the named struct before compiling its members
// so that aggregates reaching themselves through a pointer terminate.
func (u *Unit) compileAggregate(t *metadata.Type) (*CompiledType, error) {
	if t.IsOpen() {
		return nil, &UnsupportedTypeError{Type: t, Reason: "open generic type"}
	}
	name := u.symbolName(aggregateName(t), func(n string) bool {
		_, taken := u.mod.LookupStruct(n)
		return taken
	})
	st := u.mod.NamedStruct(name)
	ct := u.remember(t, &CompiledType{Source: t, IR: st, Members: t.InstanceFields()})

	u.open++
	body := make([]*ir.Type, len(ct.Members))
	for i, f := range ct.Members {
		mt, err := u.compileType(f.Type)
		if err != nil {
			u.open--
			return nil, fmt.Errorf("field %s: %w", f, err)
		}
		if mt.IR.Kind == ir.KindVoid {
			u.open--
			return nil, &UnsupportedTypeError{Type: t, Reason: fmt.Sprintf("field %s has no storage", f.Name)}
		}
		body[i] = mt.IR
	}
	u.open--
	if err := st.SetBody(body...); err != nil {
		return nil, err
	}
	// A member may still be opaque while an enclosing aggregate is being
	// built; the enclosing one repeats the check once it is complete.
	if _, err := u.layout.LayoutOf(st); err != nil {
		if u.open == 0 || !errors.Is(err, layout.ErrOpaque) {
			return nil, &UnsupportedTypeError{Type: t, Err: err}
		}
	}
	return ct, nil
}

// irType compiles t and returns only its backend type.
func (u *Unit) irType(t *metadata.Type) (*ir.Type, error) {
	ct, err := u.compileType(t)
	if err != nil {
		return nil, err
	}
	return ct.IR, nil
}

// sizeOf returns the backend size of t in bytes.
func (u *Unit) sizeOf(t *ir.Type) (int64, error) {
	return u.layout.SizeOf64(t)
}
