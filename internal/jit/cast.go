package jit

import (
	"fmt"

	"iljit/internal/ir"
	"iljit/internal/metadata"
)

// Value is an operand during lowering: a source type paired with the
// backend value carrying it.
type Value struct {
	Type *metadata.Type
	IR   ir.Value

	// slot marks the address of a local or argument pushed by ldloc or
	// ldarg; it reads as the slot's current contents.
	slot bool
}

type castKey struct{ from, to *metadata.Type }

// convertible reports whether from may be coerced to to. Results are
// memoised for the lifetime of the unit.
func (u *Unit) convertible(from, to *metadata.Type) bool {
	key := castKey{from, to}
	if ok, hit := u.casts[key]; hit {
		return ok
	}
	ok := u.relation(from, to)
	u.casts[key] = ok
	return ok
}

func (u *Unit) relation(from, to *metadata.Type) bool {
	if from == to {
		return true
	}
	if from.IsByRef() && u.convertible(from.Elem, to) {
		return true
	}
	// Native ints count as integers, so only T* is kept away from floats.
	// A byref converts through its element and never to another byref.
	isInt, isFloat := metadata.IsInteger, metadata.IsFloatingPoint
	isPtr := metadata.IsPointerLike
	switch {
	case isInt(from) && isInt(to),
		isFloat(from) && isFloat(to),
		isPtr(from) && isPtr(to),
		isInt(from) && isPtr(to), isPtr(from) && isInt(to),
		isInt(from) && isFloat(to), isFloat(from) && isInt(to):
		return true
	}
	return metadata.HasConversion(from, to)
}

// Cast coerces v to target, emitting conversions through b.
func (u *Unit) Cast(b *ir.Builder, v Value, target *metadata.Type) (Value, error) {
	if v.Type == target {
		return v, nil
	}
	if !v.slot && isAddress(v.Type) && isAddress(target) && v.Type.Elem == target.Elem {
		return Value{Type: target, IR: v.IR}, nil
	}
	if v.Type.IsByRef() {
		if v.Type.Elem == target {
			return Value{Type: target, IR: b.Load(v.IR, "")}, nil
		}
		if u.convertible(v.Type.Elem, target) {
			return u.Cast(b, Value{Type: v.Type.Elem, IR: b.Load(v.IR, "")}, target)
		}
	}
	if target.IsByRef() && (v.Type == metadata.Int32 || v.Type == metadata.Int64) {
		dst, err := u.irType(target)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: target, IR: b.Cast(ir.OpIntToPtr, v.IR, dst, "")}, nil
	}
	if !u.convertible(v.Type, target) {
		return Value{}, &CastError{From: v.Type, To: target}
	}
	dst, err := u.irType(target)
	if err != nil {
		return Value{}, err
	}
	out, err := u.lowerCast(b, v, target, dst)
	if err != nil {
		return Value{}, err
	}
	return Value{Type: target, IR: out}, nil
}

func (u *Unit) lowerCast(b *ir.Builder, v Value, target *metadata.Type, dst *ir.Type) (ir.Value, error) {
	src := v.IR.Type()
	if src == dst {
		return v.IR, nil
	}
	if src.Kind == ir.KindStruct || dst.Kind == ir.KindStruct {
		return u.callConversion(b, v, target)
	}
	signed := isSigned(v.Type)
	switch src.Kind {
	case ir.KindInt:
		switch dst.Kind {
		case ir.KindInt:
			return b.IntCast(v.IR, dst, signed, ""), nil
		case ir.KindPointer:
			return b.Cast(ir.OpIntToPtr, v.IR, dst, ""), nil
		case ir.KindFloat, ir.KindDouble:
			if signed {
				return b.Cast(ir.OpSIToFP, v.IR, dst, ""), nil
			}
			return b.Cast(ir.OpUIToFP, v.IR, dst, ""), nil
		default:
			return nil, noLowering(v.Type, target, src, dst)
		}
	case ir.KindFloat, ir.KindDouble:
		switch dst.Kind {
		case ir.KindFloat, ir.KindDouble:
			return b.FPCast(v.IR, dst, ""), nil
		case ir.KindInt:
			if metadata.IsUnsigned(target) || target == metadata.Bool {
				return b.Cast(ir.OpFPToUI, v.IR, dst, ""), nil
			}
			return b.Cast(ir.OpFPToSI, v.IR, dst, ""), nil
		case ir.KindPointer:
			op := ir.OpFPToSI
			if metadata.IsUnsigned(target) {
				op = ir.OpFPToUI
			}
			return b.Cast(ir.OpIntToPtr, b.Cast(op, v.IR, ir.I64, ""), dst, ""), nil
		default:
			return nil, noLowering(v.Type, target, src, dst)
		}
	case ir.KindPointer:
		switch dst.Kind {
		case ir.KindPointer:
			return b.PointerCast(v.IR, dst, ""), nil
		case ir.KindInt:
			return b.Cast(ir.OpPtrToInt, v.IR, dst, ""), nil
		case ir.KindFloat, ir.KindDouble:
			n := b.Cast(ir.OpPtrToInt, v.IR, ir.I64, "")
			if v.Type == metadata.IntPtr {
				return b.Cast(ir.OpSIToFP, n, dst, ""), nil
			}
			return b.Cast(ir.OpUIToFP, n, dst, ""), nil
		default:
			return nil, noLowering(v.Type, target, src, dst)
		}
	case ir.KindVoid, ir.KindStruct, ir.KindFunc:
		return nil, noLowering(v.Type, target, src, dst)
	default:
		return nil, noLowering(v.Type, target, src, dst)
	}
}

// callConversion lowers a coercion through a user-defined op_Implicit or
// op_Explicit declared on either type.
func (u *Unit) callConversion(b *ir.Builder, v Value, target *metadata.Type) (ir.Value, error) {
	for _, owner := range []*metadata.Type{v.Type, target} {
		for _, m := range owner.Methods() {
			if !m.IsConversionOperator() || m.Params[0].Type != v.Type || m.Return != target {
				continue
			}
			cm, err := u.compileMethod(m)
			if err != nil {
				return nil, err
			}
			return b.Call(cm.Func, []ir.Value{v.IR}, ""), nil
		}
	}
	return nil, &CastError{From: v.Type, To: target, Reason: "no conversion operator"}
}

func noLowering(from, to *metadata.Type, src, dst *ir.Type) error {
	return &CastError{From: from, To: to, Reason: fmt.Sprintf("no lowering from %s to %s", src.Kind, dst.Kind)}
}

// isAddress reports whether t is a managed or unmanaged pointer. T& and T*
// share one representation.
func isAddress(t *metadata.Type) bool { return t.IsByRef() || t.IsPointer() }

// isSigned reports whether widening v sign-extends. Bool zero-extends.
func isSigned(t *metadata.Type) bool {
	if t == metadata.Bool || metadata.IsUnsigned(t) {
		return false
	}
	return t.Kind != metadata.KindPointer && t.Kind != metadata.KindByRef
}
