package ir

import (
	"fmt"
	"math"
)

// Runtime values are raw 64-bit patterns: integers sign-extended from their
// width, float as float32 bits in the low word, double as float64 bits and
// pointers as addresses. The folding passes and the execution engine both
// evaluate through these helpers so they agree on every result.

// FloatBits encodes f for type t.
func FloatBits(t *Type, f float64) uint64 {
	if t.Kind == KindFloat {
		return uint64(math.Float32bits(float32(f)))
	}
	return math.Float64bits(f)
}

// BitsFloat decodes a float or double.
func BitsFloat(t *Type, v uint64) float64 {
	if t.Kind == KindFloat {
		return float64(math.Float32frombits(uint32(v)))
	}
	return math.Float64frombits(v)
}

// ConstBits returns the raw pattern of a constant.
func ConstBits(v Value) (uint64, bool) {
	switch c := v.(type) {
	case *ConstInt:
		return uint64(c.V), true
	case *ConstFloat:
		return FloatBits(c.Typ, c.V), true
	case *ConstNull:
		return 0, true
	}
	return 0, false
}

// ConstFromBits builds a constant of type t from a raw pattern.
func ConstFromBits(t *Type, v uint64) Value {
	switch t.Kind {
	case KindInt:
		return NewInt(t, int64(v))
	case KindFloat, KindDouble:
		return NewFloat(t, BitsFloat(t, v))
	case KindPointer:
		if v == 0 {
			return NewNull(t)
		}
	}
	return nil
}

// EvalBinary applies an arithmetic op to two values of type t.
func EvalBinary(op Op, t *Type, a, b uint64) (uint64, error) {
	switch op {
	case OpAdd:
		return uint64(SignExtend(int64(a+b), t.Bits)), nil
	case OpSub:
		return uint64(SignExtend(int64(a-b), t.Bits)), nil
	case OpMul:
		return uint64(SignExtend(int64(a*b), t.Bits)), nil
	case OpFAdd:
		return FloatBits(t, BitsFloat(t, a)+BitsFloat(t, b)), nil
	case OpFSub:
		return FloatBits(t, BitsFloat(t, a)-BitsFloat(t, b)), nil
	case OpFMul:
		return FloatBits(t, BitsFloat(t, a)*BitsFloat(t, b)), nil
	}
	return 0, fmt.Errorf("%s is not a binary op", op)
}

// EvalCompare applies a predicate to two values of type t.
func EvalCompare(p Pred, t *Type, a, b uint64) bool {
	if p.IsFloatPred() {
		x, y := BitsFloat(t, a), BitsFloat(t, b)
		unordered := math.IsNaN(x) || math.IsNaN(y)
		switch p {
		case PredOEQ:
			return !unordered && x == y
		case PredONE:
			return !unordered && x != y
		case PredOLT:
			return !unordered && x < y
		case PredOLE:
			return !unordered && x <= y
		case PredOGT:
			return !unordered && x > y
		case PredOGE:
			return !unordered && x >= y
		case PredUEQ:
			return unordered || x == y
		case PredUNE:
			return unordered || x != y
		case PredFULT:
			return unordered || x < y
		case PredFULE:
			return unordered || x <= y
		case PredFUGT:
			return unordered || x > y
		case PredFUGE:
			return unordered || x >= y
		}
		return false
	}
	bits := 64
	if t.Kind == KindInt {
		bits = t.Bits
	}
	sa, sb := SignExtend(int64(a), bits), SignExtend(int64(b), bits)
	ua, ub := ZeroExtend(int64(a), bits), ZeroExtend(int64(b), bits)
	switch p {
	case PredEQ:
		return ua == ub
	case PredNE:
		return ua != ub
	case PredSLT:
		return sa < sb
	case PredSLE:
		return sa <= sb
	case PredSGT:
		return sa > sb
	case PredSGE:
		return sa >= sb
	case PredULT:
		return ua < ub
	case PredULE:
		return ua <= ub
	case PredUGT:
		return ua > ub
	case PredUGE:
		return ua >= ub
	}
	return false
}

// BoolBits returns the i1 pattern of b.
func BoolBits(b bool) uint64 {
	if b {
		return uint64(SignExtend(1, 1))
	}
	return 0
}

// EvalCast converts v from one type to another.
func EvalCast(op Op, from, to *Type, v uint64) (uint64, error) {
	switch op {
	case OpTrunc, OpSExt:
		return uint64(SignExtend(int64(v), to.Bits)), nil
	case OpZExt:
		return uint64(SignExtend(int64(ZeroExtend(int64(v), from.Bits)), to.Bits)), nil
	case OpFPTrunc, OpFPExt:
		return FloatBits(to, BitsFloat(from, v)), nil
	case OpSIToFP:
		return FloatBits(to, float64(SignExtend(int64(v), from.Bits))), nil
	case OpUIToFP:
		return FloatBits(to, float64(ZeroExtend(int64(v), from.Bits))), nil
	case OpFPToSI:
		return uint64(SignExtend(int64(BitsFloat(from, v)), to.Bits)), nil
	case OpFPToUI:
		return uint64(SignExtend(int64(uint64(BitsFloat(from, v))), to.Bits)), nil
	case OpIntToPtr:
		return ZeroExtend(int64(v), from.Bits), nil
	case OpPtrToInt:
		return uint64(SignExtend(int64(v), to.Bits)), nil
	case OpBitCast:
		return v, nil
	}
	return 0, fmt.Errorf("%s is not a cast", op)
}
