package jit

import (
	"fmt"

	"fortio.org/safecast"

	"iljit/internal/cil"
	"iljit/internal/ir"
	"iljit/internal/metadata"
)

type preds struct{ i, f ir.Pred }

var compares = map[cil.Opcode]preds{
	cil.Ceq:   {ir.PredEQ, ir.PredOEQ},
	cil.Cgt:   {ir.PredSGT, ir.PredOGT},
	cil.CgtUn: {ir.PredUGT, ir.PredFUGT},
	cil.Clt:   {ir.PredSLT, ir.PredOLT},
	cil.CltUn: {ir.PredULT, ir.PredFULT},
}

var branches = map[cil.Opcode]preds{
	cil.BeqS:   {ir.PredEQ, ir.PredOEQ},
	cil.BneUnS: {ir.PredNE, ir.PredUNE},
	cil.BgeS:   {ir.PredSGE, ir.PredOGE},
	cil.BgeUnS: {ir.PredUGE, ir.PredFUGE},
	cil.BgtS:   {ir.PredSGT, ir.PredOGT},
	cil.BgtUnS: {ir.PredUGT, ir.PredFUGT},
	cil.BleS:   {ir.PredSLE, ir.PredOLE},
	cil.BleUnS: {ir.PredULE, ir.PredFULE},
	cil.BltS:   {ir.PredSLT, ir.PredOLT},
	cil.BltUnS: {ir.PredULT, ir.PredFULT},
}

var conversions = map[cil.Opcode]*metadata.Type{
	cil.ConvI1: metadata.Int8,
	cil.ConvI2: metadata.Int16,
	cil.ConvI4: metadata.Int32,
	cil.ConvI8: metadata.Int64,
	cil.ConvI:  metadata.IntPtr,
	cil.ConvU1: metadata.UInt8,
	cil.ConvU2: metadata.UInt16,
	cil.ConvU4: metadata.UInt32,
	cil.ConvU8: metadata.UInt64,
	cil.ConvU:  metadata.UIntPtr,
	cil.ConvR4: metadata.Float32,
	cil.ConvR8: metadata.Float64,
}

var indirectLoads = map[cil.Opcode]*metadata.Type{
	cil.LdindI1: metadata.Int8,
	cil.LdindU1: metadata.UInt8,
	cil.LdindI2: metadata.Int16,
	cil.LdindU2: metadata.UInt16,
	cil.LdindI4: metadata.Int32,
	cil.LdindU4: metadata.UInt32,
	cil.LdindI8: metadata.Int64,
	cil.LdindI:  metadata.IntPtr,
	cil.LdindR4: metadata.Float32,
	cil.LdindR8: metadata.Float64,
}

var indirectStores = map[cil.Opcode]*metadata.Type{
	cil.StindI1: metadata.Int8,
	cil.StindI2: metadata.Int16,
	cil.StindI4: metadata.Int32,
	cil.StindI8: metadata.Int64,
	cil.StindI:  metadata.IntPtr,
	cil.StindR4: metadata.Float32,
	cil.StindR8: metadata.Float64,
}

func (l *lowerer) lower(in cil.Instruction) error {
	switch op := in.Op; {
	case op == cil.Nop:
		return nil

	case op >= cil.Ldarg0 && op <= cil.Ldarg3:
		return l.ldarg(int64(op - cil.Ldarg0))
	case op == cil.LdargS || op == cil.Ldarg:
		return l.ldarg(in.Int)
	case op == cil.LdargaS || op == cil.Ldarga:
		return l.ldarga(in.Int)
	case op == cil.StargS || op == cil.Starg:
		return l.starg(in.Int)
	case op >= cil.Ldloc0 && op <= cil.Ldloc3:
		return l.ldloc(int64(op-cil.Ldloc0), false)
	case op == cil.LdlocS || op == cil.Ldloc:
		return l.ldloc(in.Int, false)
	case op == cil.LdlocaS || op == cil.Ldloca:
		return l.ldloc(in.Int, true)
	case op >= cil.Stloc0 && op <= cil.Stloc3:
		return l.stloc(int64(op - cil.Stloc0))
	case op == cil.StlocS || op == cil.Stloc:
		return l.stloc(in.Int)

	case op == cil.LdcI4M1:
		l.push(Value{Type: metadata.Int32, IR: ir.NewInt(ir.I32, -1)})
	case op >= cil.LdcI40 && op <= cil.LdcI48:
		l.push(Value{Type: metadata.Int32, IR: ir.NewInt(ir.I32, int64(op-cil.LdcI40))})
	case op == cil.LdcI4S || op == cil.LdcI4:
		l.push(Value{Type: metadata.Int32, IR: ir.NewInt(ir.I32, in.Int)})
	case op == cil.LdcI8:
		l.push(Value{Type: metadata.Int64, IR: ir.NewInt(ir.I64, in.Int)})
	case op == cil.LdcR4:
		l.push(Value{Type: metadata.Float32, IR: ir.NewFloat(ir.Float(), in.Float)})
	case op == cil.LdcR8:
		l.push(Value{Type: metadata.Float64, IR: ir.NewFloat(ir.Double(), in.Float)})

	case op == cil.Dup:
		v, err := l.popRaw(nil)
		if err != nil {
			return err
		}
		l.push(v)
		l.push(v)
	case op == cil.Pop:
		_, err := l.popRaw(nil)
		return err

	case op == cil.Add || op == cil.Sub || op == cil.Mul:
		return l.arith(op)
	case compares[op] != preds{}:
		c, err := l.compare(compares[op])
		if err != nil {
			return err
		}
		l.push(Value{Type: metadata.Int32, IR: l.b.Select(c, ir.NewInt(ir.I32, 1), ir.NewInt(ir.I32, 0), "")})
	case conversions[op] != nil:
		return l.conv(conversions[op])
	case op == cil.ConvRUn:
		return l.convRUn()

	case indirectLoads[op] != nil:
		return l.ldobj(indirectLoads[op])
	case indirectStores[op] != nil:
		return l.stobj(indirectStores[op])
	case op == cil.Ldobj || op == cil.Stobj || op == cil.Sizeof || op == cil.Initobj:
		t, err := l.u.res.ResolveType(l.m, in.Token)
		if err != nil {
			return err
		}
		switch op {
		case cil.Ldobj:
			return l.ldobj(t)
		case cil.Stobj:
			return l.stobj(t)
		case cil.Sizeof:
			return l.sizeof(t)
		default:
			return l.initobj(t)
		}
	case op == cil.Ldfld || op == cil.Ldflda || op == cil.Stfld:
		return l.fieldAccess(op)
	case op == cil.Newobj:
		return l.newobj()
	case op == cil.Call:
		return l.call()

	case op == cil.Ret:
		return l.ret()
	case in.Info().Operand == cil.OperandBranch8:
		return l.branch(in)

	default:
		return l.unsupported("")
	}
	return nil
}

func slotIndex(n int64, slots []Value, what string) (Value, error) {
	i, err := safecast.Conv[int](n)
	if err != nil || i < 0 || i >= len(slots) {
		return Value{}, fmt.Errorf("%s %d out of range (%d declared)", what, n, len(slots))
	}
	return slots[i], nil
}

func (l *lowerer) ldarg(n int64) error {
	a, err := slotIndex(n, l.args, "argument")
	if err != nil {
		return err
	}
	l.push(a)
	return nil
}

func (l *lowerer) ldarga(n int64) error {
	a, err := slotIndex(n, l.args, "argument")
	if err != nil {
		return err
	}
	if !a.slot {
		return l.unsupported("address of a by-reference argument")
	}
	l.push(Value{Type: a.Type, IR: a.IR})
	return nil
}

func (l *lowerer) starg(n int64) error {
	a, err := slotIndex(n, l.args, "argument")
	if err != nil {
		return err
	}
	if !a.slot {
		return l.unsupported("store to a by-reference argument")
	}
	return l.storeSlot(a)
}

func (l *lowerer) ldloc(n int64, addr bool) error {
	v, err := slotIndex(n, l.locals, "local")
	if err != nil {
		return err
	}
	if addr {
		v.slot = false
	}
	l.push(v)
	return nil
}

func (l *lowerer) stloc(n int64) error {
	v, err := slotIndex(n, l.locals, "local")
	if err != nil {
		return err
	}
	return l.storeSlot(v)
}

func (l *lowerer) storeSlot(slot Value) error {
	l.settle()
	v, err := l.pop(slot.Type.Elem)
	if err != nil {
		return err
	}
	l.b.Store(v.IR, slot.IR)
	return nil
}

// operands pops the two operands of a binary instruction, dereferenced,
// with the second coerced to the type of the first popped.
func (l *lowerer) operands() (lhs, rhs Value, err error) {
	if rhs, err = l.popRaw(nil); err != nil {
		return
	}
	if lhs, err = l.popRaw(nil); err != nil {
		return
	}
	rhs, lhs = l.deref(rhs), l.deref(lhs)
	lhs, err = l.u.Cast(l.b, lhs, rhs.Type)
	return
}

func (l *lowerer) arith(op cil.Opcode) error {
	lhs, rhs, err := l.operands()
	if err != nil {
		return err
	}
	var out ir.Value
	switch rhs.IR.Type().Kind {
	case ir.KindInt:
		switch op {
		case cil.Add:
			out = l.b.Add(lhs.IR, rhs.IR, "")
		case cil.Sub:
			out = l.b.Sub(lhs.IR, rhs.IR, "")
		default:
			out = l.b.Mul(lhs.IR, rhs.IR, "")
		}
	case ir.KindFloat, ir.KindDouble:
		switch op {
		case cil.Add:
			out = l.b.FAdd(lhs.IR, rhs.IR, "")
		case cil.Sub:
			out = l.b.FSub(lhs.IR, rhs.IR, "")
		default:
			out = l.b.FMul(lhs.IR, rhs.IR, "")
		}
	default:
		return l.unsupported(fmt.Sprintf("arithmetic on %s", rhs.Type))
	}
	l.push(Value{Type: rhs.Type, IR: out})
	return nil
}

func (l *lowerer) compare(p preds) (ir.Value, error) {
	lhs, rhs, err := l.operands()
	if err != nil {
		return nil, err
	}
	switch rhs.IR.Type().Kind {
	case ir.KindInt, ir.KindPointer:
		return l.b.ICmp(p.i, lhs.IR, rhs.IR, ""), nil
	case ir.KindFloat, ir.KindDouble:
		return l.b.FCmp(p.f, lhs.IR, rhs.IR, ""), nil
	}
	return nil, l.unsupported(fmt.Sprintf("comparison of %s", rhs.Type))
}

// truth compares v against zero.
func (l *lowerer) truth(v Value, want bool) (ir.Value, error) {
	t := v.IR.Type()
	intPred, floatPred := ir.PredNE, ir.PredUNE
	if !want {
		intPred, floatPred = ir.PredEQ, ir.PredOEQ
	}
	switch t.Kind {
	case ir.KindInt:
		return l.b.ICmp(intPred, v.IR, ir.NewInt(t, 0), ""), nil
	case ir.KindPointer:
		return l.b.ICmp(intPred, v.IR, ir.NewNull(t), ""), nil
	case ir.KindFloat, ir.KindDouble:
		return l.b.FCmp(floatPred, v.IR, ir.NewFloat(t, 0), ""), nil
	}
	return nil, l.unsupported(fmt.Sprintf("branch on %s", v.Type))
}

func (l *lowerer) branch(in cil.Instruction) error {
	target, next := in.Target(), in.Next()
	if in.Op == cil.BrS {
		if err := l.flush(target); err != nil {
			return err
		}
		l.b.Br(l.blocks[target])
		return nil
	}
	var c ir.Value
	switch in.Op {
	case cil.BrtrueS, cil.BrfalseS:
		v, err := l.popRaw(nil)
		if err != nil {
			return err
		}
		if c, err = l.truth(l.deref(v), in.Op == cil.BrtrueS); err != nil {
			return err
		}
	default:
		p, ok := branches[in.Op]
		if !ok {
			return l.unsupported("")
		}
		var err error
		if c, err = l.compare(p); err != nil {
			return err
		}
	}
	if err := l.flush(target, next); err != nil {
		return err
	}
	l.b.CondBr(c, l.blocks[target], l.blocks[next])
	return nil
}

// ret spills operands left under the return value like any other
// terminator. A return has no successor to record a shape for.
func (l *lowerer) ret() error {
	rt := l.m.ReturnType()
	if rt.IsVoid() {
		if err := l.flush(); err != nil {
			return err
		}
		l.b.RetVoid()
		return nil
	}
	v, err := l.pop(rt)
	if err != nil {
		return err
	}
	if err := l.flush(); err != nil {
		return err
	}
	l.b.Ret(v.IR)
	return nil
}

func (l *lowerer) conv(target *metadata.Type) error {
	v, err := l.popRaw(nil)
	if err != nil {
		return err
	}
	if isAddress(v.Type) && !v.slot && (metadata.IsInteger(target) || metadata.IsPointerLike(target)) {
		// An address converted to a native integer keeps its bits.
		dst, err := l.u.irType(target)
		if err != nil {
			return err
		}
		out, err := l.u.lowerCast(l.b, v, target, dst)
		if err != nil {
			return err
		}
		l.push(Value{Type: target, IR: out})
		return nil
	}
	out, err := l.u.Cast(l.b, v, target)
	if err != nil {
		return err
	}
	l.push(out)
	return nil
}

func (l *lowerer) convRUn() error {
	v, err := l.popRaw(nil)
	if err != nil {
		return err
	}
	v = l.deref(v)
	if v.IR.Type().Kind == ir.KindInt {
		l.push(Value{Type: metadata.Float64, IR: l.b.Cast(ir.OpUIToFP, v.IR, ir.Double(), "")})
		return nil
	}
	out, err := l.u.Cast(l.b, v, metadata.Float64)
	if err != nil {
		return err
	}
	l.push(out)
	return nil
}

func (l *lowerer) ldobj(t *metadata.Type) error {
	v, err := l.popRaw(t.MakeByRef())
	if err != nil {
		return err
	}
	addr, err := l.address(v, t)
	if err != nil {
		return err
	}
	l.push(Value{Type: t, IR: l.b.Load(addr, "")})
	return nil
}

func (l *lowerer) stobj(t *metadata.Type) error {
	l.settle()
	v, err := l.pop(t)
	if err != nil {
		return err
	}
	dst, err := l.popRaw(t.MakeByRef())
	if err != nil {
		return err
	}
	addr, err := l.address(dst, t)
	if err != nil {
		return err
	}
	l.b.Store(v.IR, addr)
	return nil
}

func (l *lowerer) sizeof(t *metadata.Type) error {
	size, err := l.operandSize(t)
	if err != nil {
		return err
	}
	l.push(Value{Type: metadata.Int64, IR: ir.NewInt(ir.I64, size)})
	return nil
}

func (l *lowerer) initobj(t *metadata.Type) error {
	l.settle()
	v, err := l.popRaw(t.MakeByRef())
	if err != nil {
		return err
	}
	addr, err := l.address(v, t)
	if err != nil {
		return err
	}
	size, err := l.operandSize(t)
	if err != nil {
		return err
	}
	l.b.Memset(addr, 0, size)
	return nil
}

func (l *lowerer) fieldAccess(op cil.Opcode) error {
	f, err := l.u.res.ResolveField(l.m, l.in.Token)
	if err != nil {
		return err
	}
	if f.Static {
		return l.unsupported(fmt.Sprintf("static field %s", f))
	}
	if _, err := l.u.compileType(f.DeclaringType); err != nil {
		return err
	}
	idx, err := l.u.res.ResolveFieldIndex(f)
	if err != nil {
		return err
	}
	var v Value
	if op == cil.Stfld {
		l.settle()
		if v, err = l.pop(f.Type); err != nil {
			return err
		}
	}
	obj, err := l.popRaw(f.DeclaringType.MakeByRef())
	if err != nil {
		return err
	}
	base, err := l.address(obj, f.DeclaringType)
	if err != nil {
		return err
	}
	addr := l.b.StructGEP(base, idx, "")
	switch op {
	case cil.Ldfld:
		l.push(Value{Type: f.Type, IR: l.b.Load(addr, "")})
	case cil.Ldflda:
		l.push(Value{Type: f.Type.MakeByRef(), IR: addr})
	default:
		l.b.Store(v.IR, addr)
	}
	return nil
}

// callArgs pops the declared parameters of m in reverse order into args,
// leaving args[0] for the receiver of instance methods.
func (l *lowerer) callArgs(m *metadata.Method, cm *CompiledMethod) ([]ir.Value, error) {
	args := make([]ir.Value, len(cm.Func.Params))
	off := len(args) - len(m.Params)
	for i := len(m.Params) - 1; i >= 0; i-- {
		v, err := l.pop(m.Params[i].Type)
		if err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", i, m, err)
		}
		args[i+off] = v.IR
	}
	return args, nil
}

func (l *lowerer) newobj() error {
	ctor, err := l.u.res.ResolveMethod(l.m, l.in.Token)
	if err != nil {
		return err
	}
	if !ctor.Ctor {
		return fmt.Errorf("newobj target %s is not a constructor", ctor)
	}
	t := ctor.DeclaringType
	l.settle()
	cm, err := l.u.compileMethod(ctor)
	if err != nil {
		return err
	}
	it, err := l.u.irType(t)
	if err != nil {
		return err
	}
	size, err := l.u.sizeOf(it)
	if err != nil {
		return err
	}
	args, err := l.callArgs(ctor, cm)
	if err != nil {
		return err
	}
	slot := l.alloca(it, "new")
	l.b.Memset(slot, 0, size)
	args[0] = slot
	l.b.Call(cm.Func, args, "")
	l.push(Value{Type: t.MakeByRef(), IR: slot})
	return nil
}

func (l *lowerer) call() error {
	target, err := l.u.res.ResolveMethod(l.m, l.in.Token)
	if err != nil {
		return err
	}
	l.settle()
	cm, err := l.u.compileMethod(target)
	if err != nil {
		return err
	}
	args, err := l.callArgs(target, cm)
	if err != nil {
		return err
	}
	if target.IsInstance() {
		recv, err := l.popRaw(target.DeclaringType.MakeByRef())
		if err != nil {
			return err
		}
		if args[0], err = l.address(recv, target.DeclaringType); err != nil {
			return fmt.Errorf("receiver of %s: %w", target, err)
		}
	}
	r := l.b.Call(cm.Func, args, "")
	if rt := target.ReturnType(); !rt.IsVoid() {
		l.push(Value{Type: rt, IR: r})
	}
	return nil
}
