package jit_test

import (
	"errors"
	"fmt"
	"testing"

	"iljit/internal/cil"
	"iljit/internal/exec"
	"iljit/internal/ir"
	"iljit/internal/jit"
	"iljit/internal/metadata"
)

var mappedPrimitives = []*metadata.Type{
	metadata.Bool, metadata.Int8, metadata.UInt8, metadata.Int16, metadata.UInt16,
	metadata.Int32, metadata.UInt32, metadata.Int64, metadata.UInt64,
	metadata.Float32, metadata.Float64, metadata.IntPtr, metadata.UIntPtr,
}

// castFunc builds a function that coerces its only parameter from one type
// to another and returns the result.
func castFunc(t *testing.T, u *jit.Unit, from, to *metadata.Type) string {
	t.Helper()
	src, err := u.CompileType(from)
	if err != nil {
		t.Fatal(err)
	}
	dst, err := u.CompileType(to)
	if err != nil {
		t.Fatal(err)
	}
	name := fmt.Sprintf("cast.%s.%s", from, to)
	fn, err := u.Module().AddFunction(name, ir.FuncType(dst.IR, src.IR))
	if err != nil {
		t.Fatal(err)
	}
	b := ir.NewBuilder(fn.AddBlock("entry"))
	v, err := u.Cast(b, jit.Value{Type: from, IR: fn.Params[0]}, to)
	if err != nil {
		t.Fatalf("Cast(%s -> %s): %v", from, to, err)
	}
	if v.Type != to {
		t.Fatalf("Cast(%s -> %s) produced %s", from, to, v.Type)
	}
	b.Ret(v.IR)
	if err := ir.VerifyFunction(fn); err != nil {
		t.Fatalf("Cast(%s -> %s) does not verify: %v\n%s", from, to, err, fn)
	}
	return name
}

func TestCast_AllPrimitivePairs(t *testing.T) {
	f := newFixture(t, false)
	for _, from := range mappedPrimitives {
		for _, to := range mappedPrimitives {
			castFunc(t, f.unit, from, to)
		}
	}
}

func TestCast_Values(t *testing.T) {
	tests := []struct {
		from, to *metadata.Type
		arg      uint64
		ok       func(uint64) bool
	}{
		{metadata.Int8, metadata.Int32, exec.Int(-1), func(v uint64) bool { return exec.I32(v) == -1 }},
		{metadata.UInt8, metadata.Int32, exec.Int(255), func(v uint64) bool { return exec.I32(v) == 255 }},
		{metadata.Bool, metadata.Int32, exec.Int(1), func(v uint64) bool { return exec.I32(v) == 1 }},
		{metadata.Int64, metadata.Int16, exec.Int(0x12345), func(v uint64) bool { return exec.I16(v) == 0x2345 }},
		{metadata.Float64, metadata.Int32, exec.Float64Arg(-7.9), func(v uint64) bool { return exec.I32(v) == -7 }},
		{metadata.Float64, metadata.UInt8, exec.Float64Arg(200), func(v uint64) bool { return exec.U8(v) == 200 }},
		{metadata.Int32, metadata.Float64, exec.Int(-3), func(v uint64) bool { return exec.F64(v) == -3 }},
		{metadata.UInt32, metadata.Float64, exec.Int(0xFFFFFFFF), func(v uint64) bool { return exec.F64(v) == 4294967295 }},
		{metadata.Float32, metadata.Float64, exec.Float32Arg(1.5), func(v uint64) bool { return exec.F64(v) == 1.5 }},
		{metadata.Int64, metadata.IntPtr, exec.Int(0x1000), func(v uint64) bool { return v == 0x1000 }},
	}
	f := newFixture(t, false)
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_to_%s", tt.from, tt.to), func(t *testing.T) {
			name := castFunc(t, f.unit, tt.from, tt.to)
			got, err := f.unit.Engine().Call(name, tt.arg)
			if err != nil {
				t.Fatal(err)
			}
			if !tt.ok(got) {
				t.Fatalf("%s(%#x) = %#x", name, tt.arg, got)
			}
		})
	}
}

func TestCast_References(t *testing.T) {
	f := newFixture(t, false)
	vec, _, _, _, _ := defineVec(f)
	fn, err := f.unit.Module().AddFunction("refs", ir.FuncType(ir.I64, ir.I32))
	if err != nil {
		t.Fatal(err)
	}
	b := ir.NewBuilder(fn.AddBlock("entry"))
	slot := b.Alloca(ir.I32, "")
	b.Store(fn.Params[0], slot)

	// T& to T loads; T& to a convertible U loads then converts.
	ref := jit.Value{Type: metadata.Int32.MakeByRef(), IR: slot}
	loaded, err := f.unit.Cast(b, ref, metadata.Int32)
	if err != nil || loaded.IR.Type() != ir.I32 {
		t.Fatalf("Int32& -> Int32 = %v, %v", loaded, err)
	}
	widened, err := f.unit.Cast(b, ref, metadata.Int64)
	if err != nil {
		t.Fatal(err)
	}
	// An integer becomes an address.
	addr, err := f.unit.Cast(b, loaded, vec.MakeByRef())
	if err != nil || !addr.IR.Type().IsPointer() {
		t.Fatalf("Int32 -> Vec& = %v, %v", addr, err)
	}
	b.Ret(widened.IR)
	if err := ir.VerifyFunction(fn); err != nil {
		t.Fatal(err)
	}
	got, err := f.unit.Engine().Call("refs", exec.Int(-9))
	if err != nil || exec.I64(got) != -9 {
		t.Fatalf("refs(-9) = %d, %v", exec.I64(got), err)
	}
}

func TestCast_Errors(t *testing.T) {
	f := newFixture(t, false)
	vec, _, _, _, _ := defineVec(f)
	i32p := metadata.Int32.MakePointer()
	tests := []struct {
		name     string
		from, to *metadata.Type
	}{
		{"int to struct", metadata.Int32, vec},
		{"float to pointer", metadata.Float32, i32p},
		{"pointer to double", i32p, metadata.Float64},
		{"byref to other byref", metadata.Int32.MakeByRef(), metadata.Int64.MakeByRef()},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := f.unit.CompileType(tt.from)
			if err != nil {
				t.Fatal(err)
			}
			fn, err := f.unit.Module().AddFunction(fmt.Sprintf("bad.%d", i), ir.FuncType(ir.Void(), src.IR))
			if err != nil {
				t.Fatal(err)
			}
			b := ir.NewBuilder(fn.AddBlock("entry"))
			_, err = f.unit.Cast(b, jit.Value{Type: tt.from, IR: fn.Params[0]}, tt.to)
			var ce *jit.CastError
			if !errors.As(err, &ce) || ce.From != tt.from || ce.To != tt.to {
				t.Fatalf("Cast(%s -> %s) = %v, want a CastError", tt.from, tt.to, err)
			}
		})
	}
}

func TestCast_NativeIntAndFloat(t *testing.T) {
	f := newFixture(t, false)
	for _, p := range [][2]*metadata.Type{
		{metadata.IntPtr, metadata.Float64},
		{metadata.Float32, metadata.UIntPtr},
		{metadata.Int32.MakePointer(), metadata.IntPtr},
	} {
		castFunc(t, f.unit, p[0], p[1])
	}
}

func TestCast_ConversionOperator(t *testing.T) {
	f := newFixture(t, false)
	meters := f.mod.DefineStruct("Units", "Meters")
	v := f.mod.DefineField(meters, "V", metadata.Int32)
	conv := f.mod.DefineMethod(meters, "op_Implicit", true, meters, metadata.Int32)
	conv.SetBody(8, []*metadata.Type{meters}, cil.NewAssembler().
		EmitU1(cil.LdlocaS, 0).Emit(cil.Ldarg0).EmitToken(cil.Stfld, v.Token).
		Emit(cil.Ldloc0).Emit(cil.Ret).MustBytes())

	// Meters FromInt(int x) => x; the coercion goes through op_Implicit.
	from := f.static("FromInt", metadata.Int32, []*metadata.Type{metadata.Int32}, []*metadata.Type{meters},
		cil.NewAssembler().
			Emit(cil.Ldarg0).Emit(cil.Stloc0).
			EmitU1(cil.LdlocaS, 0).EmitToken(cil.Ldfld, v.Token).
			Emit(cil.Ret))
	if got := exec.I32(f.invoke(t, from, exec.Int(17))); got != 17 {
		t.Fatalf("FromInt(17) = %d", got)
	}
	convFn, err := f.unit.GetMethod(conv)
	if err != nil {
		t.Fatal(err)
	}
	called := false
	fromFn, _ := f.unit.GetMethod(from)
	fromFn.Func.Instructions(func(in *ir.Instr) {
		if in.Op == ir.OpCall && in.Callee == convFn.Func {
			called = true
		}
	})
	if !called {
		t.Fatalf("op_Implicit not called:\n%s", fromFn.Func)
	}
}
