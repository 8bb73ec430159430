package ir_test

import (
	"errors"
	"strings"
	"testing"

	"iljit/internal/ir"
)

func buildAdd(t *testing.T) (*ir.Module, *ir.Function) {
	t.Helper()
	m := ir.NewModule("test")
	f, err := m.AddFunction("add", ir.FuncType(ir.I32, ir.I32, ir.I32))
	if err != nil {
		t.Fatal(err)
	}
	b := ir.NewBuilder(f.AddBlock("entry"))
	slot := b.Alloca(ir.I32, "tmp")
	sum := b.Add(f.Params[0], f.Params[1], "")
	b.Store(sum, slot)
	b.Ret(b.Load(slot, ""))
	return m, f
}

func TestTypesInterned(t *testing.T) {
	if ir.Int(32) != ir.I32 {
		t.Fatal("Int(32) not interned")
	}
	if ir.PointerTo(ir.I8) != ir.PointerTo(ir.I8) {
		t.Fatal("pointer types not interned")
	}
	if ir.FuncType(ir.I32, ir.I8) != ir.FuncType(ir.I32, ir.I8) {
		t.Fatal("function types not interned")
	}
	if ir.FuncType(ir.I32, ir.I8) == ir.FuncType(ir.I32, ir.I16) {
		t.Fatal("distinct function types collapsed")
	}
}

func TestNamedStruct_BodyOnce(t *testing.T) {
	m := ir.NewModule("test")
	s := m.NamedStruct("Geo.Vector3_0x02000001")
	if m.NamedStruct("Geo.Vector3_0x02000001") != s {
		t.Fatal("NamedStruct did not return the existing struct")
	}
	if !s.IsOpaque() {
		t.Fatal("new struct should be opaque")
	}
	if err := s.SetBody(ir.Float(), ir.Float(), ir.Float()); err != nil {
		t.Fatal(err)
	}
	if err := s.SetBody(ir.I32); !errors.Is(err, ir.ErrBodyAlreadySet) {
		t.Fatalf("second SetBody = %v, want ErrBodyAlreadySet", err)
	}
	if len(s.Fields()) != 3 {
		t.Fatal("body was mutated by the failed SetBody")
	}
	m.RemoveStruct("Geo.Vector3_0x02000001")
	if _, ok := m.LookupStruct("Geo.Vector3_0x02000001"); ok {
		t.Fatal("struct still registered after RemoveStruct")
	}
}

func TestPrint(t *testing.T) {
	m, _ := buildAdd(t)
	st := m.NamedStruct("Pair")
	_ = st.SetBody(ir.I8, ir.PointerTo(st))
	out := m.String()
	for _, want := range []string{
		"%Pair = type { i8, %Pair* }",
		"define i32 @add(i32 %arg0, i32 %arg1) {",
		"entry:",
		"%tmp = alloca i32",
		"%0 = add i32 %arg0, %arg1",
		"store i32 %0, i32* %tmp",
		"%1 = load i32, i32* %tmp",
		"ret i32 %1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("printed module missing %q:\n%s", want, out)
		}
	}
}

func TestPrint_QuotesSymbols(t *testing.T) {
	m := ir.NewModule("test")
	f, _ := m.AddFunction("App.Program::Main", ir.FuncType(ir.Void()))
	b := ir.NewBuilder(f.AddBlock("entry"))
	b.Memset(b.Alloca(ir.I64, ""), 0, 8)
	b.RetVoid()
	out := m.String()
	for _, want := range []string{
		`define void @"App.Program::Main"() {`,
		"declare void @llvm.memset.p0i8.i64(i8*, i8, i64, i1)",
		"bitcast i64* %0 to i8*",
		"call void @llvm.memset.p0i8.i64(i8* %1, i8 0, i64 8, i1 false)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("printed module missing %q:\n%s", want, out)
		}
	}
}

func TestVerify_OK(t *testing.T) {
	_, f := buildAdd(t)
	if err := ir.VerifyFunction(f); err != nil {
		t.Fatalf("VerifyFunction: %v", err)
	}
}

func TestVerify_Violations(t *testing.T) {
	tests := []struct {
		name  string
		build func(m *ir.Module, f *ir.Function)
		want  string
	}{
		{"missing terminator", func(m *ir.Module, f *ir.Function) {
			b := ir.NewBuilder(f.AddBlock("entry"))
			b.Alloca(ir.I32, "")
		}, "does not end in a terminator"},
		{"code after terminator", func(m *ir.Module, f *ir.Function) {
			b := ir.NewBuilder(f.AddBlock("entry"))
			b.Ret(ir.NewInt(ir.I32, 0))
			b.Ret(ir.NewInt(ir.I32, 1))
		}, "terminator in the middle"},
		{"store type mismatch", func(m *ir.Module, f *ir.Function) {
			b := ir.NewBuilder(f.AddBlock("entry"))
			p := b.Alloca(ir.I32, "")
			b.Store(ir.NewInt(ir.I64, 1), p)
			b.Ret(ir.NewInt(ir.I32, 0))
		}, "does not match pointer"},
		{"binary operand mismatch", func(m *ir.Module, f *ir.Function) {
			b := ir.NewBuilder(f.AddBlock("entry"))
			b.Add(ir.NewInt(ir.I32, 1), ir.NewInt(ir.I64, 1), "")
			b.Ret(ir.NewInt(ir.I32, 0))
		}, "differ"},
		{"return type", func(m *ir.Module, f *ir.Function) {
			b := ir.NewBuilder(f.AddBlock("entry"))
			b.Ret(ir.NewFloat(ir.Double(), 1))
		}, "returned double"},
		{"condition not i1", func(m *ir.Module, f *ir.Function) {
			entry := f.AddBlock("entry")
			exit := f.AddBlock("exit")
			ir.NewBuilder(entry).CondBr(ir.NewInt(ir.I32, 1), exit, exit)
			ir.NewBuilder(exit).Ret(ir.NewInt(ir.I32, 0))
		}, "must be i1"},
		{"foreign branch target", func(m *ir.Module, f *ir.Function) {
			other, _ := m.AddFunction("other", ir.FuncType(ir.Void()))
			ir.NewBuilder(f.AddBlock("entry")).Br(other.AddBlock("x"))
		}, "outside of function"},
		{"use before def", func(m *ir.Module, f *ir.Function) {
			entry := f.AddBlock("entry")
			left := f.AddBlock("left")
			right := f.AddBlock("right")
			join := f.AddBlock("join")
			ir.NewBuilder(entry).CondBr(ir.NewInt(ir.I1, 1), left, right)
			lb := ir.NewBuilder(left)
			v := lb.Add(ir.NewInt(ir.I32, 1), ir.NewInt(ir.I32, 2), "")
			lb.Br(join)
			ir.NewBuilder(right).Br(join)
			ir.NewBuilder(join).Ret(v)
		}, "does not dominate"},
		{"call arity", func(m *ir.Module, f *ir.Function) {
			callee, _ := m.AddFunction("callee", ir.FuncType(ir.I32, ir.I32))
			b := ir.NewBuilder(f.AddBlock("entry"))
			b.Ret(b.Call(callee, nil, ""))
		}, "expects 1 arguments"},
		{"invalid cast", func(m *ir.Module, f *ir.Function) {
			b := ir.NewBuilder(f.AddBlock("entry"))
			b.Cast(ir.OpTrunc, ir.NewInt(ir.I8, 1), ir.I32, "")
			b.Ret(ir.NewInt(ir.I32, 0))
		}, "invalid trunc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ir.NewModule("test")
			f, _ := m.AddFunction("f", ir.FuncType(ir.I32))
			tt.build(m, f)
			err := ir.VerifyFunction(f)
			if err == nil {
				t.Fatalf("expected verification error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestDominators(t *testing.T) {
	m := ir.NewModule("test")
	f, _ := m.AddFunction("f", ir.FuncType(ir.Void()))
	entry := f.AddBlock("entry")
	loop := f.AddBlock("loop")
	body := f.AddBlock("body")
	exit := f.AddBlock("exit")
	dead := f.AddBlock("dead")
	ir.NewBuilder(entry).Br(loop)
	ir.NewBuilder(loop).CondBr(ir.NewInt(ir.I1, 1), body, exit)
	ir.NewBuilder(body).Br(loop)
	ir.NewBuilder(exit).RetVoid()
	ir.NewBuilder(dead).RetVoid()

	dt := ir.Dominators(f)
	checks := []struct {
		a, b *ir.Block
		want bool
	}{
		{entry, exit, true},
		{loop, body, true},
		{body, exit, false},
		{exit, loop, false},
		{loop, dead, true},
	}
	for _, c := range checks {
		if got := dt.Dominates(c.a, c.b); got != c.want {
			t.Errorf("Dominates(%s, %s) = %v, want %v", c.a.Name, c.b.Name, got, c.want)
		}
	}
	if dt.Reachable(dead) {
		t.Error("dead block reported reachable")
	}
}

func TestUniqueNames(t *testing.T) {
	m := ir.NewModule("test")
	f, _ := m.AddFunction("f", ir.FuncType(ir.Void()))
	a := f.AddBlock("IL_0000")
	b := f.AddBlock("IL_0000")
	if a.Name == b.Name {
		t.Fatalf("duplicate block names %q", a.Name)
	}
}

func TestSignExtend(t *testing.T) {
	if got := ir.SignExtend(0xFF, 8); got != -1 {
		t.Errorf("SignExtend(0xFF, 8) = %d", got)
	}
	if got := ir.ZeroExtend(-1, 16); got != 0xFFFF {
		t.Errorf("ZeroExtend(-1, 16) = %#x", got)
	}
	if got := ir.NewInt(ir.I8, 200).V; got != -56 {
		t.Errorf("NewInt(i8, 200) = %d", got)
	}
}
