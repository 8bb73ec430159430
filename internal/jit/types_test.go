package jit_test

import (
	"errors"
	"strings"
	"testing"

	"iljit/internal/ir"
	"iljit/internal/jit"
	"iljit/internal/metadata"
)

func TestCompileType_Primitives(t *testing.T) {
	f := newFixture(t, false)
	tests := []struct {
		src  *metadata.Type
		want *ir.Type
	}{
		{metadata.Void, ir.Void()},
		{metadata.Bool, ir.I1},
		{metadata.UInt8, ir.I8},
		{metadata.Int16, ir.I16},
		{metadata.UInt32, ir.I32},
		{metadata.Int64, ir.I64},
		{metadata.Float32, ir.Float()},
		{metadata.Float64, ir.Double()},
		{metadata.IntPtr, ir.PointerTo(ir.I8)},
		{metadata.Int32.MakeByRef(), ir.PointerTo(ir.I32)},
		{metadata.Void.MakePointer(), ir.PointerTo(ir.I8)},
	}
	for _, tt := range tests {
		t.Run(tt.src.String(), func(t *testing.T) {
			ct, err := f.unit.CompileType(tt.src)
			if err != nil {
				t.Fatal(err)
			}
			if ct.IR != tt.want || ct.Source != tt.src {
				t.Fatalf("CompileType(%s) = %s, want %s", tt.src, ct.IR, tt.want)
			}
		})
	}
}

func TestCompileType_AggregateIdentity(t *testing.T) {
	f := newFixture(t, false)
	vec, _, _, x, y := defineVec(f)
	first, err := f.unit.CompileType(vec)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.unit.CompileType(vec)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("aggregate compiled twice")
	}
	if !strings.HasPrefix(first.IR.Name, "Geo.Vec_0x") {
		t.Fatalf("aggregate name %q", first.IR.Name)
	}
	if len(first.Members) != 2 || first.Members[0] != x || first.Members[1] != y {
		t.Fatalf("members = %v", first.Members)
	}
	idx, err := f.res.ResolveFieldIndex(y)
	if err != nil || first.IR.Fields()[idx] != ir.I32 {
		t.Fatalf("field index of Y = %d, %v", idx, err)
	}
}

func TestCompileType_SelfReferenceThroughPointer(t *testing.T) {
	f := newFixture(t, false)
	node := f.mod.DefineStruct("List", "Node")
	f.mod.DefineField(node, "Next", node.MakePointer())
	f.mod.DefineField(node, "Value", metadata.Int64)
	ct, err := f.unit.CompileType(node)
	if err != nil {
		t.Fatal(err)
	}
	if ct.IR.Fields()[0] != ir.PointerTo(ct.IR) {
		t.Fatalf("Next has type %s", ct.IR.Fields()[0])
	}
	if size, err := f.unit.Layout().SizeOf(ct.IR); err != nil || size != 16 {
		t.Fatalf("sizeof(Node) = %d, %v", size, err)
	}
}

func TestCompileType_Unsupported(t *testing.T) {
	f := newFixture(t, false)
	class := f.mod.DefineClass("App", "Widget")
	a := f.mod.DefineStruct("Cycle", "A")
	b := f.mod.DefineStruct("Cycle", "B")
	f.mod.DefineField(a, "B", b)
	f.mod.DefineField(b, "A", a)
	holder := f.mod.DefineStruct("App", "Holder")
	f.mod.DefineField(holder, "W", class.MakePointer())

	tests := []struct {
		name string
		typ  *metadata.Type
	}{
		{"class", class},
		{"char", metadata.Char},
		{"generic parameter", metadata.GenericParam(0)},
		{"reference to reference", metadata.Int32.MakeByRef().MakeByRef()},
		{"mutual containment", a},
		{"class behind a pointer", holder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.unit.CompileType(tt.typ)
			var ue *jit.UnsupportedTypeError
			if !errors.As(err, &ue) {
				t.Fatalf("CompileType(%s) = %v, want UnsupportedTypeError", tt.typ, err)
			}
		})
	}
	if structs := f.unit.Module().Structs(); len(structs) != 0 {
		t.Fatalf("failed requests left %d aggregates registered", len(structs))
	}
}
