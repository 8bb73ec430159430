package layout_test

import (
	"errors"
	"testing"

	"iljit/internal/ir"
	"iljit/internal/layout"
)

func TestEngine_Scalars(t *testing.T) {
	le := layout.New(layout.Host())
	tests := []struct {
		typ   *ir.Type
		size  int
		align int
	}{
		{ir.I1, 1, 1},
		{ir.I8, 1, 1},
		{ir.I16, 2, 2},
		{ir.I32, 4, 4},
		{ir.I64, 8, 8},
		{ir.Float(), 4, 4},
		{ir.Double(), 8, 8},
		{ir.PointerTo(ir.I8), 8, 8},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			l, err := le.LayoutOf(tt.typ)
			if err != nil {
				t.Fatal(err)
			}
			if l.Size != tt.size || l.Align != tt.align {
				t.Fatalf("layout = %d/%d, want %d/%d", l.Size, l.Align, tt.size, tt.align)
			}
		})
	}
}

func TestEngine_StructPadding(t *testing.T) {
	m := ir.NewModule("t")
	s := m.NamedStruct("S")
	if err := s.SetBody(ir.I8, ir.I32, ir.I16, ir.Double()); err != nil {
		t.Fatal(err)
	}
	le := layout.New(layout.Host())
	l, err := le.LayoutOf(s)
	if err != nil {
		t.Fatal(err)
	}
	for i, off := range []int{0, 4, 8, 16} {
		if l.FieldOffsets[i] != off {
			t.Errorf("field %d offset = %d, want %d", i, l.FieldOffsets[i], off)
		}
	}
	if l.Size != 24 || l.Align != 8 {
		t.Fatalf("struct layout = %d/%d, want 24/8", l.Size, l.Align)
	}
	if off, err := le.FieldOffset(s, 2); err != nil || off != 8 {
		t.Fatalf("FieldOffset = %d, %v", off, err)
	}
	if _, err := le.FieldOffset(s, 4); err == nil {
		t.Fatal("FieldOffset past the last field succeeded")
	}
}

func TestEngine_EmptyStruct(t *testing.T) {
	m := ir.NewModule("t")
	s := m.NamedStruct("Empty")
	if err := s.SetBody(); err != nil {
		t.Fatal(err)
	}
	l, err := layout.New(layout.Host()).LayoutOf(s)
	if err != nil || l.Size != 0 || l.Align != 1 {
		t.Fatalf("empty struct = %+v, %v", l, err)
	}
}

func TestEngine_SelfReferenceThroughPointer(t *testing.T) {
	m := ir.NewModule("t")
	node := m.NamedStruct("Node")
	if err := node.SetBody(ir.I32, ir.PointerTo(node)); err != nil {
		t.Fatal(err)
	}
	size, err := layout.New(layout.Host()).SizeOf(node)
	if err != nil || size != 16 {
		t.Fatalf("SizeOf(Node) = %d, %v; want 16", size, err)
	}
}

func TestEngine_RecursiveByValue(t *testing.T) {
	m := ir.NewModule("t")
	a := m.NamedStruct("A")
	b := m.NamedStruct("B")
	_ = a.SetBody(ir.I32, b)
	_ = b.SetBody(a)

	_, err := layout.New(layout.Host()).LayoutOf(a)
	if !errors.Is(err, layout.ErrRecursive) {
		t.Fatalf("err = %v, want ErrRecursive", err)
	}
	var lerr *layout.Error
	if !errors.As(err, &lerr) || len(lerr.Cycle) != 3 || lerr.Cycle[0] != lerr.Cycle[2] {
		t.Fatalf("unexpected error %+v", lerr)
	}
}

func TestEngine_OpaqueIsNotRemembered(t *testing.T) {
	m := ir.NewModule("t")
	s := m.NamedStruct("Later")
	le := layout.New(layout.Host())
	if _, err := le.SizeOf(s); !errors.Is(err, layout.ErrOpaque) {
		t.Fatalf("err = %v, want ErrOpaque", err)
	}
	_ = s.SetBody(ir.I64)
	size, err := le.SizeOf(s)
	if err != nil || size != 8 {
		t.Fatalf("SizeOf after SetBody = %d, %v", size, err)
	}
}

func TestEngine_Unsized(t *testing.T) {
	if _, err := layout.New(layout.Host()).SizeOf(ir.Void()); !errors.Is(err, layout.ErrUnsized) {
		t.Fatalf("err = %v, want ErrUnsized", err)
	}
}

func TestParseTarget(t *testing.T) {
	for _, name := range []string{"amd64", "x86_64", "aarch64"} {
		tg, err := layout.ParseTarget(name)
		if err != nil || tg.PtrSize != 8 {
			t.Errorf("ParseTarget(%q) = %+v, %v", name, tg, err)
		}
	}
	if _, err := layout.ParseTarget("i386"); err == nil {
		t.Fatal("32-bit target accepted")
	}
	if layout.Host().PtrSize != 8 {
		t.Fatal("host target is not 64-bit")
	}
}
