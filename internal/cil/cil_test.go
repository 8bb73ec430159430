package cil_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"iljit/internal/cil"
	"iljit/internal/metadata"
)

func TestDecoder_OperandWidths(t *testing.T) {
	code := cil.NewAssembler().
		Emit(cil.Nop).
		EmitI1(cil.LdcI4S, -5).
		EmitI4(cil.LdcI4, 1000).
		EmitI8(cil.LdcI8, math.MinInt64).
		EmitR4(cil.LdcR4, 1.5).
		EmitR8(cil.LdcR8, -2.25).
		EmitToken(cil.Call, metadata.MakeToken(metadata.TableMethod, 7)).
		EmitU1(cil.LdlocS, 200).
		Emit(cil.Ceq).
		EmitToken(cil.Sizeof, metadata.MakeToken(metadata.TableTypeDef, 1)).
		Emit(cil.Ret).
		MustBytes()

	ins, err := cil.DecodeAll(code)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	wantSizes := []int{1, 2, 5, 9, 5, 9, 5, 2, 2, 6, 1}
	if len(ins) != len(wantSizes) {
		t.Fatalf("decoded %d instructions, want %d", len(ins), len(wantSizes))
	}
	off := 0
	for i, in := range ins {
		if in.Offset != off || in.Size != wantSizes[i] {
			t.Errorf("#%d %s: offset=%d size=%d, want offset=%d size=%d", i, in.Op, in.Offset, in.Size, off, wantSizes[i])
		}
		off += wantSizes[i]
	}
	if ins[1].Int != -5 {
		t.Errorf("ldc.i4.s operand = %d, want -5", ins[1].Int)
	}
	if ins[3].Int != math.MinInt64 {
		t.Errorf("ldc.i8 operand = %d", ins[3].Int)
	}
	if ins[4].Float != 1.5 || ins[5].Float != -2.25 {
		t.Errorf("float operands = %v, %v", ins[4].Float, ins[5].Float)
	}
	if ins[6].Token != metadata.MakeToken(metadata.TableMethod, 7) {
		t.Errorf("token = %s", ins[6].Token)
	}
	if ins[7].Int != 200 {
		t.Errorf("ldloc.s index = %d, want 200", ins[7].Int)
	}
	if ins[8].Op != cil.Ceq || !ins[8].Op.IsTwoByte() {
		t.Errorf("expected two-byte ceq, got %s", ins[8].Op)
	}
}

func TestDecoder_Truncated(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"ldc.i4 short", []byte{0x20, 0x01, 0x02}},
		{"ldc.r8 short", []byte{0x23, 0, 0, 0, 0}},
		{"prefix alone", []byte{0xFE}},
		{"sizeof short token", []byte{0xFE, 0x1C, 0x01}},
		{"br.s without offset", []byte{0x2B}},
		{"switch table short", []byte{0x45, 0x03, 0, 0, 0, 0, 0, 0, 0}},
		{"unknown opcode", []byte{0xEE}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cil.DecodeAll(tt.code)
			var de *cil.DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *cil.DecodeError, got %T (%v)", err, err)
			}
		})
	}
}

func TestAssembler_Branches(t *testing.T) {
	code := cil.NewAssembler().
		MarkLabel("top").
		Emit(cil.Ldarg0).
		EmitBranch(cil.BrtrueS, "done").
		EmitBranch(cil.BrS, "top").
		MarkLabel("done").
		Emit(cil.Ret).
		MustBytes()

	ins, err := cil.DecodeAll(code)
	if err != nil {
		t.Fatal(err)
	}
	if got := ins[1].Target(); got != 5 {
		t.Errorf("brtrue.s target = %d, want 5", got)
	}
	if got := ins[2].Target(); got != 0 {
		t.Errorf("br.s target = %d, want 0", got)
	}
}

func TestAssembler_ShortBranchOutOfRange(t *testing.T) {
	a := cil.NewAssembler().EmitBranch(cil.BrS, "far")
	for i := 0; i < 200; i++ {
		a.Emit(cil.Nop)
	}
	a.MarkLabel("far").Emit(cil.Ret)
	if _, err := a.Bytes(); err == nil {
		t.Fatal("expected out-of-range error for short branch")
	}
}

func TestAssembler_Errors(t *testing.T) {
	if _, err := cil.NewAssembler().EmitBranch(cil.BrS, "nowhere").Bytes(); err == nil {
		t.Error("expected undefined label error")
	}
	if _, err := cil.NewAssembler().MarkLabel("a").MarkLabel("a").Bytes(); err == nil {
		t.Error("expected duplicate label error")
	}
	if _, err := cil.NewAssembler().Emit(cil.LdcI4).Bytes(); err == nil {
		t.Error("expected operand mismatch error")
	}
}

func TestParseText(t *testing.T) {
	src := `
	// sum 0..n
	  ldc.i4.0
	  stloc.0
	loop: ldloc.0
	  ldc.i4.s 10
	  bge.s done
	  ldloc.0
	  ldc.i4.1
	  add
	  stloc.0
	  br.s loop
	done:
	  call Program::Exit
	  ret
	`
	var seen []string
	code, err := cil.ParseText(src, func(op cil.Opcode, operand string) (metadata.Token, error) {
		seen = append(seen, op.Name()+" "+operand)
		return metadata.MakeToken(metadata.TableMethod, 1), nil
	})
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if len(seen) != 1 || seen[0] != "call Program::Exit" {
		t.Fatalf("token callbacks = %v", seen)
	}
	text, err := cil.Disassemble(code)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"IL_0002: ldloc.0", "bge.s IL_000d", "br.s IL_0002", "IL_000d: call 0x06000001"} {
		if !strings.Contains(text, want) {
			t.Errorf("disassembly missing %q:\n%s", want, text)
		}
	}
}

func TestParseText_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown mnemonic", "frobnicate"},
		{"missing operand", "ldc.i4"},
		{"extra operand", "ret 1"},
		{"byte overflow", "ldc.i4.s 300"},
		{"no resolver", "call Foo::Bar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := cil.ParseText(tt.src, nil); err == nil {
				t.Fatalf("expected error for %q", tt.src)
			}
		})
	}
}

func TestOpcodeLookup(t *testing.T) {
	for _, name := range []string{"nop", "ldc.i4.m1", "bne.un.s", "initobj", "sizeof", "conv.r.un"} {
		op, ok := cil.Lookup(name)
		if !ok || op.Name() != name {
			t.Errorf("Lookup(%q) = %v, %v", name, op, ok)
		}
	}
	if cil.Sizeof.Len() != 2 || cil.Ret.Len() != 1 {
		t.Error("opcode lengths wrong")
	}
}
