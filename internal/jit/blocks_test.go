package jit_test

import (
	"errors"
	"testing"

	"iljit/internal/cil"
	"iljit/internal/jit"
)

type spanShape struct {
	start, end   int
	n            int
	fallsThrough bool
}

func checkSpans(t *testing.T, got []jit.Span, want []spanShape) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d spans, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		g := got[i]
		if g.Start != w.start || g.End != w.end || len(g.Instrs) != w.n || g.Fallthrough != w.fallsThrough {
			t.Errorf("span %d = [%d,%d) n=%d fallthrough=%v, want [%d,%d) n=%d fallthrough=%v",
				i, g.Start, g.End, len(g.Instrs), g.Fallthrough, w.start, w.end, w.n, w.fallsThrough)
		}
	}
}

func TestDiscoverBlocks(t *testing.T) {
	tests := []struct {
		name string
		asm  *cil.Assembler
		want []spanShape
	}{
		{
			name: "straight line",
			asm: cil.NewAssembler().
				Emit(cil.LdcI41).Emit(cil.LdcI42).Emit(cil.Add).Emit(cil.Ret),
			want: []spanShape{{0, 4, 4, false}},
		},
		{
			// ldc.i4.0 at 0, brtrue.s at 1: blocks start at 0, 3 and the target.
			name: "conditional branch",
			asm: cil.NewAssembler().
				Emit(cil.LdcI40).
				EmitBranch(cil.BrtrueS, "t").
				Emit(cil.LdcI41).Emit(cil.Ret).
				MarkLabel("t").
				Emit(cil.LdcI42).Emit(cil.Ret),
			want: []spanShape{{0, 3, 2, false}, {3, 5, 2, false}, {5, 7, 2, false}},
		},
		{
			name: "fallthrough into a loop head",
			asm: cil.NewAssembler().
				Emit(cil.Nop).
				MarkLabel("head").
				Emit(cil.Nop).
				EmitBranch(cil.BrS, "head"),
			want: []spanShape{{0, 1, 1, true}, {1, 4, 2, false}},
		},
		{
			name: "code after br.s",
			asm: cil.NewAssembler().
				EmitBranch(cil.BrS, "end").
				Emit(cil.Nop).
				MarkLabel("end").
				Emit(cil.Ret),
			want: []spanShape{{0, 2, 1, false}, {2, 3, 1, true}, {3, 4, 1, false}},
		},
		{
			name: "code after ret",
			asm: cil.NewAssembler().
				Emit(cil.Ret).Emit(cil.Ret),
			want: []spanShape{{0, 1, 1, false}, {1, 2, 1, false}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans, err := jit.DiscoverBlocks(tt.asm.MustBytes())
			if err != nil {
				t.Fatal(err)
			}
			checkSpans(t, spans, tt.want)
		})
	}
}

func TestDiscoverBlocks_TileTheStream(t *testing.T) {
	code := cil.NewAssembler().
		Emit(cil.LdcI40).Emit(cil.Stloc0).
		EmitBranch(cil.BrS, "cond").
		MarkLabel("body").
		Emit(cil.Ldloc0).Emit(cil.LdcI41).Emit(cil.Add).Emit(cil.Stloc0).
		MarkLabel("cond").
		Emit(cil.Ldloc0).Emit(cil.Ldarg0).
		EmitBranch(cil.BltS, "body").
		Emit(cil.Ldloc0).Emit(cil.Ret).
		MustBytes()
	spans, err := jit.DiscoverBlocks(code)
	if err != nil {
		t.Fatal(err)
	}
	next := 0
	for _, sp := range spans {
		if sp.Start != next {
			t.Fatalf("gap or overlap at %d: span starts at %d", next, sp.Start)
		}
		if sp.Instrs[0].Offset != sp.Start || sp.Last().Next() != sp.End {
			t.Fatalf("instructions of [%d,%d) do not cover it", sp.Start, sp.End)
		}
		next = sp.End
	}
	if next != len(code) {
		t.Fatalf("spans end at %d, code has %d bytes", next, len(code))
	}
}

func TestDiscoverBlocks_Errors(t *testing.T) {
	tests := []struct {
		name        string
		code        []byte
		unsupported cil.Opcode
	}{
		{"long branch", cil.NewAssembler().EmitBranch(cil.Br, "x").MarkLabel("x").Emit(cil.Ret).MustBytes(), cil.Br},
		{"switch", cil.NewAssembler().Emit(cil.LdcI40).EmitSwitch("x").MarkLabel("x").Emit(cil.Ret).MustBytes(), cil.Switch},
		{"throw", cil.NewAssembler().Emit(cil.LdcI40).Emit(cil.Throw).MustBytes(), cil.Throw},
		{"leave", cil.NewAssembler().EmitBranch(cil.LeaveS, "x").MarkLabel("x").Emit(cil.Ret).MustBytes(), cil.LeaveS},
		{"target inside an instruction", []byte{0x2B, 0x01, 0x20, 1, 0, 0, 0, 0x2A}, 0},
		{"target out of range", []byte{0x2B, 0x10, 0x2A}, 0},
		{"conditional branch at the end", []byte{0x16, 0x2D, 0xFD}, 0},
		{"no terminator", []byte{0x00}, 0},
		{"truncated operand", []byte{0x20, 0x01}, 0},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jit.DiscoverBlocks(tt.code)
			if tt.unsupported != 0 {
				var ue *jit.UnsupportedInstructionError
				if !errors.As(err, &ue) {
					t.Fatalf("expected UnsupportedInstructionError, got %v", err)
				}
				if ue.Opcode != tt.unsupported || ue.Method != nil {
					t.Fatalf("error = %+v", ue)
				}
				return
			}
			var de *jit.DiscoveryError
			if !errors.As(err, &de) {
				t.Fatalf("expected DiscoveryError, got %v", err)
			}
		})
	}
}
