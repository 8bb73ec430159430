package opt_test

import (
	"slices"
	"testing"

	"iljit/internal/ir"
	"iljit/internal/opt"
)

func count(f *ir.Function, op ir.Op) int {
	n := 0
	f.Instructions(func(in *ir.Instr) {
		if in.Op == op {
			n++
		}
	})
	return n
}

func TestDefaultOrder(t *testing.T) {
	want := []string{"basic-aa", "mem2reg", "instcombine", "reassociate", "gvn", "loop-unroll", "loop-vectorize"}
	if got := opt.Default().Names(); !slices.Equal(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
}

func TestPipeline_FoldsEvalStackTraffic(t *testing.T) {
	m := ir.NewModule("t")
	f, _ := m.AddFunction("f", ir.FuncType(ir.I32))
	b := ir.NewBuilder(f.AddBlock("entry"))
	slot0 := b.Alloca(ir.I32, "s0")
	slot1 := b.Alloca(ir.I32, "s1")
	b.Store(ir.NewInt(ir.I32, 2), slot0)
	b.Store(ir.NewInt(ir.I32, 3), slot1)
	x := b.Load(slot0, "")
	y := b.Load(slot1, "")
	sum := b.Add(x, y, "")
	b.Store(sum, slot0)
	b.Ret(b.Load(slot0, ""))

	res := opt.Default().Run(f)
	if len(res) != 7 {
		t.Fatalf("got %d results", len(res))
	}
	if err := ir.VerifyFunction(f); err != nil {
		t.Fatalf("optimised function does not verify: %v", err)
	}
	entry := f.Entry()
	if len(entry.Instrs) != 1 {
		t.Fatalf("expected a single ret, got:\n%s", f)
	}
	ret := entry.Terminator()
	c, ok := ret.Operands[0].(*ir.ConstInt)
	if !ok || c.V != 5 {
		t.Fatalf("ret operand = %v, want constant 5", ret.Operands[0].Ref())
	}
}

func TestBasicAA_EscapingSlotIsKept(t *testing.T) {
	m := ir.NewModule("t")
	sink, _ := m.AddFunction("sink", ir.FuncType(ir.Void(), ir.PointerTo(ir.I32)))
	f, _ := m.AddFunction("f", ir.FuncType(ir.I32))
	b := ir.NewBuilder(f.AddBlock("entry"))
	slot := b.Alloca(ir.I32, "")
	b.Store(ir.NewInt(ir.I32, 1), slot)
	b.Call(sink, []ir.Value{slot}, "")
	b.Ret(b.Load(slot, ""))

	opt.Default().Run(f)
	if count(f, ir.OpLoad) != 1 || count(f, ir.OpAlloca) != 1 {
		t.Fatalf("escaping slot was promoted:\n%s", f)
	}
}

func TestInstCombine(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *ir.Builder, p ir.Value) ir.Value
		check func(t *testing.T, v ir.Value, p ir.Value)
	}{
		{"add zero", func(b *ir.Builder, p ir.Value) ir.Value {
			return b.Add(p, ir.NewInt(ir.I32, 0), "")
		}, func(t *testing.T, v, p ir.Value) {
			if v != p {
				t.Fatalf("got %s, want the parameter", v.Ref())
			}
		}},
		{"mul one", func(b *ir.Builder, p ir.Value) ir.Value {
			return b.Mul(p, ir.NewInt(ir.I32, 1), "")
		}, func(t *testing.T, v, p ir.Value) {
			if v != p {
				t.Fatalf("got %s, want the parameter", v.Ref())
			}
		}},
		{"wrapping fold", func(b *ir.Builder, p ir.Value) ir.Value {
			return b.Add(ir.NewInt(ir.I32, 0x7fffffff), ir.NewInt(ir.I32, 1), "")
		}, func(t *testing.T, v, p ir.Value) {
			if c, ok := v.(*ir.ConstInt); !ok || c.V != -0x80000000 {
				t.Fatalf("got %s, want -2147483648", v.Ref())
			}
		}},
		{"compare fold", func(b *ir.Builder, p ir.Value) ir.Value {
			c := b.ICmp(ir.PredULT, ir.NewInt(ir.I32, -1), ir.NewInt(ir.I32, 1), "")
			return b.Select(c, ir.NewInt(ir.I32, 10), ir.NewInt(ir.I32, 20), "")
		}, func(t *testing.T, v, p ir.Value) {
			if c, ok := v.(*ir.ConstInt); !ok || c.V != 20 {
				t.Fatalf("got %s, want 20", v.Ref())
			}
		}},
		{"cast fold", func(b *ir.Builder, p ir.Value) ir.Value {
			return b.Cast(ir.OpTrunc, ir.NewInt(ir.I64, 0x1_0000_0005), ir.I32, "")
		}, func(t *testing.T, v, p ir.Value) {
			if c, ok := v.(*ir.ConstInt); !ok || c.V != 5 {
				t.Fatalf("got %s, want 5", v.Ref())
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ir.NewModule("t")
			f, _ := m.AddFunction("f", ir.FuncType(ir.I32, ir.I32))
			b := ir.NewBuilder(f.AddBlock("entry"))
			b.Ret(tt.build(b, f.Params[0]))
			opt.New(opt.InstCombine{}).Run(f)
			ret := f.Entry().Terminator()
			tt.check(t, ret.Operands[0], f.Params[0])
			if len(f.Entry().Instrs) != 1 {
				t.Fatalf("dead instructions left:\n%s", f)
			}
		})
	}
}

func TestReassociate_SwapsCompare(t *testing.T) {
	m := ir.NewModule("t")
	f, _ := m.AddFunction("f", ir.FuncType(ir.I1, ir.I32))
	b := ir.NewBuilder(f.AddBlock("entry"))
	c := b.ICmp(ir.PredSLT, ir.NewInt(ir.I32, 3), f.Params[0], "")
	b.Ret(c)
	if !opt.New(opt.Reassociate{}).Run(f)[0].Changed {
		t.Fatal("reassociate reported no change")
	}
	if c.Pred != ir.PredSGT || c.Operands[0] != ir.Value(f.Params[0]) {
		t.Fatalf("compare not canonicalised: %s", c)
	}
}

func TestGVN_DeduplicatesWithinBlock(t *testing.T) {
	m := ir.NewModule("t")
	f, _ := m.AddFunction("f", ir.FuncType(ir.I32, ir.I32, ir.I32))
	b := ir.NewBuilder(f.AddBlock("entry"))
	x := b.Add(f.Params[0], f.Params[1], "")
	y := b.Add(f.Params[0], f.Params[1], "")
	b.Ret(b.Mul(x, y, ""))
	opt.New(opt.GVN{}).Run(f)
	if count(f, ir.OpAdd) != 1 {
		t.Fatalf("duplicate add survived:\n%s", f)
	}
	if err := ir.VerifyFunction(f); err != nil {
		t.Fatal(err)
	}
}

func TestLoopPassesOnlyRecordLoops(t *testing.T) {
	for _, pass := range []opt.Pass{opt.LoopUnroll{}, opt.LoopVectorize{}} {
		t.Run(pass.Name(), func(t *testing.T) {
			m := ir.NewModule("t")
			f, _ := m.AddFunction("f", ir.FuncType(ir.Void(), ir.I1))
			entry := f.AddBlock("entry")
			loop := f.AddBlock("loop")
			exit := f.AddBlock("exit")
			ir.NewBuilder(entry).Br(loop)
			ir.NewBuilder(loop).CondBr(f.Params[0], loop, exit)
			ir.NewBuilder(exit).RetVoid()
			before := f.String()

			a := &opt.Analysis{Escapes: map[*ir.Instr]bool{}}
			if pass.Run(f, a) {
				t.Fatal("reported a change")
			}
			if len(a.Loops) != 1 || a.Loops[0].Header != loop || len(a.Loops[0].Blocks) != 1 {
				t.Fatalf("loops = %+v", a.Loops)
			}
			if after := f.String(); after != before {
				t.Fatalf("function changed:\n%s\nwant:\n%s", after, before)
			}
		})
	}
}

func TestClosedPipelineIsNoop(t *testing.T) {
	m := ir.NewModule("t")
	f, _ := m.AddFunction("f", ir.FuncType(ir.I32))
	ir.NewBuilder(f.AddBlock("entry")).Ret(ir.NewInt(ir.I32, 0))
	p := opt.Default()
	p.Close()
	if res := p.Run(f); res != nil {
		t.Fatalf("closed pipeline ran: %v", res)
	}
}
