// Package opt runs the function pass sequence applied after a function
// verifies.
package opt

import (
	"iljit/internal/ir"
)

// Loop is a natural loop found from a back edge.
type Loop struct {
	Header *ir.Block
	Latch  *ir.Block
	Blocks []*ir.Block
}

// Analysis carries facts shared between passes of one run.
type Analysis struct {
	// Escapes records, per alloca, whether its address is used for anything
	// other than direct loads and stores.
	Escapes map[*ir.Instr]bool
	Dom     *ir.DomTree
	Loops   []Loop
}

// Pass transforms or analyses a function and reports whether it changed.
type Pass interface {
	Name() string
	Run(f *ir.Function, a *Analysis) bool
}

// Result lists per-pass change flags in run order.
type Result struct {
	Pass    string
	Changed bool
}

// Pipeline is a fixed sequence of passes.
type Pipeline struct {
	passes []Pass
	closed bool
}

// New builds a pipeline from passes.
func New(passes ...Pass) *Pipeline {
	return &Pipeline{passes: passes}
}

// Default returns the standard sequence: alias analysis, memory to
// register promotion, instruction combining, reassociation, value
// numbering, loop unrolling and loop vectorization.
func Default() *Pipeline {
	return New(
		BasicAA{},
		Mem2Reg{},
		InstCombine{},
		Reassociate{},
		GVN{},
		LoopUnroll{},
		LoopVectorize{},
	)
}

// Names returns the pass names in order.
func (p *Pipeline) Names() []string {
	out := make([]string, len(p.passes))
	for i, pass := range p.passes {
		out[i] = pass.Name()
	}
	return out
}

// Run applies every pass to f once.
func (p *Pipeline) Run(f *ir.Function) []Result {
	if p == nil || p.closed || f.IsDeclaration() {
		return nil
	}
	a := &Analysis{Escapes: make(map[*ir.Instr]bool)}
	out := make([]Result, 0, len(p.passes))
	for _, pass := range p.passes {
		changed := pass.Run(f, a)
		if changed {
			// Dominance and loop facts go stale when the CFG or the
			// instruction list changes.
			a.Dom = nil
		}
		out = append(out, Result{Pass: pass.Name(), Changed: changed})
	}
	return out
}

// Close releases the pipeline. Later runs are no-ops.
func (p *Pipeline) Close() {
	if p != nil {
		p.closed = true
		p.passes = nil
	}
}

// uses maps every value to the instructions that read it.
func uses(f *ir.Function) map[ir.Value][]*ir.Instr {
	out := make(map[ir.Value][]*ir.Instr)
	f.Instructions(func(in *ir.Instr) {
		for _, op := range in.Operands {
			out[op] = append(out[op], in)
		}
	})
	return out
}

func replaceAllUses(f *ir.Function, old, v ir.Value) {
	f.Instructions(func(in *ir.Instr) {
		in.ReplaceOperand(old, v)
	})
}
