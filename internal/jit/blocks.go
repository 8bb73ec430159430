package jit

import (
	"errors"
	"fmt"
	"slices"

	"iljit/internal/cil"
)

// Span is a basic block of IL: the half-open byte range [Start, End) and
// its decoded instructions. A Fallthrough span ends without a terminator
// and continues into the span that starts at End.
type Span struct {
	Start, End  int
	Instrs      []cil.Instruction
	Fallthrough bool
}

// Last returns the final instruction of the span.
func (s Span) Last() cil.Instruction { return s.Instrs[len(s.Instrs)-1] }

func isShortBranch(in cil.Instruction) bool { return in.Info().Operand == cil.OperandBranch8 }

func isTerminator(in cil.Instruction) bool { return in.Op == cil.Ret || isShortBranch(in) }

// rejected reports opcodes that end a block in a way lowering cannot model:
// long branches, switch tables and everything tied to exception handling.
func rejected(in cil.Instruction) bool {
	switch in.Op {
	case cil.Switch, cil.Throw, cil.Rethrow, cil.Leave, cil.LeaveS, cil.Endfinally, cil.Endfilter:
		return true
	}
	return in.Info().Operand == cil.OperandBranch32
}

// DiscoverBlocks partitions code into spans that tile it without gaps or
// overlaps. Spans come back in ascending start order and the first starts
// at offset 0.
func DiscoverBlocks(code []byte) ([]Span, error) {
	if len(code) == 0 {
		return nil, &DiscoveryError{Err: fmt.Errorf("empty method body")}
	}
	instrs, err := cil.DecodeAll(code)
	if err != nil {
		off := 0
		var de *cil.DecodeError
		if errors.As(err, &de) {
			off = de.Offset
		}
		return nil, &DiscoveryError{Offset: off, Err: err}
	}

	boundary := make(map[int]bool, len(instrs))
	for _, in := range instrs {
		boundary[in.Offset] = true
	}
	starts := map[int]bool{0: true}
	for _, in := range instrs {
		if rejected(in) {
			return nil, &UnsupportedInstructionError{Opcode: in.Op, Offset: in.Offset, Reason: "not supported by block discovery"}
		}
		next := in.Next()
		switch {
		case isShortBranch(in):
			t := in.Target()
			if t < 0 || t >= len(code) || !boundary[t] {
				return nil, &DiscoveryError{Offset: in.Offset, Err: fmt.Errorf("branch target IL_%04x is not an instruction boundary", t)}
			}
			starts[t] = true
			if in.Info().Flow == cil.FlowCondBranch && next >= len(code) {
				return nil, &DiscoveryError{Offset: in.Offset, Err: fmt.Errorf("conditional branch falls through past the end")}
			}
			if next < len(code) {
				starts[next] = true
			}
		case in.Op == cil.Ret:
			if next < len(code) {
				starts[next] = true
			}
		}
	}

	order := make([]int, 0, len(starts))
	for off := range starts {
		order = append(order, off)
	}
	slices.Sort(order)

	spans := make([]Span, 0, len(order))
	i := 0
	for k, start := range order {
		limit := len(code)
		if k+1 < len(order) {
			limit = order[k+1]
		}
		for i < len(instrs) && instrs[i].Offset < start {
			i++
		}
		sp := Span{Start: start}
		for i < len(instrs) && instrs[i].Offset < limit {
			sp.Instrs = append(sp.Instrs, instrs[i])
			i++
		}
		sp.End = limit
		if !isTerminator(sp.Last()) {
			if limit == len(code) {
				return nil, &DiscoveryError{Offset: sp.Last().Offset, Err: fmt.Errorf("block at IL_%04x runs off the end of the method", start)}
			}
			sp.Fallthrough = true
		}
		spans = append(spans, sp)
	}
	return spans, nil
}
