package ir

import "fmt"

// Op is an instruction opcode.
type Op uint8

const (
	OpAlloca Op = iota + 1
	OpLoad
	OpStore
	OpStructGEP
	OpAdd
	OpSub
	OpMul
	OpFAdd
	OpFSub
	OpFMul
	OpICmp
	OpFCmp
	OpSelect
	OpTrunc
	OpZExt
	OpSExt
	OpFPTrunc
	OpFPExt
	OpSIToFP
	OpUIToFP
	OpFPToSI
	OpFPToUI
	OpIntToPtr
	OpPtrToInt
	OpBitCast
	OpCall
	OpBr
	OpCondBr
	OpRet
)

var opNames = map[Op]string{
	OpAlloca:    "alloca",
	OpLoad:      "load",
	OpStore:     "store",
	OpStructGEP: "getelementptr",
	OpAdd:       "add",
	OpSub:       "sub",
	OpMul:       "mul",
	OpFAdd:      "fadd",
	OpFSub:      "fsub",
	OpFMul:      "fmul",
	OpICmp:      "icmp",
	OpFCmp:      "fcmp",
	OpSelect:    "select",
	OpTrunc:     "trunc",
	OpZExt:      "zext",
	OpSExt:      "sext",
	OpFPTrunc:   "fptrunc",
	OpFPExt:     "fpext",
	OpSIToFP:    "sitofp",
	OpUIToFP:    "uitofp",
	OpFPToSI:    "fptosi",
	OpFPToUI:    "fptoui",
	OpIntToPtr:  "inttoptr",
	OpPtrToInt:  "ptrtoint",
	OpBitCast:   "bitcast",
	OpCall:      "call",
	OpBr:        "br",
	OpCondBr:    "br",
	OpRet:       "ret",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", op)
}

// IsTerminator reports whether op ends a block.
func (op Op) IsTerminator() bool {
	return op == OpBr || op == OpCondBr || op == OpRet
}

// IsCast reports whether op is a conversion.
func (op Op) IsCast() bool { return op >= OpTrunc && op <= OpBitCast }

// IsBinary reports whether op is a two-operand arithmetic op.
func (op Op) IsBinary() bool { return op >= OpAdd && op <= OpFMul }

// IsPure reports whether an instruction with op has no side effects and
// may be removed when unused.
func (op Op) IsPure() bool {
	switch op {
	case OpStore, OpCall, OpBr, OpCondBr, OpRet:
		return false
	}
	return true
}

// Pred is a comparison predicate.
type Pred uint8

const (
	PredEQ Pred = iota + 1
	PredNE
	PredSLT
	PredSLE
	PredSGT
	PredSGE
	PredULT
	PredULE
	PredUGT
	PredUGE

	PredOEQ
	PredONE
	PredOLT
	PredOLE
	PredOGT
	PredOGE
	PredUEQ
	PredUNE
	PredFULT
	PredFULE
	PredFUGT
	PredFUGE
)

var predNames = map[Pred]string{
	PredEQ: "eq", PredNE: "ne",
	PredSLT: "slt", PredSLE: "sle", PredSGT: "sgt", PredSGE: "sge",
	PredULT: "ult", PredULE: "ule", PredUGT: "ugt", PredUGE: "uge",
	PredOEQ: "oeq", PredONE: "one", PredOLT: "olt", PredOLE: "ole", PredOGT: "ogt", PredOGE: "oge",
	PredUEQ: "ueq", PredUNE: "une", PredFULT: "ult", PredFULE: "ule", PredFUGT: "ugt", PredFUGE: "uge",
}

func (p Pred) String() string {
	if s, ok := predNames[p]; ok {
		return s
	}
	return fmt.Sprintf("pred(%d)", p)
}

// IsFloatPred reports whether p belongs to fcmp.
func (p Pred) IsFloatPred() bool { return p >= PredOEQ }

// Swapped returns the predicate with operands exchanged.
func (p Pred) Swapped() Pred {
	switch p {
	case PredSLT:
		return PredSGT
	case PredSGT:
		return PredSLT
	case PredSLE:
		return PredSGE
	case PredSGE:
		return PredSLE
	case PredULT:
		return PredUGT
	case PredUGT:
		return PredULT
	case PredULE:
		return PredUGE
	case PredUGE:
		return PredULE
	case PredOLT:
		return PredOGT
	case PredOGT:
		return PredOLT
	case PredOLE:
		return PredOGE
	case PredOGE:
		return PredOLE
	case PredFULT:
		return PredFUGT
	case PredFUGT:
		return PredFULT
	case PredFULE:
		return PredFUGE
	case PredFUGE:
		return PredFULE
	}
	return p
}

// Instr is an instruction. Instructions that produce a value are Values.
type Instr struct {
	Op       Op
	Typ      *Type
	Operands []Value
	Block    *Block
	Name     string

	// Pred is the comparison predicate of icmp and fcmp.
	Pred Pred
	// Index is the member index of a struct GEP.
	Index int
	// Allocated is the element type of an alloca.
	Allocated *Type
	// Callee is the target of a call.
	Callee *Function
	// Targets holds branch successors (then, else for conditional).
	Targets []*Block

	id int
}

func (in *Instr) Type() *Type { return in.Typ }

func (in *Instr) Ref() string {
	if in.Name != "" {
		return "%" + quoteName(in.Name)
	}
	return fmt.Sprintf("%%%d", in.id)
}

// HasValue reports whether the instruction produces a value.
func (in *Instr) HasValue() bool { return in.Typ != nil && in.Typ.Kind != KindVoid }

// Successors returns the blocks a terminator may transfer control to.
func (in *Instr) Successors() []*Block {
	if in.Op == OpBr || in.Op == OpCondBr {
		return in.Targets
	}
	return nil
}

// ReplaceOperand swaps every use of old with v in in's operands.
func (in *Instr) ReplaceOperand(old, v Value) bool {
	changed := false
	for i, op := range in.Operands {
		if op == old {
			in.Operands[i] = v
			changed = true
		}
	}
	return changed
}
