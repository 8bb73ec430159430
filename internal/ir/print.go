package ir

import (
	"fmt"
	"strings"
)

func typed(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.Type().String() + " " + v.Ref()
}

// String prints the module as textual IR.
func (m *Module) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "; ModuleID = '%s'\n", m.Name)
	if len(m.structOrder) > 0 {
		buf.WriteString("\n")
	}
	for _, st := range m.structOrder {
		if st.IsOpaque() {
			fmt.Fprintf(&buf, "%s = type opaque\n", st)
			continue
		}
		fields := make([]string, len(st.fields))
		for i, f := range st.fields {
			fields[i] = f.String()
		}
		fmt.Fprintf(&buf, "%s = type { %s }\n", st, strings.Join(fields, ", "))
	}
	for _, f := range m.funcOrder {
		buf.WriteString("\n")
		writeFunction(&buf, f)
	}
	return buf.String()
}

// String prints the function as textual IR.
func (f *Function) String() string {
	var buf strings.Builder
	writeFunction(&buf, f)
	return buf.String()
}

func writeFunction(buf *strings.Builder, f *Function) {
	f.renumber()
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		if f.IsDeclaration() {
			params[i] = p.Typ.String()
		} else {
			params[i] = typed(p)
		}
	}
	if f.IsDeclaration() {
		fmt.Fprintf(buf, "declare %s %s(%s)\n", f.Sig.Ret, f.Ref(), strings.Join(params, ", "))
		return
	}
	fmt.Fprintf(buf, "define %s %s(%s) {\n", f.Sig.Ret, f.Ref(), strings.Join(params, ", "))
	for i, b := range f.Blocks {
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(buf, "%s:\n", quoteName(b.Name))
		for _, in := range b.Instrs {
			buf.WriteString("  ")
			buf.WriteString(in.String())
			buf.WriteString("\n")
		}
	}
	buf.WriteString("}\n")
}

func operand(in *Instr, i int) Value {
	if i < len(in.Operands) {
		return in.Operands[i]
	}
	return &Undef{Typ: Void()}
}

// String renders a single instruction.
func (in *Instr) String() string {
	lhs := ""
	if in.HasValue() {
		lhs = in.Ref() + " = "
	}
	switch in.Op {
	case OpAlloca:
		if len(in.Operands) == 1 {
			return fmt.Sprintf("%salloca %s, %s", lhs, in.Allocated, typed(in.Operands[0]))
		}
		return fmt.Sprintf("%salloca %s", lhs, in.Allocated)
	case OpLoad:
		p := operand(in, 0)
		return fmt.Sprintf("%sload %s, %s", lhs, in.Typ, typed(p))
	case OpStore:
		return fmt.Sprintf("store %s, %s", typed(operand(in, 0)), typed(operand(in, 1)))
	case OpStructGEP:
		p := operand(in, 0)
		return fmt.Sprintf("%sgetelementptr inbounds %s, %s, i32 0, i32 %d", lhs, pointee(p), typed(p), in.Index)
	case OpICmp, OpFCmp:
		a, b := operand(in, 0), operand(in, 1)
		return fmt.Sprintf("%s%s %s %s, %s", lhs, in.Op, in.Pred, typed(a), b.Ref())
	case OpSelect:
		return fmt.Sprintf("%sselect %s, %s, %s", lhs, typed(operand(in, 0)), typed(operand(in, 1)), typed(operand(in, 2)))
	case OpCall:
		args := make([]string, len(in.Operands))
		for i, a := range in.Operands {
			args[i] = typed(a)
		}
		callee := "<nil>"
		if in.Callee != nil {
			callee = in.Callee.Ref()
		}
		return fmt.Sprintf("%scall %s %s(%s)", lhs, in.Typ, callee, strings.Join(args, ", "))
	case OpBr:
		return fmt.Sprintf("br label %s", blockLabel(in, 0))
	case OpCondBr:
		return fmt.Sprintf("br %s, label %s, label %s", typed(operand(in, 0)), blockLabel(in, 0), blockLabel(in, 1))
	case OpRet:
		if len(in.Operands) == 0 {
			return "ret void"
		}
		return "ret " + typed(in.Operands[0])
	}
	if in.Op.IsBinary() {
		a, b := operand(in, 0), operand(in, 1)
		return fmt.Sprintf("%s%s %s, %s", lhs, in.Op, typed(a), b.Ref())
	}
	if in.Op.IsCast() {
		return fmt.Sprintf("%s%s %s to %s", lhs, in.Op, typed(operand(in, 0)), in.Typ)
	}
	return fmt.Sprintf("%s<%s>", lhs, in.Op)
}

func blockLabel(in *Instr, i int) string {
	if i < len(in.Targets) && in.Targets[i] != nil {
		return in.Targets[i].Label()
	}
	return "%<nil>"
}
