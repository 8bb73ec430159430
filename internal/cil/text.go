package cil

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"iljit/internal/metadata"
)

// TokenResolver maps the textual operand of a token-taking instruction
// (for example "Geo.Vector3::X" or "int32") to a metadata token.
type TokenResolver func(op Opcode, operand string) (metadata.Token, error)

// ParseText assembles the line-oriented IL text form:
//
//	loop:              // label, may prefix an instruction
//	  ldloc.0
//	  ldc.i4.s -3
//	  blt.s loop
//	  call Program::Helper/1
//	  switch (a, b, c)
//
// Comments start with "//". Token operands are handed to tokens verbatim.
func ParseText(src string, tokens TokenResolver) ([]byte, error) {
	a := NewAssembler()
	sc := bufio.NewScanner(strings.NewReader(src))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		for {
			name, rest, ok := strings.Cut(line, ":")
			if !ok || !isLabel(name) {
				break
			}
			a.MarkLabel(strings.TrimSpace(name))
			line = strings.TrimSpace(rest)
		}
		if line == "" {
			continue
		}
		if err := parseInstruction(a, line, tokens); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return a.Bytes()
}

func isLabel(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func parseInstruction(a *Assembler, line string, tokens TokenResolver) error {
	mnemonic, operand, _ := strings.Cut(line, " ")
	operand = strings.TrimSpace(operand)
	op, ok := Lookup(strings.ToLower(mnemonic))
	if !ok {
		return fmt.Errorf("unknown mnemonic %q", mnemonic)
	}
	info, _ := op.Info()
	if info.Operand != OperandNone && operand == "" {
		return fmt.Errorf("%s requires an operand", info.Name)
	}
	if info.Operand == OperandNone && operand != "" {
		return fmt.Errorf("%s takes no operand, got %q", info.Name, operand)
	}
	switch info.Operand {
	case OperandNone:
		a.Emit(op)
	case OperandInt8:
		v, err := strconv.ParseInt(operand, 0, 8)
		if err != nil {
			return fmt.Errorf("%s: %w", info.Name, err)
		}
		a.EmitI1(op, int8(v))
	case OperandUInt8:
		v, err := strconv.ParseUint(operand, 0, 8)
		if err != nil {
			return fmt.Errorf("%s: %w", info.Name, err)
		}
		a.EmitU1(op, uint8(v))
	case OperandUInt16:
		v, err := strconv.ParseUint(operand, 0, 16)
		if err != nil {
			return fmt.Errorf("%s: %w", info.Name, err)
		}
		a.EmitU2(op, uint16(v))
	case OperandInt32:
		v, err := strconv.ParseInt(operand, 0, 32)
		if err != nil {
			return fmt.Errorf("%s: %w", info.Name, err)
		}
		a.EmitI4(op, int32(v))
	case OperandInt64:
		v, err := strconv.ParseInt(operand, 0, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", info.Name, err)
		}
		a.EmitI8(op, v)
	case OperandFloat32:
		v, err := strconv.ParseFloat(operand, 32)
		if err != nil {
			return fmt.Errorf("%s: %w", info.Name, err)
		}
		a.EmitR4(op, float32(v))
	case OperandFloat64:
		v, err := strconv.ParseFloat(operand, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", info.Name, err)
		}
		a.EmitR8(op, v)
	case OperandToken:
		if tokens == nil {
			return fmt.Errorf("%s: no token resolver for %q", info.Name, operand)
		}
		tok, err := tokens(op, operand)
		if err != nil {
			return fmt.Errorf("%s %s: %w", info.Name, operand, err)
		}
		a.EmitToken(op, tok)
	case OperandBranch8, OperandBranch32:
		if !isLabel(operand) {
			return fmt.Errorf("%s: invalid label %q", info.Name, operand)
		}
		a.EmitBranch(op, operand)
	case OperandSwitch:
		list := strings.TrimSuffix(strings.TrimPrefix(operand, "("), ")")
		var labels []string
		for _, l := range strings.Split(list, ",") {
			l = strings.TrimSpace(l)
			if !isLabel(l) {
				return fmt.Errorf("switch: invalid label %q", l)
			}
			labels = append(labels, l)
		}
		a.EmitSwitch(labels...)
	}
	return nil
}
