package jit

import (
	"errors"
	"fmt"

	"iljit/internal/cil"
	"iljit/internal/metadata"
)

// ErrUnitClosed is returned by every operation on a closed unit.
var ErrUnitClosed = errors.New("compilation unit closed")

// UnsupportedTypeError reports a type the layout compiler cannot map.
type UnsupportedTypeError struct {
	Type   *metadata.Type
	Reason string
	Err    error
}

func (e *UnsupportedTypeError) Error() string {
	msg := fmt.Sprintf("unsupported type %s", e.Type)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *UnsupportedTypeError) Unwrap() error { return e.Err }

// UnsupportedInstructionError reports an opcode or operand form that block
// discovery or lowering does not handle. Method is nil when the error comes
// from DiscoverBlocks, which sees only bytes.
type UnsupportedInstructionError struct {
	Opcode cil.Opcode
	Offset int
	Method *metadata.Method
	Reason string
}

func (e *UnsupportedInstructionError) Error() string {
	msg := fmt.Sprintf("unsupported instruction %s at IL_%04x", e.Opcode, e.Offset)
	if e.Method != nil {
		msg += fmt.Sprintf(" in %s", e.Method)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// CastError reports a coercion outside the convertibility relation, or a
// convertible pair with no lowering.
type CastError struct {
	From, To *metadata.Type
	Reason   string
}

func (e *CastError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("cannot cast %s to %s", e.From, e.To)
	}
	return fmt.Sprintf("cannot cast %s to %s: %s", e.From, e.To, e.Reason)
}

// DiscoveryError reports a malformed instruction stream.
type DiscoveryError struct {
	Offset int
	Method *metadata.Method
	Err    error
}

func (e *DiscoveryError) Error() string {
	where := fmt.Sprintf("IL_%04x", e.Offset)
	if e.Method != nil {
		where = fmt.Sprintf("%s at %s", e.Method, where)
	}
	return fmt.Sprintf("block discovery failed in %s: %v", where, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// VerificationError reports generated IR that failed structural checks. It
// only reaches callers when the fatal handler returns.
type VerificationError struct {
	Method   *metadata.Method
	Function string
	Err      error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification of %s failed: %v", e.Method, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// LoweringError reports an instruction whose operands do not fit the
// evaluation stack discipline, such as an underflow.
type LoweringError struct {
	Method *metadata.Method
	Offset int
	Opcode cil.Opcode
	Err    error
}

func (e *LoweringError) Error() string {
	return fmt.Sprintf("%s: IL_%04x %s: %v", e.Method, e.Offset, e.Opcode, e.Err)
}

func (e *LoweringError) Unwrap() error { return e.Err }
