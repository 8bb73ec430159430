package resolve

import (
	"fmt"

	"iljit/internal/metadata"
)

// Kind names the descriptor a token was expected to resolve to.
type Kind uint8

const (
	KindType Kind = iota + 1
	KindMethod
	KindField
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindMethod:
		return "method"
	case KindField:
		return "field"
	default:
		return "symbol"
	}
}

// ResolutionError reports a token that no known module could resolve.
type ResolutionError struct {
	Kind   Kind
	Token  metadata.Token
	Caller *metadata.Method
	Err    error
}

func (e *ResolutionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("cannot resolve %s token %s", e.Kind, e.Token)
	if e.Caller != nil {
		msg += fmt.Sprintf(" in %s", e.Caller)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }
