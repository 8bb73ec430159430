package layout

import (
	"errors"
	"fmt"
	"strings"

	"iljit/internal/ir"
)

var (
	// ErrRecursive reports a struct that contains itself by value.
	ErrRecursive = errors.New("recursive value type has infinite size")
	// ErrOpaque reports a struct whose body is not set yet.
	ErrOpaque = errors.New("opaque struct has no layout")
	// ErrUnsized reports void and function types.
	ErrUnsized = errors.New("type has no storage size")
)

// Error ties one of the sentinel errors to the type it was found on.
type Error struct {
	Kind  error
	Type  *ir.Type
	Cycle []*ir.Type // ErrRecursive only; first and last are the same type
}

func (e *Error) Error() string {
	if len(e.Cycle) > 0 {
		names := make([]string, len(e.Cycle))
		for i, t := range e.Cycle {
			names[i] = t.String()
		}
		return fmt.Sprintf("%v (cycle: %s)", e.Kind, strings.Join(names, " -> "))
	}
	return fmt.Sprintf("%s: %v", e.Type, e.Kind)
}

func (e *Error) Unwrap() error { return e.Kind }
