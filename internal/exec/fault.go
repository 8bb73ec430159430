package exec

import (
	"errors"
	"fmt"
	"strings"
)

// FaultCode identifies the kind of runtime fault.
type FaultCode int

// Stable fault codes.
const (
	FaultBadAddress    FaultCode = 1001 // EX1001: access outside mapped memory
	FaultStackOverflow FaultCode = 1002 // EX1002: frame stack or call depth exhausted
	FaultUndefined     FaultCode = 1003 // EX1003: call to a function without a body
	FaultBadValue      FaultCode = 1004 // EX1004: value of an unexpected type
	FaultUnimplemented FaultCode = 1999 // EX1999: instruction the engine cannot run
)

// String returns the code as "EX1001".
func (c FaultCode) String() string {
	return fmt.Sprintf("EX%d", c)
}

// Fault is a runtime failure inside the engine.
type Fault struct {
	Code    FaultCode
	Message string
	// Backtrace lists the active functions from innermost to outermost.
	Backtrace []string
}

func (f *Fault) Error() string {
	if len(f.Backtrace) == 0 {
		return fmt.Sprintf("fault %s: %s", f.Code, f.Message)
	}
	return fmt.Sprintf("fault %s: %s (in %s)", f.Code, f.Message, strings.Join(f.Backtrace, " <- "))
}

// ErrClosed is returned by every operation on a closed engine.
var ErrClosed = errors.New("execution engine closed")

func (e *Engine) fault(code FaultCode, format string, args ...any) *Fault {
	f := &Fault{Code: code, Message: fmt.Sprintf(format, args...)}
	for i := len(e.frames) - 1; i >= 0; i-- {
		f.Backtrace = append(f.Backtrace, e.frames[i].fn.Name)
	}
	return f
}
