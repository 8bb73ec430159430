package jit

import (
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"iljit/internal/exec"
	"iljit/internal/ir"
	"iljit/internal/metadata"
	"iljit/internal/trace"
)

// FatalHandler runs when a lowered function fails verification. The default
// handler never returns. A handler that returns turns the failure into a
// VerificationError for the caller.
type FatalHandler func(m *metadata.Method, fn *ir.Function, err error)

// Options configures a Unit.
type Options struct {
	// Optimize runs the pass pipeline after verification.
	Optimize bool
	Tracer   trace.Tracer
	// TraceParent is the span the unit's method spans hang under.
	TraceParent uint64
	Logger      commonlog.Logger
	Fatal       FatalHandler
	Exec        exec.Config
}

// DefaultOptions enables optimization and logs under "iljit.jit".
func DefaultOptions() Options {
	return Options{Optimize: true}
}

func (o Options) withDefaults() Options {
	if o.Tracer == nil {
		o.Tracer = trace.Nop
	}
	if o.Logger == nil {
		o.Logger = commonlog.GetLogger("iljit.jit")
	}
	if o.Fatal == nil {
		o.Fatal = exitOnFailure(o.Logger, os.Stderr, os.Exit)
	}
	return o
}

// exitOnFailure reports to w as well as the logger, so the malformed
// function is printed even when no log backend is configured.
func exitOnFailure(log commonlog.Logger, w io.Writer, exit func(int)) FatalHandler {
	return func(m *metadata.Method, fn *ir.Function, err error) {
		log.Criticalf("generated IR for %s does not verify: %v", m, err)
		fmt.Fprintf(w, "iljit: generated IR for %s does not verify:\n%v\n\n%s\n", m, err, fn)
		exit(1)
	}
}
