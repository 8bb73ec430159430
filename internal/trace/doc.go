// Package trace records what the JIT does while it compiles.
//
// Spans mark the CLI command, each pipeline stage, each method compile and
// each lowered block, so a slow or stuck compile can be located after the
// fact:
//
//	iljit compile --trace=- --trace-level=detail app.yaml
//
// LevelPhase shows commands and stages, LevelDetail adds methods and
// LevelDebug adds blocks. LevelError shows only spans that ended with
// Fail, at any scope. Heartbeats pass every level except off and report
// how many spans are still open.
//
// The tracer and the current parent span travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.Start(ctx, trace.ScopeStage, "compile")
//	defer span.End("")
package trace
