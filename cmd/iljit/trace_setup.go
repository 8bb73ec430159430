package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"iljit/internal/config"
	"iljit/internal/trace"
)

// setupTracing builds the tracer from the trace flags, falling back to the
// [trace] table of iljit.toml for flags left at their defaults. It returns
// a cleanup function that flushes and closes the tracer.
func setupTracing(cmd *cobra.Command, cfg *config.File) (func(), error) {
	flags := cmd.Root().PersistentFlags()
	pick := func(name, fromFile string) (string, error) {
		v, err := flags.GetString(name)
		if err != nil {
			return "", fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		if !flags.Changed(name) && fromFile != "" {
			return fromFile, nil
		}
		return v, nil
	}

	traceOutput, err := pick("trace", cfg.Trace.Output)
	if err != nil {
		return nil, err
	}
	levelStr, err := pick("trace-level", cfg.Trace.Level)
	if err != nil {
		return nil, err
	}
	modeStr, err := pick("trace-mode", cfg.Trace.Mode)
	if err != nil {
		return nil, err
	}
	formatStr, err := flags.GetString("trace-format")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-format flag: %w", err)
	}
	ringSize, err := flags.GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	heartbeatInterval, err := flags.GetDuration("trace-heartbeat")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}
	// An output path alone turns tracing on at phase level.
	if level == trace.LevelOff && traceOutput != "" {
		level = trace.LevelPhase
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}
	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, err
	}
	format, err := trace.ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: traceOutput,
		RingSize:   ringSize,
		Heartbeat:  heartbeatInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	ctx, root := trace.Start(trace.WithTracer(cmd.Context(), tracer), trace.ScopeCommand, cmd.CommandPath())
	cmd.SetContext(ctx)

	var heartbeat *trace.Heartbeat
	if heartbeatInterval > 0 {
		heartbeat = trace.StartHeartbeat(tracer, heartbeatInterval)
	}

	done := false
	return func() {
		if done {
			return
		}
		done = true
		if heartbeat != nil {
			heartbeat.Stop()
		}
		root.End("")
		// A stream on stderr already showed every event.
		if mode == trace.ModeRing || (traceOutput != "" && traceOutput != "-") {
			dumpFailures(cmd, tracer, format)
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}, nil
}

// dumpFailures writes the ring buffer to stderr when it holds a failed span,
// so a trace kept in memory or in a file still explains what went wrong.
func dumpFailures(cmd *cobra.Command, tracer trace.Tracer, format trace.Format) {
	var ring *trace.RingTracer
	switch t := tracer.(type) {
	case *trace.RingTracer:
		ring = t
	case *trace.MultiTracer:
		ring = t.Ring()
	}
	if ring == nil || len(ring.Failures()) == 0 {
		return
	}
	if format == trace.FormatAuto {
		format = trace.FormatText
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "trace: recent events before the failure:")
	if err := ring.Dump(cmd.ErrOrStderr(), format); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
	}
}
