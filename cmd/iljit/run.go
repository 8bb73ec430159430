package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"iljit/internal/exec"
	"iljit/internal/jit"
	"iljit/internal/metadata"
	"iljit/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <image>... -m <selector> [--arg v]...",
	Short: "Compile a static method and execute it in the engine",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExecution,
}

func init() {
	addSelectionFlags(runCmd)
	runCmd.Flags().StringArray("arg", nil, "argument value, one per parameter in order (repeatable)")
}

func runExecution(cmd *cobra.Command, args []string) error {
	req, err := newRequest(cmd, args)
	if err != nil {
		return err
	}
	if len(req.Selectors) != 1 {
		return fmt.Errorf("run needs exactly one --method, got %d", len(req.Selectors))
	}
	timings := &pipeline.Timings{}
	p, err := pipeline.Load(cmd.Context(), req, timings)
	if err != nil {
		return err
	}
	target, err := p.Find(req.Selectors[0])
	if err != nil {
		return err
	}
	m := target.Method
	if m.IsInstance() {
		return fmt.Errorf("%s is an instance method; run only invokes static methods", m)
	}

	raw, err := cmd.Flags().GetStringArray("arg")
	if err != nil {
		return err
	}
	if len(raw) != len(m.Params) {
		return fmt.Errorf("%s takes %d arguments, got %d", m, len(m.Params), len(raw))
	}
	values := make([]uint64, len(raw))
	for i, s := range raw {
		if values[i], err = parseArg(m.Params[i].Type, s); err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
	}

	opts := req.Options
	opts.Logger = commonlog.GetLogger("iljit.run")
	unit := jit.NewUnit(p.Images[target.Image].Name, p.Resolver, opts)
	defer unit.Close()

	start := time.Now()
	if _, err := unit.GetMethod(m); err != nil {
		return err
	}
	timings.Add(pipeline.StageCompile, time.Since(start))
	start = time.Now()
	got, err := unit.Invoke(m, values...)
	elapsed := time.Since(start)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatResult(m.ReturnType(), got))

	if show, _ := cmd.Root().PersistentFlags().GetBool("timings"); show {
		printStageTimings(cmd.ErrOrStderr(), timings)
		fmt.Fprintf(cmd.ErrOrStderr(), "%-8s %8.1f ms\n", "run", toMillis(elapsed))
	}
	return nil
}

func parseArg(t *metadata.Type, s string) (uint64, error) {
	if t.Kind != metadata.KindPrimitive {
		return 0, fmt.Errorf("cannot pass %s from the command line", t)
	}
	switch t.Prim {
	case metadata.PrimBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return 0, err
		}
		if b {
			return 1, nil
		}
		return 0, nil
	case metadata.PrimFloat32:
		f, err := strconv.ParseFloat(s, 32)
		return exec.Float32Arg(float32(f)), err
	case metadata.PrimFloat64:
		f, err := strconv.ParseFloat(s, 64)
		return exec.Float64Arg(f), err
	}
	if metadata.IsUnsigned(t) {
		v, err := strconv.ParseUint(s, 0, primBits(t.Prim))
		return v, err
	}
	v, err := strconv.ParseInt(s, 0, primBits(t.Prim))
	return exec.Int(v), err
}

func primBits(p metadata.Prim) int {
	switch p {
	case metadata.PrimInt8, metadata.PrimUInt8:
		return 8
	case metadata.PrimInt16, metadata.PrimUInt16, metadata.PrimChar:
		return 16
	case metadata.PrimInt32, metadata.PrimUInt32:
		return 32
	default:
		return 64
	}
}

func formatResult(t *metadata.Type, v uint64) string {
	if t.IsVoid() {
		return "(void)"
	}
	if t.Kind != metadata.KindPrimitive {
		return fmt.Sprintf("%s @ %#x", t, v)
	}
	switch t.Prim {
	case metadata.PrimBool:
		return strconv.FormatBool(exec.Bool(v))
	case metadata.PrimInt8:
		return strconv.Itoa(int(exec.I8(v)))
	case metadata.PrimInt16:
		return strconv.Itoa(int(exec.I16(v)))
	case metadata.PrimInt32:
		return strconv.Itoa(int(exec.I32(v)))
	case metadata.PrimInt64, metadata.PrimIntPtr:
		return strconv.FormatInt(exec.I64(v), 10)
	case metadata.PrimUInt8:
		return strconv.Itoa(int(exec.U8(v)))
	case metadata.PrimUInt16, metadata.PrimChar:
		return strconv.Itoa(int(exec.U16(v)))
	case metadata.PrimUInt32:
		return strconv.FormatUint(uint64(exec.U32(v)), 10)
	case metadata.PrimFloat32:
		return strconv.FormatFloat(float64(exec.F32(v)), 'g', -1, 32)
	case metadata.PrimFloat64:
		return strconv.FormatFloat(exec.F64(v), 'g', -1, 64)
	default:
		return strconv.FormatUint(v, 10)
	}
}
