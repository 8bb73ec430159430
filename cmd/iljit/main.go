package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/term"

	"iljit/internal/config"
	"iljit/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "iljit",
	Short: "Lower CIL method bodies to backend IR and run them",
	Long: `iljit reads metadata images (YAML, msgpack or CBOR), lowers the selected
method bodies to a typed SSA IR, verifies and optionally optimizes them, and
can execute the result in the built-in engine.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupSession,
}

// main registers subcommands and persistent flags, then runs the root
// command. A failing command exits with status 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(blocksCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.CountP("verbose", "v", "log more (repeat for more detail)")
	pf.Bool("optimize", true, "run the optimization passes (overrides ILJIT_OPTIMIZE and iljit.toml)")
	pf.Bool("timings", false, "show timing information")
	pf.String("ui", "auto", "progress UI (auto|on|off)")
	pf.String("trace", "", "trace output path (- for stderr)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	pf.String("trace-format", "auto", "trace rendering (auto|text|ndjson); auto picks ndjson for .ndjson and .jsonl paths")
	pf.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	pf.Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval (0 disables)")
	pf.String("cpu-profile", "", "write a CPU profile to this file")
	pf.String("mem-profile", "", "write a heap profile to this file on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to this file")

	err := rootCmd.Execute()
	sess.cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

// session holds what every command shares once flags are parsed.
type session struct {
	cfg      *config.File
	optimize bool
	cleanup  func()
}

var sess = &session{cleanup: func() {}}

func setupSession(cmd *cobra.Command, _ []string) error {
	root := cmd.Root().PersistentFlags()

	colored, err := readSwitch(cmd, "color", func() bool { return isTerminal(os.Stdout) })
	if err != nil {
		return err
	}
	color.NoColor = !colored

	verbosity, err := root.GetCount("verbose")
	if err != nil {
		return err
	}
	commonlog.Configure(verbosity, nil)

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Discover(wd)
	if err != nil {
		return err
	}
	sess.cfg = cfg

	var flag *bool
	if root.Changed("optimize") {
		v, err := root.GetBool("optimize")
		if err != nil {
			return err
		}
		flag = &v
	}
	optimize, source, err := cfg.Optimize(flag, os.Getenv)
	if err != nil {
		return err
	}
	sess.optimize = optimize
	commonlog.GetLogger("iljit.cli").Debugf("optimize=%v (from %s)", optimize, source)

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	stopTracing, err := setupTracing(cmd, cfg)
	if err != nil {
		stopProfiling()
		return err
	}
	sess.cleanup = func() {
		stopTracing()
		stopProfiling()
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
