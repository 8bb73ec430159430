package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"iljit/internal/pipeline"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] <image>...",
	Short: "Lower methods to IR and print it",
	Long: `Load the given images, build them in import order and lower the selected
methods (every method with a body when no --method is given). The IR of each
method is printed to stdout or to --output.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompile,
}

func init() {
	addSelectionFlags(compileCmd)
	compileCmd.Flags().StringP("output", "o", "", "write IR to this file instead of stdout")
	compileCmd.Flags().Bool("cache", false, "serve and store IR in the disk cache (also [cache].enabled)")
	compileCmd.Flags().String("cache-dir", "", "disk cache directory (default [cache].dir or $XDG_CACHE_HOME/iljit)")
	compileCmd.Flags().Bool("clear-cache", false, "drop every cache entry before compiling")
}

func runCompile(cmd *cobra.Command, args []string) error {
	req, err := newRequest(cmd, args)
	if err != nil {
		return err
	}
	if req.Cache, err = openCache(cmd); err != nil {
		return err
	}

	tui, err := useTUI(cmd)
	if err != nil {
		return err
	}
	var res *pipeline.Result
	if tui {
		res, err = compileWithUI(cmd.Context(), "compiling", req, os.Stderr)
	} else {
		res, err = pipeline.Compile(cmd.Context(), req)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := writeIR(out, res); err != nil {
		return err
	}

	if timings, _ := cmd.Root().PersistentFlags().GetBool("timings"); timings {
		printStageTimings(cmd.ErrOrStderr(), res.Timings)
	}
	failed := 0
	for _, m := range res.Methods {
		if m.Err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", color.RedString("failed"), m.Selector, m.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d methods failed to compile", failed, len(res.Methods))
	}
	return nil
}

func writeIR(out io.Writer, res *pipeline.Result) error {
	for _, m := range res.Methods {
		if m.Err != nil {
			continue
		}
		note := ""
		if m.Cached {
			note = " (cached)"
		}
		if _, err := fmt.Fprintf(out, "; %s%s\n%s\n", m.Selector, note, m.IR); err != nil {
			return err
		}
	}
	return nil
}

func openCache(cmd *cobra.Command) (*pipeline.DiskCache, error) {
	enabled, err := cmd.Flags().GetBool("cache")
	if err != nil {
		return nil, err
	}
	if !cmd.Flags().Changed("cache") {
		enabled = sess.cfg.Cache.Enabled
	}
	if !enabled {
		return nil, nil
	}
	dir, err := cmd.Flags().GetString("cache-dir")
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = sess.cfg.Cache.Dir
	}
	cache, err := pipeline.OpenDiskCache(dir)
	if err != nil {
		return nil, fmt.Errorf("disk cache: %w", err)
	}
	if clear, _ := cmd.Flags().GetBool("clear-cache"); clear {
		if err := cache.DropAll(); err != nil {
			return nil, fmt.Errorf("disk cache: %w", err)
		}
	}
	return cache, nil
}
