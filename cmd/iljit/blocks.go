package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"iljit/internal/jit"
	"iljit/internal/pipeline"
)

var blocksCmd = &cobra.Command{
	Use:   "blocks [flags] <image>...",
	Short: "Print the basic-block partition of method bodies",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBlocks,
}

func init() {
	addSelectionFlags(blocksCmd)
}

func runBlocks(cmd *cobra.Command, args []string) error {
	req, err := newRequest(cmd, args)
	if err != nil {
		return err
	}
	p, err := pipeline.Load(cmd.Context(), req, &pipeline.Timings{})
	if err != nil {
		return err
	}
	targets, err := p.Targets(req.Selectors)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	failed := 0
	for _, t := range targets {
		if t.Method.Body == nil {
			fmt.Fprintf(out, "; %s: no body\n\n", t.Selector)
			continue
		}
		spans, err := jit.DiscoverBlocks(t.Method.Body.Code)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", color.RedString("failed"), t.Selector, err)
			continue
		}
		printSpans(out, t.Selector, spans)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d methods could not be partitioned", failed, len(targets))
	}
	return nil
}

func printSpans(out io.Writer, selector string, spans []jit.Span) {
	label := color.New(color.FgCyan, color.Bold)
	fmt.Fprintf(out, "; %s (%d blocks)\n", selector, len(spans))
	for _, sp := range spans {
		suffix := ""
		if sp.Fallthrough {
			suffix = color.YellowString("  falls through to IL_%04x", sp.End)
		}
		fmt.Fprintf(out, "%s%s\n", label.Sprintf("IL_%04x..IL_%04x", sp.Start, sp.End), suffix)
		for _, in := range sp.Instrs {
			fmt.Fprintf(out, "  IL_%04x: %s\n", in.Offset, in)
		}
	}
	fmt.Fprintln(out)
}
