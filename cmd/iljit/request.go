package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"iljit/internal/jit"
	"iljit/internal/pipeline"
)

// addSelectionFlags registers the flags shared by commands that pick
// methods out of images.
func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("method", "m", nil, "method selector, e.g. Ns.Type::Name/2 or [Image]Ns.Type::Name (repeatable)")
	cmd.Flags().IntP("jobs", "j", 0, "parallel units (0 = iljit.toml [jit].jobs or GOMAXPROCS)")
}

// newRequest builds a pipeline request from the command's flags and the
// session configuration.
func newRequest(cmd *cobra.Command, images []string) (*pipeline.Request, error) {
	selectors, err := cmd.Flags().GetStringArray("method")
	if err != nil {
		return nil, fmt.Errorf("failed to get method flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if jobs == 0 {
		jobs = sess.cfg.JIT.Jobs
	}
	opts := jit.DefaultOptions()
	opts.Optimize = sess.optimize
	return &pipeline.Request{
		Images:    images,
		Selectors: selectors,
		Jobs:      jobs,
		Options:   opts,
	}, nil
}
