package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"iljit/internal/layout"
	"iljit/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show iljit build metadata and the JIT target",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	f := versionCmd.Flags()
	f.Bool("hash", false, "include git commit hash")
	f.Bool("message", false, "include git commit message")
	f.Bool("date", false, "include build timestamp")
	f.Bool("full", false, "show all recorded build metadata")
	f.String("format", "pretty", "output format (pretty|json)")
}

// versionReport is what the command prints. Optional fields stay empty
// unless their flag (or --full) asked for them.
type versionReport struct {
	Tool    string `json:"tool"`
	Version string `json:"version"`
	Target  string `json:"target"`
	Go      string `json:"go"`
	Commit  string `json:"git_commit,omitempty"`
	Message string `json:"git_message,omitempty"`
	Built   string `json:"build_date,omitempty"`
}

func runVersion(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	format, err := flags.GetString("format")
	if err != nil {
		return err
	}
	full, _ := flags.GetBool("full")
	want := func(name string) bool {
		v, _ := flags.GetBool(name)
		return v || full
	}

	info := version.Current()
	rep := versionReport{
		Tool:    "iljit",
		Version: info.Version,
		Target:  layout.Host().Arch + "-" + runtime.GOOS,
		Go:      runtime.Version(),
	}
	if want("hash") {
		rep.Commit = orUnknown(info.GitCommit)
	}
	if want("message") {
		rep.Message = orUnknown(info.GitMessage)
	}
	if want("date") {
		rep.Built = orUnknown(info.BuildDate)
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "pretty":
		fmt.Fprintf(out, "iljit %s (%s, %s)\n", version.Pretty(rep.Version), rep.Target, rep.Go)
		for _, line := range [][2]string{{"commit", rep.Commit}, {"message", rep.Message}, {"built", rep.Built}} {
			if line[1] != "" {
				fmt.Fprintf(out, "%-8s %s\n", line[0]+":", line[1])
			}
		}
		return nil
	}
	return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
