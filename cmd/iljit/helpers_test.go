package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"iljit/internal/exec"
	"iljit/internal/jit"
	"iljit/internal/metadata"
	"iljit/internal/pipeline"
)

func TestParseArg(t *testing.T) {
	tests := []struct {
		typ  *metadata.Type
		in   string
		want uint64
	}{
		{metadata.Int32, "-7", exec.Int(-7)},
		{metadata.Int8, "0x7f", 0x7f},
		{metadata.UInt32, "4000000000", 4000000000},
		{metadata.Bool, "true", 1},
		{metadata.Float64, "2.5", exec.Float64Arg(2.5)},
		{metadata.Float32, "-1", exec.Float32Arg(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String()+"/"+tt.in, func(t *testing.T) {
			got, err := parseArg(tt.typ, tt.in)
			if err != nil || got != tt.want {
				t.Fatalf("parseArg = %#x, %v; want %#x", got, err, tt.want)
			}
		})
	}
	for _, bad := range []struct {
		typ *metadata.Type
		in  string
	}{
		{metadata.Int8, "300"},
		{metadata.UInt16, "-1"},
		{metadata.Int32.MakeByRef(), "1"},
	} {
		if _, err := parseArg(bad.typ, bad.in); err == nil {
			t.Errorf("parseArg(%s, %q) succeeded", bad.typ, bad.in)
		}
	}
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		typ  *metadata.Type
		v    uint64
		want string
	}{
		{metadata.Void, 0, "(void)"},
		{metadata.Int32, exec.Int(-3), "-3"},
		{metadata.UInt8, 0x1ff, "255"},
		{metadata.Bool, 1, "true"},
		{metadata.Float64, exec.Float64Arg(0.5), "0.5"},
	}
	for _, tt := range tests {
		if got := formatResult(tt.typ, tt.v); got != tt.want {
			t.Errorf("formatResult(%s, %#x) = %q, want %q", tt.typ, tt.v, got, tt.want)
		}
	}
}

func TestParseSwitch(t *testing.T) {
	for in, want := range map[string]switchMode{"": switchAuto, "AUTO": switchAuto, "on": switchOn, " off ": switchOff} {
		if got, err := parseSwitch("ui", in); err != nil || got != want {
			t.Errorf("parseSwitch(%q) = %d, %v", in, got, err)
		}
	}
	if _, err := parseSwitch("color", "sometimes"); err == nil || !strings.Contains(err.Error(), "--color") {
		t.Errorf("parseSwitch accepted garbage or misnamed the flag: %v", err)
	}
	asked := false
	auto := func() bool { asked = true; return true }
	if switchOff.enabled(auto) || asked {
		t.Error("off consulted auto or came out enabled")
	}
	if !switchAuto.enabled(auto) || !asked {
		t.Error("auto did not defer to the probe")
	}
}

func TestWriteIRSkipsFailures(t *testing.T) {
	res := &pipeline.Result{Methods: []pipeline.MethodResult{
		{Selector: "[A]T::M/0", IR: "define i32 @M() {\n}\n"},
		{Selector: "[A]T::N/0", Err: &jit.LoweringError{}},
		{Selector: "[A]T::O/0", IR: "define void @O() {\n}\n", Cached: true},
	}}
	var buf bytes.Buffer
	if err := writeIR(&buf, res); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "T::N") || !strings.Contains(out, "; [A]T::O/0 (cached)") || !strings.Contains(out, "@M()") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestPrintStageTimings(t *testing.T) {
	timings := &pipeline.Timings{}
	timings.Add(pipeline.StageLoad, 2*time.Millisecond)
	timings.Add(pipeline.StageCompile, 3*time.Millisecond)
	var buf bytes.Buffer
	printStageTimings(&buf, timings)
	out := buf.String()
	if !strings.Contains(out, "load") || strings.Contains(out, "emit") || !strings.Contains(out, "5.0 ms") {
		t.Fatalf("timings:\n%s", out)
	}
}

func TestRunVersion(t *testing.T) {
	cmd := &cobra.Command{Use: "version", RunE: runVersion}
	f := cmd.Flags()
	f.Bool("hash", false, "")
	f.Bool("message", false, "")
	f.Bool("date", false, "")
	f.Bool("full", false, "")
	f.String("format", "pretty", "")

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	if err := f.Set("format", "json"); err != nil {
		t.Fatal(err)
	}
	if err := f.Set("hash", "true"); err != nil {
		t.Fatal(err)
	}
	if err := runVersion(cmd, nil); err != nil {
		t.Fatal(err)
	}
	var rep versionReport
	if err := json.Unmarshal(buf.Bytes(), &rep); err != nil {
		t.Fatalf("bad json %q: %v", buf.String(), err)
	}
	if rep.Tool != "iljit" || rep.Commit == "" || rep.Message != "" || rep.Target == "" {
		t.Fatalf("report = %+v", rep)
	}

	buf.Reset()
	_ = f.Set("format", "pretty")
	_ = f.Set("full", "true")
	if err := runVersion(cmd, nil); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"iljit ", "commit:", "message:", "built:"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("pretty output lacks %q:\n%s", want, buf.String())
		}
	}

	_ = f.Set("format", "yaml")
	if err := runVersion(cmd, nil); err == nil {
		t.Fatal("unknown format accepted")
	}
}
