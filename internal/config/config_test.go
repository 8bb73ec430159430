package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"iljit/internal/config"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDiscover_WalksUp(t *testing.T) {
	root := t.TempDir()
	want := writeManifest(t, root, "[jit]\noptimize = false\njobs = 3\n[cache]\nenabled = true\ndir = \"cache\"\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := config.Discover(nested)
	if err != nil {
		t.Fatal(err)
	}
	if f.Path != want {
		t.Fatalf("Path = %q, want %q", f.Path, want)
	}
	if f.JIT.Optimize == nil || *f.JIT.Optimize || f.JIT.Jobs != 3 {
		t.Fatalf("[jit] = %+v", f.JIT)
	}
	if f.Cache.Dir != filepath.Join(root, "cache") {
		t.Fatalf("cache dir %q is not anchored at the manifest", f.Cache.Dir)
	}
}

func TestDiscover_NoManifest(t *testing.T) {
	f, err := config.Discover(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if f.Path != "" || f.JIT.Optimize != nil {
		t.Fatalf("empty discovery = %+v", f)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"syntax", "[jit\n", "failed to parse"},
		{"unknown key", "[jit]\noptimise = true\n", "unknown keys: jit.optimise"},
		{"negative jobs", "[jit]\njobs = -1\n", "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeManifest(t, t.TempDir(), tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestOptimize_Precedence(t *testing.T) {
	off, on := false, true
	fileOff := &config.File{}
	fileOff.JIT.Optimize = &off
	env := func(v string) func(string) string {
		return func(k string) string {
			if k == config.EnvOptimize {
				return v
			}
			return ""
		}
	}
	tests := []struct {
		name   string
		file   *config.File
		flag   *bool
		env    string
		want   bool
		source config.Source
	}{
		{"default", &config.File{}, nil, "", true, config.SourceDefault},
		{"nil file", nil, nil, "", true, config.SourceDefault},
		{"file", fileOff, nil, "", false, config.SourceFile},
		{"env beats file", fileOff, nil, "1", true, config.SourceEnv},
		{"env off", &config.File{}, nil, "0", false, config.SourceEnv},
		{"env words", &config.File{}, nil, "off", false, config.SourceEnv},
		{"flag beats env", fileOff, &on, "0", true, config.SourceFlag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, src, err := tt.file.Optimize(tt.flag, env(tt.env))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want || src != tt.source {
				t.Fatalf("Optimize = %v from %s, want %v from %s", got, src, tt.want, tt.source)
			}
		})
	}
	if _, _, err := (&config.File{}).Optimize(nil, env("maybe")); err == nil {
		t.Fatal("invalid ILJIT_OPTIMIZE accepted")
	}
}
