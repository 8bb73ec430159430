// Package config reads iljit.toml and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest searched for from the working directory upward.
const FileName = "iljit.toml"

// EnvOptimize overrides [jit].optimize when set.
const EnvOptimize = "ILJIT_OPTIMIZE"

// File is the decoded manifest.
type File struct {
	// Path is where the manifest was read from; empty when none was found.
	Path string `toml:"-"`

	JIT struct {
		Optimize *bool `toml:"optimize"`
		Jobs     int   `toml:"jobs"`
	} `toml:"jit"`
	Trace struct {
		Level  string `toml:"level"`
		Mode   string `toml:"mode"`
		Output string `toml:"output"`
	} `toml:"trace"`
	Cache struct {
		Enabled bool   `toml:"enabled"`
		Dir     string `toml:"dir"`
	} `toml:"cache"`
}

// Find walks up from startDir to locate iljit.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Load parses the manifest at path. Unknown keys are an error so that typos
// do not silently fall back to defaults.
func Load(path string) (*File, error) {
	f := &File{Path: path}
	meta, err := toml.DecodeFile(path, f)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if f.JIT.Jobs < 0 {
		return nil, fmt.Errorf("%s: [jit].jobs must not be negative", path)
	}
	if f.Cache.Dir != "" && !filepath.IsAbs(f.Cache.Dir) {
		f.Cache.Dir = filepath.Join(filepath.Dir(path), f.Cache.Dir)
	}
	return f, nil
}

// Discover loads the nearest manifest above startDir, or an empty File when
// there is none.
func Discover(startDir string) (*File, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &File{}, nil
	}
	return Load(path)
}

// Source names where a setting came from.
type Source string

const (
	SourceFlag    Source = "flag"
	SourceEnv     Source = "env"
	SourceFile    Source = "file"
	SourceDefault Source = "default"
)

// Optimize decides the optimize toggle. Precedence: the flag when set, then
// ILJIT_OPTIMIZE, then [jit].optimize, then true. getenv may be nil.
func (f *File) Optimize(flag *bool, getenv func(string) string) (bool, Source, error) {
	if flag != nil {
		return *flag, SourceFlag, nil
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(EnvOptimize)); v != "" {
		on, err := parseToggle(v)
		if err != nil {
			return false, SourceEnv, fmt.Errorf("%s: %w", EnvOptimize, err)
		}
		return on, SourceEnv, nil
	}
	if f != nil && f.JIT.Optimize != nil {
		return *f.JIT.Optimize, SourceFile, nil
	}
	return true, SourceDefault, nil
}

func parseToggle(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(v)
}
