package layout

import (
	"fmt"
	"runtime"
)

// Target is the pointer model layouts are computed for. Lowering and the
// engine both address memory with 64-bit integers, so only 64-bit targets
// are known.
type Target struct {
	Arch     string // LLVM architecture name
	PtrSize  int    // bytes
	PtrAlign int    // bytes
}

var targets = map[string]Target{
	"amd64":   {Arch: "x86_64", PtrSize: 8, PtrAlign: 8},
	"arm64":   {Arch: "aarch64", PtrSize: 8, PtrAlign: 8},
	"riscv64": {Arch: "riscv64", PtrSize: 8, PtrAlign: 8},
	"ppc64le": {Arch: "powerpc64le", PtrSize: 8, PtrAlign: 8},
	"s390x":   {Arch: "s390x", PtrSize: 8, PtrAlign: 8},
}

// Host returns the target of the running process. Hosts without a known
// 64-bit model get the amd64 one.
func Host() Target {
	if t, ok := targets[runtime.GOARCH]; ok {
		return t
	}
	return targets["amd64"]
}

// ParseTarget looks a target up by GOARCH or LLVM architecture name.
func ParseTarget(name string) (Target, error) {
	if t, ok := targets[name]; ok {
		return t, nil
	}
	for _, t := range targets {
		if t.Arch == name {
			return t, nil
		}
	}
	return Target{}, fmt.Errorf("unknown target %q", name)
}
