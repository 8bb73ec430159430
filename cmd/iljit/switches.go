package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// switchMode is the value of an auto|on|off flag such as --color or --ui.
type switchMode uint8

const (
	switchAuto switchMode = iota
	switchOn
	switchOff
)

func parseSwitch(flag, value string) (switchMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return switchAuto, nil
	case "on":
		return switchOn, nil
	case "off":
		return switchOff, nil
	}
	return switchAuto, fmt.Errorf("invalid --%s value %q (expected auto|on|off)", flag, value)
}

// enabled resolves the switch, asking auto only in auto mode.
func (m switchMode) enabled(auto func() bool) bool {
	switch m {
	case switchOn:
		return true
	case switchOff:
		return false
	}
	return auto()
}

// readSwitch parses the persistent auto|on|off flag called name.
func readSwitch(cmd *cobra.Command, name string, auto func() bool) (bool, error) {
	v, err := cmd.Root().PersistentFlags().GetString(name)
	if err != nil {
		return false, err
	}
	mode, err := parseSwitch(name, v)
	if err != nil {
		return false, err
	}
	return mode.enabled(auto), nil
}

// useTUI decides whether the progress UI runs. In auto mode it needs a
// terminal on stderr, where it draws, and stdout redirected elsewhere so
// that emitted IR is not interleaved with it.
func useTUI(cmd *cobra.Command) (bool, error) {
	return readSwitch(cmd, "ui", func() bool {
		return isTerminal(os.Stderr) && !isTerminal(os.Stdout)
	})
}
