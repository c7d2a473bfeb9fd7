package main

import (
	"fmt"
	"os"
	"strings"
)

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

// parseSwitch reads an auto|on|off flag; empty means auto.
func parseSwitch(flag, value string) (uiMode, error) {
	switch mode := uiMode(strings.TrimSpace(strings.ToLower(value))); mode {
	case "":
		return uiModeAuto, nil
	case uiModeAuto, uiModeOn, uiModeOff:
		return mode, nil
	}
	return "", fmt.Errorf("invalid --%s value %q (expected auto|on|off)", flag, value)
}

func readUIMode(value string) (uiMode, error) {
	return parseSwitch("ui", value)
}

// readColor resolves --color; auto follows whether f is a terminal.
func readColor(value string, f *os.File) (bool, error) {
	mode, err := parseSwitch("color", value)
	if err != nil {
		return false, err
	}
	return resolveSwitch(mode, f), nil
}

// shouldUseTUI renders progress on stderr so that stdout stays machine-readable.
func shouldUseTUI(mode uiMode) bool {
	return resolveSwitch(mode, os.Stderr)
}

func resolveSwitch(mode uiMode, f *os.File) bool {
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	}
	return isTerminal(f)
}
