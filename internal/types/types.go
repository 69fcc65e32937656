// Package types defines the data structures shared by the treeweave CLI and workflow.
package types

import (
	"fmt"
	"strings"
)

// Mode selects what a run does with the serialized tree.
type Mode string

const (
	// ModeText prints the serialized tree, or the endpoint reply when a query is given.
	ModeText Mode = "text"
	// ModeRecreate materializes the endpoint reply as files under the output directory.
	ModeRecreate Mode = "recreate"
	// ModeBash writes the endpoint reply as a shell script and runs it.
	ModeBash Mode = "bash"
)

// Modes lists every supported mode in help order.
var Modes = []Mode{ModeRecreate, ModeText, ModeBash}

// ParseMode converts a flag value into a Mode.
func ParseMode(value string) (Mode, error) {
	normalized := Mode(strings.ToLower(strings.TrimSpace(value)))
	for _, mode := range Modes {
		if normalized == mode {
			return mode, nil
		}
	}
	return "", fmt.Errorf("unsupported mode %q (expected one of %s)", value, JoinModes(", "))
}

// JoinModes renders Modes separated by separator.
func JoinModes(separator string) string {
	names := make([]string, 0, len(Modes))
	for _, mode := range Modes {
		names = append(names, string(mode))
	}
	return strings.Join(names, separator)
}

// RunSummary describes the outcome of one workflow run.
type RunSummary struct {
	RunID          string
	Mode           Mode
	Directories    int
	Files          int
	Faults         int
	Skipped        int
	Warnings       int
	PromptTokens   int
	TokenizerModel string
	// OutputPath is the materialized directory or the written script.
	OutputPath string
	// ScriptOutput holds the combined stdout and stderr of a bash mode run.
	ScriptOutput string
}
