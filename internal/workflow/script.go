package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"

	"github.com/temirov/treeweave/internal/structure"
)

const (
	scriptPermissions          os.FileMode = 0o755
	outputDirectoryPermissions os.FileMode = 0o755
)

var errEmptyShell = errors.New("shell command is empty")

// writeScript writes script to outputDirectory/scriptName and marks it executable.
func writeScript(outputDirectory string, scriptName string, script string) (string, error) {
	if nameError := structure.ValidateName(scriptName); nameError != nil {
		return "", fmt.Errorf("script name: %w", nameError)
	}
	absoluteOutputDirectory, absoluteError := filepath.Abs(outputDirectory)
	if absoluteError != nil {
		return "", fmt.Errorf("resolve output directory %s: %w", outputDirectory, absoluteError)
	}
	if makeError := os.MkdirAll(absoluteOutputDirectory, outputDirectoryPermissions); makeError != nil {
		return "", &structure.WriteError{Path: absoluteOutputDirectory, Err: makeError}
	}
	scriptPath := filepath.Join(absoluteOutputDirectory, scriptName)
	if writeError := os.WriteFile(scriptPath, []byte(script), scriptPermissions); writeError != nil {
		return "", &structure.WriteError{Path: scriptPath, Err: writeError}
	}
	// WriteFile keeps the mode of an existing file, so set it explicitly.
	if chmodError := os.Chmod(scriptPath, scriptPermissions); chmodError != nil {
		return "", &structure.WriteError{Path: scriptPath, Err: chmodError}
	}
	return scriptPath, nil
}

// shellCommand splits the configured shell, which may carry arguments such as
// "bash -x", and appends the script path.
func shellCommand(shell string, scriptPath string) ([]string, error) {
	shellArguments, parseError := shellwords.Parse(shell)
	if parseError != nil {
		return nil, fmt.Errorf("parse shell %q: %w", shell, parseError)
	}
	if len(shellArguments) == 0 {
		return nil, errEmptyShell
	}
	return append(shellArguments, scriptPath), nil
}

// executeScript runs the script in outputDirectory and returns its combined output.
func (runner *Runner) executeScript(ctx context.Context, outputDirectory string, scriptPath string, runLogger *zap.Logger) (string, error) {
	commandLine, commandError := shellCommand(runner.shell, scriptPath)
	if commandError != nil {
		return "", commandError
	}
	command := exec.CommandContext(ctx, commandLine[0], commandLine[1:]...)
	command.Dir = outputDirectory
	var combinedOutput bytes.Buffer
	command.Stdout = &combinedOutput
	command.Stderr = &combinedOutput

	runLogger.Debug("Executing structure script", zap.Strings("command", commandLine))
	runError := command.Run()
	output := combinedOutput.String()
	if trimmedOutput := strings.TrimSpace(output); trimmedOutput != "" {
		runLogger.Debug("Script output", zap.String("output", trimmedOutput))
	}
	if runError != nil {
		return output, fmt.Errorf("execute %s: %w", scriptPath, runError)
	}
	return output, nil
}
