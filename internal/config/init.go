package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// InitTarget selects the file written by InitializeConfiguration.
type InitTarget string

const (
	// InitTargetLocal writes treeweave.ini into the working directory.
	InitTargetLocal InitTarget = "local"
	// InitTargetGlobal writes ~/.treeweave/config.ini.
	InitTargetGlobal InitTarget = "global"

	configurationDirectoryPermissions os.FileMode = 0o755
	configurationFilePermissions      os.FileMode = 0o600

	configurationTemplate = `[LMStudio]
endpoint = http://localhost:1234/v1/chat/completions
model = local-model
temperature = 0.7
max_tokens = 2048
timeout_seconds = 30
; default_query = Improve the following project.
; api_key =

[Structure]
indent_width = 4
max_file_bytes = 0
; max_file_bytes = 512kb
; exclude = node_modules/,*.log
use_gitignore = false

[Bash]
script_name = create_structure.sh
shell = bash
`
)

// ErrConfigurationExists is returned when the target file exists and Force is not set.
var ErrConfigurationExists = errors.New("configuration file already exists")

// InitOptions controls InitializeConfiguration.
type InitOptions struct {
	Target           InitTarget
	Force            bool
	WorkingDirectory string
}

// InitializeConfiguration writes the commented default configuration and
// returns its path.
func InitializeConfiguration(options InitOptions) (string, error) {
	destinationPath, pathError := configurationPathFor(options)
	if pathError != nil {
		return "", pathError
	}
	if makeDirectoryError := os.MkdirAll(filepath.Dir(destinationPath), configurationDirectoryPermissions); makeDirectoryError != nil {
		return "", fmt.Errorf("create configuration directory for %s: %w", destinationPath, makeDirectoryError)
	}

	openFlags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !options.Force {
		openFlags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	configurationFile, openError := os.OpenFile(destinationPath, openFlags, configurationFilePermissions)
	if openError != nil {
		if errors.Is(openError, os.ErrExist) {
			return "", fmt.Errorf("%w at %s", ErrConfigurationExists, destinationPath)
		}
		return "", fmt.Errorf("open configuration %s: %w", destinationPath, openError)
	}
	_, writeError := configurationFile.WriteString(configurationTemplate)
	closeError := configurationFile.Close()
	if writeError != nil {
		return "", fmt.Errorf("write configuration to %s: %w", destinationPath, writeError)
	}
	if closeError != nil {
		return "", fmt.Errorf("close configuration %s: %w", destinationPath, closeError)
	}
	return destinationPath, nil
}

// configurationPathFor resolves the file that matches the lookup order of
// LoadApplicationConfiguration for the requested target.
func configurationPathFor(options InitOptions) (string, error) {
	switch options.Target {
	case "", InitTargetLocal:
		workingDirectory := options.WorkingDirectory
		if workingDirectory == "" {
			currentDirectory, workingDirectoryError := os.Getwd()
			if workingDirectoryError != nil {
				return "", fmt.Errorf("determine working directory: %w", workingDirectoryError)
			}
			workingDirectory = currentDirectory
		}
		return filepath.Join(workingDirectory, LocalConfigFileName), nil
	case InitTargetGlobal:
		homeDirectory, homeError := os.UserHomeDir()
		if homeError != nil {
			return "", fmt.Errorf("resolve home directory: %w", homeError)
		}
		return filepath.Join(homeDirectory, GlobalConfigDirectoryName, GlobalConfigFileName), nil
	default:
		return "", fmt.Errorf("unsupported init target %q", options.Target)
	}
}
