// Package config loads the treeweave INI configuration and ignore patterns.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/treeweave/internal/utils"
)

const (
	// GitIgnoreFileName is read from the serialization root when gitignore support is on.
	GitIgnoreFileName = ".gitignore"
	// gitDirectoryPattern excludes the Git directory whenever gitignore support is on.
	gitDirectoryPattern = utils.GitDirectoryName + "/"
	commentPrefix       = "#"
	negationPrefix      = "!"
)

// LoadIgnoreFilePatterns reads an ignore file and returns its patterns.
// A missing file yields no patterns. Comments and negations are skipped.
//
// #nosec G304
func LoadIgnoreFilePatterns(ignoreFilePath string) ([]string, error) {
	fileHandle, openFileError := os.Open(ignoreFilePath)
	if openFileError != nil {
		if os.IsNotExist(openFileError) {
			return nil, nil
		}
		return nil, openFileError
	}
	defer fileHandle.Close()

	var ignorePatterns []string
	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		trimmedLine := strings.TrimSpace(scanner.Text())
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentPrefix) || strings.HasPrefix(trimmedLine, negationPrefix) {
			continue
		}
		ignorePatterns = append(ignorePatterns, strings.TrimPrefix(trimmedLine, "/"))
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, scanError
	}
	return ignorePatterns, nil
}

// LoadExclusionPatterns combines the root .gitignore (when useGitignore is
// set, together with the .git directory) and the explicit exclusion patterns
// into one deduplicated list.
func LoadExclusionPatterns(rootDirectoryPath string, exclusionPatterns []string, useGitignore bool) ([]string, error) {
	var combinedPatterns []string
	if useGitignore {
		gitIgnoreFilePath := filepath.Join(rootDirectoryPath, GitIgnoreFileName)
		gitIgnorePatterns, loadError := LoadIgnoreFilePatterns(gitIgnoreFilePath)
		if loadError != nil {
			return nil, fmt.Errorf("loading %s from %s: %w", GitIgnoreFileName, rootDirectoryPath, loadError)
		}
		combinedPatterns = append(combinedPatterns, gitDirectoryPattern)
		combinedPatterns = append(combinedPatterns, gitIgnorePatterns...)
	}
	combinedPatterns = append(combinedPatterns, exclusionPatterns...)
	return utils.DeduplicatePatterns(combinedPatterns), nil
}
