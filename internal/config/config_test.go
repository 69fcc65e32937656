package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writeTestFile creates a file with the specified content, failing the test on error.
func writeTestFile(testingHandle *testing.T, filePath string, content string) {
	testingHandle.Helper()
	if writeError := os.WriteFile(filePath, []byte(content), 0o644); writeError != nil {
		testingHandle.Fatalf("failed to write %s: %v", filePath, writeError)
	}
}

// TestLoadIgnoreFilePatternsSkipsCommentsAndNegations verifies pattern filtering.
func TestLoadIgnoreFilePatternsSkipsCommentsAndNegations(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	ignoreFilePath := filepath.Join(rootDirectory, GitIgnoreFileName)
	writeTestFile(testingHandle, ignoreFilePath, "# build output\n/dist/\n\n!keep.log\n*.log\n")

	patternList, loadError := LoadIgnoreFilePatterns(ignoreFilePath)
	if loadError != nil {
		testingHandle.Fatalf("LoadIgnoreFilePatterns failed: %v", loadError)
	}
	expectedPatterns := []string{"dist/", "*.log"}
	if !reflect.DeepEqual(patternList, expectedPatterns) {
		testingHandle.Fatalf("unexpected patterns: got %v want %v", patternList, expectedPatterns)
	}
}

// TestLoadIgnoreFilePatternsMissingFile verifies that a missing file yields no patterns.
func TestLoadIgnoreFilePatternsMissingFile(testingHandle *testing.T) {
	patternList, loadError := LoadIgnoreFilePatterns(filepath.Join(testingHandle.TempDir(), GitIgnoreFileName))
	if loadError != nil {
		testingHandle.Fatalf("expected no error, got %v", loadError)
	}
	if len(patternList) != 0 {
		testingHandle.Fatalf("expected no patterns, got %v", patternList)
	}
}

// TestLoadExclusionPatterns verifies gitignore aggregation and deduplication.
func TestLoadExclusionPatterns(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, GitIgnoreFileName), "vendor/\n*.tmp\n")

	withGitignore, loadError := LoadExclusionPatterns(rootDirectory, []string{"*.tmp", "cache/"}, true)
	if loadError != nil {
		testingHandle.Fatalf("LoadExclusionPatterns failed: %v", loadError)
	}
	expectedWithGitignore := []string{gitDirectoryPattern, "vendor/", "*.tmp", "cache/"}
	if !reflect.DeepEqual(withGitignore, expectedWithGitignore) {
		testingHandle.Fatalf("unexpected patterns: got %v want %v", withGitignore, expectedWithGitignore)
	}

	withoutGitignore, loadError := LoadExclusionPatterns(rootDirectory, []string{"cache/"}, false)
	if loadError != nil {
		testingHandle.Fatalf("LoadExclusionPatterns failed: %v", loadError)
	}
	if !reflect.DeepEqual(withoutGitignore, []string{"cache/"}) {
		testingHandle.Fatalf("expected only explicit patterns, got %v", withoutGitignore)
	}
}
