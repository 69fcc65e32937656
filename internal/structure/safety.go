package structure

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateName checks that name is a single path segment: not empty, not "."
// or "..", without separators and not absolute.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("reserved name %q", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("name %q contains a path separator", name)
	}
	if filepath.IsAbs(name) {
		return fmt.Errorf("absolute name %q", name)
	}
	return nil
}

// SafeJoin joins parts under root and rejects results that escape root.
func SafeJoin(root string, parts ...string) (string, error) {
	joinedPath := filepath.Join(append([]string{root}, parts...)...)
	cleanRoot := filepath.Clean(root)
	cleanPath := filepath.Clean(joinedPath)

	relativePath, relativeError := filepath.Rel(cleanRoot, cleanPath)
	if relativeError != nil {
		return "", relativeError
	}
	slashedPath := filepath.ToSlash(relativePath)
	if slashedPath == ".." || strings.HasPrefix(slashedPath, "../") {
		return "", fmt.Errorf("path %s escapes %s", joinedPath, cleanRoot)
	}
	return cleanPath, nil
}
