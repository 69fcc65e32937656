// Package utils contains ignore pattern matching and formatting helpers shared by treeweave packages.
package utils

import (
	"path"
	"strings"
)

const pathSegmentSeparator = "/"

// DeduplicatePatterns trims every pattern, drops blanks and keeps the first
// occurrence of each remaining pattern in order.
func DeduplicatePatterns(patterns []string) []string {
	seenPatterns := make(map[string]struct{}, len(patterns))
	uniquePatterns := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		trimmedPattern := strings.TrimSpace(pattern)
		if trimmedPattern == "" {
			continue
		}
		if _, seen := seenPatterns[trimmedPattern]; seen {
			continue
		}
		seenPatterns[trimmedPattern] = struct{}{}
		uniquePatterns = append(uniquePatterns, trimmedPattern)
	}
	return uniquePatterns
}

// ShouldIgnoreByPath reports whether a slash-separated path relative to the
// serialization root is excluded by ignorePatterns:
//
//   - "name/" excludes any directory called name, at any depth, with everything below it;
//   - "a/b/" excludes that directory relative to the root with everything below it;
//   - "*.log" (one segment) matches the last path segment anywhere;
//   - "a/*.go" (several segments) must match the whole path segment by segment.
//
// Segments use path.Match syntax. Backslashes are treated as separators.
func ShouldIgnoreByPath(relativePath string, ignorePatterns []string) bool {
	pathSegments := splitSegments(relativePath)
	for _, pattern := range ignorePatterns {
		directoryOnly := strings.HasSuffix(strings.ReplaceAll(pattern, `\`, pathSegmentSeparator), pathSegmentSeparator)
		patternSegments := splitSegments(pattern)
		if len(patternSegments) == 0 {
			continue
		}
		if matchesPattern(pathSegments, patternSegments, directoryOnly) {
			return true
		}
	}
	return false
}

func matchesPattern(pathSegments []string, patternSegments []string, directoryOnly bool) bool {
	switch {
	case directoryOnly && len(patternSegments) == 1:
		for _, pathSegment := range pathSegments {
			if segmentMatches(patternSegments[0], pathSegment) {
				return true
			}
		}
		return false
	case directoryOnly:
		return len(pathSegments) >= len(patternSegments) && segmentsMatch(pathSegments[:len(patternSegments)], patternSegments)
	case len(patternSegments) == 1:
		return segmentMatches(patternSegments[0], pathSegments[len(pathSegments)-1])
	default:
		return len(pathSegments) == len(patternSegments) && segmentsMatch(pathSegments, patternSegments)
	}
}

func splitSegments(value string) []string {
	normalized := strings.Trim(strings.ReplaceAll(value, `\`, pathSegmentSeparator), pathSegmentSeparator)
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, pathSegmentSeparator)
}

func segmentMatches(pattern string, segment string) bool {
	matched, matchError := path.Match(pattern, segment)
	return matchError == nil && matched
}

func segmentsMatch(pathSegments []string, patternSegments []string) bool {
	for segmentIndex, patternSegment := range patternSegments {
		if !segmentMatches(patternSegment, pathSegments[segmentIndex]) {
			return false
		}
	}
	return true
}
