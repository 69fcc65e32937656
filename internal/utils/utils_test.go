package utils_test

import (
	"reflect"
	"testing"

	"github.com/temirov/treeweave/internal/utils"
)

// nodeModulesDirectoryPattern ignores node_modules directories at any depth.
const nodeModulesDirectoryPattern = "node_modules/"

// anchoredDirectoryPattern ignores one nested directory only.
const anchoredDirectoryPattern = "web/dist/"

// wildcardLogPattern ignores log files anywhere.
const wildcardLogPattern = "*.log"

// anchoredFilePattern ignores a single nested file.
const anchoredFilePattern = "config/secrets.ini"

// TestDeduplicatePatterns verifies order-preserving deduplication with blank removal.
func TestDeduplicatePatterns(testingInstance *testing.T) {
	inputPatterns := []string{"*.log", " build/ ", "", "*.log", "build/"}
	expectedPatterns := []string{"*.log", "build/"}
	actualPatterns := utils.DeduplicatePatterns(inputPatterns)
	if !reflect.DeepEqual(actualPatterns, expectedPatterns) {
		testingInstance.Fatalf("expected %v, got %v", expectedPatterns, actualPatterns)
	}
}

// TestShouldIgnoreByPath verifies directory, wildcard and anchored patterns.
func TestShouldIgnoreByPath(testingInstance *testing.T) {
	ignorePatterns := []string{nodeModulesDirectoryPattern, anchoredDirectoryPattern, wildcardLogPattern, anchoredFilePattern}
	testCases := []struct {
		testName     string
		relativePath string
		expected     bool
	}{
		{testName: "top level node_modules", relativePath: "node_modules", expected: true},
		{testName: "nested node_modules content", relativePath: "app/node_modules/index.js", expected: true},
		{testName: "anchored directory", relativePath: "web/dist/app.js", expected: true},
		{testName: "anchored directory elsewhere", relativePath: "api/web/dist/app.js", expected: false},
		{testName: "wildcard file", relativePath: "logs/server.log", expected: true},
		{testName: "anchored file", relativePath: "config/secrets.ini", expected: true},
		{testName: "anchored file elsewhere", relativePath: "other/config/secrets.ini", expected: false},
		{testName: "backslash path", relativePath: `web\dist\app.js`, expected: true},
		{testName: "plain source file", relativePath: "main.go", expected: false},
	}
	for _, testCase := range testCases {
		testingInstance.Run(testCase.testName, func(subTest *testing.T) {
			if actual := utils.ShouldIgnoreByPath(testCase.relativePath, ignorePatterns); actual != testCase.expected {
				subTest.Fatalf("expected %t for %s, got %t", testCase.expected, testCase.relativePath, actual)
			}
		})
	}
}

// TestIsBinary verifies detection of binary data in byte slices.
func TestIsBinary(testingInstance *testing.T) {
	testCases := []struct {
		testName string
		data     []byte
		expected bool
	}{
		{testName: "utf8 text", data: []byte("hello"), expected: false},
		{testName: "null byte", data: []byte{0x00, 0x01}, expected: true},
		{testName: "invalid utf8", data: []byte{0xff}, expected: true},
		{testName: "empty slice", data: []byte{}, expected: false},
	}
	for index, testCase := range testCases {
		actual := utils.IsBinary(testCase.data)
		if actual != testCase.expected {
			testingInstance.Errorf("case %d (%s): expected %t, got %t", index, testCase.testName, testCase.expected, actual)
		}
	}
}
