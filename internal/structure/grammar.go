// Package structure converts directory trees to and from the indented text
// grammar used for prompts. Directories end with a slash, files are bare names,
// and file content lines sit one indentation level below their file name.
package structure

import (
	"fmt"
	"strings"
)

const (
	// DefaultIndentWidth is the canonical number of spaces per nesting level.
	DefaultIndentWidth = 4
	// CompactIndentWidth is the alternate two-space variant of the grammar.
	CompactIndentWidth = 2

	// PromptDelimiter surrounds a serialized tree inside a prompt.
	PromptDelimiter = `"""`

	directorySuffix       = "/"
	fileNameMarker        = "."
	placeholderPrefix     = "["
	placeholderSuffix     = "]"
	codeFenceMarker       = "```"
	invalidIndentMessage  = "indent width must be %d or %d, got %d"
	lineKindUnknownString = "unknown"
)

// commentMarkers prefix lines that are never treated as file names.
var commentMarkers = []string{"#", "//"}

// LineKind identifies what a single grammar line denotes.
type LineKind int

const (
	// LineKindContent is a line of file content.
	LineKindContent LineKind = iota
	// LineKindDirectory is a directory name ending in a slash.
	LineKindDirectory
	// LineKindFile is a file name.
	LineKindFile
	// LineKindPlaceholder is a bracketed fault marker emitted by the serializer.
	LineKindPlaceholder
)

// String returns the lower-case name of the kind.
func (kind LineKind) String() string {
	switch kind {
	case LineKindContent:
		return "content"
	case LineKindDirectory:
		return "directory"
	case LineKindFile:
		return "file"
	case LineKindPlaceholder:
		return "placeholder"
	default:
		return lineKindUnknownString
	}
}

// Classify reports the kind of a stripped line found at a name position, that
// is, outside the content block of an open file. The rules are applied in order:
//
//   - a line ending in "/" is a directory, even when the name contains a dot;
//   - a line wrapped in square brackets is a serializer placeholder;
//   - a line containing "." that does not start with "#" or "//" is a file;
//   - anything else is content.
//
// File names without a dot (Makefile, LICENSE) therefore classify as content
// at a name position. Inside an open file every line is content regardless of
// its shape; that context rule lives in the parser.
func Classify(strippedLine string) LineKind {
	if strings.HasSuffix(strippedLine, directorySuffix) {
		return LineKindDirectory
	}
	if strings.HasPrefix(strippedLine, placeholderPrefix) && strings.HasSuffix(strippedLine, placeholderSuffix) {
		return LineKindPlaceholder
	}
	if strings.Contains(strippedLine, fileNameMarker) && !hasCommentMarker(strippedLine) {
		return LineKindFile
	}
	return LineKindContent
}

func hasCommentMarker(strippedLine string) bool {
	for _, marker := range commentMarkers {
		if strings.HasPrefix(strippedLine, marker) {
			return true
		}
	}
	return false
}

// Grammar fixes the indentation width shared by the serializer, the parser and
// the script renderer for one run.
type Grammar struct {
	IndentWidth int
}

// NewGrammar validates indentWidth and returns a Grammar. Zero selects the default width.
func NewGrammar(indentWidth int) (Grammar, error) {
	if indentWidth == 0 {
		return Grammar{IndentWidth: DefaultIndentWidth}, nil
	}
	if indentWidth != DefaultIndentWidth && indentWidth != CompactIndentWidth {
		return Grammar{}, fmt.Errorf(invalidIndentMessage, DefaultIndentWidth, CompactIndentWidth, indentWidth)
	}
	return Grammar{IndentWidth: indentWidth}, nil
}

func (grammar Grammar) width() int {
	if grammar.IndentWidth <= 0 {
		return DefaultIndentWidth
	}
	return grammar.IndentWidth
}

// Indentation returns the leading whitespace for the given nesting level.
func (grammar Grammar) Indentation(level int) string {
	if level <= 0 {
		return ""
	}
	return strings.Repeat(" ", level*grammar.width())
}

// MeasureIndent returns the width of the leading whitespace of line, counting a
// tab as one full indentation level, together with the line stripped of
// surrounding whitespace.
func (grammar Grammar) MeasureIndent(line string) (int, string) {
	columns := 0
	for _, character := range line {
		if character == ' ' {
			columns++
			continue
		}
		if character == '\t' {
			columns += grammar.width()
			continue
		}
		break
	}
	return columns, strings.TrimSpace(line)
}

// trimIndent removes up to columns columns of leading whitespace from line,
// keeping any deeper indentation that belongs to the content itself.
func (grammar Grammar) trimIndent(line string, columns int) string {
	removed := 0
	for index, character := range line {
		if removed >= columns {
			return line[index:]
		}
		switch character {
		case ' ':
			removed++
		case '\t':
			removed += grammar.width()
		default:
			return line[index:]
		}
	}
	return ""
}

// Wrap surrounds a serialized tree with prompt delimiter lines.
func Wrap(tree string) string {
	return PromptDelimiter + "\n" + strings.TrimRight(tree, "\n") + "\n" + PromptDelimiter
}

// Unwrap extracts the structure block from a model response. When the text
// contains an opening delimiter line (""" or a ``` code fence), only the lines
// of the first delimited block are returned. A """ block closes on """ and a
// fenced block closes on a bare ``` line; an unterminated block runs to the end
// of the text. Text without delimiters is returned unchanged.
//
// Delimiters count only at the outer indentation of the text, the smallest
// indentation of its non-blank lines. File content always sits deeper than
// that, so fences and docstrings inside files stay part of the block.
func Unwrap(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	outerIndent := outerIndentation(lines)
	var block []string
	closingDelimiter := ""
	for _, line := range lines {
		trimmedLine := strings.TrimSpace(line)
		atOuterIndent := trimmedLine != "" && leadingWhitespace(line) == outerIndent
		if closingDelimiter == "" {
			switch {
			case !atOuterIndent:
			case trimmedLine == PromptDelimiter:
				closingDelimiter = PromptDelimiter
			case strings.HasPrefix(trimmedLine, codeFenceMarker):
				closingDelimiter = codeFenceMarker
			}
			continue
		}
		if atOuterIndent && trimmedLine == closingDelimiter {
			return strings.Join(block, "\n")
		}
		block = append(block, line)
	}
	if closingDelimiter != "" {
		return strings.Join(block, "\n")
	}
	return text
}

// outerIndentation returns the smallest leading whitespace width among the
// non-blank lines.
func outerIndentation(lines []string) int {
	minimumIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if indent := leadingWhitespace(line); minimumIndent < 0 || indent < minimumIndent {
			minimumIndent = indent
		}
	}
	return max(minimumIndent, 0)
}

func leadingWhitespace(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}
