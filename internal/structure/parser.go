package structure

import (
	"errors"
	"strings"

	"go.uber.org/zap"
)

var errNilSink = errors.New("nil structure sink")

// Sink receives the directories and files recognized by the Parser. Paths are
// relative to the sink's own base and are made of validated name segments.
type Sink interface {
	CreateDirectory(relativePath []string) error
	WriteFile(relativePath []string, lines []string) error
}

// ParseReport summarizes one Parse call.
type ParseReport struct {
	Directories int
	Files       int
	// Skipped counts placeholders, orphan content lines and invalid names.
	Skipped int
	// Warnings counts lines whose indentation did not match a stack level.
	Warnings int
	// Failures holds the sink errors; each one skipped a single entry.
	Failures []error
}

// Parser reads the indented grammar and drives a Sink.
type Parser struct {
	grammar Grammar
	logger  *zap.Logger
}

// NewParser constructs a Parser. A nil logger discards log output.
func NewParser(grammar Grammar, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{grammar: grammar, logger: logger}
}

// stackEntry is one level of the path stack.
type stackEntry struct {
	name string
	kind LineKind
	// contentIndent is the indentation expected for the entry's children or content.
	contentIndent int
	// invalid marks an entry whose name was rejected; nothing below it is written.
	invalid bool
}

// parseState is owned by a single Parse call.
type parseState struct {
	parser       *Parser
	sink         Sink
	stack        []stackEntry
	pendingLines []string
	report       ParseReport
}

// Parse recreates the structure described by input through sink. Sink
// failures are logged, recorded in the report, and never stop parsing.
func (parser *Parser) Parse(input string, sink Sink) (ParseReport, error) {
	if sink == nil {
		return ParseReport{}, errNilSink
	}
	state := &parseState{parser: parser, sink: sink}

	lines := strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n")
	commonIndent := parser.commonIndent(lines)
	for lineIndex, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		state.consume(lineIndex+1, parser.grammar.trimIndent(line, commonIndent))
	}
	for len(state.stack) > 0 {
		state.pop()
	}
	return state.report, nil
}

// commonIndent returns the indentation shared by every non-blank line, so a
// block indented as a whole parses like its dedented form.
func (parser *Parser) commonIndent(lines []string) int {
	minimumIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent, _ := parser.grammar.MeasureIndent(line)
		if minimumIndent < 0 || indent < minimumIndent {
			minimumIndent = indent
		}
	}
	if minimumIndent < 0 {
		return 0
	}
	return minimumIndent
}

func (state *parseState) consume(lineNumber int, line string) {
	grammar := state.parser.grammar
	indent, strippedLine := grammar.MeasureIndent(line)

	for len(state.stack) > 0 && indent < state.top().contentIndent {
		state.pop()
	}

	if state.fileOpen() {
		state.pendingLines = append(state.pendingLines, grammar.trimIndent(line, state.top().contentIndent))
		return
	}

	kind := Classify(strippedLine)
	if kind == LineKindDirectory || kind == LineKindFile {
		if expectedIndent := state.expectedIndent(); indent != expectedIndent {
			state.report.Warnings++
			state.parser.logger.Warn("Unexpected indentation",
				zap.Int("line", lineNumber),
				zap.Int("indent", indent),
				zap.Int("expectedIndent", expectedIndent))
		}
	}

	switch kind {
	case LineKindDirectory:
		state.pushDirectory(lineNumber, strings.TrimSpace(strings.TrimSuffix(strippedLine, directorySuffix)), indent)
	case LineKindFile:
		state.pushFile(lineNumber, strippedLine, indent)
	case LineKindPlaceholder:
		state.report.Skipped++
		state.parser.logger.Debug("Skipping placeholder line", zap.Int("line", lineNumber), zap.String("text", strippedLine))
	default:
		state.report.Skipped++
		state.parser.logger.Debug("Skipping content outside of a file", zap.Int("line", lineNumber), zap.String("text", strippedLine))
	}
}

func (state *parseState) top() stackEntry {
	return state.stack[len(state.stack)-1]
}

func (state *parseState) fileOpen() bool {
	return len(state.stack) > 0 && state.top().kind == LineKindFile
}

func (state *parseState) expectedIndent() int {
	if len(state.stack) == 0 {
		return 0
	}
	return state.top().contentIndent
}

// pop removes the top entry, flushing it first when it is the open file.
func (state *parseState) pop() {
	if state.fileOpen() {
		state.flush()
	}
	state.stack = state.stack[:len(state.stack)-1]
}

// directoryPath returns the directory names of entries and false when any of
// them is invalid.
func directoryPath(entries []stackEntry) ([]string, bool) {
	segments := make([]string, 0, len(entries)+1)
	for _, entry := range entries {
		if entry.invalid {
			return nil, false
		}
		if entry.kind == LineKindDirectory {
			segments = append(segments, entry.name)
		}
	}
	return segments, true
}

func (state *parseState) pushDirectory(lineNumber int, name string, indent int) {
	entry := stackEntry{name: name, kind: LineKindDirectory, contentIndent: indent + state.parser.grammar.width()}
	parentSegments, parentValid := directoryPath(state.stack)
	if nameError := ValidateName(name); nameError != nil {
		entry.invalid = true
		state.report.Skipped++
		state.parser.logger.Warn("Skipping invalid directory name", zap.Int("line", lineNumber), zap.Error(nameError))
	}
	state.stack = append(state.stack, entry)
	if entry.invalid || !parentValid {
		return
	}

	targetPath := append(parentSegments, name)
	if createError := state.sink.CreateDirectory(targetPath); createError != nil {
		state.report.Failures = append(state.report.Failures, createError)
		state.parser.logger.Error("Failed to create directory", zap.String("directory", strings.Join(targetPath, directorySuffix)), zap.Error(createError))
		return
	}
	state.report.Directories++
}

func (state *parseState) pushFile(lineNumber int, name string, indent int) {
	entry := stackEntry{name: name, kind: LineKindFile, contentIndent: indent + state.parser.grammar.width()}
	if nameError := ValidateName(name); nameError != nil {
		entry.invalid = true
		state.report.Skipped++
		state.parser.logger.Warn("Skipping invalid file name", zap.Int("line", lineNumber), zap.Error(nameError))
	}
	state.stack = append(state.stack, entry)
	state.pendingLines = nil
}

// flush writes the open file through the sink and clears the pending buffer.
func (state *parseState) flush() {
	fileEntry := state.top()
	contentLines := state.pendingLines
	state.pendingLines = nil

	parentSegments, parentValid := directoryPath(state.stack[:len(state.stack)-1])
	if fileEntry.invalid || !parentValid {
		return
	}
	if isFaultPlaceholder(contentLines) {
		state.report.Skipped++
		state.parser.logger.Warn("Skipping file recorded without content", zap.String("file", fileEntry.name), zap.String("placeholder", strings.TrimSpace(contentLines[0])))
		return
	}

	filePath := append(parentSegments, fileEntry.name)
	if writeError := state.sink.WriteFile(filePath, contentLines); writeError != nil {
		state.report.Failures = append(state.report.Failures, writeError)
		state.parser.logger.Error("Failed to write file", zap.String("file", strings.Join(filePath, directorySuffix)), zap.Error(writeError))
		return
	}
	state.report.Files++
}

// isFaultPlaceholder reports whether the content of a file is exactly one of
// the markers the serializer writes in place of unreadable, binary or
// oversized files. Such files are not recreated.
func isFaultPlaceholder(contentLines []string) bool {
	renderedLines := renderContentLines(contentLines)
	if len(renderedLines) != 1 {
		return false
	}
	markerLine := strings.TrimSpace(renderedLines[0])
	if markerLine == unreadableFilePlaceholder {
		return true
	}
	for _, markerPrefix := range fileFaultPlaceholderPrefixes {
		if strings.HasPrefix(markerLine, markerPrefix) && strings.HasSuffix(markerLine, placeholderSuffix) {
			return true
		}
	}
	return false
}

// renderContentLines trims trailing whitespace from the end of the content and
// returns the remaining lines; an all-blank file yields no lines.
func renderContentLines(lines []string) []string {
	joinedContent := strings.TrimRight(strings.Join(lines, "\n"), " \t\r\n")
	if joinedContent == "" {
		return nil
	}
	return strings.Split(joinedContent, "\n")
}
