package structure

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/treeweave/internal/utils"
)

const (
	// unreadableFilePlaceholder replaces the content of files that are not text.
	unreadableFilePlaceholder = "[Unable to read file]"
	// readErrorPlaceholderFormat replaces the content of files that failed to read.
	readErrorPlaceholderFormat = readErrorPlaceholderPrefix + "%v]"
	// directoryErrorPlaceholderFormat replaces the children of unlistable directories.
	directoryErrorPlaceholderFormat = "[Error reading directory: %v]"
	// oversizedFilePlaceholderFormat replaces the content of files above the size limit.
	oversizedFilePlaceholderFormat = oversizedFilePlaceholderPrefix + "%s]"

	readErrorPlaceholderPrefix     = "[Error reading file: "
	oversizedFilePlaceholderPrefix = "[File too large: "

	notDirectoryReason = "not a directory"
	statFailedReason   = "cannot stat"
)

// fileFaultPlaceholderPrefixes start the markers that replace a whole file's content.
var fileFaultPlaceholderPrefixes = []string{readErrorPlaceholderPrefix, oversizedFilePlaceholderPrefix}

// SerializerOptions configures a Serializer.
type SerializerOptions struct {
	Grammar Grammar
	// IncludeRoot emits the root directory itself as the first line.
	IncludeRoot bool
	// IgnorePatterns excludes matching entries; empty means every entry is emitted.
	IgnorePatterns []string
	// MaxFileBytes replaces larger file contents with a placeholder; zero disables the limit.
	MaxFileBytes int64
	Logger       *zap.Logger
}

// SerializeReport counts what a serialization emitted.
type SerializeReport struct {
	Directories int
	Files       int
	Faults      int
}

// Serializer walks a directory and renders it in the indented grammar.
type Serializer struct {
	grammar        Grammar
	includeRoot    bool
	ignorePatterns []string
	maxFileBytes   int64
	logger         *zap.Logger
}

// NewSerializer constructs a Serializer from options.
func NewSerializer(options SerializerOptions) *Serializer {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Serializer{
		grammar:        options.Grammar,
		includeRoot:    options.IncludeRoot,
		ignorePatterns: options.IgnorePatterns,
		maxFileBytes:   options.MaxFileBytes,
		logger:         logger,
	}
}

// Serialize renders the tree rooted at rootDirectoryPath into a string.
func (serializer *Serializer) Serialize(rootDirectoryPath string) (string, SerializeReport, error) {
	var builder strings.Builder
	report, serializeError := serializer.WriteTo(&builder, rootDirectoryPath)
	if serializeError != nil {
		return "", report, serializeError
	}
	return builder.String(), report, nil
}

// WriteTo renders the tree rooted at rootDirectoryPath into writer. Unreadable
// files and unlistable directories become placeholder lines; only an invalid
// root or a failing writer is returned as an error.
func (serializer *Serializer) WriteTo(writer io.Writer, rootDirectoryPath string) (SerializeReport, error) {
	absoluteRootPath, validationError := validateRootDirectory(rootDirectoryPath)
	if validationError != nil {
		return SerializeReport{}, validationError
	}

	walk := &serializationWalk{
		serializer: serializer,
		output:     bufio.NewWriter(writer),
	}
	level := 0
	if serializer.includeRoot {
		walk.emit(0, filepath.Base(absoluteRootPath)+directorySuffix)
		walk.report.Directories++
		level = 1
	}
	walk.directory(absoluteRootPath, "", level)

	if flushError := walk.output.Flush(); flushError != nil {
		return walk.report, fmt.Errorf("write serialized tree: %w", flushError)
	}
	serializer.logger.Debug("Serialized directory tree",
		zap.String("root", absoluteRootPath),
		zap.Int("directories", walk.report.Directories),
		zap.Int("files", walk.report.Files),
		zap.Int("faults", walk.report.Faults))
	return walk.report, nil
}

func validateRootDirectory(rootDirectoryPath string) (string, error) {
	absoluteRootPath, absolutePathError := filepath.Abs(rootDirectoryPath)
	if absolutePathError != nil {
		return "", &InvalidPathError{Path: rootDirectoryPath, Reason: statFailedReason, Err: absolutePathError}
	}
	rootInfo, statError := os.Stat(absoluteRootPath)
	if statError != nil {
		return "", &InvalidPathError{Path: rootDirectoryPath, Reason: statFailedReason, Err: statError}
	}
	if !rootInfo.IsDir() {
		return "", &InvalidPathError{Path: rootDirectoryPath, Reason: notDirectoryReason}
	}
	return absoluteRootPath, nil
}

// serializationWalk carries the state of one WriteTo call.
type serializationWalk struct {
	serializer *Serializer
	output     *bufio.Writer
	report     SerializeReport
}

// emit writes one line; bufio.Writer keeps the first write error for Flush.
func (walk *serializationWalk) emit(level int, text string) {
	if text == "" {
		_, _ = walk.output.WriteString("\n")
		return
	}
	_, _ = walk.output.WriteString(walk.serializer.grammar.Indentation(level) + text + "\n")
}

// directory emits the children of directoryPath. relativeDirectory is the
// slash-separated path below the root used for ignore matching.
func (walk *serializationWalk) directory(directoryPath string, relativeDirectory string, level int) {
	// os.ReadDir returns entries sorted by file name, which gives the grammar
	// its lexicographic sibling order.
	directoryEntries, readDirectoryError := os.ReadDir(directoryPath)
	if readDirectoryError != nil {
		permissionError := &PermissionError{Path: directoryPath, Err: readDirectoryError}
		walk.serializer.logger.Warn("Skipping unlistable directory", zap.String("directory", directoryPath), zap.Error(permissionError))
		walk.emit(level, fmt.Sprintf(directoryErrorPlaceholderFormat, readDirectoryError))
		walk.report.Faults++
		return
	}

	for _, directoryEntry := range directoryEntries {
		entryPath := filepath.Join(directoryPath, directoryEntry.Name())
		relativeEntryPath := path.Join(relativeDirectory, directoryEntry.Name())
		if walk.ignored(relativeEntryPath) {
			walk.serializer.logger.Debug("Ignoring entry", zap.String("path", relativeEntryPath))
			continue
		}

		if directoryEntry.IsDir() {
			walk.emit(level, directoryEntry.Name()+directorySuffix)
			walk.report.Directories++
			walk.directory(entryPath, relativeEntryPath, level+1)
			continue
		}

		walk.emit(level, directoryEntry.Name())
		walk.report.Files++
		walk.fileContent(entryPath, level+1)
	}
}

func (walk *serializationWalk) ignored(relativeEntryPath string) bool {
	if len(walk.serializer.ignorePatterns) == 0 {
		return false
	}
	return utils.ShouldIgnoreByPath(relativeEntryPath, walk.serializer.ignorePatterns)
}

func (walk *serializationWalk) fileContent(filePath string, level int) {
	if walk.serializer.maxFileBytes > 0 {
		fileInfo, statError := os.Stat(filePath)
		if statError == nil && fileInfo.Size() > walk.serializer.maxFileBytes {
			walk.serializer.logger.Warn("File exceeds size limit", zap.String("file", filePath), zap.Int64("sizeBytes", fileInfo.Size()))
			walk.emit(level, fmt.Sprintf(oversizedFilePlaceholderFormat, utils.FormatFileSize(fileInfo.Size())))
			walk.report.Faults++
			return
		}
	}

	fileBytes, readFileError := os.ReadFile(filePath)
	if readFileError != nil {
		readError := &ReadError{Path: filePath, Err: readFileError}
		walk.serializer.logger.Warn("Failed to read file", zap.String("file", filePath), zap.Error(readError))
		walk.emit(level, fmt.Sprintf(readErrorPlaceholderFormat, readFileError))
		walk.report.Faults++
		return
	}
	if utils.IsBinary(fileBytes) {
		walk.serializer.logger.Warn("Skipping non-text file", zap.String("file", filePath))
		walk.emit(level, unreadableFilePlaceholder)
		walk.report.Faults++
		return
	}

	for _, contentLine := range splitContentLines(string(fileBytes)) {
		if strings.TrimSpace(contentLine) == "" {
			walk.emit(level, "")
			continue
		}
		walk.emit(level, contentLine)
	}
}

// splitContentLines splits text into lines, normalizing CRLF and dropping the
// empty element produced by a trailing newline.
func splitContentLines(text string) []string {
	normalizedText := strings.ReplaceAll(text, "\r\n", "\n")
	normalizedText = strings.TrimSuffix(normalizedText, "\n")
	if normalizedText == "" {
		return nil
	}
	return strings.Split(normalizedText, "\n")
}
