package structure

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultDirectoryPermissions os.FileMode = 0o755
	defaultFilePermissions      os.FileMode = 0o644

	scriptShebang         = "#!/usr/bin/env bash"
	scriptStrictMode      = "set -euo pipefail"
	scriptRunCommentFmt   = "# run %s"
	scriptMakeDirectory   = "mkdir -p %s"
	scriptTouchFile       = "touch %s"
	scriptAppendLineFmt   = "printf '%%s\\n' %s >> %s"
	scriptPathSeparator   = "/"
	shellQuoteEscapedForm = `'"'"'`
)

// DiskSink materializes the parsed structure under BaseDirectory. Each flush
// overwrites the target file with the full buffered content.
type DiskSink struct {
	BaseDirectory        string
	DirectoryPermissions os.FileMode
	FilePermissions      os.FileMode
}

// NewDiskSink returns a DiskSink rooted at baseDirectory with default permissions.
func NewDiskSink(baseDirectory string) *DiskSink {
	return &DiskSink{
		BaseDirectory:        baseDirectory,
		DirectoryPermissions: defaultDirectoryPermissions,
		FilePermissions:      defaultFilePermissions,
	}
}

// CreateDirectory creates the directory and any missing parents.
func (sink *DiskSink) CreateDirectory(relativePath []string) error {
	targetPath, joinError := SafeJoin(sink.BaseDirectory, relativePath...)
	if joinError != nil {
		return &WriteError{Path: strings.Join(relativePath, scriptPathSeparator), Err: joinError}
	}
	if makeDirectoryError := os.MkdirAll(targetPath, sink.directoryPermissions()); makeDirectoryError != nil {
		return &WriteError{Path: targetPath, Err: makeDirectoryError}
	}
	return nil
}

// WriteFile creates the parent directories and overwrites the file with lines
// joined by newlines, trailing whitespace trimmed, and one final newline.
func (sink *DiskSink) WriteFile(relativePath []string, lines []string) error {
	targetPath, joinError := SafeJoin(sink.BaseDirectory, relativePath...)
	if joinError != nil {
		return &WriteError{Path: strings.Join(relativePath, scriptPathSeparator), Err: joinError}
	}
	if makeDirectoryError := os.MkdirAll(filepath.Dir(targetPath), sink.directoryPermissions()); makeDirectoryError != nil {
		return &WriteError{Path: targetPath, Err: makeDirectoryError}
	}
	if writeFileError := os.WriteFile(targetPath, RenderFileContent(lines), sink.filePermissions()); writeFileError != nil {
		return &WriteError{Path: targetPath, Err: writeFileError}
	}
	return nil
}

func (sink *DiskSink) directoryPermissions() os.FileMode {
	if sink.DirectoryPermissions == 0 {
		return defaultDirectoryPermissions
	}
	return sink.DirectoryPermissions
}

func (sink *DiskSink) filePermissions() os.FileMode {
	if sink.FilePermissions == 0 {
		return defaultFilePermissions
	}
	return sink.FilePermissions
}

// RenderFileContent returns the bytes written for a flushed file.
func RenderFileContent(lines []string) []byte {
	contentLines := renderContentLines(lines)
	if len(contentLines) == 0 {
		return []byte{}
	}
	return []byte(strings.Join(contentLines, "\n") + "\n")
}

// ScriptSink renders the parsed structure as a bash script. Directories become
// mkdir -p commands and files become touch followed by one append per line,
// so running the script twice appends the content twice.
type ScriptSink struct {
	builder strings.Builder
}

// NewScriptSink starts a script whose header records runIdentifier.
func NewScriptSink(runIdentifier string) *ScriptSink {
	sink := &ScriptSink{}
	sink.line(scriptShebang)
	sink.line(scriptStrictMode)
	if runIdentifier != "" {
		sink.line(fmt.Sprintf(scriptRunCommentFmt, runIdentifier))
	}
	return sink
}

// CreateDirectory appends a mkdir -p command.
func (sink *ScriptSink) CreateDirectory(relativePath []string) error {
	scriptPath, pathError := scriptRelativePath(relativePath)
	if pathError != nil {
		return &WriteError{Path: strings.Join(relativePath, scriptPathSeparator), Err: pathError}
	}
	sink.line(fmt.Sprintf(scriptMakeDirectory, ShellQuote(scriptPath)))
	return nil
}

// WriteFile appends the commands that create the file and its content.
func (sink *ScriptSink) WriteFile(relativePath []string, lines []string) error {
	scriptPath, pathError := scriptRelativePath(relativePath)
	if pathError != nil {
		return &WriteError{Path: strings.Join(relativePath, scriptPathSeparator), Err: pathError}
	}
	quotedPath := ShellQuote(scriptPath)
	if len(relativePath) > 1 {
		sink.line(fmt.Sprintf(scriptMakeDirectory, ShellQuote(strings.Join(relativePath[:len(relativePath)-1], scriptPathSeparator))))
	}
	sink.line(fmt.Sprintf(scriptTouchFile, quotedPath))
	for _, contentLine := range renderContentLines(lines) {
		sink.line(fmt.Sprintf(scriptAppendLineFmt, ShellQuote(contentLine), quotedPath))
	}
	return nil
}

// Script returns the rendered script text.
func (sink *ScriptSink) Script() string {
	return sink.builder.String()
}

func (sink *ScriptSink) line(text string) {
	sink.builder.WriteString(text)
	sink.builder.WriteString("\n")
}

func scriptRelativePath(relativePath []string) (string, error) {
	if len(relativePath) == 0 {
		return "", fmt.Errorf("empty path")
	}
	for _, segment := range relativePath {
		if nameError := ValidateName(segment); nameError != nil {
			return "", nameError
		}
	}
	return strings.Join(relativePath, scriptPathSeparator), nil
}

// ShellQuote wraps value in single quotes for POSIX shells.
func ShellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", shellQuoteEscapedForm) + "'"
}
