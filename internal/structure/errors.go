package structure

import "fmt"

// InvalidPathError reports a serializer root that is missing or not a directory.
type InvalidPathError struct {
	Path   string
	Reason string
	Err    error
}

func (invalidPathError *InvalidPathError) Error() string {
	if invalidPathError.Err != nil {
		return fmt.Sprintf("invalid path %q: %s: %v", invalidPathError.Path, invalidPathError.Reason, invalidPathError.Err)
	}
	return fmt.Sprintf("invalid path %q: %s", invalidPathError.Path, invalidPathError.Reason)
}

func (invalidPathError *InvalidPathError) Unwrap() error {
	return invalidPathError.Err
}

// ReadError reports a file whose content could not be read during serialization.
// It is never fatal; the serializer emits a placeholder line instead.
type ReadError struct {
	Path string
	Err  error
}

func (readError *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", readError.Path, readError.Err)
}

func (readError *ReadError) Unwrap() error {
	return readError.Err
}

// PermissionError reports a directory that could not be listed during serialization.
type PermissionError struct {
	Path string
	Err  error
}

func (permissionError *PermissionError) Error() string {
	return fmt.Sprintf("list directory %s: %v", permissionError.Path, permissionError.Err)
}

func (permissionError *PermissionError) Unwrap() error {
	return permissionError.Err
}

// WriteError reports a directory or file that could not be materialized.
type WriteError struct {
	Path string
	Err  error
}

func (writeError *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", writeError.Path, writeError.Err)
}

func (writeError *WriteError) Unwrap() error {
	return writeError.Err
}
