package utils

import (
	"bytes"
	"unicode/utf8"
)

// IsBinary reports whether data cannot be rendered as text: it holds a NUL
// byte or is not valid UTF-8. Empty data is text.
func IsBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data)
}
