package clipboard

import (
	"errors"
	"testing"
)

func TestCopyReportsUnavailableClipboard(t *testing.T) {
	service := &Service{
		unsupported: func() bool { return true },
		writeAll: func(string) error {
			t.Fatalf("writeAll must not be called")
			return nil
		},
	}
	if err := service.Copy("x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCopyWrapsWriteFailures(t *testing.T) {
	writeFailure := errors.New("xclip exited")
	var copied string
	service := &Service{
		unsupported: func() bool { return false },
		writeAll: func(text string) error {
			copied = text
			return writeFailure
		},
	}
	if err := service.Copy("tree"); !errors.Is(err, writeFailure) {
		t.Fatalf("expected wrapped write failure, got %v", err)
	}
	if copied != "tree" {
		t.Fatalf("unexpected copied text %q", copied)
	}
}
