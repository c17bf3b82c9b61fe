package experiment

import (
	"errors"
	"fmt"
)

// Sentinel kinds, matched with errors.Is against the typed errors below.
var (
	ErrStorage      = errors.New("storage error")
	ErrFormat       = errors.New("format error")
	ErrPrecondition = errors.New("precondition failed")
)

// StorageError reports a directory or file that could not be read or written.
type StorageError struct {
	Op   string // "read dir", "open", "write", "remove"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// FormatError reports a malformed tab file.
type FormatError struct {
	Path   string
	Line   int
	Fields int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s:%d: expected 3 fields, got %d", e.Path, e.Line, e.Fields)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// PreconditionError reports an operation the caller should have prevented,
// such as deleting the defaults tab.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return e.Op + ": " + e.Reason
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

func precondition(op, format string, args ...any) error {
	return &PreconditionError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
