package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a file-scoped failure.
type ErrorKind int

const (
	ReadFailure ErrorKind = iota
	TransformFailure
	WriteFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ReadFailure:
		return "read"
	case TransformFailure:
		return "transform"
	case WriteFailure:
		return "write"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

var (
	ErrRead      = errors.New("read failure")
	ErrTransform = errors.New("transform failure")
	ErrWrite     = errors.New("write failure")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case ReadFailure:
		return ErrRead
	case TransformFailure:
		return ErrTransform
	}
	return ErrWrite
}

// FileError is a failure confined to one source file. errors.Is matches
// both the underlying cause and the sentinel of its kind.
type FileError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *FileError) Unwrap() []error { return []error{e.Kind.sentinel(), e.Err} }

func newFileError(kind ErrorKind, path string, err error) *FileError {
	return &FileError{Kind: kind, Path: path, Err: err}
}
