package normalize

import (
	"errors"
	"fmt"
)

var (
	// ErrNotDirectory is wrapped by PathError when the input is a file.
	ErrNotDirectory = errors.New("not a directory")
	// ErrOverlap is wrapped by PathError when input and output nest.
	ErrOverlap = errors.New("output overlaps input")
	// ErrTooManyFailures stops a skip-policy run at MaxErrors.
	ErrTooManyFailures = errors.New("too many failures")
)

// PathError reports an unusable input directory, an output that overlaps
// the input, or a class folder that cannot be mapped to a label.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("input path %s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// DecodeError reports a source file that is not a decodable raster image.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IOError reports a failed filesystem operation on the output tree.
type IOError struct {
	Op   string // remove, create or write
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
