package fingerprint

import "fmt"

// ErrIO is returned when a file or directory can't be opened, listed or read
// while generating a fingerprint.
type ErrIO struct {
	op   string
	path string
	err  error
}

func (e *ErrIO) Error() string {
	return fmt.Sprintf("failed to %s %s: %s", e.op, e.path, e.err)
}

func (e *ErrIO) Unwrap() error {
	return e.err
}

// Path is the file or directory that failed.
func (e *ErrIO) Path() string {
	return e.path
}
