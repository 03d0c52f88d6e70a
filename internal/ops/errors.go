package ops

import "fmt"

type ErrScan struct {
	dir string
	err error
}

func (e *ErrScan) Error() string {
	return fmt.Sprintf("failed to list %s: %s", e.dir, e.err)
}

func (e *ErrScan) Unwrap() error {
	return e.err
}

type ErrBadPattern struct {
	pattern string
}

func (e *ErrBadPattern) Error() string {
	return fmt.Sprintf("invalid exclude pattern: %q", e.pattern)
}
