package mirror

import "fmt"

type ErrSetup struct {
	path string
	err  error
}

func (e *ErrSetup) Error() string {
	return fmt.Sprintf("failed to create directory %s: %s", e.path, e.err)
}

func (e *ErrSetup) Unwrap() error {
	return e.err
}

type ErrLocked struct {
	path string
}

func (e *ErrLocked) Error() string {
	return fmt.Sprintf("another instance is mirroring this directory: %s is locked", e.path)
}
