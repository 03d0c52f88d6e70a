package config

import "fmt"

// ErrUsage reports invalid command line arguments.
type ErrUsage struct {
	msg string
}

func (e *ErrUsage) Error() string {
	return e.msg
}

type ErrNoConfigFile struct {
	path string
}

func (e *ErrNoConfigFile) Error() string {
	return fmt.Sprintf("config file not found: %s", e.path)
}

type ErrBadConfigFile struct {
	path string
	err  error
}

func (e *ErrBadConfigFile) Error() string {
	return fmt.Sprintf("invalid config file %s: %s", e.path, e.err)
}

func (e *ErrBadConfigFile) Unwrap() error {
	return e.err
}
