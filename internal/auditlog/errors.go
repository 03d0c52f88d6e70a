package auditlog

import "fmt"

// ErrLogFile reports that the audit log can't be created. Without it there is
// no record of what the mirror does, so callers treat it as fatal.
type ErrLogFile struct {
	path string
	err  error
}

func (e *ErrLogFile) Error() string {
	return fmt.Sprintf("log file %s is not writable: %s", e.path, e.err)
}

func (e *ErrLogFile) Unwrap() error {
	return e.err
}
