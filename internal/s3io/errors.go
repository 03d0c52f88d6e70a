package s3io

import (
	"fmt"
)

type ErrPermissionsTooOpen struct {
	msg string
}

func (e *ErrPermissionsTooOpen) Error() string {
	return e.msg
}

type ErrNoSecretsFound struct {
	file string
}

func (e *ErrNoSecretsFound) Error() string {
	return fmt.Sprintf("no secrets found in '%s'", e.file)
}
