package mirror

import (
	"github.com/gofrs/flock"
)

// Lock stops two processes from mirroring the same directory at once. The
// lock file is left in place on release: removing it would let a waiting
// process lock the old inode while another locks a new file.
type Lock struct {
	flock *flock.Flock
}

func AcquireLock(path string) (*Lock, error) {
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, &ErrLocked{path: path}
	}

	return &Lock{flock: fl}, nil
}

func (l *Lock) Release() error {
	if !l.flock.Locked() {
		return nil
	}
	return l.flock.Unlock()
}
