package ops

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/studio1767/dirmirror/internal/fingerprint"
)

// EntryStatus represents the state of a source file compared to its
// counterpart in the replica. It is set by Compare from the file names and
// refined by the HashGenerator from the file contents.
type EntryStatus int

const (
	StatusOk EntryStatus = iota
	StatusNew
	StatusModified
	StatusNotFound
)

func (s EntryStatus) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusNew:
		return "new"
	case StatusModified:
		return "modified"
	case StatusNotFound:
		return "notfound"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// OpAction represents the action that has been performed on a file.
type OpAction int

const (
	NoAction OpAction = iota
	Added
	Updated
	Removed
	Failed
)

func (a OpAction) String() string {
	switch a {
	case NoAction:
		return "none"
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// EntryInfo represents a single file of the source or replica directory,
// along with its status and the action taken for it. It is passed through
// the operators of a pass so each can decide if its work is needed.
type EntryInfo struct {
	Status        EntryStatus
	Name          string
	SourceHash    fingerprint.Fingerprint
	ReplicaHash   fingerprint.Fingerprint
	Size          int64
	CopiedSize    int64
	ModTime       time.Time
	Mode          os.FileMode
	Action        OpAction
	ActionMessage string
	Err           error
}

func (info *EntryInfo) fail(err error, format string, args ...any) {
	info.Action = Failed
	info.ActionMessage = fmt.Sprintf(format, args...)
	info.Err = err
}

// An Operator performs one step of a pass on an entry. Entries that have
// already failed are passed through untouched.
type Operator interface {
	Process(info *EntryInfo)
}

// Run feeds every entry through the operators, in order, one entry at a
// time. It stops early if the context is cancelled.
func Run(ctx context.Context, entries []*EntryInfo, ops ...Operator) error {
	for _, info := range entries {
		// check for cancel
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		for _, op := range ops {
			op.Process(info)
		}
	}
	return nil
}
