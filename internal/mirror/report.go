package mirror

import (
	"errors"
	"fmt"
	"time"

	"github.com/studio1767/dirmirror/internal/fingerprint"
	"github.com/studio1767/dirmirror/internal/ops"
)

// Report collects the outcome of a reconciliation pass. It is an
// ops.Operator so it can sit at the tail of a pass and count entries as they
// come through.
type Report struct {
	Started  time.Time
	Finished time.Time

	SourceHash  fingerprint.Fingerprint
	ReplicaHash fingerprint.Fingerprint
	SourceEmpty bool

	Entries []*ops.EntryInfo

	Unchanged   int
	Added       int
	Updated     int
	Removed     int
	Failed      int
	BytesCopied int64

	errs []error
}

func (r *Report) Process(info *ops.EntryInfo) {
	r.Entries = append(r.Entries, info)

	switch info.Action {
	case ops.NoAction:
		r.Unchanged++
	case ops.Added:
		r.Added++
		r.BytesCopied += info.CopiedSize
	case ops.Updated:
		r.Updated++
		r.BytesCopied += info.CopiedSize
	case ops.Removed:
		r.Removed++
	case ops.Failed:
		r.Failed++
		r.errs = append(r.errs, fmt.Errorf("%s: %w", info.ActionMessage, info.Err))
	}
}

// Merge adds the entries and counters of another report to this one.
func (r *Report) Merge(other *Report) {
	r.Entries = append(r.Entries, other.Entries...)
	r.Unchanged += other.Unchanged
	r.Added += other.Added
	r.Updated += other.Updated
	r.Removed += other.Removed
	r.Failed += other.Failed
	r.BytesCopied += other.BytesCopied
	r.errs = append(r.errs, other.errs...)
}

// Changed reports whether the pass did, or tried to do, anything.
func (r *Report) Changed() bool {
	return r.Added+r.Updated+r.Removed+r.Failed > 0
}

// Err joins the errors of every failed entry, nil when nothing failed.
func (r *Report) Err() error {
	return errors.Join(r.errs...)
}
