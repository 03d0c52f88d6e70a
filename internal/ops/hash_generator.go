package ops

import (
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/studio1767/dirmirror/internal/fingerprint"
)

// HashGenerator generates the content fingerprints of an entry and settles
// whether a file present on both sides needs to be updated.
// Replica-only entries are not hashed; they are going to be removed anyway.
type HashGenerator struct {
	fsys    afero.Fs
	source  string
	replica string
}

func NewHashGenerator(fsys afero.Fs, source, replica string) *HashGenerator {
	return &HashGenerator{
		fsys:    fsys,
		source:  source,
		replica: replica,
	}
}

func (hg *HashGenerator) Process(info *EntryInfo) {
	// check the status first
	if info.Action == Failed {
		return
	}
	if info.Status != StatusOk && info.Status != StatusNew {
		return
	}

	fpath := filepath.Join(hg.source, info.Name)
	fp, err := fingerprint.File(hg.fsys, fpath)
	if err != nil {
		info.fail(err, "failed to generate hash for %s", fpath)
		return
	}
	info.SourceHash = fp

	if info.Status == StatusNew {
		return
	}

	rpath := filepath.Join(hg.replica, info.Name)
	fp, err = fingerprint.File(hg.fsys, rpath)
	if err != nil {
		info.fail(err, "failed to generate hash for %s", rpath)
		return
	}
	info.ReplicaHash = fp

	if info.SourceHash != info.ReplicaHash {
		info.Status = StatusModified
	}
}
