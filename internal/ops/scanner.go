package ops

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/afero"
)

// Snapshot is the set of regular files found in a directory at the moment
// it was listed. Subdirectories, symlinks and other special files are not
// part of it.
type Snapshot struct {
	Dir     string
	Entries []*EntryInfo
	Names   mapset.Set[string]
}

// Empty reports whether the directory held no files of interest.
func (snap *Snapshot) Empty() bool {
	return len(snap.Entries) == 0
}

// Scan lists the regular files directly inside dir that are accepted by the
// filter. Entries are returned in lexicographic order.
func Scan(fsys afero.Fs, dir string, filter *NameFilter) (*Snapshot, error) {
	// read the directory contents
	infos, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, &ErrScan{dir: dir, err: err}
	}

	snap := Snapshot{
		Dir:   dir,
		Names: mapset.NewThreadUnsafeSet[string](),
	}

	for _, fi := range infos {
		if !fi.Mode().IsRegular() {
			continue
		}
		if !filter.Keep(fi.Name()) {
			continue
		}

		snap.Entries = append(snap.Entries, &EntryInfo{
			Status:  StatusNew,
			Name:    fi.Name(),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
			Mode:    fi.Mode(),
			Action:  NoAction,
		})
		snap.Names.Add(fi.Name())
	}

	return &snap, nil
}
