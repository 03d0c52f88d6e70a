package ops

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
)

// replicaPerm is the mode of every replica file; source permissions are not
// mirrored.
const replicaPerm = 0644

// Copier copies new and modified files from the source directory into the
// replica, replacing the replica's version. The source modification time is
// carried over to the copy.
type Copier struct {
	fsys    afero.Fs
	source  string
	replica string
	log     *slog.Logger
}

func NewCopier(fsys afero.Fs, source, replica string, log *slog.Logger) *Copier {
	return &Copier{
		fsys:    fsys,
		source:  source,
		replica: replica,
		log:     log,
	}
}

func (cp *Copier) Process(info *EntryInfo) {
	// check the status first
	if info.Action == Failed {
		return
	}

	switch info.Status {
	case StatusNew:
		cp.log.Info(fmt.Sprintf("'%s' added!", info.Name), "file", info.Name)
		if !cp.copy(info) {
			return
		}
		info.Action = Added
		cp.log.Info(fmt.Sprintf("File '%s' copied!", info.Name), "file", info.Name)

	case StatusModified:
		if !cp.copy(info) {
			return
		}
		info.Action = Updated
		cp.log.Info(fmt.Sprintf("File '%s' updated!", info.Name), "file", info.Name)
	}
}

func (cp *Copier) copy(info *EntryInfo) bool {
	spath := filepath.Join(cp.source, info.Name)
	rpath := filepath.Join(cp.replica, info.Name)

	nbytes, err := copyFile(cp.fsys, spath, rpath, info)
	if err != nil {
		info.fail(err, "failed to copy %s to %s", spath, rpath)
		return false
	}
	info.CopiedSize = nbytes

	return true
}

func copyFile(fsys afero.Fs, spath, rpath string, info *EntryInfo) (int64, error) {
	// open for reading
	in, err := fsys.Open(spath)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	// write next to the target and rename over it, so whatever sits at
	// rpath is replaced rather than written through
	out, err := afero.TempFile(fsys, filepath.Dir(rpath), "."+filepath.Base(rpath)+".dirmirror-*")
	if err != nil {
		return 0, err
	}
	tmpname := out.Name()

	nbytes, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		fsys.Remove(tmpname)
		return nbytes, err
	}
	if err := out.Close(); err != nil {
		fsys.Remove(tmpname)
		return nbytes, err
	}

	if err := finishCopy(fsys, tmpname, rpath, info); err != nil {
		fsys.Remove(tmpname)
		return nbytes, err
	}

	return nbytes, nil
}

func finishCopy(fsys afero.Fs, tmpname, rpath string, info *EntryInfo) error {
	if err := fsys.Chmod(tmpname, replicaPerm); err != nil {
		return err
	}

	// keep the source timestamps, like cp -p
	if !info.ModTime.IsZero() {
		if err := fsys.Chtimes(tmpname, info.ModTime, info.ModTime); err != nil {
			return err
		}
	}

	return fsys.Rename(tmpname, rpath)
}

// Remover deletes replica files that no longer exist in the source.
type Remover struct {
	fsys    afero.Fs
	replica string
	log     *slog.Logger
}

func NewRemover(fsys afero.Fs, replica string, log *slog.Logger) *Remover {
	return &Remover{
		fsys:    fsys,
		replica: replica,
		log:     log,
	}
}

func (rm *Remover) Process(info *EntryInfo) {
	if info.Action == Failed || info.Status != StatusNotFound {
		return
	}

	rpath := filepath.Join(rm.replica, info.Name)
	if err := rm.fsys.Remove(rpath); err != nil {
		info.fail(err, "failed to remove %s", rpath)
		return
	}

	info.Action = Removed
	rm.log.Info(fmt.Sprintf("File '%s' removed!", info.Name), "file", info.Name)
}
