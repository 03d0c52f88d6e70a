package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ChunkSize is the size of the reads used to feed file content into the
// digest. It has no effect on the resulting fingerprint.
const ChunkSize = 4096

// Fingerprint is the SHA-256 digest of a file's content, or of a whole
// directory as computed by Directory.
type Fingerprint [sha256.Size]byte

func (fp Fingerprint) String() string {
	return hex.EncodeToString(fp[:])
}

// IsZero reports whether the fingerprint was never set.
func (fp Fingerprint) IsZero() bool {
	return fp == Fingerprint{}
}

// File generates the content fingerprint for the file at path.
func File(fsys afero.Fs, path string) (Fingerprint, error) {
	var fp Fingerprint

	in, err := fsys.Open(path)
	if err != nil {
		return fp, &ErrIO{op: "open", path: path, err: err}
	}
	defer in.Close()

	h := sha256.New()
	buf := make([]byte, ChunkSize)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fp, &ErrIO{op: "read", path: path, err: err}
		}
	}

	copy(fp[:], h.Sum(nil))
	return fp, nil
}

// Directory generates a single fingerprint for the regular files directly
// inside dir. Files are visited in lexicographic order and each contributes
// its name and its content fingerprint, so two directories holding the same
// names with the same content always produce the same result.
//
// If keep is not nil, only the file names it accepts are included.
func Directory(fsys afero.Fs, dir string, keep func(name string) bool) (Fingerprint, error) {
	var fp Fingerprint

	// afero.ReadDir returns the entries sorted by name
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return fp, &ErrIO{op: "list", path: dir, err: err}
	}

	h := sha256.New()
	for _, entry := range entries {
		if !isRegular(entry) {
			continue
		}
		if keep != nil && !keep(entry.Name()) {
			continue
		}

		ffp, err := File(fsys, filepath.Join(dir, entry.Name()))
		if err != nil {
			return fp, err
		}

		h.Write([]byte(entry.Name()))
		h.Write([]byte{0})
		h.Write(ffp[:])
	}

	copy(fp[:], h.Sum(nil))
	return fp, nil
}

func isRegular(fi os.FileInfo) bool {
	return fi.Mode().IsRegular()
}
