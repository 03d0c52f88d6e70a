package auditlog

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
)

// FileName is the name of the audit log inside the log directory.
const FileName = "logs.txt"

// Writer appends to the log file. The file is opened, written and closed on
// every call so a log file removed while the process runs is simply
// recreated.
type Writer struct {
	fsys afero.Fs
	path string
}

func NewWriter(fsys afero.Fs, path string) *Writer {
	return &Writer{fsys: fsys, path: path}
}

func (w *Writer) Write(p []byte) (int, error) {
	f, err := w.fsys.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return 0, err
	}

	n, err := f.Write(p)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Path of the log file.
func (w *Writer) Path() string {
	return w.path
}

// EnsureFile creates the log file with a header line if it doesn't exist.
func EnsureFile(fsys afero.Fs, path string, now time.Time) error {
	_, err := fsys.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return &ErrLogFile{path: path, err: err}
	}

	header := fmt.Sprintf("Log file created at: %s\n", now.Format("2006-01-02 15:04:05"))
	if err := afero.WriteFile(fsys, path, []byte(header), 0644); err != nil {
		return &ErrLogFile{path: path, err: err}
	}
	return nil
}
