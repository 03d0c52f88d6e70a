package ops

import (
	"fmt"
	"io"
	"net/url"
)

// ManifestWriter writes one CSV line per entry describing the file and what
// was done with it:
//
//	size,mtime,mode,hash,action,path
//
// The hash is the source fingerprint when known, otherwise the replica's.
// The path is url-escaped so it can't break the line format.
type ManifestWriter struct {
	writer io.Writer
	err    error
}

func NewManifestWriter(w io.Writer) *ManifestWriter {
	return &ManifestWriter{writer: w}
}

func (mw *ManifestWriter) Process(info *EntryInfo) {
	// stop at the first write error
	if mw.err != nil {
		return
	}

	hash := ""
	if !info.SourceHash.IsZero() {
		hash = info.SourceHash.String()
	} else if !info.ReplicaHash.IsZero() {
		hash = info.ReplicaHash.String()
	}

	var mtime int64
	if !info.ModTime.IsZero() {
		mtime = info.ModTime.Unix()
	}

	line := fmt.Sprintf("%d,%d,0%o,%s,%s,%s\n",
		info.Size,
		mtime,
		info.Mode&0777,
		hash,
		info.Action,
		url.PathEscape(info.Name),
	)
	if _, err := io.WriteString(mw.writer, line); err != nil {
		mw.err = err
	}
}

// Err returns the first error hit while writing.
func (mw *ManifestWriter) Err() error {
	return mw.err
}
