// Package archive keeps a record of the passes that changed the replica,
// as CSV manifests written locally, uploaded to S3, or both.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/studio1767/dirmirror/internal/mirror"
	"github.com/studio1767/dirmirror/internal/ops"
	"github.com/studio1767/dirmirror/internal/s3io"
)

// Manifest renders the report entries in the manifest CSV format.
func Manifest(report *mirror.Report) ([]byte, error) {
	buf := bytes.NewBuffer(nil)

	mw := ops.NewManifestWriter(buf)
	for _, info := range report.Entries {
		mw.Process(info)
	}
	if err := mw.Err(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Name generates the base name of a report, ordered by time when listed:
// report-<date>-<seconds since midnight>.
func Name(started time.Time) string {
	stamp := started.Format("2006-01-02")
	seconds := (((started.Hour() * 60) + started.Minute()) * 60) + started.Second()

	return fmt.Sprintf("report-%s-%05d", stamp, seconds)
}

// LocalSink writes reports into a directory.
type LocalSink struct {
	fsys afero.Fs
	dir  string
}

func NewLocalSink(fsys afero.Fs, dir string) *LocalSink {
	return &LocalSink{fsys: fsys, dir: dir}
}

func (ls *LocalSink) Publish(ctx context.Context, report *mirror.Report) error {
	data, err := Manifest(report)
	if err != nil {
		return err
	}

	if err := ls.fsys.MkdirAll(ls.dir, 0755); err != nil {
		return err
	}

	path := filepath.Join(ls.dir, Name(report.Started)+".csv")
	return afero.WriteFile(ls.fsys, path, data, 0644)
}

// S3Sink uploads reports to a bucket under
// <prefix>/<date>/report-<date>-<seconds>.csv[.gz].
type S3Sink struct {
	client   s3io.Client
	prefix   string
	compress bool
}

func NewS3Sink(client s3io.Client, prefix string, compress bool) *S3Sink {
	return &S3Sink{
		client:   client,
		prefix:   strings.Trim(prefix, "/"),
		compress: compress,
	}
}

func (ss *S3Sink) Key(started time.Time) string {
	key := fmt.Sprintf("%s/%s.csv", started.Format("2006-01-02"), Name(started))
	if ss.prefix != "" {
		key = ss.prefix + "/" + key
	}
	if ss.compress {
		key += ".gz"
	}
	return key
}

func (ss *S3Sink) Publish(ctx context.Context, report *mirror.Report) error {
	key := ss.Key(report.Started)

	// two passes in the same second: keep the first
	if exists, _ := ss.client.Exists(ctx, key); exists {
		return nil
	}

	data, err := Manifest(report)
	if err != nil {
		return err
	}

	_, err = ss.client.Upload(ctx, key, bytes.NewReader(data), ss.compress)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
