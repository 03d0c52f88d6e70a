package mirror_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/studio1767/dirmirror/internal/auditlog"
	"github.com/studio1767/dirmirror/internal/config"
	"github.com/studio1767/dirmirror/internal/fingerprint"
	"github.com/studio1767/dirmirror/internal/mirror"
)

type testEnv struct {
	fsys afero.Fs
	cfg  *config.Config
}

func newEnv(t *testing.T) *testEnv {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/data", 0755))
	require.NoError(t, fsys.MkdirAll("/logs", 0755))

	cfg, err := config.FromArgs(fsys, []string{"/data", "1", "/logs"})
	require.NoError(t, err)

	return &testEnv{fsys: fsys, cfg: cfg}
}

func (env *testEnv) reconciler(t *testing.T, opts ...mirror.Option) *mirror.Reconciler {
	return env.reconcilerAt(t, slog.LevelDebug, opts...)
}

func (env *testEnv) reconcilerAt(t *testing.T, level slog.Level, opts ...mirror.Option) *mirror.Reconciler {
	nocolor := false
	log := auditlog.New(io.Discard, auditlog.NewWriter(env.fsys, env.cfg.LogFile),
		auditlog.Options{Level: level, Color: &nocolor})

	opts = append([]mirror.Option{mirror.WithClock(clockwork.NewFakeClock())}, opts...)
	r, err := mirror.NewReconciler(env.fsys, env.cfg, log, opts...)
	require.NoError(t, err)
	return r
}

func (env *testEnv) write(t *testing.T, dir, name, content string) {
	require.NoError(t, afero.WriteFile(env.fsys, filepath.Join(dir, name), []byte(content), 0644))
}

func (env *testEnv) read(t *testing.T, dir, name string) string {
	data, err := afero.ReadFile(env.fsys, filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func (env *testEnv) exists(t *testing.T, dir, name string) bool {
	exists, err := afero.Exists(env.fsys, filepath.Join(dir, name))
	require.NoError(t, err)
	return exists
}

func (env *testEnv) logText(t *testing.T) string {
	data, err := afero.ReadFile(env.fsys, env.cfg.LogFile)
	require.NoError(t, err)
	return string(data)
}

func (env *testEnv) requireMirrored(t *testing.T) {
	src, err := fingerprint.Directory(env.fsys, env.cfg.SourceDir, nil)
	require.NoError(t, err)
	rep, err := fingerprint.Directory(env.fsys, env.cfg.ReplicaDir, nil)
	require.NoError(t, err)
	require.Equal(t, src, rep)
}

func TestReconcileCreatesDirectoriesAndLog(t *testing.T) {
	env := newEnv(t)
	r := env.reconciler(t)

	report, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	require.True(t, report.SourceEmpty)

	isdir, err := afero.DirExists(env.fsys, env.cfg.SourceDir)
	require.NoError(t, err)
	require.True(t, isdir)
	isdir, err = afero.DirExists(env.fsys, env.cfg.ReplicaDir)
	require.NoError(t, err)
	require.True(t, isdir)

	text := env.logText(t)
	require.True(t, strings.HasPrefix(text, "Log file created at: "))
	require.Contains(t, text, "Folder "+env.cfg.SourceDir+" created!")
	require.Contains(t, text, "Folder "+env.cfg.ReplicaDir+" created!")
	require.Contains(t, text, "Source folder is empty!")
}

func TestReconcileCopiesNewFile(t *testing.T) {
	env := newEnv(t)
	r := env.reconciler(t)
	env.write(t, env.cfg.SourceDir, "a.txt", "hello")

	report, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	require.NoError(t, report.Err())
	require.Equal(t, 1, report.Added)
	require.Equal(t, int64(5), report.BytesCopied)

	require.Equal(t, "hello", env.read(t, env.cfg.ReplicaDir, "a.txt"))

	text := env.logText(t)
	require.Contains(t, text, "'a.txt' added!")
	require.Contains(t, text, "File 'a.txt' copied!")
}

func TestReconcileRemovesOrphanWhenHashesMatch(t *testing.T) {
	env := newEnv(t)
	env.write(t, env.cfg.SourceDir, "a.txt", "same")
	env.write(t, env.cfg.ReplicaDir, "a.txt", "same")
	env.write(t, env.cfg.ReplicaDir, "b.txt", "orphan")

	report, err := env.reconciler(t).Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Removed)
	require.Equal(t, 1, report.Unchanged)

	require.False(t, env.exists(t, env.cfg.ReplicaDir, "b.txt"))
	require.True(t, env.exists(t, env.cfg.ReplicaDir, "a.txt"))
	require.Contains(t, env.logText(t), "File 'b.txt' removed!")
}

func TestReconcileUpdatesChangedFile(t *testing.T) {
	env := newEnv(t)
	env.write(t, env.cfg.SourceDir, "a.txt", "v2")
	env.write(t, env.cfg.ReplicaDir, "a.txt", "v1")

	report, err := env.reconciler(t).Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Updated)
	require.NotEqual(t, report.SourceHash, report.ReplicaHash)

	require.Equal(t, "v2", env.read(t, env.cfg.ReplicaDir, "a.txt"))
	require.Contains(t, env.logText(t), "File 'a.txt' updated!")

	files, err := afero.ReadDir(env.fsys, env.cfg.ReplicaDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestReconcileDeletesOrphansEvenWhenContentDiffers(t *testing.T) {
	env := newEnv(t)
	env.write(t, env.cfg.SourceDir, "a.txt", "v2")
	env.write(t, env.cfg.ReplicaDir, "a.txt", "v1")
	env.write(t, env.cfg.ReplicaDir, "gone.txt", "removed from source")

	report, err := env.reconciler(t).Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Updated)
	require.Equal(t, 1, report.Removed)

	require.False(t, env.exists(t, env.cfg.ReplicaDir, "gone.txt"))
	require.Contains(t, env.logText(t), "Hashes are different. Updating replica...")
	env.requireMirrored(t)
}

func TestReconcileIsIdempotent(t *testing.T) {
	env := newEnv(t)
	env.write(t, env.cfg.SourceDir, "a.txt", "alpha")
	env.write(t, env.cfg.SourceDir, "b.txt", "beta")
	env.write(t, env.cfg.ReplicaDir, "c.txt", "gamma")
	r := env.reconciler(t)

	first, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	require.True(t, first.Changed())

	second, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	require.False(t, second.Changed())
	require.Equal(t, 2, second.Unchanged)
	require.Equal(t, second.SourceHash, second.ReplicaHash)
}

func TestReconcileConverges(t *testing.T) {
	env := newEnv(t)
	for i, content := range []string{"", "x", strings.Repeat("big", 5000), "\x00\x01\x02"} {
		env.write(t, env.cfg.SourceDir, string(rune('a'+i))+".bin", content)
	}
	env.write(t, env.cfg.ReplicaDir, "b.bin", "stale")
	env.write(t, env.cfg.ReplicaDir, "z.bin", "orphan")

	_, err := env.reconciler(t).Reconcile(context.Background())
	require.NoError(t, err)
	env.requireMirrored(t)
}

func TestReconcileEmptySourceKeepsReplica(t *testing.T) {
	env := newEnv(t)
	require.NoError(t, env.fsys.MkdirAll(env.cfg.SourceDir, 0755))
	require.NoError(t, env.fsys.MkdirAll(filepath.Join(env.cfg.SourceDir, "subdir"), 0755))
	env.write(t, env.cfg.ReplicaDir, "precious.txt", "keep me")

	report, err := env.reconciler(t).Reconcile(context.Background())
	require.NoError(t, err)
	require.True(t, report.SourceEmpty)
	require.False(t, report.Changed())

	require.True(t, env.exists(t, env.cfg.ReplicaDir, "precious.txt"))
	require.Contains(t, env.logText(t), "Source folder is empty!")
}

func TestReconcileIgnoresSubdirectories(t *testing.T) {
	env := newEnv(t)
	env.write(t, env.cfg.SourceDir, "a.txt", "a")
	env.write(t, filepath.Join(env.cfg.SourceDir, "sub"), "inner.txt", "inner")
	env.write(t, filepath.Join(env.cfg.ReplicaDir, "orphan-dir"), "x.txt", "x")

	_, err := env.reconciler(t).Reconcile(context.Background())
	require.NoError(t, err)

	require.False(t, env.exists(t, env.cfg.ReplicaDir, "sub"))
	require.True(t, env.exists(t, filepath.Join(env.cfg.ReplicaDir, "orphan-dir"), "x.txt"))
}

func TestReconcileLeavesExcludedFilesAlone(t *testing.T) {
	env := newEnv(t)
	env.cfg.Exclude = []string{"*.tmp"}
	env.write(t, env.cfg.SourceDir, "a.txt", "a")
	env.write(t, env.cfg.SourceDir, "scratch.tmp", "not mirrored")
	env.write(t, env.cfg.ReplicaDir, "local.tmp", "not removed")

	report, err := env.reconciler(t).Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Added)
	require.Zero(t, report.Removed)

	require.False(t, env.exists(t, env.cfg.ReplicaDir, "scratch.tmp"))
	require.True(t, env.exists(t, env.cfg.ReplicaDir, "local.tmp"))
}

// failingFs refuses to open one file name, wherever it lives.
type failingFs struct {
	afero.Fs
	name string
}

func (f *failingFs) Open(name string) (afero.File, error) {
	if filepath.Base(name) == f.name {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return f.Fs.Open(name)
}

func TestReconcileIsolatesFileFailures(t *testing.T) {
	env := newEnv(t)
	env.write(t, env.cfg.SourceDir, "a.txt", "a")
	env.write(t, env.cfg.SourceDir, "locked.txt", "unreadable")
	env.write(t, env.cfg.SourceDir, "z.txt", "z")
	env.write(t, env.cfg.ReplicaDir, "orphan.txt", "orphan")
	env.fsys = &failingFs{Fs: env.fsys, name: "locked.txt"}

	report, err := env.reconciler(t).Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Added)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 1, report.Removed)

	require.Error(t, report.Err())
	require.True(t, errors.Is(report.Err(), os.ErrPermission))

	require.True(t, env.exists(t, env.cfg.ReplicaDir, "a.txt"))
	require.True(t, env.exists(t, env.cfg.ReplicaDir, "z.txt"))
	require.False(t, env.exists(t, env.cfg.ReplicaDir, "orphan.txt"))
	require.Contains(t, env.logText(t), "File 'locked.txt' failed")
}

func TestReconcileFatalLogFile(t *testing.T) {
	env := newEnv(t)
	require.NoError(t, env.fsys.MkdirAll(env.cfg.SourceDir, 0755))
	require.NoError(t, env.fsys.MkdirAll(env.cfg.ReplicaDir, 0755))
	env.fsys = afero.NewReadOnlyFs(env.fsys)

	_, err := env.reconciler(t).Reconcile(context.Background())
	var logerr *auditlog.ErrLogFile
	require.True(t, errors.As(err, &logerr))
}

type recordingSink struct {
	reports []*mirror.Report
	err     error
}

func (s *recordingSink) Publish(ctx context.Context, report *mirror.Report) error {
	s.reports = append(s.reports, report)
	return s.err
}

func TestReconcilePublishesChangedReports(t *testing.T) {
	env := newEnv(t)
	sink := &recordingSink{err: errors.New("offline")}
	r := env.reconciler(t, mirror.WithSinks(sink))
	env.write(t, env.cfg.SourceDir, "a.txt", "a")

	_, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	_, err = r.Reconcile(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.reports, 1)
	require.Equal(t, 1, sink.reports[0].Added)
	require.Contains(t, env.logText(t), "Failed to publish report")
}

func TestReconcileStopsOnCancel(t *testing.T) {
	env := newEnv(t)
	env.write(t, env.cfg.SourceDir, "a.txt", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.reconciler(t).Reconcile(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, env.exists(t, env.cfg.ReplicaDir, "a.txt"))
}

func TestHasChanged(t *testing.T) {
	env := newEnv(t)
	r := env.reconciler(t)
	_, err := r.Reconcile(context.Background())
	require.NoError(t, err)

	changed, _, _, err := r.HasChanged(context.Background())
	require.NoError(t, err)
	require.False(t, changed)

	env.write(t, env.cfg.SourceDir, "a.txt", "a")
	changed, src, rep, err := r.HasChanged(context.Background())
	require.NoError(t, err)
	require.True(t, changed)
	require.NotEqual(t, src, rep)

	_, err = r.CopyPass(context.Background())
	require.NoError(t, err)
	changed, _, _, err = r.HasChanged(context.Background())
	require.NoError(t, err)
	require.False(t, changed)
}

func TestReportTimes(t *testing.T) {
	env := newEnv(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	env.write(t, env.cfg.SourceDir, "a.txt", "a")

	report, err := env.reconciler(t, mirror.WithClock(clock)).Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, clock.Now(), report.Started)
	require.Equal(t, clock.Now(), report.Finished)
}

func TestReconcileLogsHashesWhenDifferent(t *testing.T) {
	env := newEnv(t)
	r := env.reconcilerAt(t, slog.LevelInfo)
	_, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	require.NotContains(t, env.logText(t), "Source hash: ")

	env.write(t, env.cfg.SourceDir, "a.txt", "a")
	report, err := r.Reconcile(context.Background())
	require.NoError(t, err)

	text := env.logText(t)
	require.Contains(t, text, "Source hash: "+report.SourceHash.String())
	require.Contains(t, text, "Replica hash: "+report.ReplicaHash.String())
}

func TestReconcileConvergesWithReadOnlyFiles(t *testing.T) {
	base := t.TempDir()
	logs := t.TempDir()
	env := &testEnv{fsys: afero.NewOsFs()}
	cfg, err := config.FromArgs(env.fsys, []string{base, "1", logs})
	require.NoError(t, err)
	env.cfg = cfg

	r := env.reconciler(t)
	_, err = r.Reconcile(context.Background())
	require.NoError(t, err)

	src := filepath.Join(cfg.SourceDir, "ro.txt")
	require.NoError(t, os.WriteFile(src, []byte("v1"), 0444))
	report, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Added)

	require.NoError(t, os.Chmod(src, 0644))
	require.NoError(t, os.WriteFile(src, []byte("v2"), 0644))
	require.NoError(t, os.Chmod(src, 0444))

	report, err = r.Reconcile(context.Background())
	require.NoError(t, err)
	require.NoError(t, report.Err())
	require.Equal(t, 1, report.Updated)
	require.Equal(t, "v2", env.read(t, cfg.ReplicaDir, "ro.txt"))
	env.requireMirrored(t)
}

func TestReconcileDoesNotWriteThroughReplicaLinks(t *testing.T) {
	base := t.TempDir()
	logs := t.TempDir()
	env := &testEnv{fsys: afero.NewOsFs()}
	cfg, err := config.FromArgs(env.fsys, []string{base, "1", logs})
	require.NoError(t, err)
	env.cfg = cfg

	outside := filepath.Join(base, "outside.txt")
	require.NoError(t, os.WriteFile(outside, []byte("precious"), 0644))
	require.NoError(t, os.MkdirAll(cfg.SourceDir, 0755))
	require.NoError(t, os.MkdirAll(cfg.ReplicaDir, 0755))
	env.write(t, cfg.SourceDir, "a.txt", "new")
	require.NoError(t, os.Symlink(outside, filepath.Join(cfg.ReplicaDir, "a.txt")))

	_, err = env.reconciler(t).Reconcile(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(outside)
	require.NoError(t, err)
	require.Equal(t, "precious", string(data))
	require.Equal(t, "new", env.read(t, cfg.ReplicaDir, "a.txt"))
	env.requireMirrored(t)
}
