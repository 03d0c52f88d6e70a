// Package mirror keeps a replica directory identical to a source directory.
//
// Each pass is computed from scratch from what is on disk: nothing is
// remembered between passes. A pass always copies new and changed files
// before removing orphans from the replica, and a failure on one file never
// stops the others.
package mirror

import (
	"context"
	"fmt"
	"log/slog"

	humanize "github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/studio1767/dirmirror/internal/auditlog"
	"github.com/studio1767/dirmirror/internal/config"
	"github.com/studio1767/dirmirror/internal/fingerprint"
	"github.com/studio1767/dirmirror/internal/ops"
)

// ReportSink receives the report of every pass that changed something.
type ReportSink interface {
	Publish(ctx context.Context, report *Report) error
}

type Reconciler struct {
	fsys   afero.Fs
	cfg    *config.Config
	filter *ops.NameFilter
	log    *slog.Logger
	clock  clockwork.Clock
	sinks  []ReportSink
}

type Option func(*Reconciler)

func WithClock(clock clockwork.Clock) Option {
	return func(r *Reconciler) {
		r.clock = clock
	}
}

func WithSinks(sinks ...ReportSink) Option {
	return func(r *Reconciler) {
		r.sinks = append(r.sinks, sinks...)
	}
}

func NewReconciler(fsys afero.Fs, cfg *config.Config, log *slog.Logger, opts ...Option) (*Reconciler, error) {
	filter, err := cfg.NameFilter()
	if err != nil {
		return nil, err
	}

	r := Reconciler{
		fsys:   fsys,
		cfg:    cfg,
		filter: filter,
		log:    log,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return &r, nil
}

// Reconcile runs one full pass: setup, change detection, copy pass and
// delete pass. Per-file failures are recorded in the report and don't make
// Reconcile fail; the returned error is for problems that stop the whole
// pass. An *auditlog.ErrLogFile error means the audit log is gone for good.
func (r *Reconciler) Reconcile(ctx context.Context) (*Report, error) {
	report := &Report{Started: r.clock.Now()}

	created, err := r.ensureDirs()
	if err != nil {
		return nil, err
	}
	if err := auditlog.EnsureFile(r.fsys, r.cfg.LogFile, r.clock.Now()); err != nil {
		return nil, err
	}

	// nothing is logged before the log file has its header
	r.log.Debug("Synchronization started!")
	for _, dir := range created {
		r.log.Info(fmt.Sprintf("Folder %s created!", dir))
	}

	changed, srcHash, repHash, err := r.HasChanged(ctx)
	if err != nil {
		r.log.Warn("Failed to generate directory hashes", "error", err)
	}
	report.SourceHash = srcHash
	report.ReplicaHash = repHash

	source, err := ops.Scan(r.fsys, r.cfg.SourceDir, r.filter)
	if err != nil {
		return nil, err
	}
	if source.Empty() {
		report.SourceEmpty = true
		report.Finished = r.clock.Now()
		r.log.Info("Source folder is empty!")
		return report, nil
	}

	if changed {
		r.log.Info("Hashes are different. Updating replica...")
	} else {
		r.log.Debug("Hashes match.")
	}

	copied, err := r.CopyPass(ctx)
	if err != nil {
		return nil, err
	}
	report.Merge(copied)

	removed, err := r.DeletePass(ctx)
	if err != nil {
		return nil, err
	}
	report.Merge(removed)

	report.Finished = r.clock.Now()
	r.summarise(report)
	r.publish(ctx, report)

	return report, nil
}

// ensureDirs creates the base, source and replica directories when missing
// and returns the ones it created.
func (r *Reconciler) ensureDirs() ([]string, error) {
	var created []string
	for _, dir := range []string{r.cfg.BaseDir, r.cfg.SourceDir, r.cfg.ReplicaDir} {
		exists, err := afero.DirExists(r.fsys, dir)
		if err == nil && exists {
			continue
		}
		if err := r.fsys.MkdirAll(dir, 0755); err != nil {
			return created, &ErrSetup{path: dir, err: err}
		}
		created = append(created, dir)
	}
	return created, nil
}

// HasChanged generates the directory fingerprints of source and replica and
// reports whether they differ. If either can't be generated the directories
// are reported as changed, along with the error.
func (r *Reconciler) HasChanged(ctx context.Context) (bool, fingerprint.Fingerprint, fingerprint.Fingerprint, error) {
	var srcHash, repHash fingerprint.Fingerprint

	srcHash, err := fingerprint.Directory(r.fsys, r.cfg.SourceDir, r.filter.Keep)
	if err != nil {
		return true, srcHash, repHash, err
	}

	repHash, err = fingerprint.Directory(r.fsys, r.cfg.ReplicaDir, r.filter.Keep)
	if err != nil {
		r.log.Info(fmt.Sprintf("Source hash: %s", srcHash))
		return true, srcHash, repHash, err
	}

	// matching hashes are the common case, keep them out of the default output
	level := slog.LevelDebug
	if srcHash != repHash {
		level = slog.LevelInfo
	}
	r.log.Log(ctx, level, fmt.Sprintf("Source hash: %s", srcHash))
	r.log.Log(ctx, level, fmt.Sprintf("Replica hash: %s", repHash))

	return srcHash != repHash, srcHash, repHash, nil
}

// compare lists both directories and matches their files by name.
func (r *Reconciler) compare() ([]*ops.EntryInfo, error) {
	source, err := ops.Scan(r.fsys, r.cfg.SourceDir, r.filter)
	if err != nil {
		return nil, err
	}
	replica, err := ops.Scan(r.fsys, r.cfg.ReplicaDir, r.filter)
	if err != nil {
		return nil, err
	}
	return ops.Compare(source, replica), nil
}

// CopyPass copies every source file that is missing from the replica or
// whose content differs from the replica's copy.
func (r *Reconciler) CopyPass(ctx context.Context) (*Report, error) {
	entries, err := r.compare()
	if err != nil {
		return nil, err
	}

	var todo []*ops.EntryInfo
	for _, info := range entries {
		if info.Status != ops.StatusNotFound {
			todo = append(todo, info)
		}
	}

	report := &Report{}
	err = ops.Run(ctx, todo,
		ops.NewHashGenerator(r.fsys, r.cfg.SourceDir, r.cfg.ReplicaDir),
		ops.NewCopier(r.fsys, r.cfg.SourceDir, r.cfg.ReplicaDir, r.log),
		&failureLogger{log: r.log},
		report,
	)
	return report, err
}

// DeletePass removes every replica file that has no source file of the
// same name.
func (r *Reconciler) DeletePass(ctx context.Context) (*Report, error) {
	entries, err := r.compare()
	if err != nil {
		return nil, err
	}

	var todo []*ops.EntryInfo
	for _, info := range entries {
		if info.Status == ops.StatusNotFound {
			todo = append(todo, info)
		}
	}

	report := &Report{}
	err = ops.Run(ctx, todo,
		ops.NewRemover(r.fsys, r.cfg.ReplicaDir, r.log),
		&failureLogger{log: r.log},
		report,
	)
	return report, err
}

func (r *Reconciler) summarise(report *Report) {
	if !report.Changed() {
		r.log.Debug("Synchronization finished!", "files", report.Unchanged)
		return
	}

	level := slog.LevelInfo
	if report.Failed > 0 {
		level = slog.LevelWarn
	}
	r.log.Log(context.Background(), level, "Synchronization finished!",
		"unchanged", report.Unchanged,
		"added", report.Added,
		"updated", report.Updated,
		"removed", report.Removed,
		"failed", report.Failed,
		"copied", humanize.Bytes(uint64(report.BytesCopied)),
	)
}

func (r *Reconciler) publish(ctx context.Context, report *Report) {
	if !report.Changed() {
		return
	}
	for _, sink := range r.sinks {
		if err := sink.Publish(ctx, report); err != nil {
			r.log.Warn("Failed to publish report", "error", err)
		}
	}
}

// failureLogger logs entries that failed in an earlier operator.
type failureLogger struct {
	log *slog.Logger
}

func (fl *failureLogger) Process(info *ops.EntryInfo) {
	if info.Action != ops.Failed {
		return
	}
	fl.log.Error(fmt.Sprintf("File '%s' failed: %s", info.Name, info.ActionMessage),
		"file", info.Name,
		"error", info.Err,
	)
}
