package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/studio1767/dirmirror/internal/archive"
	"github.com/studio1767/dirmirror/internal/auditlog"
	"github.com/studio1767/dirmirror/internal/config"
	"github.com/studio1767/dirmirror/internal/mirror"
	"github.com/studio1767/dirmirror/internal/s3io"
)

type options struct {
	configFile string
	exclude    []string
	once       bool
	verbose    bool
}

func main() {
	// cancel the mirror cleanly on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd(afero.NewOsFs()).ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd(fsys afero.Fs) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "dirmirror [flags] <directory_path> <interval_seconds> <log_directory>",
		Short: "Keep <directory_path>/replica an exact copy of <directory_path>/source",
		Long: `Every <interval_seconds> the files in <directory_path>/source are copied to
<directory_path>/replica when missing or different, and files in the replica
that are not in the source are removed. Every change is logged to the
console and appended to <log_directory>/logs.txt.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromArgs(fsys, args)
			if err != nil {
				var usage *config.ErrUsage
				if errors.As(err, &usage) {
					cmd.Usage()
				}
				return err
			}

			return run(cmd.Context(), fsys, cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "optional YAML config file")
	cmd.Flags().StringSliceVarP(&opts.exclude, "exclude", "x", nil, "glob pattern of file names to leave alone (repeatable)")
	cmd.Flags().BoolVar(&opts.once, "once", false, "run a single pass and exit")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose reporting")

	return cmd
}

func run(ctx context.Context, fsys afero.Fs, cfg *config.Config, opts options, console io.Writer) error {
	if opts.configFile != "" {
		if err := cfg.LoadFile(fsys, opts.configFile); err != nil {
			return err
		}
	}
	cfg.Exclude = append(cfg.Exclude, opts.exclude...)

	// create the log file before anything is written to it
	if err := auditlog.EnsureFile(fsys, cfg.LogFile, time.Now()); err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := auditlog.New(console, auditlog.NewWriter(fsys, cfg.LogFile), auditlog.Options{Level: level})
	slog.SetDefault(log)

	lock, err := mirror.AcquireLock(cfg.LockFile)
	if err != nil {
		return err
	}
	defer lock.Release()

	sinks, err := newSinks(ctx, fsys, cfg)
	if err != nil {
		return err
	}

	reconciler, err := mirror.NewReconciler(fsys, cfg, log, mirror.WithSinks(sinks...))
	if err != nil {
		return err
	}
	scheduler := mirror.NewScheduler(reconciler, cfg.Interval, clockwork.NewRealClock(), log)

	log.Info("Mirroring started",
		"source", cfg.SourceDir,
		"replica", cfg.ReplicaDir,
		"interval", cfg.Interval,
	)

	if opts.once {
		return scheduler.RunOnce(ctx)
	}

	err = scheduler.Run(ctx)
	log.Info("Mirroring stopped")
	return err
}

func newSinks(ctx context.Context, fsys afero.Fs, cfg *config.Config) ([]mirror.ReportSink, error) {
	var sinks []mirror.ReportSink

	if cfg.ReportDir != "" {
		sinks = append(sinks, archive.NewLocalSink(fsys, cfg.ReportDir))
	}

	if cfg.Archive != nil {
		client, err := s3io.NewClient(ctx, cfg.Archive.Profile, cfg.Archive.Bucket, cfg.Archive.SecretsFile)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, archive.NewS3Sink(client, cfg.Archive.Prefix, cfg.Archive.Compress))
	}

	return sinks, nil
}
