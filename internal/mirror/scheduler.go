package mirror

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/studio1767/dirmirror/internal/auditlog"
)

// Ticker is the work done on every tick of the scheduler.
type Ticker interface {
	Reconcile(ctx context.Context) (*Report, error)
}

// Scheduler runs a Ticker now and then again every interval after the
// previous run finished. Runs never overlap: a run that takes longer than
// the interval just delays the next one.
type Scheduler struct {
	ticker   Ticker
	interval time.Duration
	clock    clockwork.Clock
	log      *slog.Logger
}

func NewScheduler(ticker Ticker, interval time.Duration, clock clockwork.Clock, log *slog.Logger) *Scheduler {
	return &Scheduler{
		ticker:   ticker,
		interval: interval,
		clock:    clock,
		log:      log,
	}
}

// Run loops until the context is cancelled, which is a clean stop and
// returns nil. Failed ticks are logged and retried on the next tick, except
// when the audit log can't be written: that error is returned.
func (s *Scheduler) Run(ctx context.Context) error {
	for tick := 1; ; tick++ {
		_, err := s.ticker.Reconcile(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			var logerr *auditlog.ErrLogFile
			if errors.As(err, &logerr) {
				s.log.Error("Unable to write the log file, stopping", "error", err)
				return err
			}
			s.log.Error("Synchronization failed", "tick", tick, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(s.interval):
		}
	}
}

// RunOnce runs a single tick. Unlike Run it also fails when individual files
// couldn't be mirrored.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	report, err := s.ticker.Reconcile(ctx)
	if err != nil {
		return err
	}
	return report.Err()
}
