// Package scheduler wires up the cron job that periodically triggers a
// pipeline run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ned0ra/diplom/internal/runstate"
)

// DefaultSpec fires every 12 minutes.
const DefaultSpec = "*/12 * * * *"

// Job is one pipeline run.
type Job interface {
	Run(ctx context.Context) (runstate.Run, error)
}

// Scheduler wraps robfig/cron. At most one run is in flight per process;
// an optional Locker extends that across processes.
type Scheduler struct {
	cron  *cron.Cron
	job   Job
	lock  Locker
	spec  string
	log   *zap.Logger
	entry cron.EntryID
	wg    sync.WaitGroup
}

// New creates a Scheduler firing on spec, a standard 5-field cron
// expression or descriptor. A nil lock disables cross-process locking.
func New(job Job, lock Locker, spec string, log *zap.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	cl := cronLogger{s: log.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		job:  job,
		lock: lock,
		spec: spec,
		log:  log,
	}, nil
}

// Start registers the job and starts the scheduler. Also runs once
// immediately so the tables are filled without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() { s.runOnce(ctx) })
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.entry = id

	s.cron.Start()
	s.log.Info("cron started", zap.String("spec", s.spec))

	s.RunNow()
	return nil
}

// RunNow triggers the job outside the schedule, non-blocking. It goes
// through the same wrapper chain, so it is skipped if a run is in flight.
func (s *Scheduler) RunNow() {
	e := s.cron.Entry(s.entry)
	if e.WrappedJob == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		e.WrappedJob.Run()
	}()
}

// Stop stops scheduling and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("cron stopped")
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.lock != nil {
		unlock, err := s.lock.TryLock(ctx)
		if errors.Is(err, ErrLocked) {
			s.log.Info("run skipped, another process holds the lock")
			return
		}
		if err != nil {
			s.log.Error("run skipped, lock unavailable", zap.Error(err))
			return
		}
		defer unlock()
	}

	s.log.Info("run started")
	run, err := s.job.Run(ctx)
	if err != nil {
		s.log.Error("run failed", zap.String("run_id", run.ID), zap.Error(err))
		return
	}
	s.log.Info("run complete", zap.String("run_id", run.ID), zap.String("state", string(run.State)))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
