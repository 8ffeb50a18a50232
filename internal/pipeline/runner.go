package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ned0ra/diplom/internal/handoff"
	"github.com/ned0ra/diplom/internal/model"
	"github.com/ned0ra/diplom/internal/runstate"
	"github.com/ned0ra/diplom/internal/syncer"
)

const (
	DefaultMaxVacancies = 500
	InitialMaxVacancies = 2000
	DefaultRetries      = 2
	DefaultRetryDelay   = 5 * time.Minute
)

// BatchSyncer writes a prepared batch to the store.
type BatchSyncer interface {
	Sync(ctx context.Context, b model.Batch) (syncer.Report, error)
	InitialLoad(ctx context.Context, b model.Batch) (syncer.Report, error)
}

// Options tunes a Runner. Zero values select the defaults; a negative
// Retries disables retrying.
type Options struct {
	MaxVacancies int
	Retries      int
	RetryDelay   time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxVacancies <= 0 {
		o.MaxVacancies = DefaultMaxVacancies
	}
	if o.Retries == 0 {
		o.Retries = DefaultRetries
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	return o
}

// Runner executes pipeline runs and tracks their state.
type Runner struct {
	prep    *Preparer
	sync    BatchSyncer
	handoff handoff.Store
	tracker *runstate.Tracker
	opts    Options
	log     *zap.Logger
	newID   func() string
}

// NewRunner wires a Runner. A nil tracker gets a private one.
func NewRunner(p *Preparer, s BatchSyncer, h handoff.Store, t *runstate.Tracker, opts Options, log *zap.Logger) *Runner {
	if t == nil {
		t = runstate.NewTracker()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		prep:    p,
		sync:    s,
		handoff: h,
		tracker: t,
		opts:    opts.withDefaults(),
		log:     log,
		newID:   uuid.NewString,
	}
}

// Tracker returns the run tracker.
func (r *Runner) Tracker() *runstate.Tracker { return r.tracker }

// Run executes one full run: prepare, hand off, sync. Each unit is retried
// on its own. The returned snapshot is the run's final state.
func (r *Runner) Run(ctx context.Context) (runstate.Run, error) {
	id := r.newID()
	log := r.log.With(zap.String("run_id", id))
	r.tracker.Start(id)

	if _, err := r.prepareUnit(ctx, id); err != nil {
		return r.fail(id, err)
	}

	r.move(id, runstate.StateSyncing)
	rep, err := r.syncUnit(ctx, id)
	if err != nil {
		return r.fail(id, err)
	}
	if err := r.tracker.Succeed(id, rep); err != nil {
		log.Warn("run state", zap.Error(err))
	}

	last, _ := r.tracker.Last()
	log.Info("run succeeded",
		zap.Int("fetched", last.Fetched),
		zap.Int("skipped", last.Skipped),
		zap.Int("vacancies_inserted", rep.VacanciesInserted),
		zap.Int("vacancies_updated", rep.VacanciesUpdated),
	)
	return last, nil
}

// PrepareOnly runs the prepare unit and leaves the batch in the handoff
// store for a later SyncOnly. It returns the new run id.
func (r *Runner) PrepareOnly(ctx context.Context) (string, PrepareResult, error) {
	id := r.newID()
	r.tracker.Start(id)
	res, err := r.prepareUnit(ctx, id)
	if err != nil {
		_, err = r.fail(id, err)
		return id, PrepareResult{}, err
	}
	return id, res, nil
}

// SyncOnly runs the sync unit for a batch stored by PrepareOnly. The run
// state is updated when this process tracks runID.
func (r *Runner) SyncOnly(ctx context.Context, runID string) (syncer.Report, error) {
	r.move(runID, runstate.StateSyncing)
	rep, err := r.syncUnit(ctx, runID)
	if err != nil {
		_, err = r.fail(runID, err)
		return syncer.Report{}, err
	}
	if err := r.tracker.Succeed(runID, rep); err != nil {
		r.log.Debug("run state not tracked", zap.String("run_id", runID), zap.Error(err))
	}
	return rep, nil
}

// InitialLoad fetches up to max records and inserts them without the update
// phase. Nothing goes through the handoff store.
func (r *Runner) InitialLoad(ctx context.Context, max int) (syncer.Report, error) {
	if max <= 0 {
		max = InitialMaxVacancies
	}
	id := r.newID()
	res, err := r.prep.Prepare(ctx, id, max)
	if err != nil {
		return syncer.Report{}, err
	}
	return r.sync.InitialLoad(ctx, res.Batch)
}

func (r *Runner) prepareUnit(ctx context.Context, id string) (PrepareResult, error) {
	r.move(id, runstate.StatePreparing)

	var res PrepareResult
	err := retry(ctx, r.log, "prepare", r.opts.Retries, r.opts.RetryDelay, func(ctx context.Context) error {
		var err error
		if res, err = r.prep.Prepare(ctx, id, r.opts.MaxVacancies); err != nil {
			return err
		}
		return r.handoff.Put(ctx, id, res.Batch)
	})
	if err != nil {
		return PrepareResult{}, fmt.Errorf("prepare: %w", err)
	}

	_ = r.tracker.Record(id, func(run *runstate.Run) {
		run.Fetched = res.Fetched
		run.Skipped = len(res.Skipped)
	})
	r.move(id, runstate.StatePrepared)
	return res, nil
}

func (r *Runner) syncUnit(ctx context.Context, id string) (syncer.Report, error) {
	var rep syncer.Report
	err := retry(ctx, r.log, "sync", r.opts.Retries, r.opts.RetryDelay, func(ctx context.Context) error {
		b, err := r.handoff.Get(ctx, id)
		if err != nil {
			if errors.Is(err, handoff.ErrNotFound) {
				return permanent(err)
			}
			return err
		}
		rep, err = r.sync.Sync(ctx, b)
		return err
	})
	if err != nil {
		return syncer.Report{}, fmt.Errorf("sync: %w", err)
	}

	if err := r.handoff.Delete(ctx, id); err != nil {
		r.log.Warn("handoff cleanup failed", zap.String("run_id", id), zap.Error(err))
	}
	return rep, nil
}

func (r *Runner) move(id string, to runstate.State) {
	if err := r.tracker.Move(id, to); err != nil {
		r.log.Debug("run state not tracked", zap.String("run_id", id), zap.Error(err))
	}
}

func (r *Runner) fail(id string, cause error) (runstate.Run, error) {
	if err := r.tracker.Fail(id, cause); err != nil {
		r.log.Debug("run state not tracked", zap.String("run_id", id), zap.Error(err))
	}
	r.log.Error("run failed", zap.String("run_id", id), zap.Error(cause))
	last, _ := r.tracker.Last()
	return last, cause
}
