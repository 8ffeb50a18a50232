package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ned0ra/diplom/internal/cleaner"
	"github.com/ned0ra/diplom/internal/flatten"
	"github.com/ned0ra/diplom/internal/handoff"
	"github.com/ned0ra/diplom/internal/model"
	"github.com/ned0ra/diplom/internal/pipeline"
	"github.com/ned0ra/diplom/internal/prepare"
	"github.com/ned0ra/diplom/internal/runstate"
	"github.com/ned0ra/diplom/internal/schema"
	"github.com/ned0ra/diplom/internal/syncer"
)

const scenarioRecord = `{"vacancy": {"id": "v1", "company": {"companycode": "c1", "name": "Acme", "hr-agency": false, "inn": "1", "kpp": "1", "ogrn": "1", "email": "a@a", "url": "u"}, "region": {"region_code": "r1", "name": "North"}, "salary_min": 1000, "salary_max": 0, "job-name": "Engineer", "vac_url": "v", "employment": "full", "schedule": "5/2", "category_specialisation": "IT", "requirement_education": "BSc", "requirement_experience": "1", "addresses": {"address": [{"location": "Russia, Moscow, 1 Lenin St"}]}}}`

type fakeFetcher struct {
	records []flatten.Node
	err     error
	max     int
}

func (f *fakeFetcher) Fetch(_ context.Context, max int) ([]flatten.Node, error) {
	f.max = max
	return f.records, f.err
}

type fakeArchiver struct {
	runIDs []string
	err    error
}

func (a *fakeArchiver) Archive(_ context.Context, runID string, _ []flatten.Node) error {
	a.runIDs = append(a.runIDs, runID)
	return a.err
}

type fakeSyncer struct {
	mu       sync.Mutex
	failures int
	calls    int
	initial  int
	batches  []model.Batch
}

func (s *fakeSyncer) Sync(_ context.Context, b model.Batch) (syncer.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return syncer.Report{}, errors.New("store unavailable")
	}
	s.batches = append(s.batches, b)
	return syncer.Report{VacanciesInserted: len(b.Vacancies)}, nil
}

func (s *fakeSyncer) InitialLoad(_ context.Context, b model.Batch) (syncer.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initial++
	s.batches = append(s.batches, b)
	return syncer.Report{VacanciesInserted: len(b.Vacancies)}, nil
}

func records(t *testing.T, raw ...string) []flatten.Node {
	t.Helper()
	var out []flatten.Node
	for _, r := range raw {
		n, err := flatten.Decode([]byte(r))
		require.NoError(t, err)
		out = append(out, n)
	}
	return out
}

type fixture struct {
	fetcher  *fakeFetcher
	archiver *fakeArchiver
	syncer   *fakeSyncer
	handoff  *handoff.Memory
	runner   *pipeline.Runner
}

func newFixture(t *testing.T, opts pipeline.Options) *fixture {
	t.Helper()
	f := &fixture{
		fetcher: &fakeFetcher{records: records(t,
			scenarioRecord,
			`{"other": 1}`,
			`{"vacancy": {"id": "v9"}}`,
		)},
		archiver: &fakeArchiver{},
		syncer:   &fakeSyncer{},
		handoff:  handoff.NewMemory(),
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	prep := pipeline.NewPreparer(f.fetcher, f.archiver, cleaner.New(schema.V1()), prepare.New(schema.V1()), nil)
	f.runner = pipeline.NewRunner(prep, f.syncer, f.handoff, nil, opts, nil)
	return f
}

func TestRun_Succeeds(t *testing.T) {
	f := newFixture(t, pipeline.Options{})

	run, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, runstate.StateSucceeded, run.State)
	assert.Equal(t, 3, run.Fetched)
	assert.Equal(t, 2, run.Skipped, "missing payload and missing location")
	assert.Equal(t, 1, run.Report.VacanciesInserted)
	assert.Equal(t, pipeline.DefaultMaxVacancies, f.fetcher.max)
	assert.Equal(t, []string{run.ID}, f.archiver.runIDs)

	require.Len(t, f.syncer.batches, 1)
	assert.Equal(t, "v1", f.syncer.batches[0].Vacancies[0].ID)
	assert.Equal(t, "Moscow", f.syncer.batches[0].Regions[0].City)

	_, err = f.handoff.Get(context.Background(), run.ID)
	assert.ErrorIs(t, err, handoff.ErrNotFound, "handoff is cleaned up")
}

func TestRun_ArchiveFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t, pipeline.Options{})
	f.archiver.err = errors.New("mongo down")

	run, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runstate.StateSucceeded, run.State)
}

func TestRun_RetriesSync(t *testing.T) {
	f := newFixture(t, pipeline.Options{Retries: 2})
	f.syncer.failures = 2

	run, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runstate.StateSucceeded, run.State)
	assert.Equal(t, 3, f.syncer.calls)
}

func TestRun_FailsAfterRetries(t *testing.T) {
	f := newFixture(t, pipeline.Options{Retries: 1})
	f.syncer.failures = 10

	run, err := f.runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")
	assert.Equal(t, runstate.StateFailed, run.State)
	assert.Equal(t, 2, f.syncer.calls)
	assert.NotEmpty(t, run.Error)
}

func TestRun_NoRetries(t *testing.T) {
	f := newFixture(t, pipeline.Options{Retries: -1})
	f.syncer.failures = 1

	_, err := f.runner.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, f.syncer.calls)
}

func TestRun_CancelledFetchFailsWithoutRetry(t *testing.T) {
	f := newFixture(t, pipeline.Options{Retries: 3})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.fetcher.err = ctx.Err()

	run, err := f.runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, runstate.StateFailed, run.State)
	assert.Equal(t, 0, f.syncer.calls)
}

func TestPrepareOnlyThenSyncOnly(t *testing.T) {
	f := newFixture(t, pipeline.Options{})
	ctx := context.Background()

	runID, res, err := f.runner.PrepareOnly(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Batch.Vacancies, 1)

	last, _ := f.runner.Tracker().Last()
	assert.Equal(t, runstate.StatePrepared, last.State)

	stored, err := f.handoff.Get(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, res.Batch, stored)

	rep, err := f.runner.SyncOnly(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.VacanciesInserted)

	last, _ = f.runner.Tracker().Last()
	assert.Equal(t, runstate.StateSucceeded, last.State)
}

func TestSyncOnly_UnknownRunIsNotRetried(t *testing.T) {
	f := newFixture(t, pipeline.Options{Retries: 3})

	_, err := f.runner.SyncOnly(context.Background(), "missing")
	require.ErrorIs(t, err, handoff.ErrNotFound)
	assert.Equal(t, 0, f.syncer.calls)
}

func TestInitialLoad(t *testing.T) {
	f := newFixture(t, pipeline.Options{})

	rep, err := f.runner.InitialLoad(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.VacanciesInserted)
	assert.Equal(t, pipeline.InitialMaxVacancies, f.fetcher.max)
	assert.Equal(t, 1, f.syncer.initial)
	assert.Equal(t, 0, f.syncer.calls)
}

func TestRun_TrackerNotifiesOnFinish(t *testing.T) {
	f := newFixture(t, pipeline.Options{})
	var finished []runstate.State
	f.runner.Tracker().OnFinish(func(r runstate.Run) { finished = append(finished, r.State) })

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	f.syncer.failures = 100
	_, _ = f.runner.Run(context.Background())

	assert.Equal(t, []runstate.State{runstate.StateSucceeded, runstate.StateFailed}, finished)
}
