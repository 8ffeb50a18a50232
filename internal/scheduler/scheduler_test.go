package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ned0ra/diplom/internal/runstate"
	"github.com/ned0ra/diplom/internal/scheduler"
)

type countingJob struct {
	calls   int32
	running int32
	maxSeen int32
	release chan struct{}
	err     error
}

func (j *countingJob) Run(ctx context.Context) (runstate.Run, error) {
	atomic.AddInt32(&j.calls, 1)
	n := atomic.AddInt32(&j.running, 1)
	defer atomic.AddInt32(&j.running, -1)
	for {
		m := atomic.LoadInt32(&j.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&j.maxSeen, m, n) {
			break
		}
	}
	if j.release != nil {
		select {
		case <-j.release:
		case <-ctx.Done():
		}
	}
	return runstate.Run{ID: "r", State: runstate.StateSucceeded}, j.err
}

func TestNew_RejectsBadSpec(t *testing.T) {
	_, err := scheduler.New(&countingJob{}, nil, "every now and then", nil)
	assert.Error(t, err)

	s, err := scheduler.New(&countingJob{}, nil, "", nil)
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestStart_RunsImmediately(t *testing.T) {
	job := &countingJob{}
	s, err := scheduler.New(job, nil, "@every 1h", nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&job.calls) == 1 }, time.Second, 5*time.Millisecond)
}

func TestRunNow_SkipsWhileRunning(t *testing.T) {
	job := &countingJob{release: make(chan struct{})}
	s, err := scheduler.New(job, nil, "@every 1h", nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return atomic.LoadInt32(&job.running) == 1 }, time.Second, 5*time.Millisecond)
	s.RunNow()
	s.RunNow()
	time.Sleep(50 * time.Millisecond)

	close(job.release)
	s.Stop()

	assert.EqualValues(t, 1, atomic.LoadInt32(&job.calls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&job.maxSeen))
}

func TestLock_SkipsWhenHeldElsewhere(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	other := scheduler.NewRedisLock(rdb, "", 0)
	unlock, err := other.TryLock(context.Background())
	require.NoError(t, err)

	job := &countingJob{}
	s, err := scheduler.New(job, scheduler.NewRedisLock(rdb, "", 0), "@every 1h", nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&job.calls))

	unlock()
	s.RunNow()
	s.Stop()
	assert.EqualValues(t, 1, atomic.LoadInt32(&job.calls))
	assert.False(t, mr.Exists(scheduler.DefaultLockKey), "lock released after run")
}

func TestRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	a := scheduler.NewRedisLock(rdb, "k", time.Minute)
	b := scheduler.NewRedisLock(rdb, "k", time.Minute)

	unlockA, err := a.TryLock(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	_, err = b.TryLock(ctx)
	assert.ErrorIs(t, err, scheduler.ErrLocked)

	// A's lease expires and B takes over; A's late unlock must not free B's lock.
	mr.FastForward(2 * time.Minute)
	unlockB, err := b.TryLock(ctx)
	require.NoError(t, err)
	unlockA()
	assert.True(t, mr.Exists("k"))

	unlockB()
	assert.False(t, mr.Exists("k"))
}

func TestRunOnce_JobErrorIsContained(t *testing.T) {
	job := &countingJob{err: errors.New("boom")}
	s, err := scheduler.New(job, nil, "@every 1h", nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	assert.EqualValues(t, 1, atomic.LoadInt32(&job.calls))
}
