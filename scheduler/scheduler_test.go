package scheduler_test

import (
	"errors"
	"testing"

	"github.com/delaneyj/reactivity/scheduler"
	"github.com/delaneyj/reactivity/scheduler/microtask"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newScheduler(t *testing.T, opts ...scheduler.Option) (*scheduler.Scheduler, *microtask.Loop) {
	t.Helper()
	loop := microtask.New()
	return scheduler.New(loop, opts...), loop
}

func record(order *[]string, name string) func() error {
	return func() error {
		*order = append(*order, name)
		return nil
	}
}

func job(id int, fn func() error) *scheduler.Job {
	return &scheduler.Job{ID: id, Fn: fn}
}

// should batch jobs until the microtask boundary and run each once
func TestQueueJobBatches(t *testing.T) {
	s, loop := newScheduler(t)
	runs := 0
	j := scheduler.NewJob(func() error {
		runs++
		return nil
	})
	s.QueueJob(j)
	s.QueueJob(j)
	assert.Equal(t, 0, runs)
	assert.Equal(t, 1, loop.Pending(), "one flush is scheduled")

	loop.Drain()
	assert.Equal(t, 1, runs)
	assert.False(t, s.Flushing())
}

// should run the main queue in id order with id-less jobs last
func TestQueueJobOrder(t *testing.T) {
	s, loop := newScheduler(t)
	var order []string
	s.QueueJob(scheduler.NewJob(record(&order, "none")))
	s.QueueJob(job(3, record(&order, "3")))
	s.QueueJob(job(1, record(&order, "1")))
	s.QueueJob(job(2, record(&order, "2")))
	loop.Drain()
	assert.Equal(t, []string{"1", "2", "3", "none"}, order)
}

// should run jobs queued during a flush in the same flush, sorted
func TestQueueJobDuringFlush(t *testing.T) {
	s, loop := newScheduler(t)
	var order []string
	j4 := job(4, record(&order, "4"))
	j2 := job(2, record(&order, "2"))
	j1 := job(1, func() error {
		order = append(order, "1")
		s.QueueJob(j4)
		s.QueueJob(j2)
		return nil
	})
	j3 := job(3, record(&order, "3"))
	s.QueueJob(j3)
	s.QueueJob(j1)
	loop.Drain()
	assert.Equal(t, []string{"1", "2", "3", "4"}, order)
}

// should not re-queue a running job unless it allows recursion
func TestQueueJobSelf(t *testing.T) {
	s, loop := newScheduler(t)
	runs := 0
	var self *scheduler.Job
	self = job(1, func() error {
		runs++
		if runs < 3 {
			s.QueueJob(self)
		}
		return nil
	})
	s.QueueJob(self)
	loop.Drain()
	assert.Equal(t, 1, runs)

	runs = 0
	self.AllowRecurse = true
	s.QueueJob(self)
	loop.Drain()
	assert.Equal(t, 3, runs)
}

// should skip inactive and invalidated jobs
func TestInactiveAndInvalidatedJobs(t *testing.T) {
	s, loop := newScheduler(t)
	var order []string
	inactive := job(1, record(&order, "inactive"))
	invalidated := job(2, record(&order, "invalidated"))
	kept := job(3, record(&order, "kept"))
	s.QueueJob(inactive)
	s.QueueJob(invalidated)
	s.QueueJob(kept)
	inactive.Deactivate()
	assert.False(t, inactive.Active())
	s.InvalidateJob(invalidated)
	loop.Drain()
	assert.Equal(t, []string{"kept"}, order)
}

// should run pre-flush callbacks first and post-flush callbacks last in id order
func TestFlushLanes(t *testing.T) {
	s, loop := newScheduler(t)
	var order []string
	post2 := job(2, record(&order, "post 2"))
	post1 := job(1, record(&order, "post 1"))
	var pre2 *scheduler.Job
	pre1 := scheduler.NewJob(func() error {
		order = append(order, "pre 1")
		s.QueuePreFlushCb(pre2)
		return nil
	})
	pre2 = scheduler.NewJob(record(&order, "pre 2"))

	s.QueuePostFlushCb(post2, post1, post2)
	s.QueueJob(job(1, record(&order, "job")))
	s.QueuePreFlushCb(pre1)
	s.QueuePreFlushCb(pre1)
	loop.Drain()
	assert.Equal(t, []string{"pre 1", "pre 2", "job", "post 1", "post 2"}, order)
}

// should flush lanes on demand
func TestFlushCallbacksDirectly(t *testing.T) {
	s, _ := newScheduler(t)
	var order []string
	s.QueuePreFlushCb(scheduler.NewJob(record(&order, "pre")))
	s.QueuePostFlushCb(scheduler.NewJob(record(&order, "post")))
	require.NoError(t, s.FlushPostFlushCbs())
	require.NoError(t, s.FlushPreFlushCbs(nil))
	assert.Equal(t, []string{"post", "pre"}, order)

	boom := errors.New("boom")
	s.QueuePreFlushCb(scheduler.NewJob(func() error { return boom }))
	assert.ErrorIs(t, s.FlushPreFlushCbs(nil), boom)
	assert.NoError(t, s.Flush())
}

// should run post callbacks queued by a post callback in a later pass
func TestPostFlushQueuedDuringPost(t *testing.T) {
	s, loop := newScheduler(t)
	var order []string
	late := job(0, record(&order, "late"))
	first := job(5, func() error {
		order = append(order, "first")
		s.QueuePostFlushCb(late)
		return nil
	})
	s.QueuePostFlushCb(first)
	loop.Drain()
	assert.Equal(t, []string{"first", "late"}, order)
}

// should stop a job that keeps re-queueing itself
func TestRecursionLimit(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var reported []error
	s, _ := newScheduler(t,
		scheduler.WithLogger(zap.New(core)),
		scheduler.WithOnError(func(_ *scheduler.Job, err error) { reported = append(reported, err) }),
	)
	runs := 0
	var loopy *scheduler.Job
	loopy = &scheduler.Job{ID: 1, AllowRecurse: true, Name: "loopy", Fn: func() error {
		runs++
		s.QueueJob(loopy)
		return nil
	}}
	s.QueueJob(loopy)
	err := s.Flush()

	assert.Equal(t, scheduler.RecursionLimit+1, runs)
	assert.ErrorIs(t, err, scheduler.ErrRecursiveUpdates)
	require.Len(t, reported, 1)
	assert.Contains(t, reported[0].Error(), "loopy")
	assert.Equal(t, 1, logs.FilterMessage("recursive updates").Len())
	assert.Equal(t, uint64(1), s.Stats().RecursionLimits)
}

// should isolate failing jobs and combine their errors
func TestJobErrorsAreIsolated(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s, _ := newScheduler(t, scheduler.WithLogger(zap.New(core)))
	boom := errors.New("boom")
	ran := false
	s.QueueJob(job(1, func() error { panic("kaput") }))
	s.QueueJob(job(2, func() error { return boom }))
	s.QueueJob(job(3, func() error {
		ran = true
		return nil
	}))

	err := s.Flush()
	assert.True(t, ran)
	assert.Len(t, multierr.Errors(err), 2)
	assert.ErrorIs(t, err, scheduler.ErrJobPanicked)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, logs.FilterMessage("job failed").Len())
	assert.Equal(t, uint64(2), s.Stats().Errors)
}

// should report a panic from Call as an error
func TestCall(t *testing.T) {
	var reported *scheduler.Job
	s, _ := newScheduler(t, scheduler.WithOnError(func(j *scheduler.Job, _ error) { reported = j }))
	j := &scheduler.Job{ID: 7, Fn: func() error { panic("no") }}
	err := s.Call(j)
	assert.ErrorIs(t, err, scheduler.ErrJobPanicked)
	assert.Contains(t, err.Error(), "job#7")
	assert.Same(t, j, reported)
	assert.NoError(t, s.Call(scheduler.NewJob(nil)))
}

// should resolve NextTick after the pending flush
func TestNextTick(t *testing.T) {
	s, loop := newScheduler(t)
	var order []string
	s.QueueJob(job(1, record(&order, "job")))
	done := s.NextTick(func() { order = append(order, "tick") })

	select {
	case <-done:
		t.Fatal("resolved before the flush")
	default:
	}
	loop.Drain()
	<-done
	assert.Equal(t, []string{"job", "tick"}, order)

	idle := s.NextTick(nil)
	loop.Drain()
	<-idle
}

// should ignore a nested flush
func TestNestedFlush(t *testing.T) {
	s, loop := newScheduler(t)
	var nested error = errors.New("unset")
	s.QueueJob(job(1, func() error {
		nested = s.Flush()
		return nil
	}))
	loop.Drain()
	assert.NoError(t, nested)
}

// should count queued jobs, runs and flushes
func TestStats(t *testing.T) {
	s, loop := newScheduler(t)
	a, b := job(1, nil), job(2, nil)
	s.QueueJob(a)
	s.QueueJob(a)
	s.QueueJob(b)
	s.QueuePostFlushCb(job(3, nil))
	loop.Drain()
	assert.Equal(t, scheduler.Stats{
		Queued:  3,
		Flushes: 1,
		JobRuns: 3,
	}, s.Stats())
}
