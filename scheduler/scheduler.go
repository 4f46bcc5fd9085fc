// Package scheduler batches jobs behind a microtask boundary. Jobs queued
// in the same tick run once, in id order, between a pre-flush and a
// post-flush lane of callbacks.
package scheduler

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// NoID sorts a job after every job with an id.
const NoID = math.MaxInt

// RecursionLimit is how many times one job may run within a single flush
// before it is skipped as a probable update loop.
const RecursionLimit = 100

var (
	ErrRecursiveUpdates = errors.New("scheduler: maximum recursive updates exceeded")
	ErrJobPanicked      = errors.New("scheduler: job panicked")
)

// Driver queues a function to run once the current synchronous work is
// done. microtask.Loop is the usual driver.
type Driver interface {
	QueueMicrotask(fn func())
}

// DriverFunc adapts a function to Driver.
type DriverFunc func(fn func())

func (f DriverFunc) QueueMicrotask(fn func()) { f(fn) }

type OnErrorFunc func(job *Job, err error)

// Scheduler must be used from a single goroutine, the one draining its
// driver. Stats is the exception.
type Scheduler struct {
	driver  Driver
	logger  *zap.Logger
	onError OnErrorFunc

	queue        []*Job
	flushIndex   int
	flushing     bool
	flushPending bool

	pendingPre []*Job
	activePre  []*Job
	preIndex   int
	preParent  *Job

	pendingPost []*Job
	activePost  []*Job
	postIndex   int

	ticks []func()
	errs  error

	stats stats
}

type Option func(*Scheduler)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOnError receives every job error and recovered panic. The default
// logs them.
func WithOnError(fn OnErrorFunc) Option {
	return func(s *Scheduler) {
		s.onError = fn
	}
}

func New(driver Driver, opts ...Option) *Scheduler {
	s := &Scheduler{
		driver: driver,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.onError == nil {
		s.onError = func(job *Job, err error) {
			s.logger.Error("job failed", zap.String("job", job.String()), zap.Error(err))
		}
	}
	return s
}

// Flushing reports whether a flush is in progress.
func (s *Scheduler) Flushing() bool {
	return s.flushing
}

// QueueJob adds job to the main queue unless it is already waiting at or
// after the flush cursor. A job that allows recursion may queue itself
// again while it runs.
func (s *Scheduler) QueueJob(job *Job) {
	start := s.flushIndex
	if s.flushing && job.AllowRecurse {
		start++
	}
	if s.contains(s.queue, job, start) || job == s.preParent {
		return
	}
	if job.ID == NoID {
		s.queue = append(s.queue, job)
	} else {
		s.queue = slices.Insert(s.queue, s.findInsertionIndex(job.ID), job)
	}
	s.stats.queued.Add(1)
	s.queueFlush()
}

// findInsertionIndex keeps the unflushed part of the queue sorted by id.
func (s *Scheduler) findInsertionIndex(id int) int {
	start, end := s.flushIndex, len(s.queue)
	if s.flushing {
		start++
	}
	if start > end {
		start = end
	}
	for start < end {
		middle := int(uint(start+end) >> 1)
		if s.queue[middle].ID < id {
			start = middle + 1
		} else {
			end = middle
		}
	}
	return start
}

// InvalidateJob removes job from the queue if it has not run yet.
func (s *Scheduler) InvalidateJob(job *Job) {
	i := slices.Index(s.queue, job)
	if i < 0 || (s.flushing && i <= s.flushIndex) {
		return
	}
	s.queue = slices.Delete(s.queue, i, i+1)
}

// QueuePreFlushCb queues cb to run before the main queue.
func (s *Scheduler) QueuePreFlushCb(cb *Job) {
	s.queueCb(cb, s.activePre, &s.pendingPre, s.preIndex)
}

// QueuePostFlushCb queues cbs to run after the main queue.
func (s *Scheduler) QueuePostFlushCb(cbs ...*Job) {
	for _, cb := range cbs {
		s.queueCb(cb, s.activePost, &s.pendingPost, s.postIndex)
	}
}

func (s *Scheduler) queueCb(cb *Job, active []*Job, pending *[]*Job, index int) {
	start := index
	if cb.AllowRecurse {
		start++
	}
	if active == nil || !s.contains(active, cb, start) {
		*pending = append(*pending, cb)
		s.stats.queued.Add(1)
	}
	s.queueFlush()
}

func (s *Scheduler) contains(jobs []*Job, job *Job, from int) bool {
	if from >= len(jobs) {
		return false
	}
	return slices.Contains(jobs[from:], job)
}

func (s *Scheduler) queueFlush() {
	if s.flushing || s.flushPending {
		return
	}
	s.flushPending = true
	s.driver.QueueMicrotask(func() {
		if !s.flushPending {
			return
		}
		// errors were already reported one by one
		_ = s.Flush()
	})
}

// NextTick returns a channel closed after the pending flush, or after the
// next microtask when nothing is pending. fn, if not nil, runs just
// before the channel closes.
func (s *Scheduler) NextTick(fn func()) <-chan struct{} {
	done := make(chan struct{})
	tick := func() {
		if fn != nil {
			fn()
		}
		close(done)
	}
	if s.flushing || s.flushPending {
		s.ticks = append(s.ticks, tick)
	} else {
		s.driver.QueueMicrotask(tick)
	}
	return done
}

// FlushPreFlushCbs runs the pre-flush lane until it stays empty. Jobs
// queued by a callback as a child of parent are not re-queued. It returns
// the errors of the callbacks that failed.
func (s *Scheduler) FlushPreFlushCbs(parent *Job) error {
	s.flushPreFlushCbs(map[*Job]int{}, parent)
	return s.takeErrs()
}

func (s *Scheduler) flushPreFlushCbs(seen map[*Job]int, parent *Job) {
	for len(s.pendingPre) > 0 {
		s.preParent = parent
		s.activePre = dedupe(s.pendingPre)
		s.pendingPre = nil
		for s.preIndex = 0; s.preIndex < len(s.activePre); s.preIndex++ {
			cb := s.activePre[s.preIndex]
			if s.checkRecursiveUpdates(seen, cb) {
				continue
			}
			s.run(cb)
		}
		s.activePre = nil
		s.preIndex = 0
		s.preParent = nil
	}
}

// FlushPostFlushCbs runs the post-flush lane in id order. Callbacks queued
// while the lane is running join the running batch.
func (s *Scheduler) FlushPostFlushCbs() error {
	s.flushPostFlushCbs(map[*Job]int{})
	return s.takeErrs()
}

func (s *Scheduler) takeErrs() error {
	err := s.errs
	s.errs = nil
	return err
}

func (s *Scheduler) flushPostFlushCbs(seen map[*Job]int) {
	if len(s.pendingPost) == 0 {
		return
	}
	deduped := dedupe(s.pendingPost)
	s.pendingPost = nil
	if s.activePost != nil {
		s.activePost = append(s.activePost, deduped...)
		return
	}
	s.activePost = deduped
	slices.SortStableFunc(s.activePost, compareJobs)
	for s.postIndex = 0; s.postIndex < len(s.activePost); s.postIndex++ {
		cb := s.activePost[s.postIndex]
		if s.checkRecursiveUpdates(seen, cb) {
			continue
		}
		s.run(cb)
	}
	s.activePost = nil
	s.postIndex = 0
}

// Flush drains every lane until nothing is left queued and returns the
// combined errors of the jobs that failed. The driver calls it; calling
// it directly flushes synchronously. Called during a flush it does
// nothing.
func (s *Scheduler) Flush() error {
	if s.flushing {
		return nil
	}
	s.stats.flushes.Add(1)
	seen := map[*Job]int{}
	ran := 0
	for {
		ran += s.flushJobs(seen)
		if len(s.queue) == 0 && len(s.pendingPre) == 0 && len(s.pendingPost) == 0 {
			break
		}
	}
	if ce := s.logger.Check(zap.DebugLevel, "flushed"); ce != nil {
		ce.Write(zap.Int("jobs", ran))
	}

	ticks := s.ticks
	s.ticks = nil
	for _, tick := range ticks {
		s.driver.QueueMicrotask(tick)
	}

	return s.takeErrs()
}

func (s *Scheduler) flushJobs(seen map[*Job]int) int {
	s.flushPending = false
	s.flushing = true
	ran := 0
	defer func() {
		s.flushIndex = 0
		clear(s.queue)
		s.queue = s.queue[:0]
		s.flushPostFlushCbs(seen)
		s.flushing = false
	}()

	s.flushPreFlushCbs(seen, nil)
	slices.SortStableFunc(s.queue, compareJobs)
	for s.flushIndex = 0; s.flushIndex < len(s.queue); s.flushIndex++ {
		job := s.queue[s.flushIndex]
		if job == nil || !job.Active() {
			continue
		}
		if s.checkRecursiveUpdates(seen, job) {
			continue
		}
		s.run(job)
		ran++
	}
	return ran
}

func (s *Scheduler) checkRecursiveUpdates(seen map[*Job]int, job *Job) bool {
	count := seen[job]
	if count > RecursionLimit {
		err := fmt.Errorf("%w: %s ran more than %d times in one flush", ErrRecursiveUpdates, job, RecursionLimit)
		s.logger.Warn("recursive updates", zap.String("job", job.String()), zap.Int("limit", RecursionLimit))
		s.stats.recursionLimits.Add(1)
		s.report(job, err)
		s.errs = multierr.Append(s.errs, err)
		return true
	}
	seen[job] = count + 1
	return false
}

func (s *Scheduler) run(job *Job) {
	if err := s.Call(job); err != nil {
		s.errs = multierr.Append(s.errs, err)
	}
}

// Call runs job, converting a panic into an error. Failures are reported
// to the error handler and returned.
func (s *Scheduler) Call(job *Job) (err error) {
	s.stats.jobRuns.Add(1)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrJobPanicked, job, r)
		}
		if err != nil {
			s.report(job, err)
		}
	}()
	if job.Fn == nil {
		return nil
	}
	if err := job.Fn(); err != nil {
		return fmt.Errorf("%s: %w", job, err)
	}
	return nil
}

func (s *Scheduler) report(job *Job, err error) {
	s.stats.errors.Add(1)
	s.onError(job, err)
}

func compareJobs(a, b *Job) int {
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

func dedupe(jobs []*Job) []*Job {
	seen := make(map[*Job]struct{}, len(jobs))
	out := make([]*Job, 0, len(jobs))
	for _, j := range jobs {
		if _, ok := seen[j]; ok {
			continue
		}
		seen[j] = struct{}{}
		out = append(out, j)
	}
	return out
}

type stats struct {
	queued          atomic.Uint64
	flushes         atomic.Uint64
	jobRuns         atomic.Uint64
	errors          atomic.Uint64
	recursionLimits atomic.Uint64
}

// Stats are cumulative counters, safe to read from any goroutine.
type Stats struct {
	Queued          uint64
	Flushes         uint64
	JobRuns         uint64
	Errors          uint64
	RecursionLimits uint64
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		Queued:          s.stats.queued.Load(),
		Flushes:         s.stats.flushes.Load(),
		JobRuns:         s.stats.jobRuns.Load(),
		Errors:          s.stats.errors.Load(),
		RecursionLimits: s.stats.recursionLimits.Load(),
	}
}
