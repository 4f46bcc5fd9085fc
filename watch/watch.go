// Package watch runs callbacks when reactive state changes, timed by a
// scheduler lane.
package watch

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/delaneyj/reactivity/reactivity"
	"github.com/delaneyj/reactivity/scheduler"
)

// FlushMode picks when a triggered watcher runs.
type FlushMode int

const (
	// FlushPre runs in the scheduler's pre-flush lane, before queued jobs.
	FlushPre FlushMode = iota
	// FlushPost runs in the post-flush lane, after queued jobs.
	FlushPost
	// FlushSync runs inline, inside the write that triggered it.
	FlushSync
)

func (m FlushMode) String() string {
	switch m {
	case FlushPre:
		return "pre"
	case FlushPost:
		return "post"
	case FlushSync:
		return "sync"
	default:
		return "unknown"
	}
}

type options struct {
	immediate bool
	deep      bool
	flush     FlushMode
	name      string
}

type Option func(*options)

// Immediate runs the callback once on creation.
func Immediate() Option {
	return func(o *options) { o.immediate = true }
}

// Deep tracks every nested container and ref reachable from the source,
// and calls back on any change even when the source returns the same
// value.
func Deep() Option {
	return func(o *options) { o.deep = true }
}

func Flush(mode FlushMode) Option {
	return func(o *options) { o.flush = mode }
}

// Name labels the watcher's job in scheduler logs and errors.
func Name(name string) Option {
	return func(o *options) { o.name = name }
}

// OnCleanup registers a function to run before the next callback, or when
// the watcher stops.
type OnCleanup func(fn func())

// StopHandle stops a watcher. Calling it more than once is a no-op.
type StopHandle func()

type watcher struct {
	rs      *reactivity.ReactiveSystem
	s       *scheduler.Scheduler
	opts    options
	effect  *reactivity.ReactiveEffect
	job     *scheduler.Job
	cleanup func()
}

func newWatcher(rs *reactivity.ReactiveSystem, s *scheduler.Scheduler, opts []Option) *watcher {
	w := &watcher{rs: rs, s: s}
	for _, opt := range opts {
		opt(&w.opts)
	}
	return w
}

func (w *watcher) onCleanup(fn func()) {
	w.cleanup = fn
}

func (w *watcher) runCleanup() {
	if fn := w.cleanup; fn != nil {
		w.cleanup = nil
		fn()
	}
}

// schedule is the effect scheduler: where the job goes on trigger.
func (w *watcher) schedule() {
	switch w.opts.flush {
	case FlushSync:
		_ = w.s.Call(w.job)
	case FlushPost:
		w.s.QueuePostFlushCb(w.job)
	default:
		w.s.QueuePreFlushCb(w.job)
	}
}

// start registers the effect without running it, so there is no first
// run that could fail.
func (w *watcher) start(fn func() error) {
	w.effect, _ = reactivity.Effect(w.rs, fn,
		reactivity.Lazy(),
		reactivity.WithScheduler(w.schedule),
		reactivity.OnStop(w.runCleanup),
	)
}

func (w *watcher) stop() {
	w.effect.Stop()
	w.job.Deactivate()
}

// Effect runs fn now and again whenever anything it read changes. With
// FlushPost the first run is deferred to the post-flush lane.
func Effect(rs *reactivity.ReactiveSystem, s *scheduler.Scheduler, fn func(onCleanup OnCleanup) error, opts ...Option) (StopHandle, error) {
	w := newWatcher(rs, s, opts)
	w.start(func() error {
		w.runCleanup()
		return fn(w.onCleanup)
	})
	w.job = &scheduler.Job{ID: scheduler.NoID, Name: w.opts.name, Fn: func() error {
		if !w.effect.Active() {
			return nil
		}
		return w.effect.Run()
	}}

	if w.opts.flush == FlushPost {
		s.QueuePostFlushCb(w.job)
		return w.stop, nil
	}
	if err := w.effect.Run(); err != nil {
		return w.stop, err
	}
	return w.stop, nil
}

// Callback receives the new and previous source values. On the first
// immediate call old is the zero value.
type Callback[T any] func(value, old T, onCleanup OnCleanup) error

// Watch calls cb when the value returned by source changes. source runs
// inside a tracking effect, so reading a ref or a reactive container in it
// subscribes the watcher.
func Watch[T any](rs *reactivity.ReactiveSystem, s *scheduler.Scheduler, source func() T, cb Callback[T], opts ...Option) (StopHandle, error) {
	w := newWatcher(rs, s, opts)
	var value, old T
	first := true
	w.start(func() error {
		value = source()
		if w.opts.deep {
			Traverse(value)
		}
		return nil
	})

	w.job = &scheduler.Job{ID: scheduler.NoID, Name: w.opts.name, AllowRecurse: true, Fn: func() error {
		if !w.effect.Active() {
			return nil
		}
		if err := w.effect.Run(); err != nil {
			return err
		}
		if !first && !w.opts.deep && !reactivity.HasChanged(value, old) {
			return nil
		}
		w.runCleanup()
		prev := old
		if first {
			var zero T
			prev = zero
		}
		first = false
		old = value
		return cb(value, prev, w.onCleanup)
	}}

	if w.opts.immediate {
		return w.stop, w.s.Call(w.job)
	}
	if err := w.effect.Run(); err != nil {
		return w.stop, err
	}
	first = false
	old = value
	return w.stop, nil
}

// Traverse reads everything reachable from v so the active effect
// depends on all of it. Weak collections are skipped since they cannot be
// iterated.
func Traverse(v any) any {
	traverse(v, mapset.NewThreadUnsafeSet[any]())
	return v
}

func traverse(v any, seen mapset.Set[any]) {
	switch t := v.(type) {
	case *reactivity.Object:
		if t == nil || !seen.Add(t) {
			return
		}
		for _, value := range t.All() {
			traverse(value, seen)
		}
	case *reactivity.Array:
		if t == nil || !seen.Add(t) {
			return
		}
		for _, value := range t.All() {
			traverse(value, seen)
		}
	case *reactivity.Map:
		if t == nil || t.Weak() || !seen.Add(t) {
			return
		}
		for key, value := range t.All() {
			traverse(key, seen)
			traverse(value, seen)
		}
	case *reactivity.Set:
		if t == nil || t.Weak() || !seen.Add(t) {
			return
		}
		for value := range t.All() {
			traverse(value, seen)
		}
	case reactivity.AnyRef:
		if !seen.Add(t) {
			return
		}
		traverse(t.AnyValue(), seen)
	}
}
