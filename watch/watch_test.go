package watch_test

import (
	"errors"
	"testing"

	"github.com/delaneyj/reactivity/reactivity"
	"github.com/delaneyj/reactivity/scheduler"
	"github.com/delaneyj/reactivity/scheduler/microtask"
	"github.com/delaneyj/reactivity/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	rs   *reactivity.ReactiveSystem
	s    *scheduler.Scheduler
	loop *microtask.Loop
	errs []error
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{loop: microtask.New()}
	e.rs = reactivity.CreateReactiveSystem(reactivity.WithOnError(func(_ *reactivity.ReactiveEffect, err error) {
		e.errs = append(e.errs, err)
	}))
	e.s = scheduler.New(e.loop, scheduler.WithOnError(func(_ *scheduler.Job, err error) {
		e.errs = append(e.errs, err)
	}))
	return e
}

// should call back once per flush with the latest and previous values
func TestWatchRefBatched(t *testing.T) {
	e := newEnv(t)
	count := reactivity.Ref(e.rs, 0)
	var calls [][2]int
	_, err := watch.Watch(e.rs, e.s, count.Value, func(value, old int, _ watch.OnCleanup) error {
		calls = append(calls, [2]int{value, old})
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, calls)

	count.SetValue(1)
	count.SetValue(2)
	assert.Empty(t, calls, "pre watchers wait for the flush")
	e.loop.Drain()
	assert.Equal(t, [][2]int{{2, 0}}, calls)

	// a change that is reverted before the flush is no change
	count.SetValue(3)
	count.SetValue(2)
	e.loop.Drain()
	assert.Len(t, calls, 1)
	assert.Empty(t, e.errs)
}

// should call back immediately with a zero previous value
func TestWatchImmediate(t *testing.T) {
	e := newEnv(t)
	name := reactivity.Ref(e.rs, "a")
	var olds []string
	_, err := watch.Watch(e.rs, e.s, name.Value, func(_, old string, _ watch.OnCleanup) error {
		olds = append(olds, old)
		return nil
	}, watch.Immediate())
	require.NoError(t, err)
	assert.Equal(t, []string{""}, olds)

	name.SetValue("b")
	e.loop.Drain()
	assert.Equal(t, []string{"", "a"}, olds)
}

// should only see nested changes when deep
func TestWatchDeep(t *testing.T) {
	e := newEnv(t)
	state := reactivity.Reactive(e.rs, reactivity.ObjectOf(
		"nested", reactivity.ObjectOf("list", reactivity.NewArray(1)),
		"tags", reactivity.NewSet("x"),
		"weak", reactivity.NewWeakMap(),
	))
	deepCalls, shallowCalls := 0, 0
	source := func() *reactivity.Object { return state }
	watch.Watch(e.rs, e.s, source, func(_, _ *reactivity.Object, _ watch.OnCleanup) error {
		deepCalls++
		return nil
	}, watch.Deep())
	watch.Watch(e.rs, e.s, source, func(_, _ *reactivity.Object, _ watch.OnCleanup) error {
		shallowCalls++
		return nil
	})

	list := state.Get("nested").(*reactivity.Object).Get("list").(*reactivity.Array)
	list.Push(2)
	e.loop.Drain()
	assert.Equal(t, 1, deepCalls)
	assert.Equal(t, 0, shallowCalls)

	state.Get("tags").(*reactivity.Set).Add("y")
	e.loop.Drain()
	assert.Equal(t, 2, deepCalls)
}

// should run pre watchers before jobs, post watchers after and sync inline
func TestWatchFlushOrder(t *testing.T) {
	e := newEnv(t)
	count := reactivity.Ref(e.rs, 0)
	var order []string
	for _, mode := range []watch.FlushMode{watch.FlushPost, watch.FlushSync, watch.FlushPre} {
		watch.Watch(e.rs, e.s, count.Value, func(int, int, watch.OnCleanup) error {
			order = append(order, mode.String())
			return nil
		}, watch.Flush(mode))
	}

	e.s.QueueJob(&scheduler.Job{ID: 1, Fn: func() error {
		order = append(order, "job")
		return nil
	}})
	count.SetValue(1)
	assert.Equal(t, []string{"sync"}, order)
	e.loop.Drain()
	assert.Equal(t, []string{"sync", "pre", "job", "post"}, order)
}

// should run cleanups before the next callback and on stop
func TestWatchOnCleanup(t *testing.T) {
	e := newEnv(t)
	count := reactivity.Ref(e.rs, 0)
	var cleaned []int
	stop, err := watch.Watch(e.rs, e.s, count.Value, func(value, _ int, onCleanup watch.OnCleanup) error {
		onCleanup(func() { cleaned = append(cleaned, value) })
		return nil
	}, watch.Flush(watch.FlushSync))
	require.NoError(t, err)

	count.SetValue(1)
	assert.Empty(t, cleaned)
	count.SetValue(2)
	assert.Equal(t, []int{1}, cleaned)

	stop()
	assert.Equal(t, []int{1, 2}, cleaned)
	count.SetValue(3)
	stop()
	assert.Equal(t, []int{1, 2}, cleaned)
}

// should stop calling back once stopped, even with a queued run
func TestWatchStop(t *testing.T) {
	e := newEnv(t)
	count := reactivity.Ref(e.rs, 0)
	calls := 0
	stop, _ := watch.Watch(e.rs, e.s, count.Value, func(int, int, watch.OnCleanup) error {
		calls++
		return nil
	})
	count.SetValue(1)
	stop()
	e.loop.Drain()
	assert.Equal(t, 0, calls)
}

// should stop with the scope it was created in
func TestWatchInScope(t *testing.T) {
	e := newEnv(t)
	count := reactivity.Ref(e.rs, 0)
	calls := 0
	scope := e.rs.NewEffectScope(false)
	scope.Run(func() error {
		_, err := watch.Watch(e.rs, e.s, count.Value, func(int, int, watch.OnCleanup) error {
			calls++
			return nil
		}, watch.Flush(watch.FlushSync))
		return err
	})
	count.SetValue(1)
	scope.Stop()
	count.SetValue(2)
	assert.Equal(t, 1, calls)
}

// should report callback errors through the scheduler
func TestWatchCallbackError(t *testing.T) {
	e := newEnv(t)
	count := reactivity.Ref(e.rs, 0)
	boom := errors.New("boom")
	watch.Watch(e.rs, e.s, count.Value, func(int, int, watch.OnCleanup) error {
		return boom
	}, watch.Name("failing"))
	count.SetValue(1)
	e.loop.Drain()
	require.Len(t, e.errs, 1)
	assert.ErrorIs(t, e.errs[0], boom)
	assert.Contains(t, e.errs[0].Error(), "failing")
}

// should run a watch effect now and again on change
func TestEffect(t *testing.T) {
	e := newEnv(t)
	count := reactivity.Ref(e.rs, 0)
	var seen []int
	cleanups := 0
	stop, err := watch.Effect(e.rs, e.s, func(onCleanup watch.OnCleanup) error {
		seen = append(seen, count.Value())
		onCleanup(func() { cleanups++ })
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, seen)

	count.SetValue(1)
	count.SetValue(2)
	e.loop.Drain()
	assert.Equal(t, []int{0, 2}, seen)
	assert.Equal(t, 1, cleanups)

	stop()
	assert.Equal(t, 2, cleanups)
}

// should return the first run's error along with a working stop handle
func TestEffectFirstRunError(t *testing.T) {
	e := newEnv(t)
	count := reactivity.Ref(e.rs, 0)
	runs := 0
	stop, err := watch.Effect(e.rs, e.s, func(watch.OnCleanup) error {
		runs++
		if count.Value() == 0 {
			return errors.New("not ready")
		}
		return nil
	})
	assert.EqualError(t, err, "not ready")
	require.NotNil(t, stop)

	count.SetValue(1)
	e.loop.Drain()
	assert.Equal(t, 2, runs)
	assert.Empty(t, e.errs)

	stop()
	count.SetValue(2)
	e.loop.Drain()
	assert.Equal(t, 2, runs)
}

// should defer the first run of a post watch effect
func TestEffectPost(t *testing.T) {
	e := newEnv(t)
	count := reactivity.Ref(e.rs, 0)
	runs := 0
	_, err := watch.Effect(e.rs, e.s, func(watch.OnCleanup) error {
		runs++
		count.Value()
		return nil
	}, watch.Flush(watch.FlushPost))
	require.NoError(t, err)
	assert.Equal(t, 0, runs)
	e.loop.Drain()
	assert.Equal(t, 1, runs)

	count.SetValue(1)
	e.loop.Drain()
	assert.Equal(t, 2, runs)
}

// should read every reachable container and ref
func TestTraverse(t *testing.T) {
	rs := reactivity.CreateReactiveSystem()
	inner := reactivity.Ref(rs, 1)
	obj := reactivity.Reactive(rs, reactivity.ObjectOf(
		"ref", inner,
		"map", reactivity.MapOf("k", reactivity.NewArray(1)),
	))
	// cycles terminate
	reactivity.ToRaw(obj).Set("self", reactivity.ToRaw(obj))

	eff, err := reactivity.Effect(rs, func() error {
		watch.Traverse(obj)
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, eff.DepCount(), 4)

	runs := 0
	reactivity.Effect(rs, func() error {
		runs++
		watch.Traverse(reactivity.Ref(rs, obj))
		return nil
	})
	inner.SetValue(2)
	assert.Equal(t, 2, runs)
}
