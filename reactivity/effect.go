package reactivity

import (
	"runtime"
	"weak"
)

// ReactiveEffect is a re-runnable computation. Each run records the deps
// it reads; a later trigger on any of them re-runs the effect, or hands it
// to its scheduler when one is set.
type ReactiveEffect struct {
	rs  *ReactiveSystem
	id  uint64
	fn  func() error
	// scheduler replaces the synchronous re-run on trigger.
	scheduler func()

	deps   []*Dep
	parent *ReactiveEffect

	active       bool
	allowRecurse bool
	deferStop    bool
	computed     bool

	// feeds names the dep a computed effect publishes its value through.
	feeds string

	onStop    func()
	onTrack   func(DebuggerEvent)
	onTrigger func(DebuggerEvent)
}

func newReactiveEffect(rs *ReactiveSystem, fn func() error, scheduler func(), scope *EffectScope) *ReactiveEffect {
	e := &ReactiveEffect{
		rs:        rs,
		id:        rs.nextID(),
		fn:        fn,
		scheduler: scheduler,
		active:    true,
	}
	rs.sweep()
	rs.effects[e.id] = weak.Make(e)
	runtime.AddCleanup(e, buryEffect, effectBurial{g: rs.graveyard, id: e.id})
	recordEffectScope(e, scope)
	return e
}

func (e *ReactiveEffect) ID() uint64 { return e.id }

func (e *ReactiveEffect) Active() bool { return e.active }

// IsComputed reports whether the effect backs a computed ref.
func (e *ReactiveEffect) IsComputed() bool { return e.computed }

// DepCount is the number of deps the effect is currently subscribed to.
func (e *ReactiveEffect) DepCount() int { return len(e.deps) }

// Run executes the effect's function and re-collects its deps. A stopped
// effect runs its function without tracking. An effect already on the
// active chain returns immediately instead of recursing.
//
// The tracking state is restored when fn returns an error or panics.
func (e *ReactiveEffect) Run() error {
	if !e.active {
		return e.fn()
	}
	rs := e.rs
	for p := rs.activeEffect; p != nil; p = p.parent {
		if p == e {
			return nil
		}
	}

	lastShouldTrack := rs.shouldTrack
	e.parent = rs.activeEffect
	rs.activeEffect = e
	rs.shouldTrack = true
	rs.effectTrackDepth++
	rs.trackOpBit = opBit(rs.effectTrackDepth)
	useMarkers := rs.effectTrackDepth <= rs.maxMarkerBits
	if useMarkers {
		e.initDepMarkers()
	} else {
		e.cleanup()
	}

	defer func() {
		if useMarkers {
			e.finalizeDepMarkers()
		}
		rs.effectTrackDepth--
		rs.trackOpBit = opBit(rs.effectTrackDepth)
		rs.activeEffect = e.parent
		rs.shouldTrack = lastShouldTrack
		e.parent = nil
		if e.deferStop {
			e.deferStop = false
			e.Stop()
		}
	}()

	rs.stats.effectRuns.Add(1)
	return e.fn()
}

// Stop detaches the effect from every dep and marks it inactive. Called
// from inside the effect's own run, the stop happens once the run returns.
// Stopping twice is a no-op.
func (e *ReactiveEffect) Stop() {
	if e.rs.activeEffect == e {
		e.deferStop = true
		return
	}
	if !e.active {
		return
	}
	e.cleanup()
	if e.onStop != nil {
		e.onStop()
	}
	e.active = false
	delete(e.rs.effects, e.id)
}

func opBit(depth int) uint32 {
	if depth < 0 || depth > 31 {
		return 0
	}
	return 1 << depth
}

func (e *ReactiveEffect) initDepMarkers() {
	for _, dep := range e.deps {
		dep.w |= e.rs.trackOpBit
	}
}

// finalizeDepMarkers drops deps that were tracked before the run but not
// during it, then clears this depth's bits.
func (e *ReactiveEffect) finalizeDepMarkers() {
	bit := e.rs.trackOpBit
	ptr := 0
	for _, dep := range e.deps {
		if dep.wasTracked(bit) && !dep.newTracked(bit) {
			dep.effects.Remove(e)
		} else {
			e.deps[ptr] = dep
			ptr++
		}
		dep.w &^= bit
		dep.n &^= bit
	}
	clear(e.deps[ptr:])
	e.deps = e.deps[:ptr]
}

func (e *ReactiveEffect) cleanup() {
	for _, dep := range e.deps {
		dep.effects.Remove(e)
	}
	clear(e.deps)
	e.deps = e.deps[:0]
}

type effectOptions struct {
	scheduler    func()
	lazy         bool
	allowRecurse bool
	onStop       func()
	scope        *EffectScope
	scopeSet     bool
	onTrack      func(DebuggerEvent)
	onTrigger    func(DebuggerEvent)
}

type EffectOption func(*effectOptions)

// WithScheduler is called on trigger instead of re-running the effect.
func WithScheduler(fn func()) EffectOption {
	return func(o *effectOptions) { o.scheduler = fn }
}

// Lazy skips the initial run.
func Lazy() EffectOption {
	return func(o *effectOptions) { o.lazy = true }
}

// AllowRecurse lets the effect be re-triggered by its own writes.
func AllowRecurse() EffectOption {
	return func(o *effectOptions) { o.allowRecurse = true }
}

func OnStop(fn func()) EffectOption {
	return func(o *effectOptions) { o.onStop = fn }
}

// InScope records the effect in scope instead of the active scope.
func InScope(scope *EffectScope) EffectOption {
	return func(o *effectOptions) {
		o.scope = scope
		o.scopeSet = true
	}
}

func OnTrack(fn func(DebuggerEvent)) EffectOption {
	return func(o *effectOptions) { o.onTrack = fn }
}

func OnTrigger(fn func(DebuggerEvent)) EffectOption {
	return func(o *effectOptions) { o.onTrigger = fn }
}

// Effect registers fn as a tracked computation and runs it once unless
// Lazy is given. The error is the one returned by that first run.
func Effect(rs *ReactiveSystem, fn func() error, opts ...EffectOption) (*ReactiveEffect, error) {
	o := effectOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	scope := rs.activeScope
	if o.scopeSet {
		scope = o.scope
	}
	e := newReactiveEffect(rs, fn, o.scheduler, scope)
	e.allowRecurse = o.allowRecurse
	e.onStop = o.onStop
	e.onTrack = o.onTrack
	e.onTrigger = o.onTrigger
	if o.lazy {
		return e, nil
	}
	return e, e.Run()
}
