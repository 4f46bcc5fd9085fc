package reactivity

import (
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxMarkerBits is the deepest effect nesting that still uses the
// generation bitmask to prune dependencies. Deeper runs fall back to
// clearing every dependency before re-tracking.
const DefaultMaxMarkerBits = 30

type OnErrorFunc func(from *ReactiveEffect, err error)

// ReactiveSystem owns all mutable tracking state: the active effect, the
// tracking flag stack, the marker depth, the active scope and the
// dependency and proxy tables. A system must only be used from a single
// goroutine.
type ReactiveSystem struct {
	id      string
	logger  *zap.Logger
	onError OnErrorFunc

	activeEffect     *ReactiveEffect
	shouldTrack      bool
	trackStack       []bool
	effectTrackDepth int
	trackOpBit       uint32
	maxMarkerBits    int

	activeScope *EffectScope

	entries   map[weak.Pointer[header]]*targetEntry
	graveyard *graveyard
	effects   map[uint64]weak.Pointer[ReactiveEffect]

	nextEffectID uint64
	stats        stats
}

// EffectCount is the number of effects the system still holds. Stopped
// and collected effects are not counted.
func (rs *ReactiveSystem) EffectCount() int {
	rs.sweep()
	return len(rs.effects)
}

type Option func(*ReactiveSystem)

// WithLogger sets the logger used for warnings and effect errors.
func WithLogger(logger *zap.Logger) Option {
	return func(rs *ReactiveSystem) {
		if logger != nil {
			rs.logger = logger
		}
	}
}

// WithOnError receives errors returned by effects re-run synchronously from
// a trigger, where there is no caller to hand the error back to.
func WithOnError(fn OnErrorFunc) Option {
	return func(rs *ReactiveSystem) {
		rs.onError = fn
	}
}

// WithMaxMarkerBits bounds the bitmask pruning depth. Zero disables the
// bitmask entirely and every run clears and re-tracks its dependencies.
func WithMaxMarkerBits(n int) Option {
	return func(rs *ReactiveSystem) {
		switch {
		case n < 0:
			n = 0
		case n > DefaultMaxMarkerBits:
			n = DefaultMaxMarkerBits
		}
		rs.maxMarkerBits = n
	}
}

func CreateReactiveSystem(opts ...Option) *ReactiveSystem {
	rs := &ReactiveSystem{
		id:            uuid.NewString(),
		logger:        zap.NewNop(),
		shouldTrack:   true,
		trackOpBit:    1,
		maxMarkerBits: DefaultMaxMarkerBits,
		entries:       map[weak.Pointer[header]]*targetEntry{},
		graveyard:     &graveyard{},
		effects:       map[uint64]weak.Pointer[ReactiveEffect]{},
	}
	for _, opt := range opts {
		opt(rs)
	}
	rs.logger = rs.logger.With(zap.String("system", rs.id))
	if rs.onError == nil {
		rs.onError = func(from *ReactiveEffect, err error) {
			rs.logger.Error("effect failed", zap.Uint64("effect", from.id), zap.Error(err))
		}
	}
	return rs
}

// ID identifies the system in log output.
func (rs *ReactiveSystem) ID() string {
	return rs.id
}

// Logger returns the system logger, already tagged with the system id.
func (rs *ReactiveSystem) Logger() *zap.Logger {
	return rs.logger
}

// ActiveEffect returns the effect currently collecting dependencies, if any.
func (rs *ReactiveSystem) ActiveEffect() *ReactiveEffect {
	return rs.activeEffect
}

func (rs *ReactiveSystem) PauseTracking() {
	rs.trackStack = append(rs.trackStack, rs.shouldTrack)
	rs.shouldTrack = false
}

func (rs *ReactiveSystem) EnableTracking() {
	rs.trackStack = append(rs.trackStack, rs.shouldTrack)
	rs.shouldTrack = true
}

func (rs *ReactiveSystem) ResetTracking() {
	last := len(rs.trackStack) - 1
	if last < 0 {
		rs.shouldTrack = true
		return
	}
	rs.shouldTrack = rs.trackStack[last]
	rs.trackStack = rs.trackStack[:last]
}

// Untracked runs fn with dependency collection paused.
func (rs *ReactiveSystem) Untracked(fn func()) {
	rs.PauseTracking()
	defer rs.ResetTracking()
	fn()
}

// targetEntry is everything the system knows about one target: the deps of
// each of its keys and the proxies created over it, one slot per variant.
type targetEntry struct {
	id      uint64
	kind    kind
	deps    map[any]*Dep
	proxies [variantCount]weak.Pointer[header]
}

// entry returns the table entry for h, creating it when create is set. The
// table holds h weakly; once the target is collected its entry is queued
// for removal and swept on the next access from the owning goroutine.
func (rs *ReactiveSystem) entry(h *header, create bool) *targetEntry {
	if h.cachedBy == rs {
		return h.cached
	}
	rs.sweep()
	key := weak.Make(h)
	e, ok := rs.entries[key]
	if !ok {
		if !create {
			return nil
		}
		e = &targetEntry{id: h.id, kind: h.kind}
		rs.entries[key] = e
		rs.stats.targets.Add(1)
		runtime.AddCleanup(h, bury, burial{g: rs.graveyard, key: key})
	}
	h.cachedBy, h.cached = rs, e
	return e
}

// graveyard collects the keys of targets and the ids of effects the
// garbage collector has freed.
// Cleanups run on a runtime goroutine, so it is the only part of the
// system shared across goroutines. It must not reference the system or any
// target, otherwise those would stay reachable from the cleanup.
type graveyard struct {
	mu      sync.Mutex
	keys    []weak.Pointer[header]
	effects []uint64
	pending atomic.Bool
}

type burial struct {
	g   *graveyard
	key weak.Pointer[header]
}

func bury(b burial) {
	b.g.mu.Lock()
	b.g.keys = append(b.g.keys, b.key)
	b.g.mu.Unlock()
	b.g.pending.Store(true)
}

type effectBurial struct {
	g  *graveyard
	id uint64
}

func buryEffect(b effectBurial) {
	b.g.mu.Lock()
	b.g.effects = append(b.g.effects, b.id)
	b.g.mu.Unlock()
	b.g.pending.Store(true)
}

func (rs *ReactiveSystem) sweep() {
	g := rs.graveyard
	if !g.pending.Load() {
		return
	}
	g.mu.Lock()
	keys, effects := g.keys, g.effects
	g.keys, g.effects = nil, nil
	g.pending.Store(false)
	g.mu.Unlock()

	for _, id := range effects {
		if wp, ok := rs.effects[id]; ok && wp.Value() == nil {
			delete(rs.effects, id)
		}
	}

	for _, key := range keys {
		e, ok := rs.entries[key]
		if !ok {
			continue
		}
		delete(rs.entries, key)
		rs.stats.targets.Add(-1)
		rs.stats.deps.Add(-int64(len(e.deps)))
	}
	rs.logger.Debug("swept collected targets",
		zap.Int("targets", len(keys)),
		zap.Int("effects", len(effects)),
	)
}

func (rs *ReactiveSystem) nextID() uint64 {
	rs.nextEffectID++
	return rs.nextEffectID
}

type stats struct {
	targets    atomic.Int64
	deps       atomic.Int64
	effectRuns atomic.Uint64
	triggers   atomic.Uint64
}

// Stats is a point in time view of a system's counters. It is safe to call
// from any goroutine.
type Stats struct {
	Targets    int64
	Deps       int64
	EffectRuns uint64
	Triggers   uint64
}

func (rs *ReactiveSystem) Stats() Stats {
	return Stats{
		Targets:    rs.stats.targets.Load(),
		Deps:       rs.stats.deps.Load(),
		EffectRuns: rs.stats.effectRuns.Load(),
		Triggers:   rs.stats.triggers.Load(),
	}
}
