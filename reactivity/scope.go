package reactivity

import (
	"errors"
)

var ErrScopeInactive = errors.New("reactivity: cannot run an inactive effect scope")

// EffectScope owns effects and child scopes created while it is active, so
// they can all be stopped together.
type EffectScope struct {
	rs       *ReactiveSystem
	active   bool
	detached bool
	effects  []*ReactiveEffect
	cleanups []func()
	parent   *EffectScope
	scopes   []*EffectScope
	index    int
}

// NewEffectScope creates a scope. Unless detached, it is collected by the
// currently active scope and stopped along with it.
func (rs *ReactiveSystem) NewEffectScope(detached bool) *EffectScope {
	s := &EffectScope{
		rs:       rs,
		active:   true,
		detached: detached,
		parent:   rs.activeScope,
	}
	if !detached && rs.activeScope != nil {
		p := rs.activeScope
		s.index = len(p.scopes)
		p.scopes = append(p.scopes, s)
	}
	return s
}

func (s *EffectScope) Active() bool { return s.active }

// Run makes s the active scope while fn runs.
func (s *EffectScope) Run(fn func() error) error {
	if !s.active {
		s.rs.logger.Warn("cannot run an inactive effect scope")
		return ErrScopeInactive
	}
	prev := s.rs.activeScope
	s.rs.activeScope = s
	defer func() { s.rs.activeScope = prev }()
	return fn()
}

// Stop stops every effect, runs the dispose callbacks and stops child
// scopes.
func (s *EffectScope) Stop() {
	s.stop(false)
}

func (s *EffectScope) stop(fromParent bool) {
	if !s.active {
		return
	}
	for _, e := range s.effects {
		e.Stop()
	}
	for _, fn := range s.cleanups {
		fn()
	}
	for _, child := range s.scopes {
		child.stop(true)
	}
	if !s.detached && s.parent != nil && !fromParent {
		siblings := s.parent.scopes
		last := siblings[len(siblings)-1]
		s.parent.scopes = siblings[:len(siblings)-1]
		if last != s {
			s.parent.scopes[s.index] = last
			last.index = s.index
		}
	}
	s.effects = nil
	s.cleanups = nil
	s.scopes = nil
	s.parent = nil
	s.active = false
}

func recordEffectScope(e *ReactiveEffect, scope *EffectScope) {
	if scope != nil && scope.active {
		scope.effects = append(scope.effects, e)
	}
}

// CurrentScope returns the active scope, or nil.
func (rs *ReactiveSystem) CurrentScope() *EffectScope {
	return rs.activeScope
}

// OnScopeDispose registers fn to run when the active scope stops.
func (rs *ReactiveSystem) OnScopeDispose(fn func()) {
	if rs.activeScope == nil {
		rs.logger.Warn("OnScopeDispose called without an active effect scope")
		return
	}
	rs.activeScope.cleanups = append(rs.activeScope.cleanups, fn)
}
