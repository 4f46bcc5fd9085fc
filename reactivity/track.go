package reactivity

import (
	"cmp"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

func (rs *ReactiveSystem) isTracking() bool {
	return rs.shouldTrack && rs.activeEffect != nil
}

// track subscribes the active effect to (h, key).
func (rs *ReactiveSystem) track(h *header, typ TrackOpType, key any) {
	if !rs.isTracking() {
		return
	}
	e := rs.entry(h, true)
	if e.deps == nil {
		e.deps = map[any]*Dep{}
	}
	ik := indexKey(key)
	dep, ok := e.deps[ik]
	if !ok {
		dep = newDep(depOwner{target: h.id, kind: h.kind, key: key})
		e.deps[ik] = dep
		rs.stats.deps.Add(1)
	}
	rs.trackEffects(dep, h.self, typ, key)
}

func (rs *ReactiveSystem) trackEffects(dep *Dep, target any, typ TrackOpType, key any) {
	eff := rs.activeEffect
	shouldTrack := false
	if rs.effectTrackDepth <= rs.maxMarkerBits {
		if !dep.newTracked(rs.trackOpBit) {
			dep.n |= rs.trackOpBit
			shouldTrack = !dep.wasTracked(rs.trackOpBit)
		}
	} else {
		shouldTrack = !dep.effects.Contains(eff)
	}
	if !shouldTrack {
		return
	}
	dep.effects.Add(eff)
	eff.deps = append(eff.deps, dep)
	if eff.onTrack != nil {
		eff.onTrack(DebuggerEvent{Effect: eff, Target: target, Type: typ, Key: key})
	}
}

// trigger re-runs or schedules every effect affected by a mutation of h.
func (rs *ReactiveSystem) trigger(h *header, typ TriggerOpType, key, newValue, oldValue any) {
	e := rs.entry(h, false)
	if e == nil || len(e.deps) == 0 {
		return
	}
	rs.stats.triggers.Add(1)

	var deps []*Dep
	add := func(k any) {
		if dep, ok := e.deps[indexKey(k)]; ok {
			deps = append(deps, dep)
		}
	}
	isArray := h.kind == kindArray
	isMap := h.kind == kindMap

	switch {
	case typ == TriggerClear:
		for _, dep := range e.deps {
			deps = append(deps, dep)
		}
	case isArray && key == lengthKey:
		newLength, _ := newValue.(int)
		for k, dep := range e.deps {
			if k == lengthKey {
				deps = append(deps, dep)
			} else if i, ok := k.(int); ok && i >= newLength {
				deps = append(deps, dep)
			}
		}
	default:
		if key != nil {
			add(key)
		}
		switch typ {
		case TriggerAdd:
			if !isArray {
				add(iterateKey)
				if isMap {
					add(mapKeyIterateKey)
				}
			} else if isIndex(key) {
				add(lengthKey)
			}
		case TriggerDelete:
			if !isArray {
				add(iterateKey)
				if isMap {
					add(mapKeyIterateKey)
				}
			}
		case TriggerSet:
			if isMap {
				add(iterateKey)
			}
		}
	}
	if len(deps) == 0 {
		return
	}

	ev := &DebuggerEvent{Target: h.self, Type: typ, Key: key, NewValue: newValue, OldValue: oldValue}
	if len(deps) == 1 {
		rs.triggerEffects(deps[0], ev)
		return
	}
	union := mapset.NewThreadUnsafeSet[*ReactiveEffect]()
	for _, dep := range deps {
		union = union.Union(dep.effects)
	}
	rs.runEffects(union.ToSlice(), ev)
}

func (rs *ReactiveSystem) triggerEffects(dep *Dep, ev *DebuggerEvent) {
	rs.runEffects(dep.effects.ToSlice(), ev)
}

// runEffects notifies a snapshot of effects, computed effects first so
// their cached values are marked stale before anything reads them. Within
// each pass effects run in creation order.
func (rs *ReactiveSystem) runEffects(effects []*ReactiveEffect, ev *DebuggerEvent) {
	if len(effects) > 1 {
		slices.SortFunc(effects, func(a, b *ReactiveEffect) int {
			return cmp.Compare(a.id, b.id)
		})
	}
	for _, eff := range effects {
		if eff.computed {
			rs.triggerEffect(eff, ev)
		}
	}
	for _, eff := range effects {
		if !eff.computed {
			rs.triggerEffect(eff, ev)
		}
	}
}

func (rs *ReactiveSystem) triggerEffect(eff *ReactiveEffect, ev *DebuggerEvent) {
	// An effect stopped earlier in the same pass is still in the snapshot.
	if !eff.active {
		return
	}
	if eff == rs.activeEffect && !eff.allowRecurse {
		return
	}
	if eff.onTrigger != nil && ev != nil {
		e := *ev
		e.Effect = eff
		eff.onTrigger(e)
	}
	if eff.scheduler != nil {
		eff.scheduler()
		return
	}
	if err := eff.Run(); err != nil {
		rs.onError(eff, err)
	}
}
