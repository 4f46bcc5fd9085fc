package reactivity

import (
	"cmp"
	"slices"
)

// Graph is a snapshot of who depends on what in a system.
type Graph struct {
	Targets []GraphTarget
	Effects []GraphEffect
}

type GraphTarget struct {
	ID   uint64
	Kind string
	Keys []GraphKey
}

type GraphKey struct {
	Key     string
	Effects []uint64
}

type GraphEffect struct {
	ID       uint64
	Computed bool
	Active   bool
	// Deps names every dep the effect is subscribed to, for example
	// "object#3.count" or "ref#7".
	Deps []string
	// Feeds is the dep a computed effect publishes its value through.
	Feeds string
}

// Graph walks the dependency table and the live effects. Targets and keys
// without subscribers are left out. Output is sorted by id and key.
func (rs *ReactiveSystem) Graph() Graph {
	rs.sweep()
	var g Graph
	for _, e := range rs.entries {
		gt := GraphTarget{ID: e.id, Kind: e.kind.String()}
		for _, dep := range e.deps {
			if dep.Len() == 0 {
				continue
			}
			gt.Keys = append(gt.Keys, GraphKey{Key: keyString(dep.owner.key), Effects: effectIDs(dep)})
		}
		if len(gt.Keys) == 0 {
			continue
		}
		slices.SortFunc(gt.Keys, func(a, b GraphKey) int { return cmp.Compare(a.Key, b.Key) })
		g.Targets = append(g.Targets, gt)
	}
	slices.SortFunc(g.Targets, func(a, b GraphTarget) int { return cmp.Compare(a.ID, b.ID) })

	for _, wp := range rs.effects {
		eff := wp.Value()
		if eff == nil {
			continue
		}
		ge := GraphEffect{ID: eff.id, Computed: eff.computed, Active: eff.active, Feeds: eff.feeds}
		for _, dep := range eff.deps {
			ge.Deps = append(ge.Deps, dep.String())
		}
		slices.Sort(ge.Deps)
		g.Effects = append(g.Effects, ge)
	}
	slices.SortFunc(g.Effects, func(a, b GraphEffect) int { return cmp.Compare(a.ID, b.ID) })
	return g
}

func effectIDs(dep *Dep) []uint64 {
	effects := dep.effects.ToSlice()
	ids := make([]uint64, len(effects))
	for i, eff := range effects {
		ids[i] = eff.id
	}
	slices.Sort(ids)
	return ids
}
