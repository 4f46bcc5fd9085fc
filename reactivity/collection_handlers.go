package reactivity

// collectionOps is the dispatch table of a Map or Set proxy. Every
// operation resolves through the raw container; reads track the raw
// container and mutations trigger on it.
type collectionOps interface {
	get(p *header, key any) (any, bool)
	set(p *header, key, value any) bool
	add(p *header, value any) bool
	has(p *header, key any) bool
	deleteKey(p *header, key any) bool
	clear(p *header) bool
	size(p *header) int
	iterate(p *header, mode iterMode) []entry
}

// collectionTarget is the view a collection proxy has of the handle it
// wraps, which for readonly proxies may itself be a reactive proxy.
type collectionTarget interface {
	Target
	Has(key any) bool
	Len() int
	storage() store
	lookup(key any) (any, bool)
	snapshot() []entry
}

type iterMode uint8

const (
	iterEntries iterMode = iota
	iterKeys
	iterValues
)

type collectionHandler struct {
	readonly bool
	shallow  bool
}

var (
	mutableCollectionHandlers         = &collectionHandler{}
	shallowCollectionHandlers         = &collectionHandler{shallow: true}
	readonlyCollectionHandlers        = &collectionHandler{readonly: true}
	shallowReadonlyCollectionHandlers = &collectionHandler{readonly: true, shallow: true}
)

func collectionHandlersFor(h *header) collectionOps {
	switch {
	case h.readonly && h.shallow:
		return shallowReadonlyCollectionHandlers
	case h.readonly:
		return readonlyCollectionHandlers
	case h.shallow:
		return shallowCollectionHandlers
	default:
		return mutableCollectionHandlers
	}
}

func (c *collectionHandler) wrap(p *header, v any) any {
	switch {
	case c.shallow:
		return v
	case c.readonly:
		return p.rs.ToReadonly(v)
	default:
		return p.rs.ToReactive(v)
	}
}

func rawStore(p *header) store {
	return p.raw().self.(collectionTarget).storage()
}

func (c *collectionHandler) get(p *header, key any) (any, bool) {
	target := p.target.(collectionTarget)
	raw := p.raw()
	rawKey := toRawValue(key)
	keyIsProxy := IsProxy(key)
	if !c.readonly {
		if keyIsProxy {
			p.rs.track(raw, TrackGet, key)
		}
		p.rs.track(raw, TrackGet, rawKey)
	}
	st := raw.self.(collectionTarget).storage()
	switch {
	case st.has(key):
		v, ok := target.lookup(key)
		return c.wrap(p, v), ok
	case keyIsProxy && st.has(rawKey):
		v, ok := target.lookup(rawKey)
		return c.wrap(p, v), ok
	case target.targetHeader() != raw:
		// readonly over reactive: let the inner proxy track the miss
		target.lookup(key)
	}
	return nil, false
}

func (c *collectionHandler) has(p *header, key any) bool {
	target := p.target.(collectionTarget)
	raw := p.raw()
	rawKey := toRawValue(key)
	keyIsProxy := IsProxy(key)
	if !c.readonly {
		if keyIsProxy {
			p.rs.track(raw, TrackHas, key)
		}
		p.rs.track(raw, TrackHas, rawKey)
	}
	if !keyIsProxy {
		return target.Has(key)
	}
	return target.Has(key) || target.Has(rawKey)
}

func (c *collectionHandler) size(p *header) int {
	if !c.readonly {
		p.rs.track(p.raw(), TrackIterate, iterateKey)
	}
	return p.target.(collectionTarget).Len()
}

func (c *collectionHandler) add(p *header, value any) bool {
	if c.readonly {
		p.rs.warnReadonly("add", p, value)
		return false
	}
	value = toRawValue(value)
	st := rawStore(p)
	if !st.has(value) {
		st.set(value, value)
		p.rs.trigger(p.raw(), TriggerAdd, value, value, nil)
	}
	return true
}

func (c *collectionHandler) set(p *header, key, value any) bool {
	if c.readonly {
		p.rs.warnReadonly("set", p, key)
		return false
	}
	value = toRawValue(value)
	st := rawStore(p)
	hadKey := st.has(key)
	if !hadKey {
		key = toRawValue(key)
		hadKey = st.has(key)
	}
	oldValue, _ := st.get(key)
	st.set(key, value)
	if !hadKey {
		p.rs.trigger(p.raw(), TriggerAdd, key, value, nil)
	} else if HasChanged(value, oldValue) {
		p.rs.trigger(p.raw(), TriggerSet, key, value, oldValue)
	}
	return true
}

func (c *collectionHandler) deleteKey(p *header, key any) bool {
	if c.readonly {
		p.rs.warnReadonly("delete", p, key)
		return false
	}
	st := rawStore(p)
	hadKey := st.has(key)
	if !hadKey {
		key = toRawValue(key)
		hadKey = st.has(key)
	}
	oldValue, _ := st.get(key)
	result := st.delete(key)
	if hadKey {
		p.rs.trigger(p.raw(), TriggerDelete, key, nil, oldValue)
	}
	return result
}

func (c *collectionHandler) clear(p *header) bool {
	if c.readonly {
		p.rs.warnReadonly("clear", p, nil)
		return false
	}
	st := rawStore(p)
	hadItems := st.len() != 0
	st.clear()
	if hadItems {
		p.rs.trigger(p.raw(), TriggerClear, nil, nil, nil)
	}
	return true
}

// iterate tracks the iteration and returns a wrapped snapshot. Map key
// iteration has its own dep so value writes do not re-run it.
func (c *collectionHandler) iterate(p *header, mode iterMode) []entry {
	if !c.readonly {
		var key any = iterateKey
		if mode == iterKeys && p.kind == kindMap {
			key = mapKeyIterateKey
		}
		p.rs.track(p.raw(), TrackIterate, key)
	}
	entries := p.target.(collectionTarget).snapshot()
	for i := range entries {
		entries[i].key = c.wrap(p, entries[i].key)
		entries[i].value = c.wrap(p, entries[i].value)
	}
	return entries
}
