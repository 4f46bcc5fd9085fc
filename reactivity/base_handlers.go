package reactivity

// baseOps is the dispatch table of an Object or Array proxy, chosen once
// when the proxy is created.
type baseOps interface {
	get(p *header, key any) any
	set(p *header, key, value any) bool
	has(p *header, key any) bool
	deleteKey(p *header, key any) bool
	ownKeys(p *header) []any
}

// baseTarget is what a proxy reads and writes through. For mutable
// proxies it is always the raw container.
type baseTarget interface {
	Target
	Get(key any) any
	Set(key, value any) bool
	Has(key any) bool
	Delete(key any) bool
	OwnKeys() []any
}

type baseHandler struct {
	readonly bool
	shallow  bool
}

var (
	mutableHandlers         = &baseHandler{}
	shallowReactiveHandlers = &baseHandler{shallow: true}
	readonlyHandlers        = &baseHandler{readonly: true}
	shallowReadonlyHandlers = &baseHandler{readonly: true, shallow: true}
)

func baseHandlersFor(h *header) baseOps {
	switch {
	case h.readonly && h.shallow:
		return shallowReadonlyHandlers
	case h.readonly:
		return readonlyHandlers
	case h.shallow:
		return shallowReactiveHandlers
	default:
		return mutableHandlers
	}
}

func (b *baseHandler) get(p *header, key any) any {
	res := p.target.(baseTarget).Get(key)
	if isBuiltinSymbol(key) {
		return res
	}
	if !b.readonly {
		p.rs.track(p.raw(), TrackGet, key)
	}
	if b.shallow {
		return res
	}
	if r, ok := res.(AnyRef); ok {
		// arrays of refs are not unwrapped by index
		if p.kind == kindArray && isIndex(key) {
			return res
		}
		return r.AnyValue()
	}
	if t, ok := res.(Target); ok && t.targetHeader() != nil {
		if b.readonly {
			return p.rs.readonly(t)
		}
		return p.rs.reactive(t)
	}
	return res
}

func (b *baseHandler) set(p *header, key, value any) bool {
	if b.readonly {
		p.rs.warnReadonly("set", p, key)
		return false
	}
	target := p.target.(baseTarget)
	oldValue := target.Get(key)
	if isReadonlyRef(oldValue) && !IsRef(value) {
		return false
	}
	if !b.shallow {
		if !IsShallow(value) && !IsReadonly(value) {
			value = toRawValue(value)
			oldValue = toRawValue(oldValue)
		}
		if p.kind != kindArray {
			if r, ok := oldValue.(AnyRef); ok && !IsRef(value) {
				return r.SetAnyValue(value)
			}
		}
	}

	hadKey := target.Has(key)
	if !target.Set(key, value) {
		return false
	}
	raw := p.raw()
	if !hadKey {
		p.rs.trigger(raw, TriggerAdd, key, value, nil)
	} else if HasChanged(value, oldValue) {
		p.rs.trigger(raw, TriggerSet, key, value, oldValue)
	}
	return true
}

func (b *baseHandler) deleteKey(p *header, key any) bool {
	if b.readonly {
		p.rs.warnReadonly("delete", p, key)
		return false
	}
	target := p.target.(baseTarget)
	hadKey := target.Has(key)
	oldValue := target.Get(key)
	result := target.Delete(key)
	if result && hadKey {
		p.rs.trigger(p.raw(), TriggerDelete, key, nil, oldValue)
	}
	return result
}

func (b *baseHandler) has(p *header, key any) bool {
	result := p.target.(baseTarget).Has(key)
	if !b.readonly && !isBuiltinSymbol(key) {
		p.rs.track(p.raw(), TrackHas, key)
	}
	return result
}

func (b *baseHandler) ownKeys(p *header) []any {
	if !b.readonly {
		var key any = iterateKey
		if p.kind == kindArray {
			key = lengthKey
		}
		p.rs.track(p.raw(), TrackIterate, key)
	}
	return p.target.(baseTarget).OwnKeys()
}
