package reactivity

import (
	"weak"

	"go.uber.org/zap"
)

type variant uint8

const (
	variantReactive variant = iota
	variantShallowReactive
	variantReadonly
	variantShallowReadonly
	variantCount
)

func (v variant) readonly() bool {
	return v == variantReadonly || v == variantShallowReadonly
}

func (v variant) shallow() bool {
	return v == variantShallowReactive || v == variantShallowReadonly
}

// Reactive returns the deep reactive proxy over t. Wrapping is memoized:
// the same target always yields the same proxy, and a proxy passed in is
// returned unchanged. Readonly proxies are returned as is.
func Reactive[T Target](rs *ReactiveSystem, t T) T {
	return rs.reactive(t).(T)
}

// ShallowReactive tracks t's own keys only; nested containers are returned
// unwrapped.
func ShallowReactive[T Target](rs *ReactiveSystem, t T) T {
	return rs.createProxy(t, variantShallowReactive).(T)
}

// Readonly returns a proxy that rejects writes and wraps nested containers
// as readonly. It may wrap a reactive proxy, in which case reads are still
// tracked by the inner proxy.
func Readonly[T Target](rs *ReactiveSystem, t T) T {
	return rs.readonly(t).(T)
}

func ShallowReadonly[T Target](rs *ReactiveSystem, t T) T {
	return rs.createProxy(t, variantShallowReadonly).(T)
}

// ToReactive wraps v when it is a container and returns it unchanged
// otherwise.
func (rs *ReactiveSystem) ToReactive(v any) any {
	if t, ok := v.(Target); ok && t.targetHeader() != nil {
		return rs.reactive(t)
	}
	return v
}

// ToReadonly is ToReactive for the readonly variant.
func (rs *ReactiveSystem) ToReadonly(v any) any {
	if t, ok := v.(Target); ok && t.targetHeader() != nil {
		return rs.readonly(t)
	}
	return v
}

func (rs *ReactiveSystem) reactive(t Target) Target {
	if IsReadonly(t) {
		return t
	}
	return rs.createProxy(t, variantReactive)
}

func (rs *ReactiveSystem) readonly(t Target) Target {
	return rs.createProxy(t, variantReadonly)
}

func (rs *ReactiveSystem) createProxy(t Target, v variant) Target {
	h := t.targetHeader()
	if h == nil {
		return t
	}
	// Only a readonly wrap may go over an existing mutable proxy.
	if h.isProxy() && !(v.readonly() && !h.readonly) {
		return t
	}
	if raw := h.raw(); raw.skip || raw.sealed {
		return t
	}
	e := rs.entry(h, true)
	if existing := e.proxies[v].Value(); existing != nil {
		return existing.self
	}

	ph := newHeader(h.kind)
	ph.weak = h.weak
	ph.target = t
	ph.readonly = v.readonly()
	ph.shallow = v.shallow()
	ph.rs = rs
	p := t.newProxy(ph)
	ph.self = p
	e.proxies[v] = weak.Make(ph)
	if ce := rs.logger.Check(zap.DebugLevel, "created proxy"); ce != nil {
		ce.Write(zap.Stringer("kind", h.kind), zap.Uint64("target", h.id), zap.Uint64("proxy", ph.id), zap.Bool("readonly", ph.readonly), zap.Bool("shallow", ph.shallow))
	}
	return p
}

func (rs *ReactiveSystem) warnReadonly(op string, p *header, key any) {
	rs.logger.Warn(op+" operation on readonly target failed",
		zap.Stringer("kind", p.kind),
		zap.Uint64("target", p.raw().id),
		zap.String("key", keyString(key)),
	)
}
