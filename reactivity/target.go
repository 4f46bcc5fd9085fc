package reactivity

import (
	"fmt"
	"sync/atomic"
)

// Target is a container that can be made reactive: *Object, *Array, *Map
// and *Set. A handle is either raw, holding the storage, or a proxy over
// another handle of the same type.
type Target interface {
	targetHeader() *header
	newProxy(h *header) Target
}

type kind uint8

const (
	kindObject kind = iota
	kindArray
	kindMap
	kindSet
)

func (k kind) String() string {
	switch k {
	case kindObject:
		return "object"
	case kindArray:
		return "array"
	case kindMap:
		return "map"
	case kindSet:
		return "set"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var headerIDs atomic.Uint64

type header struct {
	id   uint64
	kind kind
	weak bool
	self Target

	// raw only
	skip   bool
	sealed bool

	// proxy only
	target   Target
	readonly bool
	shallow  bool
	rs       *ReactiveSystem

	cachedBy *ReactiveSystem
	cached   *targetEntry
}

func newHeader(k kind) *header {
	return &header{id: headerIDs.Add(1), kind: k}
}

func (h *header) isProxy() bool { return h.target != nil }

func (h *header) raw() *header {
	for h.target != nil {
		h = h.target.targetHeader()
	}
	return h
}

func headerOf(v any) *header {
	t, ok := v.(Target)
	if !ok {
		return nil
	}
	return t.targetHeader()
}

// IsReactive reports whether v is a reactive proxy, or a readonly proxy
// over one.
func IsReactive(v any) bool {
	h := headerOf(v)
	if h == nil {
		return false
	}
	if h.readonly {
		return IsReactive(h.target)
	}
	return h.isProxy()
}

func IsReadonly(v any) bool {
	h := headerOf(v)
	return h != nil && h.readonly
}

func IsShallow(v any) bool {
	h := headerOf(v)
	return h != nil && h.shallow
}

func IsProxy(v any) bool {
	return IsReactive(v) || IsReadonly(v)
}

// ToRaw returns the raw container under any number of proxies.
func ToRaw[T Target](t T) T {
	h := t.targetHeader()
	if h == nil {
		return t
	}
	return h.raw().self.(T)
}

func toRawValue(v any) any {
	h := headerOf(v)
	if h == nil || !h.isProxy() {
		return v
	}
	return h.raw().self
}

// MarkRaw excludes t from wrapping. Reactive and friends return it as is.
func MarkRaw[T Target](t T) T {
	if h := t.targetHeader(); h != nil {
		h.raw().skip = true
	}
	return t
}

// PreventExtensions stops new keys being added to t and excludes it from
// wrapping.
func PreventExtensions[T Target](t T) T {
	if h := t.targetHeader(); h != nil {
		h.raw().sealed = true
	}
	return t
}

func IsExtensible(t Target) bool {
	h := t.targetHeader()
	return h != nil && !h.raw().sealed
}
