package reactivity

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// AnyRef is implemented by every ref in this package. Containers unwrap
// refs stored in them through it.
type AnyRef interface {
	core() *refCore
	// AnyValue reads the ref, tracking it like Value does.
	AnyValue() any
	// SetAnyValue writes the ref. It reports false when the ref is
	// readonly or v is not assignable to the ref's type.
	SetAnyValue(v any) bool
}

var cellIDs atomic.Uint64

// refCore is the part of a ref the tracking layer needs: its own dep,
// created on first read inside an effect.
type refCore struct {
	rs       *ReactiveSystem
	id       uint64
	kind     string
	dep      *Dep
	readonly bool
}

func newRefCore(rs *ReactiveSystem, kind string) refCore {
	return refCore{rs: rs, id: cellIDs.Add(1), kind: kind}
}

func (c *refCore) ID() uint64 { return c.id }

func (c *refCore) name() string { return fmt.Sprintf("%s#%d", c.kind, c.id) }

func (c *refCore) trackValue(self any) {
	if c.rs == nil || !c.rs.isTracking() {
		return
	}
	if c.dep == nil {
		c.dep = newDep(depOwner{cell: c.id, cellOf: c.kind})
	}
	c.rs.trackEffects(c.dep, self, TrackGet, "value")
}

func (c *refCore) triggerValue(self, newValue any) {
	if c.dep == nil {
		return
	}
	c.rs.stats.triggers.Add(1)
	c.rs.triggerEffects(c.dep, &DebuggerEvent{Target: self, Type: TriggerSet, Key: "value", NewValue: newValue})
}

// RefImpl is a single reactive cell.
type RefImpl[T any] struct {
	refCore
	rawValue T
	value    T
	shallow  bool
}

// Ref creates a cell holding v. Containers stored in it are made deeply
// reactive when the reactive proxy is assignable to T, which is the case
// for container pointer types and interface types such as any.
func Ref[T any](rs *ReactiveSystem, v T) *RefImpl[T] {
	r := &RefImpl[T]{refCore: newRefCore(rs, "ref")}
	r.rawValue = toRawAs(v)
	r.value = toReactiveAs(rs, v)
	return r
}

// ShallowRef stores its value as given and only tracks replacement of it.
func ShallowRef[T any](rs *ReactiveSystem, v T) *RefImpl[T] {
	r := &RefImpl[T]{refCore: newRefCore(rs, "ref"), rawValue: v, value: v, shallow: true}
	return r
}

func toRawAs[T any](v T) T {
	if raw, ok := toRawValue(any(v)).(T); ok {
		return raw
	}
	return v
}

func toReactiveAs[T any](rs *ReactiveSystem, v T) T {
	if r, ok := rs.ToReactive(any(v)).(T); ok {
		return r
	}
	return v
}

func (r *RefImpl[T]) core() *refCore { return &r.refCore }

func (r *RefImpl[T]) Value() T {
	r.trackValue(r)
	return r.value
}

// Peek reads the value without tracking.
func (r *RefImpl[T]) Peek() T {
	return r.value
}

// SetValue stores v and triggers subscribers if it differs from the
// current raw value.
func (r *RefImpl[T]) SetValue(v T) {
	useDirect := r.shallow || IsShallow(v) || IsReadonly(v)
	if !useDirect {
		v = toRawAs(v)
	}
	if !HasChanged(any(v), any(r.rawValue)) {
		return
	}
	r.rawValue = v
	if useDirect {
		r.value = v
	} else {
		r.value = toReactiveAs(r.rs, v)
	}
	r.triggerValue(r, v)
}

func (r *RefImpl[T]) AnyValue() any { return r.Value() }

func (r *RefImpl[T]) SetAnyValue(v any) bool {
	t, ok := assignAs[T](v)
	if !ok {
		return false
	}
	r.SetValue(t)
	return true
}

// assignAs converts v to T, accepting nil for nilable T.
func assignAs[T any](v any) (T, bool) {
	if t, ok := v.(T); ok {
		return t, true
	}
	var zero T
	if v != nil {
		return zero, false
	}
	switch reflect.TypeFor[T]().Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return zero, true
	}
	return zero, false
}

func IsRef(v any) bool {
	_, ok := v.(AnyRef)
	return ok
}

func isReadonlyRef(v any) bool {
	r, ok := v.(AnyRef)
	return ok && r.core().readonly
}

// Unref returns the value of a ref, or v itself.
func Unref(v any) any {
	if r, ok := v.(AnyRef); ok {
		return r.AnyValue()
	}
	return v
}

// TriggerRef notifies the subscribers of r without changing it. It is how
// a mutation inside a shallow ref's value is announced.
func TriggerRef(r AnyRef) {
	c := r.core()
	c.triggerValue(r, nil)
}

// ObjectRef is a ref view of one key of a container. Reads and writes go
// through the container, so a reactive one keeps tracking.
type ObjectRef struct {
	refCore
	object baseTarget
	key    any
	def    any
}

// ToRef returns a ref bound to key of obj. If the stored value already is
// a ref, that ref is returned. def is returned for a nil value.
func ToRef(obj *Object, key any, def ...any) AnyRef {
	if r, ok := obj.Get(key).(AnyRef); ok {
		return r
	}
	return newObjectRef(obj, key, def...)
}

func newObjectRef(obj baseTarget, key any, def ...any) *ObjectRef {
	r := &ObjectRef{refCore: refCore{id: cellIDs.Add(1), kind: "objectRef"}, object: obj, key: key}
	if len(def) > 0 {
		r.def = def[0]
	}
	return r
}

func (r *ObjectRef) core() *refCore { return &r.refCore }

func (r *ObjectRef) Value() any {
	v := r.object.Get(r.key)
	if v == nil {
		return r.def
	}
	return v
}

func (r *ObjectRef) SetValue(v any) bool {
	return r.object.Set(r.key, v)
}

func (r *ObjectRef) AnyValue() any { return r.Value() }

func (r *ObjectRef) SetAnyValue(v any) bool { return r.SetValue(v) }

// ToRefs returns a plain object with an ObjectRef for every key of obj, so
// the keys can be passed around without losing reactivity.
func ToRefs(obj *Object) *Object {
	out := NewObject()
	for _, k := range obj.OwnKeys() {
		out.props.set(k, newObjectRef(obj, k))
	}
	return out
}

// CustomRefImpl delegates storage to user code that decides when to track
// and trigger.
type CustomRefImpl[T any] struct {
	refCore
	get func() T
	set func(T)
}

// CustomRef calls factory once with the ref's track and trigger functions.
func CustomRef[T any](rs *ReactiveSystem, factory func(track, trigger func()) (get func() T, set func(T))) *CustomRefImpl[T] {
	r := &CustomRefImpl[T]{refCore: newRefCore(rs, "customRef")}
	r.get, r.set = factory(
		func() { r.trackValue(r) },
		func() { r.triggerValue(r, nil) },
	)
	return r
}

func (r *CustomRefImpl[T]) core() *refCore { return &r.refCore }

func (r *CustomRefImpl[T]) Value() T { return r.get() }

func (r *CustomRefImpl[T]) SetValue(v T) { r.set(v) }

func (r *CustomRefImpl[T]) AnyValue() any { return r.get() }

func (r *CustomRefImpl[T]) SetAnyValue(v any) bool {
	t, ok := assignAs[T](v)
	if !ok {
		return false
	}
	r.set(t)
	return true
}
