package reactivity

import "go.uber.org/zap"

// ComputedRef is a lazily evaluated derived value. Its effect never
// re-runs on its own: a trigger only marks it dirty and notifies whatever
// read it, and the getter runs again on the next read.
type ComputedRef[T any] struct {
	refCore
	getter func(oldValue T) T
	setter func(T)
	effect *ReactiveEffect
	value  T
	dirty  bool
}

// Computed creates a readonly computed ref. The getter receives the
// previous value, the zero value on the first run.
func Computed[T any](rs *ReactiveSystem, getter func(oldValue T) T) *ComputedRef[T] {
	return newComputed(rs, getter, nil)
}

// WritableComputed creates a computed ref whose SetValue calls setter.
func WritableComputed[T any](rs *ReactiveSystem, getter func(oldValue T) T, setter func(T)) *ComputedRef[T] {
	return newComputed(rs, getter, setter)
}

func newComputed[T any](rs *ReactiveSystem, getter func(oldValue T) T, setter func(T)) *ComputedRef[T] {
	c := &ComputedRef[T]{
		refCore: newRefCore(rs, "computed"),
		getter:  getter,
		setter:  setter,
		dirty:   true,
	}
	c.readonly = setter == nil
	c.effect = newReactiveEffect(rs, func() error {
		c.value = c.getter(c.value)
		return nil
	}, c.markDirty, rs.activeScope)
	c.effect.computed = true
	c.effect.feeds = c.name()
	return c
}

func (c *ComputedRef[T]) markDirty() {
	if c.dirty {
		return
	}
	c.dirty = true
	c.triggerValue(c, nil)
}

func (c *ComputedRef[T]) core() *refCore { return &c.refCore }

// Value returns the cached value, running the getter first if a
// dependency changed since the last run.
func (c *ComputedRef[T]) Value() T {
	c.trackValue(c)
	if c.dirty {
		c.dirty = false
		// errors are impossible: the getter has no error return
		_ = c.effect.Run()
	}
	return c.value
}

func (c *ComputedRef[T]) SetValue(v T) {
	if c.setter == nil {
		c.rs.logger.Warn("write operation failed: computed value is readonly", zap.Uint64("computed", c.id))
		return
	}
	c.setter(v)
}

func (c *ComputedRef[T]) AnyValue() any { return c.Value() }

func (c *ComputedRef[T]) SetAnyValue(v any) bool {
	if c.setter == nil {
		return false
	}
	t, ok := assignAs[T](v)
	if !ok {
		return false
	}
	c.setter(t)
	return true
}

// Dirty reports whether the next read will run the getter.
func (c *ComputedRef[T]) Dirty() bool { return c.dirty }

func (c *ComputedRef[T]) Effect() *ReactiveEffect { return c.effect }
