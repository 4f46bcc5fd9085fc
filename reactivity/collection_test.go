package reactivity_test

import (
	"math"
	"testing"

	"github.com/delaneyj/reactivity/reactivity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// should observe map get, set and delete
func TestMapGetSetDelete(t *testing.T) {
	rs := newSystem(t)
	m := reactivity.Reactive(rs, reactivity.NewMap())
	var dummy any
	runs := 0
	reactivity.Effect(rs, func() error {
		runs++
		dummy = m.Get("key")
		return nil
	})
	assert.Nil(t, dummy)

	m.Set("key", "value")
	assert.Equal(t, "value", dummy)
	m.Set("key", "value")
	assert.Equal(t, 2, runs)

	m.Set("other", 1)
	assert.Equal(t, 2, runs)

	m.Delete("key")
	assert.Nil(t, dummy)
	assert.Equal(t, 3, runs)
}

// should observe size and iteration through adds and deletes
func TestMapSizeAndIteration(t *testing.T) {
	rs := newSystem(t)
	m := reactivity.Reactive(rs, reactivity.MapOf("a", 1))
	var size, sum int
	reactivity.Effect(rs, func() error {
		size = m.Len()
		return nil
	})
	reactivity.Effect(rs, func() error {
		sum = 0
		m.ForEach(func(value, key any) {
			sum += value.(int)
		})
		return nil
	})
	assert.Equal(t, 1, size)
	assert.Equal(t, 1, sum)

	m.Set("b", 2)
	assert.Equal(t, 2, size)
	assert.Equal(t, 3, sum)

	// a value change re-runs value iteration
	m.Set("a", 10)
	assert.Equal(t, 12, sum)

	m.Delete("b")
	assert.Equal(t, 1, size)
	assert.Equal(t, 10, sum)
}

// should not re-run key iteration when only a value changes
func TestMapKeysIgnoresValueChanges(t *testing.T) {
	rs := newSystem(t)
	m := reactivity.Reactive(rs, reactivity.MapOf("a", 1))
	keyRuns, valueRuns := 0, 0
	var keys []any
	reactivity.Effect(rs, func() error {
		keyRuns++
		keys = keys[:0]
		for k := range m.Keys() {
			keys = append(keys, k)
		}
		return nil
	})
	reactivity.Effect(rs, func() error {
		valueRuns++
		for range m.Values() {
		}
		return nil
	})

	m.Set("a", 2)
	assert.Equal(t, 1, keyRuns)
	assert.Equal(t, 2, valueRuns)

	m.Set("b", 3)
	assert.Equal(t, 2, keyRuns)
	assert.Equal(t, 3, valueRuns)
	assert.Equal(t, []any{"a", "b"}, keys)
}

// should trigger every dependent on clear
func TestMapClear(t *testing.T) {
	rs := newSystem(t)
	m := reactivity.Reactive(rs, reactivity.MapOf("a", 1, "b", 2))
	var a any
	var size int
	reactivity.Effect(rs, func() error {
		a = m.Get("a")
		return nil
	})
	reactivity.Effect(rs, func() error {
		size = m.Len()
		return nil
	})
	m.Clear()
	assert.Nil(t, a)
	assert.Equal(t, 0, size)
}

// should wrap values and keys read out of a reactive map
func TestMapWrapsValues(t *testing.T) {
	rs := newSystem(t)
	key := reactivity.NewObject()
	value := reactivity.ObjectOf("n", 1)
	raw := reactivity.MapOf(key, value)
	m := reactivity.Reactive(rs, raw)

	got := m.Get(key)
	assert.True(t, reactivity.IsReactive(got))
	// a proxy key resolves to the raw key
	assert.Same(t, got, m.Get(reactivity.Reactive(rs, key)))
	assert.True(t, m.Has(reactivity.Reactive(rs, key)))

	for k, v := range m.All() {
		assert.True(t, reactivity.IsReactive(k))
		assert.True(t, reactivity.IsReactive(v))
	}

	// storing a proxy stores the raw value
	m.Set("other", reactivity.Reactive(rs, reactivity.NewObject()))
	assert.False(t, reactivity.IsProxy(raw.Get("other")))
}

// should treat NaN as a single key
func TestMapNaNKey(t *testing.T) {
	m := reactivity.NewMap()
	m.Set(math.NaN(), 1)
	m.Set(math.NaN(), 2)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, m.Get(math.NaN()))
	v, ok := m.Lookup(math.NaN())
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

// should re-run effects that read a NaN key of a reactive map
func TestReactiveMapNaNKey(t *testing.T) {
	rs := newSystem(t)
	m := reactivity.Reactive(rs, reactivity.NewMap())
	var got any
	runs := 0
	reactivity.Effect(rs, func() error {
		runs++
		got = m.Get(math.NaN())
		return nil
	})

	m.Set(math.NaN(), 1)
	m.Set(math.NaN(), 2)
	assert.Equal(t, 3, runs)
	assert.Equal(t, 2, got)
	// one dep for the NaN key, not one per read
	assert.EqualValues(t, 1, rs.Stats().Deps)
}

// should keep float32 and float64 NaN keys apart
func TestMapNaNKeyTypes(t *testing.T) {
	m := reactivity.NewMap()
	m.Set(math.NaN(), "f64")
	m.Set(float32(math.NaN()), "f32")
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, "f64", m.Get(math.NaN()))
	assert.Equal(t, "f32", m.Get(float32(math.NaN())))
}

// should keep insertion order across deletes
func TestMapOrder(t *testing.T) {
	m := reactivity.NewMap()
	for i := range 40 {
		m.Set(i, i)
	}
	for i := 0; i < 40; i += 2 {
		m.Delete(i)
	}
	m.Set(0, 0)
	var keys []any
	for k := range m.Keys() {
		keys = append(keys, k)
	}
	require.Len(t, keys, 21)
	assert.Equal(t, 1, keys[0])
	assert.Equal(t, 39, keys[19])
	assert.Equal(t, 0, keys[20])
}

// should reject writes through a readonly map
func TestReadonlyMap(t *testing.T) {
	rs := reactivity.CreateReactiveSystem()
	raw := reactivity.MapOf("a", reactivity.NewObject())
	ro := reactivity.Readonly(rs, raw)
	assert.False(t, ro.Set("a", 1))
	assert.False(t, ro.Delete("a"))
	ro.Clear()
	assert.Equal(t, 1, raw.Len())
	assert.True(t, reactivity.IsReadonly(ro.Get("a")))
}

// should observe set add, has and delete
func TestSetAddHasDelete(t *testing.T) {
	rs := newSystem(t)
	s := reactivity.Reactive(rs, reactivity.NewSet())
	has := false
	var size int
	reactivity.Effect(rs, func() error {
		has = s.Has("x")
		return nil
	})
	reactivity.Effect(rs, func() error {
		size = s.Len()
		return nil
	})

	s.Add("x")
	assert.True(t, has)
	assert.Equal(t, 1, size)

	s.Add("x")
	assert.Equal(t, 1, size)

	s.Delete("x")
	assert.False(t, has)
	assert.Equal(t, 0, size)
}

// should wrap set members on iteration
func TestSetIteration(t *testing.T) {
	rs := newSystem(t)
	member := reactivity.NewObject()
	s := reactivity.Reactive(rs, reactivity.NewSet(member, 1))
	var seen []any
	reactivity.Effect(rs, func() error {
		seen = seen[:0]
		s.ForEach(func(v any) { seen = append(seen, v) })
		return nil
	})
	require.Len(t, seen, 2)
	assert.True(t, reactivity.IsReactive(seen[0]))
	assert.True(t, s.Has(member))
	assert.True(t, s.Has(seen[0]))

	s.Add(2)
	assert.Len(t, seen, 3)
	s.Clear()
	assert.Empty(t, seen)
}

// should hold container keys in weak collections and refuse iteration
func TestWeakCollections(t *testing.T) {
	rs := newSystem(t)
	key := reactivity.NewObject()
	wm := reactivity.Reactive(rs, reactivity.NewWeakMap())
	var v any
	reactivity.Effect(rs, func() error {
		v = wm.Get(key)
		return nil
	})
	wm.Set(key, 1)
	assert.Equal(t, 1, v)
	assert.False(t, wm.Has(reactivity.NewObject()))
	assert.False(t, wm.Has("not a container"))

	assert.PanicsWithValue(t, reactivity.ErrWeakCollection, func() { wm.Len() })
	assert.PanicsWithValue(t, reactivity.ErrWeakCollection, func() { wm.Clear() })
	assert.PanicsWithValue(t, reactivity.ErrInvalidWeakKey, func() { wm.Set("str", 1) })

	ws := reactivity.NewWeakSet()
	ws.Add(key)
	assert.True(t, ws.Has(key))
	assert.PanicsWithValue(t, reactivity.ErrWeakCollection, func() { ws.ForEach(func(any) {}) })
	assert.True(t, ws.Delete(key))
	assert.False(t, ws.Has(key))
}
