package reactivity

import (
	"errors"
	"fmt"
	"iter"
)

var (
	// ErrWeakCollection is the panic value for size, clear and iteration on
	// a weak Map or Set.
	ErrWeakCollection = errors.New("reactivity: weak collections cannot be sized, cleared or iterated")
	// ErrInvalidWeakKey is the panic value for storing a key that is not a
	// container in a weak Map or Set.
	ErrInvalidWeakKey = errors.New("reactivity: invalid value used as weak collection key")
)

// Map is an insertion-ordered map with comparable keys. NaN is a valid key
// and equals itself.
type Map struct {
	h     *header
	ops   collectionOps
	store store
}

func NewMap() *Map {
	m := &Map{h: newHeader(kindMap), store: newOrdered()}
	m.h.self = m
	return m
}

// MapOf builds a map from alternating keys and values.
func MapOf(kv ...any) *Map {
	if len(kv)%2 != 0 {
		panic(fmt.Sprintf("reactivity: MapOf called with %d arguments, want key value pairs", len(kv)))
	}
	m := NewMap()
	for i := 0; i < len(kv); i += 2 {
		m.store.set(kv[i], kv[i+1])
	}
	return m
}

// NewWeakMap returns a map whose keys must be containers and are held
// weakly.
func NewWeakMap() *Map {
	m := &Map{h: newHeader(kindMap), store: newWeakStore()}
	m.h.weak = true
	m.h.self = m
	return m
}

func (m *Map) targetHeader() *header {
	if m == nil {
		return nil
	}
	return m.h
}

func (m *Map) newProxy(h *header) Target {
	return &Map{h: h, ops: collectionHandlersFor(h)}
}

func (m *Map) storage() store { return m.store }

// Weak reports whether m was created by NewWeakMap.
func (m *Map) Weak() bool { return m.h.weak }

func (m *Map) mustIterate() {
	if m.h.weak {
		panic(ErrWeakCollection)
	}
}

func (m *Map) lookup(key any) (any, bool) {
	if m.ops != nil {
		return m.ops.get(m.h, key)
	}
	return m.store.get(key)
}

// Lookup returns the value stored under key and whether it was present.
func (m *Map) Lookup(key any) (any, bool) {
	return m.lookup(key)
}

func (m *Map) Get(key any) any {
	v, _ := m.lookup(key)
	return v
}

// Set stores value under key. It reports false on a readonly proxy.
func (m *Map) Set(key, value any) bool {
	if m.ops != nil {
		return m.ops.set(m.h, key, value)
	}
	m.store.set(key, value)
	return true
}

func (m *Map) Has(key any) bool {
	if m.ops != nil {
		return m.ops.has(m.h, key)
	}
	return m.store.has(key)
}

func (m *Map) Delete(key any) bool {
	if m.ops != nil {
		return m.ops.deleteKey(m.h, key)
	}
	return m.store.delete(key)
}

func (m *Map) Clear() {
	m.mustIterate()
	if m.ops != nil {
		m.ops.clear(m.h)
		return
	}
	m.store.clear()
}

func (m *Map) Len() int {
	m.mustIterate()
	if m.ops != nil {
		return m.ops.size(m.h)
	}
	return m.store.len()
}

func (m *Map) snapshot() []entry {
	if m.ops != nil {
		return m.ops.iterate(m.h, iterEntries)
	}
	return m.store.entries()
}

func (m *Map) collect(mode iterMode) []entry {
	m.mustIterate()
	if m.ops != nil {
		return m.ops.iterate(m.h, mode)
	}
	return m.store.entries()
}

// ForEach calls fn for every entry in insertion order.
func (m *Map) ForEach(fn func(value, key any)) {
	for _, e := range m.collect(iterEntries) {
		fn(e.value, e.key)
	}
}

// Keys, Values and All read the map when called and yield from that
// snapshot. Through a reactive proxy Keys subscribes only to key changes.
func (m *Map) Keys() iter.Seq[any] {
	return seqKeys(m.collect(iterKeys))
}

func (m *Map) Values() iter.Seq[any] {
	return seqValues(m.collect(iterValues))
}

func (m *Map) All() iter.Seq2[any, any] {
	return seqEntries(m.collect(iterEntries))
}

func (m *Map) String() string {
	if m.ops != nil {
		return fmt.Sprintf("Proxy(map#%d)", m.h.raw().id)
	}
	return fmt.Sprintf("map#%d", m.h.id)
}

// Set is an insertion-ordered set of comparable values.
type Set struct {
	h     *header
	ops   collectionOps
	store store
}

func NewSet(values ...any) *Set {
	s := &Set{h: newHeader(kindSet), store: newOrdered()}
	s.h.self = s
	for _, v := range values {
		s.store.set(v, v)
	}
	return s
}

// NewWeakSet returns a set whose members must be containers and are held
// weakly.
func NewWeakSet() *Set {
	s := &Set{h: newHeader(kindSet), store: newWeakStore()}
	s.h.weak = true
	s.h.self = s
	return s
}

func (s *Set) targetHeader() *header {
	if s == nil {
		return nil
	}
	return s.h
}

func (s *Set) newProxy(h *header) Target {
	return &Set{h: h, ops: collectionHandlersFor(h)}
}

func (s *Set) storage() store { return s.store }

// Weak reports whether s was created by NewWeakSet.
func (s *Set) Weak() bool { return s.h.weak }

func (s *Set) mustIterate() {
	if s.h.weak {
		panic(ErrWeakCollection)
	}
}

func (s *Set) lookup(key any) (any, bool) {
	if s.ops != nil {
		return s.ops.get(s.h, key)
	}
	return s.store.get(key)
}

// Add reports false on a readonly proxy.
func (s *Set) Add(value any) bool {
	if s.ops != nil {
		return s.ops.add(s.h, value)
	}
	s.store.set(value, value)
	return true
}

func (s *Set) Has(value any) bool {
	if s.ops != nil {
		return s.ops.has(s.h, value)
	}
	return s.store.has(value)
}

func (s *Set) Delete(value any) bool {
	if s.ops != nil {
		return s.ops.deleteKey(s.h, value)
	}
	return s.store.delete(value)
}

func (s *Set) Clear() {
	s.mustIterate()
	if s.ops != nil {
		s.ops.clear(s.h)
		return
	}
	s.store.clear()
}

func (s *Set) Len() int {
	s.mustIterate()
	if s.ops != nil {
		return s.ops.size(s.h)
	}
	return s.store.len()
}

func (s *Set) snapshot() []entry {
	if s.ops != nil {
		return s.ops.iterate(s.h, iterEntries)
	}
	return s.store.entries()
}

func (s *Set) collect(mode iterMode) []entry {
	s.mustIterate()
	if s.ops != nil {
		return s.ops.iterate(s.h, mode)
	}
	return s.store.entries()
}

func (s *Set) ForEach(fn func(value any)) {
	for _, e := range s.collect(iterValues) {
		fn(e.value)
	}
}

func (s *Set) Values() iter.Seq[any] {
	return seqValues(s.collect(iterValues))
}

// Keys is Values, as for JavaScript sets.
func (s *Set) Keys() iter.Seq[any] {
	return s.Values()
}

func (s *Set) All() iter.Seq[any] {
	return s.Values()
}

func (s *Set) String() string {
	if s.ops != nil {
		return fmt.Sprintf("Proxy(set#%d)", s.h.raw().id)
	}
	return fmt.Sprintf("set#%d", s.h.id)
}

func seqKeys(entries []entry) iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, e := range entries {
			if !yield(e.key) {
				return
			}
		}
	}
}

func seqValues(entries []entry) iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, e := range entries {
			if !yield(e.value) {
				return
			}
		}
	}
}

func seqEntries(entries []entry) iter.Seq2[any, any] {
	return func(yield func(any, any) bool) {
		for _, e := range entries {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}
