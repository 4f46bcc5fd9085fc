package reactivity

import (
	"fmt"
	"iter"
)

// lengthKey is the key under which an array's length is read and written.
const lengthKey = "length"

func isIndex(key any) bool {
	i, ok := key.(int)
	return ok && i >= 0
}

// Array is a growable sequence keyed by int index, with a "length" key
// that can be read and written. Writing past the end grows the array with
// nil slots; writing a smaller length truncates it.
type Array struct {
	h     *header
	ops   baseOps
	items []any
}

func NewArray(items ...any) *Array {
	a := &Array{h: newHeader(kindArray), items: items}
	a.h.self = a
	return a
}

func (a *Array) targetHeader() *header {
	if a == nil {
		return nil
	}
	return a.h
}

func (a *Array) newProxy(h *header) Target {
	return &Array{h: h, ops: baseHandlersFor(h)}
}

func (a *Array) rawArray() *Array {
	return a.h.raw().self.(*Array)
}

func (a *Array) Get(key any) any {
	if a.ops != nil {
		return a.ops.get(a.h, key)
	}
	switch k := key.(type) {
	case int:
		if k >= 0 && k < len(a.items) {
			return a.items[k]
		}
	case string:
		if k == lengthKey {
			return len(a.items)
		}
	}
	return nil
}

func (a *Array) Set(key, value any) bool {
	if a.ops != nil {
		return a.ops.set(a.h, key, value)
	}
	switch k := key.(type) {
	case int:
		if k < 0 {
			return false
		}
		if k >= len(a.items) {
			if a.h.sealed {
				return false
			}
			a.grow(k + 1)
		}
		a.items[k] = value
		return true
	case string:
		if k != lengthKey {
			return false
		}
		n, ok := value.(int)
		if !ok || n < 0 {
			return false
		}
		if n < len(a.items) {
			clear(a.items[n:])
			a.items = a.items[:n]
		} else {
			a.grow(n)
		}
		return true
	}
	return false
}

func (a *Array) grow(n int) {
	if n <= len(a.items) {
		return
	}
	if n <= cap(a.items) {
		a.items = a.items[:n]
		return
	}
	items := make([]any, n, max(n, 2*cap(a.items)))
	copy(items, a.items)
	a.items = items
}

func (a *Array) Has(key any) bool {
	if a.ops != nil {
		return a.ops.has(a.h, key)
	}
	switch k := key.(type) {
	case int:
		return k >= 0 && k < len(a.items)
	case string:
		return k == lengthKey
	}
	return false
}

// Delete clears the slot at an index without changing the length.
func (a *Array) Delete(key any) bool {
	if a.ops != nil {
		return a.ops.deleteKey(a.h, key)
	}
	switch k := key.(type) {
	case int:
		if k >= 0 && k < len(a.items) {
			a.items[k] = nil
		}
		return true
	case string:
		return k != lengthKey
	}
	return true
}

// OwnKeys returns the indices of the array.
func (a *Array) OwnKeys() []any {
	if a.ops != nil {
		return a.ops.ownKeys(a.h)
	}
	keys := make([]any, len(a.items))
	for i := range a.items {
		keys[i] = i
	}
	return keys
}

func (a *Array) Len() int {
	n, _ := a.Get(lengthKey).(int)
	return n
}

func (a *Array) At(i int) any {
	return a.Get(i)
}

func (a *Array) SetAt(i int, value any) bool {
	return a.Set(i, value)
}

func (a *Array) SetLen(n int) bool {
	return a.Set(lengthKey, n)
}

// All yields index and value pairs. Through a reactive proxy it tracks the
// length and every index read.
func (a *Array) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for _, k := range a.OwnKeys() {
			i := k.(int)
			if !yield(i, a.Get(i)) {
				return
			}
		}
	}
}

// Slice copies the current elements out, reading each through the handle.
func (a *Array) Slice() []any {
	n := a.Len()
	out := make([]any, n)
	for i := range n {
		out[i] = a.Get(i)
	}
	return out
}

func (a *Array) Includes(v any) bool {
	return a.search(v, sameValueZero, false) >= 0
}

func (a *Array) IndexOf(v any) int {
	return a.search(v, strictEquals, false)
}

func (a *Array) LastIndexOf(v any) int {
	return a.search(v, strictEquals, true)
}

// search on a mutable proxy tracks every index, then looks in the raw
// array, first for v as given and then for its raw form, so a reactive
// element can be found by its raw value and the other way around.
func (a *Array) search(v any, eq func(a, b any) bool, last bool) int {
	if a.ops == nil || a.h.readonly {
		return scan(a.Slice(), v, eq, last)
	}
	raw := a.rawArray()
	rs := a.h.rs
	n := a.Len()
	rh := raw.h
	for i := range n {
		rs.track(rh, TrackGet, i)
	}
	if i := scan(raw.items, v, eq, last); i >= 0 {
		return i
	}
	return scan(raw.items, toRawValue(v), eq, last)
}

func scan(items []any, v any, eq func(a, b any) bool, last bool) int {
	if last {
		for i := len(items) - 1; i >= 0; i-- {
			if eq(items[i], v) {
				return i
			}
		}
		return -1
	}
	for i, item := range items {
		if eq(item, v) {
			return i
		}
	}
	return -1
}

// mutate runs a length-changing operation. On a proxy tracking is paused,
// so the operation's own length reads do not subscribe the running effect
// to the array it is changing.
func (a *Array) mutate(op string, fn func()) bool {
	if a.ops == nil {
		fn()
		return true
	}
	if a.h.readonly {
		a.h.rs.warnReadonly(op, a.h, lengthKey)
		return false
	}
	rs := a.h.rs
	rs.PauseTracking()
	defer rs.ResetTracking()
	fn()
	return true
}

func (a *Array) move(from, to int) {
	if a.Has(from) {
		a.Set(to, a.Get(from))
	} else {
		a.Delete(to)
	}
}

// Push appends items and returns the new length.
func (a *Array) Push(items ...any) int {
	var n int
	if !a.mutate("push", func() {
		n = a.Len()
		for i, item := range items {
			a.Set(n+i, item)
		}
		n += len(items)
		a.Set(lengthKey, n)
	}) {
		return a.Len()
	}
	return n
}

// Pop removes and returns the last element, or nil when empty.
func (a *Array) Pop() any {
	var out any
	a.mutate("pop", func() {
		n := a.Len()
		if n == 0 {
			a.Set(lengthKey, 0)
			return
		}
		out = a.Get(n - 1)
		a.Delete(n - 1)
		a.Set(lengthKey, n-1)
	})
	return out
}

// Shift removes and returns the first element, or nil when empty.
func (a *Array) Shift() any {
	var out any
	a.mutate("shift", func() {
		n := a.Len()
		if n == 0 {
			a.Set(lengthKey, 0)
			return
		}
		out = a.Get(0)
		for k := 1; k < n; k++ {
			a.move(k, k-1)
		}
		a.Delete(n - 1)
		a.Set(lengthKey, n-1)
	})
	return out
}

// Unshift prepends items and returns the new length.
func (a *Array) Unshift(items ...any) int {
	var n int
	if !a.mutate("unshift", func() {
		n = a.Len()
		count := len(items)
		if count > 0 {
			for k := n; k > 0; k-- {
				a.move(k-1, k+count-1)
			}
			for j, item := range items {
				a.Set(j, item)
			}
		}
		n += count
		a.Set(lengthKey, n)
	}) {
		return a.Len()
	}
	return n
}

// Splice removes deleteCount elements from start, inserts items in their
// place and returns the removed elements. A negative start counts from the
// end.
func (a *Array) Splice(start, deleteCount int, items ...any) []any {
	var removed []any
	a.mutate("splice", func() {
		n := a.Len()
		if start < 0 {
			start = max(n+start, 0)
		} else {
			start = min(start, n)
		}
		deleteCount = min(max(deleteCount, 0), n-start)

		removed = make([]any, deleteCount)
		for k := range deleteCount {
			if from := start + k; a.Has(from) {
				removed[k] = a.Get(from)
			}
		}

		count := len(items)
		switch {
		case count < deleteCount:
			for k := start; k < n-deleteCount; k++ {
				a.move(k+deleteCount, k+count)
			}
			for k := n; k > n-deleteCount+count; k-- {
				a.Delete(k - 1)
			}
		case count > deleteCount:
			for k := n - deleteCount; k > start; k-- {
				a.move(k+deleteCount-1, k+count-1)
			}
		}
		for k, item := range items {
			a.Set(start+k, item)
		}
		a.Set(lengthKey, n-deleteCount+count)
	})
	return removed
}

func (a *Array) String() string {
	if a.ops != nil {
		return fmt.Sprintf("Proxy(array#%d)", a.h.raw().id)
	}
	return fmt.Sprintf("array#%d", a.h.id)
}
