package reactivity

import (
	"math"
	"weak"
)

// store is the raw storage behind a Map or Set.
type store interface {
	get(k any) (any, bool)
	set(k, v any)
	has(k any) bool
	delete(k any) bool
	clear()
	len() int
	entries() []entry
}

type entry struct {
	key   any
	value any
}

type deletedSlot struct{}

// ordered is an insertion-ordered map. Deleted slots are left behind as
// holes and compacted once they outnumber the live ones.
type ordered struct {
	index map[any]int
	slots []entry
	holes int
}

func newOrdered() *ordered {
	return &ordered{index: map[any]int{}}
}

// NaN stand-ins, one per float type so float32 and float64 keys stay
// distinct like every other float value.
type (
	nan64Key struct{}
	nan32Key struct{}
)

// indexKey makes NaN usable as a key. +0 and -0 already collide.
func indexKey(k any) any {
	switch f := k.(type) {
	case float64:
		if math.IsNaN(f) {
			return nan64Key{}
		}
	case float32:
		if math.IsNaN(float64(f)) {
			return nan32Key{}
		}
	}
	return k
}

func (o *ordered) get(k any) (any, bool) {
	i, ok := o.index[indexKey(k)]
	if !ok {
		return nil, false
	}
	return o.slots[i].value, true
}

func (o *ordered) set(k, v any) {
	ik := indexKey(k)
	if i, ok := o.index[ik]; ok {
		o.slots[i].value = v
		return
	}
	o.index[ik] = len(o.slots)
	o.slots = append(o.slots, entry{key: k, value: v})
}

func (o *ordered) has(k any) bool {
	_, ok := o.index[indexKey(k)]
	return ok
}

func (o *ordered) delete(k any) bool {
	ik := indexKey(k)
	i, ok := o.index[ik]
	if !ok {
		return false
	}
	delete(o.index, ik)
	o.slots[i] = entry{key: deletedSlot{}}
	o.holes++
	if o.holes > 16 && o.holes > len(o.index) {
		o.compact()
	}
	return true
}

func (o *ordered) compact() {
	live := make([]entry, 0, len(o.index))
	for _, s := range o.slots {
		if _, dead := s.key.(deletedSlot); dead {
			continue
		}
		o.index[indexKey(s.key)] = len(live)
		live = append(live, s)
	}
	o.slots = live
	o.holes = 0
}

func (o *ordered) clear() {
	clear(o.index)
	clear(o.slots)
	o.slots = o.slots[:0]
	o.holes = 0
}

func (o *ordered) len() int {
	return len(o.index)
}

func (o *ordered) keys() []any {
	out := make([]any, 0, len(o.index))
	for _, s := range o.slots {
		if _, dead := s.key.(deletedSlot); !dead {
			out = append(out, s.key)
		}
	}
	return out
}

func (o *ordered) entries() []entry {
	out := make([]entry, 0, len(o.index))
	for _, s := range o.slots {
		if _, dead := s.key.(deletedSlot); !dead {
			out = append(out, s)
		}
	}
	return out
}

// weakStore backs weak collections. Keys are held through weak pointers to
// container headers; entries whose key has been collected are purged as
// the table grows.
type weakStore struct {
	m         map[weak.Pointer[header]]any
	nextPurge int
}

func newWeakStore() *weakStore {
	return &weakStore{m: map[weak.Pointer[header]]any{}, nextPurge: 16}
}

func weakKey(k any) (weak.Pointer[header], bool) {
	h := headerOf(k)
	if h == nil {
		return weak.Pointer[header]{}, false
	}
	return weak.Make(h), true
}

func (w *weakStore) get(k any) (any, bool) {
	wk, ok := weakKey(k)
	if !ok {
		return nil, false
	}
	v, ok := w.m[wk]
	return v, ok
}

func (w *weakStore) set(k, v any) {
	wk, ok := weakKey(k)
	if !ok {
		panic(ErrInvalidWeakKey)
	}
	w.m[wk] = v
	if len(w.m) >= w.nextPurge {
		for key := range w.m {
			if key.Value() == nil {
				delete(w.m, key)
			}
		}
		w.nextPurge = 2*len(w.m) + 16
	}
}

func (w *weakStore) has(k any) bool {
	_, ok := w.get(k)
	return ok
}

func (w *weakStore) delete(k any) bool {
	wk, ok := weakKey(k)
	if !ok {
		return false
	}
	if _, ok := w.m[wk]; !ok {
		return false
	}
	delete(w.m, wk)
	return true
}

func (w *weakStore) clear() {
	clear(w.m)
}

func (w *weakStore) len() int {
	return len(w.m)
}

func (w *weakStore) entries() []entry {
	out := make([]entry, 0, len(w.m))
	for key, v := range w.m {
		if h := key.Value(); h != nil {
			out = append(out, entry{key: h.self, value: v})
		}
	}
	return out
}
