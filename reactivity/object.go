package reactivity

import (
	"fmt"
	"iter"
)

// Object is an insertion-ordered property bag. Keys are any comparable
// value, usually strings or *Symbol.
type Object struct {
	h     *header
	ops   baseOps
	props *ordered
}

func NewObject() *Object {
	o := &Object{h: newHeader(kindObject), props: newOrdered()}
	o.h.self = o
	return o
}

// ObjectOf builds an object from alternating keys and values.
func ObjectOf(kv ...any) *Object {
	if len(kv)%2 != 0 {
		panic(fmt.Sprintf("reactivity: ObjectOf called with %d arguments, want key value pairs", len(kv)))
	}
	o := NewObject()
	for i := 0; i < len(kv); i += 2 {
		o.props.set(kv[i], kv[i+1])
	}
	return o
}

func (o *Object) targetHeader() *header {
	if o == nil {
		return nil
	}
	return o.h
}

func (o *Object) newProxy(h *header) Target {
	return &Object{h: h, ops: baseHandlersFor(h)}
}

func (o *Object) Get(key any) any {
	if o.ops != nil {
		return o.ops.get(o.h, key)
	}
	v, _ := o.props.get(key)
	return v
}

// Set reports false when the write was rejected: the object is readonly,
// or non-extensible and key is new.
func (o *Object) Set(key, value any) bool {
	if o.ops != nil {
		return o.ops.set(o.h, key, value)
	}
	if o.h.sealed && !o.props.has(key) {
		return false
	}
	o.props.set(key, value)
	return true
}

func (o *Object) Has(key any) bool {
	if o.ops != nil {
		return o.ops.has(o.h, key)
	}
	return o.props.has(key)
}

func (o *Object) Delete(key any) bool {
	if o.ops != nil {
		return o.ops.deleteKey(o.h, key)
	}
	o.props.delete(key)
	return true
}

func (o *Object) OwnKeys() []any {
	if o.ops != nil {
		return o.ops.ownKeys(o.h)
	}
	return o.props.keys()
}

func (o *Object) Len() int {
	return len(o.OwnKeys())
}

// All yields the object's entries in insertion order. The key list is
// read when iteration starts.
func (o *Object) All() iter.Seq2[any, any] {
	return func(yield func(any, any) bool) {
		for _, k := range o.OwnKeys() {
			if !yield(k, o.Get(k)) {
				return
			}
		}
	}
}

func (o *Object) String() string {
	if o.ops != nil {
		return fmt.Sprintf("Proxy(object#%d)", o.h.raw().id)
	}
	return fmt.Sprintf("object#%d", o.h.id)
}
