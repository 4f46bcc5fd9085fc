package reactivity

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	mapset "github.com/deckarep/golang-set/v2"
)

// Dep is the set of effects subscribed to one (target, key) pair, or to a
// ref. The w and n masks carry one bit per nesting depth of the run in
// progress: w marks deps the running effect had before the run, n marks
// deps it read during the run.
type Dep struct {
	effects mapset.Set[*ReactiveEffect]
	w       uint32
	n       uint32

	owner depOwner
}

// depOwner labels a dep for graph snapshots.
type depOwner struct {
	target uint64
	kind   kind
	key    any
	cell   uint64
	cellOf string
}

func newDep(owner depOwner) *Dep {
	return &Dep{
		effects: mapset.NewThreadUnsafeSet[*ReactiveEffect](),
		owner:   owner,
	}
}

// Len is the number of subscribed effects.
func (d *Dep) Len() int {
	return d.effects.Cardinality()
}

func (d *Dep) wasTracked(bit uint32) bool { return d.w&bit > 0 }
func (d *Dep) newTracked(bit uint32) bool { return d.n&bit > 0 }

func (d *Dep) String() string {
	if d.owner.cellOf != "" {
		return fmt.Sprintf("%s#%d", d.owner.cellOf, d.owner.cell)
	}
	return fmt.Sprintf("%s#%d.%s", d.owner.kind, d.owner.target, keyString(d.owner.key))
}

// sentinel keys never collide with user keys: no container accepts a
// sentinel as a property or map key.
type sentinel uint64

var (
	iterateKey       = sentinel(xxhash.Sum64String("iterate"))
	mapKeyIterateKey = sentinel(xxhash.Sum64String("Map key iterate"))
)

func (s sentinel) String() string {
	switch s {
	case iterateKey:
		return "<iterate>"
	case mapKeyIterateKey:
		return "<map key iterate>"
	default:
		return fmt.Sprintf("<sentinel %x>", uint64(s))
	}
}

func keyString(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprint(k)
	}
}

type TrackOpType uint8

const (
	TrackGet TrackOpType = iota
	TrackHas
	TrackIterate
)

func (t TrackOpType) String() string {
	switch t {
	case TrackGet:
		return "get"
	case TrackHas:
		return "has"
	case TrackIterate:
		return "iterate"
	default:
		return fmt.Sprintf("TrackOpType(%d)", uint8(t))
	}
}

type TriggerOpType uint8

const (
	TriggerSet TriggerOpType = iota
	TriggerAdd
	TriggerDelete
	TriggerClear
)

func (t TriggerOpType) String() string {
	switch t {
	case TriggerSet:
		return "set"
	case TriggerAdd:
		return "add"
	case TriggerDelete:
		return "delete"
	case TriggerClear:
		return "clear"
	default:
		return fmt.Sprintf("TriggerOpType(%d)", uint8(t))
	}
}

// DebuggerEvent is passed to OnTrack and OnTrigger hooks. Type holds a
// TrackOpType for track events and a TriggerOpType for trigger events.
type DebuggerEvent struct {
	Effect   *ReactiveEffect
	Target   any
	Type     fmt.Stringer
	Key      any
	NewValue any
	OldValue any
}
