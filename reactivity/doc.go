// Package reactivity tracks which computations read which pieces of state
// and re-runs them when that state changes.
//
// All state lives in a ReactiveSystem. Containers (Object, Array, Map and
// Set) are plain storage until wrapped with Reactive, ShallowReactive,
// Readonly or ShallowReadonly, which return a proxy handle of the same type.
// Reads through a proxy inside a running ReactiveEffect subscribe that
// effect to the key read; writes through it re-run or schedule every
// subscribed effect.
//
//	rs := reactivity.CreateReactiveSystem()
//	state := reactivity.Reactive(rs, reactivity.ObjectOf("count", 0))
//	double := reactivity.Computed(rs, func(int) int {
//		return state.Get("count").(int) * 2
//	})
//	reactivity.Effect(rs, func() error {
//		fmt.Println(double.Value())
//		return nil
//	})
//	state.Set("count", 1) // prints 2
//
// A system is not safe for concurrent use.
package reactivity
