package main

import (
	"fmt"
	"time"

	"github.com/delaneyj/reactivity/reactivity"
	"github.com/delaneyj/reactivity/scheduler"
	"github.com/delaneyj/reactivity/scheduler/microtask"
	"github.com/delaneyj/reactivity/watch"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"
)

func timingRow(name string, iterations int, fn func(i int)) table.Row {
	tach := tachymeter.New(&tachymeter.Config{Size: iterations})
	for i := range iterations {
		start := time.Now()
		fn(i)
		tach.AddTime(time.Since(start))
	}
	m := tach.Calc()
	return table.Row{name, m.Time.Avg, m.Time.Min, m.Time.P75, m.Time.P99, m.Time.Max}
}

// chains builds width chains of height computeds off src, each read by
// its own effect.
func chains(rs *reactivity.ReactiveSystem, src *reactivity.RefImpl[int], width, height int, sink func(int)) []*reactivity.ComputedRef[int] {
	tails := make([]*reactivity.ComputedRef[int], 0, width)
	for range width {
		prev := reactivity.Computed(rs, func(int) int { return src.Value() + 1 })
		for range height - 1 {
			p := prev
			prev = reactivity.Computed(rs, func(int) int { return p.Value() + 1 })
		}
		tails = append(tails, prev)
		if sink != nil {
			last := prev
			reactivity.Effect(rs, func() error {
				sink(last.Value())
				return nil
			})
		}
	}
	return tails
}

func benchmarkPropagate(logger *zap.Logger, sc scenario) []table.Row {
	var rows []table.Row
	for _, w := range sc.Widths {
		for _, h := range sc.Heights {
			rs := reactivity.CreateReactiveSystem(reactivity.WithLogger(logger))
			src := reactivity.Ref(rs, 1)
			sum := 0
			chains(rs, src, w, h, func(v int) { sum += v })
			rows = append(rows, timingRow(fmt.Sprintf("%dx%d", w, h), sc.Iterations, func(i int) {
				src.SetValue(src.Peek() + 1)
			}))

			stats := rs.Stats()
			logger.Debug("propagated",
				zap.Int("width", w),
				zap.Int("height", h),
				zap.Int("sum", sum),
				zap.Uint64("effectRuns", stats.EffectRuns),
				zap.Uint64("triggers", stats.Triggers),
			)
		}
	}
	return rows
}

// benchmarkScheduled routes the chain effects through a pre-flush
// watcher so each write costs a single flush per effect.
func benchmarkScheduled(logger *zap.Logger, sc scenario) []table.Row {
	var rows []table.Row
	for _, w := range sc.Widths {
		for _, h := range sc.Heights {
			rs := reactivity.CreateReactiveSystem(reactivity.WithLogger(logger))
			loop := microtask.New(microtask.WithLogger(logger))
			s := scheduler.New(loop, scheduler.WithLogger(logger))
			src := reactivity.Ref(rs, 1)
			sum := 0
			var stops []watch.StopHandle
			for i, tail := range chains(rs, src, w, h, nil) {
				stop, err := watch.Effect(rs, s, func(watch.OnCleanup) error {
					sum += tail.Value()
					return nil
				}, watch.Name(fmt.Sprintf("chain %d", i)))
				if err != nil {
					logger.Error("watch failed", zap.Error(err))
					continue
				}
				stops = append(stops, stop)
			}

			rows = append(rows, timingRow(fmt.Sprintf("%dx%d", w, h), sc.Iterations, func(i int) {
				// two writes, one flush
				src.SetValue(src.Peek() + 1)
				src.SetValue(src.Peek() + 1)
				loop.Drain()
			}))
			for _, stop := range stops {
				stop()
			}

			stats := s.Stats()
			logger.Debug("scheduled",
				zap.Int("width", w),
				zap.Int("height", h),
				zap.Int("sum", sum),
				zap.Uint64("flushes", stats.Flushes),
				zap.Uint64("jobRuns", stats.JobRuns),
			)
		}
	}
	return rows
}

func benchmarkContainers(logger *zap.Logger, sc scenario) []table.Row {
	rs := reactivity.CreateReactiveSystem(reactivity.WithLogger(logger))

	obj := reactivity.Reactive(rs, reactivity.NewObject())
	for i := range sc.Objects {
		obj.Set(fmt.Sprintf("key%d", i), i)
	}
	keys := obj.OwnKeys()
	reads := 0
	for _, k := range keys {
		reactivity.Effect(rs, func() error {
			obj.Get(k)
			reads++
			return nil
		})
	}

	arr := reactivity.Reactive(rs, reactivity.NewArray())
	length := 0
	reactivity.Effect(rs, func() error {
		length = arr.Len()
		return nil
	})

	m := reactivity.Reactive(rs, reactivity.NewMap())
	total := 0
	reactivity.Effect(rs, func() error {
		total = 0
		m.ForEach(func(value, key any) { total += value.(int) })
		return nil
	})

	rows := []table.Row{
		timingRow(fmt.Sprintf("object set, %d keys", len(keys)), sc.Iterations, func(i int) {
			if len(keys) > 0 {
				obj.Set(keys[i%len(keys)], -i)
			}
		}),
		timingRow(fmt.Sprintf("array push, %d items", sc.ArrayItems), sc.Iterations, func(i int) {
			if arr.Len() >= sc.ArrayItems {
				arr.SetLen(0)
			}
			arr.Push(i)
		}),
		timingRow("map set, iterated", sc.Iterations, func(i int) {
			m.Set(i%64, i)
		}),
	}
	logger.Debug("containers",
		zap.Int("reads", reads),
		zap.Int("length", length),
		zap.Int("total", total),
	)
	return rows
}
