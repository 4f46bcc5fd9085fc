package main

import (
	"fmt"

	"github.com/delaneyj/reactivity/reactivity"
	"github.com/delaneyj/reactivity/scheduler"
	"github.com/delaneyj/reactivity/watch"
	"go.uber.org/zap"
)

// todoApp is a small store wired the way a UI component would be: a
// reactive list, a filter ref, computeds derived from both and watchers
// reacting to them.
type todoApp struct {
	todos     *reactivity.Array
	filter    *reactivity.RefImpl[string]
	visible   *reactivity.ComputedRef[[]*reactivity.Object]
	remaining *reactivity.ComputedRef[int]
	stops     []watch.StopHandle
	renders   int
}

func newTodo(title string, done bool) *reactivity.Object {
	return reactivity.ObjectOf("title", title, "done", done)
}

func buildTodoApp(rs *reactivity.ReactiveSystem, s *scheduler.Scheduler, logger *zap.Logger) (*todoApp, error) {
	app := &todoApp{
		todos: reactivity.Reactive(rs, reactivity.NewArray(
			newTodo("write docs", false),
			newTodo("review scheduler", true),
			newTodo("ship", false),
		)),
		filter: reactivity.Ref(rs, "all"),
	}

	app.visible = reactivity.Computed(rs, func([]*reactivity.Object) []*reactivity.Object {
		filter := app.filter.Value()
		var out []*reactivity.Object
		for _, v := range app.todos.All() {
			todo := v.(*reactivity.Object)
			done := todo.Get("done").(bool)
			if filter == "all" || (filter == "done") == done {
				out = append(out, todo)
			}
		}
		return out
	})
	app.remaining = reactivity.Computed(rs, func(int) int {
		n := 0
		for _, v := range app.todos.All() {
			if !v.(*reactivity.Object).Get("done").(bool) {
				n++
			}
		}
		return n
	})

	render, err := watch.Effect(rs, s, func(watch.OnCleanup) error {
		app.renders++
		logger.Debug("render",
			zap.Int("visible", len(app.visible.Value())),
			zap.Int("remaining", app.remaining.Value()),
		)
		return nil
	}, watch.Name("render"))
	if err != nil {
		return nil, err
	}
	app.stops = append(app.stops, render)

	title, err := watch.Watch(rs, s, app.remaining.Value, func(n, old int, _ watch.OnCleanup) error {
		logger.Debug("title", zap.String("title", fmt.Sprintf("%d left", n)), zap.Int("was", old))
		return nil
	}, watch.Name("title"), watch.Flush(watch.FlushPost))
	if err != nil {
		return nil, err
	}
	app.stops = append(app.stops, title)

	persist, err := watch.Watch(rs, s, func() *reactivity.Array { return app.todos }, func(*reactivity.Array, *reactivity.Array, watch.OnCleanup) error {
		logger.Debug("persist", zap.Stringer("todos", app.todos))
		return nil
	}, watch.Name("persist"), watch.Deep())
	if err != nil {
		return nil, err
	}
	app.stops = append(app.stops, persist)
	return app, nil
}

func (app *todoApp) stop() {
	for _, stop := range app.stops {
		stop()
	}
}
