package main

import (
	"context"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/delaneyj/reactivity/graphviz"
	"github.com/delaneyj/reactivity/reactivity"
	"github.com/delaneyj/reactivity/scheduler"
	"github.com/delaneyj/reactivity/scheduler/microtask"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	verboseKey  = "verbose"
	outKey      = "out"
	nameKey     = "name"
	rankDirKey  = "rankdir"
	inactiveKey = "inactive"
	completeKey = "complete"
)

func main() {
	cmd := &cli.Command{
		Name:  "depgraph",
		Usage: "Render the dependency graph of a sample todo store as Graphviz DOT",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    verboseKey,
				Aliases: []string{"v"},
				Usage:   "Log at debug level",
			},
			&cli.StringFlag{
				Name:    outKey,
				Aliases: []string{"o"},
				Usage:   "Output file, - for stdout",
				Value:   "-",
			},
			&cli.StringFlag{
				Name:  nameKey,
				Usage: "Graph name",
				Value: "todos",
			},
			&cli.StringFlag{
				Name:  rankDirKey,
				Usage: "Graphviz rankdir",
				Value: "LR",
			},
			&cli.BoolFlag{
				Name:  inactiveKey,
				Usage: "Include stopped effects",
			},
			&cli.BoolFlag{
				Name:  completeKey,
				Usage: "Complete the first todo and show only finished ones before rendering",
			},
		},
		Action: render,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func render(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(cmd.Bool(verboseKey))
	if err != nil {
		return err
	}
	defer logger.Sync()

	var w io.Writer = os.Stdout
	if path := cmd.String(outKey); path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	opts := []graphviz.Option{
		graphviz.WithName(cmd.String(nameKey)),
		graphviz.WithRankDir(cmd.String(rankDirKey)),
	}
	if cmd.Bool(inactiveKey) {
		opts = append(opts, graphviz.WithInactive())
	}
	return writeTodoGraph(w, logger, cmd.Bool(completeKey), opts...)
}

// writeTodoGraph builds the sample store, settles its watchers and writes
// the resulting graph to w.
func writeTodoGraph(w io.Writer, logger *zap.Logger, complete bool, opts ...graphviz.Option) error {
	rs := reactivity.CreateReactiveSystem(reactivity.WithLogger(logger))
	loop := microtask.New(microtask.WithLogger(logger))
	s := scheduler.New(loop, scheduler.WithLogger(logger))

	app, err := buildTodoApp(rs, s, logger)
	if err != nil {
		return err
	}
	defer app.stop()
	loop.Drain()

	if complete {
		app.todos.At(0).(*reactivity.Object).Set("done", true)
		app.filter.SetValue("done")
		loop.Drain()
	}

	stats := rs.Stats()
	logger.Info("rendering graph",
		zap.Int64("targets", stats.Targets),
		zap.Int64("deps", stats.Deps),
		zap.Int("renders", app.renders),
	)
	err = graphviz.Write(w, rs.Graph(), opts...)
	runtime.KeepAlive(app)
	return err
}
