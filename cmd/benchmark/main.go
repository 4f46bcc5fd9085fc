package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	verboseKey    = "verbose"
	configKey     = "config"
	iterationsKey = "iterations"
	widthsKey     = "widths"
	heightsKey    = "heights"
	pgoKey        = "pgo"
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure propagation through computed chains, reactive objects and arrays",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    verboseKey,
				Aliases: []string{"v"},
				Usage:   "Log at debug level",
			},
			&cli.StringFlag{
				Name:  configKey,
				Usage: "YAML scenario file, overrides the sizing flags",
			},
			&cli.IntFlag{
				Name:  iterationsKey,
				Usage: "Writes timed per benchmark",
				Value: 100,
			},
			&cli.IntSliceFlag{
				Name:  widthsKey,
				Usage: "Number of independent computed chains",
				Value: []int64{1, 10, 100, 1_000},
			},
			&cli.IntSliceFlag{
				Name:  heightsKey,
				Usage: "Length of each computed chain",
				Value: []int64{1, 10, 100, 1_000},
			},
			&cli.StringFlag{
				Name:  pgoKey,
				Usage: "Write a CPU profile here, empty to disable",
				Value: "default.pgo",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// scenario sizes every benchmark. It can be loaded from YAML.
type scenario struct {
	Iterations int   `yaml:"iterations"`
	Widths     []int `yaml:"widths"`
	Heights    []int `yaml:"heights"`
	Objects    int   `yaml:"objects"`
	ArrayItems int   `yaml:"array_items"`
}

func scenarioFromFlags(cmd *cli.Command) (scenario, error) {
	sc := scenario{
		Iterations: int(cmd.Int(iterationsKey)),
		Objects:    1_000,
		ArrayItems: 1_000,
	}
	for _, w := range cmd.IntSlice(widthsKey) {
		sc.Widths = append(sc.Widths, int(w))
	}
	for _, h := range cmd.IntSlice(heightsKey) {
		sc.Heights = append(sc.Heights, int(h))
	}

	return loadScenario(cmd.String(configKey), sc)
}

// loadScenario overlays the YAML file at path onto sc. An empty path
// returns sc unchanged.
func loadScenario(path string, sc scenario) (scenario, error) {
	if path == "" {
		return sc, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("reading scenario: %w", err)
	}
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return sc, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if sc.Iterations <= 0 {
		return sc, fmt.Errorf("scenario %s: iterations must be positive", path)
	}
	return sc, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(cmd.Bool(verboseKey))
	if err != nil {
		return err
	}
	defer logger.Sync()

	sc, err := scenarioFromFlags(cmd)
	if err != nil {
		return err
	}

	if path := cmd.String(pgoKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	style := table.StyleDefault
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		style = table.StyleRounded
	}

	logger.Info("warming up", zap.Int("iterations", sc.Iterations))
	suites := []struct {
		title string
		bench func(*zap.Logger, scenario) []table.Row
	}{
		{"Computed propagation", benchmarkPropagate},
		{"Computed propagation, scheduled effects", benchmarkScheduled},
		{"Reactive containers", benchmarkContainers},
	}
	for _, suite := range suites {
		if err := ctx.Err(); err != nil {
			return err
		}
		tbl := table.NewWriter()
		tbl.SetTitle(suite.title)
		tbl.SetStyle(style)
		tbl.SetOutputMirror(os.Stdout)
		tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})
		tbl.AppendRows(suite.bench(logger, sc))
		tbl.Render()
	}
	return nil
}
