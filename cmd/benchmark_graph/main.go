package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/delaneyj/reactivity/reactivity"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	verboseKey = "verbose"
	configKey  = "config"
	repeatsKey = "repeats"
)

type testConfig struct {
	Name           string  `yaml:"name"`
	Width          int     `yaml:"width"`
	TotalLayers    int     `yaml:"total_layers"`
	StaticFraction float64 `yaml:"static_fraction"`
	NSources       int     `yaml:"n_sources"`
	ReadFraction   float64 `yaml:"read_fraction"`
	Iterations     int     `yaml:"iterations"`
}

var defaultConfigs = []testConfig{
	{Name: "simple component", Width: 10, TotalLayers: 5, StaticFraction: 1, NSources: 2, ReadFraction: 0.2, Iterations: 600_000},
	{Name: "dynamic component", Width: 10, TotalLayers: 10, StaticFraction: 0.75, NSources: 6, ReadFraction: 0.2, Iterations: 15_000},
	{Name: "large web app", Width: 1_000, TotalLayers: 12, StaticFraction: 0.95, NSources: 4, ReadFraction: 1, Iterations: 7_000},
	{Name: "wide dense", Width: 1_000, TotalLayers: 5, StaticFraction: 1, NSources: 25, ReadFraction: 1, Iterations: 3_000},
	{Name: "deep", Width: 5, TotalLayers: 500, StaticFraction: 1, NSources: 3, ReadFraction: 1, Iterations: 500},
	{Name: "very dynamic", Width: 100, TotalLayers: 15, StaticFraction: 0.5, NSources: 6, ReadFraction: 1, Iterations: 2_000},
}

func (cfg testConfig) validate() error {
	switch {
	case cfg.Width <= 0:
		return fmt.Errorf("%q: width must be positive", cfg.Name)
	case cfg.TotalLayers <= 0:
		return fmt.Errorf("%q: total_layers must be positive", cfg.Name)
	case cfg.NSources <= 0:
		return fmt.Errorf("%q: n_sources must be positive", cfg.Name)
	case cfg.Iterations <= 0:
		return fmt.Errorf("%q: iterations must be positive", cfg.Name)
	case cfg.ReadFraction < 0 || cfg.ReadFraction > 1:
		return fmt.Errorf("%q: read_fraction must be within [0, 1]", cfg.Name)
	}
	return nil
}

func (cfg testConfig) title() string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "%dx%d %d sources", cfg.Width, cfg.TotalLayers, cfg.NSources)
	if cfg.StaticFraction < 1 {
		sb.WriteString(" dynamic")
	}
	if cfg.ReadFraction < 1 {
		fmt.Fprintf(&sb, " read %0.2f%%", 100*cfg.ReadFraction)
	}
	return sb.String()
}

// loadConfigs reads a YAML list of graph shapes. An empty path yields the
// built-in set.
func loadConfigs(path string) ([]testConfig, error) {
	if path == "" {
		return defaultConfigs, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configs: %w", err)
	}
	var cfgs []testConfig
	if err := yaml.Unmarshal(b, &cfgs); err != nil {
		return nil, fmt.Errorf("parsing configs %s: %w", path, err)
	}
	for _, cfg := range cfgs {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
	}
	return cfgs, nil
}

type result struct {
	sum      int
	count    int64
	dynamic  int
	duration time.Duration
}

// measure builds the graph once, warms it up and keeps the fastest of
// repeats runs.
func measure(logger *zap.Logger, cfg testConfig, repeats int) result {
	rs := reactivity.CreateReactiveSystem(reactivity.WithLogger(logger))
	counter := new(int64)
	g := makeGraph(rs, cfg, counter)
	runGraph(g, cfg.Iterations, cfg.ReadFraction)

	best := result{duration: time.Hour, dynamic: dynamicCount(g)}
	for i := range repeats {
		logger.Debug("running",
			zap.String("config", cfg.Name),
			zap.Int("repeat", i+1),
			zap.Int("of", repeats),
		)
		*counter = 0
		start := time.Now()
		sum := runGraph(g, cfg.Iterations, cfg.ReadFraction)
		duration := time.Since(start)
		if duration < best.duration {
			best.duration = duration
			best.sum = sum
			best.count = *counter
		}
	}
	return best
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	cmd := &cli.Command{
		Name:  "benchmark_graph",
		Usage: "Run layered computed graphs of varying shape and report update rates",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    verboseKey,
				Aliases: []string{"v"},
				Usage:   "Log at debug level",
			},
			&cli.StringFlag{
				Name:  configKey,
				Usage: "YAML list of graph shapes to run instead of the built-in set",
			},
			&cli.IntFlag{
				Name:  repeatsKey,
				Usage: "Timed runs per shape, the fastest is reported",
				Value: 5,
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(cmd.Bool(verboseKey))
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfgs, err := loadConfigs(cmd.String(configKey))
	if err != nil {
		return err
	}
	repeats := int(cmd.Int(repeatsKey))
	if repeats <= 0 {
		return fmt.Errorf("repeats must be positive, got %d", repeats)
	}

	logger.Info("starting graph benchmark", zap.Int("configs", len(cfgs)))
	defer logger.Info("finished graph benchmark")

	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{
		"size", "nSources", "read%", "static%", "dynamic",
		"nTimes", "test", "time", "updateRate", "title",
	})
	for _, cfg := range cfgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Info("running config", zap.String("config", cfg.Name))
		best := measure(logger, cfg, repeats)
		updateRate := float64(best.count) / (float64(best.duration) / float64(time.Millisecond))
		logger.Debug("best run",
			zap.String("config", cfg.Name),
			zap.Int("sum", best.sum),
			zap.Int64("count", best.count),
		)

		tbl.Append([]string{
			fmt.Sprintf("%dx%d", cfg.Width, cfg.TotalLayers),
			fmt.Sprint(cfg.NSources),
			fmt.Sprint(cfg.ReadFraction),
			fmt.Sprint(cfg.StaticFraction),
			humanize.Comma(int64(best.dynamic)),
			humanize.Comma(int64(cfg.Iterations)),
			cfg.Name,
			fmt.Sprint(best.duration),
			humanize.Comma(int64(updateRate)),
			cfg.title(),
		})
	}
	tbl.Render()
	return nil
}
