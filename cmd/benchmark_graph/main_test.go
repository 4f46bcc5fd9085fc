package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/delaneyj/reactivity/reactivity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// should propagate writes through every layer of a static graph
func TestRunGraphStatic(t *testing.T) {
	rs := reactivity.CreateReactiveSystem()
	counter := new(int64)
	cfg := testConfig{Width: 2, TotalLayers: 3, StaticFraction: 1, NSources: 2}
	g := makeGraph(rs, cfg, counter)
	require.Len(t, g.layers, 2)
	assert.Zero(t, dynamicCount(g))

	// sources [0 1] -> [1 1] -> [2 2]; the second write makes them [0 2]
	assert.Equal(t, 8, runGraph(g, 2, 1))
	assert.Equal(t, int64(8), *counter)

	// repeating the same writes changes nothing
	*counter = 0
	assert.Equal(t, 8, runGraph(g, 2, 1))
	assert.Zero(t, *counter)
}

// should read only a share of the leaves
func TestRunGraphReadFraction(t *testing.T) {
	rs := reactivity.CreateReactiveSystem()
	counter := new(int64)
	g := makeGraph(rs, testConfig{Width: 4, TotalLayers: 2, StaticFraction: 1, NSources: 1}, counter)
	runGraph(g, 1, 0.5)
	assert.Equal(t, int64(2), *counter)
}

// should mark nodes dynamic only below the static fraction
func TestMakeGraphDynamic(t *testing.T) {
	rs := reactivity.CreateReactiveSystem()
	g := makeGraph(rs, testConfig{Width: 10, TotalLayers: 4, StaticFraction: 0, NSources: 3}, new(int64))
	assert.Equal(t, 30, dynamicCount(g))
	assert.NotPanics(t, func() { runGraph(g, 20, 1) })
}

// should load graph shapes from YAML and validate them
func TestLoadConfigs(t *testing.T) {
	cfgs, err := loadConfigs("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfigs, cfgs)

	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
- name: tiny
  width: 3
  total_layers: 2
  static_fraction: 1
  n_sources: 2
  read_fraction: 1
  iterations: 10
`), 0o644))
	cfgs, err = loadConfigs(good)
	require.NoError(t, err)
	assert.Equal(t, []testConfig{{Name: "tiny", Width: 3, TotalLayers: 2, StaticFraction: 1, NSources: 2, ReadFraction: 1, Iterations: 10}}, cfgs)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("- name: zero\n  width: 0\n"), 0o644))
	_, err = loadConfigs(bad)
	assert.ErrorContains(t, err, "width must be positive")

	_, err = loadConfigs(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "reading configs")
}

// should keep the fastest run's counts
func TestMeasure(t *testing.T) {
	cfg := testConfig{Name: "tiny", Width: 2, TotalLayers: 3, StaticFraction: 1, NSources: 2, ReadFraction: 1, Iterations: 2}
	best := measure(zap.NewNop(), cfg, 2)
	assert.Equal(t, 8, best.sum)
	// the warm-up already applied every write
	assert.Zero(t, best.count)
	assert.Equal(t, "2x3 2 sources", cfg.title())
}
