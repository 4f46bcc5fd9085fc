package main

import (
	"math"
	"math/rand"

	"github.com/delaneyj/reactivity/reactivity"
)

type node interface {
	Value() int
}

type graph struct {
	sources []*reactivity.RefImpl[int]
	layers  [][]node
	dynamic [][]bool
}

// makeGraph builds a source row of width refs followed by totalLayers-1
// rows of computeds, each summing nSources cells of the row above.
func makeGraph(rs *reactivity.ReactiveSystem, cfg testConfig, counter *int64) *graph {
	g := &graph{sources: make([]*reactivity.RefImpl[int], cfg.Width)}
	prevRow := make([]node, cfg.Width)
	for i := range g.sources {
		g.sources[i] = reactivity.Ref(rs, i)
		prevRow[i] = g.sources[i]
	}

	random := rand.New(rand.NewSource(0))
	for range cfg.TotalLayers - 1 {
		row, dynamic := makeRow(rs, prevRow, cfg, counter, random)
		g.layers = append(g.layers, row)
		g.dynamic = append(g.dynamic, dynamic)
		prevRow = row
	}
	return g
}

func makeRow(rs *reactivity.ReactiveSystem, above []node, cfg testConfig, counter *int64, random *rand.Rand) ([]node, []bool) {
	row := make([]node, len(above))
	dynamic := make([]bool, len(above))
	for myDex := range above {
		mySources := make([]node, 0, cfg.NSources)
		for sourceDex := range cfg.NSources {
			mySources = append(mySources, above[(myDex+sourceDex)%len(above)])
		}

		static := random.Float64() < cfg.StaticFraction
		if static || len(mySources) < 2 {
			row[myDex] = reactivity.Computed(rs, func(int) int {
				*counter++
				sum := 0
				for _, src := range mySources {
					sum += src.Value()
				}
				return sum
			})
			continue
		}

		// dynamic nodes skip one of their sources on odd sums
		first, tail := mySources[0], mySources[1:]
		row[myDex] = reactivity.Computed(rs, func(int) int {
			*counter++
			sum := first.Value()
			shouldDrop := sum&0x1 > 0
			dropDex := sum % len(tail)
			for i, src := range tail {
				if shouldDrop && i == dropDex {
					continue
				}
				sum += src.Value()
			}
			return sum
		})
		dynamic[myDex] = true
	}
	return row, dynamic
}

// runGraph writes one source per iteration and reads a readFraction share
// of the leaves. It returns the sum of the read leaves.
func runGraph(g *graph, iterations int, readFraction float64) int {
	random := rand.New(rand.NewSource(0))
	var last []node
	if len(g.layers) == 0 {
		for _, s := range g.sources {
			last = append(last, s)
		}
	} else {
		last = g.layers[len(g.layers)-1]
	}
	skipCount := int(math.Round(float64(len(last)) * (1 - readFraction)))
	readLeaves := removeElems(last, skipCount, random)

	for i := range iterations {
		sourceDex := i % len(g.sources)
		g.sources[sourceDex].SetValue(i + sourceDex)
		for _, leaf := range readLeaves {
			leaf.Value()
		}
	}

	sum := 0
	for _, leaf := range readLeaves {
		sum += leaf.Value()
	}
	return sum
}

func removeElems[T any](src []T, rmCount int, random *rand.Rand) []T {
	out := make([]T, len(src))
	copy(out, src)
	for range min(rmCount, len(out)) {
		rmDex := random.Intn(len(out))
		out[rmDex] = out[len(out)-1]
		out = out[:len(out)-1]
	}
	return out
}

func dynamicCount(g *graph) int {
	n := 0
	for _, row := range g.dynamic {
		for _, d := range row {
			if d {
				n++
			}
		}
	}
	return n
}
