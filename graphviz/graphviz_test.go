package graphviz_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/delaneyj/reactivity/graphviz"
	"github.com/delaneyj/reactivity/reactivity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = reactivity.Graph{
	Targets: []reactivity.GraphTarget{{
		ID:   3,
		Kind: "object",
		Keys: []reactivity.GraphKey{{Key: "count", Effects: []uint64{2}}},
	}},
	Effects: []reactivity.GraphEffect{
		{ID: 1, Computed: true, Active: true, Deps: []string{"ref#7"}, Feeds: "computed#8"},
		{ID: 2, Active: true, Deps: []string{"computed#8", "object#3.count"}},
		{ID: 4, Deps: []string{"ref#9"}},
	},
}

// should render clusters, cells, effects and edges
func TestString(t *testing.T) {
	want := `digraph "reactivity" {
	rankdir=LR;
	node [fontname="Helvetica", fontsize=10];

	subgraph cluster_3 {
		label="object#3";
		style=rounded;
		"object#3.count" [shape=box, label="count"];
	}

	"computed#8" [shape=circle];
	"ref#7" [shape=circle];

	"effect#1" [shape=ellipse, style=filled, fillcolor="#dde8f7"];
	"ref#7" -> "effect#1";
	"effect#1" -> "computed#8" [style=bold];
	"effect#2" [shape=ellipse];
	"computed#8" -> "effect#2";
	"object#3.count" -> "effect#2";
}
`
	assert.Equal(t, want, graphviz.String(sample))
}

// should apply options
func TestOptions(t *testing.T) {
	out := graphviz.String(sample, graphviz.WithName("app"), graphviz.WithRankDir("TB"), graphviz.WithInactive())
	assert.True(t, strings.HasPrefix(out, "digraph \"app\" {\n\trankdir=TB;\n"))
	assert.Contains(t, out, `"effect#4" [shape=ellipse, style=dashed];`)
	assert.Contains(t, out, `"ref#9" -> "effect#4";`)
}

// should escape quotes in keys
func TestEscaping(t *testing.T) {
	g := reactivity.Graph{Targets: []reactivity.GraphTarget{{
		ID:   1,
		Kind: "map",
		Keys: []reactivity.GraphKey{{Key: `say "hi"`}},
	}}}
	assert.Contains(t, graphviz.String(g), `label="say \"hi\""`)
}

type failingWriter struct{ writes int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, errors.New("disk full")
}

// should return the first write error
func TestWriteError(t *testing.T) {
	w := &failingWriter{}
	err := graphviz.Write(w, sample)
	require.EqualError(t, err, "disk full")
	assert.Equal(t, 1, w.writes)
}

// should render a live system
func TestLiveGraph(t *testing.T) {
	rs := reactivity.CreateReactiveSystem()
	todo := reactivity.Reactive(rs, reactivity.ObjectOf("done", false))
	e, err := reactivity.Effect(rs, func() error {
		todo.Get("done")
		return nil
	})
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, graphviz.Write(&sb, rs.Graph()))
	assert.Contains(t, sb.String(), fmt.Sprintf(`-> "effect#%d";`, e.ID()))
	assert.Contains(t, sb.String(), `[shape=box, label="done"]`)
}
