// Package graphviz renders a reactivity dependency graph as Graphviz DOT.
//
// Every tracked key becomes a box inside a cluster for its target, refs
// and computed values become circles, and effects become ellipses. Edges
// point from what is read to what reads it.
package graphviz

import (
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/delaneyj/reactivity/reactivity"
	"github.com/valyala/bytebufferpool"
	qt "github.com/valyala/quicktemplate"
)

type options struct {
	name     string
	rankdir  string
	inactive bool
}

type Option func(*options)

// WithName sets the digraph name. Default "reactivity".
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithRankDir sets the layout direction, one of TB, LR, BT or RL.
func WithRankDir(dir string) Option {
	return func(o *options) { o.rankdir = dir }
}

// WithInactive includes stopped effects that are still reachable.
func WithInactive() Option {
	return func(o *options) { o.inactive = true }
}

// Write renders g to w.
func Write(w io.Writer, g reactivity.Graph, opts ...Option) error {
	o := options{name: "reactivity", rankdir: "LR"}
	for _, opt := range opts {
		opt(&o)
	}

	ew := &errWriter{w: w}
	qw := qt.AcquireWriter(ew)
	defer qt.ReleaseWriter(qw)
	streamGraph(qw.N(), g, o)
	return ew.err
}

// String renders g and returns the DOT source.
func String(g reactivity.Graph, opts ...Option) string {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	// writes to a ByteBuffer never fail
	_ = Write(bb, g, opts...)
	return bb.String()
}

func streamGraph(qw *qt.QWriter, g reactivity.Graph, o options) {
	qw.S("digraph ")
	quote(qw, o.name)
	qw.S(" {\n\trankdir=")
	qw.S(o.rankdir)
	qw.S(";\n\tnode [fontname=\"Helvetica\", fontsize=10];\n")

	keyed := map[string]bool{}
	for _, t := range g.Targets {
		qw.S("\n\tsubgraph cluster_")
		qw.DUL(t.ID)
		qw.S(" {\n\t\tlabel=")
		quote(qw, t.Kind+"#"+u64(t.ID))
		qw.S(";\n\t\tstyle=rounded;\n")
		for _, k := range t.Keys {
			id := t.Kind + "#" + u64(t.ID) + "." + k.Key
			keyed[id] = true
			qw.S("\t\t")
			quote(qw, id)
			qw.S(" [shape=box, label=")
			quote(qw, k.Key)
			qw.S("];\n")
		}
		qw.S("\t}\n")
	}

	var cells []string
	for _, e := range g.Effects {
		if !e.Active && !o.inactive {
			continue
		}
		for _, d := range e.Deps {
			if !keyed[d] {
				cells = append(cells, d)
			}
		}
		if e.Feeds != "" {
			cells = append(cells, e.Feeds)
		}
	}
	slices.Sort(cells)
	cells = slices.Compact(cells)
	if len(cells) > 0 {
		qw.S("\n")
	}
	for _, c := range cells {
		qw.S("\t")
		quote(qw, c)
		qw.S(" [shape=circle];\n")
	}

	qw.S("\n")
	for _, e := range g.Effects {
		if !e.Active && !o.inactive {
			continue
		}
		name := effectName(e)
		qw.S("\t")
		quote(qw, name)
		qw.S(" [shape=ellipse")
		if e.Computed {
			qw.S(", style=filled, fillcolor=\"#dde8f7\"")
		}
		if !e.Active {
			qw.S(", style=dashed")
		}
		qw.S("];\n")
		for _, d := range e.Deps {
			qw.S("\t")
			quote(qw, d)
			qw.S(" -> ")
			quote(qw, name)
			qw.S(";\n")
		}
		if e.Feeds != "" {
			qw.S("\t")
			quote(qw, name)
			qw.S(" -> ")
			quote(qw, e.Feeds)
			qw.S(" [style=bold];\n")
		}
	}
	qw.S("}\n")
}

func effectName(e reactivity.GraphEffect) string {
	return "effect#" + u64(e.ID)
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// quote writes s as a DOT double-quoted id.
func quote(qw *qt.QWriter, s string) {
	qw.S(`"`)
	qw.S(dotEscaper.Replace(s))
	qw.S(`"`)
}

func u64(n uint64) string {
	return strconv.FormatUint(n, 10)
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(p []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(p)
	if err != nil {
		ew.err = err
	}
	return n, err
}
