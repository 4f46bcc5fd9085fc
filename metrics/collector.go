// Package metrics exposes reactive system and scheduler counters to
// Prometheus.
package metrics

import (
	"github.com/delaneyj/reactivity/reactivity"
	"github.com/delaneyj/reactivity/scheduler"
	"github.com/prometheus/client_golang/prometheus"
)

type config struct {
	namespace   string
	subsystem   string
	constLabels prometheus.Labels
}

type Option func(*config)

// WithNamespace sets the metric namespace. Default "reactivity".
func WithNamespace(namespace string) Option {
	return func(c *config) { c.namespace = namespace }
}

func WithSubsystem(subsystem string) Option {
	return func(c *config) { c.subsystem = subsystem }
}

// WithConstLabels adds labels to every metric.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *config) { c.constLabels = labels }
}

// Collector reads counters at scrape time. Both sources publish them
// atomically, so scraping from another goroutine is safe.
type Collector struct {
	rs *reactivity.ReactiveSystem
	s  *scheduler.Scheduler

	targets         *prometheus.Desc
	deps            *prometheus.Desc
	effectRuns      *prometheus.Desc
	triggers        *prometheus.Desc
	jobsQueued      *prometheus.Desc
	flushes         *prometheus.Desc
	jobRuns         *prometheus.Desc
	jobErrors       *prometheus.Desc
	recursionLimits *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for rs and s. Either may be nil to
// leave its metrics out.
func NewCollector(rs *reactivity.ReactiveSystem, s *scheduler.Scheduler, opts ...Option) *Collector {
	cfg := config{namespace: "reactivity"}
	for _, opt := range opts {
		opt(&cfg)
	}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(cfg.namespace, cfg.subsystem, name), help, nil, cfg.constLabels)
	}
	return &Collector{
		rs:              rs,
		s:               s,
		targets:         desc("targets", "Targets with a live entry in the dependency table."),
		deps:            desc("deps", "Dependency sets held by live targets."),
		effectRuns:      desc("effect_runs_total", "Tracked effect runs."),
		triggers:        desc("triggers_total", "Mutations that reached at least one dependency set."),
		jobsQueued:      desc("scheduler_jobs_queued_total", "Jobs and callbacks accepted by the scheduler."),
		flushes:         desc("scheduler_flushes_total", "Scheduler flushes."),
		jobRuns:         desc("scheduler_job_runs_total", "Jobs and callbacks run by the scheduler."),
		jobErrors:       desc("scheduler_job_errors_total", "Jobs that returned an error, panicked or hit the recursion limit."),
		recursionLimits: desc("scheduler_recursion_limit_total", "Jobs skipped for exceeding the recursion limit."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	if c.rs != nil {
		ch <- c.targets
		ch <- c.deps
		ch <- c.effectRuns
		ch <- c.triggers
	}
	if c.s != nil {
		ch <- c.jobsQueued
		ch <- c.flushes
		ch <- c.jobRuns
		ch <- c.jobErrors
		ch <- c.recursionLimits
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.rs != nil {
		st := c.rs.Stats()
		ch <- prometheus.MustNewConstMetric(c.targets, prometheus.GaugeValue, float64(st.Targets))
		ch <- prometheus.MustNewConstMetric(c.deps, prometheus.GaugeValue, float64(st.Deps))
		ch <- prometheus.MustNewConstMetric(c.effectRuns, prometheus.CounterValue, float64(st.EffectRuns))
		ch <- prometheus.MustNewConstMetric(c.triggers, prometheus.CounterValue, float64(st.Triggers))
	}
	if c.s != nil {
		st := c.s.Stats()
		ch <- prometheus.MustNewConstMetric(c.jobsQueued, prometheus.CounterValue, float64(st.Queued))
		ch <- prometheus.MustNewConstMetric(c.flushes, prometheus.CounterValue, float64(st.Flushes))
		ch <- prometheus.MustNewConstMetric(c.jobRuns, prometheus.CounterValue, float64(st.JobRuns))
		ch <- prometheus.MustNewConstMetric(c.jobErrors, prometheus.CounterValue, float64(st.Errors))
		ch <- prometheus.MustNewConstMetric(c.recursionLimits, prometheus.CounterValue, float64(st.RecursionLimits))
	}
}
