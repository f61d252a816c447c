// Package metrics exposes prometheus instrumentation for pipeline runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"techcal/internal/model"
)

// Metrics holds the pipeline's prometheus collectors.
type Metrics struct {
	RunsTotal       prometheus.Counter
	RunErrorsTotal  prometheus.Counter
	GroupFetches    *prometheus.CounterVec
	EventWrites     *prometheus.CounterVec
	EventsDropped   prometheus.Counter
	LastRunUnix     prometheus.Gauge
	LastRunDuration prometheus.Gauge
}

// New registers the pipeline collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "techcal_runs_total",
			Help: "Completed pipeline runs.",
		}),
		RunErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "techcal_run_errors_total",
			Help: "Per-group errors accumulated across runs.",
		}),
		GroupFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "techcal_group_fetches_total",
			Help: "Feed fetch outcomes by result (changed, unchanged, error).",
		}, []string{"result"}),
		EventWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "techcal_event_writes_total",
			Help: "Event store writes by kind (created, updated, removed).",
		}, []string{"kind"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "techcal_events_dropped_total",
			Help: "Events dropped during enrichment (no URL, filtered state, hidden).",
		}),
		LastRunUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "techcal_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run.",
		}),
		LastRunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "techcal_last_run_duration_seconds",
			Help: "Duration of the last completed run.",
		}),
	}

	reg.MustRegister(
		m.RunsTotal, m.RunErrorsTotal, m.GroupFetches, m.EventWrites,
		m.EventsDropped, m.LastRunUnix, m.LastRunDuration,
	)
	return m
}

// ObserveRun records the outcome of one completed run.
func (m *Metrics) ObserveRun(sum *model.RunSummary) {
	m.RunsTotal.Inc()
	m.RunErrorsTotal.Add(float64(len(sum.Errors)))
	m.EventWrites.WithLabelValues("created").Add(float64(sum.EventsCreated))
	m.EventWrites.WithLabelValues("updated").Add(float64(sum.EventsUpdated))
	m.EventWrites.WithLabelValues("removed").Add(float64(sum.EventsRemoved))
	m.EventsDropped.Add(float64(sum.EventsDropped))
	m.LastRunUnix.Set(float64(sum.StartedAt.Add(sum.Duration).Unix()))
	m.LastRunDuration.Set(sum.Duration.Seconds())
}
