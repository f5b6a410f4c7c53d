package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for growline. A nil *Metrics is valid and records nothing.
type Metrics struct {
	EventsPublished *prometheus.CounterVec
	HandlerRuns     *prometheus.CounterVec
	HandlerDuration *prometheus.HistogramVec
	TasksMutated    *prometheus.CounterVec
	GrowthLookups   *prometheus.CounterVec
}

// New registers all instruments with registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "growline_events_published_total",
				Help: "Lifecycle and work log events handed to the dispatcher",
			},
			[]string{"topic"},
		),
		HandlerRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "growline_handler_runs_total",
				Help: "Handler invocations by outcome",
			},
			[]string{"handler", "outcome"},
		),
		HandlerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "growline_handler_duration_seconds",
				Help:    "Handler run time in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"handler"},
		),
		TasksMutated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "growline_tasks_mutated_total",
				Help: "Plant task writes by task type and action",
			},
			[]string{"type", "action"},
		),
		GrowthLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "growline_growth_lookups_total",
				Help: "Growth parameter lookups by kind and result",
			},
			[]string{"kind", "result"},
		),
	}
}

// NewRegistry creates a private registry with all instruments registered.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	return reg, New(reg)
}

// HandlerFor serves the given registry in the Prometheus text format.
func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) EventPublished(topic string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(topic).Inc()
}

func (m *Metrics) HandlerRun(handler, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.HandlerRuns.WithLabelValues(handler, outcome).Inc()
	m.HandlerDuration.WithLabelValues(handler).Observe(took.Seconds())
}

func (m *Metrics) TaskMutated(taskType, action string) {
	if m == nil {
		return
	}
	m.TasksMutated.WithLabelValues(taskType, action).Inc()
}

func (m *Metrics) GrowthLookup(kind, result string) {
	if m == nil {
		return
	}
	m.GrowthLookups.WithLabelValues(kind, result).Inc()
}
