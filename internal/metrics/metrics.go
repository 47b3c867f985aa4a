package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is passed explicitly to the components that record into it.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	StageDuration    *prometheus.HistogramVec
	StageFallbacks   *prometheus.CounterVec
	CallsProcessed   *prometheus.CounterVec
	CoachingSessions *prometheus.CounterVec
	StoreRetries     prometheus.Counter
	EventsReceived   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "callintel_stage_duration_seconds",
				Help:    "Time spent in each analysis stage",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"stage"},
		),
		StageFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callintel_stage_fallbacks_total",
				Help: "Analysis stages that failed and were replaced by their default result",
			},
			[]string{"stage"},
		),
		CallsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callintel_calls_processed_total",
				Help: "Calls processed by outcome",
			},
			[]string{"outcome"},
		),
		CoachingSessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callintel_coaching_sessions_total",
				Help: "Coaching trigger results",
			},
			[]string{"result"},
		),
		StoreRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "callintel_store_retries_total",
				Help: "Retried analysis store commits",
			},
		),
		EventsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callintel_events_received_total",
				Help: "Recording events received by status",
			},
			[]string{"status"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.StageDuration, m.StageFallbacks, m.CallsProcessed, m.CoachingSessions, m.StoreRetries, m.EventsReceived)
	}
	return m
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) StageFallback(stage string) {
	if m == nil {
		return
	}
	m.StageFallbacks.WithLabelValues(stage).Inc()
}

func (m *Metrics) CallProcessed(outcome string) {
	if m == nil {
		return
	}
	m.CallsProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Coaching(result string) {
	if m == nil {
		return
	}
	m.CoachingSessions.WithLabelValues(result).Inc()
}

func (m *Metrics) StoreRetry() {
	if m == nil {
		return
	}
	m.StoreRetries.Inc()
}

func (m *Metrics) EventReceived(status string) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(status).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
