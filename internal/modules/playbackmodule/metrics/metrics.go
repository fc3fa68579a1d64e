// Package metrics exposes playback decision counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	perrors "github.com/mantonx/viewra-playback/internal/modules/playbackmodule/errors"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

const namespace = "viewra_playback"

// Recorder receives decision outcomes. The service depends on this rather
// than on Metrics so tests can drop instrumentation.
type Recorder interface {
	ObserveDecision(decision *types.PlaybackDecision, elapsed time.Duration)
	ObserveError(err error)
	SetProfilesLoaded(n int)
}

// Metrics owns a private registry with the decision collectors.
type Metrics struct {
	registry *prometheus.Registry

	decisions      *prometheus.CounterVec
	errors         *prometheus.CounterVec
	duration       prometheus.Histogram
	profilesLoaded prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Playback decisions by outcome and profile.",
		}, []string{"kind", "profile"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_errors_total",
			Help:      "Decision calls that returned an error, by error type.",
		}, []string{"type"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_duration_seconds",
			Help:      "Time spent deciding, excluding media analysis.",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .05},
		}),
		profilesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "profiles_loaded",
			Help:      "Device profiles currently registered.",
		}),
	}

	m.registry.MustRegister(m.decisions, m.errors, m.duration, m.profilesLoaded)
	return m
}

// ObserveDecision counts a decision and its latency.
func (m *Metrics) ObserveDecision(decision *types.PlaybackDecision, elapsed time.Duration) {
	m.decisions.WithLabelValues(string(decision.Kind), decision.ProfileName).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// ObserveError counts a failed decision call.
func (m *Metrics) ObserveError(err error) {
	m.errors.WithLabelValues(string(perrors.GetType(err))).Inc()
}

// SetProfilesLoaded records the registry size.
func (m *Metrics) SetProfilesLoaded(n int) {
	m.profilesLoaded.Set(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler serves the registry in the Prometheus exposition format.
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.InstrumentMetricHandler(m.registry, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveDecision(*types.PlaybackDecision, time.Duration) {}
func (Nop) ObserveError(error)                                     {}
func (Nop) SetProfilesLoaded(int)                                  {}
