// Package metrics wires the Event Engine and transport layers into
// Prometheus, mirroring the metric-naming and histogram-bucket style
// cuemby-warren uses for its own runtime instrumentation.
//
// Unlike warren's metrics package, these are not package-level globals
// registered in an init(): this module is a library embedded by many
// kinds of host processes, and a global default-registry registration
// would panic the second time a caller constructs two Clients in the
// same process. Registry is instantiated per Client instead, each
// wrapping its own prometheus.Registry.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric this module exports. A nil *Registry is
// valid everywhere it is used as a receiver check guards each call site,
// so instrumentation is strictly opt-in.
type Registry struct {
	reg *prometheus.Registry

	transitionsTotal  *prometheus.CounterVec
	queueDepth        *prometheus.GaugeVec
	invocationsTotal  *prometheus.CounterVec
	handshakeDuration prometheus.Histogram
	receiveDuration   prometheus.Histogram
	reconnectsTotal   prometheus.Counter
	heartbeatsTotal   *prometheus.CounterVec
}

// NewRegistry builds a Registry with its own isolated prometheus.Registry,
// so embedding multiple Clients in one process never collides.
func NewRegistry() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wavelet_ee_transitions_total",
		Help: "Total number of Event Engine state transitions by engine, from-state, and event.",
	}, []string{"engine", "from_state", "event"})

	r.queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wavelet_ee_invocation_queue_depth",
		Help: "Current length of an Event Engine's invocation queue.",
	}, []string{"engine"})

	r.invocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wavelet_ee_invocations_total",
		Help: "Total number of invocations reaching a terminal status, by engine, kind, and outcome.",
	}, []string{"engine", "kind", "outcome"})

	r.handshakeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wavelet_subscribe_handshake_duration_seconds",
		Help:    "Time taken for a subscribe handshake call to complete.",
		Buckets: prometheus.DefBuckets,
	})

	r.receiveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wavelet_subscribe_receive_duration_seconds",
		Help:    "Time taken for a long-poll receive call to complete.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 150, 300},
	})

	r.reconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wavelet_subscribe_reconnects_total",
		Help: "Total number of times the subscribe loop re-entered Handshaking on a Reconnect event.",
	})

	r.heartbeatsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wavelet_heartbeat_beats_total",
		Help: "Total number of heartbeat watcher events, by outcome label.",
	}, []string{"outcome"})

	r.reg.MustRegister(
		r.transitionsTotal,
		r.queueDepth,
		r.invocationsTotal,
		r.handshakeDuration,
		r.receiveDuration,
		r.reconnectsTotal,
		r.heartbeatsTotal,
	)
	return r
}

// Handler exposes the registry on an HTTP mux, the same shape as warren's
// metrics.Handler().
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveTransition records one Event Engine transition.
func (r *Registry) ObserveTransition(engine string, fromState, event int) {
	if r == nil {
		return
	}
	r.transitionsTotal.WithLabelValues(engine, strconv.Itoa(fromState), strconv.Itoa(event)).Inc()
}

// SetQueueDepth records the current invocation queue length for engine.
func (r *Registry) SetQueueDepth(engine string, depth int) {
	if r == nil {
		return
	}
	r.queueDepth.WithLabelValues(engine).Set(float64(depth))
}

// ObserveInvocation records one invocation reaching a terminal outcome.
func (r *Registry) ObserveInvocation(engine string, kind int, outcome string) {
	if r == nil {
		return
	}
	r.invocationsTotal.WithLabelValues(engine, strconv.Itoa(kind), outcome).Inc()
}

// HandshakeDuration returns the histogram effects time handshake calls
// against, or nil if r is nil.
func (r *Registry) HandshakeDuration() prometheus.Histogram {
	if r == nil {
		return nil
	}
	return r.handshakeDuration
}

// ReceiveDuration returns the histogram effects time receive calls
// against, or nil if r is nil.
func (r *Registry) ReceiveDuration() prometheus.Histogram {
	if r == nil {
		return nil
	}
	return r.receiveDuration
}

// IncReconnect records one handshake re-entry on a Reconnect event, from
// either a failed or a stopped state.
func (r *Registry) IncReconnect() {
	if r == nil {
		return
	}
	r.reconnectsTotal.Inc()
}

// ObserveHeartbeat records one heartbeat event under the given outcome
// label; the heartbeat watcher records "tick" once per tick.
func (r *Registry) ObserveHeartbeat(outcome string) {
	if r == nil {
		return
	}
	r.heartbeatsTotal.WithLabelValues(outcome).Inc()
}

