// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TalkCallDuration tracks remote Talk API call duration.
	TalkCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "talk_call_duration_seconds",
			Help:    "Talk API call duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15, 30, 60},
		},
		[]string{"op", "method"},
	)

	// TalkCallsTotal tracks remote Talk API calls by outcome.
	TalkCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talk_calls_total",
			Help: "Total Talk API calls",
		},
		[]string{"op", "method", "status"},
	)

	// CapabilityFetchesTotal tracks capability discovery round trips.
	CapabilityFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talk_capability_fetches_total",
			Help: "Total capability discovery calls",
		},
		[]string{"result"},
	)

	// CapabilityDenialsTotal tracks operations refused locally for a missing feature.
	CapabilityDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talk_capability_denials_total",
			Help: "Operations refused because the server lacks a feature",
		},
		[]string{"feature"},
	)

	// RequestDuration tracks gateway HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total gateway HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// RelayPublishedTotal tracks Talk messages published to NATS.
	RelayPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_published_total",
			Help: "Talk messages relayed to JetStream",
		},
		[]string{"message_type"},
	)

	// WatchedRooms tracks rooms with an active poll loop.
	WatchedRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watcher_rooms_active",
			Help: "Number of rooms currently long-polled",
		},
	)

	// AutoRepliesTotal tracks LLM replies posted back to Talk.
	AutoRepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responder_replies_total",
			Help: "Auto-replies posted by the responder",
		},
		[]string{"provider", "status"},
	)
)

// RecordTalkCall records metrics for one remote Talk API call.
func RecordTalkCall(op, method, status string, duration float64) {
	TalkCallDuration.WithLabelValues(op, method).Observe(duration)
	TalkCallsTotal.WithLabelValues(op, method, status).Inc()
}

// RecordRequest records metrics for a gateway HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
