package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// CONNECTION METRICS
// =============================================================================

var (
	connectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aldrin_connections_total",
			Help: "Total number of client connections accepted by the broker",
		},
		[]string{"result"}, // result: accepted, rejected, incompatible_version
	)

	connectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aldrin_connections_active",
			Help: "Number of currently connected clients",
		},
	)
)

// =============================================================================
// OBJECT / SERVICE METRICS
// =============================================================================

var (
	objectsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aldrin_objects_active",
			Help: "Number of currently live objects",
		},
	)

	servicesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aldrin_services_active",
			Help: "Number of currently live services",
		},
	)
)

// =============================================================================
// CALL / EVENT METRICS
// =============================================================================

var (
	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aldrin_function_calls_total",
			Help: "Total number of function calls routed by the broker",
		},
		[]string{"result"}, // result: ok, err, aborted, invalid_function, invalid_args
	)

	callDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aldrin_function_call_duration_seconds",
			Help:    "Time between CallFunction and its reply",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	eventsEmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aldrin_events_emitted_total",
			Help: "Total number of events emitted",
		},
	)
)

// =============================================================================
// CHANNEL METRICS
// =============================================================================

var (
	channelsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aldrin_channels_active",
			Help: "Number of currently live channels",
		},
	)

	channelItemsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aldrin_channel_items_total",
			Help: "Total number of items routed through channels",
		},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordConnection records the outcome of a connection attempt.
func RecordConnection(result string) {
	connectionsTotal.WithLabelValues(result).Inc()
}

// SetConnectionsActive reports the current number of live connections.
func SetConnectionsActive(n int) { connectionsActive.Set(float64(n)) }

// SetObjectsActive reports the current number of live objects.
func SetObjectsActive(n int) { objectsActive.Set(float64(n)) }

// SetServicesActive reports the current number of live services.
func SetServicesActive(n int) { servicesActive.Set(float64(n)) }

// RecordCall records a completed function call and its round-trip latency.
func RecordCall(result string, durationSeconds float64) {
	callsTotal.WithLabelValues(result).Inc()
	callDurationSeconds.Observe(durationSeconds)
}

// RecordEventEmitted increments the emitted-event counter.
func RecordEventEmitted() { eventsEmittedTotal.Inc() }

// SetChannelsActive reports the current number of live channels.
func SetChannelsActive(n int) { channelsActive.Set(float64(n)) }

// RecordChannelItem increments the routed-item counter.
func RecordChannelItem() { channelItemsTotal.Inc() }
