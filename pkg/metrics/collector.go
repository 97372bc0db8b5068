// Package metrics exposes trunkcore's runtime counters and gauges over
// Prometheus, grounded on the promauto-based PrometheusMetrics collector in
// madpsy-ka9q_ubersdr/prometheus.go: a struct of pre-registered collectors,
// one promauto constructor call per metric, plain setter/increment methods.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every Prometheus collector trunkcore registers: squelch
// transitions, demodulated-buffer throughput, MPT-1327 call events, and
// traffic-channel allocations.
type Collector struct {
	squelchTransitions *prometheus.CounterVec
	squelchMuted       *prometheus.GaugeVec

	buffersAllocated *prometheus.CounterVec
	buffersReleased  *prometheus.CounterVec
	poolInUse        *prometheus.GaugeVec

	callEvents       *prometheus.CounterVec
	trafficAllocated prometheus.Counter

	decoderPanics *prometheus.CounterVec
}

// NewCollector constructs a Collector and registers its metrics against reg.
// A nil reg registers against prometheus.DefaultRegisterer; tests should
// pass a fresh prometheus.NewRegistry() to avoid colliding with other
// Collectors in the same process.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Collector{
		squelchTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trunkcore_squelch_transitions_total",
				Help: "Total squelch state transitions by channel and resulting state",
			},
			[]string{"channel", "state"},
		),
		squelchMuted: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trunkcore_squelch_muted",
				Help: "1 if the channel is currently squelch-muted, 0 otherwise",
			},
			[]string{"channel"},
		),
		buffersAllocated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trunkcore_buffers_allocated_total",
				Help: "Total reusable buffers allocated from a pool, by pool",
			},
			[]string{"pool"},
		),
		buffersReleased: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trunkcore_buffers_released_total",
				Help: "Total reusable buffers returned to a pool, by pool",
			},
			[]string{"pool"},
		),
		poolInUse: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trunkcore_pool_buffers_in_use",
				Help: "Buffers currently checked out of a pool",
			},
			[]string{"pool"},
		),
		callEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trunkcore_call_events_total",
				Help: "Total MPT-1327 call events by type",
			},
			[]string{"type"},
		),
		trafficAllocated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "trunkcore_traffic_channel_allocations_total",
				Help: "Total traffic channel allocations granted by GTC",
			},
		),
		decoderPanics: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trunkcore_decoder_panics_total",
				Help: "Total recovered panics from a channel's decode pipeline",
			},
			[]string{"channel"},
		),
	}
}

// SquelchTransition records a squelch state change for channel.
func (c *Collector) SquelchTransition(channel, state string) {
	c.squelchTransitions.WithLabelValues(channel, state).Inc()
}

// SetSquelchMuted records whether channel is currently muted.
func (c *Collector) SetSquelchMuted(channel string, muted bool) {
	value := 0.0
	if muted {
		value = 1.0
	}
	c.squelchMuted.WithLabelValues(channel).Set(value)
}

// BufferAllocated records one buffer checked out of pool.
func (c *Collector) BufferAllocated(pool string) {
	c.buffersAllocated.WithLabelValues(pool).Inc()
	c.poolInUse.WithLabelValues(pool).Inc()
}

// BufferReleased records one buffer returned to pool.
func (c *Collector) BufferReleased(pool string) {
	c.buffersReleased.WithLabelValues(pool).Inc()
	c.poolInUse.WithLabelValues(pool).Dec()
}

// CallEvent records one MPT-1327 call event of the given type (e.g.
// "REGISTER", "RESPONSE", "COMMAND", "STATUS", "CALL", "SDM").
func (c *Collector) CallEvent(eventType string) {
	c.callEvents.WithLabelValues(eventType).Inc()
}

// TrafficChannelAllocated records one GTC-granted traffic channel.
func (c *Collector) TrafficChannelAllocated() {
	c.trafficAllocated.Inc()
}

// DecoderPanic records a recovered panic from channel's decode pipeline.
func (c *Collector) DecoderPanic(channel string) {
	c.decoderPanics.WithLabelValues(channel).Inc()
}
