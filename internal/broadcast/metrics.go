package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gesturecast"

// Metrics holds the Prometheus instrumentation for the broadcaster and
// pipeline, exposed on the health server's /metrics route. Each instance
// carries its own Registry rather than registering into the global
// default registerer, so tests and multiple daemon instances in the same
// process can each call NewMetrics without colliding on collector names.
type Metrics struct {
	Registry *prometheus.Registry

	SubscribersActive prometheus.Gauge
	EventsPublished   prometheus.Counter
	EventsDropped     *prometheus.CounterVec
	StatusDropped     prometheus.Counter
	SubscribersClosed *prometheus.CounterVec

	PipelineFPS       prometheus.Gauge
	PipelineLatencyMS prometheus.Histogram
	HandsActive       prometheus.Gauge
}

// NewMetrics creates a fresh Registry and registers every metric against
// it. Called once per daemon instance (and once per test that exercises
// instrumentation).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		SubscribersActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers_active",
			Help:      "Number of currently connected gesture subscribers.",
		}),
		EventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of GestureEvents handed to publish.",
		}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total number of gesture events dropped from a subscriber's outbound queue.",
		}, []string{"subscriber"}),
		StatusDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_dropped_total",
			Help:      "Total number of status messages dropped on queue overflow.",
		}),
		SubscribersClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscribers_closed_total",
			Help:      "Total number of subscriber connections torn down, by reason.",
		}, []string{"reason"}),
		PipelineFPS: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_fps",
			Help:      "Observed vision loop frames per second.",
		}),
		PipelineLatencyMS: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_tick_latency_ms",
			Help:      "Per-tick vision loop processing latency in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 20, 33, 50, 100, 250},
		}),
		HandsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hands_active",
			Help:      "Number of currently tracked hands.",
		}),
	}
}
