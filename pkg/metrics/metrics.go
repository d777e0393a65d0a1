// Package metrics defines the Prometheus collectors exported by the bridge.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "meshgram"

type Metrics struct {
	MeshEvents      *prometheus.CounterVec
	MeshMalformed   prometheus.Counter
	MeshPublishes   *prometheus.CounterVec
	RelayEnqueued   *prometheus.CounterVec
	RelayDropped    prometheus.Counter
	RelayDiscarded  prometheus.Counter
	QueueDepth      prometheus.Gauge
	ChatDeliveries  *prometheus.CounterVec
	ChatEvents      *prometheus.CounterVec
	ChatDenied      prometheus.Counter
	HandlerFailures *prometheus.CounterVec
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		MeshEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mesh",
			Name:      "events_total",
			Help:      "Broker messages received, by classified kind.",
		}, []string{"kind"}),
		MeshMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mesh",
			Name:      "malformed_total",
			Help:      "Broker messages dropped because they were not valid JSON.",
		}),
		MeshPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mesh",
			Name:      "publishes_total",
			Help:      "Downlink messages published to the mesh.",
		}, []string{"type", "result"}),
		RelayEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "enqueued_total",
			Help:      "Relay actions queued for chat delivery.",
		}, []string{"action"}),
		RelayDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "dropped_total",
			Help:      "Relay actions rejected because the queue was full.",
		}),
		RelayDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "discarded_total",
			Help:      "Relay actions still queued at shutdown.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "queue_depth",
			Help:      "Relay actions waiting for the next delivery tick.",
		}),
		ChatDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "deliveries_total",
			Help:      "Messages sent to chat recipients.",
		}, []string{"action", "result"}),
		ChatEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "events_total",
			Help:      "Chat updates handled, by kind.",
		}, []string{"kind"}),
		ChatDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "denied_total",
			Help:      "Chat updates rejected by the access list.",
		}),
		HandlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_failures_total",
			Help:      "Panics recovered at a handler boundary.",
		}, []string{"pipeline"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MeshEvents,
		m.MeshMalformed,
		m.MeshPublishes,
		m.RelayEnqueued,
		m.RelayDropped,
		m.RelayDiscarded,
		m.QueueDepth,
		m.ChatDeliveries,
		m.ChatEvents,
		m.ChatDenied,
		m.HandlerFailures,
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("registering collector: %w", err)
		}
	}
	return nil
}

// NewRegistry returns a private registry holding m plus the Go runtime
// and process collectors.
func NewRegistry(m *Metrics) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := m.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
