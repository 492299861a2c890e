// Package metrics provides Prometheus metrics for the dashboard sync core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesTotal counts applied stream messages by type.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evomap",
			Subsystem: "stream",
			Name:      "messages_total",
			Help:      "Total number of stream messages applied",
		},
		[]string{"type"}, // "snapshot", "agent", "edge"
	)

	// MessagesDropped counts dropped stream messages by reason.
	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evomap",
			Subsystem: "stream",
			Name:      "messages_dropped_total",
			Help:      "Total number of stream messages dropped",
		},
		[]string{"reason"}, // "malformed", "unknown_type", "unknown_action"
	)

	// Reconnects counts connection attempts after the first one.
	Reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "evomap",
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of stream reconnection attempts",
		},
	)

	// Connected is 1 while the stream is open.
	Connected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "evomap",
			Subsystem: "stream",
			Name:      "connected",
			Help:      "Whether the event stream is connected",
		},
	)

	// Nodes tracks the number of agents in the canonical state.
	Nodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "evomap",
			Subsystem: "graph",
			Name:      "nodes",
			Help:      "Number of agents in the canonical state",
		},
	)

	// Edges tracks the number of relationships in the canonical state.
	Edges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "evomap",
			Subsystem: "graph",
			Name:      "edges",
			Help:      "Number of relationships in the canonical state",
		},
	)

	// ActivityEntries counts derived activity entries by status.
	ActivityEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evomap",
			Subsystem: "activity",
			Name:      "entries_total",
			Help:      "Total number of activity entries derived",
		},
		[]string{"status"},
	)

	// SinkErrors counts failed deliveries to event sinks.
	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evomap",
			Subsystem: "dashboard",
			Name:      "sink_errors_total",
			Help:      "Total number of failed event sink deliveries",
		},
		[]string{"sink"},
	)
)
