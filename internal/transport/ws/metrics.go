package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Subsystem: "relay",
		Name:      "active_connections",
		Help:      "Live websocket connections held by the registry.",
	})

	inboundEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Subsystem: "relay",
		Name:      "inbound_events_total",
		Help:      "Inbound events by type, including rejected ones.",
	}, []string{"event"})

	droppedDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Subsystem: "relay",
		Name:      "dropped_deliveries_total",
		Help:      "Events skipped because a handle was dead or backed up.",
	})
)
