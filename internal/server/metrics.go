package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "histview",
		Subsystem: "server",
		Name:      "mutations_total",
		Help:      "Store mutations requested over HTTP, by operation and status.",
	}, []string{"op", "status"})

	framesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "histview",
		Subsystem: "server",
		Name:      "frames_sent_total",
		Help:      "WebSocket frames sent, by type.",
	}, []string{"type"})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "histview",
		Subsystem: "server",
		Name:      "commands_total",
		Help:      "WebSocket client commands, by op and status.",
	}, []string{"op", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "histview",
		Subsystem: "server",
		Name:      "ws_connections_active",
		Help:      "Number of active WebSocket connections.",
	})
)
