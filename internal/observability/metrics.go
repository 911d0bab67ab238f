package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	bridgeCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpv2",
			Subsystem: "bridge",
			Name:      "commands_total",
			Help:      "Commands issued to the host, by terminal outcome.",
		},
		[]string{"opcode", "outcome"},
	)
	bridgeCommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcpv2",
			Subsystem: "bridge",
			Name:      "command_duration_seconds",
			Help:      "Round-trip time from send to reassembled response.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"opcode"},
	)
	bridgeFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpv2",
			Subsystem: "bridge",
			Name:      "frames_total",
			Help:      "Response frames taken off the datagram channel, by outcome.",
		},
		[]string{"outcome"},
	)
	bridgeTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mcpv2",
			Subsystem: "bridge",
			Name:      "timeouts_total",
			Help:      "Requests that expired before a complete response.",
		},
	)
	bridgeReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mcpv2",
			Subsystem: "bridge",
			Name:      "reconnects_total",
			Help:      "Socket-pair reconnection attempts.",
		},
	)
	hostHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpv2",
			Subsystem: "host",
			Name:      "commands_total",
			Help:      "Commands handled by the host runtime, by status.",
		},
		[]string{"opcode", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			bridgeCommands, bridgeCommandDuration, bridgeFrames,
			bridgeTimeouts, bridgeReconnects, hostHandled,
		)
	})
}

func RecordCommand(opcode, outcome string, duration time.Duration) {
	RegisterMetrics()
	bridgeCommands.WithLabelValues(opcode, outcome).Inc()
	bridgeCommandDuration.WithLabelValues(opcode).Observe(duration.Seconds())
}

func RecordFrame(outcome string) {
	RegisterMetrics()
	bridgeFrames.WithLabelValues(outcome).Inc()
}

func RecordTimeout() {
	RegisterMetrics()
	bridgeTimeouts.Inc()
}

func RecordReconnect() {
	RegisterMetrics()
	bridgeReconnects.Inc()
}

func RecordHostCommand(opcode, status string) {
	RegisterMetrics()
	hostHandled.WithLabelValues(opcode, status).Inc()
}
