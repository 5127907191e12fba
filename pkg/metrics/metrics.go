// Package metrics 提供 Prometheus 监控指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 平台连接指标
var (
	ConnectorRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "danmuji_connector_rooms",
		Help: "Number of rooms with a running worker",
	})

	ConnectorState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "danmuji_connector_state",
		Help: "Current worker state per room (see connector.State)",
	}, []string{"room_id"})

	ConnectorReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "danmuji_connector_reconnects_total",
		Help: "Reconnect attempts per room",
	}, []string{"room_id"})

	ConnectorFramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "danmuji_connector_frames_received_total",
		Help: "Decoded frames by kind",
	}, []string{"kind"})

	ConnectorDecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "danmuji_connector_decode_errors_total",
		Help: "Frame decode errors by kind",
	}, []string{"kind"})

	ConnectorHeartbeatFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "danmuji_connector_heartbeat_failures_total",
		Help: "Heartbeat send failures",
	})
)

// 事件总线指标
var (
	BusEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "danmuji_bus_events_published_total",
		Help: "Events published on the bus by kind",
	}, []string{"kind"})

	BusEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "danmuji_bus_events_dropped_total",
		Help: "Oldest events dropped for lagging subscribers",
	}, []string{"subscriber"})

	BusSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "danmuji_bus_subscribers",
		Help: "Current number of bus subscribers",
	})
)

// 下游指标
var (
	BridgeClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "danmuji_bridge_clients",
		Help: "Connected UI bridge websocket clients",
	})

	BridgeCloseReason = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "danmuji_bridge_close_total",
		Help: "Bridge client close count by reason",
	}, []string{"reason"})

	RepliesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "danmuji_replies_sent_total",
		Help: "Plugin replies handed to the reply sink",
	}, []string{"plugin"})

	RepliesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "danmuji_replies_dropped_total",
		Help: "Plugin replies dropped by reason",
	}, []string{"reason"})

	SinkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "danmuji_sink_failures_total",
		Help: "Sink write failures",
	}, []string{"sink"})

	PluginDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "danmuji_plugin_duration_seconds",
		Help:    "Plugin processing duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"plugin"})
)
