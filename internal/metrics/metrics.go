// Package metrics provides Prometheus collectors and the HTTP handler for
// exporting chat and notification runtime metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total messages persisted, by message type",
		},
		[]string{"type"},
	)
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_published_total",
			Help: "Total live events fanned out, by event name",
		},
		[]string{"event"},
	)
	ConnectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connected_clients",
			Help: "Currently connected WebSocket clients",
		},
	)
	NotificationsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Total per-channel dispatch attempts, by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
	ScheduledSweeps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_scheduled_sweeps_total",
			Help: "Total scheduled-notification sweep passes",
		},
	)
)

func init() {
	prometheus.MustRegister(
		MessagesSent,
		EventsPublished,
		ConnectedClients,
		NotificationsDispatched,
		ScheduledSweeps,
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
