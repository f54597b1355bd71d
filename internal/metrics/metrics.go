package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the console's own operational counters. Every component
// accepts a nil *Metrics, in which case accounting is skipped.
type Metrics struct {
	reconnectAttempts  prometheus.Counter
	channelFallbacks   prometheus.Counter
	alertsReceived     prometheus.Counter
	alertsResolved     prometheus.Counter
	notificationsShown prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		reconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "machwatch_channel_reconnect_attempts_total",
			Help: "Live channel connection attempts that failed.",
		}),
		channelFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "machwatch_channel_fallbacks_total",
			Help: "Times the live channel was replaced by the local stub.",
		}),
		alertsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "machwatch_alerts_received_total",
			Help: "Alerts ingested from any source.",
		}),
		alertsResolved: factory.NewCounter(prometheus.CounterOpts{
			Name: "machwatch_alerts_resolved_total",
			Help: "Alerts resolved through the console.",
		}),
		notificationsShown: factory.NewCounter(prometheus.CounterOpts{
			Name: "machwatch_notifications_shown_total",
			Help: "Alert notifications surfaced to the operator.",
		}),
	}
}

func (m *Metrics) IncReconnectAttempts() {
	if m != nil {
		m.reconnectAttempts.Inc()
	}
}

func (m *Metrics) IncChannelFallbacks() {
	if m != nil {
		m.channelFallbacks.Inc()
	}
}

func (m *Metrics) IncAlertsReceived() {
	if m != nil {
		m.alertsReceived.Inc()
	}
}

func (m *Metrics) IncAlertsResolved() {
	if m != nil {
		m.alertsResolved.Inc()
	}
}

func (m *Metrics) IncNotificationsShown() {
	if m != nil {
		m.notificationsShown.Inc()
	}
}
