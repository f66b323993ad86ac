package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the counters exported on /metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	webhookEvents *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	deliveryCodes *prometheus.CounterVec
}

// New registers the bot counters on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_webhook_events_total",
			Help: "Inbound webhook events by routing outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_order_transitions_total",
			Help: "Applied order status transitions.",
		}, []string{"from", "to"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_notifications_total",
			Help: "Outbound notifications by result.",
		}, []string{"result"}),
		deliveryCodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_delivery_codes_total",
			Help: "Delivery code generations by mode.",
		}, []string{"mode"}),
	}
	reg.MustRegister(m.webhookEvents, m.transitions, m.notifications, m.deliveryCodes)
	return m
}

// Event counts a routed webhook event
func (m *Metrics) Event(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

// Transition counts an applied order transition
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// Notification counts an outbound send attempt
func (m *Metrics) Notification(ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.notifications.WithLabelValues(result).Inc()
}

// DeliveryCode counts a generated delivery code; degraded marks the
// time-derived fallback.
func (m *Metrics) DeliveryCode(degraded bool) {
	if m == nil {
		return
	}
	mode := "random"
	if degraded {
		mode = "degraded"
	}
	m.deliveryCodes.WithLabelValues(mode).Inc()
}
