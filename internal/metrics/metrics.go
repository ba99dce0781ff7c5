package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tutormula"

// Metrics holds the application counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	updates         *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	dailyReports    *prometheus.CounterVec
	flowCompletions *prometheus.CounterVec
}

// New creates the counters and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Inbound chat updates by handling result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Parent session notifications by delivery result.",
		}, []string{"result"}),
		dailyReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daily_reports_total",
			Help:      "Daily parent digests by delivery result.",
		}, []string{"result"}),
		flowCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_completions_total",
			Help:      "Completed conversation flows.",
		}, []string{"flow"}),
	}
	reg.MustRegister(m.updates, m.notifications, m.dailyReports, m.flowCompletions)
	return m
}

// Update counts one inbound update; result is "ok", "error", "limited" or "busy"
func (m *Metrics) Update(result string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(result).Inc()
}

// Notification counts one parent notification attempt
func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

// DailyReport counts one digest attempt
func (m *Metrics) DailyReport(result string) {
	if m == nil {
		return
	}
	m.dailyReports.WithLabelValues(result).Inc()
}

// FlowCompleted counts a finalized flow
func (m *Metrics) FlowCompleted(flow string) {
	if m == nil {
		return
	}
	m.flowCompletions.WithLabelValues(flow).Inc()
}
