package metrics

import "github.com/prometheus/client_golang/prometheus"

// WidgetMetrics exposes counters/histograms for widget conversations.
type WidgetMetrics struct {
	userTurnsTotal   prometheus.Counter
	openWidgets      prometheus.Gauge
	backendTotal     *prometheus.CounterVec
	backendLatency   prometheus.Histogram
	nudgesTotal      prometheus.Counter
	phoneSubmissions *prometheus.CounterVec
}

func NewWidgetMetrics(reg prometheus.Registerer) *WidgetMetrics {
	m := &WidgetMetrics{
		userTurnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinicwidget",
			Subsystem: "conversation",
			Name:      "user_turns_total",
			Help:      "Total user-authored turns across widget instances",
		}),
		openWidgets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinicwidget",
			Subsystem: "conversation",
			Name:      "open_widgets",
			Help:      "Widget instances currently in the open state",
		}),
		backendTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicwidget",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Chat backend calls by outcome",
		}, []string{"status"}),
		backendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinicwidget",
			Subsystem: "backend",
			Name:      "latency_seconds",
			Help:      "Latency of chat backend calls",
			Buckets:   prometheus.DefBuckets,
		}),
		nudgesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinicwidget",
			Subsystem: "conversation",
			Name:      "nudges_total",
			Help:      "Idle nudges shown to visitors",
		}),
		phoneSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicwidget",
			Subsystem: "phone",
			Name:      "submissions_total",
			Help:      "Phone capture submissions by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.userTurnsTotal, m.openWidgets, m.backendTotal, m.backendLatency, m.nudgesTotal, m.phoneSubmissions)
	return m
}

func (m *WidgetMetrics) ObserveUserTurn() {
	if m == nil {
		return
	}
	m.userTurnsTotal.Inc()
}

func (m *WidgetMetrics) ObserveOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.openWidgets.Inc()
	} else {
		m.openWidgets.Dec()
	}
}

func (m *WidgetMetrics) ObserveBackend(status string, seconds float64) {
	if m == nil {
		return
	}
	m.backendTotal.WithLabelValues(status).Inc()
	m.backendLatency.Observe(seconds)
}

func (m *WidgetMetrics) ObserveNudge() {
	if m == nil {
		return
	}
	m.nudgesTotal.Inc()
}

func (m *WidgetMetrics) ObservePhoneSubmission(accepted bool) {
	if m == nil {
		return
	}
	label := "rejected"
	if accepted {
		label = "accepted"
	}
	m.phoneSubmissions.WithLabelValues(label).Inc()
}
