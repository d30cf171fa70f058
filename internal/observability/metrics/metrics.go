package metrics

import "github.com/prometheus/client_golang/prometheus"

// TriageMetrics exposes counters and histograms for the intake pipeline and
// the doctor review flow.
type TriageMetrics struct {
	submissionsTotal      *prometheus.CounterVec
	summarizationFailures *prometheus.CounterVec
	summarizationLatency  *prometheus.HistogramVec
	transitionsTotal      *prometheus.CounterVec
	alertsTotal           *prometheus.CounterVec
}

func NewTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	m := &TriageMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "intake",
			Name:      "submissions_total",
			Help:      "Triage submissions by outcome",
		}, []string{"outcome"}),
		summarizationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "summarizer",
			Name:      "failures_total",
			Help:      "Summarization failures by reason",
		}, []string{"reason"}),
		summarizationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "triage",
			Subsystem: "summarizer",
			Name:      "latency_seconds",
			Help:      "Latency of the text-generation call including parsing",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		}, []string{"result"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "review",
			Name:      "status_transitions_total",
			Help:      "Doctor status transitions by target status and result",
		}, []string{"status", "result"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "alerts",
			Name:      "urgent_total",
			Help:      "Urgent-case alerts by urgency and delivery result",
		}, []string{"urgency", "result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.summarizationFailures, m.summarizationLatency, m.transitionsTotal, m.alertsTotal)
	return m
}

// ObserveSubmission counts a finished submission: processed,
// saved_without_analysis or rejected.
func (m *TriageMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *TriageMetrics) ObserveSummarizationFailure(reason string) {
	if m == nil {
		return
	}
	m.summarizationFailures.WithLabelValues(reason).Inc()
}

func (m *TriageMetrics) ObserveSummarizationLatency(result string, seconds float64) {
	if m == nil {
		return
	}
	m.summarizationLatency.WithLabelValues(result).Observe(seconds)
}

func (m *TriageMetrics) ObserveStatusTransition(status, result string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(status, result).Inc()
}

func (m *TriageMetrics) ObserveAlert(urgency, result string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(urgency, result).Inc()
}
