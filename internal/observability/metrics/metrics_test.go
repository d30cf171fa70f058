package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, vec.WithLabelValues(labels...).Write(&metric))
	return metric.GetCounter().GetValue()
}

func TestTriageMetricsObserve(t *testing.T) {
	m := NewTriageMetrics(prometheus.NewRegistry())
	m.ObserveSubmission("processed")
	m.ObserveSubmission("processed")
	m.ObserveSubmission("saved_without_analysis")
	m.ObserveSummarizationFailure("timeout")
	m.ObserveSummarizationLatency("ok", 1.2)
	m.ObserveStatusTransition("in_review", "ok")
	m.ObserveAlert("emergency", "sent")

	assert.Equal(t, 2.0, counterValue(t, m.submissionsTotal, "processed"))
	assert.Equal(t, 1.0, counterValue(t, m.submissionsTotal, "saved_without_analysis"))
	assert.Equal(t, 1.0, counterValue(t, m.summarizationFailures, "timeout"))
	assert.Equal(t, 1.0, counterValue(t, m.transitionsTotal, "in_review", "ok"))
	assert.Equal(t, 1.0, counterValue(t, m.alertsTotal, "emergency", "sent"))
}

func TestTriageMetricsLatencyHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTriageMetrics(reg)
	m.ObserveSummarizationLatency("ok", 0.7)
	m.ObserveSummarizationLatency("ok", 3)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, fam := range families {
		if fam.GetName() != "triage_summarizer_latency_seconds" {
			continue
		}
		found = true
		require.Len(t, fam.GetMetric(), 1)
		assert.Equal(t, uint64(2), fam.GetMetric()[0].GetHistogram().GetSampleCount())
	}
	assert.True(t, found, "latency histogram not registered")
}

func TestTriageMetricsNilSafe(t *testing.T) {
	var m *TriageMetrics
	m.ObserveSubmission("processed")
	m.ObserveSummarizationFailure("empty")
	m.ObserveSummarizationLatency("error", 0.1)
	m.ObserveStatusTransition("completed", "rejected")
	m.ObserveAlert("urgent", "failed")
}
