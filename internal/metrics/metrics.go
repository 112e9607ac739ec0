// Package metrics exposes the prometheus collectors of the complaint backend.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "civicshield"

// Metrics groups the collectors shared by the workflow components.
type Metrics struct {
	transitions    *prometheus.CounterVec
	pipelineRuns   *prometheus.CounterVec
	verdictSource  *prometheus.CounterVec
	verdictRetries prometheus.Counter
	escalations    prometheus.Counter
	queueDropped   prometheus.Counter
	notifications  *prometheus.CounterVec
	corpusRebuild  prometheus.Histogram
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Committed history entries by resulting status.",
		}, []string{"status"}),
		pipelineRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Analysis pipeline runs by outcome.",
		}, []string{"outcome"}),
		verdictSource: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Verdicts produced, by source (external or rules).",
		}, []string{"source"}),
		verdictRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdict_retries_total",
			Help:      "Retries of the external verdict service after HTTP 429.",
		}),
		escalations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Complaints escalated after a missed authority deadline.",
		}),
		queueDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_queue_full_total",
			Help:      "Jobs left to the reconciliation sweep because the queue was full.",
		}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications by channel and result.",
		}, []string{"channel", "result"}),
		corpusRebuild: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "corpus_rebuild_seconds",
			Help:      "Time spent rebuilding the IDF snapshot.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) PipelineRun(outcome string) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Verdict(source string) {
	if m == nil {
		return
	}
	m.verdictSource.WithLabelValues(source).Inc()
}

func (m *Metrics) VerdictRetry() {
	if m == nil {
		return
	}
	m.verdictRetries.Inc()
}

func (m *Metrics) Escalation() {
	if m == nil {
		return
	}
	m.escalations.Inc()
}

func (m *Metrics) QueueFull() {
	if m == nil {
		return
	}
	m.queueDropped.Inc()
}

func (m *Metrics) Notification(channel string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) CorpusRebuild(d time.Duration) {
	if m == nil {
		return
	}
	m.corpusRebuild.Observe(d.Seconds())
}
