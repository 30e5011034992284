// Package metrics exposes the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	sessionsStarted   prometheus.Counter
	sessionsSubmitted *prometheus.CounterVec
	questionFetches   *prometheus.CounterVec
	fetchRetries      prometheus.Counter
	activeSessions    prometheus.Gauge
	correctAnswers    prometheus.Histogram
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_sessions_started_total",
			Help: "Quiz sessions created.",
		}),
		sessionsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_sessions_submitted_total",
			Help: "Quiz sessions finalized, by submission reason.",
		}, []string{"reason"}),
		questionFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_question_fetch_total",
			Help: "Question batch fetches, by outcome.",
		}, []string{"outcome"}),
		fetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_question_fetch_retries_total",
			Help: "Provider requests retried after rate limiting.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quiz_active_sessions",
			Help: "Sessions currently held in memory.",
		}),
		correctAnswers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiz_correct_answers",
			Help:    "Correct answers per submitted session.",
			Buckets: prometheus.LinearBuckets(0, 3, 11),
		}),
	}
	reg.MustRegister(
		m.sessionsStarted,
		m.sessionsSubmitted,
		m.questionFetches,
		m.fetchRetries,
		m.activeSessions,
		m.correctAnswers,
	)
	return m
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *Metrics) SessionSubmitted(reason string, correct int) {
	if m == nil {
		return
	}
	m.sessionsSubmitted.WithLabelValues(reason).Inc()
	m.correctAnswers.Observe(float64(correct))
}

func (m *Metrics) QuestionFetch(outcome string) {
	if m == nil {
		return
	}
	m.questionFetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) QuestionFetchRetry() {
	if m == nil {
		return
	}
	m.fetchRetries.Inc()
}
