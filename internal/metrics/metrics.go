// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sequencer"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records
// nothing, so components can be built without a registry in tests.
type Metrics struct {
	// Completion
	ProviderAttempts   *prometheus.CounterVec
	CompletionDuration *prometheus.HistogramVec

	// Conversation
	TurnsAppended    *prometheus.CounterVec
	RequestsRejected *prometheus.CounterVec

	// Live sessions
	LiveSessions prometheus.Gauge

	// Retention
	UsersExpired prometheus.Counter
}

// New registers the collectors with reg.
//
// Metrics:
//   - sequencer_provider_attempts_total{provider,outcome}
//   - sequencer_completion_duration_seconds{outcome}
//   - sequencer_turns_appended_total{role}
//   - sequencer_requests_rejected_total{reason}
//   - sequencer_live_sessions
//   - sequencer_users_expired_total
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProviderAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_attempts_total",
				Help:      "Completion attempts per provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		CompletionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "completion_duration_seconds",
				Help:      "Duration of a full completion including fallback",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"outcome"},
		),
		TurnsAppended: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_appended_total",
				Help:      "Conversation turns persisted by role",
			},
			[]string{"role"},
		),
		RequestsRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_rejected_total",
				Help:      "Chat requests rejected before completion",
			},
			[]string{"reason"}, // "validation", "rate_limited", "in_flight"
		),
		LiveSessions: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_sessions",
				Help:      "Open workspace WebSocket sessions",
			},
		),
		UsersExpired: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "users_expired_total",
				Help:      "Users whose conversation was removed by the retention sweep",
			},
		),
	}
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// ObserveAttempt records one provider attempt.
func (m *Metrics) ObserveAttempt(provider string, ok bool) {
	if m == nil {
		return
	}
	m.ProviderAttempts.WithLabelValues(provider, outcome(ok)).Inc()
}

// ObserveCompletion records the duration of a completion since start.
func (m *Metrics) ObserveCompletion(start time.Time, ok bool) {
	if m == nil {
		return
	}
	m.CompletionDuration.WithLabelValues(outcome(ok)).Observe(time.Since(start).Seconds())
}

// TurnAppended counts a persisted turn.
func (m *Metrics) TurnAppended(role string) {
	if m == nil {
		return
	}
	m.TurnsAppended.WithLabelValues(role).Inc()
}

// Rejected counts a request rejected for reason.
func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.RequestsRejected.WithLabelValues(reason).Inc()
}

// SessionOpened increments the live session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.LiveSessions.Inc()
}

// SessionClosed decrements the live session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.LiveSessions.Dec()
}

// Expired counts users removed by retention.
func (m *Metrics) Expired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.UsersExpired.Add(float64(n))
}
