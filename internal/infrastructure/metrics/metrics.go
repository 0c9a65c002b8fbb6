package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcome label values.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeTransport = "transport"
	OutcomeSkipped   = "skipped"
)

// Auth holds the collectors for the token lifecycle. A nil *Auth is valid
// and records nothing.
type Auth struct {
	RefreshTotal      *prometheus.CounterVec
	RefreshJoined     prometheus.Counter
	RefreshDuration   prometheus.Histogram
	RetryTotal        *prometheus.CounterVec
	InvalidationTotal *prometheus.CounterVec
	BreakerState      *prometheus.GaugeVec
}

// NewAuth creates the collectors and registers them on reg.
func NewAuth(reg prometheus.Registerer) *Auth {
	m := &Auth{
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "garagelink_token_refresh_total",
				Help: "Refresh flights by outcome (success, rejected, transport, skipped)",
			},
			[]string{"outcome"},
		),
		RefreshJoined: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "garagelink_token_refresh_joined_total",
				Help: "Refresh requests that joined an in-flight refresh instead of starting one",
			},
		),
		RefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "garagelink_token_refresh_duration_seconds",
				Help:    "Latency of refresh network calls",
				Buckets: prometheus.DefBuckets,
			},
		),
		RetryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "garagelink_auth_retry_total",
				Help: "Requests resubmitted after a 401, by result (retried, exhausted)",
			},
			[]string{"result"},
		),
		InvalidationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "garagelink_session_invalidation_total",
				Help: "Session invalidations by reason",
			},
			[]string{"reason"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "garagelink_circuit_breaker_state",
				Help: "Current state of the business circuit breaker (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.RefreshTotal,
			m.RefreshJoined,
			m.RefreshDuration,
			m.RetryTotal,
			m.InvalidationTotal,
			m.BreakerState,
		)
	}
	return m
}

func (m *Auth) ObserveRefresh(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(outcome).Inc()
	if seconds > 0 {
		m.RefreshDuration.Observe(seconds)
	}
}

func (m *Auth) ObserveJoin() {
	if m == nil {
		return
	}
	m.RefreshJoined.Inc()
}

func (m *Auth) ObserveRetry(result string) {
	if m == nil {
		return
	}
	m.RetryTotal.WithLabelValues(result).Inc()
}

func (m *Auth) ObserveInvalidation(reason string) {
	if m == nil {
		return
	}
	m.InvalidationTotal.WithLabelValues(reason).Inc()
}

func (m *Auth) SetBreakerState(name string, value float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(value)
}
