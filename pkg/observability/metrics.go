package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// Metrics exposes engine activity as Prometheus collectors. Wire it into an
// engine via Hooks(); serve it with promhttp.
type Metrics struct {
	sessionsStarted prometheus.Counter
	sessionsEnded   *prometheus.CounterVec
	steps           *prometheus.CounterVec
	retries         *prometheus.CounterVec
	stepLatency     *prometheus.HistogramVec
}

// NewMetrics builds and registers the collectors. A nil registerer uses the
// Prometheus default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guide_sessions_started_total",
			Help: "Sessions started.",
		}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guide_sessions_ended_total",
			Help: "Sessions that reached a terminal status.",
		}, []string{"status"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guide_steps_total",
			Help: "Step execution attempts by kind and outcome.",
		}, []string{"kind", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guide_retries_total",
			Help: "Scheduled re-attempts by step.",
		}, []string{"step"}),
		stepLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guide_step_latency_seconds",
			Help:    "Step attempt latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	reg.MustRegister(m.sessionsStarted, m.sessionsEnded, m.steps, m.retries, m.stepLatency)
	return m
}

// Hooks returns engine hooks feeding these collectors.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnSessionStart: func(ctx context.Context, e *domain.SessionEvent) {
			m.sessionsStarted.Inc()
		},
		OnSessionEnd: func(ctx context.Context, e *domain.SessionEvent) {
			m.sessionsEnded.WithLabelValues(string(e.Status)).Inc()
		},
		OnStepEnd: func(ctx context.Context, e *domain.StepEvent) {
			if e.Result == nil {
				return
			}
			m.steps.WithLabelValues(string(e.Kind), string(e.Result.Outcome)).Inc()
			m.stepLatency.WithLabelValues(string(e.Kind)).Observe(e.Result.Latency.Seconds())
		},
		OnRetry: func(ctx context.Context, e *domain.RetryEvent) {
			m.retries.WithLabelValues(e.Step).Inc()
		},
	}
}
