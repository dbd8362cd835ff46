package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xela07ax/agentflow-prototype/internal/domain"
)

type Metrics struct {
	// Latency: длительность прогона целиком
	RunDuration *prometheus.HistogramVec

	// Traffic: действия по агентам и исходам
	ActionsTotal *prometheus.CounterVec

	// Retries: сколько раз шаг уходил на повтор
	RetriesTotal *prometheus.CounterVec

	// Replans: пересчеты плана посреди прогона
	ReplansTotal prometheus.Counter

	// Saturation: состояние Circuit Breaker (0 - ок, 1 - выбило, 0.5 - half-open)
	CircuitBreakerState *prometheus.GaugeVec

	// Audit: заполненность буфера персистентности (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RunDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Histogram of full run latencies.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"status"}),

		ActionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_actions_total",
			Help: "Total number of executed actions.",
		}, []string{"agent_id", "status"}),

		RetriesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_retries_total",
			Help: "Total number of step retry attempts.",
		}, []string{"agent_id"}),

		ReplansTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pipeline_replans_total",
			Help: "Total number of mid-run replans.",
		}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "pipeline_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 0.5=half-open, 1=open).",
		}, []string{"agent_id"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_audit_buffer_utilization",
			Help: "Current number of events in audit writer buffer.",
		}),
	}
}

// ObserveBreakerState — хук для breaker.Registry: переводит состояние в гейдж.
func (m *Metrics) ObserveBreakerState(agentID string, state domain.BreakerState) {
	var v float64
	switch state {
	case domain.BreakerOpen:
		v = 1
	case domain.BreakerHalfOpen:
		v = 0.5
	}
	m.CircuitBreakerState.WithLabelValues(agentID).Set(v)
}
