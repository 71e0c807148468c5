package dispatch

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shenikar/accident_dispatch_system/internal/models"
)

// Значения метки result
const (
	ResultOK                 = "ok"
	ResultTimeout            = "timeout"
	ResultLocatorUnavailable = "locator_unavailable"
	ResultError              = "error"
)

// PromRecorder пишет итоги диспетчеризации в метрики Prometheus
type PromRecorder struct {
	attempts *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewPromRecorder регистрирует метрики в reg (nil - регистратор по умолчанию).
// Уже зарегистрированные коллекторы переиспользуются.
func NewPromRecorder(reg prometheus.Registerer) (*PromRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_attempts_total",
		Help: "Total number of per-target dispatch attempts",
	}, []string{"channel", "category", "outcome"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_runs_total",
		Help: "Total number of dispatch runs",
	}, []string{"result"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_duration_seconds",
		Help:    "Duration of a dispatch run",
		Buckets: prometheus.DefBuckets,
	})

	if err := reg.Register(attempts); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		attempts = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(runs); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		runs = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(duration); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		duration = are.ExistingCollector.(prometheus.Histogram)
	}

	return &PromRecorder{attempts: attempts, runs: runs, duration: duration}, nil
}

func (p *PromRecorder) Record(_ context.Context, report models.DispatchReport, err error) {
	for _, a := range report.Attempts {
		p.attempts.WithLabelValues(string(a.Channel), string(a.Category), string(a.Outcome)).Inc()
	}
	p.runs.WithLabelValues(resultLabel(err)).Inc()
	if !report.FinishedAt.IsZero() {
		p.duration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, models.ErrOrchestrationTimeout):
		return ResultTimeout
	case errors.Is(err, models.ErrLocatorUnavailable):
		return ResultLocatorUnavailable
	default:
		return ResultError
	}
}
