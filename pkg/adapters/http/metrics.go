package http

import (
	"github.com/aretw0/thicket/internal/refactor"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what the API did.
type Metrics struct {
	resolutions *prometheus.CounterVec
	problems    *prometheus.CounterVec
	refactors   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thicket_resolutions_total",
				Help: "Total number of resolved templates",
			},
			[]string{"workflow"},
		),
		problems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thicket_resolution_problems_total",
				Help: "Directive level problems met while resolving",
			},
			[]string{"kind"},
		),
		refactors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thicket_refactor_writes_total",
				Help: "File writes performed by refactors",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "thicket_http_request_duration_seconds",
				Help:    "Duration of API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "code"},
		),
	}
	reg.MustRegister(m.resolutions, m.problems, m.refactors, m.duration)
	return m
}

func (m *Metrics) observeResolution(res *domain.ResolvedPrompt) {
	m.resolutions.WithLabelValues(string(res.Workflow)).Inc()
	for _, p := range res.Problems {
		m.problems.WithLabelValues(string(p.Kind)).Inc()
	}
}

func (m *Metrics) observeReport(report *refactor.Report) {
	if report == nil {
		return
	}
	for _, o := range report.Outcomes {
		outcome := "ok"
		if !o.OK() {
			outcome = "failed"
		}
		m.refactors.WithLabelValues(report.Operation, outcome).Inc()
	}
}
