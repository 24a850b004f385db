package mw

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Finish modes reported on reqtrace_spans_finished_total.
const (
	FinishSync     = "sync"
	FinishDeferred = "deferred"
	FinishCanceled = "canceled"
)

// Metrics counts request span lifecycles. A nil *Metrics records nothing.
type Metrics struct {
	started  prometheus.Counter
	finished *prometheus.CounterVec
	pending  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		started: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "reqtrace",
			Name:      "spans_started_total",
			Help:      "Request spans started.",
		}),
		finished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reqtrace",
			Name:      "spans_finished_total",
			Help:      "Request spans finished, by completion path.",
		}, []string{"mode"}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "reqtrace",
			Name:      "spans_deferred",
			Help:      "Streaming request spans waiting for their task to complete.",
		}),
	}
}

func (m *Metrics) spanStarted() {
	if m == nil {
		return
	}
	m.started.Inc()
}

func (m *Metrics) spanDeferred() {
	if m == nil {
		return
	}
	m.pending.Inc()
}

func (m *Metrics) spanFinished(mode string) {
	if m == nil {
		return
	}
	if mode == FinishDeferred {
		m.pending.Dec()
	}
	m.finished.WithLabelValues(mode).Inc()
}
