// Package metrics holds the Prometheus metrics emitted by the proxy
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/relaygate/relaygate/internal/proxy"
)

// Metrics holds every metric the pipeline records. Pass to components
// that need to record metrics; construct once per process with NewMetrics
// against the registry the server exposes on /metrics.
type Metrics struct {
	PassInvocationsTotal *prometheus.CounterVec
	UpstreamDuration     *prometheus.HistogramVec
	ActiveUpgrades       prometheus.Gauge
	XFwdAppendsTotal     prometheus.Counter
	ProxyErrorsTotal     *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		PassInvocationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "relaygate",
				Name:      "pass_invocations_total",
				Help:      "Total pipeline pass invocations, by pass name and whether it short-circuited",
			},
			[]string{"pass", "short_circuited"},
		),
		UpstreamDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "relaygate",
				Name:      "upstream_duration_seconds",
				Help:      "Time spent waiting on the upstream response",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"}, // kind=web|ws
		),
		ActiveUpgrades: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "relaygate",
				Name:      "active_upgrades",
				Help:      "Number of currently spliced WebSocket tunnels",
			},
		),
		XFwdAppendsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "relaygate",
				Name:      "xfwd_appends_total",
				Help:      "Total x-forwarded-* header appends across both pipelines",
			},
		),
		ProxyErrorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "relaygate",
				Name:      "proxy_errors_total",
				Help:      "Total proxy errors, by error kind",
			},
			[]string{"kind"},
		),
	}
}

// ObservePass records one pass invocation.
func (m *Metrics) ObservePass(pass string, shortCircuited bool) {
	if m == nil {
		return
	}
	label := "false"
	if shortCircuited {
		label = "true"
	}
	m.PassInvocationsTotal.WithLabelValues(pass, label).Inc()
}

// ObserveError records one classified proxy error.
func (m *Metrics) ObserveError(kind string) {
	if m == nil {
		return
	}
	m.ProxyErrorsTotal.WithLabelValues(kind).Inc()
}

// WrapStage instruments a pass's Run function with PassInvocationsTotal,
// UpstreamDuration for the "stream" pass of either pipeline, ActiveUpgrades
// for the ws pipeline's "stream" pass, and XFwdAppendsTotal for each run
// of the "xHeaders" pass with XFwd enabled. Passed to Server.Instrument at
// construction time (see cmd/relaygate) rather than baking metrics into
// the pipeline core.
func (m *Metrics) WrapStage(pipelineKind, passName string, stage proxy.Stage) proxy.Stage {
	if m == nil {
		return stage
	}
	return func(ctx *proxy.Context) bool {
		if passName == "stream" && pipelineKind == "ws" {
			m.ActiveUpgrades.Inc()
			defer m.ActiveUpgrades.Dec()
		}
		if passName == "xHeaders" && ctx != nil && ctx.Options != nil && ctx.Options.XFwd {
			m.XFwdAppendsTotal.Inc()
		}
		timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
			if passName == "stream" {
				m.UpstreamDuration.WithLabelValues(pipelineKind).Observe(v)
			}
		}))
		shortCircuited := stage(ctx)
		timer.ObserveDuration()
		m.ObservePass(passName, shortCircuited)
		return shortCircuited
	}
}
