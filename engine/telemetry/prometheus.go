package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusExporter mirrors each step label's Snapshot into gauge
// vectors, for pipelines run as a long-lived service rather than a
// one-shot batch.
type PrometheusExporter struct {
	registry *Registry
	units    *prometheus.GaugeVec
	tokens   *prometheus.GaugeVec
	latency  *prometheus.GaugeVec
}

func NewPrometheusExporter(registry *Registry, reg prometheus.Registerer) *PrometheusExporter {
	e := &PrometheusExporter{
		registry: registry,
		units: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fmf",
			Name:      "units_total",
			Help:      "Execution units processed per step, by outcome.",
		}, []string{"label", "outcome"}),
		tokens: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fmf",
			Name:      "tokens_total",
			Help:      "Tokens consumed per step, by kind.",
		}, []string{"label", "kind"}),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fmf",
			Name:      "latency_ms_total",
			Help:      "Accumulated inference latency per step, in milliseconds.",
		}, []string{"label"}),
	}
	if reg != nil {
		reg.MustRegister(e.units, e.tokens, e.latency)
	}
	return e
}

// Collect re-derives every gauge from the current Registry snapshot. It
// is cheap enough to call on a scrape handler directly.
func (e *PrometheusExporter) Collect() {
	for _, s := range e.registry.Snapshot() {
		e.units.WithLabelValues(s.Label, "started").Set(float64(s.UnitsStarted))
		e.units.WithLabelValues(s.Label, "succeeded").Set(float64(s.UnitsSucceeded))
		e.units.WithLabelValues(s.Label, "failed").Set(float64(s.UnitsFailed))
		e.units.WithLabelValues(s.Label, "retried").Set(float64(s.RetriesAttempted))
		e.tokens.WithLabelValues(s.Label, "prompt").Set(float64(s.PromptTokens))
		e.tokens.WithLabelValues(s.Label, "completion").Set(float64(s.CompletionTokens))
		e.latency.WithLabelValues(s.Label).Set(float64(s.TotalLatencyMS))
	}
}
