package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	triggered       *prom.CounterVec
	commandDuration *prom.HistogramVec
	commandResults  *prom.CounterVec
	vcsOperations   *prom.CounterVec
	buildOutcomes   *prom.CounterVec
	buildDuration   prom.Histogram
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		triggered: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsbuild",
			Name:      "builds_triggered_total",
			Help:      "Build trigger calls by result",
		}, []string{"result"}),
		commandDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docsbuild",
			Name:      "command_duration_seconds",
			Help:      "Duration of external commands by program",
			Buckets:   prom.DefBuckets,
		}, []string{"program"}),
		commandResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsbuild",
			Name:      "command_results_total",
			Help:      "External command results by program",
		}, []string{"program", "result"}),
		vcsOperations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsbuild",
			Name:      "vcs_operations_total",
			Help:      "Version-control operations by kind, operation and result",
		}, []string{"vcs", "op", "result"}),
		buildOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsbuild",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docsbuild",
			Name:      "build_duration_seconds",
			Help:      "Total worker build duration",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
	}
	reg.MustRegister(pr.triggered, pr.commandDuration, pr.commandResults, pr.vcsOperations, pr.buildOutcomes, pr.buildDuration)
	return pr
}

func (p *PrometheusRecorder) IncBuildTriggered(result TriggerResult) {
	p.triggered.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveCommand(program string, d time.Duration, success bool) {
	p.commandDuration.WithLabelValues(program).Observe(d.Seconds())
	p.commandResults.WithLabelValues(program, resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) IncVCSOperation(kind, op string, success bool) {
	p.vcsOperations.WithLabelValues(kind, op, resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcome) {
	p.buildOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
