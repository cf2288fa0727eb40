package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncBuildTriggered(TriggerDispatched)
	pr.IncBuildTriggered(TriggerSkipped)
	pr.IncBuildTriggered(TriggerSkipped)
	pr.ObserveCommand("bzr", 150*time.Millisecond, true)
	pr.ObserveCommand("bzr", 10*time.Millisecond, false)
	pr.IncVCSOperation("git", "clone", true)
	pr.IncBuildOutcome(OutcomeSuccess)
	pr.ObserveBuildDuration(3 * time.Second)

	if got := counterValue(t, pr.triggered.WithLabelValues("skipped")); got != 2 {
		t.Fatalf("expected 2 skipped triggers, got %v", got)
	}
	if got := counterValue(t, pr.commandResults.WithLabelValues("bzr", "failed")); got != 1 {
		t.Fatalf("expected 1 failed bzr command, got %v", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncBuildOutcome(OutcomeFailed)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "docsbuild_build_outcomes_total") {
		t.Fatalf("expected build outcome metric in body")
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopRecorder); !ok {
		t.Fatalf("expected NoopRecorder for nil")
	}
	pr := NewPrometheusRecorder(nil)
	if OrNoop(pr) != Recorder(pr) {
		t.Fatalf("expected recorder passthrough")
	}
}

func counterValue(t *testing.T, c prom.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
