package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilTelemetryIsNoop(t *testing.T) {
	var tel *Telemetry
	tel.RecordLLMEvent(LLMEvent{Phase: "plan"})
	tel.RecordToolEvent(ToolEvent{Tool: "web_search"})
	tel.RecordSourceEvent(SourceEvent{Source: "brave"})
	tel.RecordRunEvent(RunEvent{Rounds: 1})
	if tel.Registry() != nil {
		t.Fatalf("nil telemetry should have no registry")
	}
	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from nil handler, got %d", rec.Code)
	}
}

func TestRecordSourceEvent(t *testing.T) {
	tel := New()
	tel.RecordSourceEvent(SourceEvent{Source: "brave", Outcome: OutcomeSuccess, Results: 4, Retried: true, Duration: time.Second})
	tel.RecordSourceEvent(SourceEvent{Source: "brave", Outcome: OutcomeSkipped})

	if got := testutil.ToFloat64(tel.searchResults); got != 4 {
		t.Fatalf("results = %v, want 4", got)
	}
	if got := testutil.ToFloat64(tel.searchRetries); got != 1 {
		t.Fatalf("retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(tel.searchRequests.WithLabelValues("brave", OutcomeSkipped)); got != 1 {
		t.Fatalf("skipped = %v, want 1", got)
	}
}

func TestRecordRunEvent(t *testing.T) {
	tel := New()
	tel.RecordRunEvent(RunEvent{Rounds: 3, StoppedEarly: true, Success: true})
	tel.RecordRunEvent(RunEvent{Rounds: 1, Success: false})

	expected := `
# HELP deepresearch_runs_total Completed research runs
# TYPE deepresearch_runs_total counter
deepresearch_runs_total{outcome="error",stopped_early="false"} 1
deepresearch_runs_total{outcome="success",stopped_early="true"} 1
`
	if err := testutil.GatherAndCompare(tel.Registry(), strings.NewReader(expected), "deepresearch_runs_total"); err != nil {
		t.Fatal(err)
	}
	if n := testutil.CollectAndCount(tel.rounds); n != 1 {
		t.Fatalf("rounds histogram series = %d, want 1", n)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	tel := New()
	tel.RecordLLMEvent(LLMEvent{Phase: "critique", Duration: 2 * time.Second, Success: true})

	srv := httptest.NewServer(tel.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `deepresearch_llm_requests_total{outcome="success",phase="critique"} 1`) {
		t.Fatalf("metrics output missing llm counter:\n%s", body)
	}
}
