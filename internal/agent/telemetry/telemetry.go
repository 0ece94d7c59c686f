package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by every event kind.
const (
	OutcomeSuccess        = "success"
	OutcomeError          = "error"
	OutcomeSkipped        = "skipped"
	OutcomeHTTPError      = "http_error"
	OutcomeTransportError = "transport_error"
	OutcomeDecodeError    = "decode_error"
	OutcomeUnknownTool    = "unknown_tool"
)

// Telemetry owns the Prometheus collectors for one process. A nil *Telemetry
// is valid and records nothing.
type Telemetry struct {
	registry       *prometheus.Registry
	llmRequests    *prometheus.CounterVec
	llmDuration    *prometheus.HistogramVec
	toolCalls      *prometheus.CounterVec
	searchRequests *prometheus.CounterVec
	searchRetries  prometheus.Counter
	searchResults  prometheus.Counter
	runs           *prometheus.CounterVec
	rounds         prometheus.Histogram
}

// LLMEvent represents one request to the model service.
type LLMEvent struct {
	Phase    string
	Duration time.Duration
	Success  bool
}

// ToolEvent represents one dispatched tool call.
type ToolEvent struct {
	Tool     string
	Outcome  string
	Duration time.Duration
}

// SourceEvent represents one search provider invocation.
type SourceEvent struct {
	Source    string
	StartTime time.Time
	Duration  time.Duration
	Outcome   string
	Results   int
	Retried   bool
}

// RunEvent summarises a finished research run.
type RunEvent struct {
	Rounds       int
	StoppedEarly bool
	Success      bool
}

// New registers the collectors in a fresh registry.
func New() *Telemetry {
	t := &Telemetry{
		registry: prometheus.NewRegistry(),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepresearch_llm_requests_total",
			Help: "Requests sent to the LLM service by loop phase",
		}, []string{"phase", "outcome"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deepresearch_llm_request_duration_seconds",
			Help:    "Latency of LLM service requests by loop phase",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"phase"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepresearch_tool_calls_total",
			Help: "Tool calls dispatched on behalf of the model",
		}, []string{"tool", "outcome"}),
		searchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepresearch_search_requests_total",
			Help: "Search provider invocations by outcome",
		}, []string{"source", "outcome"}),
		searchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deepresearch_search_retries_total",
			Help: "Search requests retried without optional parameters",
		}),
		searchResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deepresearch_search_results_total",
			Help: "Search results returned to the model",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepresearch_runs_total",
			Help: "Completed research runs",
		}, []string{"outcome", "stopped_early"}),
		rounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deepresearch_run_rounds",
			Help:    "Tool/critique rounds executed per run",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
	}
	t.registry.MustRegister(
		t.llmRequests, t.llmDuration, t.toolCalls,
		t.searchRequests, t.searchRetries, t.searchResults,
		t.runs, t.rounds,
	)
	return t
}

// Registry exposes the underlying registry, mainly for tests.
func (t *Telemetry) Registry() *prometheus.Registry {
	if t == nil {
		return nil
	}
	return t.registry
}

// Handler serves the collectors in the Prometheus text format.
func (t *Telemetry) Handler() http.Handler {
	if t == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

func (t *Telemetry) RecordLLMEvent(ev LLMEvent) {
	if t == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ev.Success {
		outcome = OutcomeError
	}
	t.llmRequests.WithLabelValues(ev.Phase, outcome).Inc()
	t.llmDuration.WithLabelValues(ev.Phase).Observe(ev.Duration.Seconds())
}

func (t *Telemetry) RecordToolEvent(ev ToolEvent) {
	if t == nil {
		return
	}
	t.toolCalls.WithLabelValues(ev.Tool, ev.Outcome).Inc()
}

func (t *Telemetry) RecordSourceEvent(ev SourceEvent) {
	if t == nil {
		return
	}
	t.searchRequests.WithLabelValues(ev.Source, ev.Outcome).Inc()
	if ev.Retried {
		t.searchRetries.Inc()
	}
	t.searchResults.Add(float64(ev.Results))
}

func (t *Telemetry) RecordRunEvent(ev RunEvent) {
	if t == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ev.Success {
		outcome = OutcomeError
	}
	early := "false"
	if ev.StoppedEarly {
		early = "true"
	}
	t.runs.WithLabelValues(outcome, early).Inc()
	if ev.Success {
		t.rounds.Observe(float64(ev.Rounds))
	}
}
