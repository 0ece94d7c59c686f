// Package agent runs the research loop: one plan, up to max_iters tool and
// critique rounds, then a final report.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/internal/llm"
	"github.com/mohammad-safakhou/deepresearch/internal/schema"
	"github.com/mohammad-safakhou/deepresearch/tools"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxIters applies when no positive bound is configured.
const DefaultMaxIters = 6

var tracer trace.Tracer = otel.Tracer("deepresearch/internal/agent")

// Model is the LLM surface the loop needs. *llm.Client implements it.
type Model interface {
	Structured(ctx context.Context, input []llm.Item, format schema.Format) (*llm.StructuredResult, error)
	WithTools(ctx context.Context, input []llm.Item, defs []tools.Definition) (*llm.Response, error)
}

// Dispatcher executes tool calls. *tools.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args json.RawMessage) json.RawMessage
}

// Researcher runs the plan, tool round and critique loop for one topic at a
// time and renders the final report.
type Researcher struct {
	model        Model
	dispatcher   Dispatcher
	maxIters     int
	tools        []tools.Definition
	systemPrompt string
	logger       *slog.Logger
	telemetry    *telemetry.Telemetry
}

// Option configures a Researcher.
type Option func(*Researcher)

// WithMaxIters bounds the number of tool/critique rounds. Values below one
// fall back to DefaultMaxIters.
func WithMaxIters(n int) Option {
	return func(r *Researcher) {
		if n < 1 {
			n = DefaultMaxIters
		}
		r.maxIters = n
	}
}

// WithLogger sets the run logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(r *Researcher) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTools replaces the advertised tool list.
func WithTools(defs []tools.Definition) Option {
	return func(r *Researcher) { r.tools = defs }
}

// WithTelemetry records model calls and run outcomes on t.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(r *Researcher) { r.telemetry = t }
}

// WithSystemPrompt overrides SystemPrompt. Empty strings are ignored.
func WithSystemPrompt(p string) Option {
	return func(r *Researcher) {
		if p != "" {
			r.systemPrompt = p
		}
	}
}

// New returns a Researcher that drives model and executes its tool calls
// through dispatcher.
func New(model Model, dispatcher Dispatcher, opts ...Option) *Researcher {
	r := &Researcher{
		model:        model,
		dispatcher:   dispatcher,
		maxIters:     DefaultMaxIters,
		tools:        tools.Definitions(),
		systemPrompt: SystemPrompt,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Researcher) MaxIters() int { return r.maxIters }

// Stats describes how a run went. It is not part of the serialized result.
type Stats struct {
	RunID        string
	Rounds       int
	Sufficient   bool
	StoppedEarly bool
	ToolCalls    int
	MemoryLen    int
	Duration     time.Duration
}

// Result holds the decoded report, or the raw report text when it did not
// decode.
type Result struct {
	Report *schema.Report
	Raw    string
	Stats  Stats
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.Report != nil {
		return json.Marshal(r.Report)
	}
	return json.Marshal(struct {
		Raw string `json:"raw"`
	}{r.Raw})
}

// Run researches topic. Only a failing model call aborts it; tool failures
// and undecodable critiques are absorbed into the transcript.
func (r *Researcher) Run(ctx context.Context, topic string) (_ *Result, err error) {
	stats := Stats{RunID: uuid.NewString()}
	logger := r.logger.With("run_id", stats.RunID)
	start := time.Now()

	ctx, span := tracer.Start(ctx, "research.run", trace.WithAttributes(
		attribute.String("research.run_id", stats.RunID),
		attribute.Int("research.max_iters", r.maxIters),
	))
	defer span.End()
	defer func() {
		r.telemetry.RecordRunEvent(telemetry.RunEvent{Rounds: stats.Rounds, StoppedEarly: stats.StoppedEarly, Success: err == nil})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("research failed", "error", err, "rounds", stats.Rounds)
		}
	}()

	logger.Info("starting research", "topic", topic, "max_iters", r.maxIters)
	mem := NewMemory(
		llm.Message("system", r.systemPrompt),
		llm.Message("user", planInstruction(topic)),
	)

	logger.Info("generating initial search plan")
	planText, err := r.structured(ctx, PhasePlan, 0, mem.Items(), schema.PlanFormat)
	if err != nil {
		return nil, err
	}
	logger.Debug("plan output", "text", planText)
	mem.Append(llm.Message("assistant", planText))

	for round := 1; round <= r.maxIters; round++ {
		logger.Info("iteration", "round", round, "max_iters", r.maxIters)
		stats.Rounds = round
		calls, err := r.toolRound(ctx, logger, mem, round)
		stats.ToolCalls += calls
		if err != nil {
			return nil, err
		}

		logger.Info("critiquing evidence sufficiency", "round", round)
		text, err := r.structured(ctx, PhaseCritique, round, mem.With(llm.Message("user", critiqueInstruction)), schema.CritiqueFormat)
		if err != nil {
			return nil, err
		}
		logger.Debug("critique output", "text", text)
		mem.Append(llm.Message("assistant", text))

		critique, perr := schema.Decode[schema.Critique](text)
		if perr != nil {
			logger.Warn("critique output did not decode", "round", round, "error", &ParseError{Phase: PhaseCritique, Text: text, Err: perr})
			continue
		}
		if critique.Sufficient {
			stats.Sufficient = true
			stats.StoppedEarly = round < r.maxIters
			logger.Info("evidence judged sufficient, stopping", "round", round, "gaps", len(critique.Gaps))
			break
		}
	}

	logger.Info("producing final report", "rounds", stats.Rounds)
	reportText, err := r.structured(ctx, PhaseReport, 0, mem.With(llm.Message("user", reportInstruction)), schema.ReportFormat)
	if err != nil {
		return nil, err
	}
	logger.Debug("report output", "text", reportText)

	stats.MemoryLen = mem.Len()
	stats.Duration = time.Since(start)
	res := &Result{Stats: stats}
	report, perr := schema.Decode[schema.Report](reportText)
	if perr != nil {
		logger.Warn("report output did not decode, returning raw text", "error", &ParseError{Phase: PhaseReport, Text: reportText, Err: perr})
		res.Raw = reportText
	} else {
		res.Report = &report
	}
	span.SetAttributes(
		attribute.Int("research.rounds", stats.Rounds),
		attribute.Int("research.tool_calls", stats.ToolCalls),
		attribute.Bool("research.stopped_early", stats.StoppedEarly),
	)
	logger.Info("research finished", "rounds", stats.Rounds, "tool_calls", stats.ToolCalls, "memory_len", stats.MemoryLen, "duration", stats.Duration)
	return res, nil
}

func (r *Researcher) structured(ctx context.Context, phase string, round int, input []llm.Item, format schema.Format) (string, error) {
	ctx, span := tracer.Start(ctx, "research."+phase, trace.WithAttributes(
		attribute.String("research.format", format.Name),
		attribute.Int("research.round", round),
		attribute.Int("research.input_items", len(input)),
	))
	defer span.End()

	start := time.Now()
	res, err := r.model.Structured(ctx, input, format)
	r.telemetry.RecordLLMEvent(telemetry.LLMEvent{Phase: phase, Duration: time.Since(start), Success: err == nil})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", &PhaseError{Phase: phase, Round: round, Err: err}
	}
	if res == nil {
		return "", nil
	}
	return res.Text, nil
}

// toolRound runs one unconstrained turn and dispatches its calls in order.
// The model's items go into memory first, then one output per call.
func (r *Researcher) toolRound(ctx context.Context, logger *slog.Logger, mem *Memory, round int) (int, error) {
	ctx, span := tracer.Start(ctx, "research."+PhaseToolRound, trace.WithAttributes(
		attribute.Int("research.round", round),
		attribute.Int("research.input_items", mem.Len()),
	))
	defer span.End()

	start := time.Now()
	resp, err := r.model.WithTools(ctx, mem.Items(), r.tools)
	r.telemetry.RecordLLMEvent(telemetry.LLMEvent{Phase: PhaseToolRound, Duration: time.Since(start), Success: err == nil})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, &PhaseError{Phase: PhaseToolRound, Round: round, Err: err}
	}
	if resp == nil {
		resp = &llm.Response{}
	}

	calls := resp.FunctionCalls()
	outputs := make([]llm.Item, 0, len(calls))
	for _, call := range calls {
		logger.Info("tool call requested", "tool", call.Name, "call_id", call.CallID)
		logger.Debug("tool args", "tool", call.Name, "args", string(call.Arguments))
		out := r.dispatcher.Dispatch(ctx, call.Name, call.Arguments)
		logger.Debug("tool result", "tool", call.Name, "result", string(out))
		outputs = append(outputs, llm.FunctionCallOutput(call.CallID, out))
	}

	mem.Append(resp.Items()...)
	if len(outputs) == 0 {
		logger.Info("no tool calls this round", "round", round)
	} else {
		mem.Append(outputs...)
	}
	span.SetAttributes(attribute.Int("research.tool_calls", len(calls)))
	return len(calls), nil
}
