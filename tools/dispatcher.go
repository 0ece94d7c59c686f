package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
)

// Handler executes one tool call. Args is the decoded argument object; the
// returned value is encoded as the tool output.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Dispatcher maps tool names to handlers. Dispatch never fails: unknown
// tools, bad arguments, handler errors and panics all become error payloads
// the model can read.
type Dispatcher struct {
	handlers  map[Kind]Handler
	logger    *slog.Logger
	telemetry *telemetry.Telemetry
}

type DispatcherOption func(*Dispatcher)

func WithDispatchLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithDispatchTelemetry(t *telemetry.Telemetry) DispatcherOption {
	return func(d *Dispatcher) { d.telemetry = t }
}

func NewDispatcher(handlers map[Kind]Handler, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{handlers: make(map[Kind]Handler, len(handlers)), logger: slog.Default()}
	for k, h := range handlers {
		if h != nil {
			d.handlers[k] = h
		}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Unimplemented lists advertised tools with no handler behind them.
func (d *Dispatcher) Unimplemented() []Kind {
	var out []Kind
	for _, k := range Kinds() {
		if _, ok := d.handlers[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

type errorResult struct {
	Error string `json:"error"`
	Tool  string `json:"tool,omitempty"`
}

// Dispatch runs the named tool and returns its JSON-encoded output.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, rawArgs json.RawMessage) json.RawMessage {
	start := time.Now()
	h, ok := d.handlers[Kind(name)]
	if !ok {
		d.logger.Warn("unknown tool requested", "tool", name)
		d.telemetry.RecordToolEvent(telemetry.ToolEvent{Tool: name, Outcome: telemetry.OutcomeUnknownTool, Duration: time.Since(start)})
		return encode(errorResult{Error: "Unknown tool: " + name})
	}

	out, err := d.invoke(ctx, h, rawArgs)
	outcome := telemetry.OutcomeSuccess
	var payload json.RawMessage
	if err == nil {
		payload, err = json.Marshal(out)
	}
	if err != nil {
		outcome = telemetry.OutcomeError
		d.logger.Warn("tool call failed", "tool", name, "error", err)
		payload = encode(errorResult{Error: err.Error(), Tool: name})
	}
	d.telemetry.RecordToolEvent(telemetry.ToolEvent{Tool: name, Outcome: outcome, Duration: time.Since(start)})
	d.logger.Debug("tool call finished", "tool", name, "outcome", outcome, "bytes", len(payload), "duration", time.Since(start))
	return payload
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, rawArgs json.RawMessage) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	args, err := decodeArgs(rawArgs)
	if err != nil {
		return nil, err
	}
	return h(ctx, args)
}

// decodeArgs parses the argument string the model produced. An empty string
// means no arguments.
func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func encode(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{"error":"unencodable tool result"}`)
	}
	return b
}
