// Package llm talks to an OpenAI-compatible Responses API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/deepresearch/internal/schema"
	"github.com/mohammad-safakhou/deepresearch/tools"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-5"
	DefaultTimeout = 120 * time.Second

	// Temperature is shared by every call of a run.
	Temperature = 1.0

	maxErrorBody = 4096
)

var tracer = otel.Tracer("deepresearch/llm")

var (
	ErrMissingAPIKey = errors.New("llm: api key is not configured")
	ErrMissingModel  = errors.New("llm: model is not configured")
)

// APIError is a non-success answer from the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("llm: response failed (%s): %s", e.Code, msg)
	}
	return fmt.Sprintf("llm: status %d: %s", e.StatusCode, msg)
}

type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Doer    Doer
}

// Client issues single requests with no retries.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    Doer
	logger  *slog.Logger
}

func New(opts Options, logger *slog.Logger) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, ErrMissingModel
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	doer := opts.Doer
	if doer == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		doer = &http.Client{Timeout: timeout}
	}
	return &Client{apiKey: key, baseURL: base, model: model, http: doer, logger: logger}, nil
}

func (c *Client) Model() string { return c.model }

// StructuredResult pairs the response with its concatenated output text.
type StructuredResult struct {
	Response *Response
	Text     string
}

// Structured requests output constrained to format. The text is returned
// as produced; decoding is the caller's concern.
func (c *Client) Structured(ctx context.Context, input []Item, format schema.Format) (*StructuredResult, error) {
	req := request{
		Model: c.model,
		Input: input,
		Text: &textParam{Format: formatParam{
			Type:   "json_schema",
			Name:   format.Name,
			Schema: format.Schema,
			Strict: true,
		}},
		Temperature: Temperature,
	}
	resp, err := c.create(ctx, "structured:"+format.Name, req)
	if err != nil {
		return nil, err
	}
	return &StructuredResult{Response: resp, Text: resp.OutputText()}, nil
}

// WithTools issues an unconstrained turn where the model may call any of defs.
func (c *Client) WithTools(ctx context.Context, input []Item, defs []tools.Definition) (*Response, error) {
	req := request{
		Model:       c.model,
		Input:       input,
		ToolChoice:  "auto",
		Temperature: Temperature,
	}
	for _, d := range defs {
		req.Tools = append(req.Tools, toolParam{
			Type:        "function",
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
			Strict:      false,
		})
	}
	return c.create(ctx, "tools", req)
}

func (c *Client) create(ctx context.Context, kind string, body request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "llm.responses")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.String("llm.kind", kind),
		attribute.Int("llm.input_items", len(body.Input)),
	)

	resp, err := c.post(ctx, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if resp.Usage != nil {
		span.SetAttributes(
			attribute.Int64("llm.input_tokens", resp.Usage.InputTokens),
			attribute.Int64("llm.output_tokens", resp.Usage.OutputTokens),
		)
	}
	c.logger.Debug("llm response", "kind", kind, "id", resp.ID, "status", resp.Status, "items", len(resp.Output))
	return resp, nil
}

func (c *Client) post(ctx context.Context, body request) (*Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: res.StatusCode, Body: string(raw)}
		var env struct {
			Error *errorObject `json:"error"`
		}
		if json.Unmarshal(raw, &env) == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return nil, apiErr
	}

	var out Response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Status == "failed" && out.Error != nil {
		return nil, &APIError{Code: out.Error.Code, Message: out.Error.Message}
	}
	return &out, nil
}
