package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/internal/schema"
	"github.com/mohammad-safakhou/deepresearch/tools/web_search"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSearcher struct {
	queries []web_search.Query
	resp    web_search.Response
}

func (s *recordingSearcher) Search(_ context.Context, q web_search.Query) web_search.Response {
	s.queries = append(s.queries, q)
	if s.resp.Results == nil {
		return web_search.Empty()
	}
	return s.resp
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestDispatcher(s web_search.WebSearcher) *Dispatcher {
	return NewDispatcher(Handlers(s), WithDispatchLogger(quietLogger()))
}

func TestDefinitions(t *testing.T) {
	t.Parallel()
	defs := Definitions()
	require.Len(t, defs, 3)
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
		assert.NotEmpty(t, d.Description)
		assert.True(t, json.Valid(d.Parameters), d.Name)
	}
	assert.Equal(t, []string{"web_search", "http_fetch", "extract_text"}, names)

	var ws struct {
		Required   []string `json:"required"`
		Properties map[string]struct {
			Type    string `json:"type"`
			Default any    `json:"default"`
			Minimum any    `json:"minimum"`
			Maximum any    `json:"maximum"`
		} `json:"properties"`
		AdditionalProperties bool `json:"additionalProperties"`
	}
	require.NoError(t, json.Unmarshal(defs[0].Parameters, &ws))
	assert.Equal(t, []string{"query"}, ws.Required)
	assert.False(t, ws.AdditionalProperties)
	assert.Equal(t, "integer", ws.Properties["top_k"].Type)
	assert.EqualValues(t, 5, ws.Properties["top_k"].Default)
	assert.EqualValues(t, 1, ws.Properties["top_k"].Minimum)
	assert.EqualValues(t, 20, ws.Properties["top_k"].Maximum)
	assert.EqualValues(t, 3650, ws.Properties["recency_days"].Default)

	var et struct {
		Required   []string `json:"required"`
		Properties map[string]struct {
			Enum []string `json:"enum"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(defs[2].Parameters, &et))
	assert.ElementsMatch(t, []string{"content_base64", "content_type"}, et.Required)
	assert.Equal(t, []string{"html", "pdf", "text"}, et.Properties["content_type"].Enum)

	// Tool parameters are not strict: optional properties stay optional.
	assert.Error(t, schema.CheckStrict(defs[0].Parameters))
}

func TestParseKind(t *testing.T) {
	t.Parallel()
	k, ok := ParseKind("web_search")
	require.True(t, ok)
	assert.Equal(t, WebSearch, k)
	_, ok = ParseKind("shell")
	assert.False(t, ok)
}

func TestDispatchUnknownTool(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(&recordingSearcher{})
	for _, name := range []string{"shell", "http_fetch", "extract_text", ""} {
		out := d.Dispatch(context.Background(), name, json.RawMessage(`{"url":"https://x"}`))
		assert.JSONEq(t, `{"error":"Unknown tool: `+name+`"}`, string(out))
	}
	assert.Equal(t, []Kind{HTTPFetch, ExtractText}, d.Unimplemented())
}

func TestDispatchWebSearchDefaults(t *testing.T) {
	t.Parallel()
	s := &recordingSearcher{}
	d := newTestDispatcher(s)
	out := d.Dispatch(context.Background(), "web_search", json.RawMessage(`{"query":"q"}`))

	assert.JSONEq(t, `{"results":[]}`, string(out))
	require.Len(t, s.queries, 1)
	assert.Equal(t, web_search.Query{Query: "q", TopK: 5, RecencyDays: 3650}, s.queries[0])
}

func TestDispatchWebSearchFlexibleIntegers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		args     string
		wantTopK int
		wantDays int
	}{
		{"numbers", `{"query":"q","top_k":3,"recency_days":30}`, 3, 30},
		{"strings", `{"query":"q","top_k":"7","recency_days":" 14 "}`, 7, 14},
		{"fractions", `{"query":"q","top_k":2.9,"recency_days":6.5}`, 2, 6},
		{"null uses default", `{"query":"q","top_k":null}`, 5, 3650},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := &recordingSearcher{}
			d := newTestDispatcher(s)
			d.Dispatch(context.Background(), "web_search", json.RawMessage(tt.args))
			require.Len(t, s.queries, 1)
			assert.Equal(t, tt.wantTopK, s.queries[0].TopK)
			assert.Equal(t, tt.wantDays, s.queries[0].RecencyDays)
		})
	}
}

func TestDispatchArgumentErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args string
	}{
		{"malformed json", `{"query":`},
		{"not an object", `["q"]`},
		{"missing query", `{}`},
		{"empty arguments", ``},
		{"non-string query", `{"query":42}`},
		{"non-numeric top_k", `{"query":"q","top_k":"many"}`},
		{"boolean recency", `{"query":"q","recency_days":true}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := &recordingSearcher{}
			d := newTestDispatcher(s)
			out := d.Dispatch(context.Background(), "web_search", json.RawMessage(tt.args))

			var got map[string]string
			require.NoError(t, json.Unmarshal(out, &got))
			assert.Equal(t, "web_search", got["tool"])
			assert.NotEmpty(t, got["error"])
			assert.Empty(t, s.queries)
		})
	}
}

func TestDispatchHandlerErrorAndPanic(t *testing.T) {
	t.Parallel()
	tel := telemetry.New()
	d := NewDispatcher(map[Kind]Handler{
		WebSearch: func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("quota exceeded")
		},
		HTTPFetch: func(context.Context, map[string]any) (any, error) {
			panic("boom")
		},
		ExtractText: nil,
	}, WithDispatchLogger(quietLogger()), WithDispatchTelemetry(tel))

	out := d.Dispatch(context.Background(), "web_search", nil)
	assert.JSONEq(t, `{"error":"quota exceeded","tool":"web_search"}`, string(out))

	out = d.Dispatch(context.Background(), "http_fetch", json.RawMessage(`{"url":"u"}`))
	assert.JSONEq(t, `{"error":"boom","tool":"http_fetch"}`, string(out))

	out = d.Dispatch(context.Background(), "extract_text", nil)
	assert.JSONEq(t, `{"error":"Unknown tool: extract_text"}`, string(out))
	assert.Equal(t, []Kind{ExtractText}, d.Unimplemented())

	expected := `
# HELP deepresearch_tool_calls_total Tool calls dispatched on behalf of the model
# TYPE deepresearch_tool_calls_total counter
deepresearch_tool_calls_total{outcome="error",tool="http_fetch"} 1
deepresearch_tool_calls_total{outcome="error",tool="web_search"} 1
deepresearch_tool_calls_total{outcome="unknown_tool",tool="extract_text"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(tel.Registry(), strings.NewReader(expected), "deepresearch_tool_calls_total"))
}

func TestDispatchEncodesSearchResults(t *testing.T) {
	t.Parallel()
	s := &recordingSearcher{resp: web_search.Response{Results: []web_search.Result{
		{Title: "T", URL: "https://t.example", Snippet: "s", PublishedAt: "2024-01-01"},
	}}}
	out := newTestDispatcher(s).Dispatch(context.Background(), "web_search", json.RawMessage(`{"query":"q"}`))
	assert.JSONEq(t, `{"results":[{"title":"T","url":"https://t.example","snippet":"s","published_at":"2024-01-01"}]}`, string(out))
}
