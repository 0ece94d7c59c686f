package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	planText     = `{"intents":["i"],"queries":["q"],"targets":[],"risks":[]}`
	critiqueText = `{"sufficient":false,"gaps":[],"next_queries":[]}`
	reportText   = `{"tldr":"done","sections":[],"next_todos":[]}`
)

// fakeResponses serves /responses, answering by requested format.
type fakeResponses struct {
	mu      sync.Mutex
	formats []string
	outputs []string
}

func (f *fakeResponses) handler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text *struct {
			Format struct {
				Name string `json:"name"`
			} `json:"format"`
		} `json:"text"`
		Input []map[string]any `json:"input"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	name := "tools"
	if req.Text != nil {
		name = req.Text.Format.Name
	}
	f.formats = append(f.formats, name)
	for _, it := range req.Input {
		if it["type"] == "function_call_output" {
			f.outputs = append(f.outputs, fmt.Sprint(it["output"]))
		}
	}

	var output string
	switch name {
	case "Plan":
		output = message(planText)
	case "Critique":
		output = message(critiqueText)
	case "ResearchReport":
		output = message(reportText)
	default:
		output = `{"type":"function_call","id":"fc","call_id":"c1","name":"web_search","arguments":"{\"query\":\"q\"}"}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"id":"r","status":"completed","output":[`+output+`]}`)
}

func message(text string) string {
	b, _ := json.Marshal(text)
	return `{"type":"message","id":"m","role":"assistant","content":[{"type":"output_text","text":` + string(b) + `}]}`
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, e := range []string{"OPENAI_API_KEY", "OPENAI_BASE_URL", "DR_MODEL", "DR_MAX_ITERS", "BRAVE_API_KEY", "DR_SEARCH_LANG", "DR_DISABLE_PROXIES_FOR_BRAVE", "DR_TELEMETRY_METRICS_ADDR"} {
		t.Setenv(e, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "deepresearch.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCMD()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestResearchCommandEndToEnd(t *testing.T) {
	isolateEnv(t)
	f := &fakeResponses{}
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	defer srv.Close()
	cfg := writeConfig(t, fmt.Sprintf(`{"llm":{"api_key":"sk-test","base_url":%q}}`, srv.URL))

	stdout, stderr, err := execute(t, "--config", cfg, "--max-iters", "2", "prompt", "leakage")
	require.NoError(t, err)

	assert.JSONEq(t, reportText, stdout)
	assert.Contains(t, stderr, "starting research")
	assert.Equal(t, []string{"Plan", "tools", "Critique", "tools", "Critique", "ResearchReport"}, f.formats)
	require.NotEmpty(t, f.outputs)
	for _, out := range f.outputs {
		assert.JSONEq(t, `{"results":[]}`, out)
	}
}

func TestResearchCommandRequiresAPIKey(t *testing.T) {
	isolateEnv(t)
	cfg := writeConfig(t, `{}`)
	_, _, err := execute(t, "--config", cfg, "topic")
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}

func TestSchemaCommand(t *testing.T) {
	isolateEnv(t)
	stdout, _, err := execute(t, "schema")
	require.NoError(t, err)
	assert.Equal(t, []string{"Plan", "Critique", "ResearchReport", "tools"}, strings.Fields(stdout))

	stdout, _, err = execute(t, "schema", "Critique")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"sufficient"`)

	stdout, _, err = execute(t, "schema", "tools")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"extract_text"`)

	_, _, err = execute(t, "schema", "Nope")
	assert.Error(t, err)
}

func TestSchemaValidate(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(reportText), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte(`{"tldr":"x"}`), 0o600))

	stdout, _, err := execute(t, "schema", "ResearchReport", "--validate", good)
	require.NoError(t, err)
	assert.Contains(t, stdout, "valid ResearchReport")

	_, _, err = execute(t, "schema", "ResearchReport", "--validate", bad)
	assert.Error(t, err)
}

func TestSearchCommandWithoutKey(t *testing.T) {
	isolateEnv(t)
	cfg := writeConfig(t, `{}`)
	stdout, _, err := execute(t, "--config", cfg, "search", "llm", "benchmarks")
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[]}`, stdout)
}
