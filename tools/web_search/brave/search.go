// Package brave implements the web_search tool on top of the Brave Search API.
package brave

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/tools/web_search"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Endpoint is the Brave web search REST endpoint.
	// https://api.search.brave.com/app/documentation/web-search
	Endpoint = "https://api.search.brave.com/res/v1/web/search"

	DefaultDelay   = time.Second
	DefaultTimeout = 20 * time.Second
	DefaultLang    = "en"

	userAgent       = "DeepResearchBot/1.0 (+https://example.org)"
	maxBodyBytes    = 4 << 20
	maxPayloadChars = 500
	redacted        = "[REDACTED]"
)

var tracer trace.Tracer = otel.Tracer("deepresearch/tools/web_search/brave")

// Doer is satisfied by *http.Client; tests inject their own.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options configures a Provider. Zero values fall back to the package defaults.
type Options struct {
	APIKey   string
	Lang     string
	Endpoint string
	Timeout  time.Duration
	// Delay is waited before every outbound request.
	Delay time.Duration
	// DisableProxies ignores HTTP(S)_PROXY so intermediaries cannot strip the token header.
	DisableProxies bool
	Doer           Doer
	Policy         map[int]RetryStrategy
	Telemetry      *telemetry.Telemetry
}

// Provider is a web_search.WebSearcher that never fails: missing credentials,
// HTTP errors and transport errors all degrade to an empty result list.
type Provider struct {
	apiKey    string
	lang      string
	endpoint  string
	delay     time.Duration
	doer      Doer
	policy    map[int]RetryStrategy
	telemetry *telemetry.Telemetry
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

var _ web_search.WebSearcher = (*Provider)(nil)

// New builds a Provider. A nil logger uses slog.Default.
func New(opts Options, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{
		apiKey:    opts.APIKey,
		lang:      opts.Lang,
		endpoint:  opts.Endpoint,
		delay:     opts.Delay,
		doer:      opts.Doer,
		policy:    opts.Policy,
		telemetry: opts.Telemetry,
		logger:    logger.With("provider", "brave"),
		sleep:     sleepCtx,
	}
	if p.lang == "" {
		p.lang = DefaultLang
	}
	if p.endpoint == "" {
		p.endpoint = Endpoint
	}
	if p.delay <= 0 {
		p.delay = DefaultDelay
	}
	if p.policy == nil {
		p.policy = RetryPolicy
	}
	if p.doer == nil {
		p.doer = newHTTPClient(opts.Timeout, opts.DisableProxies)
		if opts.DisableProxies {
			p.logger.Info("proxies disabled for brave requests")
		}
	}
	return p
}

func newHTTPClient(timeout time.Duration, disableProxies bool) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if disableProxies {
		transport.Proxy = nil
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Search runs q against Brave.
func (p *Provider) Search(ctx context.Context, q web_search.Query) web_search.Response {
	ctx, span := tracer.Start(ctx, "brave.search", trace.WithAttributes(attribute.String("search.query", q.Query)))
	defer span.End()

	event := telemetry.SourceEvent{Source: "brave", StartTime: time.Now()}
	defer func() {
		event.Duration = time.Since(event.StartTime)
		p.telemetry.RecordSourceEvent(event)
		span.SetAttributes(
			attribute.String("search.outcome", event.Outcome),
			attribute.Int("search.results", event.Results),
			attribute.Bool("search.retried", event.Retried),
		)
	}()

	// A missing key is not a request, so it returns before the delay.
	key := strings.TrimSpace(p.apiKey)
	if key == "" {
		p.logger.Warn("brave api key is unset or empty; skipping search")
		event.Outcome = telemetry.OutcomeSkipped
		return web_search.Empty()
	}

	count := web_search.ClampTopK(q.TopK)
	params := url.Values{}
	params.Set("q", q.Query)
	params.Set("count", strconv.Itoa(count))
	params.Set("search_lang", p.lang)
	params.Set("safesearch", "moderate")
	freshness := normalizeFreshness(q.RecencyDays)
	if freshness != "" {
		params.Set("freshness", freshness)
	}
	p.logger.Info("brave search", "query", q.Query, "count", count, "lang", p.lang, "freshness", freshness, "token_present", true)

	status, body, err := p.get(ctx, key, params)
	if err != nil {
		p.logger.Error("brave request failed", "error", err)
		event.Outcome = telemetry.OutcomeTransportError
		return web_search.Empty()
	}

	if strategyFor(p.policy, status) == RetryStripOptional {
		p.logger.Warn("brave rejected first attempt", "status", status, "payload", redactPayload(body, key))
		retry := url.Values{}
		retry.Set("q", q.Query)
		retry.Set("count", strconv.Itoa(count))
		retry.Set("search_lang", p.lang)
		p.logger.Info("retrying brave without freshness and optional params")
		event.Retried = true
		status, body, err = p.get(ctx, key, retry)
		if err != nil {
			p.logger.Error("brave retry failed", "error", err)
			event.Outcome = telemetry.OutcomeTransportError
			return web_search.Empty()
		}
	}

	if status < 200 || status > 299 {
		p.logger.Error("brave http error", "status", status, "payload", redactPayload(body, key))
		event.Outcome = telemetry.OutcomeHTTPError
		return web_search.Empty()
	}

	results, err := decodeResults(body)
	if err != nil {
		p.logger.Error("brave response decode failed", "error", err)
		event.Outcome = telemetry.OutcomeDecodeError
		return web_search.Empty()
	}
	p.logger.Info("brave results", "count", len(results))
	event.Outcome = telemetry.OutcomeSuccess
	event.Results = len(results)
	return web_search.Response{Results: results}
}

// get waits out the inter-call delay and performs one GET.
func (p *Provider) get(ctx context.Context, key string, params url.Values) (int, []byte, error) {
	if err := p.sleep(ctx, p.delay); err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Subscription-Token", key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.doer.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// normalizeFreshness renders days as Brave's "<n>d" token, or "" when no
// freshness filter should be sent.
func normalizeFreshness(days int) string {
	if !web_search.InFreshnessWindow(days) {
		return ""
	}
	return strconv.Itoa(days) + "d"
}

func decodeResults(body []byte) ([]web_search.Result, error) {
	var raw struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
				Age         string `json:"age"`
				MetaURL     struct {
					LastMod string `json:"lastmod"`
				} `json:"meta_url"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	out := make([]web_search.Result, 0, len(raw.Web.Results))
	for _, r := range raw.Web.Results {
		published := r.Age
		if published == "" {
			published = r.MetaURL.LastMod
		}
		out = append(out, web_search.Result{
			Title:       r.Title,
			URL:         r.URL,
			Snippet:     r.Description,
			PublishedAt: published,
		})
	}
	return out, nil
}

// redactPayload renders an error body for logs with the API key scrubbed.
// Non-JSON bodies are cut to maxPayloadChars.
func redactPayload(body []byte, key string) string {
	var s string
	if json.Valid(body) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, body); err == nil {
			s = buf.String()
		} else {
			s = string(body)
		}
	} else {
		s = string(body)
		if len(s) > maxPayloadChars {
			s = s[:maxPayloadChars]
		}
	}
	if key != "" {
		s = strings.ReplaceAll(s, key, redacted)
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
