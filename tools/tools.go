// Package tools advertises the functions the model may call and routes its
// calls to local handlers.
package tools

import (
	"encoding/json"

	"github.com/mohammad-safakhou/deepresearch/internal/schema"
)

// Kind names a tool the model can call.
type Kind string

const (
	WebSearch   Kind = "web_search"
	HTTPFetch   Kind = "http_fetch"
	ExtractText Kind = "extract_text"
)

// Kinds returns every advertised tool in declaration order.
func Kinds() []Kind {
	return []Kind{WebSearch, HTTPFetch, ExtractText}
}

func (k Kind) String() string { return string(k) }

// ParseKind reports whether name is an advertised tool.
func ParseKind(name string) (Kind, bool) {
	for _, k := range Kinds() {
		if string(k) == name {
			return k, true
		}
	}
	return "", false
}

// Definition is a function tool as advertised to the model.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// WebSearchArgs documents the web_search parameters.
type WebSearchArgs struct {
	Query       string `json:"query"`
	TopK        int    `json:"top_k,omitempty" jsonschema:"default=5,minimum=1,maximum=20"`
	RecencyDays int    `json:"recency_days,omitempty" jsonschema:"default=3650"`
}

type HTTPFetchArgs struct {
	URL string `json:"url"`
}

type ExtractTextArgs struct {
	ContentBase64 string `json:"content_base64"`
	ContentType   string `json:"content_type" jsonschema:"enum=html,enum=pdf,enum=text"`
	URL           string `json:"url,omitempty"`
}

var definitions = []Definition{
	{
		Name:        string(WebSearch),
		Description: "Search the web and return results (title, url, snippet, time).",
		Parameters:  schema.Reflect[WebSearchArgs](),
	},
	{
		Name:        string(HTTPFetch),
		Description: "Fetch a webpage or PDF. Returns base64 + content type.",
		Parameters:  schema.Reflect[HTTPFetchArgs](),
	},
	{
		Name:        string(ExtractText),
		Description: "Extract main text and links from HTML/PDF.",
		Parameters:  schema.Reflect[ExtractTextArgs](),
	},
}

// Definitions returns the advertised tool list. A tool being advertised does
// not mean a handler is registered for it.
func Definitions() []Definition {
	return append([]Definition(nil), definitions...)
}
