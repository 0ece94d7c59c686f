package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/deepresearch/tools/web_search"
)

// Handlers returns the default handler set. Only web_search is backed;
// http_fetch and extract_text stay advertised but unregistered.
func Handlers(searcher web_search.WebSearcher) map[Kind]Handler {
	return map[Kind]Handler{
		WebSearch: WebSearchHandler(searcher),
	}
}

// WebSearchHandler adapts a searcher to the web_search tool. top_k and
// recency_days accept numbers or numeric strings; fractional values are
// truncated.
func WebSearchHandler(searcher web_search.WebSearcher) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		rawQuery, ok := args["query"]
		if !ok {
			return nil, errors.New("missing required argument: query")
		}
		query, ok := rawQuery.(string)
		if !ok {
			return nil, fmt.Errorf("query must be a string, got %T", rawQuery)
		}
		topK, err := intArg(args, "top_k", web_search.DefaultTopK)
		if err != nil {
			return nil, err
		}
		days, err := intArg(args, "recency_days", web_search.DefaultRecencyDays)
		if err != nil {
			return nil, err
		}
		return searcher.Search(ctx, web_search.Query{Query: query, TopK: topK, RecencyDays: days}), nil
	}
}

func intArg(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	n, err := asInt(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func asInt(v any) (int, error) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, err
		}
		return int(f), nil
	case float64:
		return int(x), nil
	case int:
		return x, nil
	case string:
		return strconv.Atoi(strings.TrimSpace(x))
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}
