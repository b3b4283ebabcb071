// Package websearch is the web-search collaborator, backed by the Tavily API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

const (
	defaultBaseURL   = "https://api.tavily.com"
	maxResponseBytes = 2 << 20
	DefaultResults   = 3
)

type Config struct {
	APIKey      string        `envconfig:"API_KEY" split_words:"true"`
	BaseURL     string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.tavily.com"`
	SearchDepth string        `split_words:"true" default:"basic"`
	Timeout     time.Duration `split_words:"true" default:"15s"`
}

var ErrNotConfigured = errors.New("web search is not configured")

type TavilyClient struct {
	baseURL    string
	apiKey     string
	depth      string
	httpClient *http.Client
}

var _ contractx.WebSearcher = (*TavilyClient)(nil)

func NewTavilyClient(cfg Config) *TavilyClient {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	depth := strings.TrimSpace(cfg.SearchDepth)
	if depth == "" {
		depth = "basic"
	}
	return &TavilyClient{
		baseURL:    base,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		depth:      depth,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]statex.WebResult, error) {
	if c == nil || c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", contractx.ErrValidation)
	}
	if maxResults <= 0 {
		maxResults = DefaultResults
	}

	body, err := json.Marshal(map[string]any{
		"query":        query,
		"max_results":  maxResults,
		"search_depth": c.depth,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: search request: %v", contractx.ErrDependency, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: search status=%d body=%s", contractx.ErrDependency, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	results := ParseResults(raw)
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// ParseResults normalizes a search payload. It accepts either an object
// with a "results" array or a bare array, and falls back through the common
// field aliases for each value.
func ParseResults(raw []byte) []statex.WebResult {
	if !gjson.ValidBytes(raw) {
		return nil
	}
	root := gjson.ParseBytes(raw)
	items := root.Get("results")
	if !items.IsArray() {
		items = root
	}
	if !items.IsArray() {
		return nil
	}

	out := make([]statex.WebResult, 0, len(items.Array()))
	items.ForEach(func(_, item gjson.Result) bool {
		r := statex.WebResult{
			Title:   firstString(item, "title", "headline"),
			Snippet: firstString(item, "content", "snippet", "summary"),
			URL:     firstString(item, "url", "link"),
		}
		if r.Title != "" || r.URL != "" {
			out = append(out, r)
		}
		return true
	})
	return out
}

func firstString(item gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := strings.TrimSpace(item.Get(p).String()); v != "" {
			return v
		}
	}
	return ""
}
