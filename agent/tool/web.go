package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	"github.com/Yuvaramesh/sales-agent/agent/handlers"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
	"github.com/Yuvaramesh/sales-agent/agent/websearch"
)

const webSearchResults = websearch.DefaultResults

func (c *Catalog) executeWebSearch(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return contractx.ToolResult{Tool: tool, Error: err.Error()}, nil
	}
	if c.searcher == nil {
		return contractx.ToolResult{Tool: tool, Result: RenderWebResults(nil, websearch.ErrNotConfigured)}, nil
	}

	results, err := c.searcher.Search(ctx, query, webSearchResults)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("web search failed")
		if !errors.Is(err, websearch.ErrNotConfigured) {
			err = fmt.Errorf("web search request failed: %v", err)
		}
	}
	return contractx.ToolResult{Tool: tool, Result: RenderWebResults(results, err)}, nil
}

// RenderWebResults formats search results and appends the marker payload.
// A search error is rendered in place of the results.
func RenderWebResults(results []statex.WebResult, searchErr error) string {
	lines := make([]string, 0, len(results)+1)
	if searchErr != nil {
		lines = append(lines, searchErr.Error())
	}
	for _, r := range results {
		lines = append(lines, r.Title+"\n"+r.Snippet+"\n"+r.URL)
	}

	var b strings.Builder
	b.WriteString("External search results:\n\n")
	if len(lines) == 0 {
		b.WriteString("No results.")
	} else {
		b.WriteString(strings.Join(lines, "\n\n"))
	}

	if results == nil {
		results = []statex.WebResult{}
	}
	payload, err := json.Marshal(results)
	if err != nil {
		payload = []byte("[]")
	}
	b.WriteString("\n\n")
	b.WriteString(handlers.WebMarker)
	b.Write(payload)
	return b.String()
}
