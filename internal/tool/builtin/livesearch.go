package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nexuslabs/nexus/internal/tool"
)

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// LiveSearch returns the Tavily web search tool. Without an API key it
// degrades to a stub reporting the missing configuration rather than failing
// the dispatch.
func LiveSearch(opts Options) tool.Config {
	client := opts.client()
	apiKey := opts.TavilyAPIKey
	return tool.Config{
		ID:          "live_search",
		Name:        "Live Search",
		Description: "Search the web for real-time information",
		Source:      "Tavily Search",
		Timeout:     opts.searchTimeout(),
		Execute: func(ctx context.Context, params tool.Params) (any, error) {
			if apiKey == "" {
				return map[string]any{"error": "Tavily API key not configured"}, nil
			}

			body, err := json.Marshal(tavilyRequest{
				APIKey:        apiKey,
				Query:         params.Query,
				SearchDepth:   "basic",
				IncludeAnswer: true,
				MaxResults:    5,
			})
			if err != nil {
				return nil, fmt.Errorf("live_search: encode request: %w", err)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.tavily.com/search", bytes.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("live_search: build request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("live_search: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				io.Copy(io.Discard, resp.Body)
				return nil, fmt.Errorf("live_search: unexpected status %d", resp.StatusCode)
			}

			var result tavilyResponse
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				return nil, fmt.Errorf("live_search: decode response: %w", err)
			}

			snippets := make([]map[string]any, 0, 5)
			for _, r := range result.Results {
				if len(snippets) == 5 {
					break
				}
				snippets = append(snippets, map[string]any{
					"title":   r.Title,
					"url":     r.URL,
					"snippet": r.Content,
				})
			}
			return map[string]any{"answer": result.Answer, "results": snippets}, nil
		},
	}
}
