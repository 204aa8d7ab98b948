package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nexuslabs/nexus/internal/tool"
)

type newsResponse struct {
	Data []struct {
		Title       string `json:"title"`
		Source      string `json:"source"`
		URL         string `json:"url"`
		Body        string `json:"body"`
		PublishedOn int64  `json:"published_on"`
		Categories  string `json:"categories"`
	} `json:"Data"`
}

type newsArticle struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	Body        string `json:"body"`
	PublishedAt int64  `json:"publishedAt"`
	Categories  string `json:"categories"`
}

// CryptoNews returns the CryptoCompare headlines tool. Articles are filtered
// for relevance against the query when it names specific topics.
func CryptoNews(opts Options) tool.Config {
	client := opts.client()
	return tool.Config{
		ID:          "crypto_news",
		Name:        "Crypto News",
		Description: "Get the latest crypto news headlines",
		Source:      "CryptoCompare",
		Timeout:     opts.timeout(),
		CacheTTL:    2 * time.Minute,
		Execute: func(ctx context.Context, params tool.Params) (any, error) {
			var resp newsResponse
			url := "https://min-api.cryptocompare.com/data/v2/news/?lang=EN&sortOrder=popular"
			if err := getJSON(ctx, client, url, &resp); err != nil {
				return nil, fmt.Errorf("crypto_news: %w", err)
			}

			articles := make([]newsArticle, 0, 5)
			for _, a := range resp.Data {
				if len(articles) == 5 {
					break
				}
				body := a.Body
				if len(body) > 200 {
					body = body[:200] + "..."
				}
				articles = append(articles, newsArticle{
					Title:       a.Title,
					Source:      a.Source,
					URL:         a.URL,
					Body:        body,
					PublishedAt: a.PublishedOn,
					Categories:  a.Categories,
				})
			}

			if relevant := filterRelevant(articles, params.Query); len(relevant) > 0 {
				articles = relevant
			}
			return map[string]any{"articles": articles}, nil
		},
	}
}

// filterRelevant keeps articles mentioning any word (>3 chars) of the query.
func filterRelevant(articles []newsArticle, query string) []newsArticle {
	words := strings.Fields(strings.ToLower(query))

	var relevant []newsArticle
	for _, a := range articles {
		text := strings.ToLower(a.Title + " " + a.Body + " " + a.Categories)
		for _, word := range words {
			if len(word) > 3 && strings.Contains(text, word) {
				relevant = append(relevant, a)
				break
			}
		}
	}
	return relevant
}
