// Package builtin provides the built-in data-fetch tools shipped with Nexus.
//
// Each file exports one constructor returning a [tool.Config] wrapping a
// public market-data, sentiment, news, DeFi, gas or search API. [All] bundles
// them for registration at startup.
//
// All execute functions are safe for concurrent use and respect context
// cancellation; they share a single injected [http.Client].
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nexuslabs/nexus/internal/tool"
)

// Options configures the built-in tool set.
type Options struct {
	// HTTPClient is used for all outbound calls. Nil selects
	// [http.DefaultClient].
	HTTPClient *http.Client

	// TavilyAPIKey enables the live_search tool's web search. Empty renders
	// live_search as a stub reporting the missing key.
	TavilyAPIKey string

	// WhaleAlertAPIKey upgrades whale_tracker from the public Blockchain.com
	// fallback to the Whale Alert API.
	WhaleAlertAPIKey string

	// DefaultTimeout overrides the per-tool execution budget. Zero keeps
	// [tool.DefaultTimeout].
	DefaultTimeout time.Duration

	// SearchTimeout overrides live_search's execution budget. Zero keeps
	// [tool.SearchTimeout].
	SearchTimeout time.Duration
}

func (o Options) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return http.DefaultClient
}

func (o Options) timeout() time.Duration {
	if o.DefaultTimeout > 0 {
		return o.DefaultTimeout
	}
	return tool.DefaultTimeout
}

func (o Options) searchTimeout() time.Duration {
	if o.SearchTimeout > 0 {
		return o.SearchTimeout
	}
	return tool.SearchTimeout
}

// All returns every built-in tool, ready for registration.
func All(opts Options) []tool.Config {
	return []tool.Config{
		MarketPrice(opts),
		FearGreed(opts),
		CryptoNews(opts),
		LiveSearch(opts),
		DefiTVL(opts),
		GasTracker(opts),
		WhaleTracker(opts),
		OnchainData(opts),
	}
}

// getJSON performs a GET against url and decodes the JSON response into out.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// getText performs a GET against url and returns the raw response body.
func getText(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
