package builtin

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/nexuslabs/nexus/internal/tool"
)

var protocolPattern = regexp.MustCompile(`(?i)\b(aave|uniswap|lido|makerdao|compound|curve|convex|eigenlayer|pendle|morpho|gmx|hyperliquid)\b`)

type llamaProtocol struct {
	Name     string   `json:"name"`
	Symbol   string   `json:"symbol"`
	TVL      float64  `json:"tvl"`
	Chain    string   `json:"chain"`
	Category string   `json:"category"`
	Chains   []string `json:"chains"`
	Change1d *float64 `json:"change_1d"`
	Change7d *float64 `json:"change_7d"`
	Mcap     float64  `json:"mcap"`
}

// DefiTVL returns the DeFi Llama tool: a single protocol's TVL when the
// query names one, otherwise the top protocols by TVL.
func DefiTVL(opts Options) tool.Config {
	client := opts.client()
	return tool.Config{
		ID:          "defi_tvl",
		Name:        "DeFi TVL",
		Description: "Get DeFi protocol TVL data, rankings, and trends",
		Source:      "DeFi Llama",
		Timeout:     opts.timeout(),
		CacheTTL:    time.Minute,
		Execute: func(ctx context.Context, params tool.Params) (any, error) {
			if m := protocolPattern.FindStringSubmatch(params.Query); m != nil {
				return fetchProtocol(ctx, client, strings.ToLower(m[1]))
			}
			return fetchTopProtocols(ctx, client)
		},
	}
}

func fetchProtocol(ctx context.Context, client *http.Client, protocol string) (any, error) {
	var p llamaProtocol
	if err := getJSON(ctx, client, "https://api.llama.fi/protocol/"+protocol, &p); err != nil {
		return nil, fmt.Errorf("defi_tvl: %w", err)
	}

	chains := p.Chains
	if len(chains) > 5 {
		chains = chains[:5]
	}
	return map[string]any{
		"name":      p.Name,
		"symbol":    p.Symbol,
		"tvl":       p.TVL,
		"chain":     p.Chain,
		"category":  p.Category,
		"chains":    chains,
		"change_1d": p.Change1d,
		"change_7d": p.Change7d,
		"mcap":      p.Mcap,
	}, nil
}

func fetchTopProtocols(ctx context.Context, client *http.Client) (any, error) {
	var protocols []llamaProtocol
	if err := getJSON(ctx, client, "https://api.llama.fi/protocols", &protocols); err != nil {
		return nil, fmt.Errorf("defi_tvl: %w", err)
	}

	var totalTVL float64
	for _, p := range protocols {
		totalTVL += p.TVL
	}

	top := protocols
	if len(top) > 10 {
		top = top[:10]
	}
	ranked := make([]map[string]any, 0, len(top))
	for _, p := range top {
		ranked = append(ranked, map[string]any{
			"name":      p.Name,
			"symbol":    p.Symbol,
			"tvl":       p.TVL,
			"category":  p.Category,
			"change_1d": p.Change1d,
			"chain":     p.Chain,
		})
	}

	return map[string]any{
		"top_protocols": ranked,
		"total_tvl":     totalTVL,
	}, nil
}
